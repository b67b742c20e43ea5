// Package notifier delivers piracy alerts to an operator-configured webhook.
// Delivery is best effort: the engine fires these out-of-band and only ever
// logs failures.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/poyrazK/keygate/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// WebhookNotifier posts piracy alerts to a single webhook URL. The payload
// shape is inferred from the URL: Discord webhooks get an embed, Telegram bot
// endpoints get a Markdown message, anything else gets plain JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert domain.PiracyAlert) error {
	var body any
	switch {
	case strings.Contains(n.url, "discord.com"):
		body = discordPayload(alert)
	case strings.Contains(n.url, "api.telegram.org"):
		body = telegramPayload(alert)
	default:
		body = genericPayload(alert)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Color     int            `json:"color"`
	Title     string         `json:"title"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
	Footer    struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordMessage struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

func discordPayload(a domain.PiracyAlert) discordMessage {
	embed := discordEmbed{
		Color: 0xFF0000,
		Title: "Unauthorized license use detected",
		Fields: []discordField{
			{Name: "License", Value: a.LicenseKey, Inline: true},
			{Name: "Holder", Value: a.HolderName, Inline: true},
			{Name: "Office", Value: orDash(a.OfficeName), Inline: true},
			{Name: "Bound domain", Value: fmt.Sprintf("`%s`", a.BoundDomain), Inline: true},
			{Name: "Attempted domain", Value: fmt.Sprintf("`%s`", a.AttemptedDomain), Inline: true},
			{Name: "Attempted IP", Value: fmt.Sprintf("`%s`", a.AttemptedIP), Inline: true},
			{Name: "Attempt #", Value: fmt.Sprintf("%d", a.AttemptCount), Inline: true},
		},
		Timestamp: a.Timestamp,
	}
	embed.Footer.Text = "keygate license server"

	return discordMessage{
		Content: "**PIRACY ALERT**",
		Embeds:  []discordEmbed{embed},
	}
}

type telegramMessage struct {
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func telegramPayload(a domain.PiracyAlert) telegramMessage {
	text := fmt.Sprintf("*PIRACY DETECTED!*\n\n"+
		"License: `%s`\n"+
		"Holder: %s\n"+
		"Office: %s\n"+
		"Bound domain: `%s`\n"+
		"Attempted domain: `%s`\n"+
		"IP: `%s`\n"+
		"Attempt #%d",
		a.LicenseKey, a.HolderName, orDash(a.OfficeName), a.BoundDomain,
		a.AttemptedDomain, a.AttemptedIP, a.AttemptCount)
	return telegramMessage{Text: text, ParseMode: "Markdown"}
}

type genericAlert struct {
	Event string `json:"event"`
	domain.PiracyAlert
}

func genericPayload(a domain.PiracyAlert) genericAlert {
	return genericAlert{Event: "piracy_attempt", PiracyAlert: a}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
