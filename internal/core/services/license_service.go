package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/keygate/internal/core/domain"
	"github.com/poyrazK/keygate/internal/core/ports"
	"github.com/poyrazK/keygate/internal/infrastructure/metrics"
)

const defaultNotifyTimeout = 10 * time.Second

// licenseService is the activation/verification engine. The repository is the
// only shared mutable state; the engine itself is stateless per request.
type licenseService struct {
	repo          ports.LicenseRepository
	notifier      ports.PiracyNotifier
	cache         ports.LicenseCache
	logger        *slog.Logger
	notifyTimeout time.Duration
}

// NewLicenseService wires the engine. notifier and cache may be nil; the
// engine then skips alerting and always reads the store directly.
func NewLicenseService(repo ports.LicenseRepository, notifier ports.PiracyNotifier, cache ports.LicenseCache, logger *slog.Logger) ports.LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		repo:          repo,
		notifier:      notifier,
		cache:         cache,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
	}
}

// Activate binds a license to the requesting domain, or rejects. Binding is a
// compare-and-set in the store, so two domains racing for a fresh license end
// with exactly one winner; the loser is handled as a piracy attempt.
func (s *licenseService) Activate(ctx context.Context, req domain.ClientRequest) (*domain.ActivationSummary, error) {
	key := domain.CanonicalKey(req.Key)

	lic, err := s.repo.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	if lic == nil {
		// Unknown key: nothing to attribute an audit entry to.
		metrics.ActivationsTotal.WithLabelValues("not_found").Inc()
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()

	if !lic.IsActive {
		s.audit(ctx, lic.ID, domain.ActionReject, req, "Key deactivated", false, now)
		metrics.ActivationsTotal.WithLabelValues("deactivated").Inc()
		return nil, domain.ErrDeactivated
	}

	if lic.Expired(now) {
		s.audit(ctx, lic.ID, domain.ActionReject, req, "Key expired", false, now)
		metrics.ActivationsTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrExpired
	}

	if lic.BoundElsewhere(req.Domain) {
		metrics.ActivationsTotal.WithLabelValues("conflict").Inc()
		return nil, s.recordPiracy(ctx, lic, req, now, "activate")
	}

	updated, err := s.repo.BindDomain(ctx, lic.ID, req.Domain, req.ServerHash, now)
	if errors.Is(err, domain.ErrDomainConflict) {
		// Lost the bind race to another domain. Re-read so the audit entry
		// and alert name the actual winner.
		if cur, errGet := s.repo.GetLicenseByKey(ctx, key); errGet == nil && cur != nil {
			lic = cur
		}
		metrics.ActivationsTotal.WithLabelValues("conflict").Inc()
		return nil, s.recordPiracy(ctx, lic, req, now, "activate")
	}
	if err != nil {
		return nil, fmt.Errorf("bind domain: %w", err)
	}

	s.invalidate(ctx, key)
	s.audit(ctx, lic.ID, domain.ActionActivate, req,
		fmt.Sprintf("Activation OK. Holder: %s (%s)", lic.HolderName, orDash(lic.OfficeName)), false, now)
	metrics.ActivationsTotal.WithLabelValues("ok").Inc()

	activatedAt := now
	if updated.ActivatedAt != nil {
		activatedAt = *updated.ActivatedAt
	}
	return &domain.ActivationSummary{
		Key:         updated.Key,
		PackageType: updated.PackageType,
		HolderName:  updated.HolderName,
		OfficeName:  updated.OfficeName,
		Domain:      req.Domain,
		ExpiresAt:   updated.ExpiresAt,
		ActivatedAt: activatedAt,
	}, nil
}

// Verify is the routine post-activation check. It never binds and never
// alerts; a domain mismatch still counts and audits the attempt.
func (s *licenseService) Verify(ctx context.Context, req domain.ClientRequest) (*domain.VerificationResult, error) {
	key := domain.CanonicalKey(req.Key)

	lic, err := s.lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	if lic == nil {
		metrics.VerificationsTotal.WithLabelValues("not_found").Inc()
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()

	// Inactive and expired rejections are not audited here; only the
	// activate path writes those entries.
	if !lic.IsActive {
		metrics.VerificationsTotal.WithLabelValues("deactivated").Inc()
		return nil, domain.ErrDeactivated
	}
	if lic.Expired(now) {
		metrics.VerificationsTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrExpired
	}

	if lic.BoundElsewhere(req.Domain) {
		metrics.VerificationsTotal.WithLabelValues("conflict").Inc()
		return nil, s.recordPiracy(ctx, lic, req, now, "verify")
	}

	if err := s.repo.TouchVerified(ctx, lic.ID, now); err != nil {
		return nil, fmt.Errorf("touch verified: %w", err)
	}

	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	return &domain.VerificationResult{
		PackageType: lic.PackageType,
		ExpiresAt:   lic.ExpiresAt,
	}, nil
}

// recordPiracy counts the mismatch, audits it, and (on the activate path only)
// fires the out-of-band alert. It always returns ErrDomainConflict unless the
// counter increment itself failed, in which case the store error wins.
func (s *licenseService) recordPiracy(ctx context.Context, lic *domain.License, req domain.ClientRequest, now time.Time, source string) error {
	count, err := s.repo.RecordPiracyAttempt(ctx, lic.ID, now)
	if err != nil {
		return fmt.Errorf("record piracy attempt: %w", err)
	}
	s.invalidate(ctx, lic.Key)
	metrics.PiracyAttemptsTotal.WithLabelValues(source).Inc()

	bound := ""
	if lic.BoundDomain != nil {
		bound = *lic.BoundDomain
	}

	var details string
	notify := source == "activate"
	if notify {
		details = fmt.Sprintf("PIRACY! Key of %q (%s) bound to %s, attempted from %s. IP: %s. Attempt #%d.",
			lic.HolderName, orDash(lic.OfficeName), bound, req.Domain, req.ClientIP, count)
	} else {
		details = fmt.Sprintf("Verify domain mismatch. Bound: %s, Tried: %s", bound, req.Domain)
	}
	s.audit(ctx, lic.ID, domain.ActionPiracyAttempt, req, details, true, now)

	if notify && s.notifier != nil {
		alert := domain.PiracyAlert{
			LicenseKey:      domain.MaskKey(lic.Key),
			HolderName:      lic.HolderName,
			OfficeName:      lic.OfficeName,
			BoundDomain:     bound,
			AttemptedDomain: req.Domain,
			AttemptedIP:     req.ClientIP,
			UserAgent:       req.UserAgent,
			AttemptCount:    count,
			Timestamp:       now.Format(time.RFC3339),
		}
		go s.deliverAlert(alert)
	}

	return domain.ErrDomainConflict
}

// deliverAlert runs detached from the request so a slow webhook can never
// stall or fail the activation response.
func (s *licenseService) deliverAlert(alert domain.PiracyAlert) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, alert); err != nil {
		metrics.NotifierDeliveries.WithLabelValues("error").Inc()
		s.logger.Error("piracy alert delivery failed",
			"license_key", alert.LicenseKey,
			"attempted_domain", alert.AttemptedDomain,
			"error", err)
		return
	}
	metrics.NotifierDeliveries.WithLabelValues("ok").Inc()
}

// audit appends a trail entry. The license decision never fails because the
// log write did; failures are reported locally and swallowed.
func (s *licenseService) audit(ctx context.Context, licenseID string, action domain.Action, req domain.ClientRequest, details string, isPiracy bool, now time.Time) {
	entry := &domain.AuditLogEntry{
		ID:         uuid.New().String(),
		LicenseID:  licenseID,
		Action:     action,
		Domain:     req.Domain,
		ServerHash: req.ServerHash,
		IP:         req.ClientIP,
		UserAgent:  req.UserAgent,
		Details:    details,
		IsPiracy:   isPiracy,
		CreatedAt:  now,
	}
	if err := s.repo.SaveAuditLog(ctx, entry); err != nil {
		s.logger.Error("audit log write failed",
			"license_id", licenseID,
			"action", string(action),
			"error", err)
	}
}

// lookup reads through the cache when one is configured. Only the verify path
// uses it; counters and bindings always go to the store.
func (s *licenseService) lookup(ctx context.Context, key string) (*domain.License, error) {
	if s.cache != nil {
		if lic, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheOperations.WithLabelValues("hit").Inc()
			return lic, nil
		}
		metrics.CacheOperations.WithLabelValues("miss").Inc()
	}

	lic, err := s.repo.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if lic != nil && s.cache != nil {
		s.cache.Set(ctx, lic)
	}
	return lic, nil
}

func (s *licenseService) invalidate(ctx context.Context, key string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, key)
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
