// Package domain contains the core business entities for keygate.
package domain

import (
	"time"
)

// PackageType identifies the feature tier a license entitles its holder to.
type PackageType string

const (
	// PackageComplete unlocks every feature.
	PackageComplete PackageType = "complete"
	// PackageNoAI excludes all AI-assisted features.
	PackageNoAI PackageType = "no_ai"
	// PackageLimitedAI includes a capped amount of AI usage.
	PackageLimitedAI PackageType = "limited_ai"
)

// ValidPackageType reports whether pt is one of the known package tiers.
func ValidPackageType(pt PackageType) bool {
	switch pt {
	case PackageComplete, PackageNoAI, PackageLimitedAI:
		return true
	}
	return false
}

// License is a single license key record. A license binds to at most one
// domain for its whole life; only an administrative unbind clears the binding.
type License struct {
	ID             string      `json:"id"`
	Key            string      `json:"key"` // canonical form: trimmed, uppercase
	PackageType    PackageType `json:"package_type"`
	HolderName     string      `json:"holder_name"`
	OfficeName     string      `json:"office_name,omitempty"`
	HolderEmail    string      `json:"holder_email,omitempty"`
	HolderPhone    string      `json:"holder_phone,omitempty"`
	Address        string      `json:"address,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	IsActive       bool        `json:"is_active"`
	BoundDomain    *string     `json:"bound_domain,omitempty"`
	ServerHash     *string     `json:"server_hash,omitempty"`
	ActivatedAt    *time.Time  `json:"activated_at,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
	LastVerified   *time.Time  `json:"last_verified,omitempty"`
	PiracyAttempts int         `json:"piracy_attempts"`
	LastPiracyAt   *time.Time  `json:"last_piracy_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Expired reports whether the license has passed its expiry at the given
// instant. The comparison is strict: a license expiring exactly now is still
// valid.
func (l *License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Bound reports whether the license is currently bound to a domain.
func (l *License) Bound() bool {
	return l.BoundDomain != nil && *l.BoundDomain != ""
}

// BoundElsewhere reports whether the license is bound to a domain other than
// the one presenting it. Re-use from the bound domain itself is never a
// conflict.
func (l *License) BoundElsewhere(domain string) bool {
	return l.Bound() && *l.BoundDomain != domain
}

// Action enumerates audit log entry types.
type Action string

const (
	ActionActivate      Action = "activate"
	ActionReject        Action = "reject"
	ActionPiracyAttempt Action = "piracy_attempt"
	ActionUnbind        Action = "unbind"
)

// AuditLogEntry is one immutable line in a license's activity trail.
type AuditLogEntry struct {
	ID         string    `json:"id"`
	LicenseID  string    `json:"license_id"`
	Action     Action    `json:"action"`
	Domain     string    `json:"domain,omitempty"`
	ServerHash string    `json:"server_hash,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Details    string    `json:"details"`
	IsPiracy   bool      `json:"is_piracy"`
	CreatedAt  time.Time `json:"created_at"`
}

// PiracyAlert is the payload handed to the piracy notifier when an activation
// attempt hits a license bound to a different domain. The key is masked before
// the alert leaves the engine.
type PiracyAlert struct {
	LicenseKey      string `json:"licenseKey"`
	HolderName      string `json:"holderName"`
	OfficeName      string `json:"officeName,omitempty"`
	BoundDomain     string `json:"boundDomain"`
	AttemptedDomain string `json:"attemptedDomain"`
	AttemptedIP     string `json:"attemptedIp"`
	UserAgent       string `json:"userAgent"`
	AttemptCount    int    `json:"attemptCount"`
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// PiracyLog is a piracy audit entry joined with the identity of the license it
// belongs to, for the admin report.
type PiracyLog struct {
	AuditLogEntry
	LicenseKey  string `json:"license_key"`
	HolderName  string `json:"holder_name"`
	OfficeName  string `json:"office_name,omitempty"`
	HolderPhone string `json:"holder_phone,omitempty"`
}

// LicenseStats is the aggregate view served to the admin dashboard.
type LicenseStats struct {
	Total          int                 `json:"total"`
	Active         int                 `json:"active"`
	Bound          int                 `json:"bound"`
	PiracyLogTotal int                 `json:"total_piracy_attempts"`
	ByPackage      map[PackageType]int `json:"by_package"`
	Hotspots       []PiracyHotspot     `json:"piracy_hotspots"`
}

// PiracyHotspot is a license with at least one recorded piracy attempt.
type PiracyHotspot struct {
	Key            string     `json:"key"`
	HolderName     string     `json:"holder_name"`
	OfficeName     string     `json:"office_name,omitempty"`
	PiracyAttempts int        `json:"piracy_attempts"`
	LastPiracyAt   *time.Time `json:"last_piracy_at,omitempty"`
}

// LicensePatch is a partial update of administrative license fields. Nil
// pointers leave the field untouched. ClearExpiresAt removes the expiry
// entirely; it wins over ExpiresAt.
type LicensePatch struct {
	PackageType    *PackageType
	HolderName     *string
	OfficeName     *string
	HolderEmail    *string
	HolderPhone    *string
	Address        *string
	Notes          *string
	IsActive       *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}
