package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"  // Full license CRUD plus unbind
	RoleReader Role = "reader" // Read-only: listings, piracy report, stats
)

// APIKey is an administrative credential for the management API. The public
// activate/verify endpoints never use these; there the license key itself is
// the credential.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`       // Human-readable label, e.g. "dashboard"
	KeyHash   string     `json:"-"`          // SHA-256 hash of the key (never store raw)
	KeyPrefix string     `json:"key_prefix"` // First 8 chars for identification
	Role      Role       `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
