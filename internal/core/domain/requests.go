package domain

import (
	"time"
)

// ClientRequest carries what an installed application instance presents when
// activating or verifying: its license key, the domain it serves, an optional
// server fingerprint, and the transport-supplied caller identity.
type ClientRequest struct {
	Key        string
	Domain     string
	ServerHash string
	ClientIP   string
	UserAgent  string
}

// ActivationSummary is the sanitized license view returned on a successful
// activation. No internal id, no server hash.
type ActivationSummary struct {
	Key         string      `json:"key"`
	PackageType PackageType `json:"package_type"`
	HolderName  string      `json:"holder_name"`
	OfficeName  string      `json:"office_name,omitempty"`
	Domain      string      `json:"domain"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	ActivatedAt time.Time   `json:"activated_at"`
}

// VerificationResult is returned on a successful verification.
type VerificationResult struct {
	PackageType PackageType `json:"package_type"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// CreateLicenseInput is the administrative request to mint a new license.
// PackageType and HolderName are mandatory; the key is generated server-side.
type CreateLicenseInput struct {
	PackageType PackageType `json:"package_type"`
	HolderName  string      `json:"holder_name"`
	OfficeName  string      `json:"office_name,omitempty"`
	HolderEmail string      `json:"holder_email,omitempty"`
	HolderPhone string      `json:"holder_phone,omitempty"`
	Address     string      `json:"address,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// LicenseWithLogs pairs a license with its most recent audit entries for the
// admin listing.
type LicenseWithLogs struct {
	License
	RecentLogs []AuditLogEntry `json:"recent_logs"`
}

// PiracyReport is the admin view of detected misuse: the latest piracy audit
// entries plus every license that has ever recorded an attempt.
type PiracyReport struct {
	Logs       []PiracyLog `json:"piracy_logs"`
	Suspicious []License   `json:"suspicious_licenses"`
}
