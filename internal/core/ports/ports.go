package ports

import (
	"context"
	"time"

	"github.com/poyrazK/keygate/internal/core/domain"
)

// LicenseRepository is the persistent license store plus its append-only audit
// trail. Lookups return (nil, nil) when the record does not exist; mutation
// methods return domain.ErrNotFound instead.
//
// BindDomain and RecordPiracyAttempt are the two operations racing requests
// contend on. Both must be atomic per license: BindDomain is a compare-and-set
// that only succeeds while the license is unbound or already bound to the same
// domain, and RecordPiracyAttempt is a transactional increment that returns
// the running total.
type LicenseRepository interface {
	CreateLicense(ctx context.Context, lic *domain.License) error
	GetLicenseByKey(ctx context.Context, key string) (*domain.License, error)
	GetLicenseByID(ctx context.Context, id string) (*domain.License, error)
	ListLicenses(ctx context.Context) ([]domain.License, error)
	UpdateLicense(ctx context.Context, id string, patch domain.LicensePatch) (*domain.License, error)

	BindDomain(ctx context.Context, id, domain, serverHash string, now time.Time) (*domain.License, error)
	UnbindDomain(ctx context.Context, id string) (*domain.License, error)
	TouchVerified(ctx context.Context, id string, now time.Time) error
	RecordPiracyAttempt(ctx context.Context, id string, now time.Time) (int, error)

	SaveAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]domain.AuditLogEntry, error)
	ListPiracyLogs(ctx context.Context, limit int) ([]domain.PiracyLog, error)
	ListSuspiciousLicenses(ctx context.Context) ([]domain.License, error)
	Stats(ctx context.Context) (*domain.LicenseStats, error)

	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

// LicenseService is the activation/verification engine plus the administrative
// operations layered on the same store.
type LicenseService interface {
	Activate(ctx context.Context, req domain.ClientRequest) (*domain.ActivationSummary, error)
	Verify(ctx context.Context, req domain.ClientRequest) (*domain.VerificationResult, error)

	CreateLicense(ctx context.Context, input domain.CreateLicenseInput) (*domain.License, error)
	ListLicenses(ctx context.Context) ([]domain.LicenseWithLogs, error)
	PatchLicense(ctx context.Context, id string, patch domain.LicensePatch) (*domain.License, error)
	UnbindLicense(ctx context.Context, id string) (*domain.License, error)
	PiracyReport(ctx context.Context) (*domain.PiracyReport, error)
	Stats(ctx context.Context) (*domain.LicenseStats, error)

	HealthCheck(ctx context.Context) map[string]error
}

// PiracyNotifier delivers a misuse alert out-of-band. Best effort only: the
// engine never lets a notifier error reach the client, and never retries.
type PiracyNotifier interface {
	Notify(ctx context.Context, alert domain.PiracyAlert) error
}

// LicenseCache is an optional read-through cache in front of GetLicenseByKey
// on the verify path. Implementations must tolerate being nil-checked away;
// the engine works without one.
type LicenseCache interface {
	Get(ctx context.Context, key string) (*domain.License, bool)
	Set(ctx context.Context, lic *domain.License)
	Invalidate(ctx context.Context, key string)
	Ping(ctx context.Context) error
}
