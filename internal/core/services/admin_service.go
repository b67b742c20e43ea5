package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/keygate/internal/core/domain"
)

// How many times CreateLicense retries after a generated key collides.
const keyCollisionRetries = 3

// How many trailing audit entries each license carries in the admin listing.
const recentLogLimit = 3

// CreateLicense mints a new license with a server-generated key. The store's
// unique index arbitrates key collisions; on ErrDuplicateKey a fresh key is
// generated and the insert retried a few times before giving up.
func (s *licenseService) CreateLicense(ctx context.Context, input domain.CreateLicenseInput) (*domain.License, error) {
	if !domain.ValidPackageType(input.PackageType) {
		return nil, fmt.Errorf("invalid package type %q", input.PackageType)
	}
	if input.HolderName == "" {
		return nil, fmt.Errorf("holder name is required")
	}

	var lastErr error
	for attempt := 0; attempt <= keyCollisionRetries; attempt++ {
		key, err := domain.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}

		lic := &domain.License{
			ID:          uuid.New().String(),
			Key:         key,
			PackageType: input.PackageType,
			HolderName:  input.HolderName,
			OfficeName:  input.OfficeName,
			HolderEmail: input.HolderEmail,
			HolderPhone: input.HolderPhone,
			Address:     input.Address,
			Notes:       input.Notes,
			IsActive:    true,
			ExpiresAt:   input.ExpiresAt,
			CreatedAt:   time.Now().UTC(),
		}

		lastErr = s.repo.CreateLicense(ctx, lic)
		if lastErr == nil {
			return lic, nil
		}
		if !errors.Is(lastErr, domain.ErrDuplicateKey) {
			return nil, fmt.Errorf("create license: %w", lastErr)
		}
		s.logger.Warn("generated key collided, retrying", "attempt", attempt+1)
	}
	return nil, fmt.Errorf("create license: %w", lastErr)
}

// ListLicenses returns every license, newest first, each with its last few
// audit entries.
func (s *licenseService) ListLicenses(ctx context.Context) ([]domain.LicenseWithLogs, error) {
	licenses, err := s.repo.ListLicenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	out := make([]domain.LicenseWithLogs, 0, len(licenses))
	for _, lic := range licenses {
		logs, err := s.repo.ListAuditLogs(ctx, lic.ID, recentLogLimit)
		if err != nil {
			return nil, fmt.Errorf("list audit logs for %s: %w", lic.ID, err)
		}
		out = append(out, domain.LicenseWithLogs{License: lic, RecentLogs: logs})
	}
	return out, nil
}

// PatchLicense applies a whitelisted partial update.
func (s *licenseService) PatchLicense(ctx context.Context, id string, patch domain.LicensePatch) (*domain.License, error) {
	if patch.PackageType != nil && !domain.ValidPackageType(*patch.PackageType) {
		return nil, fmt.Errorf("invalid package type %q", *patch.PackageType)
	}

	lic, err := s.repo.UpdateLicense(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, lic.Key)
	return lic, nil
}

// UnbindLicense clears the domain binding so the holder can move the product
// to a new domain. The piracy counter survives unbinding on purpose: it is a
// lifetime tally, not a per-binding one.
func (s *licenseService) UnbindLicense(ctx context.Context, id string) (*domain.License, error) {
	before, err := s.repo.GetLicenseByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	if before == nil {
		return nil, domain.ErrNotFound
	}

	prev := "none"
	if before.Bound() {
		prev = *before.BoundDomain
	}

	lic, err := s.repo.UnbindDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, lic.Key)

	s.audit(ctx, id, domain.ActionUnbind, domain.ClientRequest{},
		fmt.Sprintf("Domain unbound by admin. Previous: %s", prev), false, time.Now().UTC())
	return lic, nil
}

// PiracyReport assembles the misuse overview for the admin dashboard.
func (s *licenseService) PiracyReport(ctx context.Context) (*domain.PiracyReport, error) {
	logs, err := s.repo.ListPiracyLogs(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("list piracy logs: %w", err)
	}
	suspicious, err := s.repo.ListSuspiciousLicenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suspicious licenses: %w", err)
	}
	return &domain.PiracyReport{Logs: logs, Suspicious: suspicious}, nil
}

func (s *licenseService) Stats(ctx context.Context) (*domain.LicenseStats, error) {
	return s.repo.Stats(ctx)
}

// HealthCheck pings every backing dependency and reports per-component state.
func (s *licenseService) HealthCheck(ctx context.Context) map[string]error {
	checks := map[string]error{
		"database": s.repo.Ping(ctx),
	}
	if s.cache != nil {
		checks["cache"] = s.cache.Ping(ctx)
	}
	return checks
}
