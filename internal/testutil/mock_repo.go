// Package testutil provides shared testify mocks for the license store and
// its collaborators.
package testutil

import (
	"context"
	"time"

	"github.com/poyrazK/keygate/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type MockRepo struct {
	mock.Mock
}

func licOrNil(v any) *domain.License {
	if v == nil {
		return nil
	}
	return v.(*domain.License)
}

func (m *MockRepo) CreateLicense(ctx context.Context, lic *domain.License) error {
	args := m.Called(lic)
	return args.Error(0)
}

func (m *MockRepo) GetLicenseByKey(ctx context.Context, key string) (*domain.License, error) {
	args := m.Called(key)
	return licOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepo) GetLicenseByID(ctx context.Context, id string) (*domain.License, error) {
	args := m.Called(id)
	return licOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepo) ListLicenses(ctx context.Context) ([]domain.License, error) {
	args := m.Called()
	return args.Get(0).([]domain.License), args.Error(1)
}

func (m *MockRepo) UpdateLicense(ctx context.Context, id string, patch domain.LicensePatch) (*domain.License, error) {
	args := m.Called(id, patch)
	return licOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepo) BindDomain(ctx context.Context, id, boundDomain, serverHash string, now time.Time) (*domain.License, error) {
	args := m.Called(id, boundDomain, serverHash, now)
	return licOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepo) UnbindDomain(ctx context.Context, id string) (*domain.License, error) {
	args := m.Called(id)
	return licOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepo) TouchVerified(ctx context.Context, id string, now time.Time) error {
	args := m.Called(id, now)
	return args.Error(0)
}

func (m *MockRepo) RecordPiracyAttempt(ctx context.Context, id string, now time.Time) (int, error) {
	args := m.Called(id, now)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) SaveAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockRepo) ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]domain.AuditLogEntry, error) {
	args := m.Called(licenseID, limit)
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

func (m *MockRepo) ListPiracyLogs(ctx context.Context, limit int) ([]domain.PiracyLog, error) {
	args := m.Called(limit)
	return args.Get(0).([]domain.PiracyLog), args.Error(1)
}

func (m *MockRepo) ListSuspiciousLicenses(ctx context.Context) ([]domain.License, error) {
	args := m.Called()
	return args.Get(0).([]domain.License), args.Error(1)
}

func (m *MockRepo) Stats(ctx context.Context) (*domain.LicenseStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LicenseStats), args.Error(1)
}

func (m *MockRepo) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	args := m.Called(keyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	args := m.Called()
	return args.Get(0).([]domain.APIKey), args.Error(1)
}

func (m *MockRepo) DeleteAPIKey(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert domain.PiracyAlert) error {
	args := m.Called(alert)
	return args.Error(0)
}
