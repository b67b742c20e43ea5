package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poyrazK/keygate/internal/core/domain"
)

var licenseCols = []string{
	"id", "key", "package_type", "holder_name", "office_name", "holder_email", "holder_phone",
	"address", "notes", "is_active", "bound_domain", "server_hash", "activated_at", "expires_at",
	"last_verified", "piracy_attempts", "last_piracy_at", "created_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func boundRow(id, key, boundDomain string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(licenseCols).AddRow(
		id, key, "complete", "Jane Example", "Example Office", "", "", "", "", true,
		boundDomain, "sh-1", now, nil, now, 0, nil, now.Add(-time.Hour))
}

func TestGetLicenseByKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM license_keys WHERE key = $1`)).
		WithArgs("NTRS-AB12-CD34-EF56-GH78").
		WillReturnRows(boundRow("id-1", "NTRS-AB12-CD34-EF56-GH78", "a.com", now))

	lic, err := repo.GetLicenseByKey(context.Background(), "NTRS-AB12-CD34-EF56-GH78")
	if err != nil {
		t.Fatalf("GetLicenseByKey failed: %v", err)
	}
	if lic.BoundDomain == nil || *lic.BoundDomain != "a.com" {
		t.Errorf("Expected bound domain a.com, got %v", lic.BoundDomain)
	}
	if lic.ExpiresAt != nil || lic.LastPiracyAt != nil {
		t.Errorf("NULL timestamps must scan to nil pointers")
	}
}

func TestGetLicenseByKeyMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM license_keys WHERE key = $1`)).
		WithArgs("NTRS-0000-0000-0000-0000").
		WillReturnRows(sqlmock.NewRows(licenseCols))

	lic, err := repo.GetLicenseByKey(context.Background(), "NTRS-0000-0000-0000-0000")
	if err != nil {
		t.Fatalf("Missing key must not be an error, got %v", err)
	}
	if lic != nil {
		t.Errorf("Missing key must return nil, got %+v", lic)
	}
}

func TestCreateLicenseDuplicateKey(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO license_keys`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateLicense(context.Background(), &domain.License{
		ID: "id-1", Key: "NTRS-AB12-CD34-EF56-GH78", PackageType: domain.PackageComplete,
	})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey on unique violation, got %v", err)
	}
}

func TestBindDomainWins(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`bound_domain IS NULL OR bound_domain = $2`)).
		WithArgs("id-1", "a.com", "sh-1", now).
		WillReturnRows(boundRow("id-1", "NTRS-AB12-CD34-EF56-GH78", "a.com", now))

	lic, err := repo.BindDomain(context.Background(), "id-1", "a.com", "sh-1", now)
	if err != nil {
		t.Fatalf("BindDomain failed: %v", err)
	}
	if lic.BoundDomain == nil || *lic.BoundDomain != "a.com" {
		t.Errorf("Expected binding returned, got %v", lic.BoundDomain)
	}
}

func TestBindDomainConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	// Guarded UPDATE matches no row; the follow-up existence check decides
	// between conflict and not-found.
	mock.ExpectQuery(regexp.QuoteMeta(`bound_domain IS NULL OR bound_domain = $2`)).
		WithArgs("id-1", "b.com", "", now).
		WillReturnRows(sqlmock.NewRows(licenseCols))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.BindDomain(context.Background(), "id-1", "b.com", "", now)
	if !errors.Is(err, domain.ErrDomainConflict) {
		t.Fatalf("Expected ErrDomainConflict, got %v", err)
	}
}

func TestBindDomainMissingLicense(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`bound_domain IS NULL OR bound_domain = $2`)).
		WithArgs("id-x", "a.com", "", now).
		WillReturnRows(sqlmock.NewRows(licenseCols))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("id-x").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.BindDomain(context.Background(), "id-x", "a.com", "", now)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecordPiracyAttempt(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`piracy_attempts = piracy_attempts + 1`)).
		WithArgs("id-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"piracy_attempts"}).AddRow(3))

	count, err := repo.RecordPiracyAttempt(context.Background(), "id-1", now)
	if err != nil {
		t.Fatalf("RecordPiracyAttempt failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected counter 3, got %d", count)
	}
}

func TestRecordPiracyAttemptMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`piracy_attempts = piracy_attempts + 1`)).
		WithArgs("id-x", now).
		WillReturnRows(sqlmock.NewRows([]string{"piracy_attempts"}))

	_, err := repo.RecordPiracyAttempt(context.Background(), "id-x", now)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestTouchVerifiedMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE license_keys SET last_verified = $2 WHERE id = $1`)).
		WithArgs("id-x", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.TouchVerified(context.Background(), "id-x", now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLicenseBuildsPartialSet(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE license_keys SET is_active = $2, expires_at = NULL WHERE id = $1`)).
		WithArgs("id-1", false).
		WillReturnRows(boundRow("id-1", "NTRS-AB12-CD34-EF56-GH78", "a.com", now))

	off := false
	_, err := repo.UpdateLicense(context.Background(), "id-1", domain.LicensePatch{
		IsActive:       &off,
		ClearExpiresAt: true,
	})
	if err != nil {
		t.Fatalf("UpdateLicense failed: %v", err)
	}
}

func TestUpdateLicenseEmptyPatchReadsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM license_keys WHERE id = $1`)).
		WithArgs("id-1").
		WillReturnRows(boundRow("id-1", "NTRS-AB12-CD34-EF56-GH78", "a.com", now))

	lic, err := repo.UpdateLicense(context.Background(), "id-1", domain.LicensePatch{})
	if err != nil {
		t.Fatalf("UpdateLicense failed: %v", err)
	}
	if lic.ID != "id-1" {
		t.Errorf("Expected the current row back, got %+v", lic)
	}
}

func TestSaveAuditLog(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	entry := &domain.AuditLogEntry{
		ID: "log-1", LicenseID: "id-1", Action: domain.ActionPiracyAttempt,
		Domain: "b.com", IP: "203.0.113.7", Details: "mismatch", IsPiracy: true, CreatedAt: now,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO license_logs`)).
		WithArgs("log-1", "id-1", domain.ActionPiracyAttempt, "b.com", "", "203.0.113.7", "", "mismatch", true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveAuditLog(context.Background(), entry); err != nil {
		t.Fatalf("SaveAuditLog failed: %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE is_active)`)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "bound"}).AddRow(10, 8, 6))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM license_logs WHERE is_piracy`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY package_type`)).
		WillReturnRows(sqlmock.NewRows([]string{"package_type", "count"}).
			AddRow("complete", 5).AddRow("no_ai", 5))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY piracy_attempts DESC LIMIT 5`)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "holder_name", "office_name", "piracy_attempts", "last_piracy_at"}).
			AddRow("NTRS-AB12-CD34-EF56-GH78", "Jane Example", "Example Office", 4, now))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 10 || stats.Active != 8 || stats.Bound != 6 || stats.PiracyLogTotal != 7 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.ByPackage[domain.PackageComplete] != 5 {
		t.Errorf("Unexpected package breakdown: %+v", stats.ByPackage)
	}
	if len(stats.Hotspots) != 1 || stats.Hotspots[0].PiracyAttempts != 4 {
		t.Errorf("Unexpected hotspots: %+v", stats.Hotspots)
	}
}

func TestListPiracyLogsJoinsLicense(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	cols := []string{"id", "license_id", "action", "domain", "server_hash", "ip", "user_agent",
		"details", "is_piracy", "created_at", "key", "holder_name", "office_name", "holder_phone"}
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN license_keys k ON k.id = l.license_id`)).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"log-1", "id-1", "piracy_attempt", "b.com", "", "203.0.113.7", "ua",
			"mismatch", true, now, "NTRS-AB12-CD34-EF56-GH78", "Jane Example", "Example Office", ""))

	logs, err := repo.ListPiracyLogs(context.Background(), 100)
	if err != nil {
		t.Fatalf("ListPiracyLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].LicenseKey != "NTRS-AB12-CD34-EF56-GH78" || logs[0].HolderName != "Jane Example" {
		t.Errorf("Unexpected logs: %+v", logs)
	}
}

func TestGetAPIKeyByHashMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM api_keys WHERE key_hash = $1`)).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "key_hash", "key_prefix", "role", "active", "created_at", "expires_at"}))

	key, err := repo.GetAPIKeyByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("Missing key must not be an error, got %v", err)
	}
	if key != nil {
		t.Errorf("Missing key must return nil, got %+v", key)
	}
}
