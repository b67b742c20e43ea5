package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poyrazK/keygate/internal/core/domain"
	"github.com/poyrazK/keygate/internal/infrastructure/metrics"
)

const uniqueViolation = "23505"

const licenseColumns = `id, key, package_type, holder_name, office_name, holder_email, holder_phone,
	address, notes, is_active, bound_domain, server_hash, activated_at, expires_at, last_verified,
	piracy_attempts, last_piracy_at, created_at`

// PostgresRepository implements ports.LicenseRepository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*domain.License, error) {
	var l domain.License
	err := row.Scan(&l.ID, &l.Key, &l.PackageType, &l.HolderName, &l.OfficeName, &l.HolderEmail,
		&l.HolderPhone, &l.Address, &l.Notes, &l.IsActive, &l.BoundDomain, &l.ServerHash,
		&l.ActivatedAt, &l.ExpiresAt, &l.LastVerified, &l.PiracyAttempts, &l.LastPiracyAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PostgresRepository) CreateLicense(ctx context.Context, lic *domain.License) error {
	query := `INSERT INTO license_keys (id, key, package_type, holder_name, office_name, holder_email,
	          holder_phone, address, notes, is_active, bound_domain, server_hash, activated_at,
	          expires_at, last_verified, piracy_attempts, last_piracy_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.ExecContext(ctx, query, lic.ID, lic.Key, lic.PackageType, lic.HolderName,
		lic.OfficeName, lic.HolderEmail, lic.HolderPhone, lic.Address, lic.Notes, lic.IsActive,
		lic.BoundDomain, lic.ServerHash, lic.ActivatedAt, lic.ExpiresAt, lic.LastVerified,
		lic.PiracyAttempts, lic.LastPiracyAt, lic.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateKey
	}
	return err
}

func (r *PostgresRepository) GetLicenseByKey(ctx context.Context, key string) (*domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM license_keys WHERE key = $1`
	lic, err := scanLicense(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lic, err
}

func (r *PostgresRepository) GetLicenseByID(ctx context.Context, id string) (*domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM license_keys WHERE id = $1`
	lic, err := scanLicense(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lic, err
}

func (r *PostgresRepository) ListLicenses(ctx context.Context) ([]domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM license_keys ORDER BY created_at DESC`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var licenses []domain.License
	for rows.Next() {
		lic, errScan := scanLicense(rows)
		if errScan != nil {
			return nil, errScan
		}
		licenses = append(licenses, *lic)
	}
	return licenses, rows.Err()
}

// UpdateLicense applies a partial patch of whitelisted administrative fields.
func (r *PostgresRepository) UpdateLicense(ctx context.Context, id string, patch domain.LicensePatch) (*domain.License, error) {
	sets := []string{}
	args := []any{id}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.PackageType != nil {
		add("package_type", *patch.PackageType)
	}
	if patch.HolderName != nil {
		add("holder_name", *patch.HolderName)
	}
	if patch.OfficeName != nil {
		add("office_name", *patch.OfficeName)
	}
	if patch.HolderEmail != nil {
		add("holder_email", *patch.HolderEmail)
	}
	if patch.HolderPhone != nil {
		add("holder_phone", *patch.HolderPhone)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.ClearExpiresAt {
		sets = append(sets, "expires_at = NULL")
	} else if patch.ExpiresAt != nil {
		add("expires_at", *patch.ExpiresAt)
	}

	if len(sets) == 0 {
		lic, err := r.GetLicenseByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if lic == nil {
			return nil, domain.ErrNotFound
		}
		return lic, nil
	}

	query := `UPDATE license_keys SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + licenseColumns
	lic, err := scanLicense(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return lic, err
}

// BindDomain is the compare-and-set at the heart of activation. The WHERE
// guard only matches an unbound license or one already bound to the same
// domain, so of two racing activations from different domains exactly one can
// see a row. COALESCE keeps the first activation timestamp on re-activation.
func (r *PostgresRepository) BindDomain(ctx context.Context, id, boundDomain, serverHash string, now time.Time) (*domain.License, error) {
	query := `UPDATE license_keys
	          SET bound_domain = $2, server_hash = NULLIF($3, ''),
	              activated_at = COALESCE(activated_at, $4), last_verified = $4
	          WHERE id = $1 AND (bound_domain IS NULL OR bound_domain = $2)
	          RETURNING ` + licenseColumns
	lic, err := scanLicense(r.db.QueryRowContext(ctx, query, id, boundDomain, serverHash, now))
	if errors.Is(err, sql.ErrNoRows) {
		// Either the id vanished or another domain holds the binding.
		var exists bool
		if errCheck := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM license_keys WHERE id = $1)`, id).Scan(&exists); errCheck != nil {
			return nil, errCheck
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrDomainConflict
	}
	return lic, err
}

func (r *PostgresRepository) UnbindDomain(ctx context.Context, id string) (*domain.License, error) {
	query := `UPDATE license_keys
	          SET bound_domain = NULL, server_hash = NULL, activated_at = NULL
	          WHERE id = $1 RETURNING ` + licenseColumns
	lic, err := scanLicense(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return lic, err
}

func (r *PostgresRepository) TouchVerified(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE license_keys SET last_verified = $2 WHERE id = $1`, id, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordPiracyAttempt bumps the counter inside the UPDATE itself so two
// concurrent mismatches can never lose an increment.
func (r *PostgresRepository) RecordPiracyAttempt(ctx context.Context, id string, now time.Time) (int, error) {
	query := `UPDATE license_keys
	          SET piracy_attempts = piracy_attempts + 1, last_piracy_at = $2
	          WHERE id = $1 RETURNING piracy_attempts`
	var count int
	err := r.db.QueryRowContext(ctx, query, id, now).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return count, err
}

func (r *PostgresRepository) SaveAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	query := `INSERT INTO license_logs (id, license_id, action, domain, server_hash, ip, user_agent, details, is_piracy, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.LicenseID, entry.Action, entry.Domain,
		entry.ServerHash, entry.IP, entry.UserAgent, entry.Details, entry.IsPiracy, entry.CreatedAt)
	return err
}

func (r *PostgresRepository) ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, license_id, action, domain, server_hash, ip, user_agent, details, is_piracy, created_at
	          FROM license_logs WHERE license_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, errQuery := r.db.QueryContext(ctx, query, licenseID, limit)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if errScan := rows.Scan(&e.ID, &e.LicenseID, &e.Action, &e.Domain, &e.ServerHash, &e.IP,
			&e.UserAgent, &e.Details, &e.IsPiracy, &e.CreatedAt); errScan != nil {
			return nil, errScan
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) ListPiracyLogs(ctx context.Context, limit int) ([]domain.PiracyLog, error) {
	query := `SELECT l.id, l.license_id, l.action, l.domain, l.server_hash, l.ip, l.user_agent,
	                 l.details, l.is_piracy, l.created_at, k.key, k.holder_name, k.office_name, k.holder_phone
	          FROM license_logs l
	          JOIN license_keys k ON k.id = l.license_id
	          WHERE l.is_piracy ORDER BY l.created_at DESC LIMIT $1`
	rows, errQuery := r.db.QueryContext(ctx, query, limit)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var logs []domain.PiracyLog
	for rows.Next() {
		var p domain.PiracyLog
		if errScan := rows.Scan(&p.ID, &p.LicenseID, &p.Action, &p.Domain, &p.ServerHash, &p.IP,
			&p.UserAgent, &p.Details, &p.IsPiracy, &p.CreatedAt,
			&p.LicenseKey, &p.HolderName, &p.OfficeName, &p.HolderPhone); errScan != nil {
			return nil, errScan
		}
		logs = append(logs, p)
	}
	return logs, rows.Err()
}

func (r *PostgresRepository) ListSuspiciousLicenses(ctx context.Context) ([]domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM license_keys WHERE piracy_attempts > 0 ORDER BY piracy_attempts DESC`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var licenses []domain.License
	for rows.Next() {
		lic, errScan := scanLicense(rows)
		if errScan != nil {
			return nil, errScan
		}
		licenses = append(licenses, *lic)
	}
	return licenses, rows.Err()
}

func (r *PostgresRepository) Stats(ctx context.Context) (*domain.LicenseStats, error) {
	stats := &domain.LicenseStats{ByPackage: make(map[domain.PackageType]int)}

	countQuery := `SELECT COUNT(*),
	                      COUNT(*) FILTER (WHERE is_active),
	                      COUNT(*) FILTER (WHERE bound_domain IS NOT NULL)
	               FROM license_keys`
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&stats.Total, &stats.Active, &stats.Bound); err != nil {
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM license_logs WHERE is_piracy`).Scan(&stats.PiracyLogTotal); err != nil {
		return nil, err
	}

	rows, errQuery := r.db.QueryContext(ctx,
		`SELECT package_type, COUNT(*) FROM license_keys GROUP BY package_type`)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)
	for rows.Next() {
		var pt domain.PackageType
		var n int
		if errScan := rows.Scan(&pt, &n); errScan != nil {
			return nil, errScan
		}
		stats.ByPackage[pt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hotRows, errHot := r.db.QueryContext(ctx,
		`SELECT key, holder_name, office_name, piracy_attempts, last_piracy_at
		 FROM license_keys WHERE piracy_attempts > 0 ORDER BY piracy_attempts DESC LIMIT 5`)
	if errHot != nil {
		return nil, errHot
	}
	defer closeRows(hotRows)
	for hotRows.Next() {
		var h domain.PiracyHotspot
		if errScan := hotRows.Scan(&h.Key, &h.HolderName, &h.OfficeName, &h.PiracyAttempts, &h.LastPiracyAt); errScan != nil {
			return nil, errScan
		}
		stats.Hotspots = append(stats.Hotspots, h)
	}
	return stats, hotRows.Err()
}

func (r *PostgresRepository) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT id, name, key_hash, key_prefix, role, active, created_at, expires_at
	          FROM api_keys WHERE key_hash = $1`
	var k domain.APIKey
	errRow := r.db.QueryRowContext(ctx, query, keyHash).Scan(&k.ID, &k.Name, &k.KeyHash,
		&k.KeyPrefix, &k.Role, &k.Active, &k.CreatedAt, &k.ExpiresAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	return &k, nil
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, name, key_hash, key_prefix, role, active, created_at, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.Name, key.KeyHash, key.KeyPrefix,
		key.Role, key.Active, key.CreatedAt, key.ExpiresAt)
	return err
}

func (r *PostgresRepository) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	query := `SELECT id, name, key_hash, key_prefix, role, active, created_at, expires_at
	          FROM api_keys ORDER BY created_at DESC`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var keys []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		if errScan := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Role, &k.Active,
			&k.CreatedAt, &k.ExpiresAt); errScan != nil {
			return nil, errScan
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *PostgresRepository) DeleteAPIKey(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	metrics.DBConnectionsActive.Set(float64(r.db.Stats().OpenConnections))
	return r.db.PingContext(ctx)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}
