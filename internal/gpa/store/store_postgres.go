package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/sentinel"
	"gpavault/pkg/requestcontext"
)

// DefaultPostgresTable is the table used when none is configured.
const DefaultPostgresTable = "gpa_records"

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore persists records in PostgreSQL with the semester mapping in a
// jsonb column. Merge uses the jsonb concatenation operator inside a single
// INSERT ... ON CONFLICT statement.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgres constructs a store over the given table.
func NewPostgres(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			registration_number TEXT PRIMARY KEY,
			gpas JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create gpa table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	query := `SELECT registration_number, gpas, created_at, updated_at FROM ` + s.table + ` WHERE registration_number = $1`
	var (
		record    models.Record
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, registrationNumber).Scan(&record.RegistrationNumber, &raw, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find gpa record: %w", err)
	}
	if err := json.Unmarshal(raw, &record.Gpas); err != nil {
		return nil, fmt.Errorf("decode gpas: %w", err)
	}
	if record.Gpas == nil {
		record.Gpas = map[string]float64{}
	}
	record.CreatedAt = createdAt.UTC()
	record.UpdatedAt = updatedAt.UTC()
	return &record, nil
}

func (s *PostgresStore) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.upsert(ctx, registrationNumber, gpas, s.table+`.gpas || EXCLUDED.gpas`)
}

func (s *PostgresStore) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.upsert(ctx, registrationNumber, gpas, `EXCLUDED.gpas`)
}

func (s *PostgresStore) upsert(ctx context.Context, registrationNumber string, gpas map[string]float64, gpasExpr string) error {
	if gpas == nil {
		gpas = map[string]float64{}
	}
	payload, err := json.Marshal(gpas)
	if err != nil {
		return fmt.Errorf("encode gpas: %w", err)
	}
	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO ` + s.table + ` (registration_number, gpas, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $3)
		ON CONFLICT (registration_number) DO UPDATE SET
			gpas = ` + gpasExpr + `,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, registrationNumber, string(payload), now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("upsert gpa record: %w", errors.Join(sentinel.ErrConflict, err))
		}
		return fmt.Errorf("upsert gpa record: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}
