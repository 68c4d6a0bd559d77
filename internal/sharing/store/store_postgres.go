package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mindwell/internal/sharing"
	"mindwell/pkg/platform/sentinel"
)

// PostgresConnectionStore persists connections in PostgreSQL.
type PostgresConnectionStore struct {
	db *sql.DB
}

func NewPostgresConnectionStore(db *sql.DB) *PostgresConnectionStore {
	return &PostgresConnectionStore{db: db}
}

const connectionColumns = `id, patient_id, doctor_id, encrypted_code, code_iv, code_hash,
	perm_mood, perm_journal, perm_voice, perm_medications, perm_export,
	expires_at, is_active, access_count, last_accessed_at, revoked_at, revoke_reason, created_at`

func (s *PostgresConnectionStore) Create(ctx context.Context, conn *sharing.Connection) error {
	query := `
		INSERT INTO connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		conn.ID, conn.PatientID, conn.DoctorID, conn.EncryptedCode, conn.CodeIV, conn.CodeHash,
		conn.Permissions.Mood, conn.Permissions.JournalSummaries, conn.Permissions.VoiceSummary,
		conn.Permissions.Medications, conn.Permissions.RawExport,
		conn.ExpiresAt, conn.IsActive, conn.AccessCount, conn.LastAccessed,
		conn.RevokedAt, conn.RevokeReason, conn.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (s *PostgresConnectionStore) FindByID(ctx context.Context, id uuid.UUID) (*sharing.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	return scanConnection(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresConnectionStore) FindByCodeHash(ctx context.Context, codeHash string) (*sharing.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE code_hash = $1`
	return scanConnection(s.db.QueryRowContext(ctx, query, codeHash))
}

func (s *PostgresConnectionStore) ListActiveByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]sharing.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE patient_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, patientID, now)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []sharing.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

func (s *PostgresConnectionStore) Revoke(ctx context.Context, id, patientID uuid.UUID, now time.Time, reason string) error {
	query := `
		UPDATE connections
		SET is_active = FALSE, revoked_at = $3, revoke_reason = $4
		WHERE id = $1 AND patient_id = $2 AND is_active = TRUE
	`
	result, err := s.db.ExecContext(ctx, query, id, patientID, now, reason)
	if err != nil {
		return fmt.Errorf("revoke connection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke connection rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: either already revoked (idempotent success) or not
	// owned by this patient (not found).
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM connections WHERE id = $1 AND patient_id = $2)`,
		id, patientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check connection ownership: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

// BindDoctor is the single conditional write at the heart of the claim path:
// the doctor_id guard, expiry check, and counter increment all happen inside
// one UPDATE, so two concurrent claims cannot both win.
func (s *PostgresConnectionStore) BindDoctor(ctx context.Context, id, doctorID uuid.UUID, now time.Time) (*sharing.Connection, error) {
	query := `
		UPDATE connections
		SET doctor_id = $2, access_count = access_count + 1, last_accessed_at = $3
		WHERE id = $1
		  AND (doctor_id IS NULL OR doctor_id = $2)
		  AND is_active = TRUE
		  AND expires_at > $3
		RETURNING ` + connectionColumns + `
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, id, doctorID, now))
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	// The guard rejected the write; read the row to report why.
	current, ferr := s.FindByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	switch {
	case !current.IsActive:
		return nil, sentinel.ErrRevoked
	case !now.Before(current.ExpiresAt):
		return nil, sentinel.ErrExpired
	case current.DoctorID != nil && *current.DoctorID != doctorID:
		return nil, sentinel.ErrAlreadyClaimed
	default:
		return nil, sentinel.ErrNotFound
	}
}

type connectionRow interface {
	Scan(dest ...any) error
}

func scanConnection(row connectionRow) (*sharing.Connection, error) {
	var conn sharing.Connection
	var doctorID uuid.NullUUID
	var lastAccessed, revokedAt sql.NullTime
	var revokeReason sql.NullString
	err := row.Scan(
		&conn.ID, &conn.PatientID, &doctorID, &conn.EncryptedCode, &conn.CodeIV, &conn.CodeHash,
		&conn.Permissions.Mood, &conn.Permissions.JournalSummaries, &conn.Permissions.VoiceSummary,
		&conn.Permissions.Medications, &conn.Permissions.RawExport,
		&conn.ExpiresAt, &conn.IsActive, &conn.AccessCount, &lastAccessed,
		&revokedAt, &revokeReason, &conn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	if doctorID.Valid {
		d := doctorID.UUID
		conn.DoctorID = &d
	}
	if lastAccessed.Valid {
		conn.LastAccessed = &lastAccessed.Time
	}
	if revokedAt.Valid {
		conn.RevokedAt = &revokedAt.Time
	}
	if revokeReason.Valid {
		conn.RevokeReason = revokeReason.String
	}
	return &conn, nil
}
