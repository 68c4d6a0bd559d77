package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists audit entries in PostgreSQL. Pure I/O; the recorder
// owns buffering and drop policy.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (id, actor_id, action, resource_type, resource_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var actor any
	if entry.ActorID != nil {
		actor = *entry.ActorID
	}
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, actor, string(entry.Action), entry.ResourceType, entry.ResourceID,
		entry.IP, entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID uuid.UUID) ([]Entry, error) {
	query := `
		SELECT id, actor_id, action, resource_type, resource_id, ip_address, user_agent, created_at
		FROM audit_entries
		WHERE actor_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actor uuid.NullUUID
		var action string
		if err := rows.Scan(&e.ID, &actor, &action, &e.ResourceType, &e.ResourceID, &e.IP, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if actor.Valid {
			id := actor.UUID
			e.ActorID = &id
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
