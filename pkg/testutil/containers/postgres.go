//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema is the full database layout, applied once per container.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
    id              UUID PRIMARY KEY,
    email           TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    role            TEXT NOT NULL,
    full_name       TEXT NOT NULL DEFAULT '',
    license_number  TEXT NOT NULL DEFAULT '',
    verified        BOOLEAN NOT NULL DEFAULT FALSE,
    failed_attempts INT NOT NULL DEFAULT 0,
    locked_until    TIMESTAMPTZ,
    last_login_at   TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    token_hash  TEXT PRIMARY KEY,
    identity_id UUID NOT NULL REFERENCES identities(id),
    expires_at  TIMESTAMPTZ NOT NULL,
    revoked_at  TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS connections (
    id               UUID PRIMARY KEY,
    patient_id       UUID NOT NULL,
    doctor_id        UUID,
    encrypted_code   TEXT NOT NULL,
    code_iv          TEXT NOT NULL,
    code_hash        TEXT NOT NULL UNIQUE,
    perm_mood        BOOLEAN NOT NULL DEFAULT FALSE,
    perm_journal     BOOLEAN NOT NULL DEFAULT FALSE,
    perm_voice       BOOLEAN NOT NULL DEFAULT FALSE,
    perm_medications BOOLEAN NOT NULL DEFAULT FALSE,
    perm_export      BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at       TIMESTAMPTZ NOT NULL,
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    access_count     INT NOT NULL DEFAULT 0,
    last_accessed_at TIMESTAMPTZ,
    revoked_at       TIMESTAMPTZ,
    revoke_reason    TEXT,
    created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS mood_entries (
    id           UUID PRIMARY KEY,
    patient_id   UUID NOT NULL,
    score        INT NOT NULL,
    energy_level INT NOT NULL DEFAULT 0,
    notes        TEXT NOT NULL DEFAULT '',
    recorded_at  TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
    id                UUID PRIMARY KEY,
    patient_id        UUID NOT NULL,
    encrypted_content TEXT NOT NULL,
    content_iv        TEXT NOT NULL,
    sentiment_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    sentiment         TEXT NOT NULL DEFAULT 'neutral',
    word_count        INT NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS voice_analyses (
    id                    UUID PRIMARY KEY,
    patient_id            UUID NOT NULL,
    vocal_health_score    DOUBLE PRECISION NOT NULL,
    flat_affect_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
    agitated_speech_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_seconds      DOUBLE PRECISION NOT NULL DEFAULT 0,
    recorded_at           TIMESTAMPTZ NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS medication_logs (
    id           UUID PRIMARY KEY,
    patient_id   UUID NOT NULL,
    name         TEXT NOT NULL,
    dosage       TEXT NOT NULL DEFAULT '',
    taken        BOOLEAN NOT NULL,
    scheduled_at TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
    id            UUID PRIMARY KEY,
    actor_id      UUID,
    action        TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    resource_id   TEXT NOT NULL DEFAULT '',
    ip_address    TEXT NOT NULL DEFAULT '',
    user_agent    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already applied.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DB        *sql.DB
	URL       string
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mindwell_test"),
		tcpostgres.WithUsername("mindwell"),
		tcpostgres.WithPassword("mindwell"),
		tcpostgres.BasicWaitStrategies(),
		tcpostgres.WithSQLDriver("postgres"),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DB: db, URL: url}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
