package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	platformredis "mindwell/internal/platform/redis"
)

const doctorNameTTL = 10 * time.Minute

// DoctorNameCache fronts the identity store for display names in listings.
// Connection state itself is never cached; only the cosmetic name lookup is.
type DoctorNameCache struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewDoctorNameCache(client *platformredis.Client, logger *slog.Logger) *DoctorNameCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DoctorNameCache{client: client, logger: logger}
}

func (c *DoctorNameCache) Get(ctx context.Context, doctorID uuid.UUID) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	name, err := c.client.Get(ctx, c.key(doctorID)).Result()
	if err != nil {
		return "", false
	}
	return name, true
}

func (c *DoctorNameCache) Set(ctx context.Context, doctorID uuid.UUID, name string) {
	if c == nil || c.client == nil || name == "" {
		return
	}
	if err := c.client.Set(ctx, c.key(doctorID), name, doctorNameTTL).Err(); err != nil {
		c.logger.Warn("failed to cache doctor name", "doctor_id", doctorID, "error", err)
	}
}

func (c *DoctorNameCache) key(doctorID uuid.UUID) string {
	return "doctor_name:" + doctorID.String()
}
