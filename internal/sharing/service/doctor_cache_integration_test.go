//go:build integration

package service_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "mindwell/internal/platform/redis"
	"mindwell/internal/sharing/service"
	"mindwell/pkg/testutil/containers"
)

func TestDoctorNameCacheRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	client, err := platformredis.New(ctx, rc.URL)
	require.NoError(t, err)
	defer client.Close()

	cache := service.NewDoctorNameCache(client, slog.Default())
	doctorID := uuid.New()

	_, ok := cache.Get(ctx, doctorID)
	assert.False(t, ok)

	cache.Set(ctx, doctorID, "Dr Example")
	name, ok := cache.Get(ctx, doctorID)
	require.True(t, ok)
	assert.Equal(t, "Dr Example", name)
}

func TestDoctorNameCacheDisabledWithoutClient(t *testing.T) {
	cache := service.NewDoctorNameCache(nil, slog.Default())
	ctx := context.Background()

	cache.Set(ctx, uuid.New(), "Dr Example")
	_, ok := cache.Get(ctx, uuid.New())
	assert.False(t, ok)
}
