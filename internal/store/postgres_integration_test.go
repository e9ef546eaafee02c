package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/vbonduro/icewatch/internal/db"
	"github.com/vbonduro/icewatch/internal/domain"
)

func TestIntegration_MeasurementStorePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("icewatch"),
		postgres.WithUsername("icewatch"),
		postgres.WithPassword("icewatch"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	d, err := db.Open(db.Postgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	store := NewMeasurementStore(d)

	created, err := store.Create(ctx, domain.NewMeasurement{Lat: 53.757, Lng: 21.735, Thickness: 18, ImageURL: strPtr("https://example.test/a.jpg")})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.SafetySafe, created.Safety())

	ms, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, created.ID, ms[0].ID)

	require.NoError(t, store.Delete(ctx, created.ID))
	assert.ErrorIs(t, store.Delete(ctx, created.ID), ErrNotFound)
}
