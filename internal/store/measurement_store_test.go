package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/icewatch/internal/db"
	"github.com/vbonduro/icewatch/internal/domain"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func strPtr(s string) *string { return &s }

func TestMeasurementStoreCreate(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))
	ctx := context.Background()

	m, err := store.Create(ctx, domain.NewMeasurement{Lat: 53.757, Lng: 21.735, Thickness: 12})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.InDelta(t, 53.757, m.Lat, 1e-9)
	assert.InDelta(t, 21.735, m.Lng, 1e-9)
	assert.Equal(t, 12, m.Thickness)
	assert.Nil(t, m.ImageURL)
	assert.WithinDuration(t, time.Now().UTC(), m.CreatedAt, time.Minute)
}

func TestMeasurementStoreCreateWithImage(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))
	ctx := context.Background()

	m, err := store.Create(ctx, domain.NewMeasurement{
		Lat: 53.7, Lng: 21.7, Thickness: 20, ImageURL: strPtr("/photos/photos/1700000000000.jpg"),
	})
	require.NoError(t, err)
	require.NotNil(t, m.ImageURL)
	assert.Equal(t, "/photos/photos/1700000000000.jpg", *m.ImageURL)
}

func TestMeasurementStoreGetByID_NotFound(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))

	m, err := store.GetByID(context.Background(), 99999)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMeasurementStoreList(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))
	ctx := context.Background()

	first, err := store.Create(ctx, domain.NewMeasurement{Lat: 1, Lng: 1, Thickness: 5})
	require.NoError(t, err)
	second, err := store.Create(ctx, domain.NewMeasurement{Lat: 2, Lng: 2, Thickness: 25})
	require.NoError(t, err)

	ms, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, first.ID, ms[0].ID)
	assert.Equal(t, second.ID, ms[1].ID)
}

func TestMeasurementStoreDelete(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))
	ctx := context.Background()

	m, err := store.Create(ctx, domain.NewMeasurement{Lat: 1, Lng: 1, Thickness: 5})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, m.ID))

	retrieved, err := store.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestMeasurementStoreDelete_NotFound(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))

	err := store.Delete(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMeasurementStorePing(t *testing.T) {
	store := NewMeasurementStore(openTestDB(t))
	assert.NoError(t, store.Ping(context.Background()))
}
