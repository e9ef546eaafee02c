package gcs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vbonduro/icewatch/internal/photostore"
	"google.golang.org/api/option"
)

const testBucket = "ice-photos"

func newFakeGCSStore(t *testing.T) *GCSPhotoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "fsouza/fake-gcs-server:1.50.2",
			ExposedPorts: []string{"4443/tcp"},
			Cmd:          []string{"-scheme", "http", "-port", "4443"},
			WaitingFor:   wait.ForHTTP("/storage/v1/b").WithPort("4443/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.Endpoint(ctx, "http")
	require.NoError(t, err)

	store, err := NewGCSPhotoStore(ctx, testBucket, "",
		option.WithEndpoint(endpoint+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.client.Bucket(testBucket).Create(ctx, "icewatch-test", nil))
	return store
}

func TestIntegration_GCSPhotoStoreSaveGetDelete(t *testing.T) {
	store := newFakeGCSStore(t)
	ctx := context.Background()
	imageData := []byte("\xff\xd8\xff\xe0 ice photo")

	key, err := store.Save(ctx, "1700000000000.jpg", "image/jpeg", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000.jpg", key)

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, imageData, data)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestIntegration_GCSPhotoStoreSaveDoesNotOverwrite(t *testing.T) {
	store := newFakeGCSStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "1700000000000.jpg", "image/jpeg", bytes.NewReader([]byte("first")))
	require.NoError(t, err)

	_, err = store.Save(ctx, "1700000000000.jpg", "image/jpeg", bytes.NewReader([]byte("second")))
	require.Error(t, err)

	reader, _, err := store.Get(ctx, "1700000000000.jpg")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestIntegration_GCSPhotoStoreUnknownKey(t *testing.T) {
	store := newFakeGCSStore(t)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "missing.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)

	err = store.Delete(ctx, "missing.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}
