package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  config.S3Config
	}{
		{name: "missing endpoint", cfg: config.S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{name: "missing keys", cfg: config.S3Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{name: "missing bucket", cfg: config.S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(ctx, tc.cfg, nil)
			require.Error(t, err)
		})
	}

	client, err := NewClient(ctx, config.S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    " creations ",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "creations", client.Bucket())
	require.Equal(t, "us-east-1", client.region)
}

func TestUserMetadataDropsBlankKeys(t *testing.T) {
	require.Nil(t, userMetadata(nil))
	got := userMetadata(map[string]string{"firebaseStorageDownloadTokens": "tok", " ": "x"})
	require.Equal(t, map[string]string{"firebaseStorageDownloadTokens": "tok"}, got)
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	require.False(t, isNotFound(errors.New("dial tcp: refused")))
}

func TestPutRejectsEmptyPath(t *testing.T) {
	client := &Client{bucket: "b"}
	require.Error(t, client.Put(context.Background(), storageObject("")))
}

func storageObject(path string) storage.Object {
	return storage.Object{Path: path, Data: []byte("x")}
}
