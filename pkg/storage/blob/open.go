// Package blob picks the configured storage backend.
package blob

import (
	"context"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
	"github.com/sandgallery/sandgallery-backend/pkg/storage/gcs"
	"github.com/sandgallery/sandgallery-backend/pkg/storage/s3"
)

func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	if cfg.Storage.UsesS3() {
		client, err := s3.NewClient(ctx, cfg.S3, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return nil, err
	}
	return client, nil
}
