package storage

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"planner/internal/infra"
)

// Open builds the blob store selected by cfg.StorageDriver. The returned
// handler serves local files and is nil for remote drivers.
func Open(ctx context.Context, cfg *infra.Config) (BlobStore, http.Handler, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		store, err := NewS3Store(ctx, S3Options{
			Bucket:    cfg.StorageBucket,
			Endpoint:  cfg.StorageEndpoint,
			PublicURL: cfg.StoragePublicURL,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			SignedTTL: cfg.StorageSignedTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case infra.StorageDriverFilesystem:
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		store, err := NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Handler(), nil
	default:
		return nil, nil, fmt.Errorf("storage: unsupported driver %q", cfg.StorageDriver)
	}
}
