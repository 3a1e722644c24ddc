package blob

import (
	"context"
	"fmt"

	"milkbank/internal/config"
	"milkbank/internal/infra/blob/fs"
	"milkbank/internal/infra/blob/memory"
	"milkbank/internal/infra/blob/s3"
)

// Open selects a Store from cfg. An empty driver means the filesystem.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 Store backed by an in-process fake bucket.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
