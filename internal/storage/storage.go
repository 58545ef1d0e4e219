// README: Photo blob store interface and driver selection (fs | s3).
package storage

import (
	"context"
	"fmt"
	"io"

	"kilap/internal/config"
)

// Store persists stage photos by relative path. Writes happen before the
// database transaction that records them, so Put must be atomic per path.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFS(cfg.Root)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
