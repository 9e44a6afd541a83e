package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a remote object does not exist. The remote
// orchestrator relies on this to treat a missing status object as "still
// processing" rather than a failure.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the object storage collaborator: hierarchical paths in,
// bytes out. Implementations must map their own missing-object condition to
// ErrNotFound.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath string) ([]byte, error)
}
