package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// FileStore holds project file contents. Metadata lives in the
// database; the store only ever sees opaque keys.
type FileStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// FileKey namespaces object keys by tenant so a leaked key still names
// its owner.
func FileKey(companyID, projectID, fileID uuid.UUID) string {
	return fmt.Sprintf("company/%s/project/%s/%s", companyID, projectID, fileID)
}
