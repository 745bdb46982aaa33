// Package blob stores uploaded and derived media files. Refs returned by Put
// are opaque to callers; URI exposes the form the recognition service reads.
package blob

import (
	"context"
	"errors"
)

// ErrNoObject is returned when a ref does not resolve to a stored object.
var ErrNoObject = errors.New("blob: no object")

// Store is the blob storage collaborator used by the pipeline.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	URI(ref string) string
	Delete(ctx context.Context, ref string) error
}
