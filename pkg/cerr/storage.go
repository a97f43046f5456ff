package cerr

import (
	"errors"
	"fmt"

	"github.com/vocautobot/vockanban/pkg/storage"
)

// WrapStorageError maps a storage failure on a resource (e.g. "voc 42") to a
// caller-facing error. A missing object is NotFound; everything else is
// Internal, with the storage operation kept for logs.
func WrapStorageError(resource string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, resource+" not found", err)
	}
	op := storage.Op("access")
	var serr *storage.Error
	if errors.As(err, &serr) {
		op = serr.Op
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, resource, err))
}
