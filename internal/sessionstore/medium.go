package sessionstore

import "context"

// Medium is a persistent surface holding exactly one opaque blob per
// profile. Writes replace the whole value; partial writes are never
// observable.
type Medium interface {
	Write(ctx context.Context, blob []byte) error
	// Read returns (nil, false, nil) when nothing is stored.
	Read(ctx context.Context) ([]byte, bool, error)
	// Clear is idempotent.
	Clear(ctx context.Context) error
}
