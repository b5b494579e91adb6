// Package blob stores raw file bytes under opaque, generated keys. Keys are
// never derived from user-supplied names; the metadata store holds the key
// and the blob store holds the bytes.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Store is a write-once, read-many byte store. Writing an existing key
// overwrites it, which is what makes derivative regeneration idempotent.
type Store interface {
	// Save writes data under key.
	Save(ctx context.Context, key string, data []byte) error

	// Open returns a reader over the blob at key, or common.ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob at key. Deleting an absent key is not an
	// error; Delete exists for orphan cleanup, not for user-facing removal.
	Delete(ctx context.Context, key string) error
}

// NewKey generates a fresh opaque storage key.
func NewKey() string {
	return uuid.New().String()
}

// DerivativeWidths is the fixed set of generated derivative widths. Every
// image gets exactly these variants and no others.
var DerivativeWidths = []int{500, 250, 100}

// ValidDerivativeWidth reports whether width is one of DerivativeWidths.
func ValidDerivativeWidth(width int) bool {
	for _, w := range DerivativeWidths {
		if width == w {
			return true
		}
	}
	return false
}

// DerivativeKey addresses the resized variant of the blob at key for the
// given target width. Existence of that blob is the only record a
// derivative has.
func DerivativeKey(key string, width int) string {
	return fmt.Sprintf("%s_%d", key, width)
}
