package sessions

import (
	"context"
	"time"

	"filevault/internal/server/models"
)

// Repository is the persistence surface backing the session oracle.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// GetByToken returns the session for token regardless of expiry; expiry
	// is the caller's call so that resolution and sweeping can differ.
	GetByToken(ctx context.Context, token string) (*models.Session, error)

	// Delete removes the session for token. Deleting an unknown token is not
	// an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all sessions past their lifetime at now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
