// Package sessions implements the session oracle: the capability that maps
// an opaque token to a user identity. The core consults it on every
// authenticated operation and never inspects tokens itself.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"filevault/internal/common"
	"filevault/internal/server/models"
	"filevault/internal/server/repositories/sessions"
)

// Resolver maps an opaque token to a user identity.
type Resolver interface {
	// Resolve returns the user owning token, or common.ErrUnauthorized when
	// the token is empty, unknown or expired.
	Resolve(ctx context.Context, token string) (string, error)
}

// Oracle is the store-backed session authority. Besides resolution it owns
// the session lifecycle: issuing tokens and revoking them.
type Oracle struct {
	repo sessions.Repository
}

func NewOracle(repo sessions.Repository) *Oracle {
	return &Oracle{repo: repo}
}

func (o *Oracle) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrUnauthorized
	}

	s, err := o.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", fmt.Errorf("session lookup: %w", err)
	}

	if s.Expired(time.Now()) {
		return "", common.ErrUnauthorized
	}

	return s.UserID, nil
}

// Issue creates a session for userID valid for ttl and returns its token.
// Tokens are opaque uuids; they carry no claims.
func (o *Oracle) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	s := &models.Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}

	if err := o.repo.Create(ctx, s); err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	return s.Token, nil
}

// Revoke invalidates token. Revoking an unknown token is not an error.
func (o *Oracle) Revoke(ctx context.Context, token string) error {
	return o.repo.Delete(ctx, token)
}

// Sweep removes expired sessions and returns how many were removed.
func (o *Oracle) Sweep(ctx context.Context) (int64, error) {
	return o.repo.DeleteExpired(ctx, time.Now())
}
