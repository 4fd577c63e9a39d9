package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/domain"
)

// UserRepository is the credential store. Lookups return
// domain.ErrUserNotFound when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByResetToken matches the stored digest and requires the reset
	// expiry to be after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	// Update persists the mutable fields: name, email, photo, role, password
	// hash, password-changed-at, reset digest and expiry.
	Update(ctx context.Context, u *domain.User) error

	// ConsumePasswordReset stores u's new password hash and change time and
	// clears the reset token, but only if tokenHash is still stored for u
	// and unexpired at now. Otherwise it returns domain.ErrTokenInvalid.
	ConsumePasswordReset(ctx context.Context, u *domain.User, tokenHash string, now time.Time) error

	List(ctx context.Context) ([]*domain.User, error)
	Deactivate(ctx context.Context, id string) error

	// ClearExpiredResetTokens drops reset digests whose expiry is at or
	// before now and returns how many were cleared.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error)
}
