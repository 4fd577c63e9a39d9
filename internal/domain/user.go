package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenInvalid = errors.New("token is invalid or expired")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

type User struct {
	ID    string
	Name  string
	Email string
	Photo string
	Role  Role

	PasswordHash      string `json:"-"`
	PasswordChangedAt *time.Time

	// Only the SHA-256 hex digest of a reset token is ever stored.
	PasswordResetToken   *string `json:"-"`
	PasswordResetExpires *time.Time

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Compared at second precision, like JWT iat.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// SetPassword stores a new hash. PasswordChangedAt is backdated by one second
// so a token issued right after the change still verifies.
func (u *User) SetPassword(hash string, now time.Time) {
	u.PasswordHash = hash
	changed := now.Add(-time.Second)
	u.PasswordChangedAt = &changed
}

// NewPasswordReset generates a one-time reset token, keeps its digest and
// expiry on the user and returns the plaintext for delivery.
func (u *User) NewPasswordReset(now time.Time, ttl time.Duration) (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	digest := HashResetToken(rawToken)
	expires := now.Add(ttl)
	u.PasswordResetToken = &digest
	u.PasswordResetExpires = &expires
	return rawToken, nil
}

func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// ResetValidAt reports whether a stored reset token is still usable at now.
func (u *User) ResetValidAt(now time.Time) bool {
	return u.PasswordResetToken != nil &&
		u.PasswordResetExpires != nil &&
		u.PasswordResetExpires.After(now)
}

func HashResetToken(rawToken string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
}
