package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextRepr   = "22P02"
	pgNotNullViolation  = "23502"
	pgCheckViolation    = "23514"
	pgStringDataTooLong = "22001"
)

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	       password_reset_token, password_reset_expires, active, created_at, updated_at`

// Deactivated users are invisible to every lookup.
const findByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND active`

// consumeResetQuery sets the new password only while the digest is still
// stored and unexpired, so concurrent consumers of one token cannot both win.
const consumeResetQuery = `
		UPDATE users
		SET    password_hash          = $2,
		       password_changed_at    = $3,
		       password_reset_token   = NULL,
		       password_reset_expires = NULL,
		       updated_at             = NOW()
		WHERE  id = $1
		  AND  password_reset_token = $4
		  AND  password_reset_expires > $5
		  AND  active`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (name, email, photo, role, password_hash, password_changed_at, active)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'default.jpg'), $4, $5, $6, TRUE)
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		u.Name,
		u.Email,
		u.Photo,
		u.Role,
		u.PasswordHash,
		u.PasswordChangedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, translate(err, map[string]string{"email": u.Email})
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND active`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, map[string]string{"id": id})
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, findByEmailQuery, strings.ToLower(email)))
	if err != nil {
		return nil, translate(err, nil)
	}
	return u, nil
}

func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE password_reset_token = $1
		  AND password_reset_expires > $2
		  AND active`

	u, err := scanUser(r.pool.QueryRow(ctx, query, tokenHash, now))
	if err != nil {
		return nil, translate(err, nil)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET    name                   = $2,
		       email                  = $3,
		       photo                  = $4,
		       role                   = $5,
		       password_hash          = $6,
		       password_changed_at    = $7,
		       password_reset_token   = $8,
		       password_reset_expires = $9,
		       updated_at             = NOW()
		WHERE  id = $1`

	tag, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.Photo,
		u.Role,
		u.PasswordHash,
		u.PasswordChangedAt,
		u.PasswordResetToken,
		u.PasswordResetExpires,
	)
	if err != nil {
		return translate(err, map[string]string{"id": u.ID, "email": u.Email})
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ConsumePasswordReset(ctx context.Context, u *domain.User, tokenHash string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, consumeResetQuery,
		u.ID,
		u.PasswordHash,
		u.PasswordChangedAt,
		tokenHash,
		now,
	)
	if err != nil {
		return translate(err, map[string]string{"id": u.ID})
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenInvalid
	}
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return translate(err, map[string]string{"id": id})
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteByEmails hard-deletes the given accounts. Only dev tooling calls it;
// the API deactivates instead.
func (r *UserRepository) DeleteByEmails(ctx context.Context, emails []string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE email = ANY($1)`, emails)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET    password_reset_token   = NULL,
		       password_reset_expires = NULL,
		       updated_at             = NOW()
		WHERE  password_reset_token IS NOT NULL
		  AND  password_reset_expires <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired reset tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&u.Role,
		&u.PasswordHash,
		&u.PasswordChangedAt,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// translate maps driver failures onto the persistence variants of apperr.
// values holds the input per column so the offending value can be reported.
func translate(err error, values map[string]string) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		field := constraintField(pgErr.ConstraintName)
		return &apperr.DuplicateKeyError{Field: field, Value: values[field], Err: err}
	case pgInvalidTextRepr:
		// Only uuid columns take free-form text input here.
		return &apperr.CastError{Field: "id", Value: values["id"], Err: err}
	case pgNotNullViolation, pgCheckViolation, pgStringDataTooLong:
		field := pgErr.ColumnName
		if field == "" {
			field = constraintField(pgErr.ConstraintName)
		}
		return &apperr.ValidationError{
			Violations: []apperr.Violation{{Field: field, Message: fmt.Sprintf("Invalid value for %s", field)}},
			Err:        err,
		}
	default:
		return err
	}
}

// constraintField turns "users_email_key" / "users_role_check" into "email" / "role".
func constraintField(name string) string {
	name = strings.TrimPrefix(name, "users_")
	for _, suffix := range []string{"_key", "_check", "_idx"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
