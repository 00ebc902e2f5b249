package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, username, email, password_hash, phone_number, address,
	profile_picture, country, city, role, is_active, is_staff, created_at, updated_on`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.PhoneNumber, &u.Address, &u.ProfilePicture,
		&u.Country, &u.City, &u.Role,
		&u.IsActive, &u.IsStaff, &u.CreatedAt, &u.UpdatedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. Duplicate username or email surfaces as
// ErrDuplicateUsername / ErrDuplicateEmail via the unique constraints, so a
// race between two registrations resolves to exactly one success.
func (s *Store) CreateUser(ctx context.Context, n NewUser) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, phone_number, address,
			profile_picture, country, city, role, is_active, is_staff, created_at, updated_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, false, now(), now())
		RETURNING `+userColumns,
		n.Username, n.Email, n.PasswordHash, n.PhoneNumber, n.Address,
		n.ProfilePicture, n.Country, n.City, n.Role,
	)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// SetFlags updates the activation and staff flags. updated_on is maintained
// by the users_touch_updated_on trigger.
func (s *Store) SetFlags(ctx context.Context, id int64, isActive, isStaff bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = $2, is_staff = $3 WHERE id = $1`, id, isActive, isStaff)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns every account ordered by id so the listing is stable
// across calls.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.PasswordHash,
			&u.PhoneNumber, &u.Address, &u.ProfilePicture,
			&u.Country, &u.City, &u.Role,
			&u.IsActive, &u.IsStaff, &u.CreatedAt, &u.UpdatedOn,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RevokeTokenPair records the refresh token's jti and the raw access token
// value in one transaction. Either both land or neither does, so the caller
// can safely tell the client to discard the pair.
func (s *Store) RevokeTokenPair(ctx context.Context, refreshJTI string, refreshExpiresAt time.Time, accessToken string, accessExpiresAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		INSERT INTO revoked_refresh_tokens (jti, expires_at, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (jti) DO NOTHING
	`, refreshJTI, refreshExpiresAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO blacklisted_tokens (token, expires_at, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (token) DO NOTHING
	`, accessToken, accessExpiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) IsRefreshTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_refresh_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	return revoked, err
}

func (s *Store) IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	var blacklisted bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE token = $1)`, token).Scan(&blacklisted)
	return blacklisted, err
}

// PruneExpiredTokens removes blacklist rows whose tokens have passed their
// natural expiry; they would be rejected by the token library anyway.
func (s *Store) PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var pruned int64

	tag, err := s.pool.Exec(ctx, `DELETE FROM blacklisted_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("prune blacklisted tokens: %w", err)
	}
	pruned += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM revoked_refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return pruned, fmt.Errorf("prune revoked refresh tokens: %w", err)
	}
	pruned += tag.RowsAffected()

	return pruned, nil
}

func (s *Store) InsertAudit(ctx context.Context, log AuditLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, created_at, metadata)
		VALUES ($1, $2, $3, $4, now(), $5)
	`, log.ActorID, log.Action, log.EntityType, log.EntityID, map[string]string{
		"ip":         log.IP,
		"user_agent": log.UserAgent,
	})
	return err
}
