package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const userColumns = "id, email, full_name, password_hash, role, is_active, created_at, updated_at"

type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         string
}

func (s *Store) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		params.Email, params.FullName, params.PasswordHash, params.Role)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)`,
		email)
	return scanUser(row)
}

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

type CreateSessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	CSRFToken string
	ExpiresAt time.Time
}

func (s *Store) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_hash, csrf_token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, csrf_token, expires_at, revoked_at, last_seen_at, created_at`,
		params.UserID, params.TokenHash, params.CSRFToken, params.ExpiresAt).
		Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.CSRFToken, &sess.ExpiresAt, &sess.RevokedAt, &sess.LastSeenAt, &sess.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetSessionPrincipalByTokenHash loads the active, unexpired session and its
// user in one round trip.
func (s *Store) GetSessionPrincipalByTokenHash(ctx context.Context, tokenHash string) (Principal, error) {
	var p Principal
	err := s.db.QueryRow(ctx, `
		SELECT s.id, u.id, u.email, u.full_name, u.role, s.csrf_token, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		  AND u.is_active`,
		tokenHash).
		Scan(&p.SessionID, &p.UserID, &p.Email, &p.FullName, &p.Role, &p.CSRFToken, &p.ExpiresAt)
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1`, sessionID)
	return err
}

func (s *Store) RevokeSessionByID(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	return err
}

func (s *Store) RevokeSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return err
}
