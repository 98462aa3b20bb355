// Package pgstore implements store.Store on PostgreSQL through a pgx pool.
// The schema is managed by Migrate.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/bizAuth/store"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db  DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps db.
func New(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Connect opens a pool for databaseURL and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const accountColumns = `id, username, password_hash, is_admin, is_locked, locked_until, created_at, updated_at`

func (s *Store) FindAccount(ctx context.Context, username string) (*store.Account, error) {
	var acc store.Account
	err := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.IsAdmin, &acc.IsLocked, &acc.LockedUntil, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &acc, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	now := s.now()
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, username, password_hash, is_admin, is_locked, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, account.Username, account.PasswordHash, account.IsAdmin, account.IsLocked, account.LockedUntil, now)
	if err != nil {
		return mapErr(err)
	}
	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, username string, update store.AccountUpdate) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET username = COALESCE($2, username),
		    password_hash = COALESCE($3, password_hash),
		    updated_at = $4
		WHERE username = $1
	`, username, update.Username, update.PasswordHash, s.now())
	return affected(tag, err)
}

func (s *Store) DeleteAccount(ctx context.Context, username string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	return affected(tag, err)
}

func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE username = $1`,
		username, passwordHash, s.now())
	return affected(tag, err)
}

func (s *Store) IsGoogleLinkedAccount(ctx context.Context, username string) (bool, error) {
	var linked bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM google_accounts WHERE account_name = $1)`, username).Scan(&linked)
	if err != nil {
		return false, mapErr(err)
	}
	return linked, nil
}

func (s *Store) FindRefreshTokenByUsername(ctx context.Context, username string) (*store.RefreshToken, error) {
	return s.findRefresh(ctx, `SELECT token, username, expires_at, updated_at FROM refresh_tokens WHERE username = $1`, username)
}

func (s *Store) FindRefreshTokenByToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	return s.findRefresh(ctx, `SELECT token, username, expires_at, updated_at FROM refresh_tokens WHERE token = $1`, token)
}

func (s *Store) findRefresh(ctx context.Context, query, arg string) (*store.RefreshToken, error) {
	var rec store.RefreshToken
	if err := s.db.QueryRow(ctx, query, arg).Scan(&rec.Token, &rec.Username, &rec.ExpiresAt, &rec.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (s *Store) UpsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (token, username, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`, record.Token, record.Username, record.ExpiresAt, s.now())
	return mapErr(err)
}

func (s *Store) InsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	_, err := s.db.Exec(ctx, `INSERT INTO refresh_tokens (token, username, expires_at, updated_at) VALUES ($1, $2, $3, $4)`,
		record.Token, record.Username, record.ExpiresAt, s.now())
	return mapErr(err)
}

// ReplaceRefreshToken relies on the row lock taken by UPDATE: a concurrent
// caller re-evaluates the WHERE clause after the winner commits and matches nothing.
func (s *Store) ReplaceRefreshToken(ctx context.Context, oldToken string, next store.RefreshToken) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET token = $2, username = $3, expires_at = $4, updated_at = $5
		WHERE token = $1
	`, oldToken, next.Token, next.Username, next.ExpiresAt, s.now())
	return affected(tag, err)
}

func (s *Store) DeleteRefreshTokens(ctx context.Context, username string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE username = $1`, username)
	return mapErr(err)
}

const oauthColumns = `id, google_id, account_name, access_token, COALESCE(refresh_token, ''), COALESCE(token_expiry, 'epoch'::timestamptz), is_admin, created_at, updated_at`

func (s *Store) FindOAuthAccountByGoogleID(ctx context.Context, googleID string) (*store.OAuthAccount, error) {
	return s.findOAuth(ctx, `google_id`, googleID)
}

func (s *Store) FindOAuthAccountByAccessToken(ctx context.Context, accessToken string) (*store.OAuthAccount, error) {
	if accessToken == "" {
		return nil, store.ErrNotFound
	}
	return s.findOAuth(ctx, `access_token`, accessToken)
}

func (s *Store) FindOAuthAccountByRefreshToken(ctx context.Context, refreshToken string) (*store.OAuthAccount, error) {
	if refreshToken == "" {
		return nil, store.ErrNotFound
	}
	return s.findOAuth(ctx, `refresh_token`, refreshToken)
}

// findOAuth takes column from the fixed set above, never from input.
func (s *Store) findOAuth(ctx context.Context, column, value string) (*store.OAuthAccount, error) {
	var acc store.OAuthAccount
	err := s.db.QueryRow(ctx, `SELECT `+oauthColumns+` FROM google_accounts WHERE `+column+` = $1 LIMIT 1`, value).
		Scan(&acc.ID, &acc.GoogleID, &acc.AccountName, &acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiry, &acc.IsAdmin, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &acc, nil
}

func (s *Store) CreateOAuthAccount(ctx context.Context, account *store.OAuthAccount) error {
	now := s.now()
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO google_accounts (id, google_id, account_name, access_token, refresh_token, token_expiry, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $8)
	`, id, account.GoogleID, account.AccountName, account.AccessToken, account.RefreshToken, account.TokenExpiry, account.IsAdmin, now)
	if err != nil {
		return mapErr(err)
	}
	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *Store) UpdateOAuthTokens(ctx context.Context, googleID string, tokens store.OAuthTokens) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE google_accounts
		SET access_token = $2,
		    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		    token_expiry = $4,
		    updated_at = $5
		WHERE google_id = $1
	`, googleID, tokens.AccessToken, tokens.RefreshToken, tokens.Expiry, s.now())
	return affected(tag, err)
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
