package bizAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bizAuth/store"
)

// timeoutStore bounds every credential store call by a fixed timeout and
// reports an expired deadline as store.ErrUnavailable.
type timeoutStore struct {
	inner   store.Store
	timeout time.Duration
}

var _ store.Store = (*timeoutStore)(nil)

func newTimeoutStore(inner store.Store, timeout time.Duration) store.Store {
	if timeout <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: timeout}
}

func (s *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func timeoutErr(err error) error {
	if err == nil || errors.Is(err, store.ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func (s *timeoutStore) FindAccount(ctx context.Context, username string) (*store.Account, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	acc, err := s.inner.FindAccount(ctx, username)
	return acc, timeoutErr(err)
}

func (s *timeoutStore) CreateAccount(ctx context.Context, account *store.Account) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.CreateAccount(ctx, account))
}

func (s *timeoutStore) UpdateAccount(ctx context.Context, username string, update store.AccountUpdate) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.UpdateAccount(ctx, username, update))
}

func (s *timeoutStore) DeleteAccount(ctx context.Context, username string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.DeleteAccount(ctx, username))
}

func (s *timeoutStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.UpdatePassword(ctx, username, passwordHash))
}

func (s *timeoutStore) IsGoogleLinkedAccount(ctx context.Context, username string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	linked, err := s.inner.IsGoogleLinkedAccount(ctx, username)
	return linked, timeoutErr(err)
}

func (s *timeoutStore) FindRefreshTokenByUsername(ctx context.Context, username string) (*store.RefreshToken, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rec, err := s.inner.FindRefreshTokenByUsername(ctx, username)
	return rec, timeoutErr(err)
}

func (s *timeoutStore) FindRefreshTokenByToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rec, err := s.inner.FindRefreshTokenByToken(ctx, token)
	return rec, timeoutErr(err)
}

func (s *timeoutStore) UpsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.UpsertRefreshToken(ctx, record))
}

func (s *timeoutStore) InsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.InsertRefreshToken(ctx, record))
}

func (s *timeoutStore) ReplaceRefreshToken(ctx context.Context, oldToken string, next store.RefreshToken) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.ReplaceRefreshToken(ctx, oldToken, next))
}

func (s *timeoutStore) DeleteRefreshTokens(ctx context.Context, username string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.DeleteRefreshTokens(ctx, username))
}

func (s *timeoutStore) FindOAuthAccountByGoogleID(ctx context.Context, googleID string) (*store.OAuthAccount, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	acc, err := s.inner.FindOAuthAccountByGoogleID(ctx, googleID)
	return acc, timeoutErr(err)
}

func (s *timeoutStore) FindOAuthAccountByAccessToken(ctx context.Context, accessToken string) (*store.OAuthAccount, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	acc, err := s.inner.FindOAuthAccountByAccessToken(ctx, accessToken)
	return acc, timeoutErr(err)
}

func (s *timeoutStore) FindOAuthAccountByRefreshToken(ctx context.Context, refreshToken string) (*store.OAuthAccount, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	acc, err := s.inner.FindOAuthAccountByRefreshToken(ctx, refreshToken)
	return acc, timeoutErr(err)
}

func (s *timeoutStore) CreateOAuthAccount(ctx context.Context, account *store.OAuthAccount) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.CreateOAuthAccount(ctx, account))
}

func (s *timeoutStore) UpdateOAuthTokens(ctx context.Context, googleID string, tokens store.OAuthTokens) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return timeoutErr(s.inner.UpdateOAuthTokens(ctx, googleID, tokens))
}
