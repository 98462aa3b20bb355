// Package memstore is an in-process implementation of store.Store guarded by a
// single mutex. It backs unit tests and `bizauth serve --store memory`.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/bizAuth/store"
)

// Store keeps every record in maps keyed by their unique field.
type Store struct {
	mu sync.Mutex

	accounts      map[string]store.Account      // by username
	oauthAccounts map[string]store.OAuthAccount // by google id
	refresh       map[string]store.RefreshToken // by username
	refreshIndex  map[string]string             // token -> username

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]store.Account),
		oauthAccounts: make(map[string]store.OAuthAccount),
		refresh:       make(map[string]store.RefreshToken),
		refreshIndex:  make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) FindAccount(_ context.Context, username string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) CreateAccount(_ context.Context, account *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return store.ErrDuplicate
	}
	now := s.now()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.Username] = *account
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, username string, update store.AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return store.ErrNotFound
	}
	if update.Username != nil && *update.Username != username {
		if _, taken := s.accounts[*update.Username]; taken {
			return store.ErrDuplicate
		}
		delete(s.accounts, username)
		acc.Username = *update.Username
	}
	if update.PasswordHash != nil {
		acc.PasswordHash = *update.PasswordHash
	}
	acc.UpdatedAt = s.now()
	s.accounts[acc.Username] = acc
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; !ok {
		return store.ErrNotFound
	}
	delete(s.accounts, username)
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return store.ErrNotFound
	}
	acc.PasswordHash = passwordHash
	acc.UpdatedAt = s.now()
	s.accounts[username] = acc
	return nil
}

func (s *Store) IsGoogleLinkedAccount(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.oauthAccounts {
		if acc.AccountName == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindRefreshTokenByUsername(_ context.Context, username string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) FindRefreshTokenByToken(_ context.Context, token string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.refreshIndex[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := s.refresh[username]
	return &rec, nil
}

func (s *Store) UpsertRefreshToken(_ context.Context, record store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putRefreshLocked(record)
	return nil
}

func (s *Store) InsertRefreshToken(_ context.Context, record store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshIndex[record.Token]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.refresh[record.Username]; ok {
		return store.ErrDuplicate
	}
	s.putRefreshLocked(record)
	return nil
}

func (s *Store) ReplaceRefreshToken(_ context.Context, oldToken string, next store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshIndex[oldToken]; !ok {
		return store.ErrNotFound
	}
	delete(s.refreshIndex, oldToken)
	s.putRefreshLocked(next)
	return nil
}

func (s *Store) DeleteRefreshTokens(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.refresh[username]; ok {
		delete(s.refreshIndex, rec.Token)
		delete(s.refresh, username)
	}
	return nil
}

func (s *Store) putRefreshLocked(record store.RefreshToken) {
	if prev, ok := s.refresh[record.Username]; ok {
		delete(s.refreshIndex, prev.Token)
	}
	record.UpdatedAt = s.now()
	s.refresh[record.Username] = record
	s.refreshIndex[record.Token] = record.Username
}

func (s *Store) FindOAuthAccountByGoogleID(_ context.Context, googleID string) (*store.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.oauthAccounts[googleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) FindOAuthAccountByAccessToken(_ context.Context, accessToken string) (*store.OAuthAccount, error) {
	return s.findOAuth(func(acc store.OAuthAccount) bool {
		return accessToken != "" && acc.AccessToken == accessToken
	})
}

func (s *Store) FindOAuthAccountByRefreshToken(_ context.Context, refreshToken string) (*store.OAuthAccount, error) {
	return s.findOAuth(func(acc store.OAuthAccount) bool {
		return refreshToken != "" && acc.RefreshToken == refreshToken
	})
}

func (s *Store) findOAuth(match func(store.OAuthAccount) bool) (*store.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.oauthAccounts {
		if match(acc) {
			found := acc
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateOAuthAccount(_ context.Context, account *store.OAuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.oauthAccounts[account.GoogleID]; ok {
		return store.ErrDuplicate
	}
	now := s.now()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	s.oauthAccounts[account.GoogleID] = *account
	return nil
}

func (s *Store) UpdateOAuthTokens(_ context.Context, googleID string, tokens store.OAuthTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.oauthAccounts[googleID]
	if !ok {
		return store.ErrNotFound
	}
	acc.AccessToken = tokens.AccessToken
	acc.TokenExpiry = tokens.Expiry
	if tokens.RefreshToken != "" {
		acc.RefreshToken = tokens.RefreshToken
	}
	acc.UpdatedAt = s.now()
	s.oauthAccounts[googleID] = acc
	return nil
}

// SetAdmin flips the admin flag on a native or OAuth account. Test and seeding helper.
func (s *Store) SetAdmin(name string, admin bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[name]; ok {
		acc.IsAdmin = admin
		s.accounts[name] = acc
		return true
	}
	for id, acc := range s.oauthAccounts {
		if acc.AccountName == name {
			acc.IsAdmin = admin
			s.oauthAccounts[id] = acc
			return true
		}
	}
	return false
}
