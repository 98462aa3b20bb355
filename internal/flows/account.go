package flows

import (
	"context"
	"errors"
)

// AccountFailureKind classifies account management failures.
type AccountFailureKind int

const (
	AccountFailureNone AccountFailureKind = iota
	AccountFailureInvalidInput
	AccountFailureOAuthLinked
	AccountFailureNotFound
	AccountFailureDuplicate
	AccountFailureWrongPassword
	AccountFailurePasswordReuse
	AccountFailureWeakPassword
	AccountFailureStore
	AccountFailureHash
)

// AccountDeps captures account management dependencies. FindAccount returns
// (nil, nil) for an absent account; store mutators report absence with
// ErrNotFound and uniqueness violations with ErrDuplicate.
type AccountDeps struct {
	IsOAuthLinked  func(ctx context.Context, name string) (bool, error)
	FindAccount    func(ctx context.Context, username string) (*AccountRecord, error)
	CreateAccount  func(ctx context.Context, username, hash string) (*AccountRecord, error)
	UpdateAccount  func(ctx context.Context, username string, newUsername, newHash *string) error
	UpdatePassword func(ctx context.Context, username, hash string) error
	DeleteAccount  func(ctx context.Context, username string) error
	DeleteRefresh  func(ctx context.Context, username string) error

	Hash   func(password string) (string, error)
	Verify func(password, hash string) (bool, error)
	// IsWeakPassword reports whether a Hash error is a password policy rejection.
	IsWeakPassword func(error) bool

	ErrNotFound  error
	ErrDuplicate error
}

// AccountResult carries the affected account or failure metadata.
type AccountResult struct {
	Failure AccountFailureKind
	Err     error
	Account *AccountRecord
}

// AccountUpdate is a username and/or password change authorised by the
// current password.
type AccountUpdate struct {
	Username    string
	Password    string
	NewUsername string
	NewPassword string
}

// RunCreateAccount registers a native account unless the name belongs to an
// OAuth-linked account.
func RunCreateAccount(ctx context.Context, username, password string, deps AccountDeps) AccountResult {
	if username == "" || password == "" {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}
	if res, blocked := checkOAuthLinked(ctx, username, deps); blocked {
		return res
	}

	hash, err := deps.Hash(password)
	if err != nil {
		return hashFailure(err, deps)
	}
	account, err := deps.CreateAccount(ctx, username, hash)
	if err != nil {
		return storeFailure(err, deps)
	}
	return AccountResult{Account: account}
}

// RunUpdateAccount changes the username and/or password after re-verifying the
// current password. Refresh tokens of the old username are revoked.
func RunUpdateAccount(ctx context.Context, in AccountUpdate, deps AccountDeps) AccountResult {
	if in.Username == "" || in.Password == "" {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}
	if in.NewUsername == "" && in.NewPassword == "" {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}
	account, res, ok := findNativeTarget(ctx, in.Username, deps)
	if !ok {
		return res
	}
	if valid, _ := deps.Verify(in.Password, account.PasswordHash); !valid {
		return AccountResult{Failure: AccountFailureWrongPassword}
	}

	var newUsername, newHash *string
	if in.NewUsername != "" && in.NewUsername != in.Username {
		if res, blocked := checkOAuthLinked(ctx, in.NewUsername, deps); blocked {
			return res
		}
		name := in.NewUsername
		newUsername = &name
	}
	if in.NewPassword != "" {
		if same, _ := deps.Verify(in.NewPassword, account.PasswordHash); same {
			return AccountResult{Failure: AccountFailurePasswordReuse}
		}
		hash, err := deps.Hash(in.NewPassword)
		if err != nil {
			return hashFailure(err, deps)
		}
		newHash = &hash
	}
	if newUsername == nil && newHash == nil {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}

	if err := deps.UpdateAccount(ctx, in.Username, newUsername, newHash); err != nil {
		return storeFailure(err, deps)
	}
	if err := deps.DeleteRefresh(ctx, in.Username); err != nil {
		return AccountResult{Failure: AccountFailureStore, Err: err}
	}

	updated := *account
	if newUsername != nil {
		updated.Username = *newUsername
	}
	if newHash != nil {
		updated.PasswordHash = *newHash
	}
	return AccountResult{Account: &updated}
}

// RunDeleteAccount removes a native account and its refresh tokens.
func RunDeleteAccount(ctx context.Context, username string, deps AccountDeps) AccountResult {
	if username == "" {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}
	if _, res, ok := findNativeTarget(ctx, username, deps); !ok {
		return res
	}
	if err := deps.DeleteAccount(ctx, username); err != nil {
		return storeFailure(err, deps)
	}
	if err := deps.DeleteRefresh(ctx, username); err != nil {
		return AccountResult{Failure: AccountFailureStore, Err: err}
	}
	return AccountResult{}
}

// RunResetPassword sets a new password without the current one and revokes
// the account's refresh tokens.
func RunResetPassword(ctx context.Context, username, newPassword string, deps AccountDeps) AccountResult {
	if username == "" || newPassword == "" {
		return AccountResult{Failure: AccountFailureInvalidInput}
	}
	if _, res, ok := findNativeTarget(ctx, username, deps); !ok {
		return res
	}
	hash, err := deps.Hash(newPassword)
	if err != nil {
		return hashFailure(err, deps)
	}
	if err := deps.UpdatePassword(ctx, username, hash); err != nil {
		return storeFailure(err, deps)
	}
	if err := deps.DeleteRefresh(ctx, username); err != nil {
		return AccountResult{Failure: AccountFailureStore, Err: err}
	}
	return AccountResult{}
}

// findNativeTarget loads the native account a mutation addresses. A name with
// no native account is reported as OAuth-linked when an OAuth account carries
// it, else as not found. A native account is never blocked by an OAuth
// account sharing its name.
func findNativeTarget(ctx context.Context, name string, deps AccountDeps) (*AccountRecord, AccountResult, bool) {
	account, err := deps.FindAccount(ctx, name)
	if err != nil {
		return nil, AccountResult{Failure: AccountFailureStore, Err: err}, false
	}
	if account != nil {
		return account, AccountResult{}, true
	}
	if res, blocked := checkOAuthLinked(ctx, name, deps); blocked {
		return nil, res, false
	}
	return nil, AccountResult{Failure: AccountFailureNotFound}, false
}

func checkOAuthLinked(ctx context.Context, name string, deps AccountDeps) (AccountResult, bool) {
	linked, err := deps.IsOAuthLinked(ctx, name)
	if err != nil {
		return AccountResult{Failure: AccountFailureStore, Err: err}, true
	}
	if linked {
		return AccountResult{Failure: AccountFailureOAuthLinked}, true
	}
	return AccountResult{}, false
}

func hashFailure(err error, deps AccountDeps) AccountResult {
	if deps.IsWeakPassword != nil && deps.IsWeakPassword(err) {
		return AccountResult{Failure: AccountFailureWeakPassword, Err: err}
	}
	return AccountResult{Failure: AccountFailureHash, Err: err}
}

func storeFailure(err error, deps AccountDeps) AccountResult {
	switch {
	case deps.ErrNotFound != nil && errors.Is(err, deps.ErrNotFound):
		return AccountResult{Failure: AccountFailureNotFound, Err: err}
	case deps.ErrDuplicate != nil && errors.Is(err, deps.ErrDuplicate):
		return AccountResult{Failure: AccountFailureDuplicate, Err: err}
	default:
		return AccountResult{Failure: AccountFailureStore, Err: err}
	}
}
