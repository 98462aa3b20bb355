// Package mongostore implements store.Store on MongoDB using the collections
// accounts, google_accounts, and refresh_tokens.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/MrEthical07/bizAuth/store"
)

const (
	accountsCollection      = "accounts"
	oauthAccountsCollection = "google_accounts"
	refreshCollection       = "refresh_tokens"
)

type accountDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	PasswordHash string        `bson:"password_hash"`
	IsAdmin      bool          `bson:"isAdmin"`
	IsLocked     bool          `bson:"is_locked"`
	LockedUntil  *time.Time    `bson:"locked_until"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

type oauthAccountDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	GoogleID     string        `bson:"google_id"`
	AccountName  string        `bson:"account_name"`
	AccessToken  string        `bson:"access_token"`
	RefreshToken string        `bson:"refresh_token,omitempty"`
	TokenExpiry  time.Time     `bson:"token_expiry"`
	IsAdmin      bool          `bson:"is_admin"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

type refreshDoc struct {
	Token     string    `bson:"token"`
	Username  string    `bson:"userId"`
	ExpiresAt time.Time `bson:"expiresAt"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	accounts *mongo.Collection
	oauth    *mongo.Collection
	refresh  *mongo.Collection
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New binds the store to db. Call EnsureIndexes once at startup.
func New(db *mongo.Database) *Store {
	return &Store{
		accounts: db.Collection(accountsCollection),
		oauth:    db.Collection(oauthAccountsCollection),
		refresh:  db.Collection(refreshCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connect dials uri and verifies the deployment with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes the contract relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	if _, err := s.accounts.Indexes().CreateOne(ctx, unique("username")); err != nil {
		return fmt.Errorf("accounts index: %w", err)
	}
	if _, err := s.oauth.Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("google_id"),
		{Keys: bson.D{{Key: "access_token", Value: 1}}},
		{Keys: bson.D{{Key: "account_name", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("google_accounts index: %w", err)
	}
	if _, err := s.refresh.Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("token"),
		unique("userId"),
	}); err != nil {
		return fmt.Errorf("refresh_tokens index: %w", err)
	}
	return nil
}

func (s *Store) FindAccount(ctx context.Context, username string) (*store.Account, error) {
	var doc accountDoc
	if err := s.accounts.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toAccount(), nil
}

func (s *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	now := s.now()
	doc := accountDoc{
		ID:           bson.NewObjectID(),
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		IsAdmin:      account.IsAdmin,
		IsLocked:     account.IsLocked,
		LockedUntil:  account.LockedUntil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.accounts.InsertOne(ctx, doc); err != nil {
		return mapErr(err)
	}
	account.ID = doc.ID.Hex()
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, username string, update store.AccountUpdate) error {
	set := bson.D{{Key: "updated_at", Value: s.now()}}
	if update.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *update.Username})
	}
	if update.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *update.PasswordHash})
	}
	return s.updateOne(ctx, s.accounts, bson.D{{Key: "username", Value: username}}, set)
}

func (s *Store) DeleteAccount(ctx context.Context, username string) error {
	res, err := s.accounts.DeleteOne(ctx, bson.D{{Key: "username", Value: username}})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return s.updateOne(ctx, s.accounts, bson.D{{Key: "username", Value: username}}, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: s.now()},
	})
}

func (s *Store) IsGoogleLinkedAccount(ctx context.Context, username string) (bool, error) {
	n, err := s.oauth.CountDocuments(ctx, bson.D{{Key: "account_name", Value: username}}, options.Count().SetLimit(1))
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (s *Store) FindRefreshTokenByUsername(ctx context.Context, username string) (*store.RefreshToken, error) {
	return s.findRefresh(ctx, bson.D{{Key: "userId", Value: username}})
}

func (s *Store) FindRefreshTokenByToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	return s.findRefresh(ctx, bson.D{{Key: "token", Value: token}})
}

func (s *Store) findRefresh(ctx context.Context, filter bson.D) (*store.RefreshToken, error) {
	var doc refreshDoc
	if err := s.refresh.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return &store.RefreshToken{
		Token:     doc.Token,
		Username:  doc.Username,
		ExpiresAt: doc.ExpiresAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Store) UpsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	_, err := s.refresh.UpdateOne(ctx,
		bson.D{{Key: "userId", Value: record.Username}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "token", Value: record.Token},
				{Key: "expiresAt", Value: record.ExpiresAt},
				{Key: "updated_at", Value: s.now()},
			}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "userId", Value: record.Username}}},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return mapErr(err)
}

func (s *Store) InsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	_, err := s.refresh.InsertOne(ctx, s.refreshDoc(record))
	return mapErr(err)
}

func (s *Store) ReplaceRefreshToken(ctx context.Context, oldToken string, next store.RefreshToken) error {
	err := s.refresh.FindOneAndReplace(ctx, bson.D{{Key: "token", Value: oldToken}}, s.refreshDoc(next)).Err()
	return mapErr(err)
}

func (s *Store) DeleteRefreshTokens(ctx context.Context, username string) error {
	_, err := s.refresh.DeleteMany(ctx, bson.D{{Key: "userId", Value: username}})
	return mapErr(err)
}

func (s *Store) refreshDoc(record store.RefreshToken) refreshDoc {
	return refreshDoc{
		Token:     record.Token,
		Username:  record.Username,
		ExpiresAt: record.ExpiresAt,
		UpdatedAt: s.now(),
	}
}

func (s *Store) FindOAuthAccountByGoogleID(ctx context.Context, googleID string) (*store.OAuthAccount, error) {
	return s.findOAuth(ctx, bson.D{{Key: "google_id", Value: googleID}})
}

func (s *Store) FindOAuthAccountByAccessToken(ctx context.Context, accessToken string) (*store.OAuthAccount, error) {
	if accessToken == "" {
		return nil, store.ErrNotFound
	}
	return s.findOAuth(ctx, bson.D{{Key: "access_token", Value: accessToken}})
}

func (s *Store) FindOAuthAccountByRefreshToken(ctx context.Context, refreshToken string) (*store.OAuthAccount, error) {
	if refreshToken == "" {
		return nil, store.ErrNotFound
	}
	return s.findOAuth(ctx, bson.D{{Key: "refresh_token", Value: refreshToken}})
}

func (s *Store) findOAuth(ctx context.Context, filter bson.D) (*store.OAuthAccount, error) {
	var doc oauthAccountDoc
	if err := s.oauth.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toOAuthAccount(), nil
}

func (s *Store) CreateOAuthAccount(ctx context.Context, account *store.OAuthAccount) error {
	now := s.now()
	doc := oauthAccountDoc{
		ID:           bson.NewObjectID(),
		GoogleID:     account.GoogleID,
		AccountName:  account.AccountName,
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenExpiry:  account.TokenExpiry,
		IsAdmin:      account.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.oauth.InsertOne(ctx, doc); err != nil {
		return mapErr(err)
	}
	account.ID = doc.ID.Hex()
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *Store) UpdateOAuthTokens(ctx context.Context, googleID string, tokens store.OAuthTokens) error {
	return s.updateOne(ctx, s.oauth, bson.D{{Key: "google_id", Value: googleID}}, oauthTokenSet(tokens, s.now()))
}

func (s *Store) updateOne(ctx context.Context, coll *mongo.Collection, filter, set bson.D) error {
	res, err := coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func oauthTokenSet(tokens store.OAuthTokens, now time.Time) bson.D {
	set := bson.D{
		{Key: "access_token", Value: tokens.AccessToken},
		{Key: "token_expiry", Value: tokens.Expiry},
		{Key: "updated_at", Value: now},
	}
	if tokens.RefreshToken != "" {
		set = append(set, bson.E{Key: "refresh_token", Value: tokens.RefreshToken})
	}
	return set
}

func (d accountDoc) toAccount() *store.Account {
	return &store.Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		IsLocked:     d.IsLocked,
		LockedUntil:  d.LockedUntil,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d oauthAccountDoc) toOAuthAccount() *store.OAuthAccount {
	return &store.OAuthAccount{
		ID:           d.ID.Hex(),
		GoogleID:     d.GoogleID,
		AccountName:  d.AccountName,
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		TokenExpiry:  d.TokenExpiry,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
}
