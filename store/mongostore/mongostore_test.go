package mongostore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/MrEthical07/bizAuth/store"
)

func TestMapErr(t *testing.T) {
	if mapErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if !errors.Is(mapErr(mongo.ErrNoDocuments), store.ErrNotFound) {
		t.Fatal("expected ErrNoDocuments to map to ErrNotFound")
	}
	if !errors.Is(mapErr(context.DeadlineExceeded), store.ErrUnavailable) {
		t.Fatal("expected timeout to map to ErrUnavailable")
	}
	if !errors.Is(mapErr(fmt.Errorf("wrapped: %w", mongo.ErrNoDocuments)), store.ErrNotFound) {
		t.Fatal("expected wrapped ErrNoDocuments to map to ErrNotFound")
	}
}

func TestOAuthTokenSetOmitsEmptyRefreshToken(t *testing.T) {
	now := time.Now()
	set := oauthTokenSet(store.OAuthTokens{AccessToken: "a", Expiry: now}, now)
	for _, e := range set {
		if e.Key == "refresh_token" {
			t.Fatal("refresh_token must not be overwritten when omitted")
		}
	}

	set = oauthTokenSet(store.OAuthTokens{AccessToken: "a", RefreshToken: "r", Expiry: now}, now)
	found := false
	for _, e := range set {
		if e.Key == "refresh_token" && e.Value == "r" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected refresh_token to be set when supplied")
	}
}

func TestAccountDocRoundTripKeepsHexID(t *testing.T) {
	id := bson.NewObjectID()
	acc := accountDoc{ID: id, Username: "alice", IsAdmin: true}.toAccount()
	if acc.ID != id.Hex() || !acc.IsAdmin || acc.Username != "alice" {
		t.Fatalf("unexpected account: %+v", acc)
	}
}
