package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultScopes requests the basic profile.
var DefaultScopes = []string{"https://www.googleapis.com/auth/userinfo.profile"}

// ErrTokenRejected reports that the provider refused the access token (HTTP 401).
var ErrTokenRejected = errors.New("oauth: provider rejected access token")

// Config describes the provider endpoints and client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	// HTTPClient is used for every provider call. Nil uses a 10s-timeout client.
	HTTPClient *http.Client
}

// Profile is the subset of the userinfo response the engine consumes.
type Profile struct {
	ID      string
	Name    string
	Email   string
	Picture string
}

// StatusError is a non-2xx userinfo response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oauth: userinfo failed: status=%d", e.StatusCode)
}

// Client implements the provider calls the engine needs.
type Client struct {
	oauth2      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	switch {
	case strings.TrimSpace(cfg.ClientID) == "":
		return nil, errors.New("oauth: client id missing")
	case strings.TrimSpace(cfg.AuthURL) == "", strings.TrimSpace(cfg.TokenURL) == "":
		return nil, errors.New("oauth: auth or token url missing")
	case strings.TrimSpace(cfg.UserInfoURL) == "":
		return nil, errors.New("oauth: userinfo url missing")
	case strings.TrimSpace(cfg.RedirectURL) == "":
		return nil, errors.New("oauth: redirect url missing")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  httpClient,
	}, nil
}

// AuthCodeURL returns the consent URL bound to state. Offline access and a
// forced consent prompt make the provider return a refresh token.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth2.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for provider tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauth2.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("oauth: exchange code: %w", err)
	}
	return tok, nil
}

// Refresh obtains a new access token for refreshToken. The returned token's
// RefreshToken is empty unless the provider issued a new one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := c.oauth2.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth: refresh token: %w", err)
	}
	if tok.RefreshToken == refreshToken {
		// x/oauth2 carries the old refresh token forward when none is returned.
		tok.RefreshToken = ""
	}
	return tok, nil
}

// FetchProfile loads the userinfo profile with accessToken.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("oauth: build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("oauth: read userinfo: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return Profile{}, fmt.Errorf("%w: %w", ErrTokenRejected, &StatusError{StatusCode: resp.StatusCode})
	}
	if resp.StatusCode >= 300 {
		return Profile{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Profile{}, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	profile := Profile{
		ID:      stringValue(coalesce(raw["id"], raw["sub"])),
		Name:    stringValue(coalesce(raw["name"], raw["displayName"])),
		Email:   stringValue(raw["email"]),
		Picture: stringValue(raw["picture"]),
	}
	if profile.ID == "" {
		return Profile{}, errors.New("oauth: userinfo has no subject")
	}
	return profile, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// IDToken returns the id_token carried alongside tok, if any.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	id, _ := tok.Extra("id_token").(string)
	return id
}

// IsTerminal reports whether err means the presented grant or token is
// definitively invalid, as opposed to a transient transport failure.
func IsTerminal(err error) bool {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.Response == nil {
			return true
		}
		return retrieve.Response.StatusCode < 500
	}
	return errors.Is(err, ErrTokenRejected)
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func coalesce(values ...any) any {
	for _, v := range values {
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				return v
			}
		case nil:
			continue
		default:
			return v
		}
	}
	return nil
}
