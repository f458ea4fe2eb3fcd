// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google implements google_tool, which manages a Google OAuth2
// connection per caller.
package google

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Name is the tool name google_tool registers under.
const Name = "google_tool"

// Capability is the single capability the tool exposes.
const Capability = "oauth2_management"

// Status values reported by check_status.
const (
	StatusAuthorized    = "authorized"
	StatusNotAuthorized = "not_authorized"
	StatusExpired       = "expired"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

//go:embed cards.yaml
var cardFile []byte

// Config configures the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint defaults to Google's.
	Endpoint  oauth2.Endpoint
	RevokeURL string
	// StateTTL bounds how long an authorize round-trip may take. Default 10m.
	StateTTL   time.Duration
	HTTPClient *http.Client
}

type pendingAuth struct {
	subject  string
	verifier string
	expires  time.Time
}

// Tool is the google_tool plugin.
type Tool struct {
	oauth     *oauth2.Config
	revokeURL string
	stateTTL  time.Duration
	client    *http.Client
	tokens    store.TokenStore
	table     *plugin.HandlerTable

	mu      sync.Mutex
	pending map[string]pendingAuth
}

// New creates the tool. Tokens are persisted in tokens.
func New(cfg Config, tokens store.TokenStore) *Tool {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email"}
	}
	t := &Tool{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		revokeURL: cfg.RevokeURL,
		stateTTL:  cfg.StateTTL,
		client:    cfg.HTTPClient,
		tokens:    tokens,
		pending:   make(map[string]pendingAuth),
	}
	if t.revokeURL == "" {
		t.revokeURL = DefaultRevokeURL
	}
	if t.stateTTL <= 0 {
		t.stateTTL = 10 * time.Minute
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}

	t.table = plugin.NewHandlerTable().
		Handle(Capability, "authorize", t.authorize).
		Handle(Capability, "callback", t.callback,
			plugin.WithSchema(
				card.Field{Name: "code", Type: card.FieldText, Required: true},
				card.Field{Name: "state", Type: card.FieldText, Required: true},
			)).
		Handle(Capability, "revoke", t.revoke).
		Handle(Capability, "check_status", t.checkStatus)
	return t
}

func (t *Tool) Name() string                   { return Name }
func (t *Tool) Handlers() *plugin.HandlerTable { return t.table }
func (t *Tool) CardFile() []byte               { return cardFile }

func (t *Tool) authorize(_ context.Context, call plugin.Call) (map[string]any, error) {
	if t.oauth.ClientID == "" {
		return nil, cherr.New(cherr.CodeToolInputInvalid, "google oauth client_id is not configured")
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	now := time.Now()

	t.mu.Lock()
	for k, p := range t.pending {
		if now.After(p.expires) {
			delete(t.pending, k)
		}
	}
	t.pending[state] = pendingAuth{subject: call.Caller.Identity, verifier: verifier, expires: now.Add(t.stateTTL)}
	t.mu.Unlock()

	authURL := t.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
	return map[string]any{
		"auth_url":   authURL,
		"state":      state,
		"expires_at": now.Add(t.stateTTL).UTC().Format(time.RFC3339),
	}, nil
}

func (t *Tool) callback(ctx context.Context, call plugin.Call) (map[string]any, error) {
	code, _ := call.Params["code"].(string)
	state, _ := call.Params["state"].(string)

	t.mu.Lock()
	p, ok := t.pending[state]
	delete(t.pending, state)
	t.mu.Unlock()
	if !ok || time.Now().After(p.expires) {
		return nil, cherr.New(cherr.CodeToolAuthForbidden, "unknown or expired oauth state")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)
	tok, err := t.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		return nil, cherr.Wrap(err, cherr.CodeToolUpstreamFailure, "exchanging authorization code")
	}

	if err := t.tokens.Put(ctx, &store.OAuthToken{
		Tool:         Name,
		Subject:      p.subject,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		Scopes:       t.oauth.Scopes,
	}); err != nil {
		return nil, cherr.Wrap(err, cherr.CodeStoreDatabaseFailure, "storing oauth token")
	}

	slog.Info("google account connected", "subject", p.subject)
	return map[string]any{"status": StatusAuthorized, "subject": p.subject}, nil
}

func (t *Tool) revoke(ctx context.Context, call plugin.Call) (map[string]any, error) {
	subject := call.Caller.Identity
	tok, err := t.tokens.Get(ctx, Name, subject)
	if err != nil {
		if isStoreNotFound(err) {
			return map[string]any{"status": StatusNotAuthorized}, nil
		}
		return nil, cherr.Wrap(err, cherr.CodeStoreDatabaseFailure, "loading oauth token")
	}

	if err := t.revokeUpstream(ctx, tok); err != nil {
		// The local token is dropped regardless.
		slog.Warn("google token revocation failed", "subject", subject, "error", err)
	}
	if err := t.tokens.Delete(ctx, Name, subject); err != nil && !isStoreNotFound(err) {
		return nil, cherr.Wrap(err, cherr.CodeStoreDatabaseFailure, "deleting oauth token")
	}
	return map[string]any{"status": StatusNotAuthorized}, nil
}

func (t *Tool) revokeUpstream(ctx context.Context, tok *store.OAuthToken) error {
	token := tok.RefreshToken
	if token == "" {
		token = tok.AccessToken
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // body is not read
	if resp.StatusCode >= 300 {
		return cherr.Errorf(cherr.CodeToolUpstreamFailure, "revoke endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (t *Tool) checkStatus(ctx context.Context, call plugin.Call) (map[string]any, error) {
	tok, err := t.tokens.Get(ctx, Name, call.Caller.Identity)
	if err != nil {
		if isStoreNotFound(err) {
			return map[string]any{"status": StatusNotAuthorized}, nil
		}
		return nil, cherr.Wrap(err, cherr.CodeStoreDatabaseFailure, "loading oauth token")
	}

	status := StatusAuthorized
	ot := &oauth2.Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
	if !ot.Valid() && tok.RefreshToken == "" {
		status = StatusExpired
	}

	out := map[string]any{"status": status, "scopes": tok.Scopes}
	if !tok.Expiry.IsZero() {
		out["expires_at"] = tok.Expiry.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
