// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/internal/tools/google"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

type fakeGoogle struct {
	srv      *httptest.Server
	revoked  atomic.Int32
	verifier atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		f.verifier.Store(r.Form.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-123",
			"refresh_token": "refresh-456",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		f.revoked.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTool(t *testing.T, f *fakeGoogle) (*google.Tool, store.TokenStore) {
	t.Helper()
	tokens := store.NewMemoryGatewayStore().Tokens()
	tool := google.New(google.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:18790/api/v1/oauth/google_tool/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: f.srv.URL + "/token",
		},
		RevokeURL:  f.srv.URL + "/revoke",
		HTTPClient: f.srv.Client(),
	}, tokens)
	return tool, tokens
}

func call(t *testing.T, tool *google.Tool, action, caller string, params map[string]any) (map[string]any, error) {
	t.Helper()
	entry, ok := tool.Handlers().Lookup(google.Capability, action)
	require.True(t, ok, "handler %s", action)
	return entry.Handler(context.Background(), plugin.Call{
		Caller:     plugin.Caller{Identity: caller},
		Tool:       google.Name,
		Capability: google.Capability,
		Action:     action,
		Params:     params,
	})
}

func TestAuthorize_ReturnsHTTPSURL(t *testing.T) {
	tool, _ := newTool(t, newFakeGoogle(t))

	data, err := call(t, tool, "authorize", "alice", nil)
	require.NoError(t, err)

	authURL, _ := data["auth_url"].(string)
	require.True(t, strings.HasPrefix(authURL, "https://"), authURL)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, data["state"], q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "offline", q.Get("access_type"))
}

func TestAuthorize_RequiresClientID(t *testing.T) {
	tool := google.New(google.Config{}, store.NewMemoryGatewayStore().Tokens())
	_, err := call(t, tool, "authorize", "alice", nil)
	require.Error(t, err)
	assert.True(t, cherr.HasCode(err, cherr.CodeToolInputInvalid))
}

func TestDefaultEndpointIsGoogle(t *testing.T) {
	tool := google.New(google.Config{ClientID: "x"}, store.NewMemoryGatewayStore().Tokens())
	data, err := call(t, tool, "authorize", "alice", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data["auth_url"].(string), "https://accounts.google.com/"))
}

func TestCallbackStoresTokenAndStatusFlips(t *testing.T) {
	f := newFakeGoogle(t)
	tool, tokens := newTool(t, f)

	status, err := call(t, tool, "check_status", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, google.StatusNotAuthorized, status["status"])

	auth, err := call(t, tool, "authorize", "alice", nil)
	require.NoError(t, err)

	data, err := call(t, tool, "callback", "", map[string]any{"code": "good-code", "state": auth["state"]})
	require.NoError(t, err)
	assert.Equal(t, google.StatusAuthorized, data["status"])
	assert.Equal(t, "alice", data["subject"])
	assert.NotEmpty(t, f.verifier.Load(), "PKCE verifier sent to token endpoint")

	tok, err := tokens.Get(context.Background(), google.Name, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access-123", tok.AccessToken)
	assert.Equal(t, "refresh-456", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)

	status, err = call(t, tool, "check_status", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, google.StatusAuthorized, status["status"])

	// The state is single-use.
	_, err = call(t, tool, "callback", "", map[string]any{"code": "good-code", "state": auth["state"]})
	assert.True(t, cherr.HasCode(err, cherr.CodeToolAuthForbidden))
}

func TestCallbackRejections(t *testing.T) {
	tool, _ := newTool(t, newFakeGoogle(t))

	_, err := call(t, tool, "callback", "", map[string]any{"code": "good-code", "state": "forged"})
	assert.True(t, cherr.HasCode(err, cherr.CodeToolAuthForbidden))

	auth, err := call(t, tool, "authorize", "alice", nil)
	require.NoError(t, err)
	_, err = call(t, tool, "callback", "", map[string]any{"code": "bad-code", "state": auth["state"]})
	assert.True(t, cherr.HasCode(err, cherr.CodeToolUpstreamFailure))
}

func TestRevoke(t *testing.T) {
	f := newFakeGoogle(t)
	tool, tokens := newTool(t, f)
	require.NoError(t, tokens.Put(context.Background(), &store.OAuthToken{
		Tool: google.Name, Subject: "alice", AccessToken: "a", RefreshToken: "r",
	}))

	data, err := call(t, tool, "revoke", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, google.StatusNotAuthorized, data["status"])
	assert.Equal(t, int32(1), f.revoked.Load())

	_, err = tokens.Get(context.Background(), google.Name, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Revoking again is a no-op.
	_, err = call(t, tool, "revoke", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.revoked.Load())
}

func TestCheckStatus_Expired(t *testing.T) {
	tool, tokens := newTool(t, newFakeGoogle(t))
	require.NoError(t, tokens.Put(context.Background(), &store.OAuthToken{
		Tool: google.Name, Subject: "bob", AccessToken: "a", Expiry: time.Now().Add(-time.Hour),
	}))

	data, err := call(t, tool, "check_status", "bob", nil)
	require.NoError(t, err)
	assert.Equal(t, google.StatusExpired, data["status"])
}

func TestEmbeddedCardsAreValidAndBound(t *testing.T) {
	tool, _ := newTool(t, newFakeGoogle(t))

	f, err := card.ParseFile(tool.CardFile())
	require.NoError(t, err)
	require.NotEmpty(t, f.Cards)
	assert.Empty(t, card.ValidateAll(f.Cards))

	for _, c := range f.Cards {
		for _, tc := range c.ToolCalls() {
			assert.True(t, tool.Handlers().Has(tc.Capability, tc.Action), "%s references %s.%s", c.ID, tc.Capability, tc.Action)
		}
	}
}
