package google

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/mailhub/internal/auth"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(append([]Option{WithRoot(t.TempDir())}, opts...)...)
	require.NoError(t, err)
	return svc
}

func freshToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-fresh",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func staleToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-stale",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}
}

func TestHasValidCredentialNoTokenFile(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.HasValidCredential(context.Background(), "id", "secret", nil, "nobody"))
}

func TestHasValidCredentialCorruptFile(t *testing.T) {
	svc := newTestService(t)
	path := svc.tokenPath("broken")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	assert.False(t, svc.HasValidCredential(context.Background(), "id", "secret", nil, "broken"))
}

func TestHasValidCredentialRefreshFailure(t *testing.T) {
	// Token endpoint rejects the refresh token; the check degrades to
	// false instead of propagating.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
	}))
	t.Cleanup(ts.Close)

	svc := newTestService(t, WithEndpoints(ts.URL+"/device/code", ts.URL+"/token"))
	require.NoError(t, svc.saveToken("stale", staleToken()))

	assert.False(t, svc.HasValidCredential(context.Background(), "id", "secret", nil, "stale"))
}

func TestHasValidCredentialFreshToken(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.saveToken("good", freshToken()))

	// Fresh token: no network call is needed, so no endpoints are wired.
	assert.True(t, svc.HasValidCredential(context.Background(), "id", "secret", nil, "good"))
}

func TestTokenSilentNoCredential(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Token(context.Background(), "id", "secret", nil, "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestTokenSilentRefreshPersists(t *testing.T) {
	var refreshCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		refreshCalls++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "access-new",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(ts.Close)

	svc := newTestService(t, WithEndpoints(ts.URL+"/device/code", ts.URL+"/token"))
	require.NoError(t, svc.saveToken("work", staleToken()))

	tok, err := svc.Token(context.Background(), "id", "secret", nil, "work")
	require.NoError(t, err)
	assert.Equal(t, "access-new", tok.AccessToken)
	assert.Equal(t, 1, refreshCalls)

	// The rotated access token was persisted, and the refresh token
	// survived the response omitting it.
	stored, err := svc.loadToken("work")
	require.NoError(t, err)
	assert.Equal(t, "access-new", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestTokenStoreIsolationPerAccount(t *testing.T) {
	// Two accounts with identical client credentials write to distinct
	// locations; refreshing one never mutates the other.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "access-refreshed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(ts.Close)

	svc := newTestService(t, WithEndpoints(ts.URL+"/device/code", ts.URL+"/token"))
	require.NoError(t, svc.saveToken("alpha", staleToken()))
	require.NoError(t, svc.saveToken("beta", freshToken()))

	assert.NotEqual(t, svc.tokenPath("alpha"), svc.tokenPath("beta"))

	_, err := svc.Token(context.Background(), "same-client", "same-secret", nil, "alpha")
	require.NoError(t, err)

	betaStored, err := svc.loadToken("beta")
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", betaStored.AccessToken, "refreshing alpha must not touch beta")
}

func TestTokenPathIsFunctionOfAccountIDOnly(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, svc.tokenPath("Work"), svc.tokenPath("work"))
	assert.Contains(t, svc.tokenPath("work"), "work")
}

func TestAuthenticateInteractiveSuccess(t *testing.T) {
	exchange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-int",
			"refresh_token": "refresh-int",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(exchange.Close)

	svc := newTestService(t, WithEndpoints(exchange.URL+"/device/code", exchange.URL+"/token"))

	// Fake browser: immediately completes the consent by hitting the
	// loopback callback with the state from the auth URL.
	svc.openBrowser = func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("redirect_uri")
		state := u.Query().Get("state")
		go func() {
			resp, err := http.Get(fmt.Sprintf("%s?state=%s&code=the-code", redirect, state))
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	err := svc.AuthenticateInteractive(context.Background(), "id", "secret", []string{"scope"}, "work")
	require.NoError(t, err)

	stored, err := svc.loadToken("work")
	require.NoError(t, err)
	assert.Equal(t, "access-int", stored.AccessToken)
}

func TestAuthenticateInteractiveUserDenies(t *testing.T) {
	svc := newTestService(t)
	svc.openBrowser = func(authURL string) error {
		u, _ := url.Parse(authURL)
		redirect := u.Query().Get("redirect_uri")
		state := u.Query().Get("state")
		go func() {
			resp, err := http.Get(fmt.Sprintf("%s?state=%s&error=access_denied", redirect, state))
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	err := svc.AuthenticateInteractive(context.Background(), "id", "secret", nil, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCancelled)
	assert.False(t, svc.hasTokenFile("work"))
}

func TestAuthenticateInteractiveContextCancelled(t *testing.T) {
	svc := newTestService(t)
	svc.openBrowser = func(string) error { return nil } // browser never completes

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := svc.AuthenticateInteractive(ctx, "id", "secret", nil, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCancelled)
}
