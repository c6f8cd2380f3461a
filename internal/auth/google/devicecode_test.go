package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailhub/internal/auth"
)

// fakeAuthServer scripts the device-code and token endpoints. Each entry in
// tokenReplies is returned for one poll, then the last entry repeats.
type fakeAuthServer struct {
	t            *testing.T
	interval     int
	expiresIn    int
	tokenReplies []map[string]any

	mu         sync.Mutex
	pollCount  int
	pollTimes  []time.Time
	deviceHits int
}

func (f *fakeAuthServer) start() (*httptest.Server, *Service) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deviceHits++
		f.mu.Unlock()
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client-id", r.Form.Get("client_id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":      "dev-123",
			"user_code":        "WXYZ-ABCD",
			"verification_url": "https://www.google.com/device",
			"expires_in":       f.expiresIn,
			"interval":         f.interval,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, deviceGrantType, r.Form.Get("grant_type"))
		assert.Equal(f.t, "dev-123", r.Form.Get("device_code"))

		f.mu.Lock()
		idx := f.pollCount
		f.pollCount++
		f.pollTimes = append(f.pollTimes, time.Now())
		f.mu.Unlock()

		if idx >= len(f.tokenReplies) {
			idx = len(f.tokenReplies) - 1
		}
		reply := f.tokenReplies[idx]
		status := http.StatusOK
		if _, isErr := reply["error"]; isErr {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, reply)
	})

	ts := httptest.NewServer(mux)
	f.t.Cleanup(ts.Close)

	svc, err := NewService(
		WithRoot(f.t.TempDir()),
		WithEndpoints(ts.URL+"/device/code", ts.URL+"/token"),
	)
	require.NoError(f.t, err)
	return ts, svc
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAuthServer) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCount
}

func successReply() map[string]any {
	return map[string]any{
		"access_token":  "at-123",
		"refresh_token": "rt-123",
		"token_type":    "Bearer",
		"expires_in":    3600,
	}
}

func pendingReply() map[string]any {
	return map[string]any{"error": "authorization_pending"}
}

func TestDeviceCodePendingThenSuccess(t *testing.T) {
	fake := &fakeAuthServer{
		t:         t,
		interval:  1,
		expiresIn: 60,
		tokenReplies: []map[string]any{
			pendingReply(), pendingReply(), successReply(),
		},
	}
	_, svc := fake.start()

	var displayCalls int
	var gotURL, gotCode string
	err := svc.AuthenticateWithDeviceCode(context.Background(), "client-id", "client-secret", []string{"scope-a"}, "work-b",
		func(verificationURL, userCode string) {
			displayCalls++
			gotURL, gotCode = verificationURL, userCode
		})
	require.NoError(t, err)

	assert.Equal(t, 1, displayCalls, "display callback fires exactly once")
	assert.Equal(t, "https://www.google.com/device", gotURL)
	assert.Equal(t, "WXYZ-ABCD", gotCode)
	assert.Equal(t, 3, fake.polls(), "two pending answers then success means exactly three polls")

	// The persisted token is readable by a follow-up validity check.
	assert.True(t, svc.HasValidCredential(context.Background(), "client-id", "client-secret", []string{"scope-a"}, "work-b"))
}

func TestDeviceCodeSlowDownIncreasesInterval(t *testing.T) {
	fake := &fakeAuthServer{
		t:         t,
		interval:  1,
		expiresIn: 60,
		tokenReplies: []map[string]any{
			{"error": "slow_down"},
			{"error": "slow_down"},
			successReply(),
		},
	}
	_, svc := fake.start()

	start := time.Now()
	err := svc.AuthenticateWithDeviceCode(context.Background(), "client-id", "client-secret", nil, "acct", nil)
	require.NoError(t, err)

	// Intervals: 1s, then 6s, then 11s. Total at least 18s from start to
	// the final poll.
	fake.mu.Lock()
	last := fake.pollTimes[len(fake.pollTimes)-1]
	fake.mu.Unlock()
	assert.GreaterOrEqual(t, last.Sub(start), 17*time.Second,
		"third poll waits at least initial interval + 10s after two slow_down answers")
}

func TestDeviceCodeExpiresWithoutSuccess(t *testing.T) {
	fake := &fakeAuthServer{
		t:            t,
		interval:     1,
		expiresIn:    1,
		tokenReplies: []map[string]any{pendingReply()},
	}
	_, svc := fake.start()

	start := time.Now()
	err := svc.AuthenticateWithDeviceCode(context.Background(), "client-id", "client-secret", nil, "acct", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrDeviceCodeExpired)
	assert.Less(t, time.Since(start), 3*time.Second, "polling terminates close to the expiry window")
}

func TestDeviceCodeAccessDenied(t *testing.T) {
	fake := &fakeAuthServer{
		t:            t,
		interval:     1,
		expiresIn:    60,
		tokenReplies: []map[string]any{{"error": "access_denied"}},
	}
	_, svc := fake.start()

	err := svc.AuthenticateWithDeviceCode(context.Background(), "client-id", "client-secret", nil, "acct", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAccessDenied)

	var authErr *auth.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "acct", authErr.Account)
}

func TestDeviceCodeCancellation(t *testing.T) {
	fake := &fakeAuthServer{
		t:            t,
		interval:     2,
		expiresIn:    300,
		tokenReplies: []map[string]any{pendingReply()},
	}
	_, svc := fake.start()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := svc.AuthenticateWithDeviceCode(ctx, "client-id", "client-secret", nil, "acct", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCancelled)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation stops polling promptly")
}

func TestDeviceCodeTokenShapeMatchesSilentPath(t *testing.T) {
	fake := &fakeAuthServer{
		t:            t,
		interval:     1,
		expiresIn:    60,
		tokenReplies: []map[string]any{successReply()},
	}
	_, svc := fake.start()

	require.NoError(t, svc.AuthenticateWithDeviceCode(context.Background(), "client-id", "client-secret", nil, "acct", nil))

	tok, err := svc.loadToken("acct")
	require.NoError(t, err)
	assert.Equal(t, "at-123", tok.AccessToken)
	assert.Equal(t, "rt-123", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.After(time.Now()))
}
