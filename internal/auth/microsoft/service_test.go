package microsoft

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailhub/internal/auth"
)

// fakeClient scripts the MSAL surface for tests.
type fakeClient struct {
	accounts     []public.Account
	silentResult public.AuthResult
	silentErr    error

	interactiveResult public.AuthResult
	interactiveErr    error

	deviceMessage string
	deviceResult  public.AuthResult
	deviceErr     error

	silentCalls atomic.Int64
}

func (f *fakeClient) Accounts(ctx context.Context) ([]public.Account, error) {
	return f.accounts, nil
}

func (f *fakeClient) AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error) {
	f.silentCalls.Add(1)
	return f.silentResult, f.silentErr
}

func (f *fakeClient) AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error) {
	if ctx.Err() != nil {
		return public.AuthResult{}, ctx.Err()
	}
	return f.interactiveResult, f.interactiveErr
}

func (f *fakeClient) DeviceCode(ctx context.Context, scopes []string) (deviceCodeFlow, error) {
	return &fakeDeviceFlow{client: f}, nil
}

type fakeDeviceFlow struct {
	client *fakeClient
}

func (d *fakeDeviceFlow) Message() string {
	return d.client.deviceMessage
}

func (d *fakeDeviceFlow) AuthenticationResult(ctx context.Context) (public.AuthResult, error) {
	if ctx.Err() != nil {
		return public.AuthResult{}, ctx.Err()
	}
	return d.client.deviceResult, d.client.deviceErr
}

// newFakeService returns a service whose handle constructor hands out the
// given fake per account id and counts constructions.
func newFakeService(t *testing.T, clients map[string]*fakeClient) (*Service, *atomic.Int64) {
	t.Helper()
	svc, err := NewService(WithRoot(t.TempDir()))
	require.NoError(t, err)

	var constructions atomic.Int64
	svc.newClient = func(clientID, authority string, cacheAccessor *fileCache) (msalClient, error) {
		constructions.Add(1)
		for id, fc := range clients {
			if cacheAccessor.path == svc.CachePath(id) {
				return fc, nil
			}
		}
		return &fakeClient{}, nil
	}
	return svc, &constructions
}

func authResult(token, username string) public.AuthResult {
	res := public.AuthResult{AccessToken: token}
	res.Account.PreferredUsername = username
	return res
}

func TestGetTokenSilentlyNoCachedIdentity(t *testing.T) {
	svc, _ := newFakeService(t, map[string]*fakeClient{
		"work": {accounts: nil},
	})

	_, err := svc.GetTokenSilently(context.Background(), "tenant", "client", nil, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestGetTokenSilentlyCacheHit(t *testing.T) {
	fc := &fakeClient{
		accounts:     []public.Account{{HomeAccountID: "home-1"}},
		silentResult: authResult("token-abc", "user@example.com"),
	}
	svc, _ := newFakeService(t, map[string]*fakeClient{"work": fc})

	token, err := svc.GetTokenSilently(context.Background(), "tenant", "client", []string{"Mail.Read"}, "work")
	require.NoError(t, err)
	assert.Equal(t, "token-abc", token)
	assert.Equal(t, int64(1), fc.silentCalls.Load())
}

func TestGetTokenSilentlyInteractionRequired(t *testing.T) {
	fc := &fakeClient{
		accounts:  []public.Account{{HomeAccountID: "home-1"}},
		silentErr: errors.New("AADSTS50076: interaction required"),
	}
	svc, _ := newFakeService(t, map[string]*fakeClient{"work": fc})

	_, err := svc.GetTokenSilently(context.Background(), "tenant", "client", nil, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNoCredential, "interaction-required is the re-enrollment path, not a fault")
}

func TestClientHandleConstructedOncePerAccount(t *testing.T) {
	svc, constructions := newFakeService(t, map[string]*fakeClient{
		"work": {accounts: []public.Account{{}}, silentResult: authResult("tok", "u")},
	})

	// Concurrent first-use calls for the same never-seen account.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.GetTokenSilently(context.Background(), "tenant", "client", nil, "work")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), constructions.Load(), "exactly one handle constructed under concurrent first use")

	// Case variants of the id share the same handle.
	_, _ = svc.GetTokenSilently(context.Background(), "tenant", "client", nil, "WORK")
	assert.Equal(t, int64(1), constructions.Load())
}

func TestHandlesIsolatedPerAccount(t *testing.T) {
	svc, constructions := newFakeService(t, map[string]*fakeClient{
		"a": {accounts: []public.Account{{}}, silentResult: authResult("tok-a", "a@x")},
		"b": {accounts: []public.Account{{}}, silentResult: authResult("tok-b", "b@x")},
	})

	tokA, err := svc.GetTokenSilently(context.Background(), "tenant", "same-client", nil, "a")
	require.NoError(t, err)
	tokB, err := svc.GetTokenSilently(context.Background(), "tenant", "same-client", nil, "b")
	require.NoError(t, err)

	assert.Equal(t, "tok-a", tokA)
	assert.Equal(t, "tok-b", tokB)
	assert.Equal(t, int64(2), constructions.Load())
	assert.NotEqual(t, svc.CachePath("a"), svc.CachePath("b"),
		"identical client ids still get distinct cache files")
}

func TestAuthenticateInteractiveSuccess(t *testing.T) {
	svc, _ := newFakeService(t, map[string]*fakeClient{
		"work": {interactiveResult: authResult("tok-int", "user@example.com")},
	})

	enrolled, err := svc.AuthenticateInteractive(context.Background(), "tenant", "client", []string{"Mail.Read"}, "work")
	require.NoError(t, err)
	assert.Equal(t, "tok-int", enrolled.AccessToken)
	assert.Equal(t, "user@example.com", enrolled.Username,
		"username is the display identity, not the token")
}

func TestAuthenticateInteractiveCancelled(t *testing.T) {
	svc, _ := newFakeService(t, map[string]*fakeClient{"work": {}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AuthenticateInteractive(ctx, "tenant", "client", nil, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCancelled)
}

func TestAuthenticateInteractiveFailureCarriesAccount(t *testing.T) {
	svc, _ := newFakeService(t, map[string]*fakeClient{
		"work": {interactiveErr: errors.New("AADSTS65001: consent declined")},
	})

	_, err := svc.AuthenticateInteractive(context.Background(), "tenant", "client", nil, "work")
	require.Error(t, err)

	var authErr *auth.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "work", authErr.Account)
}

func TestAuthenticateWithDeviceCode(t *testing.T) {
	svc, _ := newFakeService(t, map[string]*fakeClient{
		"work": {
			deviceMessage: "To sign in, use a web browser to open https://microsoft.com/devicelogin and enter the code ABCD1234.",
			deviceResult:  authResult("tok-dev", "user@example.com"),
		},
	})

	var messages []string
	enrolled, err := svc.AuthenticateWithDeviceCode(context.Background(), "tenant", "client", nil, "work",
		func(message string) { messages = append(messages, message) })
	require.NoError(t, err)

	assert.Equal(t, "tok-dev", enrolled.AccessToken)
	assert.Equal(t, "user@example.com", enrolled.Username)
	require.Len(t, messages, 1, "display callback fires exactly once")
	assert.Contains(t, messages[0], "ABCD1234")
}

func TestCachePathEmbedsAccountID(t *testing.T) {
	svc, err := NewService(WithRoot(t.TempDir()))
	require.NoError(t, err)

	path := svc.CachePath("Work-A")
	assert.Contains(t, path, "msal-work-a.json")
	assert.Equal(t, svc.CachePath("work-a"), path)

	// Path separators in ids cannot escape the cache root.
	assert.Contains(t, svc.CachePath("evil/../id"), "msal-evil-..-id.json")
}
