package microsoft

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"github.com/teemow/mailhub/internal/auth"
	"github.com/teemow/mailhub/internal/logging"
)

const authorityTemplate = "https://login.microsoftonline.com/%s"

// msalClient is the slice of the MSAL public client the service uses.
// Narrowing it to an interface lets tests count and fake handle
// construction without talking to the identity platform.
type msalClient interface {
	Accounts(ctx context.Context) ([]public.Account, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error)
	DeviceCode(ctx context.Context, scopes []string) (deviceCodeFlow, error)
}

// deviceCodeFlow is one started device-code grant: the message to show the
// user and the blocking wait for their authorization.
type deviceCodeFlow interface {
	Message() string
	AuthenticationResult(ctx context.Context) (public.AuthResult, error)
}

// publicClient adapts public.Client to msalClient.
type publicClient struct {
	client public.Client
}

func (p *publicClient) Accounts(ctx context.Context) ([]public.Account, error) {
	return p.client.Accounts(ctx)
}

func (p *publicClient) AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error) {
	return p.client.AcquireTokenSilent(ctx, scopes, opts...)
}

func (p *publicClient) AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error) {
	return p.client.AcquireTokenInteractive(ctx, scopes, opts...)
}

func (p *publicClient) DeviceCode(ctx context.Context, scopes []string) (deviceCodeFlow, error) {
	dc, err := p.client.AcquireTokenByDeviceCode(ctx, scopes)
	if err != nil {
		return nil, err
	}
	return &publicDeviceCode{dc: dc}, nil
}

type publicDeviceCode struct {
	dc public.DeviceCode
}

func (d *publicDeviceCode) Message() string {
	return d.dc.Result.Message
}

func (d *publicDeviceCode) AuthenticationResult(ctx context.Context) (public.AuthResult, error) {
	return d.dc.AuthenticationResult(ctx)
}

// handleEntry carries the single-flight construction state for one
// account's client handle.
type handleEntry struct {
	once   sync.Once
	client msalClient
	err    error
}

// Service is the Microsoft-family authentication service. Client handles
// are cached per account id for the process lifetime; construction wires
// the account's disk-backed token cache.
type Service struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*handleEntry

	// newClient is swapped by tests to observe handle construction.
	newClient func(clientID, authority string, cacheAccessor *fileCache) (msalClient, error)
}

// Option configures a Service.
type Option func(*Service)

// WithRoot overrides the token cache root directory.
func WithRoot(root string) Option {
	return func(s *Service) { s.root = root }
}

// WithLogger sets the logger used for per-account diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the Microsoft authentication service. The default
// cache root is <user config dir>/mailhub.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		logger:  slog.Default(),
		handles: make(map[string]*handleEntry),
		newClient: func(clientID, authority string, cacheAccessor *fileCache) (msalClient, error) {
			client, err := public.New(clientID,
				public.WithAuthority(authority),
				public.WithCache(cacheAccessor),
			)
			if err != nil {
				return nil, err
			}
			return &publicClient{client: client}, nil
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.root == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		s.root = filepath.Join(configDir, "mailhub")
	}
	return s, nil
}

func sanitizeAccountID(accountID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, strings.ToLower(accountID))
}

// clientFor returns the account's client handle, constructing it on first
// use. Concurrent first calls for the same account observe a single
// construction; two divergent handles pointing at different cache files
// can never exist.
func (s *Service) clientFor(tenantID, clientID, accountID string) (msalClient, error) {
	key := sanitizeAccountID(accountID)

	s.mu.Lock()
	entry, ok := s.handles[key]
	if !ok {
		entry = &handleEntry{}
		s.handles[key] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		authority := fmt.Sprintf(authorityTemplate, tenantID)
		entry.client, entry.err = s.newClient(clientID, authority, newFileCache(s.root, accountID))
		if entry.err != nil {
			entry.err = fmt.Errorf("failed to create client for account %s: %w", accountID, entry.err)
		}
	})
	return entry.client, entry.err
}

// GetTokenSilently acquires an access token without any user interaction,
// transparently refreshing a stale one through the account's cached
// refresh token. It returns auth.ErrNoCredential when no cached identity
// exists or interaction is required; that is the expected re-enrollment
// path, not a fault.
func (s *Service) GetTokenSilently(ctx context.Context, tenantID, clientID string, scopes []string, accountID string) (string, error) {
	client, err := s.clientFor(tenantID, clientID, accountID)
	if err != nil {
		return "", auth.NewAuthError(accountID, "silent", err)
	}

	cached, err := client.Accounts(ctx)
	if err != nil {
		s.logger.Warn("failed to enumerate cached identities",
			logging.Account(accountID), logging.Err(err))
		return "", fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
	}
	if len(cached) == 0 {
		return "", fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
	}

	// The cache file is exclusive to this account, so the first cached
	// identity is the account's identity.
	result, err := client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(cached[0]))
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		s.logger.Debug("silent acquisition requires interaction",
			logging.Account(accountID), logging.Err(err))
		return "", fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
	}
	return result.AccessToken, nil
}

// EnrollmentResult is the outcome of a successful interactive or
// device-code enrollment. Username is safe to echo to the user;
// AccessToken is a bearer secret and must never be printed or logged.
type EnrollmentResult struct {
	AccessToken string
	Username    string
}

// AuthenticateInteractive opens the browser-based consent flow and blocks
// until the user completes or aborts it. The resulting token set persists
// to the account's cache file through the wired accessor. The provider's
// default native redirect is used so organizational and personal
// authorities both work unmodified.
func (s *Service) AuthenticateInteractive(ctx context.Context, tenantID, clientID string, scopes []string, accountID string) (EnrollmentResult, error) {
	client, err := s.clientFor(tenantID, clientID, accountID)
	if err != nil {
		return EnrollmentResult{}, auth.NewAuthError(accountID, "interactive", err)
	}

	result, err := client.AcquireTokenInteractive(ctx, scopes)
	if err != nil {
		if ctx.Err() != nil {
			return EnrollmentResult{}, fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		return EnrollmentResult{}, auth.NewAuthError(accountID, "interactive", err)
	}

	s.logger.Info("Microsoft account enrolled interactively",
		logging.Account(accountID), slog.String("user", result.Account.PreferredUsername))
	return EnrollmentResult{
		AccessToken: result.AccessToken,
		Username:    result.Account.PreferredUsername,
	}, nil
}

// AuthenticateWithDeviceCode requests a device-code grant, hands the
// user-facing instruction message to display exactly once, then blocks
// polling until the grant resolves.
func (s *Service) AuthenticateWithDeviceCode(ctx context.Context, tenantID, clientID string, scopes []string, accountID string, display func(message string)) (EnrollmentResult, error) {
	client, err := s.clientFor(tenantID, clientID, accountID)
	if err != nil {
		return EnrollmentResult{}, auth.NewAuthError(accountID, "device_code", err)
	}

	flow, err := client.DeviceCode(ctx, scopes)
	if err != nil {
		if ctx.Err() != nil {
			return EnrollmentResult{}, fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		return EnrollmentResult{}, auth.NewAuthError(accountID, "device_code", err)
	}

	if display != nil {
		display(flow.Message())
	}

	result, err := flow.AuthenticationResult(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return EnrollmentResult{}, fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		return EnrollmentResult{}, auth.NewAuthError(accountID, "device_code", err)
	}

	s.logger.Info("Microsoft account enrolled via device code",
		logging.Account(accountID), slog.String("user", result.Account.PreferredUsername))
	return EnrollmentResult{
		AccessToken: result.AccessToken,
		Username:    result.Account.PreferredUsername,
	}, nil
}

// CachePath returns the account's token cache file path. Exposed for
// operational tooling; nothing else identity-bearing is encoded in it.
func (s *Service) CachePath(accountID string) string {
	return newFileCache(s.root, accountID).path
}
