package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/mailhub/internal/auth"
	"github.com/teemow/mailhub/internal/logging"
)

const (
	// defaultHTTPTimeout bounds each call to the token endpoints so a dead
	// network cannot hang a poll cycle.
	defaultHTTPTimeout = 30 * time.Second

	// interactiveTimeout caps how long we wait for the user to complete the
	// browser consent flow.
	interactiveTimeout = 5 * time.Minute
)

// Service is the Google-family authentication service. One instance serves
// every configured Google account; per-account state lives on disk under
// the service root and in the per-account refresh locks.
type Service struct {
	root   string
	logger *slog.Logger

	httpClient    *http.Client
	deviceAuthURL string
	tokenURL      string
	endpoint      oauth2.Endpoint
	openBrowser   func(url string) error
	listenAddr    string

	mu      sync.Mutex
	refresh map[string]*sync.Mutex // per-account silent-acquire locks
}

// Option configures a Service.
type Option func(*Service)

// WithRoot overrides the credential store root directory.
func WithRoot(root string) Option {
	return func(s *Service) { s.root = root }
}

// WithLogger sets the logger used for per-account diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithHTTPClient overrides the HTTP client used for token endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.httpClient = client }
}

// WithEndpoints overrides the device authorization and token endpoints.
// Used by tests to point the service at a fake authorization server.
func WithEndpoints(deviceAuthURL, tokenURL string) Option {
	return func(s *Service) {
		s.deviceAuthURL = deviceAuthURL
		s.tokenURL = tokenURL
		s.endpoint = oauth2.Endpoint{AuthURL: s.endpoint.AuthURL, TokenURL: tokenURL}
	}
}

// WithBrowserOpener overrides how the interactive flow launches the
// system browser.
func WithBrowserOpener(open func(url string) error) Option {
	return func(s *Service) { s.openBrowser = open }
}

// NewService creates the Google authentication service. The default
// credential root is <user config dir>/mailhub/google.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		logger:        slog.Default(),
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		deviceAuthURL: "https://oauth2.googleapis.com/device/code",
		tokenURL:      googleoauth.Endpoint.TokenURL,
		endpoint:      googleoauth.Endpoint,
		openBrowser:   browser.OpenURL,
		listenAddr:    "127.0.0.1:0",
		refresh:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.root == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		s.root = filepath.Join(configDir, "mailhub", "google")
	}
	return s, nil
}

// refreshLock returns the mutex serializing silent acquisition for one
// account, so concurrent refreshes cannot race on the token file.
func (s *Service) refreshLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeAccountID(accountID)
	if mu, ok := s.refresh[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.refresh[key] = mu
	return mu
}

func (s *Service) oauthConfig(clientID, clientSecret string, scopes []string, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// Token silently acquires a usable token for the account, refreshing via
// the refresh token when the access token is stale and persisting the
// refreshed token. Returns auth.ErrNoCredential when nothing usable exists;
// it never prompts the user.
func (s *Service) Token(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string) (*oauth2.Token, error) {
	mu := s.refreshLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := s.loadToken(accountID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
		}
		s.logger.Warn("stored Google token unreadable",
			logging.Account(accountID), logging.Err(err))
		return nil, fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
	}

	conf := s.oauthConfig(clientID, clientSecret, scopes, "")
	fresh, err := conf.TokenSource(ctx, stored).Token()
	if err != nil {
		if auth.IsCancelled(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("silent acquisition: %w", auth.ErrCancelled)
		}
		s.logger.Warn("Google token refresh failed",
			logging.Account(accountID), logging.Err(err))
		return nil, fmt.Errorf("account %s: %w", accountID, auth.ErrNoCredential)
	}

	// Persist rotated tokens so the next process start refreshes from the
	// newest refresh token.
	if fresh.AccessToken != stored.AccessToken || fresh.RefreshToken != stored.RefreshToken {
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = stored.RefreshToken
		}
		if err := s.saveToken(accountID, fresh); err != nil {
			s.logger.Warn("failed to persist refreshed Google token",
				logging.Account(accountID), logging.Err(err))
		}
	}
	return fresh, nil
}

// HasValidCredential reports whether the account holds a token that is
// fresh or freshly refreshable. It checks file existence before touching
// the network and treats every error as "not valid"; validity checks never
// propagate failures.
func (s *Service) HasValidCredential(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string) bool {
	if !s.hasTokenFile(accountID) {
		return false
	}
	_, err := s.Token(ctx, clientID, clientSecret, scopes, accountID)
	return err == nil
}

// AuthenticateInteractive runs the loopback browser consent flow and
// persists the resulting token in the account's credential directory. It
// blocks until the user completes or aborts the flow. A user abort yields
// auth.ErrCancelled; other failures yield an *auth.AuthError.
func (s *Service) AuthenticateInteractive(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return auth.NewAuthError(accountID, "interactive", fmt.Errorf("failed to start loopback listener: %w", err))
	}

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	conf := s.oauthConfig(clientID, clientSecret, scopes, redirectURL)
	state := randomState()

	type callbackResult struct {
		code string
		err  error
	}
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			results <- callbackResult{err: fmt.Errorf("state mismatch in OAuth callback")}
			http.Error(w, "state mismatch", http.StatusBadRequest)
		case q.Get("error") == "access_denied":
			results <- callbackResult{err: auth.ErrCancelled}
			fmt.Fprint(w, "Authorization was denied. You can close this window.")
		case q.Get("error") != "":
			results <- callbackResult{err: fmt.Errorf("oauth error: %s", q.Get("error"))}
			fmt.Fprintf(w, "Authorization failed: %s", q.Get("error"))
		default:
			results <- callbackResult{code: q.Get("code")}
			fmt.Fprint(w, "Authorization complete. You can close this window and return to mailhub.")
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			results <- callbackResult{err: fmt.Errorf("callback server error: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	s.logger.Info("opening browser for Google consent",
		logging.Account(accountID))
	if err := s.openBrowser(authURL); err != nil {
		return auth.NewAuthError(accountID, "interactive", fmt.Errorf("failed to open browser: %w", err))
	}

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			if auth.IsCancelled(res.err) {
				return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
			}
			return auth.NewAuthError(accountID, "interactive", res.err)
		}
		code = res.code
	case <-ctx.Done():
		return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
	case <-time.After(interactiveTimeout):
		return auth.NewAuthError(accountID, "interactive", fmt.Errorf("consent flow timed out"))
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		return auth.NewAuthError(accountID, "interactive", fmt.Errorf("token exchange failed: %w", err))
	}

	if err := s.saveToken(accountID, token); err != nil {
		return auth.NewAuthError(accountID, "interactive", err)
	}

	s.logger.Info("Google account enrolled interactively",
		logging.Account(accountID))
	return nil
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
