package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailhub/internal/auth"
	"github.com/teemow/mailhub/internal/logging"
)

const (
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// minPollInterval is the floor applied when the authorization server
	// does not specify a polling interval.
	minPollInterval = 5 * time.Second

	// slowDownIncrement is the interval increase mandated by RFC 8628 when
	// the server answers slow_down.
	slowDownIncrement = 5 * time.Second
)

// DeviceCodeCallback is invoked exactly once with the verification URL and
// user code the user must act on. Plain text rendering is sufficient.
type DeviceCodeCallback func(verificationURL, userCode string)

// deviceCodeResponse is the device authorization response body
// (RFC 8628 §3.2). Google uses verification_url; the standard field name
// verification_uri is accepted as a fallback.
type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

func (r *deviceCodeResponse) verificationURL() string {
	if r.VerificationURL != "" {
		return r.VerificationURL
	}
	return r.VerificationURI
}

// tokenResponse is the token endpoint response for the device grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// AuthenticateWithDeviceCode runs the RFC 8628 device authorization grant
// against the provider's device and token endpoints directly, for
// environments without a local browser.
//
// display is invoked exactly once before polling starts. Polling honors
// cooperative cancellation at each iteration boundary and stops on its own
// once the device code's expires_in window has elapsed. The persisted token
// has the exact shape the silent path reads, so a device-code credential is
// indistinguishable from an interactive one on the next validity check.
func (s *Service) AuthenticateWithDeviceCode(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string, display DeviceCodeCallback) error {
	dc, err := s.requestDeviceCode(ctx, clientID, scopes)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		}
		return auth.NewAuthError(accountID, "device_code", err)
	}

	if display != nil {
		display(dc.verificationURL(), dc.UserCode)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if dc.Interval <= 0 {
		interval = minPollInterval
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		// Cancellation is checked before each delay so a cancelled caller
		// never waits out a full poll interval.
		select {
		case <-ctx.Done():
			return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("account %s: %w", accountID, auth.ErrDeviceCodeExpired)
		}

		// Never sleep past the device code's own expiry; the wall-clock cap
		// terminates the flow even when the interval is longer.
		wait := interval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
		case <-time.After(wait):
		}

		tok, pollErr := s.pollDeviceToken(ctx, clientID, clientSecret, dc.DeviceCode)
		switch {
		case pollErr == nil:
			if err := s.saveToken(accountID, tok); err != nil {
				return auth.NewAuthError(accountID, "device_code", err)
			}
			s.logger.Info("Google account enrolled via device code",
				logging.Account(accountID))
			return nil

		case pollErr == errAuthorizationPending:
			// Keep polling at the current interval.

		case pollErr == errSlowDown:
			interval += slowDownIncrement

		case pollErr == errPollTransport:
			// Network-layer failure, distinct from protocol denial: the
			// device code may still be authorized, so keep polling until
			// it expires.
			s.logger.Warn("device-code poll transport failure; retrying",
				logging.Account(accountID))

		default:
			if ctx.Err() != nil {
				return fmt.Errorf("account %s: %w", accountID, auth.ErrCancelled)
			}
			return auth.NewAuthError(accountID, "device_code", pollErr)
		}
	}
}

// Sentinel poll outcomes internal to the device flow.
var (
	errAuthorizationPending = fmt.Errorf("authorization_pending")
	errSlowDown             = fmt.Errorf("slow_down")
	errPollTransport        = fmt.Errorf("token endpoint unreachable")
)

func (s *Service) requestDeviceCode(ctx context.Context, clientID string, scopes []string) (*deviceCodeResponse, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("scope", strings.Join(scopes, " "))

	body, err := s.postForm(ctx, s.deviceAuthURL, form)
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}

	var dc deviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, fmt.Errorf("malformed device code response: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, fmt.Errorf("device code response missing required fields")
	}
	return &dc, nil
}

// pollDeviceToken performs one poll of the token endpoint. A successful
// poll returns a persistable token; protocol-level results map onto the
// sentinel poll outcomes.
func (s *Service) pollDeviceToken(ctx context.Context, clientID, clientSecret, deviceCode string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("device_code", deviceCode)
	form.Set("grant_type", deviceGrantType)

	body, err := s.postForm(ctx, s.tokenURL, form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, auth.ErrCancelled
		}
		return nil, errPollTransport
	}

	var res tokenResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}

	switch res.Error {
	case "":
		if res.AccessToken == "" || res.RefreshToken == "" {
			return nil, fmt.Errorf("token response missing access or refresh token")
		}
		return &oauth2.Token{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			TokenType:    res.TokenType,
			Expiry:       time.Now().Add(time.Duration(res.ExpiresIn) * time.Second),
		}, nil
	case "authorization_pending":
		return nil, errAuthorizationPending
	case "slow_down":
		return nil, errSlowDown
	case "access_denied":
		return nil, auth.ErrAccessDenied
	case "expired_token":
		return nil, auth.ErrDeviceCodeExpired
	default:
		if res.ErrorDesc != "" {
			return nil, fmt.Errorf("oauth error %s: %s", res.Error, res.ErrorDesc)
		}
		return nil, fmt.Errorf("oauth error %s", res.Error)
	}
}

// postForm posts a form-encoded body and returns the response body for
// both 2xx and 4xx answers; OAuth endpoints carry protocol errors in 400
// responses.
func (s *Service) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
