package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/graph"
)

// Service is the provider-agnostic surface the tool layer calls. Every
// implementation is bound to one account.
//
// Read operations return empty results (nil slices, or nil with a nil
// error for single-item gets) when the account has no cached credential.
// Mutating operations return the credential failure instead.
type Service interface {
	Account() string

	ListEmails(ctx context.Context, maxResults int) ([]EmailSummary, error)
	SearchEmails(ctx context.Context, query string, maxResults int) ([]EmailSummary, error)
	GetEmail(ctx context.Context, messageID string) (*EmailMessage, error)
	SendEmail(ctx context.Context, input SendEmailInput) error

	ListCalendars(ctx context.Context) ([]CalendarInfo, error)
	ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error)
	CreateEvent(ctx context.Context, input EventInput) (*Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, input EventInput) (*Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// microsoftTokenSource is the slice of the Microsoft authentication
// service the provider layer needs.
type microsoftTokenSource interface {
	GetTokenSilently(ctx context.Context, tenantID, clientID string, scopes []string, accountID string) (string, error)
}

// googleTokenSource is the slice of the Google authentication service the
// provider layer needs.
type googleTokenSource interface {
	Token(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string) (*oauth2.Token, error)
}

// Factory resolves account ids to provider services. It is safe for
// concurrent use.
type Factory struct {
	registry  *accounts.Registry
	microsoft microsoftTokenSource
	google    googleTokenSource
	logger    *slog.Logger

	graphOpts  []graph.Option
	googleOpts []option.ClientOption
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger passed down to provider services.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// WithGraphOptions forwards options to every Graph client. Used by tests
// to point at a fake endpoint.
func WithGraphOptions(opts ...graph.Option) FactoryOption {
	return func(f *Factory) { f.graphOpts = opts }
}

// WithGoogleClientOptions forwards options to every Gmail and Calendar
// service. Used by tests.
func WithGoogleClientOptions(opts ...option.ClientOption) FactoryOption {
	return func(f *Factory) { f.googleOpts = opts }
}

// NewFactory creates a factory over the given registry and
// authentication services.
func NewFactory(registry *accounts.Registry, microsoft microsoftTokenSource, google googleTokenSource, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry:  registry,
		microsoft: microsoft,
		google:    google,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve looks the account up in the registry and returns the provider
// service for its provider kind. The microsoft365 and outlook.com
// providers share the Microsoft-family service; the authority they use
// differs only through the account's tenant configuration.
func (f *Factory) Resolve(accountID string) (Service, error) {
	account := f.registry.GetByID(accountID)
	if account == nil {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}

	switch {
	case account.Provider.IsMicrosoft():
		return newMicrosoftService(account, f.microsoft, f.logger, f.graphOpts...), nil
	case account.Provider == accounts.ProviderGoogle:
		return newGoogleService(account, f.google, f.logger, f.googleOpts...), nil
	default:
		return nil, fmt.Errorf("%w: %q for account %q", ErrUnsupportedProvider, account.Provider, account.ID)
	}
}
