package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailhub/internal/auth"
)

func googleToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: "at-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
}

func googleFactory(t *testing.T, tokens *fakeGoogleTokens, handler http.Handler) *Factory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFactory(testRegistry(), &fakeMicrosoftTokens{}, tokens,
		WithGoogleClientOptions(option.WithEndpoint(srv.URL)))
}

func resolveGoogle(t *testing.T, f *Factory) Service {
	t.Helper()
	svc, err := f.Resolve("home")
	require.NoError(t, err)
	return svc
}

func TestGoogleListEmailsNormalizes(t *testing.T) {
	tokens := &fakeGoogleTokens{token: googleToken()}
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "g1"}},
			})
		case strings.HasSuffix(r.URL.Path, "/users/me/messages/g1"):
			assert.Equal(t, "metadata", r.URL.Query().Get("format"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           "g1",
				"snippet":      "lunch on thursday?",
				"internalDate": "1743500000000",
				"labelIds":     []string{"INBOX", "UNREAD"},
				"payload": map[string]any{
					"headers": []map[string]string{
						{"name": "Subject", "value": "lunch"},
						{"name": "From", "value": "Alice <alice@example.com>"},
						{"name": "To", "value": "me@example.com, you@example.com"},
					},
				},
			})
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	got, err := resolveGoogle(t, f).ListEmails(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, "home", m.Account)
	assert.Equal(t, "lunch", m.Subject)
	assert.Equal(t, "Alice <alice@example.com>", m.From)
	assert.Equal(t, []string{"me@example.com", "you@example.com"}, m.To)
	assert.Equal(t, time.UnixMilli(1743500000000).UTC(), m.Received)
	assert.False(t, m.IsRead)
}

func TestGoogleReadDegradesWithoutCredential(t *testing.T) {
	tokens := &fakeGoogleTokens{err: auth.ErrNoCredential}
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a credential")
	}))

	svc := resolveGoogle(t, f)

	emails, err := svc.ListEmails(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, emails)

	cals, err := svc.ListCalendars(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cals)
}

func TestGoogleSendEmailPropagatesNoCredential(t *testing.T) {
	tokens := &fakeGoogleTokens{err: auth.ErrNoCredential}
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a credential")
	}))

	err := resolveGoogle(t, f).SendEmail(context.Background(), SendEmailInput{
		To: []string{"bob@example.com"}, Subject: "x", Body: "y",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNoCredential)
	assert.Contains(t, err.Error(), "home")
}

func TestGoogleMissingClientSecret(t *testing.T) {
	registry := testRegistry()
	delete(registry.GetByID("home").ProviderConfig, "clientsecret")

	f := NewFactory(registry, &fakeMicrosoftTokens{}, &fakeGoogleTokens{token: googleToken()})
	svc, err := f.Resolve("home")
	require.NoError(t, err)

	_, err = svc.ListEmails(context.Background(), 5)
	require.Error(t, err)

	var cfgErr *auth.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "clientSecret", cfgErr.Key)
}

func TestGoogleSendEmailWireFormat(t *testing.T) {
	tokens := &fakeGoogleTokens{token: googleToken()}
	var raw string
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/send"), r.URL.Path)
		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw = body.Raw
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sent-1"})
	}))

	err := resolveGoogle(t, f).SendEmail(context.Background(), SendEmailInput{
		To:      []string{"bob@example.com"},
		Cc:      []string{"carol@example.com"},
		Subject: "status",
		Body:    "all good",
	})
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	wire := string(decoded)
	assert.Contains(t, wire, "To: bob@example.com\r\n")
	assert.Contains(t, wire, "Cc: carol@example.com\r\n")
	assert.Contains(t, wire, "Subject: status\r\n")
	assert.Contains(t, wire, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(wire, "\r\nall good"))
}

func TestGoogleListCalendars(t *testing.T) {
	tokens := &fakeGoogleTokens{token: googleToken()}
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/users/me/calendarList"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "primary-id", "summary": "Home", "primary": true, "accessRole": "owner"},
				{"id": "shared-id", "summary": "Team", "accessRole": "reader"},
			},
		})
	}))

	got, err := resolveGoogle(t, f).ListCalendars(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Primary)
	assert.True(t, got[0].CanEdit)
	assert.False(t, got[1].CanEdit)
	assert.Equal(t, "home", got[1].Account)
}

func TestGoogleEventOpsTargetRequestedCalendar(t *testing.T) {
	tokens := &fakeGoogleTokens{token: googleToken()}
	var paths []string
	f := googleFactory(t, tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "ev1",
			"summary": "standup",
			"start":   map[string]string{"dateTime": "2026-03-02T09:00:00Z"},
			"end":     map[string]string{"dateTime": "2026-03-02T09:15:00Z"},
		})
	}))

	svc := resolveGoogle(t, f)

	_, err := svc.GetEvent(context.Background(), "team", "ev1")
	require.NoError(t, err)
	_, err = svc.UpdateEvent(context.Background(), "team", "ev1", EventInput{Subject: "standup"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEvent(context.Background(), "team", "ev1"))

	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.Contains(t, p, "/calendars/team/events/ev1", p)
	}

	// An unset calendar id still addresses the primary calendar.
	_, err = svc.GetEvent(context.Background(), "", "ev1")
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Contains(t, paths[3], "/calendars/primary/events/ev1")
}

func TestGoogleEventNormalization(t *testing.T) {
	registry := testRegistry()
	svc := newGoogleService(registry.GetByID("home"), &fakeGoogleTokens{}, slog.Default())

	got := svc.event(&calendar.Event{
		Id:          "e1",
		Summary:     "dentist",
		HangoutLink: "https://meet.example.com/abc",
		Organizer:   &calendar.EventOrganizer{Email: "alice@example.com"},
		Start:       &calendar.EventDateTime{DateTime: "2025-04-02T09:00:00+02:00"},
		End:         &calendar.EventDateTime{DateTime: "2025-04-02T09:30:00+02:00"},
		Attendees: []*calendar.EventAttendee{
			{Email: "me@example.com", Self: true, ResponseStatus: "tentative"},
			{Email: "bob@example.com", ResponseStatus: "needsAction", Optional: true},
		},
	})

	assert.Equal(t, "home", got.Account)
	assert.False(t, got.AllDay)
	// The RFC3339 offset is preserved rather than flattened to UTC.
	assert.Equal(t, "2025-04-02T09:00:00+02:00", got.Start.Format(time.RFC3339))
	assert.Equal(t, ResponseTentative, got.MyResponse)
	require.Len(t, got.Attendees, 2)
	assert.Equal(t, ResponseNotResponded, got.Attendees[1].Response)
	assert.True(t, got.Attendees[1].Optional)
	assert.Equal(t, "https://meet.example.com/abc", got.MeetingURL)

	allDay := svc.event(&calendar.Event{
		Id:    "e2",
		Start: &calendar.EventDateTime{Date: "2025-04-03"},
		End:   &calendar.EventDateTime{Date: "2025-04-04"},
	})
	assert.True(t, allDay.AllDay)
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), allDay.Start)
}

func TestExtractBodyPrefersPlainText(t *testing.T) {
	encode := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	body, html := extractBody(&gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>hi</p>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("hi")}},
		},
	})
	assert.Equal(t, "hi", body)
	assert.False(t, html)

	body, html = extractBody(&gmail.MessagePart{
		MimeType: "text/html",
		Body:     &gmail.MessagePartBody{Data: encode("<p>only html</p>")},
	})
	assert.Equal(t, "<p>only html</p>", body)
	assert.True(t, html)
}
