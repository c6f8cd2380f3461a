package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/auth"
)

var defaultGoogleScopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
	calendar.CalendarScope,
}

// googleService serves google accounts through the Gmail and Calendar
// APIs. Single-event operations (get, update, delete) address the
// primary calendar; Gmail message ids are global.
type googleService struct {
	account *accounts.AccountInfo
	tokens  googleTokenSource
	logger  *slog.Logger

	clientOpts []option.ClientOption
}

func newGoogleService(account *accounts.AccountInfo, tokens googleTokenSource, logger *slog.Logger, opts ...option.ClientOption) *googleService {
	return &googleService{
		account:    account,
		tokens:     tokens,
		logger:     logger.With("account", account.ID, "provider", string(account.Provider)),
		clientOpts: opts,
	}
}

func (s *googleService) Account() string {
	return s.account.ID
}

func (s *googleService) scopes() []string {
	return ScopesFor(s.account)
}

// serviceOptions acquires a token silently and returns the client options
// for the Google API services. Missing clientId or clientSecret is a
// configuration error surfaced at the point of use.
func (s *googleService) serviceOptions(ctx context.Context) ([]option.ClientOption, error) {
	clientID, ok := s.account.Config("clientId")
	if !ok {
		return nil, &auth.ConfigError{Account: s.account.ID, Key: "clientId"}
	}
	clientSecret, ok := s.account.Config("clientSecret")
	if !ok {
		return nil, &auth.ConfigError{Account: s.account.ID, Key: "clientSecret"}
	}

	token, err := s.tokens.Token(ctx, clientID, clientSecret, s.scopes(), s.account.ID)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	return append(opts, s.clientOpts...), nil
}

func (s *googleService) gmailService(ctx context.Context) (*gmail.Service, error) {
	opts, err := s.serviceOptions(ctx)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(ctx, opts...)
}

func (s *googleService) calendarService(ctx context.Context) (*calendar.Service, error) {
	opts, err := s.serviceOptions(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.NewService(ctx, opts...)
}

func (s *googleService) degradeRead(op string, err error) error {
	if errors.Is(err, auth.ErrNoCredential) {
		s.logger.Warn("no credential for account, returning empty result",
			"op", op,
			"hint", "run: mailhub auth login --account "+s.account.ID)
		return nil
	}
	var cfgErr *auth.ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	return apiErr(s.account.ID, op, err)
}

func (s *googleService) ListEmails(ctx context.Context, maxResults int) ([]EmailSummary, error) {
	return s.listEmails(ctx, "list_emails", "", maxResults)
}

func (s *googleService) SearchEmails(ctx context.Context, query string, maxResults int) ([]EmailSummary, error) {
	return s.listEmails(ctx, "search_emails", query, maxResults)
}

func (s *googleService) listEmails(ctx context.Context, op, query string, maxResults int) ([]EmailSummary, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	svc, err := s.gmailService(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}

	call := svc.Users.Messages.List("me").MaxResults(int64(maxResults)).Context(ctx)
	if query != "" {
		call = call.Q(query)
	} else {
		call = call.LabelIds("INBOX")
	}
	res, err := call.Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	summaries := make([]EmailSummary, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "To").
			Context(ctx).Do()
		if err != nil {
			return nil, apiErr(s.account.ID, op, err)
		}
		summaries = append(summaries, s.emailSummary(msg))
	}
	return summaries, nil
}

func (s *googleService) GetEmail(ctx context.Context, messageID string) (*EmailMessage, error) {
	const op = "get_email"
	svc, err := s.gmailService(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}

	msg, err := svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	full := &EmailMessage{EmailSummary: s.emailSummary(msg)}
	full.Cc = splitAddressHeader(headerValue(msg, "Cc"))
	full.Body, full.BodyHTML = extractBody(msg.Payload)
	return full, nil
}

func (s *googleService) SendEmail(ctx context.Context, input SendEmailInput) error {
	const op = "send_email"
	svc, err := s.gmailService(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			s.logger.Warn("no credential for account, refusing to send",
				"op", op,
				"hint", "run: mailhub auth login --account "+s.account.ID)
		}
		return acquireErr(s.account.ID, op, err)
	}

	raw := buildRFC822(input)
	_, err = svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return apiErr(s.account.ID, op, err)
	}
	return nil
}

func (s *googleService) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	const op = "list_calendars"
	svc, err := s.calendarService(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}

	res, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	infos := make([]CalendarInfo, 0, len(res.Items))
	for _, item := range res.Items {
		infos = append(infos, CalendarInfo{
			Account: s.account.ID,
			ID:      item.Id,
			Name:    item.Summary,
			Primary: item.Primary,
			CanEdit: item.AccessRole == "owner" || item.AccessRole == "writer",
		})
	}
	return infos, nil
}

func (s *googleService) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]Event, error) {
	const op = "list_events"
	if calendarID == "" {
		calendarID = "primary"
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	svc, err := s.calendarService(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}

	res, err := svc.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(maxResults)).
		Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, s.event(item))
	}
	return events, nil
}

func (s *googleService) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	const op = "get_event"
	svc, err := s.calendarService(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}

	item, err := svc.Events.Get(calendarOrPrimary(calendarID), eventID).Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(item)
	return &event, nil
}

func (s *googleService) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	const op = "create_event"
	svc, err := s.calendarService(ctx)
	if err != nil {
		return nil, acquireErr(s.account.ID, op, err)
	}

	created, err := svc.Events.Insert(calendarOrPrimary(input.CalendarID), googleEvent(input)).Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(created)
	return &event, nil
}

func (s *googleService) UpdateEvent(ctx context.Context, calendarID, eventID string, input EventInput) (*Event, error) {
	const op = "update_event"
	svc, err := s.calendarService(ctx)
	if err != nil {
		return nil, acquireErr(s.account.ID, op, err)
	}

	updated, err := svc.Events.Patch(calendarOrPrimary(calendarID), eventID, googleEventPatch(input)).Context(ctx).Do()
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(updated)
	return &event, nil
}

func (s *googleService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	const op = "delete_event"
	svc, err := s.calendarService(ctx)
	if err != nil {
		return acquireErr(s.account.ID, op, err)
	}

	if err := svc.Events.Delete(calendarOrPrimary(calendarID), eventID).Context(ctx).Do(); err != nil {
		return apiErr(s.account.ID, op, err)
	}
	return nil
}

// calendarOrPrimary maps an unset calendar id to the account's primary
// calendar. Event ids are only unique within a calendar on Google, so the
// caller's calendar id must reach the API call unchanged.
func calendarOrPrimary(calendarID string) string {
	if calendarID == "" {
		return "primary"
	}
	return calendarID
}

func (s *googleService) emailSummary(msg *gmail.Message) EmailSummary {
	summary := EmailSummary{
		Account: s.account.ID,
		ID:      msg.Id,
		Subject: headerValue(msg, "Subject"),
		From:    headerValue(msg, "From"),
		To:      splitAddressHeader(headerValue(msg, "To")),
		Snippet: msg.Snippet,
		IsRead:  true,
	}
	if msg.InternalDate > 0 {
		summary.Received = time.UnixMilli(msg.InternalDate).UTC()
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			summary.IsRead = false
		}
	}
	if msg.Payload != nil {
		summary.HasAttachments = hasAttachment(msg.Payload)
	}
	return summary
}

func (s *googleService) event(item *calendar.Event) Event {
	event := Event{
		Account:     s.account.ID,
		ID:          item.Id,
		Subject:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		MeetingURL:  item.HangoutLink,
		WebLink:     item.HtmlLink,
		MyResponse:  ResponseNotResponded,
	}
	if item.Organizer != nil {
		event.Organizer = item.Organizer.Email
	}
	event.Start, event.AllDay = parseGoogleTime(item.Start)
	event.End, _ = parseGoogleTime(item.End)
	for _, a := range item.Attendees {
		attendee := Attendee{
			Email:    a.Email,
			Name:     a.DisplayName,
			Response: normalizeGoogleResponse(a.ResponseStatus),
			Optional: a.Optional,
		}
		event.Attendees = append(event.Attendees, attendee)
		if a.Self {
			event.MyResponse = attendee.Response
		}
	}
	return event
}

// parseGoogleTime parses an EventDateTime. A date-only value marks an
// all-day event and lands on midnight UTC; timed values keep their
// RFC3339 offset.
func parseGoogleTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, time.UTC)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, false
}

// normalizeGoogleResponse maps Google's response vocabulary onto the
// shared one.
func normalizeGoogleResponse(status string) ResponseStatus {
	switch status {
	case "accepted":
		return ResponseAccepted
	case "tentative":
		return ResponseTentative
	case "declined":
		return ResponseDeclined
	default: // "needsAction" and anything unknown
		return ResponseNotResponded
	}
}

func googleEvent(input EventInput) *calendar.Event {
	e := &calendar.Event{
		Summary:     input.Subject,
		Description: input.Description,
		Location:    input.Location,
	}
	e.Start, e.End = googleEventTimes(input)
	for _, a := range input.Attendees {
		e.Attendees = append(e.Attendees, &calendar.EventAttendee{Email: a})
	}
	return e
}

func googleEventPatch(input EventInput) *calendar.Event {
	e := &calendar.Event{}
	if input.Subject != "" {
		e.Summary = input.Subject
	}
	if input.Description != "" {
		e.Description = input.Description
	}
	if input.Location != "" {
		e.Location = input.Location
	}
	if !input.Start.IsZero() || !input.End.IsZero() {
		e.Start, e.End = googleEventTimes(input)
	}
	for _, a := range input.Attendees {
		e.Attendees = append(e.Attendees, &calendar.EventAttendee{Email: a})
	}
	return e
}

func googleEventTimes(input EventInput) (*calendar.EventDateTime, *calendar.EventDateTime) {
	var start, end *calendar.EventDateTime
	if !input.Start.IsZero() {
		start = googleDateTime(input.Start, input.AllDay)
	}
	if !input.End.IsZero() {
		end = googleDateTime(input.End, input.AllDay)
	}
	return start, end
}

func googleDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.UTC().Format("2006-01-02")}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func splitAddressHeader(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func hasAttachment(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasAttachment(p) {
			return true
		}
	}
	return false
}

// extractBody walks the MIME tree preferring text/plain, falling back to
// text/html. The second return value reports whether the body is HTML.
func extractBody(part *gmail.MessagePart) (string, bool) {
	if part == nil {
		return "", false
	}
	if plain := findPart(part, "text/plain"); plain != "" {
		return plain, false
	}
	if html := findPart(part, "text/html"); html != "" {
		return html, true
	}
	return "", false
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		}
		if err == nil {
			return string(decoded)
		}
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// buildRFC822 assembles the wire form Gmail's send endpoint expects.
func buildRFC822(input SendEmailInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(input.To, ", "))
	if len(input.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(input.Cc, ", "))
	}
	if len(input.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\r\n", strings.Join(input.Bcc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", input.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if input.HTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(input.Body)
	return b.String()
}
