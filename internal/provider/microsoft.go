package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/auth"
	"github.com/teemow/mailhub/internal/graph"
)

// defaultGraphScopes covers the mail and calendar surface. An account can
// narrow or extend them via the "scopes" provider config key
// (space-separated).
var defaultGraphScopes = []string{
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/Calendars.ReadWrite",
}

// microsoftService serves microsoft365 and outlook.com accounts through
// Microsoft Graph.
type microsoftService struct {
	account *accounts.AccountInfo
	tokens  microsoftTokenSource
	logger  *slog.Logger

	graphOpts []graph.Option
}

func newMicrosoftService(account *accounts.AccountInfo, tokens microsoftTokenSource, logger *slog.Logger, opts ...graph.Option) *microsoftService {
	return &microsoftService{
		account:   account,
		tokens:    tokens,
		logger:    logger.With("account", account.ID, "provider", string(account.Provider)),
		graphOpts: opts,
	}
}

func (s *microsoftService) Account() string {
	return s.account.ID
}

func (s *microsoftService) scopes() []string {
	return ScopesFor(s.account)
}

// client acquires a token silently and wraps it in a Graph client. A
// missing tenantId or clientId is a configuration error; a missing cached
// credential surfaces as auth.ErrNoCredential for the caller to handle
// per operation kind.
func (s *microsoftService) client(ctx context.Context) (*graph.Client, error) {
	tenantID, ok := s.account.Config("tenantId")
	if !ok {
		return nil, &auth.ConfigError{Account: s.account.ID, Key: "tenantId"}
	}
	clientID, ok := s.account.Config("clientId")
	if !ok {
		return nil, &auth.ConfigError{Account: s.account.ID, Key: "clientId"}
	}

	token, err := s.tokens.GetTokenSilently(ctx, tenantID, clientID, s.scopes(), s.account.ID)
	if err != nil {
		return nil, err
	}
	return graph.NewClient(token, s.graphOpts...), nil
}

// degradeRead translates a missing credential into an empty read result
// with a warning log, so one unenrolled account never blocks aggregation.
// Configuration errors pass through untouched; everything else becomes an
// APIError.
func (s *microsoftService) degradeRead(op string, err error) error {
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

func (s *microsoftService) ListEmails(ctx context.Context, maxResults int) ([]EmailSummary, error) {
	const op = "list_emails"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	msgs, err := client.ListMessages(ctx, maxResults)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	return s.emailSummaries(msgs), nil
}

func (s *microsoftService) SearchEmails(ctx context.Context, query string, maxResults int) ([]EmailSummary, error) {
	const op = "search_emails"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	msgs, err := client.SearchMessages(ctx, query, maxResults)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	return s.emailSummaries(msgs), nil
}

func (s *microsoftService) GetEmail(ctx context.Context, messageID string) (*EmailMessage, error) {
	const op = "get_email"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	msg, err := client.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	full := &EmailMessage{EmailSummary: s.emailSummary(*msg)}
	for _, r := range msg.CcRecipients {
		full.Cc = append(full.Cc, formatAddress(r.EmailAddress))
	}
	if msg.Body != nil {
		full.Body = msg.Body.Content
		full.BodyHTML = strings.EqualFold(msg.Body.ContentType, "html")
	}
	return full, nil
}

// SendEmail propagates a missing credential as an explicit failure. A
// write that appears to succeed as empty is worse than an error.
func (s *microsoftService) SendEmail(ctx context.Context, input SendEmailInput) error {
	const op = "send_email"
	client, err := s.client(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			s.logger.Warn("no credential for account, refusing to send",
				"op", op,
				"hint", "run: mailhub auth login --account "+s.account.ID)
		}
		return acquireErr(s.account.ID, op, err)
	}

	contentType := "text"
	if input.HTML {
		contentType = "html"
	}
	msg := graph.Message{
		Subject:      input.Subject,
		Body:         &graph.ItemBody{ContentType: contentType, Content: input.Body},
		ToRecipients: toRecipients(input.To),
		CcRecipients: toRecipients(input.Cc),
	}
	if len(input.Bcc) > 0 {
		msg.BccRecipients = toRecipients(input.Bcc)
	}
	if err := client.SendMail(ctx, msg); err != nil {
		return apiErr(s.account.ID, op, err)
	}
	return nil
}

func (s *microsoftService) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	const op = "list_calendars"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	cals, err := client.ListCalendars(ctx)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	infos := make([]CalendarInfo, 0, len(cals))
	for _, c := range cals {
		infos = append(infos, CalendarInfo{
			Account: s.account.ID,
			ID:      c.ID,
			Name:    c.Name,
			Primary: c.IsDefaultCalendar,
			CanEdit: c.CanEdit,
		})
	}
	return infos, nil
}

func (s *microsoftService) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]Event, error) {
	const op = "list_events"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	events, err := client.ListEvents(ctx, calendarID, start, end, maxResults)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}

	normalized := make([]Event, 0, len(events))
	for _, e := range events {
		normalized = append(normalized, s.event(e))
	}
	return normalized, nil
}

// Graph event ids are unique across all of a mailbox's calendars, so the
// calendar id is not needed to address an event on get, update, or delete.
func (s *microsoftService) GetEvent(ctx context.Context, _ string, eventID string) (*Event, error) {
	const op = "get_event"
	client, err := s.client(ctx)
	if err != nil {
		return nil, s.degradeRead(op, err)
	}
	e, err := client.GetEvent(ctx, eventID)
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(*e)
	return &event, nil
}

func (s *microsoftService) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	const op = "create_event"
	client, err := s.client(ctx)
	if err != nil {
		return nil, acquireErr(s.account.ID, op, err)
	}
	created, err := client.CreateEvent(ctx, input.CalendarID, graphEvent(input))
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(*created)
	return &event, nil
}

func (s *microsoftService) UpdateEvent(ctx context.Context, _ string, eventID string, input EventInput) (*Event, error) {
	const op = "update_event"
	client, err := s.client(ctx)
	if err != nil {
		return nil, acquireErr(s.account.ID, op, err)
	}
	updated, err := client.UpdateEvent(ctx, eventID, graphEventPatch(input))
	if err != nil {
		return nil, apiErr(s.account.ID, op, err)
	}
	event := s.event(*updated)
	return &event, nil
}

func (s *microsoftService) DeleteEvent(ctx context.Context, _ string, eventID string) error {
	const op = "delete_event"
	client, err := s.client(ctx)
	if err != nil {
		return acquireErr(s.account.ID, op, err)
	}
	if err := client.DeleteEvent(ctx, eventID); err != nil {
		return apiErr(s.account.ID, op, err)
	}
	return nil
}

func (s *microsoftService) emailSummaries(msgs []graph.Message) []EmailSummary {
	out := make([]EmailSummary, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.emailSummary(m))
	}
	return out
}

func (s *microsoftService) emailSummary(m graph.Message) EmailSummary {
	summary := EmailSummary{
		Account:        s.account.ID,
		ID:             m.ID,
		Subject:        m.Subject,
		Snippet:        m.BodyPreview,
		IsRead:         m.IsRead,
		HasAttachments: m.HasAttachments,
		WebLink:        m.WebLink,
	}
	if m.From != nil {
		summary.From = formatAddress(m.From.EmailAddress)
	}
	for _, r := range m.ToRecipients {
		summary.To = append(summary.To, formatAddress(r.EmailAddress))
	}
	if t, err := time.Parse(time.RFC3339, m.ReceivedDateTime); err == nil {
		summary.Received = t.UTC()
	}
	return summary
}

func (s *microsoftService) event(e graph.Event) Event {
	event := Event{
		Account:     s.account.ID,
		ID:          e.ID,
		Subject:     e.Subject,
		Description: e.BodyPreview,
		AllDay:      e.IsAllDay,
		WebLink:     e.WebLink,
	}
	if e.Location != nil {
		event.Location = e.Location.DisplayName
	}
	if e.Organizer != nil {
		event.Organizer = formatAddress(e.Organizer.EmailAddress)
	}
	if e.OnlineMeeting != nil {
		event.MeetingURL = e.OnlineMeeting.JoinURL
	}
	if e.ResponseStatus != nil {
		event.MyResponse = normalizeGraphResponse(e.ResponseStatus.Response)
	}
	event.Start = parseGraphTime(e.Start)
	event.End = parseGraphTime(e.End)
	for _, a := range e.Attendees {
		attendee := Attendee{
			Email:    a.EmailAddress.Address,
			Name:     a.EmailAddress.Name,
			Optional: strings.EqualFold(a.Type, "optional"),
			Response: ResponseNotResponded,
		}
		if a.Status != nil {
			attendee.Response = normalizeGraphResponse(a.Status.Response)
		}
		event.Attendees = append(event.Attendees, attendee)
	}
	return event
}

// parseGraphTime parses a Graph DateTimeTimeZone. Timestamps arrive in
// UTC because every request carries Prefer: outlook.timezone="UTC"; the
// dateTime field has no offset suffix.
func parseGraphTime(dt *graph.DateTimeTimeZone) time.Time {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, dt.DateTime); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// normalizeGraphResponse maps Graph's response vocabulary onto the shared
// one. An organizer counts as accepted.
func normalizeGraphResponse(response string) ResponseStatus {
	switch strings.ToLower(response) {
	case "accepted", "organizer":
		return ResponseAccepted
	case "tentativelyaccepted":
		return ResponseTentative
	case "declined":
		return ResponseDeclined
	default:
		return ResponseNotResponded
	}
}

func formatAddress(addr graph.EmailAddress) string {
	if addr.Name != "" && addr.Name != addr.Address {
		return addr.Name + " <" + addr.Address + ">"
	}
	return addr.Address
}

func toRecipients(addresses []string) []graph.Recipient {
	if len(addresses) == 0 {
		return nil
	}
	out := make([]graph.Recipient, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, graph.Recipient{EmailAddress: graph.EmailAddress{Address: a}})
	}
	return out
}

func graphEvent(input EventInput) graph.Event {
	e := graph.Event{
		Subject:  input.Subject,
		IsAllDay: input.AllDay,
	}
	if input.Description != "" {
		e.Body = &graph.ItemBody{ContentType: "text", Content: input.Description}
	}
	if input.Location != "" {
		e.Location = &graph.Location{DisplayName: input.Location}
	}
	if !input.Start.IsZero() {
		e.Start = graphDateTime(input.Start, input.AllDay)
	}
	if !input.End.IsZero() {
		e.End = graphDateTime(input.End, input.AllDay)
	}
	for _, a := range input.Attendees {
		e.Attendees = append(e.Attendees, graph.Attendee{
			EmailAddress: graph.EmailAddress{Address: a},
			Type:         "required",
		})
	}
	return e
}

// graphEventPatch keeps only the fields the caller set, so a PATCH does
// not blank out the rest of the event.
func graphEventPatch(input EventInput) graph.Event {
	var e graph.Event
	if input.Subject != "" {
		e.Subject = input.Subject
	}
	if input.Description != "" {
		e.Body = &graph.ItemBody{ContentType: "text", Content: input.Description}
	}
	if input.Location != "" {
		e.Location = &graph.Location{DisplayName: input.Location}
	}
	if !input.Start.IsZero() {
		e.Start = graphDateTime(input.Start, input.AllDay)
	}
	if !input.End.IsZero() {
		e.End = graphDateTime(input.End, input.AllDay)
	}
	for _, a := range input.Attendees {
		e.Attendees = append(e.Attendees, graph.Attendee{
			EmailAddress: graph.EmailAddress{Address: a},
			Type:         "required",
		})
	}
	return e
}

func graphDateTime(t time.Time, allDay bool) *graph.DateTimeTimeZone {
	t = t.UTC()
	if allDay {
		return &graph.DateTimeTimeZone{
			DateTime: t.Format("2006-01-02") + "T00:00:00",
			TimeZone: "UTC",
		}
	}
	return &graph.DateTimeTimeZone{
		DateTime: t.Format("2006-01-02T15:04:05"),
		TimeZone: "UTC",
	}
}
