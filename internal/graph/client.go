package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	// defaultTimeout bounds each Graph call.
	defaultTimeout = 30 * time.Second

	// maxPageFetches caps OData paging so a runaway nextLink chain cannot
	// loop forever.
	maxPageFetches = 20
)

// Client issues Microsoft Graph requests on behalf of one signed-in user.
// It holds the bearer token for a single call sequence; construction is
// cheap, so callers build one per operation after silent token
// acquisition.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a Graph client around an access token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx Graph response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error %d: %s", e.StatusCode, e.Message)
}

// do issues one request. Event and message timestamps are requested in UTC
// via the Prefer header so normalization has a single timezone to parse.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(data)}
		var envelope apiError
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode graph response: %w", err)
		}
	}
	return nil
}

// getPaged follows @odata.nextLink until maxResults items are collected or
// the chain ends. The extract callback appends one page and returns the
// next link.
func (c *Client) getPaged(ctx context.Context, path string, query url.Values, maxResults int, fetch func(ctx context.Context, u string) (string, int, error)) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	collected := 0
	for i := 0; i < maxPageFetches; i++ {
		next, n, err := fetch(ctx, u)
		if err != nil {
			return err
		}
		collected += n
		if next == "" || (maxResults > 0 && collected >= maxResults) {
			return nil
		}
		u = next
	}
	return nil
}

// getURL is do() against an absolute URL, used to follow nextLinks.
func (c *Client) getURL(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(data)}
		var envelope apiError
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	return json.Unmarshal(data, out)
}

const messageSelect = "id,subject,bodyPreview,from,toRecipients,ccRecipients,receivedDateTime,sentDateTime,isRead,hasAttachments,conversationId,webLink"

// ListMessages returns up to maxResults messages from the user's inbox,
// newest first.
func (c *Client) ListMessages(ctx context.Context, maxResults int) ([]Message, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("$top", strconv.Itoa(maxResults))
	query.Set("$orderby", "receivedDateTime desc")
	query.Set("$select", messageSelect)

	var messages []Message
	err := c.getPaged(ctx, "/me/mailFolders/inbox/messages", query, maxResults,
		func(ctx context.Context, u string) (string, int, error) {
			var page messagesResponse
			if err := c.getURL(ctx, u, &page); err != nil {
				return "", 0, err
			}
			messages = append(messages, page.Value...)
			return page.NextLink, len(page.Value), nil
		})
	if err != nil {
		return nil, err
	}
	if len(messages) > maxResults {
		messages = messages[:maxResults]
	}
	return messages, nil
}

// SearchMessages runs a Graph $search over the whole mailbox. Graph
// forbids $orderby together with $search, so results come back in
// relevance order.
func (c *Client) SearchMessages(ctx context.Context, search string, maxResults int) ([]Message, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("$top", strconv.Itoa(maxResults))
	query.Set("$search", fmt.Sprintf("%q", search))
	query.Set("$select", messageSelect)

	var page messagesResponse
	if err := c.do(ctx, http.MethodGet, "/me/messages", query, nil, &page); err != nil {
		return nil, err
	}
	if len(page.Value) > maxResults {
		page.Value = page.Value[:maxResults]
	}
	return page.Value, nil
}

// GetMessage retrieves one message with its full body.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodGet, "/me/messages/"+url.PathEscape(messageID), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMail sends a message and saves it to Sent Items. Graph answers 202
// with an empty body on success.
func (c *Client) SendMail(ctx context.Context, msg Message) error {
	body := sendMailRequest{Message: msg, SaveToSentItems: true}
	return c.do(ctx, http.MethodPost, "/me/sendMail", nil, body, nil)
}

// ListCalendars returns the user's calendars.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var calendars []Calendar
	err := c.getPaged(ctx, "/me/calendars", nil, 0,
		func(ctx context.Context, u string) (string, int, error) {
			var page calendarsResponse
			if err := c.getURL(ctx, u, &page); err != nil {
				return "", 0, err
			}
			calendars = append(calendars, page.Value...)
			return page.NextLink, len(page.Value), nil
		})
	if err != nil {
		return nil, err
	}
	return calendars, nil
}

// eventsPath returns the events collection path for a calendar; an empty
// calendarID means the default calendar.
func eventsPath(calendarID string) string {
	if calendarID == "" {
		return "/me/events"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/events"
}

// ListEvents returns the expanded event instances in [start, end) using
// the calendarView, so recurring events appear as individual occurrences.
func (c *Client) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	path := "/me/calendarView"
	if calendarID != "" {
		path = "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
	}

	query := url.Values{}
	query.Set("startDateTime", start.UTC().Format(time.RFC3339))
	query.Set("endDateTime", end.UTC().Format(time.RFC3339))
	query.Set("$top", strconv.Itoa(maxResults))
	query.Set("$orderby", "start/dateTime")

	var events []Event
	err := c.getPaged(ctx, path, query, maxResults,
		func(ctx context.Context, u string) (string, int, error) {
			var page eventsResponse
			if err := c.getURL(ctx, u, &page); err != nil {
				return "", 0, err
			}
			events = append(events, page.Value...)
			return page.NextLink, len(page.Value), nil
		})
	if err != nil {
		return nil, err
	}
	if len(events) > maxResults {
		events = events[:maxResults]
	}
	return events, nil
}

// GetEvent retrieves one event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var event Event
	if err := c.do(ctx, http.MethodGet, "/me/events/"+url.PathEscape(eventID), nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent creates an event in the given calendar (default calendar
// when calendarID is empty) and returns the created resource.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	var created Event
	if err := c.do(ctx, http.MethodPost, eventsPath(calendarID), nil, event, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEvent patches an event and returns the updated resource.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch Event) (*Event, error) {
	var updated Event
	if err := c.do(ctx, http.MethodPatch, "/me/events/"+url.PathEscape(eventID), nil, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEvent removes an event. Graph answers 204 on success.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/me/events/"+url.PathEscape(eventID), nil, nil, nil)
}
