package provider

import "time"

// ResponseStatus is the normalized attendee response vocabulary shared by
// both provider families.
type ResponseStatus string

const (
	ResponseAccepted     ResponseStatus = "accepted"
	ResponseTentative    ResponseStatus = "tentative"
	ResponseDeclined     ResponseStatus = "declined"
	ResponseNotResponded ResponseStatus = "notResponded"
)

// EmailSummary is one message in a listing. Account identifies the
// originating account so aggregated results stay attributable.
type EmailSummary struct {
	Account        string    `json:"account"`
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	From           string    `json:"from"`
	To             []string  `json:"to,omitempty"`
	Snippet        string    `json:"snippet,omitempty"`
	Received       time.Time `json:"received"`
	IsRead         bool      `json:"isRead"`
	HasAttachments bool      `json:"hasAttachments"`
	WebLink        string    `json:"webLink,omitempty"`
}

// EmailMessage is a full message including its body.
type EmailMessage struct {
	EmailSummary
	Cc       []string `json:"cc,omitempty"`
	Body     string   `json:"body"`
	BodyHTML bool     `json:"bodyHtml"`
}

// SendEmailInput is the provider-agnostic send request.
type SendEmailInput struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	HTML    bool
}

// CalendarInfo is one calendar in a listing.
type CalendarInfo struct {
	Account string `json:"account"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
	CanEdit bool   `json:"canEdit"`
}

// Attendee is one normalized event participant.
type Attendee struct {
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Response ResponseStatus `json:"response"`
	Optional bool           `json:"optional,omitempty"`
}

// Event is one normalized calendar event. Start and End are timezone-aware;
// for all-day events they are midnight UTC on the event's dates and AllDay
// is set.
type Event struct {
	Account     string         `json:"account"`
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	AllDay      bool           `json:"allDay"`
	Organizer   string         `json:"organizer,omitempty"`
	Attendees   []Attendee     `json:"attendees,omitempty"`
	MyResponse  ResponseStatus `json:"myResponse,omitempty"`
	MeetingURL  string         `json:"meetingUrl,omitempty"`
	WebLink     string         `json:"webLink,omitempty"`
}

// EventInput describes an event to create or the fields to change on an
// update. For updates, zero-valued fields are left untouched.
type EventInput struct {
	CalendarID  string
	Subject     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Attendees   []string
}
