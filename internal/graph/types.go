package graph

// EmailAddress is the Graph name/address pair used across mail and
// calendar resources.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// Recipient wraps an EmailAddress the way Graph's mail resources do.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a message or event body with its content type.
type ItemBody struct {
	ContentType string `json:"contentType,omitempty"` // "text" or "html"
	Content     string `json:"content,omitempty"`
}

// Message is the Graph mail message shape (the fields mailhub selects).
type Message struct {
	ID               string      `json:"id,omitempty"`
	Subject          string      `json:"subject,omitempty"`
	BodyPreview      string      `json:"bodyPreview,omitempty"`
	Body             *ItemBody   `json:"body,omitempty"`
	From             *Recipient  `json:"from,omitempty"`
	ToRecipients     []Recipient `json:"toRecipients,omitempty"`
	CcRecipients     []Recipient `json:"ccRecipients,omitempty"`
	BccRecipients    []Recipient `json:"bccRecipients,omitempty"`
	ReceivedDateTime string      `json:"receivedDateTime,omitempty"`
	SentDateTime     string      `json:"sentDateTime,omitempty"`
	IsRead           bool        `json:"isRead,omitempty"`
	HasAttachments   bool        `json:"hasAttachments,omitempty"`
	ConversationID   string      `json:"conversationId,omitempty"`
	WebLink          string      `json:"webLink,omitempty"`
}

type messagesResponse struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// sendMailRequest is the body of POST /me/sendMail.
type sendMailRequest struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// DateTimeTimeZone is Graph's zoned timestamp pair.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ResponseStatus carries an attendee's or the user's response to an event.
// Graph uses the vocabulary {none, organizer, tentativelyAccepted,
// accepted, declined, notResponded}.
type ResponseStatus struct {
	Response string `json:"response,omitempty"`
	Time     string `json:"time,omitempty"`
}

// Attendee is one event participant.
type Attendee struct {
	EmailAddress EmailAddress    `json:"emailAddress"`
	Status       *ResponseStatus `json:"status,omitempty"`
	Type         string          `json:"type,omitempty"` // "required", "optional", "resource"
}

// Location is an event location; mailhub only reads the display name.
type Location struct {
	DisplayName string `json:"displayName,omitempty"`
}

// OnlineMeeting carries the join link of an online event.
type OnlineMeeting struct {
	JoinURL string `json:"joinUrl,omitempty"`
}

// Event is the Graph calendar event shape (the fields mailhub selects).
type Event struct {
	ID             string            `json:"id,omitempty"`
	Subject        string            `json:"subject,omitempty"`
	BodyPreview    string            `json:"bodyPreview,omitempty"`
	Body           *ItemBody         `json:"body,omitempty"`
	Start          *DateTimeTimeZone `json:"start,omitempty"`
	End            *DateTimeTimeZone `json:"end,omitempty"`
	IsAllDay       bool              `json:"isAllDay,omitempty"`
	IsCancelled    bool              `json:"isCancelled,omitempty"`
	Location       *Location         `json:"location,omitempty"`
	Attendees      []Attendee        `json:"attendees,omitempty"`
	Organizer      *Recipient        `json:"organizer,omitempty"`
	ResponseStatus *ResponseStatus   `json:"responseStatus,omitempty"`
	OnlineMeeting  *OnlineMeeting    `json:"onlineMeeting,omitempty"`
	WebLink        string            `json:"webLink,omitempty"`
}

type eventsResponse struct {
	Value    []Event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

// Calendar is one Graph calendar list entry.
type Calendar struct {
	ID                string        `json:"id,omitempty"`
	Name              string        `json:"name,omitempty"`
	IsDefaultCalendar bool          `json:"isDefaultCalendar,omitempty"`
	CanEdit           bool          `json:"canEdit,omitempty"`
	Owner             *EmailAddress `json:"owner,omitempty"`
}

type calendarsResponse struct {
	Value    []Calendar `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

// apiError is the Graph error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
