package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailhub/internal/logging"
	"github.com/teemow/mailhub/internal/provider"
	"github.com/teemow/mailhub/internal/server"
	"github.com/teemow/mailhub/internal/tools/common"
)

const defaultMaxEvents = 50

// RegisterEventTools registers event tools with the MCP server. The
// mutating tools are skipped in read-only mode.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List events tool (read-only, always available)
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events within a time range across all configured accounts"),
		mcp.WithString("account",
			mcp.Description("Account id to restrict the listing to. Omit to aggregate all enabled accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar id. Defaults to the account's primary calendar."),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range (RFC3339, e.g. '2026-01-01T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range (RFC3339, e.g. '2026-01-31T23:59:59Z')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events per account (default: %d)", defaultMaxEvents)),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandler(
		"calendar_list_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	// Get event tool
	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get details of a specific calendar event"),
		mcp.WithString("account",
			mcp.Description("Account id the event belongs to. Required when multiple accounts are enabled."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar id the event lives in. Defaults to the account's primary calendar."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The id of the event to retrieve"),
		),
	)

	s.AddTool(getEventTool, common.InstrumentedToolHandler(
		"calendar_get_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	// Create event tool
	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new calendar event"),
		mcp.WithString("account",
			mcp.Description("Account id to create the event on. Required when multiple accounts are enabled."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar id. Defaults to the account's primary calendar."),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, e.g. '2026-01-15T14:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339, e.g. '2026-01-15T15:00:00Z')"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as an all-day event (only the date portion of start/end is used)"),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandler(
		"calendar_create_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	// Update event tool
	updateEventTool := mcp.NewTool("calendar_update_event",
		mcp.WithDescription("Update an existing calendar event"),
		mcp.WithString("account",
			mcp.Description("Account id the event belongs to. Required when multiple accounts are enabled."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar id the event lives in. Defaults to the account's primary calendar."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The id of the event to update"),
		),
		mcp.WithString("subject",
			mcp.Description("New event title"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339)"),
		),
		mcp.WithString("end",
			mcp.Description("New end time (RFC3339)"),
		),
		mcp.WithString("attendees",
			mcp.Description("New comma-separated list of attendee email addresses"),
		),
	)

	s.AddTool(updateEventTool, common.InstrumentedToolHandler(
		"calendar_update_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	// Delete event tool
	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("account",
			mcp.Description("Account id the event belongs to. Required when multiple accounts are enabled."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar id the event lives in. Defaults to the account's primary calendar."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The id of the event to delete"),
		),
	)

	s.AddTool(deleteEventTool, common.InstrumentedToolHandler(
		"calendar_delete_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	timeMin, errResult := requiredTime(args, "timeMin")
	if errResult != nil {
		return errResult, nil
	}
	timeMax, errResult := requiredTime(args, "timeMax")
	if errResult != nil {
		return errResult, nil
	}

	calendarID := calendarIDFromArgs(args)

	maxResults := defaultMaxEvents
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	targets, err := common.EnabledAccounts(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var events []provider.Event
	for _, account := range targets {
		svc, err := sc.Resolve(account.ID)
		if err != nil {
			sc.Logger().Warn("skipping account",
				logging.Account(account.ID),
				logging.Err(err))
			continue
		}

		list, err := svc.ListEvents(ctx, calendarID, timeMin, timeMax, maxResults)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events for account %s: %v", account.ID, err)), nil
		}
		events = append(events, list...)
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No events found"), nil
	}

	result := fmt.Sprintf("Found %d event(s):\n\n", len(events))
	for i, event := range events {
		result += fmt.Sprintf("%d. %s\n", i+1, event.Subject)
		result += fmt.Sprintf("   Account: %s\n", event.Account)
		result += fmt.Sprintf("   ID: %s\n", event.ID)
		result += formatEventTimes(event)
		if event.Location != "" {
			result += fmt.Sprintf("   Location: %s\n", event.Location)
		}
		if event.MeetingURL != "" {
			result += fmt.Sprintf("   Meeting: %s\n", event.MeetingURL)
		}
		if len(event.Attendees) > 0 {
			result += fmt.Sprintf("   Attendees: %d\n", len(event.Attendees))
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := svc.GetEvent(ctx, calendarIDFromArgs(args), eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get event: %v", err)), nil
	}
	if event == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No event %s available on account %s (missing event or missing credential)", eventID, account.ID)), nil
	}

	result := fmt.Sprintf("Event: %s\n", event.Subject)
	result += fmt.Sprintf("Account: %s\n", event.Account)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += formatEventTimes(*event)
	if event.Description != "" {
		result += fmt.Sprintf("Description: %s\n", event.Description)
	}
	if event.Location != "" {
		result += fmt.Sprintf("Location: %s\n", event.Location)
	}
	if event.Organizer != "" {
		result += fmt.Sprintf("Organizer: %s\n", event.Organizer)
	}
	if event.MyResponse != "" {
		result += fmt.Sprintf("My response: %s\n", event.MyResponse)
	}
	if event.MeetingURL != "" {
		result += fmt.Sprintf("Meeting: %s\n", event.MeetingURL)
	}

	if len(event.Attendees) > 0 {
		result += fmt.Sprintf("\nAttendees (%d):\n", len(event.Attendees))
		for _, att := range event.Attendees {
			result += fmt.Sprintf("  - %s (%s)", att.Email, att.Response)
			if att.Name != "" {
				result += fmt.Sprintf(" - %s", att.Name)
			}
			if att.Optional {
				result += " [optional]"
			}
			result += "\n"
		}
	}

	return mcp.NewToolResultText(result), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}

	start, errResult := requiredTime(args, "start")
	if errResult != nil {
		return errResult, nil
	}
	end, errResult := requiredTime(args, "end")
	if errResult != nil {
		return errResult, nil
	}

	input := provider.EventInput{
		Subject: subject,
		Start:   start,
		End:     end,
	}
	fillOptionalEventFields(&input, args)

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := svc.CreateEvent(ctx, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event on account %s: %v", account.ID, err)), nil
	}

	result := fmt.Sprintf("Successfully created event: %s\n", event.Subject)
	result += fmt.Sprintf("Account: %s\n", event.Account)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += formatEventTimes(*event)

	return mcp.NewToolResultText(result), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	input := provider.EventInput{}
	if subject, ok := args["subject"].(string); ok {
		input.Subject = subject
	}

	if startStr, ok := args["start"].(string); ok && startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
		}
		input.Start = start
	}
	if endStr, ok := args["end"].(string); ok && endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
		}
		input.End = end
	}
	fillOptionalEventFields(&input, args)

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := svc.UpdateEvent(ctx, calendarIDFromArgs(args), eventID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update event on account %s: %v", account.ID, err)), nil
	}

	result := fmt.Sprintf("Successfully updated event: %s\n", event.Subject)
	result += fmt.Sprintf("Account: %s\n", event.Account)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	result += formatEventTimes(*event)

	return mcp.NewToolResultText(result), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := svc.DeleteEvent(ctx, calendarIDFromArgs(args), eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete event on account %s: %v", account.ID, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted event %s on account %s", eventID, account.ID)), nil
}

func formatEventTimes(event provider.Event) string {
	if event.AllDay {
		return fmt.Sprintf("   All day: %s\n", event.Start.Format("2006-01-02"))
	}
	result := fmt.Sprintf("   Start: %s\n", event.Start.Format(time.RFC3339))
	result += fmt.Sprintf("   End: %s\n", event.End.Format(time.RFC3339))
	return result
}

func fillOptionalEventFields(input *provider.EventInput, args map[string]interface{}) {
	if desc, ok := args["description"].(string); ok {
		input.Description = desc
	}
	if loc, ok := args["location"].(string); ok {
		input.Location = loc
	}
	if calID, ok := args["calendarId"].(string); ok {
		input.CalendarID = calID
	}
	if allDay, ok := args["allDay"].(bool); ok {
		input.AllDay = allDay
	}
	if attendeesStr, ok := args["attendees"].(string); ok && attendeesStr != "" {
		for _, a := range strings.Split(attendeesStr, ",") {
			if a = strings.TrimSpace(a); a != "" {
				input.Attendees = append(input.Attendees, a)
			}
		}
	}
}

func calendarIDFromArgs(args map[string]interface{}) string {
	if v, ok := args["calendarId"].(string); ok {
		return v
	}
	return ""
}

func requiredTime(args map[string]interface{}, key string) (time.Time, *mcp.CallToolResult) {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return time.Time{}, mcp.NewToolResultError(fmt.Sprintf("%s is required", key))
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid %s format: %v", key, err))
	}
	return t, nil
}
