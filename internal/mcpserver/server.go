// Package mcpserver exposes the calendar and reminder services as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/service"
)

const serverName = "calkit"

// Server is the MCP tool server.
type Server struct {
	server    *mcp.Server
	gate      *permission.Gate
	calendar  *service.CalendarService
	reminders *service.ReminderService
	logger    *zap.Logger
}

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// PermissionsResult is the response of eventkit_check_permissions.
type PermissionsResult struct {
	Success bool `json:"success"`
	*permission.Report
}

func New(gate *permission.Gate, calendar *service.CalendarService, reminders *service.ReminderService, version string, logger *zap.Logger) *Server {
	s := &Server{
		server:    mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
		gate:      gate,
		calendar:  calendar,
		reminders: reminders,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Run serves tools over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting", zap.String("transport", "stdio"))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves tools on an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func boolPtr(b bool) *bool {
	return &b
}

func readOnly(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:         title,
		ReadOnlyHint:  true,
		OpenWorldHint: boolPtr(false),
	}
}

func additive(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		DestructiveHint: boolPtr(false),
		OpenWorldHint:   boolPtr(false),
	}
}

func destructive(title string, idempotent bool) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		DestructiveHint: boolPtr(true),
		IdempotentHint:  idempotent,
		OpenWorldHint:   boolPtr(false),
	}
}

// registerTools registers every tool. Input schemas are inferred from the
// service input structs.
func (s *Server) registerTools() {
	// Permissions
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "eventkit_check_permissions",
		Description: "Check calendar and reminders access. Call this first when another tool reports permission_denied.",
		Annotations: readOnly("Check Permissions"),
	}, handle(s, "eventkit_check_permissions", s.checkPermissions))

	// Calendar
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_list_calendars",
		Description: "List all calendars that can hold events.",
		Annotations: readOnly("List Calendars"),
	}, handle(s, "calendar_list_calendars", noInput(s.calendar.ListCalendars)))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_list_events",
		Description: "List events starting in a date range. Also returns today's date and the dates of the coming weekdays for resolving relative dates.",
		Annotations: readOnly("List Events"),
	}, handle(s, "calendar_list_events", s.calendar.ListEvents))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_get_event",
		Description: "Get one event by id.",
		Annotations: readOnly("Get Event"),
	}, handle(s, "calendar_get_event", s.calendar.GetEvent))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_search_events",
		Description: "Search events by text and tags. Defaults to 30 days back and 90 days ahead.",
		Annotations: readOnly("Search Events"),
	}, handle(s, "calendar_search_events", s.calendar.SearchEvents))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_create_event",
		Description: "Create an event. Pass an RFC 5545 rule in recurrence to create a recurring series.",
		Annotations: additive("Create Event"),
	}, handle(s, "calendar_create_event", s.calendar.CreateEvent))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_edit_event",
		Description: "Edit an event. Only the given fields change. For recurring events scope selects this_only (default), this_and_future or all.",
		Annotations: destructive("Edit Event", true),
	}, handle(s, "calendar_edit_event", s.calendar.EditEvent))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "calendar_delete_event",
		Description: "Delete an event. For recurring events scope selects this_only (default), this_and_future or all.",
		Annotations: destructive("Delete Event", false),
	}, handle(s, "calendar_delete_event", s.calendar.DeleteEvent))

	// Reminders
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_list_lists",
		Description: "List all reminder lists.",
		Annotations: readOnly("List Reminder Lists"),
	}, handle(s, "reminders_list_lists", noInput(s.reminders.ListLists)))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_list",
		Description: "List reminders. Open reminders only unless completed or include_completed is set.",
		Annotations: readOnly("List Reminders"),
	}, handle(s, "reminders_list", s.reminders.List))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_get",
		Description: "Get one reminder by id.",
		Annotations: readOnly("Get Reminder"),
	}, handle(s, "reminders_get", s.reminders.Get))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_search",
		Description: "Search reminders by text and tags.",
		Annotations: readOnly("Search Reminders"),
	}, handle(s, "reminders_search", s.reminders.Search))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_create",
		Description: "Create a reminder.",
		Annotations: additive("Create Reminder"),
	}, handle(s, "reminders_create", s.reminders.Create))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_edit",
		Description: "Edit a reminder. Only the given fields change.",
		Annotations: destructive("Edit Reminder", true),
	}, handle(s, "reminders_edit", s.reminders.Edit))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_complete",
		Description: "Mark a reminder completed, or open again with completed=false.",
		Annotations: destructive("Complete Reminder", true),
	}, handle(s, "reminders_complete", s.reminders.Complete))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reminders_delete",
		Description: "Delete a reminder. A recurring reminder is deleted with its whole series.",
		Annotations: destructive("Delete Reminder", false),
	}, handle(s, "reminders_delete", s.reminders.Delete))
}

func (s *Server) checkPermissions(ctx context.Context, _ EmptyInput) (*PermissionsResult, error) {
	report, err := s.gate.Report(ctx)
	if err != nil {
		return nil, err
	}
	return &PermissionsResult{Success: true, Report: report}, nil
}

func noInput[Out any](fn func(context.Context) (Out, error)) func(context.Context, EmptyInput) (Out, error) {
	return func(ctx context.Context, _ EmptyInput) (Out, error) {
		return fn(ctx)
	}
}

// handle adapts a service operation to a tool handler. Failures are
// reported inside the result so the agent can read the error kind.
func handle[In, Out any](s *Server, tool string, fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return s.errorResult(tool, err), nil, nil
		}
		res, err := jsonResult(out, false)
		if err != nil {
			return nil, nil, err
		}
		return res, nil, nil
	}
}

type errorBody struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Message      string `json:"message"`
	Instructions string `json:"instructions,omitempty"`
}

func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	kind := domain.ErrorKind(err)
	body := errorBody{Error: kind, Message: err.Error()}

	var permErr *domain.PermissionError
	if errors.As(err, &permErr) {
		body.Instructions = permErr.Instructions()
	}

	fields := []zap.Field{zap.String("tool", tool), zap.String("kind", kind), zap.Error(err)}
	switch kind {
	case domain.ErrKindStore, domain.ErrKindUnexpected:
		s.logger.Error("tool failed", fields...)
	default:
		s.logger.Debug("tool rejected", fields...)
	}

	res, mErr := jsonResult(body, true)
	if mErr != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			IsError: true,
		}
	}
	return res
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil
}
