// Package mcp provides a Model Context Protocol server for picnic.
//
// It exposes the extraction pipeline (parse, events, calendar, stats) as MCP
// tools and the archive's upcoming events as an MCP resource, over stdio
// transport for desktop agent hosts.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/picnicd/picnic/internal/archive"
	"github.com/picnicd/picnic/internal/ics"
	"github.com/picnicd/picnic/internal/learn"
	"github.com/picnicd/picnic/internal/pipeline"
)

// ServerConfig holds the wired components the MCP tools operate on.
type ServerConfig struct {
	Runner  *pipeline.Runner
	Store   *learn.Store
	Archive *archive.Archive
	Version string
}

// pipeMu serializes tool calls. The mcp-go library dispatches handlers
// concurrently via goroutines, but the learning store rewrites its whole
// document on save and SQLite supports one writer at a time, so calls must
// not interleave.
var pipeMu sync.Mutex

// NewServer creates a configured MCP server with all picnic tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"picnic",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerParseTool(s, cfg.Runner)
	registerEventsTool(s, cfg.Archive)
	registerCalendarTool(s, cfg.Archive)
	registerStatsTool(s, cfg.Store, cfg.Archive)

	registerUpcomingResource(s, cfg.Archive)

	return s
}

// --- Tools ---

func registerParseTool(s *server.MCPServer, runner *pipeline.Runner) {
	tool := mcp.NewTool("picnic_parse",
		mcp.WithDescription("Parse one email through the full extraction pipeline: heuristic gate, cached LLM extraction, validation, confidence filtering, and dedup. Returns the run report with any accepted event."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Stable message identifier, e.g. the Message-ID header"),
		),
		mcp.WithString("subject",
			mcp.Description("Email subject line"),
		),
		mcp.WithString("sender",
			mcp.Description("Sender address"),
		),
		mcp.WithString("date",
			mcp.Description("Date the email was received, for relative-date resolution"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain-text email body"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pipeMu.Lock()
		defer pipeMu.Unlock()

		messageID, err := req.RequireString("message_id")
		if err != nil {
			return mcp.NewToolResultError("message_id is required"), nil
		}
		body, err := req.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError("body is required"), nil
		}
		if strings.TrimSpace(body) == "" {
			return mcp.NewToolResultError("body cannot be empty"), nil
		}

		email := pipeline.Email{MessageID: messageID, Body: body}
		if v, err := req.RequireString("subject"); err == nil {
			email.Subject = v
		}
		if v, err := req.RequireString("sender"); err == nil {
			email.Sender = v
		}
		if v, err := req.RequireString("date"); err == nil {
			email.Date = v
		}

		report, err := runner.Run(ctx, []pipeline.Email{email})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("parse error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEventsTool(s *server.MCPServer, arch *archive.Archive) {
	tool := mcp.NewTool("picnic_events",
		mcp.WithDescription("List archived events, optionally filtered by date range, category, and cost. Dates are YYYY-MM-DD."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("since",
			mcp.Description("Inclusive lower bound on the event start date (YYYY-MM-DD)"),
		),
		mcp.WithString("until",
			mcp.Description("Inclusive upper bound on the event start date (YYYY-MM-DD)"),
		),
		mcp.WithString("category",
			mcp.Description("Only events with this category label"),
		),
		mcp.WithBoolean("free_only",
			mcp.Description("Only events with no admission cost (default: false)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of events to return (default: 50, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pipeMu.Lock()
		defer pipeMu.Unlock()

		if arch == nil {
			return mcp.NewToolResultError("no archive configured"), nil
		}

		opts, err := listOptsFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		events, err := arch.List(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No events match."), nil
		}

		data, _ := json.MarshalIndent(events, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCalendarTool(s *server.MCPServer, arch *archive.Archive) {
	tool := mcp.NewTool("picnic_calendar",
		mcp.WithDescription("Render archived events as an iCalendar (ICS) document, with the same filters as picnic_events."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("since",
			mcp.Description("Inclusive lower bound on the event start date (YYYY-MM-DD)"),
		),
		mcp.WithString("until",
			mcp.Description("Inclusive upper bound on the event start date (YYYY-MM-DD)"),
		),
		mcp.WithString("category",
			mcp.Description("Only events with this category label"),
		),
		mcp.WithBoolean("free_only",
			mcp.Description("Only events with no admission cost (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pipeMu.Lock()
		defer pipeMu.Unlock()

		if arch == nil {
			return mcp.NewToolResultError("no archive configured"), nil
		}

		opts, err := listOptsFromRequest(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		events, err := arch.List(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}

		return mcp.NewToolResultText(ics.Generate(events, time.Now())), nil
	})
}

func registerStatsTool(s *server.MCPServer, store *learn.Store, arch *archive.Archive) {
	tool := mcp.NewTool("picnic_stats",
		mcp.WithDescription("Get learning-store statistics: learned cuisine aliases by confidence band, cache entries, dedup index size, and the archived event count."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pipeMu.Lock()
		defer pipeMu.Unlock()

		result := map[string]interface{}{
			"store": store.Stats(),
		}
		if arch != nil {
			n, err := arch.Count(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
			}
			result["archived_events"] = n
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerUpcomingResource(s *server.MCPServer, arch *archive.Archive) {
	resource := mcp.NewResource(
		"picnic://upcoming",
		"Upcoming Events",
		mcp.WithResourceDescription("Archived events starting today or later, ordered by start date."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		pipeMu.Lock()
		defer pipeMu.Unlock()

		if arch == nil {
			return nil, fmt.Errorf("no archive configured")
		}

		events, err := arch.List(ctx, archive.ListOpts{
			Since: time.Now().Format("2006-01-02"),
			Limit: 50,
		})
		if err != nil {
			return nil, fmt.Errorf("listing upcoming events: %w", err)
		}

		data, _ := json.MarshalIndent(events, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// --- Helpers ---

func listOptsFromRequest(req mcp.CallToolRequest) (archive.ListOpts, error) {
	opts := archive.ListOpts{Limit: 50}

	if v, err := req.RequireString("since"); err == nil && v != "" {
		if _, perr := time.Parse("2006-01-02", v); perr != nil {
			return opts, fmt.Errorf("since must be YYYY-MM-DD, got %q", v)
		}
		opts.Since = v
	}
	if v, err := req.RequireString("until"); err == nil && v != "" {
		if _, perr := time.Parse("2006-01-02", v); perr != nil {
			return opts, fmt.Errorf("until must be YYYY-MM-DD, got %q", v)
		}
		opts.Until = v
	}
	if v, err := req.RequireString("category"); err == nil && v != "" {
		opts.Category = v
	}
	if v, err := req.RequireBool("free_only"); err == nil {
		opts.FreeOnly = v
	}
	if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
		limit := int(v)
		if limit > 200 {
			limit = 200
		}
		opts.Limit = limit
	}
	return opts, nil
}
