/*
Package mcp implements an MCP server that exposes the advisor to AI clients.

The server uses stdio transport and exposes 3 tools:
  - advisor_chat: Run one conversational turn
  - advisor_list_tools: List catalog tools matching constraints stated in a query
  - advisor_session_stats: Report live session counts
*/
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/session"
)

// Tool names.
const (
	ToolChat         = "advisor_chat"
	ToolListTools    = "advisor_list_tools"
	ToolSessionStats = "advisor_session_stats"
)

// Asker runs conversational turns.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) (advisor.Result, error)
}

// Server represents the torque-advisor MCP server.
type Server struct {
	advisor  Asker
	sessions session.Store
	catalog  *catalog.Catalog
	logger   *zap.Logger
	server   *mcp.Server
}

// NewServer creates a new MCP server with the advisor tools registered.
func NewServer(a Asker, sessions session.Store, c *catalog.Catalog, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		advisor:  a,
		sessions: sessions,
		catalog:  c,
		logger:   logger,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "torque-advisor",
		Version: version,
	}, &mcp.ServerOptions{HasTools: true})

	s.server.AddTool(s.chatTool(), s.chatHandler)
	s.server.AddTool(s.listToolsTool(), s.listToolsHandler)
	s.server.AddTool(sessionStatsTool(), s.sessionStatsHandler)

	return s
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting (stdio transport)")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over t and returns without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) chatTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolChat,
		Description: fmt.Sprintf(`Recommend an industrial tightening tool from a catalog of %d tools.

WHEN TO USE: When the user describes a nutrunner, screwdriver, spindle or
verification need in natural language.

The reply is either a recommendation or a clarification with follow-up
questions. Pass the returned session_id on the next call so stated
constraints (voltage, torque, IP rating, application type) carry over.`, s.catalog.Len()),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The user's request, e.g. \"18V cordless nutrunner for 50Nm\"",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session id returned by a previous call",
				},
			},
			"required": []string{"question"},
		},
	}
}

func (s *Server) listToolsTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolListTools,
		Description: `List catalog tools matching the constraints stated in a query.

Constraints understood: voltage (18V), torque (50Nm), IP rating (IP54) and
application type (cordless, automation, manual, controller, verification).`,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Query text; an empty query lists every tool",
				},
			},
		},
	}
}

func sessionStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolSessionStats,
		Description: "Report the number of live sessions, completed turns and sessions that needed clarification.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

type chatArgs struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type listArgs struct {
	Query string `json:"query"`
}

func (s *Server) chatHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args chatArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult(errors.New("question is required")), nil
	}

	res, err := s.advisor.Ask(ctx, args.Question, args.SessionID)
	if err != nil {
		s.logger.Warn("tool call failed", zap.String("tool", ToolChat), zap.Error(err))
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) listToolsHandler(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	filters := filter.Extract(args.Query)
	tools := filter.Apply(s.catalog.Tools(), filters)
	if len(tools) == 0 {
		return textResult(fmt.Sprintf("No tools match %s", filters.String())), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matching tools (%d):\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(&b, "  • %s", t.ToolName)
		if t.Model != "" {
			fmt.Fprintf(&b, " [%s]", t.Model)
		}
		fmt.Fprintf(&b, " - %s, %s, %s\n", orNA(t.ApplicationType), orNA(t.Voltage), torqueLabel(t.TorqueRange))
	}
	return textResult(b.String()), nil
}

func (s *Server) sessionStatsHandler(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessions.Stats())
}

// decodeArgs unmarshals tool arguments; absent arguments leave v unchanged.
func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func orNA(v string) string {
	if v == "" || v == "NaN" {
		return "N/A"
	}
	return v
}

// torqueLabel renders a torque range with its unit, or N/A when unknown.
func torqueLabel(r string) string {
	if orNA(r) == "N/A" {
		return "N/A"
	}
	if strings.Contains(strings.ToLower(r), "nm") {
		return r
	}
	return r + " Nm"
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %s", err.Error())},
		},
	}
}
