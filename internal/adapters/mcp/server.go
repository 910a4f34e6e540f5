package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

const version = "0.1.0"

// Server exposes case questions and process state as MCP tools.
type Server struct {
	answerer     ports.QuestionAnswerer
	processes    ports.ProcessReader
	queryTimeout time.Duration
	mcp          *server.MCPServer
}

func NewServer(answerer ports.QuestionAnswerer, processes ports.ProcessReader, queryTimeout time.Duration) *Server {
	s := &Server{
		answerer:     answerer,
		processes:    processes,
		queryTimeout: queryTimeout,
		mcp:          server.NewMCPServer("case-intake", version, server.WithLogging()),
	}

	s.mcp.AddTool(
		mcp.NewTool(
			"ask_case",
			mcp.WithDescription("Answer a question using only the indexed documents of one case process."),
			mcp.WithString("processId", mcp.Required(), mcp.Description("Case process id")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Question about the case")),
		),
		s.handleAskCase,
	)
	s.mcp.AddTool(
		mcp.NewTool(
			"process_status",
			mcp.WithDescription("Report the ingestion status of a case process."),
			mcp.WithString("processId", mcp.Required(), mcp.Description("Case process id")),
		),
		s.handleProcessStatus,
	)
	return s
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	slog.Info("mcp_server_started", "transport", "stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleAskCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	processID, _ := args["processId"].(string)
	query, _ := args["query"].(string)
	if processID == "" || query == "" {
		return mcp.NewToolResultError("processId and query arguments are required"), nil
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	answer, err := s.answerer.Answer(ctx, processID, query, nil)
	if err != nil {
		slog.Error("mcp_ask_case_failed", "process_id", processID, "error", err)
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError("failed to generate an answer"), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}

func (s *Server) handleProcessStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	processID, _ := request.GetArguments()["processId"].(string)
	if processID == "" {
		return mcp.NewToolResultError("processId argument required"), nil
	}

	process, err := s.processes.GetByID(ctx, processID)
	if err != nil {
		if domain.IsKind(err, domain.ErrProcessNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("process %s not found", processID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	payload, err := json.Marshal(process)
	if err != nil {
		return nil, fmt.Errorf("marshal process: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
