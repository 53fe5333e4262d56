package adminmcp

import (
	"context"
	"fmt"
	"log"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/google/uuid"
)

// getSessionID returns the session identifier stored in ctx under
// sessionIDKey, or mints a fresh one if none is there. Nothing in this
// package stores a value under sessionIDKey, so as wired here every
// call mints a fresh ID and each tool call is tracked as its own
// session until it expires after 30s.
func getSessionID(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return uuid.NewString()
}

type sessionIDKey struct{}

func (s *Server) handleGetStoreStats(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.recordActivity(getSessionID(ctx))
	log.Printf("admin mcp tool: %s", request.Name)

	stats := StoreStats{
		MaxSize: s.store.MaxSize(),
		CurSize: s.store.Size(),
		Entries: s.store.Len(),
	}
	return textResult(stats)
}

func (s *Server) handleGetExecutorStats(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.recordActivity(getSessionID(ctx))
	log.Printf("admin mcp tool: %s", request.Name)

	return textResult(s.exec.Snapshot())
}

func (s *Server) handleListConnections(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.recordActivity(getSessionID(ctx))
	log.Printf("admin mcp tool: %s", request.Name)

	args := new(ListConnectionsArgs)
	if err := protocol.VerifyAndUnmarshal(request.RawArguments, args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	all := s.registry.Snapshot()
	if args.StateFilter == "" {
		return textResult(all)
	}

	filtered := make([]interface{}, 0, len(all))
	for _, info := range all {
		if info.State.String() == args.StateFilter {
			filtered = append(filtered, info)
		}
	}
	return textResult(filtered)
}

func (s *Server) handleGetRecentCommands(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.recordActivity(getSessionID(ctx))
	log.Printf("admin mcp tool: %s", request.Name)

	args := new(RecentCommandsArgs)
	if err := protocol.VerifyAndUnmarshal(request.RawArguments, args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	return textResult(s.audit.Recent(limit))
}
