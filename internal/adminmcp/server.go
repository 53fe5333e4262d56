// Package adminmcp exposes a read-only introspection surface over the
// running server — store occupancy, executor scaling state, live
// connections, and recently executed commands — as MCP tools, so an
// operator or an LLM-driven ops agent can inspect a running kvreactord
// without a bespoke admin protocol.
//
// Grounded on the teacher's mcpserver.go/mcptools.go/mcptypes.go: same
// go-mcp StreamableHTTPServerTransport setup and per-tool handler
// shape, repointed from Docker container introspection to store/
// executor/connection introspection. The session-activity tracking is
// kept since admin MCP traffic benefits from the same observability
// the teacher gave its own MCP server; tool calls are logged with the
// standard log package.
package adminmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/ThinkInAIXYZ/go-mcp/transport"
	"github.com/pkg/errors"

	"github.com/ravelin-io/kvreactor/internal/auditlog"
	"github.com/ravelin-io/kvreactor/internal/connreg"
	"github.com/ravelin-io/kvreactor/internal/executor"
)

// StoreStats is the subset of store introspection exposed over MCP.
type StoreStats struct {
	MaxSize int `json:"max_size"`
	CurSize int `json:"cur_size"`
	Entries int `json:"entries"`
}

// StoreSnapshotter is the read-only view of the store adminmcp needs.
type StoreSnapshotter interface {
	MaxSize() int
	Size() int
	Len() int
}

// Server wires store/executor/connection introspection into an MCP
// server over HTTP.
type Server struct {
	store    StoreSnapshotter
	exec     *executor.Executor
	registry *connreg.Registry
	audit    *auditlog.Ring

	port       int
	mcpServer  *server.Server
	httpServer *http.Server

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	sessionsMu     sync.RWMutex
	activeSessions map[string]time.Time
}

// New builds an admin MCP server bound to port, reading from the
// given components. It does not start listening until Start is called.
func New(port int, store StoreSnapshotter, exec *executor.Executor, registry *connreg.Registry, audit *auditlog.Ring) (*Server, error) {
	s := &Server{
		store:          store,
		exec:           exec,
		registry:       registry,
		audit:          audit,
		port:           port,
		activeSessions: make(map[string]time.Time),
	}

	mcpTransport := transport.NewStreamableHTTPServerTransport(
		fmt.Sprintf(":%d", port),
		transport.WithStreamableHTTPServerTransportOptionEndpoint("/mcp"),
		transport.WithStreamableHTTPServerTransportOptionStateMode(transport.Stateful),
	)

	var err error
	s.mcpServer, err = server.NewServer(
		mcpTransport,
		server.WithServerInfo(protocol.Implementation{
			Name:    "kvreactor-admin-mcp",
			Version: "1.0.0",
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create admin mcp server")
	}

	if err := s.registerTools(); err != nil {
		return nil, errors.Wrap(err, "register admin mcp tools")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	// Bound on port+1: the MCP transport above already owns port for
	// /mcp internally, so the plain-JSON polling surface kvreactortop
	// uses gets its own listener rather than fighting over the same one.
	s.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", port+1), Handler: mux}

	return s, nil
}

// Start runs the MCP server (blocking).
func (s *Server) Start() error {
	log.Printf("admin mcp server listening on :%d/mcp", s.port)
	s.shutdownCtx, s.shutdownCancel = context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.cleanupStaleSessions()
			case <-s.shutdownCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("admin stats endpoint listening on %s/stats", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin stats endpoint exited: %v", err)
		}
	}()

	return s.mcpServer.Run()
}

// Shutdown gracefully stops the MCP server and its stats endpoint.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down admin mcp server")
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}
	s.httpServer.Shutdown(ctx)
	return s.mcpServer.Shutdown(ctx)
}

func (s *Server) recordActivity(sessionID string) {
	if sessionID == "" {
		return
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.activeSessions[sessionID] = time.Now()
}

func (s *Server) cleanupStaleSessions() {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	now := time.Now()
	for id, lastSeen := range s.activeSessions {
		if now.Sub(lastSeen) > 30*time.Second {
			delete(s.activeSessions, id)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]interface{}{
		"status":      "healthy",
		"connections": s.registry.Len(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DashboardStats is the plain-JSON shape kvreactortop polls, bundling
// the same four tools' data as one round trip instead of four.
type DashboardStats struct {
	Store       StoreStats        `json:"store"`
	Executor    executor.Stats    `json:"executor"`
	Connections []connreg.Info    `json:"connections"`
	Recent      []auditlog.Entry  `json:"recent_commands"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	stats := DashboardStats{
		Store: StoreStats{
			MaxSize: s.store.MaxSize(),
			CurSize: s.store.Size(),
			Entries: s.store.Len(),
		},
		Executor:    s.exec.Snapshot(),
		Connections: s.registry.Snapshot(),
		Recent:      s.audit.Recent(50),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) registerTools() error {
	storeStatsTool, err := protocol.NewTool(
		"get_store_stats",
		"Report the LRU store's byte occupancy and entry count",
		struct{}{},
	)
	if err != nil {
		return err
	}
	s.mcpServer.RegisterTool(storeStatsTool, s.handleGetStoreStats)

	executorStatsTool, err := protocol.NewTool(
		"get_executor_stats",
		"Report the executor pool's current worker count, watermarks, and queue depth",
		struct{}{},
	)
	if err != nil {
		return err
	}
	s.mcpServer.RegisterTool(executorStatsTool, s.handleGetExecutorStats)

	listConnectionsTool, err := protocol.NewTool(
		"list_connections",
		"List currently registered connections and their lifecycle state",
		ListConnectionsArgs{},
	)
	if err != nil {
		return err
	}
	s.mcpServer.RegisterTool(listConnectionsTool, s.handleListConnections)

	recentCommandsTool, err := protocol.NewTool(
		"get_recent_commands",
		"Return the most recently executed commands across all connections",
		RecentCommandsArgs{},
	)
	if err != nil {
		return err
	}
	s.mcpServer.RegisterTool(recentCommandsTool, s.handleGetRecentCommands)

	return nil
}

func textResult(v interface{}) (*protocol.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal tool result")
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			&protocol.TextContent{Type: "text", Text: string(out)},
		},
	}, nil
}
