// Package toolhub manages connections to MCP tool servers and presents
// their tools to the chat engine as one flat, namespaced catalog.
package toolhub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ErrNoSuchTool is wrapped into lookup failures for unknown tool names.
var ErrNoSuchTool = fmt.Errorf("no such tool")

// Result is the engine-facing outcome of one tool execution.
type Result struct {
	Text    string
	IsError bool
}

type server struct {
	id     string
	client *client.Client
	tools  []mcptypes.Tool
	closer func(context.Context)
}

// Hub aggregates tools from every connected server. Tool names are
// namespaced as "<serverID>.<toolName>" so two servers exposing the
// same tool never collide.
type Hub struct {
	mu      sync.RWMutex
	servers map[string]*server
	log     *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		servers: make(map[string]*server),
		log:     log.With("component", "toolhub"),
	}
}

// Connect starts (or dials) one tool server, performs the MCP
// initialize handshake, and caches its tool list.
func (h *Hub) Connect(ctx context.Context, cfg ServerConfig) error {
	h.mu.Lock()
	_, exists := h.servers[cfg.ID]
	h.mu.Unlock()
	if exists {
		return fmt.Errorf("tool server %s already connected", cfg.ID)
	}

	mcpClient, closer, err := dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect tool server %s: %w", cfg.ID, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "parley",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		closer(ctx)
		return fmt.Errorf("failed to initialize tool server %s: %w", cfg.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		closer(ctx)
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	h.mu.Lock()
	h.servers[cfg.ID] = &server{
		id:     cfg.ID,
		client: mcpClient,
		tools:  toolsResult.Tools,
		closer: closer,
	}
	h.mu.Unlock()

	h.log.Info("tool server connected", "server", cfg.ID, "tools", len(toolsResult.Tools))
	return nil
}

// Disconnect tears down one server's client and drops its tools.
func (h *Hub) Disconnect(ctx context.Context, serverID string) error {
	h.mu.Lock()
	srv, exists := h.servers[serverID]
	if exists {
		delete(h.servers, serverID)
	}
	h.mu.Unlock()
	if !exists {
		return fmt.Errorf("tool server %s not connected", serverID)
	}

	srv.closer(ctx)
	h.log.Info("tool server disconnected", "server", serverID)
	return nil
}

// Shutdown disconnects every server in parallel.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.servers))
	for id := range h.servers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := h.Disconnect(ctx, id); err != nil {
				h.log.Warn("shutdown", "server", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}

// Definitions returns every available tool with its namespaced name,
// ordered by server ID then by the server's own tool order.
func (h *Hub) Definitions() []mcptypes.Tool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.servers))
	for id := range h.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var all []mcptypes.Tool
	for _, id := range ids {
		srv := h.servers[id]
		for _, tool := range srv.tools {
			namespaced := tool
			namespaced.Name = srv.id + "." + tool.Name
			all = append(all, namespaced)
		}
	}
	return all
}

// RefreshTools re-fetches the tool list for one server.
func (h *Hub) RefreshTools(ctx context.Context, serverID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	srv, exists := h.servers[serverID]
	if !exists {
		return fmt.Errorf("tool server %s not connected", serverID)
	}
	toolsResult, err := srv.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools for %s: %w", serverID, err)
	}
	srv.tools = toolsResult.Tools
	return nil
}

// Execute routes a namespaced tool call to its server and flattens the
// result to text. A failed execution comes back as an error Result, not
// a Go error; a Go error means the call never reached a server.
func (h *Hub) Execute(ctx context.Context, toolName string, args map[string]any) (Result, error) {
	serverID, bareName := SplitToolName(toolName)

	h.mu.RLock()
	srv, exists := h.servers[serverID]
	h.mu.RUnlock()
	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSuchTool, toolName)
	}

	start := time.Now()
	res, err := srv.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      bareName,
			Arguments: args,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to call tool %s: %w", toolName, err)
	}

	h.log.Debug("tool executed",
		"tool", toolName, "duration", time.Since(start), "is_error", res.IsError)
	return Result{Text: FlattenContent(res), IsError: res.IsError}, nil
}

// SplitToolName splits "<serverID>.<toolName>" at the first dot. Names
// without a dot have no server prefix.
func SplitToolName(namespaced string) (serverID, toolName string) {
	idx := strings.Index(namespaced, ".")
	if idx == -1 {
		return "", namespaced
	}
	return namespaced[:idx], namespaced[idx+1:]
}

// FlattenContent joins a result's text content blocks with newlines.
// Non-text blocks are skipped.
func FlattenContent(res *mcptypes.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(mcptypes.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
