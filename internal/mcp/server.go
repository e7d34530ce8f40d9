// Package mcp exposes the daemon to AI assistants over the Model
// Context Protocol. Every tool call is forwarded to the running daemon
// through its IPC socket; the MCP process itself holds no window state.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glidewm/glidewm/internal/ipc"
)

const (
	ServerName    = "glidewm"
	ServerVersion = "0.1.0"
)

// Server is the MCP server fronting the daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	client    *ipc.Client
}

// NewServer creates an MCP server talking to the local daemon.
func NewServer() *Server {
	s := &Server{
		client: ipc.NewClient(),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Get a summary of the window manager daemon: workspace count, current workspace, window count, connected displays, and any degraded windows.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List every window the daemon manages, with application, title, workspace, frame geometry, and floating/focused flags.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_layout",
		Description: "Get the tiling tree of every workspace: split containers with ratios, stacks, tabs, and window leaves.",
	}, s.handleGetLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "run_command",
		Description: "Run a window manager command by name, exactly as a keybinding would (e.g. focus-left, move-right, split-vertical, stack, toggle-float, workspace-2, retile).",
	}, s.handleRunCommand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "save_layout",
		Description: "Persist the current layout so it is restored on the next daemon start.",
	}, s.handleSaveLayout)
}
