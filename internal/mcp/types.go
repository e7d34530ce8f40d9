package mcp

import (
	"github.com/glidewm/glidewm/internal/reactor"
	"github.com/glidewm/glidewm/internal/tree"
)

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput struct {
	Status reactor.Status `json:"status"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct{}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []reactor.WindowInfo `json:"windows"`
}

// GetLayoutInput is the input for the get_layout tool.
type GetLayoutInput struct{}

// GetLayoutOutput is the output for the get_layout tool, keyed by
// workspace name.
type GetLayoutOutput struct {
	Workspaces map[string]*tree.NodeDump `json:"workspaces"`
}

// RunCommandInput is the input for the run_command tool.
type RunCommandInput struct {
	Command string `json:"command" jsonschema:"required,The command name to run (same vocabulary as keybindings)"`
}

// RunCommandOutput is the output for the run_command tool.
type RunCommandOutput struct {
	OK bool `json:"ok"`
}

// SaveLayoutInput is the input for the save_layout tool.
type SaveLayoutInput struct{}

// SaveLayoutOutput is the output for the save_layout tool.
type SaveLayoutOutput struct {
	OK bool `json:"ok"`
}
