package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	status, err := s.client.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, fmt.Errorf("daemon unavailable: %w", err)
	}
	return nil, GetStatusOutput{Status: *status}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.client.GetWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("daemon unavailable: %w", err)
	}
	return nil, ListWindowsOutput{Windows: data.Windows}, nil
}

func (s *Server) handleGetLayout(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetLayoutInput) (*mcpsdk.CallToolResult, GetLayoutOutput, error) {
	data, err := s.client.GetTree()
	if err != nil {
		return nil, GetLayoutOutput{}, fmt.Errorf("daemon unavailable: %w", err)
	}
	return nil, GetLayoutOutput{Workspaces: data.Workspaces}, nil
}

func (s *Server) handleRunCommand(_ context.Context, _ *mcpsdk.CallToolRequest, args RunCommandInput) (*mcpsdk.CallToolResult, RunCommandOutput, error) {
	if args.Command == "" {
		return nil, RunCommandOutput{}, fmt.Errorf("command is required")
	}
	if err := s.client.RunCommand(args.Command); err != nil {
		return nil, RunCommandOutput{}, err
	}
	return nil, RunCommandOutput{OK: true}, nil
}

func (s *Server) handleSaveLayout(_ context.Context, _ *mcpsdk.CallToolRequest, _ SaveLayoutInput) (*mcpsdk.CallToolResult, SaveLayoutOutput, error) {
	if err := s.client.SaveLayout(); err != nil {
		return nil, SaveLayoutOutput{}, err
	}
	return nil, SaveLayoutOutput{OK: true}, nil
}
