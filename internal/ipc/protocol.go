package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/glidewm/glidewm/internal/reactor"
	"github.com/glidewm/glidewm/internal/tree"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus  CommandType = "GET_STATUS"
	CommandGetWindows CommandType = "GET_WINDOWS"
	CommandGetTree    CommandType = "GET_TREE"
	CommandRunCommand CommandType = "RUN_COMMAND"
	CommandReload     CommandType = "RELOAD"
	CommandSaveLayout CommandType = "SAVE_LAYOUT"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WindowsData represents the data returned by GET_WINDOWS
type WindowsData struct {
	Windows []reactor.WindowInfo `json:"windows"`
}

// TreeData represents the data returned by GET_TREE, keyed by workspace
// name.
type TreeData struct {
	Workspaces map[string]*tree.NodeDump `json:"workspaces"`
}

// RunCommandPayload represents the payload for RUN_COMMAND
type RunCommandPayload struct {
	Command string `json:"command"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
