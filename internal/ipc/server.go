package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/glidewm/glidewm/internal/reactor"
	"github.com/glidewm/glidewm/internal/runtimepath"
)

// requestTimeout bounds the reactor round trip for one IPC request.
const requestTimeout = 5 * time.Second

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	reactor      *reactor.Reactor
	reloadChan   chan struct{}
	saveChan     chan struct{}
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server. reloadChan receives a signal for
// each RELOAD request; saveChan for each SAVE_LAYOUT request.
func NewServer(re *reactor.Reactor, reloadChan, saveChan chan struct{}) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		reactor:    re,
		reloadChan: reloadChan,
		saveChan:   saveChan,
	}, nil
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetWindows:
		return s.handleGetWindows()
	case CommandGetTree:
		return s.handleGetTree()
	case CommandRunCommand:
		return s.handleRunCommand(req.Payload)
	case CommandReload:
		return s.handleReload()
	case CommandSaveLayout:
		return s.handleSaveLayout()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleGetStatus() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	status, err := s.reactor.CurrentStatus(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetWindows() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	windows, err := s.reactor.WindowList(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list windows: %v", err))
	}

	resp, _ := NewOKResponse(WindowsData{Windows: windows})
	return resp
}

func (s *Server) handleGetTree() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	dump, err := s.reactor.LayoutDump(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to dump tree: %v", err))
	}

	resp, _ := NewOKResponse(TreeData{Workspaces: dump})
	return resp
}

func (s *Server) handleRunCommand(payload json.RawMessage) *Response {
	var run RunCommandPayload
	if err := json.Unmarshal(payload, &run); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid run payload: %v", err))
	}
	if run.Command == "" {
		return NewErrorResponse("command is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := s.reactor.Dispatch(ctx, run.Command); err != nil {
		return NewErrorResponse(fmt.Sprintf("Command failed: %v", err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")

	// Notify the main daemon via channel (non-blocking)
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleSaveLayout() *Response {
	select {
	case s.saveChan <- struct{}{}:
	default:
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
