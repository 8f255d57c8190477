// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// ActionFunc processes one request. The raw parameter is the full
// JSON request document including the "action" field; handlers decode
// their own parameter struct from it. A nil result yields {ok: true}
// with no data; a non-nil result is marshaled into the "data" field.
type ActionFunc func(ctx context.Context, raw json.RawMessage) (any, error)

// Server serves the boundary protocol on a Unix socket. Each
// connection carries exactly one request-response cycle. Actions are
// registered with Handle before Serve.
type Server struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight handlers so Serve can drain
	// them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
}

// Handle registers a handler for an action. Panics on a duplicate
// registration: action tables are wired at startup, never at runtime.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("boundary.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for active handlers to finish. A stale socket
// file at the path is removed before listening, and the socket file
// is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("boundary: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("boundary: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("boundary listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long the server waits for the client's request.
// A well-behaved client sends it immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long the server waits for the response write.
const writeTimeout = 10 * time.Second

// handleConnection runs one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	raw, err := readFrame(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeFailure(conn, KindMalformedInput, err.Error())
		return
	}

	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		s.writeFailure(conn, KindMalformedInput, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if head.Action == "" {
		s.writeFailure(conn, KindMalformedInput, "missing required field: action")
		return
	}

	handler, exists := s.handlers[head.Action]
	if !exists {
		s.writeFailure(conn, KindMalformedInput, fmt.Sprintf("unknown action %q", head.Action))
		return
	}

	result, err := handler(ctx, raw)
	if err != nil {
		s.logger.Debug("action failed",
			"action", head.Action,
			"error", err,
		)
		s.writeFailure(conn, kindOf(err), err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeFailure sends {ok: false, error: {kind, message}}. Write
// failures are logged at debug level: the connection is closing
// regardless.
func (s *Server) writeFailure(conn net.Conn, kind, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := writeFrame(conn, Response{
		OK:    false,
		Error: &Error{Kind: kind, Message: message},
	})
	if err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} with the result in "data" when one is
// given.
func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			s.writeFailure(conn, KindInternal, fmt.Sprintf("marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := writeFrame(conn, response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
