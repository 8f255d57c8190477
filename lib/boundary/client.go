// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// dialTimeout is the maximum time to wait for a connection to the
// daemon socket. This is separate from the server's read/write
// timeouts; it covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request. Matched to the server's
// readTimeout + writeTimeout to account for handler execution time.
const responseReadTimeout = 45 * time.Second

// Client sends requests to a space daemon socket. Each Call opens a
// new connection (matching the server's one-request-per-connection
// model), writes one frame, reads one frame, and closes.
//
// A client constructed with WithChain includes its capability chain
// in every request as the "chain" field; the zero chain acts as the
// space owner.
type Client struct {
	socketPath string
	chain      []string
}

// NewClient creates a client for the daemon socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// WithChain returns a client that presents the given capability chain
// (serialized JWTs, root-issued link first) on every call.
func (c *Client) WithChain(chain []string) *Client {
	return &Client{socketPath: c.socketPath, chain: chain}
}

// Call sends one request and decodes the response.
//
// The fields parameter carries the action-specific parameters; the
// client adds "action" and "chain" automatically. Pass nil for
// actions that take no parameters.
//
// On success (ok=true), if result is non-nil and the response carries
// data, the data is decoded into result. On failure (ok=false) Call
// returns the server's *Error so callers can dispatch on its Kind.
// Connection and encoding failures are plain errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+2)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action
	if len(c.chain) > 0 {
		request["chain"] = c.chain
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		if response.Error == nil {
			return &Error{Kind: KindInternal, Message: "server reported failure without detail"}
		}
		return response.Error
	}

	if result != nil && len(response.Data) > 0 {
		if err := json.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// send connects to the socket, writes the request frame, and reads
// the response frame. Each call creates a new connection.
func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(responseReadTimeout))
	}

	if err := writeFrame(conn, request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	raw, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var response Response
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &response, nil
}
