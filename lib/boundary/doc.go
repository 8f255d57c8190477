// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package boundary serves a space's operations over a Unix socket.
// The protocol is stateless request/response: a client connects,
// writes one length-prefixed JSON request, reads one length-prefixed
// JSON response, and the connection closes.
//
// Every request names an action and may carry a capability chain (a
// list of delegation JWTs). With no chain, the caller is the space
// owner: holding the socket is holding the space, so local requests
// run with root authority. With a chain, the caller is the chain's
// terminal audience and the action is authorized against the chain
// before the space is touched. Events created through the boundary
// are always signed by the space's own identity; the chain screens
// what a delegate may do, it does not put their key on events.
//
// Failures come back as {ok: false, error: {kind, message}} with a
// stable kind string per error class, so clients dispatch on kind
// without parsing messages.
//
// [Server] and [Handlers] are the daemon side; [Client] is the
// matching caller used by the CLI. Each Client.Call opens its own
// connection, so a Client is safe for concurrent use.
package boundary
