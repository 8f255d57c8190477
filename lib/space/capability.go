// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/event"
)

// StoreCapability files a delegation token in the space's wallet,
// keyed by nonce. Storing a token with a nonce already present
// replaces it.
func (s *Space) StoreCapability(ctx context.Context, token *capability.Token) error {
	c := token.Capability()

	var expiresAt, notBefore any
	if c.ExpiresAt != 0 {
		expiresAt = c.ExpiresAt
	}
	if c.NotBefore != 0 {
		notBefore = c.NotBefore
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR REPLACE INTO capabilities (nonce, issuer, audience, subject, command, expires_at, not_before, token)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				c.Nonce,
				c.Issuer.String(),
				c.Audience.String(),
				c.Subject,
				c.Command,
				expiresAt,
				notBefore,
				token.String(),
			},
		})
	if err != nil {
		return fmt.Errorf("space: storing capability %s: %w", c.Nonce, err)
	}
	return nil
}

// Capabilities lists every stored token, ordered by audience then
// nonce. Rows that no longer parse are skipped with a warning rather
// than failing the listing.
func (s *Space) Capabilities(ctx context.Context) ([]*capability.Token, error) {
	return s.listCapabilities(ctx,
		`SELECT nonce, token FROM capabilities ORDER BY audience, nonce`, nil)
}

// CapabilitiesFor lists the stored tokens delegating to one audience.
func (s *Space) CapabilitiesFor(ctx context.Context, audience event.PubKey) ([]*capability.Token, error) {
	return s.listCapabilities(ctx,
		`SELECT nonce, token FROM capabilities WHERE audience = ? ORDER BY nonce`,
		[]any{audience.String()})
}

func (s *Space) listCapabilities(ctx context.Context, query string, args []any) ([]*capability.Token, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	type walletRow struct {
		nonce string
		raw   string
	}
	var rows []walletRow
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, walletRow{
				nonce: stmt.ColumnText(0),
				raw:   stmt.ColumnText(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("space: listing capabilities: %w", err)
	}

	tokens := make([]*capability.Token, 0, len(rows))
	for _, row := range rows {
		token, err := capability.Parse(row.raw)
		if err != nil {
			s.logger.Warn("stored capability no longer parses",
				"nonce", row.nonce,
				"error", err)
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// DeleteCapability removes a token from the wallet. Deleting an
// unknown nonce is a no-op.
func (s *Space) DeleteCapability(ctx context.Context, nonce string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM capabilities WHERE nonce = ?`,
		&sqlitex.ExecOptions{Args: []any{nonce}})
	if err != nil {
		return fmt.Errorf("space: deleting capability %s: %w", nonce, err)
	}
	return nil
}
