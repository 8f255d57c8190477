// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete weft CLI command tree.
package commands

import (
	"fmt"

	capabilitycmd "github.com/weft-foundation/weft/cmd/weft/capability"
	"github.com/weft-foundation/weft/cmd/weft/cli"
	keycmd "github.com/weft-foundation/weft/cmd/weft/key"
	rowcmd "github.com/weft-foundation/weft/cmd/weft/row"
	schemacmd "github.com/weft-foundation/weft/cmd/weft/schema"
	statuscmd "github.com/weft-foundation/weft/cmd/weft/status"
	transfercmd "github.com/weft-foundation/weft/cmd/weft/transfer"
	"github.com/weft-foundation/weft/lib/version"
)

// Root builds and returns the complete weft CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "weft",
		Description: `Weft: a local-first space of schema-validated rows.

A space is an append-only log of signed events in one SQLite file,
served over a unix socket by weft-space-service. Rows live under
content-addressed schema definitions; access for other identities is
delegated with capability tokens minted from the space key.`,
		Subcommands: []*cli.Command{
			keycmd.Command(),
			schemacmd.Command(),
			rowcmd.Command(),
			capabilitycmd.Command(),
			transfercmd.ExportCommand(),
			transfercmd.ImportCommand(),
			statuscmd.StatusCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("weft %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
