// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Weft is the operator CLI for a weft space. It manages the space
// signing key (key), schema definitions (schema), rows (row),
// delegation tokens (capability), and encrypted bundles (export,
// import), and checks service health (status).
package main

import (
	"fmt"
	"os"

	"github.com/weft-foundation/weft/cmd/weft/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that manage their own output return an exitError
		// carrying the desired code. Don't print a redundant "error:"
		// line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
