// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package status implements "weft status", the space health check.
package status

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/boundary"
)

type statusParams struct {
	cli.Connection
	cli.JSONOutput
}

// StatusCommand returns the top-level "status" command.
func StatusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show space counters",
		Description: `Query the space service for its owner identity and object counts.
Useful as a liveness check: if status answers, the service is up and
the database is readable.`,
		Usage: "weft status [flags]",
		Examples: []cli.Example{
			{
				Description: "Check the local space",
				Command:     "weft status",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("status takes no positional arguments")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var status boundary.Status
			if err := client.Call(ctx, "status", nil, &status); err != nil {
				return err
			}

			if done, err := params.EmitJSON(status); done {
				return err
			}
			fmt.Printf("owner:        %s\n", status.Owner)
			fmt.Printf("events:       %d\n", status.Events)
			fmt.Printf("schemas:      %d\n", status.Schemas)
			fmt.Printf("capabilities: %d\n", status.Capabilities)
			fmt.Printf("blobs:        %d (%d bytes)\n", status.Blobs, status.BlobBytes)
			return nil
		},
	}
}
