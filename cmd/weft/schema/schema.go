// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema implements "weft schema", the registry commands.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/boundary"
	"github.com/weft-foundation/weft/lib/digest"
)

// Command returns the "schema" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "schema",
		Summary: "Manage schema definitions",
		Description: `Load, inspect, and list the space's schema definitions.

Definitions are JSON Schema documents (tuple or flat-object form)
identified by content digest. Loading the same document twice is a
no-op; loading a changed document under an existing title supersedes
the title while old rows stay queryable under the old digest.`,
		Subcommands: []*cli.Command{
			loadCommand(),
			getCommand(),
			listCommand(),
		},
	}
}

type loadParams struct {
	cli.Connection
	cli.JSONOutput
}

func loadCommand() *cli.Command {
	var params loadParams

	return &cli.Command{
		Name:    "load",
		Summary: "Load schema definitions into the space",
		Description: `Load one or more schema definition files. Files may be JSON or JSONC
(comments and trailing commas are stripped before hashing, so a
commented file and its plain form are the same definition).`,
		Usage: "weft schema load <file>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Load a definition",
				Command:     "weft schema load people.json",
			},
			{
				Description: "Load a commented definition",
				Command:     "weft schema load schemas/tasks.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("load", &params)
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("schema load requires at least one file")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}

			loaded := make([]boundary.SchemaView, 0, len(args))
			for _, path := range args {
				doc, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				ctx, cancel := cli.CallContext()
				var view boundary.SchemaView
				err = client.Call(ctx, "schema_load_or_create", map[string]any{
					"schema": json.RawMessage(jsonc.ToJSON(doc)),
				}, &view)
				cancel()
				if err != nil {
					return fmt.Errorf("loading %s: %w", path, err)
				}
				loaded = append(loaded, view)
			}

			if done, err := params.EmitJSON(loaded); done {
				return err
			}
			for _, view := range loaded {
				fmt.Printf("%s\t%s\n", view.Title, view.Digest)
			}
			return nil
		},
	}
}

type getParams struct {
	cli.Connection
	cli.JSONOutput
}

func getCommand() *cli.Command {
	var params getParams

	return &cli.Command{
		Name:    "get",
		Summary: "Show one schema's registry record",
		Description: `Show a schema's registry record by title or by definition digest. A
64-character hex argument is treated as a digest; anything else as a
title. Titles resolve to their current version; digests resolve
superseded versions too.`,
		Usage: "weft schema get <title|digest> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("get", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("schema get requires exactly one title or digest")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}

			fields := map[string]any{}
			if _, err := digest.Parse(args[0]); err == nil {
				fields["digest"] = args[0]
			} else {
				fields["title"] = args[0]
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var view boundary.SchemaView
			if err := client.Call(ctx, "schema_get", fields, &view); err != nil {
				return err
			}

			if done, err := params.EmitJSON(view); done {
				return err
			}
			printSchema(view)
			return nil
		},
	}
}

type listParams struct {
	cli.Connection
	cli.JSONOutput
	Offset int `flag:"offset" desc:"skip this many schemas"`
	Limit  int `flag:"limit" desc:"maximum schemas to return (-1 for all)" default:"-1"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List the space's schemas",
		Description: `List the current version of every schema title, ordered by title.
With a capability chain, the listing narrows to the schemas the chain
can read.`,
		Usage: "weft schema list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("schema list takes no arguments")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var result boundary.SchemaList
			err = client.Call(ctx, "schema_list", map[string]any{
				"offset": params.Offset,
				"limit":  params.Limit,
			}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result.Schemas); done {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "TITLE\tDIGEST\tVERSIONS")
			for _, view := range result.Schemas {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", view.Title, digest.Short(view.Digest), len(view.Versions))
			}
			return tw.Flush()
		},
	}
}

func printSchema(view boundary.SchemaView) {
	fmt.Printf("title:    %s\n", view.Title)
	fmt.Printf("digest:   %s\n", view.Digest)
	fmt.Printf("row id:   %s\n", view.RowID)
	fmt.Printf("author:   %s\n", view.Author)
	fmt.Printf("created:  %d\n", view.CreatedAt)
	fmt.Printf("versions: %d\n", len(view.Versions))
	for _, version := range view.Versions {
		fmt.Printf("  %s\n", version)
	}
}
