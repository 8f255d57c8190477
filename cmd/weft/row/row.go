// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package row implements "weft row", the table projection commands.
package row

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/boundary"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
)

// Command returns the "row" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "row",
		Summary: "Create, mutate, delete, and query rows",
		Description: `Work with the rows of a table.

Every command takes the table's schema as its first argument, either
the title or the definition digest. Writes append events to the log;
the projected table always shows each row's latest write.`,
		Subcommands: []*cli.Command{
			createCommand(),
			mutateCommand(),
			deleteCommand(),
			queryCommand(),
		},
	}
}

// resolveSchema turns a title-or-digest argument into the definition
// digest the service expects. 64 hex characters pass through; anything
// else resolves as a title.
func resolveSchema(client *boundary.Client, arg string) (string, error) {
	if _, err := digest.Parse(arg); err == nil {
		return arg, nil
	}
	ctx, cancel := cli.CallContext()
	defer cancel()
	var view boundary.SchemaView
	if err := client.Call(ctx, "schema_get", map[string]any{"title": arg}, &view); err != nil {
		return "", err
	}
	return view.Digest.String(), nil
}

// readValue reads the row value: the literal argument, or stdin when
// the argument is "-".
func readValue(arg string) (json.RawMessage, error) {
	if arg != "-" {
		return json.RawMessage(arg), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading value from stdin: %w", err)
	}
	return json.RawMessage(data), nil
}

type createParams struct {
	cli.Connection
	cli.JSONOutput
}

func createCommand() *cli.Command {
	var params createParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create a row",
		Description: `Create a row with a fresh row id. The value must match the schema:
a JSON array for tuple schemas, a JSON object for flat-object schemas.
Pass "-" to read the value from stdin.

Prints the new row id.`,
		Usage: "weft row create <schema> <value> [flags]",
		Examples: []cli.Example{
			{
				Description: "Create a row in the people table",
				Command:     `weft row create people '[1,"Ada"]'`,
			},
			{
				Description: "Create from stdin",
				Command:     `cat row.json | weft row create people -`,
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("row create requires a schema and a value")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			schema, err := resolveSchema(client, args[0])
			if err != nil {
				return err
			}
			value, err := readValue(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var created event.Event
			err = client.Call(ctx, "event_create", map[string]any{
				"schema": schema,
				"value":  value,
			}, &created)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(created); done {
				return err
			}
			rowID, err := created.RowID()
			if err != nil {
				return err
			}
			fmt.Println(rowID)
			return nil
		},
	}
}

type mutateParams struct {
	cli.Connection
	cli.JSONOutput
}

func mutateCommand() *cli.Command {
	var params mutateParams

	return &cli.Command{
		Name:    "mutate",
		Summary: "Overwrite a row",
		Description: `Write a new value for an existing row id. The write wins over earlier
writes by timestamp; the old value stays in the log.`,
		Usage: "weft row mutate <schema> <row-id> <value> [flags]",
		Examples: []cli.Example{
			{
				Description: "Update a person's name",
				Command:     `weft row mutate people 0cdschqbhvh000e8tm30 '[1,"Ada Lovelace"]'`,
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("mutate", &params)
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("row mutate requires a schema, a row id, and a value")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			schema, err := resolveSchema(client, args[0])
			if err != nil {
				return err
			}
			value, err := readValue(args[2])
			if err != nil {
				return err
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var mutated event.Event
			err = client.Call(ctx, "event_mutate", map[string]any{
				"schema": schema,
				"row_id": args[1],
				"value":  value,
			}, &mutated)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(mutated); done {
				return err
			}
			fmt.Println(mutated.ID)
			return nil
		},
	}
}

type deleteParams struct {
	cli.Connection
	cli.JSONOutput
}

func deleteCommand() *cli.Command {
	var params deleteParams

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a row",
		Description: `Append a tombstone for a row id. The row disappears from queries; its
history stays in the log, and the id can be recreated by a later
write.`,
		Usage: "weft row delete <schema> <row-id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("delete", &params)
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("row delete requires a schema and a row id")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			schema, err := resolveSchema(client, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var tombstone event.Event
			err = client.Call(ctx, "event_delete", map[string]any{
				"schema": schema,
				"row_id": args[1],
			}, &tombstone)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(tombstone); done {
				return err
			}
			fmt.Println(tombstone.ID)
			return nil
		},
	}
}

type queryParams struct {
	cli.Connection
	cli.JSONOutput
	RowIDs   []string `flag:"row-id" desc:"return only these row ids (repeatable)"`
	Contains string   `flag:"contains" desc:"return only rows whose value contains this substring"`
	Offset   int      `flag:"offset" desc:"skip this many rows"`
	Limit    int      `flag:"limit" desc:"maximum rows to return (-1 for all)" default:"-1"`
}

func queryCommand() *cli.Command {
	var params queryParams

	return &cli.Command{
		Name:    "query",
		Summary: "Query a table",
		Description: `Project a table and print its rows, newest first. Filters narrow by
row id or by substring of the stored value; offset and limit paginate.`,
		Usage: "weft row query <schema> [flags]",
		Examples: []cli.Example{
			{
				Description: "All rows of the people table",
				Command:     "weft row query people",
			},
			{
				Description: "Rows mentioning lovelace, one page of 10",
				Command:     "weft row query people --contains lovelace --limit 10",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("query", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("row query requires a schema")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			schema, err := resolveSchema(client, args[0])
			if err != nil {
				return err
			}

			filter := map[string]any{}
			if len(params.RowIDs) > 0 {
				filter["row_ids"] = params.RowIDs
			}
			if params.Contains != "" {
				filter["contains"] = params.Contains
			}

			ctx, cancel := cli.CallContext()
			defer cancel()
			var result boundary.QueryResult
			err = client.Call(ctx, "event_query", map[string]any{
				"schema": schema,
				"filter": filter,
				"offset": params.Offset,
				"limit":  params.Limit,
			}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result.Rows); done {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ROW ID\tCREATED\tVALUE")
			for _, row := range result.Rows {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", row.RowID, row.CreatedAt, row.Value)
			}
			return tw.Flush()
		},
	}
}
