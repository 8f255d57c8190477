// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer implements "weft export" and "weft import", the
// bundle commands. Both open the space database directly rather than
// going through the service socket; SQLite's WAL mode keeps that safe
// while the service is up.
package transfer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/clock"
	"github.com/weft-foundation/weft/lib/config"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/export"
	"github.com/weft-foundation/weft/lib/secret"
	"github.com/weft-foundation/weft/lib/space"
)

// openSpace unseals the space key and opens the database with the
// configured roots and content key. The returned cleanup closes all
// three in dependency order.
func openSpace(ctx context.Context, cfg *config.Config) (*space.Space, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, nil, err
	}
	id, err := cli.OpenIdentity(cfg)
	if err != nil {
		return nil, nil, err
	}
	contentKey, err := cfg.ContentKey()
	if err != nil {
		id.Close()
		return nil, nil, err
	}
	roots, err := cfg.RootKeys()
	if err != nil {
		if contentKey != nil {
			contentKey.Close()
		}
		id.Close()
		return nil, nil, err
	}

	sp, err := space.Open(ctx, space.Config{
		Path:       cfg.SpacePath(),
		Signer:     id,
		Clock:      clock.Real(),
		Logger:     cli.NewCommandLogger(),
		Roots:      roots,
		ContentKey: contentKey,
	})
	if err != nil {
		if contentKey != nil {
			contentKey.Close()
		}
		id.Close()
		return nil, nil, err
	}

	cleanup := func() {
		sp.Close()
		if contentKey != nil {
			contentKey.Close()
		}
		id.Close()
	}
	return sp, cleanup, nil
}

type exportParams struct {
	cli.ConfigFlag
	Schemas []string `flag:"schema" desc:"restrict to a schema digest or title (repeatable)"`
	Since   string   `flag:"since" desc:"only events at or after this time (RFC 3339 or unix seconds)"`
	To      []string `flag:"to" desc:"age recipient to encrypt to (repeatable)"`
	Out     string   `flag:"out,o" desc:"write the bundle to this file instead of stdout"`
}

// ExportCommand returns the top-level "export" command.
func ExportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Export events into an encrypted bundle",
		Description: `Collect events and the content blobs they reference into a bundle
encrypted to one or more age recipients. Without --schema the whole
log is exported; with it, only the named schemas and their registry
events. --since makes the export incremental.

Recipients are age X25519 public keys ("age1..."); generate a keypair
with age-keygen. Only the matching identities can import the bundle.`,
		Usage: "weft export --to <recipient> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export everything for one recipient",
				Command:     "weft export --to age1ql3z... --out space.weft",
			},
			{
				Description: "Incremental export of one schema",
				Command:     "weft export --schema tasks --since 2026-03-01T00:00:00Z --to age1ql3z... --out tasks.weft",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("export", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("export takes no positional arguments")
			}
			if len(params.To) == 0 {
				return fmt.Errorf("--to is required (generate recipients with age-keygen)")
			}
			since, err := parseSince(params.Since)
			if err != nil {
				return err
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sp, cleanup, err := openSpace(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			schemas := make([]digest.Digest, 0, len(params.Schemas))
			for _, arg := range params.Schemas {
				d, err := resolveSchema(sp, arg)
				if err != nil {
					return err
				}
				schemas = append(schemas, d)
			}

			bundle, err := export.Export(ctx, sp, export.Request{
				Selection:  export.Selection{Schemas: schemas, Since: since},
				Recipients: params.To,
			})
			if err != nil {
				return err
			}

			if params.Out == "" {
				_, err := os.Stdout.Write(bundle)
				return err
			}
			if err := os.WriteFile(params.Out, bundle, 0o600); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", params.Out, len(bundle))
			return nil
		},
	}
}

type importParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Identity string `flag:"identity,i" desc:"file holding the age identity line, or - for stdin"`
}

// ImportCommand returns the top-level "import" command.
func ImportCommand() *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Import an encrypted bundle into the space",
		Description: `Decrypt a bundle with an age identity and ingest its events. Every
event is verified against its claimed id and author signature before
anything is written, so a tampered bundle imports nothing. Events
already in the log are skipped; re-importing a bundle is a no-op.

The identity file holds the bare "AGE-SECRET-KEY-1..." line (strip
age-keygen's comment lines, or pass the key on stdin with -).`,
		Usage: "weft import <bundle> --identity <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Import a received bundle",
				Command:     "weft import tasks.weft --identity key.txt",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("import", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("import requires exactly one bundle file")
			}
			if params.Identity == "" {
				return fmt.Errorf("--identity is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			identity, err := secret.ReadFromPath(params.Identity)
			if err != nil {
				return err
			}
			defer identity.Close()
			cfg, err := params.Config()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sp, cleanup, err := openSpace(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := export.Import(ctx, sp, data, identity)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(report); done {
				return err
			}
			fmt.Printf("bundle:   %s\n", report.Bundle)
			fmt.Printf("space:    %s\n", report.Space)
			fmt.Printf("created:  %s\n", time.Unix(report.CreatedAt, 0).UTC().Format(time.RFC3339))
			fmt.Printf("ingested: %d\n", report.Ingested)
			fmt.Printf("known:    %d\n", report.Known)
			fmt.Printf("blobs:    %d\n", report.Blobs)
			return nil
		},
	}
}

// resolveSchema maps a --schema argument to a definition digest: a
// 64-hex argument is taken as the digest itself, anything else is
// looked up as a title in the registry.
func resolveSchema(sp *space.Space, arg string) (digest.Digest, error) {
	if d, err := digest.Parse(arg); err == nil {
		return d, nil
	}
	loaded, err := sp.SchemaByTitle(arg)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("schema %q: %w", arg, err)
	}
	return loaded.Digest(), nil
}

// parseSince accepts an RFC 3339 timestamp or raw unix seconds.
func parseSince(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.Unix(), nil
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing --since %q: want RFC 3339 or unix seconds", value)
	}
	return seconds, nil
}
