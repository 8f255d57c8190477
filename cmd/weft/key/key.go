// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package key implements "weft key", the local keyfile commands.
package key

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/identity"
)

// Command returns the "key" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Summary: "Manage the space signing key",
		Description: `Generate and inspect the space's ed25519 signing key.

The key seed is sealed in an age file encrypted with a passphrase. The
passphrase comes from the environment variable or file named in the
config, or from an interactive prompt. Losing the keyfile or the
passphrase makes the space read-only forever; there is no recovery.`,
		Subcommands: []*cli.Command{
			generateCommand(),
			showCommand(),
		},
	}
}

// keyInfo is the JSON output of the key commands.
type keyInfo struct {
	PubKey  event.PubKey `json:"pubkey"`
	Keyfile string       `json:"keyfile"`
}

type generateParams struct {
	cli.ConfigFlag
	cli.JSONOutput
}

func generateCommand() *cli.Command {
	var params generateParams

	return &cli.Command{
		Name:    "generate",
		Summary: "Generate a new space signing key",
		Description: `Generate an ed25519 keypair, seal the seed to the configured keyfile
path, and print the public key.

Refuses to overwrite an existing keyfile: the keyfile is the only copy
of the space identity. The passphrase is read from the configured
sources, or prompted for (with confirmation) on a terminal.`,
		Usage: "weft key generate [flags]",
		Examples: []cli.Example{
			{
				Description: "Generate the key for the default space",
				Command:     "weft key generate",
			},
			{
				Description: "Generate with the passphrase from the environment",
				Command:     "WEFT_PASSPHRASE=... weft key generate",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("generate", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("key generate takes no arguments")
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}

			passphrase, err := cli.NewPassphrase(cfg)
			if err != nil {
				return err
			}
			defer passphrase.Close()

			id, err := identity.Generate()
			if err != nil {
				return err
			}
			defer id.Close()

			if err := os.MkdirAll(filepath.Dir(cfg.Keyfile.Path), 0o700); err != nil {
				return err
			}
			if err := id.Save(cfg.Keyfile.Path, passphrase); err != nil {
				if errors.Is(err, identity.ErrExists) {
					return fmt.Errorf("keyfile %s already exists; refusing to overwrite a space key", cfg.Keyfile.Path)
				}
				return err
			}

			result := keyInfo{PubKey: id.PubKey(), Keyfile: cfg.Keyfile.Path}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Println(result.PubKey)
			return nil
		},
	}
}

type showParams struct {
	cli.ConfigFlag
	cli.JSONOutput
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print the space public key",
		Description: `Unseal the keyfile and print the space's public key. The public key
is what other spaces list in their trusted roots and what capability
chains name as issuer.`,
		Usage: "weft key show [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("key show takes no arguments")
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}

			id, err := cli.OpenIdentity(cfg)
			if err != nil {
				return err
			}
			defer id.Close()

			result := keyInfo{PubKey: id.PubKey(), Keyfile: cfg.Keyfile.Path}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Println(result.PubKey)
			return nil
		},
	}
}
