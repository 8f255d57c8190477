// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the weft CLI.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a [pflag.FlagSet]
// factory, and a Run function. Commands are assembled into a tree in
// cmd/weft/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help
// output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3). This is
// implemented in suggest.go.
//
// Most commands declare their flags as tagged struct fields and bind
// them with [FlagsFromParams]; see params.go for the tag grammar.
//
// The package also provides the weft-specific plumbing shared by
// subcommand packages: [Connection] carries the --config, --socket,
// and --capability flags and dials the space service; [OpenIdentity]
// unseals the local keyfile, prompting for the passphrase when stdin
// is a terminal.
package cli
