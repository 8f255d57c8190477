// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the weft
// daemon and CLI.
//
// Configuration is loaded from a single file specified by either the
// WEFT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]); without either, [Load] returns the built-in
// defaults. There is no ~/.config discovery and no automatic file
// search. This keeps configuration deterministic and auditable: the
// effective config is the defaults plus exactly one named file.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${WEFT_DATA}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Secrets never live in the file itself. The keyfile passphrase is
// read from the process environment or a separate file, and the
// optional content encryption key from its own file, both into
// [secret.Buffer] values via [Config.Passphrase] and
// [Config.ContentKey].
package config
