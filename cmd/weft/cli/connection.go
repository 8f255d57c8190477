// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/weft-foundation/weft/lib/boundary"
	"github.com/weft-foundation/weft/lib/config"
	"github.com/weft-foundation/weft/lib/identity"
	"github.com/weft-foundation/weft/lib/secret"
)

// callTimeout bounds one boundary call. Appends and queries are fast;
// the margin covers a daemon busy compacting or validating.
const callTimeout = 30 * time.Second

// ConfigFlag carries the --config flag for commands that work on
// local files without talking to the service. Embed it in a params
// struct; [BindFlags] calls AddFlags to register the flag.
type ConfigFlag struct {
	// ConfigPath is the --config override. Empty means $WEFT_CONFIG
	// or the built-in defaults.
	ConfigPath string
}

// AddFlags registers the --config flag.
func (c *ConfigFlag) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to the weft.yaml config file (default $WEFT_CONFIG)")
}

// Config resolves the effective configuration for this invocation.
func (c *ConfigFlag) Config() (*config.Config, error) {
	if c.ConfigPath != "" {
		return config.LoadFile(c.ConfigPath)
	}
	return config.Load()
}

// Connection carries the flags every command that talks to the space
// service shares.
type Connection struct {
	ConfigFlag

	// SocketPath is the --socket override. Empty means the config's
	// socket path.
	SocketPath string

	// Capabilities is the delegation chain presented to the service,
	// one JWT per link, root grant first.
	Capabilities []string
}

// AddFlags registers the shared connection flags.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	c.ConfigFlag.AddFlags(flagSet)
	flagSet.StringVar(&c.SocketPath, "socket", "", "space service socket path (overrides config)")
	flagSet.StringSliceVar(&c.Capabilities, "capability", nil, "capability JWT proving delegated access, root link first (repeatable)")
}

// Client dials the space service. The returned client carries the
// connection's capability chain on every call.
func (c *Connection) Client() (*boundary.Client, error) {
	socket := c.SocketPath
	if socket == "" {
		cfg, err := c.Config()
		if err != nil {
			return nil, err
		}
		socket = cfg.SocketPath
	}
	client := boundary.NewClient(socket)
	if len(c.Capabilities) > 0 {
		client = client.WithChain(c.Capabilities)
	}
	return client, nil
}

// CallContext returns a context with the standard timeout for one
// boundary call.
func CallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

// Passphrase returns the keyfile passphrase from the config's sources
// (environment variable, then passphrase file), falling back to an
// interactive no-echo prompt when stdin is a terminal. The caller owns
// the buffer.
func Passphrase(cfg *config.Config) (*secret.Buffer, error) {
	buf, cfgErr := cfg.Passphrase()
	if cfgErr == nil {
		return buf, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, cfgErr
	}
	return promptPassphrase("Passphrase: ")
}

// NewPassphrase returns a passphrase for sealing a new keyfile: the
// config's sources when present, otherwise an interactive prompt with
// confirmation. The caller owns the buffer.
func NewPassphrase(cfg *config.Config) (*secret.Buffer, error) {
	buf, cfgErr := cfg.Passphrase()
	if cfgErr == nil {
		return buf, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, cfgErr
	}
	first, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return nil, err
	}
	second, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		first.Close()
		return nil, err
	}
	defer second.Close()
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		first.Close()
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
// The caller has already checked that stdin is a terminal.
func promptPassphrase(prompt string) (*secret.Buffer, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return secret.NewFromBytes(raw)
}

// OpenIdentity unseals the space keyfile named by the config, for
// commands that sign or decrypt locally instead of going through the
// service.
func OpenIdentity(cfg *config.Config) (*identity.Identity, error) {
	passphrase, err := Passphrase(cfg)
	if err != nil {
		return nil, err
	}
	defer passphrase.Close()

	id, err := identity.Load(cfg.Keyfile.Path, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unsealing %s: %w", cfg.Keyfile.Path, err)
	}
	return id, nil
}
