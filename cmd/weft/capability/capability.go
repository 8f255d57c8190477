// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements "weft capability", the delegation
// commands: minting tokens with the space key and inspecting tokens
// received from elsewhere.
package capability

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/weft-foundation/weft/cmd/weft/cli"
	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/secret"
)

// Command returns the "capability" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "capability",
		Summary: "Mint and inspect delegation tokens",
		Description: `Mint capability tokens with the space key, and inspect tokens minted
here or elsewhere.

A capability grants its audience one command path over one subject.
Grants attenuate: the audience may mint narrower links onward, and a
request presents the whole chain, root link first. Anyone holding a
chain that terminates in their key can act within its bounds; nobody
can widen what they were given.`,
		Subcommands: []*cli.Command{
			mintCommand(),
			inspectCommand(),
		},
	}
}

// tokenView is the JSON shape for a decoded capability. The claims
// struct in lib/capability has no serialization tags of its own.
type tokenView struct {
	Issuer    event.PubKey           `json:"issuer"`
	Audience  event.PubKey           `json:"audience"`
	Subject   string                 `json:"subject"`
	Command   string                 `json:"command"`
	Policy    []capability.Predicate `json:"policy,omitempty"`
	Nonce     string                 `json:"nonce"`
	ExpiresAt int64                  `json:"expires_at,omitempty"`
	NotBefore int64                  `json:"not_before,omitempty"`
}

func viewOf(c capability.Capability) tokenView {
	return tokenView{
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		Subject:   c.Subject,
		Command:   c.Command,
		Policy:    c.Policy,
		Nonce:     c.Nonce,
		ExpiresAt: c.ExpiresAt,
		NotBefore: c.NotBefore,
	}
}

type mintParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Audience  string `flag:"audience" desc:"grantee public key (64 hex characters)"`
	Subject   string `flag:"subject" desc:"schema digest the grant covers, or * for all" default:"*"`
	Command   string `flag:"command" desc:"granted command path" default:"/evt/read"`
	TTL       string `flag:"ttl" desc:"validity window from now, as a duration (e.g. 720h)"`
	NotBefore string `flag:"not-before" desc:"activation time, RFC 3339"`
}

func mintCommand() *cli.Command {
	var params mintParams

	return &cli.Command{
		Name:    "mint",
		Summary: "Mint a capability token with the space key",
		Description: `Mint a capability granting the audience a command path over a subject,
signed by this space's key. The token prints on stdout; hand it to the
grantee, who presents it (root link first) with their requests.

Without --ttl the grant never expires. Revocation is by expiry only,
so prefer short windows and re-minting over long-lived grants.`,
		Usage: "weft capability mint --audience <pubkey> [flags]",
		Examples: []cli.Example{
			{
				Description: "Grant read access to every schema for 30 days",
				Command:     "weft capability mint --audience 7f3a... --ttl 720h",
			},
			{
				Description: "Grant write access to one schema",
				Command:     "weft capability mint --audience 7f3a... --subject aa10... --command /evt/write",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("mint", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("capability mint takes no positional arguments")
			}
			if params.Audience == "" {
				return fmt.Errorf("--audience is required")
			}
			audience, err := event.ParsePubKey(params.Audience)
			if err != nil {
				return fmt.Errorf("parsing audience: %w", err)
			}

			// Normalize digest subjects to canonical hex. Other
			// subjects (program identifiers, the wildcard) pass
			// through as written.
			subject := params.Subject
			if d, err := digest.Parse(subject); err == nil {
				subject = d.String()
			}

			grant := capability.Capability{
				Audience: audience,
				Subject:  subject,
				Command:  params.Command,
			}
			if params.TTL != "" {
				ttl, err := time.ParseDuration(params.TTL)
				if err != nil {
					return fmt.Errorf("parsing --ttl: %w", err)
				}
				if ttl <= 0 {
					return fmt.Errorf("--ttl must be positive")
				}
				grant.ExpiresAt = time.Now().Add(ttl).Unix()
			}
			if params.NotBefore != "" {
				nbf, err := time.Parse(time.RFC3339, params.NotBefore)
				if err != nil {
					return fmt.Errorf("parsing --not-before: %w", err)
				}
				grant.NotBefore = nbf.Unix()
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

			key := id.PrivateKey()
			defer secret.Zero(key)
			token, err := capability.Mint(key, grant)
			if err != nil {
				return err
			}

			result := struct {
				Token  string    `json:"token"`
				Claims tokenView `json:"claims"`
			}{Token: token.String(), Claims: viewOf(token.Capability())}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Println(token.String())
			return nil
		},
	}
}

type inspectParams struct {
	cli.JSONOutput
}

func inspectCommand() *cli.Command {
	var params inspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "Verify and display capability tokens",
		Description: `Decode capability tokens and print their claims. Each token's
signature is verified against its embedded issuer key; a token that
fails verification is rejected. Expiry is not checked here (the space
evaluates time bounds per request), so an expired token still decodes.

With several tokens, give them in chain order to read a delegation
chain: each link's audience should issue the next.`,
		Usage: "weft capability inspect <token>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Inspect a received token",
				Command:     "weft capability inspect eyJhbGciOiJFZERTQSIs...",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inspect", &params)
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("capability inspect requires at least one token")
			}
			views := make([]tokenView, 0, len(args))
			for i, raw := range args {
				token, err := capability.Parse(raw)
				if err != nil {
					return fmt.Errorf("token %d: %w", i+1, err)
				}
				views = append(views, viewOf(token.Capability()))
			}
			if done, err := params.EmitJSON(views); done {
				return err
			}
			for i, view := range views {
				if i > 0 {
					fmt.Println()
				}
				printToken(view)
			}
			return nil
		},
	}
}

func printToken(view tokenView) {
	fmt.Printf("issuer:     %s\n", view.Issuer)
	fmt.Printf("audience:   %s\n", view.Audience)
	fmt.Printf("subject:    %s\n", view.Subject)
	fmt.Printf("command:    %s\n", view.Command)
	fmt.Printf("nonce:      %s\n", view.Nonce)
	if view.ExpiresAt != 0 {
		fmt.Printf("expires:    %s\n", time.Unix(view.ExpiresAt, 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("expires:    never\n")
	}
	if view.NotBefore != 0 {
		fmt.Printf("not before: %s\n", time.Unix(view.NotBefore, 0).UTC().Format(time.RFC3339))
	}
	for _, p := range view.Policy {
		fmt.Printf("policy:     %s %s %v\n", p.Param, p.Op, p.Value)
	}
}
