// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weft-foundation/weft/lib/event"
)

// Command paths with defined meanings. Capabilities may name any
// "/"-rooted path; ancestors cover descendants, so a capability for
// "/evt" covers both event writes and schema writes.
const (
	CommandEventRead   = "/evt/read"
	CommandEventWrite  = "/evt/write"
	CommandSchemaWrite = "/evt/schema/write"
	CommandExecute     = "/exe"
)

// SubjectWildcard as a subject covers every schema and program.
const SubjectWildcard = "*"

// ErrMalformed reports a capability whose fields do not satisfy the
// structural rules.
var ErrMalformed = errors.New("capability: malformed")

// Capability is the payload of one delegation link.
type Capability struct {
	// Issuer signs the capability and vouches for the grant.
	Issuer event.PubKey

	// Audience receives the grant and may delegate narrower ones.
	Audience event.PubKey

	// Subject is the resource: a schema digest in hex, a program
	// identifier, or [SubjectWildcard].
	Subject string

	// Command is the "/"-rooted operation path being granted.
	Command string

	// Policy predicates all have to hold against the request
	// parameters for the link to authorize anything.
	Policy []Predicate

	// Nonce makes otherwise identical capabilities distinct.
	Nonce string

	// ExpiresAt and NotBefore bound validity in unix seconds. Zero
	// means unbounded on that side.
	ExpiresAt int64
	NotBefore int64
}

// validate checks the structural rules shared by Mint and Parse.
func (c Capability) validate() error {
	if c.Issuer.IsZero() {
		return fmt.Errorf("%w: issuer is required", ErrMalformed)
	}
	if c.Audience.IsZero() {
		return fmt.Errorf("%w: audience is required", ErrMalformed)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrMalformed)
	}
	if err := checkCommand(c.Command); err != nil {
		return err
	}
	if c.Nonce == "" {
		return fmt.Errorf("%w: nonce is required", ErrMalformed)
	}
	for i, p := range c.Policy {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: policy[%d]: %v", ErrMalformed, i, err)
		}
	}
	if c.ExpiresAt != 0 && c.NotBefore != 0 && c.ExpiresAt <= c.NotBefore {
		return fmt.Errorf("%w: expires at %d, not before %d", ErrMalformed, c.ExpiresAt, c.NotBefore)
	}
	return nil
}

// checkCommand enforces the path rules: "/"-rooted, no empty or
// relative segments. "/" alone is the universal command.
func checkCommand(command string) error {
	if command == "" {
		return fmt.Errorf("%w: command is required", ErrMalformed)
	}
	if !strings.HasPrefix(command, "/") {
		return fmt.Errorf("%w: command %q is not /-rooted", ErrMalformed, command)
	}
	if command == "/" {
		return nil
	}
	for _, segment := range strings.Split(command[1:], "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: command %q has segment %q", ErrMalformed, command, segment)
		}
	}
	return nil
}

// commandCovers reports whether parent covers child: equal paths, or
// parent's segments are a proper prefix of child's at a "/" boundary.
// "/" covers everything.
func commandCovers(parent, child string) bool {
	if parent == "/" {
		return true
	}
	if parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}

// subjectCovers reports whether parent covers child: equal, or parent
// is the wildcard.
func subjectCovers(parent, child string) bool {
	return parent == SubjectWildcard || parent == child
}
