// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"slices"
	"time"

	"github.com/weft-foundation/weft/lib/event"
)

// Request is one operation to authorize.
type Request struct {
	// Subject is the resource being touched: a schema digest in hex
	// or a program identifier.
	Subject string

	// Command is the "/"-rooted operation path, e.g. "/evt/write".
	Command string

	// Caller is the key asking to perform the operation. The chain's
	// terminal audience must be this key.
	Caller event.PubKey

	// Params feed the policy predicates. Missing parameters fail any
	// predicate that names them.
	Params map[string]any

	// At is the evaluation time for expiry and not-before checks. A
	// zero At fails any link that carries a time bound.
	At time.Time
}

// DenyReason describes why a chain was rejected.
type DenyReason int

const (
	// ReasonNone means the request was allowed.
	ReasonNone DenyReason = iota

	// ReasonEmptyChain means no capabilities were presented.
	ReasonEmptyChain

	// ReasonUntrustedRoot means the first link's issuer is not a
	// trusted root.
	ReasonUntrustedRoot

	// ReasonBrokenLink means a link's issuer is not the previous
	// link's audience.
	ReasonBrokenLink

	// ReasonWrongCaller means the terminal audience is not the
	// requesting key.
	ReasonWrongCaller

	// ReasonSubjectEscalation means a link widened its parent's
	// subject.
	ReasonSubjectEscalation

	// ReasonSubjectMismatch means the terminal subject does not cover
	// the requested subject.
	ReasonSubjectMismatch

	// ReasonCommandEscalation means a link widened its parent's
	// command path.
	ReasonCommandEscalation

	// ReasonCommandMismatch means the terminal command does not cover
	// the requested command.
	ReasonCommandMismatch

	// ReasonExpired means a link's expiry has passed (or the request
	// time is unknown).
	ReasonExpired

	// ReasonNotYetValid means a link's not-before is still in the
	// future (or the request time is unknown).
	ReasonNotYetValid

	// ReasonPolicyFailed means a link's policy predicates do not hold
	// for the request parameters.
	ReasonPolicyFailed
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "allowed"
	case ReasonEmptyChain:
		return "empty chain"
	case ReasonUntrustedRoot:
		return "root issuer is not trusted"
	case ReasonBrokenLink:
		return "issuer is not the previous audience"
	case ReasonWrongCaller:
		return "terminal audience is not the caller"
	case ReasonSubjectEscalation:
		return "subject widened mid-chain"
	case ReasonSubjectMismatch:
		return "subject does not cover the request"
	case ReasonCommandEscalation:
		return "command widened mid-chain"
	case ReasonCommandMismatch:
		return "command does not cover the request"
	case ReasonExpired:
		return "link expired"
	case ReasonNotYetValid:
		return "link not yet valid"
	case ReasonPolicyFailed:
		return "policy predicate failed"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check, with enough
// trace to log or debug a denial.
type Decision struct {
	// Allowed reports whether the chain authorizes the request.
	Allowed bool

	// Command is the terminal link's command path, the most specific
	// grant that covered the request. Empty on denial.
	Command string

	// Reason describes the denial. ReasonNone when allowed.
	Reason DenyReason

	// Link is the index of the link that broke the chain, -1 when the
	// failure is not attributable to one link (empty chain). Only
	// meaningful on denial.
	Link int
}

func deny(reason DenyReason, link int) Decision {
	return Decision{Reason: reason, Link: link}
}

// Authorize walks the chain from root to caller and decides the
// request. The chain is evaluated in presented order:
//
//  1. chain[0]'s issuer must be a trusted root.
//  2. Every link's issuer must be the previous link's audience.
//  3. Every link must only narrow its parent: commands attenuate by
//     path prefix, subjects by wildcard-to-specific.
//  4. Every link must be inside its time window at req.At and have
//     all its policy predicates hold for req.Params.
//  5. The terminal link's audience must be req.Caller, and its
//     subject and command must cover the request.
//
// Signatures are not re-checked here: a [Token] cannot exist without
// having passed signature verification in Parse or Mint.
//
// Authorize is pure. It never touches storage or the clock, so it is
// safe to call speculatively.
func Authorize(req Request, chain []*Token, roots []event.PubKey) Decision {
	if len(chain) == 0 {
		return deny(ReasonEmptyChain, -1)
	}
	if !slices.Contains(roots, chain[0].cap.Issuer) {
		return deny(ReasonUntrustedRoot, 0)
	}

	for i, link := range chain {
		c := link.cap

		if i > 0 {
			parent := chain[i-1].cap
			if c.Issuer != parent.Audience {
				return deny(ReasonBrokenLink, i)
			}
			if !subjectCovers(parent.Subject, c.Subject) {
				return deny(ReasonSubjectEscalation, i)
			}
			if !commandCovers(parent.Command, c.Command) {
				return deny(ReasonCommandEscalation, i)
			}
		}

		if c.ExpiresAt != 0 && (req.At.IsZero() || req.At.Unix() >= c.ExpiresAt) {
			return deny(ReasonExpired, i)
		}
		if c.NotBefore != 0 && (req.At.IsZero() || req.At.Unix() < c.NotBefore) {
			return deny(ReasonNotYetValid, i)
		}

		for _, predicate := range c.Policy {
			if !predicate.holds(req.Params) {
				return deny(ReasonPolicyFailed, i)
			}
		}
	}

	terminal := chain[len(chain)-1].cap
	if terminal.Audience != req.Caller {
		return deny(ReasonWrongCaller, len(chain)-1)
	}
	if !subjectCovers(terminal.Subject, req.Subject) {
		return deny(ReasonSubjectMismatch, len(chain)-1)
	}
	if !commandCovers(terminal.Command, req.Command) {
		return deny(ReasonCommandMismatch, len(chain)-1)
	}

	return Decision{Allowed: true, Command: terminal.Command}
}
