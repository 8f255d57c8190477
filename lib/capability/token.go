// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/weft-foundation/weft/lib/event"
)

// tokenClaims is the JWT layout. The registered claims carry issuer
// (pubkey hex), audience (pubkey hex, exactly one), subject, nonce
// (jti), and the time window; cmd and pol are private claims.
type tokenClaims struct {
	jwt.RegisteredClaims
	Command string      `json:"cmd"`
	Policy  []Predicate `json:"pol,omitempty"`
}

// Token is a parsed, signature-verified capability. Values exist only
// through [Mint] or [Parse], so holding one means the EdDSA signature
// checked out against the embedded issuer key.
type Token struct {
	cap Capability
	raw string
}

// Capability returns a copy of the payload.
func (t *Token) Capability() Capability {
	c := t.cap
	c.Policy = slices.Clone(c.Policy)
	return c
}

// String returns the compact JWT, the form stored and sent over the
// boundary.
func (t *Token) String() string {
	return t.raw
}

// Mint signs a capability with the issuer's private key and returns
// its wire token. The issuer field is derived from the key; a nonce
// is generated when absent.
func Mint(key ed25519.PrivateKey, c Capability) (*Token, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: signing key is %d bytes, want %d", ErrMalformed, len(key), ed25519.PrivateKeySize)
	}
	issuer, err := event.PubKeyFrom(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	if !c.Issuer.IsZero() && c.Issuer != issuer {
		return nil, fmt.Errorf("%w: issuer %s does not match the signing key %s", ErrMalformed, c.Issuer.Short(), issuer.Short())
	}
	c.Issuer = issuer
	if c.Nonce == "" {
		c.Nonce = uuid.NewString()
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.Issuer.String(),
			Audience: jwt.ClaimStrings{c.Audience.String()},
			Subject:  c.Subject,
			ID:       c.Nonce,
		},
		Command: c.Command,
		Policy:  c.Policy,
	}
	if c.ExpiresAt != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0))
	}
	if c.NotBefore != 0 {
		claims.NotBefore = jwt.NewNumericDate(time.Unix(c.NotBefore, 0))
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("capability: sign token: %w", err)
	}
	return &Token{cap: c, raw: raw}, nil
}

// Parse verifies a wire token against its embedded issuer key and
// returns it. Time-window claims are carried through unchecked here;
// [Authorize] evaluates them against the request time, so a stored
// expired token still parses.
func Parse(raw string) (*Token, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		inner, ok := token.Claims.(*tokenClaims)
		if !ok {
			return nil, fmt.Errorf("capability: unexpected claims type %T", token.Claims)
		}
		issuer, err := event.ParsePubKey(inner.Issuer)
		if err != nil {
			return nil, fmt.Errorf("capability: issuer claim: %w", err)
		}
		return ed25519.PublicKey(issuer[:]), nil
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("capability: parse token: %w", err)
	}

	c, err := capabilityFromClaims(&claims)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Token{cap: c, raw: raw}, nil
}

func capabilityFromClaims(claims *tokenClaims) (Capability, error) {
	issuer, err := event.ParsePubKey(claims.Issuer)
	if err != nil {
		return Capability{}, fmt.Errorf("%w: issuer claim: %v", ErrMalformed, err)
	}
	if len(claims.Audience) != 1 {
		return Capability{}, fmt.Errorf("%w: %d audience claims, want 1", ErrMalformed, len(claims.Audience))
	}
	audience, err := event.ParsePubKey(claims.Audience[0])
	if err != nil {
		return Capability{}, fmt.Errorf("%w: audience claim: %v", ErrMalformed, err)
	}
	c := Capability{
		Issuer:   issuer,
		Audience: audience,
		Subject:  claims.Subject,
		Command:  claims.Command,
		Policy:   claims.Policy,
		Nonce:    claims.ID,
	}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.NotBefore != nil {
		c.NotBefore = claims.NotBefore.Unix()
	}
	return c, nil
}
