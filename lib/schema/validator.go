// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/weft-foundation/weft/lib/digest"
)

// Validator checks a candidate value against a definition. A nil
// error means the value conforms; conformance failures wrap
// [ErrValidation].
type Validator interface {
	Validate(def *Definition, value []byte) error
}

// CUEValidator compiles definitions to CUE constraints and unifies
// values against them. Constraints are cached by definition digest,
// so repeated appends against one schema compile it once.
type CUEValidator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	cache map[digest.Digest]cue.Value
}

// NewCUEValidator returns a validator with an empty constraint cache.
func NewCUEValidator() *CUEValidator {
	return &CUEValidator{
		ctx:   cuecontext.New(),
		cache: make(map[digest.Digest]cue.Value),
	}
}

// Validate implements [Validator].
func (v *CUEValidator) Validate(def *Definition, value []byte) error {
	if def == nil {
		return fmt.Errorf("%w: no definition", ErrValidation)
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: value is not valid JSON", ErrValidation)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	constraint, err := v.constraint(def)
	if err != nil {
		return err
	}
	data := v.ctx.CompileBytes(value, cue.Filename("value.json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, cueSummary(err))
	}
	unified := constraint.Unify(data)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("%w: value does not conform to %q: %s", ErrValidation, def.Title(), cueSummary(err))
	}
	return nil
}

func (v *CUEValidator) constraint(def *Definition) (cue.Value, error) {
	d := def.Digest()
	if cached, ok := v.cache[d]; ok {
		return cached, nil
	}
	src := constraintSource(def)
	val := v.ctx.CompileString(src, cue.Filename(def.Title()+".cue"))
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("schema: compile constraint for %q: %w", def.Title(), err)
	}
	v.cache[d] = val
	return val, nil
}

// constraintSource renders a definition as CUE. Tuple definitions
// become closed list literals (exact arity); object definitions
// become closed structs (unknown fields rejected) with optional
// markers on non-required fields.
func constraintSource(def *Definition) string {
	var b strings.Builder
	switch def.form {
	case FormTuple:
		b.WriteString("[")
		for i, f := range def.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fieldConstraint(f))
		}
		b.WriteString("]")
	case FormObject:
		b.WriteString("close({\n")
		for _, f := range def.fields {
			b.WriteString("\t")
			b.WriteString(strconv.Quote(f.Title))
			if !f.Required {
				b.WriteString("?")
			}
			b.WriteString(": ")
			b.WriteString(fieldConstraint(f))
			b.WriteString("\n")
		}
		b.WriteString("})")
	}
	return b.String()
}

// cueTypes maps definition field types to CUE expressions. Keys match
// fieldTypes in definition.go; Parse guarantees lookups hit.
var cueTypes = map[string]string{
	"string":  "string",
	"integer": "int",
	"number":  "number",
	"boolean": "bool",
	"array":   "[...]",
	"object":  "{...}",
	"null":    "null",
}

func fieldConstraint(f Field) string {
	expr := cueTypes[f.Type]
	if f.Nullable {
		expr = "(" + expr + " | null)"
	}
	return expr
}

// cueSummary flattens a CUE error list into one line. CUE errors
// carry positions into synthesized sources that mean nothing to
// callers, so only the messages are kept.
func cueSummary(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}
