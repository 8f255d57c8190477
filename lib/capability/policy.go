// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"reflect"
	"strings"
)

// Predicate operators. Anything else fails evaluation.
const (
	OpEqual  = "=="
	OpIn     = "in"
	OpPrefix = "prefix"
)

// Predicate constrains one request parameter. A predicate over a
// parameter the request does not supply fails: absence is never
// acceptance.
type Predicate struct {
	Op    string `json:"op"`
	Param string `json:"param"`
	Value any    `json:"value"`
}

func (p Predicate) validate() error {
	switch p.Op {
	case OpEqual, OpIn, OpPrefix:
	default:
		return fmt.Errorf("unknown op %q", p.Op)
	}
	if p.Param == "" {
		return fmt.Errorf("param is required")
	}
	if p.Op == OpIn {
		if _, ok := p.Value.([]any); !ok {
			return fmt.Errorf("op %q needs an array value", OpIn)
		}
	}
	return nil
}

// holds evaluates the predicate against the request parameters.
// Unknown operators and missing parameters fail closed.
func (p Predicate) holds(params map[string]any) bool {
	got, ok := params[p.Param]
	if !ok {
		return false
	}
	switch p.Op {
	case OpEqual:
		return looseEqual(got, p.Value)
	case OpIn:
		members, ok := p.Value.([]any)
		if !ok {
			return false
		}
		for _, member := range members {
			if looseEqual(got, member) {
				return true
			}
		}
		return false
	case OpPrefix:
		gotStr, ok1 := got.(string)
		wantStr, ok2 := p.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(gotStr, wantStr)
	default:
		return false
	}
}

// looseEqual compares a request parameter with a policy value.
// Numbers compare by value regardless of Go type, because policy
// values arrive through JSON (always float64) while request
// parameters are built in Go code (often int).
func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
