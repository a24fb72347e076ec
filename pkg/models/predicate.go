// Package models provides predicate evaluation for condition and branch steps.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is a predicate comparison operator. The set is closed; evaluation
// dispatches exhaustively.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpContains       Operator = "contains"
	OpExists         Operator = "exists"
)

// Predicate tests one field of an execution context's variable bag. Field
// supports dotted paths into nested maps ("appointment.type").
type Predicate struct {
	Field string   `json:"field" validate:"required"`
	Op    Operator `json:"op"    validate:"required"`
	Value any      `json:"value,omitempty"`
}

// Evaluate applies the predicate to the variable bag. A missing field fails
// every operator except exists; a type mismatch is an error, not a silent
// false, so misconfigured predicates surface in logs.
func (p Predicate) Evaluate(vars map[string]any) (bool, error) {
	value, found := lookupPath(vars, p.Field)

	if p.Op == OpExists {
		return found, nil
	}

	if !found {
		return false, nil
	}

	switch p.Op {
	case OpEquals:
		return looseEqual(value, p.Value), nil
	case OpNotEquals:
		return !looseEqual(value, p.Value), nil
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		left, err := toFloat(value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", p.Field, err)
		}

		right, err := toFloat(p.Value)
		if err != nil {
			return false, fmt.Errorf("predicate value for %q: %w", p.Field, err)
		}

		switch p.Op {
		case OpGreaterThan:
			return left > right, nil
		case OpLessThan:
			return left < right, nil
		case OpGreaterOrEqual:
			return left >= right, nil
		default:
			return left <= right, nil
		}
	case OpContains:
		return strings.Contains(fmt.Sprintf("%v", value), fmt.Sprintf("%v", p.Value)), nil
	default:
		return false, fmt.Errorf("unknown predicate operator %q", p.Op)
	}
}

// lookupPath walks a dotted path through nested map[string]any values.
func lookupPath(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(vars)

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEqual compares values of possibly different dynamic types: numbers
// numerically, everything else by string form. JSON round-trips turn ints
// into float64, so strict equality would reject configured integer values.
func looseEqual(a, b any) bool {
	fa, errA := toFloat(a)
	fb, errB := toFloat(b)

	if errA == nil && errB == nil {
		return fa == fb
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to number", n)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}
