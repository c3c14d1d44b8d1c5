package domain

import (
	"fmt"
	"strings"
)

// ConditionKind tags one variant of a parsed filter condition.
type ConditionKind string

const (
	CondEq        ConditionKind = "eq"
	CondNeq       ConditionKind = "neq"
	CondGt        ConditionKind = "gt"
	CondGte       ConditionKind = "gte"
	CondLt        ConditionKind = "lt"
	CondLte       ConditionKind = "lte"
	CondLike      ConditionKind = "like"
	CondIn        ConditionKind = "in"
	CondIsNull    ConditionKind = "is_null"
	CondIsNotNull ConditionKind = "is_not_null"
)

// Condition is one parsed filter predicate. Filters are parsed once at
// the validator boundary and never re-interpreted downstream.
type Condition struct {
	Column string
	Kind   ConditionKind
	Value  interface{}   // scalar operand, nil for null checks
	Values []interface{} // membership operand
}

// ModifierPrefix marks filter keys that are clause modifiers rather than
// column names. Modifier keys are excluded from column whitelisting.
const ModifierPrefix = "$"

// operatorKinds maps caller-supplied operator names to condition kinds.
var operatorKinds = map[string]ConditionKind{
	"eq":       CondEq,
	"neq":      CondNeq,
	"ne":       CondNeq,
	"gt":       CondGt,
	"gte":      CondGte,
	"lt":       CondLt,
	"lte":      CondLte,
	"like":     CondLike,
	"in":       CondIn,
	"is_null":  CondIsNull,
	"not_null": CondIsNotNull,
}

// ParseFilter converts a caller-supplied filter object into the tagged
// Condition list. Semantics per key:
//   - scalar value      -> equality
//   - nil               -> IS NULL
//   - array             -> set membership (empty arrays are rejected)
//   - {op, value} map   -> explicit operator
//
// Keys carrying the modifier prefix are skipped here; downstream stages
// that do not understand a modifier must reject it.
// Conditions combine with logical AND.
func ParseFilter(filter map[string]interface{}) ([]Condition, error) {
	conds := make([]Condition, 0, len(filter))
	for column, raw := range filter {
		if strings.HasPrefix(column, ModifierPrefix) {
			return nil, ErrUnsupportedOperator(column)
		}
		cond, err := parseCondition(column, raw)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	sortConditions(conds)
	return conds, nil
}

func parseCondition(column string, raw interface{}) (Condition, error) {
	switch v := raw.(type) {
	case nil:
		return Condition{Column: column, Kind: CondIsNull}, nil
	case []interface{}:
		if len(v) == 0 {
			return Condition{}, ErrEmptyMembership(column)
		}
		return Condition{Column: column, Kind: CondIn, Values: v}, nil
	case map[string]interface{}:
		return parseOperatorObject(column, v)
	default:
		return Condition{Column: column, Kind: CondEq, Value: raw}, nil
	}
}

func parseOperatorObject(column string, obj map[string]interface{}) (Condition, error) {
	opRaw, ok := obj["op"]
	if !ok {
		return Condition{}, ErrValidation(fmt.Sprintf("filter on %q: operator object requires an \"op\" key", column))
	}
	op, ok := opRaw.(string)
	if !ok {
		return Condition{}, ErrValidation(fmt.Sprintf("filter on %q: \"op\" must be a string", column))
	}

	kind, ok := operatorKinds[strings.ToLower(op)]
	if !ok {
		return Condition{}, ErrUnsupportedOperator(op)
	}

	switch kind {
	case CondIsNull, CondIsNotNull:
		return Condition{Column: column, Kind: kind}, nil
	case CondIn:
		values, ok := obj["value"].([]interface{})
		if !ok {
			return Condition{}, ErrValidation(fmt.Sprintf("filter on %q: \"in\" requires an array value", column))
		}
		if len(values) == 0 {
			return Condition{}, ErrEmptyMembership(column)
		}
		return Condition{Column: column, Kind: kind, Values: values}, nil
	default:
		value, ok := obj["value"]
		if !ok {
			return Condition{}, ErrValidation(fmt.Sprintf("filter on %q: operator %q requires a value", column, op))
		}
		return Condition{Column: column, Kind: kind, Value: value}, nil
	}
}

// sortConditions orders conditions by column so generated SQL is
// deterministic regardless of map iteration order.
func sortConditions(conds []Condition) {
	for i := 1; i < len(conds); i++ {
		for j := i; j > 0 && conds[j].Column < conds[j-1].Column; j-- {
			conds[j], conds[j-1] = conds[j-1], conds[j]
		}
	}
}
