package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is one of the closed set of filter operators §4.B allows in a
// `field__op` filter key.
type Op string

const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIn      Op = "in"
	OpNin     Op = "nin"
	OpLike    Op = "like"
	OpIlike   Op = "ilike"
	OpIsNull  Op = "isnull"
	OpNotNull Op = "notnull"
	OpBetween Op = "between"
)

var sqlByOp = map[Op]string{
	OpEq:    "=",
	OpNe:    "<>",
	OpGt:    ">",
	OpGte:   ">=",
	OpLt:    "<",
	OpLte:   "<=",
	OpLike:  "LIKE",
	OpIlike: "ILIKE",
}

// Filter is one parsed `field__op=value` query parameter.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// ParseFilterKey splits a raw "field__op" key into its field and operator,
// failing on an operator outside the closed set (§4.B).
func ParseFilterKey(key string) (field string, op Op, err error) {
	idx := strings.LastIndex(key, "__")
	if idx < 0 {
		return "", "", fmt.Errorf("filter key %q is missing an __op suffix", key)
	}
	field, rawOp := key[:idx], key[idx+2:]
	op = Op(rawOp)
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpLike, OpIlike, OpIsNull, OpNotNull, OpBetween:
		return field, op, nil
	default:
		return "", "", fmt.Errorf("unknown filter operator %q", rawOp)
	}
}

// buildPredicate renders one Filter as a parameterized SQL fragment, appending
// its bind arguments to args and returning the updated slice.
func buildPredicate(f Filter, col Column, args []any) (string, []any, error) {
	coerced, err := coerce(f.Value, col.Kind)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", f.Field, err)
	}

	switch f.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpLike, OpIlike:
		args = append(args, coerced)
		return fmt.Sprintf("%s %s $%d", col.Name, sqlByOp[f.Op], len(args)), args, nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", col.Name), args, nil
	case OpNotNull:
		return fmt.Sprintf("%s IS NOT NULL", col.Name), args, nil
	case OpIn, OpNin:
		values, ok := f.Value.([]any)
		if !ok || len(values) == 0 {
			return "", nil, fmt.Errorf("field %q: %s requires a non-empty list", f.Field, f.Op)
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			cv, err := coerce(v, col.Kind)
			if err != nil {
				return "", nil, err
			}
			args = append(args, cv)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		verb := "IN"
		if f.Op == OpNin {
			verb = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col.Name, verb, strings.Join(placeholders, ", ")), args, nil
	case OpBetween:
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 {
			return "", nil, fmt.Errorf("field %q: between requires exactly two values", f.Field)
		}
		lo, err := coerce(bounds[0], col.Kind)
		if err != nil {
			return "", nil, err
		}
		hi, err := coerce(bounds[1], col.Kind)
		if err != nil {
			return "", nil, err
		}
		args = append(args, lo, hi)
		return fmt.Sprintf("%s BETWEEN $%d AND $%d", col.Name, len(args)-1, len(args)), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
	}
}

func coerce(v any, kind ColumnKind) (any, error) {
	s, isString := v.(string)
	switch kind {
	case KindInt:
		if !isString {
			return v, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", s)
		}
		return n, nil
	case KindFloat:
		if !isString {
			return v, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", s)
		}
		return f, nil
	case KindBool:
		if !isString {
			return v, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", s)
		}
		return b, nil
	default:
		return v, nil
	}
}
