package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilterKey(t *testing.T) {
	cases := []struct {
		key       string
		wantField string
		wantOp    Op
		wantErr   bool
	}{
		{"email__eq", "email", OpEq, false},
		{"created_at__gte", "created_at", OpGte, false},
		{"status__between", "status", OpBetween, false},
		{"email", "", "", true},
		{"email__bogus", "", "", true},
	}
	for _, c := range cases {
		field, op, err := ParseFilterKey(c.key)
		if c.wantErr {
			assert.Error(t, err, c.key)
			continue
		}
		assert.NoError(t, err, c.key)
		assert.Equal(t, c.wantField, field, c.key)
		assert.Equal(t, c.wantOp, op, c.key)
	}
}

func TestBuildPredicate_InRequiresNonEmptyList(t *testing.T) {
	col := Column{Name: "role", Kind: KindString}
	_, _, err := buildPredicate(Filter{Field: "role", Op: OpIn, Value: []any{}}, col, nil)
	assert.Error(t, err)
}

func TestBuildPredicate_Between(t *testing.T) {
	col := Column{Name: "latency_ms", Kind: KindInt}
	clause, args, err := buildPredicate(Filter{Field: "latency_ms", Op: OpBetween, Value: []any{"10", "200"}}, col, nil)
	assert.NoError(t, err)
	assert.Equal(t, "latency_ms BETWEEN $1 AND $2", clause)
	assert.Equal(t, []any{10, 200}, args)
}

func TestCoerce_IntFromString(t *testing.T) {
	v, err := coerce("42", KindInt)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = coerce("not-a-number", KindInt)
	assert.Error(t, err)
}
