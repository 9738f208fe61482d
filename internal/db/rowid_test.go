package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowID_HandlesDriverIntegerTypes(t *testing.T) {
	assert.Equal(t, 5, RowID(map[string]any{"id": 5}))
	assert.Equal(t, 5, RowID(map[string]any{"id": int32(5)}))
	assert.Equal(t, 5, RowID(map[string]any{"id": int64(5)}))
}

func TestRowID_ZeroForMissingOrUnknownType(t *testing.T) {
	assert.Equal(t, 0, RowID(map[string]any{}))
	assert.Equal(t, 0, RowID(map[string]any{"id": "5"}))
	assert.Equal(t, 0, RowID(map[string]any{"id": nil}))
}
