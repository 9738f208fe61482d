package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation_CarriesIssuesAnd422(t *testing.T) {
	err := Validation([]Issue{{Code: "required", Path: "email", Message: "email is required"}})
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.Equal(t, KindValidation, err.Kind)
	assert.Len(t, err.Issues, 1)
}

func TestNotFound_MessageNamesResource(t *testing.T) {
	err := NotFound("user")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "user not found", err.Message)
}

func TestRetryableDependency_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := RetryableDependency("failed to reach database", cause)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
	assert.ErrorIs(t, err, cause)
}

func TestToEnvelope_HidesStackOutsideDebugMode(t *testing.T) {
	err := Fatal(errors.New("boom"))

	prod := err.ToEnvelope(false)
	assert.Empty(t, prod.Error.Stack)

	dev := err.ToEnvelope(true)
	assert.Equal(t, "boom", dev.Error.Stack)
}

func TestList_SetsPaginationMetadata(t *testing.T) {
	env := List([]int{1, 2, 3}, 20, 40, 103)
	assert.Equal(t, []int{1, 2, 3}, env.Data)
	assert.Equal(t, &Metadata{Limit: 20, Offset: 40, Total: 103}, env.Metadata)
	assert.Nil(t, env.Error)
}
