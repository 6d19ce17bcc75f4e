package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapToHTTPStatus(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		code   ErrorCode
		status int
	}{
		{Validation("bad input"), CodeValidation, http.StatusBadRequest},
		{Unauthorized("no token"), CodeAuthentication, http.StatusUnauthorized},
		{Forbidden("wrong role"), CodeAuthorization, http.StatusForbidden},
		{NotFound("missing"), CodeNotFound, http.StatusNotFound},
		{InvalidState("already completed"), CodeInvalidState, http.StatusBadRequest},
		{Conflict("taken"), CodeConflict, http.StatusConflict},
		{Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
	}
}

func TestInternalWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to load order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetServiceErrorUnwrapsChains(t *testing.T) {
	svcErr := NotFound("order not found")
	wrapped := fmt.Errorf("handling request: %w", svcErr)

	got := GetServiceError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeNotFound, got.Code)

	assert.Nil(t, GetServiceError(errors.New("plain")))
	assert.Nil(t, GetServiceError(nil))
}

func TestIsCode(t *testing.T) {
	err := Validation("bad")
	assert.True(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeValidation))
	assert.False(t, IsCode(nil, CodeValidation))
}

func TestWithDetails(t *testing.T) {
	err := Validation("unknown menu items").
		WithDetails("missing_ids", []string{"a", "b"}).
		WithDetails("hint", "refresh the menu")

	require.NotNil(t, err.Details)
	assert.Equal(t, []string{"a", "b"}, err.Details["missing_ids"])
	assert.Equal(t, "refresh the menu", err.Details["hint"])
}
