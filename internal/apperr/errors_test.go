package apperr

import (
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusByKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{ModelNotFound, http.StatusNotFound},
		{RecordNotFound, http.StatusNotFound},
		{ModelInactive, http.StatusForbidden},
		{ValidationFailed, http.StatusBadRequest},
		{UniquenessConflict, http.StatusConflict},
		{DiscoveryFailed, http.StatusUnprocessableEntity},
		{ConfigWriteFailed, http.StatusUnprocessableEntity},
		{SchemaSyncFailed, http.StatusUnprocessableEntity},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.kind, "", "x").HTTPStatus())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ConfigWriteFailed, "Customer", os.ErrPermission, "write index")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, ConfigWriteFailed, KindOf(err))
	assert.Contains(t, err.Error(), "Customer: write index")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, Is(wrapped, ConfigWriteFailed))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(fmt.Errorf("boom")))
	assert.False(t, Is(nil, Internal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestToResponse(t *testing.T) {
	err := New(UniquenessConflict, "Customer", "email already exists").
		WithField("email").
		WithDetails([]string{"email"})
	resp := ToResponse(err)
	require.Equal(t, "UniquenessConflict", resp.Error)
	assert.Equal(t, "email already exists", resp.Message)
	assert.Equal(t, "email", resp.Field)
	assert.Equal(t, []string{"email"}, resp.Details)

	assert.Equal(t, "Internal", ToResponse(fmt.Errorf("x")).Error)
}
