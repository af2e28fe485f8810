package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")
	require.Equal(t, "failed: boom", err.Error())
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", http.StatusBadRequest)
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestFromErrorKeepsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("notification service: mark read: %w", ErrNotFound)
	require.Same(t, ErrNotFound, FromError(wrapped))

	out := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternalServer.Code, out.Code)
	require.NotNil(t, out.Internal)
	require.Nil(t, FromError(nil))
}

func TestConstructorsReuseCodes(t *testing.T) {
	bad := NewBadRequest("invalid payload")
	require.Equal(t, ErrBadRequest.Code, bad.Code)
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing := NewNotFound("notification")
	require.Equal(t, "notification not found", missing.Message)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	forbidden := NewForbidden("admin role required")
	require.Equal(t, ErrForbidden.Code, forbidden.Code)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFound("course"))
	require.True(t, stdErrors.Is(err, ErrNotFound))
	require.False(t, stdErrors.Is(err, ErrForbidden))
	require.True(t, stdErrors.Is(ErrConflict.WithInternal(stdErrors.New("dup")), ErrConflict))
}
