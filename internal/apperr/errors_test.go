package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerivedErrorsMatchSentinel(t *testing.T) {
	err := NotFound("call %s not found", "call_1")

	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrForbidden)
	require.Equal(t, "call call_1 not found", err.Error())
	require.Equal(t, http.StatusNotFound, err.StatusCode)
}

func TestWrappedAppErrorStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("accept: %w", Conflict("call is not ringing"))

	require.ErrorIs(t, wrapped, ErrConflict)
	require.Equal(t, "CONFLICT", FromError(wrapped).Code)
}

func TestFromErrorDefaultsToUpstream(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := FromError(cause)

	require.Equal(t, ErrUpstreamUnavailable.Code, appErr.Code)
	require.ErrorIs(t, appErr, cause)
	require.Nil(t, FromError(nil))
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Upstream(cause, "failed to persist message")

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.Equal(t, "failed to persist message: timeout", err.Error())
}

func TestNilAppErrorIsSafe(t *testing.T) {
	var err *AppError
	require.Equal(t, "<nil>", err.Error())
	require.Nil(t, err.Unwrap())
	require.Nil(t, err.WithInternal(errors.New("x")))
}
