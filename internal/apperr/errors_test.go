package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("invalid_dates", "bad"), http.StatusBadRequest, "invalid_dates"},
		{NotFound("", "gone"), http.StatusNotFound, "not_found"},
		{BusinessRule("invalid_transition", "no"), http.StatusUnprocessableEntity, "invalid_transition"},
		{Forbidden("transition_forbidden", "no"), http.StatusForbidden, "transition_forbidden"},
		{Consistency("stay_ahead", "x"), http.StatusInternalServerError, "stay_ahead"},
		{LockTimeout("lock_timeout", "busy"), http.StatusServiceUnavailable, "lock_timeout"},
		{InsufficientBalance("insufficient_balance", "x"), http.StatusUnprocessableEntity, "insufficient_balance"},
		{InFlight("request_in_flight", "x"), http.StatusConflict, "request_in_flight"},
		{errors.New("driver exploded"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := HTTPStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWrappedErrorsKeepKindAndCode(t *testing.T) {
	err := fmt.Errorf("apply: %w", NotFound("reservation_not_found", "reservation %s not found", "r1"))

	assert.True(t, errors.Is(err, ErrNotFound))
	status, code := HTTPStatus(err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "reservation_not_found", code)
	assert.Equal(t, "reservation r1 not found", Message(err))
}

func TestMessageHidesUnknownErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("dial tcp 10.0.0.3:3306: refused")))
	assert.Equal(t, "forbidden", Message(&Error{Kind: ErrForbidden}))
}
