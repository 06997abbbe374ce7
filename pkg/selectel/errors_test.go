package selectel

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusNoContent, nil},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
		{http.StatusMovedPermanently, ErrUnexpected},
		{http.StatusUnprocessableEntity, ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.code))
		})
	}
}

func TestNewAPIError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{transactionHeader: {"tx123"}},
	}

	apiErr := newAPIError(resp, []byte("no such container"))

	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "tx123", apiErr.RequestID)
	assert.Equal(t, "selectel: HTTP 404 (request-id: tx123): no such container", apiErr.Error())

	var err error = apiErr
	require.ErrorIs(t, err, ErrNotFound)

	var target *APIError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "no such container", target.Message)
}

func TestAPIError_NoRequestID(t *testing.T) {
	apiErr := newAPIError(&http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}, nil)

	assert.Equal(t, "selectel: HTTP 502: ", apiErr.Error())
	assert.ErrorIs(t, apiErr, ErrServerError)
}
