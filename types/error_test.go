package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrEngineUnavailable, "engine down").
		WithCause(root).
		WithHTTPStatus(503).
		WithRetryable(true)

	assert.Equal(t, ErrEngineUnavailable, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[ENGINE_UNAVAILABLE] engine down: root", err.Error())
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewNotFoundError("File not found")
	wrapped := fmt.Errorf("get script: %w", inner)

	assert.True(t, IsErrorCode(wrapped, ErrNotFound))
	assert.False(t, IsErrorCode(wrapped, ErrAlreadyExists))

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.HTTPStatus)
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestError_Constructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusConflict, NewAlreadyExistsError("dup").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, NewInvalidRequestError("bad").HTTPStatus)

	unavailable := NewEngineUnavailableError("no session")
	assert.True(t, unavailable.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.HTTPStatus)
}
