package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeSelfTrade, CodeOf(New(CodeSelfTrade, "nope")))
	assert.Equal(t, CodeStorage, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("handler: %w", New(CodeNotFound, "missing"))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestIs(t *testing.T) {
	err := Newf(CodeInvalidState, "trade is %s", "expired")
	assert.True(t, Is(err, CodeInvalidState))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(nil, CodeNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeStorage, "query failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, HTTPStatus(New(CodeNotFound, "")))
	assert.Equal(t, fiber.StatusForbidden, HTTPStatus(New(CodeNotAuthorized, "")))
	assert.Equal(t, fiber.StatusConflict, HTTPStatus(New(CodeInvalidState, "")))
	assert.Equal(t, fiber.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
