package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), fiber.StatusBadRequest},
		{"not found", NotFound("missing"), fiber.StatusNotFound},
		{"unauthenticated", Unauthenticated("no token"), fiber.StatusUnauthorized},
		{"forbidden", Forbidden("no"), fiber.StatusForbidden},
		{"conflict", Conflict("dup"), fiber.StatusConflict},
		{"wrapped api error", fmt.Errorf("ctx: %w", Conflict("stale").Wrap(cause)), fiber.StatusConflict},
		{"fiber error", fiber.ErrUpgradeRequired, fiber.StatusUpgradeRequired},
		{"plain error", cause, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWrapKeepsMessage(t *testing.T) {
	cause := errors.New("driver timeout")
	err := Internal("failed to load task").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load task", err.Message)
	assert.Contains(t, err.Error(), "driver timeout")
}

func TestValidateStruct(t *testing.T) {
	type body struct {
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required,alphanum"`
		Role     string `json:"role" validate:"omitempty,oneof=admin project_admin member"`
	}

	require.NoError(t, ValidateStruct(&body{Email: "a@example.com", Username: "alice"}))

	err := ValidateStruct(&body{Email: "nope", Role: "owner"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusBadRequest, apiErr.Status)
	require.Len(t, apiErr.Errors, 3)
	assert.Equal(t, "email", apiErr.Errors[0].Field)
	assert.Equal(t, "email must be a valid email", apiErr.Message)
	assert.Equal(t, "username is required", apiErr.Errors[1].Message)
	assert.Equal(t, "oneof", apiErr.Errors[2].Tag)
}
