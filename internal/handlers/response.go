package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"flowbase/internal/apierr"
)

// SuccessResponse is the envelope of every successful API response
type SuccessResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorResponse is the envelope of every failed API response
type ErrorResponse struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Success    bool                `json:"success"`
	Errors     []apierr.FieldError `json:"errors"`
}

func respond(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(SuccessResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// ErrorHandler renders any error returned by a handler or middleware into the envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := apierr.StatusOf(err)
	resp := ErrorResponse{StatusCode: status, Success: false, Errors: []apierr.FieldError{}}

	var apiErr *apierr.Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
		resp.Message = apiErr.Message
		if apiErr.Errors != nil {
			resp.Errors = apiErr.Errors
		}
	case errors.As(err, &fiberErr):
		resp.Message = fiberErr.Message
	default:
		resp.Message = "Something went wrong"
	}

	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(resp)
}

// parseBody decodes the JSON body into v
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apierr.Validation("Invalid request body")
	}
	return nil
}
