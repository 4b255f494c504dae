package plugins

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/radio"
)

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error response
func SendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// SendRadioError sends err with the status its cause maps to
func SendRadioError(c *fiber.Ctx, err error) error {
	return SendError(c, radioErrorStatus(err), err)
}

// radioErrorStatus maps driver and service errors to HTTP statuses.
// A radio held past the caller's deadline is a timeout like any other.
func radioErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, radio.ErrBusy), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, radio.ErrUnexpectedChip):
		return fiber.StatusBadGateway
	case errors.Is(err, at86.ErrFrameTooLong),
		errors.Is(err, at86.ErrRegisterRange),
		errors.Is(err, at86.ErrBufferRange):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
