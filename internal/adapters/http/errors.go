package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapsync/internal/adapters/channel"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, or a command channel code
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errCommand renders a failed command reply, keeping its wire code.
func errCommand(c *fiber.Ctx, e *channel.ReplyError) error {
	return newError(c, StatusForCode(e.Code), e.Code, e.Message)
}

// StatusForCode maps a command channel error code onto an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case channel.CodeOK:
		return fiber.StatusOK
	case channel.CodeDecode, channel.CodeInvalidProperty,
		channel.CodeTileLimitExceeded, channel.CodeCreateRegion:
		return fiber.StatusBadRequest
	case channel.CodeUnknownMethod, channel.CodeUnknownOverlay,
		channel.CodeRegionNotFound, channel.CodeIndexOutOfRange:
		return fiber.StatusNotFound
	case channel.CodeStaleHandle, channel.CodeNoActiveDownload:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
