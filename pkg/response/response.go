package response

import "github.com/gofiber/fiber/v2"

// Envelope is the wire format shared with the admin UI: every payload is
// wrapped in {status, data} on success or {status, error} on failure.
type Envelope struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Data writes a 200 envelope around the given payload.
func Data(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Envelope{
		Status: fiber.StatusOK,
		Data:   data,
	})
}

// Error writes an error envelope with the given HTTP status.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{
		Status: status,
		Error:  message,
	})
}

// ValidationError reports a malformed or missing input.
func ValidationError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// NotFound reports an unknown resource key.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

// Conflict reports a request colliding with in-flight state.
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, message)
}

// RateLimited reports an exhausted rate limit window.
func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, "Rate limit exceeded")
}

// ServiceError reports an internal failure.
func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}
