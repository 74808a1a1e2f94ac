package utils

import (
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func JSONError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// JSONFailure renders an error from the lifecycle core with its mapped status.
func JSONFailure(c *fiber.Ctx, err error) error {
	body := fiber.Map{"status": "error", "message": apperr.PublicMessage(err)}
	if e, ok := apperr.As(err); ok && e.Field != "" {
		body["field"] = e.Field
	}
	return c.Status(apperr.Status(err)).JSON(body)
}
