package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pagetrail/internal/users"
)

// SetupCheck blocks admin routes until the first admin account has been
// created via /setup/user.
func SetupCheck(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := users.Count(db)
		if err != nil {
			logger.Error("Failed to count users in setup middleware", slog.Any("error", err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal error",
				"code":  "INTERNAL_ERROR",
			})
		}

		if count == 0 {
			logger.Info("Setup required, blocking request",
				slog.String("path", c.Path()),
				slog.String("method", c.Method()))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "System setup required",
				"code":  "SETUP_REQUIRED",
			})
		}

		return c.Next()
	}
}
