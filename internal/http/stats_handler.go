package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"log/slog"

	"pagetrail/internal/analytics"
	"pagetrail/internal/timeframe"
	"pagetrail/internal/users"
)

// GetStatsAction handles GET /admin/api/stats. It resolves the requested
// time frame, checks the caller's role, and returns a full analytics
// snapshot for that window.
func GetStatsAction(ctx *cartridge.Context) error {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	db := ctx.DB()

	user, err := users.FindByID(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to load user for stats request",
			slog.Uint64("userId", uint64(userID)),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	if !users.CanViewStats(user.Role) {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
			"code":  "FORBIDDEN",
		})
	}

	parser := timeframe.NewParser()
	tf, err := parser.Parse(ctx.Query("range"), ctx.Query("from"), ctx.Query("to"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "INVALID_RANGE",
		})
	}

	snapshot, err := analytics.BuildSnapshot(context.Background(), db, tf)
	if err != nil {
		ctx.Logger.Error("Failed to build stats snapshot",
			slog.String("range", tf.Label),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
			"code":  "STATS_ERROR",
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(snapshot)
}
