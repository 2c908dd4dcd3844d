package v1

import (
	"bytes"
	_ "embed"
	"text/template"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

//go:embed tracker.js
var trackerTemplate string

// GetTrackerAction serves the tracking script. The script is rendered
// with the server's base URL so blogs on any domain can embed it, and
// cached aggressively with an ETag so repeat loads cost nothing.
func GetTrackerAction(ctx *cartridge.Context) error {
	tmpl, err := template.New("tracker.js").Parse(trackerTemplate)
	if err != nil {
		ctx.Logger.Error("Failed to parse tracker template", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	var buf bytes.Buffer
	data := map[string]string{
		"BaseURL": ctx.BaseURL(),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		ctx.Logger.Error("Failed to render tracker template", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	content := buf.Bytes()
	etag := generateETag(content)

	if ctx.Get("If-None-Match") == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil) // No body for 304
	}

	ctx.Set("Content-Type", "application/javascript")
	ctx.Set("Cache-Control", "public, max-age=3600") // 1 hour
	ctx.Set("ETag", etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(content)
}
