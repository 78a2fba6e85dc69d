package controller

import (
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/pkg/telemetry"

	"github.com/gofiber/fiber/v2"
)

type ITelemetryController interface {
	RegisterRoutes(r fiber.Router)
	RecentEvents(ctx *fiber.Ctx) error
}

type telemetryController struct {
	recorder *telemetry.Recorder
}

func NewTelemetryController(recorder *telemetry.Recorder) ITelemetryController {
	return &telemetryController{recorder: recorder}
}

func (c *telemetryController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/telemetry/v1")
	h.Get("events", c.RecentEvents)
}

// RecentEvents exposes the ring buffer for inspection, newest first.
func (c *telemetryController) RecentEvents(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	events := c.recorder.Recent(limit)
	return ctx.JSON(serverutils.SuccessResponse("Success get telemetry events", events))
}
