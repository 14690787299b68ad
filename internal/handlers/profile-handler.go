package handlers

import (
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/stats"

	"github.com/gofiber/fiber/v3"
)

type ProfileHandler struct {
	loc *time.Location
	now func() time.Time
}

func NewProfileHandler(loc *time.Location, now func() time.Time) *ProfileHandler {
	if now == nil {
		now = time.Now
	}
	return &ProfileHandler{loc: loc, now: now}
}

func (h *ProfileHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/protected/profile", h.GetProfile, middleware.IdentityRequired())
}

// GetProfile returns the identity with quiz statistics and the progress summary.
func (h *ProfileHandler) GetProfile(c fiber.Ctx) error {
	snap := middleware.StoreFrom(c).Snapshot()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"identity":       snap.Identity,
			"loadingProfile": snap.LoadingProfile,
			"stats":          stats.Build(snap.QuizHistory, snap.Progress, h.now(), h.loc),
		},
	})
}
