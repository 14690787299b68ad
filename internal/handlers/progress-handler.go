package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/event"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/stats"

	"github.com/gofiber/fiber/v3"
)

type ProgressHandler struct {
	events event.Publisher
}

func NewProgressHandler(events event.Publisher) *ProgressHandler {
	return &ProgressHandler{events: events}
}

func (h *ProgressHandler) RegisterRoutes(app fiber.Router) {
	progressGroup := app.Group("/protected/progress")
	progressGroup.Get("/", h.GetProgress, middleware.IdentityRequired())
	progressGroup.Post("/reset", h.ResetProgress, middleware.IdentityRequired())
	progressGroup.Post("/:module/complete", h.CompleteModule, middleware.IdentityRequired())
}

func (h *ProgressHandler) GetProgress(c fiber.Ctx) error {
	snap := middleware.StoreFrom(c).Snapshot()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"progress": snap.Progress,
			"summary":  stats.ProgressOf(snap.Progress),
			"sync":     snap.Sync,
		},
	})
}

func (h *ProgressHandler) CompleteModule(c fiber.Ctx) error {
	key := c.Params("module")

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	store := middleware.StoreFrom(c)
	if err := store.MarkModuleComplete(ctx, key); err != nil {
		if errors.Is(err, models.ErrUnknownModule) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": models.UserMessage(err),
			})
		}
		log.Printf("Failed to complete module %s: %v", key, err)
		return respondError(c, err)
	}

	progressUpdates.WithLabelValues("complete").Inc()
	snap := store.Snapshot()
	if snap.Identity != nil {
		uid := snap.Identity.UID
		publishAsync(h.events, func(ctx context.Context) error {
			return h.events.PublishModuleCompleted(ctx, uid, key)
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"progress": snap.Progress,
			"summary":  stats.ProgressOf(snap.Progress),
		},
	})
}

func (h *ProgressHandler) ResetProgress(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	store := middleware.StoreFrom(c)
	store.ResetAllProgress(ctx)

	progressUpdates.WithLabelValues("reset").Inc()
	snap := store.Snapshot()
	if snap.Identity != nil {
		uid := snap.Identity.UID
		publishAsync(h.events, func(ctx context.Context) error {
			return h.events.PublishProgressReset(ctx, uid)
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"progress": snap.Progress,
			"summary":  stats.ProgressOf(snap.Progress),
		},
	})
}
