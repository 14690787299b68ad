package handlers

import (
	"context"
	"log"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/routing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type VisitorReader interface {
	Visitors(ctx context.Context) (int64, error)
}

type PublicHandler struct {
	visitors VisitorReader
	ready    func(ctx context.Context) bool
}

// NewPublicHandler builds the public routes. ready, when set, backs the health check.
func NewPublicHandler(visitors VisitorReader, ready func(ctx context.Context) bool) *PublicHandler {
	return &PublicHandler{visitors: visitors, ready: ready}
}

// RegisterSystemRoutes mounts the routes that must not create a client session.
func (h *PublicHandler) RegisterSystemRoutes(app fiber.Router) {
	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/public/stats/visitors", h.GetVisitors)
}

func (h *PublicHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/public/modules", h.ListModules)
	app.Get("/views/*", h.ResolveView)
}

func (h *PublicHandler) HealthCheck(c fiber.Ctx) error {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if !h.ready(ctx) {
			return c.Status(fiber.StatusServiceUnavailable).SendString("MongoDB unavailable")
		}
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}

type moduleView struct {
	models.Module
	Completed bool `json:"completed"`
}

// ListModules returns the learning modules in display order, with completion for signed-in users.
func (h *PublicHandler) ListModules(c fiber.Ctx) error {
	snap := middleware.StoreFrom(c).Snapshot()

	modules := make([]moduleView, 0, len(models.Modules))
	for _, m := range models.Modules {
		modules = append(modules, moduleView{
			Module:    m,
			Completed: snap.Identity != nil && snap.Progress[m.Key],
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": modules,
	})
}

// ResolveView tells the client what to render for a path. Guarded paths
// redirect to the view the guard sends the user to.
func (h *PublicHandler) ResolveView(c fiber.Ctx) error {
	res := routing.Resolve("/"+c.Params("*"), middleware.StoreFrom(c).Snapshot())
	if res.Redirect != "" {
		return c.Redirect().Status(fiber.StatusFound).To("/views" + res.Redirect)
	}

	status := fiber.StatusOK
	if res.View == routing.ViewNotFound {
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{
		"data": res,
	})
}

func (h *PublicHandler) GetVisitors(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	count, err := h.visitors.Visitors(ctx)
	if err != nil {
		log.Printf("Failed to read visitor count: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve visitor count",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"visitors": count,
		},
	})
}
