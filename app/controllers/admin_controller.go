package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

// OutboxAdmin is the part of the relay the admin endpoints use.
type OutboxAdmin interface {
	Stats(ctx context.Context) (map[string]int64, error)
	Drain(ctx context.Context) (outbox.Result, error)
}

// JobStats reports job queue counters.
type JobStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// AdminController exposes relay and queue health to admins.
type AdminController struct {
	outbox OutboxAdmin
	jobs   JobStats
}

// NewAdminController creates the controller. jobs may be nil when Redis is
// not configured.
func NewAdminController(ob OutboxAdmin, jobs JobStats) *AdminController {
	return &AdminController{outbox: ob, jobs: jobs}
}

func (ac *AdminController) HandleOutboxStats(c *fiber.Ctx) error {
	stats, err := ac.outbox.Stats(c.UserContext())
	if err != nil {
		return respondError(c, "Failed to load outbox stats", err)
	}
	return c.JSON(fiber.Map{"success": true, "outbox": stats})
}

// HandleOutboxDrain runs one relay pass immediately.
func (ac *AdminController) HandleOutboxDrain(c *fiber.Ctx) error {
	res, err := ac.outbox.Drain(c.UserContext())
	if err != nil {
		return respondError(c, "Failed to drain outbox", err)
	}
	return c.JSON(fiber.Map{"success": true, "result": res})
}

func (ac *AdminController) HandleJobStats(c *fiber.Ctx) error {
	if ac.jobs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Job queue is not configured"})
	}
	ctx := c.UserContext()
	stats, err := ac.jobs.GetJobStats(ctx)
	if err != nil {
		return respondError(c, "Failed to load job stats", err)
	}
	queued, err := ac.jobs.GetQueueSize(ctx)
	if err != nil {
		return respondError(c, "Failed to load job stats", err)
	}
	processing, err := ac.jobs.GetProcessingSize(ctx)
	if err != nil {
		return respondError(c, "Failed to load job stats", err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"stats":      stats,
		"queued":     queued,
		"processing": processing,
	})
}
