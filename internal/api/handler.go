package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cliohq/statement-worker/internal/repository"
	"github.com/cliohq/statement-worker/internal/worker"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// Handler exposes the worker's internal status API: health, artifact
// processing status, and the enqueue trigger the upload service calls after
// storing a statement. This is not the user-facing CRUD API.
type Handler struct {
	Artifacts repository.ArtifactRepository
	Queue     *worker.Queue
}

// Register sets up the status routes on a fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Get("/api/artifacts/:id/status", h.HandleArtifactStatus)
	app.Post("/api/artifacts/:id/process", h.HandleEnqueue)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"engine":      "fiber",
		"version":     Version,
		"queue_depth": h.Queue.Depth(),
	})
}

// HandleArtifactStatus lets callers poll processing progress; the pipeline
// marks artifacts processing before extraction starts, so in-flight work is
// visible here.
func (h *Handler) HandleArtifactStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid artifact id",
		})
	}

	artifact, err := h.Artifacts.GetByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "artifact not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp := fiber.Map{
		"artifact_id": artifact.ID,
		"status":      artifact.ProcessingStatus,
	}
	if artifact.ProcessingError != "" {
		resp["error_message"] = artifact.ProcessingError
	}
	return c.JSON(resp)
}

// HandleEnqueue submits an artifact for parsing.
func (h *Handler) HandleEnqueue(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid artifact id",
		})
	}

	if err := h.Queue.Enqueue(c.Context(), worker.Job{ArtifactID: id}); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "queued",
		"artifact_id": id,
	})
}
