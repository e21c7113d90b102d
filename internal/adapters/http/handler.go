// Package http exposes the deployment operations as a REST API, the serve
// mode counterpart of the CLI.
package http

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
	"github.com/bitboard/bitboard-deploy/internal/core/ports"
)

// Orchestrator is the slice of the deployer the HTTP surface needs.
type Orchestrator interface {
	Replace(ctx context.Context, spec domain.ServiceSpec) (domain.Container, error)
	Teardown(ctx context.Context, name string) error
	Status(ctx context.Context, name string) (domain.Container, bool, error)
	Logs(ctx context.Context, name string) (io.ReadCloser, error)
}

// Handler wires the orchestration operations to HTTP routes. The service
// and image specs come from configuration; the API manages the one
// configured slot rather than arbitrary containers.
type Handler struct {
	deployer Orchestrator
	builder  ports.BuilderService
	history  ports.HistoryStore
	service  domain.ServiceSpec
	image    domain.ImageSpec
}

// NewHandler creates a Handler. history may be nil, in which case the
// deployments route reports an empty ledger.
func NewHandler(deployer Orchestrator, builder ports.BuilderService, history ports.HistoryStore, service domain.ServiceSpec, image domain.ImageSpec) *Handler {
	return &Handler{
		deployer: deployer,
		builder:  builder,
		history:  history,
		service:  service,
		image:    image,
	}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	service := v1.Group("/service")
	service.Get("/", h.GetStatus)
	service.Put("/", h.Replace)
	service.Delete("/", h.Teardown)
	service.Get("/logs", h.GetLogs)

	v1.Get("/deployments", h.ListDeployments)
	v1.Post("/image/build", h.BuildImage)
}

// GetStatus reports the managed container's state, or 404 when the slot is
// empty.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	cont, found, err := h.deployer.Status(c.Context(), h.service.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no container named " + h.service.Name,
		})
	}
	return c.JSON(cont)
}

// ReplaceRequest optionally overrides the configured image for one replace.
type ReplaceRequest struct {
	Image string `json:"image"`
}

// Replace atomically swaps the running instance for a fresh one.
func (h *Handler) Replace(c *fiber.Ctx) error {
	spec := h.service

	var req ReplaceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Image != "" {
		spec.Image = req.Image
	}

	cont, err := h.deployer.Replace(c.Context(), spec)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(cont)
}

// Teardown stops and removes the managed container; a missing container is
// still a success.
func (h *Handler) Teardown(c *fiber.Ctx) error {
	if err := h.deployer.Teardown(c.Context(), h.service.Name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

// GetLogs streams the managed container's logs as plain text.
func (h *Handler) GetLogs(c *fiber.Ctx) error {
	logs, err := h.deployer.Logs(c.Context(), h.service.Name)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, domain.ErrNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set("Content-Type", "text/plain")
	return c.SendStream(&closeOnDrain{ReadCloser: logs})
}

// closeOnDrain closes the wrapped stream once the response writer has read
// it to the end; the writer itself never calls Close, which would otherwise
// leak the runtime connection behind each logs request.
type closeOnDrain struct {
	io.ReadCloser
	closed bool
}

func (c *closeOnDrain) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if err != nil && !c.closed {
		c.closed = true
		c.ReadCloser.Close()
	}
	return n, err
}

// ListDeployments returns the ledger, newest first.
func (h *Handler) ListDeployments(c *fiber.Ctx) error {
	if h.history == nil {
		return c.JSON([]domain.Deployment{})
	}
	limit := c.QueryInt("limit", 50)
	entries, err := h.history.List(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if entries == nil {
		entries = []domain.Deployment{}
	}
	return c.JSON(entries)
}

// BuildImage builds the configured image. This is a blocking operation and
// might take a while; callers should use a generous client timeout.
func (h *Handler) BuildImage(c *fiber.Ctx) error {
	tag, err := h.builder.BuildImage(c.Context(), h.image)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Build failed: " + err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"tag": tag,
	})
}
