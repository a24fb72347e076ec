// Package web provides HTTP handlers for the operational API: campaign
// visibility, counter snapshots, action inspection and event injection.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/careloop/outreach/pkg/eventbus"
	"github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/persistence"
	"github.com/careloop/outreach/pkg/scheduler"
	"github.com/careloop/outreach/pkg/stats"
)

type APIHandlers struct {
	persistence persistence.Persistence
	scheduler   scheduler.Scheduler
	stats       stats.Aggregator
	publisher   eventbus.BusinessEventPublisher
	validator   *validator.Validate
}

// NewAPIHandlers creates the handler set. The publisher may be nil; the
// event injection endpoint then answers 503.
func NewAPIHandlers(
	p persistence.Persistence,
	s scheduler.Scheduler,
	aggregator stats.Aggregator,
	publisher eventbus.BusinessEventPublisher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		scheduler:   s,
		stats:       aggregator,
		publisher:   publisher,
		validator:   validator,
	}
}

// Register mounts every ops endpoint on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	campaigns := app.Group("/campaigns")
	campaigns.Get("/", h.GetCampaigns)
	campaigns.Get("/:id", h.GetCampaign)
	campaigns.Get("/:id/stats", h.GetCampaignStats)
	campaigns.Get("/:id/actions", h.GetCampaignActions)

	app.Post("/events", h.InjectEvent)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetCampaigns(c fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return badRequest(c, "tenant_id query parameter is required")
	}

	campaigns, err := h.persistence.Campaigns().Campaigns(c.Context(), tenantID)
	if err != nil {
		return handleStoreError(c, err)
	}

	summaries := make([]CampaignSummary, len(campaigns))
	for i, campaign := range campaigns {
		summaries[i] = TransformCampaignSummary(campaign)
	}

	return c.JSON(fiber.Map{
		"campaigns":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetCampaign(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "campaign id is required")
	}

	campaign, err := h.persistence.Campaigns().CampaignByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	snapshot, err := h.stats.Snapshot(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(CampaignDetail{Campaign: campaign, Stats: snapshot})
}

func (h *APIHandlers) GetCampaignStats(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "campaign id is required")
	}

	if _, err := h.persistence.Campaigns().CampaignByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	snapshot, err := h.stats.Snapshot(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) GetCampaignActions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "campaign id is required")
	}

	if _, err := h.persistence.Campaigns().CampaignByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	actions, err := h.scheduler.ActionsByCampaign(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"actions":     actions,
		"total_count": len(actions),
	})
}

// InjectEvent publishes a business event onto the bus on behalf of an
// operator, exactly as the surrounding application would.
func (h *APIHandlers) InjectEvent(c fiber.Ctx) error {
	if h.publisher == nil {
		problem := problemUnavailable(c, "event bus is not configured")

		return problem
	}

	var req InjectEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.NewBusinessEvent(req.EventName, req.TenantID, req.RecipientID, req.Payload)

	if err := h.publisher.PublishBusinessEvent(c.Context(), event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"status":   "accepted",
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checkers := fiber.Map{}
	healthy := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		checkers["persistence"] = err.Error()
		healthy = false
	} else {
		checkers["persistence"] = "ok"
	}

	if err := h.scheduler.HealthCheck(c.Context()); err != nil {
		checkers["scheduler"] = err.Error()
		healthy = false
	} else {
		checkers["scheduler"] = "ok"
	}

	if err := h.stats.HealthCheck(c.Context()); err != nil {
		checkers["stats"] = err.Error()
		healthy = false
	} else {
		checkers["stats"] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  checkers,
		"timestamp": time.Now().UTC(),
	})
}
