package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/events"
	"github.com/careloop/outreach/pkg/models"
	persistencememory "github.com/careloop/outreach/pkg/persistence/memory"
	schedulermemory "github.com/careloop/outreach/pkg/scheduler/memory"
	"github.com/careloop/outreach/pkg/stats"
	"github.com/careloop/outreach/pkg/web"
)

// recordingPublisher captures injected events without a bus.
type recordingPublisher struct {
	published []*events.BusinessEvent
}

func (p *recordingPublisher) PublishBusinessEvent(_ context.Context, event *events.BusinessEvent) error {
	p.published = append(p.published, event)

	return nil
}

type testEnv struct {
	app         *fiber.App
	persistence *persistencememory.Persistence
	scheduler   *schedulermemory.Scheduler
	stats       *stats.MemoryAggregator
	publisher   *recordingPublisher
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	p := persistencememory.NewPersistence()
	s := schedulermemory.NewScheduler()
	aggregator := stats.NewMemoryAggregator()
	publisher := &recordingPublisher{}

	handlers := web.NewAPIHandlers(p, s, aggregator, publisher, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Register(app)

	return &testEnv{
		app:         app,
		persistence: p,
		scheduler:   s,
		stats:       aggregator,
		publisher:   publisher,
	}
}

func seedCampaign(t *testing.T, env *testEnv, id, tenantID string) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		ID:       id,
		TenantID: tenantID,
		Name:     "Recall outreach",
		Status:   models.CampaignStatusActive,
		Trigger:  models.Trigger{Kind: models.TriggerKindEvent, EventName: "appointment.booked"},
		Steps: []*models.Step{
			{ID: id + "-send", Position: 1, Kind: models.StepKindSend, Channel: models.ChannelSMS, TemplateRef: "recall"},
		},
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, env.persistence.Campaigns().SaveCampaign(context.Background(), campaign))

	return campaign
}

func TestGetCampaigns(t *testing.T) {
	env := setupTestApp(t)

	seedCampaign(t, env, "c-1", "clinic-1")
	seedCampaign(t, env, "c-2", "clinic-1")
	seedCampaign(t, env, "c-3", "clinic-2")

	req := httptest.NewRequest(http.MethodGet, "/campaigns/?tenant_id=clinic-1", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Campaigns  []web.CampaignSummary `json:"campaigns"`
		TotalCount int                   `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 2, body.TotalCount)

	for _, summary := range body.Campaigns {
		assert.Equal(t, "clinic-1", summary.TenantID)
		assert.Equal(t, 1, summary.StepCount)
		assert.Equal(t, models.TriggerKindEvent, summary.TriggerKind)
	}
}

func TestGetCampaigns_RequiresTenant(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCampaign_WithStats(t *testing.T) {
	env := setupTestApp(t)
	ctx := context.Background()

	seedCampaign(t, env, "c-1", "clinic-1")
	require.NoError(t, env.stats.Increment(ctx, "c-1", stats.CounterRecipients, 3))
	require.NoError(t, env.stats.Increment(ctx, "c-1", stats.CounterSent, 2))

	req := httptest.NewRequest(http.MethodGet, "/campaigns/c-1", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var detail web.CampaignDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))

	assert.Equal(t, "c-1", detail.Campaign.ID)
	assert.Equal(t, int64(3), detail.Stats.Recipients)
	assert.Equal(t, int64(2), detail.Stats.Sent)
}

func TestGetCampaign_NotFound(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/ghost", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCampaignActions(t *testing.T) {
	env := setupTestApp(t)
	ctx := context.Background()

	seedCampaign(t, env, "c-1", "clinic-1")
	require.NoError(t, env.scheduler.Enqueue(ctx, &models.PendingAction{
		ID:          "a-1",
		CampaignID:  "c-1",
		StepID:      "c-1-send",
		TenantID:    "clinic-1",
		RecipientID: "r-1",
		DueAt:       time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/campaigns/c-1/actions", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Actions    []*models.PendingAction `json:"actions"`
		TotalCount int                     `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Equal(t, 1, body.TotalCount)
	assert.Equal(t, "a-1", body.Actions[0].ID)
	assert.Equal(t, models.ActionStatusPending, body.Actions[0].Status)
}

func TestInjectEvent(t *testing.T) {
	env := setupTestApp(t)

	payload, err := json.Marshal(web.InjectEventRequest{
		EventName:   "appointment.booked",
		TenantID:    "clinic-1",
		RecipientID: "r-1",
		Payload:     map[string]any{"appointment_id": "appt-9"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, env.publisher.published, 1)

	event := env.publisher.published[0]

	var accepted struct {
		EventID string `json:"event_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, event.ID, accepted.EventID)
	assert.Equal(t, "accepted", accepted.Status)

	assert.Equal(t, "appointment.booked", event.EventName)
	assert.Equal(t, "clinic-1", event.TenantID)
	assert.Equal(t, "r-1", event.RecipientID)
	assert.Equal(t, "appt-9", event.Payload["appointment_id"])
}

func TestInjectEvent_ValidationFailure(t *testing.T) {
	env := setupTestApp(t)

	payload, err := json.Marshal(web.InjectEventRequest{
		EventName: "appointment.booked",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.publisher.published)
}

func TestInjectEvent_InvalidJSON(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var health struct {
		Status   string            `json:"status"`
		Checkers map[string]string `json:"checkers"`
	}
	require.NoError(t, json.Unmarshal(body, &health))

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checkers["persistence"])
	assert.Equal(t, "ok", health.Checkers["scheduler"])
	assert.Equal(t, "ok", health.Checkers["stats"])
}
