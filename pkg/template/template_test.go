package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/models"
)

func TestRender_Simple(t *testing.T) {
	out, err := Render("Hello {{.name}}", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)
}

func TestRender_Funcs(t *testing.T) {
	out, err := Render("{{upper .code}}", map[string]any{"code": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{.broken", nil)
	assert.Error(t, err)
}

func TestRenderWithContext(t *testing.T) {
	campaign := &models.Campaign{ID: "c-1", TenantID: "t-1"}
	recipient := &models.Recipient{
		ID:         "r-1",
		Attributes: map[string]any{"first_name": "Ada"},
	}
	tenant := &models.Tenant{ID: "t-1", Name: "Riverside Dental"}
	triggerData := map[string]any{"appointment_date": "2025-03-20"}

	execCtx := models.NewExecutionContext(campaign, recipient, tenant, "s-1", triggerData)

	out, err := RenderWithContext(
		"Hi {{.first_name}}, see you at {{.tenant.name}} on {{.trigger.appointment_date}}.",
		execCtx,
	)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, see you at Riverside Dental on 2025-03-20.", out)
}

func TestRender_EmptyResultIsNotAnError(t *testing.T) {
	out, err := Render("{{if .promo}}Promo: {{.promo}}{{end}}", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
