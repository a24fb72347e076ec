package interpreter

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/sender"
)

type staticTemplates map[string]string

func (s staticTemplates) Content(_ context.Context, _ string, ref string, channel models.Channel) (string, error) {
	return s[ref+"/"+string(channel)], nil
}

type failingTemplates struct{}

func (failingTemplates) Content(context.Context, string, string, models.Channel) (string, error) {
	return "", errors.New("template store unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testContext(recipient *models.Recipient, triggerData map[string]any) *models.ExecutionContext {
	campaign := &models.Campaign{ID: "c-1", TenantID: "t-1"}
	tenant := &models.Tenant{ID: "t-1", Name: "Riverside Dental"}

	return models.NewExecutionContext(campaign, recipient, tenant, "s-1", triggerData)
}

func strPtr(s string) *string { return &s }

func TestExecuteSend_Success(t *testing.T) {
	mock := sender.NewMock()
	mock.Next = sender.Result{Success: true, ExternalID: "ext-42"}

	templates := staticTemplates{"recall/sms": "Hi {{.first_name}}, time for a checkup."}
	interp := New(mock, templates, testLogger())

	recipient := &models.Recipient{ID: "r-1", Phone: "+15550100", Attributes: map[string]any{"first_name": "Ada"}}
	step := &models.Step{ID: "s-1", Kind: models.StepKindSend, Channel: models.ChannelSMS, TemplateRef: "recall", NextStepID: strPtr("s-2")}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSent, result.Status)
	assert.Equal(t, "ext-42", result.ExternalID)
	require.NotNil(t, result.AdvanceTo)
	assert.Equal(t, "s-2", *result.AdvanceTo)

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi Ada, time for a checkup.", sent[0].Content)
	assert.Equal(t, "c-1:s-1:r-1", sent[0].CorrelationID)
}

func TestExecuteSend_MissingContactSkips(t *testing.T) {
	mock := sender.NewMock()
	templates := staticTemplates{"recall/email": "Checkup time."}
	interp := New(mock, templates, testLogger())

	recipient := &models.Recipient{ID: "r-1", Phone: "+15550100"} // no email
	step := &models.Step{ID: "s-1", Kind: models.StepKindSend, Channel: models.ChannelEmail, TemplateRef: "recall"}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSkipped, result.Status)
	assert.Contains(t, result.Reason, "no email contact method")
	assert.Nil(t, result.AdvanceTo)
	assert.Empty(t, mock.Sent(), "nothing goes to the transport")
}

func TestExecuteSend_EmptyTemplateSkips(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	recipient := &models.Recipient{ID: "r-1", Phone: "+15550100"}
	step := &models.Step{ID: "s-1", Kind: models.StepKindSend, Channel: models.ChannelSMS, TemplateRef: "recall"}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSkipped, result.Status)
	assert.Contains(t, result.Reason, "no content for channel sms")
}

func TestExecuteSend_TemplateLookupErrorSkips(t *testing.T) {
	interp := New(sender.NewMock(), failingTemplates{}, testLogger())

	recipient := &models.Recipient{ID: "r-1", Phone: "+15550100"}
	step := &models.Step{ID: "s-1", Kind: models.StepKindSend, Channel: models.ChannelSMS, TemplateRef: "recall"}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSkipped, result.Status)
	assert.Contains(t, result.Reason, "lookup failed")
}

func TestExecuteSend_TransportFailure(t *testing.T) {
	mock := sender.NewMock()
	mock.Next = sender.Result{Success: false, ErrorCode: "undeliverable", ErrorMessage: "number disconnected"}

	templates := staticTemplates{"recall/sms": "Checkup time."}
	interp := New(mock, templates, testLogger())

	recipient := &models.Recipient{ID: "r-1", Phone: "+15550100"}
	step := &models.Step{ID: "s-1", Kind: models.StepKindSend, Channel: models.ChannelSMS, TemplateRef: "recall", NextStepID: strPtr("s-2")}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusFailed, result.Status)
	assert.Equal(t, "undeliverable", result.ErrorCode)
	assert.Equal(t, "number disconnected", result.Reason)
	assert.Nil(t, result.AdvanceTo, "failures do not advance")
}

func TestExecuteCondition_TrueAdvances(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{
		ID: "s-1", Kind: models.StepKindCondition,
		Predicate:  &models.Predicate{Field: "visits", Op: models.OpGreaterThan, Value: 2},
		NextStepID: strPtr("s-2"),
	}

	recipient := &models.Recipient{ID: "r-1", Attributes: map[string]any{"visits": 5}}
	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSent, result.Status)
	require.NotNil(t, result.AdvanceTo)
	assert.Equal(t, "s-2", *result.AdvanceTo)
}

func TestExecuteCondition_FalseTerminatesSilently(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{
		ID: "s-1", Kind: models.StepKindCondition,
		Predicate:  &models.Predicate{Field: "visits", Op: models.OpGreaterThan, Value: 10},
		NextStepID: strPtr("s-2"),
	}

	recipient := &models.Recipient{ID: "r-1", Attributes: map[string]any{"visits": 5}}
	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSkipped, result.Status)
	assert.Nil(t, result.AdvanceTo, "false condition never creates a successor")
	assert.Equal(t, "condition not met", result.Reason)
}

func TestExecuteBranch_FirstMatchWins(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{
		ID: "s-1", Kind: models.StepKindBranch,
		Branches: []models.BranchRule{
			{Predicate: models.Predicate{Field: "plan", Op: models.OpEquals, Value: "basic"}, TargetID: "s-a"},
			{Predicate: models.Predicate{Field: "plan", Op: models.OpEquals, Value: "premium"}, TargetID: "s-b"},
		},
		NextStepID: strPtr("s-c"),
	}

	recipient := &models.Recipient{ID: "r-1", Attributes: map[string]any{"plan": "premium"}}
	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSent, result.Status)
	require.NotNil(t, result.AdvanceTo)
	assert.Equal(t, "s-b", *result.AdvanceTo)
}

func TestExecuteBranch_NoMatchFallsBackToDefault(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{
		ID: "s-1", Kind: models.StepKindBranch,
		Branches: []models.BranchRule{
			{Predicate: models.Predicate{Field: "plan", Op: models.OpEquals, Value: "basic"}, TargetID: "s-a"},
		},
		NextStepID: strPtr("s-c"),
	}

	recipient := &models.Recipient{ID: "r-1", Attributes: map[string]any{"plan": "premium"}}
	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	require.NotNil(t, result.AdvanceTo)
	assert.Equal(t, "s-c", *result.AdvanceTo)
}

func TestExecuteBranch_NoMatchNilDefaultTerminates(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{
		ID: "s-1", Kind: models.StepKindBranch,
		Branches: []models.BranchRule{
			{Predicate: models.Predicate{Field: "plan", Op: models.OpEquals, Value: "basic"}, TargetID: "s-a"},
		},
	}

	recipient := &models.Recipient{ID: "r-1", Attributes: map[string]any{"plan": "premium"}}
	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSent, result.Status)
	assert.Nil(t, result.AdvanceTo)
}

func TestExecuteWait_AdvancesThrough(t *testing.T) {
	interp := New(sender.NewMock(), staticTemplates{}, testLogger())

	step := &models.Step{ID: "s-1", Kind: models.StepKindWait, WaitDuration: 1, NextStepID: strPtr("s-2")}
	recipient := &models.Recipient{ID: "r-1"}

	result := interp.Execute(context.Background(), step, testContext(recipient, nil))

	assert.Equal(t, models.ActionStatusSent, result.Status)
	require.NotNil(t, result.AdvanceTo)
	assert.Equal(t, "s-2", *result.AdvanceTo)
}
