package template_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/template"
)

func TestDirectorySource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "clinic-1"), 0o750))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "clinic-1", "reminder.sms.tmpl"),
		[]byte("Hi {{.recipient.first_name}}"),
		0o600,
	))

	source := template.NewDirectorySource(root)
	ctx := context.Background()

	content, err := source.Content(ctx, "clinic-1", "reminder", models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "Hi {{.recipient.first_name}}", content)
}

func TestDirectorySource_MissingFileMeansNoContent(t *testing.T) {
	source := template.NewDirectorySource(t.TempDir())

	content, err := source.Content(context.Background(), "clinic-1", "reminder", models.ChannelEmail)
	require.NoError(t, err)
	assert.Empty(t, content)
}
