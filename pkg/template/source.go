package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/careloop/outreach/pkg/models"
)

// DirectorySource resolves template references against a directory tree
// laid out as <root>/<tenant_id>/<ref>.<channel>.tmpl. A missing file means
// no content exists for that channel, which is not an error.
type DirectorySource struct {
	root string
}

func NewDirectorySource(root string) *DirectorySource {
	return &DirectorySource{root: root}
}

func (s *DirectorySource) Content(_ context.Context, tenantID, ref string, channel models.Channel) (string, error) {
	path := filepath.Join(s.root, tenantID, fmt.Sprintf("%s.%s.tmpl", ref, channel))

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}

	return string(data), nil
}
