package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Project is a throwaway project directory with helpers for writing the
// control files adapters and detectors read.
type Project struct {
	Dir string
	t   *testing.T
}

// NewProject creates a temp project directory.
func NewProject(t *testing.T) *Project {
	t.Helper()
	return &Project{Dir: t.TempDir(), t: t}
}

// WriteFile writes a file relative to the project root.
func (p *Project) WriteFile(relPath, content string) {
	p.t.Helper()
	path := filepath.Join(p.Dir, relPath)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
}

// WriteTaskboard writes the taskboard adapters detect.
func (p *Project) WriteTaskboard(content string) {
	p.t.Helper()
	p.WriteFile(filepath.Join(".loopmill", "taskboard.md"), content)
}

// WriteMetrics writes one metrics snapshot as JSON.
func (p *Project) WriteMetrics(name string, values map[string]any) {
	p.t.Helper()
	data, err := json.Marshal(values)
	require.NoError(p.t, err)
	p.WriteFile(filepath.Join(".loopmill", "metrics", name), string(data))
}
