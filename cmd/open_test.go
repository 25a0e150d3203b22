package cmd

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/pagemark/internal/editor"
	"github.com/fakeyudi/pagemark/internal/engine/enginetest"
	"github.com/fakeyudi/pagemark/internal/tui"
)

// captureStdout redirects os.Stdout while fn runs and returns what it
// printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = orig

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	return string(out)
}

func TestOpenRejectsMissingFile(t *testing.T) {
	err := openCmd.RunE(openCmd, []string{"does-not-exist.pdf"})
	assert.ErrorContains(t, err, "file not found")
}

func TestPrintWorkspaceListsPagesAndSizes(t *testing.T) {
	sinks := tui.NewSinks()
	ed := editor.New(editor.Config{
		Engine:     &enginetest.Engine{},
		Rasterizer: &enginetest.Rasterizer{},
		Extractor:  enginetest.Extractor{},
		Controls:   sinks,
		Status:     sinks,
		Dialogs:    sinks,
	})
	_, err := ed.Open(t.Context(), enginetest.DocBytes(2), "sample.pdf")
	require.NoError(t, err)

	out := captureStdout(t, func() { printWorkspace(ed) })

	assert.Contains(t, out, "## sample.pdf")
	assert.Contains(t, out, "Pages:  2")
	assert.True(t, strings.Contains(out, "Page 1: 612 × 792 pt"))
	assert.Contains(t, out, "Page 2: 612 × 792 pt")
}
