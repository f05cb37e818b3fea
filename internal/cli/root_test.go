package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdfshrink/internal/common"
	"pdfshrink/internal/testpdf"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	for _, name := range []string{"MAX_FILE_SIZE_KB", "INPUT_DIR", "OUTPUT_DIR", "HISTORY_DB", "LOG_LEVEL", "LOG_FORMAT"} {
		os.Unsetenv(name)
	}
	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand(&bytes.Buffer{}, &bytes.Buffer{})

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "history")
	assert.Contains(t, names, "version")
	assert.NotEmpty(t, cmd.Long)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pdfshrink dev\n", out)
}

func TestRun_MissingInputExitsCleanly(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "-i", filepath.Join(dir, "absent"), "-o", filepath.Join(dir, "out"))

	require.NoError(t, err)
	assert.Contains(t, out, "Target maximum file size set to: 300 KB")
	assert.Contains(t, out, "Error!")
	assert.DirExists(t, filepath.Join(dir, "out"))
}

func TestRun_NegativeBudgetIsConfigError(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "-i", dir, "-o", dir, "--max-size-kb=-1")

	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRun_ProcessesAndRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "out")
	historyDB := filepath.Join(dir, "history.db")
	require.NoError(t, os.MkdirAll(input, 0755))
	testpdf.Write(t, input, "letter.pdf")

	out, err := run(t, "-i", input, "-o", output, "-m", "500", "--history-db", historyDB)
	require.NoError(t, err)

	assert.Contains(t, out, "Target maximum file size set to: 500 KB")
	assert.Contains(t, out, "Found 1 PDF files to process.")
	assert.Contains(t, out, "Process completed!")
	assert.Contains(t, out, "The compressed files are in: '"+output+"'")
	assert.FileExists(t, filepath.Join(output, "letter.pdf"))

	out, err = run(t, "history", "--history-db", historyDB, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "letter.pdf")
	assert.Contains(t, out, common.StatusCompleted)
}

func TestHistory_RequiresStore(t *testing.T) {
	_, err := run(t, "history")

	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestHistory_Empty(t *testing.T) {
	out, err := run(t, "history", "--history-db", filepath.Join(t.TempDir(), "h.db"))

	require.NoError(t, err)
	assert.Equal(t, "No history recorded yet.", strings.TrimSpace(out))
}
