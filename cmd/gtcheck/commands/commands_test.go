package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate_ValidFile(t *testing.T) {
	out, err := runCLI(t, "validate", filepath.Join("..", "..", "..", "testdata", "ground_truth_valid.csv"))

	require.NoError(t, err)
	assert.Contains(t, out, "ground_truth_valid.csv: VALID (15 rows, columns: latitude, longitude, date, landcover_type, ndvi)")
	assert.NotContains(t, out, "warning:")
}

func TestValidate_InvalidFileExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "latitude,longitude,date,landcover_type\n1,2,2024-01-01,forest\n")
	bad := writeFile(t, dir, "bad.csv", "lat,lng\n1,2\n3\n")

	out, err := runCLI(t, "validate", good, bad)

	assert.ErrorIs(t, err, ErrInvalidFiles)
	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], good+": VALID"), "reports keep argument order: %q", out)
	assert.Contains(t, out, bad+": INVALID")
	assert.Contains(t, out, "  error: Missing required columns: latitude, longitude, date, landcover_type")
	assert.Contains(t, out, "  error: Row 3: Column count mismatch")
	assert.Contains(t, out, "  warning: Dataset has fewer than 4 columns - ensure all required fields are included")
}

func TestValidate_FileProblems(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.csv", "\n  \n")
	txt := writeFile(t, dir, "notes.txt", "latitude\n")

	out, err := runCLI(t, "validate", empty, txt, filepath.Join(dir, "missing.csv"))

	assert.ErrorIs(t, err, ErrInvalidFiles)
	assert.Contains(t, out, empty+": INVALID")
	assert.Contains(t, out, "  error: File is empty")
	assert.Contains(t, out, txt+": ERROR not a CSV file")
	assert.Contains(t, out, "missing.csv: ERROR")
}

func TestValidate_StrictMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plots.csv", "latitude_deg,longitude_deg,obs_date,landcover_type\n1,2,3,4\n")

	_, err := runCLI(t, "validate", path)
	assert.NoError(t, err)

	out, err := runCLI(t, "validate", "--strict", path)
	assert.ErrorIs(t, err, ErrInvalidFiles)
	assert.Contains(t, out, "Missing required columns: latitude, longitude, date")
}

func TestValidate_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plots.csv", "latitude,longitude,date,landcover_type\n1,2,2024-01-01,forest\n")

	out, err := runCLI(t, "validate", "--format", "json", path)
	require.NoError(t, err)

	var reports []FileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Verdict.IsValid)
	assert.Equal(t, 1, reports[0].Table.TotalRowCount)
	assert.Equal(t, []string{"Dataset contains fewer than 10 rows - consider adding more data points"}, reports[0].Verdict.Warnings)
}

func TestValidate_YAMLOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plots.csv", "latitude,longitude\n1,2\n")

	out, err := runCLI(t, "validate", "-f", "yaml", path)
	assert.ErrorIs(t, err, ErrInvalidFiles)

	var reports []FileReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Verdict.IsValid)
	assert.Equal(t, []string{"Missing required columns: date, landcover_type"}, reports[0].Verdict.Errors)
}

func TestValidate_RejectsUnknownFormat(t *testing.T) {
	_, err := runCLI(t, "validate", "--format", "xml", "plots.csv")
	assert.EqualError(t, err, "format must be one of: text, json, yaml")
}

func TestValidate_RequiresFile(t *testing.T) {
	_, err := runCLI(t, "validate")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "gtcheck dev ("), out)
}
