package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.cue"), []byte(content), 0644))
	return dir
}

const invalidSpecs = `
package test

type: Widget: {
	fields: [{name: "name", type: "text"}]
}

type: Gizmo: {
	table: "gizmos"
	fields: [{name: "size", type: "complex"}]
}
`

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), testSpecsDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (2 types)")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), testSpecsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"Category", "Product"}, resp.Data.Types)
}

func TestValidateUsesConfiguredSpecs(t *testing.T) {
	out, err := execute(t, NewValidateCommand(projectOptions(t, "text")))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := writeSpec(t, "package test\n\ntype: Broken: {\n")
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E004")
}

func TestValidateInvalidSpecsReportsAll(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), writeSpec(t, invalidSpecs))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "Widget: table: table is required")
	assert.Contains(t, out, "E103: Gizmo")
}

func TestValidateInvalidSpecsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), writeSpec(t, invalidSpecs))
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateDanglingRelation(t *testing.T) {
	dir := writeSpec(t, `
package test

type: A: {
	table: "a"
	fields: [{name: "bId", type: "int", column: "b_id"}]
	relations: [{name: "b", target: "B", column: "b_id"}]
}
`)
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E007")
	assert.Contains(t, out, `unknown type "B"`)
}
