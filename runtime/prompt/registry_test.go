package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func TestBuiltinTasks(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, []string{TaskAnalysis, TaskSynthesisInitial, TaskSynthesisRefinement}, r.Tasks())

	cfg, err := r.Get(TaskAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "analysis", cfg.Metadata.Name)
	assert.Equal(t, "analyze", cfg.Metadata.Labels["stage"])
}

func TestAssemble_Analysis(t *testing.T) {
	r := newRegistry(t)

	a, err := r.Assemble(TaskAnalysis, map[string]string{
		"repo":    "octo/widgets",
		"commit":  "e64997b2",
		"message": "Add {{braces}} support",
		"diff":    "+ x := map[string]int{}",
	})
	require.NoError(t, err)

	assert.Equal(t, "analysis", a.Schema)
	assert.Contains(t, a.User, "REPOSITORY: octo/widgets")
	assert.Contains(t, a.User, "Add {{braces}} support", "values must not be re-scanned")
	assert.Contains(t, a.User, "(not available)", "optional default applied")
	assert.Contains(t, a.System, "OUTPUT FORMAT")
	assert.Contains(t, a.System, `"change_type"`)
}

func TestAssemble_BlankValuesUseDefaults(t *testing.T) {
	r := newRegistry(t)
	a, err := r.Assemble(TaskAnalysis, map[string]string{
		"repo": "o/r", "commit": "c", "message": "m", "instructions": "   ",
	})
	require.NoError(t, err)
	assert.Contains(t, a.User, "USER INSTRUCTIONS:\n(none)")
}

func TestAssemble_MissingRequired(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Assemble(TaskSynthesisRefinement, map[string]string{"draft": "# T"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feedback")

	_, err = r.Assemble("summary", nil)
	assert.True(t, errors.Is(err, ErrUnknownTask))
}

func TestAssemble_Refinement(t *testing.T) {
	r := newRegistry(t)
	a, err := r.Assemble(TaskSynthesisRefinement, map[string]string{
		"draft":    "# Title\n\nBody",
		"feedback": "Shorten the intro",
	})
	require.NoError(t, err)
	assert.Equal(t, "document", a.Schema)
	assert.True(t, strings.Contains(a.User, "Shorten the intro"))
	assert.Contains(t, a.System, "complete revised post")
}

func TestValidate_Manifest(t *testing.T) {
	cfg := &Config{
		APIVersion: "v1",
		Kind:       "Template",
		Spec: Spec{
			Schema:       "post",
			UserTemplate: "{{undeclared}}",
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"apiVersion", "kind", "spec.task", "spec.schema", "{{undeclared}}"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadDir_Overrides(t *testing.T) {
	dir := t.TempDir()
	manifest := `apiVersion: bluestar.dev/v1alpha1
kind: Prompt
metadata:
  name: custom-analysis
spec:
  task: analysis
  schema: analysis
  system_template: Be brief.
  user_template: "Commit {{commit}} in {{repo}}"
  required_vars: [repo, commit]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.yaml"), []byte(manifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	r := newRegistry(t)
	require.NoError(t, r.LoadDir(dir))

	a, err := r.Assemble(TaskAnalysis, map[string]string{"repo": "o/r", "commit": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "Commit abc in o/r", a.User)
	assert.True(t, strings.HasPrefix(a.System, "Be brief."))
}

func TestLoadDir_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("spec: [oops"), 0o600))
	r := newRegistry(t)
	assert.Error(t, r.LoadDir(dir))
}
