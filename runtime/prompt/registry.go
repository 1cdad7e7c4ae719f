// Package prompt loads the prompt manifests used by the model-backed stages
// and assembles them into system and user messages.
//
// Manifests are K8s-style YAML documents:
//
//	apiVersion: bluestar.dev/v1alpha1
//	kind: Prompt
//	metadata:
//	  name: analysis
//	spec:
//	  task: analysis
//	  schema: analysis
//	  system_template: ...
//	  user_template: ...
//	  required_vars: [repo, commit]
//	  optional_vars: {instructions: "(none)"}
//
// The built-in manifests are embedded; a directory of manifests can override
// them task by task. Assembly substitutes {{name}} placeholders and appends
// the target JSON schema to the system message.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/domini04/bluestar/runtime/prompt/schema"
	"github.com/domini04/bluestar/runtime/template"
)

// Manifest identity.
const (
	APIVersion = "bluestar.dev/v1alpha1"
	Kind       = "Prompt"
)

// Built-in tasks.
const (
	TaskAnalysis            = "analysis"
	TaskSynthesisInitial    = "synthesis_initial"
	TaskSynthesisRefinement = "synthesis_refinement"
)

// ErrUnknownTask is returned for a task with no registered manifest.
var ErrUnknownTask = errors.New("unknown prompt task")

//go:embed prompts/*.yaml
var builtin embed.FS

// Config is a prompt manifest.
type Config struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Spec              `yaml:"spec"`
}

// Spec is the body of a prompt manifest.
type Spec struct {
	Task           string            `yaml:"task"`
	Description    string            `yaml:"description,omitempty"`
	Schema         string            `yaml:"schema"`
	SystemTemplate string            `yaml:"system_template"`
	UserTemplate   string            `yaml:"user_template"`
	RequiredVars   []string          `yaml:"required_vars,omitempty"`
	OptionalVars   map[string]string `yaml:"optional_vars,omitempty"`
}

// Assembled is a prompt ready to send to a generator.
type Assembled struct {
	Task   string
	Schema string
	System string
	User   string
}

// Registry holds prompt manifests keyed by task.
type Registry struct {
	mu       sync.RWMutex
	prompts  map[string]*Config
	renderer *template.Renderer
}

// NewRegistry returns a registry preloaded with the built-in manifests.
func NewRegistry() (*Registry, error) {
	r := &Registry{prompts: map[string]*Config{}, renderer: template.NewRenderer()}
	if err := r.LoadFS(builtin, "prompts"); err != nil {
		return nil, fmt.Errorf("load built-in prompts: %w", err)
	}
	return r, nil
}

// LoadDir loads every *.yaml manifest in dir, replacing same-task entries.
func (r *Registry) LoadDir(dir string) error {
	return r.LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads every *.yaml manifest under dir in fsys.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := r.Register(cfg); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Parse decodes one manifest.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse prompt manifest: %w", err)
	}
	return &cfg, nil
}

// Validate checks the manifest header, the target schema and that every
// placeholder is declared as a required or optional variable.
func (c *Config) Validate() error {
	var problems []string
	if c.APIVersion != APIVersion {
		problems = append(problems, fmt.Sprintf("apiVersion must be %s", APIVersion))
	}
	if c.Kind != Kind {
		problems = append(problems, fmt.Sprintf("kind must be %s", Kind))
	}
	if c.Spec.Task == "" {
		problems = append(problems, "spec.task is required")
	}
	if _, err := schema.Source(c.Spec.Schema); err != nil {
		problems = append(problems, "spec.schema: "+err.Error())
	}
	if strings.TrimSpace(c.Spec.UserTemplate) == "" {
		problems = append(problems, "spec.user_template is required")
	}
	declared := map[string]bool{}
	for _, v := range c.Spec.RequiredVars {
		declared[v] = true
	}
	for v := range c.Spec.OptionalVars {
		declared[v] = true
	}
	for _, v := range template.Placeholders(c.Spec.SystemTemplate + "\n" + c.Spec.UserTemplate) {
		if !declared[v] {
			problems = append(problems, fmt.Sprintf("placeholder {{%s}} is not declared", v))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid prompt %q: %s", c.Spec.Task, strings.Join(problems, "; "))
	}
	return nil
}

// Register validates and stores a manifest.
func (r *Registry) Register(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[cfg.Spec.Task] = cfg
	return nil
}

// Get returns the manifest for task.
func (r *Registry) Get(task string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.prompts[task]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	return cfg, nil
}

// Tasks lists the registered tasks, sorted.
func (r *Registry) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]string, 0, len(r.prompts))
	for t := range r.prompts {
		tasks = append(tasks, t)
	}
	slices.Sort(tasks)
	return tasks
}

// Assemble renders task's templates with vars. Blank values fall back to
// the manifest's optional defaults.
func (r *Registry) Assemble(task string, vars map[string]string) (*Assembled, error) {
	cfg, err := r.Get(task)
	if err != nil {
		return nil, err
	}

	provided := make(map[string]string, len(vars))
	for k, v := range vars {
		if strings.TrimSpace(v) != "" {
			provided[k] = v
		}
	}
	if err := r.renderer.ValidateRequiredVars(cfg.Spec.RequiredVars, provided); err != nil {
		return nil, fmt.Errorf("prompt %s: %w", task, err)
	}
	all := r.renderer.MergeVars(cfg.Spec.OptionalVars, provided)

	system, err := r.renderer.Render(cfg.Spec.SystemTemplate, all)
	if err != nil {
		return nil, fmt.Errorf("prompt %s system: %w", task, err)
	}
	user, err := r.renderer.Render(cfg.Spec.UserTemplate, all)
	if err != nil {
		return nil, fmt.Errorf("prompt %s user: %w", task, err)
	}

	src, err := schema.Source(cfg.Spec.Schema)
	if err != nil {
		return nil, err
	}
	system = strings.TrimRight(system, "\n") + "\n\n" + formatInstructions(src)

	return &Assembled{Task: task, Schema: cfg.Spec.Schema, System: system, User: user}, nil
}

func formatInstructions(schemaJSON string) string {
	return "OUTPUT FORMAT:\nRespond with a single JSON object and nothing else. " +
		"It must validate against this JSON schema:\n" + schemaJSON
}
