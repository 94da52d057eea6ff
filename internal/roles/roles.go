// Package roles describes the specialized workers sub-tasks are routed to.
// Built-in definitions can be overridden by YAML files in a configured
// directory, reloaded live when the directory changes.
package roles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/task"
	"gopkg.in/yaml.v3"
)

// Definition is one worker role as presented to the decomposition authority.
type Definition struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// builtins are the shipped definitions for the five worker roles.
var builtins = []Definition{
	{
		Name:        string(task.RolePlanner),
		Description: "Decomposition and validation authority. Splits goals into ordered sub-tasks and judges sub-task output against expectations.",
		Capabilities: []string{
			"decompose a goal into ordered sub-tasks",
			"judge whether actual output satisfies expected output",
		},
	},
	{
		Name:        string(task.RoleImplementer),
		Description: "Carries out concrete actions: browser and desktop automation, record creation, IDE delegation.",
		Capabilities: []string{
			"navigate, click, type and capture via the remote executor",
			"delegate coding work to a connected IDE",
		},
	},
	{
		Name:        string(task.RoleReviewer),
		Description: "Reviews work produced by other roles for correctness and completeness before it is accepted.",
		Capabilities: []string{
			"compare produced output with stated requirements",
			"flag gaps, contradictions and risky actions",
		},
	},
	{
		Name:        string(task.RoleResearcher),
		Description: "Gathers information: reads pages, scrapes content, consults external sources.",
		Capabilities: []string{
			"read and scrape web content",
			"summarize findings with sources",
		},
	},
	{
		Name:        string(task.RoleExtractor),
		Description: "Pulls structured data out of unstructured content (pages, captures, documents).",
		Capabilities: []string{
			"extract fields, tables and lists from raw content",
			"normalize extracted values",
		},
	},
}

// Registry holds the current role definitions.
type Registry struct {
	logger *logging.Logger

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates a registry seeded with the built-in definitions.
func NewRegistry() *Registry {
	r := &Registry{
		logger: logging.New().WithComponent("roles"),
		defs:   make(map[string]Definition, len(builtins)),
	}
	for _, def := range builtins {
		r.defs[def.Name] = def
	}
	return r
}

// Get returns the definition for a role.
func (r *Registry) Get(role task.Role) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[string(role)]
	return def, ok
}

// All returns every definition sorted by name.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadDir applies YAML override files (*.yaml, *.yml) from dir. Files
// naming an unknown role are skipped with a warning; the role set itself is
// fixed.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := loadFile(path)
		if err != nil {
			r.logger.Warn("skipping invalid role file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		if !task.ValidRole(task.Role(def.Name)) {
			r.logger.Warn("role file names an unknown role", map[string]interface{}{
				"path": path,
				"name": def.Name,
			})
			continue
		}
		r.mu.Lock()
		r.defs[def.Name] = def
		r.mu.Unlock()
		r.logger.Info("role definition overridden", map[string]interface{}{"role": def.Name})
	}
	return nil
}

// loadFile parses one role definition file.
func loadFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	var def Definition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return Definition{}, fmt.Errorf("invalid role file: %w", err)
	}
	if def.Name == "" {
		return Definition{}, fmt.Errorf("missing required field: name")
	}
	if def.Description == "" {
		return Definition{}, fmt.Errorf("missing required field: description")
	}
	return def, nil
}

// PromptBlock renders the role list for the decomposition prompt.
func (r *Registry) PromptBlock() string {
	var sb strings.Builder
	for _, def := range r.All() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", def.Name, def.Description))
		for _, cap := range def.Capabilities {
			sb.WriteString(fmt.Sprintf("  - %s\n", cap))
		}
	}
	return sb.String()
}
