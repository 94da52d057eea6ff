package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/roles"
	"github.com/vinayprograms/aide/internal/task"
)

const decomposerSystemPrompt = `You are the planner of a personal assistant. Decompose the user's goal into the minimum necessary ordered sub-tasks.

Rules:
- Prefer ONE sub-task for any simple goal. Split only when steps genuinely depend on each other's output.
- Sub-tasks run strictly in order; a sub-task may rely on every earlier sub-task being done.
- Assign each sub-task to exactly one of the available worker roles.
- expected_output must be a concrete, checkable assertion about the sub-task's output, not a restatement of its title.
- max_retries is how often the sub-task may be retried when it gets stuck or fails validation (0-3; use 1 unless there is a reason not to).

Respond with ONLY this JSON object (no markdown, no prose):
{
  "subtasks": [
    {
      "title": "<one-sentence action>",
      "role": "<worker role name>",
      "expected_input": "<what the sub-task needs to start>",
      "expected_output": "<checkable assertion about the result>",
      "max_retries": 1
    }
  ]
}`

// plannedSubTask is the decomposition authority's JSON shape for one
// sub-task.
type plannedSubTask struct {
	Title          string `json:"title"`
	Role           string `json:"role"`
	ExpectedInput  string `json:"expected_input"`
	ExpectedOutput string `json:"expected_output"`
	MaxRetries     int    `json:"max_retries"`
}

type plan struct {
	SubTasks []plannedSubTask `json:"subtasks"`
}

// Decomposer turns a goal into an ordered list of role-assigned sub-tasks by
// consulting the reasoning authority.
type Decomposer struct {
	provider llm.Provider
	roles    *roles.Registry
	logger   *logging.Logger
}

// NewDecomposer creates a decomposer.
func NewDecomposer(provider llm.Provider, registry *roles.Registry) *Decomposer {
	return &Decomposer{
		provider: provider,
		roles:    registry,
		logger:   logging.New().WithComponent("decomposer"),
	}
}

// Decompose fills t.SubTasks from the authority's plan. A malformed plan is
// a hard failure of the whole task; it is not retried here.
func (d *Decomposer) Decompose(ctx context.Context, t *task.Task) error {
	if d.provider == nil {
		return fmt.Errorf("no decomposition authority configured")
	}

	prompt := d.buildPrompt(t)
	resp, err := d.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: decomposerSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return fmt.Errorf("decomposition authority error: %w", err)
	}

	parsed, err := parsePlan(resp.Content)
	if err != nil {
		return fmt.Errorf("malformed decomposition plan: %w", err)
	}

	for _, p := range parsed.SubTasks {
		role := task.Role(strings.ToLower(strings.TrimSpace(p.Role)))
		if !task.ValidRole(role) {
			return fmt.Errorf("malformed decomposition plan: unknown worker role %q", p.Role)
		}
		retries := p.MaxRetries
		if retries < 0 {
			retries = 0
		}
		t.NewSubTask(p.Title, role, p.ExpectedInput, p.ExpectedOutput, retries)
	}

	d.logger.Info("goal decomposed", map[string]interface{}{
		"task":     t.ID,
		"subtasks": len(t.SubTasks),
	})
	return nil
}

func (d *Decomposer) buildPrompt(t *task.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("GOAL: %s\n", t.Title))
	if t.Description != "" {
		sb.WriteString(fmt.Sprintf("DETAILS: %s\n", t.Description))
	}
	sb.WriteString(fmt.Sprintf("PRIORITY: %d\n\n", t.Priority))
	sb.WriteString("AVAILABLE WORKER ROLES:\n")
	sb.WriteString(d.roles.PromptBlock())
	return sb.String()
}

// parsePlan decodes the plan JSON, tolerating markdown code fences around
// it. An empty sub-task list is malformed.
func parsePlan(content string) (*plan, error) {
	var p plan
	if err := json.Unmarshal([]byte(stripFences(content)), &p); err != nil {
		return nil, err
	}
	if len(p.SubTasks) == 0 {
		return nil, fmt.Errorf("plan contains no sub-tasks")
	}
	return &p, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
