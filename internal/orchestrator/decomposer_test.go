package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/aide/internal/roles"
	"github.com/vinayprograms/aide/internal/task"
)

const twoStepPlan = `{
  "subtasks": [
    {
      "title": "Find flight options for the given dates",
      "role": "researcher",
      "expected_input": "travel dates and destination",
      "expected_output": "a list of at least two concrete flight options with prices",
      "max_retries": 1
    },
    {
      "title": "Summarize the options for the user",
      "role": "extractor",
      "expected_input": "the flight option list",
      "expected_output": "a short comparison naming the cheapest and the fastest option",
      "max_retries": 0
    }
  ]
}`

func newTestDecomposer(provider llm.Provider) *Decomposer {
	return NewDecomposer(provider, roles.NewRegistry())
}

func TestDecompose_ValidPlan(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(twoStepPlan)
	d := newTestDecomposer(provider)

	tk := task.New("book a flight to Ankara", "next weekend", 1)
	if err := d.Decompose(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tk.SubTasks) != 2 {
		t.Fatalf("expected 2 sub-tasks, got %d", len(tk.SubTasks))
	}
	first := tk.SubTasks[0]
	if first.Role != task.RoleResearcher {
		t.Errorf("first role = %s, want researcher", first.Role)
	}
	if first.MaxRetries != 1 {
		t.Errorf("first max retries = %d, want 1", first.MaxRetries)
	}
	if first.Status != task.StatusQueued {
		t.Errorf("first status = %s, want queued", first.Status)
	}
	if tk.SubTasks[1].Role != task.RoleExtractor {
		t.Errorf("second role = %s, want extractor", tk.SubTasks[1].Role)
	}
}

func TestDecompose_ToleratesMarkdownFence(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("```json\n" + twoStepPlan + "\n```")
	d := newTestDecomposer(provider)

	tk := task.New("book a flight", "", 1)
	if err := d.Decompose(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tk.SubTasks) != 2 {
		t.Errorf("expected 2 sub-tasks, got %d", len(tk.SubTasks))
	}
}

func TestDecompose_MalformedPlanIsHardFailure(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("Sure! First I would look at flights, then...")
	d := newTestDecomposer(provider)

	tk := task.New("book a flight", "", 1)
	err := d.Decompose(context.Background(), tk)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "malformed decomposition plan") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(tk.SubTasks) != 0 {
		t.Error("malformed plan must not leave partial sub-tasks")
	}
}

func TestDecompose_UnknownRoleIsHardFailure(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(`{"subtasks":[{"title":"do it","role":"magician","expected_output":"done","max_retries":1}]}`)
	d := newTestDecomposer(provider)

	tk := task.New("goal", "", 1)
	err := d.Decompose(context.Background(), tk)
	if err == nil || !strings.Contains(err.Error(), "magician") {
		t.Errorf("expected unknown-role error, got %v", err)
	}
}

func TestDecompose_EmptyPlanIsHardFailure(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(`{"subtasks":[]}`)
	d := newTestDecomposer(provider)

	tk := task.New("goal", "", 1)
	err := d.Decompose(context.Background(), tk)
	if err == nil || !strings.Contains(err.Error(), "no sub-tasks") {
		t.Errorf("expected empty-plan error, got %v", err)
	}
}

func TestDecompose_ProviderError(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetError(errors.New("API rate limit exceeded"))
	d := newTestDecomposer(provider)

	tk := task.New("goal", "", 1)
	err := d.Decompose(context.Background(), tk)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("expected provider error surfaced, got %v", err)
	}
}

func TestDecompose_NegativeRetriesClamped(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(`{"subtasks":[{"title":"do it","role":"implementer","expected_output":"done","max_retries":-3}]}`)
	d := newTestDecomposer(provider)

	tk := task.New("goal", "", 1)
	if err := d.Decompose(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.SubTasks[0].MaxRetries != 0 {
		t.Errorf("max retries = %d, want clamped to 0", tk.SubTasks[0].MaxRetries)
	}
}

func TestDecompose_PromptCarriesRolesAndGoal(t *testing.T) {
	provider := llm.NewMockProvider()
	var userPrompt string
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		userPrompt = req.Messages[len(req.Messages)-1].Content
		return &llm.ChatResponse{Content: twoStepPlan}, nil
	}
	d := newTestDecomposer(provider)

	tk := task.New("book a flight", "under 5000 TRY", 2)
	if err := d.Decompose(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"GOAL: book a flight", "DETAILS: under 5000 TRY", "researcher", "implementer"} {
		if !strings.Contains(userPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
