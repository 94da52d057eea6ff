package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/task"
)

const validatorSystemPrompt = `You judge whether a sub-task's actual output satisfies its expected output.

Be strict: the expected output is a checkable assertion; pass only when the actual output satisfies it. An empty or evasive actual output always fails.

Respond with ONLY this JSON object (no markdown, no prose):
{"passed": true|false, "reason": "<one sentence>", "confidence": 0.0-1.0}`

// Validator judges sub-task output against expectations. An empty actual
// output fails at confidence 0 without consulting the judge. Without a
// judging authority it degrades to an always-pass verdict at confidence 0.5;
// a malformed judge response fails closed at confidence 0.
type Validator struct {
	provider llm.Provider
	logger   *logging.Logger
}

// NewValidator creates a validator. Provider may be nil.
func NewValidator(provider llm.Provider) *Validator {
	return &Validator{
		provider: provider,
		logger:   logging.New().WithComponent("validator"),
	}
}

// Validate returns the verdict for a sub-task's actual output. It never
// returns an error: every failure mode maps to a verdict, so the caller's
// retry policy is the only control flow.
func (v *Validator) Validate(ctx context.Context, st *task.SubTask) task.Validation {
	if strings.TrimSpace(st.ActualOutput) == "" {
		return task.Validation{Passed: false, Reason: "empty actual output", Confidence: 0}
	}

	if v.provider == nil {
		v.logger.Warn("no judging authority configured, passing by default", map[string]interface{}{
			"subtask": st.ID,
		})
		return task.Validation{Passed: true, Reason: "no judging authority configured", Confidence: 0.5}
	}

	prompt := fmt.Sprintf("SUB-TASK: %s\nROLE: %s\nEXPECTED OUTPUT: %s\nACTUAL OUTPUT:\n%s",
		st.Title, st.Role, st.ExpectedOutput, st.ActualOutput)

	resp, err := v.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: validatorSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		v.logger.Warn("judging authority error, failing closed", map[string]interface{}{
			"subtask": st.ID,
			"error":   err.Error(),
		})
		return task.Validation{Passed: false, Reason: "judge unavailable: " + err.Error(), Confidence: 0}
	}

	return parseVerdict(resp.Content)
}

// parseVerdict decodes the judge's JSON verdict, failing closed on anything
// unparseable and clamping confidence to [0,1].
func parseVerdict(content string) task.Validation {
	var verdict task.Validation
	cleaned := stripFences(content)
	if cleaned == "" || json.Unmarshal([]byte(cleaned), &verdict) != nil {
		return task.Validation{Passed: false, Reason: "unparseable verdict", Confidence: 0}
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	verdict.Reason = strings.TrimSpace(verdict.Reason)
	return verdict
}
