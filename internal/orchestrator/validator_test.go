package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/aide/internal/task"
)

func validatingSubTask(actual string) *task.SubTask {
	tk := task.New("goal", "", 1)
	st := tk.NewSubTask("find flights", task.RoleResearcher, "", "at least two options with prices", 1)
	st.ActualOutput = actual
	st.Status = task.StatusValidating
	return st
}

func TestValidate_Pass(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(`{"passed": true, "reason": "two options with prices present", "confidence": 0.9}`)
	v := NewValidator(provider)

	verdict := v.Validate(context.Background(), validatingSubTask("THY 08:10 4200 TRY; Pegasus 09:30 3100 TRY"))
	if !verdict.Passed {
		t.Errorf("expected pass, got %+v", verdict)
	}
	if verdict.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", verdict.Confidence)
	}
}

func TestValidate_Fail(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse(`{"passed": false, "reason": "only one option listed", "confidence": 0.8}`)
	v := NewValidator(provider)

	verdict := v.Validate(context.Background(), validatingSubTask("THY 08:10 4200 TRY"))
	if verdict.Passed {
		t.Errorf("expected fail, got %+v", verdict)
	}
	if !strings.Contains(verdict.Reason, "one option") {
		t.Errorf("reason lost: %+v", verdict)
	}
}

func TestValidate_EmptyOutputFailsClosed(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		t.Error("empty output must not reach the judge")
		return &llm.ChatResponse{Content: `{"passed": true, "reason": "looks fine", "confidence": 0.9}`}, nil
	}
	v := NewValidator(provider)

	for _, actual := range []string{"", "   \n\t"} {
		verdict := v.Validate(context.Background(), validatingSubTask(actual))
		if verdict.Passed {
			t.Errorf("empty output %q must fail, got %+v", actual, verdict)
		}
		if verdict.Confidence != 0 {
			t.Errorf("confidence = %f, want 0", verdict.Confidence)
		}
		if !strings.Contains(verdict.Reason, "empty") {
			t.Errorf("reason should name the empty output: %+v", verdict)
		}
	}
}

func TestValidate_EmptyOutputFailsWithoutJudge(t *testing.T) {
	v := NewValidator(nil)
	verdict := v.Validate(context.Background(), validatingSubTask(""))
	if verdict.Passed || verdict.Confidence != 0 {
		t.Errorf("expected fail at confidence 0, got %+v", verdict)
	}
}

func TestValidate_NilProviderPassesAtHalfConfidence(t *testing.T) {
	v := NewValidator(nil)
	verdict := v.Validate(context.Background(), validatingSubTask("anything"))
	if !verdict.Passed {
		t.Error("expected default pass without a judge")
	}
	if verdict.Confidence != 0.5 {
		t.Errorf("confidence = %f, want 0.5", verdict.Confidence)
	}
}

func TestValidate_ProviderErrorFailsClosed(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetError(errors.New("overloaded"))
	v := NewValidator(provider)

	verdict := v.Validate(context.Background(), validatingSubTask("output"))
	if verdict.Passed {
		t.Error("judge error must fail closed")
	}
	if verdict.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", verdict.Confidence)
	}
}

func TestValidate_UnparseableVerdictFailsClosed(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("Looks fine to me!")
	v := NewValidator(provider)

	verdict := v.Validate(context.Background(), validatingSubTask("output"))
	if verdict.Passed {
		t.Error("unparseable verdict must fail closed")
	}
	if verdict.Reason != "unparseable verdict" {
		t.Errorf("unexpected reason: %q", verdict.Reason)
	}
}

func TestParseVerdict_ClampsConfidence(t *testing.T) {
	v := parseVerdict(`{"passed": true, "reason": "ok", "confidence": 7.5}`)
	if v.Confidence != 1 {
		t.Errorf("confidence = %f, want clamped to 1", v.Confidence)
	}
	v = parseVerdict(`{"passed": false, "reason": "bad", "confidence": -2}`)
	if v.Confidence != 0 {
		t.Errorf("confidence = %f, want clamped to 0", v.Confidence)
	}
}

func TestParseVerdict_ToleratesFence(t *testing.T) {
	v := parseVerdict("```json\n{\"passed\": true, \"reason\": \"ok\", \"confidence\": 1.0}\n```")
	if !v.Passed {
		t.Errorf("expected pass, got %+v", v)
	}
}
