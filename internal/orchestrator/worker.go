package orchestrator

import (
	"context"
	"fmt"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/aide/internal/roles"
	"github.com/vinayprograms/aide/internal/task"
)

// Worker executes sub-tasks routed to its role.
type Worker interface {
	Role() task.Role
	Execute(ctx context.Context, st *task.SubTask) (string, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc struct {
	WorkerRole task.Role
	Fn         func(ctx context.Context, st *task.SubTask) (string, error)
}

// Role implements Worker.
func (w WorkerFunc) Role() task.Role { return w.WorkerRole }

// Execute implements Worker.
func (w WorkerFunc) Execute(ctx context.Context, st *task.SubTask) (string, error) {
	return w.Fn(ctx, st)
}

// LLMWorker executes a sub-task by prompting a provider with the role's
// capability profile. Workers whose sub-tasks require remote actions wrap
// this with gateway access at the conversational layer.
type LLMWorker struct {
	role     task.Role
	def      roles.Definition
	provider llm.Provider
}

// NewLLMWorker creates a provider-backed worker for a role.
func NewLLMWorker(role task.Role, registry *roles.Registry, provider llm.Provider) (*LLMWorker, error) {
	def, ok := registry.Get(role)
	if !ok {
		return nil, fmt.Errorf("no definition for role %q", role)
	}
	return &LLMWorker{role: role, def: def, provider: provider}, nil
}

// Role implements Worker.
func (w *LLMWorker) Role() task.Role { return w.role }

// Execute implements Worker.
func (w *LLMWorker) Execute(ctx context.Context, st *task.SubTask) (string, error) {
	system := fmt.Sprintf("You are the %s worker of a personal assistant. %s", w.def.Name, w.def.Description)
	prompt := fmt.Sprintf("SUB-TASK: %s\nEXPECTED INPUT: %s\nEXPECTED OUTPUT: %s\n\nProduce the expected output.",
		st.Title, st.ExpectedInput, st.ExpectedOutput)

	resp, err := w.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
