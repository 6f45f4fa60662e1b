package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/commandpost/overmind/internal/llm"
	"github.com/commandpost/overmind/internal/prompt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeAdapter replays scripted responses and records every request.
type fakeAdapter struct {
	responses []string
	err       error
	calls     []llm.Request
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return llm.Response{}, a.err
	}
	idx := len(a.calls) - 1
	if idx >= len(a.responses) {
		idx = len(a.responses) - 1
	}
	if idx < 0 {
		return llm.Response{Text: ""}, nil
	}
	return llm.Response{Text: a.responses[idx]}, nil
}

func testPrompts(t *testing.T) *prompt.Registry {
	t.Helper()
	reg, err := prompt.NewRegistry()
	if err != nil {
		t.Fatalf("prompt registry: %v", err)
	}
	return reg
}

func testBase(t *testing.T, key string, adapter llm.Adapter) base {
	t.Helper()
	return base{key: key, model: adapter, prompts: testPrompts(t), logger: testLogger()}
}

func testFSM(goal string) *FSM {
	return NewFSM(goal, nil, testLogger())
}

// resultScript returns a script whose __result__ requests the given
// next_state.
func resultScript(nextState, playerMessage string) string {
	return `
__result__ = {
    "next_state": "` + nextState + `",
    "player_message": "` + playerMessage + `",
    "observations": "ok",
    "next_step_hint": "",
}
`
}
