package oneshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/commandpost/overmind/internal/llm"
	"github.com/commandpost/overmind/internal/prompt"
	"github.com/commandpost/overmind/internal/sandbox"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeAdapter struct {
	text  string
	err   error
	calls []llm.Request
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return llm.Response{}, a.err
	}
	return llm.Response{Text: a.text}, nil
}

func testPrompts(t *testing.T) *prompt.Registry {
	t.Helper()
	reg, err := prompt.NewRegistry()
	if err != nil {
		t.Fatalf("prompt registry: %v", err)
	}
	return reg
}

const okScript = `
__result__ = {
    "next_state": "PLAN",
    "player_message": "done",
    "observations": "moved north",
    "next_step_hint": "",
}
`

func TestRunExecutesGeneratedScript(t *testing.T) {
	fa := &fakeAdapter{text: "```python\n" + okScript + "\n```"}
	r := New(fa, testPrompts(t), nil, "api.move(dir: string) -> bool", testLogger())
	r.Observe = func(ctx context.Context) (string, error) { return "you are in a forest", nil }

	res := r.Run(context.Background(), "go north")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.PlayerMessage != "done" || res.Observations != "moved north" {
		t.Errorf("result = %+v", res)
	}
	if len(fa.calls) != 1 {
		t.Fatalf("model calls = %d", len(fa.calls))
	}
	user := fa.calls[0].User
	if !strings.Contains(user, "go north") {
		t.Errorf("prompt missing command: %q", user)
	}
	if !strings.Contains(user, "you are in a forest") {
		t.Errorf("prompt missing game state: %q", user)
	}
	if !strings.Contains(user, "api.move") {
		t.Errorf("prompt missing runtime contract: %q", user)
	}
}

func TestRunGenerationFailureReturnsFailedResult(t *testing.T) {
	fa := &fakeAdapter{err: errors.New("provider down")}
	r := New(fa, testPrompts(t), nil, "", testLogger())

	res := r.Run(context.Background(), "do something")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err != "generation_error" {
		t.Errorf("err = %q, want generation_error", res.Err)
	}
	if res.PlayerMessage == "" {
		t.Error("failure must carry an operator message")
	}
	if h := r.History(); len(h) != 1 || h[0].Success {
		t.Errorf("history = %+v", h)
	}
}

func TestRunEmptyCodeReturnsFailedResult(t *testing.T) {
	fa := &fakeAdapter{text: "   \n"}
	r := New(fa, testPrompts(t), nil, "", testLogger())

	res := r.Run(context.Background(), "noop")
	if res.Success || res.Err != "empty_code" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunScriptFailureIsDataNotError(t *testing.T) {
	fa := &fakeAdapter{text: "x = undefined_thing"}
	r := New(fa, testPrompts(t), nil, "", testLogger())

	res := r.Run(context.Background(), "break things")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err != sandbox.ErrExecution {
		t.Errorf("err = %q, want %q", res.Err, sandbox.ErrExecution)
	}
}

func TestObserveFailureDegradesToPlaceholder(t *testing.T) {
	fa := &fakeAdapter{text: okScript}
	r := New(fa, testPrompts(t), nil, "", testLogger())
	r.Observe = func(ctx context.Context) (string, error) { return "", errors.New("sensor offline") }

	res := r.Run(context.Background(), "look around")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(fa.calls[0].User, "(environment observation failed)") {
		t.Errorf("prompt missing placeholder: %q", fa.calls[0].User)
	}
}

func TestHistoryIsBoundedAndInPrompt(t *testing.T) {
	fa := &fakeAdapter{text: okScript}
	r := New(fa, testPrompts(t), nil, "", testLogger())
	r.MaxHistory = 3

	for i := 0; i < 5; i++ {
		r.Run(context.Background(), fmt.Sprintf("command %d", i))
	}
	h := r.History()
	if len(h) != 3 {
		t.Fatalf("history = %d records, want 3", len(h))
	}
	if h[0].Command != "command 2" || h[2].Command != "command 4" {
		t.Errorf("history window = %+v", h)
	}

	last := fa.calls[len(fa.calls)-1].User
	if !strings.Contains(last, "command 3") {
		t.Errorf("prompt missing history entry: %q", last)
	}
	if strings.Contains(last, "command 0") {
		t.Errorf("prompt contains evicted history entry: %q", last)
	}
}

func TestRunUsesBindings(t *testing.T) {
	called := false
	bindings := map[string]any{
		"api": sandbox.Module{
			"ping": func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
				called = true
				return "pong", nil
			},
		},
	}
	fa := &fakeAdapter{text: `
reply = api.ping()
__result__ = {
    "next_state": "PLAN",
    "player_message": reply,
    "observations": "",
    "next_step_hint": "",
}
`}
	r := New(fa, testPrompts(t), bindings, "", testLogger())
	res := r.Run(context.Background(), "ping")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !called {
		t.Error("binding not invoked")
	}
	if res.PlayerMessage != "pong" {
		t.Errorf("player message = %q", res.PlayerMessage)
	}
}
