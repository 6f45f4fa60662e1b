package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/commandpost/overmind/internal/llm"
)

func TestMapRequestedState(t *testing.T) {
	b := testBase(t, "action_gen", nil)
	cases := []struct {
		in    string
		isErr bool
		want  string
	}{
		{"RUN", false, TokenRun},
		{"run", false, TokenRun},
		{" Run ", false, TokenRun},
		{"PLAN", false, "PLAN"},
		{"review", false, "REVIEW"},
		{"need_user", true, "NEED_USER"},
		{"done", false, "DONE"},
		{"", false, "PLAN"},
		{"nonsense", false, "PLAN"},
		{"", true, "REVIEW"},
		{"nonsense", true, "REVIEW"},
	}
	for _, tc := range cases {
		if got := b.mapRequestedState(tc.in, tc.isErr); got != tc.want {
			t.Errorf("mapRequestedState(%q, %v) = %q, want %q", tc.in, tc.isErr, got, tc.want)
		}
	}
}

func TestMapRequestedStateIdempotentOnCanonicalTokens(t *testing.T) {
	b := testBase(t, "review", nil)
	for _, tok := range []string{TokenRun, "OBSERVE", "PLAN", "ACTION_GEN", "REVIEW", "COMMIT", "NEED_USER", "STOP", "DONE"} {
		once := b.mapRequestedState(tok, false)
		twice := b.mapRequestedState(once, false)
		if once != twice {
			t.Errorf("mapping %q not idempotent: %q then %q", tok, once, twice)
		}
	}
}

func TestCompleteWithoutModelFails(t *testing.T) {
	b := testBase(t, "plan", nil)
	_, err := b.complete(context.Background(), "sys", "user", nil)
	if err == nil {
		t.Fatal("expected error for nil model")
	}
	var ierr *llm.InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("error type = %T, want *llm.InvocationError", err)
	}
	if !strings.Contains(ierr.Summary, "plan") {
		t.Errorf("error should name the node: %q", ierr.Summary)
	}
}

func TestCompletePromptRendersPayload(t *testing.T) {
	fa := &fakeAdapter{responses: []string{"reply"}}
	b := testBase(t, "plan", fa)

	_, err := b.completePrompt(context.Background(), "plan", map[string]any{
		"goal":              "defend the base",
		"intel":             map[string]any{},
		"events":            nil,
		"game_basic_state":  "",
		"game_detail_state": "",
	})
	if err != nil {
		t.Fatalf("completePrompt: %v", err)
	}
	if len(fa.calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(fa.calls))
	}
	req := fa.calls[0]
	if req.System == "" {
		t.Error("system prompt empty")
	}
	if !strings.Contains(req.User, "defend the base") {
		t.Errorf("user prompt missing goal: %q", req.User)
	}
	if req.Metadata["node"] != "plan" {
		t.Errorf("metadata node = %v", req.Metadata["node"])
	}
}

func TestGenerateCodeTrims(t *testing.T) {
	fa := &fakeAdapter{responses: []string{"  \n\nx = 1\n  "}}
	b := testBase(t, "action_gen", fa)
	code, err := b.generateCode(context.Background(), "action_gen", map[string]any{
		"goal": "g", "step": map[string]any{}, "intel": map[string]any{},
		"events": nil, "rt_contract": "", "game_basic_state": "", "game_detail_state": "",
	})
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if code != "x = 1" {
		t.Errorf("code = %q, want trimmed", code)
	}
}
