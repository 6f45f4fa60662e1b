package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/commandpost/overmind/internal/llm"
	"github.com/commandpost/overmind/internal/prompt"
	"github.com/commandpost/overmind/internal/sandbox"
)

// NodeOutput is what every node returns: the requested next-state token
// (possibly the RUN sentinel) and a payload for the driving loop.
type NodeOutput struct {
	Next    string
	Payload map[string]any
}

// Node is one phase of the outer loop.
type Node interface {
	Key() string
	Run(ctx context.Context, f *FSM) (NodeOutput, error)
}

// base carries the collaborators shared by all nodes. model may be nil for
// deliberately modelless nodes (NEED_USER); complete fails loudly in that
// case rather than guessing.
type base struct {
	key     string
	model   llm.Adapter
	prompts *prompt.Registry
	logger  *slog.Logger
}

func (b *base) Key() string { return b.key }

func (b *base) complete(ctx context.Context, system, user string, metadata map[string]any) (string, error) {
	if b.model == nil {
		return "", &llm.InvocationError{Summary: "no model bound for node " + b.key}
	}
	b.logger.Debug("model completion", "node", b.key)
	resp, err := b.model.Complete(ctx, llm.Request{System: system, User: user, Metadata: metadata})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// completePrompt renders the named prompt pair over the payload and invokes
// the model.
func (b *base) completePrompt(ctx context.Context, promptKey string, payload map[string]any) (string, error) {
	system, err := b.prompts.System(promptKey)
	if err != nil {
		return "", err
	}
	user, err := b.prompts.RenderUser(promptKey, payload)
	if err != nil {
		return "", err
	}
	return b.complete(ctx, system, user, map[string]any{"node": b.key})
}

// generateCode asks the model for a script. The returned text is trimmed;
// empty is meaningful ("no action produced") and callers must handle it.
func (b *base) generateCode(ctx context.Context, promptKey string, payload map[string]any) (string, error) {
	text, err := b.completePrompt(ctx, promptKey, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// runScript executes code against the FSM's runtime bindings and folds the
// outcome into the blackboard before returning it.
func (b *base) runScript(ctx context.Context, f *FSM, code string) sandbox.Result {
	ex := sandbox.New(f.Bindings, b.logger, sandbox.WithMaxSteps(f.SandboxMaxSteps))
	res := ex.Run(ctx, code)
	f.BB.UpdateFromResult(res)
	return res
}

// mapRequestedState translates free next-state text from a model or script
// into a transition token. Canonical tokens (including the RUN sentinel)
// pass through unchanged; unknown text falls back to PLAN on success paths
// and REVIEW on error paths, logged and never raised.
func (b *base) mapRequestedState(requested string, isErr bool) string {
	trimmed := strings.TrimSpace(requested)
	if strings.EqualFold(trimmed, TokenRun) {
		return TokenRun
	}
	if st, err := ParseState(trimmed); err == nil {
		return string(st)
	}
	fallback := StatePlan
	if isErr {
		fallback = StateReview
	}
	b.logger.Warn("unknown next_state, using fallback", "node", b.key, "requested", requested, "fallback", fallback)
	return string(fallback)
}
