// Package oneshot turns a single operator command into generated code and
// one sandboxed execution, outside the outer loop. It keeps a short history
// of recent commands so the model can refer back to what it already tried.
package oneshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commandpost/overmind/internal/llm"
	"github.com/commandpost/overmind/internal/prompt"
	"github.com/commandpost/overmind/internal/sandbox"
)

const promptKey = "codegen"

// DefaultMaxHistory is the number of past commands kept for the prompt.
const DefaultMaxHistory = 5

// Record is one completed command in the history ring.
type Record struct {
	Command string
	Success bool
	Message string
	At      time.Time
}

// Result is the outcome handed back to the operator. Failures carry a
// message instead of an error: the pipeline never raises for bad model
// output, only for broken plumbing.
type Result struct {
	Success       bool
	PlayerMessage string
	Observations  string
	Script        string
	Err           string
}

// Runner drives the command→code→execute pipeline. Zero values are not
// usable; construct with New.
type Runner struct {
	model    llm.Adapter
	prompts  *prompt.Registry
	bindings map[string]any
	contract string

	// Observe produces the environment text shown to the model. Optional;
	// failures degrade to a placeholder rather than blocking the command.
	Observe func(ctx context.Context) (string, error)

	MaxHistory int
	history    []Record

	logger   *slog.Logger
	maxSteps int
}

func New(model llm.Adapter, prompts *prompt.Registry, bindings map[string]any, contract string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		model:      model,
		prompts:    prompts,
		bindings:   bindings,
		contract:   contract,
		MaxHistory: DefaultMaxHistory,
		logger:     logger,
	}
}

// WithMaxSteps caps interpreter steps for each executed script.
func (r *Runner) WithMaxSteps(n int) *Runner {
	r.maxSteps = n
	return r
}

// History returns a copy of the retained records, oldest first.
func (r *Runner) History() []Record {
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

// Run handles one operator command end to end.
func (r *Runner) Run(ctx context.Context, command string) Result {
	command = strings.TrimSpace(command)
	r.logger.Info("oneshot command", "command", command)

	gameState := r.observe(ctx)

	script, err := r.generate(ctx, command, gameState)
	if err != nil {
		r.logger.Error("code generation failed", "error", err)
		return r.record(command, Result{
			PlayerMessage: "Could not generate code for that command.",
			Err:           "generation_error",
		})
	}
	if script == "" {
		r.logger.Warn("model produced no code")
		return r.record(command, Result{
			PlayerMessage: "The model produced no code for that command.",
			Err:           "empty_code",
		})
	}

	ex := sandbox.New(r.bindings, r.logger, sandbox.WithMaxSteps(r.maxSteps))
	res := ex.Run(ctx, script)
	return r.record(command, Result{
		Success:       res.Success,
		PlayerMessage: res.PlayerMessage,
		Observations:  res.Observations,
		Script:        script,
		Err:           res.Err,
	})
}

func (r *Runner) observe(ctx context.Context) string {
	if r.Observe == nil {
		return "(no environment snapshot available)"
	}
	state, err := r.Observe(ctx)
	if err != nil {
		r.logger.Warn("environment observation failed", "error", err)
		return "(environment observation failed)"
	}
	return state
}

func (r *Runner) generate(ctx context.Context, command, gameState string) (string, error) {
	system, err := r.prompts.System(promptKey)
	if err != nil {
		return "", err
	}
	user, err := r.prompts.RenderUser(promptKey, map[string]any{
		"command":     command,
		"game_state":  gameState,
		"history":     r.historyBlock(),
		"rt_contract": r.contract,
	})
	if err != nil {
		return "", err
	}
	resp, err := r.model.Complete(ctx, llm.Request{System: system, User: user, Metadata: map[string]any{"node": promptKey}})
	if err != nil {
		return "", err
	}
	return sandbox.StripFences(strings.TrimSpace(resp.Text)), nil
}

func (r *Runner) historyBlock() string {
	if len(r.history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, rec := range r.history {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", status, rec.Command, rec.Message)
	}
	return b.String()
}

func (r *Runner) record(command string, res Result) Result {
	r.history = append(r.history, Record{
		Command: command,
		Success: res.Success,
		Message: res.PlayerMessage,
		At:      time.Now().UTC(),
	})
	max := r.MaxHistory
	if max <= 0 {
		max = DefaultMaxHistory
	}
	if len(r.history) > max {
		r.history = r.history[len(r.history)-max:]
	}
	return res
}
