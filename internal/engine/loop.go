package engine

import (
	"context"
	"log/slog"
	"strings"
)

// Loop drives one FSM run: it resolves the current node, runs it, and feeds
// the returned token back into Transition until a terminal state, a node
// error, cancellation, or a budget stop.
//
// The loop owns the two budgets the core itself does not enforce: a
// transition ceiling for the whole run, and a cap on consecutive review
// passes over an unchanged script. Exceeding the review cap forces NEED_USER
// so a broken repair cycle escalates instead of oscillating forever.
type Loop struct {
	FSM     *FSM
	Factory *Factory

	MaxTransitions  int
	MaxReviewCycles int

	Logger *slog.Logger
}

func (l *Loop) Run(ctx context.Context) (State, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := l.FSM

	transitions := 0
	reviewCycles := 0
	lastFingerprint := ""

	for !f.State.Terminal() {
		if err := ctx.Err(); err != nil {
			return f.State, err
		}
		if l.MaxTransitions > 0 && transitions >= l.MaxTransitions {
			logger.Warn("transition budget exhausted, stopping", "transitions", transitions)
			if err := f.Transition(string(StateStop)); err != nil {
				return f.State, err
			}
			break
		}

		node, err := l.Factory.NodeFor(f.State)
		if err != nil {
			return f.State, err
		}
		out, err := node.Run(ctx, f)
		if err != nil {
			return f.State, err
		}

		next := out.Next
		switch {
		case strings.EqualFold(next, string(StateReview)):
			fp := ScriptFingerprint(f.BB.Script)
			if fp == lastFingerprint {
				reviewCycles++
			} else {
				reviewCycles = 1
				lastFingerprint = fp
			}
			if l.MaxReviewCycles > 0 && reviewCycles > l.MaxReviewCycles {
				logger.Warn("review cycle budget exhausted, escalating to operator", "cycles", reviewCycles)
				next = string(StateNeedUser)
				reviewCycles = 0
				lastFingerprint = ""
			}
		case strings.EqualFold(next, string(StatePlan)),
			strings.EqualFold(next, string(StateObserve)),
			strings.EqualFold(next, string(StateCommit)):
			reviewCycles = 0
			lastFingerprint = ""
		}

		if err := f.Transition(next); err != nil {
			return f.State, err
		}
		transitions++
	}
	logger.Info("run finished", "state", f.State, "transitions", transitions)
	return f.State, nil
}
