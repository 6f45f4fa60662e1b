package engine

import (
	"context"
)

// ActionGenNode generates and executes a script for the current plan step.
// The script's own next_state drives the transition: RUN advances the plan,
// REVIEW routes failures to repair, PLAN re-plans.
type ActionGenNode struct {
	base
}

func (n *ActionGenNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Info("action node running")
	bb := f.BB

	step := bb.CurrentStep
	if len(step) == 0 {
		n.logger.Warn("no current step, returning to plan")
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{}}, nil
	}
	n.logger.Debug("current step", "step", step)

	payload := map[string]any{
		"goal":              f.Goal,
		"step":              step,
		"intel":             bb.Intel,
		"events":            bb.Events,
		"rt_contract":       f.RuntimeContract,
		"game_basic_state":  bb.GameBasicState,
		"game_detail_state": bb.GameDetailState,
	}
	script, err := n.generateCode(ctx, n.key, payload)
	if err != nil {
		return NodeOutput{}, err
	}
	if script == "" {
		n.logger.Warn("model produced no script, returning to plan")
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"error": "empty_script"}}, nil
	}

	bb.Script = script
	n.logger.Info("executing action script", "length", len(script))
	res := n.runScript(ctx, f, script)

	next := n.mapRequestedState(res.NextState, !res.Success)
	return NodeOutput{Next: next, Payload: map[string]any{
		"script":    script,
		"execution": res.ToMap(),
	}}, nil
}
