package engine

import (
	"context"
)

// ObserveNode gathers the minimal additional information needed before
// planning. It is deliberately non-fatal: generation failures, empty
// scripts, and execution failures are all recorded and the loop still moves
// to PLAN.
type ObserveNode struct {
	base
}

func (n *ObserveNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Info("observe node running")
	bb := f.BB

	requests := bb.DrainObservations()
	payload := map[string]any{
		"goal":              f.Goal,
		"last_outcome":      bb.LastOutcome,
		"intel":             bb.Intel,
		"requests":          requests,
		"game_basic_state":  bb.GameBasicState,
		"game_detail_state": bb.GameDetailState,
	}

	script, err := n.generateCode(ctx, n.key, payload)
	if err != nil {
		n.logger.Error("observe generation failed", "error", err)
		bb.AppendEvent(Event{Kind: "observe_error", Message: err.Error()})
		bb.AppendScratchpad("observe failed: " + err.Error() + "\n")
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"error": err.Error()}}, nil
	}
	if script == "" {
		n.logger.Warn("observe produced no script")
		bb.AppendEvent(Event{Kind: "observe_error", Message: "empty observation script"})
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"error": "empty_script"}}, nil
	}

	res := n.runScript(ctx, f, script)
	if !res.Success {
		n.logger.Warn("observe script failed", "error", res.Err)
		bb.AppendEvent(Event{Kind: "observe_error", Message: res.PlayerMessage})
	}

	// Rebuild the intel snapshot from the outcome. Extra keys the script
	// reported beyond the required contract are kept.
	intel := map[string]any{
		"success":      res.Success,
		"observations": res.Observations,
	}
	for k, v := range res.Raw {
		if !isRequiredResultKey(k) {
			intel[k] = v
		}
	}
	bb.Intel = intel

	return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"observe": res.ToMap()}}, nil
}

func isRequiredResultKey(k string) bool {
	switch k {
	case "next_state", "player_message", "observations", "next_step_hint":
		return true
	}
	return false
}
