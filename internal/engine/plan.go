package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/commandpost/overmind/internal/sandbox"
)

// PlanNode replaces the plan from a model response. Malformed responses
// degrade to an empty plan; the empty-step check in ActionGen bounces the
// loop back here, so a bad plan costs one cycle, never the run.
type PlanNode struct {
	base
}

const planSchemaJSON = `{
  "type": "object",
  "required": ["plan"],
  "properties": {
    "plan": {
      "type": "array",
      "items": {"type": "object", "required": ["step"]}
    },
    "assumptions": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var planSchema = jsonschema.MustCompileString("plan.json", planSchemaJSON)

func (n *PlanNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Info("plan node running")
	bb := f.BB

	payload := map[string]any{
		"goal":              f.Goal,
		"intel":             bb.Intel,
		"events":            bb.Events,
		"game_basic_state":  bb.GameBasicState,
		"game_detail_state": bb.GameDetailState,
	}
	text, err := n.completePrompt(ctx, n.key, payload)
	if err != nil {
		// Without a plan the loop cannot make progress; invocation failures
		// here are loud.
		return NodeOutput{}, err
	}

	data, perr := parsePlanResponse(text)
	if perr != nil {
		n.logger.Error("invalid plan response", "error", perr)
		data = planResponse{}
	}

	steps := make([]Step, 0, len(data.Plan))
	for _, s := range data.Plan {
		steps = append(steps, Step(s))
	}
	bb.SetPlan(steps)
	if len(data.Assumptions) > 0 {
		bb.AppendScratchpad(fmt.Sprintf("\nplan assumptions: %v", data.Assumptions))
	}
	n.logger.Info("plan set", "steps", len(steps))

	return NodeOutput{Next: string(StateActionGen), Payload: map[string]any{
		"plan":        data.Plan,
		"assumptions": data.Assumptions,
	}}, nil
}

type planResponse struct {
	Plan        []map[string]any `json:"plan"`
	Assumptions []string         `json:"assumptions"`
}

func parsePlanResponse(text string) (planResponse, error) {
	stripped := sandbox.StripFences(text)
	var generic any
	dec := json.NewDecoder(strings.NewReader(stripped))
	if err := dec.Decode(&generic); err != nil {
		return planResponse{}, fmt.Errorf("plan response is not JSON: %w", err)
	}
	if err := planSchema.Validate(generic); err != nil {
		return planResponse{}, fmt.Errorf("plan response schema: %w", err)
	}
	var out planResponse
	if err := json.Unmarshal([]byte(stripped), &out); err != nil {
		return planResponse{}, err
	}
	return out, nil
}
