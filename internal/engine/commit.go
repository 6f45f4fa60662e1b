package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/commandpost/overmind/internal/sandbox"
)

// CommitNode turns the completed work into persistence records. A malformed
// response is replaced by a synthesized fallback commit that forces a fresh
// observation, so the loop re-grounds itself instead of persisting garbage.
type CommitNode struct {
	base
}

const commitSchemaJSON = `{
  "type": "object",
  "required": ["db_records", "player_message"],
  "properties": {
    "db_records": {
      "type": "array",
      "items": {"type": "object", "required": ["type"]}
    },
    "player_message": {"type": "string"},
    "next_hint": {
      "type": "object",
      "properties": {"observe_force": {"type": "boolean"}}
    }
  }
}`

var commitSchema = jsonschema.MustCompileString("commit.json", commitSchemaJSON)

type commitResponse struct {
	DBRecords     []map[string]any `json:"db_records"`
	PlayerMessage string           `json:"player_message"`
	NextHint      struct {
		ObserveForce bool `json:"observe_force"`
	} `json:"next_hint"`
}

func (n *CommitNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Info("commit node running")
	bb := f.BB

	payload := map[string]any{
		"goal":              f.Goal,
		"step":              bb.CurrentStep,
		"scratchpad":        bb.Scratchpad,
		"game_basic_state":  bb.GameBasicState,
		"game_detail_state": bb.GameDetailState,
	}
	text, err := n.completePrompt(ctx, n.key, payload)
	if err != nil {
		return NodeOutput{}, err
	}

	data, perr := parseCommitResponse(text)
	if perr != nil {
		n.logger.Error("invalid commit response", "error", perr)
		data = commitResponse{
			PlayerMessage: "Commit failed: invalid model response.",
		}
		data.NextHint.ObserveForce = true
	}

	bb.Commit = map[string]any{
		"db_records":     data.DBRecords,
		"player_message": data.PlayerMessage,
		"next_hint":      map[string]any{"observe_force": data.NextHint.ObserveForce},
	}
	for _, record := range data.DBRecords {
		kind, _ := record["type"].(string)
		payload, _ := record["data"].(map[string]any)
		f.WriteDB(kind, payload)
	}
	n.logger.Info("commit recorded", "records", len(data.DBRecords), "player_message", data.PlayerMessage)

	next := StatePlan
	if data.NextHint.ObserveForce {
		next = StateObserve
	}
	return NodeOutput{Next: string(next), Payload: map[string]any{"commit": bb.Commit}}, nil
}

func parseCommitResponse(text string) (commitResponse, error) {
	stripped := sandbox.StripFences(text)
	var generic any
	if err := json.NewDecoder(strings.NewReader(stripped)).Decode(&generic); err != nil {
		return commitResponse{}, err
	}
	if err := commitSchema.Validate(generic); err != nil {
		return commitResponse{}, err
	}
	var out commitResponse
	if err := json.Unmarshal([]byte(stripped), &out); err != nil {
		return commitResponse{}, err
	}
	return out, nil
}
