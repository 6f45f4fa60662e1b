package engine

import (
	"fmt"
	"strings"
)

// State is one phase token of the outer loop. STOP and DONE are terminal;
// every other state resolves to a node.
type State string

const (
	StateObserve   State = "OBSERVE"
	StatePlan      State = "PLAN"
	StateActionGen State = "ACTION_GEN"
	StateReview    State = "REVIEW"
	StateCommit    State = "COMMIT"
	StateNeedUser  State = "NEED_USER"
	StateStop      State = "STOP"
	StateDone      State = "DONE"
)

// TokenRun is the advance sentinel: not a state, but a transition request
// meaning "this step completed, move the plan cursor".
const TokenRun = "RUN"

func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "observe":
		return StateObserve, nil
	case "plan":
		return StatePlan, nil
	case "action_gen", "actiongen", "action-gen":
		return StateActionGen, nil
	case "review":
		return StateReview, nil
	case "commit":
		return StateCommit, nil
	case "need_user", "needuser", "need-user":
		return StateNeedUser, nil
	case "stop":
		return StateStop, nil
	case "done":
		return StateDone, nil
	default:
		return "", fmt.Errorf("invalid state token: %q", s)
	}
}

func (s State) Terminal() bool {
	return s == StateStop || s == StateDone
}

// NodeKey is the lowercase key used for node lookup and prompt templates.
func (s State) NodeKey() string {
	return strings.ToLower(string(s))
}
