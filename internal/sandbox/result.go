package sandbox

// Error kinds for failed executions. The set is closed; callers route on
// these strings.
const (
	ErrExecution     = "execution_error"
	ErrMissingResult = "missing_result"
	ErrMissingKeys   = "result_missing_keys"
)

// ResultVar is the variable a script must bind exactly once to its outcome
// dict.
const ResultVar = "__result__"

// RequiredKeys must all be present in the outcome dict.
var RequiredKeys = []string{"next_state", "player_message", "observations", "next_step_hint"}

// Result is the normalized outcome of one script run. It is constructed by
// the executor, folded into the blackboard by the calling node, and then
// discarded.
type Result struct {
	Success       bool
	NextState     string
	PlayerMessage string
	Observations  string
	NextStepHint  string
	Raw           map[string]any
	Err           string
}

// ToMap produces the blackboard mirror of the result. Empty Err and nil Raw
// map to nil values so consumers can distinguish "absent" from "empty".
func (r Result) ToMap() map[string]any {
	var rawField any
	if r.Raw != nil {
		rawField = r.Raw
	}
	var errField any
	if r.Err != "" {
		errField = r.Err
	}
	return map[string]any{
		"success":        r.Success,
		"next_state":     r.NextState,
		"player_message": r.PlayerMessage,
		"observations":   r.Observations,
		"next_step_hint": r.NextStepHint,
		"raw_result":     rawField,
		"error":          errField,
	}
}
