package engine

import (
	"context"
	"strings"
)

// ReviewNode asks the model for a patched script after a failed action. A
// local precheck runs before any execution: it is a cheap lint that saves a
// doomed round-trip, not a security boundary — the interpreter itself is
// hermetic and these tokens cannot do anything even if they slip through.
type ReviewNode struct {
	base
}

type ReviewIssue struct {
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Msg      string `json:"msg"`
}

var deniedTokens = []string{
	"import ",
	"load(",
	"open(",
	"exec(",
	"eval(",
	"subprocess",
	"socket",
	"requests",
	"urllib",
	"thread",
	"multiprocessing",
	"os.system",
	"while true",
}

func precheck(script string) (ok bool, issues []ReviewIssue) {
	lowered := strings.ToLower(script)
	for _, token := range deniedTokens {
		if strings.Contains(lowered, token) {
			issues = append(issues, ReviewIssue{
				Severity: "high",
				Kind:     "safety",
				Msg:      "banned token detected: " + token,
			})
		}
	}
	if !strings.Contains(script, "__result__") {
		issues = append(issues, ReviewIssue{
			Severity: "high",
			Kind:     "missing",
			Msg:      "must set __result__",
		})
	}
	for _, issue := range issues {
		if issue.Severity == "high" {
			return false, issues
		}
	}
	return true, issues
}

func (n *ReviewNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Info("review node running")
	bb := f.BB

	lastCode := strings.TrimSpace(bb.Script)
	if lastCode == "" {
		n.logger.Warn("nothing to review, returning to action generation")
		return NodeOutput{Next: string(StateActionGen), Payload: map[string]any{}}, nil
	}

	payload := map[string]any{
		"goal":              f.Goal,
		"step":              bb.CurrentStep,
		"action_code":       lastCode,
		"action_result":     bb.ActionResult,
		"scratchpad":        bb.Scratchpad,
		"game_basic_state":  bb.GameBasicState,
		"game_detail_state": bb.GameDetailState,
	}
	patched, err := n.generateCode(ctx, n.key, payload)
	if err != nil {
		return NodeOutput{}, err
	}
	if patched == "" {
		n.logger.Error("model returned an empty patch")
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"error": "empty_patch"}}, nil
	}

	ok, issues := precheck(patched)
	bb.Review = map[string]any{"issues": issuesAsMaps(issues), "patched": true}
	if !ok {
		// Short-circuit without executing the patch.
		n.logger.Warn("patched script failed local precheck", "issues", len(issues))
		return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"review": bb.Review}}, nil
	}

	bb.Script = patched
	res := n.runScript(ctx, f, patched)

	next := n.mapRequestedState(res.NextState, !res.Success)
	return NodeOutput{Next: next, Payload: map[string]any{
		"script":    patched,
		"execution": res.ToMap(),
	}}, nil
}

func issuesAsMaps(issues []ReviewIssue) []map[string]any {
	out := make([]map[string]any, 0, len(issues))
	for _, i := range issues {
		out = append(out, map[string]any{
			"severity": i.Severity,
			"kind":     i.Kind,
			"msg":      i.Msg,
		})
	}
	return out
}
