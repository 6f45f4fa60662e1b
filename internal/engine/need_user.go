package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Interviewer blocks until the operator responds. An empty reply is a valid
// "continue" signal.
type Interviewer interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// StdinInterviewer reads operator input from a terminal.
type StdinInterviewer struct {
	In  io.Reader
	Out io.Writer
}

func (s *StdinInterviewer) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(s.Out, prompt)
	scanner := bufio.NewScanner(s.In)
	if !scanner.Scan() {
		// EOF counts as an empty confirmation.
		return "", scanner.Err()
	}
	return scanner.Text(), nil
}

// NeedUserNode escalates to the operator. It is deliberately modelless: the
// prompt is assembled from the blackboard, and the node blocks on the
// interviewer until the operator confirms.
type NeedUserNode struct {
	base
	interviewer Interviewer
}

func (n *NeedUserNode) Run(ctx context.Context, f *FSM) (NodeOutput, error) {
	n.logger.Warn("waiting for operator input")
	bb := f.BB

	reply, err := n.interviewer.Ask(ctx, n.buildPrompt(f))
	if err != nil {
		return NodeOutput{}, fmt.Errorf("operator input: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply != "" {
		n.logger.Info("operator reply", "text", reply)
		bb.AppendEvent(Event{Kind: "need_user_ack", Message: reply})
	} else {
		n.logger.Info("operator confirmed without comment")
	}

	return NodeOutput{Next: string(StatePlan), Payload: map[string]any{"player_response": reply}}, nil
}

func (n *NeedUserNode) buildPrompt(f *FSM) string {
	bb := f.BB
	reason := firstMessage(bb.LastOutcome, bb.ActionResult, bb.Review)
	if reason == "" {
		reason = "(no further detail)"
	}
	return fmt.Sprintf(
		"\n============================\n"+
			"Operator input required:\n"+
			"- current goal: %s\n"+
			"- current step: %v\n"+
			"- last message: %s\n"+
			"Complete any necessary manual work, then type a note and press\n"+
			"enter to continue. Press enter alone if no note is needed.\n"+
			"============================\n"+
			"> ",
		f.Goal, bb.CurrentStep, reason,
	)
}

func firstMessage(sources ...map[string]any) string {
	for _, src := range sources {
		if msg, ok := src["player_message"].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}
