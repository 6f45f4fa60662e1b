package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/commandpost/overmind/internal/config"
	"github.com/commandpost/overmind/internal/llm"
	llmfactory "github.com/commandpost/overmind/internal/llm/factory"
	"github.com/commandpost/overmind/internal/prompt"
)

// Factory assembles the closed token-to-node table. Unknown model template
// references and unknown node keys are rejected here, at construction, not
// at dispatch time. Terminal states have no node by design.
type Factory struct {
	nodes map[string]Node
}

func NewFactory(ctx context.Context, cfg *config.Config, prompts *prompt.Registry, interviewer Interviewer, logger *slog.Logger) (*Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interviewer == nil {
		return nil, fmt.Errorf("factory requires an interviewer")
	}

	adapters := map[string]llm.Adapter{}
	for nodeKey, templateName := range cfg.Nodes.All() {
		tmpl, ok := cfg.Models[templateName]
		if !ok {
			return nil, fmt.Errorf("node %s references unknown model template %q", nodeKey, templateName)
		}
		adapter, err := llmfactory.Build(ctx, tmpl)
		if err != nil {
			return nil, fmt.Errorf("build model for node %s: %w", nodeKey, err)
		}
		adapters[nodeKey] = adapter
	}

	mk := func(key string) base {
		return base{key: key, model: adapters[key], prompts: prompts, logger: logger}
	}
	nodes := map[string]Node{
		"observe":    &ObserveNode{base: mk("observe")},
		"plan":       &PlanNode{base: mk("plan")},
		"action_gen": &ActionGenNode{base: mk("action_gen")},
		"review":     &ReviewNode{base: mk("review")},
		"commit":     &CommitNode{base: mk("commit")},
		"need_user": &NeedUserNode{
			base:        base{key: "need_user", prompts: prompts, logger: logger},
			interviewer: interviewer,
		},
	}
	return &Factory{nodes: nodes}, nil
}

// Node resolves a node by key or state token.
func (f *Factory) Node(key string) (Node, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	node, ok := f.nodes[normalized]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", key)
	}
	return node, nil
}

// NodeFor resolves the node for a transient state. Terminal states resolve
// to nothing.
func (f *Factory) NodeFor(state State) (Node, error) {
	if state.Terminal() {
		return nil, fmt.Errorf("no node for terminal state %s", state)
	}
	return f.Node(state.NodeKey())
}
