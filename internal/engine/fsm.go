package engine

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

// FSM is the outer-loop driver: the immutable goal, the blackboard, and the
// current state. It never calls nodes itself; the Loop resolves and runs
// them, feeding each returned token back into Transition.
type FSM struct {
	Goal  string
	RunID string
	BB    *Blackboard
	State State

	// Bindings is the runtime-bindings set handed to the executor for every
	// script run. Opaque to the engine.
	Bindings map[string]any

	// RuntimeContract is the prompt section describing the bindings, shown
	// to code-generating nodes.
	RuntimeContract string

	// SandboxMaxSteps caps interpreter steps per script; 0 disables the cap.
	SandboxMaxSteps int

	logger *slog.Logger
}

func NewFSM(goal string, bindings map[string]any, logger *slog.Logger) *FSM {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSM{
		Goal:     goal,
		RunID:    ulid.Make().String(),
		BB:       NewBlackboard(),
		State:    StateObserve,
		Bindings: bindings,
		logger:   logger,
	}
}

// Transition advances the FSM. The RUN sentinel moves the plan cursor:
// past the end of the plan it terminates with DONE, otherwise the next step
// runs through ACTION_GEN. Any other token is parsed into a state directly.
// The current-step invariant is restored unconditionally on every path.
func (f *FSM) Transition(requested string) error {
	f.logger.Debug("transition requested", "token", requested, "from", f.State)
	bb := f.BB
	var next State
	if strings.EqualFold(strings.TrimSpace(requested), TokenRun) {
		bb.StepIndex++
		if bb.StepIndex >= len(bb.Plan) {
			next = StateDone
		} else {
			next = StateActionGen
			f.logger.Info("advancing to next plan step", "index", bb.StepIndex, "step", bb.Plan[bb.StepIndex])
		}
	} else {
		parsed, err := ParseState(requested)
		if err != nil {
			// Nodes map model text before returning, so an unparseable
			// token here is a programming error, not bad model output.
			return err
		}
		next = parsed
	}
	f.logger.Info("transition", "from", f.State, "to", next)
	f.State = next
	bb.recomputeCurrentStep()
	return nil
}

// WriteDB envelopes a persistence record and appends it to the buffer. The
// driver is the only writer; records keep FIFO order until a flush point.
func (f *FSM) WriteDB(kind string, data map[string]any) DBRecord {
	record := DBRecord{
		ID:   ulid.Make().String(),
		Kind: kind,
		Hash: contentHash(data),
		Data: data,
		At:   time.Now().UTC(),
	}
	f.BB.DBBuffer = append(f.BB.DBBuffer, record)
	f.logger.Debug("db record buffered", "kind", kind, "id", record.ID)
	return record
}

func contentHash(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte("{}")
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ScriptFingerprint identifies a script's content so the loop can detect
// review cycles that keep re-executing the same code.
func ScriptFingerprint(code string) string {
	sum := blake3.Sum256([]byte(code))
	return hex.EncodeToString(sum[:8])
}
