package engine

import (
	"fmt"
	"time"

	"github.com/commandpost/overmind/internal/sandbox"
)

// Step is one plan entry. It is an opaque mapping with at least a
// descriptive "step" field.
type Step = map[string]any

type Event struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// ObservationRequest queues a lightweight ask for more information; the
// Observe node drains the queue into its prompt.
type ObservationRequest struct {
	Topic string `json:"topic"`
	Hint  string `json:"hint,omitempty"`
}

// DBRecord is one enveloped persistence record in the append-only buffer.
// Flushing to durable storage is an external collaborator's responsibility.
type DBRecord struct {
	ID   string         `json:"id"`
	Kind string         `json:"kind"`
	Hash string         `json:"hash"`
	Data map[string]any `json:"data"`
	At   time.Time      `json:"at"`
}

// Blackboard is the shared mutable context of one run. It is owned by the
// FSM driver; nodes mutate it through the driver they receive. There is no
// locking: one FSM instance runs exactly one node at a time.
type Blackboard struct {
	Intel      map[string]any
	Events     []Event
	Scratchpad string

	// Environment text snapshots, written by external collaborators before
	// each node reads them.
	GameBasicState  string
	GameDetailState string

	Plan        []Step
	CurrentStep Step
	StepIndex   int

	// Script is the last generated code handed to the executor.
	Script string

	ActionResult map[string]any
	Review       map[string]any
	Commit       map[string]any

	// LastOutcome mirrors the most recent execution result; it is the only
	// place other nodes read "what just happened".
	LastOutcome map[string]any

	ObservationRequests []ObservationRequest

	DBBuffer []DBRecord
}

func NewBlackboard() *Blackboard {
	return &Blackboard{
		Intel:        map[string]any{},
		CurrentStep:  Step{},
		ActionResult: map[string]any{},
		Review:       map[string]any{},
		Commit:       map[string]any{},
		LastOutcome:  map[string]any{},
	}
}

// SetPlan replaces the plan and resets the cursor.
func (bb *Blackboard) SetPlan(plan []Step) {
	bb.Plan = plan
	bb.StepIndex = 0
	bb.recomputeCurrentStep()
}

func (bb *Blackboard) AppendEvent(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	bb.Events = append(bb.Events, ev)
}

func (bb *Blackboard) AppendScratchpad(entry string) {
	bb.Scratchpad += entry
}

// UpdateFromResult folds an execution result into the blackboard: the
// canonical outcome mirror, the action result, and a scratchpad trace.
func (bb *Blackboard) UpdateFromResult(res sandbox.Result) {
	m := res.ToMap()
	bb.LastOutcome = m
	bb.ActionResult = m
	bb.AppendScratchpad(fmt.Sprintf(
		"action observations=%s\naction next_step_hint=%s\n",
		res.Observations, res.NextStepHint,
	))
}

func (bb *Blackboard) QueueObservation(req ObservationRequest) {
	bb.ObservationRequests = append(bb.ObservationRequests, req)
}

// DrainObservations returns and clears the queued requests.
func (bb *Blackboard) DrainObservations() []ObservationRequest {
	out := bb.ObservationRequests
	bb.ObservationRequests = nil
	return out
}

// recomputeCurrentStep restores the invariant CurrentStep ==
// Plan[min(StepIndex, len(Plan)-1)], or an empty step when the plan is
// empty. Called unconditionally after every transition.
func (bb *Blackboard) recomputeCurrentStep() {
	if len(bb.Plan) == 0 {
		bb.CurrentStep = Step{}
		return
	}
	idx := bb.StepIndex
	if idx > len(bb.Plan)-1 {
		idx = len(bb.Plan) - 1
	}
	bb.CurrentStep = bb.Plan[idx]
}
