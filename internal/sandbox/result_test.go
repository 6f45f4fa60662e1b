package sandbox

import "testing"

func TestResultToMap_SuccessRoundTrip(t *testing.T) {
	r := Result{
		Success:       true,
		NextState:     "RUN",
		PlayerMessage: "ok",
		Observations:  "obs",
		NextStepHint:  "",
		Raw: map[string]any{
			"next_state":     "RUN",
			"player_message": "ok",
			"observations":   "obs",
			"next_step_hint": "",
			"extra":          true,
		},
	}
	m := r.ToMap()
	if m["error"] != nil {
		t.Fatalf("success result must map error to nil, got %v", m["error"])
	}
	raw, ok := m["raw_result"].(map[string]any)
	if !ok {
		t.Fatalf("raw_result not a mapping: %T", m["raw_result"])
	}
	// Re-validating a successful result against the required keys always passes.
	for _, key := range RequiredKeys {
		if _, ok := raw[key]; !ok {
			t.Fatalf("raw_result missing required key %q", key)
		}
	}
}

func TestResultToMap_FailureCarriesErrorKind(t *testing.T) {
	r := Result{Success: false, NextState: "REVIEW", Err: ErrMissingResult}
	m := r.ToMap()
	if m["error"] != ErrMissingResult {
		t.Fatalf("error = %v, want %q", m["error"], ErrMissingResult)
	}
	if m["raw_result"] != nil {
		t.Fatalf("raw_result should be nil for missing result, got %v", m["raw_result"])
	}
}
