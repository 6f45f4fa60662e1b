package bindings

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/commandpost/overmind/internal/sandbox"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func produceSpec(calls *[]map[string]any) ActionSpec {
	return ActionSpec{
		Name: "produce",
		Desc: "queue unit production",
		Params: []ParamSpec{
			{Name: "unit", Type: "str", Required: true, Desc: "unit name"},
			{Name: "count", Type: "int", Required: true},
		},
		Returns: "int",
		Impl: func(ctx context.Context, args map[string]any) (any, error) {
			if calls != nil {
				*calls = append(*calls, args)
			}
			return args["count"], nil
		},
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(nil)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(produceSpec(nil)); err == nil {
		t.Fatal("duplicate register should fail")
	}
}

func TestRegister_RequiresImpl(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(ActionSpec{Name: "noop"}); err == nil {
		t.Fatal("spec without impl should fail")
	}
}

func TestCall_ValidatesArguments(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(nil)); err != nil {
		t.Fatal(err)
	}
	// Missing required arg.
	if _, err := r.Call(context.Background(), "produce", map[string]any{"unit": "tank"}); err == nil {
		t.Fatal("missing required argument should fail validation")
	}
	// Wrong type.
	if _, err := r.Call(context.Background(), "produce", map[string]any{"unit": "tank", "count": "three"}); err == nil {
		t.Fatal("wrong argument type should fail validation")
	}
	// Valid.
	out, err := r.Call(context.Background(), "produce", map[string]any{"unit": "tank", "count": 3})
	if err != nil {
		t.Fatalf("valid call failed: %v", err)
	}
	if out != 3 {
		t.Fatalf("unexpected return: %v", out)
	}
	// Unknown action.
	if _, err := r.Call(context.Background(), "warp", nil); err == nil {
		t.Fatal("unknown action should fail")
	}
}

func TestToolsSchema(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(nil)); err != nil {
		t.Fatal(err)
	}
	tools := r.ToolsSchema()
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
	params := tools[0]["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)
	if _, ok := props["unit"]; !ok {
		t.Fatalf("missing unit property: %#v", props)
	}
	required := params["required"].([]string)
	if len(required) != 2 {
		t.Fatalf("required = %v", required)
	}
}

func TestContractText(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(nil)); err != nil {
		t.Fatal(err)
	}
	text := r.ContractText()
	if !strings.Contains(text, "api.produce(unit: str, count: int) -> int") {
		t.Fatalf("contract text missing signature:\n%s", text)
	}
	if !strings.Contains(text, "queue unit production") {
		t.Fatalf("contract text missing description:\n%s", text)
	}
}

func TestModule_CallableFromScripts(t *testing.T) {
	var calls []map[string]any
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(&calls)); err != nil {
		t.Fatal(err)
	}
	ex := sandbox.New(map[string]any{"api": r.Module()}, testLogger())
	script := `
n = api.produce("tank", count=2)
__result__ = {
    "next_state": "RUN",
    "player_message": "queued " + str(n),
    "observations": "",
    "next_step_hint": "",
}
`
	res := ex.Run(context.Background(), script)
	if !res.Success {
		t.Fatalf("script failed: %+v", res)
	}
	if len(calls) != 1 {
		t.Fatalf("impl called %d times, want 1", len(calls))
	}
	if calls[0]["unit"] != "tank" {
		t.Fatalf("positional arg not mapped to param name: %#v", calls[0])
	}
}

func TestModule_FailedValidationSurfacesInScript(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register(produceSpec(nil)); err != nil {
		t.Fatal(err)
	}
	ex := sandbox.New(map[string]any{"api": r.Module()}, testLogger())
	res := ex.Run(context.Background(), `api.produce("tank")`)
	if res.Success || res.Err != sandbox.ErrExecution {
		t.Fatalf("invalid call should fail the script: %+v", res)
	}
}
