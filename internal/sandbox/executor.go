package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// Func is a Go function exposed to scripts. Positional arguments arrive in
// args, keyword arguments in kwargs; both are already converted to plain Go
// values.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Module groups named Funcs under one dotted name in the script scope.
type Module map[string]Func

// JSONModule is the embedded json module (encode/decode/indent), re-exported
// so callers can wire it as a binding without importing starlark themselves.
var JSONModule starlark.Value = starlarkjson.Module

// Executor runs generated scripts against a caller-supplied binding set. The
// interpreter is hermetic: no filesystem, network, process, or load()
// capability exists unless a binding provides it. Failures of any kind become
// a failed Result, never an error return.
type Executor struct {
	bindings map[string]any
	logger   *slog.Logger
	maxSteps int
}

type Option func(*Executor)

func WithMaxSteps(n int) Option {
	return func(e *Executor) { e.maxSteps = n }
}

func New(bindings map[string]any, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{bindings: bindings, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Imperative LLM output needs set/while/reassignment, which plain Starlark
// rejects at top level.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

var fenceRe = regexp.MustCompile("(?im)^```(?:python|starlark|star|json)?\\s*|\\s*```$")

// StripFences removes surrounding markdown code fences, with or without a
// language tag. Models wrap code despite instructions not to.
func StripFences(code string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(code), ""))
}

// Run executes the script and extracts the structured outcome. The script
// must bind __result__ to a dict with the required keys; anything else is a
// failed Result routed to REVIEW.
func (e *Executor) Run(ctx context.Context, code string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("script execution panicked", "panic", r)
			res = failedResult(ErrExecution, fmt.Sprintf("script execution failed: %v", r))
		}
	}()

	code = StripFences(code)
	e.logger.Info("executing script", "length", len(code))

	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Info("script print", "msg", msg)
		},
	}
	if e.maxSteps > 0 {
		thread.SetMaxExecutionSteps(uint64(e.maxSteps))
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "script.star", code, e.predeclared(ctx))
	if err != nil {
		e.logger.Error("script execution failed", "error", err)
		return failedResult(ErrExecution, fmt.Sprintf("script execution failed: %v", scriptErrorString(err)))
	}

	value, ok := globals[ResultVar]
	if !ok {
		e.logger.Error("script did not set result variable")
		return failedResult(ErrMissingResult, "script did not set "+ResultVar)
	}
	dict, ok := value.(*starlark.Dict)
	if !ok {
		e.logger.Error("result variable is not a dict", "type", value.Type())
		return failedResult(ErrMissingResult, ResultVar+" must be a dict")
	}
	mapping := dictToMap(dict)

	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := mapping[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		e.logger.Error("result missing keys", "missing", missing)
		r := failedResult(ErrMissingKeys, fmt.Sprintf("%s missing keys: %v", ResultVar, missing))
		r.Observations = fmt.Sprintf("%v", mapping)
		r.Raw = mapping
		return r
	}

	next := strings.ToUpper(coerceText(mapping["next_state"]))
	e.logger.Info("script completed", "next_state", next)
	return Result{
		Success:       true,
		NextState:     next,
		PlayerMessage: coerceText(mapping["player_message"]),
		Observations:  coerceText(mapping["observations"]),
		NextStepHint:  coerceText(mapping["next_step_hint"]),
		Raw:           mapping,
	}
}

func failedResult(kind, playerMessage string) Result {
	return Result{
		Success:       false,
		NextState:     "REVIEW",
		PlayerMessage: playerMessage,
		NextStepHint:  kind,
		Err:           kind,
	}
}

// scriptErrorString prefers the evaluation backtrace for diagnostics in logs,
// but the message folded into the result stays single-line.
func scriptErrorString(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Msg
	}
	return err.Error()
}

func (e *Executor) predeclared(ctx context.Context) starlark.StringDict {
	predecl := make(starlark.StringDict, len(e.bindings))
	for name, v := range e.bindings {
		predecl[name] = e.toValue(ctx, name, v)
	}
	return predecl
}

func (e *Executor) toValue(ctx context.Context, name string, v any) starlark.Value {
	switch v := v.(type) {
	case starlark.Value:
		return v
	case Func:
		return e.wrapFunc(ctx, name, v)
	case func(ctx context.Context, args []any, kwargs map[string]any) (any, error):
		return e.wrapFunc(ctx, name, v)
	case Module:
		members := make(starlark.StringDict, len(v))
		for fname, fn := range v {
			members[fname] = e.wrapFunc(ctx, name+"."+fname, fn)
		}
		return starlarkstruct.FromStringDict(starlark.String(name), members)
	default:
		return toStarlark(v)
	}
}

func (e *Executor) wrapFunc(ctx context.Context, name string, fn Func) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
		// Binding panics surface as script errors, which the executor in
		// turn converts into failed results.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", b.Name(), r)
			}
		}()
		goArgs := make([]any, 0, len(args))
		for _, a := range args {
			goArgs = append(goArgs, fromStarlark(a))
		}
		goKwargs := make(map[string]any, len(kwargs))
		for _, pair := range kwargs {
			key, _ := starlark.AsString(pair[0])
			goKwargs[key] = fromStarlark(pair[1])
		}
		out, err := fn(ctx, goArgs, goKwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return toStarlark(out), nil
	})
}

func toStarlark(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case []byte:
		return starlark.Bytes(v)
	case int:
		return starlark.MakeInt(v)
	case int32:
		return starlark.MakeInt(int(v))
	case int64:
		return starlark.MakeInt64(v)
	case uint:
		return starlark.MakeUint(v)
	case uint64:
		return starlark.MakeUint64(v)
	case float32:
		return starlark.Float(v)
	case float64:
		return starlark.Float(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i)
		}
		f, _ := v.Float64()
		return starlark.Float(f)
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case []string:
		elems := make([]starlark.Value, len(v))
		for i, s := range v {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems)
	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			_ = d.SetKey(starlark.String(k), toStarlark(val))
		}
		return d
	default:
		return starlark.String(fmt.Sprintf("%v", v))
	}
}

func fromStarlark(v starlark.Value) any {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(v)
	case starlark.String:
		return string(v)
	case starlark.Bytes:
		return []byte(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case *starlark.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, fromStarlark(v.Index(i)))
		}
		return out
	case starlark.Tuple:
		out := make([]any, 0, len(v))
		for _, e := range v {
			out = append(out, fromStarlark(e))
		}
		return out
	case *starlark.Dict:
		return dictToMap(v)
	default:
		return v.String()
	}
}

func dictToMap(d *starlark.Dict) map[string]any {
	out := make(map[string]any, d.Len())
	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			key = item[0].String()
		}
		out[key] = fromStarlark(item[1])
	}
	return out
}

// coerceText flattens any value to a string. Structured values are
// JSON-encoded so fields like next_step_hint stay flat text, never nested
// objects.
func coerceText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
