package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/commandpost/overmind/internal/bindings"
	"github.com/commandpost/overmind/internal/sandbox"
)

// demoRegistry registers a minimal action set so the CLI is exercisable
// without an embedding environment. Real deployments register their own
// actions and hand the engine their registry instead.
func demoRegistry(logger *slog.Logger) *bindings.Registry {
	reg := bindings.NewRegistry(logger)

	mustRegister(reg, bindings.ActionSpec{
		Name: "echo",
		Desc: "Echo a message back to the operator.",
		Params: []bindings.ParamSpec{
			{Name: "text", Type: "str", Required: true, Desc: "Message to echo."},
		},
		Returns: "str",
		Impl: func(ctx context.Context, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			logger.Info("echo", "text", text)
			return text, nil
		},
	})
	mustRegister(reg, bindings.ActionSpec{
		Name:    "now",
		Desc:    "Current UTC time in RFC 3339 form.",
		Returns: "str",
		Impl: func(ctx context.Context, args map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	})

	return reg
}

func mustRegister(reg *bindings.Registry, spec bindings.ActionSpec) {
	if err := reg.Register(spec); err != nil {
		panic(err)
	}
}

// demoBindings composes the default script scope: the action registry under
// "api", structured logging under "log", and the embedded json module.
func demoBindings(reg *bindings.Registry, logger *slog.Logger) map[string]any {
	return map[string]any{
		"api":  reg.Module(),
		"log":  logModule(logger),
		"json": sandbox.JSONModule,
	}
}

func logModule(logger *slog.Logger) sandbox.Module {
	emit := func(fn func(string, ...any)) sandbox.Func {
		return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			for _, a := range args {
				if s, ok := a.(string); ok {
					fn(s)
				}
			}
			return nil, nil
		}
	}
	return sandbox.Module{
		"debug": emit(logger.Debug),
		"info":  emit(logger.Info),
		"warn":  emit(logger.Warn),
		"error": emit(logger.Error),
	}
}
