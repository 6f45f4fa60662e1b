package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/commandpost/overmind/internal/llm/factory"
	"github.com/commandpost/overmind/internal/logging"
	"github.com/commandpost/overmind/internal/oneshot"
)

func oneshotCmd(args []string) {
	var configPath string
	var promptsDir string
	var rest []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(2)
			}
			configPath = args[i]
		case "--prompts":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--prompts requires a value")
				os.Exit(2)
			}
			promptsDir = args[i]
		default:
			rest = append(rest, args[i])
		}
	}
	command := strings.TrimSpace(strings.Join(rest, " "))
	if command == "" {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal(err)
	}
	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		fatal(err)
	}
	prompts, err := loadPrompts(promptsDir)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmpl, ok := cfg.Models[cfg.Nodes.Action]
	if !ok {
		fatal(fmt.Errorf("no model template for code generation: %q", cfg.Nodes.Action))
	}
	model, err := factory.Build(ctx, tmpl)
	if err != nil {
		fatal(err)
	}

	registry := demoRegistry(logger)
	runner := oneshot.New(model, prompts, demoBindings(registry, logger), registry.ContractText(), logger).
		WithMaxSteps(cfg.Sandbox.MaxSteps)

	res := runner.Run(ctx, command)
	if res.PlayerMessage != "" {
		fmt.Println(res.PlayerMessage)
	}
	if res.Observations != "" {
		fmt.Println(res.Observations)
	}
	if !res.Success {
		fmt.Fprintf(os.Stderr, "command failed: %s\n", res.Err)
		os.Exit(1)
	}
	os.Exit(0)
}
