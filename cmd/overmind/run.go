package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/commandpost/overmind/internal/config"
	"github.com/commandpost/overmind/internal/engine"
	"github.com/commandpost/overmind/internal/logging"
	"github.com/commandpost/overmind/internal/prompt"
)

func runCmd(args []string) {
	var configPath string
	var goal string
	var promptsDir string
	maxTransitions := -1

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(2)
			}
			configPath = args[i]
		case "--goal":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--goal requires a value")
				os.Exit(2)
			}
			goal = args[i]
		case "--max-transitions":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-transitions requires a value")
				os.Exit(2)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintf(os.Stderr, "--max-transitions: %v\n", err)
				os.Exit(2)
			}
			maxTransitions = n
		case "--prompts":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--prompts requires a value")
				os.Exit(2)
			}
			promptsDir = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(2)
		}
	}
	if goal == "" {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal(err)
	}
	if maxTransitions >= 0 {
		cfg.Loop.MaxTransitions = maxTransitions
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

	registry := demoRegistry(logger)
	fac, err := engine.NewFactory(ctx, cfg, prompts, &engine.StdinInterviewer{In: os.Stdin, Out: os.Stderr}, logger)
	if err != nil {
		fatal(err)
	}

	f := engine.NewFSM(goal, demoBindings(registry, logger), logger)
	f.RuntimeContract = registry.ContractText()
	f.SandboxMaxSteps = cfg.Sandbox.MaxSteps

	loop := &engine.Loop{
		FSM:             f,
		Factory:         fac,
		MaxTransitions:  cfg.Loop.MaxTransitions,
		MaxReviewCycles: cfg.Loop.MaxReviewCycles,
		Logger:          logger,
	}
	final, err := loop.Run(ctx)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("run_id=%s\nstate=%s\n", f.RunID, final)
	if msg, ok := f.BB.LastOutcome["player_message"].(string); ok && msg != "" {
		fmt.Printf("message=%s\n", msg)
	}
	os.Exit(0)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loadPrompts(dir string) (*prompt.Registry, error) {
	prompts, err := prompt.NewRegistry()
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := prompts.LoadOverrides(dir); err != nil {
			return nil, err
		}
	}
	return prompts, nil
}
