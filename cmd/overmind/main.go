package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "oneshot":
		oneshotCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  overmind run --config <run.yaml> --goal <text> [--max-transitions <n>] [--prompts <dir>]")
	fmt.Fprintln(os.Stderr, "  overmind oneshot --config <run.yaml> [--prompts <dir>] <command...>")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
