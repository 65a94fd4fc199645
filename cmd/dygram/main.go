package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/christopherdebeer/dygram"
	"github.com/christopherdebeer/dygram/service/decider"
)

const usage = `dygram - declarative state machine toolchain

Usage:
  dygram validate <machine.dg>   parse, compile and validate a machine
  dygram json <machine.dg>       emit the canonical JSON model
  dygram run <machine.dg>        execute a machine with the built-in walker

Flags:
  -config <config.yaml>          service configuration
  -timeout <duration>            run timeout (default 1m)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dygram:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("dygram", flag.ExitOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configURL := flags.String("config", "", "service configuration URL")
	timeout := flags.Duration("timeout", time.Minute, "run timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		flags.Usage()
		return fmt.Errorf("expected a command and a machine location")
	}
	command, location := flags.Arg(0), flags.Arg(1)

	ctx := context.Background()
	config := dygram.DefaultConfig()
	if *configURL != "" {
		loaded, err := dygram.LoadConfig(ctx, *configURL)
		if err != nil {
			return err
		}
		config = loaded
	}

	switch command {
	case "validate":
		return validate(ctx, config, location)
	case "json":
		return emitJSON(ctx, config, location)
	case "run":
		return execute(ctx, config, location, *timeout)
	}
	flags.Usage()
	return fmt.Errorf("unknown command %q", command)
}

func validate(ctx context.Context, config *dygram.Config, location string) error {
	srv, err := dygram.NewFromConfig(config)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(location)
	if err != nil {
		return err
	}
	_, diagnostics, err := srv.Runtime().DecodeMachine(source)
	for _, diagnostic := range diagnostics {
		fmt.Fprintln(os.Stderr, diagnostic)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d finding(s))\n", location, len(diagnostics))
	return nil
}

func emitJSON(ctx context.Context, config *dygram.Config, location string) error {
	srv, err := dygram.NewFromConfig(config)
	if err != nil {
		return err
	}
	machine, err := srv.Runtime().LoadMachine(ctx, location)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(machine)
}

func execute(ctx context.Context, config *dygram.Config, location string, timeout time.Duration) error {
	srv, err := dygram.NewFromConfig(config, dygram.WithDecider(decider.FirstTransition{}))
	if err != nil {
		return err
	}
	machine, err := srv.Runtime().LoadMachine(ctx, location)
	if err != nil {
		return err
	}
	run, wait, err := srv.Runtime().StartRun(ctx, machine, nil)
	if err != nil {
		return err
	}
	output, err := wait(ctx, timeout)
	if err != nil {
		return err
	}
	for _, step := range run.Steps {
		if step.To != "" {
			fmt.Printf("  %s: %s -> %s\n", step.Tool, step.From, step.To)
			continue
		}
		fmt.Printf("  %s at %s\n", step.Tool, step.From)
	}
	fmt.Printf("run %s finished: %s at %s in %s\n", output.RunID, output.State, output.FinalNode, output.TimeTaken.Round(time.Millisecond))
	if len(output.Errors) > 0 {
		return fmt.Errorf("%d error(s), first: %s", len(output.Errors), output.Errors[0])
	}
	return nil
}
