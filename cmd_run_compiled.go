package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"rmcore/value"
	"rmcore/vm"
)

// runCompiledCmd executes an already-serialized RMCB chunk directly,
// skipping compilation entirely.
type runCompiledCmd struct{}

func (*runCompiledCmd) Name() string     { return "runC" }
func (*runCompiledCmd) Synopsis() string { return "Execute a precompiled .rmcb bytecode file" }
func (*runCompiledCmd) Usage() string {
	return `runC <file.rmcb>:
  Deserialize and execute a chunk produced by the emit command.
`
}
func (r *runCompiledCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCompiledCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 Bytecode file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	result, err := vm.New().Run(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return subcommands.ExitFailure
	}
	if result.Kind != value.KindNone {
		fmt.Println(result.String())
	}

	return subcommands.ExitSuccess
}
