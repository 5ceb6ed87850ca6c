package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"rmcore/compiler"
	"rmcore/value"
	"rmcore/vm"
)

// runCmd compiles a JSON-encoded AST file and executes it in one step.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and execute a JSON AST file" }
func (*runCmd) Usage() string {
	return `run <ast.json>:
  Compile the JSON-encoded AST tree at the given path and execute it.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 AST file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	program, err := compiler.New().CompileAST(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return subcommands.ExitFailure
	}

	result, err := vm.New().Run(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return subcommands.ExitFailure
	}
	if result.Kind != value.KindNone {
		fmt.Println(result.String())
	}

	return subcommands.ExitSuccess
}
