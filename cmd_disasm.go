package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"rmcore/bytecode"
)

// disasmCmd disassembles an already-serialized .rmcb chunk to stdout (or a
// file), independent of the emit/cRepl -disassemble flags that do the same
// thing inline right after compiling.
type disasmCmd struct {
	outPath string
}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "Disassemble a .rmcb bytecode file" }
func (*disasmCmd) Usage() string {
	return `disasm <file.rmcb>:
  Print a human-readable instruction listing for a serialized chunk.
`
}

func (cmd *disasmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.outPath, "o", "", "write the listing to this file instead of stdout")
}

func (cmd *disasmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return subcommands.ExitFailure
	}

	listing := chunk.Disassemble()
	if cmd.outPath == "" {
		fmt.Print(listing)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(cmd.outPath, []byte(listing), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to write listing: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
