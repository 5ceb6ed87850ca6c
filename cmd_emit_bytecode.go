package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"rmcore/bytecode"
	"rmcore/compiler"
)

// emitBytecodeCmd compiles a JSON AST file to a serialized RMCB chunk,
// optionally writing a human-readable disassembly alongside it.
type emitBytecodeCmd struct {
	disassemble bool
	outPath     string
}

func (*emitBytecodeCmd) Name() string { return "emit" }
func (*emitBytecodeCmd) Synopsis() string {
	return "Compile a JSON AST file to an .rmcb bytecode file"
}
func (*emitBytecodeCmd) Usage() string {
	return `emit <ast.json>:
  Compile the JSON-encoded AST tree and write the serialized RMCB chunk.
`
}

func (cmd *emitBytecodeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", false, "also write a human-readable .dis listing next to the .rmcb file")
	f.StringVar(&cmd.outPath, "o", "", "output file path; defaults to the input path with its extension replaced by .rmcb")
}

func (cmd *emitBytecodeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 AST file not provided\n")
		return subcommands.ExitUsageError
	}

	astPath := args[0]
	data, err := os.ReadFile(astPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	c := compiler.New()
	serialized, err := c.CompileAST(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return subcommands.ExitFailure
	}

	outPath := cmd.outPath
	if outPath == "" {
		outPath = stripExt(astPath) + ".rmcb"
	}
	if err := os.WriteFile(outPath, serialized, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to write bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}

	if cmd.disassemble {
		chunk, err := bytecode.Deserialize(serialized)
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to re-read emitted chunk: %v\n", err)
			return subcommands.ExitFailure
		}
		disPath := stripExt(outPath) + ".dis"
		if err := os.WriteFile(disPath, []byte(chunk.Disassemble()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to write disassembly file: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}

func stripExt(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[:idx]
	}
	return path
}
