package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"rmcore/embed"
	"rmcore/value"
)

// replCmd is a line-oriented REPL: each line of input is one JSON-encoded
// AST node (a statement or expression), compiled and run immediately
// against a persistent engine so variables declared on one line are still
// visible on the next.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start a line-oriented JSON-AST REPL session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive session. Each line is a JSON-encoded AST node.
`
}
func (r *replCmd) SetFlags(f *flag.FlagSet) {}

func repl(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	engine := embed.New()

	for {
		fmt.Fprintf(out, ">>> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "exit" {
			os.Exit(0)
		}
		if line == "" {
			continue
		}

		program, err := engine.Compile([]byte(line))
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		result, err := engine.Execute(program)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if result.Kind != value.KindNone {
			fmt.Fprintln(out, result.String())
		}
	}
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\n\nWelcome to rmcore!")
	repl(os.Stdin, os.Stdout)
	return subcommands.ExitSuccess
}
