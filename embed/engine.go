// Package embed exposes the compiler and VM as a single host-embeddable
// unit, mirroring the original library crate's public surface: compile an
// externally-produced AST to bytecode, run it, and inspect/manipulate the
// global environment between runs.
package embed

import (
	"encoding/json"

	"rmcore/bytecode"
	"rmcore/compiler"
	"rmcore/value"
	"rmcore/vm"
)

// Engine owns one VM instance (globals + instruction counter persist
// across Execute calls) and hands out a fresh Compiler per compile, since
// a Compiler's Chunk is single-use.
type Engine struct {
	machine *vm.VM
}

// New returns a ready-to-use Engine with an empty global environment.
func New() *Engine {
	return &Engine{machine: vm.New()}
}

// Compile lowers a JSON-encoded AST into a serialized RMCB chunk.
func (e *Engine) Compile(astJSON []byte) ([]byte, error) {
	return compiler.New().CompileAST(astJSON)
}

// CompileFunction lowers a standalone function body and wraps it so that
// running the returned chunk installs the function under name in the
// global environment.
func (e *Engine) CompileFunction(name string, params []string, bodyJSON []byte) ([]byte, error) {
	return compiler.New().CompileFunction(name, params, bodyJSON)
}

// Execute deserializes and runs a chunk against this Engine's persistent
// VM, returning the final stack value. An optional JSON object mapping
// names to values is applied to the global environment before the chunk
// runs, per the embedding API's `execute(bytes, globals?)` contract;
// passing nothing leaves the current globals untouched.
func (e *Engine) Execute(serialized []byte, globalsJSON ...[]byte) (value.Value, error) {
	chunk, err := bytecode.Deserialize(serialized)
	if err != nil {
		return value.Value{}, err
	}
	if len(globalsJSON) > 0 && len(globalsJSON[0]) > 0 {
		var globals map[string]value.Value
		if err := json.Unmarshal(globalsJSON[0], &globals); err != nil {
			return value.Value{}, err
		}
		for name, v := range globals {
			e.machine.SetGlobal(name, v)
		}
	}
	return e.machine.RunChunk(chunk)
}

// SetGlobal installs a value in the global environment ahead of Execute,
// e.g. to pass host-side arguments into a script.
func (e *Engine) SetGlobal(name string, v value.Value) {
	e.machine.SetGlobal(name, v)
}

// GetGlobal reads a value out of the global environment after Execute,
// e.g. to retrieve a script's result.
func (e *Engine) GetGlobal(name string) (value.Value, bool) {
	return e.machine.GetGlobal(name)
}

// Clear resets the VM's stack, frames, iterators and globals, starting a
// fresh environment for the next Execute.
func (e *Engine) Clear() {
	e.machine.Clear()
}

// InstructionsExecuted reports the instruction count accumulated since
// the Engine was created or last Clear'd.
func (e *Engine) InstructionsExecuted() uint64 {
	return e.machine.InstructionsExecuted()
}

// MemoryUsed reports a heuristic byte count for the current stack and
// globals, useful for host-side resource accounting.
func (e *Engine) MemoryUsed() int {
	return e.machine.MemoryUsed()
}
