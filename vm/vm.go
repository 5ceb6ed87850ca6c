// Package vm implements the stack-based interpreter: call frames, an
// external iterator stack, a global environment, and the opcode dispatch
// loop described in spec.md §4.3.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"rmcore/bytecode"
	"rmcore/value"
)

// Frame is a per-call record: the instruction pointer to resume at on
// Return, the stack size at entry (for truncation), and the locals bound
// for this call.
type Frame struct {
	ReturnAddr  int
	BasePointer int
	Locals      map[string]value.Value
}

// VM is a single-threaded, single-chunk interpreter. One instance owns
// its value stack, call-frame stack, iterator stack and globals
// exclusively; it must not be entered re-entrantly, but independent
// instances may run concurrently.
type VM struct {
	stack     Stack
	frames    []Frame
	iterators IteratorStack
	globals   map[string]value.Value

	ip    int
	chunk *bytecode.Chunk

	instructionsExecuted uint64

	Stdout io.Writer
	Stdin  *bufio.Reader
}

// New returns a VM with an empty global environment.
func New() *VM {
	return &VM{
		stack:   make(Stack, 0, 1024),
		globals: make(map[string]value.Value),
		Stdout:  os.Stdout,
		Stdin:   bufio.NewReader(os.Stdin),
	}
}

// SetGlobal installs a value under name in the global environment.
func (m *VM) SetGlobal(name string, v value.Value) {
	m.globals[name] = v
}

// GetGlobal reads a value from the global environment.
func (m *VM) GetGlobal(name string) (value.Value, bool) {
	v, ok := m.globals[name]
	return v, ok
}

// Clear resets the value stack, call-frame stack, iterator stack and
// globals — the only state that survives between Run calls.
func (m *VM) Clear() {
	m.stack = make(Stack, 0, 1024)
	m.frames = nil
	m.iterators = nil
	m.globals = make(map[string]value.Value)
	m.instructionsExecuted = 0
}

// InstructionsExecuted reports the number of instructions dispatched
// since the VM was created or last cleared.
func (m *VM) InstructionsExecuted() uint64 { return m.instructionsExecuted }

// MemoryUsed is a heuristic: stack entries plus global entries, each
// counted at a fixed per-entry cost, mirroring the original embedding's
// `stack.len()*sizeof::<Value>() + globals.len()*sizeof::<(String,Value)>()`.
func (m *VM) MemoryUsed() int {
	const valueSize = 48
	const entrySize = 64
	return m.stack.Len()*valueSize + len(m.globals)*entrySize
}

func (m *VM) currentFrame() (*Frame, bool) {
	if len(m.frames) == 0 {
		return nil, false
	}
	return &m.frames[len(m.frames)-1], true
}

// Run deserializes and executes a chunk, returning the final stack value
// (or None if the stack is empty at Halt/end-of-code).
func (m *VM) Run(data []byte) (value.Value, error) {
	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		return value.Value{}, RuntimeError{Message: err.Error()}
	}
	return m.RunChunk(chunk)
}

// RunChunk executes an already-decoded chunk.
func (m *VM) RunChunk(chunk *bytecode.Chunk) (value.Value, error) {
	m.chunk = chunk
	m.ip = 0
	m.stack = m.stack[:0]
	m.frames = nil
	m.iterators = nil

	for m.ip < len(chunk.Code) {
		ins, size := bytecode.Decode(chunk.Code, m.ip)
		m.ip += size
		m.instructionsExecuted++

		if ins.Opcode == bytecode.Halt {
			break
		}

		if err := m.execute(ins); err != nil {
			return value.Value{}, err
		}
	}

	if v, ok := m.stack.Pop(); ok {
		return v, nil
	}
	return value.None(), nil
}

func (m *VM) fail(format string, args ...any) error {
	return RuntimeError{Message: fmt.Sprintf(format, args...)}
}

func (m *VM) popValue() (value.Value, error) {
	v, ok := m.stack.Pop()
	if !ok {
		return value.Value{}, m.fail("stack underflow")
	}
	return v, nil
}

func (m *VM) resolveName(idx uint32) string {
	if int(idx) >= len(m.chunk.Names) {
		return ""
	}
	return m.chunk.Names[idx]
}

func (m *VM) execute(ins bytecode.Instruction) error {
	switch ins.Opcode {
	case bytecode.Nop:
		return nil

	case bytecode.LoadConst:
		if int(ins.Operand) >= len(m.chunk.Constants) {
			return m.fail("constant index %d out of range", ins.Operand)
		}
		m.stack.Push(m.chunk.Constants[ins.Operand].Clone())
		return nil

	case bytecode.LoadName:
		name := m.resolveName(ins.Operand)
		if frame, ok := m.currentFrame(); ok {
			if v, ok := frame.Locals[name]; ok {
				m.stack.Push(v.Clone())
				return nil
			}
		}
		if v, ok := m.globals[name]; ok {
			m.stack.Push(v.Clone())
			return nil
		}
		m.stack.Push(value.None())
		return nil

	case bytecode.StoreName:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		name := m.resolveName(ins.Operand)
		if frame, ok := m.currentFrame(); ok {
			frame.Locals[name] = v
			return nil
		}
		m.globals[name] = v
		return nil

	case bytecode.LoadGlobal:
		name := m.resolveName(ins.Operand)
		v, ok := m.globals[name]
		if !ok {
			v = value.None()
		}
		m.stack.Push(v.Clone())
		return nil

	case bytecode.StoreGlobal:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		m.globals[m.resolveName(ins.Operand)] = v
		return nil

	case bytecode.LoadLocal:
		name := m.resolveName(ins.Operand)
		frame, ok := m.currentFrame()
		if !ok {
			m.stack.Push(value.None())
			return nil
		}
		v, ok := frame.Locals[name]
		if !ok {
			v = value.None()
		}
		m.stack.Push(v.Clone())
		return nil

	case bytecode.StoreLocal:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		frame, ok := m.currentFrame()
		if !ok {
			return m.fail("StoreLocal outside of a call frame")
		}
		frame.Locals[m.resolveName(ins.Operand)] = v
		return nil

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.FloorDiv, bytecode.Mod, bytecode.Pow:
		return m.binaryArith(ins.Opcode)

	case bytecode.Neg:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		result, err := v.Negate()
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(result)
		return nil

	case bytecode.BitAnd, bytecode.BitOr, bytecode.BitXor, bytecode.Shl, bytecode.Shr:
		return m.binaryBitwise(ins.Opcode)

	case bytecode.BitNot:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		result, err := v.BitNot()
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(result)
		return nil

	case bytecode.Eq, bytecode.Ne, bytecode.Lt, bytecode.Le, bytecode.Gt, bytecode.Ge:
		return m.compare(ins.Opcode)

	case bytecode.And:
		right, err := m.popValue()
		if err != nil {
			return err
		}
		left, err := m.popValue()
		if err != nil {
			return err
		}
		m.stack.Push(value.Bool(left.IsTruthy() && right.IsTruthy()))
		return nil

	case bytecode.Or:
		right, err := m.popValue()
		if err != nil {
			return err
		}
		left, err := m.popValue()
		if err != nil {
			return err
		}
		m.stack.Push(value.Bool(left.IsTruthy() || right.IsTruthy()))
		return nil

	case bytecode.Not:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		m.stack.Push(v.Not())
		return nil

	case bytecode.Jump:
		m.ip = int(ins.Operand)
		return nil

	case bytecode.JumpIfTrue:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		if v.IsTruthy() {
			m.ip = int(ins.Operand)
		}
		return nil

	case bytecode.JumpIfFalse:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		if !v.IsTruthy() {
			m.ip = int(ins.Operand)
		}
		return nil

	case bytecode.Call:
		return m.call(int(ins.Operand))

	case bytecode.Return:
		return m.doReturn()

	case bytecode.BuildList:
		items, err := m.drain(int(ins.Operand))
		if err != nil {
			return err
		}
		m.stack.Push(value.List(items))
		return nil

	case bytecode.BuildTuple, bytecode.BuildSet:
		items, err := m.drain(int(ins.Operand))
		if err != nil {
			return err
		}
		m.stack.Push(value.List(items))
		return nil

	case bytecode.BuildDict:
		return m.buildDict(int(ins.Operand))

	case bytecode.GetIndex:
		index, err := m.popValue()
		if err != nil {
			return err
		}
		obj, err := m.popValue()
		if err != nil {
			return err
		}
		result, err := obj.GetIndex(index)
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(result)
		return nil

	case bytecode.SetIndex:
		newValue, err := m.popValue()
		if err != nil {
			return err
		}
		index, err := m.popValue()
		if err != nil {
			return err
		}
		obj, err := m.popValue()
		if err != nil {
			return err
		}
		if err := obj.SetIndex(index, newValue); err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(obj)
		return nil

	case bytecode.GetAttr, bytecode.GetSlice:
		// reserved extension points: current behavior pushes None.
		if ins.Opcode == bytecode.GetAttr {
			if _, err := m.popValue(); err != nil {
				return err
			}
		}
		m.stack.Push(value.None())
		return nil

	case bytecode.SetAttr:
		// reserved: drops the value and the object, a true no-op.
		if _, err := m.popValue(); err != nil {
			return err
		}
		if _, err := m.popValue(); err != nil {
			return err
		}
		return nil

	case bytecode.Pop:
		_, err := m.popValue()
		return err

	case bytecode.Dup:
		v, ok := m.stack.Peek()
		if !ok {
			return m.fail("stack underflow")
		}
		m.stack.Push(v)
		return nil

	case bytecode.Rot2:
		a, err := m.popValue()
		if err != nil {
			return err
		}
		b, err := m.popValue()
		if err != nil {
			return err
		}
		m.stack.Push(a)
		m.stack.Push(b)
		return nil

	case bytecode.Rot3:
		a, err := m.popValue()
		if err != nil {
			return err
		}
		b, err := m.popValue()
		if err != nil {
			return err
		}
		c, err := m.popValue()
		if err != nil {
			return err
		}
		m.stack.Push(a)
		m.stack.Push(c)
		m.stack.Push(b)
		return nil

	case bytecode.MakeFunction, bytecode.MakeClosure:
		// reserved: no-op.
		return nil

	case bytecode.GetIter:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		switch v.Kind {
		case value.KindList:
			m.iterators.Push(&listIterator{items: v.ListVal})
			m.stack.Push(value.Bool(true))
		case value.KindString:
			m.iterators.Push(&stringIterator{runes: []rune(v.StrVal)})
			m.stack.Push(value.Bool(true))
		default:
			// Non-iterable: push a false success flag rather than aborting,
			// so a ForEach/ListComp over a non-iterable just skips its body.
			// An empty iterator is pushed so the following ForIter reports
			// exhaustion instead of advancing an enclosing loop's iterator.
			m.iterators.Push(&listIterator{})
			m.stack.Push(value.Bool(false))
		}
		return nil

	case bytecode.ForIter:
		it, ok := m.iterators.Peek()
		if !ok {
			m.stack.Push(value.Bool(false))
			return nil
		}
		next, more := it.Next()
		if !more {
			m.iterators.Pop()
			m.stack.Push(value.Bool(false))
			return nil
		}
		m.stack.Push(next)
		m.stack.Push(value.Bool(true))
		return nil

	case bytecode.Print:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		fmt.Fprintln(m.Stdout, v.String())
		return nil

	case bytecode.Input:
		line, _ := m.Stdin.ReadString('\n')
		m.stack.Push(value.String(strings.TrimSpace(line)))
		return nil

	case bytecode.Contains:
		item, err := m.popValue()
		if err != nil {
			return err
		}
		container, err := m.popValue()
		if err != nil {
			return err
		}
		ok, err := container.Contains(item)
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(value.Bool(ok))
		return nil

	case bytecode.NotContains:
		item, err := m.popValue()
		if err != nil {
			return err
		}
		container, err := m.popValue()
		if err != nil {
			return err
		}
		ok, err := container.Contains(item)
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(value.Bool(!ok))
		return nil

	case bytecode.Len:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		result, err := v.Len()
		if err != nil {
			return m.fail("%s", err)
		}
		m.stack.Push(result)
		return nil

	default:
		return nil
	}
}

func (m *VM) drain(n int) ([]value.Value, error) {
	items := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := m.popValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// buildDict drains 2n entries as alternating key/value (deepest first)
// and enforces unique keys on insertion, per the Dict invariant in
// spec.md §3 — a deliberate departure from the original source's
// no-dedup BuildDict, documented in DESIGN.md.
func (m *VM) buildDict(n int) error {
	raw, err := m.drain(2 * n)
	if err != nil {
		return err
	}
	var entries []value.DictEntry
	for i := 0; i < len(raw); i += 2 {
		key := raw[i]
		val := raw[i+1]
		keyStr := key.StrVal
		if key.Kind != value.KindString {
			keyStr = key.String()
		}
		replaced := false
		for j, entry := range entries {
			if entry.Key == keyStr {
				entries[j].Value = val
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, value.DictEntry{Key: keyStr, Value: val})
		}
	}
	m.stack.Push(value.Dict(entries))
	return nil
}

func (m *VM) binaryArith(op bytecode.Opcode) error {
	right, err := m.popValue()
	if err != nil {
		return err
	}
	left, err := m.popValue()
	if err != nil {
		return err
	}
	var result value.Value
	var opErr error
	switch op {
	case bytecode.Add:
		result, opErr = left.Add(right)
	case bytecode.Sub:
		result, opErr = left.Sub(right)
	case bytecode.Mul:
		result, opErr = left.Mul(right)
	case bytecode.Div:
		result, opErr = left.Div(right)
	case bytecode.FloorDiv:
		result, opErr = left.FloorDiv(right)
	case bytecode.Mod:
		result, opErr = left.Mod(right)
	case bytecode.Pow:
		result, opErr = left.Pow(right)
	}
	if opErr != nil {
		return m.fail("%s", opErr)
	}
	m.stack.Push(result)
	return nil
}

func (m *VM) binaryBitwise(op bytecode.Opcode) error {
	right, err := m.popValue()
	if err != nil {
		return err
	}
	left, err := m.popValue()
	if err != nil {
		return err
	}
	var result value.Value
	var opErr error
	switch op {
	case bytecode.BitAnd:
		result, opErr = left.BitAnd(right)
	case bytecode.BitOr:
		result, opErr = left.BitOr(right)
	case bytecode.BitXor:
		result, opErr = left.BitXor(right)
	case bytecode.Shl:
		result, opErr = left.Shl(right)
	case bytecode.Shr:
		result, opErr = left.Shr(right)
	}
	if opErr != nil {
		return m.fail("%s", opErr)
	}
	m.stack.Push(result)
	return nil
}

func (m *VM) compare(op bytecode.Opcode) error {
	right, err := m.popValue()
	if err != nil {
		return err
	}
	left, err := m.popValue()
	if err != nil {
		return err
	}
	var result bool
	var opErr error
	switch op {
	case bytecode.Eq:
		result = left.Eq(right)
	case bytecode.Ne:
		result = !left.Eq(right)
	case bytecode.Lt:
		result, opErr = left.Lt(right)
	case bytecode.Le:
		result, opErr = left.Le(right)
	case bytecode.Gt:
		result, opErr = left.Gt(right)
	case bytecode.Ge:
		result, opErr = left.Ge(right)
	}
	if opErr != nil {
		return m.fail("%s", opErr)
	}
	m.stack.Push(value.Bool(result))
	return nil
}

// call implements Call argc: pops the function, drains argc arguments
// (pushed in argument order), binds them positionally to parameter names,
// pushes a frame, and jumps to the function's entry offset. Extra
// arguments are discarded; missing arguments default to None.
func (m *VM) call(argc int) error {
	fn, err := m.popValue()
	if err != nil {
		return err
	}
	args, err := m.drain(argc)
	if err != nil {
		return err
	}
	if fn.Kind != value.KindFunction {
		return m.fail("Cannot call %s", fn.TypeName())
	}

	locals := make(map[string]value.Value, len(fn.FuncVal.Params))
	for i, param := range fn.FuncVal.Params {
		if i < len(args) {
			locals[param] = args[i]
		} else {
			locals[param] = value.None()
		}
	}

	m.frames = append(m.frames, Frame{
		ReturnAddr:  m.ip,
		BasePointer: m.stack.Len(),
		Locals:      locals,
	})
	m.ip = int(fn.FuncVal.BytecodeOffset)
	return nil
}

// doReturn implements Return: pops the return value, pops the frame,
// truncates the stack to the frame's base pointer, pushes the return
// value back, and resumes at the frame's return address. If the call
// stack is empty the loop in RunChunk will simply continue with the
// value left on the stack.
func (m *VM) doReturn() error {
	retVal, err := m.popValue()
	if err != nil {
		return err
	}
	if len(m.frames) == 0 {
		m.stack.Push(retVal)
		return nil
	}
	frame := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	if frame.BasePointer < m.stack.Len() {
		m.stack = m.stack[:frame.BasePointer]
	}
	m.stack.Push(retVal)
	m.ip = frame.ReturnAddr
	return nil
}
