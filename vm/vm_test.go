package vm

import (
	"bytes"
	"testing"

	"rmcore/bytecode"
	"rmcore/value"
)

func runChunk(t *testing.T, chunk *bytecode.Chunk) (value.Value, *VM) {
	t.Helper()
	m := New()
	result, err := m.RunChunk(chunk)
	if err != nil {
		t.Fatalf("RunChunk failed: %v", err)
	}
	return result, m
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   bytecode.Opcode
		a, b value.Value
		want value.Value
	}{
		{"add ints", bytecode.Add, value.Int(2), value.Int(3), value.Int(5)},
		{"sub ints", bytecode.Sub, value.Int(5), value.Int(2), value.Int(3)},
		{"mul ints", bytecode.Mul, value.Int(4), value.Int(3), value.Int(12)},
		{"floordiv negative", bytecode.FloorDiv, value.Int(-7), value.Int(2), value.Int(-4)},
		{"mod ints", bytecode.Mod, value.Int(7), value.Int(3), value.Int(1)},
		{"pow ints", bytecode.Pow, value.Int(2), value.Int(5), value.Int(32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := bytecode.New()
			ia := chunk.AddConstant(tt.a)
			ib := chunk.AddConstant(tt.b)
			chunk.EmitWithOperand(bytecode.LoadConst, ia)
			chunk.EmitWithOperand(bytecode.LoadConst, ib)
			chunk.EmitOpcode(tt.op)
			chunk.EmitOpcode(bytecode.Halt)

			result, _ := runChunk(t, chunk)
			if !result.Eq(tt.want) {
				t.Errorf("got %s, want %s", result.String(), tt.want.String())
			}
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	chunk := bytecode.New()
	ia := chunk.AddConstant(value.Int(1))
	ib := chunk.AddConstant(value.Int(0))
	chunk.EmitWithOperand(bytecode.LoadConst, ia)
	chunk.EmitWithOperand(bytecode.LoadConst, ib)
	chunk.EmitOpcode(bytecode.Div)
	chunk.EmitOpcode(bytecode.Halt)

	m := New()
	_, err := m.RunChunk(chunk)
	if err == nil {
		t.Fatal("expected an error dividing by zero")
	}
}

func TestGlobalStoreAndLoad(t *testing.T) {
	chunk := bytecode.New()
	name := chunk.AddName("x")
	iv := chunk.AddConstant(value.Int(42))
	chunk.EmitWithOperand(bytecode.LoadConst, iv)
	chunk.EmitWithOperand(bytecode.StoreName, name)
	chunk.EmitWithOperand(bytecode.LoadName, name)
	chunk.EmitOpcode(bytecode.Halt)

	result, m := runChunk(t, chunk)
	if !result.Eq(value.Int(42)) {
		t.Errorf("got %s, want 42", result.String())
	}
	if got, ok := m.GetGlobal("x"); !ok || !got.Eq(value.Int(42)) {
		t.Errorf("global x = %v, want 42", got)
	}
}

func TestJumpIfFalseSkipsBranch(t *testing.T) {
	chunk := bytecode.New()
	falseConst := chunk.AddConstant(value.Bool(false))
	skippedConst := chunk.AddConstant(value.Int(999))
	takenConst := chunk.AddConstant(value.Int(7))

	chunk.EmitWithOperand(bytecode.LoadConst, falseConst)
	jumpOffset := chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)
	chunk.EmitWithOperand(bytecode.LoadConst, skippedConst)
	chunk.EmitOpcode(bytecode.Pop)
	target := chunk.CurrentOffset()
	chunk.PatchJump(jumpOffset, uint32(target))
	chunk.EmitWithOperand(bytecode.LoadConst, takenConst)
	chunk.EmitOpcode(bytecode.Halt)

	result, _ := runChunk(t, chunk)
	if !result.Eq(value.Int(7)) {
		t.Errorf("got %s, want 7", result.String())
	}
}

func TestCallAndReturn(t *testing.T) {
	chunk := bytecode.New()

	skip := chunk.EmitWithOperand(bytecode.Jump, 0)
	bodyStart := chunk.CurrentOffset()
	paramA := chunk.AddName("a")
	paramB := chunk.AddName("b")
	chunk.EmitWithOperand(bytecode.LoadLocal, paramA)
	chunk.EmitWithOperand(bytecode.LoadLocal, paramB)
	chunk.EmitOpcode(bytecode.Add)
	chunk.EmitOpcode(bytecode.Return)
	chunk.PatchJump(skip, uint32(chunk.CurrentOffset()))

	fnConst := chunk.AddConstant(value.Func(&value.Function{
		Name:           "tambahkan",
		Params:         []string{"a", "b"},
		BytecodeOffset: uint32(bodyStart),
	}))
	funcName := chunk.AddName("tambahkan")
	chunk.EmitWithOperand(bytecode.LoadConst, fnConst)
	chunk.EmitWithOperand(bytecode.StoreName, funcName)

	arg1 := chunk.AddConstant(value.Int(10))
	arg2 := chunk.AddConstant(value.Int(32))
	chunk.EmitWithOperand(bytecode.LoadConst, arg1)
	chunk.EmitWithOperand(bytecode.LoadConst, arg2)
	chunk.EmitWithOperand(bytecode.LoadName, funcName)
	chunk.EmitWithOperand(bytecode.Call, 2)
	chunk.EmitOpcode(bytecode.Halt)

	result, _ := runChunk(t, chunk)
	if !result.Eq(value.Int(42)) {
		t.Errorf("got %s, want 42", result.String())
	}
}

func TestBuildListAndGetIndex(t *testing.T) {
	chunk := bytecode.New()
	c1 := chunk.AddConstant(value.Int(1))
	c2 := chunk.AddConstant(value.Int(2))
	c3 := chunk.AddConstant(value.Int(3))
	chunk.EmitWithOperand(bytecode.LoadConst, c1)
	chunk.EmitWithOperand(bytecode.LoadConst, c2)
	chunk.EmitWithOperand(bytecode.LoadConst, c3)
	chunk.EmitWithOperand(bytecode.BuildList, 3)
	idxConst := chunk.AddConstant(value.Int(-1))
	chunk.EmitWithOperand(bytecode.LoadConst, idxConst)
	chunk.EmitOpcode(bytecode.GetIndex)
	chunk.EmitOpcode(bytecode.Halt)

	result, _ := runChunk(t, chunk)
	if !result.Eq(value.Int(3)) {
		t.Errorf("got %s, want 3 (negative index wrap)", result.String())
	}
}

func TestBuildDictEnforcesKeyUniqueness(t *testing.T) {
	chunk := bytecode.New()
	key := chunk.AddConstant(value.String("k"))
	v1 := chunk.AddConstant(value.Int(1))
	key2 := chunk.AddConstant(value.String("k"))
	v2 := chunk.AddConstant(value.Int(2))

	chunk.EmitWithOperand(bytecode.LoadConst, key)
	chunk.EmitWithOperand(bytecode.LoadConst, v1)
	chunk.EmitWithOperand(bytecode.LoadConst, key2)
	chunk.EmitWithOperand(bytecode.LoadConst, v2)
	chunk.EmitWithOperand(bytecode.BuildDict, 2)
	chunk.EmitOpcode(bytecode.Halt)

	result, _ := runChunk(t, chunk)
	if result.Kind != value.KindDict {
		t.Fatalf("expected a Dict, got %s", result.TypeName())
	}
	if len(result.DictVal) != 1 {
		t.Fatalf("expected deduplicated single entry, got %d entries", len(result.DictVal))
	}
	if !result.DictVal[0].Value.Eq(value.Int(2)) {
		t.Errorf("expected last write to win, got %s", result.DictVal[0].Value.String())
	}
}

func TestForIterOverList(t *testing.T) {
	chunk := bytecode.New()
	c1 := chunk.AddConstant(value.Int(10))
	c2 := chunk.AddConstant(value.Int(20))
	chunk.EmitWithOperand(bytecode.LoadConst, c1)
	chunk.EmitWithOperand(bytecode.LoadConst, c2)
	chunk.EmitWithOperand(bytecode.BuildList, 2)
	chunk.EmitOpcode(bytecode.GetIter)
	chunk.EmitOpcode(bytecode.Pop) // discard the GetIter success flag

	accName := chunk.AddName("acc")
	zero := chunk.AddConstant(value.Int(0))
	chunk.EmitWithOperand(bytecode.LoadConst, zero)
	chunk.EmitWithOperand(bytecode.StoreName, accName)

	loopStart := chunk.CurrentOffset()
	chunk.EmitOpcode(bytecode.ForIter)
	exitJump := chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)
	itemName := chunk.AddName("item")
	chunk.EmitWithOperand(bytecode.StoreName, itemName)
	chunk.EmitWithOperand(bytecode.LoadName, accName)
	chunk.EmitWithOperand(bytecode.LoadName, itemName)
	chunk.EmitOpcode(bytecode.Add)
	chunk.EmitWithOperand(bytecode.StoreName, accName)
	chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))
	chunk.PatchJump(exitJump, uint32(chunk.CurrentOffset()))

	chunk.EmitWithOperand(bytecode.LoadName, accName)
	chunk.EmitOpcode(bytecode.Halt)

	result, _ := runChunk(t, chunk)
	if !result.Eq(value.Int(30)) {
		t.Errorf("got %s, want 30", result.String())
	}
}

func TestPrintWritesDisplayForm(t *testing.T) {
	chunk := bytecode.New()
	c := chunk.AddConstant(value.Int(7))
	chunk.EmitWithOperand(bytecode.LoadConst, c)
	chunk.EmitOpcode(bytecode.Print)
	chunk.EmitOpcode(bytecode.Halt)

	m := New()
	var buf bytes.Buffer
	m.Stdout = &buf
	if _, err := m.RunChunk(chunk); err != nil {
		t.Fatalf("RunChunk failed: %v", err)
	}
	if buf.String() != "7\n" {
		t.Errorf("got %q, want %q", buf.String(), "7\n")
	}
}

func TestClearResetsState(t *testing.T) {
	m := New()
	m.SetGlobal("x", value.Int(1))
	if m.InstructionsExecuted() != 0 {
		t.Fatalf("expected 0 instructions before running anything")
	}
	chunk := bytecode.New()
	chunk.EmitOpcode(bytecode.Halt)
	if _, err := m.RunChunk(chunk); err != nil {
		t.Fatalf("RunChunk failed: %v", err)
	}
	m.Clear()
	if _, ok := m.GetGlobal("x"); ok {
		t.Errorf("expected globals to be cleared")
	}
	if m.InstructionsExecuted() != 0 {
		t.Errorf("expected instruction counter reset")
	}
}
