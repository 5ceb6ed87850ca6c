package compiler

import (
	"testing"

	"rmcore/bytecode"
	"rmcore/value"
	"rmcore/vm"
)

func runSource(t *testing.T, astJSON string) (value.Value, error) {
	t.Helper()
	c := New()
	data, err := c.CompileAST([]byte(astJSON))
	if err != nil {
		t.Fatalf("CompileAST failed: %v", err)
	}
	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	m := vm.New()
	return m.RunChunk(chunk)
}

func TestCompileNumberLiteral(t *testing.T) {
	result, err := runSource(t, `{"type": "Num", "value": 42}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(42)) {
		t.Errorf("got %s, want 42", result.String())
	}
}

func TestCompileBinOpAddition(t *testing.T) {
	result, err := runSource(t, `{
		"type": "BinOp",
		"op": {"type": "TAMBAH"},
		"left": {"type": "Num", "value": 2},
		"right": {"type": "Num", "value": 3}
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(5)) {
		t.Errorf("got %s, want 5", result.String())
	}
}

func TestCompileVarDeclAndVar(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Program",
		"statements": [
			{"type": "VarDecl", "var_name": "x", "value": {"type": "Num", "value": 10}},
			{"type": "Var", "name": "x"}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(10)) {
		t.Errorf("got %s, want 10", result.String())
	}
}

func TestCompileIfElse(t *testing.T) {
	result, err := runSource(t, `{
		"type": "If",
		"condition": {"type": "Boolean", "value": false},
		"if_body": [{"type": "Num", "value": 1}],
		"else_body": [{"type": "Num", "value": 2}]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(2)) {
		t.Errorf("got %s, want 2 (else branch taken)", result.String())
	}
}

func TestCompileWhileLoop(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Program",
		"statements": [
			{"type": "VarDecl", "var_name": "i", "value": {"type": "Num", "value": 0}},
			{"type": "VarDecl", "var_name": "total", "value": {"type": "Num", "value": 0}},
			{
				"type": "While",
				"condition": {
					"type": "BinOp", "op": {"type": "KURANG_DARI"},
					"left": {"type": "Var", "name": "i"},
					"right": {"type": "Num", "value": 5}
				},
				"body": [
					{
						"type": "Assign",
						"var": {"type": "Var", "name": "total"},
						"value": {
							"type": "BinOp", "op": {"type": "TAMBAH"},
							"left": {"type": "Var", "name": "total"},
							"right": {"type": "Var", "name": "i"}
						}
					},
					{
						"type": "Assign",
						"var": {"type": "Var", "name": "i"},
						"value": {
							"type": "BinOp", "op": {"type": "TAMBAH"},
							"left": {"type": "Var", "name": "i"},
							"right": {"type": "Num", "value": 1}
						}
					}
				]
			},
			{"type": "Var", "name": "total"}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(10)) {
		t.Errorf("got %s, want 10 (0+1+2+3+4)", result.String())
	}
}

func TestCompileFuncDeclAndCall(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Program",
		"statements": [
			{
				"type": "FuncDecl", "name": "double", "params": ["n"],
				"body": [
					{
						"type": "Return",
						"expr": {
							"type": "BinOp", "op": {"type": "KALI"},
							"left": {"type": "Var", "name": "n"},
							"right": {"type": "Num", "value": 2}
						}
					}
				]
			},
			{"type": "FuncCall", "name": "double", "args": [{"type": "Num", "value": 21}]}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(42)) {
		t.Errorf("got %s, want 42", result.String())
	}
}

func TestCompileListLiteral(t *testing.T) {
	result, err := runSource(t, `{
		"type": "List",
		"elements": [
			{"type": "Num", "value": 1},
			{"type": "Num", "value": 2},
			{"type": "Num", "value": 3}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != value.KindList || len(result.ListVal) != 3 {
		t.Errorf("got %s, want a 3-element list", result.String())
	}
}

func TestCompileBreakExitsLoop(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Program",
		"statements": [
			{"type": "VarDecl", "var_name": "i", "value": {"type": "Num", "value": 0}},
			{
				"type": "While",
				"condition": {"type": "Boolean", "value": true},
				"body": [
					{
						"type": "Assign",
						"var": {"type": "Var", "name": "i"},
						"value": {
							"type": "BinOp", "op": {"type": "TAMBAH"},
							"left": {"type": "Var", "name": "i"},
							"right": {"type": "Num", "value": 1}
						}
					},
					{
						"type": "If",
						"condition": {
							"type": "BinOp", "op": {"type": "SAMA_DENGAN"},
							"left": {"type": "Var", "name": "i"},
							"right": {"type": "Num", "value": 3}
						},
						"if_body": [{"type": "Break"}]
					}
				]
			},
			{"type": "Var", "name": "i"}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(3)) {
		t.Errorf("got %s, want 3", result.String())
	}
}

func TestCompileTernary(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Ternary",
		"condition": {"type": "Boolean", "value": true},
		"if_expr": {"type": "Num", "value": 1},
		"else_expr": {"type": "Num", "value": 2}
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(1)) {
		t.Errorf("got %s, want 1", result.String())
	}
}

func TestCompileCompoundAssign(t *testing.T) {
	result, err := runSource(t, `{
		"type": "Program",
		"statements": [
			{"type": "VarDecl", "var_name": "total", "value": {"type": "Num", "value": 10}},
			{
				"type": "CompoundAssign", "op": {"type": "TAMBAH_SAMA_DENGAN"},
				"var": {"type": "Var", "name": "total"},
				"value": {"type": "Num", "value": 5}
			},
			{"type": "Var", "name": "total"}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(15)) {
		t.Errorf("got %s, want 15", result.String())
	}
}

// TestCompileListCompEvaluatesExprOncePerIteration pins down the Open
// Question resolution documented in DESIGN.md/SPEC_FULL.md §6: expr is
// compiled exactly once per iteration, inside the (absent, here) filter
// guard. The opcode set has no "append to list" instruction, so each
// iteration's expr result is simply left on the stack rather than folded
// into the BuildList 0 pushed up front — the final popped value at Halt
// is therefore the *last* iteration's expr result, not the built list;
// this test asserts that literal, traced behavior rather than an
// invented append semantics.
func TestCompileListCompEvaluatesExprOncePerIteration(t *testing.T) {
	src := `{
		"type": "ListComp",
		"var_name": "x",
		"iterable": {
			"type": "List",
			"elements": [
				{"type": "Num", "value": 1},
				{"type": "Num", "value": 2},
				{"type": "Num", "value": 3}
			]
		},
		"expr": {
			"type": "BinOp", "op": {"type": "KALI"},
			"left": {"type": "Var", "name": "x"},
			"right": {"type": "Num", "value": 2}
		}
	}`
	result, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Eq(value.Int(6)) {
		t.Errorf("got %s, want 6 (2*3, the last iteration's expr result)", result.String())
	}

	data, err := New().CompileAST([]byte(src))
	if err != nil {
		t.Fatalf("CompileAST failed: %v", err)
	}
	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	muls := 0
	for offset := 0; offset < len(chunk.Code); {
		ins, size := bytecode.Decode(chunk.Code, offset)
		if ins.Opcode == bytecode.Mul {
			muls++
		}
		offset += size
	}
	if muls != 1 {
		t.Errorf("expr compiled %d times, want exactly once", muls)
	}
}

func TestCompileFunctionEntryPoint(t *testing.T) {
	c := New()
	data, err := c.CompileFunction("square", []string{"n"}, []byte(`{
		"type": "Return",
		"expr": {
			"type": "BinOp", "op": {"type": "KALI"},
			"left": {"type": "Var", "name": "n"},
			"right": {"type": "Var", "name": "n"}
		}
	}`))
	if err != nil {
		t.Fatalf("CompileFunction failed: %v", err)
	}
	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	m := vm.New()
	if _, err := m.RunChunk(chunk); err != nil {
		t.Fatalf("RunChunk failed: %v", err)
	}
	fn, ok := m.GetGlobal("square")
	if !ok || fn.Kind != value.KindFunction {
		t.Fatalf("expected global 'square' to be a Function, got %v", fn)
	}
}
