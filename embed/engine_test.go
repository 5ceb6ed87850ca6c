package embed

import (
	"bytes"
	"testing"

	"rmcore/value"
)

// runAndCapture compiles and executes a JSON AST program against a fresh
// Engine, redirecting Print output to an in-memory buffer so the six
// end-to-end scenarios can assert on stdout the way the spec's scenario
// table does.
func runAndCapture(t *testing.T, astJSON string) (string, value.Value) {
	t.Helper()
	e := New()
	var out bytes.Buffer
	e.machine.Stdout = &out

	program, err := e.Compile([]byte(astJSON))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	result, err := e.Execute(program)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return out.String(), result
}

func TestScenarioArithmeticPrecedence(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "Print",
		"expr": {
			"type": "BinOp", "op": {"type": "TAMBAH"},
			"left": {"type": "Num", "value": 2},
			"right": {
				"type": "BinOp", "op": {"type": "KALI"},
				"left": {"type": "Num", "value": 3},
				"right": {"type": "Num", "value": 4}
			}
		}
	}`)
	if out != "14\n" {
		t.Errorf("got stdout %q, want \"14\\n\"", out)
	}
}

func TestScenarioConditional(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "If",
		"condition": {
			"type": "BinOp", "op": {"type": "LEBIH_DARI"},
			"left": {"type": "Num", "value": 5},
			"right": {"type": "Num", "value": 3}
		},
		"if_body": [{"type": "Print", "expr": {"type": "String", "value": "ya"}}],
		"else_body": [{"type": "Print", "expr": {"type": "String", "value": "tidak"}}]
	}`)
	if out != "ya\n" {
		t.Errorf("got stdout %q, want \"ya\\n\"", out)
	}
}

func TestScenarioCountedLoop(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "Program",
		"statements": [
			{
				"type": "For", "var_name": "i",
				"start": {"type": "Num", "value": 1},
				"end": {"type": "Num", "value": 3},
				"body": [{"type": "Print", "expr": {"type": "Var", "name": "i"}}]
			}
		]
	}`)
	if out != "1\n2\n3\n" {
		t.Errorf("got stdout %q, want \"1\\n2\\n3\\n\"", out)
	}
}

func TestScenarioFunctionCall(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "Program",
		"statements": [
			{
				"type": "FuncDecl", "name": "add", "params": ["a", "b"],
				"body": [
					{
						"type": "Return",
						"expr": {
							"type": "BinOp", "op": {"type": "TAMBAH"},
							"left": {"type": "Var", "name": "a"},
							"right": {"type": "Var", "name": "b"}
						}
					}
				]
			},
			{
				"type": "Print",
				"expr": {"type": "FuncCall", "name": "add", "args": [
					{"type": "Num", "value": 2}, {"type": "Num", "value": 3}
				]}
			}
		]
	}`)
	if out != "5\n" {
		t.Errorf("got stdout %q, want \"5\\n\"", out)
	}
}

func TestScenarioListForEach(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "Program",
		"statements": [
			{
				"type": "ForEach", "var_name": "x",
				"iterable": {
					"type": "List",
					"elements": [
						{"type": "Num", "value": 10},
						{"type": "Num", "value": 20},
						{"type": "Num", "value": 30}
					]
				},
				"body": [{"type": "Print", "expr": {"type": "Var", "name": "x"}}]
			}
		]
	}`)
	if out != "10\n20\n30\n" {
		t.Errorf("got stdout %q, want \"10\\n20\\n30\\n\"", out)
	}
}

func TestScenarioDictIndex(t *testing.T) {
	out, _ := runAndCapture(t, `{
		"type": "Program",
		"statements": [
			{
				"type": "VarDecl", "var_name": "d",
				"value": {
					"type": "Dict",
					"pairs": [
						[{"type": "String", "value": "a"}, {"type": "Num", "value": 1}],
						[{"type": "String", "value": "b"}, {"type": "Num", "value": 2}]
					]
				}
			},
			{
				"type": "Print",
				"expr": {
					"type": "IndexAccess",
					"obj": {"type": "Var", "name": "d"},
					"index": {"type": "String", "value": "b"}
				}
			}
		]
	}`)
	if out != "2\n" {
		t.Errorf("got stdout %q, want \"2\\n\"", out)
	}
}

func TestExecuteWithGlobalsPrepopulatesEnvironment(t *testing.T) {
	e := New()
	program, err := e.Compile([]byte(`{"type": "Var", "name": "seeded"}`))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	result, err := e.Execute(program, []byte(`{"seeded": {"Int": 7}}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Eq(value.Int(7)) {
		t.Errorf("got %s, want 7", result.String())
	}
}

func TestClearResetsGlobalsBetweenExecutions(t *testing.T) {
	e := New()
	e.SetGlobal("x", value.Int(1))
	if v, ok := e.GetGlobal("x"); !ok || !v.Eq(value.Int(1)) {
		t.Fatalf("expected global x=1 before Clear")
	}
	e.Clear()
	if _, ok := e.GetGlobal("x"); ok {
		t.Errorf("expected globals to be cleared")
	}
}
