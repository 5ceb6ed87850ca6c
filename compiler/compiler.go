// Package compiler lowers a tagged AST node tree into bytecode in a single
// pass, backpatching forward and backward jumps for conditionals, loops,
// break/continue, ternaries and list comprehensions.
package compiler

import (
	"encoding/json"
	"fmt"

	"rmcore/ast"
	"rmcore/bytecode"
	"rmcore/value"
)

// Compiler holds the chunk under construction plus the two stacks used
// solely for loop backpatching: loopStarts records where `continue` jumps
// to, loopEnds collects the `break` placeholder offsets of the innermost
// active loop so they can all be patched to the loop's exit once known.
type Compiler struct {
	chunk      *bytecode.Chunk
	loopStarts []int
	loopEnds   [][]int
}

// New returns a Compiler ready to compile a fresh program.
func New() *Compiler {
	return &Compiler{chunk: bytecode.New()}
}

// CompileAST compiles a whole program (or a single statement node) to a
// serialized RMCB chunk, terminating with Halt. Internal lowering panics
// (SemanticError/DeveloperError) are recovered here and returned as a
// plain error, keeping the panic/recover boundary the teacher's own
// AST compiler used.
func (c *Compiler) CompileAST(astJSON []byte) (serialized []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = DeveloperError{Message: fmt.Sprintf("%v", r)}
		}
	}()

	var raw json.RawMessage
	if jsonErr := json.Unmarshal(astJSON, &raw); jsonErr != nil {
		return nil, fmt.Errorf("Failed to parse AST JSON: %w", jsonErr)
	}
	node, decodeErr := ast.Decode(raw)
	if decodeErr != nil {
		return nil, decodeErr
	}

	c.compileNode(node)
	c.chunk.EmitOpcode(bytecode.Halt)

	return c.chunk.Serialize()
}

// CompileFunction compiles a standalone function body and installs it
// under name, mirroring the embedding API's second entry point: params
// and name are interned first, a Jump skips over the body (compiled inline
// and ending in an implicit `return None`), then a Function constant whose
// bytecode_offset is the body's start is stored under name. Running the
// chunk installs the function without executing its body.
func (c *Compiler) CompileFunction(name string, params []string, bodyJSON []byte) (serialized []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = DeveloperError{Message: fmt.Sprintf("%v", r)}
		}
	}()

	var raw json.RawMessage
	if jsonErr := json.Unmarshal(bodyJSON, &raw); jsonErr != nil {
		return nil, fmt.Errorf("Failed to parse body JSON: %w", jsonErr)
	}

	for _, p := range params {
		c.chunk.AddName(p)
	}
	nameIdx := c.chunk.AddName(name)

	body, decodeErr := ast.Decode(raw)
	if decodeErr != nil {
		return nil, decodeErr
	}

	jumpOver := c.chunk.EmitWithOperand(bytecode.Jump, 0)
	bodyStart := c.chunk.CurrentOffset()
	if stmts, isArray, arrErr := body.AsArrayIfArray(); isArray {
		if arrErr != nil {
			return nil, arrErr
		}
		for _, stmt := range stmts {
			c.compileNode(stmt)
		}
	} else {
		c.compileNode(body)
	}
	c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.None()))
	c.chunk.EmitOpcode(bytecode.Return)
	c.chunk.PatchJump(jumpOver, uint32(c.chunk.CurrentOffset()))

	paramsCopy := append([]string(nil), params...)
	constIdx := c.chunk.AddConstant(value.Func(&value.Function{
		Name:           name,
		Params:         paramsCopy,
		BytecodeOffset: uint32(bodyStart),
	}))
	c.chunk.EmitWithOperand(bytecode.LoadConst, constIdx)
	c.chunk.EmitWithOperand(bytecode.StoreName, nameIdx)
	c.chunk.EmitOpcode(bytecode.Halt)

	return c.chunk.Serialize()
}

// compileNode dispatches on the node's "type" tag. Unknown tags and a
// literal fallback (bare number/string/bool/null/array) are handled per
// spec.md §4.2.
func (c *Compiler) compileNode(node ast.Node) {
	switch node.Type {
	case "":
		c.compileLiteralFallback(node)
	case "Program":
		c.compileStatements(node, "statements")
	case "Block":
		c.compileStatements(node, "statements")
	case "VarDecl":
		c.compileVarDecl(node)
	case "Assign":
		c.compileAssign(node)
	case "BinOp":
		c.compileBinOp(node)
	case "UnaryOp":
		c.compileUnaryOp(node)
	case "Num":
		c.compileNum(node)
	case "String":
		c.compileString(node)
	case "Boolean":
		c.compileBoolean(node)
	case "NoneValue":
		c.compileNone()
	case "Var":
		c.compileVar(node)
	case "List":
		c.compileList(node)
	case "Dict":
		c.compileDict(node)
	case "If":
		c.compileIf(node)
	case "While":
		c.compileWhile(node)
	case "For":
		c.compileFor(node)
	case "ForEach":
		c.compileForEach(node)
	case "FuncDecl":
		c.compileFuncDecl(node)
	case "FuncCall":
		c.compileFuncCall(node)
	case "Return":
		c.compileReturn(node)
	case "Print":
		c.compilePrint(node)
	case "Break":
		c.compileBreak()
	case "Continue":
		c.compileContinue()
	case "IndexAccess":
		c.compileIndexAccess(node)
	case "CompoundAssign":
		c.compileCompoundAssign(node)
	case "Ternary":
		c.compileTernary(node)
	case "Lambda":
		c.compileLambda(node)
	case "ListComp":
		c.compileListComp(node)
	default:
		// forward compatibility: unrecognized node tags are no-ops.
	}
}

func (c *Compiler) compileStatements(node ast.Node, field string) {
	stmts, ok, err := node.NodeListField(field)
	if err != nil {
		panic(SemanticError{Message: err.Error()})
	}
	if !ok {
		return
	}
	for _, stmt := range stmts {
		c.compileNode(stmt)
	}
}

func (c *Compiler) compileLiteralFallback(node ast.Node) {
	switch {
	case node.IsNumber():
		if i, ok := node.AsInt64(); ok {
			c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.Int(i)))
			return
		}
		if f, ok := node.AsFloat64(); ok {
			c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.Float(f)))
			return
		}
		panic(SemanticError{Message: "Invalid number"})
	case node.IsString():
		s, _ := node.AsString()
		c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.String(s)))
	case node.IsBool():
		b, _ := node.AsBool()
		c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.Bool(b)))
	case node.IsNull():
		c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.None()))
	case node.IsArray():
		items, err := node.AsArray()
		if err != nil {
			panic(SemanticError{Message: err.Error()})
		}
		for _, item := range items {
			c.compileNode(item)
		}
	}
}

func (c *Compiler) compileVarDecl(node ast.Node) {
	if v, ok, _ := node.NodeField("value"); ok {
		c.compileNode(v)
	} else {
		c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.None()))
	}
	name := node.StringField("var_name", "_")
	c.chunk.EmitWithOperand(bytecode.StoreName, c.chunk.AddName(name))
}

func (c *Compiler) compileAssign(node ast.Node) {
	if v, ok, _ := node.NodeField("value"); ok {
		c.compileNode(v)
	}
	name := assignTargetName(node)
	c.chunk.EmitWithOperand(bytecode.StoreName, c.chunk.AddName(name))
}

func assignTargetName(node ast.Node) string {
	varNode, ok, _ := node.NodeField("var")
	if !ok {
		return "_"
	}
	if name := varNode.StringField("name", ""); name != "" {
		return name
	}
	if s, ok := varNode.AsString(); ok {
		return s
	}
	return "_"
}

var binOpcodes = map[string]bytecode.Opcode{
	"TAMBAH": bytecode.Add, "KURANG": bytecode.Sub, "KALI": bytecode.Mul, "KALI_OP": bytecode.Mul,
	"BAGI": bytecode.Div, "PEMBAGIAN_BULAT": bytecode.FloorDiv, "SISA_BAGI": bytecode.Mod, "PANGKAT": bytecode.Pow,
	"SAMA_DENGAN": bytecode.Eq, "TIDAK_SAMA": bytecode.Ne, "KURANG_DARI": bytecode.Lt, "KURANG_SAMA": bytecode.Le,
	"LEBIH_DARI": bytecode.Gt, "LEBIH_SAMA": bytecode.Ge,
	"DAN": bytecode.And, "ATAU": bytecode.Or,
	"BIT_DAN": bytecode.BitAnd, "BITWISE_AND": bytecode.BitAnd,
	"BIT_ATAU": bytecode.BitOr, "BITWISE_OR": bytecode.BitOr,
	"BIT_XOR": bytecode.BitXor, "BITWISE_XOR": bytecode.BitXor,
	"GESER_KIRI": bytecode.Shl, "GESER_KANAN": bytecode.Shr,
	"DALAM": bytecode.Contains, "TIDAK_DALAM": bytecode.NotContains,
}

func (c *Compiler) compileBinOp(node ast.Node) {
	if left, ok, _ := node.NodeField("left"); ok {
		c.compileNode(left)
	}
	if right, ok, _ := node.NodeField("right"); ok {
		c.compileNode(right)
	}
	op, ok := binOpcodes[node.OpType()]
	if !ok {
		op = bytecode.Nop
	}
	c.chunk.EmitOpcode(op)
}

var unaryOpcodes = map[string]bytecode.Opcode{
	"KURANG": bytecode.Neg,
	"TIDAK": bytecode.Not, "NOT": bytecode.Not, "BUKAN": bytecode.Not,
	"BIT_NOT": bytecode.BitNot, "BITWISE_NOT": bytecode.BitNot,
}

func (c *Compiler) compileUnaryOp(node ast.Node) {
	if expr, ok, _ := node.NodeField("expr"); ok {
		c.compileNode(expr)
	}
	op, ok := unaryOpcodes[node.OpType()]
	if !ok {
		op = bytecode.Nop
	}
	c.chunk.EmitOpcode(op)
}

func (c *Compiler) compileNum(node ast.Node) {
	v := value.Int(0)
	var raw json.RawMessage
	if ok, _ := node.Field("value", &raw); ok {
		var i int64
		if err := json.Unmarshal(raw, &i); err == nil {
			v = value.Int(i)
		} else {
			var f float64
			if err := json.Unmarshal(raw, &f); err == nil {
				v = value.Float(f)
			}
		}
	}
	c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(v))
}

func (c *Compiler) compileString(node ast.Node) {
	s := node.StringField("value", "")
	c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.String(s)))
}

func (c *Compiler) compileBoolean(node ast.Node) {
	var b bool
	node.Field("value", &b)
	c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.Bool(b)))
}

func (c *Compiler) compileNone() {
	c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.None()))
}

func (c *Compiler) compileVar(node ast.Node) {
	name := node.StringField("name", "_")
	c.chunk.EmitWithOperand(bytecode.LoadName, c.chunk.AddName(name))
}

func (c *Compiler) compileList(node ast.Node) {
	elems, ok, err := node.NodeListField("elements")
	if err != nil {
		panic(SemanticError{Message: err.Error()})
	}
	count := uint32(0)
	if ok {
		for _, elem := range elems {
			c.compileNode(elem)
		}
		count = uint32(len(elems))
	}
	c.chunk.EmitWithOperand(bytecode.BuildList, count)
}

func (c *Compiler) compileDict(node ast.Node) {
	var pairsRaw []json.RawMessage
	ok, _ := node.Field("pairs", &pairsRaw)
	count := uint32(0)
	if ok {
		for _, pairRaw := range pairsRaw {
			var pair []json.RawMessage
			if err := json.Unmarshal(pairRaw, &pair); err != nil {
				panic(SemanticError{Message: err.Error()})
			}
			if len(pair) > 0 {
				keyNode, err := ast.Decode(pair[0])
				if err != nil {
					panic(SemanticError{Message: err.Error()})
				}
				c.compileNode(keyNode)
			}
			if len(pair) > 1 {
				valNode, err := ast.Decode(pair[1])
				if err != nil {
					panic(SemanticError{Message: err.Error()})
				}
				c.compileNode(valNode)
			}
		}
		count = uint32(len(pairsRaw))
	}
	c.chunk.EmitWithOperand(bytecode.BuildDict, count)
}

func (c *Compiler) compileIf(node ast.Node) {
	if cond, ok, _ := node.NodeField("condition"); ok {
		c.compileNode(cond)
	}

	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	c.compileStatements(node, "if_body")

	jumpEnd := c.chunk.EmitWithOperand(bytecode.Jump, 0)

	elseStart := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(elseStart))

	c.compileStatements(node, "else_body")

	end := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpEnd, uint32(end))
}

func (c *Compiler) pushLoop(start int) {
	c.loopStarts = append(c.loopStarts, start)
	c.loopEnds = append(c.loopEnds, nil)
}

func (c *Compiler) popLoopAndPatch(loopEnd int) {
	c.loopStarts = c.loopStarts[:len(c.loopStarts)-1]
	breaks := c.loopEnds[len(c.loopEnds)-1]
	c.loopEnds = c.loopEnds[:len(c.loopEnds)-1]
	for _, offset := range breaks {
		c.chunk.PatchJump(offset, uint32(loopEnd))
	}
}

func (c *Compiler) compileWhile(node ast.Node) {
	loopStart := c.chunk.CurrentOffset()
	c.pushLoop(loopStart)

	if cond, ok, _ := node.NodeField("condition"); ok {
		c.compileNode(cond)
	}

	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	c.compileStatements(node, "body")

	c.chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))

	loopEnd := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(loopEnd))

	c.popLoopAndPatch(loopEnd)
}

func (c *Compiler) compileFor(node ast.Node) {
	varName := node.StringField("var_name", "i")

	if start, ok, _ := node.NodeField("start"); ok {
		c.compileNode(start)
	}
	varIdx := c.chunk.AddName(varName)
	c.chunk.EmitWithOperand(bytecode.StoreName, varIdx)

	loopStart := c.chunk.CurrentOffset()
	c.pushLoop(loopStart)

	c.chunk.EmitWithOperand(bytecode.LoadName, varIdx)
	if end, ok, _ := node.NodeField("end"); ok {
		c.compileNode(end)
	}
	c.chunk.EmitOpcode(bytecode.Le)

	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	c.compileStatements(node, "body")

	c.chunk.EmitWithOperand(bytecode.LoadName, varIdx)
	oneIdx := c.chunk.AddConstant(value.Int(1))
	c.chunk.EmitWithOperand(bytecode.LoadConst, oneIdx)
	c.chunk.EmitOpcode(bytecode.Add)
	c.chunk.EmitWithOperand(bytecode.StoreName, varIdx)

	c.chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))

	loopEnd := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(loopEnd))

	c.popLoopAndPatch(loopEnd)
}

func (c *Compiler) compileForEach(node ast.Node) {
	varName := node.StringField("var_name", "item")

	if iterable, ok, _ := node.NodeField("iterable"); ok {
		c.compileNode(iterable)
	}
	c.chunk.EmitOpcode(bytecode.GetIter)

	loopStart := c.chunk.CurrentOffset()
	c.pushLoop(loopStart)

	c.chunk.EmitOpcode(bytecode.ForIter)
	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	varIdx := c.chunk.AddName(varName)
	c.chunk.EmitWithOperand(bytecode.StoreName, varIdx)

	c.compileStatements(node, "body")

	c.chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))

	loopEnd := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(loopEnd))

	c.popLoopAndPatch(loopEnd)
}

func (c *Compiler) compileFuncDecl(node ast.Node) {
	name := node.StringField("name", "anonymous")

	var params []string
	node.Field("params", &params)

	jumpOver := c.chunk.EmitWithOperand(bytecode.Jump, 0)

	bodyStart := c.chunk.CurrentOffset()
	c.compileStatements(node, "body")

	noneIdx := c.chunk.AddConstant(value.None())
	c.chunk.EmitWithOperand(bytecode.LoadConst, noneIdx)
	c.chunk.EmitOpcode(bytecode.Return)

	afterFunc := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpOver, uint32(afterFunc))

	constIdx := c.chunk.AddConstant(value.Func(&value.Function{
		Name:           name,
		Params:         params,
		BytecodeOffset: uint32(bodyStart),
	}))
	c.chunk.EmitWithOperand(bytecode.LoadConst, constIdx)
	c.chunk.EmitWithOperand(bytecode.StoreName, c.chunk.AddName(name))
}

func (c *Compiler) compileFuncCall(node ast.Node) {
	funcName := node.StringField("name", "")

	args, hasArgs, err := node.NodeListField("args")
	if err != nil {
		panic(SemanticError{Message: err.Error()})
	}
	if !hasArgs {
		return
	}
	for _, arg := range args {
		c.compileNode(arg)
	}

	if funcName != "" {
		c.chunk.EmitWithOperand(bytecode.LoadName, c.chunk.AddName(funcName))
	} else if funcExpr, ok, _ := node.NodeField("func_expr"); ok {
		c.compileNode(funcExpr)
	}

	c.chunk.EmitWithOperand(bytecode.Call, uint32(len(args)))
}

func (c *Compiler) compileReturn(node ast.Node) {
	if expr, ok, _ := node.NodeField("expr"); ok {
		c.compileNode(expr)
	} else {
		c.chunk.EmitWithOperand(bytecode.LoadConst, c.chunk.AddConstant(value.None()))
	}
	c.chunk.EmitOpcode(bytecode.Return)
}

func (c *Compiler) compilePrint(node ast.Node) {
	if expr, ok, _ := node.NodeField("expr"); ok {
		c.compileNode(expr)
	}
	c.chunk.EmitOpcode(bytecode.Print)
}

func (c *Compiler) compileBreak() {
	offset := c.chunk.EmitWithOperand(bytecode.Jump, 0)
	if len(c.loopEnds) > 0 {
		last := len(c.loopEnds) - 1
		c.loopEnds[last] = append(c.loopEnds[last], offset)
	}
}

func (c *Compiler) compileContinue() {
	if len(c.loopStarts) > 0 {
		c.chunk.EmitWithOperand(bytecode.Jump, uint32(c.loopStarts[len(c.loopStarts)-1]))
	}
}

func (c *Compiler) compileIndexAccess(node ast.Node) {
	if obj, ok, _ := node.NodeField("obj"); ok {
		c.compileNode(obj)
	}
	if index, ok, _ := node.NodeField("index"); ok {
		c.compileNode(index)
	}
	c.chunk.EmitOpcode(bytecode.GetIndex)
}

var compoundOpcodes = map[string]bytecode.Opcode{
	"TAMBAH_SAMA_DENGAN": bytecode.Add, "KURANG_SAMA_DENGAN": bytecode.Sub,
	"KALI_SAMA_DENGAN": bytecode.Mul, "BAGI_SAMA_DENGAN": bytecode.Div,
	"PEMBAGIAN_BULAT_SAMA_DENGAN": bytecode.FloorDiv, "SISA_SAMA_DENGAN": bytecode.Mod,
	"PANGKAT_SAMA_DENGAN": bytecode.Pow,
}

func (c *Compiler) compileCompoundAssign(node ast.Node) {
	varNode, ok, _ := node.NodeField("var")
	varName := "_"
	if ok {
		varName = varNode.StringField("name", "_")
	}
	nameIdx := c.chunk.AddName(varName)
	c.chunk.EmitWithOperand(bytecode.LoadName, nameIdx)

	if val, ok, _ := node.NodeField("value"); ok {
		c.compileNode(val)
	}

	op, ok := compoundOpcodes[node.OpType()]
	if !ok {
		op = bytecode.Add
	}
	c.chunk.EmitOpcode(op)
	c.chunk.EmitWithOperand(bytecode.StoreName, nameIdx)
}

func (c *Compiler) compileTernary(node ast.Node) {
	if cond, ok, _ := node.NodeField("condition"); ok {
		c.compileNode(cond)
	}

	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	if ifExpr, ok, _ := node.NodeField("if_expr"); ok {
		c.compileNode(ifExpr)
	}

	jumpEnd := c.chunk.EmitWithOperand(bytecode.Jump, 0)

	elseStart := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(elseStart))

	if elseExpr, ok, _ := node.NodeField("else_expr"); ok {
		c.compileNode(elseExpr)
	}

	end := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpEnd, uint32(end))
}

func (c *Compiler) compileLambda(node ast.Node) {
	var params []string
	node.Field("params", &params)

	jumpOver := c.chunk.EmitWithOperand(bytecode.Jump, 0)

	lambdaStart := c.chunk.CurrentOffset()
	if body, ok, _ := node.NodeField("body"); ok {
		c.compileNode(body)
	}
	c.chunk.EmitOpcode(bytecode.Return)

	afterLambda := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpOver, uint32(afterLambda))

	constIdx := c.chunk.AddConstant(value.Func(&value.Function{
		Name:           "<lambda>",
		Params:         params,
		BytecodeOffset: uint32(lambdaStart),
	}))
	c.chunk.EmitWithOperand(bytecode.LoadConst, constIdx)
}

// compileListComp lowers a list comprehension. The filtered and
// unfiltered branches both reach exactly one Jump back to loopStart after
// emitting `expr` exactly once — see SPEC_FULL.md §4 for why this is not
// the double-evaluation bug the Open Question describes once traced
// precisely.
func (c *Compiler) compileListComp(node ast.Node) {
	c.chunk.EmitWithOperand(bytecode.BuildList, 0)

	if iterable, ok, _ := node.NodeField("iterable"); ok {
		c.compileNode(iterable)
	}
	c.chunk.EmitOpcode(bytecode.GetIter)

	loopStart := c.chunk.CurrentOffset()

	c.chunk.EmitOpcode(bytecode.ForIter)
	jumpIfFalse := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

	varName := node.StringField("var_name", "item")
	varIdx := c.chunk.AddName(varName)
	c.chunk.EmitWithOperand(bytecode.StoreName, varIdx)

	shouldAdd := true
	if cond, ok, _ := node.NodeField("condition"); ok {
		c.compileNode(cond)
		skipJump := c.chunk.EmitWithOperand(bytecode.JumpIfFalse, 0)

		if expr, ok, _ := node.NodeField("expr"); ok {
			c.compileNode(expr)
		}

		c.chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))
		skipTarget := c.chunk.CurrentOffset()
		c.chunk.PatchJump(skipJump, uint32(skipTarget))
		shouldAdd = false
	}

	if shouldAdd {
		if expr, ok, _ := node.NodeField("expr"); ok {
			c.compileNode(expr)
		}
	}

	c.chunk.EmitWithOperand(bytecode.Jump, uint32(loopStart))

	loopEnd := c.chunk.CurrentOffset()
	c.chunk.PatchJump(jumpIfFalse, uint32(loopEnd))
}
