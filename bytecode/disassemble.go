package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a chunk's code section as a human-readable listing,
// one line per decoded instruction: the code offset, the opcode name, and
// — for operand-bearing opcodes — the operand plus whatever context makes
// it legible (the constant value for LoadConst, the interned name for
// Load/StoreName and friends, the jump target for Jump/JumpIfTrue/
// JumpIfFalse). Grounded on the teacher's own `DiassembleBytecode`, which
// walked its instruction stream the same way to print operand context.
func (c *Chunk) Disassemble() string {
	var out strings.Builder
	offset := 0
	for offset < len(c.Code) {
		ins, size := Decode(c.Code, offset)
		fmt.Fprintf(&out, "%04d %-12s", offset, ins.Opcode.String())
		if ins.HasOperand {
			out.WriteString(c.operandContext(ins))
		}
		out.WriteByte('\n')
		offset += size
	}
	return out.String()
}

func (c *Chunk) operandContext(ins Instruction) string {
	switch ins.Opcode {
	case LoadConst:
		if int(ins.Operand) < len(c.Constants) {
			return fmt.Sprintf("%d ; %s", ins.Operand, c.Constants[ins.Operand].String())
		}
		return fmt.Sprintf("%d", ins.Operand)
	case LoadName, StoreName, LoadGlobal, StoreGlobal, LoadLocal, StoreLocal:
		if int(ins.Operand) < len(c.Names) {
			return fmt.Sprintf("%d ; %s", ins.Operand, c.Names[ins.Operand])
		}
		return fmt.Sprintf("%d", ins.Operand)
	case Jump, JumpIfTrue, JumpIfFalse:
		return fmt.Sprintf("-> %04d", ins.Operand)
	default:
		return fmt.Sprintf("%d", ins.Operand)
	}
}
