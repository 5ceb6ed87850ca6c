// Package bytecode defines the instruction set, the instruction
// encoder/decoder, and the Chunk container (code + constants + names +
// optional line table) with its framed binary serialization.
package bytecode

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/dolthub/swiss"

	"rmcore/value"
)

// Opcode is a single byte instruction tag. Numbering is stable and on-wire;
// gaps are reserved, and an unknown byte decodes to Nop for forward
// compatibility.
type Opcode byte

const (
	Nop Opcode = 0

	LoadConst   Opcode = 1
	LoadName    Opcode = 2
	StoreName   Opcode = 3
	LoadGlobal  Opcode = 4
	StoreGlobal Opcode = 5
	LoadLocal   Opcode = 6
	StoreLocal  Opcode = 7

	Add     Opcode = 10
	Sub     Opcode = 11
	Mul     Opcode = 12
	Div     Opcode = 13
	FloorDiv Opcode = 14
	Mod     Opcode = 15
	Pow     Opcode = 16
	Neg     Opcode = 17

	BitAnd Opcode = 20
	BitOr  Opcode = 21
	BitXor Opcode = 22
	BitNot Opcode = 23
	Shl    Opcode = 24
	Shr    Opcode = 25

	Eq Opcode = 30
	Ne Opcode = 31
	Lt Opcode = 32
	Le Opcode = 33
	Gt Opcode = 34
	Ge Opcode = 35

	And Opcode = 40
	Or  Opcode = 41
	Not Opcode = 42

	Jump         Opcode = 50
	JumpIfTrue   Opcode = 51
	JumpIfFalse  Opcode = 52

	Call   Opcode = 60
	Return Opcode = 61

	BuildList  Opcode = 70
	BuildDict  Opcode = 71
	BuildTuple Opcode = 72
	BuildSet   Opcode = 73

	GetIndex Opcode = 80
	SetIndex Opcode = 81
	GetAttr  Opcode = 82
	SetAttr  Opcode = 83
	GetSlice Opcode = 84

	Pop  Opcode = 90
	Dup  Opcode = 91
	Rot2 Opcode = 92
	Rot3 Opcode = 93

	MakeFunction Opcode = 100
	MakeClosure  Opcode = 101

	ForIter Opcode = 110
	GetIter Opcode = 111

	Print Opcode = 120
	Input Opcode = 121

	Contains    Opcode = 130
	NotContains Opcode = 131
	Len         Opcode = 132

	Halt Opcode = 255
)

var names = map[Opcode]string{
	Nop: "Nop", LoadConst: "LoadConst", LoadName: "LoadName", StoreName: "StoreName",
	LoadGlobal: "LoadGlobal", StoreGlobal: "StoreGlobal", LoadLocal: "LoadLocal", StoreLocal: "StoreLocal",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", FloorDiv: "FloorDiv", Mod: "Mod", Pow: "Pow", Neg: "Neg",
	BitAnd: "BitAnd", BitOr: "BitOr", BitXor: "BitXor", BitNot: "BitNot", Shl: "Shl", Shr: "Shr",
	Eq: "Eq", Ne: "Ne", Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge",
	And: "And", Or: "Or", Not: "Not",
	Jump: "Jump", JumpIfTrue: "JumpIfTrue", JumpIfFalse: "JumpIfFalse",
	Call: "Call", Return: "Return",
	BuildList: "BuildList", BuildDict: "BuildDict", BuildTuple: "BuildTuple", BuildSet: "BuildSet",
	GetIndex: "GetIndex", SetIndex: "SetIndex", GetAttr: "GetAttr", SetAttr: "SetAttr", GetSlice: "GetSlice",
	Pop: "Pop", Dup: "Dup", Rot2: "Rot2", Rot3: "Rot3",
	MakeFunction: "MakeFunction", MakeClosure: "MakeClosure",
	ForIter: "ForIter", GetIter: "GetIter",
	Print: "Print", Input: "Input",
	Contains: "Contains", NotContains: "NotContains", Len: "Len",
	Halt: "Halt",
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "Nop"
}

// FromByte decodes a raw opcode byte, mapping anything unrecognized to Nop.
func FromByte(b byte) Opcode {
	if _, ok := names[Opcode(b)]; ok {
		return Opcode(b)
	}
	return Nop
}

// needsOperand is the fixed subset of opcodes that carry a 4-byte operand.
func needsOperand(op Opcode) bool {
	switch op {
	case LoadConst, LoadName, StoreName, LoadGlobal, StoreGlobal, LoadLocal, StoreLocal,
		Jump, JumpIfTrue, JumpIfFalse, Call, BuildList, BuildDict, BuildTuple, BuildSet,
		MakeFunction, MakeClosure, GetAttr, SetAttr:
		return true
	default:
		return false
	}
}

// Instruction is a decoded (opcode, optional operand) pair.
type Instruction struct {
	Opcode  Opcode
	Operand uint32
	HasOperand bool
}

// Encode produces the wire bytes for an instruction: 1 byte opcode,
// followed by 4 little-endian operand bytes if the opcode carries one.
func (ins Instruction) Encode() []byte {
	if !ins.HasOperand {
		return []byte{byte(ins.Opcode)}
	}
	buf := make([]byte, 5)
	buf[0] = byte(ins.Opcode)
	binary.LittleEndian.PutUint32(buf[1:], ins.Operand)
	return buf
}

// Decode reads one instruction starting at offset, returning the decoded
// instruction and the number of bytes consumed (5 for operand-bearing
// opcodes, 1 otherwise).
func Decode(code []byte, offset int) (Instruction, int) {
	op := FromByte(code[offset])
	if needsOperand(op) && offset+5 <= len(code) {
		operand := binary.LittleEndian.Uint32(code[offset+1 : offset+5])
		return Instruction{Opcode: op, Operand: operand, HasOperand: true}, 5
	}
	return Instruction{Opcode: op}, 1
}

// LineEntry maps a code offset to a source line for diagnostics.
type LineEntry struct {
	Offset int
	Line   uint32
}

// Chunk is a compiled unit: raw code bytes, an indexed constant pool, an
// indexed (interned) name pool, and an optional line table.
type Chunk struct {
	Code        []byte
	Constants   []value.Value
	Names       []string
	LineNumbers []LineEntry

	nameIndex *swiss.Map[string, uint32]
}

// New returns an empty Chunk ready for emission.
func New() *Chunk {
	return &Chunk{nameIndex: swiss.NewMap[string, uint32](8)}
}

func (c *Chunk) ensureIndex() {
	if c.nameIndex != nil {
		return
	}
	c.nameIndex = swiss.NewMap[string, uint32](uint32(len(c.Names)) + 8)
	for i, n := range c.Names {
		c.nameIndex.Put(n, uint32(i))
	}
}

// CurrentOffset returns the code length, i.e. the offset the next emitted
// instruction will occupy.
func (c *Chunk) CurrentOffset() int { return len(c.Code) }

func (c *Chunk) emit(ins Instruction) int {
	offset := len(c.Code)
	c.Code = append(c.Code, ins.Encode()...)
	return offset
}

// EmitOpcode appends an operand-less instruction and returns its offset.
func (c *Chunk) EmitOpcode(op Opcode) int {
	return c.emit(Instruction{Opcode: op})
}

// EmitWithOperand appends an operand-bearing instruction and returns its
// offset.
func (c *Chunk) EmitWithOperand(op Opcode, operand uint32) int {
	return c.emit(Instruction{Opcode: op, Operand: operand, HasOperand: true})
}

// AddConstant appends a literal Value to the constant pool, unconditionally
// (no deduplication), and returns its index.
func (c *Chunk) AddConstant(v value.Value) uint32 {
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// AddName interns an identifier string: a repeated name returns the index
// of its first insertion. Resolution goes through a swiss-table cache so
// programs with large name pools don't pay for a linear scan per lookup.
func (c *Chunk) AddName(name string) uint32 {
	c.ensureIndex()
	if idx, ok := c.nameIndex.Get(name); ok {
		return idx
	}
	c.Names = append(c.Names, name)
	idx := uint32(len(c.Names) - 1)
	c.nameIndex.Put(name, idx)
	return idx
}

// PatchJump overwrites the 4-byte little-endian operand at offset+1 with
// target, completing a forward/backward jump backpatch.
func (c *Chunk) PatchJump(offset int, target uint32) {
	binary.LittleEndian.PutUint32(c.Code[offset+1:offset+5], target)
}

var magic = [4]byte{'R', 'M', 'C', 'B'}

const version byte = 0x01

// Serialize produces the RMCB-framed binary form: magic, version, then
// three length-prefixed sections (raw code, JSON constants, JSON names).
// Line numbers are never persisted.
func (c *Chunk) Serialize() ([]byte, error) {
	constJSON, err := json.Marshal(c.Constants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constants: %w", err)
	}
	namesJSON, err := json.Marshal(c.Names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode names: %w", err)
	}

	out := make([]byte, 0, 9+len(c.Code)+len(constJSON)+len(namesJSON)+8)
	out = append(out, magic[:]...)
	out = append(out, version)

	out = appendSection(out, c.Code)
	out = appendSection(out, constJSON)
	out = appendSection(out, namesJSON)

	return out, nil
}

func appendSection(out []byte, section []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(section)))
	out = append(out, lenBuf[:]...)
	return append(out, section...)
}

// Deserialize parses the RMCB wire format back into a Chunk. Errors are
// plain strings per the embedding contract's error taxonomy: short buffer,
// wrong magic, non-UTF-8, or unparseable JSON sections.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("invalid bytecode: too short")
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return nil, fmt.Errorf("invalid bytecode: wrong magic number")
	}

	offset := 5

	code, next, err := readSection(data, offset)
	if err != nil {
		return nil, err
	}
	offset = next

	constSection, next, err := readSection(data, offset)
	if err != nil {
		return nil, err
	}
	offset = next

	if !utf8.Valid(constSection) {
		return nil, fmt.Errorf("invalid bytecode: constants section is not valid UTF-8")
	}
	var constants []value.Value
	if err := json.Unmarshal(constSection, &constants); err != nil {
		return nil, fmt.Errorf("failed to parse constants: %w", err)
	}

	namesSection, next, err := readSection(data, offset)
	if err != nil {
		return nil, err
	}
	offset = next

	if !utf8.Valid(namesSection) {
		return nil, fmt.Errorf("invalid bytecode: names section is not valid UTF-8")
	}
	var chunkNames []string
	if err := json.Unmarshal(namesSection, &chunkNames); err != nil {
		return nil, fmt.Errorf("failed to parse names: %w", err)
	}

	return &Chunk{
		Code:      code,
		Constants: constants,
		Names:     chunkNames,
	}, nil
}

func readSection(data []byte, offset int) ([]byte, int, error) {
	if offset+4 > len(data) {
		return nil, 0, fmt.Errorf("invalid bytecode: truncated section length")
	}
	length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+length > len(data) {
		return nil, 0, fmt.Errorf("invalid bytecode: truncated section body")
	}
	return data[offset : offset+length], offset + length, nil
}
