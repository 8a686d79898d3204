// Package chunk implements Falcon's bytecode chunk: an ordered sequence of
// opcodes with an associated constant pool and a source-line map, the unit
// the compiler emits into and the VM executes from (spec.md §3, §4.B).
package chunk

import "github.com/falcon-lang/falcon/pkg/value"

// OpCode is a single bytecode instruction tag.
type OpCode byte

// The full Falcon instruction set (spec.md §4.F).
const (
	OpConstant OpCode = iota
	OpConstant16
	OpTrue
	OpFalse
	OpNull

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpPow

	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe
	OpNot

	OpGetLocal
	OpSetLocal
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal

	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpJump
	OpJumpIfFalse     // pops the condition
	OpJumpIfFalsePeek // peeks the condition (used for short-circuit and/or)
	OpLoop

	OpCall
	OpClosure
	OpReturn

	OpList
	OpMap
	OpGetSubscript
	OpSetSubscript

	OpClass
	OpMethod
	OpInherit
	OpGetProperty
	OpSetProperty
	OpInvoke
	OpGetSuper
	OpSuperInvoke

	OpPop
	OpDup
)

var names = [...]string{
	OpConstant:        "CONSTANT",
	OpConstant16:      "CONSTANT_16",
	OpTrue:            "TRUE",
	OpFalse:           "FALSE",
	OpNull:            "NULL",
	OpAdd:             "ADD",
	OpSub:             "SUB",
	OpMul:             "MUL",
	OpDiv:             "DIV",
	OpMod:             "MOD",
	OpNeg:             "NEG",
	OpPow:             "POW",
	OpEq:              "EQ",
	OpNeq:             "NEQ",
	OpLt:              "LT",
	OpGt:              "GT",
	OpLe:              "LE",
	OpGe:              "GE",
	OpNot:             "NOT",
	OpGetLocal:        "GET_LOCAL",
	OpSetLocal:        "SET_LOCAL",
	OpDefineGlobal:    "DEFINE_GLOBAL",
	OpGetGlobal:       "GET_GLOBAL",
	OpSetGlobal:       "SET_GLOBAL",
	OpGetUpvalue:      "GET_UPVALUE",
	OpSetUpvalue:      "SET_UPVALUE",
	OpCloseUpvalue:    "CLOSE_UPVALUE",
	OpJump:            "JUMP",
	OpJumpIfFalse:     "JUMP_IF_FALSE",
	OpJumpIfFalsePeek: "JUMP_IF_FALSE_PEEK",
	OpLoop:            "LOOP",
	OpCall:            "CALL",
	OpClosure:         "CLOSURE",
	OpReturn:          "RETURN",
	OpList:            "LIST",
	OpMap:             "MAP",
	OpGetSubscript:    "GET_SUBSCRIPT",
	OpSetSubscript:    "SET_SUBSCRIPT",
	OpClass:           "CLASS",
	OpMethod:          "METHOD",
	OpInherit:         "INHERIT",
	OpGetProperty:     "GET_PROP",
	OpSetProperty:     "SET_PROP",
	OpInvoke:          "INVOKE",
	OpGetSuper:        "GET_SUPER",
	OpSuperInvoke:     "SUPER_INVOKE",
	OpPop:             "POP",
	OpDup:             "DUP",
}

func (op OpCode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return "UNKNOWN"
}

// lineRun is one run-length-encoded entry in a Chunk's line map: `count`
// consecutive bytecode offsets all originated from source line `line`.
type lineRun struct {
	line  int
	count int
}

// Chunk is a self-contained bytecode sequence together with its constant
// pool and line map (spec.md §3 "BytecodeChunk").
type Chunk struct {
	Code      []byte
	Constants []value.Value
	lines     []lineRun
}

// New creates an empty chunk.
func New() *Chunk { return &Chunk{} }

// Write appends a raw byte to the code stream, recording that it
// originated from the given source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.recordLine(line)
}

func (c *Chunk) recordLine(line int) {
	if n := len(c.lines); n > 0 && c.lines[n-1].line == line {
		c.lines[n-1].count++
		return
	}
	c.lines = append(c.lines, lineRun{line: line, count: 1})
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) int {
	offset := len(c.Code)
	c.Write(byte(op), line)
	return offset
}

// WriteByte appends a single-byte operand.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Write(b, line)
}

// WriteUint16 appends a two-byte big-endian operand.
func (c *Chunk) WriteUint16(v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// AddConstant appends a Value to the constant pool and returns its index.
// Scalar duplicates (numbers, booleans) are not deduplicated here — that is
// the compiler's job (see pkg/compiler), since only the compiler knows
// which constants are safe to share without aliasing concerns. Interned
// strings already share a single Value/handle by construction, so two
// string constants with identical content naturally end up wrapping the
// same object reference even without explicit dedup in this method.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// EmitConstant emits OP_CONSTANT (1-byte index) or OP_CONSTANT_16 (2-byte
// index) depending on whether the pool has grown past 256 entries, per
// spec.md §3.
func (c *Chunk) EmitConstant(v value.Value, line int) {
	idx := c.AddConstant(v)
	if idx < 256 {
		c.WriteOp(OpConstant, line)
		c.WriteByte(byte(idx), line)
		return
	}
	c.WriteOp(OpConstant16, line)
	c.WriteUint16(uint16(idx), line)
}

// GetLine returns the source line that produced the instruction at the
// given bytecode offset.
func (c *Chunk) GetLine(offset int) int {
	remaining := offset
	for _, run := range c.lines {
		if remaining < run.count {
			return run.line
		}
		remaining -= run.count
	}
	if len(c.lines) > 0 {
		return c.lines[len(c.lines)-1].line
	}
	return 0
}

// Len returns the number of bytes of code emitted so far.
func (c *Chunk) Len() int { return len(c.Code) }

// PatchUint16 overwrites the two-byte operand at the given code offset,
// used to back-patch jump targets once the jump destination is known.
func (c *Chunk) PatchUint16(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}
