// Package compiler implements Falcon's single-pass Pratt compiler: a
// lexer-driven parser whose prefix/infix rules emit bytecode directly,
// with no intermediate AST (spec.md §4.E). It tracks a chain of
// function-scoped compiler states (locals, upvalues, scope depth) and
// participates in garbage collection as a root source for the duration of
// a single Compile call (spec.md §4.C, §4.E, §9).
package compiler

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/lexer"
	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/value"
)

type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
	kindMethod
	kindInitializer
)

type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueDesc struct {
	isLocal bool
	index   byte
}

// loopState tracks one enclosing loop: breakJumps accumulates forward
// jumps to patch once the loop's end is known, while continueTarget is
// the fixed bytecode offset a `continue` jumps straight back to (the
// condition re-check for `while`, the increment clause for `for`),
// carried forward in SPEC_FULL.md since spec.md's distillation only
// implies break/continue via "loop constructs".
type loopState struct {
	scopeDepth     int
	continueTarget int
	breakJumps     []int
}

// constKey is a comparable dedup key for the per-function constant pool,
// backed by a dolthub/swiss map rather than a builtin map (SPEC_FULL.md's
// domain-stack wiring, grounded on mna-nenuphar's
// `constants map[interface{}]uint32` in lang/compiler/compiler.go).
type constKey struct {
	isString bool
	num      float64
	strAddr  uintptr
}

// funcState is one function-scoped compiler frame; funcState chains via
// enclosing form the "active compiler chain" that spec.md §4.C and §4.E
// name as a GC root.
type funcState struct {
	enclosing *funcState
	fn        *object.Function
	kind      funcKind

	locals     []localVar
	upvalues   []upvalueDesc
	scopeDepth int
	loops      []loopState

	constIdx *swiss.Map[constKey, int]
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Parser drives the single-pass compile: it owns the lexer, the two-token
// lookahead window (current/previous), error accumulation with panic-mode
// synchronization (spec.md §7.1), and the chain of active funcStates.
type Parser struct {
	heap *object.Heap
	lex  *lexer.Lexer

	current  lexer.Token
	previous lexer.Token

	errors    []string
	panicMode bool

	cur   *funcState
	class *classState
}

// Compile compiles source into a top-level script Function, returning the
// accumulated compile-error messages (empty on success), per spec.md
// §7.1's "accumulates within a single compile; final result is
// CompileError if any were raised".
func Compile(heap *object.Heap, source string) (*object.Function, []string) {
	p := &Parser{heap: heap, lex: lexer.New(source)}
	p.pushFunc(kindScript, nil)

	heap.SetCompilerRoot(p.markRoots)
	defer heap.ClearCompilerRoot()

	p.advance()
	for !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenEOF, "expect end of expression")

	fn := p.endFunc()
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return fn, nil
}

// markRoots is registered with the heap as the compiler's root source: it
// walks the live funcState chain, marking each one's in-progress Function
// object so its constant pool (and anything reachable from it) survives a
// collection triggered mid-compile (spec.md §4.E).
func (p *Parser) markRoots(mark func(object.Traceable)) {
	for fs := p.cur; fs != nil; fs = fs.enclosing {
		mark(fs.fn)
	}
}

func (p *Parser) pushFunc(kind funcKind, name *object.String) {
	fs := &funcState{
		kind:      kind,
		fn:        p.heap.NewFunction(name),
		constIdx:  swiss.NewMap[constKey, int](8),
		enclosing: p.cur,
	}
	// Slot 0 is reserved: for methods/initializers it holds the receiver
	// (`this`); for plain functions and the script it is an unnamed local
	// that source can never reference, exactly as clox-family compilers
	// reserve it (grounded on original_source/'s compiler.c initCompiler).
	if kind == kindMethod || kind == kindInitializer {
		fs.locals = append(fs.locals, localVar{name: "this", depth: 0})
	} else {
		fs.locals = append(fs.locals, localVar{name: "", depth: 0})
	}
	p.cur = fs
}

func (p *Parser) endFunc() *object.Function {
	p.emitReturn()
	fn := p.cur.fn
	fn.UpvalueCount = len(p.cur.upvalues)
	p.cur = p.cur.enclosing
	return fn
}

func (p *Parser) currentChunk() *chunk.Chunk { return p.cur.fn.Chunk }

// ---- token stream plumbing ----

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Message)
	}
}

func (p *Parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.previous, msg) }

// errorAt records a compile error with its line and offending lexeme
// (spec.md §7.1). panicMode suppresses cascading errors until the parser
// resynchronizes at the next statement boundary (synchronize, below),
// supplementing a feature original_source/ has but spec.md's distillation
// only gestures at ("accumulates within a single compile").
func (p *Parser) errorAt(tok lexer.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	where := tok.Lexeme
	if tok.Type == lexer.TokenEOF {
		where = "end"
	}
	p.errors = append(p.errors, fmt.Sprintf("[line %d] error at '%s': %s", tok.Line, where, msg))
}

func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn:
			return
		}
		p.advance()
	}
}

// ---- bytecode emission helpers ----

func (p *Parser) emitByte(b byte)        { p.currentChunk().Write(b, p.previous.Line) }
func (p *Parser) emitOp(op chunk.OpCode) { p.currentChunk().WriteOp(op, p.previous.Line) }

func (p *Parser) emitOpByte(op chunk.OpCode, operand byte) {
	p.emitOp(op)
	p.emitByte(operand)
}

func (p *Parser) emitOpUint16(op chunk.OpCode, operand uint16) {
	p.emitOp(op)
	p.emitByte(byte(operand >> 8))
	p.emitByte(byte(operand))
}

func (p *Parser) emitReturn() {
	if p.cur.kind == kindInitializer {
		p.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		p.emitOp(chunk.OpNull)
	}
	p.emitOp(chunk.OpReturn)
}

// emitJump emits a jump opcode with a placeholder 2-byte operand and
// returns the offset to patch once the target is known.
func (p *Parser) emitJump(op chunk.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.currentChunk().Len() - 2
}

func (p *Parser) patchJump(offset int) {
	target := p.currentChunk().Len() - offset - 2
	if target > 0xffff {
		p.error("too much code to jump over")
	}
	p.currentChunk().PatchUint16(offset, uint16(target))
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	offset := p.currentChunk().Len() - loopStart + 2
	if offset > 0xffff {
		p.error("loop body too large")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

// addConstant returns the pool index for v, deduping scalar numbers and
// repeated references to the same interned string object so that
// "repeated emission of the same ... literal expands the pool by at most
// one entry per distinct value" (spec.md §8).
func (p *Parser) addConstant(key constKey, build func() int) int {
	if idx, ok := p.cur.constIdx.Get(key); ok {
		return idx
	}
	idx := build()
	p.cur.constIdx.Put(key, idx)
	return idx
}

func (p *Parser) numberConstantIndex(n float64) int {
	return p.addConstant(constKey{num: n}, func() int {
		return p.currentChunk().AddConstant(value.Number(n))
	})
}

func (p *Parser) stringConstantIndex(s *object.String) int {
	return p.addConstant(constKey{isString: true, strAddr: s.Addr()}, func() int {
		return p.currentChunk().AddConstant(value.Obj(s))
	})
}

func (p *Parser) emitNumberConstant(n float64) {
	idx := p.numberConstantIndex(n)
	if idx < 256 {
		p.emitOpByte(chunk.OpConstant, byte(idx))
		return
	}
	p.emitOpUint16(chunk.OpConstant16, uint16(idx))
}

func (p *Parser) emitStringConstant(s *object.String) {
	idx := p.stringConstantIndex(s)
	if idx < 256 {
		p.emitOpByte(chunk.OpConstant, byte(idx))
		return
	}
	p.emitOpUint16(chunk.OpConstant16, uint16(idx))
}

// emitNameConstant interns name, reuses/creates its pool slot, and emits a
// 2-byte index operand following op — the encoding this compiler uses
// uniformly for every opcode whose operand names a global, field, method,
// or class (OP_DEFINE_GLOBAL, OP_GET_GLOBAL, OP_SET_GLOBAL, OP_GET_PROP,
// OP_SET_PROP, OP_CLASS, OP_METHOD, OP_GET_SUPER); only OP_CONSTANT itself
// follows spec.md §3's explicit 1-byte/2-byte split.
func (p *Parser) emitNameConstant(op chunk.OpCode, name string) {
	s := p.heap.InternGoString(name)
	idx := p.stringConstantIndex(s)
	p.emitOpUint16(op, uint16(idx))
}

func (p *Parser) identifierConstant(name string) uint16 {
	s := p.heap.InternGoString(name)
	return uint16(p.stringConstantIndex(s))
}
