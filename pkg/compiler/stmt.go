package compiler

import (
	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/lexer"
	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/value"
)

// declaration parses one top-level-or-block declaration and resynchronizes
// on error, so that a single malformed statement does not cascade into
// spurious follow-on errors (spec.md §7.1).
func (p *Parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenFun):
		p.funDeclaration()
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenBreak):
		p.breakStatement()
	case p.match(lexer.TokenContinue):
		p.continueStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "expect '}' after block")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "expect ';' after expression")
	p.emitOp(chunk.OpPop)
}

// varDeclaration compiles `var name [= initializer];`. With no
// initializer the binding starts out null, matching how uninitialized
// locals behave everywhere else in the language.
func (p *Parser) varDeclaration() {
	p.consume(lexer.TokenIdentifier, "expect variable name")
	name := p.previous.Lexeme
	p.declareVariable(name)

	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNull)
	}
	p.consume(lexer.TokenSemicolon, "expect ';' after variable declaration")
	p.defineVariable(name)
}

func (p *Parser) defineVariable(name string) {
	if p.cur.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitNameConstant(chunk.OpDefineGlobal, name)
}

func (p *Parser) funDeclaration() {
	p.consume(lexer.TokenIdentifier, "expect function name")
	name := p.previous.Lexeme
	p.declareVariable(name)
	// A function can see its own binding while its own body is compiled,
	// so recursive calls resolve (spec.md's closures-and-recursion carried
	// in SPEC_FULL.md).
	p.markInitialized()
	p.function(kindFunction, p.heap.InternGoString(name))
	p.defineVariable(name)
}

// function compiles a parameter list and body into a brand-new funcState,
// then emits OP_CLOSURE referencing the resulting Function constant
// together with one (isLocal, index) descriptor pair per upvalue the body
// captures (spec.md §4.F "CLOSURE ... k pairs").
func (p *Parser) function(kind funcKind, name *object.String) {
	p.pushFunc(kind, name)
	p.beginScope()

	p.consume(lexer.TokenLeftParen, "expect '(' after function name")
	if !p.check(lexer.TokenRightParen) {
		for {
			p.cur.fn.Arity++
			if p.cur.fn.Arity > 255 {
				p.error("can't have more than 255 parameters")
			}
			p.consume(lexer.TokenIdentifier, "expect parameter name")
			paramName := p.previous.Lexeme
			p.declareVariable(paramName)
			p.markInitialized()
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "expect ')' after parameters")
	p.consume(lexer.TokenLeftBrace, "expect '{' before function body")
	p.block()

	enclosingUpvalues := p.cur.upvalues
	fn := p.endFunc()

	idx := p.currentChunk().AddConstant(value.Obj(fn))
	p.emitOpUint16(chunk.OpClosure, uint16(idx))
	p.emitByte(byte(len(enclosingUpvalues)))
	for _, uv := range enclosingUpvalues {
		if uv.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.index)
	}
}

// classDeclaration compiles `class Name [< Super] { method()... }`.
// OP_INHERIT copies the superclass's method table at declaration time
// (spec.md §4.F), after which each OP_METHOD attaches a freshly compiled
// closure to the class object left on the stack for the duration of the
// class body.
func (p *Parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "expect class name")
	name := p.previous.Lexeme
	p.declareVariable(name)
	p.emitNameConstant(chunk.OpClass, name)
	p.defineVariable(name)

	cs := &classState{enclosing: p.class}
	p.class = cs

	if p.match(lexer.TokenLess) {
		p.consume(lexer.TokenIdentifier, "expect superclass name")
		superName := p.previous.Lexeme
		if superName == name {
			p.error("a class can't inherit from itself")
		}
		namedVariable(p, superName, false)

		p.beginScope()
		p.addLocal("super")
		p.markInitialized()

		namedVariable(p, name, false)
		p.emitOp(chunk.OpInherit)
		cs.hasSuperclass = true
	}

	namedVariable(p, name, false)
	p.consume(lexer.TokenLeftBrace, "expect '{' before class body")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method()
	}
	p.consume(lexer.TokenRightBrace, "expect '}' after class body")
	p.emitOp(chunk.OpPop)

	if cs.hasSuperclass {
		p.endScope()
	}
	p.class = cs.enclosing
}

func (p *Parser) method() {
	p.consume(lexer.TokenIdentifier, "expect method name")
	name := p.previous.Lexeme
	kind := kindMethod
	if name == "init" {
		kind = kindInitializer
	}
	p.function(kind, p.heap.InternGoString(name))
	p.emitNameConstant(chunk.OpMethod, name)
}

func (p *Parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "expect '(' after 'if'")
	p.expression()
	p.consume(lexer.TokenRightParen, "expect ')' after condition")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)
	p.patchJump(thenJump)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) pushLoop(ls loopState) { p.cur.loops = append(p.cur.loops, ls) }

func (p *Parser) popLoop() {
	ls := p.cur.loops[len(p.cur.loops)-1]
	for _, j := range ls.breakJumps {
		p.patchJump(j)
	}
	p.cur.loops = p.cur.loops[:len(p.cur.loops)-1]
}

func (p *Parser) whileStatement() {
	loopStart := p.currentChunk().Len()
	p.consume(lexer.TokenLeftParen, "expect '(' after 'while'")
	p.expression()
	p.consume(lexer.TokenRightParen, "expect ')' after condition")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)

	p.pushLoop(loopState{scopeDepth: p.cur.scopeDepth, continueTarget: loopStart})
	p.statement()
	p.emitLoop(loopStart)
	p.popLoop()

	p.patchJump(exitJump)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(lexer.TokenLeftParen, "expect '(' after 'for'")

	switch {
	case p.match(lexer.TokenSemicolon):
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().Len()
	exitJump := -1
	if !p.match(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "expect ';' after loop condition")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
	}

	if !p.check(lexer.TokenRightParen) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := p.currentChunk().Len()
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(lexer.TokenRightParen, "expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	} else {
		p.consume(lexer.TokenRightParen, "expect ')' after for clauses")
	}

	p.pushLoop(loopState{scopeDepth: p.cur.scopeDepth, continueTarget: loopStart})
	p.statement()
	p.emitLoop(loopStart)
	p.popLoop()

	if exitJump != -1 {
		p.patchJump(exitJump)
	}
	p.endScope()
}

// unwindLoopLocals pops (or closes, if captured) every local declared
// more deeply than depth, without touching the compiler's own local-slot
// bookkeeping — used so `break`/`continue` balance the runtime stack when
// they jump out of nested blocks (SPEC_FULL.md's break/continue).
func (p *Parser) unwindLoopLocals(depth int) {
	for i := len(p.cur.locals) - 1; i >= 0 && p.cur.locals[i].depth > depth; i-- {
		if p.cur.locals[i].isCaptured {
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			p.emitOp(chunk.OpPop)
		}
	}
}

func (p *Parser) breakStatement() {
	if len(p.cur.loops) == 0 {
		p.error("'break' used outside a loop")
		p.consume(lexer.TokenSemicolon, "expect ';' after 'break'")
		return
	}
	loop := &p.cur.loops[len(p.cur.loops)-1]
	p.unwindLoopLocals(loop.scopeDepth)
	jmp := p.emitJump(chunk.OpJump)
	loop.breakJumps = append(loop.breakJumps, jmp)
	p.consume(lexer.TokenSemicolon, "expect ';' after 'break'")
}

func (p *Parser) continueStatement() {
	if len(p.cur.loops) == 0 {
		p.error("'continue' used outside a loop")
		p.consume(lexer.TokenSemicolon, "expect ';' after 'continue'")
		return
	}
	loop := &p.cur.loops[len(p.cur.loops)-1]
	p.unwindLoopLocals(loop.scopeDepth)
	p.emitLoop(loop.continueTarget)
	p.consume(lexer.TokenSemicolon, "expect ';' after 'continue'")
}

func (p *Parser) returnStatement() {
	if p.cur.kind == kindScript {
		p.error("can't return from top-level code")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.cur.kind == kindInitializer {
		p.error("can't return a value from an initializer")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "expect ';' after return value")
	p.emitOp(chunk.OpReturn)
}
