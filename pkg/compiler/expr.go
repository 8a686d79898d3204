package compiler

import (
	"strconv"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/lexer"
)

// precedence is Falcon's Pratt precedence ladder, lowest first (spec.md
// §4.E "Pratt parser (prefix/infix tables by precedence)").
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * / %
	precUnary                 // ! -
	precPower                 // ** (right-associative)
	precCall                  // . () []
	precPrimary
)

type (
	prefixFn func(p *Parser, canAssign bool)
	infixFn  func(p *Parser, canAssign bool)
)

type parseRule struct {
	prefix prefixFn
	infix  infixFn
	prec   precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {prefix: grouping, infix: call, prec: precCall},
		lexer.TokenLeftBracket:  {prefix: listLiteral, infix: subscript, prec: precCall},
		lexer.TokenLeftBrace:    {prefix: mapLiteral},
		lexer.TokenDot:          {infix: dot, prec: precCall},
		lexer.TokenMinus:        {prefix: unary, infix: binary, prec: precTerm},
		lexer.TokenPlus:         {infix: binary, prec: precTerm},
		lexer.TokenSlash:        {infix: binary, prec: precFactor},
		lexer.TokenStar:         {infix: binary, prec: precFactor},
		lexer.TokenPercent:      {infix: binary, prec: precFactor},
		lexer.TokenStarStar:     {infix: binary, prec: precPower},
		lexer.TokenBang:         {prefix: unary},
		lexer.TokenBangEqual:    {infix: binary, prec: precEquality},
		lexer.TokenEqualEqual:   {infix: binary, prec: precEquality},
		lexer.TokenGreater:      {infix: binary, prec: precComparison},
		lexer.TokenGreaterEqual: {infix: binary, prec: precComparison},
		lexer.TokenLess:         {infix: binary, prec: precComparison},
		lexer.TokenLessEqual:    {infix: binary, prec: precComparison},
		lexer.TokenIdentifier:   {prefix: variable},
		lexer.TokenString:       {prefix: stringLit},
		lexer.TokenNumber:       {prefix: number},
		lexer.TokenAnd:          {infix: and_, prec: precAnd},
		lexer.TokenOr:           {infix: or_, prec: precOr},
		lexer.TokenFalse:        {prefix: literal},
		lexer.TokenTrue:         {prefix: literal},
		lexer.TokenNull:         {prefix: literal},
		lexer.TokenThis:         {prefix: this_},
		lexer.TokenSuper:        {prefix: super_},
		lexer.TokenFun:          {prefix: funExpr},
	}
}

func ruleFor(t lexer.TokenType) parseRule { return rules[t] }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := ruleFor(p.previous.Type)
	if rule.prefix == nil {
		p.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= ruleFor(p.current.Type).prec {
		p.advance()
		infix := ruleFor(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.error("invalid assignment target")
	}
}

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

// ---- prefix rules ----

func number(p *Parser, _ bool) {
	n, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error("invalid number literal")
		return
	}
	p.emitNumberConstant(n)
}

func stringLit(p *Parser, _ bool) {
	raw := p.previous.Lexeme
	unescaped := unescapeString(raw[1 : len(raw)-1])
	s := p.heap.InternGoString(unescaped)
	p.emitStringConstant(s)
}

func unescapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '\\':
				out = append(out, '\\')
			case '"':
				out = append(out, '"')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func literal(p *Parser, _ bool) {
	switch p.previous.Type {
	case lexer.TokenFalse:
		p.emitOp(chunk.OpFalse)
	case lexer.TokenTrue:
		p.emitOp(chunk.OpTrue)
	case lexer.TokenNull:
		p.emitOp(chunk.OpNull)
	}
}

func grouping(p *Parser, _ bool) {
	p.expression()
	p.consume(lexer.TokenRightParen, "expect ')' after expression")
}

func unary(p *Parser, _ bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenMinus:
		p.emitOp(chunk.OpNeg)
	case lexer.TokenBang:
		p.emitOp(chunk.OpNot)
	}
}

func binary(p *Parser, _ bool) {
	opType := p.previous.Type
	rule := ruleFor(opType)
	// Left-associative for everything except **, which binds its right
	// operand at its own precedence rather than the next one up.
	if opType == lexer.TokenStarStar {
		p.parsePrecedence(rule.prec)
	} else {
		p.parsePrecedence(rule.prec + 1)
	}
	switch opType {
	case lexer.TokenPlus:
		p.emitOp(chunk.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(chunk.OpSub)
	case lexer.TokenStar:
		p.emitOp(chunk.OpMul)
	case lexer.TokenSlash:
		p.emitOp(chunk.OpDiv)
	case lexer.TokenPercent:
		p.emitOp(chunk.OpMod)
	case lexer.TokenStarStar:
		p.emitOp(chunk.OpPow)
	case lexer.TokenEqualEqual:
		p.emitOp(chunk.OpEq)
	case lexer.TokenBangEqual:
		p.emitOp(chunk.OpNeq)
	case lexer.TokenLess:
		p.emitOp(chunk.OpLt)
	case lexer.TokenLessEqual:
		p.emitOp(chunk.OpLe)
	case lexer.TokenGreater:
		p.emitOp(chunk.OpGt)
	case lexer.TokenGreaterEqual:
		p.emitOp(chunk.OpGe)
	}
}

// and_ short-circuits: if the left operand is already false, skip the
// right operand and leave the false value as the result.
func and_(p *Parser, _ bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalsePeek)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

// or_ short-circuits the opposite way: a truthy left operand skips the
// right operand entirely.
func or_(p *Parser, _ bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalsePeek)
	endJump := p.emitJump(chunk.OpJump)
	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func variable(p *Parser, canAssign bool) {
	namedVariable(p, p.previous.Lexeme, canAssign)
}

func namedVariable(p *Parser, name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	slot := resolveLocal(p.cur, name)
	switch {
	case slot == -2:
		p.error("can't read local variable in its own initializer")
		slot = 0
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	case slot >= 0:
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	default:
		if up := resolveUpvalue(p.cur, name); up >= 0 {
			slot = up
			getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
		} else {
			if canAssign && p.match(lexer.TokenEqual) {
				p.expression()
				p.emitNameConstant(chunk.OpSetGlobal, name)
				return
			}
			p.emitNameConstant(chunk.OpGetGlobal, name)
			return
		}
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOpByte(setOp, byte(slot))
		return
	}
	p.emitOpByte(getOp, byte(slot))
}

func this_(p *Parser, _ bool) {
	if p.class == nil {
		p.error("'this' used outside a class method")
		return
	}
	namedVariable(p, "this", false)
}

// super_ compiles `super.method` as a resolved-at-call-time lookup
// against the synthesized `super` upvalue every method body captures
// (spec.md §4.F "GET_SUPER ... via a synthesized super upvalue").
func super_(p *Parser, _ bool) {
	if p.class == nil {
		p.error("'super' used outside a class")
		return
	} else if !p.class.hasSuperclass {
		p.error("'super' used in a class with no superclass")
	}
	p.consume(lexer.TokenDot, "expect '.' after 'super'")
	p.consume(lexer.TokenIdentifier, "expect superclass method name")
	name := p.previous.Lexeme

	namedVariable(p, "this", false)
	if p.match(lexer.TokenLeftParen) {
		argCount := p.argumentList()
		namedVariable(p, "super", false)
		p.emitNameConstant(chunk.OpSuperInvoke, name)
		p.emitByte(byte(argCount))
		return
	}
	namedVariable(p, "super", false)
	p.emitNameConstant(chunk.OpGetSuper, name)
}

func funExpr(p *Parser, _ bool) {
	p.function(kindFunction, nil)
}

func call(p *Parser, _ bool) {
	argCount := p.argumentList()
	p.emitOpByte(chunk.OpCall, byte(argCount))
}

func (p *Parser) argumentList() int {
	count := 0
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			if count == 255 {
				p.error("can't pass more than 255 arguments")
			}
			count++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "expect ')' after arguments")
	return count
}

func dot(p *Parser, canAssign bool) {
	p.consume(lexer.TokenIdentifier, "expect property name after '.'")
	name := p.previous.Lexeme

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitNameConstant(chunk.OpSetProperty, name)
		return
	}
	if p.match(lexer.TokenLeftParen) {
		argCount := p.argumentList()
		p.emitNameConstant(chunk.OpInvoke, name)
		p.emitByte(byte(argCount))
		return
	}
	p.emitNameConstant(chunk.OpGetProperty, name)
}

// listLiteral compiles `[e1, e2, ...]`, pushing each element then
// OP_LIST(n) to collect them (spec.md §3 "List").
func listLiteral(p *Parser, _ bool) {
	count := 0
	if !p.check(lexer.TokenRightBracket) {
		for {
			p.expression()
			if count == 255 {
				p.error("can't have more than 255 elements in a list literal")
			}
			count++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightBracket, "expect ']' after list elements")
	p.emitOpByte(chunk.OpList, byte(count))
}

// mapLiteral compiles `{k1: v1, k2: v2, ...}`, pushing each key then value
// and finishing with OP_MAP(n) (spec.md §3 "Map"; as an expression-prefix
// rule this never conflicts with `{` block statements, which the
// statement parser consumes directly rather than through parsePrecedence).
func mapLiteral(p *Parser, _ bool) {
	count := 0
	if !p.check(lexer.TokenRightBrace) {
		for {
			p.expression()
			p.consume(lexer.TokenColon, "expect ':' after map key")
			p.expression()
			if count == 255 {
				p.error("can't have more than 255 entries in a map literal")
			}
			count++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightBrace, "expect '}' after map entries")
	p.emitOpByte(chunk.OpMap, byte(count))
}

func subscript(p *Parser, canAssign bool) {
	p.expression()
	p.consume(lexer.TokenRightBracket, "expect ']' after subscript index")
	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOp(chunk.OpSetSubscript)
		return
	}
	p.emitOp(chunk.OpGetSubscript)
}
