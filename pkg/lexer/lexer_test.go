package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return toks
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestNextTokenSingleCharacterTokens(t *testing.T) {
	toks := scanAll(t, "(){}[],.-+;:/ *%")
	require.Equal(t, []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenLeftBracket, TokenRightBracket, TokenComma, TokenDot, TokenMinus,
		TokenPlus, TokenSemicolon, TokenColon, TokenSlash, TokenStar, TokenPercent,
		TokenEOF,
	}, types(toks))
}

func TestNextTokenOneOrTwoCharacterTokens(t *testing.T) {
	toks := scanAll(t, "! != = == < <= > >= **")
	require.Equal(t, []TokenType{
		TokenBang, TokenBangEqual, TokenEqual, TokenEqualEqual,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenStarStar, TokenEOF,
	}, types(toks))
}

func TestNextTokenKeywords(t *testing.T) {
	src := "and class else false fun for if null or return super this true var while break continue"
	toks := scanAll(t, src)
	require.Equal(t, []TokenType{
		TokenAnd, TokenClass, TokenElse, TokenFalse, TokenFun, TokenFor,
		TokenIf, TokenNull, TokenOr, TokenReturn, TokenSuper, TokenThis,
		TokenTrue, TokenVar, TokenWhile, TokenBreak, TokenContinue, TokenEOF,
	}, types(toks))
}

func TestNextTokenIdentifiersAreNotKeywords(t *testing.T) {
	toks := scanAll(t, "classy funnel forest")
	require.Equal(t, []TokenType{TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenEOF}, types(toks))
	require.Equal(t, "classy", toks[0].Lexeme)
}

func TestNextTokenNumbers(t *testing.T) {
	toks := scanAll(t, "42 3.14 1e3 2.5e-2 7.")
	require.Equal(t, TokenNumber, toks[0].Type)
	require.Equal(t, "42", toks[0].Lexeme)
	require.Equal(t, TokenNumber, toks[1].Type)
	require.Equal(t, "3.14", toks[1].Lexeme)
	require.Equal(t, TokenNumber, toks[2].Type)
	require.Equal(t, "1e3", toks[2].Lexeme)
	require.Equal(t, TokenNumber, toks[3].Type)
	require.Equal(t, "2.5e-2", toks[3].Lexeme)
	// A trailing '.' not followed by a digit belongs to the next token, not
	// the number (so `7.` is NUMBER(7) DOT, not a malformed float).
	require.Equal(t, "7", toks[4].Lexeme)
	require.Equal(t, TokenDot, toks[5].Type)
}

func TestNextTokenStrings(t *testing.T) {
	toks := scanAll(t, `"hello" "with \"escape\""`)
	require.Equal(t, TokenString, toks[0].Type)
	require.Equal(t, `"hello"`, toks[0].Lexeme)
	require.Equal(t, TokenString, toks[1].Type)
}

func TestNextTokenUnterminatedStringIsError(t *testing.T) {
	toks := scanAll(t, `"never closed`)
	last := toks[len(toks)-1]
	require.Equal(t, TokenError, last.Type)
	require.Contains(t, last.Message, "unterminated string")
}

func TestNextTokenUnexpectedCharacterIsError(t *testing.T) {
	toks := scanAll(t, "@")
	require.Equal(t, TokenError, toks[0].Type)
	require.Contains(t, toks[0].Message, "unexpected character")
}

func TestNextTokenSkipsLineAndBlockComments(t *testing.T) {
	src := "1 // a line comment\n/* a block\ncomment */ 2"
	toks := scanAll(t, src)
	require.Equal(t, []TokenType{TokenNumber, TokenNumber, TokenEOF}, types(toks))
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 3, toks[1].Line)
}

func TestNextTokenTracksLineNumbers(t *testing.T) {
	toks := scanAll(t, "var x = 1;\nvar y = 2;")
	require.Equal(t, 1, toks[0].Line) // var
	// find the second `var` and assert it landed on line 2
	count := 0
	for _, tok := range toks {
		if tok.Type == TokenVar {
			count++
			if count == 2 {
				require.Equal(t, 2, tok.Line)
			}
		}
	}
	require.Equal(t, 2, count)
}

func TestNextTokenHelloWorldProgram(t *testing.T) {
	toks := scanAll(t, `print("Hello, World!");`)
	require.Equal(t, []TokenType{
		TokenIdentifier, TokenLeftParen, TokenString, TokenRightParen,
		TokenSemicolon, TokenEOF,
	}, types(toks))
}

func TestNextTokenEmptySourceYieldsEOF(t *testing.T) {
	toks := scanAll(t, "")
	require.Equal(t, []TokenType{TokenEOF}, types(toks))
}
