package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/object"
)

func compileOK(t *testing.T, src string) *object.Function {
	t.Helper()
	heap := object.NewHeap(false)
	fn, errs := Compile(heap, src)
	require.Empty(t, errs, "unexpected compile errors")
	require.NotNil(t, fn)
	return fn
}

func opcodes(c *chunk.Chunk) []chunk.OpCode {
	var ops []chunk.OpCode
	// Decoding depends on each opcode's own operand width, so a generic
	// walk can't be written without the VM's dispatch table; tests instead
	// assert presence/order via Chunk.Code byte scanning on the few
	// fixed-width prefixes they care about.
	for _, b := range c.Code {
		ops = append(ops, chunk.OpCode(b))
	}
	return ops
}

func TestCompileNumberLiteralEmitsConstantAndReturn(t *testing.T) {
	fn := compileOK(t, "42;")
	require.Len(t, fn.Chunk.Constants, 1)
	require.Equal(t, float64(42), fn.Chunk.Constants[0].AsNumber())
	ops := opcodes(fn.Chunk)
	require.Contains(t, ops, chunk.OpConstant)
	require.Contains(t, ops, chunk.OpReturn)
}

func TestCompileDedupesRepeatedNumberConstant(t *testing.T) {
	fn := compileOK(t, "print(1); print(1); print(1);")
	count := 0
	for _, c := range fn.Chunk.Constants {
		if c.IsNumber() && c.AsNumber() == 1 {
			count++
		}
	}
	require.Equal(t, 1, count, "repeated identical number literal should share one constant slot")
}

func TestCompileDedupesRepeatedStringConstant(t *testing.T) {
	fn := compileOK(t, `var a = "hi"; var b = "hi";`)
	count := 0
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if s, ok := c.AsObj().(*object.String); ok && s.FalconString() == "hi" {
				count++
			}
		}
	}
	require.Equal(t, 1, count, "repeated identical string literal should share one constant slot (interning)")
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 must compile as 1 + (2 * 3): MUL appears before ADD.
	fn := compileOK(t, "1 + 2 * 3;")
	ops := opcodes(fn.Chunk)
	mulIdx, addIdx := -1, -1
	for i, op := range ops {
		if op == chunk.OpMul && mulIdx == -1 {
			mulIdx = i
		}
		if op == chunk.OpAdd && addIdx == -1 {
			addIdx = i
		}
	}
	require.NotEqual(t, -1, mulIdx)
	require.NotEqual(t, -1, addIdx)
	require.Less(t, mulIdx, addIdx)
}

func TestCompileUndefinedBreakIsCompileError(t *testing.T) {
	heap := object.NewHeap(false)
	_, errs := Compile(heap, "break;")
	require.NotEmpty(t, errs)
}

func TestCompileReturnOutsideFunctionIsCompileError(t *testing.T) {
	heap := object.NewHeap(false)
	_, errs := Compile(heap, "return 1;")
	require.NotEmpty(t, errs)
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	src := `
	fun makeCounter() {
		var count = 0;
		fun increment() {
			count = count + 1;
			return count;
		}
		return increment;
	}
	`
	fn := compileOK(t, src)
	// makeCounter's own chunk should contain an OP_CLOSURE for increment
	// with at least one upvalue descriptor pair following it.
	var makeCounterFn *object.Function
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.AsObj().(*object.Function); ok && f.Name != nil && f.Name.FalconString() == "makeCounter" {
				makeCounterFn = f
			}
		}
	}
	require.NotNil(t, makeCounterFn)
	require.Contains(t, opcodes(makeCounterFn.Chunk), chunk.OpClosure)

	var incrementFn *object.Function
	for _, c := range makeCounterFn.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.AsObj().(*object.Function); ok && f.Name != nil && f.Name.FalconString() == "increment" {
				incrementFn = f
			}
		}
	}
	require.NotNil(t, incrementFn)
	require.Equal(t, 1, incrementFn.UpvalueCount, "increment should capture count as one upvalue")
}

func TestCompileClassWithInheritance(t *testing.T) {
	src := `
	class Animal {
		speak() { return "..."; }
	}
	class Dog < Animal {
		speak() { return "woof"; }
	}
	`
	fn := compileOK(t, src)
	ops := opcodes(fn.Chunk)
	require.Contains(t, ops, chunk.OpClass)
	require.Contains(t, ops, chunk.OpInherit)
	require.Contains(t, ops, chunk.OpMethod)
}

func TestCompileSyntaxErrorReported(t *testing.T) {
	heap := object.NewHeap(false)
	_, errs := Compile(heap, "var = 1;")
	require.NotEmpty(t, errs)
}
