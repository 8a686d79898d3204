package vm

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falcon-lang/falcon/pkg/object"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// whatever it wrote. The native `print` builtin writes straight to
// os.Stdout (natives.go), so exercising it end to end means swapping the
// process-wide file descriptor rather than injecting a writer.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	saved := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = saved }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func newVM() *VM {
	return New(object.NewHeap(false))
}

func runOK(t *testing.T, m *VM, src string) {
	t.Helper()
	require.NoError(t, m.Interpret(src))
}

func TestInterpretArithmeticPrecedence(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() { runOK(t, m, "print(1 + 2 * 3);") })
	require.Equal(t, "7\n", out)
}

func TestInterpretForLoopAccumulator(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() {
		runOK(t, m, "var x = 0; for (var i = 0; i < 5; i = i + 1) x = x + i; print(x);")
	})
	require.Equal(t, "10\n", out)
}

func TestInterpretClosureCapturesPerCallCounter(t *testing.T) {
	m := newVM()
	src := `
	fun make() {
		var i = 0;
		fun inc() {
			i = i + 1;
			return i;
		}
		return inc;
	}
	var c = make();
	print(c());
	print(c());
	print(c());
	`
	out := captureStdout(t, func() { runOK(t, m, src) })
	require.Equal(t, "1\n2\n3\n", out)
}

func TestInterpretSingleInheritanceDispatch(t *testing.T) {
	m := newVM()
	src := `
	class A { greet() { print("hi"); } }
	class B < A {}
	B().greet();
	`
	out := captureStdout(t, func() { runOK(t, m, src) })
	require.Equal(t, "hi\n", out)
}

func TestInterpretStringConcatenation(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() { runOK(t, m, `print("foo" + "bar");`) })
	require.Equal(t, "foobar\n", out)
}

func TestInterpretDivisionByZeroIsRuntimeError(t *testing.T) {
	m := newVM()
	err := m.Interpret("print(1/0);")
	require.Error(t, err)
	require.IsType(t, &RuntimeError{}, err)
	require.Contains(t, err.Error(), "division by zero")
}

func TestInterpretSyntaxErrorIsCompileError(t *testing.T) {
	m := newVM()
	err := m.Interpret("var = 1;")
	require.Error(t, err)
	require.IsType(t, &CompileError{}, err)
}

// Stack discipline: after a well-formed program completes, the VM's
// internal stack and frame bookkeeping must return to empty (spec.md §8).
func TestInterpretStackDisciplineAfterSuccess(t *testing.T) {
	m := newVM()
	captureStdout(t, func() {
		runOK(t, m, `
		fun fib(n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); }
		print(fib(8));
		`)
	})
	require.Equal(t, 0, m.stackTop)
	require.Equal(t, 0, m.frameCount)
}

// GC safety: running the same program under stress-mode collection (a
// collection on every single allocation) must not change its result
// (spec.md §8 "GC safety").
func TestInterpretUnderStressGCMatchesNormalResult(t *testing.T) {
	src := `
	class Node {
		init(value, next) {
			this.value = value;
			this.next = next;
		}
	}
	fun sum(n) {
		var total = 0;
		while (n != null) {
			total = total + n.value;
			n = n.next;
		}
		return total;
	}
	var list = null;
	for (var i = 0; i < 50; i = i + 1) list = Node(i, list);
	print(sum(list));
	`
	normal := New(object.NewHeap(false))
	wantOut := captureStdout(t, func() { runOK(t, normal, src) })

	stressed := New(object.NewHeap(true))
	gotOut := captureStdout(t, func() { runOK(t, stressed, src) })

	require.Equal(t, wantOut, gotOut)
}

func TestInterpretListAndMapLiteralsAndSubscript(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() {
		runOK(t, m, `
		var xs = [1, 2, 3];
		print(xs[0] + xs[-1]);
		var m = {"a": 1, "b": 2};
		m["c"] = 3;
		print(m["a"] + m["c"]);
		`)
	})
	require.Equal(t, "4\n4\n", out)
}

func TestInterpretBreakAndContinueUnwindLoopLocals(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() {
		runOK(t, m, `
		var total = 0;
		for (var i = 0; i < 10; i = i + 1) {
			var skip = i == 3;
			if (skip) continue;
			if (i == 7) break;
			total = total + i;
		}
		print(total);
		`)
	})
	// 0+1+2+4+5+6 = 18 (3 is skipped, loop stops before adding 7)
	require.Equal(t, "18\n", out)
}

func TestInterpretUndefinedGlobalIsRuntimeError(t *testing.T) {
	m := newVM()
	err := m.Interpret("print(nope);")
	require.Error(t, err)
	require.Contains(t, err.Error(), "undefined variable")
}

func TestInterpretNativeFunctionsTypeLenStr(t *testing.T) {
	m := newVM()
	out := captureStdout(t, func() {
		runOK(t, m, `
		print(type(1));
		print(len("hello"));
		print(str(42));
		`)
	})
	require.Equal(t, "number\n5\n42\n", out)
}
