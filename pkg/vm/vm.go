// Package vm implements Falcon's bytecode virtual machine: a stack-based
// interpreter executing the opcodes pkg/compiler emits into a pkg/chunk
// (spec.md §1, §4.F). Its architecture — a fixed-capacity value stack, a
// fixed-capacity call-frame stack, and a single opcode-dispatch switch
// driving a run loop — is adapted from the teacher's Run loop
// (pkg/vm/vm.go), generalized from Smalltalk-style message-send dispatch
// to direct bytecode execution over Falcon's own opcode set.
package vm

import (
	"fmt"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/compiler"
	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/table"
	"github.com/falcon-lang/falcon/pkg/value"
)

const (
	framesMax = 256
	stackMax  = framesMax * 256
)

// Frame is one call-frame: the closure being executed, its instruction
// pointer into that closure's chunk, and the base stack slot its locals
// (including the callee/receiver in slot 0) start at.
type Frame struct {
	Closure   *object.Closure
	IP        int
	SlotsBase int
}

// Tracer receives one notification per instruction about to execute, used
// by cmd/falcon's `-d` flag (spec.md §6) to print a disassembly of
// the running program alongside its stack.
type Tracer interface {
	TraceInstruction(c *chunk.Chunk, ip int, stack []value.Value)
}

// VM is Falcon's bytecode interpreter. One VM owns one Heap for its
// entire lifetime and registers itself as the heap's permanent GC root
// (spec.md §9: "explicit VM context passed to every runtime operation").
type VM struct {
	heap *object.Heap

	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]Frame
	frameCount int

	globals *table.Table // keyed by *object.String

	openUpvalues *object.Upvalue // head of the open-upvalue list, descending by Slot

	initString *object.String

	Tracer Tracer // nil disables tracing
}

// New creates a VM backed by heap, registers it as the heap's permanent
// root source, and installs the native function bundle (spec.md §4.G).
func New(heap *object.Heap) *VM {
	vm := &VM{
		heap:    heap,
		globals: table.New(),
	}
	vm.initString = heap.InternGoString("init")
	heap.SetVMRoot(vm.markRoots)
	vm.defineNatives()
	return vm
}

// markRoots is the VM's GC root marker: every live stack slot, every
// active frame's closure, the open-upvalue chain, the cached init-name
// handle, and every live global name/value (spec.md §4.C "mark roots").
func (vm *VM) markRoots(mark func(object.Traceable)) {
	for i := 0; i < vm.stackTop; i++ {
		markValue(mark, vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.OpenNext {
		mark(uv)
	}
	mark(vm.initString)
	vm.globals.Iter(func(k table.Key, v value.Value) {
		if t, ok := k.(object.Traceable); ok {
			mark(t)
		}
		markValue(mark, v)
	})
}

func markValue(mark func(object.Traceable), v value.Value) {
	if !v.IsObj() {
		return
	}
	if t, ok := v.AsObj().(object.Traceable); ok {
		mark(t)
	}
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles and runs source in one step, the entry point
// cmd/falcon uses for both script and one-shot REPL-line execution
// (spec.md §6).
func (vm *VM) Interpret(source string) error {
	fn, errs := compiler.Compile(vm.heap, source)
	if len(errs) > 0 {
		return &CompileError{Messages: errs}
	}

	vm.resetStack()
	vm.push(value.Obj(fn)) // keeps fn rooted while its closure is allocated
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(value.Obj(closure))
	if err := vm.callValue(value.Obj(closure), 0); err != nil {
		return err
	}
	return vm.run()
}

// run is the main opcode-dispatch loop. It executes until the outermost
// frame returns or a runtime error is raised. Every opcode completes in
// full (including any allocations it performs) before control returns to
// the top of the loop, so a GC triggered by an allocation never observes
// a partially-executed instruction (spec.md §5's atomicity note).
func (vm *VM) run() error {
	f := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := f.Closure.Fn.Chunk.Code[f.IP]
		f.IP++
		return b
	}
	readUint16 := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func(idx int) value.Value {
		return f.Closure.Fn.Chunk.Constants[idx]
	}
	readString := func(idx uint16) *object.String {
		return readConstant(int(idx)).AsObj().(*object.String)
	}

	for {
		if vm.Tracer != nil {
			vm.Tracer.TraceInstruction(f.Closure.Fn.Chunk, f.IP, vm.stack[:vm.stackTop])
		}

		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant(int(readByte())))
		case chunk.OpConstant16:
			vm.push(readConstant(int(readUint16())))
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpNull:
			vm.push(value.Null)

		case chunk.OpAdd, chunk.OpSub, chunk.OpMul, chunk.OpDiv, chunk.OpMod, chunk.OpPow:
			if err := vm.binaryArith(op); err != nil {
				return vm.runtimeError(err)
			}
		case chunk.OpNeg:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError(fmt.Errorf("operand must be a number"))
			}
			vm.push(value.Number(-vm.pop().AsNumber()))
		case chunk.OpNot:
			vm.push(value.Bool(!vm.pop().Truthy()))

		case chunk.OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpNeq:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))
		case chunk.OpLt, chunk.OpGt, chunk.OpLe, chunk.OpGe:
			if err := vm.compare(op); err != nil {
				return vm.runtimeError(err)
			}

		case chunk.OpGetLocal:
			vm.push(vm.stack[f.SlotsBase+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[f.SlotsBase+int(readByte())] = vm.peek(0)

		case chunk.OpDefineGlobal:
			name := readString(readUint16())
			vm.globals.Set(name, vm.pop())
		case chunk.OpGetGlobal:
			name := readString(readUint16())
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(fmt.Errorf("undefined variable '%s'", name.FalconString()))
			}
			vm.push(v)
		case chunk.OpSetGlobal:
			name := readString(readUint16())
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError(fmt.Errorf("undefined variable '%s'", name.FalconString()))
			}

		case chunk.OpGetUpvalue:
			idx := readByte()
			vm.push(f.Closure.Upvalues[idx].Get())
		case chunk.OpSetUpvalue:
			idx := readByte()
			f.Closure.Upvalues[idx].Set(vm.peek(0))
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpJump:
			offset := readUint16()
			f.IP += int(offset)
		case chunk.OpJumpIfFalse:
			offset := readUint16()
			if !vm.pop().Truthy() {
				f.IP += int(offset)
			}
		case chunk.OpJumpIfFalsePeek:
			offset := readUint16()
			if !vm.peek(0).Truthy() {
				f.IP += int(offset)
			}
		case chunk.OpLoop:
			offset := readUint16()
			f.IP -= int(offset)

		case chunk.OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return vm.runtimeError(err)
			}
			f = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			idx := readUint16()
			fn := readConstant(int(idx)).AsObj().(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.Obj(closure))
			count := int(readByte())
			for i := 0; i < count; i++ {
				isLocal := readByte() == 1
				index := readByte()
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(f.SlotsBase + int(index))
				} else {
					closure.Upvalues[i] = f.Closure.Upvalues[index]
				}
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.SlotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = f.SlotsBase
			vm.push(result)
			f = &vm.frames[vm.frameCount-1]

		case chunk.OpList:
			count := int(readByte())
			elems := make([]value.Value, count)
			copy(elems, vm.stack[vm.stackTop-count:vm.stackTop])
			vm.stackTop -= count
			vm.push(value.Obj(vm.heap.NewList(elems)))

		case chunk.OpMap:
			count := int(readByte())
			m := vm.heap.NewMap()
			base := vm.stackTop - 2*count
			for i := 0; i < count; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				s, ok := keyString(k)
				if !ok {
					return vm.runtimeError(fmt.Errorf("map keys must be strings"))
				}
				m.Table.Set(s, v)
			}
			vm.stackTop = base
			vm.push(value.Obj(m))

		case chunk.OpGetSubscript:
			if err := vm.getSubscript(); err != nil {
				return vm.runtimeError(err)
			}
		case chunk.OpSetSubscript:
			if err := vm.setSubscript(); err != nil {
				return vm.runtimeError(err)
			}

		case chunk.OpClass:
			name := readString(readUint16())
			vm.push(value.Obj(vm.heap.NewClass(name)))
		case chunk.OpInherit:
			superVal := vm.peek(1)
			superClass, ok := classOf(superVal)
			if !ok {
				return vm.runtimeError(fmt.Errorf("superclass must be a class"))
			}
			sub, _ := classOf(vm.peek(0))
			superClass.Methods.Iter(func(k table.Key, v value.Value) {
				sub.Methods.Set(k, v)
			})
			vm.pop() // pops the subclass; superclass is left at the 'super' local's slot
		case chunk.OpMethod:
			name := readString(readUint16())
			method := vm.pop()
			class, _ := classOf(vm.peek(0))
			class.Methods.Set(name, method)

		case chunk.OpGetProperty:
			name := readString(readUint16())
			if err := vm.getProperty(name); err != nil {
				return vm.runtimeError(err)
			}
		case chunk.OpSetProperty:
			name := readString(readUint16())
			inst, ok := instanceOf(vm.peek(1))
			if !ok {
				return vm.runtimeError(fmt.Errorf("only instances have settable fields"))
			}
			v := vm.pop()
			inst.Fields.Set(name, v)
			vm.pop()
			vm.push(v)
		case chunk.OpInvoke:
			name := readString(readUint16())
			argCount := int(readByte())
			if err := vm.invoke(name, argCount); err != nil {
				return vm.runtimeError(err)
			}
			f = &vm.frames[vm.frameCount-1]
		case chunk.OpGetSuper:
			name := readString(readUint16())
			super, _ := classOf(vm.pop())
			receiver := vm.pop()
			if err := vm.bindMethod(super, name, receiver); err != nil {
				return vm.runtimeError(err)
			}
		case chunk.OpSuperInvoke:
			name := readString(readUint16())
			argCount := int(readByte())
			super, _ := classOf(vm.pop())
			if err := vm.invokeFromClass(super, name, argCount); err != nil {
				return vm.runtimeError(err)
			}
			f = &vm.frames[vm.frameCount-1]

		case chunk.OpPop:
			vm.pop()
		case chunk.OpDup:
			vm.push(vm.peek(0))

		default:
			return vm.runtimeError(fmt.Errorf("unknown opcode %d", op))
		}
	}
}

func keyString(v value.Value) (*object.String, bool) {
	if !v.IsObj() {
		return nil, false
	}
	s, ok := v.AsObj().(*object.String)
	return s, ok
}

func classOf(v value.Value) (*object.Class, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.AsObj().(*object.Class)
	return c, ok
}

func instanceOf(v value.Value) (*object.Instance, bool) {
	if !v.IsObj() {
		return nil, false
	}
	i, ok := v.AsObj().(*object.Instance)
	return i, ok
}

// captureUpvalue returns the existing open upvalue for stackSlot if one
// is already threaded onto the open list, or opens a new one, preserving
// the list's descending-slot-index order (invariant 3).
func (vm *VM) captureUpvalue(stackSlot int) *object.Upvalue {
	var prev *object.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot > stackSlot {
		prev = uv
		uv = uv.OpenNext
	}
	if uv != nil && uv.Slot == stackSlot {
		return uv
	}
	created := vm.heap.NewUpvalue(&vm.stack[stackSlot], stackSlot)
	created.OpenNext = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.OpenNext = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stackSlot, copying
// each one's live value out of the stack before that slot is discarded
// (spec.md §3 "Lifecycles").
func (vm *VM) closeUpvalues(stackSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= stackSlot {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.OpenNext
	}
}
