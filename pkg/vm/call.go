package vm

import (
	"fmt"
	"math"

	"github.com/falcon-lang/falcon/pkg/chunk"
	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/value"
)

// callValue dispatches OP_CALL's callee, which may be a user-defined
// Closure, a host Native, a Class (constructing an Instance and running
// its initializer, if any), or a BoundMethod (spec.md §4.F "CALL").
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObj() {
		return fmt.Errorf("can only call functions and classes")
	}
	switch obj := callee.AsObj().(type) {
	case *object.Closure:
		return vm.call(obj, argCount)
	case *object.Native:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := obj.Fn(args)
		if err != nil {
			return err
		}
		if result.IsErr() {
			return fmt.Errorf("native function '%s' failed", obj.Name)
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	case *object.Class:
		inst := vm.heap.NewInstance(obj)
		vm.stack[vm.stackTop-argCount-1] = value.Obj(inst)
		if initializer, ok := obj.Method(vm.initString); ok {
			return vm.call(initializer, argCount)
		}
		if argCount != 0 {
			return fmt.Errorf("expected 0 arguments but got %d", argCount)
		}
		return nil
	case *object.BoundMethod:
		vm.stack[vm.stackTop-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)
	default:
		return fmt.Errorf("can only call functions and classes")
	}
}

// call pushes a new Frame for closure, checking arity and the call-depth
// limit (spec.md §4.F "CALL ... arity mismatch is a runtime error").
func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Fn.Arity {
		return fmt.Errorf("expected %d arguments but got %d", closure.Fn.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return fmt.Errorf("stack overflow")
	}
	vm.frames[vm.frameCount] = Frame{
		Closure:   closure,
		IP:        0,
		SlotsBase: vm.stackTop - argCount - 1,
	}
	vm.frameCount++
	return nil
}

// invoke resolves name on the instance at stack depth argCount and calls
// it directly, fusing OP_GET_PROPERTY + OP_CALL into a single dispatch
// (spec.md §4.F "INVOKE ... avoids allocating a BoundMethod for the
// common case of a.m(...)").
func (vm *VM) invoke(name *object.String, argCount int) error {
	receiver := vm.peek(argCount)
	inst, ok := instanceOf(receiver)
	if !ok {
		return fmt.Errorf("only instances have methods")
	}
	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

// invokeFromClass looks up name directly on class (bypassing the
// receiver's own field table), used both by invoke's method-table
// fallback and by OP_SUPER_INVOKE.
func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) error {
	method, ok := class.Method(name)
	if !ok {
		return fmt.Errorf("undefined property '%s'", name.FalconString())
	}
	return vm.call(method, argCount)
}

// getProperty implements OP_GET_PROPERTY: an instance's own fields take
// precedence over its class's methods, and a method hit is wrapped in a
// BoundMethod since, unlike invoke's fused path, the callee here is not
// necessarily about to be called immediately (spec.md §4.F "GET_PROP").
func (vm *VM) getProperty(name *object.String) error {
	inst, ok := instanceOf(vm.peek(0))
	if !ok {
		return fmt.Errorf("only instances have properties")
	}
	if field, ok := inst.Fields.Get(name); ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	return vm.bindMethod(inst.Class, name, vm.pop())
}

// bindMethod resolves name on class and pushes a BoundMethod pairing it
// with receiver, or reports an undefined-property error.
func (vm *VM) bindMethod(class *object.Class, name *object.String, receiver value.Value) error {
	method, ok := class.Method(name)
	if !ok {
		return fmt.Errorf("undefined property '%s'", name.FalconString())
	}
	vm.push(value.Obj(vm.heap.NewBoundMethod(receiver, method)))
	return nil
}

// binaryArith implements OP_ADD/SUB/MUL/DIV/MOD/POW. Addition additionally
// supports string concatenation when both operands are strings and List
// concatenation when both are Lists (SPEC_FULL.md's supplement to spec.md
// §4.F's "+ on numbers and strings"). Two Maps are not merged: like any
// other non-number pair, they are a runtime error.
func (vm *VM) binaryArith(op chunk.OpCode) error {
	b, a := vm.peek(0), vm.peek(1)

	if op == chunk.OpAdd {
		if sa, ok := keyString(a); ok {
			if sb, ok := keyString(b); ok {
				vm.pop()
				vm.pop()
				vm.push(value.Obj(vm.heap.InternGoString(sa.FalconString() + sb.FalconString())))
				return nil
			}
		}
		if la, ok := objOrNil(a).(*object.List); ok {
			if lb, ok := objOrNil(b).(*object.List); ok {
				vm.pop()
				vm.pop()
				merged := append(append([]value.Value(nil), la.Elems...), lb.Elems...)
				vm.push(value.Obj(vm.heap.NewList(merged)))
				return nil
			}
		}
	}

	if !a.IsNumber() || !b.IsNumber() {
		return fmt.Errorf("operands must be numbers")
	}
	vm.pop()
	vm.pop()
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case chunk.OpAdd:
		vm.push(value.Number(x + y))
	case chunk.OpSub:
		vm.push(value.Number(x - y))
	case chunk.OpMul:
		vm.push(value.Number(x * y))
	case chunk.OpDiv:
		if y == 0 {
			return fmt.Errorf("division by zero")
		}
		vm.push(value.Number(x / y))
	case chunk.OpMod:
		if y == 0 {
			return fmt.Errorf("division by zero")
		}
		vm.push(value.Number(math.Mod(x, y)))
	case chunk.OpPow:
		vm.push(value.Number(math.Pow(x, y)))
	}
	return nil
}

// compare implements OP_LT/GT/LE/GE, numeric-only (spec.md §4.F
// "comparisons are defined only for numbers").
func (vm *VM) compare(op chunk.OpCode) error {
	b, a := vm.pop(), vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return fmt.Errorf("operands must be numbers")
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case chunk.OpLt:
		vm.push(value.Bool(x < y))
	case chunk.OpGt:
		vm.push(value.Bool(x > y))
	case chunk.OpLe:
		vm.push(value.Bool(x <= y))
	case chunk.OpGe:
		vm.push(value.Bool(x >= y))
	}
	return nil
}

// getSubscript implements OP_GET_SUBSCRIPT for List (integer index, with
// negative indices counting from the end), String (the same indexing,
// yielding a one-byte string) and Map (string key) (spec.md §4.F
// "GET_SUBSCRIPT").
func (vm *VM) getSubscript() error {
	index := vm.pop()
	container := vm.pop()
	switch obj := objOrNil(container).(type) {
	case *object.List:
		i, err := listIndex(obj, index)
		if err != nil {
			return err
		}
		vm.push(obj.Elems[i])
	case *object.String:
		if !index.IsNumber() {
			return fmt.Errorf("string index must be a number")
		}
		i := int(index.AsNumber())
		if i < 0 {
			i += obj.Len()
		}
		if i < 0 || i >= obj.Len() {
			return fmt.Errorf("string index out of range")
		}
		vm.push(value.Obj(vm.heap.InternString(obj.Data[i : i+1])))
	case *object.Map:
		s, ok := keyString(index)
		if !ok {
			return fmt.Errorf("map keys must be strings")
		}
		v, ok := obj.Table.Get(s)
		if !ok {
			return fmt.Errorf("key '%s' not found", s.FalconString())
		}
		vm.push(v)
	default:
		return fmt.Errorf("only lists, strings and maps support subscripting")
	}
	return nil
}

// setSubscript implements OP_SET_SUBSCRIPT, leaving the assigned value on
// the stack as the expression's result (spec.md §4.F "SET_SUBSCRIPT").
func (vm *VM) setSubscript() error {
	v := vm.pop()
	index := vm.pop()
	container := vm.pop()
	switch obj := objOrNil(container).(type) {
	case *object.List:
		i, err := listIndex(obj, index)
		if err != nil {
			return err
		}
		obj.Elems[i] = v
	case *object.Map:
		s, ok := keyString(index)
		if !ok {
			return fmt.Errorf("map keys must be strings")
		}
		obj.Table.Set(s, v)
	default:
		return fmt.Errorf("only lists and maps support subscript assignment")
	}
	vm.push(v)
	return nil
}

func objOrNil(v value.Value) interface{} {
	if !v.IsObj() {
		return nil
	}
	return v.AsObj()
}

func listIndex(l *object.List, index value.Value) (int, error) {
	if !index.IsNumber() {
		return 0, fmt.Errorf("list index must be a number")
	}
	i := int(index.AsNumber())
	if i < 0 {
		i += l.Len()
	}
	if i < 0 || i >= l.Len() {
		return 0, fmt.Errorf("list index out of range")
	}
	return i, nil
}
