package vm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/falcon-lang/falcon/pkg/object"
	"github.com/falcon-lang/falcon/pkg/value"
)

// defineNatives installs the host-provided builtins every Falcon program
// starts with as globals (spec.md §4.G, §6's builtin list). Each one is a
// thin object.Native wrapper; the heavy lifting (arity/type checking)
// lives in the closures below so a bad call surfaces as an ordinary
// Falcon RuntimeError rather than a Go panic.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", nativeClock)
	vm.defineNative("time", nativeTime)
	vm.defineNative("exit", nativeExit)
	vm.defineNative("type", vm.nativeType)
	vm.defineNative("bool", nativeBool)
	vm.defineNative("num", nativeNum)
	vm.defineNative("str", vm.nativeStr)
	vm.defineNative("len", nativeLen)
	vm.defineNative("input", vm.nativeInput)
	vm.defineNative("print", vm.nativePrint)
	vm.defineNative("abs", nativeAbs)
	vm.defineNative("sqrt", nativeSqrt)
	vm.defineNative("pow", nativePow)
	vm.defineNative("hasField", vm.nativeHasField)
	vm.defineNative("getField", vm.nativeGetField)
	vm.defineNative("setField", vm.nativeSetField)
	vm.defineNative("delField", vm.nativeDelField)
}

func (vm *VM) defineNative(name string, fn object.NativeFn) {
	// The interned name is not rooted until it is a globals key, so no
	// collection may run in between.
	vm.heap.Pause()
	defer vm.heap.Resume()
	interned := vm.heap.InternGoString(name)
	native := vm.heap.NewNative(name, fn)
	vm.globals.Set(interned, value.Obj(native))
}

func arityError(name string, want, got int) error {
	return fmt.Errorf("%s expects %d argument(s), got %d", name, want, got)
}

func nativeClock(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, arityError("clock", 0, len(args))
	}
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeTime(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, arityError("time", 0, len(args))
	}
	return value.Number(float64(time.Now().Unix())), nil
}

func nativeExit(args []value.Value) (value.Value, error) {
	code := 0
	if len(args) == 1 {
		if !args[0].IsNumber() {
			return value.Value{}, fmt.Errorf("exit expects a number")
		}
		code = int(args[0].AsNumber())
	} else if len(args) != 0 {
		return value.Value{}, arityError("exit", 1, len(args))
	}
	os.Exit(code)
	return value.Null, nil
}

func (vm *VM) nativeType(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("type", 1, len(args))
	}
	return value.Obj(vm.heap.InternGoString(args[0].TypeName())), nil
}

func nativeBool(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("bool", 1, len(args))
	}
	return value.Bool(args[0].Truthy()), nil
}

func nativeNum(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("num", 1, len(args))
	}
	v := args[0]
	switch {
	case v.IsNumber():
		return v, nil
	case v.IsBool():
		if v.AsBool() {
			return value.Number(1), nil
		}
		return value.Number(0), nil
	}
	if s, ok := keyString(v); ok {
		var f float64
		if _, err := fmt.Sscanf(s.FalconString(), "%g", &f); err != nil {
			return value.Value{}, fmt.Errorf("cannot convert '%s' to a number", s.FalconString())
		}
		return value.Number(f), nil
	}
	return value.Value{}, fmt.Errorf("cannot convert %s to a number", v.TypeName())
}

func (vm *VM) nativeStr(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("str", 1, len(args))
	}
	return value.Obj(vm.heap.InternGoString(args[0].String())), nil
}

func nativeLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("len", 1, len(args))
	}
	switch obj := objOrNil(args[0]).(type) {
	case *object.String:
		return value.Number(float64(obj.Len())), nil
	case *object.List:
		return value.Number(float64(obj.Len())), nil
	case *object.Map:
		return value.Number(float64(obj.Len())), nil
	default:
		return value.Value{}, fmt.Errorf("len expects a string, list, or map")
	}
}

var stdin = bufio.NewReader(os.Stdin)

func (vm *VM) nativeInput(args []value.Value) (value.Value, error) {
	if len(args) > 1 {
		return value.Value{}, arityError("input", 1, len(args))
	}
	if len(args) == 1 {
		fmt.Print(args[0].String())
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return value.Null, nil
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return value.Obj(vm.heap.InternGoString(line)), nil
}

func (vm *VM) nativePrint(args []value.Value) (value.Value, error) {
	for i, a := range args {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(a.String())
	}
	fmt.Println()
	return value.Null, nil
}

func nativeAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 || !args[0].IsNumber() {
		return value.Value{}, fmt.Errorf("abs expects one number argument")
	}
	return value.Number(math.Abs(args[0].AsNumber())), nil
}

func nativeSqrt(args []value.Value) (value.Value, error) {
	if len(args) != 1 || !args[0].IsNumber() {
		return value.Value{}, fmt.Errorf("sqrt expects one number argument")
	}
	return value.Number(math.Sqrt(args[0].AsNumber())), nil
}

func nativePow(args []value.Value) (value.Value, error) {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return value.Value{}, fmt.Errorf("pow expects two number arguments")
	}
	return value.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber())), nil
}

// hasField/getField/setField/delField give Falcon source reflective
// access to an instance's field table without a dedicated syntax for it,
// supplementing spec.md's dot-property grammar with the reflection
// original_source/ exposes through its runtime library.
func (vm *VM) nativeHasField(args []value.Value) (value.Value, error) {
	inst, name, err := instanceAndFieldName(args, "hasField")
	if err != nil {
		return value.Value{}, err
	}
	_, ok := inst.Fields.Get(name)
	return value.Bool(ok), nil
}

func (vm *VM) nativeGetField(args []value.Value) (value.Value, error) {
	inst, name, err := instanceAndFieldName(args, "getField")
	if err != nil {
		return value.Value{}, err
	}
	v, ok := inst.Fields.Get(name)
	if !ok {
		return value.Null, nil
	}
	return v, nil
}

func (vm *VM) nativeSetField(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Value{}, arityError("setField", 3, len(args))
	}
	inst, ok := instanceOf(args[0])
	if !ok {
		return value.Value{}, fmt.Errorf("setField expects an instance")
	}
	name, ok := keyString(args[1])
	if !ok {
		return value.Value{}, fmt.Errorf("setField expects a string field name")
	}
	inst.Fields.Set(name, args[2])
	return args[2], nil
}

func (vm *VM) nativeDelField(args []value.Value) (value.Value, error) {
	inst, name, err := instanceAndFieldName(args, "delField")
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(inst.Fields.Delete(name)), nil
}

func instanceAndFieldName(args []value.Value, name string) (*object.Instance, *object.String, error) {
	if len(args) != 2 {
		return nil, nil, arityError(name, 2, len(args))
	}
	inst, ok := instanceOf(args[0])
	if !ok {
		return nil, nil, fmt.Errorf("%s expects an instance", name)
	}
	field, ok := keyString(args[1])
	if !ok {
		return nil, nil, fmt.Errorf("%s expects a string field name", name)
	}
	return inst, field, nil
}
