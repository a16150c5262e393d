// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import "math"

// expressionDescriptor describes the location of the result of an expression
// as it is being compiled, before it has necessarily been materialized into
// a register. The code generator defers picking a concrete register for as
// long as possible so that constant folding, short-circuit jump merging, and
// register reuse can all still apply.
type expressionDescriptor struct {
	kind expressionKind
	// bits is interpreted based on kind.
	bits uint64
	// strval stores the argument of [stringConstantExpression].
	strval string

	// t is a patch list of "exit when true".
	t int
	// f is a patch list of "exit when false".
	f int
}

func newExpression(kind expressionKind) expressionDescriptor {
	return expressionDescriptor{
		kind: kind,
		t:    noJump,
		f:    noJump,
	}
}

func voidExpression() expressionDescriptor {
	return newExpression(expressionKindVoid)
}

// stringConstantExpression returns an [expressionDescriptor] for a literal string.
func stringConstantExpression(s string) expressionDescriptor {
	e := newExpression(expressionKindStringConstant)
	e.strval = s
	return e
}

// constantExpression returns an [expressionDescriptor] for the k'th constant
// in the [Prototype] Constants table.
func constantTableExpression(k int) expressionDescriptor {
	e := newExpression(expressionKindConstant)
	e.bits = uint64(k)
	return e
}

// floatConstantExpression returns an [expressionDescriptor] for a numerical floating point constant.
func floatConstantExpression(f float64) expressionDescriptor {
	e := newExpression(expressionKindFloatConstant)
	e.bits = math.Float64bits(f)
	return e
}

// intConstantExpression returns an [expressionDescriptor] for a numerical integer constant.
func intConstantExpression(i int64) expressionDescriptor {
	e := newExpression(expressionKindIntConstant)
	e.bits = uint64(i)
	return e
}

// nonRelocatableExpression returns an [expressionDescriptor] for a value in a fixed register.
func nonRelocatableExpression(ridx registerIndex) expressionDescriptor {
	e := newExpression(expressionKindNonRelocatable)
	e.bits = uint64(ridx)
	return e
}

// localExpression returns an [expressionDescriptor] for a local variable
// given the register index and the index in the generator's flat active
// variable list, relative to the current function's firstLocal.
func localExpression(ridx registerIndex, vidx uint16) expressionDescriptor {
	e := newExpression(expressionKindLocal)
	e.bits = uint64(ridx) | uint64(vidx)<<8
	return e
}

func upvalueExpression(idx upvalueIndex) expressionDescriptor {
	e := newExpression(expressionKindUpvalue)
	e.bits = uint64(idx)
	return e
}

// constLocalExpression returns an [expressionDescriptor] for a compile-time
// <const> variable given an absolute index in the generator's active
// variable list.
func constLocalExpression(i int) expressionDescriptor {
	e := newExpression(expressionKindConstLocal)
	e.bits = uint64(i)
	return e
}

func indexedExpression(table, idx registerIndex) expressionDescriptor {
	e := newExpression(expressionKindIndexed)
	e.bits = uint64(idx) | uint64(table)<<16
	return e
}

func indexedUpvalueExpression(table upvalueIndex, constIndex uint16) expressionDescriptor {
	e := newExpression(expressionKindIndexUpvalue)
	e.bits = uint64(constIndex) | uint64(table)<<16
	return e
}

func indexIntExpression(table registerIndex, i uint16) expressionDescriptor {
	e := newExpression(expressionKindIndexInt)
	e.bits = uint64(i) | uint64(table)<<16
	return e
}

func indexStringExpression(table registerIndex, constIndex uint16) expressionDescriptor {
	e := newExpression(expressionKindIndexString)
	e.bits = uint64(constIndex) | uint64(table)<<16
	return e
}

func jumpExpression(pc int) expressionDescriptor {
	e := newExpression(expressionKindJump)
	e.bits = uint64(pc)
	return e
}

func relocatableExpression(pc int) expressionDescriptor {
	e := newExpression(expressionKindRelocatable)
	e.bits = uint64(pc)
	return e
}

func callExpression(pc int) expressionDescriptor {
	e := newExpression(expressionKindCall)
	e.bits = uint64(pc)
	return e
}

func varargExpression(pc int) expressionDescriptor {
	e := newExpression(expressionKindVararg)
	e.bits = uint64(pc)
	return e
}

// constantToExpression converts an already-evaluated constant [Value]
// into an [expressionDescriptor], the reverse of [expressionDescriptor.toValue].
func constantToExpression(v Value) expressionDescriptor {
	if v.IsNil() {
		return newExpression(expressionKindNil)
	}
	if v.IsString() {
		s, _ := v.Unquoted()
		return stringConstantExpression(s)
	}
	if v.IsInteger() {
		i, _ := v.Int64(OnlyIntegral)
		return intConstantExpression(i)
	}
	if f, ok := v.Float64(); ok {
		return floatConstantExpression(f)
	}
	if b, ok := v.Bool(); ok {
		if b {
			return newExpression(expressionKindTrue)
		}
		return newExpression(expressionKindFalse)
	}
	panic("unhandled Value type")
}

func (e expressionDescriptor) hasJumps() bool {
	return e.t != e.f
}

func (e expressionDescriptor) withJumpLists(from expressionDescriptor) expressionDescriptor {
	e.t = from.t
	e.f = from.f
	return e
}

// toValue returns the argument passed to [floatConstantExpression],
// [intConstantExpression], or [stringConstantExpression] as a [Value].
// It also supports values from [newExpression] with kinds
// [expressionKindNil], [expressionKindFalse], or [expressionKindTrue].
func (e expressionDescriptor) toValue() (_ Value, ok bool) {
	if e.hasJumps() {
		return Value{}, false
	}
	switch e.kind {
	case expressionKindNil:
		return Value{}, true
	case expressionKindFalse:
		return BoolValue(false), true
	case expressionKindTrue:
		return BoolValue(true), true
	case expressionKindIntConstant:
		i, _ := e.intConstant()
		return IntegerValue(i), true
	case expressionKindFloatConstant:
		f, _ := e.floatConstant()
		return FloatValue(f), true
	case expressionKindStringConstant:
		return StringValue(e.strval), true
	default:
		return Value{}, false
	}
}

// isNumeral reports whether e was created from [floatConstantExpression] or
// [intConstantExpression] and does not have jumps.
func (e expressionDescriptor) isNumeral() bool {
	return !e.hasJumps() && (e.kind == expressionKindIntConstant || e.kind == expressionKindFloatConstant)
}

// toNumeral returns the argument passed to [floatConstantExpression] or
// [intConstantExpression] as a [Value], as long as the expression does not
// have jumps.
func (e expressionDescriptor) toNumeral() (_ Value, ok bool) {
	if !e.isNumeral() {
		return Value{}, false
	}
	return e.toValue()
}

// toSignedArg converts a numeral (see [expressionDescriptor.isNumeral])
// into a signed argument (see [ToSignedArg]), if possible.
func (e expressionDescriptor) toSignedArg() (arg uint8, isFloat bool, ok bool) {
	var i int64
	switch e.kind {
	case expressionKindIntConstant:
		i, _ = e.intConstant()
	case expressionKindFloatConstant:
		f, _ := e.floatConstant()
		i, ok = FloatToInteger(f, OnlyIntegral)
		if !ok {
			return 0, true, false
		}
		isFloat = true
	default:
		return 0, false, false
	}

	if e.hasJumps() {
		return 0, isFloat, false
	}
	arg, ok = ToSignedArg(i)
	return arg, isFloat, ok
}

// floatConstant returns the argument passed to [floatConstantExpression].
func (e expressionDescriptor) floatConstant() (_ float64, ok bool) {
	if e.kind != expressionKindFloatConstant {
		return 0, false
	}
	return math.Float64frombits(e.bits), true
}

// intConstant returns the argument passed to [intConstantExpression].
func (e expressionDescriptor) intConstant() (_ int64, ok bool) {
	if e.kind != expressionKindIntConstant {
		return 0, false
	}
	return int64(e.bits), true
}

// stringConstant returns the argument passed to [stringConstantExpression].
func (e expressionDescriptor) stringConstant() (_ string, ok bool) {
	if e.kind != expressionKindStringConstant {
		return "", false
	}
	return e.strval, true
}

// constantIndex returns the index in the [Prototype] Constants table.
// For [expressionKindIndexUpvalue] or [expressionKindIndexString],
// constantIndex returns the table index constant.
func (e expressionDescriptor) constantIndex() int {
	switch e.kind {
	case expressionKindConstant:
		return int(e.bits)
	case expressionKindIndexUpvalue, expressionKindIndexString:
		return int(e.bits & 0xffff)
	default:
		panic("constantIndex not supported on expression")
	}
}

func (e expressionDescriptor) register() registerIndex {
	switch e.kind {
	case expressionKindNonRelocatable, expressionKindLocal:
		return registerIndex(e.bits & 0xff)
	default:
		panic("register not supported on expression")
	}
}

// localIndex returns the index in the generator's flat active variable list
// for a [localExpression].
func (e expressionDescriptor) localIndex(firstLocal int) int {
	if e.kind != expressionKindLocal {
		panic("localIndex on non-local expression")
	}
	return firstLocal + int(e.bits>>8&0xffff)
}

// upvalueIndex returns the upvalue index passed to [upvalueExpression].
func (e expressionDescriptor) upvalueIndex() upvalueIndex {
	if e.kind != expressionKindUpvalue {
		panic("upvalueIndex on non-upvalue expression")
	}
	return upvalueIndex(e.bits)
}

// constLocalIndex returns the absolute index in the generator's active
// variable list for a [constLocalExpression].
func (e expressionDescriptor) constLocalIndex() int {
	if e.kind != expressionKindConstLocal {
		panic("constLocalIndex on non-<const> expression")
	}
	return int(e.bits)
}

// tableRegister returns the register holding the table in an index expression.
func (e expressionDescriptor) tableRegister() registerIndex {
	switch e.kind {
	case expressionKindIndexed, expressionKindIndexInt, expressionKindIndexString:
		return registerIndex(e.bits >> 16)
	default:
		panic("tableRegister on non-index expression")
	}
}

// tableUpvalue returns the table's upvalue index of the [expressionKindIndexUpvalue] expression.
func (e expressionDescriptor) tableUpvalue() upvalueIndex {
	if e.kind != expressionKindIndexUpvalue {
		panic("tableUpvalue on non-upvalue-index expression")
	}
	return upvalueIndex(e.bits >> 16)
}

// indexRegister returns the table index register of the [expressionKindIndexed] expression.
func (e expressionDescriptor) indexRegister() registerIndex {
	if e.kind != expressionKindIndexed {
		panic("indexRegister on non-index expression")
	}
	return registerIndex(e.bits)
}

// indexInt returns the constant integer of the [expressionKindIndexInt] expression.
func (e expressionDescriptor) indexInt() int64 {
	if e.kind != expressionKindIndexInt {
		panic("indexInt on non-index expression")
	}
	return int64(e.bits)
}

// pc returns the index of the expression's instruction
// in the [Prototype] Code slice.
func (e expressionDescriptor) pc() int {
	switch e.kind {
	case expressionKindJump, expressionKindRelocatable, expressionKindCall, expressionKindVararg:
		return int(e.bits)
	default:
		panic("pc not supported on expression")
	}
}

type expressionKind int

const (
	// expressionKindVoid means an empty list (so, no expression)
	// when it describes the last expression of a list.
	expressionKindVoid expressionKind = iota
	// expressionKindNil is the constant nil.
	expressionKindNil
	// expressionKindTrue is the constant true.
	expressionKindTrue
	// expressionKindFalse is the constant false.
	expressionKindFalse
	// expressionKindConstant is a constant in the prototype's constant table.
	expressionKindConstant
	// expressionKindFloatConstant is a floating-point literal.
	expressionKindFloatConstant
	// expressionKindIntConstant is an integer literal.
	expressionKindIntConstant
	// expressionKindStringConstant is a string literal (fixed by the lexer).
	expressionKindStringConstant
	// expressionKindNonRelocatable is an expression with its value in a fixed register.
	expressionKindNonRelocatable
	// expressionKindLocal is a local variable.
	expressionKindLocal
	// expressionKindUpvalue is an upvalue variable.
	expressionKindUpvalue
	// expressionKindConstLocal is a compile-time <const> variable.
	expressionKindConstLocal
	// expressionKindIndexed is an indexed variable (table register + key register).
	expressionKindIndexed
	// expressionKindIndexUpvalue is an indexed upvalue (table upvalue + key constant).
	expressionKindIndexUpvalue
	// expressionKindIndexInt is an indexed variable with a constant integer key.
	expressionKindIndexInt
	// expressionKindIndexString is an indexed variable with a literal string key.
	expressionKindIndexString
	// expressionKindJump is a test/comparison; bits = pc of corresponding jump instruction.
	expressionKindJump
	// expressionKindRelocatable can put its result in any register; bits = instruction pc.
	expressionKindRelocatable
	// expressionKindCall is a function call; bits = instruction pc.
	expressionKindCall
	// expressionKindVararg is a vararg expression; bits = instruction pc.
	expressionKindVararg
)

func (k expressionKind) isCompileTimeConstant() bool {
	return expressionKindNil <= k && k <= expressionKindStringConstant
}

func (k expressionKind) isVar() bool {
	return expressionKindLocal <= k && k <= expressionKindIndexString
}

func (k expressionKind) isIndexed() bool {
	return expressionKindIndexed <= k && k <= expressionKindIndexString
}

func (k expressionKind) hasMultipleReturns() bool {
	return k == expressionKindCall || k == expressionKindVararg
}
