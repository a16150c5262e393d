// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import "strconv"

// TagMethod is an enumeration of built-in metamethods.
type TagMethod uint8

// Metamethods.
const (
	TagMethodIndex    TagMethod = 0 // __index
	TagMethodNewIndex TagMethod = 1 // __newindex
	TagMethodGC       TagMethod = 2 // __gc
	TagMethodMode     TagMethod = 3 // __mode
	TagMethodLen      TagMethod = 4 // __len
	// TagMethodEQ is the equality (==) operation.
	// TagMethodEQ is the last tag method with fast access.
	TagMethodEQ TagMethod = 5 // __eq

	TagMethodAdd    TagMethod = 6  // __add
	TagMethodSub    TagMethod = 7  // __sub
	TagMethodMul    TagMethod = 8  // __mul
	TagMethodMod    TagMethod = 9  // __mod
	TagMethodPow    TagMethod = 10 // __pow
	TagMethodDiv    TagMethod = 11 // __div
	TagMethodIDiv   TagMethod = 12 // __idiv
	TagMethodBAnd   TagMethod = 13 // __band
	TagMethodBOr    TagMethod = 14 // __bor
	TagMethodBXOR   TagMethod = 15 // __bxor
	TagMethodSHL    TagMethod = 16 // __shl
	TagMethodSHR    TagMethod = 17 // __shr
	TagMethodUNM    TagMethod = 18 // __unm
	TagMethodBNot   TagMethod = 19 // __bnot
	TagMethodLT     TagMethod = 20 // __lt
	TagMethodLE     TagMethod = 21 // __le
	TagMethodConcat TagMethod = 22 // __concat
	TagMethodCall   TagMethod = 23 // __call
	TagMethodClose  TagMethod = 24 // __close

	numTagMethods = 25
)

// tagMethodNames holds the event names used by runtime error messages
// (e.g. "attempt to call a nil value") and by metatable lookups.
// Generated via stringer in the upstream implementation; RangeLua
// maintains the table by hand since the field names double as the
// __-prefixed identifiers Lua scripts use in metatables.
var tagMethodNames = [numTagMethods]string{
	TagMethodIndex:    "__index",
	TagMethodNewIndex: "__newindex",
	TagMethodGC:       "__gc",
	TagMethodMode:     "__mode",
	TagMethodLen:      "__len",
	TagMethodEQ:       "__eq",
	TagMethodAdd:      "__add",
	TagMethodSub:      "__sub",
	TagMethodMul:      "__mul",
	TagMethodMod:      "__mod",
	TagMethodPow:      "__pow",
	TagMethodDiv:      "__div",
	TagMethodIDiv:     "__idiv",
	TagMethodBAnd:     "__band",
	TagMethodBOr:      "__bor",
	TagMethodBXOR:     "__bxor",
	TagMethodSHL:      "__shl",
	TagMethodSHR:      "__shr",
	TagMethodUNM:      "__unm",
	TagMethodBNot:     "__bnot",
	TagMethodLT:       "__lt",
	TagMethodLE:       "__le",
	TagMethodConcat:   "__concat",
	TagMethodCall:     "__call",
	TagMethodClose:    "__close",
}

// String returns the metamethod's field name, e.g. "__index".
func (tm TagMethod) String() string {
	if int(tm) < 0 || int(tm) >= len(tagMethodNames) {
		return "TagMethod(" + strconv.Itoa(int(tm)) + ")"
	}
	return tagMethodNames[tm]
}

// TagMethodByName returns the tag method whose field name is s
// (e.g. "__index"), and reports whether one was found.
// It is used when resolving a metatable field access to the
// corresponding event for error reporting and fast-path dispatch.
func TagMethodByName(s string) (_ TagMethod, ok bool) {
	for tm, name := range tagMethodNames {
		if name == s {
			return TagMethod(tm), true
		}
	}
	return 0, false
}

// ArithmeticOperator returns the [ArithmeticOperator]
// that the metamethod represents (if applicable).
func (tm TagMethod) ArithmeticOperator() (_ ArithmeticOperator, ok bool) {
	for opMinusOne, opTM := range operatorTagMethods {
		if opTM == tm {
			return ArithmeticOperator(opMinusOne + 1), true
		}
	}
	return 0, false
}

var operatorTagMethods = [numArithmeticOperators]TagMethod{
	Add - 1:           TagMethodAdd,
	Subtract - 1:      TagMethodSub,
	Multiply - 1:      TagMethodMul,
	Modulo - 1:        TagMethodMod,
	Power - 1:         TagMethodPow,
	Divide - 1:        TagMethodDiv,
	IntegerDivide - 1: TagMethodIDiv,
	BitwiseAnd - 1:    TagMethodBAnd,
	BitwiseOr - 1:     TagMethodBOr,
	BitwiseXOR - 1:    TagMethodBXOR,
	ShiftLeft - 1:     TagMethodSHL,
	ShiftRight - 1:    TagMethodSHR,
	UnaryMinus - 1:    TagMethodUNM,
	BitwiseNot - 1:    TagMethodBNot,
}
