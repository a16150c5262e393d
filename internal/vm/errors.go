// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"errors"
	"fmt"

	"rangelua.dev/rangelua/internal/luacode"
)

// sourceLocation formats the "source:line" prefix used throughout the
// dispatch loop's runtime error messages (§7: every runtime error
// "carries the source location of the current instruction"), given the
// prototype executing the failing instruction and that instruction's
// program counter.
func sourceLocation(proto *luacode.Prototype, pc int) string {
	return fmt.Sprintf("%v:%d", proto.Source, proto.LineInfo.At(pc))
}

// functionLocation formats the "source:line" location of a function's
// own definition, used for errors that are not attributable to a single
// instruction (e.g. malformed jump targets discovered before dispatch).
func functionLocation(proto *luacode.Prototype) string {
	return fmt.Sprintf("%v:%d", proto.Source, proto.LineDefined)
}

// errorToValue converts a Go error to a Lua [value].
// If there is an [errorObject] in the error chain,
// then errorToValue returns its value.
// errorToValue(nil) returns nil.
func errorToValue(err error) value {
	if err == nil {
		return nil
	}
	if obj := (errorObject{}); errors.As(err, &obj) {
		return obj.value
	}
	// TODO(maybe): Use a userdata instead (so errors can be round-tripped)?
	return stringValue{s: err.Error()}
}

// errorObject wraps a [value] as an [error].
type errorObject struct {
	value value
}

func (obj errorObject) Error() string {
	if obj.value == nil {
		return "<lua nil>"
	}
	s, ok := toString(obj.value)
	if !ok {
		return "<" + obj.value.valueType().String() + ">"
	}
	return s.s
}
