// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import "testing"

func TestValueUnquoted(t *testing.T) {
	tests := []struct {
		value    Value
		want     string
		isString bool
	}{
		{Value{}, "", false},
		{BoolValue(false), "", false},
		{BoolValue(true), "", false},
		{IntegerValue(42), "42", false},
		{FloatValue(42), "42.0", false},
		{FloatValue(3.14), "3.14", false},
		{StringValue(""), "", true},
		{StringValue("abc"), "abc", true},
	}

	for _, test := range tests {
		got, isString := test.value.Unquoted()
		if got != test.want || isString != test.isString {
			t.Errorf("%v.Unquoted() = %q, %t; want %q, %t", test.value, got, isString, test.want, test.isString)
		}
	}
}

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Value{}, "nil"},
		{BoolValue(false), "boolean"},
		{BoolValue(true), "boolean"},
		{IntegerValue(42), "number"},
		{FloatValue(3.14), "number"},
		{StringValue("abc"), "string"},
	}

	for _, test := range tests {
		if got := test.value.TypeName(); got != test.want {
			t.Errorf("%v.TypeName() = %q; want %q", test.value, got, test.want)
		}
	}
}
