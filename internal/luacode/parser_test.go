// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"testing"

	"rangelua.dev/rangelua/internal/parser"
)

// TestGenerate exercises [Generate] over a handful of parsed chunks,
// checking coarse properties of the resulting [Prototype] rather than
// an exact instruction-by-instruction dump: the code generator is free
// to change its emitted instruction sequence as it evolves, but the
// shape of the compiled prototype (arity, varargness, nested closures,
// constant pool) should not.
func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		numParams uint8
		isVararg  bool
		numNested int
		wantErr   bool
	}{
		{
			name:      "Empty",
			source:    "",
			numParams: 0,
			isVararg:  true,
		},
		{
			name:      "ReturnLiteral",
			source:    "return 1",
			numParams: 0,
			isVararg:  true,
		},
		{
			name:      "Varargs",
			source:    "return ...",
			numParams: 0,
			isVararg:  true,
		},
		{
			name:      "NestedFunction",
			source:    "local function f(x, y) return x + y end\nreturn f",
			numParams: 0,
			isVararg:  true,
			numNested: 1,
		},
		{
			name:      "TwoNestedFunctions",
			source:    "local function f() end\nlocal function g() end\nreturn f, g",
			numParams: 0,
			isVararg:  true,
			numNested: 2,
		},
		{
			name:    "SyntaxError",
			source:  "local function (",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			program, err := parser.ParseString(test.source, "=(test)")
			if err != nil {
				if test.wantErr {
					return
				}
				t.Fatalf("parser.ParseString: %v", err)
			}

			got, err := Generate(program)
			if test.wantErr {
				if err == nil {
					t.Fatal("Generate did not report a syntax error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			if got.NumParams != test.numParams {
				t.Errorf("NumParams = %d; want %d", got.NumParams, test.numParams)
			}
			if got.IsVararg != test.isVararg {
				t.Errorf("IsVararg = %t; want %t", got.IsVararg, test.isVararg)
			}
			if len(got.Functions) != test.numNested {
				t.Errorf("len(Functions) = %d; want %d", len(got.Functions), test.numNested)
			}
			if len(got.Code) == 0 {
				t.Error("Code is empty")
			}
		})
	}
}

// TestMaxRegistersFitsFormat checks the register cap against the
// 8-bit A/B/C operand fields the instruction encoding reserves for
// register operands (§4.2): RangeLua has no separate local-variable
// limit distinct from the register cap, since every local occupies
// exactly one register for its lifetime.
func TestMaxRegistersFitsFormat(t *testing.T) {
	const fieldWidth = 1 << 8
	if maxRegisters >= fieldWidth {
		t.Errorf("maxRegisters = %d; want <%d to fit an 8-bit operand field", maxRegisters, fieldWidth)
	}
}
