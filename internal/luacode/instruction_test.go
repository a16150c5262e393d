// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import "testing"

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		op   OpCode
		want string
	}{
		{OpMove, "MOVE"},
		{OpLoadK, "LOADK"},
		{OpClosure, "CLOSURE"},
		{OpExtraArg, "EXTRAARG"},
		{maxOpCode + 1, "OpCode(83)"},
	}
	for _, test := range tests {
		if got := test.op.String(); got != test.want {
			t.Errorf("%d.String() = %q; want %q", test.op, got, test.want)
		}
	}

	// Check for exhaustiveness: every defined opcode should have a name.
	for op := OpCode(0); op <= maxOpCode; op++ {
		if got := op.String(); got == "" {
			t.Errorf("OpCode(%d).String() is empty", op)
		}
	}
}

func TestOpModeString(t *testing.T) {
	tests := []struct {
		m    OpMode
		want string
	}{
		{OpModeABC, "ABC"},
		{OpModeABx, "ABx"},
		{OpModeAsBx, "AsBx"},
		{OpModeAx, "Ax"},
		{OpModeJ, "J"},
		{OpMode(0), "OpMode(0)"},
	}
	for _, test := range tests {
		if got := test.m.String(); got != test.want {
			t.Errorf("%d.String() = %q; want %q", test.m, got, test.want)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		name   string
		instr  Instruction
		wantOp string
	}{
		{"ABC", ABCInstruction(OpAdd, 1, 2, 3, false), "ADD"},
		{"ABx", ABxInstruction(OpLoadK, 0, 5), "LOADK"},
		{"AsBx", ABxInstruction(OpLoadI, 0, -1), "LOADI"},
		{"Ax", ExtraArgument(12345), "EXTRAARG"},
		{"J", JInstruction(OpJMP, 3), "JMP"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := test.instr.String()
			if len(got) < len(test.wantOp) || got[:len(test.wantOp)] != test.wantOp {
				t.Errorf("%v.String() = %q; want prefix %q", test.instr, got, test.wantOp)
			}
		})
	}
}

func TestOpCodeIsValid(t *testing.T) {
	if !OpMove.IsValid() {
		t.Error("OpMove.IsValid() = false; want true")
	}
	if !maxOpCode.IsValid() {
		t.Error("maxOpCode.IsValid() = false; want true")
	}
	if (maxOpCode + 1).IsValid() {
		t.Error("(maxOpCode+1).IsValid() = true; want false")
	}
}
