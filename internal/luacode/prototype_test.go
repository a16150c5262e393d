// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"rangelua.dev/rangelua/internal/parser"
)

var prototypeDiffOptions = cmp.Options{
	cmp.AllowUnexported(LineInfo{}),
	cmp.AllowUnexported(absLineInfo{}),
	cmpopts.EquateEmpty(),
}

// fuzzSeedSources are short, syntactically varied Lua chunks compiled
// to seed [FuzzPrototypeMarshalBinary]'s corpus. They exist to give the
// fuzzer prototypes with nested functions, upvalues, and constants of
// every kind rather than relying on a fixture directory of prerecorded
// reference-Lua bytecode.
var fuzzSeedSources = []string{
	"",
	"return 1",
	"local a, b = 1, 2.5\nreturn a + b",
	"local function f(x) return x * 2 end\nreturn f(21)",
	`local t = {1, 2, x = "hi"}
	local function closure()
		t.x = t.x .. "!"
		return t
	end
	return closure`,
	"for i = 1, 10 do print(i) end",
}

func FuzzPrototypeMarshalBinary(f *testing.F) {
	for _, src := range fuzzSeedSources {
		program, err := parser.ParseString(src, "=seed")
		if err != nil {
			f.Fatal(err)
		}
		proto, err := Generate(program)
		if err != nil {
			f.Fatal(err)
		}
		chunk, err := proto.MarshalBinary()
		if err != nil {
			f.Fatal(err)
		}
		f.Add(chunk)
	}

	f.Fuzz(func(t *testing.T, chunk []byte) {
		want := new(Prototype)
		if err := want.UnmarshalBinary(chunk); err != nil {
			t.Skip(err)
		}
		data, err := want.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		got := new(Prototype)
		if err := got.UnmarshalBinary(data); err != nil {
			t.Error(err)
		}
		if diff := cmp.Diff(want, got, prototypeDiffOptions); diff != "" {
			t.Errorf("-want +got:\n%s", diff)
		}
	})
}

func TestLocalName(t *testing.T) {
	// Three overlapping local variables, hand-built rather than compiled:
	// register 0 ("a") lives for the whole function, register 1 ("b")
	// only spans instructions [2, 5), and register 1 is reused by "c"
	// for [5, 9) once "b" goes out of scope.
	p := &Prototype{
		LocalVariables: []LocalVariable{
			{Name: "a", StartPC: 0, EndPC: 9},
			{Name: "b", StartPC: 2, EndPC: 5},
			{Name: "c", StartPC: 5, EndPC: 9},
		},
	}

	tests := []struct {
		register uint8
		pc       int
		want     string
	}{
		{pc: 0, register: 0, want: "a"},
		{pc: 0, register: 1, want: ""},

		{pc: 1, register: 0, want: "a"},
		{pc: 1, register: 1, want: ""},

		{pc: 2, register: 0, want: "a"},
		{pc: 2, register: 1, want: "b"},
		{pc: 2, register: 2, want: ""},

		{pc: 4, register: 0, want: "a"},
		{pc: 4, register: 1, want: "b"},

		{pc: 5, register: 0, want: "a"},
		{pc: 5, register: 1, want: "c"},
		{pc: 5, register: 2, want: ""},

		{pc: 8, register: 0, want: "a"},
		{pc: 8, register: 1, want: "c"},

		{pc: 9, register: 0, want: ""},
		{pc: 9, register: 1, want: ""},
	}

	for _, test := range tests {
		if got := p.LocalName(test.register, test.pc); got != test.want {
			t.Errorf("p.LocalName(%d, %d) = %q; want %q", test.register, test.pc, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, src := range fuzzSeedSources {
		program, err := parser.ParseString(src, "=seed")
		if err != nil {
			t.Fatal(err)
		}
		proto, err := Generate(program)
		if err != nil {
			t.Fatal(err)
		}
		if err := proto.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v; want nil", src, err)
		}
	}

	t.Run("BadOpcode", func(t *testing.T) {
		p := &Prototype{Code: []Instruction{Instruction(maxOpCode + 1)}}
		if err := p.Validate(); err == nil {
			t.Error("Validate() = nil; want error")
		}
	})

	t.Run("ConstantIndexOutOfRange", func(t *testing.T) {
		p := &Prototype{Code: []Instruction{ABxInstruction(OpLoadK, 0, 0)}}
		if err := p.Validate(); err == nil {
			t.Error("Validate() = nil; want error")
		}
	})

	t.Run("JumpOutOfRange", func(t *testing.T) {
		p := &Prototype{Code: []Instruction{JInstruction(OpJMP, -5)}}
		if err := p.Validate(); err == nil {
			t.Error("Validate() = nil; want error")
		}
	})

	t.Run("ClosureIndexOutOfRange", func(t *testing.T) {
		p := &Prototype{Code: []Instruction{ABxInstruction(OpClosure, 0, 0)}}
		if err := p.Validate(); err == nil {
			t.Error("Validate() = nil; want error")
		}
	})

	t.Run("NestedFunction", func(t *testing.T) {
		p := &Prototype{
			Code: []Instruction{ABxInstruction(OpClosure, 0, 0)},
			Functions: []*Prototype{
				{Code: []Instruction{JInstruction(OpJMP, 100)}},
			},
		}
		if err := p.Validate(); err == nil {
			t.Error("Validate() = nil; want error (nested function has bad jump)")
		}
	})
}
