// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rangelua.dev/rangelua/internal/luacode"
	"rangelua.dev/rangelua/internal/parser"
)

type dumpOptions struct {
	inputFile string
	full      bool
}

func newDumpCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "dump FILE",
		Short:                 "disassemble a Lua chunk (source or bytecode)",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(dumpOptions)
	c.Flags().BoolVarP(&opts.full, "full", "f", false, "also list constants, locals, and upvalues")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputFile = args[0]
		return runDump(cmd, opts)
	}
	return c
}

func runDump(cmd *cobra.Command, opts *dumpOptions) error {
	f, err := os.Open(opts.inputFile)
	if err != nil {
		return ioError(err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var proto *luacode.Prototype
	if header, _ := br.Peek(len(luacode.Signature)); string(header) == luacode.Signature {
		data, err := io.ReadAll(br)
		if err != nil {
			return ioError(err)
		}
		proto = new(luacode.Prototype)
		if err := proto.UnmarshalBinary(data); err != nil {
			return compileError(err)
		}
	} else {
		program, err := parser.Parse(br, opts.inputFile)
		if err != nil {
			return compileError(err)
		}
		proto, err = luacode.Generate(program)
		if err != nil {
			return compileError(err)
		}
		proto.Source = luacode.FilenameSource(opts.inputFile)
	}

	w := cmd.OutOrStdout()
	names := prototypeNames(proto)
	return dumpPrototype(w, proto, names, opts.full)
}

// prototypeNames assigns each prototype in the tree rooted at top a
// display name ("main", "F[2]", "F[2][0]", ...) for use in the listing,
// the way function headers are labeled in a luac-style disassembly.
func prototypeNames(top *luacode.Prototype) map[*luacode.Prototype]string {
	names := make(map[*luacode.Prototype]string)
	var walk func(f *luacode.Prototype, name string)
	walk = func(f *luacode.Prototype, name string) {
		names[f] = name
		for i, child := range f.Functions {
			walk(child, fmt.Sprintf("%s[%d]", name, i))
		}
	}
	if top.IsMainChunk() {
		walk(top, "main")
	} else {
		walk(top, "F")
	}
	return names
}

func dumpPrototype(w io.Writer, f *luacode.Prototype, names map[*luacode.Prototype]string, full bool) error {
	source := "(string)"
	if s, ok := f.Source.Abstract(); ok && s != "" {
		source = s
	} else if s, ok := f.Source.Filename(); ok && s != "" {
		source = s
	}

	kind := "function"
	if f.IsMainChunk() {
		kind = "main chunk"
	}
	fmt.Fprintf(w, "\n%s %s <%s:%d,%d> (%d instructions)\n",
		kind, names[f], source, f.LineDefined, f.LastLineDefined, len(f.Code))
	vararg := ""
	if f.IsVararg {
		vararg = "+"
	}
	fmt.Fprintf(w, "%d%s params, %d slots, %d upvalues, %d locals, %d constants, %d functions\n",
		f.NumParams, vararg, f.MaxStackSize, len(f.Upvalues), len(f.LocalVariables), len(f.Constants), len(f.Functions))

	for pc, instr := range f.Code {
		line := "-"
		if pc < f.LineInfo.Len() {
			line = fmt.Sprintf("%d", f.LineInfo.At(pc))
		}
		fmt.Fprintf(w, "\t%d\t[%s]\t%s%s\n", pc+1, line, instr, annotate(f, names, instr, pc))
	}

	if full {
		dumpConstants(w, f)
		dumpLocals(w, f)
		dumpUpvalues(w, f)
	}

	for _, child := range f.Functions {
		if err := dumpPrototype(w, child, names, full); err != nil {
			return err
		}
	}
	return nil
}

// annotate renders the trailing "; comment" luac prints for instructions
// whose operand indexes into the constant or function table.
func annotate(f *luacode.Prototype, names map[*luacode.Prototype]string, instr luacode.Instruction, pc int) string {
	switch instr.OpCode() {
	case luacode.OpLoadK:
		if bx := instr.ArgBx(); int(bx) < len(f.Constants) {
			return fmt.Sprintf("\t; %v", f.Constants[bx])
		}
	case luacode.OpEQK:
		if b := instr.ArgB(); int(b) < len(f.Constants) {
			return fmt.Sprintf("\t; %v", f.Constants[b])
		}
	case luacode.OpGetField:
		if c := instr.ArgC(); int(c) < len(f.Constants) {
			return fmt.Sprintf("\t; %v", f.Constants[c])
		}
	case luacode.OpSetField:
		if b := instr.ArgB(); int(b) < len(f.Constants) {
			s := fmt.Sprintf("\t; %v", f.Constants[b])
			if c := instr.ArgC(); instr.K() && int(c) < len(f.Constants) {
				s += fmt.Sprintf(" %v", f.Constants[c])
			}
			return s
		}
	case luacode.OpClosure:
		if bx := instr.ArgBx(); int(bx) < len(f.Functions) {
			return fmt.Sprintf("\t; %s", names[f.Functions[bx]])
		}
	case luacode.OpJMP:
		return fmt.Sprintf("\t; to %d", pc+2+int(instr.J()))
	}
	return ""
}

func dumpConstants(w io.Writer, f *luacode.Prototype) {
	fmt.Fprintf(w, "constants (%d):\n", len(f.Constants))
	for i, k := range f.Constants {
		fmt.Fprintf(w, "\t%d\t%s\t%s\n", i, constantKind(k), k)
	}
}

func constantKind(k luacode.Value) string {
	switch {
	case k.IsInteger():
		return "int"
	case k.IsNumber():
		return "float"
	default:
		return k.TypeName()
	}
}

func dumpLocals(w io.Writer, f *luacode.Prototype) {
	fmt.Fprintf(w, "locals (%d):\n", len(f.LocalVariables))
	for i, v := range f.LocalVariables {
		fmt.Fprintf(w, "\t%d\t%s\t%d\t%d\n", i, v.Name, v.StartPC, v.EndPC)
	}
}

func dumpUpvalues(w io.Writer, f *luacode.Prototype) {
	fmt.Fprintf(w, "upvalues (%d):\n", len(f.Upvalues))
	for i, uv := range f.Upvalues {
		fmt.Fprintf(w, "\t%d\t%s\tin-stack=%v\t%d\n", i, strings.TrimSpace(uv.Name), uv.InStack, uv.Index)
	}
}
