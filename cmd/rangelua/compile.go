// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"rangelua.dev/rangelua/internal/luacode"
	"rangelua.dev/rangelua/internal/parser"
)

type compileOptions struct {
	inputFile  string
	outputFile string
	stripDebug bool
	sourceName string
}

func newCompileCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "compile FILE",
		Short:                 "compile a Lua source file to bytecode",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(compileOptions)
	c.Flags().StringVarP(&opts.outputFile, "output", "o", "", "output `filename` (default: input with .luac suffix)")
	c.Flags().BoolVarP(&opts.stripDebug, "strip-debug", "s", false, "strip debug information")
	c.Flags().StringVar(&opts.sourceName, "source", "", "source `name` to record instead of the filename")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputFile = args[0]
		if opts.outputFile == "" {
			opts.outputFile = opts.inputFile + "c"
		}
		return runCompile(opts)
	}
	return c
}

func runCompile(opts *compileOptions) error {
	f, err := os.Open(opts.inputFile)
	if err != nil {
		return ioError(err)
	}
	defer f.Close()

	source := luacode.FilenameSource(opts.inputFile)
	if opts.sourceName != "" {
		source = luacode.Source(opts.sourceName)
	}

	program, err := parser.Parse(bufio.NewReader(f), opts.inputFile)
	if err != nil {
		return compileError(err)
	}
	proto, err := luacode.Generate(program)
	if err != nil {
		return compileError(err)
	}
	proto.Source = source
	if opts.stripDebug {
		proto = proto.StripDebug()
	}

	out, err := proto.MarshalBinary()
	if err != nil {
		return compileError(err)
	}
	if err := os.WriteFile(opts.outputFile, out, 0o666); err != nil {
		return ioError(err)
	}
	return nil
}
