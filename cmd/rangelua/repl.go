// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rangelua.dev/rangelua/internal/rlog"
	lua "rangelua.dev/rangelua/internal/vm"
)

func newREPLCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "repl",
		Short:                 "start an interactive read-eval-print loop",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd)
	}
	return c
}

// runREPL reads statements or expressions from stdin one at a time,
// evaluating each in a State shared across the whole session so that
// globals assigned on one line are visible on later lines. Each line is
// loaded as its own chunk, so a "local" declared on one line does not
// persist to the next. An input that fails to parse as a bare expression
// is retried as a chunk.
func runREPL(cmd *cobra.Command) error {
	state := new(lua.State)
	defer state.Close()
	if err := lua.OpenLibraries(state); err != nil {
		return runtimeError(err)
	}

	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := evalLine(state, line, out); err != nil {
			fmt.Fprintln(out, err)
			rlog.Errorf(context.Background(), "%v", err)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return ioError(err)
	}
	return nil
}

// evalLine evaluates one line of input, printing its results the way
// the standalone Lua interpreter's REPL echoes an expression's value
// when the line parses as "return <expr>".
func evalLine(state *lua.State, line string, out io.Writer) error {
	top := state.Top()
	if err := state.Load(strings.NewReader("return "+line), "=stdin", "t"); err != nil {
		if err := state.Load(strings.NewReader(line), "=stdin", "t"); err != nil {
			return err
		}
	}
	if err := state.Call(0, lua.MultipleReturns, 0); err != nil {
		return err
	}
	for i := top + 1; i <= state.Top(); i++ {
		s, _ := lua.ToString(state, i)
		fmt.Fprintln(out, s)
	}
	state.SetTop(top)
	return nil
}
