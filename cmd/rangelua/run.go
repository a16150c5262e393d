// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"github.com/spf13/cobra"

	"rangelua.dev/rangelua/internal/luacode"
	lua "rangelua.dev/rangelua/internal/vm"
)

type runOptions struct {
	scriptFile string
	scriptArgs []string
}

func newRunCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "run FILE [ARGS...]",
		Short:                 "run a Lua chunk (source or bytecode)",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts := &runOptions{scriptFile: args[0], scriptArgs: args[1:]}
		return runRun(cmd, g, opts)
	}
	return c
}

func runRun(cmd *cobra.Command, g *globalConfig, opts *runOptions) error {
	f, err := os.Open(opts.scriptFile)
	if err != nil {
		return ioError(err)
	}
	defer f.Close()

	state := new(lua.State)
	defer state.Close()
	if err := lua.OpenLibraries(state); err != nil {
		return runtimeError(err)
	}

	if err := state.Load(f, luacode.FilenameSource(opts.scriptFile), "bt"); err != nil {
		return compileError(err)
	}

	for _, a := range opts.scriptArgs {
		state.PushString(a)
	}
	if err := state.Call(len(opts.scriptArgs), 0, 0); err != nil {
		return runtimeError(err)
	}

	return nil
}
