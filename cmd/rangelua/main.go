// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

// Command rangelua is the reference CLI front end for the language core
// implemented by this module: it loads, runs, compiles, and disassembles
// Lua chunks against the internal/vm interpreter.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	"rangelua.dev/rangelua/internal/rconfig"
	"rangelua.dev/rangelua/internal/rlog"
)

// Exit codes, per the language spec's CLI surface.
const (
	exitSuccess      = 0
	exitCompileError = 1
	exitRuntimeError = 2
	exitIOError      = 3
)

type globalConfig struct {
	logLevel string
	cfg      *rconfig.Config
}

var initLogOnce sync.Once

func initLogging(level string) {
	initLogOnce.Do(func() {
		rlog.Init(rlog.ParseLevel(level))
	})
}

func main() {
	rootCommand := &cobra.Command{
		Use:           "rangelua",
		Short:         "a Lua 5.5 language core",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := &globalConfig{logLevel: os.Getenv("RANGELUA_LOG_LEVEL")}
	rootCommand.PersistentFlags().StringVar(&g.logLevel, "log-level", g.logLevel,
		"minimum log level: off, error, warn, info, debug, trace")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(g.logLevel)
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err := rconfig.Load(dir)
		if err != nil {
			return err
		}
		g.cfg = cfg
		return nil
	}

	rootCommand.AddCommand(
		newRunCommand(g),
		newCompileCommand(g),
		newDumpCommand(g),
		newREPLCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), interruptSignals...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err == nil {
		return
	}

	initLogging(g.logLevel)
	log.Errorf(context.Background(), "%v", err)
	if code, ok := err.(exitCoder); ok {
		os.Exit(code.ExitCode())
	}
	os.Exit(exitRuntimeError)
}

// exitCoder is implemented by errors that carry a specific process exit
// code, so that the three failure modes the CLI distinguishes (compile
// error, uncaught runtime error, file I/O error) survive the trip back up
// through cobra's generic RunE signature.
type exitCoder interface {
	error
	ExitCode() int
}

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }
func (e *cliError) ExitCode() int { return e.code }

func ioError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitIOError, err: err}
}

func compileError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitCompileError, err: err}
}

func runtimeError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitRuntimeError, err: err}
}
