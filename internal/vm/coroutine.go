// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"errors"
	"sync/atomic"
)

// CoroutineLibraryName is the name of the table registered by [OpenCoroutine].
const CoroutineLibraryName = "coroutine"

// threadStatus tracks the state transitions described for coroutines:
// Ready/Running/Suspended/Normal/Dead (§4.4 of the language spec this
// package implements). A freshly created thread starts Suspended; it
// never observes a distinct "Ready" state because the first resume both
// starts and runs it.
type threadStatus int32

const (
	threadSuspended threadStatus = iota
	threadRunning
	threadNormal // resumed another coroutine; waiting for it to yield or return
	threadDead
)

func (s threadStatus) String() string {
	switch s {
	case threadSuspended:
		return "suspended"
	case threadRunning:
		return "running"
	case threadNormal:
		return "normal"
	case threadDead:
		return "dead"
	default:
		return "dead"
	}
}

// thread is the runtime representation of a Lua coroutine.
//
// Each thread owns a dedicated goroutine and its own [State] (value stack
// and call-frame stack), but shares its creator's registry -- and
// therefore its globals table -- so that ordinary global reads/writes are
// visible across coroutine boundaries exactly as they are in reference
// Lua. Handoff between the resumer and the coroutine is a synchronous,
// unbuffered channel round-trip in each direction, which mirrors the
// spec's requirement that "all transitions [are] serialized by
// resume/yield": at most one of the two goroutines is ever running Lua
// code at a time.
type thread struct {
	id    uint64
	state *State
	body  value

	started atomic.Bool
	status  atomic.Int32

	resumeCh chan []value
	yieldCh  chan coroutineOutcome
}

func (co *thread) valueType() Type { return TypeThread }

type coroutineOutcomeKind int

const (
	coroutineYielded coroutineOutcomeKind = iota
	coroutineReturned
	coroutineErrored
)

type coroutineOutcome struct {
	kind   coroutineOutcomeKind
	values []value
	err    error
}

// newThread creates a suspended coroutine that will invoke body when
// first resumed. parent supplies the shared registry/globals.
func newThread(parent *State, body value) *thread {
	co := &thread{
		id:       nextID(),
		body:     body,
		resumeCh: make(chan []value),
		yieldCh:  make(chan coroutineOutcome),
	}
	co.state = &State{registry: parent.registry, thread: co}
	co.state.init()
	co.status.Store(int32(threadSuspended))
	return co
}

func (co *thread) getStatus() threadStatus {
	return threadStatus(co.status.Load())
}

// resume transfers control to co, passing args as either the initial
// call arguments (on the first resume) or coroutine.yield's return
// values (on subsequent resumes). It blocks until co yields, returns, or
// errors.
func (co *thread) resume(args []value) (results []value, yielded bool, err error) {
	switch co.getStatus() {
	case threadDead:
		return nil, false, errors.New("cannot resume dead coroutine")
	case threadRunning, threadNormal:
		return nil, false, errors.New("cannot resume non-suspended coroutine")
	}

	co.status.Store(int32(threadRunning))
	if co.started.CompareAndSwap(false, true) {
		go co.run(args)
	} else {
		co.resumeCh <- args
	}

	outcome := <-co.yieldCh
	switch outcome.kind {
	case coroutineYielded:
		co.status.Store(int32(threadSuspended))
		return outcome.values, true, nil
	case coroutineErrored:
		co.status.Store(int32(threadDead))
		return nil, false, outcome.err
	default:
		co.status.Store(int32(threadDead))
		return outcome.values, false, nil
	}
}

// run is the body of the goroutine backing co. It only ever executes
// between a resume send and the matching yieldCh receive, so it never
// races with co.state's owner.
func (co *thread) run(args []value) {
	results, err := co.state.callAll(co.body, args...)
	if err != nil {
		co.yieldCh <- coroutineOutcome{kind: coroutineErrored, err: err}
		return
	}
	co.yieldCh <- coroutineOutcome{kind: coroutineReturned, values: results}
}

// yield suspends the coroutine l is executing on, handing values back to
// whoever called resume, and blocks until the coroutine is resumed again.
//
// Unlike reference Lua, which cannot yield across a call into C code
// without full one-shot continuations (see spec's Open Questions), this
// implementation can: a Go-implemented library function that calls back
// into Lua (and from there into coroutine.yield) is just another stack
// frame on this coroutine's own goroutine, so blocking it on yieldCh
// costs nothing and unblocks correctly on the next resume.
func (l *State) yield(args []value) ([]value, error) {
	co := l.thread
	if co == nil {
		return nil, errors.New("attempt to yield from outside a coroutine")
	}
	co.yieldCh <- coroutineOutcome{kind: coroutineYielded, values: args}
	resumed := <-co.resumeCh
	return resumed, nil
}

// OpenCoroutine loads the standard coroutine library.
// This function is intended to be used as an argument to [Require].
func OpenCoroutine(l *State) (int, error) {
	funcs := map[string]Function{
		"create":      coroutineCreate,
		"resume":      coroutineResume,
		"yield":       coroutineYieldFn,
		"status":      coroutineStatusFn,
		"isyieldable": coroutineIsYieldable,
		"running":     coroutineRunning,
		"wrap":        coroutineWrap,
		"close":       coroutineClose,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

func argsFrom(l *State, first int) ([]value, error) {
	n := l.Top()
	args := make([]value, 0, max(0, n-first+1))
	for i := first; i <= n; i++ {
		v, _, err := l.valueByIndex(i)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func coroutineCreate(l *State) (int, error) {
	if l.Type(1) != TypeFunction {
		return 0, NewTypeError(l, 1, TypeFunction.String())
	}
	body, _, err := l.valueByIndex(1)
	if err != nil {
		return 0, err
	}
	co := newThread(l, body)
	l.push(co)
	return 1, nil
}

func checkThread(l *State, arg int) (*thread, error) {
	v, _, err := l.valueByIndex(arg)
	if err != nil {
		return nil, err
	}
	co, ok := v.(*thread)
	if !ok {
		return nil, NewTypeError(l, arg, "thread")
	}
	return co, nil
}

func coroutineResume(l *State) (int, error) {
	co, err := checkThread(l, 1)
	if err != nil {
		return 0, err
	}
	args, err := argsFrom(l, 2)
	if err != nil {
		return 0, err
	}
	results, _, resumeErr := co.resume(args)
	if resumeErr != nil {
		l.PushBoolean(false)
		l.push(errorToValue(resumeErr))
		return 2, nil
	}
	l.PushBoolean(true)
	for _, v := range results {
		l.push(v)
	}
	return 1 + len(results), nil
}

func coroutineYieldFn(l *State) (int, error) {
	args, err := argsFrom(l, 1)
	if err != nil {
		return 0, err
	}
	results, err := l.yield(args)
	if err != nil {
		return 0, err
	}
	for _, v := range results {
		l.push(v)
	}
	return len(results), nil
}

func coroutineStatusFn(l *State) (int, error) {
	co, err := checkThread(l, 1)
	if err != nil {
		return 0, err
	}
	status := co.getStatus()
	if co == l.thread {
		status = threadRunning
	}
	l.PushString(status.String())
	return 1, nil
}

func coroutineIsYieldable(l *State) (int, error) {
	l.PushBoolean(l.thread != nil)
	return 1, nil
}

func coroutineRunning(l *State) (int, error) {
	if l.thread == nil {
		// The main coroutine has no [*thread] value of its own.
		l.PushNil()
		l.PushBoolean(true)
		return 2, nil
	}
	l.push(l.thread)
	l.PushBoolean(false)
	return 2, nil
}

func coroutineWrap(l *State) (int, error) {
	if l.Type(1) != TypeFunction {
		return 0, NewTypeError(l, 1, TypeFunction.String())
	}
	body, _, err := l.valueByIndex(1)
	if err != nil {
		return 0, err
	}
	co := newThread(l, body)
	l.PushClosure(0, func(l *State) (int, error) {
		args, err := argsFrom(l, 1)
		if err != nil {
			return 0, err
		}
		results, _, err := co.resume(args)
		if err != nil {
			return 0, err
		}
		for _, v := range results {
			l.push(v)
		}
		return len(results), nil
	})
	return 1, nil
}

// coroutineClose implements coroutine.close: it forces a suspended or
// dead coroutine to become dead, running any pending to-be-closed
// variables' "__close" metamethods. Running or normal coroutines cannot
// be closed.
func coroutineClose(l *State) (int, error) {
	co, err := checkThread(l, 1)
	if err != nil {
		return 0, err
	}
	switch co.getStatus() {
	case threadRunning, threadNormal:
		return 0, errors.New("cannot close a running coroutine")
	}
	closeErr := co.state.closeTBCSlots(0, false, nil)
	co.status.Store(int32(threadDead))
	if closeErr != nil {
		l.PushBoolean(false)
		l.push(errorToValue(closeErr))
		return 2, nil
	}
	l.PushBoolean(true)
	return 1, nil
}
