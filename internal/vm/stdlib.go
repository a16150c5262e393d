// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package vm

// OpenLibraries opens the libraries specified by this package's contract
// (§6 of the language spec this package implements: the core owns the
// base and coroutine libraries; math/string/table/os/io are standard
// libraries whose *implementations* are an external collaborator -- only
// their interface to the VM, i.e. that they are ordinary [Function]
// values registered the same way, is specified here).
//
// Host programs that need the full standard library install their own
// math/string/table/os/io openers with [Require] the same way; see
// [NewOpenBase] and [OpenCoroutine] for the pattern to follow.
func OpenLibraries(l *State) error {
	libs := []struct {
		name  string
		openf Function
	}{
		{GName, NewOpenBase(nil)},
		{CoroutineLibraryName, OpenCoroutine},
	}
	for _, lib := range libs {
		if err := Require(l, lib.name, true, lib.openf); err != nil {
			return err
		}
		l.Pop(1)
	}
	return nil
}
