// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

//go:build unix

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

var interruptSignals = []os.Signal{
	unix.SIGTERM,
	unix.SIGINT,
}
