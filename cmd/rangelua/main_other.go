// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package main

import "os"

var interruptSignals = []os.Signal{os.Interrupt}
