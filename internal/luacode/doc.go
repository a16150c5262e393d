// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

/*
Package luacode represents compiled Lua 5.5 bytecode
and provides the code generator that produces it from a parsed AST.
See [Generate] for more details.

# Provenance

The bytecode representation, code generator, and binary encoding in this
package are a hand-written conversion of pieces of Lua 5.4/5.5 to Go,
specifically borrowing from:

  - lcode.c
  - lparser.c (the expression/statement code generation it interleaves
    with parsing; this package's own parsing lives in internal/parser)
  - lopcodes.h
  - lobject.h (for Proto)

The on-disk chunk format (see [Prototype.MarshalBinary] and
[Prototype.UnmarshalBinary]) is RangeLua-specific rather than a port of
ldump.c/lundump.c: it is a fixed-width, big-endian encoding instead of
the architecture-probing layout reference Lua uses, so chunks compiled
on one platform load identically on another.

Ideally, the borrowed pieces should continue to resemble upstream
so that improvements in Lua can be easily ported over.

# Lua License

Copyright (C) 1994-2024 Lua.org, PUC-Rio.

Permission is hereby granted, free of charge, to any person obtaining
a copy of this software and associated documentation files (the
"Software"), to deal in the Software without restriction, including
without limitation the rights to use, copy, modify, merge, publish,
distribute, sublicense, and/or sell copies of the Software, and to
permit persons to whom the Software is furnished to do so, subject to
the following conditions:

The above copyright notice and this permission notice shall be
included in all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package luacode
