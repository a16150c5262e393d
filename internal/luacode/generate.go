// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"

	"rangelua.dev/rangelua/internal/ast"
)

// CodeGenError is returned by [Generate] when a chunk cannot be compiled to
// bytecode. It never panics across the package boundary.
type CodeGenError struct {
	Source Source
	Line   int
	Msg    string
}

func (e *CodeGenError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

func (p *generator) errorf(fs *funcState, line int, format string, args ...any) error {
	return &CodeGenError{
		Source: fs.Source,
		Line:   line,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// activeLocalVar is an entry in the generator's flat, cross-function list of
// local variables currently in lexical scope. It plays the same role as an
// entry of Lua's dyndata.actvar array: entries belonging to an enclosing
// function remain on the list (at lower indices) while a nested function is
// being compiled, so upvalue capture can walk outward through it.
type activeLocalVar struct {
	name string
	kind VariableKind
	// k holds the value of a compile-time-foldable <const> local,
	// consulted by dischargeVars and toConstant. No code path sets it:
	// localStmt does not record a value and resolveVar never produces a
	// compile-time <const> expression, so every <const> local behaves
	// like an ordinary local except for the assignment check.
	k Value
}

// generator holds the state shared by every [funcState] being compiled for
// one call to [Generate]: the cross-function active variable stack.
//
// Equivalent to the parts of `LexState`/`Dyndata` in upstream Lua that code
// generation (as opposed to parsing) needs.
type generator struct {
	activeVariables []activeLocalVar
	lastLine        int
}

// Generate compiles a parsed chunk into a [Prototype] ready for execution.
// Generate is the single entry point from the AST into bytecode: it never
// accepts a token stream.
func Generate(program *ast.Program) (*Prototype, error) {
	p := &generator{}
	source := LiteralSource(program.Position.Source)
	if program.Position.Source != "" {
		source = FilenameSource(program.Position.Source)
	}

	fs := p.openFunction(nil, source, true)
	fs.LineDefined = 0
	fs.LastLineDefined = 0
	if _, err := fs.addUpvalue("_ENV", true, 0, RegularVariable); err != nil {
		return nil, err
	}

	if err := p.block(fs, program.Body); err != nil {
		return nil, err
	}
	if err := p.closeFunction(fs); err != nil {
		return nil, err
	}
	if err := fs.Prototype.Validate(); err != nil {
		return nil, fmt.Errorf("internal error: generated invalid bytecode: %w", err)
	}
	return fs.Prototype, nil
}

func (fs *funcState) addUpvalue(name string, inStack bool, index uint8, kind VariableKind) (upvalueIndex, error) {
	if len(fs.Upvalues) >= maxUpvalues {
		return 0, fmt.Errorf("too many upvalues")
	}
	fs.Upvalues = append(fs.Upvalues, UpvalueDescriptor{
		Name:    name,
		InStack: inStack,
		Index:   index,
		Kind:    kind,
	})
	return upvalueIndex(len(fs.Upvalues) - 1), nil
}

// openFunction starts a new [funcState] nested inside prev (nil for the main
// chunk) and opens its implicit top-level block.
func (p *generator) openFunction(prev *funcState, source Source, isVararg bool) *funcState {
	fs := &funcState{
		Prototype: &Prototype{
			Source:       source,
			IsVararg:     isVararg,
			MaxStackSize: 2, // Registers 0/1 are always valid.
		},
		prev:       prev,
		firstLocal: len(p.activeVariables),
	}
	p.enterBlock(fs, false)
	return fs
}

// closeFunction finishes code generation for fs: it closes the implicit
// top-level block, appends a final return if necessary, and runs the
// peephole pass.
func (p *generator) closeFunction(fs *funcState) error {
	if err := p.leaveBlock(fs); err != nil {
		return err
	}
	p.codeReturn(fs, 0, 0)
	return fs.finish()
}

// enterBlock pushes a new lexical block onto fs.
func (p *generator) enterBlock(fs *funcState, isLoop bool) {
	fs.blocks = &blockControl{
		prev:               fs.blocks,
		numActiveVariables: fs.numActiveVariables,
		isLoop:             isLoop,
		breakList:          noJump,
	}
}

// leaveBlock pops the innermost lexical block, deactivating the locals it
// declared and emitting an [OpClose] if any of them were captured as an
// upvalue or marked to-be-closed.
func (p *generator) leaveBlock(fs *funcState) error {
	bl := fs.blocks
	fs.blocks = bl.prev
	p.removeVars(fs, bl.numActiveVariables)
	if bl.upval {
		p.code(fs, ABCInstruction(OpClose, uint8(bl.numActiveVariables), 0, 0, false))
	}
	fs.firstFreeRegister = registerIndex(bl.numActiveVariables)
	return nil
}

// enclosingLoop returns the nearest enclosing loop block of fs, or nil.
func enclosingLoop(fs *funcState) *blockControl {
	for bl := fs.blocks; bl != nil; bl = bl.prev {
		if bl.isLoop {
			return bl
		}
	}
	return nil
}

// newLocalVar declares a new local variable in the generator's active
// variable stack, without yet activating it (the register is assumed to
// already hold the variable's initial value — see [*generator.adjustLocalVars]).
func (p *generator) newLocalVar(fs *funcState, name string, kind VariableKind) {
	p.activeVariables = append(p.activeVariables, activeLocalVar{name: name, kind: kind})
	fs.LocalVariables = append(fs.LocalVariables, LocalVariable{
		Name:    name,
		StartPC: len(fs.Code),
		EndPC:   -1,
	})
}

// adjustLocalVars activates the n most recently declared local variables.
func (p *generator) adjustLocalVars(fs *funcState, n int) {
	fs.numActiveVariables += uint8(n)
}

// removeVars deactivates local variables down to tolevel active variables,
// closing their debug-info entries.
func (p *generator) removeVars(fs *funcState, tolevel uint8) {
	n := int(fs.numActiveVariables) - int(tolevel)
	endPC := len(fs.Code)
	for i := 0; i < n; i++ {
		idx := len(fs.LocalVariables) - 1 - i
		if idx >= 0 && fs.LocalVariables[idx].EndPC < 0 {
			fs.LocalVariables[idx].EndPC = endPC
		}
	}
	fs.numActiveVariables = tolevel
	p.activeVariables = p.activeVariables[:fs.firstLocal+int(tolevel)]
}

// numVariablesInStack reports how many of fs's currently reserved registers
// belong to active local variables (as opposed to free temporaries).
//
// Equivalent to `luaY_nvarstack` in upstream Lua.
func (p *generator) numVariablesInStack(fs *funcState) registerIndex {
	return registerIndex(fs.numActiveVariables)
}

// resolveVar searches fs (and, failing that, its enclosing functions) for a
// variable named name, capturing it as an upvalue along the chain as
// necessary. It returns found=false when name is not a local or upvalue
// anywhere (meaning the caller should treat it as a global).
func (p *generator) resolveVar(fs *funcState, name string) (expressionDescriptor, bool, error) {
	if fs == nil {
		return voidExpression(), false, nil
	}
	for i := int(fs.numActiveVariables) - 1; i >= 0; i-- {
		idx := fs.firstLocal + i
		if p.activeVariables[idx].name == name {
			return localExpression(registerIndex(i), uint16(i)), true, nil
		}
	}
	if uidx, found := fs.searchUpvalue(name); found {
		return upvalueExpression(uidx), true, nil
	}
	outer, found, err := p.resolveVar(fs.prev, name)
	if err != nil || !found {
		return voidExpression(), found, err
	}
	switch outer.kind {
	case expressionKindLocal:
		level := int(outer.localIndex(fs.prev.firstLocal)) - fs.prev.firstLocal
		fs.prev.markUpvalue(level)
		idx, err := fs.addUpvalue(name, true, uint8(outer.register()), RegularVariable)
		if err != nil {
			return voidExpression(), false, err
		}
		return upvalueExpression(idx), true, nil
	case expressionKindUpvalue:
		idx, err := fs.addUpvalue(name, false, uint8(outer.upvalueIndex()), RegularVariable)
		if err != nil {
			return voidExpression(), false, err
		}
		return upvalueExpression(idx), true, nil
	default:
		return voidExpression(), false, fmt.Errorf("internal error: resolveVar: unexpected outer expression kind %v", outer.kind)
	}
}

// singleVar resolves an identifier to a local, upvalue, or (as a last
// resort) an indexed access into _ENV.
//
// Equivalent to `singlevar` in upstream Lua.
func (p *generator) singleVar(fs *funcState, name string, line int) (expressionDescriptor, error) {
	e, found, err := p.resolveVar(fs, name)
	if err != nil {
		return voidExpression(), err
	}
	if found {
		return e, nil
	}
	env, found, err := p.resolveVar(fs, "_ENV")
	if err != nil {
		return voidExpression(), err
	}
	if !found {
		return voidExpression(), p.errorf(fs, line, "no visible _ENV for global %q", name)
	}
	key := stringConstantExpression(name)
	return p.codeIndexed(fs, env, key)
}

// ---- Statements ----

func (p *generator) block(fs *funcState, b *ast.Block) error {
	for _, stmt := range b.Stmts {
		if err := p.statement(fs, stmt); err != nil {
			return err
		}
	}
	return nil
}

// blockScope compiles b inside its own lexical scope.
func (p *generator) blockScope(fs *funcState, b *ast.Block, isLoop bool) error {
	p.enterBlock(fs, isLoop)
	if err := p.block(fs, b); err != nil {
		return err
	}
	return p.leaveBlock(fs)
}

func (p *generator) statement(fs *funcState, stmt ast.Stmt) error {
	p.lastLine = stmt.Pos().Line
	switch n := stmt.(type) {
	case *ast.Block:
		return p.blockScope(fs, n, false)
	case *ast.AssignStmt:
		return p.assignStmt(fs, n)
	case *ast.LocalStmt:
		return p.localStmt(fs, n)
	case *ast.FunctionDeclStmt:
		return p.functionDeclStmt(fs, n)
	case *ast.IfStmt:
		return p.ifStmt(fs, n)
	case *ast.WhileStmt:
		return p.whileStmt(fs, n)
	case *ast.RepeatStmt:
		return p.repeatStmt(fs, n)
	case *ast.ForNumericStmt:
		return p.forNumericStmt(fs, n)
	case *ast.ForGenericStmt:
		return p.forGenericStmt(fs, n)
	case *ast.DoStmt:
		return p.blockScope(fs, n.Body, false)
	case *ast.ReturnStmt:
		return p.returnStmt(fs, n)
	case *ast.BreakStmt:
		return p.breakStmt(fs, n)
	case *ast.GotoStmt:
		return p.gotoStmt(fs, n)
	case *ast.LabelStmt:
		return p.labelStmt(fs, n)
	case *ast.ExprStmt:
		return p.exprStmt(fs, n)
	default:
		return p.errorf(fs, stmt.Pos().Line, "internal error: unhandled statement type %T", n)
	}
}

func (p *generator) assignStmt(fs *funcState, stmt *ast.AssignStmt) error {
	targets := make([]expressionDescriptor, len(stmt.LHS))
	for i, lhs := range stmt.LHS {
		e, err := p.assignTarget(fs, lhs)
		if err != nil {
			return err
		}
		targets[i] = e
	}
	base := fs.firstFreeRegister
	if err := p.explist(fs, stmt.RHS, len(stmt.LHS)); err != nil {
		return err
	}
	for i := len(targets) - 1; i >= 0; i-- {
		val := nonRelocatableExpression(base + registerIndex(i))
		if err := p.codeStoreVariable(fs, targets[i], val); err != nil {
			return err
		}
	}
	return nil
}

// assignTarget resolves an assignment target, validating that it is not a
// <const> or <close> local, and (for an indexed target) materializing the
// table/key sub-expressions into registers up front so the RHS evaluation
// that follows cannot clobber them.
func (p *generator) assignTarget(fs *funcState, e ast.Expr) (expressionDescriptor, error) {
	switch n := e.(type) {
	case *ast.Identifier:
		v, err := p.singleVar(fs, n.Name, n.Position.Line)
		if err != nil {
			return voidExpression(), err
		}
		if v.kind == expressionKindLocal {
			idx := v.localIndex(fs.firstLocal)
			switch p.activeVariables[idx].kind {
			case LocalConst, ToClose:
				return voidExpression(), p.errorf(fs, n.Position.Line, "attempt to assign to const variable %q", n.Name)
			}
		}
		return v, nil
	case *ast.IndexExpr:
		t, err := p.expr(fs, n.Table)
		if err != nil {
			return voidExpression(), err
		}
		t, err = p.toAnyRegisterOrUpvalue(fs, t)
		if err != nil {
			return voidExpression(), err
		}
		var k expressionDescriptor
		if n.Dot {
			lit, ok := n.Key.(*ast.Literal)
			if !ok || lit.Kind != ast.StringLiteral {
				return voidExpression(), p.errorf(fs, n.Position.Line, "internal error: dot index key must be a string literal")
			}
			k = stringConstantExpression(lit.Str)
		} else {
			k, err = p.expr(fs, n.Key)
			if err != nil {
				return voidExpression(), err
			}
			k, err = p.toValue(fs, k)
			if err != nil {
				return voidExpression(), err
			}
		}
		return p.codeIndexed(fs, t, k)
	default:
		return voidExpression(), p.errorf(fs, e.Pos().Line, "cannot assign to this expression")
	}
}

func (p *generator) localStmt(fs *funcState, stmt *ast.LocalStmt) error {
	base := fs.firstFreeRegister
	if err := p.explist(fs, stmt.RHS, len(stmt.Names)); err != nil {
		return err
	}
	for i, name := range stmt.Names {
		kind := RegularVariable
		switch stmt.Attribs[i] {
		case ast.ConstAttrib:
			kind = LocalConst
		case ast.CloseAttrib:
			kind = ToClose
		}
		p.newLocalVar(fs, name, kind)
	}
	p.adjustLocalVars(fs, len(stmt.Names))
	for i, attr := range stmt.Attribs {
		if attr == ast.CloseAttrib {
			fs.markToBeClosed()
			p.code(fs, ABCInstruction(OpTBC, uint8(base+registerIndex(i)), 0, 0, false))
		}
	}
	return nil
}

func (p *generator) functionDeclStmt(fs *funcState, stmt *ast.FunctionDeclStmt) error {
	if stmt.IsLocal {
		// Declare the local before compiling the body so the function can
		// recurse by name.
		p.newLocalVar(fs, stmt.Name, RegularVariable)
		p.adjustLocalVars(fs, 1)
		reg := fs.firstFreeRegister
		if err := fs.reserveRegisters(1); err != nil {
			return err
		}
		fnExpr, err := p.functionExpr(fs, stmt.Fn, false)
		if err != nil {
			return err
		}
		_, err = p.toRegister(fs, fnExpr, reg)
		return err
	}

	fnExpr, err := p.functionExpr(fs, stmt.Fn, stmt.IsMethod)
	if err != nil {
		return err
	}
	target, err := p.assignTarget(fs, stmt.Target)
	if err != nil {
		return err
	}
	return p.codeStoreVariable(fs, target, fnExpr)
}

func (p *generator) ifStmt(fs *funcState, stmt *ast.IfStmt) error {
	escapeList := noJump
	if err := p.ifClause(fs, stmt.Cond, stmt.Then, &escapeList); err != nil {
		return err
	}
	for _, ei := range stmt.ElseIfs {
		if err := p.ifClause(fs, ei.Cond, ei.Then, &escapeList); err != nil {
			return err
		}
	}
	if stmt.Else != nil {
		if err := p.blockScope(fs, stmt.Else, false); err != nil {
			return err
		}
	}
	return fs.patchToHere(escapeList)
}

// ifClause compiles one `if`/`elseif` test and body, jumping past the body
// if the condition is false and appending a jump over the rest of the
// if/elseif/else chain to escapeList when the body itself falls through.
func (p *generator) ifClause(fs *funcState, cond ast.Expr, then *ast.Block, escapeList *int) error {
	e, err := p.expr(fs, cond)
	if err != nil {
		return err
	}
	e, err = p.codeGoIfTrue(fs, e)
	if err != nil {
		return err
	}
	if err := p.blockScope(fs, then, false); err != nil {
		return err
	}
	jmp := p.codeJump(fs)
	*escapeList, err = fs.concatJumpList(*escapeList, jmp)
	if err != nil {
		return err
	}
	return fs.patchToHere(e.f)
}

func (p *generator) whileStmt(fs *funcState, stmt *ast.WhileStmt) error {
	top := fs.label()
	e, err := p.expr(fs, stmt.Cond)
	if err != nil {
		return err
	}
	e, err = p.codeGoIfTrue(fs, e)
	if err != nil {
		return err
	}

	p.enterBlock(fs, true)
	if err := p.block(fs, stmt.Body); err != nil {
		return err
	}
	jmp := p.codeJump(fs)
	if err := fs.fixJump(jmp, top); err != nil {
		return err
	}
	breakList := fs.blocks.breakList
	if err := p.leaveBlock(fs); err != nil {
		return err
	}

	if err := fs.patchToHere(e.f); err != nil {
		return err
	}
	return fs.patchToHere(breakList)
}

func (p *generator) repeatStmt(fs *funcState, stmt *ast.RepeatStmt) error {
	top := fs.label()
	p.enterBlock(fs, true) // loop block
	p.enterBlock(fs, false) // body scope, shared with the until-condition
	if err := p.block(fs, stmt.Body); err != nil {
		return err
	}
	e, err := p.expr(fs, stmt.Cond)
	if err != nil {
		return err
	}
	e, err = p.codeGoIfFalse(fs, e)
	if err != nil {
		return err
	}
	return p.finishRepeat(fs, top, e)
}

// finishRepeat is split out from repeatStmt only because the loop-back jump
// must be coded after the until-condition, unlike every other loop.
// A false condition falls through to that jump; cond's true list exits.
func (p *generator) finishRepeat(fs *funcState, top int, cond expressionDescriptor) error {
	jmp := p.codeJump(fs)
	if err := fs.fixJump(jmp, top); err != nil {
		return err
	}
	if err := p.leaveBlock(fs); err != nil { // body scope
		return err
	}
	breakList := fs.blocks.breakList
	if err := p.leaveBlock(fs); err != nil { // loop block
		return err
	}
	if err := fs.patchToHere(cond.t); err != nil {
		return err
	}
	return fs.patchToHere(breakList)
}

func (p *generator) forNumericStmt(fs *funcState, stmt *ast.ForNumericStmt) error {
	base := fs.firstFreeRegister
	if err := p.forPrepExpr(fs, stmt.Start); err != nil {
		return err
	}
	if err := p.forPrepExpr(fs, stmt.Limit); err != nil {
		return err
	}
	if stmt.Step != nil {
		if err := p.forPrepExpr(fs, stmt.Step); err != nil {
			return err
		}
	} else {
		p.codeInt(fs, fs.firstFreeRegister, 1)
		if err := fs.reserveRegisters(1); err != nil {
			return err
		}
	}

	prep := p.code(fs, ABxInstruction(OpForPrep, uint8(base), 0))

	p.enterBlock(fs, true)
	for range 3 { // Internal index, limit, and step.
		p.newLocalVar(fs, "(for state)", RegularVariable)
	}
	p.adjustLocalVars(fs, 3)
	p.newLocalVar(fs, stmt.Name, RegularVariable)
	p.adjustLocalVars(fs, 1)
	if err := fs.reserveRegisters(1); err != nil {
		return err
	}
	if err := p.block(fs, stmt.Body); err != nil {
		return err
	}
	breakList := fs.blocks.breakList
	if err := p.leaveBlock(fs); err != nil {
		return err
	}

	loopPC := p.code(fs, ABxInstruction(OpForLoop, uint8(base), int32(len(fs.Code)-prep)))
	fs.Code[prep] = ABxInstruction(OpForPrep, uint8(base), int32(loopPC-prep-1))
	fs.firstFreeRegister = base
	return fs.patchToHere(breakList)
}

func (p *generator) forPrepExpr(fs *funcState, e ast.Expr) error {
	v, err := p.expr(fs, e)
	if err != nil {
		return err
	}
	_, _, err = p.toNextRegister(fs, v)
	return err
}

func (p *generator) forGenericStmt(fs *funcState, stmt *ast.ForGenericStmt) error {
	base := fs.firstFreeRegister
	// iterator function, state, initial control variable, closing value.
	if err := p.explist(fs, stmt.Exprs, 4); err != nil {
		return err
	}

	prep := p.code(fs, ABxInstruction(OpTForPrep, uint8(base), 0))

	p.enterBlock(fs, true)
	for range 4 { // Iterator, state, control, and closing value.
		p.newLocalVar(fs, "(for state)", RegularVariable)
	}
	p.adjustLocalVars(fs, 4)
	for _, name := range stmt.Names {
		p.newLocalVar(fs, name, RegularVariable)
	}
	p.adjustLocalVars(fs, len(stmt.Names))
	if err := fs.reserveRegisters(len(stmt.Names)); err != nil {
		return err
	}
	if err := p.block(fs, stmt.Body); err != nil {
		return err
	}
	breakList := fs.blocks.breakList
	if err := p.leaveBlock(fs); err != nil {
		return err
	}

	here := fs.label()
	fs.Code[prep] = ABxInstruction(OpTForPrep, uint8(base), int32(here-prep-1))
	p.code(fs, ABCInstruction(OpTForCall, uint8(base), 0, uint8(len(stmt.Names)), false))
	p.code(fs, ABxInstruction(OpTForLoop, uint8(base), int32(len(fs.Code)-prep)))
	fs.firstFreeRegister = base
	return fs.patchToHere(breakList)
}

func (p *generator) returnStmt(fs *funcState, stmt *ast.ReturnStmt) error {
	if len(stmt.Exprs) == 0 {
		p.codeReturn(fs, 0, 0)
		return nil
	}
	base := fs.firstFreeRegister
	if err := p.explist(fs, stmt.Exprs, MultiReturn); err != nil {
		return err
	}
	last := stmt.Exprs[len(stmt.Exprs)-1]
	if lastIsMultret(last) {
		p.codeReturn(fs, base, MultiReturn)
		return nil
	}
	p.codeReturn(fs, base, len(stmt.Exprs))
	return nil
}

func (p *generator) breakStmt(fs *funcState, stmt *ast.BreakStmt) error {
	bl := enclosingLoop(fs)
	if bl == nil {
		return p.errorf(fs, stmt.Position.Line, "break outside a loop")
	}
	jmp := p.codeJump(fs)
	var err error
	bl.breakList, err = fs.concatJumpList(bl.breakList, jmp)
	return err
}

func (p *generator) gotoStmt(fs *funcState, stmt *ast.GotoStmt) error {
	for _, l := range fs.definedLabels {
		if l.name == stmt.Label {
			jmp := p.codeJump(fs)
			return fs.fixJump(jmp, l.pc)
		}
	}
	jmp := p.codeJump(fs)
	fs.pendingGotos = append(fs.pendingGotos, labelRef{name: stmt.Label, pc: jmp, line: stmt.Position.Line})
	return nil
}

func (p *generator) labelStmt(fs *funcState, stmt *ast.LabelStmt) error {
	here := fs.label()
	fs.definedLabels = append(fs.definedLabels, labelRef{name: stmt.Name, pc: here, line: stmt.Position.Line})

	remaining := fs.pendingGotos[:0]
	for _, gt := range fs.pendingGotos {
		if gt.name == stmt.Name {
			if err := fs.fixJump(gt.pc, here); err != nil {
				return err
			}
		} else {
			remaining = append(remaining, gt)
		}
	}
	fs.pendingGotos = remaining
	return nil
}

func (p *generator) exprStmt(fs *funcState, stmt *ast.ExprStmt) error {
	switch stmt.X.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr:
	default:
		return p.errorf(fs, stmt.Position.Line, "syntax error: expression statement must be a function call")
	}
	e, err := p.expr(fs, stmt.X)
	if err != nil {
		return err
	}
	if err := p.setReturns(fs, e, 0); err != nil {
		return err
	}
	inst := fs.Code[e.pc()]
	fs.firstFreeRegister = registerIndex(inst.ArgA())
	return nil
}

// lastIsMultret reports whether e, as the last expression of a list, can
// itself expand to an arbitrary number of results.
func lastIsMultret(e ast.Expr) bool {
	switch e.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr, *ast.VarargExpr:
		return true
	default:
		return false
	}
}

// explist evaluates a list of expressions, adjusting the result count to
// exactly want values in fs.firstFreeRegister.. registers, or (if
// want == [MultiReturn]) propagating the last expression's full result set.
//
// Equivalent to `explist` + `adjust_assign` in upstream Lua.
func (p *generator) explist(fs *funcState, exprs []ast.Expr, want int) error {
	n := len(exprs)
	if n == 0 {
		if want > 0 {
			reg := fs.firstFreeRegister
			if err := fs.reserveRegisters(want); err != nil {
				return err
			}
			p.codeNil(fs, reg, uint8(want))
		}
		return nil
	}

	for _, ex := range exprs[:n-1] {
		e, err := p.expr(fs, ex)
		if err != nil {
			return err
		}
		if _, _, err := p.toNextRegister(fs, e); err != nil {
			return err
		}
	}
	lastExpr, err := p.expr(fs, exprs[n-1])
	if err != nil {
		return err
	}

	if want == MultiReturn {
		if lastExpr.kind.hasMultipleReturns() {
			return p.setReturns(fs, lastExpr, MultiReturn)
		}
		_, _, err := p.toNextRegister(fs, lastExpr)
		return err
	}

	needed := want - n
	if lastExpr.kind.hasMultipleReturns() {
		extra := needed + 1
		if extra < 0 {
			extra = 0
		}
		if err := p.setReturns(fs, lastExpr, extra); err != nil {
			return err
		}
	} else {
		if lastExpr.kind != expressionKindVoid {
			if _, _, err := p.toNextRegister(fs, lastExpr); err != nil {
				return err
			}
		}
		if needed > 0 {
			reg := fs.firstFreeRegister
			p.codeNil(fs, reg, uint8(needed))
		}
	}
	if needed > 0 {
		if err := fs.reserveRegisters(needed); err != nil {
			return err
		}
	} else {
		fs.firstFreeRegister += registerIndex(needed)
	}
	return nil
}

// ---- Expressions ----

func (p *generator) expr(fs *funcState, e ast.Expr) (expressionDescriptor, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return p.literal(n)
	case *ast.Identifier:
		return p.singleVar(fs, n.Name, n.Position.Line)
	case *ast.BinaryExpr:
		return p.binaryExpr(fs, n)
	case *ast.UnaryExpr:
		return p.unaryExpr(fs, n)
	case *ast.CallExpr:
		return p.callExpr(fs, n)
	case *ast.MethodCallExpr:
		return p.methodCallExpr(fs, n)
	case *ast.IndexExpr:
		return p.indexExpr(fs, n)
	case *ast.TableConstructorExpr:
		return p.tableConstructorExpr(fs, n)
	case *ast.FunctionExpr:
		return p.functionExpr(fs, n, false)
	case *ast.VarargExpr:
		return p.varargExpr(fs, n)
	case *ast.ParenExpr:
		return p.parenExpr(fs, n)
	default:
		return voidExpression(), p.errorf(fs, e.Pos().Line, "internal error: unhandled expression type %T", n)
	}
}

func (p *generator) literal(n *ast.Literal) (expressionDescriptor, error) {
	switch n.Kind {
	case ast.NilLiteral:
		return newExpression(expressionKindNil), nil
	case ast.TrueLiteral:
		return newExpression(expressionKindTrue), nil
	case ast.FalseLiteral:
		return newExpression(expressionKindFalse), nil
	case ast.IntLiteral:
		return intConstantExpression(n.Int), nil
	case ast.FloatLiteral:
		return floatConstantExpression(n.Flt), nil
	case ast.StringLiteral:
		return stringConstantExpression(n.Str), nil
	default:
		return voidExpression(), fmt.Errorf("internal error: unhandled literal kind %v", n.Kind)
	}
}

func (p *generator) indexExpr(fs *funcState, n *ast.IndexExpr) (expressionDescriptor, error) {
	t, err := p.expr(fs, n.Table)
	if err != nil {
		return voidExpression(), err
	}
	t, err = p.toAnyRegisterOrUpvalue(fs, t)
	if err != nil {
		return voidExpression(), err
	}
	var k expressionDescriptor
	if n.Dot {
		lit, ok := n.Key.(*ast.Literal)
		if !ok || lit.Kind != ast.StringLiteral {
			return voidExpression(), p.errorf(fs, n.Position.Line, "internal error: dot index key must be a string literal")
		}
		k = stringConstantExpression(lit.Str)
	} else {
		k, err = p.expr(fs, n.Key)
		if err != nil {
			return voidExpression(), err
		}
		k, err = p.toValue(fs, k)
		if err != nil {
			return voidExpression(), err
		}
	}
	return p.codeIndexed(fs, t, k)
}

func (p *generator) parenExpr(fs *funcState, n *ast.ParenExpr) (expressionDescriptor, error) {
	e, err := p.expr(fs, n.X)
	if err != nil {
		return voidExpression(), err
	}
	return p.setOneReturn(fs, e), nil
}

func (p *generator) varargExpr(fs *funcState, n *ast.VarargExpr) (expressionDescriptor, error) {
	if !fs.IsVararg {
		return voidExpression(), p.errorf(fs, n.Position.Line, "cannot use '...' outside a vararg function")
	}
	pc := p.code(fs, ABCInstruction(OpVararg, 0, 0, 1, false))
	return varargExpression(pc), nil
}

func (p *generator) unaryExpr(fs *funcState, n *ast.UnaryExpr) (expressionDescriptor, error) {
	op, ok := astUnaryOperator(n.Op)
	if !ok {
		return voidExpression(), p.errorf(fs, n.Position.Line, "internal error: unhandled unary operator %v", n.Op)
	}
	e, err := p.expr(fs, n.X)
	if err != nil {
		return voidExpression(), err
	}
	return p.codePrefix(fs, op, e, n.Position.Line)
}

func (p *generator) binaryExpr(fs *funcState, n *ast.BinaryExpr) (expressionDescriptor, error) {
	op, ok := astBinaryOperator(n.Op)
	if !ok {
		return voidExpression(), p.errorf(fs, n.Position.Line, "internal error: unhandled binary operator %v", n.Op)
	}
	lhs, err := p.expr(fs, n.LHS)
	if err != nil {
		return voidExpression(), err
	}
	lhs, err = p.codeInfix(fs, op, lhs)
	if err != nil {
		return voidExpression(), err
	}
	rhs, err := p.expr(fs, n.RHS)
	if err != nil {
		return voidExpression(), err
	}
	return p.codePostfix(fs, op, lhs, rhs, n.Position.Line)
}

func (p *generator) callExpr(fs *funcState, call *ast.CallExpr) (expressionDescriptor, error) {
	calleeExpr, err := p.expr(fs, call.Callee)
	if err != nil {
		return voidExpression(), err
	}
	_, funcReg, err := p.toNextRegister(fs, calleeExpr)
	if err != nil {
		return voidExpression(), err
	}
	return p.finishCall(fs, funcReg, call.Args, false, call.Position.Line)
}

func (p *generator) methodCallExpr(fs *funcState, call *ast.MethodCallExpr) (expressionDescriptor, error) {
	recvExpr, err := p.expr(fs, call.Receiver)
	if err != nil {
		return voidExpression(), err
	}
	key := stringConstantExpression(call.Method)
	selfExpr, err := p.codeSelf(fs, recvExpr, key)
	if err != nil {
		return voidExpression(), err
	}
	return p.finishCall(fs, selfExpr.register(), call.Args, true, call.Position.Line)
}

// finishCall emits the arguments and [OpCall] instruction shared by plain
// and method calls. funcReg is the register already holding the callee
// (and, for method calls, the implicit self argument sits at funcReg+1).
//
// Equivalent to `funcargs` in upstream Lua.
func (p *generator) finishCall(fs *funcState, funcReg registerIndex, args []ast.Expr, hasSelf bool, line int) (expressionDescriptor, error) {
	if err := p.explist(fs, args, MultiReturn); err != nil {
		return voidExpression(), err
	}
	var b uint8
	if len(args) > 0 && lastIsMultret(args[len(args)-1]) {
		b = 0
	} else {
		nfixed := len(args)
		if hasSelf {
			nfixed++
		}
		b = uint8(nfixed + 1)
	}
	pc := p.code(fs, ABCInstruction(OpCall, uint8(funcReg), b, 2, false))
	fs.fixLineInfo(line)
	fs.firstFreeRegister = funcReg + 1
	return callExpression(pc), nil
}

func (p *generator) tableConstructorExpr(fs *funcState, n *ast.TableConstructorExpr) (expressionDescriptor, error) {
	tableReg := fs.firstFreeRegister
	// OpNewTable's sizes aren't known until every field is compiled, so a
	// placeholder is fixed up afterward by newTableInstructions. The VM
	// unconditionally skips the instruction after OpNewTable as its extra
	// argument, so that slot must be reserved now, not appended later.
	pc := p.code(fs, Instruction(0))
	p.code(fs, Instruction(0))
	if err := fs.reserveRegisters(1); err != nil {
		return voidExpression(), err
	}

	var arraySize, hashSize int
	var pending []ast.Expr // positional fields not yet flushed to OpSetList
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		for _, fe := range pending {
			e, err := p.expr(fs, fe)
			if err != nil {
				return err
			}
			if _, _, err := p.toNextRegister(fs, e); err != nil {
				return err
			}
		}
		store := len(pending)
		if lastIsMultret(pending[len(pending)-1]) {
			store = MultiReturn
		}
		if err := p.codeSetList(fs, tableReg, arraySize, store); err != nil {
			return err
		}
		arraySize += len(pending)
		pending = pending[:0]
		return nil
	}

	for i, field := range n.Fields {
		switch field.Kind {
		case ast.ListField:
			pending = append(pending, field.Val)
			if len(pending) >= fieldsPerFlush {
				if err := flush(); err != nil {
					return voidExpression(), err
				}
			}
		case ast.RecordField:
			hashSize++
			k := stringConstantExpression(field.Name)
			v, err := p.expr(fs, field.Val)
			if err != nil {
				return voidExpression(), err
			}
			if _, err := p.codeIndexedStore(fs, tableReg, k, v); err != nil {
				return voidExpression(), err
			}
		case ast.ArrayField:
			hashSize++
			k, err := p.expr(fs, field.Key)
			if err != nil {
				return voidExpression(), err
			}
			k, err = p.toValue(fs, k)
			if err != nil {
				return voidExpression(), err
			}
			v, err := p.expr(fs, field.Val)
			if err != nil {
				return voidExpression(), err
			}
			if _, err := p.codeIndexedStore(fs, tableReg, k, v); err != nil {
				return voidExpression(), err
			}
		}
		_ = i
	}
	if err := flush(); err != nil {
		return voidExpression(), err
	}

	instrs := newTableInstructions(tableReg, arraySize, hashSize)
	fs.Code[pc] = instrs[0]
	fs.Code[pc+1] = instrs[1]
	return relocatableExpression(pc), nil
}

// codeIndexedStore is a small helper used by table constructors: it stores
// value v into table[k] without going through an lvalue expressionDescriptor
// (the table is already a fixed register).
func (p *generator) codeIndexedStore(fs *funcState, tableReg registerIndex, k, v expressionDescriptor) (expressionDescriptor, error) {
	target, err := p.codeIndexed(fs, nonRelocatableExpression(tableReg), k)
	if err != nil {
		return voidExpression(), err
	}
	return voidExpression(), p.codeStoreVariable(fs, target, v)
}

func (p *generator) functionExpr(fs *funcState, n *ast.FunctionExpr, isMethod bool) (expressionDescriptor, error) {
	inner := p.openFunction(fs, fs.Source, n.IsVararg)
	inner.LineDefined = n.Position.Line
	inner.LastLineDefined = n.EndLine

	if isMethod {
		p.newLocalVar(inner, "self", RegularVariable)
		p.adjustLocalVars(inner, 1)
		if err := inner.reserveRegisters(1); err != nil {
			return voidExpression(), err
		}
	}
	for _, param := range n.Params {
		p.newLocalVar(inner, param.Name, RegularVariable)
		p.adjustLocalVars(inner, 1)
		if err := inner.reserveRegisters(1); err != nil {
			return voidExpression(), err
		}
	}
	inner.NumParams = uint8(inner.numActiveVariables)
	if inner.IsVararg {
		p.code(inner, ABCInstruction(OpVarargPrep, inner.NumParams, 0, 0, false))
	}

	if err := p.block(inner, n.Body); err != nil {
		return voidExpression(), err
	}
	if err := p.closeFunction(inner); err != nil {
		return voidExpression(), err
	}

	fs.Functions = append(fs.Functions, inner.Prototype)
	pc := p.code(fs, ABxInstruction(OpClosure, 0, int32(len(fs.Functions)-1)))
	return relocatableExpression(pc), nil
}
