// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

// Package parser implements a recursive-descent Lua 5.5 parser that turns
// a token stream from internal/lualex into the internal/ast tree consumed
// by the code generator. Parsing and code generation are deliberately
// separate passes here (unlike reference Lua's single-pass lparser.c,
// which the teacher package mirrors for its own bytecode-emitting parser):
// the code generator's contract (internal/luacode) is "AST in, Prototype
// out," so this package's only job is recognizing grammar and shape,
// never registers or jumps.
//
// This package, the lexer, and the optimizer pipeline are collaborators
// specified only by interface; they are not part of the core under test
// in this repository, but a complete implementation needs a walking
// skeleton to drive the code generator and VM end to end.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"rangelua.dev/rangelua/internal/ast"
	"rangelua.dev/rangelua/internal/lualex"
)

// SyntaxError is returned for any malformed input. Column may be zero if
// the lexer only tracked line information for the failure.
type SyntaxError struct {
	Source   string
	Position lualex.Position
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%v: %s", e.Source, e.Position, e.Msg)
}

// Parse parses a complete Lua chunk, returning its AST.
// source names the chunk for error messages and debug info (conventionally
// a "@filename" or "=stdin" style Lua chunk name, though this package does
// not interpret the prefix).
func Parse(r io.Reader, source string) (*ast.Program, error) {
	br := bufio.NewReader(r)
	startLine := 1
	if skipShebang(br) {
		startLine = 2
	}

	p := &parser{sc: lualex.NewScannerAt(br, startLine), source: source}
	if err := p.advance(); err != nil && err != io.EOF {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lualex.ErrorToken {
		return nil, p.errorf("'<eof>' expected near %v", p.tok)
	}
	return &ast.Program{Position: ast.Position{Source: source, Line: 1, Column: 1}, Body: body}, nil
}

// ParseString is a convenience wrapper around [Parse] for in-memory source.
func ParseString(src, source string) (*ast.Program, error) {
	return Parse(strings.NewReader(src), source)
}

// skipShebang discards an optional leading "#!" line, reporting
// whether it found and discarded one, so a RangeLua script can be
// invoked directly as a Unix executable. Per the source text
// contract, this is recognized only at the very start of the chunk;
// a "#!" appearing later is ordinary (invalid) Lua syntax.
func skipShebang(br *bufio.Reader) bool {
	prefix, err := br.Peek(2)
	if err != nil || string(prefix) != "#!" {
		return false
	}
	for {
		b, err := br.ReadByte()
		if err != nil || b == '\n' {
			return true
		}
	}
}

type parser struct {
	sc     *lualex.Scanner
	source string
	tok    lualex.Token
	peeked *lualex.Token
	atEOF  bool
	// loopDepth tracks nesting of loop bodies, so break is only legal inside one.
	loopDepth int
}

// rawScan reads the next token from the underlying scanner, translating
// io.EOF into a synthetic [lualex.ErrorToken] (the parser's "<eof>").
func (p *parser) rawScan() (lualex.Token, error) {
	if p.atEOF {
		return lualex.Token{Kind: lualex.ErrorToken}, nil
	}
	tok, err := p.sc.Scan()
	if err == io.EOF {
		p.atEOF = true
		return lualex.Token{Kind: lualex.ErrorToken, Position: tok.Position}, nil
	}
	if err != nil {
		return lualex.Token{}, &SyntaxError{Source: p.source, Position: tok.Position, Msg: err.Error()}
	}
	return tok, nil
}

// advance consumes the current token and scans (or pulls from the
// one-token lookahead buffer) the next.
func (p *parser) advance() error {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.rawScan()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// peekNext returns the token after the current one without consuming it.
func (p *parser) peekNext() (lualex.Token, error) {
	if p.peeked == nil {
		tok, err := p.rawScan()
		if err != nil {
			return lualex.Token{}, err
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *parser) pos() ast.Position {
	return ast.Position{Source: p.source, Line: p.tok.Position.Line, Column: p.tok.Position.Column}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Source: p.source, Position: p.tok.Position, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) accept(kind lualex.TokenKind) (lualex.Token, bool, error) {
	if p.tok.Kind != kind {
		return lualex.Token{}, false, nil
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return lualex.Token{}, false, err
	}
	return tok, true, nil
}

func (p *parser) expect(kind lualex.TokenKind) (lualex.Token, error) {
	tok, ok, err := p.accept(kind)
	if err != nil {
		return lualex.Token{}, err
	}
	if !ok {
		return lualex.Token{}, p.errorf("%v expected near %v", kind, p.tok)
	}
	return tok, nil
}

func (p *parser) expectName() (string, ast.Position, error) {
	pos := p.pos()
	tok, err := p.expect(lualex.IdentifierToken)
	if err != nil {
		return "", pos, err
	}
	return tok.Value, pos, nil
}

// blockFollow reports whether the current token ends a block.
func (p *parser) blockFollow() bool {
	switch p.tok.Kind {
	case lualex.ErrorToken, lualex.EndToken, lualex.ElseToken, lualex.ElseifToken, lualex.UntilToken:
		return true
	default:
		return false
	}
}

func (p *parser) block() (*ast.Block, error) {
	pos := p.pos()
	b := &ast.Block{Position: pos}
	for !p.blockFollow() {
		if p.tok.Kind == lualex.ReturnToken {
			stmt, err := p.returnStatement()
			if err != nil {
				return nil, err
			}
			b.Stmts = append(b.Stmts, stmt)
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			b.Stmts = append(b.Stmts, stmt)
		}
	}
	return b, nil
}

func (p *parser) statement() (ast.Stmt, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lualex.SemiToken:
		return nil, p.advance()
	case lualex.IfToken:
		return p.ifStatement()
	case lualex.WhileToken:
		return p.whileStatement()
	case lualex.DoToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.EndToken); err != nil {
			return nil, err
		}
		return &ast.DoStmt{Position: pos, Body: body}, nil
	case lualex.ForToken:
		return p.forStatement()
	case lualex.RepeatToken:
		return p.repeatStatement()
	case lualex.FunctionToken:
		return p.functionStatement()
	case lualex.LocalToken:
		return p.localStatement()
	case lualex.LabelToken:
		return p.labelStatement()
	case lualex.BreakToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Position: pos}, nil
	case lualex.GotoToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &ast.GotoStmt{Position: pos, Label: name}, nil
	default:
		return p.exprStatement()
	}
}

func (p *parser) ifStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.ThenToken); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Position: pos, Cond: cond, Then: then}
	for p.tok.Kind == lualex.ElseifToken {
		ePos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		eCond, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.ThenToken); err != nil {
			return nil, err
		}
		eThen, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, &ast.ElseIfClause{Position: ePos, Cond: eCond, Then: eThen})
	}
	if p.tok.Kind == lualex.ElseToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elseBlock, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBlock
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) whileStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.block()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Position: pos, Cond: cond, Body: body}, nil
}

func (p *parser) repeatStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.block()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.UntilToken); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStmt{Position: pos, Body: body, Cond: cond}, nil
}

func (p *parser) forStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name1, _, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lualex.AssignToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		start, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.CommaToken); err != nil {
			return nil, err
		}
		limit, err := p.expr()
		if err != nil {
			return nil, err
		}
		var step ast.Expr
		if p.tok.Kind == lualex.CommaToken {
			if err := p.advance(); err != nil {
				return nil, err
			}
			step, err = p.expr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lualex.DoToken); err != nil {
			return nil, err
		}
		p.loopDepth++
		body, err := p.block()
		p.loopDepth--
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.EndToken); err != nil {
			return nil, err
		}
		return &ast.ForNumericStmt{Position: pos, Name: name1, Start: start, Limit: limit, Step: step, Body: body}, nil
	}

	names := []string{name1}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if _, err := p.expect(lualex.InToken); err != nil {
		return nil, err
	}
	exprs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.block()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &ast.ForGenericStmt{Position: pos, Names: names, Exprs: exprs, Body: body}, nil
}

func (p *parser) functionStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, namePos, err := p.expectName()
	if err != nil {
		return nil, err
	}
	var target ast.Expr = &ast.Identifier{Position: namePos, Name: name}
	fullName := name
	isMethod := false
	for p.tok.Kind == lualex.DotToken || p.tok.Kind == lualex.ColonToken {
		isColon := p.tok.Kind == lualex.ColonToken
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, fieldPos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fullName += "." + field
		target = &ast.IndexExpr{
			Position: fieldPos,
			Table:    target,
			Key:      &ast.Literal{Position: fieldPos, Kind: ast.StringLiteral, Str: field},
			Dot:      true,
		}
		if isColon {
			isMethod = true
			break
		}
	}
	fn, err := p.functionBody(pos, isMethod)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDeclStmt{Position: pos, Target: target, Name: fullName, IsMethod: isMethod, Fn: fn}, nil
}

func (p *parser) functionBody(pos ast.Position, isMethod bool) (*ast.FunctionExpr, error) {
	if _, err := p.expect(lualex.LParenToken); err != nil {
		return nil, err
	}
	fn := &ast.FunctionExpr{Position: pos}
	if isMethod {
		fn.Params = append(fn.Params, &ast.Parameter{Position: pos, Name: "self"})
	}
	for p.tok.Kind != lualex.RParenToken {
		if p.tok.Kind == lualex.VarargToken {
			fn.IsVararg = true
			if err := p.advance(); err != nil {
				return nil, err
			}
			break
		}
		name, paramPos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, &ast.Parameter{Position: paramPos, Name: name})
		if p.tok.Kind != lualex.CommaToken {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lualex.RParenToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.EndLine = p.tok.Position.Line
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) localStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind == lualex.FunctionToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, namePos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fn, err := p.functionBody(namePos, false)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDeclStmt{Position: pos, Name: name, IsLocal: true, Fn: fn}, nil
	}

	stmt := &ast.LocalStmt{Position: pos}
	for {
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		attrib := ast.NoAttrib
		if p.tok.Kind == lualex.LessToken {
			if err := p.advance(); err != nil {
				return nil, err
			}
			attribName, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			switch attribName {
			case "const":
				attrib = ast.ConstAttrib
			case "close":
				attrib = ast.CloseAttrib
			default:
				return nil, p.errorf("unknown attribute %q", attribName)
			}
			if _, err := p.expect(lualex.GreaterToken); err != nil {
				return nil, err
			}
		}
		stmt.Names = append(stmt.Names, name)
		stmt.Attribs = append(stmt.Attribs, attrib)
		if p.tok.Kind != lualex.CommaToken {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.Kind == lualex.AssignToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.exprList()
		if err != nil {
			return nil, err
		}
		stmt.RHS = rhs
	}
	return stmt, nil
}

func (p *parser) labelStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, _, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.LabelToken); err != nil {
		return nil, err
	}
	return &ast.LabelStmt{Position: pos, Name: name}, nil
}

func (p *parser) returnStatement() (ast.Stmt, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &ast.ReturnStmt{Position: pos}
	if !p.blockFollow() && p.tok.Kind != lualex.SemiToken {
		exprs, err := p.exprList()
		if err != nil {
			return nil, err
		}
		stmt.Exprs = exprs
	}
	if p.tok.Kind == lualex.SemiToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// exprStatement parses an assignment or a bare call expression statement.
func (p *parser) exprStatement() (ast.Stmt, error) {
	pos := p.pos()
	first, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lualex.AssignToken && p.tok.Kind != lualex.CommaToken {
		switch first.(type) {
		case *ast.CallExpr, *ast.MethodCallExpr:
			return &ast.ExprStmt{Position: pos, X: first}, nil
		default:
			return nil, p.errorf("syntax error near %v", p.tok)
		}
	}
	lhs := []ast.Expr{first}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.suffixedExpr()
		if err != nil {
			return nil, err
		}
		lhs = append(lhs, e)
	}
	if _, err := p.expect(lualex.AssignToken); err != nil {
		return nil, err
	}
	rhs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	for _, l := range lhs {
		switch l.(type) {
		case *ast.Identifier, *ast.IndexExpr:
		default:
			return nil, p.errorf("cannot assign to this expression")
		}
	}
	return &ast.AssignStmt{Position: pos, LHS: lhs, RHS: rhs}, nil
}

func (p *parser) exprList() ([]ast.Expr, error) {
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	list := []ast.Expr{e}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, nil
}

// binOpInfo gives the left/right binding power of each binary operator,
// matching the precedence table in lparser.c's `priority`.
type binOpInfo struct {
	op          ast.BinaryOp
	left, right int
}

var binOps = map[lualex.TokenKind]binOpInfo{
	lualex.OrToken:            {ast.OpOr, 1, 1},
	lualex.AndToken:           {ast.OpAnd, 2, 2},
	lualex.LessToken:          {ast.OpLess, 3, 3},
	lualex.GreaterToken:       {ast.OpGreater, 3, 3},
	lualex.LessEqualToken:     {ast.OpLessEq, 3, 3},
	lualex.GreaterEqualToken:  {ast.OpGreaterEq, 3, 3},
	lualex.NotEqualToken:      {ast.OpNotEq, 3, 3},
	lualex.EqualToken:         {ast.OpEq, 3, 3},
	lualex.BitOrToken:         {ast.OpBOr, 4, 4},
	lualex.BitXorToken:        {ast.OpBXor, 5, 5},
	lualex.BitAndToken:        {ast.OpBAnd, 6, 6},
	lualex.LShiftToken:        {ast.OpShl, 7, 7},
	lualex.RShiftToken:        {ast.OpShr, 7, 7},
	lualex.ConcatToken:        {ast.OpConcat, 9, 8}, // right associative
	lualex.AddToken:           {ast.OpAdd, 10, 10},
	lualex.SubToken:           {ast.OpSub, 10, 10},
	lualex.MulToken:           {ast.OpMul, 11, 11},
	lualex.DivToken:           {ast.OpDiv, 11, 11},
	lualex.IntDivToken:        {ast.OpIDiv, 11, 11},
	lualex.ModToken:           {ast.OpMod, 11, 11},
	lualex.PowToken:           {ast.OpPow, 14, 13}, // right associative
}

const unaryPriority = 12

func (p *parser) expr() (ast.Expr, error) {
	return p.subExpr(0)
}

func (p *parser) subExpr(limit int) (ast.Expr, error) {
	var e ast.Expr
	pos := p.pos()
	if op, ok := unaryOp(p.tok.Kind); ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.subExpr(unaryPriority)
		if err != nil {
			return nil, err
		}
		e = &ast.UnaryExpr{Position: pos, Op: op, X: x}
	} else {
		var err error
		e, err = p.simpleExpr()
		if err != nil {
			return nil, err
		}
	}
	for {
		info, ok := binOps[p.tok.Kind]
		if !ok || info.left <= limit {
			break
		}
		opPos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.subExpr(info.right)
		if err != nil {
			return nil, err
		}
		e = &ast.BinaryExpr{Position: opPos, Op: info.op, LHS: e, RHS: rhs}
	}
	return e, nil
}

func unaryOp(kind lualex.TokenKind) (ast.UnaryOp, bool) {
	switch kind {
	case lualex.NotToken:
		return ast.OpNot, true
	case lualex.LenToken:
		return ast.OpLen, true
	case lualex.SubToken:
		return ast.OpNeg, true
	case lualex.BitXorToken:
		return ast.OpBNot, true
	default:
		return 0, false
	}
}

func (p *parser) simpleExpr() (ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lualex.NumeralToken:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numeralLiteral(pos, tok.Value)
	case lualex.StringToken:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Kind: ast.StringLiteral, Str: tok.Value}, nil
	case lualex.NilToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Kind: ast.NilLiteral}, nil
	case lualex.TrueToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Kind: ast.TrueLiteral}, nil
	case lualex.FalseToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Kind: ast.FalseLiteral}, nil
	case lualex.VarargToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.VarargExpr{Position: pos}, nil
	case lualex.LBraceToken:
		return p.tableConstructor()
	case lualex.FunctionToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.functionBody(pos, false)
	default:
		return p.suffixedExpr()
	}
}

func numeralLiteral(pos ast.Position, text string) (ast.Expr, error) {
	if i, err := lualex.ParseInt(text); err == nil {
		return &ast.Literal{Position: pos, Kind: ast.IntLiteral, Int: i}, nil
	}
	f, err := lualex.ParseNumber(text)
	if err != nil {
		return nil, &SyntaxError{Source: pos.Source, Position: lualex.Position{Line: pos.Line, Column: pos.Column}, Msg: fmt.Sprintf("malformed number near '%s'", text)}
	}
	return &ast.Literal{Position: pos, Kind: ast.FloatLiteral, Flt: f}, nil
}

// primaryExpr parses a parenthesized expression or a bare name.
func (p *parser) primaryExpr() (ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lualex.LParenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{Position: pos, X: e}, nil
	case lualex.IdentifierToken:
		name, namePos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &ast.Identifier{Position: namePos, Name: name}, nil
	default:
		return nil, p.errorf("unexpected symbol near %v", p.tok)
	}
}

// suffixedExpr parses a primary expression followed by any chain of
// `.name`, `[expr]`, `:name(args)`, and `(args)` suffixes.
func (p *parser) suffixedExpr() (ast.Expr, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.pos()
		switch p.tok.Kind {
		case lualex.DotToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, namePos, err := p.expectName()
			if err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{Position: pos, Table: e, Key: &ast.Literal{Position: namePos, Kind: ast.StringLiteral, Str: name}, Dot: true}
		case lualex.LBracketToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{Position: pos, Table: e, Key: key}
		case lualex.ColonToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.MethodCallExpr{Position: pos, Receiver: e, Method: name, Args: args}
		case lualex.LParenToken, lualex.StringToken, lualex.LBraceToken:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.CallExpr{Position: pos, Callee: e, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *parser) callArgs() ([]ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lualex.StringToken:
		s := p.tok.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []ast.Expr{&ast.Literal{Position: pos, Kind: ast.StringLiteral, Str: s}}, nil
	case lualex.LBraceToken:
		tc, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []ast.Expr{tc}, nil
	case lualex.LParenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == lualex.RParenToken {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, p.errorf("function arguments expected near %v", p.tok)
	}
}

func (p *parser) tableConstructor() (ast.Expr, error) {
	pos := p.pos()
	if _, err := p.expect(lualex.LBraceToken); err != nil {
		return nil, err
	}
	tc := &ast.TableConstructorExpr{Position: pos}
	for p.tok.Kind != lualex.RBraceToken {
		fieldPos := p.pos()
		var field *ast.Field
		switch {
		case p.tok.Kind == lualex.LBracketToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.AssignToken); err != nil {
				return nil, err
			}
			val, err := p.expr()
			if err != nil {
				return nil, err
			}
			field = &ast.Field{Position: fieldPos, Kind: ast.ArrayField, Key: key, Val: val}
		case p.tok.Kind == lualex.IdentifierToken:
			// Lookahead: NAME '=' is a record field; otherwise it's a list
			// expression starting with a bare identifier.
			next, err := p.peekNext()
			if err != nil {
				return nil, err
			}
			if next.Kind == lualex.AssignToken {
				name := p.tok.Value
				if err := p.advance(); err != nil { // consume NAME, current is now '='
					return nil, err
				}
				if err := p.advance(); err != nil { // consume '=', current is now the value
					return nil, err
				}
				val, err := p.expr()
				if err != nil {
					return nil, err
				}
				field = &ast.Field{Position: fieldPos, Kind: ast.RecordField, Name: name, Val: val}
			} else {
				val, err := p.expr()
				if err != nil {
					return nil, err
				}
				field = &ast.Field{Position: fieldPos, Kind: ast.ListField, Val: val}
			}
		default:
			val, err := p.expr()
			if err != nil {
				return nil, err
			}
			field = &ast.Field{Position: fieldPos, Kind: ast.ListField, Val: val}
		}
		tc.Fields = append(tc.Fields, field)
		if p.tok.Kind == lualex.CommaToken || p.tok.Kind == lualex.SemiToken {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lualex.RBraceToken); err != nil {
		return nil, err
	}
	return tc, nil
}
