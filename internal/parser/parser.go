// Package parser reads the core refinement notation into rty terms.
//
// The notation is the desugared form that signatures take once resolved:
//
//	for<n: int, l: loc> fn(&mut i32[n], ptr(l)) -> i32{v: v > n}
//	    requires n >= 0, l: i32[n]
//	    ensures l: i32[n + 1]
//
// Names resolve innermost first: existential binders, then signature
// parameters, then caller supplied names, locals (_1, _2, ...) and finally
// global constants.
package parser

import (
	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/lexer"
	"github.com/lhaig/refine/internal/rty"
)

// Env lists the names a parsed term may mention besides the binders it
// introduces itself
type Env struct {
	Adts     map[string]*rty.AdtDef
	Consts   map[string]rty.Sort
	Names    map[string]*rty.Expr
	Generics []string

	// Sorts holds the sorts of entries in Names. Only names of sort loc
	// may be used as places.
	Sorts map[string]rty.Sort
}

type binder struct {
	name string
	sort rty.Sort
}

// Parser holds the parser state
type Parser struct {
	tokens  []lexer.Token
	pos     int
	diags   *diagnostic.Diagnostics
	arena   *rty.Arena
	env     Env
	binders [][]binder
}

// New creates a parser for source. Terms are built in a.
func New(a *rty.Arena, env Env, source string) *Parser {
	return NewAt(a, env, source, 1, 1)
}

// NewAt is New for a source that starts at line:column of some enclosing
// file, so diagnostics point into that file
func NewAt(a *rty.Arena, env Env, source string, line, column int) *Parser {
	return &Parser{
		tokens: lexer.NewAt(source, line, column).Tokenize(),
		diags:  diagnostic.New(),
		arena:  a,
		env:    env,
	}
}

// Diagnostics returns the parser's diagnostics
func (p *Parser) Diagnostics() *diagnostic.Diagnostics {
	return p.diags
}

// ParseExpr parses a refinement expression
func (p *Parser) ParseExpr() (*rty.Expr, bool) {
	var e *rty.Expr
	ok := p.run(func() { e = p.parseExpr() })
	return e, ok
}

// ParseSort parses a sort: int, bool, loc or a parenthesized tuple of sorts
func (p *Parser) ParseSort() (rty.Sort, bool) {
	var s rty.Sort
	ok := p.run(func() { s = p.parseSort() })
	return s, ok
}

// ParseTy parses a refinement type
func (p *Parser) ParseTy() (*rty.Ty, bool) {
	var t *rty.Ty
	ok := p.run(func() { t = p.parseTy() })
	return t, ok
}

// ParsePath parses a location followed by field projections, like _1.0
func (p *Parser) ParsePath() (rty.Path, bool) {
	var path rty.Path
	ok := p.run(func() { path = p.parsePath() })
	return path, ok
}

// ParseFnSig parses a function signature
func (p *Parser) ParseFnSig() (rty.FnSig, bool) {
	sig, _, ok := p.ParseNamedFnSig()
	return sig, ok
}

// ParseNamedFnSig is ParseFnSig that also returns the names the
// signature's parameters were written with
func (p *Parser) ParseNamedFnSig() (rty.FnSig, []string, bool) {
	var sig rty.FnSig
	var names []string
	ok := p.run(func() { sig, names = p.parseFnSig() })
	return sig, names, ok
}

// Operand is either a place whose current type is looked up, or a type
// given inline
type Operand struct {
	Path *rty.Path
	Ty   *rty.Ty
}

// ParseOperand parses a place or a type. A lone location with optional
// projections is a place; anything else is a type.
func (p *Parser) ParseOperand() (Operand, bool) {
	var op Operand
	ok := p.run(func() {
		if p.atPath() && p.isLocation(p.current().Literal) {
			path := p.parsePath()
			if p.check(lexer.EOF) {
				op.Path = &path
				return
			}
			p.errorf("unexpected %s after place", describe(p.current()))
		}
		op.Ty = p.parseTy()
	})
	return op, ok
}

// current returns the current token
func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token offset places ahead without consuming
func (p *Parser) peekAt(offset int) lexer.Token {
	if p.pos+offset >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance moves to the next token and returns the consumed token
func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches the expected type,
// otherwise reports an error
func (p *Parser) expect(tt lexer.TokenType) lexer.Token {
	tok := p.current()
	if tok.Type != tt {
		p.errorf("expected %s, got %s", tt, describe(tok))
	}
	return p.advance()
}

// check returns true if the current token is of the given type
func (p *Parser) check(tt lexer.TokenType) bool {
	return p.current().Type == tt
}

// match consumes the current token if it matches, returns true if consumed
func (p *Parser) match(tt lexer.TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}
