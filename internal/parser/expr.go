package parser

import (
	"strconv"
	"strings"

	"github.com/lhaig/refine/internal/lexer"
	"github.com/lhaig/refine/internal/rty"
)

// Precedence levels, lowest first
const (
	precNone = iota
	precImplies
	precOr
	precAnd
	precCompare
	precAdditive
	precMulti
)

var binOps = map[lexer.TokenType]rty.BinOp{
	lexer.IFF:     rty.OpIff,
	lexer.IMPLIES: rty.OpImp,
	lexer.OR:      rty.OpOr,
	lexer.AND:     rty.OpAnd,
	lexer.EQ:      rty.OpEq,
	lexer.ASSIGN:  rty.OpEq,
	lexer.NEQ:     rty.OpNe,
	lexer.GT:      rty.OpGt,
	lexer.GEQ:     rty.OpGe,
	lexer.LT:      rty.OpLt,
	lexer.LEQ:     rty.OpLe,
	lexer.PLUS:    rty.OpAdd,
	lexer.MINUS:   rty.OpSub,
	lexer.STAR:    rty.OpMul,
	lexer.SLASH:   rty.OpDiv,
	lexer.PERCENT: rty.OpMod,
	lexer.MOD:     rty.OpMod,
}

func tokenPrecedence(tt lexer.TokenType) int {
	switch tt {
	case lexer.IFF, lexer.IMPLIES:
		return precImplies
	case lexer.OR:
		return precOr
	case lexer.AND:
		return precAnd
	case lexer.EQ, lexer.ASSIGN, lexer.NEQ, lexer.GT, lexer.GEQ, lexer.LT, lexer.LEQ:
		return precCompare
	case lexer.PLUS, lexer.MINUS:
		return precAdditive
	case lexer.STAR, lexer.SLASH, lexer.PERCENT, lexer.MOD:
		return precMulti
	default:
		return precNone
	}
}

// chains reports whether operators of the level may be chained without
// parentheses. Implications and comparisons may not.
func chains(prec int) bool {
	return prec != precImplies && prec != precCompare
}

func (p *Parser) parseExpr() *rty.Expr {
	return p.parsePrecedence(precImplies)
}

func (p *Parser) parsePrecedence(minPrec int) *rty.Expr {
	left := p.parseUnary()
	last := precNone
	for {
		prec := tokenPrecedence(p.current().Type)
		if prec == precNone || prec < minPrec {
			return left
		}
		if prec == last && !chains(prec) {
			p.errorf("operator %q cannot be chained; add parentheses", p.current().Literal)
		}
		op := p.advance()
		right := p.parsePrecedence(prec + 1)
		left = p.arena.BinaryOp(binOps[op.Type], left, right)
		last = prec
	}
}

func (p *Parser) parseUnary() *rty.Expr {
	switch {
	case p.check(lexer.BANG):
		p.advance()
		return p.arena.Not(p.parseUnary())
	case p.check(lexer.MINUS):
		p.advance()
		if p.check(lexer.INT_LIT) {
			c := p.parseIntLit()
			if c.Mag != 0 {
				c.Sign = rty.Negative
			}
			return p.parsePostfix(p.arena.Const(c))
		}
		return p.arena.Neg(p.parseUnary())
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(e *rty.Expr) *rty.Expr {
	for p.check(lexer.DOT) {
		p.advance()
		field := p.parseIndex()
		switch e.Kind() {
		case rty.ExprLocal, rty.ExprPathProj:
			e = p.arena.PathProj(e, rty.Field(field))
		default:
			e = p.arena.TupleProj(e, field)
		}
	}
	return e
}

func (p *Parser) parseIndex() uint32 {
	tok := p.expect(lexer.INT_LIT)
	n, err := strconv.ParseUint(tok.Literal, 10, 32)
	if err != nil {
		p.errorAt(tok, "projection index %s out of range", tok.Literal)
	}
	return uint32(n)
}

func (p *Parser) parseIntLit() rty.Constant {
	tok := p.expect(lexer.INT_LIT)
	n, err := strconv.ParseUint(tok.Literal, 10, 64)
	if err != nil {
		p.errorAt(tok, "integer literal %s does not fit in 64 bits", tok.Literal)
	}
	return rty.UintConst(n)
}

func (p *Parser) parsePrimary() *rty.Expr {
	tok := p.current()
	switch tok.Type {
	case lexer.INT_LIT:
		return p.arena.Const(p.parseIntLit())
	case lexer.TRUE:
		p.advance()
		return p.arena.True()
	case lexer.FALSE:
		p.advance()
		return p.arena.False()
	case lexer.IDENT:
		p.advance()
		if p.match(lexer.LPAREN) {
			return p.arena.App(tok.Literal, p.parseExprList(lexer.RPAREN)...)
		}
		return p.resolve(tok)
	case lexer.LPAREN:
		p.advance()
		es := p.parseExprList(lexer.RPAREN)
		if len(es) == 1 && p.tokens[p.pos-2].Type != lexer.COMMA {
			return es[0]
		}
		return p.arena.Tuple(es...)
	case lexer.IF:
		p.advance()
		cond := p.parseExpr()
		p.expect(lexer.LBRACE)
		then := p.parseExpr()
		p.expect(lexer.RBRACE)
		p.expect(lexer.ELSE)
		p.expect(lexer.LBRACE)
		els := p.parseExpr()
		p.expect(lexer.RBRACE)
		return p.arena.IfThenElse(cond, then, els)
	}
	p.errorf("unexpected %s in expression", describe(tok))
	return nil
}

// parseExprList parses comma separated expressions up to and including
// the closing token. A trailing comma is allowed.
func (p *Parser) parseExprList(closing lexer.TokenType) []*rty.Expr {
	var es []*rty.Expr
	for !p.check(closing) {
		es = append(es, p.parseExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(closing)
	return es
}

// lookupBinder finds name among the enclosing binders
func (p *Parser) lookupBinder(name string) (rty.BoundVar, rty.Sort, bool) {
	for depth := 0; depth < len(p.binders); depth++ {
		level := p.binders[len(p.binders)-1-depth]
		for i, b := range level {
			if b.name == name {
				return rty.BoundVar{Debruijn: rty.DebruijnIndex(depth), Index: uint32(i)}, b.sort, true
			}
		}
	}
	return rty.BoundVar{}, rty.Sort{}, false
}

func parseLocal(name string) (rty.Local, bool) {
	digits, ok := strings.CutPrefix(name, "_")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, false
	}
	return rty.Local(n), true
}

func (p *Parser) lookup(name string) (*rty.Expr, bool) {
	if bv, _, ok := p.lookupBinder(name); ok {
		return p.arena.BVar(bv), true
	}
	if e, ok := p.env.Names[name]; ok {
		return e, true
	}
	if l, ok := parseLocal(name); ok {
		return p.arena.LocalVar(l), true
	}
	if _, ok := p.env.Consts[name]; ok {
		return p.arena.ConstRef(name), true
	}
	return nil, false
}

func (p *Parser) resolve(tok lexer.Token) *rty.Expr {
	e, ok := p.lookup(tok.Literal)
	if !ok {
		p.errorAt(tok, "unbound name %q", tok.Literal)
	}
	return e
}

func (p *Parser) parseSort() rty.Sort {
	tok := p.current()
	if p.match(lexer.LPAREN) {
		var elems []rty.Sort
		for !p.check(lexer.RPAREN) {
			elems = append(elems, p.parseSort())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN)
		return rty.TupleSort(elems...)
	}
	p.expect(lexer.IDENT)
	switch tok.Literal {
	case "int":
		return rty.IntSort
	case "bool":
		return rty.BoolSort
	case "loc":
		return rty.LocSort
	}
	p.errorAt(tok, "unknown sort %q", tok.Literal)
	return rty.Sort{}
}
