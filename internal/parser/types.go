package parser

import (
	"github.com/lhaig/refine/internal/lexer"
	"github.com/lhaig/refine/internal/rty"
)

var intTys = map[string]rty.IntTy{
	"i8": rty.I8, "i16": rty.I16, "i32": rty.I32, "i64": rty.I64, "i128": rty.I128, "isize": rty.Isize,
}

var uintTys = map[string]rty.UintTy{
	"u8": rty.U8, "u16": rty.U16, "u32": rty.U32, "u64": rty.U64, "u128": rty.U128, "usize": rty.Usize,
}

var floatTys = map[string]rty.FloatTy{"f32": rty.F32, "f64": rty.F64}

func (p *Parser) withBinder(level []binder, fn func()) {
	p.binders = append(p.binders, level)
	defer func() { p.binders = p.binders[:len(p.binders)-1] }()
	fn()
}

func (p *Parser) parseTy() *rty.Ty {
	a := p.arena
	tok := p.current()
	switch tok.Type {
	case lexer.AMP:
		p.advance()
		if p.match(lexer.MUT) {
			return a.Ref(rty.Mut, p.parseTy())
		}
		return a.Ref(rty.Shr, p.parseTy())
	case lexer.AND:
		// `&&T` lexes as one token
		p.advance()
		return a.Ref(rty.Shr, a.Ref(rty.Shr, p.parseTy()))
	case lexer.PTR:
		p.advance()
		p.expect(lexer.LPAREN)
		path := p.parsePath()
		p.expect(lexer.RPAREN)
		return a.Ptr(path)
	case lexer.BANG:
		p.advance()
		return a.Never()
	case lexer.LPAREN:
		p.advance()
		var tys []*rty.Ty
		trailing := false
		for !p.check(lexer.RPAREN) {
			tys = append(tys, p.parseTy())
			trailing = p.match(lexer.COMMA)
			if !trailing {
				break
			}
		}
		p.expect(lexer.RPAREN)
		if len(tys) == 1 && !trailing {
			return tys[0]
		}
		return a.TupleTy(tys...)
	case lexer.LBRACE:
		p.advance()
		inner := p.parseTy()
		p.expect(lexer.PIPE)
		pred := p.parseExpr()
		p.expect(lexer.RBRACE)
		return a.Constr(pred, inner)
	case lexer.IDENT:
		return p.parseNamedTy()
	}
	p.errorf("unexpected %s in type", describe(tok))
	return nil
}

func (p *Parser) parseNamedTy() *rty.Ty {
	a := p.arena
	tok := p.advance()
	name := tok.Literal
	if f, ok := floatTys[name]; ok {
		return a.FloatTy(f)
	}
	if name == "uninit" {
		return a.Uninit()
	}
	for i, g := range p.env.Generics {
		if g == name {
			return a.ParamTy(rty.ParamTy{Index: uint32(i), Name: name})
		}
	}

	var bty *rty.BaseTy
	if name == "bool" {
		bty = a.BoolBase()
	} else if t, ok := intTys[name]; ok {
		bty = a.IntBase(t)
	} else if t, ok := uintTys[name]; ok {
		bty = a.UintBase(t)
	} else {
		def, ok := p.env.Adts[name]
		if !ok {
			p.errorAt(tok, "unknown type %q", name)
		}
		var substs []*rty.Ty
		if p.match(lexer.LT) {
			for !p.check(lexer.GT) {
				substs = append(substs, p.parseTy())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.GT)
		}
		bty = a.AdtBase(def, substs...)
	}
	return p.parseRefinement(tok, bty)
}

// parseRefinement parses what follows a base type: `[indices]`,
// `{names: pred}`, `{?}` or nothing
func (p *Parser) parseRefinement(tok lexer.Token, bty *rty.BaseTy) *rty.Ty {
	a := p.arena
	sorts := bty.Sorts()
	switch {
	case p.match(lexer.LBRACKET):
		var indices []rty.Index
		for !p.check(lexer.RBRACKET) {
			binder := p.match(lexer.AT)
			indices = append(indices, rty.Index{Expr: p.parseExpr(), IsBinder: binder})
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RBRACKET)
		if len(indices) != len(sorts) {
			p.errorAt(tok, "%s takes %d indices, got %d", bty, len(sorts), len(indices))
		}
		return a.Indexed(bty, indices...)
	case p.match(lexer.LBRACE):
		if p.match(lexer.QUESTION) {
			p.expect(lexer.RBRACE)
			return a.Exists(bty, rty.NewBinders(a.Hole(), sorts))
		}
		var level []binder
		for !p.check(lexer.COLON) {
			name := p.expect(lexer.IDENT)
			if len(level) < len(sorts) {
				level = append(level, binder{name: name.Literal, sort: sorts[len(level)]})
			} else {
				level = append(level, binder{name: name.Literal})
			}
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.COLON)
		if len(level) != len(sorts) {
			p.errorAt(tok, "%s binds %d names, got %d", bty, len(sorts), len(level))
		}
		var pred *rty.Expr
		p.withBinder(level, func() { pred = p.parseExpr() })
		p.expect(lexer.RBRACE)
		return a.ExistsExpr(bty, pred)
	}
	return a.Unrefined(bty)
}

// atPath reports whether the upcoming tokens form `ident(.int)*`
func (p *Parser) atPath() bool {
	if !p.check(lexer.IDENT) {
		return false
	}
	i := 1
	for p.peekAt(i).Type == lexer.DOT && p.peekAt(i+1).Type == lexer.INT_LIT {
		i += 2
	}
	switch p.peekAt(i).Type {
	case lexer.LPAREN, lexer.DOT:
		return false
	}
	return true
}

// isLocation reports whether name denotes a location: a local, a signature
// parameter of sort loc or a caller supplied name that is a location
func (p *Parser) isLocation(name string) bool {
	if _, sort, ok := p.lookupBinder(name); ok {
		return sort.Kind == rty.SortLoc
	}
	if e, ok := p.env.Names[name]; ok {
		if _, isLocal := e.Local(); isLocal {
			return true
		}
		sort, ok := p.env.Sorts[name]
		return ok && sort.Kind == rty.SortLoc
	}
	_, ok := parseLocal(name)
	return ok
}

func (p *Parser) parsePath() rty.Path {
	tok := p.expect(lexer.IDENT)
	if !p.isLocation(tok.Literal) {
		p.errorAt(tok, "%q is not a location", tok.Literal)
	}
	e, _ := p.lookup(tok.Literal)
	loc, _ := e.ToLoc()
	var proj []rty.Field
	for p.check(lexer.DOT) {
		p.advance()
		proj = append(proj, rty.Field(p.parseIndex()))
	}
	return rty.NewPath(loc, proj...)
}

// atTypeConstr reports whether the upcoming tokens start `path: ty`
func (p *Parser) atTypeConstr() bool {
	if !p.check(lexer.IDENT) {
		return false
	}
	i := 1
	for p.peekAt(i).Type == lexer.DOT && p.peekAt(i+1).Type == lexer.INT_LIT {
		i += 2
	}
	return p.peekAt(i).Type == lexer.COLON
}

func (p *Parser) parseConstrs() []rty.Constr {
	var cs []rty.Constr
	for {
		if p.atTypeConstr() {
			path := p.parsePath()
			p.expect(lexer.COLON)
			cs = append(cs, rty.TypeConstr(path, p.parseTy()))
		} else {
			cs = append(cs, rty.PredConstr(p.parseExpr()))
		}
		if !p.match(lexer.COMMA) {
			return cs
		}
	}
}

func (p *Parser) parseFnSig() (rty.FnSig, []string) {
	var level []binder
	if p.match(lexer.FOR) {
		p.expect(lexer.LT)
		for !p.check(lexer.GT) {
			name := p.expect(lexer.IDENT)
			p.expect(lexer.COLON)
			level = append(level, binder{name: name.Literal, sort: p.parseSort()})
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.GT)
	}

	var sig rty.FnSig
	var names []string
	for _, b := range level {
		sig.Params = append(sig.Params, b.sort)
		names = append(names, b.name)
	}
	p.withBinder(level, func() {
		p.expect(lexer.FN)
		p.expect(lexer.LPAREN)
		for !p.check(lexer.RPAREN) {
			// argument names are documentation only
			if p.check(lexer.IDENT) && p.peekAt(1).Type == lexer.COLON {
				p.advance()
				p.advance()
			}
			sig.Args = append(sig.Args, p.parseTy())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN)
		if p.match(lexer.ARROW) {
			sig.Ret = p.parseTy()
		}
		for p.match(lexer.REQUIRES) {
			sig.Requires = append(sig.Requires, p.parseConstrs()...)
		}
		for p.match(lexer.ENSURES) {
			sig.Ensures = append(sig.Ensures, p.parseConstrs()...)
		}
	})
	return sig, names
}
