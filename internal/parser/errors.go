package parser

import (
	"fmt"

	"github.com/lhaig/refine/internal/lexer"
)

// bailout unwinds the parser after the first error. Notation strings are
// short, so one precise message beats a cascade of follow-on errors.
type bailout struct{}

func (p *Parser) errorAt(tok lexer.Token, format string, args ...any) {
	p.diags.Errorf(tok.Line, tok.Column, format, args...)
	panic(bailout{})
}

func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.current(), format, args...)
}

// describe renders a token for error messages
func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.IDENT, lexer.INT_LIT, lexer.ILLEGAL:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Literal)
}

// run calls parse, turning a bailout into a false result
func (p *Parser) run(parse func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			ok = false
		}
	}()
	parse()
	if !p.check(lexer.EOF) {
		p.errorf("unexpected %s after end of term", describe(p.current()))
	}
	return true
}
