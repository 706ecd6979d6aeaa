package lexer

import (
	"testing"
)

func TestNextToken_Operators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "arithmetic operators",
			input:    "+ - * / % mod",
			expected: []TokenType{PLUS, MINUS, STAR, SLASH, PERCENT, MOD, EOF},
		},
		{
			name:     "comparison operators",
			input:    "== = != < > <= >=",
			expected: []TokenType{EQ, ASSIGN, NEQ, LT, GT, LEQ, GEQ, EOF},
		},
		{
			name:     "logical operators",
			input:    "&& || ! => <=>",
			expected: []TokenType{AND, OR, BANG, IMPLIES, IFF, EOF},
		},
		{
			name:     "type operators",
			input:    "& | -> @ ?",
			expected: []TokenType{AMP, PIPE, ARROW, AT, QUESTION, EOF},
		},
		{
			name:     "no spaces",
			input:    "a<=>b=>c<=d",
			expected: []TokenType{IDENT, IFF, IDENT, IMPLIES, IDENT, LEQ, IDENT, EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.input)
			for i, expectedType := range tt.expected {
				tok := l.NextToken()
				if tok.Type != expectedType {
					t.Errorf("token[%d] - wrong type. expected=%q, got=%q",
						i, expectedType, tok.Type)
				}
			}
		})
	}
}

func TestNextToken_Delimiters(t *testing.T) {
	input := "( ) { } [ ] , : ; ."
	expected := []TokenType{
		LPAREN, RPAREN, LBRACE, RBRACE, LBRACKET, RBRACKET,
		COMMA, COLON, SEMICOLON, DOT, EOF,
	}

	l := New(input)
	for i, expectedType := range expected {
		tok := l.NextToken()
		if tok.Type != expectedType {
			t.Errorf("token[%d] - wrong type. expected=%q, got=%q",
				i, expectedType, tok.Type)
		}
	}
}

func TestNextToken_Keywords(t *testing.T) {
	tests := []struct {
		keyword  string
		expected TokenType
	}{
		{"fn", FN},
		{"for", FOR},
		{"requires", REQUIRES},
		{"ensures", ENSURES},
		{"mut", MUT},
		{"ptr", PTR},
		{"true", TRUE},
		{"false", FALSE},
		{"if", IF},
		{"else", ELSE},
		{"mod", MOD},
		{"i32", IDENT},
		{"int", IDENT},
		{"fnord", IDENT},
		{"_1", IDENT},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			l := New(tt.keyword)
			tok := l.NextToken()
			if tok.Type != tt.expected {
				t.Errorf("keyword %q - wrong type. expected=%q, got=%q",
					tt.keyword, tt.expected, tok.Type)
			}
			if tok.Literal != tt.keyword {
				t.Errorf("keyword %q - wrong literal. expected=%q, got=%q",
					tt.keyword, tt.keyword, tok.Literal)
			}
		})
	}
}

func TestNextToken_IntegerLiterals(t *testing.T) {
	tests := []string{"0", "123", "18446744073709551615"}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			tok := New(input).NextToken()
			if tok.Type != INT_LIT {
				t.Errorf("expected INT_LIT, got %q", tok.Type)
			}
			if tok.Literal != input {
				t.Errorf("expected literal %q, got %q", input, tok.Literal)
			}
		})
	}
}

func TestNextToken_TupleProjection(t *testing.T) {
	expected := []struct {
		typ TokenType
		lit string
	}{
		{IDENT, "p"}, {DOT, "."}, {INT_LIT, "0"}, {DOT, "."}, {INT_LIT, "1"}, {EOF, ""},
	}
	l := New("p.0.1")
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.typ || tok.Literal != want.lit {
			t.Errorf("token[%d] - expected %s %q, got %s %q", i, want.typ, want.lit, tok.Type, tok.Literal)
		}
	}
}

func TestNextToken_LineAndColumnTracking(t *testing.T) {
	input := "fn(i32[n])\n  -> bool"
	expected := []struct {
		typ    TokenType
		line   int
		column int
	}{
		{FN, 1, 1},
		{LPAREN, 1, 3},
		{IDENT, 1, 4},
		{LBRACKET, 1, 7},
		{IDENT, 1, 8},
		{RBRACKET, 1, 9},
		{RPAREN, 1, 10},
		{ARROW, 2, 3},
		{IDENT, 2, 6},
		{EOF, 2, 10},
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.typ || tok.Line != want.line || tok.Column != want.column {
			t.Errorf("token[%d] - expected %s at %d:%d, got %s at %d:%d",
				i, want.typ, want.line, want.column, tok.Type, tok.Line, tok.Column)
		}
	}
}

func TestNewAt_OffsetsPositions(t *testing.T) {
	tok := NewAt("  n", 7, 12).NextToken()
	if tok.Line != 7 || tok.Column != 14 {
		t.Errorf("expected 7:14, got %d:%d", tok.Line, tok.Column)
	}
}

func TestNextToken_Comments(t *testing.T) {
	input := "n // trailing\n/* block\n comment */ > 0"
	expected := []TokenType{IDENT, GT, INT_LIT, EOF}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token[%d] - expected %s, got %s", i, want, tok.Type)
		}
	}
}

func TestNextToken_IllegalCharacters(t *testing.T) {
	for _, input := range []string{"$", "#", "`", "\""} {
		t.Run(input, func(t *testing.T) {
			tok := New(input).NextToken()
			if tok.Type != ILLEGAL {
				t.Errorf("expected ILLEGAL for %q, got %s", input, tok.Type)
			}
			if tok.Literal != input {
				t.Errorf("expected literal %q, got %q", input, tok.Literal)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens := New("for<n: int> fn(i32[n]) -> i32{v: v > n}").Tokenize()
	if len(tokens) != 23 {
		t.Fatalf("expected 23 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens[len(tokens)-1].Type != EOF {
		t.Errorf("expected last token to be EOF, got %s", tokens[len(tokens)-1].Type)
	}
}

func TestTokenType_String(t *testing.T) {
	tests := []struct {
		typ      TokenType
		expected string
	}{
		{IDENT, "IDENT"},
		{IFF, "IFF"},
		{ARROW, "ARROW"},
		{TokenType(999), "TokenType(999)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}
