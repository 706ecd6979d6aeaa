package lexer

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Literals
	IDENT   // n, len, _1, i32
	INT_LIT // 123

	// Keywords
	FN
	FOR
	REQUIRES
	ENSURES
	MUT
	PTR
	TRUE
	FALSE
	IF
	ELSE
	MOD

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	EQ       // ==
	ASSIGN   // =
	NEQ      // !=
	LT       // <
	GT       // >
	LEQ      // <=
	GEQ      // >=
	AND      // &&
	OR       // ||
	IMPLIES  // =>
	IFF      // <=>
	ARROW    // ->
	AMP      // &
	PIPE     // |
	BANG     // ! or ~
	AT       // @
	QUESTION // ?

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	COLON     // :
	SEMICOLON // ;
	DOT       // .
)

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

var tokenNames = map[TokenType]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	IDENT:     "IDENT",
	INT_LIT:   "INT_LIT",
	FN:        "FN",
	FOR:       "FOR",
	REQUIRES:  "REQUIRES",
	ENSURES:   "ENSURES",
	MUT:       "MUT",
	PTR:       "PTR",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	IF:        "IF",
	ELSE:      "ELSE",
	MOD:       "MOD",
	PLUS:      "PLUS",
	MINUS:     "MINUS",
	STAR:      "STAR",
	SLASH:     "SLASH",
	PERCENT:   "PERCENT",
	EQ:        "EQ",
	ASSIGN:    "ASSIGN",
	NEQ:       "NEQ",
	LT:        "LT",
	GT:        "GT",
	LEQ:       "LEQ",
	GEQ:       "GEQ",
	AND:       "AND",
	OR:        "OR",
	IMPLIES:   "IMPLIES",
	IFF:       "IFF",
	ARROW:     "ARROW",
	AMP:       "AMP",
	PIPE:      "PIPE",
	BANG:      "BANG",
	AT:        "AT",
	QUESTION:  "QUESTION",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	LBRACE:    "LBRACE",
	RBRACE:    "RBRACE",
	LBRACKET:  "LBRACKET",
	RBRACKET:  "RBRACKET",
	COMMA:     "COMMA",
	COLON:     "COLON",
	SEMICOLON: "SEMICOLON",
	DOT:       "DOT",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Line, t.Column)
}

// keywords maps keyword strings to their token types. Sort names and base
// type names are plain identifiers resolved by the parser.
var keywords = map[string]TokenType{
	"fn":       FN,
	"for":      FOR,
	"requires": REQUIRES,
	"ensures":  ENSURES,
	"mut":      MUT,
	"ptr":      PTR,
	"true":     TRUE,
	"false":    FALSE,
	"if":       IF,
	"else":     ELSE,
	"mod":      MOD,
}

// LookupIdent returns the keyword token type for ident, or IDENT
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
