// Package lexer tokenizes the core refinement notation used to write
// function signatures, types and predicates in manifests.
package lexer

// Lexer scans core notation and produces tokens
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
}

// New creates a new Lexer instance
func New(input string) *Lexer {
	return NewAt(input, 1, 1)
}

// NewAt creates a lexer whose first character sits at line:column. Manifests
// use it so positions point into the enclosing YAML file.
func NewAt(input string, line, column int) *Lexer {
	l := &Lexer{
		input:  input,
		line:   line,
		column: column - 1,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar returns the character offset places past the current one
func (l *Lexer) peekChar(offset int) byte {
	pos := l.position + offset
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		l.readChar()
	}
}

func (l *Lexer) skipSingleLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// skipMultiLineComment skips past the closing */ of a block comment
func (l *Lexer) skipMultiLineComment() {
	for l.ch != 0 {
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		if l.ch == '*' && l.peekChar(1) == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// operators lists multi-character operators longest first
var operators = []struct {
	text string
	typ  TokenType
}{
	{"<=>", IFF},
	{"==", EQ},
	{"=>", IMPLIES},
	{"!=", NEQ},
	{"<=", LEQ},
	{">=", GEQ},
	{"&&", AND},
	{"||", OR},
	{"->", ARROW},
}

var singles = map[byte]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'%': PERCENT,
	'=': ASSIGN,
	'<': LT,
	'>': GT,
	'&': AMP,
	'|': PIPE,
	'!': BANG,
	'~': BANG,
	'@': AT,
	'?': QUESTION,
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	'[': LBRACKET,
	']': RBRACKET,
	',': COMMA,
	':': COLON,
	';': SEMICOLON,
	'.': DOT,
}

func (l *Lexer) hasPrefix(s string) bool {
	for i := 0; i < len(s); i++ {
		if l.peekChar(i) != s[i] {
			return false
		}
	}
	return true
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.ch == '/' && l.peekChar(1) == '/' {
		l.skipSingleLineComment()
		return l.NextToken()
	}
	if l.ch == '/' && l.peekChar(1) == '*' {
		l.readChar()
		l.readChar()
		l.skipMultiLineComment()
		return l.NextToken()
	}

	tok := Token{Line: l.line, Column: l.column}

	switch {
	case l.ch == 0:
		tok.Type = EOF
		return tok
	case isLetter(l.ch):
		tok.Literal = l.readIdentifier()
		tok.Type = LookupIdent(tok.Literal)
		return tok
	case isDigit(l.ch):
		tok.Type = INT_LIT
		tok.Literal = l.readNumber()
		return tok
	}

	for _, op := range operators {
		if l.hasPrefix(op.text) {
			for range op.text {
				l.readChar()
			}
			tok.Type = op.typ
			tok.Literal = op.text
			return tok
		}
	}

	tok.Literal = string(l.ch)
	if tt, ok := singles[l.ch]; ok {
		tok.Type = tt
	} else {
		tok.Type = ILLEGAL
	}
	l.readChar()
	return tok
}

// Tokenize returns all tokens from the input
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
