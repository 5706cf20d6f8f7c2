package sql

import "strings"

// TokenType identifies the lexical class of a token.
type TokenType int

// Token types. Keywords the parser branches on get their own type; every
// other word is TOKEN_IDENT.
const (
	TOKEN_EOF TokenType = iota
	TOKEN_IDENT
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_OP
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
	TOKEN_DOT
	TOKEN_SEMICOLON

	TOKEN_SELECT
	TOKEN_WITH
	TOKEN_RECURSIVE
	TOKEN_AS
	TOKEN_FROM
	TOKEN_WHERE
	TOKEN_GROUP
	TOKEN_BY
	TOKEN_HAVING
	TOKEN_QUALIFY
	TOKEN_WINDOW
	TOKEN_ORDER
	TOKEN_LIMIT
	TOKEN_OFFSET
	TOKEN_FETCH
	TOKEN_UNION
	TOKEN_INTERSECT
	TOKEN_EXCEPT
	TOKEN_ALL
	TOKEN_DISTINCT
	TOKEN_JOIN
	TOKEN_INNER
	TOKEN_LEFT
	TOKEN_RIGHT
	TOKEN_FULL
	TOKEN_CROSS
	TOKEN_OUTER
	TOKEN_NATURAL
	TOKEN_ON
	TOKEN_USING
	TOKEN_LATERAL
	TOKEN_PIVOT
	TOKEN_UNPIVOT
	TOKEN_MATCH_RECOGNIZE
)

// Token is a single lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset in the input
}

var keywords = map[string]TokenType{
	"SELECT":          TOKEN_SELECT,
	"WITH":            TOKEN_WITH,
	"RECURSIVE":       TOKEN_RECURSIVE,
	"AS":              TOKEN_AS,
	"FROM":            TOKEN_FROM,
	"WHERE":           TOKEN_WHERE,
	"GROUP":           TOKEN_GROUP,
	"BY":              TOKEN_BY,
	"HAVING":          TOKEN_HAVING,
	"QUALIFY":         TOKEN_QUALIFY,
	"WINDOW":          TOKEN_WINDOW,
	"ORDER":           TOKEN_ORDER,
	"LIMIT":           TOKEN_LIMIT,
	"OFFSET":          TOKEN_OFFSET,
	"FETCH":           TOKEN_FETCH,
	"UNION":           TOKEN_UNION,
	"INTERSECT":       TOKEN_INTERSECT,
	"EXCEPT":          TOKEN_EXCEPT,
	"ALL":             TOKEN_ALL,
	"DISTINCT":        TOKEN_DISTINCT,
	"JOIN":            TOKEN_JOIN,
	"INNER":           TOKEN_INNER,
	"LEFT":            TOKEN_LEFT,
	"RIGHT":           TOKEN_RIGHT,
	"FULL":            TOKEN_FULL,
	"CROSS":           TOKEN_CROSS,
	"OUTER":           TOKEN_OUTER,
	"NATURAL":         TOKEN_NATURAL,
	"ON":              TOKEN_ON,
	"USING":           TOKEN_USING,
	"LATERAL":         TOKEN_LATERAL,
	"PIVOT":           TOKEN_PIVOT,
	"UNPIVOT":         TOKEN_UNPIVOT,
	"MATCH_RECOGNIZE": TOKEN_MATCH_RECOGNIZE,
}

// Lexer tokenizes SQL input. Comments and whitespace are skipped; string
// literals become TOKEN_STRING so their contents are never mistaken for
// identifiers.
type Lexer struct {
	input string
	pos   int
}

// NewLexer returns a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token, or a TOKEN_EOF token at end of input.
func (l *Lexer) Next() Token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Type: TOKEN_LPAREN, Literal: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TOKEN_RPAREN, Literal: ")", Pos: start}
	case ',':
		l.pos++
		return Token{Type: TOKEN_COMMA, Literal: ",", Pos: start}
	case '.':
		// A leading dot on a digit is a number like .5
		if l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			return l.lexNumber()
		}
		l.pos++
		return Token{Type: TOKEN_DOT, Literal: ".", Pos: start}
	case ';':
		l.pos++
		return Token{Type: TOKEN_SEMICOLON, Literal: ";", Pos: start}
	case '\'':
		return l.lexString()
	case '"':
		return l.lexQuotedIdent('"')
	case '`':
		return l.lexQuotedIdent('`')
	}

	if isDigit(ch) {
		return l.lexNumber()
	}
	if isIdentStart(ch) {
		return l.lexWord()
	}
	return l.lexOperator()
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '-' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '-':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*':
			l.pos += 2
			for l.pos+1 < len(l.input) && !(l.input[l.pos] == '*' && l.input[l.pos+1] == '/') {
				l.pos++
			}
			if l.pos+1 < len(l.input) {
				l.pos += 2
			} else {
				l.pos = len(l.input)
			}
		default:
			return
		}
	}
}

func (l *Lexer) lexString() Token {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			// '' is an escaped quote inside the literal
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{Type: TOKEN_STRING, Literal: sb.String(), Pos: start}
}

func (l *Lexer) lexQuotedIdent(quote byte) Token {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{Type: TOKEN_IDENT, Literal: sb.String(), Pos: start}
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isDigit(ch) || ch == '.' || ch == 'e' || ch == 'E' {
			l.pos++
			continue
		}
		if (ch == '+' || ch == '-') && l.pos > start &&
			(l.input[l.pos-1] == 'e' || l.input[l.pos-1] == 'E') {
			l.pos++
			continue
		}
		break
	}
	return Token{Type: TOKEN_NUMBER, Literal: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) lexWord() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	if typ, ok := keywords[strings.ToUpper(word)]; ok {
		return Token{Type: typ, Literal: word, Pos: start}
	}
	return Token{Type: TOKEN_IDENT, Literal: word, Pos: start}
}

func (l *Lexer) lexOperator() Token {
	start := l.pos
	for l.pos < len(l.input) && isOperatorChar(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Unknown byte; consume it so lexing always progresses.
		l.pos++
	}
	return Token{Type: TOKEN_OP, Literal: l.input[start:l.pos], Pos: start}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isOperatorChar(ch byte) bool {
	switch ch {
	case '+', '-', '*', '/', '%', '<', '>', '=', '!', '|', '&', '^', '~', '?', ':', '[', ']', '@', '#':
		return true
	}
	return false
}
