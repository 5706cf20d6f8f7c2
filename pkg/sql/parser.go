package sql

import (
	"fmt"
	"strings"
)

// ParseError is a single parse failure with its byte offset.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// ParseErrors aggregates all failures from one Parse call.
type ParseErrors []*ParseError

func (es ParseErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Parser is a recursive-descent parser over the lexer's token stream. It
// keeps a one-token lookahead and collects errors instead of stopping at the
// first one.
type Parser struct {
	lex  *Lexer
	cur  Token
	peek Token

	errors ParseErrors
}

// NewParser returns a parser over input with cur and peek primed.
func NewParser(input string) *Parser {
	p := &Parser{lex: NewLexer(input)}
	p.advance()
	p.advance()
	return p
}

// Parse parses the input as a sequence of semicolon-separated queries.
// Statements that are not queries (DDL, DML) are skipped without error;
// table-dependency analysis only needs the query structure.
func Parse(input string) ([]*SelectStmt, error) {
	p := NewParser(input)
	stmts := p.parseStatements()
	if len(p.errors) > 0 {
		return stmts, p.errors
	}
	return stmts, nil
}

func (p *Parser) parseStatements() []*SelectStmt {
	var stmts []*SelectStmt
	for p.cur.Type != TOKEN_EOF {
		if p.cur.Type == TOKEN_SEMICOLON {
			p.advance()
			continue
		}
		if p.cur.Type == TOKEN_SELECT || p.cur.Type == TOKEN_WITH {
			if stmt := p.parseSelectStmt(); stmt != nil {
				stmts = append(stmts, stmt)
			}
		} else {
			p.skipStatement()
		}
		// Consume to the statement boundary whatever the outcome.
		for p.cur.Type != TOKEN_SEMICOLON && p.cur.Type != TOKEN_EOF {
			p.advance()
		}
	}
	return stmts
}

// skipStatement consumes a non-query statement up to its terminator.
func (p *Parser) skipStatement() {
	for p.cur.Type != TOKEN_SEMICOLON && p.cur.Type != TOKEN_EOF {
		p.advance()
	}
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.Next()
}

// match consumes the current token if it has the given type.
func (p *Parser) match(t TokenType) bool {
	if p.cur.Type == t {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	return p.cur.Type == t
}

// expect consumes a token of the given type or records an error. It always
// advances so parsing cannot loop on a stuck token.
func (p *Parser) expect(t TokenType, what string) Token {
	tok := p.cur
	if tok.Type != t {
		p.addError("expected %s, found %q", what, tok.Literal)
	}
	p.advance()
	return tok
}

func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.cur.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// atEnd reports whether the current token ends the enclosing construct.
func (p *Parser) atEnd() bool {
	return p.cur.Type == TOKEN_EOF || p.cur.Type == TOKEN_SEMICOLON
}

// stopSet is the set of token types that terminate an expression scan at
// paren depth zero.
type stopSet map[TokenType]bool

func stops(types ...TokenType) stopSet {
	s := make(stopSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

// scanExpr consumes expression tokens until a stop token at depth zero,
// lifting any embedded queries into subqueries. The stop token is left for
// the caller. RPAREN and COMMA always stop at depth zero regardless of the
// stop set, so clause scanning never escapes its enclosing parens; COMMA
// only stops when commaStops is set.
func (p *Parser) scanExpr(stop stopSet, commaStops bool) []*SelectStmt {
	var subs []*SelectStmt
	depth := 0
	for {
		switch {
		case p.cur.Type == TOKEN_EOF || p.cur.Type == TOKEN_SEMICOLON:
			return subs
		case depth == 0 && p.cur.Type == TOKEN_RPAREN:
			return subs
		case depth == 0 && commaStops && p.cur.Type == TOKEN_COMMA:
			return subs
		case depth == 0 && stop[p.cur.Type]:
			return subs
		case p.cur.Type == TOKEN_LPAREN:
			// A paren opening a query becomes a lifted subquery; any
			// other paren just deepens the scan.
			if p.peek.Type == TOKEN_SELECT || p.peek.Type == TOKEN_WITH {
				p.advance() // (
				if stmt := p.parseSelectStmt(); stmt != nil {
					subs = append(subs, stmt)
				}
				p.expect(TOKEN_RPAREN, ")")
				continue
			}
			depth++
			p.advance()
		case p.cur.Type == TOKEN_RPAREN:
			depth--
			p.advance()
		default:
			p.advance()
		}
	}
}

// skipBalanced consumes a parenthesized group, assuming cur is LPAREN.
// Queries nested inside are lifted and returned.
func (p *Parser) skipBalanced() []*SelectStmt {
	if !p.match(TOKEN_LPAREN) {
		p.addError("expected (, found %q", p.cur.Literal)
		return nil
	}
	var subs []*SelectStmt
	depth := 1
	for depth > 0 && p.cur.Type != TOKEN_EOF {
		switch p.cur.Type {
		case TOKEN_LPAREN:
			if p.peek.Type == TOKEN_SELECT || p.peek.Type == TOKEN_WITH {
				p.advance()
				if stmt := p.parseSelectStmt(); stmt != nil {
					subs = append(subs, stmt)
				}
				p.expect(TOKEN_RPAREN, ")")
				continue
			}
			depth++
			p.advance()
		case TOKEN_RPAREN:
			depth--
			p.advance()
		case TOKEN_SELECT, TOKEN_WITH:
			if stmt := p.parseSelectStmt(); stmt != nil {
				subs = append(subs, stmt)
			}
		default:
			p.advance()
		}
	}
	return subs
}
