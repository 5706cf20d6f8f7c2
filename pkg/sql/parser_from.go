package sql

// FROM grammar:
//
//	from_clause = table_ref { join }
//	join        = "," table_ref
//	            | [ "NATURAL" ] join_kind "JOIN" table_ref [ "ON" expr | "USING" "(" ... ")" ]
//	join_kind   = [ "INNER" | "CROSS" | ( "LEFT" | "RIGHT" | "FULL" ) [ "OUTER" ] ]
//	table_ref   = base_ref { "PIVOT" group | "UNPIVOT" group | "MATCH_RECOGNIZE" group } [ alias ]
//	base_ref    = qualified_name [ "(" args ")" ]
//	            | [ "LATERAL" ] "(" select_stmt ")"
//	            | "(" from_clause ")"
//	alias       = [ "AS" ] ident [ "(" column_list ")" ]
//
// A name followed by an argument list is a table function; it contributes no
// table dependency, but queries inside its arguments are lifted.

// tokens that end an ON condition at depth zero.
var joinStops = stops(
	TOKEN_JOIN, TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_FULL,
	TOKEN_CROSS, TOKEN_NATURAL,
	TOKEN_WHERE, TOKEN_GROUP, TOKEN_HAVING, TOKEN_QUALIFY, TOKEN_WINDOW,
	TOKEN_ORDER, TOKEN_LIMIT, TOKEN_OFFSET, TOKEN_FETCH,
	TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT,
	TOKEN_PIVOT, TOKEN_UNPIVOT, TOKEN_MATCH_RECOGNIZE,
)

func (p *Parser) parseFromClause() *FromClause {
	fc := &FromClause{}
	fc.Source = p.parseTableRef()
	for {
		join := p.parseJoin()
		if join == nil {
			return fc
		}
		fc.Joins = append(fc.Joins, join)
	}
}

func (p *Parser) parseJoin() *Join {
	join := &Join{Type: JoinInner}

	switch {
	case p.check(TOKEN_COMMA):
		p.advance()
		join.Type = JoinCross
		join.Right = p.parseTableRef()
		return join
	case p.check(TOKEN_NATURAL):
		p.advance()
		join.Natural = true
	case !p.check(TOKEN_JOIN) && !p.check(TOKEN_INNER) && !p.check(TOKEN_LEFT) &&
		!p.check(TOKEN_RIGHT) && !p.check(TOKEN_FULL) && !p.check(TOKEN_CROSS):
		return nil
	}

	switch p.cur.Type {
	case TOKEN_INNER:
		p.advance()
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.advance()
		p.match(TOKEN_OUTER)
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.advance()
		p.match(TOKEN_OUTER)
	case TOKEN_FULL:
		join.Type = JoinFull
		p.advance()
		p.match(TOKEN_OUTER)
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.advance()
	}
	p.expect(TOKEN_JOIN, "JOIN")

	join.Right = p.parseTableRef()

	switch p.cur.Type {
	case TOKEN_ON:
		p.advance()
		join.Subqueries = p.scanExpr(joinStops, true)
	case TOKEN_USING:
		p.advance()
		join.Subqueries = p.skipBalanced()
	}
	return join
}

func (p *Parser) parseTableRef() TableRef {
	ref := p.parseBaseTableRef()
	if ref == nil {
		return nil
	}
	// PIVOT / UNPIVOT / MATCH_RECOGNIZE wrap the source they follow.
	for {
		switch p.cur.Type {
		case TOKEN_PIVOT:
			p.advance()
			p.skipBalanced()
			ref = &PivotTable{Source: ref, Alias: p.parseAlias()}
		case TOKEN_UNPIVOT:
			p.advance()
			// DuckDB allows INCLUDE/EXCLUDE NULLS before the group.
			for p.check(TOKEN_IDENT) {
				p.advance()
			}
			p.skipBalanced()
			ref = &UnpivotTable{Source: ref, Alias: p.parseAlias()}
		case TOKEN_MATCH_RECOGNIZE:
			p.advance()
			p.skipBalanced()
			ref = &MatchRecognizeTable{Source: ref, Alias: p.parseAlias()}
		default:
			return ref
		}
	}
}

func (p *Parser) parseBaseTableRef() TableRef {
	lateral := p.match(TOKEN_LATERAL)

	if p.check(TOKEN_LPAREN) {
		if p.peek.Type == TOKEN_SELECT || p.peek.Type == TOKEN_WITH {
			p.advance()
			sel := p.parseSelectStmt()
			p.expect(TOKEN_RPAREN, ")")
			return &DerivedTable{Select: sel, Lateral: lateral, Alias: p.parseAlias()}
		}
		// A parenthesized join tree.
		p.advance()
		inner := p.parseFromClause()
		p.expect(TOKEN_RPAREN, ")")
		return &ParenJoin{From: inner, Alias: p.parseAlias()}
	}

	if !p.check(TOKEN_IDENT) {
		p.addError("expected table reference, found %q", p.cur.Literal)
		p.advance()
		return nil
	}

	parts := []string{p.cur.Literal}
	p.advance()
	for p.match(TOKEN_DOT) {
		part := p.expect(TOKEN_IDENT, "name after .")
		parts = append(parts, part.Literal)
	}

	if p.check(TOKEN_LPAREN) {
		subs := p.skipBalanced()
		return &TableFunction{
			Name:       parts[len(parts)-1],
			Alias:      p.parseAlias(),
			Subqueries: subs,
		}
	}

	name := &TableName{}
	switch len(parts) {
	case 1:
		name.Name = parts[0]
	case 2:
		name.Schema, name.Name = parts[0], parts[1]
	default:
		name.Catalog, name.Schema, name.Name = parts[0], parts[1], parts[len(parts)-1]
	}
	name.Alias = p.parseAlias()
	return name
}

// parseAlias consumes an optional [AS] alias with an optional column list
// and returns the alias name, or "" when absent.
func (p *Parser) parseAlias() string {
	if p.match(TOKEN_AS) {
		alias := p.expect(TOKEN_IDENT, "alias")
		if p.check(TOKEN_LPAREN) {
			p.skipBalanced()
		}
		return alias.Literal
	}
	if p.check(TOKEN_IDENT) {
		alias := p.cur.Literal
		p.advance()
		if p.check(TOKEN_LPAREN) {
			p.skipBalanced()
		}
		return alias
	}
	return ""
}
