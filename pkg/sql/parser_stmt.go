package sql

// Statement grammar:
//
//	select_stmt  = [ with_clause ] select_body
//	with_clause  = "WITH" [ "RECURSIVE" ] cte { "," cte }
//	cte          = ident [ "(" column_list ")" ] "AS" [ modifier ] "(" select_stmt ")"
//	select_body  = select_term { set_op [ "ALL" | "DISTINCT" ] select_term }
//	select_term  = select_core | "(" select_body ")"
//	select_core  = "SELECT" [ "ALL" | "DISTINCT" ] select_list
//	               [ "FROM" from_clause ] [ "WHERE" expr ] [ "GROUP" "BY" exprs ]
//	               [ "HAVING" expr ] [ "QUALIFY" expr ] [ "WINDOW" ... ]
//	               [ "ORDER" "BY" exprs ] [ "LIMIT" expr ] [ "OFFSET" expr ]
//	               [ "FETCH" ... ]
//
// Expressions in the select list and the trailing clauses are scanned, not
// parsed; queries embedded in them are lifted into SelectCore.Subqueries.

func (p *Parser) parseSelectStmt() *SelectStmt {
	stmt := &SelectStmt{}
	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
	}
	stmt.Body = p.parseSelectBody()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH, "WITH")
	wc := &WithClause{}
	wc.Recursive = p.match(TOKEN_RECURSIVE)
	for {
		cte := p.parseCTE()
		if cte != nil {
			wc.CTEs = append(wc.CTEs, cte)
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return wc
}

func (p *Parser) parseCTE() *CTE {
	name := p.expect(TOKEN_IDENT, "CTE name")
	if p.check(TOKEN_LPAREN) {
		// Optional column list.
		p.skipBalanced()
	}
	p.expect(TOKEN_AS, "AS")
	// Dialects allow MATERIALIZED / NOT MATERIALIZED between AS and the
	// body; skip any words before the opening paren.
	for p.check(TOKEN_IDENT) {
		p.advance()
	}
	if !p.match(TOKEN_LPAREN) {
		p.addError("expected ( after AS in CTE %q", name.Literal)
		return nil
	}
	sel := p.parseSelectStmt()
	p.expect(TOKEN_RPAREN, ")")
	if sel == nil {
		return nil
	}
	return &CTE{Name: name.Literal, Select: sel}
}

func (p *Parser) parseSelectBody() *SelectBody {
	left := p.parseSelectTerm()
	if left == nil {
		return nil
	}
	for {
		var op SetOpType
		switch p.cur.Type {
		case TOKEN_UNION:
			op = SetOpUnion
		case TOKEN_INTERSECT:
			op = SetOpIntersect
		case TOKEN_EXCEPT:
			op = SetOpExcept
		default:
			return left
		}
		p.advance()
		all := p.match(TOKEN_ALL)
		if !all {
			p.match(TOKEN_DISTINCT)
		}
		right := p.parseSelectTerm()
		if right == nil {
			return left
		}
		left = &SelectBody{Op: op, All: all, Left: left, Right: right}
	}
}

func (p *Parser) parseSelectTerm() *SelectBody {
	if p.check(TOKEN_LPAREN) && (p.peek.Type == TOKEN_SELECT || p.peek.Type == TOKEN_WITH || p.peek.Type == TOKEN_LPAREN) {
		p.advance()
		body := p.parseSelectBody()
		p.expect(TOKEN_RPAREN, ")")
		return body
	}
	core := p.parseSelectCore()
	if core == nil {
		return nil
	}
	return &SelectBody{Core: core}
}

// trailing clauses that end the select list or a preceding clause.
var coreClauseStops = stops(
	TOKEN_FROM, TOKEN_WHERE, TOKEN_GROUP, TOKEN_HAVING, TOKEN_QUALIFY,
	TOKEN_WINDOW, TOKEN_ORDER, TOKEN_LIMIT, TOKEN_OFFSET, TOKEN_FETCH,
	TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT,
)

func (p *Parser) parseSelectCore() *SelectCore {
	if !p.match(TOKEN_SELECT) {
		p.addError("expected SELECT, found %q", p.cur.Literal)
		return nil
	}
	core := &SelectCore{}
	if p.check(TOKEN_ALL) || p.check(TOKEN_DISTINCT) {
		p.advance()
		// DISTINCT ON (...)
		if p.check(TOKEN_ON) {
			p.advance()
			core.Subqueries = append(core.Subqueries, p.skipBalanced()...)
		}
	}

	core.Subqueries = append(core.Subqueries, p.scanExpr(coreClauseStops, false)...)

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}
	for {
		switch p.cur.Type {
		case TOKEN_WHERE, TOKEN_HAVING, TOKEN_QUALIFY, TOKEN_LIMIT, TOKEN_OFFSET:
			p.advance()
			core.Subqueries = append(core.Subqueries, p.scanExpr(coreClauseStops, false)...)
		case TOKEN_GROUP, TOKEN_ORDER:
			p.advance()
			p.expect(TOKEN_BY, "BY")
			core.Subqueries = append(core.Subqueries, p.scanExpr(coreClauseStops, false)...)
		case TOKEN_WINDOW, TOKEN_FETCH:
			p.advance()
			core.Subqueries = append(core.Subqueries, p.scanExpr(coreClauseStops, false)...)
		default:
			return core
		}
	}
}
