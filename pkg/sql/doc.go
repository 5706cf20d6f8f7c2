// Package sql provides a lexer, parser, and AST for the query-block
// structure of SQL statements: WITH clauses, SELECT bodies, set operations,
// FROM lists with joins, derived tables, and wrapping constructs such as
// PIVOT, UNPIVOT, and MATCH_RECOGNIZE.
//
// The parser resolves the structure that table-dependency analysis needs.
// Scalar expressions are scanned rather than fully parsed: the scanner walks
// them structurally to lift embedded subqueries into the AST, and otherwise
// treats their contents as opaque. Comments and string literals are consumed
// by the lexer and never reach the parser.
//
//	stmts, err := sql.Parse("WITH s AS (SELECT 1 FROM t) SELECT * FROM s")
//	if err != nil {
//	    // parse errors are reported, never panicked
//	}
package sql
