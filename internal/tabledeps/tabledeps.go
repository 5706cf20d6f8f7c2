// Package tabledeps extracts the physical table dependencies of SQL queries.
//
// Names introduced by the query itself, CTE names and derived-table aliases,
// are tracked in lexical scopes and never reported. Table functions are not
// dependencies either, though queries embedded in their arguments are still
// visited.
package tabledeps

import (
	"sort"
	"strings"

	"github.com/lakebench/lakebench/pkg/sql"
)

// Tables returns the sorted, deduplicated, lowercased set of physical table
// names referenced by query. The query may contain multiple statements.
func Tables(query string) ([]string, error) {
	stmts, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}

	r := &resolver{seen: make(map[string]struct{})}
	for _, stmt := range stmts {
		r.visitStmt(stmt)
	}

	out := make([]string, 0, len(r.seen))
	for name := range r.seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// resolver walks the AST with a stack of CTE scopes. Each query level pushes
// a scope; a name found in any enclosing scope is a CTE reference, not a
// physical table.
type resolver struct {
	seen   map[string]struct{}
	scopes []map[string]struct{}
}

func (r *resolver) pushScope() {
	r.scopes = append(r.scopes, make(map[string]struct{}))
}

func (r *resolver) popScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *resolver) declare(name string) {
	r.scopes[len(r.scopes)-1][strings.ToLower(name)] = struct{}{}
}

func (r *resolver) inScope(name string) bool {
	lower := strings.ToLower(name)
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][lower]; ok {
			return true
		}
	}
	return false
}

func (r *resolver) visitStmt(stmt *sql.SelectStmt) {
	if stmt == nil {
		return
	}
	r.pushScope()
	defer r.popScope()

	if stmt.With != nil {
		// All sibling CTE names are declared before any body is visited,
		// so a CTE body may reference a later sibling by name.
		for _, cte := range stmt.With.CTEs {
			r.declare(cte.Name)
		}
		for _, cte := range stmt.With.CTEs {
			r.visitStmt(cte.Select)
		}
	}
	r.visitBody(stmt.Body)
}

func (r *resolver) visitBody(body *sql.SelectBody) {
	if body == nil {
		return
	}
	if body.Core != nil {
		r.visitCore(body.Core)
		return
	}
	r.visitBody(body.Left)
	r.visitBody(body.Right)
}

func (r *resolver) visitCore(core *sql.SelectCore) {
	if core.From != nil {
		r.visitTableRef(core.From.Source)
		for _, join := range core.From.Joins {
			r.visitTableRef(join.Right)
			for _, sub := range join.Subqueries {
				r.visitStmt(sub)
			}
		}
	}
	for _, sub := range core.Subqueries {
		r.visitStmt(sub)
	}
}

func (r *resolver) visitTableRef(ref sql.TableRef) {
	switch t := ref.(type) {
	case *sql.TableName:
		// Matching is on the last path segment alone: a qualified
		// reference to a name shadowed by a CTE is still the CTE.
		if r.inScope(t.Name) {
			return
		}
		r.seen[strings.ToLower(t.Name)] = struct{}{}
	case *sql.DerivedTable:
		r.visitStmt(t.Select)
	case *sql.ParenJoin:
		if t.From != nil {
			r.visitTableRef(t.From.Source)
			for _, join := range t.From.Joins {
				r.visitTableRef(join.Right)
				for _, sub := range join.Subqueries {
					r.visitStmt(sub)
				}
			}
		}
	case *sql.TableFunction:
		for _, sub := range t.Subqueries {
			r.visitStmt(sub)
		}
	case *sql.PivotTable:
		r.visitTableRef(t.Source)
	case *sql.UnpivotTable:
		r.visitTableRef(t.Source)
	case *sql.MatchRecognizeTable:
		r.visitTableRef(t.Source)
	}
}
