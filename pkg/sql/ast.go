package sql

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// Stmt is a top-level statement.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a source in a FROM clause.
type TableRef interface {
	Node
	tableRefNode()
}

// SelectStmt is a full query: an optional WITH clause and a select body.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

// WithClause holds the CTE list of a query.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE is a single common table expression.
type CTE struct {
	Name   string
	Select *SelectStmt
}

// SetOpType distinguishes the set operators between select bodies.
type SetOpType int

const (
	SetOpNone SetOpType = iota
	SetOpUnion
	SetOpIntersect
	SetOpExcept
)

// SelectBody is either a single SelectCore or a set operation combining two
// bodies. Op is SetOpNone when Core is set.
type SelectBody struct {
	Core  *SelectCore
	Op    SetOpType
	All   bool
	Left  *SelectBody
	Right *SelectBody
}

// SelectCore is one SELECT ... FROM ... block. Subqueries holds queries
// lifted out of scanned expressions (select list, WHERE, HAVING, QUALIFY,
// and the other clause expressions).
type SelectCore struct {
	From       *FromClause
	Subqueries []*SelectStmt
}

// FromClause is the FROM source list: a first source and zero or more joins.
// Comma-separated sources are recorded as cross joins.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// JoinType distinguishes join operators. The resolver treats them all the
// same; the distinction is kept for completeness.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// Join is one joined source, with subqueries lifted from its ON condition.
type Join struct {
	Type       JoinType
	Natural    bool
	Right      TableRef
	Subqueries []*SelectStmt
}

// TableName is a possibly qualified table reference.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

// Qualified renders the dotted name without the alias.
func (t *TableName) Qualified() string {
	switch {
	case t.Catalog != "":
		return t.Catalog + "." + t.Schema + "." + t.Name
	case t.Schema != "":
		return t.Schema + "." + t.Name
	default:
		return t.Name
	}
}

// DerivedTable is a parenthesized subquery in FROM.
type DerivedTable struct {
	Select  *SelectStmt
	Lateral bool
	Alias   string
}

// ParenJoin is a parenthesized join tree used as a source.
type ParenJoin struct {
	From  *FromClause
	Alias string
}

// TableFunction is a function call in FROM, such as read_parquet(...).
// Subqueries lifted from its arguments are kept; the function itself is not
// a table dependency.
type TableFunction struct {
	Name       string
	Alias      string
	Subqueries []*SelectStmt
}

// PivotTable wraps a source with a PIVOT clause.
type PivotTable struct {
	Source TableRef
	Alias  string
}

// UnpivotTable wraps a source with an UNPIVOT clause.
type UnpivotTable struct {
	Source TableRef
	Alias  string
}

// MatchRecognizeTable wraps a source with a MATCH_RECOGNIZE clause.
type MatchRecognizeTable struct {
	Source TableRef
	Alias  string
}

func (*SelectStmt) node() {}
func (*SelectStmt) stmtNode() {}

func (*TableName) node()           {}
func (*TableName) tableRefNode()   {}
func (*DerivedTable) node()        {}
func (*DerivedTable) tableRefNode() {}
func (*ParenJoin) node()           {}
func (*ParenJoin) tableRefNode()   {}
func (*TableFunction) node()       {}
func (*TableFunction) tableRefNode() {}
func (*PivotTable) node()          {}
func (*PivotTable) tableRefNode()  {}
func (*UnpivotTable) node()        {}
func (*UnpivotTable) tableRefNode() {}
func (*MatchRecognizeTable) node() {}
func (*MatchRecognizeTable) tableRefNode() {}
