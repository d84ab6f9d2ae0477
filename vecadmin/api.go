// Package vecadmin implements vec_admin, a virtual table reporting and
// dropping the vec0 snapshots cached in the process.
package vecadmin

import (
	"fmt"
	"strings"

	"github.com/viant/sqlite-hypergraph/vec"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name admin tables are declared with.
const ModuleName = "vec_admin"

// Module exposes the vec0 snapshot cache of one store as a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE vec_admin USING vec_admin(store='...');
//	SELECT * FROM vec_admin;                             -- cached snapshots
//	SELECT op FROM vec_admin WHERE op MATCH 'embeddings'; -- drop a snapshot
//
// A MATCH returns a single row with op='invalidated:<count>'; '*' matches
// every table of the store. The next vec.Load rebuilds what was dropped.
type Module struct{}

// NewModule returns the vec_admin module.
func NewModule() *Module { return &Module{} }

// Statement declares an admin table bound to store.
func Statement(table, store string) string {
	return fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING %s(store='%s')", table, ModuleName, strings.ReplaceAll(store, "'", "''"))
}

type Table struct{ store string }

type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

type row struct {
	op      string
	table   string
	rows    int64
	kind    string
	metrics string
}

const (
	colOp = iota
	colTable
	colRows
	colIndex
	colMetrics
)

const planInvalidate = 1

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) { return m.connect(ctx, args) }

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec_admin: need at least 3 args")
	}
	t := &Table{}
	for _, arg := range args[3:] {
		key, val, ok := strings.Cut(strings.TrimSpace(arg), "=")
		if !ok || strings.TrimSpace(key) != "store" {
			return nil, fmt.Errorf("vec_admin: unknown argument %q", arg)
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'' {
			val = strings.ReplaceAll(val[1:len(val)-1], "''", "'")
		}
		t.store = val
	}
	if err := ctx.Declare("CREATE TABLE x(op TEXT, table_name TEXT, rows INTEGER, index_kind TEXT, metrics TEXT)"); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == colOp && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = planInvalidate
			info.EstimatedCost = 1
			return nil
		}
	}
	info.EstimatedCost = 100
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != planInvalidate {
		for _, s := range vec.Snapshots(c.table.store) {
			c.rows = append(c.rows, row{
				op:      "loaded",
				table:   s.Table,
				rows:    int64(s.Rows),
				kind:    string(s.Index),
				metrics: strings.Join(s.Metrics, ","),
			})
		}
		return nil
	}
	if len(vals) == 0 || vals[0] == nil {
		return nil
	}
	name, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("vec_admin: MATCH expects a table name as TEXT")
	}
	target := name
	if name == "*" {
		target = ""
	}
	n := vec.Invalidate(c.table.store, target)
	c.rows = []row{{op: fmt.Sprintf("invalidated:%d", n), table: name}}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("vec_admin: Column out of range")
	}
	r := c.rows[c.pos]
	switch col {
	case colOp:
		return r.op, nil
	case colTable:
		return r.table, nil
	case colRows:
		return r.rows, nil
	case colIndex:
		return r.kind, nil
	case colMetrics:
		return r.metrics, nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

func (c *Cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}
