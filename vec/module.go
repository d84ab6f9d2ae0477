package vec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/sqlite-hypergraph/vector"
	"modernc.org/sqlite/vtab"
)

// Column positions of a vec0 table. Only the vector column is visible;
// distance, k and metric are hidden and serve MATCH queries:
//
//	SELECT rowid, distance FROM embeddings
//	WHERE embedding MATCH ? AND k = 10 AND metric = 'cosine'
//	ORDER BY distance
const (
	colVector = iota
	colDistance
	colK
	colMetric
)

// Query plans chosen by BestIndex.
const (
	planScan = iota
	planRowid
	planMatch
)

// Argument tags recorded in IdxStr, one per Filter value.
const (
	argQuery  = 'q'
	argK      = 'k'
	argMetric = 'm'
	argRowid  = 'r'
)

// Module implements vtab.Module for vec0 tables. It is read-only: vectors
// are written to the shadow table and served from the snapshot cache.
type Module struct{}

// NewModule returns the vec0 module.
func NewModule() *Module { return &Module{} }

// Table is a vec0 table bound to one connection.
type Table struct {
	name string
	cfg  *Config
}

// Cursor iterates over the rows selected by Filter.
type Cursor struct {
	table *Table
	snap  *snapshot
	rows  []hit
	k     any
	// metric is the metric the current result was ranked with.
	metric vector.Metric
	pos    int
}

type hit struct {
	pos      int
	distance any
}

// Create declares a new vec0 table.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

// Connect attaches to an existing vec0 table.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec: need at least 3 args, got %d", len(args))
	}
	cfg, err := ParseArgs(args[3:])
	if err != nil {
		return nil, err
	}
	schema := fmt.Sprintf("CREATE TABLE x(%s BLOB, distance REAL HIDDEN, k INTEGER HIDDEN, metric TEXT HIDDEN)", cfg.Column)
	if err := ctx.Declare(schema); err != nil {
		return nil, fmt.Errorf("vec: declare %s: %w", args[2], err)
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("vec: EnableConstraintSupport failed: %w", err)
	}
	return &Table{name: args[2], cfg: cfg}, nil
}

// BestIndex pushes down MATCH on the vector column together with the k and
// metric constraints, or a rowid lookup.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var match, k, metric, rowid *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colVector && c.Op == vtab.OpMATCH:
			match = c
		case c.Column == colK && c.Op == vtab.OpEQ:
			k = c
		case c.Column == colMetric && c.Op == vtab.OpEQ:
			metric = c
		case c.Column == -1 && c.Op == vtab.OpEQ:
			rowid = c
		}
	}

	var tags []byte
	use := func(c *vtab.Constraint, tag byte) {
		c.ArgIndex = len(tags)
		c.Omit = true
		tags = append(tags, tag)
	}
	switch {
	case match != nil:
		use(match, argQuery)
		if k != nil {
			use(k, argK)
		}
		if metric != nil {
			use(metric, argMetric)
		}
		info.IdxNum = planMatch
		info.EstimatedCost = 10
		info.EstimatedRows = 10
		if len(info.OrderBy) == 1 && info.OrderBy[0].Column == colDistance && !info.OrderBy[0].Desc {
			info.OrderByConsumed = true
		}
	case rowid != nil:
		use(rowid, argRowid)
		info.IdxNum = planRowid
		info.IdxFlags = vtab.IndexScanUnique
		info.EstimatedCost = 1
		info.EstimatedRows = 1
	default:
		info.IdxNum = planScan
		info.EstimatedCost = 1e6
		info.EstimatedRows = 1e6
	}
	info.IdxStr = string(tags)
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect releases nothing; snapshots outlive connections.
func (t *Table) Disconnect() error { return nil }

// Destroy drops the cached snapshot. The shadow table is left to DROP TABLE.
func (t *Table) Destroy() error {
	Invalidate(t.cfg.Store, t.name)
	return nil
}

// Filter selects the rows of the chosen plan from the cached snapshot.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows, c.pos, c.k = nil, 0, nil
	c.metric = c.table.cfg.Metric
	if len(vals) != len(idxStr) {
		return fmt.Errorf("vec: plan %q expects %d arguments, got %d", idxStr, len(idxStr), len(vals))
	}
	snap, ok := lookup(c.table.cfg.Store, c.table.name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, c.table.name)
	}
	c.snap = snap

	var (
		query []float32
		k     int64
		rowid int64
		err   error
	)
	for i := range idxStr {
		switch idxStr[i] {
		case argQuery:
			if query, err = decodeMatchArg(vals[i]); err != nil {
				return err
			}
		case argK:
			if k, err = asInt(vals[i]); err != nil {
				return fmt.Errorf("vec: k: %w", err)
			}
			if k < 0 {
				return fmt.Errorf("vec: k must not be negative, got %d", k)
			}
			c.k = k
		case argMetric:
			name, ok := vals[i].(string)
			if !ok {
				return fmt.Errorf("vec: metric must be TEXT, got %T", vals[i])
			}
			if c.metric, err = vector.ParseMetric(strings.ToLower(name)); err != nil {
				return err
			}
		case argRowid:
			if rowid, err = asInt(vals[i]); err != nil {
				return fmt.Errorf("vec: rowid: %w", err)
			}
		}
	}

	switch idxNum {
	case planScan:
		c.rows = make([]hit, len(snap.rowids))
		for i := range snap.rowids {
			c.rows[i] = hit{pos: i}
		}
	case planRowid:
		if pos, ok := snap.byRowid[rowid]; ok {
			c.rows = []hit{{pos: pos}}
		}
	case planMatch:
		return c.match(query, int(k))
	default:
		return fmt.Errorf("vec: unsupported query plan %d", idxNum)
	}
	return nil
}

func (c *Cursor) match(query []float32, k int) error {
	if len(c.snap.rowids) == 0 {
		return nil
	}
	if dim := len(c.snap.vectors[0]); len(query) != dim {
		return fmt.Errorf("vec: MATCH vector has %d values, want %d", len(query), dim)
	}
	idx, err := c.snap.index(c.metric)
	if err != nil {
		return err
	}
	ids, dists, err := idx.Query(query, k)
	if err != nil {
		return err
	}
	c.rows = make([]hit, 0, len(ids))
	for i, id := range ids {
		rowid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("vec: index returned id %q: %w", id, err)
		}
		pos, ok := c.snap.byRowid[rowid]
		if !ok {
			continue
		}
		c.rows = append(c.rows, hit{pos: pos, distance: float64(dists[i])})
	}
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports whether the cursor is past the last row.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of col in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, fmt.Errorf("vec: Column out of range")
	}
	row := c.rows[c.pos]
	switch col {
	case colVector:
		return vector.EncodeEmbedding(c.snap.vectors[row.pos])
	case colDistance:
		return row.distance, nil
	case colK:
		return c.k, nil
	case colMetric:
		return string(c.metric), nil
	}
	return nil, nil
}

// Rowid returns the shadow rowid of the current row.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos >= len(c.rows) {
		return 0, fmt.Errorf("vec: Rowid out of range")
	}
	return c.snap.rowids[c.rows[c.pos].pos], nil
}

// Close releases the cursor rows.
func (c *Cursor) Close() error {
	c.rows, c.snap, c.pos = nil, nil, 0
	return nil
}

// decodeMatchArg accepts a float32 BLOB or a JSON array.
func decodeMatchArg(v vtab.Value) ([]float32, error) {
	switch val := v.(type) {
	case []byte:
		return vector.DecodeEmbedding(val)
	case string:
		return vector.ParseJSON(val)
	case nil:
		return nil, fmt.Errorf("vec: MATCH vector is NULL")
	}
	return nil, fmt.Errorf("vec: expected MATCH arg as BLOB or JSON array, got %T", v)
}

func asInt(v vtab.Value) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	}
	return 0, fmt.Errorf("expected INTEGER, got %T", v)
}
