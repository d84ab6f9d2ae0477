package vec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/vector"
)

// ErrNotLoaded is reported when a vec0 table is queried before its vectors
// were loaded into the process, or after a write dropped them.
var ErrNotLoaded = errors.New("vec: snapshot not loaded")

// IsNotLoaded reports whether err carries ErrNotLoaded. Errors raised inside
// a virtual table reach callers as driver messages, so the text is matched.
func IsNotLoaded(err error) bool {
	return err != nil && (errors.Is(err, ErrNotLoaded) || strings.Contains(err.Error(), ErrNotLoaded.Error()))
}

// snapshot is an immutable copy of a shadow table plus the indexes built
// over it, one per metric.
type snapshot struct {
	store   string
	table   string
	kind    index.Kind
	rowids  []int64
	vectors [][]float32
	byRowid map[int64]int

	mu      sync.Mutex
	indexes map[vector.Metric]index.Index
}

func newSnapshot(store, table string, kind index.Kind, rowids []int64, vectors [][]float32) *snapshot {
	s := &snapshot{
		store:   store,
		table:   table,
		kind:    kind,
		rowids:  rowids,
		vectors: vectors,
		byRowid: make(map[int64]int, len(rowids)),
		indexes: make(map[vector.Metric]index.Index),
	}
	for i, id := range rowids {
		s.byRowid[id] = i
	}
	return s
}

func (s *snapshot) index(metric vector.Metric) (index.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[metric]; ok {
		return idx, nil
	}
	ids := make([]string, len(s.rowids))
	for i, id := range s.rowids {
		ids[i] = strconv.FormatInt(id, 10)
	}
	idx, err := index.Build(s.kind, metric, ids, s.vectors)
	if err != nil {
		return nil, err
	}
	s.indexes[metric] = idx
	return idx, nil
}

// shared is the process-wide snapshot cache keyed by store and table.
// generation is bumped on every invalidation so a load racing a write never
// publishes rows read before that write.
var shared = struct {
	mu         sync.RWMutex
	byKey      map[string]*snapshot
	generation map[string]uint64
}{
	byKey:      make(map[string]*snapshot),
	generation: make(map[string]uint64),
}

func cacheKey(store, table string) string { return store + "|" + table }

func lookup(store, table string) (*snapshot, bool) {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	s, ok := shared.byKey[cacheKey(store, table)]
	return s, ok
}

// Invalidate drops the cached snapshot of table in store and returns how many
// were dropped. An empty table matches every table of store.
func Invalidate(store, table string) int {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if table != "" {
		key := cacheKey(store, table)
		shared.generation[key]++
		if _, ok := shared.byKey[key]; ok {
			delete(shared.byKey, key)
			return 1
		}
		return 0
	}
	dropped := 0
	for key, s := range shared.byKey {
		if s.store == store {
			shared.generation[key]++
			delete(shared.byKey, key)
			dropped++
		}
	}
	return dropped
}

// Status describes a cached snapshot.
type Status struct {
	Store   string
	Table   string
	Rows    int
	Index   index.Kind
	Metrics []string
}

// Snapshots lists the cached snapshots of store ordered by table.
func Snapshots(store string) []Status {
	shared.mu.RLock()
	var out []Status
	for _, s := range shared.byKey {
		if s.store != store {
			continue
		}
		s.mu.Lock()
		var metrics []string
		for m := range s.indexes {
			metrics = append(metrics, string(m))
		}
		s.mu.Unlock()
		sort.Strings(metrics)
		out = append(out, Status{Store: s.store, Table: s.table, Rows: len(s.rowids), Index: s.kind, Metrics: metrics})
	}
	shared.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Load makes the vectors of the vec0 table available to queries on every
// connection of the process. It reads the shadow table through q unless a
// snapshot is already cached, and returns the number of vectors.
//
// Virtual table callbacks cannot query their own connection, so MATCH and
// scans only ever consult this snapshot.
func Load(ctx context.Context, q Querier, table string) (int, error) {
	cfg, err := ReadConfig(ctx, q, table)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		return 0, fmt.Errorf("vec: no %s table named %q", ModuleName, table)
	}
	key := cacheKey(cfg.Store, table)
	if s, ok := lookup(cfg.Store, table); ok {
		return len(s.rowids), nil
	}
	shared.mu.RLock()
	generation := shared.generation[key]
	shared.mu.RUnlock()

	rowids, vectors, err := readShadow(ctx, q, table, cfg)
	if err != nil {
		return 0, err
	}
	s := newSnapshot(cfg.Store, table, cfg.Index, rowids, vectors)

	shared.mu.Lock()
	if shared.generation[key] == generation {
		shared.byKey[key] = s
	}
	shared.mu.Unlock()
	return len(rowids), nil
}

// Reindex drops the snapshot of table and loads it again.
func Reindex(ctx context.Context, q Querier, table string) (int, error) {
	cfg, err := ReadConfig(ctx, q, table)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		return 0, fmt.Errorf("vec: no %s table named %q", ModuleName, table)
	}
	Invalidate(cfg.Store, table)
	return Load(ctx, q, table)
}

func readShadow(ctx context.Context, q Querier, table string, cfg *Config) ([]int64, [][]float32, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT rowid, %s FROM %s ORDER BY rowid", cfg.Column, Shadow(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("vec: load %s: %w", table, err)
	}
	defer rows.Close()
	var (
		rowids  []int64
		vectors [][]float32
	)
	for rows.Next() {
		var (
			rowid int64
			blob  []byte
		)
		if err := rows.Scan(&rowid, &blob); err != nil {
			return nil, nil, fmt.Errorf("vec: load %s: %w", table, err)
		}
		v, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("vec: %s row %d: %w", table, rowid, err)
		}
		if cfg.Dim > 0 && len(v) != cfg.Dim {
			return nil, nil, fmt.Errorf("vec: %s row %d has %d values, want %d", table, rowid, len(v), cfg.Dim)
		}
		rowids = append(rowids, rowid)
		vectors = append(vectors, v)
	}
	return rowids, vectors, rows.Err()
}
