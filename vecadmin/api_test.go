package vecadmin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/vec"
	"github.com/viant/sqlite-hypergraph/vecadmin"
)

func TestAdmin(t *testing.T) {
	const store = "admin-test"
	ctx := context.Background()
	require.NoError(t, engine.Register(engine.Vector()))
	db, err := engine.OpenContext(ctx, engine.MemoryPath, engine.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		vec.Invalidate(store, "")
		_ = db.Close()
	})

	stmts, err := vec.Statements("docs", &vec.Config{Column: "embedding", Dim: 2, Store: store})
	require.NoError(t, err)
	stmts = append(stmts, vecadmin.Statement("vec_admin", store))
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	_, err = db.ExecContext(ctx, "INSERT INTO docs_vectors(embedding) VALUES (vec_f32('[1, 0]')), (vec_f32('[0, 1]'))")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM vec_admin").Scan(&count))
	assert.Equal(t, 0, count)

	_, err = vec.Load(ctx, db, "docs")
	require.NoError(t, err)
	row := db.QueryRow("SELECT rowid FROM docs WHERE embedding MATCH '[1, 0]' AND metric = 'cosine' AND k = 1")
	var rowid int64
	require.NoError(t, row.Scan(&rowid))
	assert.EqualValues(t, 1, rowid)

	var op, table, kind, metrics string
	var rows int64
	require.NoError(t, db.QueryRow("SELECT op, table_name, rows, index_kind, metrics FROM vec_admin").Scan(&op, &table, &rows, &kind, &metrics))
	assert.Equal(t, "loaded", op)
	assert.Equal(t, "docs", table)
	assert.EqualValues(t, 2, rows)
	assert.Equal(t, "auto", kind)
	assert.Equal(t, "cosine", metrics)

	require.NoError(t, db.QueryRow("SELECT op FROM vec_admin WHERE op MATCH 'docs'").Scan(&op))
	assert.Equal(t, "invalidated:1", op)
	assert.Empty(t, vec.Snapshots(store))

	require.NoError(t, db.QueryRow("SELECT op FROM vec_admin WHERE op MATCH '*'").Scan(&op))
	assert.Equal(t, "invalidated:0", op)
}
