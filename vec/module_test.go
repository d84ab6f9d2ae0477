package vec_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/vec"
	"github.com/viant/sqlite-hypergraph/vector"
)

func openDocs(t *testing.T, store string) *sql.DB {
	t.Helper()
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
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	for _, v := range [][]float32{{0, 0}, {3, 4}, {1, 0}} {
		blob, err := vector.EncodeEmbedding(v)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO docs_vectors(embedding) VALUES (?)", blob)
		require.NoError(t, err)
	}
	return db
}

// queryErr runs query to completion and returns the first error.
func queryErr(db *sql.DB, query string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

type match struct {
	rowid    int64
	distance float64
}

func queryMatches(t *testing.T, db *sql.DB, query string, args ...any) []match {
	t.Helper()
	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()
	var out []match
	for rows.Next() {
		var m match
		require.NoError(t, rows.Scan(&m.rowid, &m.distance))
		out = append(out, m)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestModule_Match(t *testing.T) {
	ctx := context.Background()
	db := openDocs(t, "module-match")

	err := queryErr(db, "SELECT rowid FROM docs WHERE embedding MATCH '[0,0]'")
	require.Error(t, err)
	assert.True(t, vec.IsNotLoaded(err))

	n, err := vec.Load(ctx, db, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := queryMatches(t, db, "SELECT rowid, distance FROM docs WHERE embedding MATCH ? ORDER BY distance", "[0.9, 0]")
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{got[0].rowid, got[1].rowid, got[2].rowid})
	assert.InDelta(t, 0.1, got[0].distance, 1e-6)
	assert.InDelta(t, 0.9, got[1].distance, 1e-6)

	blob, err := vector.EncodeEmbedding([]float32{3, 4})
	require.NoError(t, err)
	got = queryMatches(t, db, "SELECT rowid, distance FROM docs WHERE embedding MATCH ? AND k = 1", blob)
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].rowid)
	assert.InDelta(t, 0, got[0].distance, 1e-6)

	got = queryMatches(t, db, "SELECT rowid, distance FROM docs WHERE embedding MATCH '[2, 0]' AND metric = 'cosine' AND k = 2")
	require.Len(t, got, 2)
	assert.EqualValues(t, 3, got[0].rowid)
	assert.InDelta(t, 0, got[0].distance, 1e-6)
	assert.EqualValues(t, 2, got[1].rowid)
	assert.InDelta(t, 0.4, got[1].distance, 1e-6)

	err = queryErr(db, "SELECT rowid FROM docs WHERE embedding MATCH '[1, 2, 3]'")
	assert.Error(t, err)
	err = queryErr(db, "SELECT rowid FROM docs WHERE embedding MATCH '[1, 2]' AND k = -1")
	assert.Error(t, err)
	err = queryErr(db, "SELECT rowid FROM docs WHERE embedding MATCH '[1, 2]' AND metric = 'dot'")
	assert.Error(t, err)
}

func TestModule_ScanAndRowid(t *testing.T) {
	ctx := context.Background()
	db := openDocs(t, "module-scan")
	_, err := vec.Load(ctx, db, "docs")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM docs").Scan(&count))
	assert.Equal(t, 3, count)

	var blob []byte
	require.NoError(t, db.QueryRow("SELECT embedding FROM docs WHERE rowid = 2").Scan(&blob))
	v, err := vector.DecodeEmbedding(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, v)

	err = db.QueryRow("SELECT embedding FROM docs WHERE rowid = 42").Scan(&blob)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = db.Exec("INSERT INTO docs(embedding) VALUES (X'00000000')")
	assert.Error(t, err)
}

func TestModule_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	db := openDocs(t, "module-writes")
	_, err := vec.Load(ctx, db, "docs")
	require.NoError(t, err)
	require.Len(t, vec.Snapshots("module-writes"), 1)

	_, err = db.Exec("DELETE FROM docs_vectors WHERE rowid = 3")
	require.NoError(t, err)
	assert.Empty(t, vec.Snapshots("module-writes"))

	err = queryErr(db, "SELECT rowid FROM docs WHERE embedding MATCH '[1, 0]'")
	assert.True(t, vec.IsNotLoaded(err))

	n, err := vec.Load(ctx, db, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got := queryMatches(t, db, "SELECT rowid, distance FROM docs WHERE embedding MATCH '[1, 0]' AND k = 1")
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].rowid)

	n, err = vec.Reindex(ctx, db, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = db.Exec("DROP TABLE docs")
	require.NoError(t, err)
	assert.Empty(t, vec.Snapshots("module-writes"))
	_, err = vec.Load(ctx, db, "docs")
	assert.Error(t, err)
}

func TestInvalidate_StoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	one := openDocs(t, "isolated-1")
	two := openDocs(t, "isolated-2")
	_, err := vec.Load(ctx, one, "docs")
	require.NoError(t, err)
	_, err = vec.Load(ctx, two, "docs")
	require.NoError(t, err)

	_, err = two.Exec("DELETE FROM docs_vectors")
	require.NoError(t, err)
	assert.Len(t, vec.Snapshots("isolated-1"), 1)
	assert.Empty(t, vec.Snapshots("isolated-2"))

	n, err := vec.Load(ctx, two, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	got := queryMatches(t, two, "SELECT rowid, distance FROM docs WHERE embedding MATCH '[1, 0]'")
	assert.Empty(t, got)
	got = queryMatches(t, one, "SELECT rowid, distance FROM docs WHERE embedding MATCH '[1, 0]'")
	assert.Len(t, got, 3)
}
