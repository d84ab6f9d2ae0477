package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/schema"
	"github.com/viant/sqlite-hypergraph/session"
	"github.com/viant/sqlite-hypergraph/vector"
)

func axisJSON(i int) string {
	parts := make([]string, schema.Dimension)
	for j := range parts {
		parts[j] = "0"
	}
	parts[i] = "1"
	return "[" + strings.Join(parts, ",") + "]"
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root, cfg := newRootCommand(&out)
	defer cfg.sync()
	err := root.ParseAndRun(context.Background(), args)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	_, err := execute(t, "-db", db, "init")
	require.NoError(t, err)

	out, err := execute(t, "-db", db, "insert-node", `{"id":"n1","name":"Alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "n1", gjson.Get(out, "id").String())
	_, err = execute(t, "-db", db, "insert-node", `{"id":"n2"}`)
	require.NoError(t, err)

	out, err = execute(t, "-db", db, "add-hyperedge", "-id", "e1", "-properties", `{"kind":"pair"}`, "n2", "n1")
	require.NoError(t, err)
	assert.Equal(t, "e1", gjson.Get(out, "id").String())

	out, err = execute(t, "-db", db, "add-hyperedge", "n1")
	require.NoError(t, err)
	assert.Len(t, gjson.Get(out, "id").String(), 36)

	out, err = execute(t, "-db", db, "members", "e1")
	require.NoError(t, err)
	assert.Equal(t, `["n2","n1"]`, gjson.Get(out, "#.node_id").Raw)

	_, err = execute(t, "-db", db, "upsert-embedding", "n1", axisJSON(0))
	require.NoError(t, err)
	_, err = execute(t, "-db", db, "upsert-embedding", "-model", "manual", "n2", axisJSON(1))
	require.NoError(t, err)

	out, err = execute(t, "-db", db, "-index", "sql", "search", "-k", "1", axisJSON(1))
	require.NoError(t, err)
	assert.Equal(t, "n2", gjson.Get(out, "0.node_id").String())

	out, err = execute(t, "-db", db, "stats")
	require.NoError(t, err)
	assert.EqualValues(t, 2, gjson.Get(out, "nodes").Int())
	assert.EqualValues(t, 2, gjson.Get(out, "hyperedges").Int())
	assert.EqualValues(t, 3, gjson.Get(out, "memberships").Int())
	assert.EqualValues(t, 2, gjson.Get(out, "embeddings").Int())
	assert.EqualValues(t, schema.Version, gjson.Get(out, "schema_version").Int())

	out, err = execute(t, "-db", db, "reindex")
	require.NoError(t, err)
	assert.Equal(t, "embeddings", gjson.Get(out, "0.table").String())
	assert.EqualValues(t, 2, gjson.Get(out, "0.rows").Int())
	assert.Equal(t, "auto", gjson.Get(out, "0.index").String())
}

func TestCommands_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "-db", db, "init")
	require.NoError(t, err)
	_, err = execute(t, "-db", db, "insert-node", `{"id":"n1"}`)
	require.NoError(t, err)

	_, err = execute(t, "-db", db, "insert-node", `{"id":"n1"}`)
	assert.Equal(t, 2067, session.StatusCode(err))

	_, err = execute(t, "-db", db, "insert-node", `{"name":"x"}`)
	assert.Equal(t, 1299, session.StatusCode(err))

	_, err = execute(t, "-db", db, "upsert-embedding", "n1", "[1,2,3]")
	assert.Equal(t, 275, session.StatusCode(err))

	_, err = execute(t, "-db", db, "members", "missing")
	assert.ErrorIs(t, err, hypergraph.ErrNotFound)

	_, err = execute(t, "-db", db, "-index", "bogus", "stats")
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	db := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("HYPERGRAPH_DB", db)

	_, err := execute(t, "init")
	require.NoError(t, err)
	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.EqualValues(t, schema.Version, gjson.Get(out, "schema_version").Int())
}

func TestReadVector(t *testing.T) {
	vec, err := readVector("[1, 2.5, -3]")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, vec)

	for _, raw := range []string{"", "{}", `[1,"a"]`, "[1,"} {
		_, err := readVector(raw)
		assert.ErrorIs(t, err, hypergraph.ErrInvalidJSON, strconv.Quote(raw))
		assert.ErrorIs(t, err, vector.ErrMalformedJSON, strconv.Quote(raw))
	}
}
