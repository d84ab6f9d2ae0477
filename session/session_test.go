package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-hypergraph/embedding"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/schema"
	"github.com/viant/sqlite-hypergraph/vector"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func axis(i int, scale float32) []float32 {
	v := make([]float32, schema.Dimension)
	v[i] = scale
	return v
}

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t)

	err := Initialize(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, StatusCode(err))

	err = InsertNode(ctx, path, `{"id":"n1","name":"Alice"}`)
	require.NoError(t, err)
	assert.Equal(t, 0, StatusCode(err))

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM nodes WHERE id = ?", "n1").Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInitialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t)

	require.NoError(t, Initialize(ctx, path))
	require.NoError(t, InsertNode(ctx, path, `{"id":"keep"}`))
	require.NoError(t, Initialize(ctx, path))

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"embedding_metadata", "embeddings", "embeddings_vectors", "hyperedges", "node_hyperedge_map", "nodes", "vec_admin"}, stats.Tables)
	assert.EqualValues(t, 1, stats.Nodes)
	assert.Equal(t, schema.Version, stats.SchemaVersion)
}

func TestInsertNode_StatusCodes(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t)
	require.NoError(t, Initialize(ctx, path))
	require.NoError(t, InsertNode(ctx, path, `{"id":"n1"}`))

	testCases := []struct {
		name   string
		body   string
		expect int
	}{
		{name: "duplicate id", body: `{"id":"n1","name":"again"}`, expect: 2067},
		{name: "missing id", body: `{"name":"anonymous"}`, expect: 1299},
		{name: "invalid json", body: `{"id":`, expect: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := InsertNode(ctx, path, tc.body)
			require.Error(t, err)
			assert.Equal(t, tc.expect, StatusCode(err))
			assert.Equal(t, hypergraph.KindConstraint, hypergraph.KindOf(err))
		})
	}

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Nodes)
}

func TestOpen_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "")
	require.Error(t, err)
	assert.Equal(t, hypergraph.KindConnection, hypergraph.KindOf(err))

	err = Initialize(ctx, filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
	assert.Equal(t, hypergraph.KindConnection, hypergraph.KindOf(err))
	assert.Equal(t, 14, engine.PrimaryCode(StatusCode(err)))

	err = Initialize(ctx, tempPath(t), WithCapabilities(append(engine.DefaultCapabilities(), unavailable{})...))
	require.Error(t, err)
	assert.Equal(t, hypergraph.KindExtension, hypergraph.KindOf(err))
	var capErr *engine.CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "unavailable", capErr.Name)
	assert.NotEqual(t, 0, StatusCode(err))
}

type unavailable struct{}

func (unavailable) Name() string    { return "unavailable" }
func (unavailable) Register() error { return nil }
func (unavailable) Verify(ctx context.Context, db *sql.DB) error {
	var v string
	return db.QueryRowContext(ctx, "SELECT unavailable_version()").Scan(&v)
}

func TestSession_Hypergraph(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, engine.MemoryPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))

	for _, body := range []string{`{"id":"n1"}`, `{"id":"n2"}`, `{"id":"n3"}`} {
		_, err := s.InsertNode(ctx, body)
		require.NoError(t, err)
	}
	require.NoError(t, s.CreateHyperedge(ctx, hypergraph.HyperedgeInput{ID: "e1", Members: []string{"n1", "n2", "n3"}}))

	members, err := s.Members(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, i, m.Order)
	}

	err = s.CreateHyperedge(ctx, hypergraph.HyperedgeInput{ID: "e2", Members: []string{"n1", "ghost"}})
	assert.ErrorIs(t, err, hypergraph.ErrUnknownNode)
	assert.Equal(t, 787, StatusCode(err))
	_, err = s.GetHyperedge(ctx, "e2")
	assert.ErrorIs(t, err, hypergraph.ErrNotFound)
	assert.Equal(t, 12, StatusCode(err))

	err = s.CreateHyperedge(ctx, hypergraph.HyperedgeInput{ID: "e3"})
	assert.ErrorIs(t, err, hypergraph.ErrEmptyMembership)
	assert.Equal(t, 19, StatusCode(err))

	edges, err := s.HyperedgesOf(ctx, "n2")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, []string{"n1", "n2", "n3"}, edges[0].Nodes)

	node, err := s.GetNode(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, "n2", node.ID)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Nodes)
	assert.EqualValues(t, 1, stats.Hyperedges)
	assert.EqualValues(t, 3, stats.Memberships)
	assert.EqualValues(t, 0, stats.Embeddings)
}

func TestEmbeddings(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t)
	require.NoError(t, Initialize(ctx, path))
	require.NoError(t, InsertNode(ctx, path, `{"id":"a"}`))
	require.NoError(t, InsertNode(ctx, path, `{"id":"b"}`))

	require.NoError(t, UpsertEmbedding(ctx, path, "a", axis(0, 1)))
	require.NoError(t, UpsertEmbedding(ctx, path, "b", axis(1, 1), embedding.WithModel("facade-model"), embedding.WithSpan(2, 7)))

	err := UpsertEmbedding(ctx, path, "a", []float32{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, hypergraph.ErrDimensionMismatch)
	assert.Equal(t, 275, StatusCode(err))

	err = UpsertEmbedding(ctx, path, "ghost", axis(0, 1))
	assert.ErrorIs(t, err, hypergraph.ErrUnknownNode)

	neighbors, err := SearchNearest(ctx, path, axis(1, 0.9), 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "b", neighbors[0].NodeID)

	neighbors, err = SearchNearest(ctx, path, axis(0, 1), 2, WithIndexKind("sql"))
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "a", neighbors[0].NodeID)

	err = CreateHyperedge(ctx, path, hypergraph.HyperedgeInput{ID: "pair", Members: []string{"a", "b"}})
	require.NoError(t, err)

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	vec, err := s.GetEmbedding(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, axis(0, 1), vec)
	meta, err := embedding.GetMetadata(ctx, s.DB(), "b")
	require.NoError(t, err)
	assert.Equal(t, "facade-model", meta.Model)
	assert.Equal(t, 2, meta.StartIdx)
	assert.Equal(t, 7, meta.EndIdx)
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Embeddings)
	assert.EqualValues(t, 1, stats.Hyperedges)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, engine.MemoryPath, WithIndexKind("sql"), WithMetric(vector.Cosine))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))
	for _, id := range []string{"a", "b"} {
		_, err := s.InsertNode(ctx, `{"id":"`+id+`"}`)
		require.NoError(t, err)
	}
	require.NoError(t, s.UpsertEmbedding(ctx, "a", axis(0, 1)))

	status, err := s.IndexStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status)

	n, err := s.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.UpsertEmbedding(ctx, "b", axis(1, 1)))
	neighbors, err := s.SearchNearest(ctx, axis(1, 2), 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "b", neighbors[0].NodeID)
	assert.InDelta(t, 0, neighbors[0].Distance, 1e-6)
	assert.Equal(t, "a", neighbors[1].NodeID)
	assert.InDelta(t, 1, neighbors[1].Distance, 1e-6)

	status, err = s.IndexStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, IndexStatus{Table: schema.EmbeddingsTable, Rows: 2, Index: "auto", Metrics: "cosine"}, status[0])
}

func TestEmbedText(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, engine.RegisterModel("session-test", func(_ context.Context, text string) ([]float32, error) {
		return axis(len(text)%schema.Dimension, 1), nil
	}))
	t.Cleanup(func() { engine.UnregisterModel("session-test") })

	s, err := Open(ctx, engine.MemoryPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))
	_, err = s.InsertNode(ctx, `{"id":"short"}`)
	require.NoError(t, err)
	_, err = s.InsertNode(ctx, `{"id":"long"}`)
	require.NoError(t, err)

	require.NoError(t, s.EmbedText(ctx, "short", "session-test", "hi"))
	require.NoError(t, s.EmbedText(ctx, "long", "session-test", "hello world"))

	neighbors, err := s.SearchText(ctx, "session-test", "yo", 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "short", neighbors[0].NodeID)
}

func TestStats_Uninitialized(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, engine.MemoryPath)
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SchemaVersion)
	assert.Empty(t, stats.Tables)

	_, err = s.InsertNode(ctx, `{"id":"n1"}`)
	require.Error(t, err)
	assert.Equal(t, 1, StatusCode(err))
	assert.Equal(t, hypergraph.KindUnknown, hypergraph.KindOf(err))
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(context.Background(), engine.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := context.Background()
	path := tempPath(t)

	require.NoError(t, Initialize(ctx, path, WithLogger(zap.New(core))))
	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{"session opened", "initialize", "session closed"}, messages)
	assert.Equal(t, path, logs.All()[0].ContextMap()["path"])
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 0, StatusCode(nil))
	assert.Equal(t, 1, StatusCode(errors.New("plain")))
	assert.Equal(t, 14, StatusCode(hypergraph.E(hypergraph.KindConnection, "op", errors.New("x"))))
	assert.Equal(t, 19, StatusCode(hypergraph.E(hypergraph.KindConstraint, "op", errors.New("x"))))
	assert.Equal(t, 1, StatusCode(hypergraph.E(hypergraph.KindSchema, "op", errors.New("x"))))
}
