package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/viant/sqlite-hypergraph/embedding"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/schema"
	"github.com/viant/sqlite-hypergraph/vec"
	"go.uber.org/zap"
)

// Session is an open hypergraph database.
type Session struct {
	path      string
	db        *sql.DB
	opts      *Options
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the database at path and negotiates the configured
// capabilities. The caller must Close the returned session.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	o := newOptions(opts)
	logger := o.Logger.With(zap.String("path", path))
	if path == "" {
		return nil, hypergraph.E(hypergraph.KindConnection, "session.Open", errors.New("empty database path"))
	}
	if err := engine.Register(o.Capabilities...); err != nil {
		logger.Debug("capability registration failed", zap.Error(err))
		return nil, hypergraph.E(hypergraph.KindExtension, "session.Open", err)
	}
	db, err := engine.OpenContext(ctx, path, o.Engine)
	if err != nil {
		logger.Debug("open failed", zap.Error(err))
		return nil, hypergraph.E(hypergraph.KindConnection, "session.Open", err)
	}
	if err := engine.Verify(ctx, db, o.Capabilities...); err != nil {
		_ = db.Close()
		logger.Debug("capability check failed", zap.Error(err))
		return nil, hypergraph.E(hypergraph.KindExtension, "session.Open", err)
	}
	logger.Debug("session opened", zap.Int("capabilities", len(o.Capabilities)))
	return &Session{path: path, db: db, opts: o, logger: logger}, nil
}

// Close releases the database handle and the vector snapshots cached for
// it. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if store, err := schema.Store(context.Background(), s.db); err == nil && store != "" {
			vec.Invalidate(store, "")
		}
		s.closeErr = s.db.Close()
		s.logger.Debug("session closed", zap.Error(s.closeErr))
	})
	return s.closeErr
}

// Path returns the database path the session was opened with.
func (s *Session) Path() string { return s.path }

// DB exposes the underlying handle.
func (s *Session) DB() *sql.DB { return s.db }

// Initialize materializes the schema. It is safe to call repeatedly.
func (s *Session) Initialize(ctx context.Context) error {
	err := schema.Ensure(ctx, s.db)
	s.logger.Debug("initialize", zap.Error(err))
	return err
}

// InsertNode stores a node document and returns its id.
func (s *Session) InsertNode(ctx context.Context, body string) (string, error) {
	id, err := hypergraph.InsertNode(ctx, s.db, body)
	s.logger.Debug("insert node", zap.String("id", id), zap.Error(err))
	return id, err
}

// GetNode loads a node by id.
func (s *Session) GetNode(ctx context.Context, id string) (*hypergraph.Node, error) {
	return hypergraph.GetNode(ctx, s.db, id)
}

// FindNodesByProperty returns nodes whose top-level key equals value.
func (s *Session) FindNodesByProperty(ctx context.Context, key string, value any) ([]*hypergraph.Node, error) {
	return hypergraph.FindNodesByProperty(ctx, s.db, key, value)
}

// CreateHyperedge stores a hyperedge and its ordered membership.
func (s *Session) CreateHyperedge(ctx context.Context, in hypergraph.HyperedgeInput) error {
	err := hypergraph.CreateHyperedge(ctx, s.db, in)
	s.logger.Debug("create hyperedge", zap.String("id", in.ID), zap.Int("members", len(in.Members)), zap.Error(err))
	return err
}

// GetHyperedge loads a hyperedge by id.
func (s *Session) GetHyperedge(ctx context.Context, id string) (*hypergraph.Hyperedge, error) {
	return hypergraph.GetHyperedge(ctx, s.db, id)
}

// Members returns a hyperedge's membership ordered by position.
func (s *Session) Members(ctx context.Context, hyperedgeID string) ([]hypergraph.Membership, error) {
	return hypergraph.Members(ctx, s.db, hyperedgeID)
}

// HyperedgesOf returns the hyperedges a node participates in.
func (s *Session) HyperedgesOf(ctx context.Context, nodeID string) ([]*hypergraph.Hyperedge, error) {
	return hypergraph.HyperedgesOf(ctx, s.db, nodeID)
}

// UpsertEmbedding stores the embedding of a node.
func (s *Session) UpsertEmbedding(ctx context.Context, nodeID string, values []float32, opts ...embedding.Option) error {
	err := embedding.Upsert(ctx, s.db, nodeID, values, opts...)
	s.logger.Debug("upsert embedding", zap.String("node", nodeID), zap.Int("dim", len(values)), zap.Error(err))
	return err
}

// EmbedText computes the embedding of text with model and stores it for nodeID.
func (s *Session) EmbedText(ctx context.Context, nodeID, model, text string) error {
	err := embedding.EmbedText(ctx, s.db, nodeID, text, embedding.WithModel(model))
	s.logger.Debug("embed text", zap.String("node", nodeID), zap.String("model", model), zap.Error(err))
	return err
}

// GetEmbedding returns the embedding stored for nodeID.
func (s *Session) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	return embedding.Get(ctx, s.db, nodeID)
}

// SearchNearest returns up to k nodes closest to query using the session's
// index kind and metric.
func (s *Session) SearchNearest(ctx context.Context, query []float32, k int) ([]embedding.Neighbor, error) {
	neighbors, err := embedding.SearchNearest(ctx, s.db, query, k, s.searchOptions()...)
	s.logger.Debug("search nearest", zap.Int("k", k), zap.Int("hits", len(neighbors)), zap.Error(err))
	return neighbors, err
}

// SearchText embeds text with model and returns its k nearest nodes.
func (s *Session) SearchText(ctx context.Context, model, text string, k int) ([]embedding.Neighbor, error) {
	opts := append(s.searchOptions(), embedding.WithModel(model))
	neighbors, err := embedding.SearchText(ctx, s.db, text, k, opts...)
	s.logger.Debug("search text", zap.String("model", model), zap.Int("k", k), zap.Int("hits", len(neighbors)), zap.Error(err))
	return neighbors, err
}

// Reindex drops the cached embeddings snapshot that MATCH searches rank
// against and loads it again, returning the number of vectors.
func (s *Session) Reindex(ctx context.Context) (int, error) {
	n, err := vec.Reindex(ctx, s.db, schema.EmbeddingsTable)
	s.logger.Debug("reindex", zap.Int("vectors", n), zap.Error(err))
	if err != nil {
		return 0, hypergraph.E(hypergraph.KindUnknown, "session.Reindex", err)
	}
	return n, nil
}

// IndexStatus describes a vector snapshot cached for the database.
type IndexStatus struct {
	Table   string `json:"table"`
	Rows    int64  `json:"rows"`
	Index   string `json:"index"`
	Metrics string `json:"metrics"`
}

// IndexStatus lists the cached snapshots of the database, as reported by
// the vec_admin table.
func (s *Session) IndexStatus(ctx context.Context) ([]IndexStatus, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT table_name, rows, index_kind, metrics FROM "+schema.AdminTable+" ORDER BY table_name")
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, "session.IndexStatus", err)
	}
	defer rows.Close()
	var out []IndexStatus
	for rows.Next() {
		var st IndexStatus
		if err := rows.Scan(&st.Table, &st.Rows, &st.Index, &st.Metrics); err != nil {
			return nil, hypergraph.E(hypergraph.KindUnknown, "session.IndexStatus", err)
		}
		out = append(out, st)
	}
	return out, hypergraph.E(hypergraph.KindUnknown, "session.IndexStatus", rows.Err())
}

func (s *Session) searchOptions() []embedding.Option {
	return []embedding.Option{
		embedding.WithIndexKind(s.opts.IndexKind),
		embedding.WithMetric(s.opts.Metric),
	}
}

// Stats summarizes the stored hypergraph.
type Stats struct {
	SchemaVersion int      `json:"schema_version"`
	Tables        []string `json:"tables"`
	Nodes         int64    `json:"nodes"`
	Hyperedges    int64    `json:"hyperedges"`
	Memberships   int64    `json:"memberships"`
	Embeddings    int64    `json:"embeddings"`
}

// Stats counts the rows of every hypergraph table.
func (s *Session) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	var err error
	if stats.SchemaVersion, err = schema.CurrentVersion(ctx, s.db); err != nil {
		return nil, err
	}
	if stats.Tables, err = schema.Tables(ctx, s.db); err != nil {
		return nil, err
	}
	if stats.SchemaVersion == 0 {
		return &stats, nil
	}
	if stats.Nodes, err = hypergraph.CountNodes(ctx, s.db); err != nil {
		return nil, err
	}
	if stats.Hyperedges, err = hypergraph.CountHyperedges(ctx, s.db); err != nil {
		return nil, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+schema.MembershipTable).Scan(&stats.Memberships); err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, "session.Stats", err)
	}
	if stats.Embeddings, err = embedding.Count(ctx, s.db); err != nil {
		return nil, err
	}
	return &stats, nil
}
