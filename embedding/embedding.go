package embedding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/schema"
	"github.com/viant/sqlite-hypergraph/vec"
	"github.com/viant/sqlite-hypergraph/vector"
)

// Neighbor is a search hit.
type Neighbor struct {
	NodeID   string  `json:"node_id"`
	Distance float32 `json:"distance"`
}

// Metadata links an embedding row to its node.
type Metadata struct {
	ID          string    `json:"id"`
	NodeID      string    `json:"node_id"`
	EmbeddingID int64     `json:"embedding_id"`
	Model       string    `json:"model"`
	StartIdx    int       `json:"start_idx"`
	EndIdx      int       `json:"end_idx"`
	Child       string    `json:"child,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func checkDimension(values []float32) error {
	if len(values) != schema.Dimension {
		return fmt.Errorf("%w: got %d values, want %d", hypergraph.ErrDimensionMismatch, len(values), schema.Dimension)
	}
	return nil
}

// Upsert stores values as the embedding of nodeID, replacing any previous
// one. The vector row and its metadata are written in one transaction.
func Upsert(ctx context.Context, b hypergraph.Beginner, nodeID string, values []float32, opts ...Option) error {
	const op = "embedding.Upsert"
	if err := checkDimension(values); err != nil {
		return hypergraph.E(hypergraph.KindDimension, op, err)
	}
	blob, err := vector.EncodeEmbedding(values)
	if err != nil {
		return hypergraph.E(hypergraph.KindConstraint, op, err)
	}
	o := newOptions(opts)
	var child any
	if o.Child != "" {
		child = o.Child
	}
	err = hypergraph.WithTx(ctx, b, func(tx *sql.Tx) error {
		ok, err := hypergraph.NodeExists(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", hypergraph.ErrUnknownNode, nodeID)
		}
		var embeddingID int64
		err = tx.QueryRowContext(ctx, "SELECT embedding_id FROM embedding_metadata WHERE node_id = ?", nodeID).Scan(&embeddingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, "INSERT INTO "+schema.EmbeddingVectorsTable+" (embedding) VALUES (?)", blob)
			if err != nil {
				return fmt.Errorf("insert embedding: %w", err)
			}
			if embeddingID, err = res.LastInsertId(); err != nil {
				return err
			}
			id := o.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO embedding_metadata (id, node_id, embedding_id, model, start_idx, end_idx, child)
VALUES (?, ?, ?, ?, ?, ?, ?)`, id, nodeID, embeddingID, o.Model, o.StartIdx, o.EndIdx, child)
			if err != nil {
				return fmt.Errorf("insert embedding metadata: %w", err)
			}
			return nil
		case err != nil:
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE "+schema.EmbeddingVectorsTable+" SET embedding = ? WHERE rowid = ?", blob, embeddingID); err != nil {
			return fmt.Errorf("update embedding: %w", err)
		}
		var id any
		if o.ID != "" {
			id = o.ID
		}
		_, err = tx.ExecContext(ctx, `UPDATE embedding_metadata
SET id = COALESCE(?, id), model = ?, start_idx = ?, end_idx = ?, child = ?, updated_at = CURRENT_TIMESTAMP
WHERE node_id = ?`, id, o.Model, o.StartIdx, o.EndIdx, child, nodeID)
		if err != nil {
			return fmt.Errorf("update embedding metadata: %w", err)
		}
		return nil
	})
	if err == nil {
		invalidate(ctx, b)
		return nil
	}
	if errors.Is(err, hypergraph.ErrUnknownNode) || engine.IsConstraintViolation(err) {
		return hypergraph.E(hypergraph.KindConstraint, op, err)
	}
	return hypergraph.E(hypergraph.KindUnknown, op, err)
}

// invalidate drops the cached embeddings snapshot after a commit. The shadow
// triggers drop it inside the transaction, but a load racing the commit can
// publish rows read before it.
func invalidate(ctx context.Context, h hypergraph.Handle) {
	if store, err := schema.Store(ctx, h); err == nil {
		vec.Invalidate(store, schema.EmbeddingsTable)
	}
}

// Get returns the embedding stored for nodeID.
func Get(ctx context.Context, h hypergraph.Handle, nodeID string) ([]float32, error) {
	var blob []byte
	err := h.QueryRowContext(ctx, `SELECT e.embedding FROM embedding_metadata m
JOIN `+schema.EmbeddingVectorsTable+` e ON e.rowid = m.embedding_id
WHERE m.node_id = ?`, nodeID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hypergraph.E(hypergraph.KindNotFound, "embedding.Get", fmt.Errorf("%w: embedding of node %q", hypergraph.ErrNotFound, nodeID))
	}
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, "embedding.Get", err)
	}
	values, err := vector.DecodeEmbedding(blob)
	return values, hypergraph.E(hypergraph.KindUnknown, "embedding.Get", err)
}

// GetMetadata returns the linkage row of nodeID's embedding.
func GetMetadata(ctx context.Context, h hypergraph.Handle, nodeID string) (*Metadata, error) {
	var m Metadata
	var id, model, child sql.NullString
	var start, end sql.NullInt64
	var created, updated sql.NullTime
	err := h.QueryRowContext(ctx, `SELECT id, node_id, embedding_id, model, start_idx, end_idx, child, created_at, updated_at
FROM embedding_metadata WHERE node_id = ?`, nodeID).Scan(&id, &m.NodeID, &m.EmbeddingID, &model, &start, &end, &child, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hypergraph.E(hypergraph.KindNotFound, "embedding.GetMetadata", fmt.Errorf("%w: embedding of node %q", hypergraph.ErrNotFound, nodeID))
	}
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, "embedding.GetMetadata", err)
	}
	m.ID = id.String
	m.Model = model.String
	m.Child = child.String
	m.StartIdx = int(start.Int64)
	m.EndIdx = int(end.Int64)
	m.CreatedAt = created.Time
	m.UpdatedAt = updated.Time
	return &m, nil
}

// Count returns the number of node-linked embeddings.
func Count(ctx context.Context, h hypergraph.Handle) (int64, error) {
	var n int64
	if err := h.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_metadata").Scan(&n); err != nil {
		return 0, hypergraph.E(hypergraph.KindUnknown, "embedding.Count", err)
	}
	return n, nil
}

// SearchNearest returns up to k nodes whose embeddings are closest to query,
// ordered by ascending distance. Ties are broken by node id.
func SearchNearest(ctx context.Context, h hypergraph.Handle, query []float32, k int, opts ...Option) ([]Neighbor, error) {
	const op = "embedding.SearchNearest"
	if err := checkDimension(query); err != nil {
		return nil, hypergraph.E(hypergraph.KindDimension, op, err)
	}
	if k <= 0 {
		return nil, hypergraph.E(hypergraph.KindConstraint, op, fmt.Errorf("k must be positive, got %d", k))
	}
	o := newOptions(opts)
	if o.IndexKind == KindSQL {
		neighbors, err := searchMatch(ctx, h, query, k, o.Metric)
		return neighbors, hypergraph.E(hypergraph.KindUnknown, op, err)
	}
	ids, vecs, err := loadCorpus(ctx, h)
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, op, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	idx, err := index.Build(o.IndexKind, o.Metric, ids, vecs)
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, op, err)
	}
	hitIDs, dists, err := idx.Query(query, k)
	if err != nil {
		return nil, hypergraph.E(hypergraph.KindUnknown, op, err)
	}
	neighbors := make([]Neighbor, len(hitIDs))
	for i := range hitIDs {
		neighbors[i] = Neighbor{NodeID: hitIDs[i], Distance: dists[i]}
	}
	return neighbors, nil
}

func loadCorpus(ctx context.Context, h hypergraph.Handle) ([]string, [][]float32, error) {
	rows, err := h.QueryContext(ctx, `SELECT m.node_id, e.embedding FROM embedding_metadata m
JOIN `+schema.EmbeddingVectorsTable+` e ON e.rowid = m.embedding_id
ORDER BY m.node_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()
	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, err
		}
		values, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding of node %q: %w", id, err)
		}
		ids = append(ids, id)
		vecs = append(vecs, values)
	}
	return ids, vecs, rows.Err()
}

// searchMatch ranks inside the engine through the embeddings vec0 table.
func searchMatch(ctx context.Context, h hypergraph.Handle, query []float32, k int, metric vector.Metric) ([]Neighbor, error) {
	blob, err := vector.EncodeEmbedding(query)
	if err != nil {
		return nil, err
	}
	if _, err := vec.Load(ctx, h, schema.EmbeddingsTable); err != nil {
		return nil, err
	}
	neighbors, err := queryMatch(ctx, h, blob, k, metric)
	if vec.IsNotLoaded(err) {
		// a write dropped the snapshot between load and query
		if _, err := vec.Load(ctx, h, schema.EmbeddingsTable); err != nil {
			return nil, err
		}
		neighbors, err = queryMatch(ctx, h, blob, k, metric)
	}
	return neighbors, err
}

func queryMatch(ctx context.Context, h hypergraph.Handle, blob []byte, k int, metric vector.Metric) ([]Neighbor, error) {
	rows, err := h.QueryContext(ctx, `SELECT m.node_id, e.distance
FROM embeddings e
JOIN embedding_metadata m ON e.rowid = m.embedding_id
WHERE e.embedding MATCH ? AND e.metric = ?
ORDER BY e.distance, m.node_id
LIMIT ?`, blob, string(metric), k)
	if err != nil {
		return nil, fmt.Errorf("rank embeddings: %w", err)
	}
	defer rows.Close()
	var neighbors []Neighbor
	for rows.Next() {
		var n Neighbor
		var dist float64
		if err := rows.Scan(&n.NodeID, &dist); err != nil {
			return nil, err
		}
		n.Distance = float32(dist)
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// Embed computes the embedding of text with the lembed SQL function.
func Embed(ctx context.Context, h hypergraph.Handle, model, text string) ([]float32, error) {
	if model == "" {
		model = DefaultModel
	}
	var blob []byte
	if err := h.QueryRowContext(ctx, "SELECT lembed(?, ?)", model, text).Scan(&blob); err != nil {
		return nil, hypergraph.E(hypergraph.KindExtension, "embedding.Embed", err)
	}
	values, err := vector.DecodeEmbedding(blob)
	return values, hypergraph.E(hypergraph.KindUnknown, "embedding.Embed", err)
}

// EmbedText embeds text with the configured model and upserts the result
// for nodeID, recording the model and the text span.
func EmbedText(ctx context.Context, b hypergraph.Beginner, nodeID, text string, opts ...Option) error {
	opts = append([]Option{WithSpan(0, utf8.RuneCountInString(text))}, opts...)
	o := newOptions(opts)
	values, err := Embed(ctx, b, o.Model, text)
	if err != nil {
		return err
	}
	return Upsert(ctx, b, nodeID, values, opts...)
}

// SearchText embeds text and returns its k nearest nodes.
func SearchText(ctx context.Context, h hypergraph.Handle, text string, k int, opts ...Option) ([]Neighbor, error) {
	o := newOptions(opts)
	query, err := Embed(ctx, h, o.Model, text)
	if err != nil {
		return nil, err
	}
	return SearchNearest(ctx, h, query, k, opts...)
}
