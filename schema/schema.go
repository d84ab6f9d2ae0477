package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/vec"
	"github.com/viant/sqlite-hypergraph/vecadmin"
	"github.com/viant/sqlite-hypergraph/vector"
)

// Dimension is the number of float32 values in every stored embedding.
const Dimension = 384

// Version is recorded in PRAGMA user_version once the schema is applied.
const Version = 1

// Table names.
const (
	NodesTable             = "nodes"
	HyperedgesTable        = "hyperedges"
	MembershipTable        = "node_hyperedge_map"
	EmbeddingsTable        = "embeddings"
	EmbeddingMetadataTable = "embedding_metadata"
	AdminTable             = "vec_admin"
)

// EmbeddingVectorsTable persists the vectors served by the embeddings table.
var EmbeddingVectorsTable = vec.Shadow(EmbeddingsTable)

var graphStatements = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
  body TEXT,
  id TEXT GENERATED ALWAYS AS (json_extract(body, '$.id')) VIRTUAL NOT NULL UNIQUE,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS hyperedges (
  id TEXT PRIMARY KEY,
  properties TEXT,
  nodes TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS node_hyperedge_map (
  hyperedge_id TEXT,
  node_id TEXT,
  node_order INTEGER,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(hyperedge_id) REFERENCES hyperedges(id),
  FOREIGN KEY(node_id) REFERENCES nodes(id)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS node_hyperedge_map_order_idx
  ON node_hyperedge_map(hyperedge_id, node_order)`,
	`CREATE INDEX IF NOT EXISTS node_hyperedge_map_node_idx
  ON node_hyperedge_map(node_id)`,
}

const metadataStatement = `CREATE TABLE IF NOT EXISTS embedding_metadata (
  id TEXT UNIQUE,
  node_id TEXT PRIMARY KEY,
  embedding_id INTEGER NOT NULL UNIQUE,
  model TEXT,
  start_idx INTEGER,
  end_idx INTEGER,
  child TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(node_id) REFERENCES nodes(id)
)`

// Statements returns the DDL applied by Ensure, in order. store identifies
// the database in the embeddings declaration so cached vector snapshots of
// different databases never mix.
func Statements(store string) ([]string, error) {
	stmts := append([]string(nil), graphStatements...)
	embeddings, err := vec.Statements(EmbeddingsTable, &vec.Config{
		Column: "embedding",
		Dim:    Dimension,
		Store:  store,
		Index:  index.KindAuto,
		Metric: vector.L2,
	})
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, embeddings...)
	stmts = append(stmts, metadataStatement, vecadmin.Statement(AdminTable, store))
	return stmts, nil
}

// Store returns the identity recorded in the embeddings declaration, or an
// empty string when the schema was never applied.
func Store(ctx context.Context, db hypergraph.Handle) (string, error) {
	cfg, err := vec.ReadConfig(ctx, db, EmbeddingsTable)
	if err != nil || cfg == nil {
		return "", err
	}
	return cfg.Store, nil
}

// Ensure materializes the schema on db. It is idempotent and atomic: either
// every statement applies or none does. The engine capabilities must be
// loaded before Ensure runs.
func Ensure(ctx context.Context, db hypergraph.Beginner) error {
	err := hypergraph.WithTx(ctx, db, func(tx *sql.Tx) error {
		store, err := Store(ctx, tx)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		if store == "" {
			store = uuid.NewString()
		}
		stmts, err := Statements(store)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", Version)); err != nil {
			return fmt.Errorf("schema: record version: %w", err)
		}
		return nil
	})
	return hypergraph.E(hypergraph.KindSchema, "schema.Ensure", err)
}

// Tables lists user tables in db, ordered by name.
func Tables(ctx context.Context, db hypergraph.Handle) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schema: list tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CurrentVersion reads the schema version recorded by Ensure; 0 means the
// schema was never applied.
func CurrentVersion(ctx context.Context, db hypergraph.Handle) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("schema: read version: %w", err)
	}
	return version, nil
}

// Columns lists the declared columns of table, including generated ones.
func Columns(ctx context.Context, db hypergraph.Handle, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_xinfo(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("schema: columns of %s: %w", table, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schema: columns of %s: %w", table, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
