// Package vector holds the embedding primitives shared by the hypergraph
// packages:
//   - BLOB encoding of float32 embeddings (little-endian, no length prefix)
//   - L2 and cosine distance kernels backed by github.com/viant/vec/search
//   - Metric selection used by the kNN indexes
package vector
