// Package schema defines and materializes the hypergraph tables:
//
//   - nodes: JSON body with a generated, unique id
//   - hyperedges: caller-supplied id, properties and denormalized member list
//   - node_hyperedge_map: ordered membership, one row per member
//   - embeddings: vec0 virtual table answering MATCH queries
//   - embeddings_vectors: shadow table holding the float32 vectors
//   - embedding_metadata: links an embedding row to its node
//   - vec_admin: cached index status and invalidation
//
// Every statement uses IF NOT EXISTS semantics and Ensure applies them in
// one transaction, so repeated calls are safe and a failure leaves no
// partially created schema behind.
package schema
