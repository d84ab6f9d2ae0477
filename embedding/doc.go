// Package embedding stores one fixed-width vector per node and answers
// nearest-neighbour queries over them.
//
// Vectors live in the embeddings_vectors shadow table behind the embeddings
// vec0 table; embedding_metadata links each row to its node together with
// the model and text span it was computed from. Searches load the linked
// vectors into an in-memory index (brute force or VP-tree) or, with KindSQL,
// run a MATCH query against the embeddings virtual table.
package embedding
