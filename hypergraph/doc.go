// Package hypergraph stores nodes and ordered n-ary hyperedges in the
// SQLite schema materialized by package schema.
//
// Nodes are JSON documents whose id is derived from the document's "id"
// field by a generated column. Hyperedges carry a caller-supplied id, a
// properties document and an ordered member list; membership rows record
// each member's position so the original argument order can be restored.
//
// Multi-row writes run inside a single transaction. Foreign keys are
// declared by the schema but not enforced by the engine, so member and
// embedding references are checked within the writing transaction.
package hypergraph
