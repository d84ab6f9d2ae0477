// Package session is the entry point of the hypergraph store.
//
// A Session owns one database handle with the engine capabilities loaded
// and releases it on Close. The package-level functions (Initialize,
// InsertNode, CreateHyperedge, UpsertEmbedding, SearchNearest) open a
// session for a single call and close it on every exit path, so nothing is
// shared between calls other than the database file itself.
//
// StatusCode maps any error returned here onto a SQLite result code, 0
// meaning success.
package session
