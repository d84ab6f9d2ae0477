// Package vec implements the vec0 SQLite virtual table: a vector column
// queried with MATCH for nearest neighbours.
//
//	CREATE VIRTUAL TABLE embeddings USING vec0(embedding float[384]);
//	SELECT rowid, distance FROM embeddings
//	WHERE embedding MATCH ? AND k = 5
//	ORDER BY distance;
//
// Vectors live in a regular shadow table (see Shadow) written with plain
// INSERT/UPDATE/DELETE. A virtual table callback cannot query its own
// connection, so reads are served from a process-wide snapshot of the shadow
// table that Load builds and that triggers on the shadow table drop again on
// every write. The module is registered by engine.Vector.
package vec
