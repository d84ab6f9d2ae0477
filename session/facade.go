package session

import (
	"context"
	"errors"

	"github.com/viant/sqlite-hypergraph/embedding"
	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/hypergraph"
	sqlite3 "modernc.org/sqlite/lib"
)

// With opens a session on path, runs fn and closes the session on every
// exit path. A close failure is reported only when fn succeeded.
func With(ctx context.Context, path string, fn func(s *Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = hypergraph.E(hypergraph.KindConnection, "session.Close", closeErr)
		}
	}()
	return fn(s)
}

// Initialize opens or creates the database at path, loads the capabilities
// and materializes the schema. Calling it again on the same path succeeds
// without altering existing tables.
func Initialize(ctx context.Context, path string, opts ...Option) error {
	return With(ctx, path, func(s *Session) error {
		return s.Initialize(ctx)
	}, opts...)
}

// InsertNode stores one node document in the database at path.
func InsertNode(ctx context.Context, path, body string, opts ...Option) error {
	return With(ctx, path, func(s *Session) error {
		_, err := s.InsertNode(ctx, body)
		return err
	}, opts...)
}

// CreateHyperedge stores one hyperedge in the database at path.
func CreateHyperedge(ctx context.Context, path string, in hypergraph.HyperedgeInput, opts ...Option) error {
	return With(ctx, path, func(s *Session) error {
		return s.CreateHyperedge(ctx, in)
	}, opts...)
}

// UpsertEmbedding stores the embedding of nodeID in the database at path,
// opened with the default session options. opts record the model and text
// span like Session.UpsertEmbedding.
func UpsertEmbedding(ctx context.Context, path, nodeID string, values []float32, opts ...embedding.Option) error {
	return With(ctx, path, func(s *Session) error {
		return s.UpsertEmbedding(ctx, nodeID, values, opts...)
	})
}

// SearchNearest returns up to k nodes nearest to query in the database at path.
func SearchNearest(ctx context.Context, path string, query []float32, k int, opts ...Option) ([]embedding.Neighbor, error) {
	var neighbors []embedding.Neighbor
	err := With(ctx, path, func(s *Session) error {
		var err error
		neighbors, err = s.SearchNearest(ctx, query, k)
		return err
	}, opts...)
	return neighbors, err
}

// StatusCode maps err onto a SQLite result code: 0 for nil, the engine's
// extended code when the failure came from the driver, otherwise a code
// derived from the sentinel or kind.
func StatusCode(err error) int {
	if err == nil {
		return sqlite3.SQLITE_OK
	}
	if code := engine.ResultCode(err); code != 0 {
		return code
	}
	switch {
	case errors.Is(err, hypergraph.ErrDuplicateID):
		return sqlite3.SQLITE_CONSTRAINT_UNIQUE
	case errors.Is(err, hypergraph.ErrMissingID):
		return sqlite3.SQLITE_CONSTRAINT_NOTNULL
	case errors.Is(err, hypergraph.ErrInvalidJSON):
		return sqlite3.SQLITE_ERROR
	case errors.Is(err, hypergraph.ErrUnknownNode):
		return sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	case errors.Is(err, hypergraph.ErrDimensionMismatch):
		return sqlite3.SQLITE_CONSTRAINT_CHECK
	case errors.Is(err, hypergraph.ErrEmptyMembership):
		return sqlite3.SQLITE_CONSTRAINT
	case errors.Is(err, hypergraph.ErrNotFound):
		return sqlite3.SQLITE_NOTFOUND
	}
	switch hypergraph.KindOf(err) {
	case hypergraph.KindConnection:
		return sqlite3.SQLITE_CANTOPEN
	case hypergraph.KindConstraint:
		return sqlite3.SQLITE_CONSTRAINT
	case hypergraph.KindDimension:
		return sqlite3.SQLITE_CONSTRAINT_CHECK
	case hypergraph.KindNotFound:
		return sqlite3.SQLITE_NOTFOUND
	}
	return sqlite3.SQLITE_ERROR
}
