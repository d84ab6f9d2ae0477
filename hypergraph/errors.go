package hypergraph

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the hypergraph packages.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindConnection means the database could not be opened or reached.
	KindConnection
	// KindExtension means a required engine capability is unavailable.
	KindExtension
	// KindSchema means schema materialization failed.
	KindSchema
	// KindConstraint covers duplicate ids, missing ids, invalid JSON and
	// references to unknown nodes.
	KindConstraint
	// KindDimension means a vector does not have the expected length.
	KindDimension
	// KindNotFound means a requested record does not exist.
	KindNotFound
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindConnection: "connection",
	KindExtension:  "extension",
	KindSchema:     "schema",
	KindConstraint: "constraint",
	KindDimension:  "dimension",
	KindNotFound:   "not found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrDuplicateID is returned when a node or hyperedge id already exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrMissingID is returned when a record has no usable id.
	ErrMissingID = errors.New("missing id")
	// ErrInvalidJSON is returned when a document does not parse as JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrUnknownNode is returned when a referenced node does not exist.
	ErrUnknownNode = errors.New("unknown node")
	// ErrEmptyMembership is returned for a hyperedge without members.
	ErrEmptyMembership = errors.New("empty membership")
	// ErrDimensionMismatch is returned for vectors of the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a classified failure. Err keeps the sentinel and any driver
// error reachable through errors.Is and errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("hypergraph: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("hypergraph: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields nil; an err that is
// already classified keeps its kind.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
