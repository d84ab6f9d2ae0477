package hypergraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/viant/sqlite-hypergraph/engine"
)

// Node is a stored node document.
type Node struct {
	ID        string          `json:"id"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Property returns the value at path in the node body using gjson syntax.
func (n *Node) Property(path string) gjson.Result {
	return gjson.GetBytes(n.Body, path)
}

// NodeID validates body and returns the id the nodes table derives from it.
func NodeID(body string) (string, error) {
	if !gjson.Valid(body) {
		return "", ErrInvalidJSON
	}
	id := gjson.Get(body, "id")
	if id.Type != gjson.String {
		return "", ErrMissingID
	}
	return id.String(), nil
}

// InsertNode stores body as a new node and returns its derived id. The body
// must be a JSON document with a string "id" field that no other node uses.
func InsertNode(ctx context.Context, h Handle, body string) (string, error) {
	const op = "InsertNode"
	id, err := NodeID(body)
	if err != nil {
		return "", E(KindConstraint, op, err)
	}
	if _, err := h.ExecContext(ctx, "INSERT INTO nodes (body) VALUES (json(?))", body); err != nil {
		err = nodeWriteError(id, err)
		if errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrMissingID) || errors.Is(err, ErrInvalidJSON) || engine.IsConstraintViolation(err) {
			return "", E(KindConstraint, op, err)
		}
		return "", E(KindUnknown, op, err)
	}
	return id, nil
}

func nodeWriteError(id string, err error) error {
	switch {
	case engine.IsUniqueViolation(err):
		return fmt.Errorf("%w: node %q: %w", ErrDuplicateID, id, err)
	case engine.IsNotNullViolation(err):
		return fmt.Errorf("%w: %w", ErrMissingID, err)
	case strings.Contains(err.Error(), "malformed JSON"):
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return fmt.Errorf("insert node %q: %w", id, err)
}

const nodeColumns = "id, body, created_at, updated_at"

// GetNode loads the node with id.
func GetNode(ctx context.Context, h Handle, id string) (*Node, error) {
	row := h.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, E(KindNotFound, "GetNode", fmt.Errorf("%w: node %q", ErrNotFound, id))
	}
	if err != nil {
		return nil, E(KindUnknown, "GetNode", err)
	}
	return node, nil
}

// NodeExists reports whether a node with id is stored.
func NodeExists(ctx context.Context, h Handle, id string) (bool, error) {
	var one int
	err := h.QueryRowContext(ctx, "SELECT 1 FROM nodes WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup node %q: %w", id, err)
	}
	return true, nil
}

// FindNodesByProperty returns the nodes whose top-level property key equals
// value, ordered by id. value is compared against the extracted JSON value,
// so strings, numbers and booleans match their JSON counterparts.
func FindNodesByProperty(ctx context.Context, h Handle, key string, value any) ([]*Node, error) {
	if key == "" {
		return nil, E(KindConstraint, "FindNodesByProperty", errors.New("empty property key"))
	}
	path := "$." + quotePathKey(key)
	if b, ok := value.(bool); ok {
		// json_extract yields 1/0 for true/false
		value = 0
		if b {
			value = 1
		}
	}
	rows, err := h.QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE json_extract(body, ?) = ? ORDER BY id", path, value)
	if err != nil {
		return nil, E(KindUnknown, "FindNodesByProperty", err)
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, E(KindUnknown, "FindNodesByProperty", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// CountNodes returns the number of stored nodes.
func CountNodes(ctx context.Context, h Handle) (int64, error) {
	var n int64
	if err := h.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&n); err != nil {
		return 0, E(KindUnknown, "CountNodes", err)
	}
	return n, nil
}

func quotePathKey(key string) string {
	return `"` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

type scanner interface{ Scan(dest ...any) error }

func scanNode(row scanner) (*Node, error) {
	var node Node
	var body string
	var created, updated sql.NullTime
	if err := row.Scan(&node.ID, &body, &created, &updated); err != nil {
		return nil, err
	}
	node.Body = json.RawMessage(body)
	node.CreatedAt = created.Time
	node.UpdatedAt = updated.Time
	return &node, nil
}
