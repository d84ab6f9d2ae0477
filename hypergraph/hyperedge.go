package hypergraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/viant/sqlite-hypergraph/engine"
)

// Hyperedge connects an ordered tuple of nodes.
type Hyperedge struct {
	ID         string          `json:"id"`
	Properties json.RawMessage `json:"properties"`
	Nodes      []string        `json:"nodes"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Membership is a node's position within a hyperedge.
type Membership struct {
	HyperedgeID string    `json:"hyperedge_id"`
	NodeID      string    `json:"node_id"`
	Order       int       `json:"node_order"`
	CreatedAt   time.Time `json:"created_at"`
}

// HyperedgeInput describes a hyperedge to create. Members are stored in the
// given order; a node may appear more than once.
type HyperedgeInput struct {
	ID         string   `json:"id" validate:"required"`
	Properties string   `json:"properties,omitempty"`
	Members    []string `json:"members" validate:"min=1,dive,required"`
}

// NewHyperedgeID returns a random id for callers without a natural key.
func NewHyperedgeID() string {
	return uuid.New().String()
}

// CreateHyperedge inserts the hyperedge and one membership row per member
// in a single transaction. Nothing is written when any member is unknown or
// the id is taken.
func CreateHyperedge(ctx context.Context, b Beginner, in HyperedgeInput) error {
	const op = "CreateHyperedge"
	if err := validateHyperedge(in); err != nil {
		return E(KindConstraint, op, err)
	}
	properties := in.Properties
	if properties == "" {
		properties = "{}"
	}
	if !gjson.Valid(properties) {
		return E(KindConstraint, op, fmt.Errorf("%w: properties of hyperedge %q", ErrInvalidJSON, in.ID))
	}
	members, err := memberList(in.Members)
	if err != nil {
		return E(KindUnknown, op, err)
	}
	err = WithTx(ctx, b, func(tx *sql.Tx) error {
		for _, nodeID := range in.Members {
			ok, err := NodeExists(ctx, tx, nodeID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO hyperedges (id, properties, nodes) VALUES (?, json(?), ?)", in.ID, properties, members); err != nil {
			if engine.IsUniqueViolation(err) {
				return fmt.Errorf("%w: hyperedge %q: %w", ErrDuplicateID, in.ID, err)
			}
			return fmt.Errorf("insert hyperedge %q: %w", in.ID, err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO node_hyperedge_map (hyperedge_id, node_id, node_order) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for order, nodeID := range in.Members {
			if _, err := stmt.ExecContext(ctx, in.ID, nodeID, order); err != nil {
				return fmt.Errorf("insert member %d of hyperedge %q: %w", order, in.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownNode) || errors.Is(err, ErrDuplicateID) || engine.IsConstraintViolation(err) {
			return E(KindConstraint, op, err)
		}
		return E(KindUnknown, op, err)
	}
	return nil
}

// memberList builds the denormalized JSON array stored in hyperedges.nodes.
func memberList(members []string) (string, error) {
	out := "[]"
	for _, m := range members {
		var err error
		if out, err = sjson.Set(out, "-1", m); err != nil {
			return "", err
		}
	}
	return out, nil
}

// GetHyperedge loads the hyperedge with id.
func GetHyperedge(ctx context.Context, h Handle, id string) (*Hyperedge, error) {
	row := h.QueryRowContext(ctx, "SELECT id, properties, nodes, created_at, updated_at FROM hyperedges WHERE id = ?", id)
	edge, err := scanHyperedge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, E(KindNotFound, "GetHyperedge", fmt.Errorf("%w: hyperedge %q", ErrNotFound, id))
	}
	if err != nil {
		return nil, E(KindUnknown, "GetHyperedge", err)
	}
	return edge, nil
}

// Members returns the membership rows of a hyperedge ordered by position.
func Members(ctx context.Context, h Handle, hyperedgeID string) ([]Membership, error) {
	rows, err := h.QueryContext(ctx, `SELECT hyperedge_id, node_id, node_order, created_at
FROM node_hyperedge_map WHERE hyperedge_id = ?
ORDER BY node_order`, hyperedgeID)
	if err != nil {
		return nil, E(KindUnknown, "Members", err)
	}
	defer rows.Close()
	var members []Membership
	for rows.Next() {
		var m Membership
		var created sql.NullTime
		if err := rows.Scan(&m.HyperedgeID, &m.NodeID, &m.Order, &created); err != nil {
			return nil, E(KindUnknown, "Members", err)
		}
		m.CreatedAt = created.Time
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, E(KindUnknown, "Members", err)
	}
	return members, nil
}

// HyperedgesOf returns the hyperedges node participates in, ordered by id.
func HyperedgesOf(ctx context.Context, h Handle, nodeID string) ([]*Hyperedge, error) {
	rows, err := h.QueryContext(ctx, `SELECT h.id, h.properties, h.nodes, h.created_at, h.updated_at
FROM hyperedges h
WHERE h.id IN (SELECT hyperedge_id FROM node_hyperedge_map WHERE node_id = ?)
ORDER BY h.id`, nodeID)
	if err != nil {
		return nil, E(KindUnknown, "HyperedgesOf", err)
	}
	defer rows.Close()
	var edges []*Hyperedge
	for rows.Next() {
		edge, err := scanHyperedge(rows)
		if err != nil {
			return nil, E(KindUnknown, "HyperedgesOf", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// CountHyperedges returns the number of stored hyperedges.
func CountHyperedges(ctx context.Context, h Handle) (int64, error) {
	var n int64
	if err := h.QueryRowContext(ctx, "SELECT COUNT(*) FROM hyperedges").Scan(&n); err != nil {
		return 0, E(KindUnknown, "CountHyperedges", err)
	}
	return n, nil
}

func scanHyperedge(row scanner) (*Hyperedge, error) {
	var edge Hyperedge
	var properties, nodes sql.NullString
	var created, updated sql.NullTime
	if err := row.Scan(&edge.ID, &properties, &nodes, &created, &updated); err != nil {
		return nil, err
	}
	if properties.Valid {
		edge.Properties = json.RawMessage(properties.String)
	}
	gjson.Parse(nodes.String).ForEach(func(_, value gjson.Result) bool {
		edge.Nodes = append(edge.Nodes, value.String())
		return true
	})
	edge.CreatedAt = created.Time
	edge.UpdatedAt = updated.Time
	return &edge, nil
}
