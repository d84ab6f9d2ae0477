// Package index defines a minimal abstraction for in-memory kNN indexes
// built from (id, embedding) pairs and queried with a distance metric.
// Implementations in this module are a brute-force baseline and a
// vantage-point tree; Resolve picks one from the metric and corpus shape.
package index
