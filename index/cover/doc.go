// Package cover provides a vantage-point tree index. Pruning relies on the
// triangle inequality, so results are exact for L2 and approximate for
// cosine distance.
package cover
