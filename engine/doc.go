// Package engine wraps the pure-Go modernc.org/sqlite driver for the
// hypergraph packages. It opens database handles with the pragmas the
// store relies on, registers the SQL functions and virtual table modules that
// stand in for the vector-similarity and text-embedding extensions, and
// negotiates those capabilities explicitly so a missing one surfaces as its
// own error.
//
// Functions and modules are registered process-wide and are only visible on
// connections opened after registration; Register must therefore run before
// the first connection of a handle is established.
package engine
