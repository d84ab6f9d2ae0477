package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// Capability is a named set of engine features that must be present before
// the hypergraph schema can be used.
type Capability interface {
	// Name identifies the capability in errors and logs.
	Name() string
	// Register makes the capability available to connections opened later.
	// It must be safe to call repeatedly.
	Register() error
	// Verify checks that the capability is usable on db.
	Verify(ctx context.Context, db *sql.DB) error
}

// CapabilityError reports a capability that could not be registered or
// verified.
type CapabilityError struct {
	Name string
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("engine: capability %s unavailable: %v", e.Name, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// DefaultCapabilities returns the capabilities required by the hypergraph
// schema: vector functions and text embedding.
func DefaultCapabilities() []Capability {
	return []Capability{Vector(), TextEmbedding()}
}

// Register registers every capability. Call it before opening the handle
// the capabilities are verified on.
func Register(caps ...Capability) error {
	for _, c := range caps {
		if err := c.Register(); err != nil {
			return &CapabilityError{Name: c.Name(), Err: err}
		}
	}
	return nil
}

// Verify verifies every capability on db.
func Verify(ctx context.Context, db *sql.DB, caps ...Capability) error {
	for _, c := range caps {
		if err := c.Verify(ctx, db); err != nil {
			return &CapabilityError{Name: c.Name(), Err: err}
		}
	}
	return nil
}

// Load registers and then verifies caps. Connections db opened before the
// first registration do not see the functions, so Load should run before db
// is first used.
func Load(ctx context.Context, db *sql.DB, caps ...Capability) error {
	if err := Register(caps...); err != nil {
		return err
	}
	return Verify(ctx, db, caps...)
}

type scalarFunc struct {
	name          string
	nArg          int32
	deterministic bool
	impl          func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
}

type module struct {
	name string
	impl vtab.Module
}

// functionSet is a capability backed by SQL scalar functions and virtual
// table modules.
type functionSet struct {
	name    string
	check   string
	funcs   []scalarFunc
	modules []module
	once    sync.Once
	err     error
}

func (f *functionSet) Name() string { return f.name }

func (f *functionSet) Register() error {
	f.once.Do(func() {
		for _, fn := range f.funcs {
			var err error
			if fn.deterministic {
				err = sqlite.RegisterDeterministicScalarFunction(fn.name, fn.nArg, fn.impl)
			} else {
				err = sqlite.RegisterScalarFunction(fn.name, fn.nArg, fn.impl)
			}
			if err != nil && !isAlreadyRegistered(err) {
				f.err = fmt.Errorf("register %s: %w", fn.name, err)
				return
			}
		}
		for _, m := range f.modules {
			if err := vtab.RegisterModule(nil, m.name, m.impl); err != nil && !isAlreadyRegistered(err) {
				f.err = fmt.Errorf("register module %s: %w", m.name, err)
				return
			}
		}
	})
	return f.err
}

func (f *functionSet) Verify(ctx context.Context, db *sql.DB) error {
	var version string
	if err := db.QueryRowContext(ctx, f.check).Scan(&version); err != nil {
		return err
	}
	if version == "" {
		return fmt.Errorf("%s: empty version", f.name)
	}
	return nil
}

// the driver keeps a process-wide registry and rejects duplicates
func isAlreadyRegistered(err error) bool {
	return strings.Contains(err.Error(), "already registered")
}
