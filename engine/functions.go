package engine

import (
	"database/sql/driver"
	"fmt"

	"github.com/viant/sqlite-hypergraph/vec"
	"github.com/viant/sqlite-hypergraph/vecadmin"
	"github.com/viant/sqlite-hypergraph/vector"
	sqlite "modernc.org/sqlite"
)

// VectorVersion is reported by vec_version().
const VectorVersion = "v0.1.0-go"

var vectorCapability = &functionSet{
	name:  "vector",
	check: "SELECT vec_version()",
	funcs: []scalarFunc{
		{name: "vec_version", nArg: 0, deterministic: true, impl: vecVersionImpl},
		{name: "vec_f32", nArg: 1, deterministic: true, impl: vecF32Impl},
		{name: "vec_length", nArg: 1, deterministic: true, impl: vecLengthImpl},
		{name: "vec_distance_l2", nArg: 2, deterministic: true, impl: distanceImpl("vec_distance_l2", vector.L2)},
		{name: "vec_distance_cosine", nArg: 2, deterministic: true, impl: distanceImpl("vec_distance_cosine", vector.Cosine)},
		{name: "vec_invalidate", nArg: 2, impl: vecInvalidateImpl},
	},
	modules: []module{
		{name: vec.ModuleName, impl: vec.NewModule()},
		{name: vecadmin.ModuleName, impl: vecadmin.NewModule()},
	},
}

// Vector returns the vector-similarity capability. It provides:
//   - vec_version() TEXT
//   - vec_f32(vector) BLOB, normalizing a BLOB or JSON array to a float32 BLOB
//   - vec_length(vector) INTEGER
//   - vec_distance_l2(a, b) REAL
//   - vec_distance_cosine(a, b) REAL
//   - vec_invalidate(store, table) INTEGER, dropping cached vec0 snapshots
//   - the vec0 virtual table module, see package vec
//   - the vec_admin virtual table module, see package vecadmin
func Vector() Capability { return vectorCapability }

func vecVersionImpl(_ *sqlite.FunctionContext, _ []driver.Value) (driver.Value, error) {
	return VectorVersion, nil
}

func vecInvalidateImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	store, _ := args[0].(string)
	table, _ := args[1].(string)
	return int64(vec.Invalidate(store, table)), nil
}

func vecF32Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, err := asEmbedding(args[0])
	if err != nil || v == nil {
		return nil, err
	}
	return vector.EncodeEmbedding(v)
}

func vecLengthImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	v, err := asEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	return int64(len(v)), nil
}

func distanceImpl(name string, metric vector.Metric) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asEmbedding(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asEmbedding(args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("%s: dimension mismatch %d vs %d", name, len(a), len(b))
		}
		return float64(metric.Distance(a, b)), nil
	}
}

// asEmbedding accepts a float32 BLOB or a JSON array of numbers.
func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeEmbedding(v)
	case string:
		return vector.ParseJSON(v)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB or JSON array", arg)
	}
}
