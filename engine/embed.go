package engine

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/sqlite-hypergraph/vector"
	sqlite "modernc.org/sqlite"
)

// EmbeddingVersion is reported by lembed_version().
const EmbeddingVersion = "v0.1.0-go"

// EmbedFunc converts free-form text into an embedding.
//
// Implementations can call any embedding provider (remote API, local model)
// as long as they return a slice of float32 values. The engine stays
// model-agnostic and only exposes registered functions through lembed.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

var models = struct {
	sync.RWMutex
	byName map[string]EmbedFunc
}{byName: map[string]EmbedFunc{}}

// RegisterModel makes fn available to lembed under name. Registering a name
// again replaces the previous function.
func RegisterModel(name string, fn EmbedFunc) error {
	if name == "" {
		return fmt.Errorf("engine: empty embedding model name")
	}
	if fn == nil {
		return fmt.Errorf("engine: EmbedFunc is nil for model %q", name)
	}
	models.Lock()
	defer models.Unlock()
	models.byName[name] = fn
	return nil
}

// UnregisterModel removes a model registered with RegisterModel.
func UnregisterModel(name string) {
	models.Lock()
	defer models.Unlock()
	delete(models.byName, name)
}

// Models lists registered model names in ascending order.
func Models() []string {
	models.RLock()
	defer models.RUnlock()
	names := make([]string, 0, len(models.byName))
	for name := range models.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Embed runs the named model directly, without going through SQL.
func Embed(ctx context.Context, model, text string) ([]float32, error) {
	models.RLock()
	fn, ok := models.byName[model]
	models.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lembed: unknown model %q", model)
	}
	vec, err := fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("lembed: model %q: %w", model, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("lembed: model %q returned an empty embedding", model)
	}
	return vec, nil
}

var textEmbeddingCapability = &functionSet{
	name:  "text-embedding",
	check: "SELECT lembed_version()",
	funcs: []scalarFunc{
		{name: "lembed_version", nArg: 0, deterministic: true, impl: lembedVersionImpl},
		{name: "lembed", nArg: 2, impl: lembedImpl},
	},
}

// TextEmbedding returns the text-embedding capability. It provides:
//   - lembed_version() TEXT
//   - lembed(model, text) BLOB, computed by the model registered under name
func TextEmbedding() Capability { return textEmbeddingCapability }

func lembedVersionImpl(_ *sqlite.FunctionContext, _ []driver.Value) (driver.Value, error) {
	return EmbeddingVersion, nil
}

func lembedImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	model, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("lembed: model must be TEXT, got %T", args[0])
	}
	var text string
	switch v := args[1].(type) {
	case nil:
		return nil, nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("lembed: content must be TEXT, got %T", args[1])
	}
	vec, err := Embed(context.Background(), model, text)
	if err != nil {
		return nil, err
	}
	return vector.EncodeEmbedding(vec)
}
