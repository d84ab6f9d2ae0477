package embedding

import (
	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/vector"
)

// DefaultModel names the model recorded for vectors upserted without one
// and used by EmbedText when no model is given.
const DefaultModel = "all-MiniLM-L6-v2"

// KindSQL ranks candidates inside the engine with a MATCH query on the
// embeddings vec0 table instead of an index built per call.
const KindSQL index.Kind = "sql"

// ParseKind resolves a search kind name: one of the index kinds or "sql".
func ParseKind(name string) (index.Kind, error) {
	if index.Kind(name) == KindSQL {
		return KindSQL, nil
	}
	return index.ParseKind(name)
}

// Options controls upserts and searches.
type Options struct {
	// ID names the metadata row; a random UUID is assigned when empty.
	ID        string
	Model     string
	StartIdx  int
	EndIdx    int
	Child     string
	Metric    vector.Metric
	IndexKind index.Kind
}

// Option mutates Options.
type Option func(*Options)

// WithModel records the model that produced the vector.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithSpan records the [start, end) offsets of the embedded text.
func WithSpan(start, end int) Option {
	return func(o *Options) {
		o.StartIdx = start
		o.EndIdx = end
	}
}

// WithID sets the metadata id recorded with the embedding.
func WithID(id string) Option {
	return func(o *Options) { o.ID = id }
}

// WithChild records the child the embedded span was taken from.
func WithChild(child string) Option {
	return func(o *Options) { o.Child = child }
}

// WithMetric selects the distance metric used for searches.
func WithMetric(metric vector.Metric) Option {
	return func(o *Options) { o.Metric = metric }
}

// WithIndexKind selects the search index; KindAuto picks one from the
// corpus shape.
func WithIndexKind(kind index.Kind) Option {
	return func(o *Options) { o.IndexKind = kind }
}

func newOptions(opts []Option) *Options {
	o := &Options{Model: DefaultModel, Metric: vector.L2, IndexKind: index.KindAuto}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.Metric == "" {
		o.Metric = vector.L2
	}
	if o.IndexKind == "" {
		o.IndexKind = index.KindAuto
	}
	return o
}
