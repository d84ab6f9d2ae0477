package session

import (
	"time"

	"github.com/viant/sqlite-hypergraph/engine"
	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/vector"
	"go.uber.org/zap"
)

// Options configures a Session.
type Options struct {
	Engine       engine.Options
	Capabilities []engine.Capability
	IndexKind    index.Kind
	Metric       vector.Metric
	Logger       *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger; sessions log lifecycle events at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) { o.Engine.BusyTimeout = d }
}

// WithJournalMode sets the journal mode of file databases, e.g. WAL or DELETE.
func WithJournalMode(mode string) Option {
	return func(o *Options) { o.Engine.JournalMode = mode }
}

// WithCapabilities replaces the capabilities negotiated on open.
func WithCapabilities(caps ...engine.Capability) Option {
	return func(o *Options) { o.Capabilities = caps }
}

// WithIndexKind selects the nearest-neighbour search strategy.
func WithIndexKind(kind index.Kind) Option {
	return func(o *Options) { o.IndexKind = kind }
}

// WithMetric selects the distance metric used by searches.
func WithMetric(metric vector.Metric) Option {
	return func(o *Options) { o.Metric = metric }
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Engine:       engine.DefaultOptions(),
		Capabilities: engine.DefaultCapabilities(),
		IndexKind:    index.KindAuto,
		Metric:       vector.L2,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
