package cache

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/randalmurphal/flowdag/pkg/flowdag"
	"github.com/randalmurphal/flowdag/pkg/flowdag/observability"
)

// Tag is the node tag that opts a node into caching. Its value names the
// storage format, e.g. Tags: map[string]string{cache.Tag: cache.FormatJSON}.
const Tag = "cache"

// Adapter wraps another GraphAdapter with cross-run result caching.
// Nodes carrying the cache tag read their value from the store when one
// exists and write it back after computing. Everything else passes
// through to the wrapped adapter untouched.
type Adapter struct {
	base    flowdag.GraphAdapter
	store   Store
	force   map[string]bool
	formats map[string]Format
	logger  *slog.Logger
}

// Compile-time interface check.
var _ flowdag.GraphAdapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithForceCompute marks nodes whose cached values are ignored this run:
// they recompute and overwrite the store. Expand the set transitively
// with InvalidateDownstream before executing, otherwise downstream nodes
// may keep serving values derived from the stale ones.
func WithForceCompute(names ...string) Option {
	return func(a *Adapter) {
		for _, name := range names {
			a.force[name] = true
		}
	}
}

// WithFormats adds or replaces codecs in the adapter's format table,
// making them usable from cache tags. The table starts with the json and
// gob built-ins.
func WithFormats(table map[string]Format) Option {
	return func(a *Adapter) {
		for name, f := range table {
			a.formats[name] = f
		}
	}
}

// WithLogger sets the logger for cache hits and write failures.
// Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// NewAdapter wraps base with caching against the given store. A nil base
// uses the default adapter.
func NewAdapter(base flowdag.GraphAdapter, store Store, opts ...Option) *Adapter {
	if base == nil {
		base = flowdag.DefaultAdapter{}
	}
	a := &Adapter{
		base:    base,
		store:   store,
		force:   make(map[string]bool),
		formats: defaultFormats(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InvalidateDownstream expands the force-compute set to everything
// transitively downstream of it in the graph. A recomputed node can
// change value, so cached descendants cannot be trusted either.
func (a *Adapter) InvalidateDownstream(g *flowdag.FunctionGraph) error {
	if len(a.force) == 0 {
		return nil
	}
	roots := make([]string, 0, len(a.force))
	for name := range a.force {
		roots = append(roots, name)
	}
	downstream, err := g.DownstreamNodes(roots...)
	if err != nil {
		return err
	}
	for _, n := range downstream {
		a.force[n.Name()] = true
	}
	return nil
}

// CheckInputType implements GraphAdapter, delegating to the wrapped
// adapter.
func (a *Adapter) CheckInputType(expected reflect.Type, value any) bool {
	return a.base.CheckInputType(expected, value)
}

// ExecuteNode implements GraphAdapter. For nodes carrying the cache tag
// it serves the stored value when present, otherwise computes through
// the wrapped adapter and writes the result back. A corrupt stored value
// falls back to recomputation; a failed write-back is logged and the
// computed value is still returned.
func (a *Adapter) ExecuteNode(n *flowdag.Node, kwargs map[string]any) (any, error) {
	formatName, cached := n.Tag(Tag)
	if !cached {
		return a.base.ExecuteNode(n, kwargs)
	}
	format, err := a.lookupFormat(formatName)
	if err != nil {
		return nil, err
	}

	name := n.Name()
	if !a.force[name] {
		data, err := a.store.Get(name)
		switch {
		case err == nil:
			v, decodeErr := format.Decode(data)
			if decodeErr == nil {
				observability.LogCacheHit(a.logger, name, formatName)
				return v, nil
			}
			observability.LogCacheWriteError(a.logger, name, decodeErr)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	v, err := a.base.ExecuteNode(n, kwargs)
	if err != nil {
		return nil, err
	}

	data, err := format.Encode(v)
	if err != nil {
		observability.LogCacheWriteError(a.logger, name, err)
		return v, nil
	}
	if err := a.store.Put(name, formatName, data); err != nil {
		observability.LogCacheWriteError(a.logger, name, err)
	}
	return v, nil
}

// BuildResult implements GraphAdapter, delegating to the wrapped adapter.
func (a *Adapter) BuildResult(outputs map[string]any) (any, error) {
	return a.base.BuildResult(outputs)
}
