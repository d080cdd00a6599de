/*
Package cache provides cross-run result caching for flowdag graphs.

# Overview

cache wraps a GraphAdapter so that tagged nodes persist their computed
values to a Store and reuse them on later runs. Expensive nodes become
cheap reads; everything untagged executes normally.

# Basic Usage

Tag nodes with a storage format and wrap the driver's adapter:

	m.Provide(flowdag.NodeDefinition{
	    Name: "trained_model",
	    Tags: map[string]string{cache.Tag: cache.FormatGob},
	    // ...
	})

	store, err := cache.NewSQLiteStore("./cache.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	dr, err := flowdag.NewBuilder().
	    WithModules(m).
	    WithAdapter(cache.NewAdapter(nil, store)).
	    Build()

The first run computes and stores trained_model; later runs read it back
without executing the node.

# Invalidation

Force specific nodes to recompute, and expand transitively so nothing
downstream serves a value derived from stale data:

	adapter := cache.NewAdapter(nil, store, cache.WithForceCompute("raw_data"))
	if err := adapter.InvalidateDownstream(dr.Graph()); err != nil {
	    log.Fatal(err)
	}

# Formats

Two codecs ship built in: "json" (portable, loses concrete Go types) and
"gob" (preserves types; gob.Register anything named). WithFormats injects
custom codecs into an adapter. A tag naming a format the adapter does not
know fails the node with UnknownFormatError listing the valid names.

# Stores

MemoryStore for tests, SQLiteStore for durable single-process use. Both
are safe for concurrent use.
*/
package cache
