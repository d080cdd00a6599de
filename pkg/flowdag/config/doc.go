/*
Package config provides type-safe configuration extraction and graph
shaping predicates for flowdag.

# Overview

config wraps a map[string]any and provides typed accessor methods that
handle missing keys and type mismatches gracefully by returning default
values. The same wrapped map can be handed to a flowdag driver, where it
selects config-gated node definitions and satisfies external inputs.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "region":  "eu",
	    "retries": 3,
	    "enabled": true,
	})

	region := cfg.String("region", "us")   // "eu"
	retries := cfg.Int("retries", 5)       // 3
	missing := cfg.String("missing", "d")  // "d"

# Shaping Graphs

Predicates gate node definitions on configuration, so one set of modules
can produce different graph shapes per environment:

	m.Provide(flowdag.NodeDefinition{
	    Name: "data_source",
	    When: config.KeyEquals("region", "eu"),
	    // ...
	})

Combine predicates with All and Any for compound conditions.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("config.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	dr, err := flowdag.NewBuilder().
	    WithConfig(cfg.Raw()).
	    WithModules(modules...).
	    Build()

Layer environment overrides over a shared base with Merge.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
