/*
Package materialize persists flowdag outputs to external stores through
graph extension: each spec becomes real graph nodes, so saving
participates in dependency resolution, validation, and scheduling like
any other computation.

# Basic Usage

Declare what to save and run against an existing graph:

	specs := []materialize.Spec{{
	    ID:           "report_out",
	    Kind:         "json",
	    Dependencies: []string{"report"},
	    Params:       map[string]any{"dir": "./out"},
	}}

	meta, err := materialize.Run(dr.Graph(), materialize.DefaultRegistry(), specs,
	    map[string]any{"date": "2026-08-25"}, nil, nil)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(meta["report_out"]["path"])

A spec with multiple dependencies gets a join node combining them (the
Combine result builder, DictResult by default) before the save node runs.

# Custom Savers

Register a factory and reference it by kind:

	reg := materialize.DefaultRegistry()
	reg.Register("s3", func(params map[string]any) (materialize.DataSaver, error) {
	    // ...
	})

A spec naming an unregistered kind fails with UnknownSaverError listing
the valid kinds.
*/
package materialize
