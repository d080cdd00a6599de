package materialize

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdag/pkg/flowdag"
)

// reportModule builds rows -> total with an external "factor" input.
func reportModule() *flowdag.Module {
	return flowdag.NewModule("report").
		Provide(flowdag.NodeDefinition{
			Name: "rows",
			Type: flowdag.Returns[[]float64](),
			Fn: func(map[string]any) (any, error) {
				return []float64{1, 2, 3}, nil
			},
		}).
		Provide(flowdag.NodeDefinition{
			Name:   "total",
			Type:   flowdag.Returns[float64](),
			Params: []flowdag.Parameter{flowdag.Param[[]float64]("rows"), flowdag.Param[float64]("factor")},
			Fn: func(kwargs map[string]any) (any, error) {
				sum := 0.0
				for _, v := range kwargs["rows"].([]float64) {
					sum += v
				}
				return sum * kwargs["factor"].(float64), nil
			},
		})
}

// TestExtend verifies save and join nodes land in a new graph with the
// original untouched.
func TestExtend(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	before := g.Len()

	extended, err := Extend(g, DefaultRegistry(), Spec{
		ID:           "report_out",
		Kind:         "json",
		Dependencies: []string{"total", "rows"},
		Params:       map[string]any{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	assert.Equal(t, before, g.Len())
	assert.Equal(t, before+2, extended.Len())

	save, ok := extended.Node("report_out")
	require.True(t, ok)
	kind, _ := save.Tag(KindTag)
	assert.Equal(t, "json", kind)
	exec, _ := save.Tag(flowdag.ExecutionTag)
	assert.Equal(t, "local", exec)

	join, ok := extended.Node("report_out_build_result")
	require.True(t, ok)
	assert.Equal(t, []string{"rows", "total"}, extended.Dependencies(join.Name()))
	assert.Equal(t, []string{join.Name()}, extended.Dependencies("report_out"))
}

// TestExtend_Errors covers empty specs, unknown dependencies, and
// unknown saver kinds.
func TestExtend_Errors(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	reg := DefaultRegistry()

	_, err = Extend(g, reg, Spec{Kind: "json", Dependencies: []string{"total"}})
	assert.ErrorContains(t, err, "no ID")

	_, err = Extend(g, reg, Spec{ID: "x", Kind: "json"})
	assert.ErrorContains(t, err, "no dependencies")

	_, err = Extend(g, reg, Spec{ID: "x", Kind: "json", Dependencies: []string{"ghost"}})
	assert.ErrorIs(t, err, flowdag.ErrUnknownNode)

	_, err = Extend(g, reg, Spec{ID: "x", Kind: "parquet", Dependencies: []string{"total"}})
	var saverErr *UnknownSaverError
	require.ErrorAs(t, err, &saverErr)
	assert.Equal(t, "parquet", saverErr.Kind)
	assert.Equal(t, []string{"json", "sqlite"}, saverErr.Valid)
}

// TestRun_JSON verifies a single-dependency spec writes the bare value
// and returns its metadata.
func TestRun_JSON(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	dir := t.TempDir()

	meta, err := Run(g, DefaultRegistry(), []Spec{{
		ID:           "total_out",
		Kind:         "json",
		Dependencies: []string{"total"},
		Params:       map[string]any{"dir": dir},
	}}, map[string]any{"factor": 2.0}, nil, nil)
	require.NoError(t, err)

	md := meta["total_out"]
	require.NotNil(t, md)
	path := md["path"].(string)
	assert.Equal(t, filepath.Join(dir, "total_out.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved float64
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 12.0, saved)
}

// TestRun_CombinesDependencies verifies multi-dependency specs save the
// combined map.
func TestRun_CombinesDependencies(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	dir := t.TempDir()

	meta, err := Run(g, DefaultRegistry(), []Spec{{
		ID:           "bundle",
		Kind:         "json",
		Dependencies: []string{"total", "rows"},
		Params:       map[string]any{"dir": dir},
	}}, map[string]any{"factor": 1.0}, nil, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(meta["bundle"]["path"].(string))
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 6.0, saved["total"])
	assert.Len(t, saved["rows"], 3)
}

// TestRun_SQLite verifies the sqlite saver writes a readable row.
func TestRun_SQLite(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.db")

	meta, err := Run(g, DefaultRegistry(), []Spec{{
		ID:           "total_row",
		Kind:         "sqlite",
		Dependencies: []string{"total"},
		Params:       map[string]any{"path": path, "table": "reports"},
	}}, map[string]any{"factor": 3.0}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "reports", meta["total_row"]["table"])

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var data []byte
	require.NoError(t, db.QueryRow(
		`SELECT data FROM "reports" WHERE key = ?`, "total_row").Scan(&data))
	var saved float64
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 18.0, saved)
}

// TestRun_Overrides verifies overrides flow through materialization.
func TestRun_Overrides(t *testing.T) {
	g, err := flowdag.NewFunctionGraph(nil, reportModule())
	require.NoError(t, err)
	dir := t.TempDir()

	meta, err := Run(g, DefaultRegistry(), []Spec{{
		ID:           "total_out",
		Kind:         "json",
		Dependencies: []string{"total"},
		Params:       map[string]any{"dir": dir},
	}}, nil, map[string]any{"total": 99.0}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(meta["total_out"]["path"].(string))
	require.NoError(t, err)
	var saved float64
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 99.0, saved)
}

// TestRegistry verifies registration and the kind listing.
func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Has("json"))
	assert.Empty(t, reg.Kinds())

	reg.Register("custom", func(params map[string]any) (DataSaver, error) {
		return JSONSaver{Dir: "/tmp", Name: "x"}, nil
	})
	assert.True(t, reg.Has("custom"))
	assert.Equal(t, []string{"custom"}, reg.Kinds())

	_, err := reg.Build("other", nil)
	var saverErr *UnknownSaverError
	assert.ErrorAs(t, err, &saverErr)
}
