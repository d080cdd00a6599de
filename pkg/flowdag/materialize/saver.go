package materialize

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Metadata describes what a saver wrote: location, size, timing. It is
// the value the save node produces, so downstream code (and the run's
// result) can trace where outputs landed.
type Metadata map[string]any

// DataSaver writes one computed value to an external target.
type DataSaver interface {
	Save(value any) (Metadata, error)
}

// SaverFactory builds a DataSaver from declarative parameters, so
// materialization specs can stay data (config files, API payloads)
// rather than code.
type SaverFactory func(params map[string]any) (DataSaver, error)

// UnknownSaverError indicates a spec names a saver kind with no
// registered factory. The message enumerates the valid kinds.
type UnknownSaverError struct {
	// Kind is the unrecognized saver kind.
	Kind string
	// Valid are the registered kinds, sorted.
	Valid []string
}

// Error implements the error interface.
func (e *UnknownSaverError) Error() string {
	return fmt.Sprintf("unknown saver kind %q, valid kinds: %s",
		e.Kind, strings.Join(e.Valid, ", "))
}

// JSONSaver writes values as JSON files.
type JSONSaver struct {
	// Dir is the target directory, created if missing.
	Dir string
	// Name is the file name without extension.
	Name string
}

// Save implements DataSaver.
func (s JSONSaver) Save(value any) (Metadata, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	path := filepath.Join(s.Dir, s.Name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write json file: %w", err)
	}
	return Metadata{
		"path":       path,
		"size_bytes": len(data),
		"written_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// SQLiteSaver writes values as JSON blobs into a SQLite table, one row
// per key, overwriting previous runs.
type SQLiteSaver struct {
	// Path is the database file path.
	Path string
	// Table is the target table, created if missing.
	Table string
	// Key identifies this output's row.
	Key string
}

// Save implements DataSaver.
func (s SQLiteSaver) Save(value any) (Metadata, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			key TEXT NOT NULL PRIMARY KEY,
			written_at TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`, s.Table)); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	writtenAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := db.Exec(fmt.Sprintf(`
		INSERT INTO %q (key, written_at, data) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			written_at = excluded.written_at,
			data = excluded.data
	`, s.Table), s.Key, writtenAt, data); err != nil {
		return nil, fmt.Errorf("write row: %w", err)
	}

	return Metadata{
		"path":       s.Path,
		"table":      s.Table,
		"key":        s.Key,
		"size_bytes": len(data),
		"written_at": writtenAt,
	}, nil
}

// DefaultRegistry returns a registry with the built-in saver kinds:
//
//	"json":   params dir (string), name (string, defaults to the spec ID)
//	"sqlite": params path (string), table (string, default "outputs"),
//	          key (string, defaults to the spec ID)
//
// Factories receive the spec ID under the reserved param "id".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", func(params map[string]any) (DataSaver, error) {
		dir, ok := params["dir"].(string)
		if !ok || dir == "" {
			return nil, fmt.Errorf("json saver: param dir is required")
		}
		name, _ := params["name"].(string)
		if name == "" {
			name, _ = params["id"].(string)
		}
		if name == "" {
			return nil, fmt.Errorf("json saver: param name is required")
		}
		return JSONSaver{Dir: dir, Name: name}, nil
	})
	r.Register("sqlite", func(params map[string]any) (DataSaver, error) {
		path, ok := params["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("sqlite saver: param path is required")
		}
		table, _ := params["table"].(string)
		if table == "" {
			table = "outputs"
		}
		key, _ := params["key"].(string)
		if key == "" {
			key, _ = params["id"].(string)
		}
		if key == "" {
			return nil, fmt.Errorf("sqlite saver: param key is required")
		}
		return SQLiteSaver{Path: path, Table: table, Key: key}, nil
	})
	return r
}
