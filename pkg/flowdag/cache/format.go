package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format encodes and decodes node values for storage. A node picks its
// format through the cache tag; the format name is recorded alongside the
// stored bytes.
type Format interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Built-in format names.
const (
	FormatJSON = "json"
	FormatGob  = "gob"
)

// UnknownFormatError indicates a node's cache tag names a format with no
// registered codec. The message enumerates the valid names.
type UnknownFormatError struct {
	// Format is the unrecognized format name.
	Format string
	// Valid are the registered format names, sorted.
	Valid []string
}

// Error implements the error interface.
func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown cache format %q, valid formats: %s",
		e.Format, strings.Join(e.Valid, ", "))
}

// jsonFormat round-trips values through encoding/json. Decoded numbers
// come back as float64 and objects as map[string]any; use gob when the
// concrete Go type must survive.
type jsonFormat struct{}

func (jsonFormat) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonFormat) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// gobFormat round-trips values through encoding/gob, preserving concrete
// types. Callers must gob.Register any named types they cache.
type gobFormat struct{}

type gobEnvelope struct {
	Value any
}

func (gobFormat) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobEnvelope{Value: value}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobFormat) Decode(data []byte) (any, error) {
	var env gobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// defaultFormats assembles the built-in codec table each adapter starts
// from.
func defaultFormats() map[string]Format {
	return map[string]Format{
		FormatJSON: jsonFormat{},
		FormatGob:  gobFormat{},
	}
}

// lookupFormat resolves a format name against the adapter's codec table,
// building the enumerating error on miss.
func (a *Adapter) lookupFormat(name string) (Format, error) {
	f, ok := a.formats[name]
	if !ok {
		valid := make([]string, 0, len(a.formats))
		for k := range a.formats {
			valid = append(valid, k)
		}
		sort.Strings(valid)
		return nil, &UnknownFormatError{Format: name, Valid: valid}
	}
	return f, nil
}
