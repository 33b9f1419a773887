// Package catalog defines the catalog schema, the writer contract every
// backend implements, and the GeoJSON feature encoding shared by the
// file and redis backends.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

var (
	ErrNoSchema     = errors.New("catalog writer used before Reset")
	ErrClosed       = errors.New("catalog writer is closed")
	ErrUnknownField = errors.New("attribute not in schema")
)

type FieldType int

const (
	Text FieldType = iota
	Short
	Date
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "TEXT"
	case Short:
		return "SHORT"
	case Date:
		return "DATE"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

func (t FieldType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *FieldType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "TEXT":
		*t = Text
	case "SHORT":
		*t = Short
	case "DATE":
		*t = Date
	default:
		return fmt.Errorf("unknown field type %q", b)
	}
	return nil
}

type Field struct {
	Name   string    `json:"name"`
	Type   FieldType `json:"type"`
	Length int       `json:"length,omitempty"` // TEXT only
}

// Schema is the fixed attribute layout of a catalog. The geometry column is
// implicit and always holds the LV03 footprint polygon.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.New("schema name is empty")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("schema field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type == Text && f.Length <= 0 {
			return fmt.Errorf("text field %q needs a positive length", f.Name)
		}
	}
	return nil
}

// Normalize checks attrs against the schema and coerces values: text is
// truncated to the field length, shorts must fit in 16 bits, dates become
// UTC midnight. Fields missing from attrs stay missing (null).
func (s Schema) Normalize(attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for name, v := range attrs {
		f, ok := s.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if v == nil {
			continue
		}
		nv, err := f.coerce(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = nv
	}
	return out, nil
}

func (f Field) coerce(v any) (any, error) {
	switch f.Type {
	case Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return truncate(s, f.Length), nil
	case Short:
		var n int64
		switch x := v.(type) {
		case int:
			n = int64(x)
		case int16:
			n = int64(x)
		case int32:
			n = int64(x)
		case int64:
			n = x
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			n = int64(x)
		default:
			return nil, fmt.Errorf("want integer, got %T", v)
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("%d out of SHORT range", n)
		}
		return int(n), nil
	case Date:
		switch x := v.(type) {
		case time.Time:
			y, m, d := x.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		case string:
			t, err := time.Parse(time.DateOnly, x)
			if err != nil {
				return nil, err
			}
			return t, nil
		default:
			return nil, fmt.Errorf("want date, got %T", v)
		}
	}
	return nil, fmt.Errorf("unknown field type %s", f.Type)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Writer persists catalog entries. Reset drops any existing catalog of the
// same name and recreates it empty with the given schema; it must be called
// before the first Append.
type Writer interface {
	Reset(ctx context.Context, schema Schema) error
	Append(ctx context.Context, e model.Entry) error
	Close() error
}

// Reader loads a catalog back for queries.
type Reader interface {
	Schema(ctx context.Context) (Schema, error)
	Entries(ctx context.Context) ([]model.Entry, error)
}

// Store is a backend that can be both written and read.
type Store interface {
	Writer
	Reader
}
