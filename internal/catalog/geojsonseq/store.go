// Package geojsonseq stores a catalog as newline-delimited GeoJSON features
// (<name>.geojsonl) with the schema in a sidecar file (<name>.schema.json).
package geojsonseq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

const (
	dataExt   = ".geojsonl"
	schemaExt = ".schema.json"

	maxLine = 4 * 1024 * 1024
)

type Store struct {
	dir  string
	name string

	mu     sync.Mutex
	schema *catalog.Schema
	f      *os.File
	w      *bufio.Writer
	closed bool
}

var _ catalog.Store = (*Store)(nil)

func New(dir, name string) *Store {
	return &Store{dir: dir, name: name}
}

func (s *Store) DataPath() string   { return filepath.Join(s.dir, s.name+dataExt) }
func (s *Store) SchemaPath() string { return filepath.Join(s.dir, s.name+schemaExt) }

// Reset truncates the data file and rewrites the schema sidecar.
func (s *Store) Reset(_ context.Context, schema catalog.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("geojsonseq reset: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.ErrClosed
	}
	if err := s.closeFile(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("geojsonseq mkdir %q: %w", s.dir, err)
	}
	body, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("geojsonseq encode schema: %w", err)
	}
	if err := os.WriteFile(s.SchemaPath(), append(body, '\n'), 0o644); err != nil { //nolint:gosec // catalog output is world readable
		return fmt.Errorf("geojsonseq write schema: %w", err)
	}

	f, err := os.Create(s.DataPath())
	if err != nil {
		return fmt.Errorf("geojsonseq create %q: %w", s.DataPath(), err)
	}
	s.f = f
	s.w = bufio.NewWriter(f)
	s.schema = &schema
	return nil
}

func (s *Store) Append(_ context.Context, e model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.ErrClosed
	}
	if s.schema == nil || s.w == nil {
		return catalog.ErrNoSchema
	}

	line, err := catalog.EncodeFeature(e, *s.schema)
	if err != nil {
		return fmt.Errorf("geojsonseq append: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("geojsonseq append %s: %w", e.ID, err)
	}
	// each row reaches the file before Append returns
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("geojsonseq flush %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFile()
}

func (s *Store) closeFile() error {
	if s.f == nil {
		return nil
	}
	ferr := s.w.Flush()
	cerr := s.f.Close()
	s.f, s.w = nil, nil
	if err := errors.Join(ferr, cerr); err != nil {
		return fmt.Errorf("geojsonseq close %q: %w", s.DataPath(), err)
	}
	return nil
}

func (s *Store) Schema(_ context.Context) (catalog.Schema, error) {
	body, err := os.ReadFile(s.SchemaPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalog.Schema{}, fmt.Errorf("geojsonseq: %q: %w", s.SchemaPath(), catalog.ErrNoSchema)
		}
		return catalog.Schema{}, fmt.Errorf("geojsonseq read schema: %w", err)
	}
	var schema catalog.Schema
	if err := json.Unmarshal(body, &schema); err != nil {
		return catalog.Schema{}, fmt.Errorf("geojsonseq decode schema: %w", err)
	}
	return schema, nil
}

// Entries reads the data file back, flushing pending writes first.
func (s *Store) Entries(ctx context.Context) ([]model.Entry, error) {
	s.mu.Lock()
	if s.w != nil {
		if err := s.w.Flush(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("geojsonseq flush: %w", err)
		}
	}
	s.mu.Unlock()

	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.DataPath())
	if err != nil {
		return nil, fmt.Errorf("geojsonseq open %q: %w", s.DataPath(), err)
	}
	defer f.Close() //nolint:errcheck

	var out []model.Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		e, err := catalog.DecodeFeature(line, schema)
		if err != nil {
			return nil, fmt.Errorf("geojsonseq line %d: %w", n, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("geojsonseq read: %w", err)
	}
	return out, nil
}
