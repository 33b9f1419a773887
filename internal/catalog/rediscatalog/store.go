// Package rediscatalog stores catalog entries in Redis: one GeoJSON feature
// per entry, a set of all ids, and one set per H3 cell for spatial lookups.
package rediscatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/keys"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/redisstore"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

const mgetChunk = 256

// CellResolver maps a query cell onto the resolution the index was built at.
type CellResolver interface {
	AtResolution(cell string, res int) (model.Cells, error)
}

type Store struct {
	cli   *redisstore.Client
	name  string
	res   int
	cells CellResolver

	mu     sync.Mutex
	schema *catalog.Schema
	closed bool
}

var _ catalog.Store = (*Store)(nil)

// New returns a store for the catalog called name. res is the H3 resolution
// of the cells carried by appended entries. The store owns cli.
func New(cli *redisstore.Client, name string, res int, cells CellResolver) *Store {
	return &Store{cli: cli, name: name, res: res, cells: cells}
}

func (s *Store) Reset(ctx context.Context, schema catalog.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("rediscatalog reset: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.ErrClosed
	}

	if _, err := s.cli.DeletePrefix(ctx, keys.Prefix(s.name)); err != nil {
		return fmt.Errorf("rediscatalog reset %q: %w", s.name, err)
	}
	body, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("rediscatalog encode schema: %w", err)
	}
	if err := s.cli.Set(ctx, keys.SchemaKey(s.name), body, 0); err != nil {
		return fmt.Errorf("rediscatalog store schema: %w", err)
	}
	s.schema = &schema
	return nil
}

func (s *Store) Append(ctx context.Context, e model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.ErrClosed
	}
	if s.schema == nil {
		return catalog.ErrNoSchema
	}

	body, err := catalog.EncodeFeature(e, *s.schema)
	if err != nil {
		return fmt.Errorf("rediscatalog append: %w", err)
	}

	entryKey := keys.EntryKey(s.name, e.ID)
	err = s.cli.Tx(ctx, "append", func(p redis.Pipeliner) error {
		p.Set(ctx, entryKey, body, 0)
		p.SAdd(ctx, keys.IDsKey(s.name), e.ID)
		for _, c := range e.Cells {
			p.SAdd(ctx, keys.CellKey(s.name, s.res, c), e.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rediscatalog append %s: %w", e.ID, err)
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
	return s.cli.Close()
}

// Schema returns the schema stored by the last Reset.
func (s *Store) Schema(ctx context.Context) (catalog.Schema, error) {
	body, ok, err := s.cli.Get(ctx, keys.SchemaKey(s.name))
	if err != nil {
		return catalog.Schema{}, fmt.Errorf("rediscatalog schema: %w", err)
	}
	if !ok {
		return catalog.Schema{}, fmt.Errorf("rediscatalog: catalog %q: %w", s.name, catalog.ErrNoSchema)
	}
	var schema catalog.Schema
	if err := json.Unmarshal(body, &schema); err != nil {
		return catalog.Schema{}, fmt.Errorf("rediscatalog decode schema: %w", err)
	}
	return schema, nil
}

// Entries returns every entry ordered by id.
func (s *Store) Entries(ctx context.Context) ([]model.Entry, error) {
	ids, err := s.cli.SMembers(ctx, keys.IDsKey(s.name))
	if err != nil {
		return nil, fmt.Errorf("rediscatalog ids: %w", err)
	}
	return s.load(ctx, ids)
}

// EntriesInCell returns the entries indexed under cell. Cells at another
// resolution are mapped to the index resolution first.
func (s *Store) EntriesInCell(ctx context.Context, cell string) ([]model.Entry, error) {
	cells := model.Cells{cell}
	if s.cells != nil {
		var err error
		if cells, err = s.cells.AtResolution(cell, s.res); err != nil {
			return nil, fmt.Errorf("rediscatalog cell %q: %w", cell, err)
		}
	}
	setKeys := make([]string, len(cells))
	for i, c := range cells {
		setKeys[i] = keys.CellKey(s.name, s.res, c)
	}
	ids, err := s.cli.SUnion(ctx, setKeys...)
	if err != nil {
		return nil, fmt.Errorf("rediscatalog cell %q: %w", cell, err)
	}
	return s.load(ctx, ids)
}

func (s *Store) load(ctx context.Context, ids []string) ([]model.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]model.Entry, 0, len(ids))
	for start := 0; start < len(ids); start += mgetChunk {
		chunk := ids[start:min(start+mgetChunk, len(ids))]
		entryKeys := make([]string, len(chunk))
		for i, id := range chunk {
			entryKeys[i] = keys.EntryKey(s.name, id)
		}
		raw, err := s.cli.MGet(ctx, entryKeys)
		if err != nil {
			return nil, fmt.Errorf("rediscatalog load entries: %w", err)
		}
		for i, k := range entryKeys {
			body, ok := raw[k]
			if !ok {
				// id set and entry out of sync; skip rather than fail the read
				continue
			}
			e, err := catalog.DecodeFeature(body, schema)
			if err != nil {
				return nil, fmt.Errorf("rediscatalog entry %s: %w", chunk[i], err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}
