// Package postgis writes the catalog into a PostGIS table: one row per entry,
// the footprint in a geometry(Polygon,21781) column and one column per
// schema field.
package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/observability"
	"github.com/mohammed-shakir/geodata-catalog/internal/footprint"
)

// LV03 footprints are stored with their EPSG code.
const srid = 21781

// Storage columns present in every catalog table besides the schema fields.
const (
	colID     = "entry_id"
	colSource = "source_path"
	colCells  = "h3_cells"
	colGeom   = "geom"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db    *sql.DB
	exec  execer
	table string

	mu     sync.Mutex
	schema *catalog.Schema
	insert string
	closed bool
}

var _ catalog.Store = (*Store)(nil)

// Open connects with lib/pq and checks the connection. The table is named
// after the catalog.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgis open: %w", err)
	}
	start := time.Now()
	err = db.PingContext(ctx)
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgis ping: %w", err)
	}
	return &Store{db: db, exec: db, table: table}, nil
}

func (s *Store) Reset(ctx context.Context, schema catalog.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("postgis reset: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.ErrClosed
	}

	meta, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("postgis encode schema: %w", err)
	}
	start := time.Now()
	for _, stmt := range resetStatements(s.table, schema, string(meta)) {
		if _, err := s.exec.ExecContext(ctx, stmt); err != nil {
			observability.ObserveStoreOp("reset", err, time.Since(start).Seconds())
			return fmt.Errorf("postgis reset %q: %w", s.table, err)
		}
	}
	observability.ObserveStoreOp("reset", nil, time.Since(start).Seconds())

	s.schema = &schema
	s.insert = insertStatement(s.table, schema)
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

	attrs, err := s.schema.Normalize(e.Attributes)
	if err != nil {
		return fmt.Errorf("postgis append %s: %w", e.ID, err)
	}
	args := make([]any, 0, 4+len(s.schema.Fields))
	args = append(args, e.ID, e.SourcePath, pq.Array([]string(e.Cells)))
	for _, f := range s.schema.Fields {
		args = append(args, attrs[f.Name]) // nil for missing attributes
	}
	args = append(args, e.Footprint.WKT())

	start := time.Now()
	_, err = s.exec.ExecContext(ctx, s.insert, args...)
	observability.ObserveStoreOp("append", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("postgis append %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("postgis close: %w", err)
	}
	return nil
}

// Schema reads the schema back from the table comment written by Reset.
func (s *Store) Schema(ctx context.Context) (catalog.Schema, error) {
	if s.db == nil {
		return catalog.Schema{}, errors.New("postgis: no database")
	}
	var meta sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT obj_description(to_regclass($1), 'pg_class')`, pq.QuoteIdentifier(s.table)).Scan(&meta)
	if err != nil {
		return catalog.Schema{}, fmt.Errorf("postgis schema: %w", err)
	}
	if !meta.Valid {
		return catalog.Schema{}, fmt.Errorf("postgis: table %q: %w", s.table, catalog.ErrNoSchema)
	}
	var schema catalog.Schema
	if err := json.Unmarshal([]byte(meta.String), &schema); err != nil {
		return catalog.Schema{}, fmt.Errorf("postgis decode schema: %w", err)
	}
	return schema, nil
}

func (s *Store) Entries(ctx context.Context) ([]model.Entry, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectStatement(s.table, schema))
	if err != nil {
		return nil, fmt.Errorf("postgis select: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Entry
	for rows.Next() {
		var (
			e     model.Entry
			cells []string
			ext   model.DatasetExtent
		)
		vals := make([]any, len(schema.Fields))
		dest := []any{&e.ID, &e.SourcePath, pq.Array(&cells), &ext.XMin, &ext.YMin, &ext.XMax, &ext.YMax}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgis scan: %w", err)
		}

		raw := make(map[string]any, len(vals))
		for i, f := range schema.Fields {
			if vals[i] != nil {
				raw[f.Name] = vals[i]
			}
		}
		if e.Attributes, err = schema.Normalize(raw); err != nil {
			return nil, fmt.Errorf("postgis entry %s: %w", e.ID, err)
		}
		e.Cells = cells
		e.Footprint = model.Footprint{Ring: footprint.Ring(ext), CRS: model.CRSLV03}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgis rows: %w", err)
	}
	return out, nil
}

func columnType(f catalog.Field) string {
	switch f.Type {
	case catalog.Short:
		return "smallint"
	case catalog.Date:
		return "date"
	default:
		return fmt.Sprintf("varchar(%d)", f.Length)
	}
}

func resetStatements(table string, schema catalog.Schema, meta string) []string {
	t := pq.QuoteIdentifier(table)

	cols := []string{
		pq.QuoteIdentifier(colID) + " text PRIMARY KEY",
		pq.QuoteIdentifier(colSource) + " text NOT NULL",
		pq.QuoteIdentifier(colCells) + " text[]",
	}
	for _, f := range schema.Fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name)+" "+columnType(f))
	}
	cols = append(cols, fmt.Sprintf("%s geometry(Polygon,%d) NOT NULL", pq.QuoteIdentifier(colGeom), srid))

	return []string{
		"DROP TABLE IF EXISTS " + t,
		"CREATE TABLE " + t + " (\n\t" + strings.Join(cols, ",\n\t") + "\n)",
		fmt.Sprintf("CREATE INDEX %s ON %s USING GIST (%s)",
			pq.QuoteIdentifier(table+"_geom_idx"), t, pq.QuoteIdentifier(colGeom)),
		"COMMENT ON TABLE " + t + " IS " + pq.QuoteLiteral(meta),
	}
}

func insertStatement(table string, schema catalog.Schema) string {
	cols := []string{pq.QuoteIdentifier(colID), pq.QuoteIdentifier(colSource), pq.QuoteIdentifier(colCells)}
	params := []string{"$1", "$2", "$3"}
	n := 4
	for _, f := range schema.Fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name))
		params = append(params, fmt.Sprintf("$%d", n))
		n++
	}
	cols = append(cols, pq.QuoteIdentifier(colGeom))
	params = append(params, fmt.Sprintf("ST_GeomFromText($%d, %d)", n, srid))

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		pq.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(params, ", "), pq.QuoteIdentifier(colID))
}

func selectStatement(table string, schema catalog.Schema) string {
	g := pq.QuoteIdentifier(colGeom)
	cols := []string{
		pq.QuoteIdentifier(colID), pq.QuoteIdentifier(colSource), pq.QuoteIdentifier(colCells),
		"ST_XMin(" + g + ")", "ST_YMin(" + g + ")", "ST_XMax(" + g + ")", "ST_YMax(" + g + ")",
	}
	for _, f := range schema.Fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name))
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), pq.QuoteIdentifier(table), pq.QuoteIdentifier(colID))
}
