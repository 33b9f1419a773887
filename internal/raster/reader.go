// Package raster reads native bounds and a spatial reference name from
// georeferenced raster files.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

var ErrUnsupported = errors.New("unsupported raster format")

type Info struct {
	XMin, XMax       float64
	YMin, YMax       float64
	SpatialReference string
}

type Reader interface {
	Read(ctx context.Context, path string) (Info, error)
}

type ReaderFunc func(ctx context.Context, path string) (Info, error)

func (f ReaderFunc) Read(ctx context.Context, path string) (Info, error) { return f(ctx, path) }

// Dispatcher picks a native reader by extension and retries with the fallback
// (normally gdalinfo) when the native reader fails.
type Dispatcher struct {
	byExt    map[string]Reader
	fallback Reader
	logger   *slog.Logger
}

type Option func(*Dispatcher)

func WithFallback(r Reader) Option {
	return func(d *Dispatcher) { d.fallback = r }
}

func WithReader(ext string, r Reader) Option {
	return func(d *Dispatcher) { d.byExt[strings.ToUpper(ext)] = r }
}

func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{
		byExt: map[string]Reader{
			".ASC": NewASCIIGridReader(),
			".TIF": NewGeoTIFFReader(),
		},
		logger: logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Read(ctx context.Context, path string) (Info, error) {
	ext := strings.ToUpper(filepath.Ext(path))
	primary, ok := d.byExt[ext]
	if !ok {
		if d.fallback == nil {
			return Info{}, fmt.Errorf("%w: %q", ErrUnsupported, ext)
		}
		return d.fallback.Read(ctx, path)
	}

	info, err := primary.Read(ctx, path)
	if err == nil || d.fallback == nil {
		return info, err
	}

	d.logger.DebugContext(ctx, "native raster reader failed, trying fallback", "path", path, "err", err)
	info, ferr := d.fallback.Read(ctx, path)
	if ferr != nil {
		return Info{}, errors.Join(err, fmt.Errorf("fallback: %w", ferr))
	}
	return info, nil
}

func (i Info) valid() error {
	if i.XMin > i.XMax || i.YMin > i.YMax {
		return fmt.Errorf("inverted bounds x[%f,%f] y[%f,%f]", i.XMin, i.XMax, i.YMin, i.YMax)
	}
	return nil
}

func labelOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.UnknownSpatialReference
	}
	return s
}

// wktName returns the quoted name of the outermost WKT node, e.g. CH1903_LV03 for
// PROJCS["CH1903_LV03",GEOGCS[...]].
func wktName(wkt string) string {
	open := strings.Index(wkt, "[\"")
	if open < 0 {
		return ""
	}
	rest := wkt[open+2:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
