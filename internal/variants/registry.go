// Package variants holds the catalog flavours the crawler can build. Each
// variant fixes the schema, which files it accepts and how their attribute
// values are derived.
package variants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

var (
	// ErrFiltered marks a file the variant deliberately leaves out of the catalog.
	ErrFiltered       = errors.New("filtered by variant")
	ErrUnknownVariant = errors.New("unknown variant")
)

type Variant interface {
	Name() string
	Schema() catalog.Schema
	Accepts(path string) (model.SourceKind, bool)
	Attributes(ctx context.Context, ext model.DatasetExtent) (map[string]any, error)
}

type Factory func(cfg config.Config, logger *slog.Logger) (Variant, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func New(name string, cfg config.Config, logger *slog.Logger) (Variant, error) {
	f, ok := reg[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownVariant, name, strings.Join(Names(), ", "))
	}
	return f(cfg, logger)
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// KindOf classifies a path by its upper-cased extension: .TIF and .ASC are
// rasters, anything starting with .XYZ is a point cloud.
func KindOf(path string) (model.SourceKind, bool) {
	ext := strings.ToUpper(filepath.Ext(path))
	switch {
	case ext == ".TIF" || ext == ".ASC":
		return model.Raster, true
	case strings.HasPrefix(ext, ".XYZ"):
		return model.PointCloud, true
	}
	return 0, false
}
