// Package swisstopo is the national mapping variant: metadata comes from the
// ancestor directories (.../DOP/LV95/2015/<file>) and only rasters are read.
package swisstopo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/decode/pathmeta"
	"github.com/mohammed-shakir/geodata-catalog/internal/variants"
)

const Name = "swisstopo"

const (
	FieldFilePath = "FilePath"
	FieldDataType = "DataType"
	FieldCoordSys = "CoordSys"
	FieldYear     = "Year"
)

type Variant struct {
	logger   *slog.Logger
	schema   catalog.Schema
	resolver *pathmeta.Resolver
}

func init() {
	variants.Register(Name, func(cfg config.Config, logger *slog.Logger) (variants.Variant, error) {
		return New(cfg.Catalog.Name, cfg.PathCacheSize, logger), nil
	})
}

func New(catalogName string, cacheSize int, logger *slog.Logger) *Variant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Variant{
		logger:   logger,
		resolver: pathmeta.NewResolver(cacheSize),
		schema: catalog.Schema{
			Name: catalogName,
			Fields: []catalog.Field{
				{Name: FieldFilePath, Type: catalog.Text, Length: 500},
				{Name: FieldDataType, Type: catalog.Text, Length: 3},
				{Name: FieldCoordSys, Type: catalog.Text, Length: 9},
				{Name: FieldYear, Type: catalog.Short},
			},
		},
	}
}

func (v *Variant) Name() string { return Name }

func (v *Variant) Schema() catalog.Schema { return v.schema }

func (v *Variant) Accepts(path string) (model.SourceKind, bool) {
	kind, ok := variants.KindOf(path)
	if !ok || kind != model.Raster {
		return 0, false
	}
	return kind, true
}

func (v *Variant) Attributes(ctx context.Context, ext model.DatasetExtent) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(ext.SourcePath)

	dataType, err := v.resolver.Resolve(dir, pathmeta.DataType)
	if err != nil {
		return nil, err
	}
	coordSys, err := v.resolver.Resolve(dir, pathmeta.CoordinateSystem)
	if err != nil {
		return nil, err
	}
	yearSeg, err := v.resolver.Resolve(dir, pathmeta.Year)
	if err != nil {
		return nil, err
	}
	year, err := strconv.Atoi(yearSeg)
	if err != nil || year > math.MaxInt16 {
		return nil, fmt.Errorf("year segment %q in %q does not fit SHORT", yearSeg, dir)
	}

	v.logger.DebugContext(ctx, "path metadata resolved",
		"dir", dir, "datatype", dataType, "coordsys", coordSys, "year", year)

	return map[string]any{
		FieldFilePath: ext.SourcePath,
		FieldDataType: dataType,
		FieldCoordSys: coordSys,
		FieldYear:     year,
	}, nil
}
