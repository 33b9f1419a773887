package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/geojsonseq"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/postgis"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/rediscatalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/redisstore"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/extent"
	"github.com/mohammed-shakir/geodata-catalog/internal/footprint"
	"github.com/mohammed-shakir/geodata-catalog/internal/geo/swissgrid"
	h3mapper "github.com/mohammed-shakir/geodata-catalog/internal/mapper/h3"
	"github.com/mohammed-shakir/geodata-catalog/internal/raster"
)

type pipeline struct {
	extents    *extent.Analyzer
	footprints *footprint.Builder
	cells      *h3mapper.Mapper
}

func newPipeline(cfg config.Config, logger *slog.Logger) pipeline {
	var opts []raster.Option
	if cfg.GDALInfoBin != "" {
		opts = append(opts, raster.WithFallback(raster.NewGDALInfoReader(cfg.GDALInfoBin)))
	}
	proj := swissgrid.New()
	return pipeline{
		extents: extent.NewAnalyzer(
			raster.NewDispatcher(logger, opts...),
			extent.WithDelimiter(cfg.Delimiter),
			extent.WithLogger(logger),
		),
		footprints: footprint.NewBuilder(proj),
		cells:      h3mapper.New(proj),
	}
}

// openStore connects the configured backend. The caller closes it.
func openStore(ctx context.Context, cfg config.Config, cells rediscatalog.CellResolver) (catalog.Store, error) {
	switch cfg.Catalog.Driver {
	case config.DriverGeoJSON:
		return geojsonseq.New(cfg.Catalog.Dir, cfg.Catalog.Name), nil
	case config.DriverRedis:
		t := cfg.Catalog.OpTimeout
		cli, err := redisstore.New(ctx, cfg.Catalog.RedisAddr,
			redisstore.WithDialTimeout(t),
			redisstore.WithReadTimeout(t),
			redisstore.WithWriteTimeout(t),
		)
		if err != nil {
			return nil, err
		}
		return rediscatalog.New(cli, cfg.Catalog.Name, cfg.H3Res, cells), nil
	case config.DriverPostGIS:
		st, err := postgis.Open(ctx, cfg.Catalog.PostgresDSN, cfg.Catalog.Name)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
}
