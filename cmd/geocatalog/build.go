package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodata-catalog/internal/app/server"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/observability"
	"github.com/mohammed-shakir/geodata-catalog/internal/crawler"
	"github.com/mohammed-shakir/geodata-catalog/internal/events"
	"github.com/mohammed-shakir/geodata-catalog/internal/logger"
	"github.com/mohammed-shakir/geodata-catalog/internal/metrics"
	"github.com/mohammed-shakir/geodata-catalog/internal/variants"
	_ "github.com/mohammed-shakir/geodata-catalog/internal/variants/glacier"
	_ "github.com/mohammed-shakir/geodata-catalog/internal/variants/swisstopo"
)

func newBuildCmd(f *rootFlags) *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Crawl the dataset root and rebuild the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("serve") {
				cfg.Metrics.Enabled = serve
			}
			return runBuild(cmd.Context(), cmd, cfg)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "serve /healthz, /readyz, /metrics and /status while crawling (METRICS_ENABLED)")
	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	log := newLogger(cfg, "build", os.Stderr)
	ctx = logger.WithRunID(ctx, "")

	variant, err := variants.New(cfg.Variant, cfg, log)
	if err != nil {
		return err
	}
	observability.SetVariant(variant.Name())

	var prov *metrics.Provider
	if cfg.Metrics.Enabled {
		prov = metrics.Init(metrics.Config{
			Build:   metrics.BuildInfo{Version: Version},
			Runtime: true,
		})
		observability.Init(prov.Registerer(), true)
	} else {
		observability.Init(nil, false)
	}

	p := newPipeline(cfg, log)
	store, err := openStore(ctx, cfg, p.cells)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.ErrorContext(ctx, "close catalog", "err", err)
		}
	}()

	deps := crawler.Deps{
		Variant:    variant,
		Extents:    p.extents,
		Footprints: p.footprints,
		Cells:      p.cells,
		Writer:     store,
		Logger:     log,
	}
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Brokers(), cfg.Events.Topic, cfg.Catalog.Name, variant.Name())
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.WarnContext(ctx, "close event publisher", "err", err)
			}
		}()
		deps.Publisher = pub
	}

	c, err := crawler.New(cfg.RootDir, cfg.H3Res, deps)
	if err != nil {
		return err
	}

	if prov != nil {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		h := server.NewRouter(log, cfg.Metrics.Path, prov.Handler(), c.Status())
		go func() {
			if err := server.Run(srvCtx, cfg.Metrics.Addr, h, log); err != nil {
				log.ErrorContext(ctx, "status server exited", "err", err)
			}
		}()
	}

	log.InfoContext(ctx, "building catalog",
		"root", cfg.RootDir,
		"driver", cfg.Catalog.Driver,
		"catalog", cfg.Catalog.Name,
		"h3_res", cfg.H3Res,
		"version", Version,
	)
	sum, err := c.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
