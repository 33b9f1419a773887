package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/logger"
)

type rootFlags struct {
	configPath string
	root       string
	variant    string
	driver     string
	h3Res      int
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:           "geocatalog",
		Short:         "Build and query footprint catalogs of survey datasets",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", os.Getenv("CATALOG_CONFIG"), "YAML config file")
	pf.StringVar(&f.root, "root", "", "dataset root directory (ROOT_DIR)")
	pf.StringVar(&f.variant, "variant", "", "catalog variant: glacier|swisstopo (VARIANT)")
	pf.StringVar(&f.driver, "driver", "", "catalog backend: geojson|redis|postgis (CATALOG_DRIVER)")
	pf.IntVar(&f.h3Res, "h3-res", -1, "H3 resolution of the cell index (H3_RES)")

	cmd.AddCommand(
		newBuildCmd(&f),
		newDecodeCmd(),
		newExtentCmd(&f),
		newQueryCmd(&f),
	)
	return cmd
}

// loadConfig layers the YAML file, the environment and finally any flags
// set on the command line.
func loadConfig(cmd *cobra.Command, f *rootFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.RootDir = f.root
	}
	if flags.Changed("variant") {
		cfg.Variant = strings.ToLower(f.variant)
	}
	if flags.Changed("driver") {
		cfg.Catalog.Driver = strings.ToLower(f.driver)
	}
	if flags.Changed("h3-res") {
		cfg.H3Res = f.h3Res
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Variant:   cfg.Variant,
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}
