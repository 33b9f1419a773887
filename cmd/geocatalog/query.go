package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/index"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/rediscatalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	h3mapper "github.com/mohammed-shakir/geodata-catalog/internal/mapper/h3"
)

func newQueryCmd(f *rootFlags) *cobra.Command {
	var bboxArg, cell string
	var collection bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print catalog entries as GeoJSON features, filtered by LV03 bbox or H3 cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (bboxArg == "") == (cell == "") {
				return errors.New("exactly one of --bbox or --cell is required")
			}
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cells := h3mapper.New(nil)

			store, err := openStore(ctx, cfg, cells)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close() //nolint:errcheck

			schema, err := store.Schema(ctx)
			if err != nil {
				return err
			}

			var hits []model.Entry
			switch {
			case bboxArg != "":
				bb, err := parseBBox(bboxArg)
				if err != nil {
					return err
				}
				all, err := store.Entries(ctx)
				if err != nil {
					return err
				}
				hits = index.New(all).Search(bb)
			default:
				if rs, ok := store.(*rediscatalog.Store); ok {
					hits, err = rs.EntriesInCell(ctx, cell)
				} else {
					hits, err = entriesInCell(ctx, store, cells, cell, cfg.H3Res)
				}
				if err != nil {
					return err
				}
			}

			if collection {
				return catalog.WriteCollection(cmd.OutOrStdout(), hits, schema)
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, e := range hits {
				b, err := catalog.EncodeFeature(e, schema)
				if err != nil {
					return err
				}
				_, _ = w.Write(b)
				_ = w.WriteByte('\n')
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&bboxArg, "bbox", "", "LV03 box as xmin,ymin,xmax,ymax")
	cmd.Flags().StringVar(&cell, "cell", "", "H3 cell id at any resolution")
	cmd.Flags().BoolVar(&collection, "collection", false, "print one FeatureCollection instead of GeoJSON lines")
	return cmd
}

// entriesInCell scans a backend without a cell index and keeps entries
// sharing a cell with the query cell at the catalog resolution.
func entriesInCell(ctx context.Context, store catalog.Reader, m *h3mapper.Mapper, cell string, res int) ([]model.Entry, error) {
	want, err := m.AtResolution(cell, res)
	if err != nil {
		return nil, err
	}
	all, err := store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Entry
	for _, e := range all {
		if slices.ContainsFunc(e.Cells, func(c string) bool { return slices.Contains(want, c) }) {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseBBox(s string) (model.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.BBox{}, fmt.Errorf("bbox %q: want xmin,ymin,xmax,ymax", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	return model.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: model.CRSLV03}, nil
}
