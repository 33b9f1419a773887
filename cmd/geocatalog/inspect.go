package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodata-catalog/internal/decode/namemeta"
	"github.com/mohammed-shakir/geodata-catalog/internal/decode/pathmeta"
	"github.com/mohammed-shakir/geodata-catalog/internal/footprint"
	"github.com/mohammed-shakir/geodata-catalog/internal/variants"
)

func newDecodeCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "decode NAME...",
		Short: "Print the metadata encoded in file names, or in directories with --field",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush() //nolint:errcheck

			if len(fields) > 0 {
				return decodePaths(tw, args, fields)
			}
			fmt.Fprintln(tw, "FILE\tGLACIER\tDATE\tYEAR\tPRODUCT\tHORIZ\tVERT\tNOTE")
			var failed int
			for _, a := range args {
				name := filepath.Base(a)
				res, err := namemeta.Decode(name)
				if err != nil {
					failed++
					fmt.Fprintf(tw, "%s\t\t\t\t\t\t\t%v\n", name, err)
					continue
				}
				md := res.Metadata
				note := ""
				if res.DateFallback {
					note = "date from year only"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					name, md.Glacier, md.AcquisitionDate.Format("2006-01-02"), md.Year,
					md.Product, md.HorizontalCRS, md.VerticalCRS, note)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d names could not be decoded", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "field", nil, "resolve path fields instead: DATATYPE, YEAR, COORDINATESYSTEM")
	return cmd
}

func decodePaths(tw *tabwriter.Writer, dirs, names []string) error {
	fields := make([]pathmeta.Field, 0, len(names))
	for _, n := range names {
		f, err := pathmeta.ParseField(n)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	fmt.Fprintln(tw, "PATH\tFIELD\tVALUE")
	var missing int
	for _, d := range dirs {
		for _, f := range fields {
			v, err := pathmeta.Resolve(d, f)
			if errors.Is(err, pathmeta.ErrNotFound) {
				missing++
				v = "-"
			} else if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d, f, v)
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d field lookups found no matching segment", missing)
	}
	return nil
}

type extentReport struct {
	Path             string      `json:"path"`
	Kind             string      `json:"kind"`
	SpatialReference string      `json:"spatial_reference"`
	Extent           [4]float64  `json:"extent"`
	Issue            string      `json:"issue,omitempty"`
	SourceCRS        string      `json:"source_crs"`
	Footprint        [][]float64 `json:"footprint"`
	Cells            []string    `json:"h3,omitempty"`
}

func newExtentCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "extent FILE",
		Short: "Print extent, LV03 footprint and H3 cells of one dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "extent", cmd.ErrOrStderr())
			path := args[0]
			kind, ok := variants.KindOf(path)
			if !ok {
				return fmt.Errorf("%s: not a raster (.tif, .asc) or point cloud (.xyz*)", path)
			}

			p := newPipeline(cfg, log)
			res, err := p.extents.Compute(cmd.Context(), path, kind)
			if err != nil {
				return err
			}
			ext := res.Extent
			fp, err := p.footprints.Build(ext)
			if err != nil {
				return err
			}
			cells, err := p.cells.CellsForFootprint(fp, cfg.H3Res)
			if err != nil {
				log.Warn("h3 cells unavailable", "err", err)
			}

			rep := extentReport{
				Path:             path,
				Kind:             kind.String(),
				SpatialReference: ext.SpatialReference,
				Extent:           [4]float64{ext.XMin, ext.YMin, ext.XMax, ext.YMax},
				SourceCRS:        footprint.SourceCRS(ext),
				Footprint:        fp.Coordinates()[0],
				Cells:            cells,
			}
			if res.Issue != nil {
				rep.Issue = res.Issue.String()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}
