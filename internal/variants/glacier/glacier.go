// Package glacier is the glaciology survey variant: metadata comes from the
// file name and only selected product codes are catalogued.
package glacier

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/config"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/decode/namemeta"
	"github.com/mohammed-shakir/geodata-catalog/internal/variants"
)

const Name = "glacier"

const (
	FieldGlacier    = "Glacier"
	FieldDataType   = "DataType"
	FieldMeasDate   = "MeasDate"
	FieldYear       = "Year"
	FieldHoriCoord  = "HoriCoord"
	FieldVertiCoord = "VertiCoord"
	FieldFilePath   = "FilePath"
)

type Variant struct {
	logger   *slog.Logger
	schema   catalog.Schema
	products map[string]struct{}
}

func init() {
	variants.Register(Name, func(cfg config.Config, logger *slog.Logger) (variants.Variant, error) {
		return New(cfg.Catalog.Name, cfg.Products, logger), nil
	})
}

func New(catalogName string, products []string, logger *slog.Logger) *Variant {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(products))
	for _, p := range products {
		set[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}
	return &Variant{
		logger:   logger,
		products: set,
		schema: catalog.Schema{
			Name: catalogName,
			Fields: []catalog.Field{
				{Name: FieldGlacier, Type: catalog.Text, Length: 100},
				{Name: FieldDataType, Type: catalog.Text, Length: 10},
				{Name: FieldMeasDate, Type: catalog.Date},
				{Name: FieldYear, Type: catalog.Short},
				{Name: FieldHoriCoord, Type: catalog.Text, Length: 5},
				{Name: FieldVertiCoord, Type: catalog.Text, Length: 5},
				{Name: FieldFilePath, Type: catalog.Text, Length: 500},
			},
		},
	}
}

func (v *Variant) Name() string { return Name }

func (v *Variant) Schema() catalog.Schema { return v.schema }

func (v *Variant) Accepts(path string) (model.SourceKind, bool) {
	return variants.KindOf(path)
}

func (v *Variant) Attributes(ctx context.Context, ext model.DatasetExtent) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := ext.DisplayName
	if name == "" {
		name = filepath.Base(ext.SourcePath)
	}

	res, err := namemeta.Decode(name)
	if err != nil {
		return nil, err
	}
	md := res.Metadata
	if res.DateFallback {
		v.logger.DebugContext(ctx, "acquisition date fell back to year",
			"file", name, "date", md.AcquisitionDate.Format("2006-01-02"), "err", res.DateErr)
	}

	if _, ok := v.products[md.Product]; !ok {
		return nil, fmt.Errorf("%w: product %q", variants.ErrFiltered, md.Product)
	}

	return map[string]any{
		FieldGlacier:    md.Glacier,
		FieldDataType:   md.Product,
		FieldMeasDate:   md.AcquisitionDate,
		FieldYear:       md.Year,
		FieldHoriCoord:  md.HorizontalCRS,
		FieldVertiCoord: md.VerticalCRS,
		FieldFilePath:   ext.SourcePath,
	}, nil
}
