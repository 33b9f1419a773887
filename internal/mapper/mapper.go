// Package mapper converts catalog footprints into H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

type Interface interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellsForFootprint(fp model.Footprint, res int) (model.Cells, error)
}
