// Package index is an in-memory R-tree over catalog footprints for bbox queries.
package index

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

// rtreego rejects zero-length sides; degenerate boxes are padded by this much.
const epsilon = 1e-6

type item struct {
	entry model.Entry
	rect  rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect { return it.rect }

type Index struct {
	tree *rtreego.Rtree
	n    int
}

func New(entries []model.Entry) *Index {
	idx := &Index{tree: rtreego.NewTree(2, 25, 50)}
	for _, e := range entries {
		idx.Insert(e)
	}
	return idx
}

func (idx *Index) Insert(e model.Entry) {
	idx.tree.Insert(&item{entry: e, rect: rect(e.Footprint.Bounds())})
	idx.n++
}

func (idx *Index) Len() int { return idx.n }

// Search returns the entries whose footprint bounds intersect bb, ordered by
// source path. bb must be in the footprint system (LV03).
func (idx *Index) Search(bb model.BBox) []model.Entry {
	hits := idx.tree.SearchIntersect(rect(bb))
	out := make([]model.Entry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*item).entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	return out
}

func rect(bb model.BBox) rtreego.Rect {
	x1, x2 := min(bb.X1, bb.X2), max(bb.X1, bb.X2)
	y1, y2 := min(bb.Y1, bb.Y2), max(bb.Y1, bb.Y2)
	r, _ := rtreego.NewRect(rtreego.Point{x1, y1}, []float64{max(x2-x1, epsilon), max(y2-y1, epsilon)})
	return r
}
