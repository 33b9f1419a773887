// Package extent computes the native-plane bounding box of a dataset file.
package extent

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/raster"
)

// Running min/max start from these so the first record always replaces them.
const (
	sentinelMin = 1e9
	sentinelMax = 0
)

// Placeholder is the box forced onto point clouds that could not be read cleanly.
var Placeholder = model.DatasetExtent{XMin: 0, XMax: 10, YMin: 0, YMax: 10}

// ParseIssue records why a point cloud ended up with the placeholder box.
// Line is 0 when the failure was not tied to a line (open or read error).
type ParseIssue struct {
	Line   int
	Reason string
}

func (p ParseIssue) String() string {
	if p.Line == 0 {
		return p.Reason
	}
	return fmt.Sprintf("line %d: %s", p.Line, p.Reason)
}

type Result struct {
	Extent model.DatasetExtent
	// Issue is set when the extent is the placeholder or was reset to it mid-file.
	Issue *ParseIssue
}

type Analyzer struct {
	rasters   raster.Reader
	delimiter string
	logger    *slog.Logger
}

type Option func(*Analyzer)

func WithDelimiter(d string) Option {
	return func(a *Analyzer) {
		if d != "" {
			a.delimiter = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAnalyzer(rasters raster.Reader, opts ...Option) *Analyzer {
	a := &Analyzer{
		rasters:   rasters,
		delimiter: " ",
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Compute returns the extent of path. Point clouds never fail: problems are
// reported through Result.Issue. Raster reader failures are returned as errors.
func (a *Analyzer) Compute(ctx context.Context, path string, kind model.SourceKind) (Result, error) {
	switch kind {
	case model.Raster:
		return a.raster(ctx, path)
	case model.PointCloud:
		return a.pointCloud(ctx, path), nil
	default:
		return Result{}, fmt.Errorf("compute extent %q: unknown source kind %s", path, kind)
	}
}

func (a *Analyzer) raster(ctx context.Context, path string) (Result, error) {
	if a.rasters == nil {
		return Result{}, fmt.Errorf("compute extent %q: no raster reader configured", path)
	}
	info, err := a.rasters.Read(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("read raster %q: %w", path, err)
	}
	return Result{Extent: model.DatasetExtent{
		XMin:             info.XMin,
		XMax:             info.XMax,
		YMin:             info.YMin,
		YMax:             info.YMax,
		SourcePath:       path,
		DisplayName:      filepath.Base(path),
		SpatialReference: info.SpatialReference,
		Kind:             model.Raster,
	}}, nil
}

func (a *Analyzer) pointCloud(ctx context.Context, path string) Result {
	ext := model.DatasetExtent{
		XMin: sentinelMin, YMin: sentinelMin,
		XMax: sentinelMax, YMax: sentinelMax,
	}
	var issue *ParseIssue

	fail := func(line int, reason string) Result {
		issue = &ParseIssue{Line: line, Reason: reason}
		a.logger.DebugContext(ctx, "point cloud unreadable, using placeholder extent", "path", path, "issue", issue.String())
		return a.finish(path, Placeholder, issue)
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the crawl
	if err != nil {
		return fail(0, err.Error())
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records int
	for n := 1; sc.Scan(); n++ {
		if n%4096 == 0 && ctx.Err() != nil {
			return fail(n, ctx.Err().Error())
		}

		tokens := a.split(sc.Text())
		if len(tokens) < 3 {
			// short line: reset and keep going, later records still widen the box
			ext.XMin, ext.XMax, ext.YMin, ext.YMax = Placeholder.XMin, Placeholder.XMax, Placeholder.YMin, Placeholder.YMax
			if issue == nil {
				issue = &ParseIssue{Line: n, Reason: fmt.Sprintf("%d tokens, want at least 3", len(tokens))}
			}
			continue
		}

		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(tokens[i], 64)
			if err != nil {
				return fail(n, fmt.Sprintf("parse %q: %v", tokens[i], err))
			}
			xyz[i] = v
		}
		// plain comparisons so a nan coordinate leaves the bounds untouched
		x, y := xyz[0], xyz[1]
		if x < ext.XMin {
			ext.XMin = x
		}
		if x > ext.XMax {
			ext.XMax = x
		}
		if y < ext.YMin {
			ext.YMin = y
		}
		if y > ext.YMax {
			ext.YMax = y
		}
		records++
	}
	if err := sc.Err(); err != nil {
		return fail(0, err.Error())
	}
	if records == 0 && issue == nil {
		return fail(0, "no coordinate records")
	}

	if issue != nil {
		a.logger.DebugContext(ctx, "point cloud extent reset by short line", "path", path, "issue", issue.String())
	}
	return a.finish(path, ext, issue)
}

func (a *Analyzer) finish(path string, box model.DatasetExtent, issue *ParseIssue) Result {
	return Result{
		Extent: model.DatasetExtent{
			XMin:             box.XMin,
			XMax:             box.XMax,
			YMin:             box.YMin,
			YMax:             box.YMax,
			SourcePath:       path,
			DisplayName:      filepath.Base(path),
			SpatialReference: model.UnknownSpatialReference,
			Kind:             model.PointCloud,
		},
		Issue: issue,
	}
}

func (a *Analyzer) split(line string) []string {
	if strings.TrimSpace(a.delimiter) == "" {
		return strings.Fields(line)
	}
	parts := strings.Split(strings.TrimSpace(line), a.delimiter)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
