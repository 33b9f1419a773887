// Package crawler walks a dataset tree and writes one catalog entry per
// accepted file. Failures are per file: they are logged, counted and the
// walk moves on.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/catalog/keys"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/observability"
	"github.com/mohammed-shakir/geodata-catalog/internal/extent"
	mylog "github.com/mohammed-shakir/geodata-catalog/internal/logger"
	"github.com/mohammed-shakir/geodata-catalog/internal/mapper"
	"github.com/mohammed-shakir/geodata-catalog/internal/variants"
)

type ExtentComputer interface {
	Compute(ctx context.Context, path string, kind model.SourceKind) (extent.Result, error)
}

type FootprintBuilder interface {
	Build(ext model.DatasetExtent) (model.Footprint, error)
}

type Publisher interface {
	Publish(ctx context.Context, e model.Entry) error
}

// Deps are the collaborators of a run. Cells and Publisher are optional.
type Deps struct {
	Variant    variants.Variant
	Extents    ExtentComputer
	Footprints FootprintBuilder
	Cells      mapper.Interface
	Writer     catalog.Writer
	Publisher  Publisher
	Logger     *slog.Logger
}

type Crawler struct {
	root   string
	res    int
	d      Deps
	logger *slog.Logger
	status *Status
	seen   map[string]struct{}
}

type candidate struct {
	path string
	kind model.SourceKind
}

func New(root string, res int, d Deps) (*Crawler, error) {
	switch {
	case d.Variant == nil:
		return nil, errors.New("crawler: variant is required")
	case d.Extents == nil:
		return nil, errors.New("crawler: extent computer is required")
	case d.Footprints == nil:
		return nil, errors.New("crawler: footprint builder is required")
	case d.Writer == nil:
		return nil, errors.New("crawler: catalog writer is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Crawler{
		root:   root,
		res:    res,
		d:      d,
		logger: logger,
		status: newStatus(d.Variant.Name(), root),
		seen:   map[string]struct{}{},
	}, nil
}

func (c *Crawler) Status() *Status { return c.status }

// Run resets the catalog to the variant schema and processes every candidate
// under the root in lexical order. The returned error is only set for setup
// failures and cancellation; per-file failures end up in the Summary.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	ctx = mylog.WithComponent(ctx, "crawler")
	c.status.update(func(s *Snapshot) {
		s.Phase = PhaseCrawling
		s.Started = start
	})

	finish := func(phase string) Summary {
		var sum Summary
		c.status.update(func(s *Snapshot) {
			s.Phase = phase
			s.Current = ""
			s.Summary.Elapsed = time.Since(start)
			sum = s.Summary
		})
		observability.ObserveCrawl(sum.Elapsed.Seconds())
		return sum
	}

	if err := c.d.Writer.Reset(ctx, c.d.Variant.Schema()); err != nil {
		finish(PhaseAborted)
		return Summary{}, fmt.Errorf("reset catalog: %w", err)
	}

	cands, err := c.candidates(ctx)
	if err != nil {
		sum := finish(PhaseAborted)
		return sum, err
	}
	c.logger.InfoContext(ctx, "crawl started", "root", c.root, "candidates", len(cands))

	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			sum := finish(PhaseAborted)
			c.logger.WarnContext(ctx, "crawl interrupted", "written", sum.Written, "err", err)
			return sum, err
		}
		c.status.update(func(s *Snapshot) {
			s.Current = cand.path
			s.Summary.Seen++
		})
		outcome := c.process(mylog.WithFile(ctx, cand.path), cand)
		observability.ObserveFile(cand.kind.String(), outcome)
		c.status.update(func(s *Snapshot) {
			switch outcome {
			case observability.OutcomeWritten:
				s.Summary.Written++
			case observability.OutcomeFiltered:
				s.Summary.Filtered++
			case observability.OutcomeDuplicate:
				s.Summary.Duplicates++
			default:
				s.Summary.Failed++
			}
		})
	}

	sum := finish(PhaseDone)
	c.logger.InfoContext(ctx, "crawl finished",
		"seen", sum.Seen,
		"written", sum.Written,
		"filtered", sum.Filtered,
		"duplicates", sum.Duplicates,
		"failed", sum.Failed,
		"placeholder_extents", sum.Placeholders,
		"elapsed", sum.Elapsed,
	)
	return sum, nil
}

func (c *Crawler) candidates(ctx context.Context) ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return err
			}
			c.logger.WarnContext(ctx, "skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if kind, ok := c.d.Variant.Accepts(path); ok {
			out = append(out, candidate{path: path, kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", c.root, err)
	}
	return out, nil
}

// process runs extent, footprint, attributes and cells for one file and
// appends exactly one entry when all of them succeed.
func (c *Crawler) process(ctx context.Context, cand candidate) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "file processing panicked", "kind", cand.kind.String(), "panic", fmt.Sprint(r))
			outcome = observability.OutcomeFailed
		}
	}()

	id := keys.EntryID(cand.path)
	if _, dup := c.seen[id]; dup {
		c.logger.DebugContext(ctx, "file already catalogued", "id", id)
		return observability.OutcomeDuplicate
	}

	res, err := c.d.Extents.Compute(ctx, cand.path, cand.kind)
	if err != nil {
		c.logger.ErrorContext(ctx, "extent failed", "kind", cand.kind.String(), "err", err)
		return observability.OutcomeFailed
	}
	ext := res.Extent
	if res.Issue != nil {
		observability.IncPlaceholderExtent()
		c.status.update(func(s *Snapshot) { s.Summary.Placeholders++ })
		c.logger.WarnContext(ctx, "placeholder extent", "issue", res.Issue.String())
	}
	c.logger.DebugContext(ctx, "dataset extent",
		"kind", cand.kind.String(),
		"xmin", ext.XMin, "ymin", ext.YMin,
		"xmax", ext.XMax, "ymax", ext.YMax,
		"spatial_reference", ext.SpatialReference,
	)

	fp, err := c.d.Footprints.Build(ext)
	if err != nil {
		c.logger.ErrorContext(ctx, "footprint failed", "err", err)
		return observability.OutcomeFailed
	}

	attrs, err := c.d.Variant.Attributes(ctx, ext)
	if errors.Is(err, variants.ErrFiltered) {
		c.logger.DebugContext(ctx, "file skipped", "reason", err.Error())
		return observability.OutcomeFiltered
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "metadata failed", "err", err)
		return observability.OutcomeFailed
	}

	entry := model.Entry{
		ID:         id,
		SourcePath: cand.path,
		Footprint:  fp,
		Attributes: attrs,
	}
	if c.d.Cells != nil {
		cells, err := c.d.Cells.CellsForFootprint(fp, c.res)
		if err != nil {
			c.logger.WarnContext(ctx, "h3 cells unavailable, writing entry without them", "err", err)
		} else {
			entry.Cells = cells
		}
	}

	if err := c.d.Writer.Append(ctx, entry); err != nil {
		c.logger.ErrorContext(ctx, "append failed", "id", id, "err", err)
		return observability.OutcomeFailed
	}
	c.seen[id] = struct{}{}

	if c.d.Publisher != nil {
		if err := c.d.Publisher.Publish(ctx, entry); err != nil {
			c.logger.WarnContext(ctx, "entry event not published", "id", id, "err", err)
		}
	}
	return observability.OutcomeWritten
}
