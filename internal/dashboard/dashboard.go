// Package dashboard wires the shared business input to one page controller
// per analysis kind, and turns displayed results into PDF reports.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/cache"
	"github.com/kalambet/bizpulse/internal/chart"
	"github.com/kalambet/bizpulse/internal/export"
	"github.com/kalambet/bizpulse/internal/inputstore"
	"github.com/kalambet/bizpulse/internal/market"
	"github.com/kalambet/bizpulse/internal/page"
	"github.com/kalambet/bizpulse/internal/storage"
)

// ErrUnknownKind is returned for a kind name that is not registered.
var ErrUnknownKind = errors.New("unknown analysis kind")

// Store is the persisted key/value store. Implemented by storage.Store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	List(prefix string) ([]storage.Entry, error)
}

// Deps groups what the dashboard needs to build its pages.
type Deps struct {
	Store     Store
	Completer page.Completer
	Composer  page.Composer
	Exporter  export.Exporter
	Chart     chart.Rasterizer
	Logger    *slog.Logger
}

// Dashboard owns the input store and the page controllers.
type Dashboard struct {
	store  Store
	input  *inputstore.Store
	pages  map[string]*page.Controller
	report reportExporter
	logger *slog.Logger
	unsub  func()
}

// New builds a dashboard with one idle page per registered kind. Every page
// follows input changes made through SetInput.
func New(deps Deps) *Dashboard {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := cache.New(deps.Store)
	d := &Dashboard{
		store:  deps.Store,
		input:  inputstore.New(deps.Store),
		pages:  make(map[string]*page.Controller),
		report: reportExporter{pdf: deps.Exporter, chart: deps.Chart},
		logger: logger,
	}
	for _, k := range analysis.All() {
		d.pages[k.Name] = page.New(k, page.Deps{
			Composer:  deps.Composer,
			Completer: deps.Completer,
			Cache:     c,
			Logger:    logger,
		})
	}

	if text, err := d.input.Get(); err != nil {
		logger.Warn("loading business input", "error", err)
	} else {
		d.follow(text)
	}
	d.unsub = d.input.Subscribe(d.follow)
	return d
}

// Close stops following input changes.
func (d *Dashboard) Close() {
	d.unsub()
}

func (d *Dashboard) follow(text string) {
	for _, p := range d.pages {
		p.SetInput(text)
	}
}

// Input returns the stored business description.
func (d *Dashboard) Input() (string, error) {
	return d.input.Get()
}

// SetInput stores text as the business description shared by every page.
func (d *Dashboard) SetInput(text string) error {
	return d.input.Set(text)
}

func (d *Dashboard) page(kind string) (*page.Controller, error) {
	p, ok := d.pages[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return p, nil
}

// Page returns the current snapshot of kind without reacting to the input.
func (d *Dashboard) Page(kind string) (page.Snapshot, error) {
	p, err := d.page(kind)
	if err != nil {
		return page.Snapshot{}, err
	}
	return p.Snapshot(), nil
}

// Open mounts kind's page with the stored input. A cached result is shown
// as is; otherwise an analysis is requested unless one is in flight.
func (d *Dashboard) Open(ctx context.Context, kind string) (page.Snapshot, error) {
	p, err := d.page(kind)
	if err != nil {
		return page.Snapshot{}, err
	}
	text, err := d.input.Get()
	if err != nil {
		return page.Snapshot{}, err
	}
	return p.Mount(ctx, text), nil
}

// Submit explicitly requests the analysis of kind for the stored input.
func (d *Dashboard) Submit(ctx context.Context, kind string) (page.Snapshot, error) {
	p, err := d.page(kind)
	if err != nil {
		return page.Snapshot{}, err
	}
	return p.Submit(ctx), nil
}

// Export renders kind's displayed result. It returns the download file name
// with the PDF bytes.
func (d *Dashboard) Export(ctx context.Context, kind string) (string, []byte, error) {
	p, err := d.page(kind)
	if err != nil {
		return "", nil, err
	}
	b, err := p.Export(ctx, d.report)
	if err != nil {
		return "", nil, err
	}
	return p.Kind().FileName, b, nil
}

// AnalyzeAll opens every page concurrently and returns their snapshots in
// kind name order.
func (d *Dashboard) AnalyzeAll(ctx context.Context) ([]page.Snapshot, error) {
	kinds := analysis.Names()
	out := make([]page.Snapshot, len(kinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			s, err := d.Open(ctx, k)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Records lists stored analysis records whose key starts with prefix. The
// business input itself is never listed.
func (d *Dashboard) Records(prefix string) ([]storage.Entry, error) {
	entries, err := d.store.List(prefix)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if isRecordKey(e.Key) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Purge deletes every stored analysis record and returns how many were removed.
// The business input is kept.
func (d *Dashboard) Purge() (int, error) {
	entries, err := d.Records("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		err := d.store.Delete(e.Key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			return n, fmt.Errorf("deleting %q: %w", e.Key, err)
		}
		n++
	}
	d.logger.Info("purged analysis records", "count", n)
	return n, nil
}

func isRecordKey(key string) bool {
	for _, k := range analysis.All() {
		if strings.HasPrefix(key, cache.Key(k.Namespace, "")) {
			return true
		}
	}
	return false
}

// reportExporter builds a report for a displayed result. Kinds with a chart
// get their market figures rasterized onto a final page.
type reportExporter struct {
	pdf   export.Exporter
	chart chart.Rasterizer
}

func (r reportExporter) Export(_ context.Context, kind analysis.Kind, business, text string) ([]byte, error) {
	rep, err := r.report(kind, business, text)
	if err != nil {
		return nil, err
	}
	return r.pdf.Export(rep)
}

func (r reportExporter) report(kind analysis.Kind, business, text string) (export.Report, error) {
	body := text
	if strings.TrimSpace(body) == "" && kind.EmptyBody != "" {
		body = kind.EmptyBody
	}

	rep := export.Report{
		Title:       kind.Title,
		Business:    business,
		Body:        body,
		FooterLabel: kind.FooterLabel,
	}
	if kind.HasChart {
		img, err := r.chart.Render(market.Parse(text))
		if err != nil {
			return export.Report{}, &export.ExportError{Title: kind.Title, Err: err}
		}
		rep.Chart = &export.Image{PNG: img.PNG, Width: img.Width, Height: img.Height}
	}
	return rep, nil
}
