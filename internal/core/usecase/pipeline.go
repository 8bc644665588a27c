package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

// Pipeline validates pack roots: it builds the collections, loads the schema
// catalog and walks every namespace below <root>/data.
type Pipeline struct {
	loader    ports.SchemaLoader
	processor *TypeProcessor
	renderer  *Renderer
	types     []domain.ContentType
	itemsPath string
	runs      ports.RunRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

type PipelineOption func(*Pipeline)

// WithItemsFile sets the word list used for the item collection. A missing
// file leaves the collection empty.
func WithItemsFile(path string) PipelineOption {
	return func(p *Pipeline) { p.itemsPath = path }
}

func WithContentTypes(types []domain.ContentType) PipelineOption {
	return func(p *Pipeline) { p.types = types }
}

func WithRunRepository(repo ports.RunRepository) PipelineOption {
	return func(p *Pipeline) { p.runs = repo }
}

func WithEventPublisher(publisher ports.EventPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = publisher }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(loader ports.SchemaLoader, processor *TypeProcessor, renderer *Renderer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:    loader,
		processor: processor,
		renderer:  renderer,
		types:     domain.ContentTypes(),
		itemsPath: "items.txt",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run validates one pack root. The returned error is reserved for
// configuration and I/O failures; invalid data only sets FoundErrors.
func (p *Pipeline) Run(ctx context.Context, root string) (domain.RunReport, error) {
	report := domain.RunReport{
		ID:        uuid.NewString(),
		Root:      root,
		StartedAt: p.now().UTC(),
	}

	collections, err := p.collections()
	if err != nil {
		return report, err
	}
	catalog, err := p.loader.Load(collections)
	if err != nil {
		return report, fmt.Errorf("load schemas: %w", err)
	}

	namespaces, err := listNamespaces(root)
	if err != nil {
		return report, err
	}

	for _, ns := range namespaces {
		report.Namespaces = append(report.Namespaces, ns)
		nsDir := filepath.Join(root, "data", ns)
		for _, ct := range p.types {
			outcomes, found, err := p.processor.Process(ctx, catalog, nsDir, ct)
			if err != nil {
				return report, err
			}
			report.FoundErrors = report.FoundErrors || found
			for _, o := range outcomes {
				report.Files = append(report.Files, p.fileResult(ns, ct, o))
			}
		}
	}

	report.FinishedAt = p.now().UTC()
	p.record(ctx, report)
	return report, nil
}

func (p *Pipeline) collections() (*domain.Collections, error) {
	collections := domain.NewCollections()
	for _, name := range domain.EmptyCollections {
		collections.Register(name, nil)
	}

	var items []string
	if p.itemsPath != "" {
		content, err := os.ReadFile(p.itemsPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read items: %w", err)
		default:
			items = domain.ParseWordList(string(content))
		}
	}
	collections.Register(domain.ItemCollection, items)
	return collections, nil
}

// listNamespaces returns the directories below <root>/data in name order,
// without the reserved namespace.
func listNamespaces(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, "data"))
	if err != nil {
		if absentDir(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == domain.ReservedNamespace {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (p *Pipeline) fileResult(ns string, ct domain.ContentType, o FileOutcome) domain.FileResult {
	res := domain.FileResult{Namespace: ns, ContentType: ct.Path, Path: o.Path}
	for _, e := range o.Result {
		res.Errors = append(res.Errors, p.renderer.Entry(e))
	}
	return res
}

// record stores and announces a finished run. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, report domain.RunReport) {
	if p.runs != nil {
		if err := p.runs.Save(ctx, report); err != nil {
			log.Printf("save run %s: %v", report.ID, err)
		}
	}
	if p.publisher != nil {
		s := report.Summary()
		event := domain.RunEvent{
			EventID:     uuid.NewString(),
			EventType:   domain.EventRunCompleted,
			RunID:       s.ID,
			Root:        s.Root,
			FileCount:   s.FileCount,
			FailedFiles: s.FailedFiles,
			ErrorCount:  s.ErrorCount,
			FoundErrors: s.FoundErrors,
			OccurredAt:  report.FinishedAt,
		}
		if err := p.publisher.Publish(ctx, event); err != nil {
			log.Printf("publish run %s: %v", report.ID, err)
		}
	}
}
