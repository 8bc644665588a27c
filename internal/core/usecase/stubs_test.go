package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

// schemaStub reports one error per entry of the "bad" array in the document.
type schemaStub struct{}

func (schemaStub) Validate(data any) domain.ValidationResult {
	obj, ok := data.(map[string]any)
	if !ok {
		return domain.ValidationResult{domain.NewValidationError(data, domain.Path{}, "error.type", "object")}
	}
	bad, _ := obj["bad"].([]any)
	var out domain.ValidationResult
	for i := range bad {
		out = append(out, domain.NewValidationError(data, domain.Path{domain.Field("bad"), domain.Index(i)}, "error.bad", i))
	}
	return out
}

type catalogStub struct {
	schemas map[string]ports.Schema
}

func (c catalogStub) Get(name string) (ports.Schema, error) {
	s, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSchema, name)
	}
	return s, nil
}

// allSchemas maps every catalog schema name to schemaStub.
func allSchemas() catalogStub {
	c := catalogStub{schemas: map[string]ports.Schema{}}
	for _, ct := range domain.ContentTypes() {
		c.schemas[ct.Schema] = schemaStub{}
	}
	return c
}

type loaderStub struct {
	catalog     ports.SchemaCatalog
	err         error
	collections *domain.Collections
}

func (l *loaderStub) Load(collections *domain.Collections) (ports.SchemaCatalog, error) {
	l.collections = collections
	return l.catalog, l.err
}

type reportLine struct {
	path   string
	errors int
}

type reporterStub struct {
	mu    sync.Mutex
	lines []reportLine
}

func (r *reporterStub) FileValid(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, reportLine{path: path})
}

func (r *reporterStub) FileInvalid(path string, errs domain.ValidationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, reportLine{path: path, errors: errs.Count()})
}

type runRepoStub struct {
	saved   []domain.RunReport
	filters []domain.RunFilter
	saveErr error
}

func (r *runRepoStub) Save(_ context.Context, report domain.RunReport) error {
	r.saved = append(r.saved, report)
	return r.saveErr
}

func (r *runRepoStub) List(_ context.Context, filter domain.RunFilter) ([]domain.RunSummary, error) {
	r.filters = append(r.filters, filter)
	return nil, nil
}

func (r *runRepoStub) Get(_ context.Context, id string) (domain.RunReport, error) {
	for _, rep := range r.saved {
		if rep.ID == id {
			return rep, nil
		}
	}
	return domain.RunReport{}, domain.ErrNotFound
}

type publisherStub struct {
	errByID   map[string]error
	published []domain.RunEvent
}

func (p *publisherStub) Publish(_ context.Context, event domain.RunEvent) error {
	p.published = append(p.published, event)
	if err, ok := p.errByID[event.EventID]; ok {
		return err
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
