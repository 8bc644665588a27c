package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

// FileOutcome is the validation result of one file.
type FileOutcome struct {
	Path   string
	Result domain.ValidationResult
}

// TypeProcessor validates the files of one content type directory. With more
// than one job files are validated concurrently, but they are always reported
// in listing order.
type TypeProcessor struct {
	reporter ports.Reporter
	jobs     int
}

func NewTypeProcessor(reporter ports.Reporter, jobs int) *TypeProcessor {
	if jobs <= 0 {
		jobs = 1
	}
	return &TypeProcessor{reporter: reporter, jobs: jobs}
}

// Process returns the per-file outcomes and whether any file had errors. A
// missing content type directory yields no outcomes and no error.
func (p *TypeProcessor) Process(ctx context.Context, catalog ports.SchemaCatalog, namespaceDir string, ct domain.ContentType) ([]FileOutcome, bool, error) {
	dir := filepath.Join(namespaceDir, filepath.FromSlash(ct.Path))
	info, err := os.Stat(dir)
	if err != nil {
		if absentDir(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("content type %s: %w", ct.Path, err)
	}
	if !info.IsDir() {
		return nil, false, nil
	}

	schema, err := catalog.Get(ct.Schema)
	if err != nil {
		return nil, false, fmt.Errorf("content type %s: %w", ct.Path, err)
	}

	files, err := ListFiles(dir, ct.Ext())
	if err != nil {
		return nil, false, err
	}

	outcomes := make([]FileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.jobs)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, filepath.FromSlash(rel))
			outcomes[i] = FileOutcome{Path: path, Result: ValidateFile(schema, path)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	foundErrors := false
	for _, o := range outcomes {
		if o.Result.Valid() {
			p.reporter.FileValid(o.Path)
			continue
		}
		foundErrors = true
		p.reporter.FileInvalid(o.Path, o.Result)
	}
	return outcomes, foundErrors, nil
}

// ListFiles returns the slash separated paths below dir, at any depth, whose
// name ends in "."+ext. The result is sorted.
func ListFiles(dir, ext string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*."+ext, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// absentDir reports whether a stat or read error means the directory is not
// there: the path does not exist or one of its parents is a regular file.
func absentDir(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
