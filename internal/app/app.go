package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/adapters/console"
	"github.com/atvirokodosprendimai/packlint/internal/adapters/events"
	"github.com/atvirokodosprendimai/packlint/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/packlint/internal/adapters/locale"
	"github.com/atvirokodosprendimai/packlint/internal/adapters/schema"
	sqliteadapter "github.com/atvirokodosprendimai/packlint/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/packlint/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/packlint/internal/core/usecase"
	"github.com/atvirokodosprendimai/packlint/migrations"
)

const DefaultRoot = "datapacks/yukkuricraft"

// ErrValidationFailed is returned when at least one pack root had errors.
var ErrValidationFailed = errors.New("validation found errors")

type Config struct {
	Verbose       bool
	Color         bool
	ItemsPath     string
	LocalePath    string
	Jobs          int
	ReportDBPath  string
	WebhookURL    string
	WebhookSecret string
	Stdout        io.Writer
	Stderr        io.Writer
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewPipeline wires the validation pipeline. The closer releases the report
// store when one is configured.
func NewPipeline(ctx context.Context, cfg Config) (*usecase.Pipeline, io.Closer, error) {
	loc, err := locale.Load(cfg.LocalePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load locale: %w", err)
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	renderer := usecase.NewRenderer(loc, cfg.Verbose)
	reporter := console.NewReporter(cfg.Stdout, cfg.Stderr, renderer, cfg.Color)
	processor := usecase.NewTypeProcessor(reporter, cfg.Jobs)

	opts := []usecase.PipelineOption{usecase.WithItemsFile(cfg.ItemsPath)}
	var closers []io.Closer

	var db *gormsqlite.DB
	if cfg.ReportDBPath != "" {
		db, err = openStore(ctx, cfg.ReportDBPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, usecase.WithRunRepository(sqliteadapter.NewRunRepository(db)))
		closers = append(closers, db)
	}

	switch {
	case cfg.WebhookURL != "" && db != nil:
		webhook := events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
		dispatcher := usecase.NewOutboxDispatcher(sqliteadapter.NewOutboxRepository(db), webhook, 0, 0)
		opts = append(opts, usecase.WithEventPublisher(dispatcher))
	case cfg.WebhookURL != "":
		opts = append(opts, usecase.WithEventPublisher(events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)))
	case cfg.Verbose:
		opts = append(opts, usecase.WithEventPublisher(events.NewLogPublisher()))
	}

	pipeline := usecase.NewPipeline(schema.NewLoader(), processor, renderer, opts...)
	return pipeline, resourceCloser{closers: closers}, nil
}

// Validate runs p over every root. It returns ErrValidationFailed when any
// root had errors, after all roots were processed.
func Validate(ctx context.Context, p *usecase.Pipeline, roots []string) error {
	foundErrors := false
	for _, root := range roots {
		report, err := p.Run(ctx, root)
		if err != nil {
			return fmt.Errorf("validate %s: %w", root, err)
		}
		foundErrors = foundErrors || report.FoundErrors
	}
	if foundErrors {
		return ErrValidationFailed
	}
	return nil
}

// PackRoots drops flag-like arguments and falls back to DefaultRoot.
func PackRoots(args []string) []string {
	var roots []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		roots = append(roots, arg)
	}
	if len(roots) == 0 {
		return []string{DefaultRoot}
	}
	return roots
}

// NewRunService opens the report store for read access by the runs and
// serve commands.
func NewRunService(ctx context.Context, dbPath string) (*usecase.RunService, io.Closer, error) {
	if dbPath == "" {
		return nil, nil, errors.New("report database path is required")
	}
	db, err := openStore(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewRunService(sqliteadapter.NewRunRepository(db)), db, nil
}

type ServerConfig struct {
	Addr          string
	ReportDBPath  string
	WebhookURL    string
	WebhookSecret string
	// RetryInterval is how often undelivered run events are retried.
	RetryInterval time.Duration
}

// NewServer serves stored runs. With a webhook configured it also retries
// run events that earlier validations could not deliver.
func NewServer(ctx context.Context, cfg ServerConfig) (*http.Server, io.Closer, error) {
	if cfg.ReportDBPath == "" {
		return nil, nil, errors.New("report database path is required")
	}
	db, err := openStore(ctx, cfg.ReportDBPath)
	if err != nil {
		return nil, nil, err
	}
	runService := usecase.NewRunService(sqliteadapter.NewRunRepository(db))

	closers := []io.Closer{db}
	if cfg.WebhookURL != "" {
		webhook := events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
		dispatcher := usecase.NewOutboxDispatcher(sqliteadapter.NewOutboxRepository(db), webhook, cfg.RetryInterval, 0)
		dispatcher.Start(context.WithoutCancel(ctx))
		closers = []io.Closer{dispatcher, db}
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewHandler(runService).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server, resourceCloser{closers: closers}, nil
}

func openStore(ctx context.Context, path string) (*gormsqlite.DB, error) {
	db, err := gormsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
