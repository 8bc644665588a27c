package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/packlint/internal/adapters/console"
	"github.com/atvirokodosprendimai/packlint/internal/app"
	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

const (
	exitFoundErrors = 1
	exitFailure     = 2
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cmd := newCommand()
	if err := cmd.Run(context.Background(), dropUnknownFlags(cmd, os.Args)); err != nil {
		if errors.Is(err, app.ErrValidationFailed) {
			os.Exit(exitFoundErrors)
		}
		log.Print(err)
		os.Exit(exitFailure)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "packlint",
		Usage:     "Validate data pack files against the content type schemas",
		ArgsUsage: "[pack-root...]",
		Description: "Each argument is a pack root containing a data directory; the default is\n" +
			"\"" + app.DefaultRoot + "\". Unknown options are ignored. A pack root named like a\n" +
			"subcommand (runs, serve) selects that subcommand when it comes first; write it\n" +
			"as ./runs to validate it instead.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Sources: cli.EnvVars("PACKLINT_VERBOSE"),
				Usage:   "Show offending values and paths for every error",
			},
			&cli.StringFlag{
				Name:    "items",
				Value:   "items.txt",
				Sources: cli.EnvVars("PACKLINT_ITEMS"),
				Usage:   "Item id list, one per line; missing file disables item checks",
			},
			&cli.StringFlag{
				Name:    "locale",
				Sources: cli.EnvVars("PACKLINT_LOCALE"),
				Usage:   "Message template file (.json, .yaml); defaults to built-in English",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Value:   1,
				Sources: cli.EnvVars("PACKLINT_JOBS"),
				Usage:   "Files validated in parallel per content type",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Sources: cli.EnvVars("PACKLINT_NO_COLOR"),
				Usage:   "Disable colored output",
			},
			&cli.StringFlag{
				Name:    "report-db",
				Sources: cli.EnvVars("PACKLINT_REPORT_DB"),
				Usage:   "SQLite file that stores run reports",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("PACKLINT_WEBHOOK_URL"),
				Usage:   "Endpoint notified with a run.completed event after each pack root",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("PACKLINT_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for webhook requests",
			},
		},
		Action: validate,
		Commands: []*cli.Command{
			{
				Name:  "runs",
				Usage: "List stored validation runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of runs"},
					&cli.StringFlag{Name: "root", Usage: "Only runs of this pack root"},
				},
				Action: listRuns,
			},
			{
				Name:  "serve",
				Usage: "Serve stored validation runs over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   ":8080",
						Sources: cli.EnvVars("PACKLINT_ADDR"),
						Usage:   "HTTP listen address",
					},
					&cli.DurationFlag{
						Name:    "retry-interval",
						Value:   30 * time.Second,
						Sources: cli.EnvVars("PACKLINT_RETRY_INTERVAL"),
						Usage:   "How often undelivered run events are retried",
					},
				},
				Action: serve,
			},
		},
	}
}

// dropUnknownFlags removes dash-prefixed arguments that name no flag of cmd or
// of the subcommand being run, so a stray option never stops validation.
// Everything after "--" is passed through.
func dropUnknownFlags(cmd *cli.Command, args []string) []string {
	if len(args) == 0 {
		return args
	}
	known := flagArity(cmd.Flags)
	out := []string{args[0]}
	positional := 0
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			if positional == 0 {
				if sub := cmd.Command(arg); sub != nil {
					maps.Copy(known, flagArity(sub.Flags))
				}
			}
			positional++
			out = append(out, arg)
			continue
		}

		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		takesValue, ok := known[name]
		if !ok {
			continue
		}
		out = append(out, arg)
		if takesValue && !hasValue && i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// flagArity maps every flag name and alias to whether the flag takes a value.
func flagArity(flags []cli.Flag) map[string]bool {
	m := map[string]bool{"help": false, "h": false}
	for _, f := range flags {
		takesValue := false
		if df, ok := f.(cli.DocGenerationFlag); ok {
			takesValue = df.TakesValue()
		}
		for _, name := range f.Names() {
			m[name] = takesValue
		}
	}
	return m
}

func validate(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := app.Config{
		Verbose:       c.Bool("verbose"),
		Color:         !c.Bool("no-color") && console.ColorSupported(os.Stdout),
		ItemsPath:     c.String("items"),
		LocalePath:    c.String("locale"),
		Jobs:          c.Int("jobs"),
		ReportDBPath:  c.String("report-db"),
		WebhookURL:    c.String("webhook-url"),
		WebhookSecret: c.String("webhook-secret"),
	}

	pipeline, closer, err := app.NewPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Printf("close resources: %v", closeErr)
		}
	}()

	return app.Validate(ctx, pipeline, app.PackRoots(c.Args().Slice()))
}

func listRuns(ctx context.Context, c *cli.Command) error {
	runService, closer, err := app.NewRunService(ctx, c.String("report-db"))
	if err != nil {
		return err
	}
	defer closer.Close()

	runs, err := runService.List(ctx, domain.RunFilter{Root: c.String("root"), Limit: c.Int("limit")})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROOT\tSTARTED\tFILES\tFAILED\tERRORS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.Root, r.StartedAt.Local().Format(time.DateTime), r.FileCount, r.FailedFiles, r.ErrorCount)
	}
	return w.Flush()
}

func serve(ctx context.Context, c *cli.Command) error {
	server, closer, err := app.NewServer(ctx, app.ServerConfig{
		Addr:          c.String("addr"),
		ReportDBPath:  c.String("report-db"),
		WebhookURL:    c.String("webhook-url"),
		WebhookSecret: c.String("webhook-secret"),
		RetryInterval: c.Duration("retry-interval"),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Printf("close resources: %v", closeErr)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		log.Printf("received signal %s", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
