package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/cli/config"
	"github.com/siglatools/sigla/internal/cli/ui"
	"github.com/siglatools/sigla/internal/loader"
	"github.com/siglatools/sigla/internal/loadlock"
	"github.com/siglatools/sigla/internal/logging"
	"github.com/siglatools/sigla/internal/sheet"
	"github.com/siglatools/sigla/internal/storage"
)

var (
	loadCleanFlag bool
	loadLockFlag  bool
)

// NewLoadCommand creates the load command
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load FILE...",
		Short: "Load sheet payload files into the document store",
		Long: `Load one or more JSON files of normalized sheet payloads.

Each file holds a single payload object or an array of payloads. Payloads are
loaded in order. A payload whose content cannot be loaded (unknown format,
unresolvable variable reference, malformed row) is reported and skipped; a
store failure stops the batch.

Formats:
  standard_institution, institution_by_rows,
  institution_and_composite_variable, composite_variable,
  multiple_sigla_answer_variable`,
		Example: `  # Load two files into the configured store
  sigla load executive.json judiciary.json

  # Wipe every collection first
  sigla load --clean sheets/*.json

  # Hold the Redis load lock for the whole batch
  sigla load --lock --database-url postgresql://localhost/sigla sheets/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLoad,
	}

	cmd.Flags().BoolVar(&loadCleanFlag, "clean", false, "Delete every document before loading")
	cmd.Flags().BoolVar(&loadLockFlag, "lock", false, "Hold the Redis load lock (lock.redis_url) while loading")

	return cmd
}

// payloadFile is one input file and the payloads decoded from it
type payloadFile struct {
	path     string
	payloads []*sheet.Payload
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := newPrinter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		out.Failure("Invalid configuration")
		return err
	}

	// Read every file before touching the store
	files := make([]payloadFile, 0, len(args))
	total := 0
	for _, path := range args {
		payloads, err := sheet.ReadFile(path)
		if err != nil {
			out.Failure("Cannot read %s", path)
			return err
		}
		files = append(files, payloadFile{path: path, payloads: payloads})
		total += len(payloads)
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	l := loader.New(loader.Config{DatabaseURL: cfg.Database.URL}, loader.WithLogger(logger))
	defer l.Close()

	var held *heldLock
	if loadLockFlag {
		held, err = acquireLoadLock(ctx, cfg.Lock)
		if err != nil {
			if errors.Is(err, loadlock.ErrLocked) {
				out.Failure("Another load holds %s", cfg.Lock.Key)
			}
			return err
		}
		defer held.release(logger)
	}

	if loadCleanFlag {
		deleted, err := l.CleanUp(ctx)
		if err != nil {
			out.Failure("Clean-up of %s failed", storage.Redact(cfg.Database.URL))
			return err
		}
		out.Info("Deleted %d old documents from %d collections", sumDeleted(deleted), len(deleted))
	}

	summary := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "FILE", "SHEET", "FORMAT", "CREATED", "MATCHED", "STATUS")
	failed := 0
	for _, f := range files {
		for _, p := range f.payloads {
			report, err := l.Load(ctx, p)
			if err != nil {
				failed++
				if !loader.IsDataError(err) {
					out.Failure("%s: %s", f.path, p.SheetTitle)
					summary.AddRow(f.path, p.SheetTitle, p.Format(), "-", "-", "aborted")
					summary.Render()
					return fmt.Errorf("load aborted: %w", err)
				}
				reportDataError(out, p, err)
				summary.AddRow(f.path, p.SheetTitle, p.Format(), "-", "-", "failed")
				continue
			}

			created, matched := reportTotals(report)
			out.Success("Loaded %q (%s): %d created, %d matched", p.SheetTitle, report.Format, created, matched)
			summary.AddRow(f.path, p.SheetTitle, report.Format, strconv.Itoa(created), strconv.Itoa(matched), "ok")

			if held != nil {
				if err := held.lock.Refresh(ctx); err != nil {
					return fmt.Errorf("load aborted: %w", err)
				}
			}
		}
	}

	if summary.Len() > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		summary.Render()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sheets failed to load", failed, total)
	}
	out.Success("Loaded %d sheets into %s", total, storage.Redact(cfg.Database.URL))
	return nil
}

// reportDataError prints why a payload was skipped, suggesting the closest
// format names for an unknown format tag
func reportDataError(out *ui.Printer, p *sheet.Payload, err error) {
	var unknown *loader.UnrecognizedFormatError
	if !errors.As(err, &unknown) {
		out.Failure("%v", err)
		return
	}

	names := make([]string, 0, len(sheet.Formats()))
	for _, f := range sheet.Formats() {
		names = append(names, f.String())
	}
	out.Problem(ui.Problem{
		Title:       fmt.Sprintf("Unrecognized format: %q", unknown.Format),
		Detail:      fmt.Sprintf("sheet %q was skipped", p.SheetTitle),
		Suggestions: ui.Suggest(unknown.Format, names, 3),
		Hints:       []string{"List formats: sigla load --help"},
	})
}

func reportTotals(r *loader.Report) (created, matched int) {
	for _, name := range r.CollectionNames() {
		c := r.Counts(name)
		created += c.Created
		matched += c.Matched
	}
	return created, matched
}

func sumDeleted(deleted map[string]int64) int64 {
	var n int64
	for _, c := range deleted {
		n += c
	}
	return n
}

// heldLock is an acquired load lock and the client holding it
type heldLock struct {
	client *redis.Client
	lock   *loadlock.Lock
}

func acquireLoadLock(ctx context.Context, cfg config.LockConfig) (*heldLock, error) {
	if !cfg.Enabled() {
		return nil, errors.New("--lock requires lock.redis_url to be configured")
	}

	client, err := loadlock.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	locker, err := loadlock.NewLocker(loadlock.Config{Client: client, Key: cfg.Key, TTL: cfg.TTL})
	if err != nil {
		client.Close()
		return nil, err
	}
	lock, err := locker.Acquire(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &heldLock{client: client, lock: lock}, nil
}

func (h *heldLock) release(logger *zap.Logger) {
	if err := h.lock.Release(context.Background()); err != nil {
		logger.Warn("failed to release load lock", zap.Error(err))
	}
	if err := h.client.Close(); err != nil {
		logger.Warn("failed to close redis client", zap.Error(err))
	}
}
