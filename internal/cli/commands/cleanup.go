package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/siglatools/sigla/internal/cli/ui"
	"github.com/siglatools/sigla/internal/loader"
	"github.com/siglatools/sigla/internal/logging"
	"github.com/siglatools/sigla/internal/storage"
)

var cleanupYesFlag bool

// confirm asks a yes/no question; replaced in tests
var confirm = func(message string) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}

// NewCleanupCommand creates the cleanup command
func NewCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every document from every collection",
		Long: `Delete all documents from every collection of the configured store.

Collections themselves are kept. This cannot be undone, so the command asks
for confirmation unless --yes is given.`,
		Example: `  # Interactive
  sigla cleanup

  # Non-interactive, e.g. in CI
  sigla cleanup --yes --database-url sqlite:///tmp/sigla.db`,
		Args: cobra.NoArgs,
		RunE: runCleanup,
	}

	cmd.Flags().BoolVarP(&cleanupYesFlag, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := newPrinter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		out.Failure("Invalid configuration")
		return err
	}
	target := storage.Redact(cfg.Database.URL)

	if !cleanupYesFlag {
		ok, err := confirm(fmt.Sprintf("Delete every document in %s?", target))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			out.Info("Clean-up cancelled")
			return nil
		}
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	l := loader.New(loader.Config{DatabaseURL: cfg.Database.URL}, loader.WithLogger(logger))
	defer l.Close()

	deleted, err := l.CleanUp(ctx)
	if err != nil {
		out.Failure("Clean-up of %s failed", target)
		return err
	}
	if len(deleted) == 0 {
		out.Info("No collections in %s", target)
		return nil
	}

	names := make([]string, 0, len(deleted))
	for name := range deleted {
		names = append(names, name)
	}
	sort.Strings(names)

	table := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "COLLECTION", "DELETED")
	for _, name := range names {
		table.AddRow(name, strconv.FormatInt(deleted[name], 10))
	}
	table.Render()

	out.Success("Deleted %d documents from %s", sumDeleted(deleted), target)
	return nil
}
