package cmd

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all users from one storage backend to another",
	Long: `Copy all users from one storage backend to another, keeping IDs,
names, descriptors and creation times.

The target must be empty unless --force is given, in which case its
content is replaced.

Example:
  face-registry migrate --from file --to postgres
  face-registry migrate --from redis --to s3 --force`,
	RunE: runMigrate,
}

// spinnerInterval is how often the migrate spinner redraws.
const spinnerInterval = 100 * time.Millisecond

// errTargetNotEmpty is returned when the migration target already holds users.
var errTargetNotEmpty = errors.New("target storage is not empty (use --force to replace its content)")

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("from", "file", "Source backend: file, postgres, mariadb, redis, s3")
	migrateCmd.Flags().String("to", "", "Target backend: file, postgres, mariadb, redis, s3")
	migrateCmd.Flags().Bool("force", false, "Replace the content of a non-empty target")
	migrateCmd.Flags().Bool("quiet", false, "Do not show a progress bar")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	from := mustGetString(cmd, "from")
	to := mustGetString(cmd, "to")
	force := mustGetBool(cmd, "force")
	quiet := mustGetBool(cmd, "quiet")

	if to == "" {
		return errors.New("--to is required")
	}
	if from == to {
		return errors.New("--from and --to must be different backends")
	}

	cfg := config.Load()

	source, closeSource, err := openStore(ctx, cfg, from)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer closeSource()

	target, closeTarget, err := openStore(ctx, cfg, to)
	if err != nil {
		return fmt.Errorf("opening target: %w", err)
	}
	defer closeTarget()

	migrated, err := migrateUsers(cmd, source, target, force, quiet)
	if err != nil {
		return err
	}

	logger.Info("migration finished", zap.String("from", from), zap.String("to", to), zap.Int("users", migrated))
	fmt.Printf("Migrated %d user(s) from %s to %s.\n", migrated, from, to)
	return nil
}

// migrateUsers copies every record of source into target and returns how many were copied.
func migrateUsers(cmd *cobra.Command, source, target *database.RecordStore, force, quiet bool) (int, error) {
	ctx := cmd.Context()

	users, err := source.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading source: %w", err)
	}

	existing, err := target.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading target: %w", err)
	}
	if len(existing) > 0 && !force {
		return 0, fmt.Errorf("%w: %d user(s) found", errTargetNotEmpty, len(existing))
	}

	for _, u := range users {
		if len(u.Descriptors) == 0 {
			logger.Warn("copying user without descriptors", zap.String("id", u.ID), zap.String("name", u.Name))
		}
	}

	stop := func(bool) {}
	if !quiet {
		stop = startSpinner(cmd.OutOrStderr(), fmt.Sprintf("Writing %d user(s)", len(users)))
	}
	err = target.Replace(ctx, users)
	stop(err == nil)
	if err != nil {
		return 0, fmt.Errorf("writing target: %w", err)
	}
	return len(users), nil
}

// startSpinner animates an indeterminate progress bar on w until the returned
// function is called. The bar is completed only when ok is true.
func startSpinner(w io.Writer, description string) func(ok bool) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func(ok bool) {
		close(done)
		wg.Wait()
		if ok {
			_ = bar.Finish()
		} else {
			_ = bar.Exit()
		}
		fmt.Fprintln(w)
	}
}
