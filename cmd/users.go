package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/recognize"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List and manage registered users",
	Long:  `List registered users. Use subcommands to register, delete or match users.`,
	RunE:  runUsersList,
}

var usersRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a user with face descriptors",
	Long: `Register a user under a unique (case-insensitive) name.

Example:
  face-registry users register "Alice" --descriptors '[[0.12, -0.03, 0.08]]'
  face-registry users register "Bob" --descriptors-file bob.json`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersRegister,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user by ID",
	Long:  `Delete a user by ID. Deleting an unknown ID is not an error.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the registered user closest to a descriptor",
	Long: `Find the registered user closest to a descriptor.

Example:
  face-registry users match --descriptor '[0.12, -0.03, 0.08]' --limit 3`,
	RunE: runUsersMatch,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersRegisterCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersMatchCmd)

	usersCmd.PersistentFlags().String("backend", "", "Storage backend (overrides STORAGE_BACKEND)")

	// List flags
	usersCmd.Flags().Bool("json", false, "Output as JSON")

	// Register flags
	usersRegisterCmd.Flags().String("descriptors", "", "Descriptors as a JSON array of arrays")
	usersRegisterCmd.Flags().String("descriptors-file", "", "File containing the descriptors JSON")

	// Match flags
	usersMatchCmd.Flags().String("descriptor", "", "Descriptor as a JSON array")
	usersMatchCmd.Flags().Float64("threshold", 0, "Maximum distance for a match (default MATCH_THRESHOLD)")
	usersMatchCmd.Flags().Int("limit", 1, "Number of nearest users to show")
}

// usersStore opens the store selected by --backend or STORAGE_BACKEND.
func usersStore(ctx context.Context, cmd *cobra.Command) (*config.Config, *database.RecordStore, func() error, error) {
	cfg := config.Load()
	if backend := mustGetString(cmd, "backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	store, closeFn, err := openStore(ctx, cfg, cfg.Storage.Backend)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, closeFn, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput := mustGetBool(cmd, "json")

	_, store, closeStore, err := usersStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	users, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if jsonOutput {
		data, err := database.MarshalRecords(users)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(users) == 0 {
		fmt.Println("No users registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTORS\tCREATED")
	fmt.Fprintln(w, "--\t----\t-----------\t-------")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.ID, u.Name, len(u.Descriptors), u.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d users\n", len(users))
	return nil
}

// readDescriptors parses --descriptors or --descriptors-file.
func readDescriptors(cmd *cobra.Command) ([]database.Descriptor, error) {
	raw := mustGetString(cmd, "descriptors")
	if path := mustGetString(cmd, "descriptors-file"); path != "" {
		if raw != "" {
			return nil, fmt.Errorf("use either --descriptors or --descriptors-file, not both")
		}
		data, err := os.ReadFile(path) //nolint:gosec // path given by the operator
		if err != nil {
			return nil, fmt.Errorf("reading descriptors file: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return nil, fmt.Errorf("--descriptors or --descriptors-file is required")
	}

	var descriptors []database.Descriptor
	if err := json.Unmarshal([]byte(raw), &descriptors); err != nil {
		return nil, fmt.Errorf("descriptors must be a JSON array of number arrays: %w", err)
	}
	return descriptors, nil
}

func runUsersRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	descriptors, err := readDescriptors(cmd)
	if err != nil {
		return err
	}

	_, store, closeStore, err := usersStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	user, err := store.Register(ctx, args[0], descriptors)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	fmt.Printf("Registered %s (%s) with %d descriptor(s).\n", user.Name, user.ID, len(user.Descriptors))
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, store, closeStore, err := usersStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.Delete(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if removed {
		fmt.Printf("Deleted user %s.\n", args[0])
	} else {
		fmt.Printf("No user with ID %s.\n", args[0])
	}
	return nil
}

func runUsersMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	threshold := mustGetFloat64(cmd, "threshold")
	limit := mustGetInt(cmd, "limit")

	var query []float64
	if err := json.Unmarshal([]byte(mustGetString(cmd, "descriptor")), &query); err != nil {
		return fmt.Errorf("--descriptor must be a JSON array of numbers: %w", err)
	}

	cfg, store, closeStore, err := usersStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	metric, err := recognize.ParseMetric(cfg.Match.Metric)
	if err != nil {
		return err
	}
	if threshold <= 0 {
		threshold = cfg.Match.Threshold
	}
	recognizer := recognize.New(store, metric, threshold)

	candidates, err := recognizer.Nearest(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("No registered descriptors of the same length.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISTANCE\tMATCH")
	fmt.Fprintln(w, "--\t----\t--------\t-----")
	for _, c := range candidates {
		match := ""
		if c.Distance <= recognizer.Threshold() {
			match = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\n", c.Record.ID, c.Record.Name, c.Distance, match)
	}
	w.Flush()
	return nil
}
