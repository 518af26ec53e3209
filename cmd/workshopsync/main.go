package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantmind-br/workshopsync/internal/app"
	"github.com/quantmind-br/workshopsync/internal/config"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/downloader"
	"github.com/quantmind-br/workshopsync/internal/renderer"
	"github.com/quantmind-br/workshopsync/internal/state"
	"github.com/quantmind-br/workshopsync/internal/utils"
	"github.com/quantmind-br/workshopsync/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	// Dependencies for testing
	osStat          = os.Stat
	execLookPath    = exec.LookPath
	browserLookPath = renderer.GetBrowserPath
)

// errArtifactMismatch is returned by history --verify when the artifact on
// disk does not hash to the latest recorded version
var errArtifactMismatch = errors.New("artifact on disk does not match the ledger")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workshopsync",
	Short: "Track and download versioned workshop items",
	Long: `WorkshopSync lists a workshop catalog, detects new and updated items,
downloads their artifacts through an external downloader and keeps a
hash-verified version ledger of everything it has seen.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync pass",
	Args:  cobra.NoArgs,
	RunE:  run,
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Print the recorded versions of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  history,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.workshopsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("snapshot", config.DefaultSnapshotPath, "Full snapshot path")
	rootCmd.PersistentFlags().String("workshop-dir", config.DefaultWorkshopDir, "Directory artifacts are downloaded into")

	// Run flags
	runCmd.Flags().IntP("limit", "l", 0, "Max items to process (0=unlimited)")
	runCmd.Flags().Bool("dry-run", false, "Report pending updates without downloading or saving")
	runCmd.Flags().Bool("no-progress", false, "Disable progress bars")
	runCmd.Flags().Int("max-pages", 0, "Max catalog pages to list (0=unlimited)")
	runCmd.Flags().Int("checkpoint-every", config.DefaultCheckpointEvery, "Save the snapshot every N items (0=off)")
	runCmd.Flags().Int("max-failures", config.DefaultMaxItemFailures, "Abort after N failed items (0=unlimited)")
	runCmd.Flags().Bool("no-cache", false, "Disable the HTTP response cache")

	// History flags
	historyCmd.Flags().Bool("verify", false, "Re-hash the artifact on disk and compare it with the latest version")

	// Bind flags to viper
	_ = viper.BindPFlag("paths.snapshot", rootCmd.PersistentFlags().Lookup("snapshot"))
	_ = viper.BindPFlag("paths.workshop_dir", rootCmd.PersistentFlags().Lookup("workshop-dir"))
	_ = viper.BindPFlag("catalog.max_pages", runCmd.Flags().Lookup("max-pages"))
	_ = viper.BindPFlag("ledger.checkpoint_every", runCmd.Flags().Lookup("checkpoint-every"))
	_ = viper.BindPFlag("ledger.max_item_failures", runCmd.Flags().Lookup("max-failures"))

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.ResponseCacheEnabled = false
	}

	log := utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})

	// Cancel on SIGINT/SIGTERM; the run saves what it has before returning
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	orchestrator, err := app.NewOrchestrator(app.OrchestratorOptions{
		CommonOptions: domain.CommonOptions{
			Verbose: verbose,
			DryRun:  dryRun,
			Limit:   limit,
		},
		Config:       cfg,
		Logger:       log,
		ShowProgress: !noProgress && !verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orchestrator.Close()

	report, err := orchestrator.Run(ctx)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

// printReport writes the run summary followed by one line per failure
func printReport(w io.Writer, report *app.RunReport) {
	fmt.Fprintf(w, "Listed %d items (%d excluded), processed %d in %s\n",
		report.Listed, report.Excluded, len(report.Outcomes), report.Duration().Round(time.Second))
	fmt.Fprintf(w, "  new: %d  updated: %d  unchanged: %d  pending: %d  stale: %d  failed: %d\n",
		report.Count(app.StatusNew),
		report.Count(app.StatusUpdated),
		report.Count(app.StatusUnchanged),
		report.Count(app.StatusPending),
		report.Count(app.StatusStale),
		report.Count(app.StatusFailed))
	for _, f := range report.Failures() {
		fmt.Fprintf(w, "  FAILED %s: %v\n", f.ID, f.Err)
	}
}

func history(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := state.ReadSnapshot(cfg.Paths.Snapshot)
	if err != nil {
		return err
	}

	id := args[0]
	out := cmd.OutOrStdout()
	if err := printHistory(out, store, id); err != nil {
		return err
	}

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		return verifyArtifact(out, cfg, store, id)
	}
	return nil
}

// printHistory writes an item's metadata and versions in insertion order
func printHistory(w io.Writer, store *state.ItemStore, id string) error {
	item, ok := store.Item(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, state.ErrUnknownItem)
	}

	fmt.Fprintf(w, "%s  %s\n", item.ID, item.Title)
	fmt.Fprintf(w, "  author:    %s\n", item.Author)
	fmt.Fprintf(w, "  published: %s\n", formatTimestamp(item.PublishedAt))
	fmt.Fprintf(w, "  versions:  %d (%s)\n", len(item.History), store.HashAlgorithm)
	for i, v := range item.History {
		fmt.Fprintf(w, "  %3d  %s  %s  %s\n", i+1, formatTimestamp(v.UpdateTimestamp), v.ContentHash, v.Filename)
	}
	return nil
}

// verifyArtifact re-hashes the artifact currently on disk and compares it
// with the latest recorded version
func verifyArtifact(w io.Writer, cfg *config.Config, store *state.ItemStore, id string) error {
	item, ok := store.Item(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, state.ErrUnknownItem)
	}
	latest, ok := item.LatestVersion()
	if !ok {
		return fmt.Errorf("item %s has no recorded versions", id)
	}

	itemDir := downloader.ItemDir(cfg.Paths.WorkshopDir, id)
	path, err := downloader.FindExisting(itemDir, cfg.Downloader.ArtifactExtensions)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("no artifact found in %s", itemDir)
	}

	digest, err := store.Hasher().HashFile(path)
	if err != nil {
		return err
	}

	if digest != latest.ContentHash {
		fmt.Fprintf(w, "MISMATCH %s: %s, ledger has %s\n", path, digest, latest.ContentHash)
		return errArtifactMismatch
	}
	fmt.Fprintf(w, "OK %s matches version %s\n", filepath.Base(path), formatTimestamp(latest.UpdateTimestamp))
	return nil
}

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	Long:  "Verifies the browser, the external downloader, the output directories and the snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Checking system dependencies...")
		allPassed := true

		// Check 1: Config file
		fmt.Fprint(out, "  Config: ")
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(out, "FAILED (%v)\n", err)
			return fmt.Errorf("invalid configuration: %w", err)
		}
		fmt.Fprintln(out, "OK")

		// Check 2: Chrome/Chromium
		fmt.Fprint(out, "  Chrome/Chromium: ")
		if browser := checkBrowser(cfg.Rendering.BrowserPath); browser != "" {
			fmt.Fprintf(out, "OK (%s)\n", browser)
		} else {
			fmt.Fprintln(out, "NOT FOUND (detail pages can only come from the page cache)")
			allPassed = false
		}

		// Check 3: Downloader
		fmt.Fprintf(out, "  Downloader (%s): ", cfg.Downloader.Command)
		if path, err := execLookPath(cfg.Downloader.Command); err == nil {
			fmt.Fprintf(out, "OK (%s)\n", path)
		} else {
			fmt.Fprintln(out, "NOT FOUND")
			allPassed = false
		}

		// Check 4: Accounts
		fmt.Fprint(out, "  Downloader accounts: ")
		if accounts, err := config.ParseAccounts(cfg.Downloader.Accounts); err != nil {
			fmt.Fprintf(out, "FAILED (%v)\n", err)
			allPassed = false
		} else if len(accounts) == 0 {
			fmt.Fprintln(out, "NONE (every download will be skipped)")
			allPassed = false
		} else {
			fmt.Fprintf(out, "OK (%d)\n", len(accounts))
		}

		// Check 5: Writable directories
		for _, dir := range []string{
			filepath.Dir(cfg.Paths.Snapshot),
			cfg.Paths.WorkshopDir,
			utils.ExpandPath(cfg.Paths.PageCacheDir),
		} {
			fmt.Fprintf(out, "  Write permissions (%s): ", dir)
			if checkWritable(dir) {
				fmt.Fprintln(out, "OK")
			} else {
				fmt.Fprintln(out, "FAILED")
				allPassed = false
			}
		}

		// Check 6: Snapshot
		fmt.Fprint(out, "  Snapshot: ")
		fmt.Fprintln(out, checkSnapshot(cfg.Paths.Snapshot))

		fmt.Fprintln(out)
		if allPassed {
			fmt.Fprintln(out, "All critical checks passed!")
		} else {
			fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkBrowser returns the browser that would be launched, or ""
func checkBrowser(configured string) string {
	if configured != "" {
		if _, err := osStat(configured); err == nil {
			return configured
		}
		return ""
	}
	if path, ok := browserLookPath(); ok {
		return path
	}
	return ""
}

// checkWritable reports whether dir exists or can be created, and accepts
// new files
func checkWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".workshopsync_write_*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// checkSnapshot describes the snapshot at path without taking a backup
func checkSnapshot(path string) string {
	if _, err := osStat(path); errors.Is(err, os.ErrNotExist) {
		return "NONE (a new ledger will be created)"
	}
	store, err := state.ReadSnapshot(path)
	if err != nil {
		return fmt.Sprintf("FAILED (%v)", err)
	}
	return fmt.Sprintf("OK (%d items, %d versions, %s)", store.Len(), store.VersionCount(), store.HashAlgorithm)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
