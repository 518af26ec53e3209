package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quantmind-br/workshopsync/internal/config"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/downloader"
	"github.com/quantmind-br/workshopsync/internal/state"
	"github.com/quantmind-br/workshopsync/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Orchestrator drives one sync run: list the catalog, compare every item
// against the ledger, download what changed and persist the ledger.
type Orchestrator struct {
	config   *config.Config
	opts     OrchestratorOptions
	lister   domain.CatalogLister
	details  domain.DetailSource
	fetcher  domain.ArtifactFetcher
	snapshot *state.SnapshotIO
	deps     *Dependencies
	logger   *utils.Logger
	now      func() time.Time
}

// OrchestratorOptions contains options for creating an orchestrator
type OrchestratorOptions struct {
	domain.CommonOptions
	Config *config.Config
	Logger *utils.Logger

	// Lister, Details and Fetcher override the collaborators built from
	// Config; any left nil is created by NewDependencies
	Lister  domain.CatalogLister
	Details domain.DetailSource
	Fetcher domain.ArtifactFetcher

	Now            func() time.Time
	ShowProgress   bool
	ProgressOutput io.Writer
}

// NewOrchestrator creates a new orchestrator with the given configuration
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger(utils.LoggerOptions{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Verbose: opts.Verbose,
		})
	}

	snapshot, err := state.NewSnapshotIO(state.SnapshotOptions{
		Path:       cfg.Paths.Snapshot,
		PublicPath: cfg.Paths.PublicSnapshot,
		MetaPath:   cfg.Paths.MetaSnapshot,
		Algorithm:  cfg.Ledger.HashAlgorithm,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:   cfg,
		opts:     opts,
		lister:   opts.Lister,
		details:  opts.Details,
		fetcher:  opts.Fetcher,
		snapshot: snapshot,
		logger:   logger,
		now:      opts.Now,
	}
	if o.now == nil {
		o.now = time.Now
	}

	if o.lister == nil || o.details == nil || o.fetcher == nil {
		deps, err := NewDependencies(DependencyOptions{
			Config:       cfg,
			Logger:       logger,
			ShowProgress: opts.ShowProgress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create dependencies: %w", err)
		}
		o.deps = deps
		if o.lister == nil {
			o.lister = deps.Scraper
		}
		if o.details == nil {
			o.details = deps.Scraper
		}
		if o.fetcher == nil {
			o.fetcher = deps.Downloader
		}
	}

	return o, nil
}

// Run performs one sync. Item failures are recorded in the report and do
// not stop the run unless the failure budget is exceeded. Snapshot load and
// save errors are returned as-is; the report is always non-nil.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{StartedAt: o.now()}

	store, err := o.snapshot.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load snapshot: %w", err)
	}
	store.BeginRun(report.StartedAt.Unix())
	report.LastCheck = store.LastCheck

	o.logger.Info().
		Str("snapshot", o.snapshot.Path()).
		Int("tracked", store.Len()).
		Int64("last_check", store.LastCheck).
		Bool("dry_run", o.opts.DryRun).
		Msg("Starting workshop sync")

	ids, err := o.lister.ListIDs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		return report, fmt.Errorf("failed to list catalog: %w", err)
	}
	report.Listed = len(ids)
	ids, report.Excluded = o.selectIDs(ids)

	o.logger.Info().
		Int("listed", report.Listed).
		Int("excluded", report.Excluded).
		Int("processing", len(ids)).
		Msg("Catalog listed")

	var bar *progressbar.ProgressBar
	if o.opts.ShowProgress {
		bar = utils.NewProgressBarTo(o.opts.ProgressOutput, len(ids), utils.DescSyncing)
		defer bar.Finish()
	}

	failures := 0
	maxFailures := o.config.Ledger.MaxItemFailures
	every := o.config.Ledger.CheckpointEvery

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			o.logger.Warn().Int("processed", i).Msg("Sync cancelled")
			return report, o.finish(store, report, err)
		}

		outcome := o.processItem(ctx, store, id)
		report.Outcomes = append(report.Outcomes, outcome)
		if bar != nil {
			_ = bar.Add(1)
		}

		if outcome.Status == StatusFailed {
			failures++
			o.logger.Warn().Err(outcome.Err).Str("item", id).Msg("Item skipped")
			if maxFailures > 0 && failures > maxFailures {
				o.logger.Error().Int("failures", failures).Int("budget", maxFailures).Msg("Failure budget exceeded, stopping")
				return report, o.finish(store, report,
					fmt.Errorf("%w: %d failures, budget %d", domain.ErrTooManyFailures, failures, maxFailures))
			}
		}

		if every > 0 && (i+1)%every == 0 {
			if err := o.checkpoint(store, i+1); err != nil {
				report.FinishedAt = o.now()
				return report, err
			}
		}
	}

	return report, o.finish(store, report, nil)
}

// selectIDs drops excluded ids and applies the item limit
func (o *Orchestrator) selectIDs(ids []string) ([]string, int) {
	excluded := o.config.ExclusionSet()
	selected := make([]string, 0, len(ids))
	skipped := 0
	for _, id := range ids {
		if excluded[id] {
			skipped++
			continue
		}
		selected = append(selected, id)
	}
	if o.opts.Limit > 0 && len(selected) > o.opts.Limit {
		selected = selected[:o.opts.Limit]
	}
	return selected, skipped
}

// processItem runs the per-item pipeline. Every error becomes a
// StatusFailed outcome tagged with the stage that produced it.
func (o *Orchestrator) processItem(ctx context.Context, store *state.ItemStore, id string) ItemOutcome {
	logger := o.logger.WithItem(id)

	details, err := o.details.Details(ctx, id)
	if err != nil {
		return failed(id, domain.StageDetails, err)
	}

	remoteTs := details.RemoteTimestamp()
	if !store.NeedsUpdate(id, remoteTs) {
		logger.Debug().Int64("timestamp", remoteTs).Msg("No new update")
		return ItemOutcome{ID: id, Status: StatusUnchanged}
	}
	if o.opts.DryRun {
		logger.Info().Int64("timestamp", remoteTs).Msg("Update pending")
		return ItemOutcome{ID: id, Status: StatusPending}
	}

	itemDir := downloader.ItemDir(o.config.Paths.WorkshopDir, id)
	if existing, ok := store.Item(id); ok {
		if prev := existing.LastUpdateTimestamp(); prev > 0 {
			copied, err := downloader.BackupVersion(itemDir, prev)
			if err != nil {
				return failed(id, domain.StageBackup, err)
			}
			logger.Debug().Int("files", copied).Int64("version", prev).Msg("Previous version backed up")
		}
	}

	path, err := o.fetcher.Fetch(ctx, id, itemDir)
	if err != nil {
		return failed(id, domain.StageFetch, err)
	}

	isNew := store.RecordNewItem(id, details.Author, details.Title, details.Description, details.PublishedAt)
	appended, err := store.RecordVersion(id, path, remoteTs)
	if err != nil {
		if isNew {
			store.ForgetItem(id)
		}
		return failed(id, domain.StageRecord, err)
	}
	if !appended {
		return ItemOutcome{ID: id, Status: StatusStale, Path: path}
	}

	status := StatusUpdated
	if isNew {
		status = StatusNew
	}
	logger.Info().Str("status", string(status)).Str("path", path).Msg("Item synced")
	return ItemOutcome{ID: id, Status: status, Path: path}
}

func failed(id, stage string, err error) ItemOutcome {
	return ItemOutcome{ID: id, Status: StatusFailed, Err: domain.NewItemError(id, stage, err)}
}

func (o *Orchestrator) checkpoint(store *state.ItemStore, processed int) error {
	if o.opts.DryRun {
		return nil
	}
	if err := o.snapshot.Save(store); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	o.logger.Debug().Int("processed", processed).Msg("Checkpoint saved")
	return nil
}

// finish saves every export and returns cause joined with any save error
func (o *Orchestrator) finish(store *state.ItemStore, report *RunReport, cause error) error {
	report.FinishedAt = o.now()

	if !o.opts.DryRun {
		if err := o.snapshot.SaveAll(store); err != nil {
			return errors.Join(cause, fmt.Errorf("failed to save snapshot: %w", err))
		}
	}

	o.logger.Info().
		Int("new", report.Count(StatusNew)).
		Int("updated", report.Count(StatusUpdated)).
		Int("unchanged", report.Count(StatusUnchanged)).
		Int("pending", report.Count(StatusPending)).
		Int("failed", report.Count(StatusFailed)).
		Int("tracked", store.Len()).
		Dur("duration", report.Duration()).
		Msg("Workshop sync completed")

	return cause
}

// Close releases all resources held by the orchestrator
func (o *Orchestrator) Close() error {
	if o.deps != nil {
		return o.deps.Close()
	}
	return nil
}
