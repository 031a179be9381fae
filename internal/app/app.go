package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ft-go/internal/classify"
	"ft-go/internal/config"
	"ft-go/internal/database"
	"ft-go/internal/encryption"
	"ft-go/internal/fs"
	"ft-go/internal/ft"
	"ft-go/internal/vault"
)

// FTApp is the application layer between the CLI and FTService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the registry lifecycle on Close.
type FTApp struct {
	cfg       *config.Config
	registry  ft.Registry
	vault     ft.Vault
	fsmgr     ft.FilesystemManager
	encryptor ft.Encryptor
	structure *ft.Structure
	service   *ft.FTService
	run       *Run
	logSink   io.Closer
}

// NewFTApp creates a fully wired FTApp from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Execute").
// The caller must call Close when done.
func NewFTApp(cfg *config.Config, operation string) (*FTApp, error) {
	fsmgr := fs.NewOSFilesystemManager()

	structure, err := config.LoadStructure(cfg.StructurePath)
	if err != nil {
		return nil, fmt.Errorf("loading structure ruleset: %w", err)
	}

	var v ft.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	reg, err := database.NewRegistryFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	// Check the local registry against the snapshot last uploaded to the
	// vault. A vault ahead of the local store means this host's registry is
	// stale (restored from an old backup, or another copy ran since).
	if v != nil {
		remoteVersion, err := v.GetMetadataVersion(cfg.HostID, "registry")
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("checking remote snapshot version: %w", err)
		}
		localMax, err := latestRunID(reg)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("checking local run history: %w", err)
		}
		if remoteVersion > localMax {
			reg.Close()
			return nil, fmt.Errorf("local registry is behind the vault snapshot (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	patternClassifier, err := classify.NewPatternClassifier(structure)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("building pattern classifier: %w", err)
	}
	classifier := classify.NewChain(patternClassifier, classify.NewExtensionClassifier())

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logSink, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	tuning := ft.Tuning{
		ScanWorkers:      cfg.Scan.Workers,
		ScanBatchSize:    cfg.Scan.BatchSize,
		FuzzyEnabled:     cfg.Analyzer.FuzzyEnabled,
		FuzzyThreshold:   cfg.Analyzer.FuzzyThreshold,
		ExecBatchSize:    cfg.Executor.BatchSize,
		FailureThreshold: cfg.Executor.FailureThreshold,
		ClassifyTimeout:  time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second,
	}

	svc := ft.NewFTService(reg, fsmgr, v, enc, classifier, classify.NewNameExtractor(),
		&slogAdapter{l: logger}, ft.RealClock{}, ft.UUIDGenerator{}, tuning)

	return &FTApp{
		cfg:       cfg,
		registry:  reg,
		vault:     v,
		fsmgr:     fsmgr,
		encryptor: enc,
		structure: structure,
		service:   svc,
		run:       NewRun(operation, ""),
		logSink:   logSink,
	}, nil
}

// latestRunID returns the newest run's ID, or 0 for a fresh registry.
func latestRunID(reg ft.Registry) (int64, error) {
	runs, err := reg.ListRuns(1)
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 {
		return 0, nil
	}
	return runs[0].ID, nil
}

// persistRun saves the run to the registry, giving it an auto-increment ID.
// This should only be called for registry-mutating commands.
func (a *FTApp) persistRun() error {
	if a.run.Persisted() {
		return nil
	}
	run, err := a.registry.CreateRun(a.run.Operation, a.run.Parameters)
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.run.ID = run.ID
	return nil
}

// Scan walks the configured roots and registers every discovered file.
func (a *FTApp) Scan(ctx context.Context) (*ft.ScanResult, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	var progress ft.ScanProgress
	return a.service.Scan(ctx, a.cfg.Roots, a.cfg.Exclude, &progress)
}

// Classify runs the classifier chain over every pending record.
func (a *FTApp) Classify(ctx context.Context) (*ft.ClassifyResult, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	return a.service.ClassifyPending(ctx)
}

// Analyze runs the duplicate analysis stages over the scanned records.
func (a *FTApp) Analyze(ctx context.Context) (*ft.AnalyzeResult, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	return a.service.AnalyzeDuplicates(ctx, a.structure)
}

// ListDuplicateGroups returns the stored duplicate grouping.
func (a *FTApp) ListDuplicateGroups() ([]*ft.DuplicateGroup, error) {
	return a.registry.ListDuplicateGroups()
}

// ListNearDuplicates returns the fuzzy-filename review queue.
func (a *FTApp) ListNearDuplicates() ([]*ft.NearDuplicate, error) {
	return a.registry.ListNearDuplicates()
}

// Plan builds a migration plan against the configured canonical root.
// duplicateAction is "", "archive" or "delete".
func (a *FTApp) Plan(ctx context.Context, duplicateAction string) (*ft.MigrationPlan, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	opts, err := planOptions(duplicateAction)
	if err != nil {
		return nil, err
	}
	return a.service.BuildPlan(ctx, a.structure, a.cfg.CanonicalRoot, opts)
}

func planOptions(duplicateAction string) (ft.PlanOptions, error) {
	switch duplicateAction {
	case "":
		return ft.PlanOptions{}, nil
	case "archive":
		return ft.PlanOptions{DuplicateAction: ft.ActionArchive}, nil
	case "delete":
		return ft.PlanOptions{DuplicateAction: ft.ActionDelete}, nil
	default:
		return ft.PlanOptions{}, fmt.Errorf("unknown duplicate action %q (want archive or delete)", duplicateAction)
	}
}

// ListPlans returns the most recent plan headers.
func (a *FTApp) ListPlans(limit int) ([]*ft.MigrationPlan, error) {
	return a.registry.ListPlans(limit)
}

// GetPlan returns a plan with all its actions, or nil.
func (a *FTApp) GetPlan(id string) (*ft.MigrationPlan, error) {
	return a.registry.GetPlan(id)
}

// Approve marks a pending plan approved for execution.
func (a *FTApp) Approve(planID string) error {
	if err := a.persistRun(); err != nil {
		return err
	}
	return a.registry.ApprovePlan(planID)
}

// Execute applies an approved plan.
func (a *FTApp) Execute(ctx context.Context, planID string) (*ft.ExecutionResult, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	result, err := a.service.Execute(ctx, planID)
	if err != nil {
		a.run.Status = "error"
	}
	return result, err
}

// Rollback undoes a plan's applied actions. passphrase unlocks the private
// key when archived content was encrypted; empty means no decryption.
func (a *FTApp) Rollback(ctx context.Context, planID string, passphrase string) error {
	if err := a.persistRun(); err != nil {
		return err
	}
	var dec ft.DecryptionContext
	if passphrase != "" {
		var err error
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.Rollback(ctx, planID, dec)
}

// Reorganize converges the canonical tree: sync, plan, execute, prune.
func (a *FTApp) Reorganize(ctx context.Context, dryRun bool) (*ft.ReorganizeResult, error) {
	if !dryRun {
		if err := a.persistRun(); err != nil {
			return nil, err
		}
	}
	return a.service.Reorganize(ctx, a.cfg.CanonicalRoot, a.structure, dryRun)
}

// Correct applies a manual reclassification to a file.
func (a *FTApp) Correct(fileID string, newType string, reason string) error {
	if err := a.persistRun(); err != nil {
		return err
	}
	return a.service.Correct(fileID, newType, reason)
}

// File returns the registry record for an ID, or nil.
func (a *FTApp) File(fileID string) (*ft.FileRecord, error) {
	return a.registry.GetFile(fileID)
}

// FileStatus returns the registry record for a path, or nil if untracked.
func (a *FTApp) FileStatus(rawPath string) (*ft.FileRecord, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.registry.FindByOriginalPath(p.String())
}

// MoveHistory returns a file's move events, oldest first.
func (a *FTApp) MoveHistory(fileID string) ([]*ft.MoveEvent, error) {
	return a.registry.ListMoveHistory(fileID)
}

// Metrics derives the accuracy and stability figures from registry counts.
func (a *FTApp) Metrics() (*ft.MetricsReport, error) {
	return a.service.Metrics()
}

// History returns the most recent runs.
func (a *FTApp) History(limit int) ([]*ft.Run, error) {
	return a.registry.ListRuns(limit)
}

// Close finalizes the run and closes all resources.
// For persisted runs: finishes the run record, snapshots the registry, and
// uploads the snapshot to the vault. For non-persisted runs: just closes the
// registry.
func (a *FTApp) Close() error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.registry.FinishRun(a.run.ID, a.run.Status); err != nil {
			firstErr = fmt.Errorf("finishing run: %w", err)
		}

		// Snapshot the registry to a temp file.
		tmpFile, err := os.CreateTemp("", "ft-registry-snapshot-*.db")
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("creating temp file for registry snapshot: %w", err)
			}
		}

		var tmpPath string
		if tmpFile != nil {
			tmpPath = tmpFile.Name()
			tmpFile.Close()
			// VACUUM INTO refuses an existing target; keep only the name.
			os.Remove(tmpPath)

			if err := a.registry.BackupTo(tmpPath); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("snapshotting registry: %w", err)
				}
				tmpPath = "" // skip vault upload
			}
		}

		if err := a.registry.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing registry: %w", err)
			}
		}

		// Upload the snapshot with version = run ID.
		if tmpPath != "" && a.vault != nil {
			if err := a.uploadSnapshot(tmpPath, a.run.ID); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	} else {
		if err := a.registry.Close(); err != nil {
			firstErr = fmt.Errorf("closing registry: %w", err)
		}
	}

	if a.logSink != nil {
		a.logSink.Close()
	}

	return firstErr
}

// uploadSnapshot opens the temp snapshot file and uploads it to the vault as
// metadata.
func (a *FTApp) uploadSnapshot(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening registry snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat registry snapshot: %w", err)
	}

	if err := a.vault.PutMetadata(a.cfg.HostID, "registry", f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}
