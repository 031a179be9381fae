package ft

import (
	"time"
)

// Tuning holds the knobs the service loops read. Zero values are replaced
// with defaults by NewFTService.
type Tuning struct {
	ScanWorkers      int           // parallel hashing workers, default 8
	ScanBatchSize    int           // registry upsert batch size, default 500
	FuzzyEnabled     bool          // run the fuzzy filename stage
	FuzzyThreshold   float64       // similarity cutoff for suggestions, default 0.85
	ExecBatchSize    int           // executor batch size, default 100
	FailureThreshold float64       // failed-action fraction that triggers auto-rollback, default 0.5
	ClassifyTimeout  time.Duration // per-file classifier timeout, default 30s
}

func (t Tuning) withDefaults() Tuning {
	if t.ScanWorkers <= 0 {
		t.ScanWorkers = 8
	}
	if t.ScanBatchSize <= 0 {
		t.ScanBatchSize = 500
	}
	if t.FuzzyThreshold <= 0 {
		t.FuzzyThreshold = 0.85
	}
	if t.ExecBatchSize <= 0 {
		t.ExecBatchSize = 100
	}
	if t.FailureThreshold <= 0 {
		t.FailureThreshold = 0.5
	}
	if t.ClassifyTimeout <= 0 {
		t.ClassifyTimeout = 30 * time.Second
	}
	return t
}

// FTService is the orchestration layer that coordinates across all components
// to perform the high-level operations needed by the CLI: scanning,
// classification, duplicate analysis, planning, execution, reorganization.
// All cross-component communication goes through the Registry; components
// never talk to each other directly.
type FTService struct {
	registry   Registry
	fsmgr      FilesystemManager
	vault      Vault
	encryptor  Encryptor // nil means archived content is stored in plaintext
	classifier Classifier
	extractor  Extractor
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	tuning     Tuning
}

// NewFTService creates a new FTService with the provided dependencies.
// vault and encryptor may be nil when no archive backend is configured;
// archive and delete actions then fail at execution time with a clear error.
func NewFTService(registry Registry, fsmgr FilesystemManager, vault Vault, encryptor Encryptor,
	classifier Classifier, extractor Extractor, logger Logger, clock Clock, idgen IDGenerator,
	tuning Tuning) *FTService {
	return &FTService{
		registry:   registry,
		fsmgr:      fsmgr,
		vault:      vault,
		encryptor:  encryptor,
		classifier: classifier,
		extractor:  extractor,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		tuning:     tuning.withDefaults(),
	}
}
