package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ft.
type Config struct {
	HostID        string           `toml:"host_id"`
	BaseDir       string           `toml:"base_dir"`
	LogDir        string           `toml:"log_dir"`
	StructurePath string           `toml:"structure_path"` // YAML ruleset: document type -> path template
	CanonicalRoot string           `toml:"canonical_root"` // root of the organized tree
	Roots         []string         `toml:"roots"`          // scan roots
	Exclude       []string         `toml:"exclude"`        // scan exclusion patterns
	Scan          ScanConfig       `toml:"scan"`
	Analyzer      AnalyzerConfig   `toml:"analyzer"`
	Executor      ExecutorConfig   `toml:"executor"`
	Classifier    ClassifierConfig `toml:"classifier"`
	Database      DatabaseConfig   `toml:"database"`
	Vaults        []VaultConfig    `toml:"vaults"`
	Encryption    EncryptionConfig `toml:"encryption"`
}

// ScanConfig holds scanner tuning knobs.
type ScanConfig struct {
	Workers   int `toml:"workers"`    // hashing worker pool size; defaults to 8
	BatchSize int `toml:"batch_size"` // registry upsert batch size; defaults to 500
}

// AnalyzerConfig holds duplicate-analyzer tuning knobs.
type AnalyzerConfig struct {
	FuzzyEnabled   bool    `toml:"fuzzy_enabled"`   // enable the fuzzy filename stage
	FuzzyThreshold float64 `toml:"fuzzy_threshold"` // similarity cutoff; defaults to 0.85
}

// ExecutorConfig holds migration-executor tuning knobs.
type ExecutorConfig struct {
	BatchSize        int     `toml:"batch_size"`        // actions per transaction batch; defaults to 100
	FailureThreshold float64 `toml:"failure_threshold"` // failure rate triggering auto-rollback; defaults to 0.5
}

// ClassifierConfig bounds the external classifier collaborator.
type ClassifierConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"` // per-file classification timeout; defaults to 30
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for an archive vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`     // empty = default credential chain
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"` // empty = default credential chain

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the registry database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:        hostID,
		BaseDir:       baseDir,
		LogDir:        filepath.Join(baseDir, "log"),
		StructurePath: filepath.Join(baseDir, "structure.yaml"),
		Scan:          ScanConfig{Workers: 8, BatchSize: 500},
		Analyzer:      AnalyzerConfig{FuzzyEnabled: true, FuzzyThreshold: 0.85},
		Executor:      ExecutorConfig{BatchSize: 100, FailureThreshold: 0.5},
		Classifier:    ClassifierConfig{TimeoutSeconds: 30},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ft.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ft.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and fills zero-valued
// tuning knobs with their defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = 8
	}
	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = 500
	}
	if c.Analyzer.FuzzyThreshold <= 0 {
		c.Analyzer.FuzzyThreshold = 0.85
	}
	if c.Executor.BatchSize <= 0 {
		c.Executor.BatchSize = 100
	}
	if c.Executor.FailureThreshold <= 0 {
		c.Executor.FailureThreshold = 0.5
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = 30
	}
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
