package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"epu-go/internal/config"
	"epu-go/internal/database"
	"epu-go/internal/download"
	"epu-go/internal/encryption"
	"epu-go/internal/epu"
	"epu-go/internal/model"
	"epu-go/internal/vault"
)

// EPUApp is the application layer between the CLI and EPUService.
// It constructs all dependencies from config and manages the DB and
// log file lifecycle on Close.
type EPUApp struct {
	cfg       *config.Config
	db        epu.Database
	vault     epu.Vault
	fetcher   epu.Fetcher
	encryptor epu.Encryptor
	service   *epu.EPUService
	logFile   *os.File
}

// NewEPUApp creates a fully wired EPUApp from the given config.
// The caller must call Close when done.
func NewEPUApp(cfg *config.Config) (*EPUApp, error) {
	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// The database is private to this binary, so pending migrations
	// are applied rather than reported.
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Backup)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	fetcher := download.NewHTTPFetcher(nil)

	params := epu.ServiceParams{
		EpisodesDir: cfg.EpisodesDir,
		EpisodeURL:  cfg.EpisodeURL,
		Preserve:    cfg.PreservePatterns(),
		MarkerExt:   cfg.MarkerExtension(),
		CacheDir:    cfg.CacheDir,
	}
	svc := epu.NewEPUService(params, db, v, fetcher, enc, &slogAdapter{l: logger}, epu.NewRealClock(), epu.NewUUIDGenerator())

	return &EPUApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		fetcher:   fetcher,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Update runs a full update: fetch, stage, back up, merge, record.
func (a *EPUApp) Update(ctx context.Context, opts epu.UpdateOptions) (*epu.UpdateResult, error) {
	return a.service.Update(ctx, opts)
}

// Check probes the configured distributor URL without downloading.
func (a *EPUApp) Check(ctx context.Context) (*epu.RemoteInfo, error) {
	return a.service.Check(ctx)
}

// History returns the most recent update operations, newest first.
func (a *EPUApp) History(limit int) ([]*model.UpdateOperation, error) {
	return a.service.History(limit)
}

// LastUpdate returns the most recent update operation, or nil if none recorded.
func (a *EPUApp) LastUpdate() (*model.UpdateOperation, error) {
	return a.service.LastUpdate()
}

// ChangedPaths returns the per-file change rows recorded for an operation.
func (a *EPUApp) ChangedPaths(operationID int64) ([]*model.ChangedPath, error) {
	return a.db.ChangedPaths(operationID)
}

// Close closes the database and the log file.
func (a *EPUApp) Close() error {
	var firstErr error

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// Defaults are the locations the CLI starts from before any config
// exists: where the config file lives and where epu keeps its data.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// ResolveDefaults determines the config file path and base data
// directory. EPU_CONFIG_PATH and EPU_HOME take precedence; anything
// unset falls back to the per-user locations ~/.config/epu.toml and
// ~/.local/share/epu.
func ResolveDefaults() (Defaults, error) {
	d := Defaults{
		ConfigPath: os.Getenv("EPU_CONFIG_PATH"),
		BaseDir:    os.Getenv("EPU_HOME"),
	}
	if d.ConfigPath != "" && d.BaseDir != "" {
		return d, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if d.ConfigPath == "" {
		d.ConfigPath = filepath.Join(home, ".config", "epu.toml")
	}
	if d.BaseDir == "" {
		d.BaseDir = filepath.Join(home, ".local", "share", "epu")
	}
	return d, nil
}
