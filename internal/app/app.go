package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mbhd-go/internal/config"
	"mbhd-go/internal/database"
	"mbhd-go/internal/encryption"
	"mbhd-go/internal/fs"
	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/vault"
)

// CatalogSnapshotName is the name under which the catalog is copied to the
// cloud target after every mutating command.
const CatalogSnapshotName = "mbhd-catalog.db"

// MBHDApp is the application layer between the CLI and BackupManager.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the catalog lifecycle on Close.
type MBHDApp struct {
	cfg      *config.Config
	catalog  *database.SQLiteCatalog // nil when no catalog is configured
	cloud    mbhd.Target             // nil when no cloud target is configured
	fsmgr    *fs.OSFilesystemManager
	manager  *mbhd.BackupManager
	notifier *mbhd.DelayedNotifier
	logger   mbhd.Logger
	clock    mbhd.Clock
	op       *Operation
	logFile  *os.File
}

// NewMBHDApp creates a fully wired MBHDApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateWallet", "BackupLocal").
// The caller must call Close when done.
func NewMBHDApp(cfg *config.Config, operation string) (*MBHDApp, error) {
	return newMBHDApp(cfg, operation, appOptions{
		loadedDelay: mbhd.DefaultBackupLoadedDelay,
		logLevel:    slog.LevelInfo,
		clock:       mbhd.RealClock{},
	})
}

// appOptions holds the settings tests replace.
type appOptions struct {
	loadedDelay time.Duration
	logLevel    slog.Level
	clock       mbhd.Clock
}

func newMBHDApp(cfg *config.Config, operation string, opts appOptions) (*MBHDApp, error) {
	if cfg.AppDataDir == "" {
		return nil, fmt.Errorf("app_data_dir is not configured")
	}
	fsmgr := fs.NewOSFilesystemManager(filepath.Join(cfg.AppDataDir, ".tmp"))
	if err := fsmgr.MkdirAll(cfg.AppDataDir); err != nil {
		return nil, fmt.Errorf("creating app data directory: %w", err)
	}

	codec, err := encryption.NewCodecFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}

	cloud, err := vault.NewTargetFromConfig(cfg.Cloud, fsmgr)
	if err != nil {
		return nil, fmt.Errorf("creating cloud target: %w", err)
	}

	var catalog *database.SQLiteCatalog
	if cfg.Database.Type != "" {
		catalog, err = database.NewCatalogFromConfig(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("creating catalog: %w", err)
		}
		if err := catalog.Migrate(); err != nil {
			catalog.Close()
			return nil, fmt.Errorf("migrating catalog: %w", err)
		}
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	sl, logFile, err := newLogger(cfg.LogDir, opID, opts.logLevel)
	if err != nil {
		if catalog != nil {
			catalog.Close()
		}
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	notifier := mbhd.NewDelayedNotifier(opts.loadedDelay, func(id mbhd.WalletID, b *mbhd.BackupSummary) {
		logger.Info("wallet was restored from a backup, recent changes may be missing", "wallet", id.String(), "backup", b.Name)
	})

	mcfg := mbhd.ManagerConfig{
		AppDataDir: cfg.AppDataDir,
		Retention: mbhd.Retention{
			RollingMax:   cfg.Retention.RollingMax,
			ZipMax:       cfg.Retention.ZipMax,
			ZipKeepFirst: cfg.Retention.ZipKeepFirst,
			ZipKeepLast:  cfg.Retention.ZipKeepLast,
		},
		ZipExclude: cfg.Filesystem.Ignore,
		Cloud:      cloud,
		OpenDirectory: func(dir string) mbhd.Target {
			return vault.NewFileSystemTarget("local", dir, fsmgr)
		},
		Filesystem:    fsmgr,
		Codec:         codec,
		Archiver:      fs.NewZipArchiver(),
		Keys:          identity.SeedKeys{},
		Phrases:       identity.Bip39Converter{},
		Notifier:      notifier,
		Logger:        logger,
		Clock:         opts.clock,
		IDGen:         mbhd.UUIDGenerator{},
		ValidateState: validateWalletDocument,
	}
	if catalog != nil {
		mcfg.Catalog = catalog
	}

	manager, err := mbhd.NewBackupManager(mcfg)
	if err != nil {
		logFile.Close()
		if catalog != nil {
			catalog.Close()
		}
		return nil, fmt.Errorf("creating backup manager: %w", err)
	}

	return &MBHDApp{
		cfg:      cfg,
		catalog:  catalog,
		cloud:    cloud,
		fsmgr:    fsmgr,
		manager:  manager,
		notifier: notifier,
		logger:   logger,
		clock:    opts.clock,
		op:       NewOperation(operation, ""),
		logFile:  logFile,
	}, nil
}

// Manager exposes the underlying backup manager.
func (a *MBHDApp) Manager() *mbhd.BackupManager { return a.manager }

// persistOperation saves the operation to the catalog, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *MBHDApp) persistOperation(parameters string) error {
	if a.catalog == nil || a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.catalog.CreateOperation(a.op.Operation, parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// History returns the most recent backup events, newest first. An empty
// walletID returns events of every wallet.
func (a *MBHDApp) History(walletID string, limit int) ([]*mbhd.BackupEvent, error) {
	if a.catalog == nil {
		return nil, errors.New("no backup catalog configured")
	}
	return a.catalog.ListBackupEvents(walletID, limit)
}

// Operations returns the most recent CLI operations, newest first.
func (a *MBHDApp) Operations(limit int) ([]*database.Operation, error) {
	if a.catalog == nil {
		return nil, errors.New("no backup catalog configured")
	}
	return a.catalog.ListOperations(limit)
}

// Close finalizes the operation and closes all resources.
// It waits for pending backup-loaded notifications first. For persisted
// operations the catalog is snapshotted to the cloud target, if any.
func (a *MBHDApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.notifier.Wait()

	if a.catalog != nil {
		if a.op.Persisted() {
			if err := a.catalog.FinishOperation(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
				keep(fmt.Errorf("finishing operation: %w", err))
			}
			if a.cloud != nil {
				keep(a.uploadCatalog())
			}
		}
		if err := a.catalog.Close(); err != nil {
			keep(fmt.Errorf("closing catalog: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// uploadCatalog copies a snapshot of the catalog to the cloud target. An
// unreachable target is logged and skipped, as cloud backups are.
func (a *MBHDApp) uploadCatalog() error {
	if err := a.cloud.ValidateSetup(); err != nil {
		a.logger.Warn("cloud target unavailable, catalog not uploaded", "target", a.cloud.Name(), "error", err)
		return nil
	}

	dir, err := a.fsmgr.MkdirTemp("mbhd-catalog-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for catalog snapshot: %w", err)
	}
	defer a.fsmgr.RemoveAll(dir)

	path := filepath.Join(dir, CatalogSnapshotName)
	if err := a.catalog.BackupTo(path); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening catalog snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat catalog snapshot: %w", err)
	}
	if err := a.cloud.Put(CatalogSnapshotName, f, info.Size()); err != nil {
		return fmt.Errorf("uploading catalog snapshot: %w", err)
	}
	a.logger.Debug("catalog snapshot uploaded", "location", a.cloud.Location(CatalogSnapshotName))
	return nil
}
