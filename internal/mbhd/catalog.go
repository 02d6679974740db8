package mbhd

import "time"

// Backup event names recorded in the catalog.
const (
	EventCreated  = "created"
	EventDeleted  = "deleted"
	EventRestored = "restored"
	EventLoaded   = "loaded"
	EventFailed   = "failed"
)

// BackupEvent is one entry of the backup history.
type BackupEvent struct {
	ID        string
	WalletID  string
	Kind      BackupKind
	Event     string
	Name      string
	Location  string
	Detail    string
	CreatedAt time.Time
}

// Catalog records what happened to backups. Recording is best effort:
// failures are logged and never abort a backup.
type Catalog interface {
	RecordBackupEvent(event *BackupEvent) error
}

// NopCatalog discards events.
type NopCatalog struct{}

func (NopCatalog) RecordBackupEvent(*BackupEvent) error { return nil }
