package mbhd

import (
	"sort"
	"time"
)

// BackupKind names one of the three backup stores.
type BackupKind string

const (
	RollingBackup BackupKind = "rolling"
	LocalBackup   BackupKind = "local"
	CloudBackup   BackupKind = "cloud"
)

// BackupSummary describes one backup file.
type BackupSummary struct {
	WalletID WalletID
	Kind     BackupKind
	Name     string
	Location string
	Created  time.Time
	Size     int64
}

// SortBackups orders backups oldest first. Equal timestamps fall back to
// name order so results are stable.
func SortBackups(backups []*BackupSummary) {
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Name < backups[j].Name
		}
		return backups[i].Created.Before(backups[j].Created)
	})
}
