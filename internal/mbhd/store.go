package mbhd

import (
	"bytes"
	"fmt"
)

// BackupStore is one kind of backup of one wallet: a target, the naming
// rule that identifies its files and the retention rule that bounds them.
type BackupStore struct {
	kind     BackupKind
	walletID WalletID
	target   Target
	naming   *BackupNaming
	policy   RetentionPolicy
	logger   Logger
}

// NewBackupStore creates a store over target.
func NewBackupStore(kind BackupKind, id WalletID, target Target, naming *BackupNaming, policy RetentionPolicy, logger Logger) *BackupStore {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &BackupStore{
		kind:     kind,
		walletID: id,
		target:   target,
		naming:   naming,
		policy:   policy,
		logger:   logger,
	}
}

func (s *BackupStore) Kind() BackupKind      { return s.kind }
func (s *BackupStore) Target() Target        { return s.target }
func (s *BackupStore) Naming() *BackupNaming { return s.naming }

// List returns the non-empty backups in the store, oldest first. Names
// with an unparseable timestamp are logged and skipped.
func (s *BackupStore) List() ([]*BackupSummary, error) {
	entries, err := s.target.List()
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrIO, s.target.Name(), err)
	}

	var backups []*BackupSummary
	for _, e := range entries {
		if !s.naming.Matches(e.Name) || e.Size <= 0 {
			continue
		}
		created, err := s.naming.Timestamp(e.Name)
		if err != nil {
			s.logger.Warn("skipping backup with unreadable timestamp", "name", e.Name, "error", err)
			continue
		}
		backups = append(backups, &BackupSummary{
			WalletID: s.walletID,
			Kind:     s.kind,
			Name:     e.Name,
			Location: s.target.Location(e.Name),
			Created:  created,
			Size:     e.Size,
		})
	}
	SortBackups(backups)
	return backups, nil
}

// Write stores ciphertext under name.
func (s *BackupStore) Write(name string, ciphertext []byte) (*BackupSummary, error) {
	if err := s.target.Put(name, bytes.NewReader(ciphertext), int64(len(ciphertext))); err != nil {
		return nil, fmt.Errorf("%w: writing %s to %s: %w", ErrIO, name, s.target.Name(), err)
	}
	created, err := s.naming.Timestamp(name)
	if err != nil {
		return nil, err
	}
	return &BackupSummary{
		WalletID: s.walletID,
		Kind:     s.kind,
		Name:     name,
		Location: s.target.Location(name),
		Created:  created,
		Size:     int64(len(ciphertext)),
	}, nil
}

// Read returns the stored bytes of backup.
func (s *BackupStore) Read(backup *BackupSummary) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.target.Get(backup.Name, &buf); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, backup.Location, err)
	}
	return buf.Bytes(), nil
}

// Enforce applies the retention policy. Deletion failures are logged and
// leave the backup in place; the next call will try again.
func (s *BackupStore) Enforce() ([]*BackupSummary, error) {
	backups, err := s.List()
	if err != nil {
		return nil, err
	}

	var deleted []*BackupSummary
	for _, b := range s.policy.Select(backups) {
		if err := s.target.Delete(b.Name); err != nil {
			s.logger.Error("could not delete backup", "kind", string(s.kind), "location", b.Location, "error", err)
			continue
		}
		s.logger.Debug("backup deleted", "kind", string(s.kind), "location", b.Location)
		deleted = append(deleted, b)
	}
	return deleted, nil
}
