package testutil

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"mbhd-go/internal/mbhd"
)

// RecordingCatalog keeps backup events in memory. Set Err to make every
// RecordBackupEvent call fail.
type RecordingCatalog struct {
	mu     sync.Mutex
	events []*mbhd.BackupEvent
	Err    error
}

func (c *RecordingCatalog) RecordBackupEvent(ev *mbhd.BackupEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	cp := *ev
	c.events = append(c.events, &cp)
	return nil
}

// Events returns the recorded events in order.
func (c *RecordingCatalog) Events() []*mbhd.BackupEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*mbhd.BackupEvent(nil), c.events...)
}

// Count returns how many events of the given kind and name were recorded.
func (c *RecordingCatalog) Count(kind mbhd.BackupKind, event string) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Kind == kind && ev.Event == event {
			n++
		}
	}
	return n
}

// Notification is one BackupLoaded call.
type Notification struct {
	WalletID mbhd.WalletID
	Backup   *mbhd.BackupSummary
}

// RecordingNotifier records BackupLoaded calls synchronously.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

func (n *RecordingNotifier) BackupLoaded(id mbhd.WalletID, b *mbhd.BackupSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{WalletID: id, Backup: b})
}

// Calls returns the recorded notifications.
func (n *RecordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s %s %v", e.Level, e.Message, e.Args)
}

// RecordingLogger captures log calls for assertions.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *RecordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

// Entries returns the captured entries at level, or all when level is "".
func (l *RecordingLogger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any entry at level has a message containing substr.
func (l *RecordingLogger) Contains(level, substr string) bool {
	for _, e := range l.Entries(level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// FailingTarget wraps a Target and fails the operations named in Fail
// ("put", "get", "list", "delete", "validate").
type FailingTarget struct {
	mbhd.Target
	Fail map[string]bool
}

var ErrInjected = errors.New("injected failure")

func (f *FailingTarget) check(op string) error {
	if f.Fail[op] {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

func (f *FailingTarget) Put(name string, r io.Reader, size int64) error {
	if err := f.check("put"); err != nil {
		return err
	}
	return f.Target.Put(name, r, size)
}

func (f *FailingTarget) Get(name string, w io.Writer) error {
	if err := f.check("get"); err != nil {
		return err
	}
	return f.Target.Get(name, w)
}

func (f *FailingTarget) List() ([]*mbhd.TargetEntry, error) {
	if err := f.check("list"); err != nil {
		return nil, err
	}
	return f.Target.List()
}

func (f *FailingTarget) Delete(name string) error {
	if err := f.check("delete"); err != nil {
		return err
	}
	return f.Target.Delete(name)
}

func (f *FailingTarget) ValidateSetup() error {
	if err := f.check("validate"); err != nil {
		return err
	}
	return f.Target.ValidateSetup()
}

// FailingFilesystem wraps a FilesystemManager and fails SecureDelete for
// paths ending in FailDeleteSuffix.
type FailingFilesystem struct {
	mbhd.FilesystemManager
	FailDeleteSuffix string
}

func (f *FailingFilesystem) SecureDelete(path string) error {
	if f.FailDeleteSuffix != "" && strings.HasSuffix(path, f.FailDeleteSuffix) {
		return fmt.Errorf("secure delete %s: %w", path, ErrInjected)
	}
	return f.FilesystemManager.SecureDelete(path)
}
