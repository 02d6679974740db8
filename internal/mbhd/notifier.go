package mbhd

import (
	"sync"
	"time"
)

// DefaultBackupLoadedDelay gives listeners time to attach after a wallet
// was restored from a rolling backup.
const DefaultBackupLoadedDelay = 4 * time.Second

// Notifier announces that a wallet was restored from a backup.
type Notifier interface {
	BackupLoaded(id WalletID, backup *BackupSummary)
}

// NopNotifier ignores notifications.
type NopNotifier struct{}

func (NopNotifier) BackupLoaded(WalletID, *BackupSummary) {}

// DelayedNotifier calls fn on its own goroutine after a fixed delay.
type DelayedNotifier struct {
	delay time.Duration
	fn    func(WalletID, *BackupSummary)

	mu      sync.Mutex
	timers  []*time.Timer
	pending sync.WaitGroup
}

// NewDelayedNotifier returns a notifier that runs fn delay after each
// BackupLoaded call.
func NewDelayedNotifier(delay time.Duration, fn func(WalletID, *BackupSummary)) *DelayedNotifier {
	return &DelayedNotifier{delay: delay, fn: fn}
}

func (n *DelayedNotifier) BackupLoaded(id WalletID, backup *BackupSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending.Add(1)
	n.timers = append(n.timers, time.AfterFunc(n.delay, func() {
		defer n.pending.Done()
		n.fn(id, backup)
	}))
}

// Wait blocks until every scheduled notification has run.
func (n *DelayedNotifier) Wait() {
	n.pending.Wait()
}

// Stop cancels notifications that have not fired yet.
func (n *DelayedNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.timers {
		if t.Stop() {
			n.pending.Done()
		}
	}
	n.timers = nil
}
