package mbhd

import (
	"errors"
	"fmt"
)

// Retention defaults.
const (
	DefaultRollingMax   = 4
	DefaultZipMax       = 60
	DefaultZipKeepFirst = 2
	DefaultZipKeepLast  = 8
)

// Retention bounds how many backups each store keeps.
type Retention struct {
	RollingMax   int
	ZipMax       int
	ZipKeepFirst int
	ZipKeepLast  int
}

// DefaultRetention returns the stock limits.
func DefaultRetention() Retention {
	return Retention{
		RollingMax:   DefaultRollingMax,
		ZipMax:       DefaultZipMax,
		ZipKeepFirst: DefaultZipKeepFirst,
		ZipKeepLast:  DefaultZipKeepLast,
	}
}

// Validate checks that the limits leave room for thinning to pick a
// candidate.
func (r Retention) Validate() error {
	if r.RollingMax < 1 {
		return errors.New("rolling backup maximum must be at least 1")
	}
	if r.ZipKeepFirst < 0 {
		return errors.New("zip keep-first must not be negative")
	}
	if r.ZipKeepLast < 1 {
		return errors.New("zip keep-last must be at least 1")
	}
	if r.ZipMax < r.ZipKeepFirst+r.ZipKeepLast+1 {
		return fmt.Errorf("zip maximum %d must exceed keep-first (%d) plus keep-last (%d)", r.ZipMax, r.ZipKeepFirst, r.ZipKeepLast)
	}
	return nil
}

// RetentionPolicy picks the backups to delete from a list sorted oldest
// first.
type RetentionPolicy interface {
	Select(backups []*BackupSummary) []*BackupSummary
}

// FIFOPolicy keeps the newest Max backups. One call removes at most two,
// which covers the single backup just added plus one left over from an
// earlier failed deletion.
type FIFOPolicy struct {
	Max int
}

func (p FIFOPolicy) Select(backups []*BackupSummary) []*BackupSummary {
	var out []*BackupSummary
	if len(backups) > p.Max {
		out = append(out, backups[0])
	}
	if len(backups) > p.Max+1 {
		out = append(out, backups[1])
	}
	return out
}

// ThinningPolicy removes one backup once Max is reached. The first
// KeepFirst and the last KeepLast are never touched. Among the rest, the
// backup with the smallest gap to its successor goes; on ties the
// earliest wins.
type ThinningPolicy struct {
	Max       int
	KeepFirst int
	KeepLast  int
}

func (p ThinningPolicy) Select(backups []*BackupSummary) []*BackupSummary {
	if len(backups) < p.Max {
		return nil
	}
	candidate := -1
	var smallest int64
	for i := p.KeepFirst; i < len(backups)-p.KeepLast; i++ {
		if i+1 >= len(backups) {
			break
		}
		delta := backups[i+1].Created.Sub(backups[i].Created).Milliseconds()
		if candidate == -1 || delta < smallest {
			candidate = i
			smallest = delta
		}
	}
	if candidate == -1 {
		return nil
	}
	return []*BackupSummary{backups[candidate]}
}
