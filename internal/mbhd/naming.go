package mbhd

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	WalletRootPrefix       = "mbhd-"
	WalletFileName         = "mbhd.wallet"
	EncryptedFileExtension = ".aes"
	WalletSummaryFileName  = "mbhd.toml"
	RollingBackupDirectory = "rolling-backup"
	ZipBackupDirectory     = "zip-backup"

	// TimestampLayout is the UTC yyyyMMddHHmmss stamp embedded in backup names.
	TimestampLayout = "20060102150405"
)

// WalletDirectoryPattern matches the directory name of a wallet root.
var WalletDirectoryPattern = regexp.MustCompile(`^mbhd-[0-9a-f]{8}(-[0-9a-f]{8}){4}$`)

// FormatTimestamp renders t as a backup timestamp in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a backup timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing backup timestamp %q: %w", s, err)
	}
	return t, nil
}

// BackupNaming describes how the backups of one store are named. Every
// name is prefix + timestamp + suffix.
type BackupNaming struct {
	prefix  string
	suffix  string
	pattern *regexp.Regexp
}

// RollingNaming names rolling backups: mbhd-<timestamp>.wallet.aes.
func RollingNaming() *BackupNaming {
	return newBackupNaming(WalletRootPrefix, ".wallet"+EncryptedFileExtension)
}

// ZipNaming names zip backups of one wallet: mbhd-<walletId>-<timestamp>.zip.aes.
func ZipNaming(id WalletID) *BackupNaming {
	return newBackupNaming(WalletRootPrefix+id.String()+"-", ".zip"+EncryptedFileExtension)
}

func newBackupNaming(prefix, suffix string) *BackupNaming {
	return &BackupNaming{
		prefix:  prefix,
		suffix:  suffix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d{14})` + regexp.QuoteMeta(suffix) + `$`),
	}
}

// Name returns the backup name for time t.
func (n *BackupNaming) Name(t time.Time) string {
	return n.prefix + FormatTimestamp(t) + n.suffix
}

// PlaintextName is Name without the encrypted file extension.
func (n *BackupNaming) PlaintextName(t time.Time) string {
	return strings.TrimSuffix(n.Name(t), EncryptedFileExtension)
}

// Matches reports whether name belongs to this store.
func (n *BackupNaming) Matches(name string) bool {
	return n.pattern.MatchString(name)
}

// Timestamp extracts the embedded timestamp from a matching name.
func (n *BackupNaming) Timestamp(name string) (time.Time, error) {
	m := n.pattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, fmt.Errorf("%q does not match %s", name, n.pattern)
	}
	return ParseTimestamp(m[1])
}

// WalletIDFromZipName recovers the wallet id embedded in a zip backup name,
// e.g. mbhd-66666666-77777777-88888888-99999999-aaaaaaaa-20140101000000.zip.aes.
func WalletIDFromZipName(name string) (WalletID, error) {
	base := strings.TrimPrefix(name, WalletRootPrefix)
	base = strings.TrimSuffix(base, ".zip"+EncryptedFileExtension)
	const formattedLength = 2*WalletIDLength + 4
	if len(base) < formattedLength {
		return WalletID{}, fmt.Errorf("%w: cannot find wallet id in %q", ErrInvalidWalletID, name)
	}
	return ParseWalletID(base[:formattedLength])
}
