package mbhd

// SeedKeys derives the values the backup layer needs from a wallet seed.
type SeedKeys interface {
	WalletID(seed []byte) (WalletID, error)

	// BackupKey is the AES key that encrypts zip backups. It depends on
	// the seed only, so a seed phrase is enough to restore.
	BackupKey(seed []byte) ([]byte, error)
}

// SeedConverter turns a recovery phrase into a wallet seed.
type SeedConverter interface {
	ToSeed(words []string) ([]byte, error)
}
