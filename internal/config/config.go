package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mbhd.
type Config struct {
	AppDataDir string           `toml:"app_data_dir"`
	LogDir     string           `toml:"log_dir"`
	Encryption EncryptionConfig `toml:"encryption"`
	Retention  RetentionConfig  `toml:"retention"`
	Cloud      CloudConfig      `toml:"cloud"`
	Database   DatabaseConfig   `toml:"database"`
	Brit       BritConfig       `toml:"brit"`
	Keys       KeysConfig       `toml:"keys"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// EncryptionConfig selects the backup file codec.
type EncryptionConfig struct {
	Type   string `toml:"type"`   // "aes" (default) or "test"
	Format string `toml:"format"` // "v1" (default) or "legacy"

	// ScryptN overrides the scrypt cost. Zero keeps the default that
	// existing backups were written with.
	ScryptN int `toml:"scrypt_n,omitempty"`
}

// RetentionConfig bounds the number of backups kept per store.
type RetentionConfig struct {
	RollingMax   int `toml:"rolling_max"`
	ZipMax       int `toml:"zip_max"`
	ZipKeepFirst int `toml:"zip_keep_first"`
	ZipKeepLast  int `toml:"zip_keep_last"`
}

// CloudConfig describes where cloud zip backups go.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CloudConfig struct {
	Type string `toml:"type"` // "" (none), "filesystem", "s3" or "memory"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// DatabaseConfig represents configuration for the backup catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BritConfig holds the key files of the BRIT protocol. A Payer needs the
// Matcher public key only; the private key is used when acting as Matcher.
type BritConfig struct {
	MatcherPublicKeyPath  string `toml:"matcher_public_key_path"`
	MatcherPrivateKeyPath string `toml:"matcher_private_key_path"`
}

// KeysConfig selects how wallet keys are derived from the seed.
type KeysConfig struct {
	Derivation string `toml:"derivation"` // "offset" (default) or "bip32"
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	// Ignore patterns are left out of zip backups.
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		AppDataDir: filepath.Join(baseDir, "wallets"),
		LogDir:     filepath.Join(baseDir, "log"),
		Encryption: EncryptionConfig{Type: "aes", Format: "v1"},
		Retention: RetentionConfig{
			RollingMax:   4,
			ZipMax:       60,
			ZipKeepFirst: 2,
			ZipKeepLast:  8,
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Brit: BritConfig{
			MatcherPublicKeyPath:  filepath.Join(baseDir, "keys", "matcher.pub"),
			MatcherPrivateKeyPath: filepath.Join(baseDir, "keys", "matcher.key"),
		},
		Keys: KeysConfig{Derivation: "offset"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
