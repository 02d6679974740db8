package encryption

import (
	"fmt"

	"mbhd-go/internal/config"
	"mbhd-go/internal/mbhd"
)

// NewCodecFromConfig creates a Codec based on the configuration type.
func NewCodecFromConfig(cfg config.EncryptionConfig) (mbhd.Codec, error) {
	switch cfg.Type {
	case "aes", "":
		params := DefaultScryptParams
		if cfg.ScryptN != 0 {
			params.N = cfg.ScryptN
		}
		return NewFileCodec(Format(cfg.Format), params)
	case "test":
		return NewTestCodec(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

// NewMatcherKeyringFromConfig creates the keyring holding the Matcher key
// pair.
func NewMatcherKeyringFromConfig(cfg config.BritConfig) *AgeKeyring {
	return NewAgeKeyring(cfg.MatcherPublicKeyPath, cfg.MatcherPrivateKeyPath)
}
