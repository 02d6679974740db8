package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/klauspost/compress/flate"
)

// AgeKeyring holds an X25519 key pair on disk. The public key is stored
// in plaintext; the private key is encrypted with a passphrase using age's
// scrypt recipient. A Matcher uses it to read Payer requests.
type AgeKeyring struct {
	publicKeyPath  string
	privateKeyPath string
}

// NewAgeKeyring creates a keyring over the two key files.
func NewAgeKeyring(publicKeyPath, privateKeyPath string) *AgeKeyring {
	return &AgeKeyring{
		publicKeyPath:  publicKeyPath,
		privateKeyPath: privateKeyPath,
	}
}

// Setup generates a new key pair, writes the public key in plaintext and
// the private key encrypted with passphrase.
func (k *AgeKeyring) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(k.publicKeyPath), 0700); err != nil {
		return fmt.Errorf("creating public key directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(k.privateKeyPath), 0700); err != nil {
		return fmt.Errorf("creating private key directory: %w", err)
	}

	if err := os.WriteFile(k.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}

	if err := os.WriteFile(k.privateKeyPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// PublicKey returns the stored public key in its "age1..." form.
func (k *AgeKeyring) PublicKey() (string, error) {
	data, err := os.ReadFile(k.publicKeyPath)
	if err != nil {
		return "", fmt.Errorf("reading public key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return "", fmt.Errorf("parsing public key: %w", err)
	}
	return key, nil
}

// Unlock decrypts the private key with passphrase and returns a context
// that can read messages sealed to the public key.
func (k *AgeKeyring) Unlock(passphrase string) (*AgeDecryptionContext, error) {
	privData, err := os.ReadFile(k.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(privData), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(decReader)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}

	return &AgeDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured returns true if both key files exist.
func (k *AgeKeyring) IsConfigured() bool {
	if _, err := os.Stat(k.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(k.privateKeyPath); err != nil {
		return false
	}
	return true
}

// EncryptArmored compresses r, encrypts it to publicKey and writes the
// result to w as ASCII armor.
func EncryptArmored(r io.Reader, w io.Writer, publicKey string) error {
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(publicKey))
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	armorWriter := armor.NewWriter(w)
	encWriter, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	zw, err := flate.NewWriter(encWriter, flate.BestCompression)
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}

	if _, err := io.Copy(zw, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing compression: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("finalizing armor: %w", err)
	}
	return nil
}

// AgeDecryptionContext holds an unlocked age identity. The key lives in
// memory only.
type AgeDecryptionContext struct {
	identity age.Identity
}

// Decrypt reads an armored message produced by EncryptArmored from r and
// writes the plaintext to w.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(armor.NewReader(r), c.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	zr := flate.NewReader(decReader)
	defer zr.Close()

	if _, err := io.Copy(w, zr); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
