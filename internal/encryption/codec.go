package encryption

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/zero"
)

// Format selects how FileCodec writes files. Reading always accepts both.
type Format string

const (
	// FormatV1 writes a header with a random salt and IV and appends an
	// HMAC-SHA256 over the whole file.
	FormatV1 Format = "v1"

	// FormatLegacy writes bare AES-CBC output with the fixed salt and IV,
	// readable by older wallets.
	FormatLegacy Format = "legacy"
)

var v1Magic = []byte("MBHDAES1")

const (
	modePassword byte = 0x01
	modeRawKey   byte = 0x02

	saltLength = 16
	ivLength   = 16
	macLength  = sha256.Size
)

var v1Info = []byte("mbhd file v1")

// FileCodec implements mbhd.Codec with AES-256-CBC.
type FileCodec struct {
	format Format
	params ScryptParams

	// corrupt, when set, damages the ciphertext handed to the
	// round-trip check.
	corrupt func([]byte)
}

var _ mbhd.Codec = (*FileCodec)(nil)

// NewFileCodec returns a codec writing format with the given scrypt cost.
func NewFileCodec(format Format, params ScryptParams) (*FileCodec, error) {
	switch format {
	case FormatV1, FormatLegacy:
	case "":
		format = FormatV1
	default:
		return nil, fmt.Errorf("unknown file format: %q", format)
	}
	if params == (ScryptParams{}) {
		params = DefaultScryptParams
	}
	return &FileCodec{format: format, params: params}, nil
}

func (c *FileCodec) EncryptAndVerify(plaintext, password []byte) ([]byte, error) {
	if c.format == FormatLegacy {
		key, err := c.params.Key(password, LegacySalt)
		if err != nil {
			return nil, err
		}
		defer zero.Bytes(key)
		return c.sealLegacy(plaintext, key)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	key, err := c.params.Key(password, salt)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(key)
	return c.sealV1(plaintext, key, modePassword, salt)
}

func (c *FileCodec) EncryptAndVerifyWithKey(plaintext, key []byte) ([]byte, error) {
	if c.format == FormatLegacy {
		return c.sealLegacy(plaintext, key)
	}
	return c.sealV1(plaintext, key, modeRawKey, nil)
}

func (c *FileCodec) Decrypt(ciphertext, password []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, v1Magic) {
		key, err := c.params.Key(password, LegacySalt)
		if err != nil {
			return nil, err
		}
		defer zero.Bytes(key)
		return openLegacy(ciphertext, key)
	}

	h, err := parseV1(ciphertext)
	if err != nil {
		return nil, err
	}
	if h.mode != modePassword {
		return nil, fmt.Errorf("%w: file is sealed with a key, not a password", mbhd.ErrDecryption)
	}
	key, err := c.params.Key(password, h.salt)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(key)
	return h.open(ciphertext, key)
}

func (c *FileCodec) DecryptWithKey(ciphertext, key []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, v1Magic) {
		return openLegacy(ciphertext, key)
	}
	h, err := parseV1(ciphertext)
	if err != nil {
		return nil, err
	}
	if h.mode != modeRawKey {
		return nil, fmt.Errorf("%w: file is sealed with a password, not a key", mbhd.ErrDecryption)
	}
	return h.open(ciphertext, key)
}

func (c *FileCodec) sealLegacy(plaintext, key []byte) ([]byte, error) {
	out, err := EncryptCBC(plaintext, key, LegacyIV)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if err := c.verify(plaintext, out, func(b []byte) ([]byte, error) { return openLegacy(b, key) }); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileCodec) sealV1(plaintext, key []byte, mode byte, salt []byte) ([]byte, error) {
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}
	encKey, macKey, err := splitKey(key, salt)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(encKey)
	defer zero.Bytes(macKey)

	body, err := EncryptCBC(plaintext, encKey, iv)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}

	out := make([]byte, 0, len(v1Magic)+1+len(salt)+ivLength+len(body)+macLength)
	out = append(out, v1Magic...)
	out = append(out, mode)
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, body...)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	out = mac.Sum(out)

	err = c.verify(plaintext, out, func(b []byte) ([]byte, error) {
		h, err := parseV1(b)
		if err != nil {
			return nil, err
		}
		return h.open(b, key)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// verify runs the round-trip check on a copy of out, so the corrupt hook
// cannot alter what is returned.
func (c *FileCodec) verify(plaintext, out []byte, decrypt func([]byte) ([]byte, error)) error {
	check := out
	if c.corrupt != nil {
		check = bytes.Clone(out)
		c.corrupt(check)
	}
	return mbhd.VerifyRoundTrip(plaintext, check, decrypt)
}

func openLegacy(ciphertext, key []byte) ([]byte, error) {
	out, err := DecryptCBC(ciphertext, key, LegacyIV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mbhd.ErrDecryption, err)
	}
	return out, nil
}

type v1Header struct {
	mode byte
	salt []byte
	iv   []byte
	body []byte
	mac  []byte
}

func parseV1(b []byte) (*v1Header, error) {
	rest := b[len(v1Magic):]
	if len(rest) < 1 {
		return nil, fmt.Errorf("%w: truncated header", mbhd.ErrDecryption)
	}
	h := &v1Header{mode: rest[0]}
	rest = rest[1:]

	switch h.mode {
	case modePassword:
		if len(rest) < saltLength {
			return nil, fmt.Errorf("%w: truncated salt", mbhd.ErrDecryption)
		}
		h.salt, rest = rest[:saltLength], rest[saltLength:]
	case modeRawKey:
	default:
		return nil, fmt.Errorf("%w: unknown key mode %#x", mbhd.ErrDecryption, h.mode)
	}

	if len(rest) < ivLength+macLength {
		return nil, fmt.Errorf("%w: truncated body", mbhd.ErrDecryption)
	}
	h.iv, rest = rest[:ivLength], rest[ivLength:]
	h.body, h.mac = rest[:len(rest)-macLength], rest[len(rest)-macLength:]
	return h, nil
}

// open authenticates the whole file and decrypts the body.
func (h *v1Header) open(file, key []byte) ([]byte, error) {
	encKey, macKey, err := splitKey(key, h.salt)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(encKey)
	defer zero.Bytes(macKey)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(file[:len(file)-macLength])
	if !hmac.Equal(mac.Sum(nil), h.mac) {
		return nil, fmt.Errorf("%w: authentication failed", mbhd.ErrDecryption)
	}
	out, err := DecryptCBC(h.body, encKey, h.iv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mbhd.ErrDecryption, err)
	}
	return out, nil
}

func splitKey(key, salt []byte) (encKey, macKey []byte, err error) {
	r := hkdf.New(sha256.New, key, salt, v1Info)
	material := make([]byte, 2*KeyLength)
	if _, err := io.ReadFull(r, material); err != nil {
		return nil, nil, fmt.Errorf("expanding key: %w", err)
	}
	return material[:KeyLength], material[KeyLength:], nil
}
