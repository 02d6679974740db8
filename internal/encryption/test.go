package encryption

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"mbhd-go/internal/mbhd"
)

// testHeader is prepended by TestCodec so that output clearly differs from
// the plaintext while staying deterministic and cheap to reverse.
var testHeader = []byte("MBHDTST\x00")

const testFingerprintLength = 8

// TestCodec is a fast, deterministic codec for tests. Output is the
// header, a fingerprint of the secret and the plaintext. Decrypting with
// a different secret fails with mbhd.ErrDecryption.
type TestCodec struct {
	// Corrupt flips a byte of every ciphertext before it is verified,
	// so every encrypt call fails with mbhd.ErrReversibility.
	Corrupt bool
}

var _ mbhd.Codec = (*TestCodec)(nil)

// NewTestCodec creates a new TestCodec.
func NewTestCodec() *TestCodec {
	return &TestCodec{}
}

func (c *TestCodec) EncryptAndVerify(plaintext, password []byte) ([]byte, error) {
	return c.seal(plaintext, password)
}

func (c *TestCodec) EncryptAndVerifyWithKey(plaintext, key []byte) ([]byte, error) {
	return c.seal(plaintext, key)
}

func (c *TestCodec) Decrypt(ciphertext, password []byte) ([]byte, error) {
	return c.open(ciphertext, password)
}

func (c *TestCodec) DecryptWithKey(ciphertext, key []byte) ([]byte, error) {
	return c.open(ciphertext, key)
}

func (c *TestCodec) seal(plaintext, secret []byte) ([]byte, error) {
	out := make([]byte, 0, len(testHeader)+testFingerprintLength+len(plaintext))
	out = append(out, testHeader...)
	out = append(out, fingerprint(secret)...)
	out = append(out, plaintext...)

	check := out
	if c.Corrupt {
		check = bytes.Clone(out)
		check[len(check)-1] ^= 0xff
	}
	if err := mbhd.VerifyRoundTrip(plaintext, check, func(b []byte) ([]byte, error) { return c.open(b, secret) }); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TestCodec) open(ciphertext, secret []byte) ([]byte, error) {
	prefix := len(testHeader) + testFingerprintLength
	if len(ciphertext) < prefix || !bytes.Equal(ciphertext[:len(testHeader)], testHeader) {
		return nil, fmt.Errorf("%w: invalid test encryption header", mbhd.ErrDecryption)
	}
	if !bytes.Equal(ciphertext[len(testHeader):prefix], fingerprint(secret)) {
		return nil, fmt.Errorf("%w: wrong secret", mbhd.ErrDecryption)
	}
	return bytes.Clone(ciphertext[prefix:]), nil
}

func fingerprint(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:testFingerprintLength]
}
