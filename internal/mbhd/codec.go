package mbhd

import (
	"bytes"
	"fmt"
)

// Codec turns plaintext into the encrypted file format and back. Every
// encrypt call decrypts its own output before returning it; a mismatch is
// reported as ErrReversibility and no ciphertext is returned.
type Codec interface {
	// EncryptAndVerify encrypts with a key stretched from password.
	EncryptAndVerify(plaintext, password []byte) ([]byte, error)

	// EncryptAndVerifyWithKey encrypts with a raw key, e.g. a backup key
	// derived from the wallet seed.
	EncryptAndVerifyWithKey(plaintext, key []byte) ([]byte, error)

	// Decrypt reverses EncryptAndVerify. A wrong password or damaged
	// input yields ErrDecryption.
	Decrypt(ciphertext, password []byte) ([]byte, error)

	// DecryptWithKey reverses EncryptAndVerifyWithKey.
	DecryptWithKey(ciphertext, key []byte) ([]byte, error)
}

// VerifyRoundTrip decrypts ciphertext and compares the result with
// plaintext. Codec implementations call it before handing out ciphertext.
func VerifyRoundTrip(plaintext, ciphertext []byte, decrypt func([]byte) ([]byte, error)) error {
	rebuilt, err := decrypt(ciphertext)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReversibility, err)
	}
	if !bytes.Equal(plaintext, rebuilt) {
		return fmt.Errorf("%w: decrypted bytes differ from the original", ErrReversibility)
	}
	return nil
}
