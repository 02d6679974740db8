package mbhd

import "errors"

// Error kinds. Operations wrap one of these together with the underlying
// cause, so callers can test with errors.Is against the kind while the
// message still carries the detail.
var (
	// ErrReversibility means an encrypted copy did not decrypt back to the
	// original bytes. The plaintext is always left in place.
	ErrReversibility = errors.New("encrypted copy is not reversible")

	// ErrDecryption covers a wrong password or key and damaged ciphertext.
	ErrDecryption = errors.New("decryption failed")

	// ErrWalletLoad is returned when no backup could be turned back into a
	// wallet.
	ErrWalletLoad = errors.New("wallet could not be loaded")

	// ErrNoBackups accompanies ErrWalletLoad when there was nothing to try.
	ErrNoBackups = errors.New("no backups found")

	ErrIO              = errors.New("i/o failure")
	ErrInvalidWalletID = errors.New("invalid wallet id")
	ErrWalletNotFound  = errors.New("wallet not found")
)
