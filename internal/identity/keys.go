package identity

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"mbhd-go/internal/zero"
)

// ErrUnusableSeed means the seed reduces to the zero scalar.
var ErrUnusableSeed = errors.New("seed does not yield a valid private key")

// KeyDeriver produces the private key at a given index.
type KeyDeriver interface {
	DeriveKey(index uint32) (*btcec.PrivateKey, error)
}

// seedScalar reads seed as a big-endian integer and reduces it modulo the
// secp256k1 group order.
func seedScalar(seed []byte) (*big.Int, error) {
	if len(seed) == 0 {
		return nil, errEmptySeed
	}
	n := new(big.Int).SetBytes(seed)
	defer zero.BigInt(n)
	k := new(big.Int).Mod(n, btcec.S256().N)
	if k.Sign() == 0 {
		return nil, ErrUnusableSeed
	}
	return k, nil
}

func privateKeyFromScalar(k *big.Int) *btcec.PrivateKey {
	var b [32]byte
	k.FillBytes(b[:])
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	zero.Bytes(b[:])
	return priv
}

// PrivateKeyFromSeed returns the first wallet key: the seed reduced
// modulo the curve order.
func PrivateKeyFromSeed(seed []byte) (*btcec.PrivateKey, error) {
	k, err := seedScalar(seed)
	if err != nil {
		return nil, err
	}
	defer zero.BigInt(k)
	return privateKeyFromScalar(k), nil
}

// OffsetDeriver derives key i as (first key + i) mod N. This is not a
// hierarchical scheme; HDDeriver is the standard alternative.
type OffsetDeriver struct {
	base *big.Int
}

// NewOffsetDeriver creates a deriver rooted at the seed scalar.
func NewOffsetDeriver(seed []byte) (*OffsetDeriver, error) {
	k, err := seedScalar(seed)
	if err != nil {
		return nil, err
	}
	return &OffsetDeriver{base: k}, nil
}

func (d *OffsetDeriver) DeriveKey(index uint32) (*btcec.PrivateKey, error) {
	k := new(big.Int).Add(d.base, new(big.Int).SetUint64(uint64(index)))
	k.Mod(k, btcec.S256().N)
	defer zero.BigInt(k)
	if k.Sign() == 0 {
		return nil, fmt.Errorf("key %d: %w", index, ErrUnusableSeed)
	}
	return privateKeyFromScalar(k), nil
}

// Zero wipes the base scalar.
func (d *OffsetDeriver) Zero() {
	zero.BigInt(d.base)
}

// HDDeriver derives BIP-32 keys on the external branch of account 0:
// m/0'/0/index.
type HDDeriver struct {
	branch *hdkeychain.ExtendedKey
}

// NewHDDeriver creates a BIP-32 deriver from seed for the given network.
func NewHDDeriver(seed []byte, params *chaincfg.Params) (*HDDeriver, error) {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	account, err := master.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("deriving account key: %w", err)
	}
	branch, err := account.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("deriving branch key: %w", err)
	}
	return &HDDeriver{branch: branch}, nil
}

func (d *HDDeriver) DeriveKey(index uint32) (*btcec.PrivateKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("key index %d out of range", index)
	}
	child, err := d.branch.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("deriving key %d: %w", index, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extracting key %d: %w", index, err)
	}
	return priv, nil
}

// NewKeyDeriver picks a deriver by name: "offset" (default) or "bip32".
func NewKeyDeriver(kind string, seed []byte) (KeyDeriver, error) {
	switch kind {
	case "offset", "":
		return NewOffsetDeriver(seed)
	case "bip32":
		return NewHDDeriver(seed, &chaincfg.MainNetParams)
	default:
		return nil, fmt.Errorf("unknown key derivation: %q", kind)
	}
}
