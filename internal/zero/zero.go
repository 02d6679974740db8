// Package zero clears secrets held in memory once they are no longer
// needed.
package zero

import "math/big"

// Bytes sets all bytes in b to zero.
func Bytes(b []byte) {
	clear(b)
}

// BigInt sets all words of x to zero and x itself to zero.
func BigInt(x *big.Int) {
	if x == nil {
		return
	}
	clear(x.Bits())
	x.SetInt64(0)
}
