package wallet

import (
	"math/big"

	"github.com/pkg/errors"
)

// alphabet is the ledger's base58 dictionary. It differs from the Bitcoin
// alphabet: 'r' encodes zero, which is why addresses start with "r".
const alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var alphabetIndex = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		idx[alphabet[i]] = int8(i)
	}
	return idx
}()

var base58Radix = big.NewInt(58)

func encodeBase58(b []byte) string {
	n := new(big.Int).SetBytes(b)
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base58Radix, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty base58 string")
	}
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		d := alphabetIndex[s[i]]
		if d < 0 {
			return nil, errors.Errorf("invalid base58 character %q at offset %d", s[i], i)
		}
		n.Mul(n, base58Radix)
		n.Add(n, big.NewInt(int64(d)))
	}
	b := n.Bytes()
	// Restore leading zero bytes, one per leading zero digit.
	zeros := 0
	for zeros < len(s) && s[zeros] == alphabet[0] {
		zeros++
	}
	out := make([]byte, zeros+len(b))
	copy(out[zeros:], b)
	return out, nil
}
