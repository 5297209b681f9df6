package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

func TestGenerateProducesUsableSeed(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(w.Address(), "r"), "address should start with r, got %s", w.Address())
	assert.True(t, strings.HasPrefix(w.Seed(), "s"), "seed should start with s, got %s", w.Seed())

	reloaded, err := FromSeed(w.Seed())
	require.NoError(t, err)
	assert.Equal(t, w.Address(), reloaded.Address())
}

func TestFromSeedDeterministic(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	first, err := FromSeed(w.Seed())
	require.NoError(t, err)
	second, err := FromSeed(w.Seed())
	require.NoError(t, err)

	assert.Equal(t, first.Address(), second.Address())
	assert.Equal(t, first.PublicKeyHex(), second.PublicKeyHex())
}

func TestFromSeedRejectsGarbage(t *testing.T) {
	for _, seed := range []string{"", "not a seed", "sssssssssssssssssssssssssss", "0OIl"} {
		_, err := FromSeed(seed)
		assert.ErrorIs(t, err, ErrInvalidSeed, "seed %q", seed)
	}
}

func TestFromSeedRejectsCorruptedChecksum(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	seed := w.Seed()

	// Flip one character in the middle to another alphabet character.
	mid := len(seed) / 2
	replacement := byte('r')
	if seed[mid] == replacement {
		replacement = 'p'
	}
	corrupted := seed[:mid] + string(replacement) + seed[mid+1:]

	_, err = FromSeed(corrupted)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestSignPaymentVerifies(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	p := &ledger.Payment{
		Destination:        "rDestinationDoesNotNeedToExistForSigning",
		AmountDrops:        2_500_000,
		FeeDrops:           12,
		Sequence:           7,
		LastLedgerSequence: 120,
	}
	blob, hash, err := w.SignPayment(p)
	require.NoError(t, err)

	assert.Equal(t, w.Address(), p.Account)
	assert.Equal(t, w.PublicKeyHex(), p.SigningPubKey)
	assert.NotEmpty(t, blob)
	assert.Len(t, hash, 64)
	assert.Equal(t, strings.ToUpper(hash), hash)

	sig, err := hex.DecodeString(p.TxnSignature)
	require.NoError(t, err)
	assert.True(t, w.Verify(p, sig))
}

func TestSignPaymentDeterministic(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	build := func() *ledger.Payment {
		return &ledger.Payment{
			Destination:        "rSomeDestination",
			AmountDrops:        1_000_000,
			FeeDrops:           10,
			Sequence:           1,
			LastLedgerSequence: 50,
		}
	}
	blob1, hash1, err := w.SignPayment(build())
	require.NoError(t, err)
	blob2, hash2, err := w.SignPayment(build())
	require.NoError(t, err)

	assert.Equal(t, blob1, blob2)
	assert.Equal(t, hash1, hash2)
}

func TestSignPaymentRejectsForeignAccount(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	p := &ledger.Payment{
		Account:     other.Address(),
		Destination: "rSomeDestination",
		AmountDrops: 1,
	}
	_, _, err = w.SignPayment(p)
	assert.Error(t, err)
}

func TestBase58RoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x00},
		{0x00, 0x00, 0x01},
		{0xFF, 0xFE, 0xFD},
		{0x21, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10},
	}
	for _, b := range cases {
		decoded, err := decodeBase58(encodeBase58(b))
		require.NoError(t, err)
		assert.Equal(t, b, decoded)
	}
}

func TestDecodeBase58RejectsForeignCharacters(t *testing.T) {
	_, err := decodeBase58("0OIl+")
	assert.Error(t, err)
}
