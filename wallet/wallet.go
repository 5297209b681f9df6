// Package wallet holds the connector's signing credential: family seed
// encoding, Ed25519 key derivation and payment signing.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // the ledger's address format mandates RIPEMD-160

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

const (
	seedVersion    = 0x21 // family seeds encode to "s..."
	accountVersion = 0x00 // account IDs encode to "r..."
	entropyLen     = 16
	checksumLen    = 4

	// Ed25519 public keys are carried with a one-byte type prefix.
	ed25519Prefix = 0xED
)

// Signing and hashing domain separators, prepended to the serialized
// transaction before signing and before computing the transaction ID.
var (
	signaturePrefix = []byte{0x53, 0x54, 0x58, 0x00} // "STX\0"
	txIDPrefix      = []byte{0x54, 0x58, 0x4E, 0x00} // "TXN\0"
)

// ErrInvalidSeed is returned when a supplied secret is not a valid
// base58-check encoded family seed.
var ErrInvalidSeed = errors.New("invalid family seed")

// Wallet is a single signing credential: an address and its Ed25519 keys.
// A Wallet is immutable after creation and safe for concurrent use.
type Wallet struct {
	address string
	seed    string
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
}

// FromSeed derives a Wallet deterministically from an encoded family seed.
// The same seed always yields the same address.
func FromSeed(seed string) (*Wallet, error) {
	entropy, err := decodeSeed(seed)
	if err != nil {
		return nil, err
	}
	return fromEntropy(entropy, seed), nil
}

// Generate creates a Wallet from fresh random entropy. The encoded seed is
// retained and available via Seed so the caller can keep the credential.
func Generate() (*Wallet, error) {
	entropy := make([]byte, entropyLen)
	if _, err := rand.Read(entropy); err != nil {
		return nil, errors.Wrap(err, "reading entropy")
	}
	seed := encodeSeed(entropy)
	return fromEntropy(entropy, seed), nil
}

func fromEntropy(entropy []byte, seed string) *Wallet {
	// The Ed25519 private key seed is the half-SHA-512 of the entropy.
	priv := ed25519.NewKeyFromSeed(sha512Half(entropy))
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		address: deriveAddress(pub),
		seed:    seed,
		pub:     pub,
		priv:    priv,
	}
}

// Address returns the account address ("r...").
func (w *Wallet) Address() string {
	return w.address
}

// Seed returns the encoded family seed this wallet was derived from.
func (w *Wallet) Seed() string {
	return w.seed
}

// PublicKeyHex returns the prefixed public key in upper-case hex, the form
// carried in a transaction's SigningPubKey field.
func (w *Wallet) PublicKeyHex() string {
	return strings.ToUpper(hex.EncodeToString(prefixedPublicKey(w.pub)))
}

// SignPayment fills the payment's SigningPubKey and TxnSignature fields,
// returning the serialized blob in upper-case hex and the transaction hash.
// The payment must already be fully autofilled.
func (w *Wallet) SignPayment(p *ledger.Payment) (blob string, hash string, err error) {
	if p.Account != "" && p.Account != w.address {
		return "", "", errors.Errorf("payment account %s does not match wallet %s", p.Account, w.address)
	}
	p.Account = w.address
	p.SigningPubKey = w.PublicKeyHex()
	p.TxnSignature = ""

	msg := append(append([]byte{}, signaturePrefix...), p.SigningBytes()...)
	sig := ed25519.Sign(w.priv, msg)
	p.TxnSignature = strings.ToUpper(hex.EncodeToString(sig))

	blobBytes := p.Encode()
	sum := sha512Half(append(append([]byte{}, txIDPrefix...), blobBytes...))
	return strings.ToUpper(hex.EncodeToString(blobBytes)), strings.ToUpper(hex.EncodeToString(sum)), nil
}

// Verify reports whether sig is a valid signature by this wallet over the
// payment's signing bytes.
func (w *Wallet) Verify(p *ledger.Payment, sig []byte) bool {
	msg := append(append([]byte{}, signaturePrefix...), p.SigningBytes()...)
	return ed25519.Verify(w.pub, msg, sig)
}

func prefixedPublicKey(pub ed25519.PublicKey) []byte {
	out := make([]byte, 0, len(pub)+1)
	out = append(out, ed25519Prefix)
	return append(out, pub...)
}

func deriveAddress(pub ed25519.PublicKey) string {
	inner := sha256.Sum256(prefixedPublicKey(pub))
	h := ripemd160.New()
	h.Write(inner[:])
	return encodeChecked(accountVersion, h.Sum(nil))
}

func encodeSeed(entropy []byte) string {
	return encodeChecked(seedVersion, entropy)
}

func decodeSeed(seed string) ([]byte, error) {
	payload, err := decodeChecked(seed)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSeed, err.Error())
	}
	if len(payload) != 1+entropyLen || payload[0] != seedVersion {
		return nil, ErrInvalidSeed
	}
	return payload[1:], nil
}

func encodeChecked(version byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+checksumLen)
	buf = append(buf, version)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return encodeBase58(buf)
}

func decodeChecked(s string) ([]byte, error) {
	raw, err := decodeBase58(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 1+checksumLen {
		return nil, errors.New("encoded payload too short")
	}
	payload := raw[:len(raw)-checksumLen]
	if !bytes.Equal(checksum(payload), raw[len(raw)-checksumLen:]) {
		return nil, errors.New("checksum mismatch")
	}
	return payload, nil
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:checksumLen]
}

func sha512Half(b []byte) []byte {
	sum := sha512.Sum512(b)
	return sum[:32]
}
