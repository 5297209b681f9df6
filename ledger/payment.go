package ledger

import (
	"encoding/json"
	"strconv"
)

// Payment is a native-asset transfer. Zero-valued Fee, Sequence and
// LastLedgerSequence fields are autofilled by the connector before signing.
type Payment struct {
	Account            string
	Destination        string
	AmountDrops        int64
	FeeDrops           int64
	Sequence           uint32
	LastLedgerSequence uint32
	SigningPubKey      string
	TxnSignature       string
}

// paymentJSON is the canonical wire form. Amounts travel as decimal strings
// of drops, per the ledger's JSON conventions.
type paymentJSON struct {
	TransactionType    string `json:"TransactionType"`
	Account            string `json:"Account"`
	Destination        string `json:"Destination"`
	Amount             string `json:"Amount"`
	Fee                string `json:"Fee"`
	Sequence           uint32 `json:"Sequence"`
	LastLedgerSequence uint32 `json:"LastLedgerSequence"`
	SigningPubKey      string `json:"SigningPubKey,omitempty"`
	TxnSignature       string `json:"TxnSignature,omitempty"`
}

func (p *Payment) wire(withSignature bool) paymentJSON {
	j := paymentJSON{
		TransactionType:    "Payment",
		Account:            p.Account,
		Destination:        p.Destination,
		Amount:             strconv.FormatInt(p.AmountDrops, 10),
		Fee:                strconv.FormatInt(p.FeeDrops, 10),
		Sequence:           p.Sequence,
		LastLedgerSequence: p.LastLedgerSequence,
		SigningPubKey:      p.SigningPubKey,
	}
	if withSignature {
		j.TxnSignature = p.TxnSignature
	}
	return j
}

// SigningBytes returns the canonical serialization the signature covers:
// everything but the signature itself.
func (p *Payment) SigningBytes() []byte {
	b, err := json.Marshal(p.wire(false))
	if err != nil {
		// Marshaling a struct of strings and integers cannot fail.
		panic(err)
	}
	return b
}

// Encode returns the full canonical serialization including the signature.
func (p *Payment) Encode() []byte {
	b, err := json.Marshal(p.wire(true))
	if err != nil {
		panic(err)
	}
	return b
}
