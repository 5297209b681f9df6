// Package ledger defines the client abstraction the connector talks through.
// It names the handful of primitives the connector needs from a ledger node
// so that transports (WebSocket, JSON-RPC) stay interchangeable.
package ledger

import "context"

// Error is implemented by transport errors so callers can branch on the
// failure class without depending on a concrete transport package.
type Error interface {
	error
	// IsNotFound returns true if the requested resource does not exist on
	// the ledger (e.g. an unfunded account).
	IsNotFound() bool
	// IsTimeout returns true if the request or validation wait timed out.
	IsTimeout() bool
	// IsDisconnected returns true if the underlying session dropped.
	IsDisconnected() bool
	// ResultCode returns the engine result code for a rejected transaction,
	// or an empty string if none applies.
	ResultCode() string
}

// Client is the connector's view of one ledger node session. A Client is
// created connected; once Done is closed it is dead and must be replaced.
type Client interface {
	// AccountInfo returns the account's state at the latest validated ledger.
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// AccountTransactions returns up to limit of the account's transactions,
	// most recent first.
	AccountTransactions(ctx context.Context, address string, limit int) ([]TxRecord, error)

	// ServerInfo reports the node's view of the network, used for autofill.
	ServerInfo(ctx context.Context) (*ServerInfo, error)

	// Submit sends a signed transaction blob and blocks until the
	// transaction with the given hash is validated, fails, or ctx expires.
	Submit(ctx context.Context, blob string, hash string) (*TxReceipt, error)

	// Close tears the session down. Safe to call more than once.
	Close() error

	// Done is closed when the session drops for any reason, including Close.
	Done() <-chan struct{}
}

// AccountInfo is the subset of account state the connector consumes.
type AccountInfo struct {
	Address      string
	BalanceDrops int64
	Sequence     uint32
	LedgerIndex  uint32
}

// ServerInfo carries the network state needed to autofill a transaction.
type ServerInfo struct {
	ValidatedLedger uint32
	BaseFeeDrops    int64
}

// TxReceipt is the final result of a submitted transaction.
type TxReceipt struct {
	Hash        string `json:"hash"`
	Result      string `json:"result"`
	Validated   bool   `json:"validated"`
	LedgerIndex uint32 `json:"ledger_index"`
}

// TxRecord is one entry of an account's transaction history.
type TxRecord struct {
	Hash        string
	Type        string
	Account     string
	Destination string
	AmountDrops int64
	LedgerIndex uint32
	Validated   bool
}
