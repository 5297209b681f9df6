// Package jsonrpc implements the ledger.Client interface over the node's
// HTTP JSON-RPC surface. It is interchangeable with the WebSocket client and
// useful where a long-lived session is unavailable.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

const (
	backoffInitialInterval = 500 * time.Millisecond
	backoffMaxInterval     = 3500 * time.Millisecond

	resultSuccess = "tesSUCCESS"
)

// Client issues one HTTP POST per request. It carries no session state, so
// Done only signals an explicit Close.
type Client struct {
	url        string
	httpClient *http.Client

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Client for the given JSON-RPC URL. A nil httpClient falls
// back to http.DefaultClient.
func New(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
		done:       make(chan struct{}),
	}
}

// Done is closed by Close. The transport itself never drops unsolicited.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close marks the client unusable. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, &Error{err: errors.New("client closed"), disconnected: true}
	default:
	}

	body, err := json.Marshal(rpcRequest{Method: method, Params: []interface{}{params}})
	if err != nil {
		return nil, &Error{err: errors.Wrap(err, "encoding request")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{err: errors.Wrap(err, "building request")}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{err: err, timeout: true}
		}
		return nil, &Error{err: errors.Wrapf(err, "posting to %s", c.url), disconnected: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			err:     errors.Errorf("node returned status %d", resp.StatusCode),
			timeout: resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusServiceUnavailable,
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{err: errors.Wrap(err, "reading response")}
	}
	var envelope rpcEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding response envelope")}
	}
	var status rpcStatus
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding response status")}
	}
	if status.Status != "success" {
		return nil, newAPIError(status)
	}
	return envelope.Result, nil
}

// AccountInfo queries the account's state at the latest validated ledger.
func (c *Client) AccountInfo(ctx context.Context, address string) (*ledger.AccountInfo, error) {
	raw, err := c.call(ctx, "account_info", map[string]interface{}{
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		AccountData struct {
			Account  string `json:"Account"`
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding account_info result")}
	}
	drops, err := ledger.ParseDrops(result.AccountData.Balance)
	if err != nil {
		return nil, &Error{err: err}
	}
	return &ledger.AccountInfo{
		Address:      result.AccountData.Account,
		BalanceDrops: drops,
		Sequence:     result.AccountData.Sequence,
		LedgerIndex:  result.LedgerIndex,
	}, nil
}

// AccountTransactions returns up to limit transactions, most recent first.
func (c *Client) AccountTransactions(ctx context.Context, address string, limit int) ([]ledger.TxRecord, error) {
	raw, err := c.call(ctx, "account_tx", map[string]interface{}{
		"account":          address,
		"limit":            limit,
		"forward":          false,
		"ledger_index_min": -1,
		"ledger_index_max": -1,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Transactions []struct {
			Tx struct {
				Hash            string `json:"hash"`
				TransactionType string `json:"TransactionType"`
				Account         string `json:"Account"`
				Destination     string `json:"Destination"`
				Amount          string `json:"Amount"`
				LedgerIndex     uint32 `json:"ledger_index"`
			} `json:"tx"`
			Validated bool `json:"validated"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding account_tx result")}
	}
	records := make([]ledger.TxRecord, 0, len(result.Transactions))
	for _, entry := range result.Transactions {
		drops, _ := ledger.ParseDrops(entry.Tx.Amount)
		records = append(records, ledger.TxRecord{
			Hash:        entry.Tx.Hash,
			Type:        entry.Tx.TransactionType,
			Account:     entry.Tx.Account,
			Destination: entry.Tx.Destination,
			AmountDrops: drops,
			LedgerIndex: entry.Tx.LedgerIndex,
			Validated:   entry.Validated,
		})
	}
	return records, nil
}

// ServerInfo reports the node's validated ledger height and reference fee.
func (c *Client) ServerInfo(ctx context.Context) (*ledger.ServerInfo, error) {
	raw, err := c.call(ctx, "server_info", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Info struct {
			ValidatedLedger struct {
				Seq        uint32  `json:"seq"`
				BaseFeeXRP float64 `json:"base_fee_xrp"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding server_info result")}
	}
	return &ledger.ServerInfo{
		ValidatedLedger: result.Info.ValidatedLedger.Seq,
		BaseFeeDrops:    ledger.DropsFromUnits(result.Info.ValidatedLedger.BaseFeeXRP),
	}, nil
}

// Submit sends the signed blob and blocks until the transaction with the
// given hash is validated, fails, or ctx expires.
func (c *Client) Submit(ctx context.Context, blob string, hash string) (*ledger.TxReceipt, error) {
	raw, err := c.call(ctx, "submit", map[string]interface{}{"tx_blob": blob})
	if err != nil {
		return nil, err
	}
	var result struct {
		EngineResult string `json:"engine_result"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding submit result")}
	}
	if result.EngineResult != resultSuccess && result.EngineResult != "terQUEUED" {
		return nil, &Error{
			err:  errors.Errorf("transaction rejected: %s", result.EngineResult),
			code: result.EngineResult,
		}
	}
	return c.waitValidated(ctx, hash)
}

func (c *Client) waitValidated(ctx context.Context, hash string) (*ledger.TxReceipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitialInterval
	b.MaxInterval = backoffMaxInterval
	b.MaxElapsedTime = 0

	var receipt *ledger.TxReceipt
	var finalErr error
	err := backoff.Retry(func() error {
		raw, err := c.call(ctx, "tx", map[string]interface{}{"transaction": hash})
		if err != nil {
			if lerr, ok := err.(ledger.Error); ok && lerr.IsNotFound() {
				return errors.New("transaction not yet validated")
			}
			finalErr = err
			return backoff.Permanent(err)
		}
		var result struct {
			Validated   bool   `json:"validated"`
			LedgerIndex uint32 `json:"ledger_index"`
			Meta        struct {
				TransactionResult string `json:"TransactionResult"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			finalErr = &Error{err: errors.Wrap(err, "decoding tx result")}
			return backoff.Permanent(finalErr)
		}
		if !result.Validated {
			return errors.New("transaction not yet validated")
		}
		if result.Meta.TransactionResult != resultSuccess {
			finalErr = &Error{
				err:  errors.Errorf("transaction failed: %s", result.Meta.TransactionResult),
				code: result.Meta.TransactionResult,
			}
			return backoff.Permanent(finalErr)
		}
		receipt = &ledger.TxReceipt{
			Hash:        hash,
			Result:      result.Meta.TransactionResult,
			Validated:   true,
			LedgerIndex: result.LedgerIndex,
		}
		return nil
	}, backoff.WithContext(b, ctx))

	if err != nil {
		if finalErr != nil {
			return nil, finalErr
		}
		return nil, &Error{err: errors.Errorf("timeout waiting for transaction %s to validate", hash), timeout: true}
	}
	return receipt, nil
}

// Error wraps a transport or API failure and implements ledger.Error.
type Error struct {
	err          error
	code         string
	notFound     bool
	timeout      bool
	disconnected bool
}

func newAPIError(status rpcStatus) *Error {
	e := &Error{
		err:  errors.Errorf("%s: %s", status.Error, status.ErrorMessage),
		code: status.Error,
	}
	switch status.Error {
	case "actNotFound", "txnNotFound", "entryNotFound", "lgrNotFound":
		e.notFound = true
	case "tooBusy", "noNetwork":
		e.timeout = true
	}
	return e
}

// IsNotFound returns true if the requested resource does not exist.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsTimeout returns true if the request timed out or the node was overloaded.
func (e *Error) IsTimeout() bool { return e.timeout }

// IsDisconnected returns true if the node was unreachable.
func (e *Error) IsDisconnected() bool { return e.disconnected }

// ResultCode returns the node's error or engine result code, if any.
func (e *Error) ResultCode() string { return e.code }

// Error implements the error interface.
func (e *Error) Error() string { return e.err.Error() }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }
