// Package wsclient implements the ledger.Client interface over a WebSocket
// session to a ledger node, the node's primary API surface.
package wsclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

const (
	handshakeTimeout       = 10 * time.Second
	backoffInitialInterval = 500 * time.Millisecond
	backoffMaxInterval     = 3500 * time.Millisecond

	resultSuccess = "tesSUCCESS"
	statusSuccess = "success"
)

// Client is a single WebSocket session to one ledger node. One reader
// goroutine correlates responses to in-flight requests by id; writes are
// serialized by a mutex per the transport's single-writer rule.
type Client struct {
	url  string
	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *response

	done      chan struct{}
	closeOnce sync.Once
}

type response struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// Dial opens a session to the given WebSocket URL.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", url)
	}
	c := &Client{
		url:     url,
		conn:    conn,
		pending: make(map[string]chan *response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	log.Debug().Str("url", url).Msg("ledger session established")
	return c, nil
}

// Done is closed when the session is no longer usable.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the session down. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		c.conn.Close()
		c.failPending()
	}()
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			log.Debug().Err(err).Str("url", c.url).Msg("ledger session dropped")
			return
		}
		if resp.Type != "response" || resp.ID == "" {
			// Unsolicited stream message; nothing subscribes to those here.
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// call issues one request and waits for its correlated response.
func (c *Client) call(ctx context.Context, req map[string]interface{}) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, &Error{err: errors.New("session closed"), disconnected: true}
	default:
	}

	id := uuid.NewString()
	req["id"] = id
	ch := make(chan *response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, &Error{err: errors.Wrap(err, "writing request"), disconnected: true}
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, &Error{err: errors.New("session dropped awaiting response"), disconnected: true}
		}
		if resp.Status != statusSuccess {
			return nil, newAPIError(resp)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, &Error{err: ctx.Err(), timeout: true}
	case <-c.done:
		return nil, &Error{err: errors.New("session dropped awaiting response"), disconnected: true}
	}
}

// AccountInfo queries the account's state at the latest validated ledger.
func (c *Client) AccountInfo(ctx context.Context, address string) (*ledger.AccountInfo, error) {
	raw, err := c.call(ctx, map[string]interface{}{
		"command":      "account_info",
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
	raw, err := c.call(ctx, map[string]interface{}{
		"command":          "account_tx",
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
				Hash            string          `json:"hash"`
				TransactionType string          `json:"TransactionType"`
				Account         string          `json:"Account"`
				Destination     string          `json:"Destination"`
				Amount          json.RawMessage `json:"Amount"`
				LedgerIndex     uint32          `json:"ledger_index"`
			} `json:"tx"`
			Validated bool `json:"validated"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{err: errors.Wrap(err, "decoding account_tx result")}
	}
	records := make([]ledger.TxRecord, 0, len(result.Transactions))
	for _, entry := range result.Transactions {
		records = append(records, ledger.TxRecord{
			Hash:        entry.Tx.Hash,
			Type:        entry.Tx.TransactionType,
			Account:     entry.Tx.Account,
			Destination: entry.Tx.Destination,
			AmountDrops: decodeAmount(entry.Tx.Amount),
			LedgerIndex: entry.Tx.LedgerIndex,
			Validated:   entry.Validated,
		})
	}
	return records, nil
}

// decodeAmount handles the two wire forms of an amount: a decimal drop
// string for the native asset, or an object for issued assets (reported as
// zero drops here since the connector only deals in the native asset).
func decodeAmount(raw json.RawMessage) int64 {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	drops, err := ledger.ParseDrops(s)
	if err != nil {
		return 0
	}
	return drops
}

// ServerInfo reports the node's validated ledger height and reference fee.
func (c *Client) ServerInfo(ctx context.Context) (*ledger.ServerInfo, error) {
	raw, err := c.call(ctx, map[string]interface{}{"command": "server_info"})
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
	raw, err := c.call(ctx, map[string]interface{}{
		"command": "submit",
		"tx_blob": blob,
	})
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

// waitValidated polls the transaction until the network reports it in a
// validated ledger or terminally failed.
func (c *Client) waitValidated(ctx context.Context, hash string) (*ledger.TxReceipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitialInterval
	b.MaxInterval = backoffMaxInterval
	// No MaxElapsedTime: the caller's context bounds the overall wait.
	b.MaxElapsedTime = 0

	var receipt *ledger.TxReceipt
	var finalErr error
	err := backoff.Retry(func() error {
		raw, err := c.call(ctx, map[string]interface{}{
			"command":     "tx",
			"transaction": hash,
		})
		if err != nil {
			if lerr, ok := err.(ledger.Error); ok && lerr.IsNotFound() {
				// Accepted for relay but not yet in a ledger; keep polling.
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
