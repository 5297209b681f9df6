// Package connector manages a single connection to a ledger network: it owns
// one signing credential, establishes the session with bounded retry, and
// exposes balance lookup, transaction submission and history retrieval.
package connector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger/wsclient"
	"github.com/bustedglowsticks/quantum-yield-empire-sub001/wallet"
)

// lastLedgerOffset is added to the validated ledger index when autofilling
// LastLedgerSequence, giving the network a bounded window to validate.
const lastLedgerOffset = 20

// State is the connector's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is a point-in-time snapshot of the connector.
type Status struct {
	State    State
	Endpoint string // empty until a Connect has been attempted
	Address  string // empty until a credential is loaded
	Retries  int    // failed dial attempts of the current/last Connect
}

// Connected reports whether a session is live.
func (s Status) Connected() bool { return s.State == StateConnected }

// Connector holds at most one live ledger session and exactly one signing
// credential. Instances are independent; a single instance is safe for
// concurrent use, with submissions serialized internally.
type Connector struct {
	log            zerolog.Logger
	dial           DialFunc
	httpClient     *http.Client
	maxAttempts    int
	retryInterval  time.Duration
	connectTimeout time.Duration
	requestTimeout time.Duration
	submitTimeout  time.Duration
	limiter        *rate.Limiter

	mu       sync.Mutex
	state    State
	endpoint Endpoint
	client   ledger.Client
	wallet   *wallet.Wallet
	retries  int
	session  uint64 // bumped per session so stale watchers are ignored

	submitMu sync.Mutex
}

// New creates a disconnected Connector.
func New(opts ...Option) *Connector {
	c := &Connector{
		log:            log.Logger,
		httpClient:     http.DefaultClient,
		maxAttempts:    DefaultMaxConnectAttempts,
		retryInterval:  DefaultRetryInterval,
		connectTimeout: DefaultConnectTimeout,
		requestTimeout: DefaultRequestTimeout,
		submitTimeout:  DefaultSubmitTimeout,
	}
	c.dial = func(ctx context.Context, url string) (ledger.Client, error) {
		return wsclient.Dial(ctx, url)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a session to the named network. If secret is non-empty
// the credential is derived from it deterministically; otherwise a fresh one
// is generated and, on faucet-bearing networks, funded best-effort. Dial
// failures are retried up to the configured attempt budget with a fixed
// delay; exhaustion surfaces a ConnectError carrying the last cause.
func (c *Connector) Connect(ctx context.Context, endpointName, secret string) (Status, error) {
	ep, err := LookupEndpoint(endpointName)
	if err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return c.Status(), ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.endpoint = ep
	c.retries = 0
	c.mu.Unlock()

	w, generated, err := c.loadWallet(secret)
	if err != nil {
		c.setDisconnected()
		return c.Status(), err
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	client, attempts, err := c.dialWithRetry(ctx, ep)
	if err != nil {
		c.setDisconnected()
		return c.Status(), &ConnectError{Endpoint: ep.Name, Attempts: attempts, Err: err}
	}

	c.mu.Lock()
	c.client = client
	c.wallet = w
	c.state = StateConnected
	c.retries = 0
	c.session++
	session := c.session
	c.mu.Unlock()
	go c.watchSession(client, session)

	if generated && ep.HasFaucet() {
		if ferr := c.fundFromFaucet(ctx, ep.FaucetURL, w.Address()); ferr != nil {
			// Best effort only: the account simply starts at zero balance.
			c.log.Warn().Err(ferr).Str("endpoint", ep.Name).Str("address", w.Address()).
				Msg("faucet funding failed")
		}
	}

	c.log.Info().Str("endpoint", ep.Name).Str("address", w.Address()).
		Msg("connected to ledger network")
	return c.Status(), nil
}

func (c *Connector) loadWallet(secret string) (*wallet.Wallet, bool, error) {
	if secret != "" {
		w, err := wallet.FromSeed(secret)
		if err != nil {
			return nil, false, errors.Wrap(err, "loading credential")
		}
		return w, false, nil
	}
	w, err := wallet.Generate()
	if err != nil {
		return nil, false, errors.Wrap(err, "generating credential")
	}
	return w, true, nil
}

func (c *Connector) dialWithRetry(ctx context.Context, ep Endpoint) (ledger.Client, int, error) {
	var client ledger.Client
	attempts := 0
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), uint64(c.maxAttempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		attempts++
		dialed, derr := c.dial(ctx, ep.URL)
		if derr != nil {
			c.mu.Lock()
			c.retries++
			retries := c.retries
			c.mu.Unlock()
			c.log.Warn().Err(derr).Str("endpoint", ep.Name).Int("attempt", retries).
				Msg("dial attempt failed")
			return derr
		}
		client = dialed
		return nil
	}, bo)
	if err != nil {
		return nil, attempts, err
	}
	return client, attempts, nil
}

// watchSession flips the connector to Disconnected when the session drops
// out from under it. A session bump from Disconnect or a reconnect makes the
// stale watcher a no-op.
func (c *Connector) watchSession(client ledger.Client, session uint64) {
	<-client.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session || c.state != StateConnected {
		return
	}
	c.state = StateDisconnected
	c.client = nil
	c.log.Warn().Str("endpoint", c.endpoint.Name).Msg("ledger session dropped")
}

func (c *Connector) setDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// liveSession returns the current client and credential, or ErrNotConnected.
func (c *Connector) liveSession() (ledger.Client, *wallet.Wallet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.client == nil {
		return nil, nil, ErrNotConnected
	}
	return c.client, c.wallet, nil
}

func (c *Connector) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}

// Balance returns the credential's balance in native units at the latest
// validated ledger. An account the ledger has never seen reads as zero; a
// transport failure is returned as an error rather than conflated with zero.
func (c *Connector) Balance(ctx context.Context) (float64, error) {
	client, w, err := c.liveSession()
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	info, err := client.AccountInfo(ctx, w.Address())
	if err != nil {
		if lerr, ok := err.(ledger.Error); ok && lerr.IsNotFound() {
			return 0, nil
		}
		return 0, errors.Wrap(err, "querying balance")
	}
	return ledger.UnitsFromDrops(info.BalanceDrops), nil
}

// RecentTransactions returns up to limit of the credential's transactions,
// most recent first. A non-positive limit uses DefaultHistoryLimit.
func (c *Connector) RecentTransactions(ctx context.Context, limit int) ([]ledger.TxRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	client, w, err := c.liveSession()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	records, err := client.AccountTransactions(ctx, w.Address(), limit)
	if err != nil {
		if lerr, ok := err.(ledger.Error); ok && lerr.IsNotFound() {
			return nil, nil
		}
		return nil, errors.Wrap(err, "querying transaction history")
	}
	return records, nil
}

// Submit autofills, signs and submits the payment, then waits for the
// network to validate it. Submissions on one instance are serialized so the
// autofilled sequence numbers cannot race; no retry happens at this layer —
// from the connector's perspective a submission is at-most-once.
func (c *Connector) Submit(ctx context.Context, p *ledger.Payment) (*ledger.TxReceipt, error) {
	client, w, err := c.liveSession()
	if err != nil {
		return nil, err
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &SubmitError{Err: errors.Wrap(err, "awaiting submission slot")}
		}
	}

	if err := c.autofill(ctx, client, w, p); err != nil {
		return nil, &SubmitError{Err: err}
	}

	blob, hash, err := w.SignPayment(p)
	if err != nil {
		return nil, &SubmitError{Err: errors.Wrap(err, "signing payment")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	receipt, err := client.Submit(ctx, blob, hash)
	if err != nil {
		return nil, &SubmitError{Hash: hash, Err: err}
	}
	c.log.Info().Str("hash", receipt.Hash).Uint32("ledger_index", receipt.LedgerIndex).
		Str("destination", p.Destination).Int64("drops", p.AmountDrops).
		Msg("transaction validated")
	return receipt, nil
}

// autofill fills the zero-valued required fields from current network state.
func (c *Connector) autofill(ctx context.Context, client ledger.Client, w *wallet.Wallet, p *ledger.Payment) error {
	if p.Sequence == 0 {
		qctx, cancel := c.requestContext(ctx)
		info, err := client.AccountInfo(qctx, w.Address())
		cancel()
		if err != nil {
			return errors.Wrap(err, "refreshing account sequence")
		}
		p.Sequence = info.Sequence
	}
	if p.FeeDrops == 0 || p.LastLedgerSequence == 0 {
		qctx, cancel := c.requestContext(ctx)
		srv, err := client.ServerInfo(qctx)
		cancel()
		if err != nil {
			return errors.Wrap(err, "querying network state")
		}
		if p.FeeDrops == 0 {
			p.FeeDrops = srv.BaseFeeDrops
		}
		if p.LastLedgerSequence == 0 {
			p.LastLedgerSequence = srv.ValidatedLedger + lastLedgerOffset
		}
	}
	return nil
}

// Disconnect releases the session. Idempotent; the credential survives for
// the connector's lifetime so a later Connect with no secret is still a
// fresh credential, while Status keeps reporting the held address.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	client := c.client
	wasConnected := c.state == StateConnected
	endpoint := c.endpoint.Name
	c.client = nil
	c.state = StateDisconnected
	c.retries = 0
	c.session++
	c.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	if wasConnected {
		c.log.Info().Str("endpoint", endpoint).Msg("disconnected from ledger network")
	}
}

// Status returns a snapshot of the connector's state.
func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:    c.state,
		Endpoint: c.endpoint.Name,
		Retries:  c.retries,
	}
	if c.wallet != nil {
		s.Address = c.wallet.Address()
	}
	return s
}

// Address returns the held credential's address, or empty before the first
// Connect.
func (c *Connector) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet == nil {
		return ""
	}
	return c.wallet.Address()
}
