package connector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

// These tests run against a live test network. They generate a fresh
// credential, fund it from the faucet and exercise the full connect, query,
// submit and disconnect cycle.
var testnetName = os.Getenv("LEDGER_TESTNET")

func newIntegrationConnector(t *testing.T) *Connector {
	t.Helper()
	if testnetName == "" {
		t.Skip("LEDGER_TESTNET environment variable not set, skipping ledger integration tests")
	}
	c := New()
	t.Cleanup(c.Disconnect)
	return c
}

func TestIntegrationConnectAndQuery(t *testing.T) {
	c := newIntegrationConnector(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := c.Connect(ctx, testnetName, "")
	require.NoError(t, err)
	require.True(t, st.Connected())
	require.NotEmpty(t, st.Address)

	// Faucet funding can take a few ledgers to validate.
	require.Eventually(t, func() bool {
		bal, err := c.Balance(ctx)
		return err == nil && bal > 0
	}, 30*time.Second, 2*time.Second, "faucet never funded the account")

	records, err := c.RecentTransactions(ctx, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(records), DefaultHistoryLimit)
}

func TestIntegrationSubmitPayment(t *testing.T) {
	sender := newIntegrationConnector(t)
	receiver := newIntegrationConnector(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, err := sender.Connect(ctx, testnetName, "")
	require.NoError(t, err)
	recvStatus, err := receiver.Connect(ctx, testnetName, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		bal, err := sender.Balance(ctx)
		return err == nil && bal > 0
	}, 30*time.Second, 2*time.Second, "faucet never funded the sender")
	require.Eventually(t, func() bool {
		bal, err := receiver.Balance(ctx)
		return err == nil && bal > 0
	}, 30*time.Second, 2*time.Second, "faucet never funded the receiver")

	before, err := receiver.Balance(ctx)
	require.NoError(t, err)

	receipt, err := sender.Submit(ctx, &ledger.Payment{
		Destination: recvStatus.Address,
		AmountDrops: ledger.DropsFromUnits(1),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Hash)
	assert.True(t, receipt.Validated)

	require.Eventually(t, func() bool {
		after, err := receiver.Balance(ctx)
		return err == nil && after > before
	}, 30*time.Second, 2*time.Second, "payment never landed")

	records, err := sender.RecentTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, receipt.Hash, records[0].Hash)
}
