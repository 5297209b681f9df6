package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

type rpcHandler func(method string, params map[string]interface{}) map[string]interface{}

func newTestNode(t *testing.T, handle rpcHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string                   `json:"method"`
			Params []map[string]interface{} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		params := map[string]interface{}{}
		if len(req.Params) > 0 {
			params = req.Params[0]
		}
		result := handle(req.Method, params)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
	}))
	t.Cleanup(srv.Close)
	client := New(srv.URL, srv.Client())
	t.Cleanup(func() { client.Close() })
	return client
}

func success(fields map[string]interface{}) map[string]interface{} {
	fields["status"] = "success"
	return fields
}

func TestAccountInfo(t *testing.T) {
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		require.Equal(t, "account_info", method)
		require.Equal(t, "validated", params["ledger_index"])
		return success(map[string]interface{}{
			"account_data": map[string]interface{}{
				"Account":  params["account"],
				"Balance":  "3000000",
				"Sequence": 9,
			},
			"ledger_index": 55,
		})
	})

	info, err := client.AccountInfo(context.Background(), "rTestAccount")
	require.NoError(t, err)
	assert.Equal(t, "rTestAccount", info.Address)
	assert.Equal(t, int64(3_000_000), info.BalanceDrops)
	assert.Equal(t, uint32(9), info.Sequence)
	assert.Equal(t, uint32(55), info.LedgerIndex)
}

func TestAccountInfoNotFound(t *testing.T) {
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"status":        "error",
			"error":         "actNotFound",
			"error_message": "Account not found.",
		}
	})

	_, err := client.AccountInfo(context.Background(), "rUnfunded")
	require.Error(t, err)
	var lerr ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.True(t, lerr.IsNotFound())
	assert.Equal(t, "actNotFound", lerr.ResultCode())
}

func TestServerInfo(t *testing.T) {
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		require.Equal(t, "server_info", method)
		return success(map[string]interface{}{
			"info": map[string]interface{}{
				"validated_ledger": map[string]interface{}{
					"seq":          101,
					"base_fee_xrp": 0.00001,
				},
			},
		})
	})

	srv, err := client.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(101), srv.ValidatedLedger)
	assert.Equal(t, int64(10), srv.BaseFeeDrops)
}

func TestSubmitWaitsForValidation(t *testing.T) {
	var mu sync.Mutex
	txPolls := 0
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		switch method {
		case "submit":
			return success(map[string]interface{}{"engine_result": "tesSUCCESS"})
		case "tx":
			mu.Lock()
			txPolls++
			polls := txPolls
			mu.Unlock()
			if polls == 1 {
				return success(map[string]interface{}{"validated": false})
			}
			return success(map[string]interface{}{
				"validated":    true,
				"ledger_index": 11,
				"meta":         map[string]interface{}{"TransactionResult": "tesSUCCESS"},
			})
		default:
			t.Errorf("unexpected method %s", method)
			return map[string]interface{}{"status": "error", "error": "unknownCmd"}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	receipt, err := client.Submit(ctx, "DEADBEEF", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", receipt.Hash)
	assert.True(t, receipt.Validated)
	assert.Equal(t, uint32(11), receipt.LedgerIndex)
}

func TestSubmitRejected(t *testing.T) {
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		return success(map[string]interface{}{"engine_result": "temBAD_FEE"})
	})

	_, err := client.Submit(context.Background(), "DEADBEEF", "ABC123")
	require.Error(t, err)
	var lerr ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "temBAD_FEE", lerr.ResultCode())
}

func TestClosedClientFailsFast(t *testing.T) {
	client := newTestNode(t, func(method string, params map[string]interface{}) map[string]interface{} {
		return success(map[string]interface{}{})
	})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "Close should be idempotent")

	_, err := client.ServerInfo(context.Background())
	require.Error(t, err)
	var lerr ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.True(t, lerr.IsDisconnected())
}

func TestUnreachableNode(t *testing.T) {
	client := New("http://127.0.0.1:1", nil)

	_, err := client.ServerInfo(context.Background())
	require.Error(t, err)
	var lerr ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.True(t, lerr.IsDisconnected())
}
