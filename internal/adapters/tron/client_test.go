package tron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/config"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TronConfig{
		APIBaseURL:          baseURL,
		APIKey:              "test-key",
		WalletAddress:       "TServiceWallet",
		USDTContractAddress: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		RequestTimeout:      5,
		PageSize:            200,
	}, logger.NewNop())
}

func transferJSON(txID string, block int64, value string) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id":  txID,
		"block_number":    block,
		"block_timestamp": time.Now().UnixMilli(),
		"from":            "TSender",
		"to":              "TServiceWallet",
		"value":           value,
		"token_info": map[string]interface{}{
			"address":  "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
			"decimals": 6,
		},
	}
}

func TestTransfersToWallet_RescalesTokenValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("TRON-PRO-API-KEY"))
		assert.Equal(t, "true", r.URL.Query().Get("only_to"))
		assert.Equal(t, "true", r.URL.Query().Get("only_confirmed"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []interface{}{
				transferJSON("tx1", 101, "99970000"),
			},
			"meta": map[string]interface{}{},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	transfers, err := client.TransfersToWallet(context.Background(), 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	// 99970000 base units at 6 decimals is 99.97 USDT
	assert.Equal(t, "99.97000000", transfers[0].Amount.StringFixed(8))
	assert.Equal(t, int64(101), transfers[0].BlockNumber)
	assert.Equal(t, "tx1", transfers[0].TxHash)
}

func TestTransfersToWallet_FiltersAtCursorAndSortsAscending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []interface{}{
				transferJSON("tx-old", 99, "1000000"),
				transferJSON("tx-new", 105, "2000000"),
				transferJSON("tx-boundary", 100, "3000000"),
				transferJSON("tx-mid", 103, "4000000"),
			},
			"meta": map[string]interface{}{},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	transfers, err := client.TransfersToWallet(context.Background(), 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, transfers, 2, "blocks at or below the cursor are excluded")

	assert.Equal(t, "tx-mid", transfers[0].TxHash)
	assert.Equal(t, "tx-new", transfers[1].TxHash)
}

func TestTransfersToWallet_MalformedValueSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []interface{}{
				transferJSON("tx-bad", 101, "not-a-number"),
				transferJSON("tx-good", 102, "1000000"),
			},
			"meta": map[string]interface{}{},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	transfers, err := client.TransfersToWallet(context.Background(), 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "tx-good", transfers[0].TxHash)
}

func TestTransfersToWallet_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.TransfersToWallet(context.Background(), 100, time.Time{})

	assert.ErrorIs(t, err, domerrors.ErrTransientScan)
}
