// Package tron implements the TronGrid-compatible indexer client used by
// the chain scanner to observe incoming TRC20 transfers.
package tron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/config"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

// Transfer is a single confirmed TRC20 transfer to the service wallet
type Transfer struct {
	TxHash         string
	From           string
	To             string
	Amount         decimal.Decimal
	BlockNumber    int64
	BlockTimestamp time.Time
}

// Client queries a TronGrid-compatible indexer for TRC20 transfers
type Client struct {
	baseURL         string
	apiKey          string
	walletAddress   string
	contractAddress string
	pageSize        int
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker
	logger          *logger.Logger
}

// NewClient creates a new indexer client
func NewClient(cfg config.TronConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 200
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "trongrid",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL:         cfg.APIBaseURL,
		apiKey:          cfg.APIKey,
		walletAddress:   cfg.WalletAddress,
		contractAddress: cfg.USDTContractAddress,
		pageSize:        pageSize,
		httpClient:      &http.Client{Timeout: timeout},
		breaker:         breaker,
		logger:          log,
	}
}

// trc20Response is the indexer's transfer page payload
type trc20Response struct {
	Data []trc20Transfer `json:"data"`
	Meta struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
	Success bool `json:"success"`
}

type trc20Transfer struct {
	TransactionID  string `json:"transaction_id"`
	BlockNumber    int64  `json:"block_number"`
	BlockTimestamp int64  `json:"block_timestamp"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	TokenInfo      struct {
		Address  string `json:"address"`
		Decimals int32  `json:"decimals"`
	} `json:"token_info"`
}

// TransfersToWallet returns confirmed USDT transfers into the service
// wallet with block number greater than afterBlock, in ascending block
// order. The indexer paginates by timestamp, so minTimestamp narrows the
// query while afterBlock is the authoritative cut; overlap at the cursor
// boundary is expected and deduplicated downstream by tx hash.
func (c *Client) TransfersToWallet(ctx context.Context, afterBlock int64, minTimestamp time.Time) ([]Transfer, error) {
	var all []Transfer
	fingerprint := ""

	for {
		page, next, err := c.fetchPage(ctx, minTimestamp, fingerprint)
		if err != nil {
			return nil, err
		}

		for _, raw := range page {
			if raw.BlockNumber <= afterBlock {
				continue
			}
			transfer, err := c.toTransfer(raw)
			if err != nil {
				c.logger.Warn("Skipping malformed transfer from indexer",
					"tx_hash", raw.TransactionID,
					"error", err)
				continue
			}
			all = append(all, transfer)
		}

		if next == "" {
			break
		}
		fingerprint = next
	}

	// Ascending block order within a cycle
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].BlockNumber < all[j-1].BlockNumber; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, minTimestamp time.Time, fingerprint string) ([]trc20Transfer, string, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20", c.baseURL, url.PathEscape(c.walletAddress))

	params := url.Values{}
	params.Set("only_to", "true")
	params.Set("only_confirmed", "true")
	params.Set("contract_address", c.contractAddress)
	params.Set("limit", strconv.Itoa(c.pageSize))
	if !minTimestamp.IsZero() {
		params.Set("min_timestamp", strconv.FormatInt(minTimestamp.UnixMilli(), 10))
	}
	if fingerprint != "" {
		params.Set("fingerprint", fingerprint)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build indexer request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("indexer request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
		}

		var payload trc20Response
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode indexer response: %w", err)
		}
		if !payload.Success {
			return nil, fmt.Errorf("indexer reported failure")
		}

		return &payload, nil
	})
	if err != nil {
		// Network and indexer failures are transient: the scanner logs,
		// keeps the cursor and retries next cycle
		return nil, "", fmt.Errorf("%w: %v", domerrors.ErrTransientScan, err)
	}

	payload := result.(*trc20Response)
	next := payload.Meta.Fingerprint
	if len(payload.Data) < c.pageSize {
		next = ""
	}

	return payload.Data, next, nil
}

// toTransfer converts an indexer row to a domain transfer. Token values
// arrive as integer strings in the token's own precision; they are
// rescaled to the 8-decimal precision used for matching.
func (c *Client) toTransfer(raw trc20Transfer) (Transfer, error) {
	value, err := decimal.NewFromString(raw.Value)
	if err != nil {
		return Transfer{}, fmt.Errorf("bad transfer value %q: %w", raw.Value, err)
	}

	amount := usdt.Normalize(value.Shift(-raw.TokenInfo.Decimals))

	return Transfer{
		TxHash:         raw.TransactionID,
		From:           raw.From,
		To:             raw.To,
		Amount:         amount,
		BlockNumber:    raw.BlockNumber,
		BlockTimestamp: time.UnixMilli(raw.BlockTimestamp).UTC(),
	}, nil
}
