package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

const (
	DefaultTradeURL     = "https://pumpportal.fun/api/trade-local"
	defaultTradeTimeout = 10 * time.Second
)

// PumpPortalClient requests unsigned trade transactions from the PumpPortal local trade API.
type PumpPortalClient struct {
	tradeURL   string
	httpClient *http.Client
}

// NewPumpPortalClient creates a client. Zero timeout means the default.
func NewPumpPortalClient(tradeURL string, timeout time.Duration) *PumpPortalClient {
	if tradeURL == "" {
		tradeURL = DefaultTradeURL
	}
	if timeout <= 0 {
		timeout = defaultTradeTimeout
	}

	return &PumpPortalClient{
		tradeURL:   tradeURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// tradeLocalRequest is the trade-local request body.
// amount is a JSON number for quote buys and a string like "100%" for percentage sells.
type tradeLocalRequest struct {
	PublicKey        string      `json:"publicKey"`
	Action           string      `json:"action"`
	Mint             string      `json:"mint"`
	Amount           any         `json:"amount"`
	DenominatedInSol string      `json:"denominatedInSol"`
	Slippage         json.Number `json:"slippage"`
	PriorityFee      json.Number `json:"priorityFee"`
	Pool             string      `json:"pool"`
}

func newTradeLocalRequest(req domain.TradeRequest) tradeLocalRequest {
	body := tradeLocalRequest{
		PublicKey:        req.PublicKey,
		Action:           req.Action.String(),
		Mint:             req.TokenID,
		Amount:           req.Amount,
		DenominatedInSol: "false",
		Slippage:         json.Number(req.Slippage.String()),
		PriorityFee:      json.Number(req.PriorityFee.String()),
		Pool:             req.Pool,
	}
	if req.DenominatedInQuote {
		body.Amount = json.Number(req.Amount)
		body.DenominatedInSol = "true"
	}

	return body
}

// BuildTransaction returns serialized transaction bytes ready to be signed.
func (c *PumpPortalClient) BuildTransaction(ctx context.Context, tr domain.TradeRequest) ([]byte, error) {
	jsonData, err := json.Marshal(newTradeLocalRequest(tr))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal trade request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tradeURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trade API returned status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, errors.New("trade API returned empty transaction")
	}

	return body, nil
}
