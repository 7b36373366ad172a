package exec

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/internal/retry"
	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SWAP EXECUTION CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Submits signed swap requests to a relay endpoint. Dry-run mode simulates
// fills with deterministic signatures so the rest of the pipeline runs
// unchanged.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SwapRequest describes one swap to execute
type SwapRequest struct {
	UserID    int64
	Chain     types.Chain
	Token     string
	Side      string // "BUY" or "SELL"
	AmountUSD decimal.Decimal
	Price     decimal.Decimal // quoted price at decision time
}

// SwapResult is the outcome of a submitted swap
type SwapResult struct {
	Signature   string
	FilledPrice decimal.Decimal
	DryRun      bool
}

type Client struct {
	relayURL   string
	privateKey *ecdsa.PrivateKey
	address    string
	dryRun     bool
	retry      retry.Policy
	httpClient *http.Client
}

// NewClient creates an execution client. An empty key forces dry-run.
func NewClient(relayURL, privKeyHex string, dryRun bool) (*Client, error) {
	c := &Client{
		relayURL:   relayURL,
		dryRun:     dryRun,
		retry:      retry.DefaultPolicy(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if privKeyHex != "" {
		pk, err := crypto.HexToECDSA(privKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = pk
		c.address = crypto.PubkeyToAddress(pk.PublicKey).Hex()
	} else {
		c.dryRun = true
	}

	mode := "DRY RUN"
	if !c.dryRun {
		mode = "LIVE"
	}
	log.Info().
		Str("mode", mode).
		Str("address", c.address).
		Msg("🚀 Execution client initialized")

	return c, nil
}

// ExecuteSwap submits one swap and returns its transaction signature
func (c *Client) ExecuteSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	if c.dryRun {
		sig := fmt.Sprintf("DRY_%s_%d", req.Side, time.Now().UnixNano())
		log.Info().
			Str("sig", sig).
			Str("token", req.Token).
			Str("side", req.Side).
			Str("amount", req.AmountUSD.StringFixed(2)).
			Msg("📝 DRY RUN: Swap would be executed")
		return &SwapResult{Signature: sig, FilledPrice: req.Price, DryRun: true}, nil
	}

	payload := map[string]interface{}{
		"chain":      string(req.Chain),
		"token":      req.Token,
		"side":       req.Side,
		"amount_usd": req.AmountUSD.String(),
		"price":      req.Price.String(),
		"sender":     c.address,
		"nonce":      time.Now().UnixNano(),
	}

	signature, err := c.signPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("sign swap: %w", err)
	}
	payload["signature"] = signature

	var result SwapResult
	err = retry.Do(ctx, c.retry, func() error {
		resp, err := c.post(ctx, "/swap", payload)
		if err != nil {
			return err
		}

		var body struct {
			Signature   string `json:"signature"`
			FilledPrice string `json:"filled_price"`
			Error       string `json:"error"`
		}
		if err := json.Unmarshal(resp, &body); err != nil {
			return fmt.Errorf("parse relay response: %w", err)
		}
		if body.Error != "" {
			return fmt.Errorf("relay error: %s", body.Error)
		}

		filled, err := decimal.NewFromString(body.FilledPrice)
		if err != nil {
			filled = req.Price
		}
		result = SwapResult{Signature: body.Signature, FilledPrice: filled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sig", result.Signature).
		Str("token", req.Token).
		Str("side", req.Side).
		Msg("✅ Swap executed")

	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) signPayload(payload map[string]interface{}) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	payloadBytes, _ := json.Marshal(payload)
	hash := crypto.Keccak256(payloadBytes)

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

// IsDryRun reports whether the client simulates fills
func (c *Client) IsDryRun() bool {
	return c.dryRun
}
