package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/internal/retry"
	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE FEED - DexScreener primary, GeckoTerminal fallback
// ═══════════════════════════════════════════════════════════════════════════════

const (
	dexScreenerBase   = "https://api.dexscreener.com/latest/dex/tokens"
	geckoTerminalBase = "https://api.geckoterminal.com/api/v2/networks"
	requestTimeout    = 10 * time.Second
)

// PriceClient fetches token quotes with retries and a short-lived cache
type PriceClient struct {
	http     *http.Client
	retry    retry.Policy
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price   *types.TokenPrice
	expires time.Time
}

func NewPriceClient(cacheTTL time.Duration) *PriceClient {
	return &PriceClient{
		http:     &http.Client{Timeout: requestTimeout},
		retry:    retry.DefaultPolicy(),
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedPrice),
	}
}

// GetPrice quotes one token. DexScreener is retried with backoff; on
// exhaustion GeckoTerminal is tried once before giving up.
func (c *PriceClient) GetPrice(ctx context.Context, chain types.Chain, token string) (*types.TokenPrice, error) {
	key := string(chain) + ":" + token

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expires) {
		c.mu.RUnlock()
		return entry.price, nil
	}
	c.mu.RUnlock()

	var price *types.TokenPrice
	err := retry.Do(ctx, c.retry, func() error {
		p, err := c.fetchDexScreener(ctx, chain, token)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("token", token).Msg("DexScreener exhausted, trying fallback")
		price, err = c.fetchGeckoTerminal(ctx, chain, token)
		if err != nil {
			return nil, fmt.Errorf("quote %s: %w", token, err)
		}
	}

	c.mu.Lock()
	c.cache[key] = cachedPrice{price: price, expires: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	return price, nil
}

type dexScreenerResponse struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		BaseToken struct {
			Symbol string `json:"symbol"`
		} `json:"baseToken"`
		PriceUSD    string `json:"priceUsd"`
		PriceNative string `json:"priceNative"`
		Volume      struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
	} `json:"pairs"`
}

func (c *PriceClient) fetchDexScreener(ctx context.Context, chain types.Chain, token string) (*types.TokenPrice, error) {
	url := fmt.Sprintf("%s/%s", dexScreenerBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener status %d", resp.StatusCode)
	}

	var body dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode dexscreener response: %w", err)
	}
	if len(body.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs for token %s", token)
	}

	// Deepest pool on the requested chain is the reference price
	best := -1
	for i, p := range body.Pairs {
		if p.ChainID != string(chain) {
			continue
		}
		if best == -1 || p.Liquidity.USD > body.Pairs[best].Liquidity.USD {
			best = i
		}
	}
	if best == -1 {
		best = 0
	}
	pair := body.Pairs[best]

	priceUSD, err := decimal.NewFromString(pair.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("parse priceUsd %q: %w", pair.PriceUSD, err)
	}
	priceNative, _ := decimal.NewFromString(pair.PriceNative)

	return &types.TokenPrice{
		Chain:          chain,
		Token:          token,
		Symbol:         pair.BaseToken.Symbol,
		PriceUSD:       priceUSD,
		PriceNative:    priceNative,
		Volume24h:      decimal.NewFromFloat(pair.Volume.H24),
		Liquidity:      decimal.NewFromFloat(pair.Liquidity.USD),
		PriceChange24h: decimal.NewFromFloat(pair.PriceChange.H24),
		Timestamp:      time.Now(),
	}, nil
}

type geckoTerminalResponse struct {
	Data struct {
		Attributes struct {
			Symbol    string `json:"symbol"`
			PriceUSD  string `json:"price_usd"`
			VolumeUSD struct {
				H24 string `json:"h24"`
			} `json:"volume_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

// geckoNetworks maps chains to GeckoTerminal network slugs
var geckoNetworks = map[types.Chain]string{
	types.ChainSolana:   "solana",
	types.ChainEthereum: "eth",
	types.ChainBSC:      "bsc",
}

func (c *PriceClient) fetchGeckoTerminal(ctx context.Context, chain types.Chain, token string) (*types.TokenPrice, error) {
	network, ok := geckoNetworks[chain]
	if !ok {
		return nil, fmt.Errorf("no fallback network for chain %s", chain)
	}

	url := fmt.Sprintf("%s/%s/tokens/%s", geckoTerminalBase, network, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geckoterminal status %d", resp.StatusCode)
	}

	var body geckoTerminalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geckoterminal response: %w", err)
	}

	priceUSD, err := decimal.NewFromString(body.Data.Attributes.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("parse price_usd %q: %w", body.Data.Attributes.PriceUSD, err)
	}
	volume, _ := decimal.NewFromString(body.Data.Attributes.VolumeUSD.H24)

	return &types.TokenPrice{
		Chain:     chain,
		Token:     token,
		Symbol:    body.Data.Attributes.Symbol,
		PriceUSD:  priceUSD,
		Volume24h: volume,
		Timestamp: time.Now(),
	}, nil
}
