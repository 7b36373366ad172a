package whale

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WHALE MONITOR - Scores large trades for market impact
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every incoming large trade is scored on three axes:
//   - price impact: nonlinear in trade size, scaled by chain liquidity
//   - volume anomaly: trade size vs the token's average 24h volume
//   - velocity: rapid consecutive trades from the same wallet
//
// The resulting impact label feeds the grid engine's whale adaptation.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketImpact classifies how much a trade can move the market
type MarketImpact string

const (
	ImpactLow      MarketImpact = "low"
	ImpactMedium   MarketImpact = "medium"
	ImpactHigh     MarketImpact = "high"
	ImpactCritical MarketImpact = "critical"
)

// Per-chain liquidity constants in USD. A $100k trade moves a thin Solana
// pool far more than an Ethereum one.
var defaultLiquidity = map[types.Chain]float64{
	types.ChainSolana:   100_000,
	types.ChainEthereum: 500_000,
	types.ChainBSC:      250_000,
}

const fallbackLiquidity = 100_000

// velocityWindowSec is the lookback for rapid-trade detection
const velocityWindowSec = 300

// Activity is the full scoring result for one trade
type Activity struct {
	Trade           types.WhaleTrade
	PriceImpact     float64 // estimated price move, percent
	VolumeAnomaly   float64 // multiple of average 24h volume
	VelocityScore   float64 // 0..1
	MarketImpact    MarketImpact
	KnownLabel      string // curated wallet label, empty if unknown
	IsFirstEntry    bool
	ConfidenceScore float64 // 0..100
}

// Info is the per-wallet rollup. Never deleted, only superseded.
type Info struct {
	Wallet         string
	TotalVolume24h decimal.Decimal
	TradeCount     int
	AvgTradeSize   decimal.Decimal
	NetPosition    decimal.Decimal // positive = net long
	LastTrade      *types.WhaleTrade
	TradeVelocity  float64 // trades per hour
	PriceImpactAvg float64 // exponentially smoothed
}

type Monitor struct {
	mu           sync.RWMutex
	knownWallets map[string]string // injected configuration, not derived
	liquidity    map[types.Chain]float64
	whales       map[string]*Info
	alerts       []*Alert
}

// NewMonitor creates a monitor with an injected known-wallet label table
func NewMonitor(knownWallets map[string]string) *Monitor {
	if knownWallets == nil {
		knownWallets = make(map[string]string)
	}
	return &Monitor{
		knownWallets: knownWallets,
		liquidity:    defaultLiquidity,
		whales:       make(map[string]*Info),
	}
}

// DetectActivity scores one trade against recent history and average volume
func (m *Monitor) DetectActivity(trade types.WhaleTrade, recent []types.WhaleTrade, avgVolume24h decimal.Decimal) Activity {
	priceImpact := m.PriceImpact(trade.SizeUSD, trade.Chain)

	volumeAnomaly := 1.0
	if avgVolume24h.IsPositive() {
		volumeAnomaly = trade.SizeUSD.Div(avgVolume24h).InexactFloat64()
	}

	velocity := velocityScore(trade, recent)

	var impact MarketImpact
	switch {
	case priceImpact > 10.0 || velocity > 0.8:
		impact = ImpactCritical
	case priceImpact > 5.0 || velocity > 0.6:
		impact = ImpactHigh
	case priceImpact > 1.0 || volumeAnomaly > 3.0:
		impact = ImpactMedium
	default:
		impact = ImpactLow
	}

	m.mu.RLock()
	label := m.knownWallets[trade.Wallet]
	m.mu.RUnlock()

	firstEntry := true
	for _, t := range recent {
		if t.Wallet == trade.Wallet && t.Token == trade.Token && t.Timestamp.Before(trade.Timestamp) {
			firstEntry = false
			break
		}
	}

	confidence := 70.0
	if label != "" {
		confidence += 20.0
	}
	if firstEntry {
		confidence += 5.0
	}
	if trade.SizeUSD.GreaterThan(decimal.NewFromInt(500_000)) {
		confidence += 5.0
	}
	if confidence > 100.0 {
		confidence = 100.0
	}

	if impact == ImpactHigh || impact == ImpactCritical {
		log.Warn().
			Str("wallet", trade.Wallet).
			Str("token", trade.TokenSymbol).
			Str("size", trade.SizeUSD.StringFixed(0)).
			Float64("price_impact", priceImpact).
			Str("impact", string(impact)).
			Msg("🐋 Whale activity detected")
	}

	return Activity{
		Trade:           trade,
		PriceImpact:     priceImpact,
		VolumeAnomaly:   volumeAnomaly,
		VelocityScore:   velocity,
		MarketImpact:    impact,
		KnownLabel:      label,
		IsFirstEntry:    firstEntry,
		ConfidenceScore: confidence,
	}
}

// PriceImpact estimates the percentage price move a trade of the given size
// causes on a chain. Grows super-linearly: impact = (size/K) * (1+(size/1M)^1.5).
func (m *Monitor) PriceImpact(sizeUSD decimal.Decimal, chain types.Chain) float64 {
	k, ok := m.liquidity[chain]
	if !ok {
		k = fallbackLiquidity
	}
	size := sizeUSD.InexactFloat64()
	base := size / k
	return base * (1.0 + math.Pow(size/1_000_000.0, 1.5))
}

// velocityScore counts same-wallet same-token trades inside the lookback
// window; 3+ trades in 5 minutes saturates the score at 1.0.
func velocityScore(trade types.WhaleTrade, recent []types.WhaleTrade) float64 {
	cutoff := trade.Timestamp.Unix() - velocityWindowSec
	rapid := 0
	for _, t := range recent {
		if t.Wallet == trade.Wallet && t.Token == trade.Token && t.Timestamp.Unix() >= cutoff {
			rapid++
		}
	}
	return math.Min(float64(rapid)/3.0, 1.0)
}

// TrackTrade folds one trade into the per-wallet rollup
func (m *Monitor) TrackTrade(trade types.WhaleTrade, priceImpact float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.whales[trade.Wallet]
	if !ok {
		info = &Info{Wallet: trade.Wallet}
		m.whales[trade.Wallet] = info
	}

	// Seconds since this wallet last traded; assume an hour for newcomers
	timeSince := int64(3600)
	if info.LastTrade != nil {
		timeSince = trade.Timestamp.Unix() - info.LastTrade.Timestamp.Unix()
	}

	info.TotalVolume24h = info.TotalVolume24h.Add(trade.SizeUSD)
	info.TradeCount++
	info.AvgTradeSize = info.TotalVolume24h.Div(decimal.NewFromInt(int64(info.TradeCount)))

	if timeSince > 0 {
		info.TradeVelocity = 3600.0 / float64(timeSince)
	}

	info.PriceImpactAvg = info.PriceImpactAvg*0.7 + priceImpact*0.3

	switch trade.PositionType {
	case types.PositionLong:
		info.NetPosition = info.NetPosition.Add(trade.SizeUSD)
	case types.PositionShort:
		info.NetPosition = info.NetPosition.Sub(trade.SizeUSD)
	case types.PositionSpot:
		switch trade.TradeType {
		case types.TradeBuy:
			info.NetPosition = info.NetPosition.Add(trade.SizeUSD)
		case types.TradeSell:
			info.NetPosition = info.NetPosition.Sub(trade.SizeUSD)
		}
	}

	t := trade
	info.LastTrade = &t
}

// WalletInfo returns the rollup for one wallet, if tracked
func (m *Monitor) WalletInfo(wallet string) (*Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.whales[wallet]
	return info, ok
}
