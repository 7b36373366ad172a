package whale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dipraise1/trading-engine/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTrade(sizeUSD string) types.WhaleTrade {
	return types.WhaleTrade{
		ID:           "t1",
		Chain:        types.ChainSolana,
		Token:        "mint1",
		TokenSymbol:  "MEME",
		TradeType:    types.TradeBuy,
		PositionType: types.PositionSpot,
		SizeUSD:      d(sizeUSD),
		Price:        d("1.0"),
		Timestamp:    time.Now(),
		Wallet:       "walletA",
	}
}

func TestPriceImpactByChain(t *testing.T) {
	m := NewMonitor(nil)

	// $150k on solana: 1.5 * (1 + 0.15^1.5)
	impact := m.PriceImpact(d("150000"), types.ChainSolana)
	assert.InDelta(t, 1.587, impact, 0.01)

	// The same trade on a deeper chain moves the price far less
	ethImpact := m.PriceImpact(d("150000"), types.ChainEthereum)
	assert.InDelta(t, 0.317, ethImpact, 0.01)
	assert.Less(t, ethImpact, impact)

	// Unknown chains fall back to the thinnest liquidity
	otherImpact := m.PriceImpact(d("150000"), types.Chain("base"))
	assert.InDelta(t, impact, otherImpact, 1e-9)
}

func TestPriceImpactGrowsSuperLinearly(t *testing.T) {
	m := NewMonitor(nil)

	sizes := []string{"10000", "100000", "500000", "1000000", "5000000"}
	prev := 0.0
	for _, size := range sizes {
		impact := m.PriceImpact(d(size), types.ChainSolana)
		assert.Greater(t, impact, prev, "impact must increase with size %s", size)
		prev = impact
	}

	// Doubling a large trade more than doubles its impact
	one := m.PriceImpact(d("1000000"), types.ChainSolana)
	two := m.PriceImpact(d("2000000"), types.ChainSolana)
	assert.Greater(t, two, one*2)
}

func TestDetectActivityClassification(t *testing.T) {
	m := NewMonitor(nil)

	tests := []struct {
		name string
		size string
		want MarketImpact
	}{
		{"small solana trade", "50000", ImpactLow},
		{"medium solana trade", "150000", ImpactMedium},
		{"large solana trade", "450000", ImpactHigh},
		{"huge solana trade", "900000", ImpactCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activity := m.DetectActivity(testTrade(tt.size), nil, decimal.Zero)
			assert.Equal(t, tt.want, activity.MarketImpact)
		})
	}
}

func TestDetectActivityVelocityEscalates(t *testing.T) {
	m := NewMonitor(nil)
	trade := testTrade("50000")

	// Three same-wallet same-token trades in the window saturate velocity
	recent := []types.WhaleTrade{
		{Wallet: "walletA", Token: "mint1", Timestamp: trade.Timestamp.Add(-60 * time.Second)},
		{Wallet: "walletA", Token: "mint1", Timestamp: trade.Timestamp.Add(-120 * time.Second)},
		{Wallet: "walletA", Token: "mint1", Timestamp: trade.Timestamp.Add(-180 * time.Second)},
	}

	activity := m.DetectActivity(trade, recent, decimal.Zero)
	assert.Equal(t, 1.0, activity.VelocityScore)
	assert.Equal(t, ImpactCritical, activity.MarketImpact, "max velocity forces critical")
}

func TestDetectActivityIgnoresUnrelatedRecentTrades(t *testing.T) {
	m := NewMonitor(nil)
	trade := testTrade("50000")

	recent := []types.WhaleTrade{
		{Wallet: "walletB", Token: "mint1", Timestamp: trade.Timestamp.Add(-60 * time.Second)},
		{Wallet: "walletA", Token: "mint2", Timestamp: trade.Timestamp.Add(-60 * time.Second)},
		{Wallet: "walletA", Token: "mint1", Timestamp: trade.Timestamp.Add(-10 * time.Minute)},
	}

	activity := m.DetectActivity(trade, recent, decimal.Zero)
	assert.Equal(t, 0.0, activity.VelocityScore)
}

func TestDetectActivityVolumeAnomaly(t *testing.T) {
	m := NewMonitor(nil)

	// $50k trade against a $10k average is a 5x anomaly -> medium
	activity := m.DetectActivity(testTrade("50000"), nil, d("10000"))
	assert.InDelta(t, 5.0, activity.VolumeAnomaly, 1e-9)
	assert.Equal(t, ImpactMedium, activity.MarketImpact)
}

func TestConfidenceScoring(t *testing.T) {
	known := map[string]string{"walletA": "Jump Trading"}
	m := NewMonitor(known)
	trade := testTrade("50000")

	// Known wallet, first entry: 70 + 20 + 5
	activity := m.DetectActivity(trade, nil, decimal.Zero)
	assert.Equal(t, "Jump Trading", activity.KnownLabel)
	assert.True(t, activity.IsFirstEntry)
	assert.InDelta(t, 95.0, activity.ConfidenceScore, 1e-9)

	// Prior entry in the same token clears the first-entry bonus
	recent := []types.WhaleTrade{
		{Wallet: "walletA", Token: "mint1", Timestamp: trade.Timestamp.Add(-time.Hour)},
	}
	activity = m.DetectActivity(trade, recent, decimal.Zero)
	assert.False(t, activity.IsFirstEntry)
	assert.InDelta(t, 90.0, activity.ConfidenceScore, 1e-9)

	// Big known first entry caps at 100
	big := testTrade("600000")
	activity = m.DetectActivity(big, nil, decimal.Zero)
	assert.Equal(t, 100.0, activity.ConfidenceScore)
}

func TestConfidenceUnknownWallet(t *testing.T) {
	m := NewMonitor(nil)

	activity := m.DetectActivity(testTrade("50000"), nil, decimal.Zero)
	assert.Empty(t, activity.KnownLabel)
	assert.InDelta(t, 75.0, activity.ConfidenceScore, 1e-9)
}

func TestTrackTradeRollup(t *testing.T) {
	m := NewMonitor(nil)
	now := time.Now()

	first := testTrade("100000")
	first.Timestamp = now
	m.TrackTrade(first, 10.0)

	info, ok := m.WalletInfo("walletA")
	require.True(t, ok)
	assert.Equal(t, 1, info.TradeCount)
	assert.True(t, info.TotalVolume24h.Equal(d("100000")))
	assert.True(t, info.AvgTradeSize.Equal(d("100000")))
	assert.True(t, info.NetPosition.Equal(d("100000")), "spot buy adds to net position")
	assert.InDelta(t, 1.0, info.TradeVelocity, 1e-9, "newcomers default to one trade per hour")
	assert.InDelta(t, 3.0, info.PriceImpactAvg, 1e-9, "EMA from zero: 0.3 * 10")

	second := testTrade("50000")
	second.TradeType = types.TradeSell
	second.Timestamp = now.Add(30 * time.Minute)
	m.TrackTrade(second, 10.0)

	info, _ = m.WalletInfo("walletA")
	assert.Equal(t, 2, info.TradeCount)
	assert.True(t, info.TotalVolume24h.Equal(d("150000")))
	assert.True(t, info.AvgTradeSize.Equal(d("75000")))
	assert.True(t, info.NetPosition.Equal(d("50000")), "spot sell subtracts")
	assert.InDelta(t, 2.0, info.TradeVelocity, 1e-9, "two trades an hour apart halved the gap")
	assert.InDelta(t, 5.1, info.PriceImpactAvg, 1e-9, "0.7*3 + 0.3*10")
}

func TestTrackTradePerpNetPosition(t *testing.T) {
	m := NewMonitor(nil)

	long := testTrade("100000")
	long.TradeType = types.TradeLong
	long.PositionType = types.PositionLong
	m.TrackTrade(long, 1.0)

	short := testTrade("40000")
	short.TradeType = types.TradeShort
	short.PositionType = types.PositionShort
	short.Timestamp = long.Timestamp.Add(time.Minute)
	m.TrackTrade(short, 1.0)

	info, _ := m.WalletInfo("walletA")
	assert.True(t, info.NetPosition.Equal(d("60000")))
}

func TestStatsLongShortRatio(t *testing.T) {
	m := NewMonitor(nil)
	now := time.Now()

	trades := []types.WhaleTrade{
		{PositionType: types.PositionLong, SizeUSD: d("300000"), Timestamp: now},
		{PositionType: types.PositionShort, SizeUSD: d("100000"), Timestamp: now},
	}
	stats := m.Stats(trades)
	assert.InDelta(t, 3.0, stats.LongShortRatio, 1e-9)
	assert.True(t, stats.TotalVolume24h.Equal(d("400000")))
	assert.Equal(t, 2, stats.TradeCount24h)

	// Pure long flow pegs the ratio at 999
	stats = m.Stats(trades[:1])
	assert.Equal(t, 999.0, stats.LongShortRatio)

	// No directional flow at all reports 1
	stats = m.Stats(nil)
	assert.Equal(t, 1.0, stats.LongShortRatio)
}

func TestStatsWindowAndLargest(t *testing.T) {
	m := NewMonitor(nil)
	now := time.Now()

	trades := []types.WhaleTrade{
		{ID: "old", SizeUSD: d("900000"), Timestamp: now.Add(-25 * time.Hour)},
		{ID: "big", SizeUSD: d("500000"), Timestamp: now.Add(-time.Hour)},
		{ID: "small", SizeUSD: d("50000"), Timestamp: now},
	}

	stats := m.Stats(trades)
	assert.Equal(t, 2, stats.TradeCount24h, "day-old trades drop out")
	require.NotNil(t, stats.LargestTrade)
	assert.Equal(t, "big", stats.LargestTrade.ID)
}

func TestStatsTopWhalesSortedAndCapped(t *testing.T) {
	m := NewMonitor(nil)
	now := time.Now()

	for i := 0; i < 12; i++ {
		trade := testTrade("50000")
		trade.Wallet = string(rune('a' + i))
		trade.SizeUSD = decimal.NewFromInt(int64((i + 1) * 10000))
		trade.Timestamp = now
		m.TrackTrade(trade, 1.0)
	}

	stats := m.Stats(nil)
	assert.Equal(t, 12, stats.TotalWhalesTracked)
	require.Len(t, stats.TopWhales, 10)
	for i := 1; i < len(stats.TopWhales); i++ {
		assert.True(t, stats.TopWhales[i-1].TotalVolume24h.GreaterThanOrEqual(stats.TopWhales[i].TotalVolume24h))
	}
}
