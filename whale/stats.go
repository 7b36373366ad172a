package whale

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// TrackerStats summarizes whale flow over the last 24 hours
type TrackerStats struct {
	TotalVolume24h     decimal.Decimal
	TradeCount24h      int
	LargestTrade       *types.WhaleTrade
	LongShortRatio     float64
	TopWhales          []Info // by 24h volume, at most 10
	TotalWhalesTracked int
}

// Stats computes flow statistics over the given trade history. Only trades
// inside the trailing 24h window count toward the aggregates.
func (m *Monitor) Stats(trades []types.WhaleTrade) TrackerStats {
	cutoff := time.Now().Add(-24 * time.Hour)

	var (
		volume   decimal.Decimal
		count    int
		largest  *types.WhaleTrade
		longVol  decimal.Decimal
		shortVol decimal.Decimal
	)
	for i := range trades {
		t := &trades[i]
		if t.Timestamp.Before(cutoff) {
			continue
		}
		count++
		volume = volume.Add(t.SizeUSD)
		if largest == nil || t.SizeUSD.GreaterThan(largest.SizeUSD) {
			largest = t
		}
		switch t.PositionType {
		case types.PositionLong:
			longVol = longVol.Add(t.SizeUSD)
		case types.PositionShort:
			shortVol = shortVol.Add(t.SizeUSD)
		}
	}

	// 999 marks one-sided long flow, 1 marks no directional flow at all
	ratio := 1.0
	if shortVol.IsPositive() {
		ratio = longVol.Div(shortVol).InexactFloat64()
	} else if longVol.IsPositive() {
		ratio = 999.0
	}

	m.mu.RLock()
	tracked := len(m.whales)
	top := make([]Info, 0, tracked)
	for _, info := range m.whales {
		top = append(top, *info)
	}
	m.mu.RUnlock()

	sort.Slice(top, func(i, j int) bool {
		return top[i].TotalVolume24h.GreaterThan(top[j].TotalVolume24h)
	})
	if len(top) > 10 {
		top = top[:10]
	}

	return TrackerStats{
		TotalVolume24h:     volume,
		TradeCount24h:      count,
		LargestTrade:       largest,
		LongShortRatio:     ratio,
		TopWhales:          top,
		TotalWhalesTracked: tracked,
	}
}
