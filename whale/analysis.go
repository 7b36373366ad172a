package whale

import (
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// Recommended actions the grid engine understands
const (
	ActionPauseGrid     = "PAUSE_GRID"
	ActionReduceSpacing = "REDUCE_GRID_SPACING"
	ActionWidenRange    = "WIDEN_GRID_RANGE"
	ActionMonitor       = "MONITOR"
	ActionContinue      = "CONTINUE"
)

// ImpactAnalysis is a scored trade plus a textual recommendation for any
// grid strategies trading the same token
type ImpactAnalysis struct {
	Trade             types.WhaleTrade
	PriceImpact       float64
	VelocityScore     float64
	MarketImpact      MarketImpact
	RecommendedAction string
}

// AnalyzeImpactForGrid recommends a grid reaction to a scored trade. The
// caller passes the token's current price to judge displacement.
func (m *Monitor) AnalyzeImpactForGrid(activity Activity, currentPrice decimal.Decimal) ImpactAnalysis {
	action := recommendAction(activity, currentPrice)
	return ImpactAnalysis{
		Trade:             activity.Trade,
		PriceImpact:       activity.PriceImpact,
		VelocityScore:     activity.VelocityScore,
		MarketImpact:      activity.MarketImpact,
		RecommendedAction: action,
	}
}

func recommendAction(activity Activity, currentPrice decimal.Decimal) string {
	switch activity.MarketImpact {
	case ImpactCritical:
		// A critical trade priced well away from market is already
		// moving it; a fill near market mostly injects volatility.
		upper := currentPrice.Mul(decimal.NewFromFloat(1.05))
		lower := currentPrice.Mul(decimal.NewFromFloat(0.95))
		if activity.Trade.Price.GreaterThan(upper) || activity.Trade.Price.LessThan(lower) {
			return ActionPauseGrid + " - Whale activity causing significant price movement"
		}
		return ActionReduceSpacing + " - High volatility expected"
	case ImpactHigh:
		if activity.VelocityScore > 0.6 {
			return ActionPauseGrid + " - Rapid whale trades detected"
		}
		return ActionWidenRange + " - Adjust for increased volatility"
	case ImpactMedium:
		return ActionMonitor + " - Continue with caution"
	default:
		return ActionContinue + " - Normal market conditions"
	}
}
