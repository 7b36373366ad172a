package grid

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WHALE-DRIVEN ADAPTATION
// ═══════════════════════════════════════════════════════════════════════════════
//
// The whale monitor scores large trades; the grid reacts by pausing,
// widening spacing, or expanding its range.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ImpactLevel is the market-impact label produced by the whale monitor
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// adjustForWhale mutates the strategy in response to whale activity and
// returns human-readable descriptions of every action taken.
func (s *Strategy) adjustForWhale(impact ImpactLevel, priceImpact float64, currentPrice decimal.Decimal) []string {
	var actions []string

	switch impact {
	case ImpactCritical:
		if s.Status == StatusActive {
			s.Status = StatusPaused
			actions = append(actions, "Grid paused due to critical whale activity")
		}

	case ImpactHigh:
		// Widen spacing up to 50% depending on estimated price impact
		mult := 1.0 + math.Min(priceImpact/100.0, 0.5)
		s.GridSpacing = s.GridSpacing.Mul(decimal.NewFromFloat(mult))

		if s.LastPrice.IsPositive() {
			change := currentPrice.Sub(s.LastPrice).Div(s.LastPrice).Abs()
			if change.GreaterThan(decimal.NewFromFloat(0.05)) {
				// Expand range by 20% of its width, split evenly
				expansion := s.UpperPrice.Sub(s.LowerPrice).Mul(decimal.NewFromFloat(0.2))
				half := expansion.Div(decimal.NewFromInt(2))
				lower := s.LowerPrice.Sub(half)
				if lower.IsNegative() {
					lower = decimal.Zero
				}
				s.LowerPrice = lower
				s.UpperPrice = s.UpperPrice.Add(half)
				actions = append(actions, fmt.Sprintf(
					"Grid range expanded by %s%% due to whale activity",
					change.Mul(decimal.NewFromInt(100)).StringFixed(2)))
			}
		}
		actions = append(actions, "Grid spacing widened for high volatility")

	case ImpactMedium:
		s.GridSpacing = s.GridSpacing.Mul(decimal.NewFromFloat(1.1))
		actions = append(actions, "Grid spacing slightly widened")
	}

	return actions
}

// ShouldPauseForWhale reports whether a grid should stop trading given the
// whale monitor's impact label, estimated price impact and velocity score.
func ShouldPauseForWhale(impact ImpactLevel, priceImpact, velocityScore float64) bool {
	switch impact {
	case ImpactCritical:
		return true
	case ImpactHigh:
		return velocityScore > 0.7 || priceImpact > 8.0
	default:
		return false
	}
}

// optimizeForVolatility scales spacing with observed volatility and whale
// activity, cancelling the oldest 25% of pending orders under extremes.
func (s *Strategy) optimizeForVolatility(avgVolatility, whaleActivityLevel float64) {
	adjustment := 1.0 + avgVolatility*whaleActivityLevel*0.5
	s.GridSpacing = s.GridSpacing.Mul(decimal.NewFromFloat(adjustment))

	if avgVolatility > 0.10 && whaleActivityLevel > 0.7 {
		toCancel := len(s.ActiveOrders) / 4
		cancelled := 0
		for _, o := range s.ActiveOrders {
			if cancelled >= toCancel {
				break
			}
			if o.Status == OrderPending {
				o.Status = OrderCancelled
				cancelled++
			}
		}
	}
}
