package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION MONITOR - Emits close signals, never trades
// ═══════════════════════════════════════════════════════════════════════════════

// Policy controls how much of a position a triggered signal sells
type Policy struct {
	TakeProfitSellPercent decimal.Decimal
	StopLossSellPercent   decimal.Decimal
}

// DefaultPolicy sells half on take-profit and everything on stop-loss
func DefaultPolicy() Policy {
	return Policy{
		TakeProfitSellPercent: decimal.NewFromInt(50),
		StopLossSellPercent:   decimal.NewFromInt(100),
	}
}

// PositionSource lists the open positions to watch
type PositionSource interface {
	OpenPositions(ctx context.Context) ([]types.Position, error)
}

// PriceSource quotes current prices for held tokens
type PriceSource interface {
	GetPrice(ctx context.Context, chain types.Chain, token string) (*types.TokenPrice, error)
}

// SignalSink receives emitted close signals
type SignalSink interface {
	HandleCloseSignal(ctx context.Context, sig types.CloseSignal)
}

type Monitor struct {
	positions PositionSource
	prices    PriceSource
	sink      SignalSink
	policy    Policy
	interval  time.Duration
	done      chan struct{}
}

func New(positions PositionSource, prices PriceSource, sink SignalSink, policy Policy, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		positions: positions,
		prices:    prices,
		sink:      sink,
		policy:    policy,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Run ticks until ctx is cancelled. An in-flight sweep always finishes
// before Run returns; Done is closed afterward.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("👁️ Position monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("👁️ Position monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// Done is closed once the monitor loop has fully exited
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// sweep evaluates every open position once. Uses Background so an
// in-flight sweep completes even when the run context is cancelled.
func (m *Monitor) sweep(ctx context.Context) {
	sweepCtx := context.Background()

	positions, err := m.positions.OpenPositions(sweepCtx)
	if err != nil {
		log.Error().Err(err).Msg("Position sweep failed to list positions")
		return
	}
	if len(positions) == 0 {
		return
	}

	prices := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		key := priceKey(p.Chain, p.Token)
		if _, ok := prices[key]; ok {
			continue
		}
		quote, err := m.prices.GetPrice(sweepCtx, p.Chain, p.Token)
		if err != nil {
			// Skip this token for the tick, never guess a price
			log.Warn().Err(err).Str("token", p.TokenSymbol).Msg("Price fetch failed, skipping position")
			continue
		}
		prices[key] = quote.PriceUSD
	}

	for _, sig := range EvaluatePositions(positions, prices, m.policy) {
		log.Info().
			Str("position", sig.PositionID).
			Str("reason", sig.Reason).
			Str("pnl_pct", sig.PnLPercent.StringFixed(2)).
			Str("sell_pct", sig.SellPercent.StringFixed(0)).
			Msg("🎯 Close signal emitted")
		m.sink.HandleCloseSignal(sweepCtx, sig)
	}
}

// EvaluatePositions computes PnL for every position with a known price and
// returns the close signals the policy demands. Pure, no side effects.
func EvaluatePositions(positions []types.Position, prices map[string]decimal.Decimal, policy Policy) []types.CloseSignal {
	var signals []types.CloseSignal
	for _, p := range positions {
		price, ok := prices[priceKey(p.Chain, p.Token)]
		if !ok || p.EntryPrice.IsZero() {
			continue
		}

		pnlPct := p.PnLPercent(price)

		switch {
		case pnlPct.GreaterThanOrEqual(p.TakeProfitPercent):
			signals = append(signals, types.CloseSignal{
				PositionID:  p.ID,
				UserID:      p.UserID,
				Chain:       p.Chain,
				Token:       p.Token,
				Reason:      types.CloseReasonTakeProfit,
				PnLPercent:  pnlPct,
				SellPercent: policy.TakeProfitSellPercent,
				Price:       price,
			})
		case pnlPct.LessThanOrEqual(p.StopLossPercent.Neg()):
			signals = append(signals, types.CloseSignal{
				PositionID:  p.ID,
				UserID:      p.UserID,
				Chain:       p.Chain,
				Token:       p.Token,
				Reason:      types.CloseReasonStopLoss,
				PnLPercent:  pnlPct,
				SellPercent: policy.StopLossSellPercent,
				Price:       price,
			})
		}
	}
	return signals
}

func priceKey(chain types.Chain, token string) string {
	return string(chain) + ":" + token
}
