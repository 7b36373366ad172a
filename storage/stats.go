package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// PortfolioStats summarizes a user's realized trade history
type PortfolioStats struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     decimal.Decimal // percent
	TotalPnL    decimal.Decimal
	AvgWin      decimal.Decimal
	AvgLoss     decimal.Decimal
	LargestWin  decimal.Decimal
	LargestLoss decimal.Decimal
}

// PortfolioStatsForUser aggregates the user's trade ledger. Break-even
// trades count toward totals but neither wins nor losses.
func (d *Database) PortfolioStatsForUser(ctx context.Context, userID int64) (*PortfolioStats, error) {
	var logs []TradeLog
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&logs).Error
	if err != nil {
		return nil, err
	}

	stats := &PortfolioStats{}
	var winSum, lossSum decimal.Decimal
	for _, l := range logs {
		stats.TotalTrades++
		stats.TotalPnL = stats.TotalPnL.Add(l.PnL)

		switch {
		case l.PnL.IsPositive():
			stats.Wins++
			winSum = winSum.Add(l.PnL)
			if l.PnL.GreaterThan(stats.LargestWin) {
				stats.LargestWin = l.PnL
			}
		case l.PnL.IsNegative():
			stats.Losses++
			lossSum = lossSum.Add(l.PnL)
			if l.PnL.LessThan(stats.LargestLoss) {
				stats.LargestLoss = l.PnL
			}
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
			Div(decimal.NewFromInt(int64(stats.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}
	if stats.Wins > 0 {
		stats.AvgWin = winSum.Div(decimal.NewFromInt(int64(stats.Wins)))
	}
	if stats.Losses > 0 {
		stats.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(stats.Losses)))
	}

	return stats, nil
}
