package storage

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LeaderboardEntry is one user's ranked standing by realized PnL
type LeaderboardEntry struct {
	Rank       int
	UserID     int64
	TotalPnL   decimal.Decimal
	TradeCount int
	Wins       int
	WinRate    decimal.Decimal // percent
}

// Leaderboard ranks all users by realized PnL over the window. A zero
// since means all-time; limit caps the result, 0 returns every user.
// Ties keep a stable order by user ID.
func (d *Database) Leaderboard(ctx context.Context, since time.Time, limit int) ([]LeaderboardEntry, error) {
	q := d.db.WithContext(ctx)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var logs []TradeLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}

	byUser := make(map[int64]*LeaderboardEntry)
	for _, l := range logs {
		e, ok := byUser[l.UserID]
		if !ok {
			e = &LeaderboardEntry{UserID: l.UserID}
			byUser[l.UserID] = e
		}
		e.TotalPnL = e.TotalPnL.Add(l.PnL)
		e.TradeCount++
		if l.PnL.IsPositive() {
			e.Wins++
		}
	}

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		if e.TradeCount > 0 {
			e.WinRate = decimal.NewFromInt(int64(e.Wins)).
				Div(decimal.NewFromInt(int64(e.TradeCount))).
				Mul(decimal.NewFromInt(100))
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].TotalPnL.Equal(entries[j].TotalPnL) {
			return entries[i].TotalPnL.GreaterThan(entries[j].TotalPnL)
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// UserRank returns the user's standing over the window, or nil when the
// user has no trades in it.
func (d *Database) UserRank(ctx context.Context, userID int64, since time.Time) (*LeaderboardEntry, error) {
	entries, err := d.Leaderboard(ctx, since, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, nil
}
