package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK ENGINE - Gatekeeper for all trades
// ═══════════════════════════════════════════════════════════════════════════════
//
// Ordered, short-circuiting checks - each has a distinct user-facing
// remediation, so the first failure is the one reported:
//   1. kill switch  2. blacklist  3. trade size  4. daily loss  5. open positions
//
// Risk state is only mutated by RecordTradeResult. Checks have no side
// effects beyond lazily creating a default profile.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Profile holds a user's risk limits. Read-only here; mutated elsewhere.
type Profile struct {
	UserID                   int64
	MaxTradeSizeUSD          decimal.Decimal
	MaxDailyLossUSD          decimal.Decimal
	MaxOpenPositions         int
	DefaultStopLossPercent   decimal.Decimal
	DefaultTakeProfitPercent decimal.Decimal
	KillSwitchEnabled        bool
	BlacklistEnabled         bool
	LastUpdated              time.Time
}

// DefaultProfile returns the conservative limits applied to new users
func DefaultProfile(userID int64) *Profile {
	return &Profile{
		UserID:                   userID,
		MaxTradeSizeUSD:          decimal.NewFromInt(100),
		MaxDailyLossUSD:          decimal.NewFromInt(50),
		MaxOpenPositions:         5,
		DefaultStopLossPercent:   decimal.NewFromInt(15),
		DefaultTakeProfitPercent: decimal.NewFromInt(30),
		KillSwitchEnabled:        false,
		BlacklistEnabled:         true,
		LastUpdated:              time.Now(),
	}
}

// DailyStats accumulates a user's realized losses for one calendar day.
// Transient - rebuilt from the trade ledger if lost.
type DailyStats struct {
	Date         string // YYYY-MM-DD
	TotalLossUSD decimal.Decimal
	TradeCount   int
}

// ProfileStore loads and persists risk profiles.
// LoadProfile returns (nil, nil) when no profile exists yet.
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID int64) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error
}

// PositionCounter counts a user's currently open positions
type PositionCounter interface {
	CountOpenPositions(ctx context.Context, userID int64) (int, error)
}

// DailyStatStore restores persisted daily loss totals after a restart.
// Missing rows return zero values, not an error. May be nil.
type DailyStatStore interface {
	LoadDailyStat(ctx context.Context, userID int64, date string) (decimal.Decimal, int, error)
}

type Engine struct {
	profiles  ProfileStore
	positions PositionCounter
	stats     DailyStatStore

	mu         sync.RWMutex // guards dailyStats and hydrated
	dailyStats map[int64]*DailyStats
	hydrated   map[int64]string // userID -> date already restored from the store

	blMu      sync.RWMutex // guards blacklist
	blacklist map[string]struct{}

	lockMu    sync.Mutex // guards userLocks
	userLocks map[int64]*sync.Mutex
}

func NewEngine(profiles ProfileStore, positions PositionCounter, stats DailyStatStore) *Engine {
	return &Engine{
		profiles:   profiles,
		positions:  positions,
		stats:      stats,
		dailyStats: make(map[int64]*DailyStats),
		hydrated:   make(map[int64]string),
		blacklist:  make(map[string]struct{}),
		userLocks:  make(map[int64]*sync.Mutex),
	}
}

// CheckTradeRisk gates one prospective trade. A nil return means approved;
// otherwise the first failing check's error is returned.
func (e *Engine) CheckTradeRisk(ctx context.Context, userID int64, token string, amountUSD decimal.Decimal) error {
	profile, err := e.loadOrCreateProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("load risk profile: %w", err)
	}

	e.hydrateDailyStats(ctx, userID)

	if profile.KillSwitchEnabled {
		return KillSwitchError{}
	}

	if profile.BlacklistEnabled && e.Blacklisted(token) {
		return BlacklistError{Token: token}
	}

	if amountUSD.GreaterThan(profile.MaxTradeSizeUSD) {
		return TradeSizeError{Attempted: amountUSD, Max: profile.MaxTradeSizeUSD}
	}

	loss := e.todayLoss(userID)
	if loss.GreaterThanOrEqual(profile.MaxDailyLossUSD) {
		return DailyLossError{Loss: loss, Max: profile.MaxDailyLossUSD}
	}

	// Collaborator call happens outside any lock
	open, err := e.positions.CountOpenPositions(ctx, userID)
	if err != nil {
		return fmt.Errorf("count open positions: %w", err)
	}
	if open >= profile.MaxOpenPositions {
		return OpenPositionsError{Current: open, Max: profile.MaxOpenPositions}
	}

	return nil
}

// RecordTradeResult books a realized trade outcome. The sole writer of the
// daily-loss cache; call exactly once per realized close.
func (e *Engine) RecordTradeResult(userID int64, pnlUSD decimal.Decimal) {
	e.hydrateDailyStats(context.Background(), userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.rolloverLocked(userID)
	stats.TradeCount++
	if pnlUSD.IsNegative() {
		stats.TotalLossUSD = stats.TotalLossUSD.Add(pnlUSD.Abs())
		log.Info().
			Int64("user", userID).
			Str("pnl", pnlUSD.StringFixed(2)).
			Str("daily_loss", stats.TotalLossUSD.StringFixed(2)).
			Msg("📉 Loss recorded")
	}
}

// DailyLoss returns the user's realized loss for today
func (e *Engine) DailyLoss(userID int64) decimal.Decimal {
	return e.todayLoss(userID)
}

// ProfileFor returns the user's risk profile, persisting conservative
// defaults on first use.
func (e *Engine) ProfileFor(ctx context.Context, userID int64) (*Profile, error) {
	return e.loadOrCreateProfile(ctx, userID)
}

// hydrateDailyStats restores today's persisted loss total into the cache,
// once per user per day. The cache only grows from a restore: a larger
// in-memory total always wins, so losses recorded before hydration are
// never discarded.
func (e *Engine) hydrateDailyStats(ctx context.Context, userID int64) {
	if e.stats == nil {
		return
	}

	today := time.Now().Format("2006-01-02")
	e.mu.RLock()
	done := e.hydrated[userID] == today
	e.mu.RUnlock()
	if done {
		return
	}

	loss, count, err := e.stats.LoadDailyStat(ctx, userID, today)
	if err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Daily stat restore failed")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hydrated[userID] == today {
		return
	}
	e.hydrated[userID] = today

	stats := e.rolloverLocked(userID)
	if loss.GreaterThan(stats.TotalLossUSD) {
		stats.TotalLossUSD = loss
	}
	if count > stats.TradeCount {
		stats.TradeCount = count
	}
	if stats.TotalLossUSD.IsPositive() {
		log.Info().
			Int64("user", userID).
			Str("daily_loss", stats.TotalLossUSD.StringFixed(2)).
			Msg("♻️ Daily loss restored")
	}
}

// LockUser serializes a risk check and its trade commit for one user,
// closing the check-then-act window on the open-positions count. The
// returned func releases the lock.
func (e *Engine) LockUser(userID int64) func() {
	e.lockMu.Lock()
	mu, ok := e.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		e.userLocks[userID] = mu
	}
	e.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// AddToBlacklist adds a token to the shared blacklist
func (e *Engine) AddToBlacklist(token string) {
	e.blMu.Lock()
	e.blacklist[token] = struct{}{}
	e.blMu.Unlock()
	log.Warn().Str("token", token).Msg("🚫 Token blacklisted")
}

// RemoveFromBlacklist removes a token from the shared blacklist
func (e *Engine) RemoveFromBlacklist(token string) {
	e.blMu.Lock()
	delete(e.blacklist, token)
	e.blMu.Unlock()
}

// Blacklisted reports whether a token is on the shared blacklist
func (e *Engine) Blacklisted(token string) bool {
	e.blMu.RLock()
	defer e.blMu.RUnlock()
	_, ok := e.blacklist[token]
	return ok
}

func (e *Engine) loadOrCreateProfile(ctx context.Context, userID int64) (*Profile, error) {
	p, err := e.profiles.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	// First use: persist conservative defaults
	p = DefaultProfile(userID)
	if err := e.profiles.SaveProfile(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Int64("user", userID).Msg("🛡️ Default risk profile created")
	return p, nil
}

func (e *Engine) todayLoss(userID int64) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rolloverLocked(userID).TotalLossUSD
}

// rolloverLocked returns today's stats entry, resetting it when the stored
// calendar date differs. Caller must hold e.mu.
func (e *Engine) rolloverLocked(userID int64) *DailyStats {
	today := time.Now().Format("2006-01-02")
	stats, ok := e.dailyStats[userID]
	if !ok || stats.Date != today {
		stats = &DailyStats{Date: today, TotalLossUSD: decimal.Zero}
		e.dailyStats[userID] = stats
	}
	return stats
}
