package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/bot"
	"github.com/Dipraise1/trading-engine/exec"
	"github.com/Dipraise1/trading-engine/feeds"
	"github.com/Dipraise1/trading-engine/grid"
	"github.com/Dipraise1/trading-engine/internal/config"
	"github.com/Dipraise1/trading-engine/monitor"
	"github.com/Dipraise1/trading-engine/risk"
	"github.com/Dipraise1/trading-engine/storage"
	"github.com/Dipraise1/trading-engine/types"
	"github.com/Dipraise1/trading-engine/whale"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CORE ENGINE - Wires feeds into the decision components
// ═══════════════════════════════════════════════════════════════════════════════
//
// Event flow:
//   price tick  -> grid strategies for the token
//   whale trade -> scoring -> grid adjustments + alert matches
//   close signal <- position monitor -> sell swap -> risk bookkeeping
//
// The buy path is serialized per user so the risk check and its commit
// see a consistent open-position count.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Engine struct {
	cfg       *config.Config
	db        *storage.Database
	grids     *grid.Engine
	risks     *risk.Engine
	whales    *whale.Monitor
	positions *monitor.Monitor
	prices    *feeds.PriceClient
	stream    *feeds.TradeStream
	executor  *exec.Client
	security  *exec.SecurityChecker
	notifier  *bot.Notifier
}

func New(cfg *config.Config) (*Engine, error) {
	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	executor, err := exec.NewClient(cfg.ExecutorRPCURL, cfg.ExecutorPrivKey, cfg.DryRun)
	if err != nil {
		return nil, fmt.Errorf("init executor: %w", err)
	}

	notifier, err := bot.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		return nil, fmt.Errorf("init telegram: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		db:       db,
		grids:    grid.NewEngine(),
		risks:    risk.NewEngine(db, db, db),
		whales:   whale.NewMonitor(cfg.KnownWhaleWallets),
		prices:   feeds.NewPriceClient(cfg.PriceCacheTTL),
		executor: executor,
		security: exec.NewSecurityChecker(cfg.SecurityCheckURL),
		notifier: notifier,
	}

	policy := monitor.Policy{
		TakeProfitSellPercent: cfg.TakeProfitSellPercent,
		StopLossSellPercent:   cfg.StopLossSellPercent,
	}
	e.positions = monitor.New(db, e.prices, e, policy, cfg.MonitorInterval)

	if cfg.TradeStreamURL != "" {
		e.stream = feeds.NewTradeStream(cfg.TradeStreamURL, cfg.WhaleMinSizeUSD)
	}

	return e, nil
}

// Run processes events until ctx is cancelled
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Msg("⚙️ Core engine starting")

	go e.positions.Run(ctx)

	var whaleCh chan types.WhaleTrade
	var tickCh chan feeds.PriceTick
	if e.stream != nil {
		whaleCh = e.stream.SubscribeWhales()
		tickCh = e.stream.SubscribeTicks()
		e.stream.Start()
		defer e.stream.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("⚙️ Core engine stopping")
			<-e.positions.Done()
			return ctx.Err()
		case trade := <-whaleCh:
			e.handleWhaleTrade(ctx, trade)
		case tick := <-tickCh:
			e.handlePriceTick(ctx, tick)
		}
	}
}

// handlePriceTick advances every grid strategy trading the ticked token
func (e *Engine) handlePriceTick(ctx context.Context, tick feeds.PriceTick) {
	for _, id := range e.grids.IDsForToken(tick.Chain, tick.Token) {
		if _, err := e.grids.ApplyPriceTick(id, tick.Price); err != nil {
			log.Error().Err(err).Str("strategy", id).Msg("Grid tick failed")
			continue
		}
		e.persistGrid(ctx, id)
	}
}

// handleWhaleTrade scores a large trade and feeds the verdict downstream
func (e *Engine) handleWhaleTrade(ctx context.Context, trade types.WhaleTrade) {
	if err := e.db.SaveWhaleTrade(ctx, &trade); err != nil {
		log.Error().Err(err).Msg("Persist whale trade failed")
	}

	recent, err := e.db.RecentWhaleTrades(ctx, trade.Timestamp.Add(-24*time.Hour))
	if err != nil {
		log.Error().Err(err).Msg("Load recent whale trades failed")
		recent = nil
	}

	avgVolume := decimal.Zero
	if quote, err := e.prices.GetPrice(ctx, trade.Chain, trade.Token); err == nil {
		avgVolume = quote.Volume24h
	}

	activity := e.whales.DetectActivity(trade, recent, avgVolume)
	e.whales.TrackTrade(trade, activity.PriceImpact)

	// One notification per trade regardless of how many alerts matched
	if len(e.whales.MatchAlerts(trade)) > 0 {
		e.notifier.NotifyWhale(activity)
	}

	impact := grid.ImpactLevel(activity.MarketImpact)
	for _, id := range e.grids.IDsForToken(trade.Chain, trade.Token) {
		actions, err := e.grids.AdjustForWhale(id, impact, activity.PriceImpact, trade.Price)
		if err != nil {
			log.Error().Err(err).Str("strategy", id).Msg("Whale adjustment failed")
			continue
		}
		for _, a := range actions {
			e.notifier.NotifyGridAction(id, a)
		}
		if len(actions) > 0 {
			e.persistGrid(ctx, id)
		}
	}
}

// BuyToken is the gated buy path: security check, then risk check and swap
// under the user's serialization lock.
func (e *Engine) BuyToken(ctx context.Context, userID int64, chain types.Chain, token string, amountUSD decimal.Decimal) (*types.Position, error) {
	report, err := e.security.Check(ctx, chain, token)
	if err != nil {
		return nil, fmt.Errorf("security check: %w", err)
	}
	if !report.IsSafe {
		e.risks.AddToBlacklist(token)
		return nil, fmt.Errorf("token failed security check (rug score %.0f)", report.RugScore)
	}

	quote, err := e.prices.GetPrice(ctx, chain, token)
	if err != nil {
		return nil, fmt.Errorf("quote token: %w", err)
	}

	unlock := e.risks.LockUser(userID)
	defer unlock()

	if err := e.risks.CheckTradeRisk(ctx, userID, token, amountUSD); err != nil {
		e.notifier.NotifyRiskRejection(userID, token, err)
		return nil, err
	}

	profile, err := e.risks.ProfileFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load risk profile: %w", err)
	}

	result, err := e.executor.ExecuteSwap(ctx, exec.SwapRequest{
		UserID:    userID,
		Chain:     chain,
		Token:     token,
		Side:      "BUY",
		AmountUSD: amountUSD,
		Price:     quote.PriceUSD,
	})
	if err != nil {
		return nil, fmt.Errorf("execute buy: %w", err)
	}

	pos, err := newPosition(userID, chain, token, quote.Symbol, amountUSD, result.FilledPrice, profile)
	if err != nil {
		return nil, err
	}
	if err := e.db.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	e.logTrade(ctx, userID, chain, token, "BUY", result.FilledPrice, pos.Amount, decimal.Zero, result.Signature)

	log.Info().
		Int64("user", userID).
		Str("token", quote.Symbol).
		Str("amount", amountUSD.StringFixed(2)).
		Str("price", result.FilledPrice.String()).
		Msg("💰 Position opened")

	return pos, nil
}

// newPosition sizes a position from a fill and seeds its exit thresholds
// from the user's profile. Rejects fills at a non-positive price.
func newPosition(userID int64, chain types.Chain, token, symbol string, amountUSD, fillPrice decimal.Decimal, profile *risk.Profile) (*types.Position, error) {
	if !fillPrice.IsPositive() {
		return nil, fmt.Errorf("buy filled at non-positive price %s, rejecting", fillPrice)
	}
	return &types.Position{
		ID:                uuid.New().String(),
		UserID:            userID,
		Chain:             chain,
		Token:             token,
		TokenSymbol:       symbol,
		Amount:            amountUSD.Div(fillPrice),
		EntryPrice:        fillPrice,
		TakeProfitPercent: profile.DefaultTakeProfitPercent,
		StopLossPercent:   profile.DefaultStopLossPercent,
		OpenedAt:          time.Now(),
	}, nil
}

// HandleCloseSignal executes a close signal from the position monitor
func (e *Engine) HandleCloseSignal(ctx context.Context, sig types.CloseSignal) {
	pos, err := e.db.GetPosition(ctx, sig.PositionID)
	if err != nil {
		log.Error().Err(err).Str("position", sig.PositionID).Msg("Close signal for unknown position")
		return
	}

	soldAmount := pos.Amount.Mul(sig.SellPercent).Div(decimal.NewFromInt(100))
	result, err := e.executor.ExecuteSwap(ctx, exec.SwapRequest{
		UserID:    sig.UserID,
		Chain:     sig.Chain,
		Token:     sig.Token,
		Side:      "SELL",
		AmountUSD: soldAmount.Mul(sig.Price),
		Price:     sig.Price,
	})
	if err != nil {
		log.Error().Err(err).Str("position", sig.PositionID).Msg("Close swap failed")
		return
	}

	if err := e.db.ReducePosition(ctx, sig.PositionID, sig.SellPercent); err != nil {
		log.Error().Err(err).Str("position", sig.PositionID).Msg("Position reduce failed")
	}

	pnlUSD := result.FilledPrice.Sub(pos.EntryPrice).Mul(soldAmount)
	e.risks.RecordTradeResult(sig.UserID, pnlUSD)
	e.persistDailyStat(ctx, sig.UserID)

	e.logTrade(ctx, sig.UserID, sig.Chain, sig.Token, "SELL", result.FilledPrice, soldAmount, pnlUSD, result.Signature)
	e.notifier.NotifyCloseSignal(sig)
}

// CreateGridStrategy validates, registers and persists a new grid
func (e *Engine) CreateGridStrategy(ctx context.Context, p grid.CreateParams) (*grid.Strategy, error) {
	s, err := e.grids.Create(p)
	if err != nil {
		return nil, err
	}
	e.persistGrid(ctx, s.ID)
	return s, nil
}

// GridStats exposes per-level stats for one strategy
func (e *Engine) GridStats(ctx context.Context, strategyID string) (*grid.Stats, error) {
	s, err := e.grids.Get(strategyID)
	if err != nil {
		return nil, err
	}

	price := s.LastPrice
	if quote, err := e.prices.GetPrice(ctx, s.Chain, s.Token); err == nil {
		price = quote.PriceUSD
	}
	return e.grids.Stats(strategyID, price)
}

// PortfolioStats exposes a user's realized trade statistics
func (e *Engine) PortfolioStats(ctx context.Context, userID int64) (*storage.PortfolioStats, error) {
	return e.db.PortfolioStatsForUser(ctx, userID)
}

// Leaderboard ranks users by realized PnL. A zero since means all-time;
// passing midnight (or now-24h) yields the daily board.
func (e *Engine) Leaderboard(ctx context.Context, since time.Time, limit int) ([]storage.LeaderboardEntry, error) {
	return e.db.Leaderboard(ctx, since, limit)
}

// UserRank returns one user's leaderboard standing, nil when unranked
func (e *Engine) UserRank(ctx context.Context, userID int64, since time.Time) (*storage.LeaderboardEntry, error) {
	return e.db.UserRank(ctx, userID, since)
}

// WhaleStats exposes 24h whale flow statistics
func (e *Engine) WhaleStats(ctx context.Context) (whale.TrackerStats, error) {
	trades, err := e.db.RecentWhaleTrades(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return whale.TrackerStats{}, err
	}
	return e.whales.Stats(trades), nil
}

func (e *Engine) persistGrid(ctx context.Context, strategyID string) {
	s, err := e.grids.Get(strategyID)
	if err != nil {
		return
	}

	orders, err := json.Marshal(struct {
		Active    []*grid.Order `json:"active"`
		Completed []*grid.Order `json:"completed"`
	}{s.ActiveOrders, s.CompletedOrders})
	if err != nil {
		log.Error().Err(err).Str("strategy", strategyID).Msg("Grid snapshot marshal failed")
		return
	}

	rec := &storage.GridStrategyRecord{
		ID:          s.ID,
		UserID:      s.UserID,
		Chain:       string(s.Chain),
		Token:       s.Token,
		TokenSymbol: s.TokenSymbol,
		LowerPrice:  s.LowerPrice,
		UpperPrice:  s.UpperPrice,
		GridCount:   s.GridCount,
		Investment:  s.Investment,
		Status:      string(s.Status),
		TotalProfit: s.TotalProfit,
		TotalTrades: s.TotalTrades,
		OrdersJSON:  string(orders),
	}
	if err := e.db.SaveGridStrategy(ctx, rec); err != nil {
		log.Error().Err(err).Str("strategy", strategyID).Msg("Grid snapshot save failed")
	}
}

func (e *Engine) persistDailyStat(ctx context.Context, userID int64) {
	date := time.Now().Format("2006-01-02")
	loss := e.risks.DailyLoss(userID)
	if err := e.db.UpsertDailyStat(ctx, userID, date, loss); err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("Daily stat persist failed")
	}
}

func (e *Engine) logTrade(ctx context.Context, userID int64, chain types.Chain, token, side string, price, amount, pnl decimal.Decimal, signature string) {
	entry := &types.TradeLogEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Chain:     chain,
		Token:     token,
		Side:      side,
		Price:     price,
		Amount:    amount,
		PnL:       pnl,
		Timestamp: time.Now(),
	}
	if err := e.db.SaveTradeLog(ctx, entry, signature); err != nil {
		log.Error().Err(err).Msg("Trade log save failed")
	}
}
