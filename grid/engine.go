package grid

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// GRID ENGINE - Owns all grid strategies
// ═══════════════════════════════════════════════════════════════════════════════
//
// Many concurrent readers (stats, queries), single writer per tick.
// No collaborator calls happen under the lock.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Engine struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
}

func NewEngine() *Engine {
	return &Engine{strategies: make(map[string]*Strategy)}
}

// Create validates params, seeds the ladder and registers the strategy
func (e *Engine) Create(p CreateParams) (*Strategy, error) {
	s, err := NewStrategy(p)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.strategies[s.ID] = s
	e.mu.Unlock()

	log.Info().
		Str("strategy", s.ID).
		Int64("user", s.UserID).
		Str("token", s.TokenSymbol).
		Str("range", s.LowerPrice.String()+"-"+s.UpperPrice.String()).
		Int("levels", s.GridCount).
		Msg("📐 Grid strategy created")

	return s, nil
}

// Get returns a strategy by id
func (e *Engine) Get(id string) (*Strategy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return s, nil
}

// ForUser returns all strategies owned by a user
func (e *Engine) ForUser(userID int64) []*Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Strategy
	for _, s := range e.strategies {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// IDsForToken returns the ids of all strategies trading one token
func (e *Engine) IDsForToken(chain types.Chain, token string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for _, s := range e.strategies {
		if s.Chain == chain && s.Token == token {
			out = append(out, s.ID)
		}
	}
	return out
}

// ApplyPriceTick advances one strategy with a new price and returns any
// orders spawned by fills during the tick.
func (e *Engine) ApplyPriceTick(id string, price decimal.Decimal) ([]*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}

	before := s.Status
	spawned := s.applyTick(price, time.Now())
	if s.Status != before {
		log.Info().
			Str("strategy", id).
			Str("price", price.String()).
			Str("status", string(s.Status)).
			Msg("Grid status changed")
	}
	if len(spawned) > 0 {
		log.Debug().
			Str("strategy", id).
			Str("price", price.String()).
			Int("spawned", len(spawned)).
			Int("trades", s.TotalTrades).
			Msg("Grid tick filled orders")
	}
	return spawned, nil
}

// AdjustForWhale applies whale-driven parameter changes to one strategy
func (e *Engine) AdjustForWhale(id string, impact ImpactLevel, priceImpact float64, currentPrice decimal.Decimal) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}

	actions := s.adjustForWhale(impact, priceImpact, currentPrice)
	for _, a := range actions {
		log.Warn().Str("strategy", id).Str("impact", string(impact)).Msg("🐋 " + a)
	}
	return actions, nil
}

// OptimizeForVolatility tunes spacing and exposure for one strategy
func (e *Engine) OptimizeForVolatility(id string, avgVolatility, whaleActivityLevel float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[id]
	if !ok {
		return ErrStrategyNotFound
	}
	s.optimizeForVolatility(avgVolatility, whaleActivityLevel)
	return nil
}

// Pause suspends trading on a strategy
func (e *Engine) Pause(id string) error {
	return e.control(id, (*Strategy).pause, "⏸️ Grid paused")
}

// Resume reactivates a paused strategy. No-op unless currently paused.
func (e *Engine) Resume(id string) error {
	return e.control(id, (*Strategy).resume, "▶️ Grid resumed")
}

// Stop terminally stops a strategy and cancels all open orders
func (e *Engine) Stop(id string) error {
	return e.control(id, (*Strategy).stop, "⏹️ Grid stopped")
}

func (e *Engine) control(id string, fn func(*Strategy), msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[id]
	if !ok {
		return ErrStrategyNotFound
	}
	fn(s)
	log.Info().Str("strategy", id).Str("status", string(s.Status)).Msg(msg)
	return nil
}
