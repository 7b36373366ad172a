package grid

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// GRID STRATEGY - Ladder order state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Buys dips and sells rallies inside [lower, upper]:
//   - One pending buy is seeded at each of grid_count evenly spaced levels
//   - A buy fill spawns a sell one spacing above the fill price
//   - A sell fill realizes profit against the most recent lower buy fill
//     and spawns a buy one spacing below
//   - Out-of-range ticks pause the grid; back-in-range ticks resume it
//
// ═══════════════════════════════════════════════════════════════════════════════

// Validation errors. Never retried - the caller must fix the inputs.
var (
	ErrInvalidPriceRange = errors.New("lower price must be less than upper price")
	ErrInvalidGridCount  = errors.New("grid count must be at least 2")
	ErrInvalidInvestment = errors.New("investment amount must be positive")
	ErrStrategyNotFound  = errors.New("grid strategy not found")
)

// OrderType is the side of a grid order
type OrderType string

const (
	OrderBuy  OrderType = "BUY"
	OrderSell OrderType = "SELL"
)

// OrderStatus is the lifecycle state of a grid order
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderActive    OrderStatus = "ACTIVE"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Status is the lifecycle state of a grid strategy
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusStopped   Status = "STOPPED"
	StatusCompleted Status = "COMPLETED"
)

// Order is a single ladder order. Only the engine creates these.
type Order struct {
	ID            string
	Type          OrderType
	Price         decimal.Decimal
	Amount        decimal.Decimal // USD allocated to the level
	Status        OrderStatus
	CreatedAt     time.Time
	FilledAt      *time.Time
	FilledPrice   decimal.Decimal
	ProfitPercent decimal.Decimal // set on sell fills
}

func (o *Order) open() bool {
	return o.Status == OrderPending || o.Status == OrderActive
}

// Strategy holds the full state of one grid
type Strategy struct {
	ID              string
	UserID          int64
	Chain           types.Chain
	Token           string
	TokenSymbol     string
	LowerPrice      decimal.Decimal
	UpperPrice      decimal.Decimal
	GridCount       int
	GridSpacing     decimal.Decimal
	Investment      decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	LastPrice       decimal.Decimal
	TotalProfit     decimal.Decimal
	TotalTrades     int
	ActiveOrders    []*Order
	CompletedOrders []*Order
}

// CreateParams are the user-supplied grid parameters
type CreateParams struct {
	UserID      int64
	Chain       types.Chain
	Token       string
	TokenSymbol string
	LowerPrice  decimal.Decimal
	UpperPrice  decimal.Decimal
	GridCount   int
	Investment  decimal.Decimal
}

// NewStrategy validates params and seeds one pending buy per grid level
func NewStrategy(p CreateParams) (*Strategy, error) {
	if !p.LowerPrice.LessThan(p.UpperPrice) {
		return nil, ErrInvalidPriceRange
	}
	if p.GridCount < 2 {
		return nil, ErrInvalidGridCount
	}
	if !p.Investment.IsPositive() {
		return nil, ErrInvalidInvestment
	}

	now := time.Now()
	spacing := p.UpperPrice.Sub(p.LowerPrice).Div(decimal.NewFromInt(int64(p.GridCount - 1)))
	amountPerLevel := p.Investment.Div(decimal.NewFromInt(int64(p.GridCount)))

	orders := make([]*Order, 0, p.GridCount)
	for i := 0; i < p.GridCount; i++ {
		price := p.LowerPrice.Add(spacing.Mul(decimal.NewFromInt(int64(i))))
		orders = append(orders, &Order{
			ID:        fmt.Sprintf("grid_%s_%d", uuid.NewString(), i),
			Type:      OrderBuy,
			Price:     price,
			Amount:    amountPerLevel,
			Status:    OrderPending,
			CreatedAt: now,
		})
	}

	return &Strategy{
		ID:           fmt.Sprintf("grid_%d_%s", p.UserID, uuid.NewString()),
		UserID:       p.UserID,
		Chain:        p.Chain,
		Token:        p.Token,
		TokenSymbol:  p.TokenSymbol,
		LowerPrice:   p.LowerPrice,
		UpperPrice:   p.UpperPrice,
		GridCount:    p.GridCount,
		GridSpacing:  spacing,
		Investment:   p.Investment,
		Status:       StatusActive,
		CreatedAt:    now,
		LastPrice:    p.LowerPrice.Add(p.UpperPrice).Div(decimal.NewFromInt(2)),
		ActiveOrders: orders,
	}, nil
}

// applyTick runs the fill pass for one price tick and returns spawned orders.
// Buys are processed before sells, each pass in array order.
func (s *Strategy) applyTick(price decimal.Decimal, now time.Time) []*Order {
	s.LastPrice = price

	if price.LessThan(s.LowerPrice) || price.GreaterThan(s.UpperPrice) {
		// Out-of-range ticks never fill orders
		if s.Status == StatusActive {
			s.Status = StatusPaused
		}
		return nil
	}

	if s.Status == StatusPaused {
		s.Status = StatusActive
	}
	if s.Status != StatusActive {
		return nil
	}

	var spawned []*Order

	// Buy fills: price dropped to or below the order level
	still := make([]*Order, 0, len(s.ActiveOrders))
	for _, o := range s.ActiveOrders {
		if o.Type != OrderBuy || !o.open() || price.GreaterThan(o.Price) {
			still = append(still, o)
			continue
		}
		s.fill(o, price, now)

		sellPrice := price.Add(s.GridSpacing)
		if sellPrice.LessThanOrEqual(s.UpperPrice) {
			sell := s.spawn(OrderSell, sellPrice, o.Amount, now)
			still = append(still, sell)
			spawned = append(spawned, sell)
		}
	}

	// Sell fills: price rose to or above the order level
	active := make([]*Order, 0, len(still))
	for _, o := range still {
		if o.Type != OrderSell || !o.open() || price.LessThan(o.Price) {
			active = append(active, o)
			continue
		}

		// Pair with the most recent completed buy below this sell level
		if buy := s.lastBuyBelow(o.Price); buy != nil {
			o.ProfitPercent = o.Price.Sub(buy.Price).Div(buy.Price).Mul(decimal.NewFromInt(100))
			s.TotalProfit = s.TotalProfit.Add(o.Amount.Mul(o.Price.Sub(buy.Price)))
		}
		s.fill(o, price, now)

		buyPrice := price.Sub(s.GridSpacing)
		if buyPrice.GreaterThanOrEqual(s.LowerPrice) {
			buy := s.spawn(OrderBuy, buyPrice, o.Amount, now)
			active = append(active, buy)
			spawned = append(spawned, buy)
		}
	}

	s.ActiveOrders = active
	return spawned
}

func (s *Strategy) fill(o *Order, price decimal.Decimal, now time.Time) {
	o.Status = OrderFilled
	o.FilledAt = &now
	o.FilledPrice = price
	s.CompletedOrders = append(s.CompletedOrders, o)
	s.TotalTrades++
}

func (s *Strategy) spawn(typ OrderType, price, amount decimal.Decimal, now time.Time) *Order {
	return &Order{
		ID:        fmt.Sprintf("grid_%s_%s", typ, uuid.NewString()),
		Type:      typ,
		Price:     price,
		Amount:    amount,
		Status:    OrderPending,
		CreatedAt: now,
	}
}

func (s *Strategy) lastBuyBelow(price decimal.Decimal) *Order {
	for i := len(s.CompletedOrders) - 1; i >= 0; i-- {
		o := s.CompletedOrders[i]
		if o.Type == OrderBuy && o.Price.LessThan(price) {
			return o
		}
	}
	return nil
}

func (s *Strategy) pause() {
	s.Status = StatusPaused
}

func (s *Strategy) resume() {
	if s.Status == StatusPaused {
		s.Status = StatusActive
	}
}

func (s *Strategy) stop() {
	s.Status = StatusStopped
	for _, o := range s.ActiveOrders {
		if o.open() {
			o.Status = OrderCancelled
		}
	}
}
