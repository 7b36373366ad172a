package grid

import (
	"github.com/shopspring/decimal"
)

// Level reports the state of one ladder level
type Level struct {
	Level     int
	Price     decimal.Decimal
	BuyOrder  *Order
	SellOrder *Order
	Profit    decimal.Decimal // percent, sell level vs paired buy level
}

// Stats is a snapshot of one strategy's performance
type Stats struct {
	StrategyID         string
	Status             Status
	TotalProfit        decimal.Decimal
	TotalProfitPercent decimal.Decimal
	TotalTrades        int
	ActiveOrders       int
	CompletedOrders    int
	CurrentPrice       decimal.Decimal
	LowerPrice         decimal.Decimal
	UpperPrice         decimal.Decimal
	Levels             []Level
}

// Order prices are matched to ladder levels within this tolerance
var levelTolerance = decimal.NewFromFloat(1e-4)

// Stats builds a per-level snapshot of a strategy
func (e *Engine) Stats(id string, currentPrice decimal.Decimal) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}

	levels := make([]Level, 0, s.GridCount)
	for i := 0; i < s.GridCount; i++ {
		price := s.LowerPrice.Add(s.GridSpacing.Mul(decimal.NewFromInt(int64(i))))

		var buy, sell *Order
		for _, o := range s.ActiveOrders {
			if !o.Price.Sub(price).Abs().LessThan(levelTolerance) {
				continue
			}
			switch o.Type {
			case OrderBuy:
				if buy == nil {
					buy = o
				}
			case OrderSell:
				if sell == nil {
					sell = o
				}
			}
		}

		profit := decimal.Zero
		if buy != nil && sell != nil && buy.Price.IsPositive() {
			profit = sell.Price.Sub(buy.Price).Div(buy.Price).Mul(decimal.NewFromInt(100))
		}

		levels = append(levels, Level{
			Level:     i + 1,
			Price:     price,
			BuyOrder:  buy,
			SellOrder: sell,
			Profit:    profit,
		})
	}

	profitPct := decimal.Zero
	if s.Investment.IsPositive() {
		profitPct = s.TotalProfit.Div(s.Investment).Mul(decimal.NewFromInt(100))
	}

	return &Stats{
		StrategyID:         s.ID,
		Status:             s.Status,
		TotalProfit:        s.TotalProfit,
		TotalProfitPercent: profitPct,
		TotalTrades:        s.TotalTrades,
		ActiveOrders:       len(s.ActiveOrders),
		CompletedOrders:    len(s.CompletedOrders),
		CurrentPrice:       currentPrice,
		LowerPrice:         s.LowerPrice,
		UpperPrice:         s.UpperPrice,
		Levels:             levels,
	}, nil
}
