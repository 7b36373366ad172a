package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Chain identifies the network a token trades on
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
)

// TradeType describes what a trade did
type TradeType string

const (
	TradeBuy        TradeType = "BUY"
	TradeSell       TradeType = "SELL"
	TradeLong       TradeType = "LONG"
	TradeShort      TradeType = "SHORT"
	TradeCloseLong  TradeType = "CLOSE_LONG"
	TradeCloseShort TradeType = "CLOSE_SHORT"
)

// PositionType is the directional exposure of a trade
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
	PositionSpot  PositionType = "SPOT"
)

// ClassifyTrade maps raw trade attributes to trade/position types
func ClassifyTrade(isPerpetual, isBuy, isOpening bool) (TradeType, PositionType) {
	if isPerpetual {
		if isOpening {
			if isBuy {
				return TradeLong, PositionLong
			}
			return TradeShort, PositionShort
		}
		if isBuy {
			return TradeCloseShort, PositionShort
		}
		return TradeCloseLong, PositionLong
	}
	if isBuy {
		return TradeBuy, PositionSpot
	}
	return TradeSell, PositionSpot
}

// Position represents an open holding
type Position struct {
	ID                string
	UserID            int64
	Chain             Chain
	Token             string
	TokenSymbol       string
	Amount            decimal.Decimal // token units held
	EntryPrice        decimal.Decimal
	CurrentPrice      decimal.Decimal
	TakeProfitPercent decimal.Decimal // e.g. 30 = close at +30%
	StopLossPercent   decimal.Decimal // magnitude, e.g. 15 = close at -15%
	OpenedAt          time.Time
}

// PnLPercent returns unrealized PnL as a percentage of entry price
func (p *Position) PnLPercent(currentPrice decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// WhaleTrade is a single observed large trade. Immutable once recorded.
type WhaleTrade struct {
	ID           string
	Chain        Chain
	Token        string
	TokenSymbol  string
	TradeType    TradeType
	PositionType PositionType
	SizeUSD      decimal.Decimal
	SizeNative   decimal.Decimal
	Price        decimal.Decimal
	Timestamp    time.Time
	Wallet       string
	Leverage     float64 // 0 for spot
}

// TokenPrice is a point-in-time quote from the price collaborator
type TokenPrice struct {
	Chain          Chain
	Token          string
	Symbol         string
	PriceUSD       decimal.Decimal
	PriceNative    decimal.Decimal
	Volume24h      decimal.Decimal
	Liquidity      decimal.Decimal
	PriceChange24h decimal.Decimal
	Timestamp      time.Time
}

const (
	CloseReasonTakeProfit = "TAKE_PROFIT"
	CloseReasonStopLoss   = "STOP_LOSS"
)

// CloseSignal tells the executor to (partially) close a position.
// The position monitor emits these; it never executes trades itself.
type CloseSignal struct {
	PositionID  string
	UserID      int64
	Chain       Chain
	Token       string
	Reason      string // TAKE_PROFIT or STOP_LOSS
	PnLPercent  decimal.Decimal
	SellPercent decimal.Decimal // 100 = full close
	Price       decimal.Decimal
}

// TradeLogEntry is a realized trade for display and stats
type TradeLogEntry struct {
	ID        string
	UserID    int64
	Chain     Chain
	Token     string
	Side      string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	PnL       decimal.Decimal
	Timestamp time.Time
}
