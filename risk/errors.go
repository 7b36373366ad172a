package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rejection reasons. Each carries what the user needs to fix; none are
// retried automatically.

// KillSwitchError - the user's kill switch is on, all trading disabled
type KillSwitchError struct{}

func (KillSwitchError) Error() string {
	return "kill switch is ACTIVE - trading disabled"
}

// BlacklistError - the token is on the shared blacklist
type BlacklistError struct {
	Token string
}

func (e BlacklistError) Error() string {
	return fmt.Sprintf("token is blacklisted: %s", e.Token)
}

// TradeSizeError - the requested size exceeds the per-trade limit
type TradeSizeError struct {
	Attempted decimal.Decimal
	Max       decimal.Decimal
}

func (e TradeSizeError) Error() string {
	return fmt.Sprintf("trade size $%s exceeds limit $%s", e.Attempted.StringFixed(2), e.Max.StringFixed(2))
}

// DailyLossError - today's realized losses hit the daily cap
type DailyLossError struct {
	Loss decimal.Decimal
	Max  decimal.Decimal
}

func (e DailyLossError) Error() string {
	return fmt.Sprintf("daily loss limit reached ($%s / $%s)", e.Loss.StringFixed(2), e.Max.StringFixed(2))
}

// OpenPositionsError - the user already holds the maximum open positions
type OpenPositionsError struct {
	Current int
	Max     int
}

func (e OpenPositionsError) Error() string {
	return fmt.Sprintf("max open positions reached (%d/%d)", e.Current, e.Max)
}
