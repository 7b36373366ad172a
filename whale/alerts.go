package whale

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// Alert is a user subscription to whale trades matching its filters.
// Empty filter slices match everything.
type Alert struct {
	ID            string
	UserID        int64
	MinSizeUSD    decimal.Decimal
	Chains        []types.Chain
	Tokens        []string
	PositionTypes []types.PositionType
	Active        bool
	CreatedAt     time.Time
}

// CreateAlertParams configures a new alert subscription
type CreateAlertParams struct {
	UserID        int64
	MinSizeUSD    decimal.Decimal
	Chains        []types.Chain
	Tokens        []string
	PositionTypes []types.PositionType
}

// CreateAlert registers a new active alert subscription
func (m *Monitor) CreateAlert(p CreateAlertParams) *Alert {
	a := &Alert{
		ID:            uuid.New().String(),
		UserID:        p.UserID,
		MinSizeUSD:    p.MinSizeUSD,
		Chains:        p.Chains,
		Tokens:        p.Tokens,
		PositionTypes: p.PositionTypes,
		Active:        true,
		CreatedAt:     time.Now(),
	}

	m.mu.Lock()
	m.alerts = append(m.alerts, a)
	m.mu.Unlock()

	log.Info().
		Str("alert", a.ID).
		Int64("user", a.UserID).
		Str("min_size", a.MinSizeUSD.StringFixed(0)).
		Msg("🔔 Whale alert created")
	return a
}

// SetAlertActive toggles an alert on or off, reporting whether it exists
func (m *Monitor) SetAlertActive(id string, active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			a.Active = active
			return true
		}
	}
	return false
}

// AlertsForUser returns copies of a user's alert subscriptions
func (m *Monitor) AlertsForUser(userID int64) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out
}

// MatchAlerts returns copies of all active alerts the trade satisfies
func (m *Monitor) MatchAlerts(trade types.WhaleTrade) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []Alert
	for _, a := range m.alerts {
		if alertMatches(a, trade) {
			matched = append(matched, *a)
		}
	}
	return matched
}

func alertMatches(a *Alert, trade types.WhaleTrade) bool {
	if !a.Active {
		return false
	}
	if trade.SizeUSD.LessThan(a.MinSizeUSD) {
		return false
	}
	if len(a.Chains) > 0 && !containsChain(a.Chains, trade.Chain) {
		return false
	}
	if len(a.Tokens) > 0 && !containsString(a.Tokens, trade.Token) {
		return false
	}
	if len(a.PositionTypes) > 0 && !containsPosition(a.PositionTypes, trade.PositionType) {
		return false
	}
	return true
}

func containsChain(chains []types.Chain, c types.Chain) bool {
	for _, v := range chains {
		if v == c {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsPosition(ps []types.PositionType, p types.PositionType) bool {
	for _, v := range ps {
		if v == p {
			return true
		}
	}
	return false
}
