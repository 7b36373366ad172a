package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustForWhaleCriticalPauses(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)

	actions := s.adjustForWhale(ImpactCritical, 12.0, d("1.5"))

	assert.Equal(t, StatusPaused, s.Status)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], "paused")

	// A second critical hit on an already paused grid does nothing
	actions = s.adjustForWhale(ImpactCritical, 12.0, d("1.5"))
	assert.Empty(t, actions)
}

func TestAdjustForWhaleHighWidensSpacing(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)
	before := s.GridSpacing

	// Price near last price: spacing widens, range stays
	actions := s.adjustForWhale(ImpactHigh, 6.0, d("1.5"))

	assert.True(t, s.GridSpacing.GreaterThan(before))
	assert.True(t, s.LowerPrice.Equal(d("1.0")))
	assert.True(t, s.UpperPrice.Equal(d("2.0")))
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], "spacing widened")
}

func TestAdjustForWhaleHighExpandsRangeOnBigMove(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)

	// Tick 20% away from last price (1.5 -> 1.8) triggers range expansion
	actions := s.adjustForWhale(ImpactHigh, 6.0, d("1.8"))

	// Width 1.0 expands by 0.2, split evenly
	assert.True(t, s.LowerPrice.Equal(d("0.9")))
	assert.True(t, s.UpperPrice.Equal(d("2.1")))
	require.Len(t, actions, 2)
	assert.Contains(t, actions[0], "range expanded")
}

func TestAdjustForWhaleRangeExpansionClampsAtZero(t *testing.T) {
	s, err := NewStrategy(CreateParams{
		UserID:     1,
		LowerPrice: d("0.01"),
		UpperPrice: d("10"),
		GridCount:  5,
		Investment: d("100"),
	})
	require.NoError(t, err)

	s.adjustForWhale(ImpactHigh, 6.0, d("9.5"))
	assert.False(t, s.LowerPrice.IsNegative(), "lower bound never goes negative")
}

func TestAdjustForWhaleMediumSlightlyWidens(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)

	actions := s.adjustForWhale(ImpactMedium, 2.0, d("1.5"))

	assert.True(t, s.GridSpacing.Equal(d("0.55")), "spacing × 1.1")
	require.Len(t, actions, 1)
}

func TestAdjustForWhaleLowIsNoop(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)
	before := s.GridSpacing

	actions := s.adjustForWhale(ImpactLow, 0.5, d("1.5"))

	assert.Empty(t, actions)
	assert.True(t, s.GridSpacing.Equal(before))
	assert.Equal(t, StatusActive, s.Status)
}

func TestShouldPauseForWhale(t *testing.T) {
	tests := []struct {
		name     string
		impact   ImpactLevel
		price    float64
		velocity float64
		want     bool
	}{
		{"critical always pauses", ImpactCritical, 0.1, 0.0, true},
		{"high with fast trades", ImpactHigh, 3.0, 0.75, true},
		{"high with big impact", ImpactHigh, 9.0, 0.1, true},
		{"high but calm", ImpactHigh, 6.0, 0.5, false},
		{"medium never pauses", ImpactMedium, 9.0, 0.9, false},
		{"low never pauses", ImpactLow, 0.1, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldPauseForWhale(tt.impact, tt.price, tt.velocity))
		})
	}
}

func TestOptimizeForVolatilityCancelsPendingUnderExtremes(t *testing.T) {
	s, err := NewStrategy(CreateParams{
		UserID:     1,
		LowerPrice: d("1"),
		UpperPrice: d("2"),
		GridCount:  8,
		Investment: d("800"),
	})
	require.NoError(t, err)
	before := s.GridSpacing

	s.optimizeForVolatility(0.15, 0.8)

	assert.True(t, s.GridSpacing.GreaterThan(before))

	cancelled := 0
	for _, o := range s.ActiveOrders {
		if o.Status == OrderCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 2, cancelled, "oldest quarter of pending orders cancelled")
}

func TestOptimizeForVolatilityCalmMarketKeepsOrders(t *testing.T) {
	s, err := NewStrategy(testParams())
	require.NoError(t, err)

	s.optimizeForVolatility(0.05, 0.3)

	for _, o := range s.ActiveOrders {
		assert.Equal(t, OrderPending, o.Status)
	}
}

func TestEngineStats(t *testing.T) {
	e := NewEngine()
	s, err := e.Create(testParams())
	require.NoError(t, err)

	_, err = e.ApplyPriceTick(s.ID, d("1.0"))
	require.NoError(t, err)

	stats, err := e.Stats(s.ID, d("1.2"))
	require.NoError(t, err)

	assert.Equal(t, s.ID, stats.StrategyID)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.True(t, stats.CurrentPrice.Equal(d("1.2")))
	require.Len(t, stats.Levels, 3)

	// All spawned sells sit at level 2 (price 1.5)
	assert.NotNil(t, stats.Levels[1].SellOrder)
	assert.Nil(t, stats.Levels[0].BuyOrder, "filled buys leave the ladder")
}

func TestEngineControls(t *testing.T) {
	e := NewEngine()
	s, err := e.Create(testParams())
	require.NoError(t, err)

	require.NoError(t, e.Pause(s.ID))
	assert.Equal(t, StatusPaused, s.Status)

	require.NoError(t, e.Resume(s.ID))
	assert.Equal(t, StatusActive, s.Status)

	require.NoError(t, e.Stop(s.ID))
	assert.Equal(t, StatusStopped, s.Status)

	assert.ErrorIs(t, e.Pause("missing"), ErrStrategyNotFound)

	_, err = e.ApplyPriceTick("missing", d("1"))
	assert.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestEngineIDsForToken(t *testing.T) {
	e := NewEngine()
	s, err := e.Create(testParams())
	require.NoError(t, err)

	p := testParams()
	p.Token = "other"
	_, err = e.Create(p)
	require.NoError(t, err)

	ids := e.IDsForToken(s.Chain, s.Token)
	require.Len(t, ids, 1)
	assert.Equal(t, s.ID, ids[0])
}

func TestWhaleAdjustmentThenTickStillConsistent(t *testing.T) {
	e := NewEngine()
	s, err := e.Create(testParams())
	require.NoError(t, err)

	_, err = e.AdjustForWhale(s.ID, ImpactCritical, 15.0, d("1.5"))
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, s.Status)

	// An in-range tick resumes the paused grid
	_, err = e.ApplyPriceTick(s.ID, d("1.6"))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s.Status)
}
