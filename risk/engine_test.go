package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	profiles map[int64]*Profile
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[int64]*Profile)}
}

func (f *fakeStore) LoadProfile(_ context.Context, userID int64) (*Profile, error) {
	return f.profiles[userID], nil
}

func (f *fakeStore) SaveProfile(_ context.Context, p *Profile) error {
	f.profiles[p.UserID] = p
	f.saves++
	return nil
}

type fakeCounter struct {
	open int
}

func (f *fakeCounter) CountOpenPositions(_ context.Context, _ int64) (int, error) {
	return f.open, nil
}

type fakeStatStore struct {
	loss  decimal.Decimal
	count int
	loads int
}

func (f *fakeStatStore) LoadDailyStat(_ context.Context, _ int64, _ string) (decimal.Decimal, int, error) {
	f.loads++
	return f.loss, f.count, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine() (*Engine, *fakeStore, *fakeCounter) {
	store := newFakeStore()
	counter := &fakeCounter{}
	return NewEngine(store, counter, nil), store, counter
}

func TestCheckCreatesDefaultProfileOnFirstUse(t *testing.T) {
	e, store, _ := newTestEngine()

	err := e.CheckTradeRisk(context.Background(), 7, "tok", d("10"))
	require.NoError(t, err)

	p := store.profiles[7]
	require.NotNil(t, p, "first check persists a default profile")
	assert.True(t, p.MaxTradeSizeUSD.Equal(d("100")))
	assert.True(t, p.MaxDailyLossUSD.Equal(d("50")))
	assert.Equal(t, 5, p.MaxOpenPositions)
	assert.False(t, p.KillSwitchEnabled)
	assert.True(t, p.BlacklistEnabled)

	// Second check reuses the stored profile
	require.NoError(t, e.CheckTradeRisk(context.Background(), 7, "tok", d("10")))
	assert.Equal(t, 1, store.saves)
}

func TestCheckRejectsOversizedTrade(t *testing.T) {
	e, _, _ := newTestEngine()

	err := e.CheckTradeRisk(context.Background(), 1, "tok", d("150"))

	var sizeErr TradeSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.True(t, sizeErr.Attempted.Equal(d("150")))
	assert.True(t, sizeErr.Max.Equal(d("100")))
}

func TestCheckAllowsLimitSizedTrade(t *testing.T) {
	e, _, _ := newTestEngine()
	assert.NoError(t, e.CheckTradeRisk(context.Background(), 1, "tok", d("100")))
}

func TestDailyLossLimitBlocksAfterLosses(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	require.NoError(t, e.CheckTradeRisk(ctx, 1, "tok", d("10")))

	// Three $20 losses push today's total to $60, past the $50 cap
	for i := 0; i < 3; i++ {
		e.RecordTradeResult(1, d("-20"))
	}
	assert.True(t, e.DailyLoss(1).Equal(d("60")))

	err := e.CheckTradeRisk(ctx, 1, "tok", d("10"))
	var lossErr DailyLossError
	require.ErrorAs(t, err, &lossErr)
	assert.True(t, lossErr.Loss.Equal(d("60")))
	assert.True(t, lossErr.Max.Equal(d("50")))
}

func TestDailyLossSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	stats := &fakeStatStore{loss: d("60"), count: 3}

	// Fresh engine over a store already holding today's $60 loss
	e := NewEngine(newFakeStore(), &fakeCounter{}, stats)

	err := e.CheckTradeRisk(ctx, 1, "tok", d("10"))
	var lossErr DailyLossError
	require.ErrorAs(t, err, &lossErr)
	assert.True(t, lossErr.Loss.Equal(d("60")))
	assert.True(t, e.DailyLoss(1).Equal(d("60")))

	// The store is consulted once per user per day
	_ = e.CheckTradeRisk(ctx, 1, "tok", d("10"))
	assert.Equal(t, 1, stats.loads)
}

func TestRestoredLossMergesWithNewLosses(t *testing.T) {
	stats := &fakeStatStore{loss: d("60"), count: 3}
	e := NewEngine(newFakeStore(), &fakeCounter{}, stats)

	// First write after a restart restores the persisted total first
	e.RecordTradeResult(1, d("-5"))

	assert.True(t, e.DailyLoss(1).Equal(d("65")))
}

func TestProfileForCreatesAndReturnsDefaults(t *testing.T) {
	e, store, _ := newTestEngine()

	p, err := e.ProfileFor(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, p.DefaultTakeProfitPercent.Equal(d("30")))
	assert.True(t, p.DefaultStopLossPercent.Equal(d("15")))

	custom := DefaultProfile(8)
	custom.DefaultTakeProfitPercent = d("45")
	custom.DefaultStopLossPercent = d("10")
	store.profiles[8] = custom

	p, err = e.ProfileFor(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, p.DefaultTakeProfitPercent.Equal(d("45")))
	assert.True(t, p.DefaultStopLossPercent.Equal(d("10")))
}

func TestProfitsNeverReduceDailyLoss(t *testing.T) {
	e, _, _ := newTestEngine()

	e.RecordTradeResult(1, d("-30"))
	e.RecordTradeResult(1, d("100"))

	assert.True(t, e.DailyLoss(1).Equal(d("30")), "loss total is monotonic within a day")
}

func TestKillSwitchShortCircuitsAllChecks(t *testing.T) {
	e, store, _ := newTestEngine()

	p := DefaultProfile(1)
	p.KillSwitchEnabled = true
	store.profiles[1] = p
	e.AddToBlacklist("tok")

	// Kill switch reports first even when the blacklist would also fail
	err := e.CheckTradeRisk(context.Background(), 1, "tok", d("999"))
	var killErr KillSwitchError
	assert.ErrorAs(t, err, &killErr)
}

func TestBlacklistCheck(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	e.AddToBlacklist("scam")
	err := e.CheckTradeRisk(ctx, 1, "scam", d("10"))
	var blErr BlacklistError
	require.ErrorAs(t, err, &blErr)
	assert.Equal(t, "scam", blErr.Token)

	e.RemoveFromBlacklist("scam")
	assert.NoError(t, e.CheckTradeRisk(ctx, 1, "scam", d("10")))
}

func TestBlacklistIgnoredWhenDisabled(t *testing.T) {
	e, store, _ := newTestEngine()

	p := DefaultProfile(1)
	p.BlacklistEnabled = false
	store.profiles[1] = p
	e.AddToBlacklist("scam")

	assert.NoError(t, e.CheckTradeRisk(context.Background(), 1, "scam", d("10")))
}

func TestOpenPositionLimit(t *testing.T) {
	e, _, counter := newTestEngine()
	ctx := context.Background()

	counter.open = 5
	err := e.CheckTradeRisk(ctx, 1, "tok", d("10"))
	var posErr OpenPositionsError
	require.ErrorAs(t, err, &posErr)
	assert.Equal(t, 5, posErr.Current)
	assert.Equal(t, 5, posErr.Max)

	counter.open = 4
	assert.NoError(t, e.CheckTradeRisk(ctx, 1, "tok", d("10")))
}

func TestDailyLossIsPerUser(t *testing.T) {
	e, _, _ := newTestEngine()

	e.RecordTradeResult(1, d("-60"))

	assert.True(t, e.DailyLoss(1).Equal(d("60")))
	assert.True(t, e.DailyLoss(2).IsZero())
	assert.NoError(t, e.CheckTradeRisk(context.Background(), 2, "tok", d("10")))
}

func TestLockUserSerializes(t *testing.T) {
	e, _, _ := newTestEngine()

	unlock := e.LockUser(1)

	acquired := make(chan struct{})
	go func() {
		u := e.LockUser(1)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
}
