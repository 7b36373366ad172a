package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Dipraise1/trading-engine/risk"
	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Profiles, positions, whale history and trade ledger
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

type RiskProfile struct {
	UserID                   int64           `gorm:"primaryKey"`
	MaxTradeSizeUSD          decimal.Decimal `gorm:"type:decimal(20,6)"`
	MaxDailyLossUSD          decimal.Decimal `gorm:"type:decimal(20,6)"`
	MaxOpenPositions         int
	DefaultStopLossPercent   decimal.Decimal `gorm:"type:decimal(10,4)"`
	DefaultTakeProfitPercent decimal.Decimal `gorm:"type:decimal(10,4)"`
	KillSwitchEnabled        bool
	BlacklistEnabled         bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type DailyStat struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"`
	UserID       int64           `gorm:"index:idx_user_date,unique"`
	Date         string          `gorm:"index:idx_user_date,unique"` // YYYY-MM-DD
	TotalLossUSD decimal.Decimal `gorm:"type:decimal(20,6)"`
	TradeCount   int
	UpdatedAt    time.Time
}

type PositionRecord struct {
	ID                string `gorm:"primaryKey"`
	UserID            int64  `gorm:"index"`
	Chain             string
	Token             string `gorm:"index"`
	TokenSymbol       string
	Amount            decimal.Decimal `gorm:"type:decimal(30,12)"`
	EntryPrice        decimal.Decimal `gorm:"type:decimal(30,12)"`
	TakeProfitPercent decimal.Decimal `gorm:"type:decimal(10,4)"`
	StopLossPercent   decimal.Decimal `gorm:"type:decimal(10,4)"`
	Status            string          `gorm:"index"` // "open", "closed"
	OpenedAt          time.Time
	ClosedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type GridStrategyRecord struct {
	ID          string `gorm:"primaryKey"`
	UserID      int64  `gorm:"index"`
	Chain       string
	Token       string
	TokenSymbol string
	LowerPrice  decimal.Decimal `gorm:"type:decimal(30,12)"`
	UpperPrice  decimal.Decimal `gorm:"type:decimal(30,12)"`
	GridCount   int
	Investment  decimal.Decimal `gorm:"type:decimal(20,6)"`
	Status      string          `gorm:"index"`
	TotalProfit decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalTrades int
	OrdersJSON  string `gorm:"type:text"` // active+completed orders snapshot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WhaleTradeRecord struct {
	ID           string `gorm:"primaryKey"`
	Chain        string
	Token        string `gorm:"index"`
	TokenSymbol  string
	Wallet       string `gorm:"index"`
	TradeType    string
	PositionType string
	SizeUSD      decimal.Decimal `gorm:"type:decimal(20,2)"`
	SizeNative   decimal.Decimal `gorm:"type:decimal(30,12)"`
	Price        decimal.Decimal `gorm:"type:decimal(30,12)"`
	Leverage     float64
	Timestamp    time.Time `gorm:"index"`
	CreatedAt    time.Time
}

type TradeLog struct {
	ID        string `gorm:"primaryKey"`
	UserID    int64  `gorm:"index"`
	Chain     string
	Token     string
	Side      string
	Price     decimal.Decimal `gorm:"type:decimal(30,12)"`
	Amount    decimal.Decimal `gorm:"type:decimal(30,12)"`
	PnL       decimal.Decimal `gorm:"type:decimal(20,6)"`
	Signature string
	CreatedAt time.Time
}

// New opens the database. A postgres:// URL selects PostgreSQL, any other
// value is treated as a SQLite file path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(
		&RiskProfile{}, &DailyStat{}, &PositionRecord{},
		&GridStrategyRecord{}, &WhaleTradeRecord{}, &TradeLog{},
	); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Risk profile operations. Implements the risk engine's ProfileStore.

func (d *Database) LoadProfile(ctx context.Context, userID int64) (*risk.Profile, error) {
	var rec RiskProfile
	err := d.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &risk.Profile{
		UserID:                   rec.UserID,
		MaxTradeSizeUSD:          rec.MaxTradeSizeUSD,
		MaxDailyLossUSD:          rec.MaxDailyLossUSD,
		MaxOpenPositions:         rec.MaxOpenPositions,
		DefaultStopLossPercent:   rec.DefaultStopLossPercent,
		DefaultTakeProfitPercent: rec.DefaultTakeProfitPercent,
		KillSwitchEnabled:        rec.KillSwitchEnabled,
		BlacklistEnabled:         rec.BlacklistEnabled,
		LastUpdated:              rec.UpdatedAt,
	}, nil
}

func (d *Database) SaveProfile(ctx context.Context, p *risk.Profile) error {
	rec := RiskProfile{
		UserID:                   p.UserID,
		MaxTradeSizeUSD:          p.MaxTradeSizeUSD,
		MaxDailyLossUSD:          p.MaxDailyLossUSD,
		MaxOpenPositions:         p.MaxOpenPositions,
		DefaultStopLossPercent:   p.DefaultStopLossPercent,
		DefaultTakeProfitPercent: p.DefaultTakeProfitPercent,
		KillSwitchEnabled:        p.KillSwitchEnabled,
		BlacklistEnabled:         p.BlacklistEnabled,
	}
	return d.db.WithContext(ctx).Save(&rec).Error
}

// Position operations. Implements the risk engine's PositionCounter.

func (d *Database) CountOpenPositions(ctx context.Context, userID int64) (int, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&PositionRecord{}).
		Where("user_id = ? AND status = ?", userID, "open").
		Count(&count).Error
	return int(count), err
}

func (d *Database) SavePosition(ctx context.Context, p *types.Position) error {
	rec := PositionRecord{
		ID:                p.ID,
		UserID:            p.UserID,
		Chain:             string(p.Chain),
		Token:             p.Token,
		TokenSymbol:       p.TokenSymbol,
		Amount:            p.Amount,
		EntryPrice:        p.EntryPrice,
		TakeProfitPercent: p.TakeProfitPercent,
		StopLossPercent:   p.StopLossPercent,
		Status:            "open",
		OpenedAt:          p.OpenedAt,
	}
	return d.db.WithContext(ctx).Save(&rec).Error
}

func (d *Database) GetPosition(ctx context.Context, positionID string) (*types.Position, error) {
	var r PositionRecord
	if err := d.db.WithContext(ctx).First(&r, "id = ?", positionID).Error; err != nil {
		return nil, err
	}
	return &types.Position{
		ID:                r.ID,
		UserID:            r.UserID,
		Chain:             types.Chain(r.Chain),
		Token:             r.Token,
		TokenSymbol:       r.TokenSymbol,
		Amount:            r.Amount,
		EntryPrice:        r.EntryPrice,
		TakeProfitPercent: r.TakeProfitPercent,
		StopLossPercent:   r.StopLossPercent,
		OpenedAt:          r.OpenedAt,
	}, nil
}

// ReducePosition shrinks a position after a partial close; reaching zero
// marks it closed.
func (d *Database) ReducePosition(ctx context.Context, positionID string, sellPercent decimal.Decimal) error {
	var rec PositionRecord
	if err := d.db.WithContext(ctx).First(&rec, "id = ?", positionID).Error; err != nil {
		return err
	}

	remain := decimal.NewFromInt(100).Sub(sellPercent).Div(decimal.NewFromInt(100))
	rec.Amount = rec.Amount.Mul(remain)
	if rec.Amount.LessThanOrEqual(decimal.Zero) || sellPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		now := time.Now()
		rec.Status = "closed"
		rec.ClosedAt = &now
	}
	return d.db.WithContext(ctx).Save(&rec).Error
}

func (d *Database) OpenPositions(ctx context.Context) ([]types.Position, error) {
	var recs []PositionRecord
	if err := d.db.WithContext(ctx).Where("status = ?", "open").Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.Position{
			ID:                r.ID,
			UserID:            r.UserID,
			Chain:             types.Chain(r.Chain),
			Token:             r.Token,
			TokenSymbol:       r.TokenSymbol,
			Amount:            r.Amount,
			EntryPrice:        r.EntryPrice,
			TakeProfitPercent: r.TakeProfitPercent,
			StopLossPercent:   r.StopLossPercent,
			OpenedAt:          r.OpenedAt,
		})
	}
	return out, nil
}

// Grid snapshot operations

func (d *Database) SaveGridStrategy(ctx context.Context, rec *GridStrategyRecord) error {
	return d.db.WithContext(ctx).Save(rec).Error
}

func (d *Database) GridStrategiesForUser(ctx context.Context, userID int64) ([]GridStrategyRecord, error) {
	var recs []GridStrategyRecord
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error
	return recs, err
}

// Whale history operations

func (d *Database) SaveWhaleTrade(ctx context.Context, t *types.WhaleTrade) error {
	rec := WhaleTradeRecord{
		ID:           t.ID,
		Chain:        string(t.Chain),
		Token:        t.Token,
		TokenSymbol:  t.TokenSymbol,
		Wallet:       t.Wallet,
		TradeType:    string(t.TradeType),
		PositionType: string(t.PositionType),
		SizeUSD:      t.SizeUSD,
		SizeNative:   t.SizeNative,
		Price:        t.Price,
		Leverage:     t.Leverage,
		Timestamp:    t.Timestamp,
	}
	return d.db.WithContext(ctx).Create(&rec).Error
}

// RecentWhaleTrades returns trades since the cutoff, oldest first
func (d *Database) RecentWhaleTrades(ctx context.Context, since time.Time) ([]types.WhaleTrade, error) {
	var recs []WhaleTradeRecord
	err := d.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	out := make([]types.WhaleTrade, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.WhaleTrade{
			ID:           r.ID,
			Chain:        types.Chain(r.Chain),
			Token:        r.Token,
			TokenSymbol:  r.TokenSymbol,
			TradeType:    types.TradeType(r.TradeType),
			PositionType: types.PositionType(r.PositionType),
			SizeUSD:      r.SizeUSD,
			SizeNative:   r.SizeNative,
			Price:        r.Price,
			Timestamp:    r.Timestamp,
			Wallet:       r.Wallet,
			Leverage:     r.Leverage,
		})
	}
	return out, nil
}

// Trade ledger operations

func (d *Database) SaveTradeLog(ctx context.Context, entry *types.TradeLogEntry, signature string) error {
	rec := TradeLog{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Chain:     string(entry.Chain),
		Token:     entry.Token,
		Side:      entry.Side,
		Price:     entry.Price,
		Amount:    entry.Amount,
		PnL:       entry.PnL,
		Signature: signature,
		CreatedAt: entry.Timestamp,
	}
	return d.db.WithContext(ctx).Create(&rec).Error
}

func (d *Database) TradeLogsForUser(ctx context.Context, userID int64, limit int) ([]TradeLog, error) {
	var logs []TradeLog
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Daily stat operations. The risk engine keeps its own in-memory cache;
// these rows survive restarts.

func (d *Database) UpsertDailyStat(ctx context.Context, userID int64, date string, lossUSD decimal.Decimal) error {
	rec := DailyStat{UserID: userID, Date: date}
	err := d.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	rec.TotalLossUSD = lossUSD
	rec.TradeCount++
	return d.db.WithContext(ctx).Save(&rec).Error
}

// LoadDailyStat returns the persisted loss total and trade count for one
// user and day. Missing rows return zero values. Implements the risk
// engine's DailyStatStore.
func (d *Database) LoadDailyStat(ctx context.Context, userID int64, date string) (decimal.Decimal, int, error) {
	var rec DailyStat
	err := d.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, 0, nil
	}
	if err != nil {
		return decimal.Zero, 0, err
	}
	return rec.TotalLossUSD, rec.TradeCount, nil
}
