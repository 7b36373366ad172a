package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// Config is the full runtime configuration, loaded once at startup
type Config struct {
	// Core
	Debug  bool
	DryRun bool // paper trading, no real swaps

	// Storage
	DatabasePath string // sqlite file path or postgres:// URL

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Feeds
	TradeStreamURL    string
	PriceCacheTTL     time.Duration
	MonitorInterval   time.Duration
	WhaleMinSizeUSD   decimal.Decimal
	SecurityCheckURL  string
	ExecutorRPCURL    string
	ExecutorPrivKey   string // hex, unused in dry-run mode
	KnownWhaleWallets map[string]string

	// Risk / monitor policy
	TakeProfitSellPercent decimal.Decimal
	StopLossSellPercent   decimal.Decimal
}

// Load reads configuration from the environment. Call godotenv.Load first.
func Load() *Config {
	cfg := &Config{
		Debug:                 getEnvBool("DEBUG", false),
		DryRun:                getEnvBool("DRY_RUN", true),
		DatabasePath:          getEnv("DATABASE_PATH", "trading_engine.db"),
		TelegramToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:        getEnvInt64("TELEGRAM_CHAT_ID", 0),
		TradeStreamURL:        getEnv("TRADE_STREAM_URL", ""),
		PriceCacheTTL:         getEnvDuration("PRICE_CACHE_TTL", 10*time.Second),
		MonitorInterval:       getEnvDuration("MONITOR_INTERVAL", 5*time.Second),
		WhaleMinSizeUSD:       getEnvDecimal("WHALE_MIN_SIZE_USD", decimal.NewFromInt(10_000)),
		SecurityCheckURL:      getEnv("SECURITY_CHECK_URL", ""),
		ExecutorRPCURL:        getEnv("EXECUTOR_RPC_URL", ""),
		ExecutorPrivKey:       getEnv("EXECUTOR_PRIVATE_KEY", ""),
		KnownWhaleWallets:     parseKnownWhales(getEnv("KNOWN_WHALES", "")),
		TakeProfitSellPercent: getEnvDecimal("TP_SELL_PERCENT", decimal.NewFromInt(50)),
		StopLossSellPercent:   getEnvDecimal("SL_SELL_PERCENT", decimal.NewFromInt(100)),
	}

	if !cfg.DryRun && cfg.ExecutorPrivKey == "" {
		log.Warn().Msg("⚠️ Live mode with no executor key, falling back to dry-run")
		cfg.DryRun = true
	}

	return cfg
}

// DefaultChain is used when an event omits its chain
const DefaultChain = types.ChainSolana

// parseKnownWhales parses "addr=Label,addr=Label" pairs
func parseKnownWhales(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		addr, label, ok := strings.Cut(pair, "=")
		if !ok || addr == "" {
			log.Warn().Str("entry", pair).Msg("Skipping malformed KNOWN_WHALES entry")
			continue
		}
		out[strings.TrimSpace(addr)] = strings.TrimSpace(label)
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}
