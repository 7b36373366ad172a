package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Dipraise1/trading-engine/types"
	"github.com/Dipraise1/trading-engine/whale"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER
// ═══════════════════════════════════════════════════════════════════════════════

// Notifier pushes engine events to a Telegram chat. A nil Notifier (no
// token configured) silently drops everything.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates a notifier, or nil when no token is configured
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" {
		log.Info().Msg("Telegram disabled, no token configured")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}

	log.Info().Str("bot", api.Self.UserName).Msg("📱 Telegram notifier ready")
	return &Notifier{api: api, chatID: chatID}, nil
}

// priorityEmoji maps impact levels to alert prefixes
func priorityEmoji(impact whale.MarketImpact) string {
	switch impact {
	case whale.ImpactCritical:
		return "🔴"
	case whale.ImpactHigh:
		return "🟠"
	case whale.ImpactMedium:
		return "🟡"
	default:
		return "🔵"
	}
}

// NotifyWhale reports a scored whale trade
func (n *Notifier) NotifyWhale(activity whale.Activity) {
	if n == nil {
		return
	}

	label := activity.Trade.Wallet
	if activity.KnownLabel != "" {
		label = activity.KnownLabel
	}

	text := fmt.Sprintf(
		"%s *Whale %s* on %s\n%s: $%s @ $%s\nImpact: %.2f%% | Confidence: %.0f%%",
		priorityEmoji(activity.MarketImpact),
		activity.Trade.TradeType,
		activity.Trade.Chain,
		label,
		activity.Trade.SizeUSD.StringFixed(0),
		activity.Trade.Price.String(),
		activity.PriceImpact,
		activity.ConfidenceScore,
	)
	n.send(text)
}

// NotifyCloseSignal reports an emitted close signal
func (n *Notifier) NotifyCloseSignal(sig types.CloseSignal) {
	if n == nil {
		return
	}

	emoji := "🎯"
	if sig.Reason == types.CloseReasonStopLoss {
		emoji = "🛑"
	}

	text := fmt.Sprintf(
		"%s *%s* on position %s\nPnL: %s%% | Selling %s%% @ $%s",
		emoji,
		sig.Reason,
		sig.PositionID,
		sig.PnLPercent.StringFixed(2),
		sig.SellPercent.StringFixed(0),
		sig.Price.String(),
	)
	n.send(text)
}

// NotifyGridAction reports a whale-driven grid adjustment
func (n *Notifier) NotifyGridAction(strategyID, action string) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("🐋 Grid %s: %s", strategyID, action))
}

// NotifyRiskRejection reports a rejected trade
func (n *Notifier) NotifyRiskRejection(userID int64, token string, reason error) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("🛡️ Trade rejected for %s: %v", token, reason))
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}
