package feeds

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dipraise1/trading-engine/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPingLoopEndsWithConnection(t *testing.T) {
	s := NewTradeStream("ws://example.invalid", d("100000"))

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		s.pingLoop(nil, done)
		close(exited)
	}()

	// Tearing down the connection must stop its ping loop even while the
	// stream itself keeps running for the next reconnect.
	close(done)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("ping loop kept running after its connection ended")
	}
}

func TestProcessMessageBroadcastsTickForEverySwap(t *testing.T) {
	s := NewTradeStream("ws://example.invalid", d("100000"))
	ticks := s.SubscribeTicks()
	whales := s.SubscribeWhales()

	s.processMessage([]byte(`{
		"event_type": "swap",
		"chain": "solana",
		"token": "mint1",
		"symbol": "MEME",
		"wallet": "walletA",
		"price": "0.5",
		"size_usd": "250",
		"is_buy": true,
		"timestamp": 1700000000
	}`))

	select {
	case tick := <-ticks:
		assert.Equal(t, types.ChainSolana, tick.Chain)
		assert.Equal(t, "mint1", tick.Token)
		assert.True(t, tick.Price.Equal(d("0.5")))
	default:
		t.Fatal("expected a price tick")
	}

	select {
	case <-whales:
		t.Fatal("small swap must not publish a whale trade")
	default:
	}
}

func TestProcessMessagePublishesWhaleAboveThreshold(t *testing.T) {
	s := NewTradeStream("ws://example.invalid", d("100000"))
	whales := s.SubscribeWhales()

	s.processMessage([]byte(`[{
		"event_type": "swap",
		"chain": "solana",
		"token": "mint1",
		"symbol": "MEME",
		"wallet": "walletA",
		"price": "0.5",
		"size_usd": "150000",
		"is_buy": true,
		"timestamp": 1700000000
	}]`))

	select {
	case trade := <-whales:
		require.NotEmpty(t, trade.ID)
		assert.Equal(t, "walletA", trade.Wallet)
		assert.True(t, trade.SizeUSD.Equal(d("150000")))
		assert.Equal(t, types.TradeBuy, trade.TradeType)
	default:
		t.Fatal("expected a whale trade")
	}
}

func TestProcessMessageIgnoresNonSwapEvents(t *testing.T) {
	s := NewTradeStream("ws://example.invalid", d("100000"))
	ticks := s.SubscribeTicks()

	s.processMessage([]byte(`{"event_type": "heartbeat"}`))
	s.processMessage([]byte(`not json`))

	select {
	case <-ticks:
		t.Fatal("non-swap input must not produce ticks")
	default:
	}
}
