package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Dipraise1/trading-engine/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE STREAM - Live swap and price events over WebSocket
// ═══════════════════════════════════════════════════════════════════════════════
//
// Connects to a chain indexer stream for swap events. Large swaps fan out
// to whale subscribers, all swaps fan out as price ticks.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// PriceTick is a per-swap price observation
type PriceTick struct {
	Chain     types.Chain
	Token     string
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// TradeStream manages the WebSocket connection and event distribution
type TradeStream struct {
	mu sync.RWMutex

	wsURL       string
	minWhaleUSD decimal.Decimal
	conn        *websocket.Conn
	connected   bool
	running     bool
	stopCh      chan struct{}

	whaleSubs []chan types.WhaleTrade
	tickSubs  []chan PriceTick
}

// NewTradeStream creates a stream client. Swaps at or above minWhaleUSD
// are also published as whale trades.
func NewTradeStream(wsURL string, minWhaleUSD decimal.Decimal) *TradeStream {
	return &TradeStream{
		wsURL:       wsURL,
		minWhaleUSD: minWhaleUSD,
		stopCh:      make(chan struct{}),
	}
}

// Start connects and begins processing
func (s *TradeStream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Str("url", s.wsURL).Msg("📡 Trade stream started")
}

// Stop closes the connection
func (s *TradeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopCh)

	if s.conn != nil {
		s.conn.Close()
	}

	log.Info().Msg("Trade stream stopped")
}

// SubscribeWhales returns a channel receiving large swap events
func (s *TradeStream) SubscribeWhales() chan types.WhaleTrade {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan types.WhaleTrade, 1000)
	s.whaleSubs = append(s.whaleSubs, ch)
	return ch
}

// SubscribeTicks returns a channel receiving price observations
func (s *TradeStream) SubscribeTicks() chan PriceTick {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan PriceTick, 1000)
	s.tickSubs = append(s.tickSubs, ch)
	return ch
}

// connectionLoop maintains the WebSocket connection
func (s *TradeStream) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn, err := s.connect()
		if err != nil {
			log.Error().Err(err).Msg("Stream connection failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		// The ping loop lives exactly as long as this connection
		pingDone := make(chan struct{})
		go s.pingLoop(conn, pingDone)
		s.readLoop(conn)
		close(pingDone)

		time.Sleep(reconnectDelay)
	}
}

func (s *TradeStream) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	log.Info().Msg("🔌 Trade stream connected")

	return conn, nil
}

// pingLoop keeps one connection alive until it is torn down
func (s *TradeStream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-done:
			return
		case <-ticker.C:
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (s *TradeStream) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Stream read error")
			s.mu.Lock()
			s.connected = false
			s.mu.Unlock()
			return
		}

		s.processMessage(message)
	}
}

// swapEvent is the indexer's wire format for one swap
type swapEvent struct {
	EventType   string  `json:"event_type"`
	Chain       string  `json:"chain"`
	Token       string  `json:"token"`
	Symbol      string  `json:"symbol"`
	Wallet      string  `json:"wallet"`
	Price       string  `json:"price"`
	SizeUSD     string  `json:"size_usd"`
	SizeNative  string  `json:"size_native"`
	IsBuy       bool    `json:"is_buy"`
	IsPerpetual bool    `json:"is_perpetual"`
	IsOpening   bool    `json:"is_opening"`
	Leverage    float64 `json:"leverage"`
	Timestamp   int64   `json:"timestamp"`
}

func (s *TradeStream) processMessage(data []byte) {
	var events []swapEvent
	if err := json.Unmarshal(data, &events); err != nil {
		// Try single event
		var ev swapEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		events = []swapEvent{ev}
	}

	for _, ev := range events {
		if ev.EventType != "swap" {
			continue
		}
		s.handleSwap(ev)
	}
}

func (s *TradeStream) handleSwap(ev swapEvent) {
	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return
	}
	sizeUSD, err := decimal.NewFromString(ev.SizeUSD)
	if err != nil {
		return
	}
	sizeNative, _ := decimal.NewFromString(ev.SizeNative)

	ts := time.Unix(ev.Timestamp, 0)
	if ev.Timestamp == 0 {
		ts = time.Now()
	}

	s.broadcastTick(PriceTick{
		Chain:     types.Chain(ev.Chain),
		Token:     ev.Token,
		Symbol:    ev.Symbol,
		Price:     price,
		Timestamp: ts,
	})

	if sizeUSD.LessThan(s.minWhaleUSD) {
		return
	}

	tradeType, positionType := types.ClassifyTrade(ev.IsPerpetual, ev.IsBuy, ev.IsOpening)
	s.broadcastWhale(types.WhaleTrade{
		ID:           uuid.New().String(),
		Chain:        types.Chain(ev.Chain),
		Token:        ev.Token,
		TokenSymbol:  ev.Symbol,
		TradeType:    tradeType,
		PositionType: positionType,
		SizeUSD:      sizeUSD,
		SizeNative:   sizeNative,
		Price:        price,
		Timestamp:    ts,
		Wallet:       ev.Wallet,
		Leverage:     ev.Leverage,
	})
}

func (s *TradeStream) broadcastTick(tick PriceTick) {
	s.mu.RLock()
	subs := s.tickSubs
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
			// Skip if channel full
		}
	}
}

func (s *TradeStream) broadcastWhale(trade types.WhaleTrade) {
	s.mu.RLock()
	subs := s.whaleSubs
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- trade:
		default:
			// Skip if channel full
		}
	}
}
