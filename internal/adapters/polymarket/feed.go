package polymarket

// feed.go — Trade feed del wallet objetivo vía RTDS websocket.
//
// Se suscribe al topic activity/orders_matched y filtra client-side por
// proxyWallet: el RTDS no garantiza filtros server-side para este topic.
// Reconecta con backoff exponencial capeado; los reconnects pueden repetir
// eventos, el consumer deduplica por event id.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

const (
	defaultFeedURL = "wss://ws-live-data.polymarket.com"

	feedEventBuffer      = 256
	feedHandshakeTimeout = 10 * time.Second
	feedReadDeadline     = 90 * time.Second
	feedPingInterval     = 30 * time.Second
	feedBackoffBase      = 2 * time.Second
	feedBackoffMax       = 30 * time.Second
)

// LiveFeed implements ports.TradeFeed over the Polymarket RTDS websocket.
type LiveFeed struct {
	url    string
	wallet string // target wallet, lowercase
	events chan domain.ObservedTrade
}

// NewLiveFeed crea el feed para un wallet objetivo. url vacío usa producción.
func NewLiveFeed(url, targetWallet string) *LiveFeed {
	if url == "" {
		url = defaultFeedURL
	}
	return &LiveFeed{
		url:    url,
		wallet: strings.ToLower(targetWallet),
		events: make(chan domain.ObservedTrade, feedEventBuffer),
	}
}

// Events returns the bounded event channel. Closed when Run returns.
func (f *LiveFeed) Events() <-chan domain.ObservedTrade {
	return f.events
}

// Run maintains the subscription until ctx is cancelled. Blocks.
func (f *LiveFeed) Run(ctx context.Context) error {
	defer close(f.events)

	attempt := 0
	for {
		start := time.Now()
		err := f.runOnce(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		// Una conexión que duró no cuenta como fallo consecutivo.
		if time.Since(start) > time.Minute {
			attempt = 0
		}
		wait := feedBackoffBase << attempt
		if wait > feedBackoffMax {
			wait = feedBackoffMax
		} else {
			attempt++
		}
		slog.Warn("feed: connection lost, reconnecting", "err", err, "wait", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// runOnce dials, subscribes and pumps messages until the connection drops or
// ctx is cancelled. A nil return means ctx was cancelled.
func (f *LiveFeed) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: feedHandshakeTimeout}
	headers := http.Header{}
	headers.Set("Origin", "https://polymarket.com")

	conn, _, err := dialer.Dial(f.url, headers)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}
	defer conn.Close()

	subMsg := map[string]any{
		"action": "subscribe",
		"subscriptions": []map[string]any{
			{"topic": "activity", "type": "orders_matched"},
			{"topic": "activity", "type": "trades"},
		},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	slog.Info("feed: subscribed", "url", f.url, "wallet", f.wallet)

	// Cerrar la conexión cuando el contexto muere desbloquea ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Único writer después del subscribe.
	go f.pingLoop(ctx, conn, done)

	for {
		conn.SetReadDeadline(time.Now().Add(feedReadDeadline))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(raw)
	}
}

func (f *LiveFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// handleMessage parsea un mensaje del RTDS y lo publica si es un trade del
// wallet objetivo. Canal lleno: se dropea el evento con warning, nunca se
// bloquea el read loop.
func (f *LiveFeed) handleMessage(raw []byte) {
	var msg activityMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Payload == nil {
		return
	}
	if msg.Type != "orders_matched" && msg.Type != "trades" {
		return
	}

	p := msg.Payload
	if strings.ToLower(p.ProxyWallet) != f.wallet {
		return
	}

	trade := domain.ObservedTrade{
		EventID:   feedEventID(p),
		MarketID:  p.ConditionID,
		TokenID:   p.Asset,
		Side:      domain.Side(strings.ToUpper(p.Side)),
		Price:     p.Price,
		Size:      p.Size,
		Wallet:    p.ProxyWallet,
		Timestamp: parseUnixTimestamp(p.Timestamp),
	}
	if trade.Side != domain.SideBuy && trade.Side != domain.SideSell {
		return
	}

	select {
	case f.events <- trade:
	default:
		slog.Warn("feed: event buffer full, dropping trade",
			"event_id", trade.EventID, "market", trade.MarketID)
	}
}

// feedEventID construye el id de deduplicación. Una misma transacción puede
// contener fills de distintos tokens, por eso el hash solo no alcanza.
func feedEventID(p *activityPayload) string {
	return strings.ToLower(p.TransactionHash) + ":" + p.Asset + ":" + strings.ToUpper(p.Side)
}
