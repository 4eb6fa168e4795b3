package feed

// cache.go — Streaming price cache over the CLOB market WebSocket.
//
// Implements ports.PriceSource: tracked tokens get their best bid pushed
// from "book" snapshots; untracked or stale tokens fall back to the REST
// price endpoint. The engine never blocks on the socket.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/updown/internal/ports"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// staleAfter is how long a pushed price stays authoritative before
	// SellPrice falls back to REST.
	staleAfter = 15 * time.Second
)

// wsCommand is the subscribe message for the market channel.
type wsCommand struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

// bookMessage is a full orderbook snapshot from the "book" event.
type bookMessage struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type cachedPrice struct {
	bid float64
	at  time.Time
}

// PriceCache streams best bids for tracked tokens and answers SellPrice
// from the cache, falling back to rest when the cache is cold or stale.
type PriceCache struct {
	wsURL string
	rest  ports.PriceSource

	mu      sync.RWMutex
	conn    *websocket.Conn
	closed  bool
	tracked []string
	prices  map[string]cachedPrice

	done chan struct{}
}

// NewPriceCache creates a cache over the given market WebSocket endpoint.
// rest serves cache misses and is required.
func NewPriceCache(wsURL string, rest ports.PriceSource) *PriceCache {
	return &PriceCache{
		wsURL:  wsURL,
		rest:   rest,
		prices: make(map[string]cachedPrice),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops. Safe to call again after a drop.
func (pc *PriceCache) Connect(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return fmt.Errorf("feed: cache closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, pc.wsURL, nil)
	if err != nil {
		return ports.Transient("feed: connect", err)
	}
	pc.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go pc.readLoop(conn)
	go pc.pingLoop(conn)

	// Restore subscriptions after reconnect.
	if len(pc.tracked) > 0 {
		if err := pc.sendSubscribe(pc.tracked); err != nil {
			return ports.Transient("feed: resubscribe", err)
		}
	}
	return nil
}

// Track subscribes to a token's book updates. Duplicate calls are no-ops.
func (pc *PriceCache) Track(tokenID string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for _, t := range pc.tracked {
		if t == tokenID {
			return
		}
	}
	pc.tracked = append(pc.tracked, tokenID)

	if pc.conn != nil {
		if err := pc.sendSubscribe([]string{tokenID}); err != nil {
			slog.Debug("feed: subscribe failed, will retry on reconnect", "token", tokenID, "err", err)
		}
	}
}

// SellPrice returns the best bid for a token: the cached streamed value
// when fresh, the REST endpoint otherwise.
func (pc *PriceCache) SellPrice(ctx context.Context, tokenID string) (float64, error) {
	pc.mu.RLock()
	cached, ok := pc.prices[tokenID]
	pc.mu.RUnlock()

	if ok && time.Since(cached.at) < staleAfter {
		return cached.bid, nil
	}
	return pc.rest.SellPrice(ctx, tokenID)
}

// Close shuts the connection down; the cache cannot be reused after.
func (pc *PriceCache) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return nil
	}
	pc.closed = true
	close(pc.done)

	if pc.conn != nil {
		_ = pc.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return pc.conn.Close()
	}
	return nil
}

// sendSubscribe sends a market-channel subscription. Caller holds pc.mu.
func (pc *PriceCache) sendSubscribe(assetIDs []string) error {
	pc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(wsCommand{Type: "market", AssetIDs: assetIDs})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return pc.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages until the connection drops, then hands off to
// reconnect. Runs in its own goroutine per connection.
func (pc *PriceCache) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-pc.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-pc.done:
				return
			default:
			}
			pc.reconnect()
			return
		}

		pc.handleMessage(message)
	}
}

// pingLoop keeps the connection alive.
func (pc *PriceCache) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-pc.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage updates the cache from "book" snapshots. The server may
// batch events into a JSON array.
func (pc *PriceCache) handleMessage(raw []byte) {
	var batch []bookMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		var single bookMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return // silently drop unparseable messages
		}
		batch = append(batch, single)
	}

	now := time.Now()
	for _, msg := range batch {
		if msg.EventType != "book" || msg.AssetID == "" {
			continue
		}
		bid := bestBid(msg.Bids)
		if bid <= 0 {
			continue
		}

		pc.mu.Lock()
		pc.prices[msg.AssetID] = cachedPrice{bid: bid, at: now}
		pc.mu.Unlock()
	}
}

// bestBid returns the highest bid level.
func bestBid(levels []bookLevel) float64 {
	best := 0.0
	for _, l := range levels {
		p, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		if p > best {
			best = p
		}
	}
	return best
}

// reconnect re-establishes the connection with exponential backoff,
// blocking until success or shutdown.
func (pc *PriceCache) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-pc.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := pc.Connect(ctx)
		cancel()

		if err == nil {
			slog.Info("feed: reconnected")
			return
		}
		slog.Warn("feed: reconnect failed", "err", err, "next_try_in", delay)

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
