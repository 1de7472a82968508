package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
)

// Feed is a push oracle: it keeps a websocket subscription to a price stream
// and caches the latest quote per token. Price() answers from the cache, so
// the run loop never blocks on the network for a streamed token.
//
// Run owns the connection lifecycle: dial, subscribe, read, reconnect with
// exponential backoff. The cache is the only state shared with the engine
// thread and carries its own lock.
type Feed struct {
	wsURL string

	mu         sync.RWMutex
	quotes     map[string]port.Quote // lowercase address -> last quote
	subscribed map[string]struct{}
	staleAfter time.Duration

	resub chan string // addresses to subscribe on the live connection
}

func New(wsURL string, staleAfter time.Duration) *Feed {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Feed{
		wsURL:      strings.TrimSpace(wsURL),
		quotes:     make(map[string]port.Quote),
		subscribed: make(map[string]struct{}),
		staleAfter: staleAfter,
		resub:      make(chan string, 64),
	}
}

func (f *Feed) Name() string { return "stream" }

// Watch registers a token for streaming. A live connection picks the
// subscription up immediately; otherwise it is included in the next
// (re)connect's subscribe.
func (f *Feed) Watch(address string) {
	addr := strings.ToLower(address)
	f.mu.Lock()
	if _, ok := f.subscribed[addr]; ok {
		f.mu.Unlock()
		return
	}
	f.subscribed[addr] = struct{}{}
	f.mu.Unlock()

	select {
	case f.resub <- addr:
	default:
		// Full queue is fine, the next reconnect subscribes everything.
	}
}

// Price serves the cached quote. A token never seen before is registered for
// streaming and yields an error this once; the caller falls back to the next
// oracle in its chain.
func (f *Feed) Price(ctx context.Context, address string) (port.Quote, error) {
	f.mu.RLock()
	q, ok := f.quotes[strings.ToLower(address)]
	f.mu.RUnlock()
	if !ok {
		f.Watch(address)
		return port.Quote{}, fmt.Errorf("stream oracle: no quote for %s", address)
	}
	if time.Since(time.UnixMilli(q.Ts)) > f.staleAfter {
		return port.Quote{}, fmt.Errorf("stream oracle: quote for %s stale", address)
	}
	return q, nil
}

type subReq struct {
	Op        string   `json:"op"`
	Addresses []string `json:"addresses"`
}

type priceMsg struct {
	Type     string `json:"type"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	PriceUSD string `json:"priceUsd"`
	Ts       int64  `json:"ts"`
}

// Run keeps the stream alive until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if f.wsURL == "" {
		return errors.New("stream oracle: ws_url empty")
	}

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, f.wsURL, nil)
		cancel()
		if err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			if !f.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		if err := conn.WriteJSON(subReq{Op: "subscribe", Addresses: f.watched()}); err != nil {
			_ = conn.Close()
			log.Error().Str("feed", f.Name()).Err(err).Msg("subscribe failed")
			if !f.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", f.Name()).Str("url", f.wsURL).Msg("ws connected & subscribed")

		writerStop := make(chan struct{})
		writerDone := make(chan struct{})
		go f.writeLoop(ctx, conn, writerStop, writerDone)

		err = f.readLoop(ctx, conn)
		close(writerStop)
		_ = conn.Close()
		<-writerDone

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if !f.sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

// writeLoop forwards late Watch registrations to the live connection. It is
// the connection's only writer after the initial subscribe.
func (f *Feed) writeLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case addr := <-f.resub:
			if err := conn.WriteJSON(subReq{Op: "subscribe", Addresses: []string{addr}}); err != nil {
				log.Warn().Str("feed", f.Name()).Err(err).Msg("live subscribe failed")
				return
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg priceMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("json unmarshal failed")
			continue
		}
		if msg.Type != "price" || msg.Address == "" {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(msg.PriceUSD), 64)
		if err != nil || price <= 0 {
			continue
		}

		ts := msg.Ts
		if ts <= 0 {
			ts = time.Now().UnixMilli()
		}
		f.mu.Lock()
		f.quotes[strings.ToLower(msg.Address)] = port.Quote{
			Address:  msg.Address,
			Symbol:   strings.ToUpper(msg.Symbol),
			PriceUSD: price,
			Ts:       ts,
		}
		f.mu.Unlock()
	}
}

func (f *Feed) watched() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.subscribed))
	for addr := range f.subscribed {
		out = append(out, addr)
	}
	return out
}

func (f *Feed) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var _ port.PriceOracle = (*Feed)(nil)
