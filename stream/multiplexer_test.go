package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFrame is the wire format of the fake exchange in both directions.
type testFrame struct {
	Op       string      `json:"op,omitempty"`
	Type     string      `json:"type,omitempty"`
	Chan     string      `json:"chan,omitempty"`
	Market   string      `json:"market,omitempty"`
	Kind     string      `json:"kind,omitempty"`
	Snapshot bool        `json:"snapshot,omitempty"`
	Seq      int64       `json:"seq,omitempty"`
	Bids     [][2]string `json:"bids,omitempty"`
	Asks     [][2]string `json:"asks,omitempty"`
	Price    string      `json:"price,omitempty"`
	OK       bool        `json:"ok,omitempty"`
}

type testProtocol struct {
	url string
}

// authProtocol logs in before subscribing.
type authProtocol struct {
	testProtocol
}

func (p *testProtocol) Name() string { return "test" }
func (p *testProtocol) URL() string  { return p.url }

func (p *testProtocol) frames(op string, topics []Topic, channels *ChannelMap) ([][]byte, error) {
	out := make([][]byte, 0, len(topics))
	for _, t := range topics {
		f := testFrame{Op: op, Market: t.Market, Kind: t.Kind.String()}
		if channels != nil {
			f.Chan, _ = channels.ID(t)
		}
		b, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (p *testProtocol) SubscribeMessages(topics []Topic) ([][]byte, error) {
	return p.frames("sub", topics, nil)
}

func (p *testProtocol) UnsubscribeMessages(topics []Topic, channels *ChannelMap) ([][]byte, error) {
	return p.frames("unsub", topics, channels)
}

func (p *authProtocol) AuthMessage(time.Time) ([]byte, error) {
	return json.Marshal(testFrame{Op: "login"})
}

func levels(in [][2]string) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, model.PriceLevel{Price: decimal.RequireFromString(l[0]), Amount: decimal.RequireFromString(l[1])})
	}
	return out
}

func (p *testProtocol) Decode(raw []byte, channels *ChannelMap) ([]Event, error) {
	var f testFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, types.NewProtocolError("test", err)
	}
	topic := Topic{Market: f.Market}
	topic.Kind, _ = ParseKind(f.Kind)
	if f.Chan != "" && f.Type != "subscribed" {
		t, ok := channels.Lookup(f.Chan)
		if !ok {
			return nil, types.NewProtocolError("test", errors.New("unknown channel "+f.Chan))
		}
		topic = t
	}
	switch f.Type {
	case "auth":
		if f.OK {
			return []Event{{Kind: EventAuth}}, nil
		}
		return []Event{{Kind: EventAuth, Err: errors.New("bad key")}}, nil
	case "subscribed":
		channels.Bind(f.Chan, topic)
		return []Event{{Kind: EventSubscribed, Topic: topic}}, nil
	case "book":
		return []Event{{Kind: EventBook, Topic: topic, Book: orderbook.Update{
			Snapshot: f.Snapshot, Sequence: f.Seq, Bids: levels(f.Bids), Asks: levels(f.Asks),
		}}}, nil
	case "ticker":
		return []Event{{Kind: EventTicker, Topic: topic, Ticker: model.Ticker{Last: decimal.RequireFromString(f.Price)}}}, nil
	case "trade":
		return []Event{{Kind: EventTrades, Topic: topic, Trades: []model.Trade{{Price: decimal.RequireFromString(f.Price)}}}}, nil
	case "pong":
		return nil, nil
	}
	return nil, types.NewProtocolError("test", errors.New("unknown frame type "+f.Type))
}

type serverConn struct {
	ws     *websocket.Conn
	frames chan testFrame
	mu     sync.Mutex
}

func (c *serverConn) send(t *testing.T, f testFrame) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NoError(t, c.ws.WriteJSON(f))
}

func (c *serverConn) sendRaw(t *testing.T, raw string) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (c *serverConn) expect(t *testing.T, op string) testFrame {
	t.Helper()
	select {
	case f, ok := <-c.frames:
		require.True(t, ok, "connection closed while waiting for %q", op)
		require.Equal(t, op, f.Op)
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", op)
	}
	return testFrame{}
}

type testServer struct {
	*httptest.Server
	conns chan *serverConn
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{conns: make(chan *serverConn, 8)}
	up := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &serverConn{ws: ws, frames: make(chan testFrame, 64)}
		ts.conns <- c
		defer close(c.frames)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var f testFrame
			if json.Unmarshal(data, &f) == nil {
				c.frames <- f
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) url() string { return "ws" + strings.TrimPrefix(ts.URL, "http") }

func (ts *testServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case c := <-ts.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
	}
	return nil
}

func startMux(t *testing.T, m *Multiplexer) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = m.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return done
}

var btc = Topic{Market: "BTC/USDT", Kind: KindBook}

func bookHas(e *orderbook.Engine, market, bid string) bool {
	ob, ok := e.GetCurrentSnapshot(market)
	if !ok {
		return false
	}
	_, has := ob.Get(model.BookSideBid, decimal.RequireFromString(bid))
	return has
}

func TestMultiplexer_SnapshotThenDeltas(t *testing.T) {
	ts := newTestServer(t)
	m := New(Options{Protocol: &testProtocol{url: ts.url()}})
	require.NoError(t, m.Subscribe(btc))
	startMux(t, m)

	c := ts.accept(t)
	sub := c.expect(t, "sub")
	assert.Equal(t, "BTC/USDT", sub.Market)
	assert.Equal(t, "book", sub.Kind)

	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Seq: 1,
		Bids: [][2]string{{"100", "2"}}, Asks: [][2]string{{"101", "3"}}})
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Seq: 2, Asks: [][2]string{{"101", "0"}}})
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Seq: 3, Bids: [][2]string{{"100", "5"}}})

	e := m.Engine()
	require.Eventually(t, func() bool {
		ob, ok := e.GetCurrentSnapshot("BTC/USDT")
		return ok && ob.Sequence == 3
	}, 2*time.Second, 5*time.Millisecond)

	view, state, ok := e.Snapshot("BTC/USDT", 0)
	require.True(t, ok)
	assert.Equal(t, orderbook.Live, state)
	require.Len(t, view.Bids, 1)
	assert.True(t, view.Bids[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Empty(t, view.Asks)
}

func TestMultiplexer_ReconnectMarksStaleAndResubscribes(t *testing.T) {
	ts := newTestServer(t)
	var staleCount int
	var mu sync.Mutex
	engine := orderbook.NewEngine(orderbook.Options{
		Exchange: "test",
		OnStale: func(string, error) {
			mu.Lock()
			staleCount++
			mu.Unlock()
		},
	})
	m := New(Options{
		Protocol:         &testProtocol{url: ts.url()},
		Engine:           engine,
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
	})
	require.NoError(t, m.Subscribe(btc))
	startMux(t, m)

	c1 := ts.accept(t)
	c1.expect(t, "sub")
	c1.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Seq: 50, Bids: [][2]string{{"100", "1"}}})
	require.Eventually(t, func() bool { return engine.State("BTC/USDT") == orderbook.Live }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c1.ws.Close())

	c2 := ts.accept(t)
	assert.Equal(t, orderbook.Stale, engine.State("BTC/USDT"))
	mu.Lock()
	assert.Equal(t, 1, staleCount)
	mu.Unlock()

	c2.expect(t, "sub")
	// a delta that continues the old session's numbering is not applied to a stale book
	c2.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Seq: 51, Bids: [][2]string{{"90", "1"}}})
	// the new session's first snapshot restarts numbering
	c2.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Seq: 1, Bids: [][2]string{{"99", "1"}}})

	require.Eventually(t, func() bool { return engine.State("BTC/USDT") == orderbook.Live }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, bookHas(engine, "BTC/USDT", "99"))
	assert.False(t, bookHas(engine, "BTC/USDT", "100"))
	assert.False(t, bookHas(engine, "BTC/USDT", "90"))
}

func TestMultiplexer_DropsMalformedFrames(t *testing.T) {
	ts := newTestServer(t)
	var mu sync.Mutex
	var tickers []model.Ticker
	m := New(Options{
		Protocol: &testProtocol{url: ts.url()},
		OnTicker: func(tk model.Ticker) {
			mu.Lock()
			tickers = append(tickers, tk)
			mu.Unlock()
		},
	})
	tick := Topic{Market: "ETH/USDT", Kind: KindTicker}
	require.NoError(t, m.Subscribe(tick))
	startMux(t, m)

	c := ts.accept(t)
	c.expect(t, "sub")
	c.sendRaw(t, `{not json`)
	c.sendRaw(t, `{"type":"mystery"}`)
	c.send(t, testFrame{Type: "ticker", Market: "ETH/USDT", Kind: "ticker", Price: "2500.5"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tickers) == 1
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "ETH/USDT", tickers[0].Symbol)
	assert.True(t, tickers[0].Last.Equal(decimal.RequireFromString("2500.5")))
	mu.Unlock()

	// still the first connection
	select {
	case <-ts.conns:
		t.Fatal("malformed frames must not drop the connection")
	default:
	}
}

func TestMultiplexer_ChannelIDRouting(t *testing.T) {
	ts := newTestServer(t)
	trades := make(chan string, 4)
	m := New(Options{
		Protocol: &testProtocol{url: ts.url()},
		OnTrades: func(market string, tr []model.Trade) { trades <- market + "@" + tr[0].Price.String() },
	})
	topic := Topic{Market: "SOL/USDT", Kind: KindTrades}
	require.NoError(t, m.Subscribe(topic))
	startMux(t, m)

	c := ts.accept(t)
	c.expect(t, "sub")
	c.send(t, testFrame{Type: "subscribed", Chan: "17", Market: "SOL/USDT", Kind: "trades"})
	c.send(t, testFrame{Type: "trade", Chan: "17", Price: "150.25"})

	select {
	case got := <-trades:
		assert.Equal(t, "SOL/USDT@150.25", got)
	case <-time.After(2 * time.Second):
		t.Fatal("trade not routed")
	}

	require.NoError(t, m.Unsubscribe(topic))
	unsub := c.expect(t, "unsub")
	assert.Equal(t, "17", unsub.Chan)
	assert.Empty(t, m.Topics())
}

func TestMultiplexer_GapTriggersResubscribe(t *testing.T) {
	ts := newTestServer(t)
	engine := orderbook.NewEngine(orderbook.Options{Exchange: "test", ContiguousSequences: true})
	m := New(Options{Protocol: &testProtocol{url: ts.url()}, Engine: engine})
	require.NoError(t, m.Subscribe(btc))
	startMux(t, m)

	c := ts.accept(t)
	c.expect(t, "sub")
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Seq: 1, Bids: [][2]string{{"100", "1"}}})
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Seq: 4, Bids: [][2]string{{"100", "2"}}})

	c.expect(t, "unsub")
	c.expect(t, "sub")
	assert.Equal(t, orderbook.Stale, engine.State("BTC/USDT"))

	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Seq: 9, Bids: [][2]string{{"100", "7"}}})
	require.Eventually(t, func() bool { return engine.State("BTC/USDT") == orderbook.Live }, 2*time.Second, 5*time.Millisecond)
}

func TestMultiplexer_AuthFailuresAreFatal(t *testing.T) {
	ts := newTestServer(t)
	m := New(Options{
		Protocol:         &authProtocol{testProtocol{url: ts.url()}},
		MaxAuthFailures:  2,
		ReconnectInitial: 5 * time.Millisecond,
	})
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	defer m.Close()

	for i := 0; i < 2; i++ {
		c := ts.accept(t)
		c.expect(t, "login")
		c.send(t, testFrame{Type: "auth", OK: false})
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrAuth))
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after repeated auth failures")
	}
}

func TestMultiplexer_UnsubscribeClosesBook(t *testing.T) {
	ts := newTestServer(t)
	m := New(Options{Protocol: &testProtocol{url: ts.url()}})
	require.NoError(t, m.Subscribe(btc))
	startMux(t, m)

	c := ts.accept(t)
	c.expect(t, "sub")
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Bids: [][2]string{{"1", "1"}}})
	require.Eventually(t, func() bool { return m.Engine().State("BTC/USDT") == orderbook.Live }, 2*time.Second, 5*time.Millisecond)

	sub := m.Engine().Subscribe("BTC/USDT", 5)
	<-sub.C()

	require.NoError(t, m.Unsubscribe(btc))
	c.expect(t, "unsub")
	_, open := <-sub.C()
	assert.False(t, open)

	// late frames for a removed topic are ignored
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Bids: [][2]string{{"2", "1"}}})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, m.Engine().Markets())
	assert.Equal(t, orderbook.Closed, m.Engine().State("BTC/USDT"))

	// subscribing again reopens the book for the next snapshot
	require.NoError(t, m.Subscribe(btc))
	c.expect(t, "sub")
	assert.Equal(t, orderbook.Uninitialized, m.Engine().State("BTC/USDT"))
	c.send(t, testFrame{Type: "book", Market: "BTC/USDT", Kind: "book", Snapshot: true, Bids: [][2]string{{"3", "1"}}})
	require.Eventually(t, func() bool { return m.Engine().State("BTC/USDT") == orderbook.Live }, 2*time.Second, 5*time.Millisecond)
}

func TestMultiplexer_SubscribeAfterClose(t *testing.T) {
	m := New(Options{Protocol: &testProtocol{url: "ws://127.0.0.1:1"}})
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Subscribe(btc), ErrClosed)
	assert.ErrorIs(t, m.Run(context.Background()), ErrClosed)
}

func TestChannelMap(t *testing.T) {
	cm := NewChannelMap()
	cm.Bind("1", btc)
	eth := Topic{Market: "ETH/USDT", Kind: KindBook}
	cm.Bind("2", eth)

	got, ok := cm.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, btc, got)

	// rebinding a topic drops its old id
	cm.Bind("3", btc)
	_, ok = cm.Lookup("1")
	assert.False(t, ok)
	id, _ := cm.ID(btc)
	assert.Equal(t, "3", id)

	cm.Unbind("2")
	_, ok = cm.ID(eth)
	assert.False(t, ok)
	assert.Equal(t, 1, cm.Len())
}
