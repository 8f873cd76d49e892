package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

type stubStats struct {
	snap domain.StatsSnapshot
}

func (s stubStats) Snapshot() domain.StatsSnapshot { return s.snap }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T, stats StatsProvider, queue int) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(stats, queue, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	stats := stubStats{snap: domain.StatsSnapshot{
		TotalValueTransferred: 123.5,
		PerNameTotals:         []domain.NameTotal{{Name: "alice", Total: 123.5}},
	}}
	_, srv := startHub(t, stats, 16)

	conn := dial(t, srv)
	msg := readJSON(t, conn)

	if msg["type"] != domain.MessageTypeStats {
		t.Fatalf("first message type = %v, want %s", msg["type"], domain.MessageTypeStats)
	}
	if msg["totalValueTransferred"] != 123.5 {
		t.Errorf("totalValueTransferred = %v, want 123.5", msg["totalValueTransferred"])
	}
	totals, ok := msg["perNameTotals"].([]any)
	if !ok || len(totals) != 1 {
		t.Fatalf("perNameTotals = %v, want one tuple", msg["perNameTotals"])
	}
	tuple, ok := totals[0].([]any)
	if !ok || len(tuple) != 2 || tuple[0] != "alice" || tuple[1] != 123.5 {
		t.Errorf("tuple = %v, want [alice 123.5]", totals[0])
	}
}

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	h, srv := startHub(t, stubStats{}, 16)

	a := dial(t, srv)
	b := dial(t, srv)
	readJSON(t, a) // initial snapshots
	readJSON(t, b)

	if n := h.Subscribers(); n != 2 {
		t.Errorf("Subscribers() = %d, want 2", n)
	}

	h.Broadcast(map[string]string{"type": "TOKEN_TRANSFER", "value": "15.00"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readJSON(t, conn)
		if msg["type"] != "TOKEN_TRANSFER" || msg["value"] != "15.00" {
			t.Errorf("broadcast payload = %v", msg)
		}
	}
}

func TestHubEvictsSlowSubscriber(t *testing.T) {
	h := NewHub(stubStats{}, 1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// A bare client with no write pump: its queue never drains.
	slow := &client{id: "slow", hub: h, send: make(chan []byte, 1)}
	h.register <- slow

	// First broadcast fills the queue, second overflows it and evicts.
	h.Broadcast(map[string]string{"n": "1"})
	h.Broadcast(map[string]string{"n": "2"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("slow subscriber was not evicted")
		default:
		}
		if _, ok := <-slow.send; !ok {
			return // channel closed: evicted
		}
	}
}

func TestHubClosesNewConnectionsAfterShutdown(t *testing.T) {
	h := NewHub(stubStats{}, 4, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	// The upgrade still succeeds, but with no hub loop draining the register
	// channel the connection must be closed, not parked forever.
	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection stayed open after hub shutdown")
	}
}
