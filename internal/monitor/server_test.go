// server_test.go — 监控服务: 来源校验 + 总线转发 + 断开处理。
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sql-workbench/go-assistant/internal/bus"
)

func TestCheckLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true}, // CLI/IDE 客户端无 Origin
		{"http://localhost:3000", true},
		{"https://localhost", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:9999", true},
		{"http://evil.example.com", false},
		{"https://localhost.evil.com", false},
		{"http://127.0.0.1.evil.com", false},
		{"http://LOCALHOST:3000", true},
		{"not a url", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkLocalOrigin(r); got != tt.want {
			t.Errorf("checkLocalOrigin(origin=%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

// dialTestServer 在 httptest 上挂载监控服务并建立一个 WebSocket 连接。
func dialTestServer(t *testing.T, s *Server) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}
	return ts, conn
}

func TestMonitorForwardsBusMessages(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx)

	ts, conn := dialTestServer(t, s)
	defer ts.Close()
	defer conn.Close()

	// 订阅注册与连接托管都是异步的, 等连接納入 conns
	waitFor(t, func() bool { return s.ConnCount() == 1 })

	b.Publish(bus.Message{Topic: bus.TopicTurnStarted, TurnID: "t-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg bus.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Topic != bus.TopicTurnStarted {
		t.Errorf("Topic = %q, want %q", msg.Topic, bus.TopicTurnStarted)
	}
	if msg.TurnID != "t-1" {
		t.Errorf("TurnID = %q, want t-1", msg.TurnID)
	}
}

func TestMonitorIgnoresNonTurnTopics(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx)

	ts, conn := dialTestServer(t, s)
	defer ts.Close()
	defer conn.Close()
	waitFor(t, func() bool { return s.ConnCount() == 1 })

	b.Publish(bus.Message{Topic: "internal.heartbeat"})
	b.Publish(bus.Message{Topic: bus.TopicTurnFinalized, TurnID: "t-2"})

	// 第一条收到的必须是 turn.finalized — 非 turn.* 主题不转发
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg bus.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Topic != bus.TopicTurnFinalized {
		t.Errorf("Topic = %q, want %q", msg.Topic, bus.TopicTurnFinalized)
	}
}

func TestMonitorDropsClosedClient(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx)

	ts, conn := dialTestServer(t, s)
	defer ts.Close()

	waitFor(t, func() bool { return s.ConnCount() == 1 })
	conn.Close()
	waitFor(t, func() bool { return s.ConnCount() == 0 })
}

func TestConnEntryEnqueueAfterClose(t *testing.T) {
	entry := newConnEntry(nil)
	entry.closeOnce.Do(func() { close(entry.closeCh) })
	if entry.enqueue([]byte("x")) {
		t.Error("enqueue after close = true, want false")
	}
}

func TestConnEntryEnqueueFullOutbox(t *testing.T) {
	entry := newConnEntry(nil)
	for i := 0; i < connOutboxSize; i++ {
		if !entry.enqueue([]byte("x")) {
			t.Fatalf("enqueue %d failed before outbox full", i)
		}
	}
	if entry.enqueue([]byte("overflow")) {
		t.Error("enqueue on full outbox = true, want false")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
