// Package monitor 提供轮次实时监控 WebSocket 服务。
//
// 订阅 internal/bus 的 turn.* 主题, 把每条总线消息以 JSON 推给
// 所有已连接的本地客户端。慢客户端被断开而不是阻塞推送 —
// 监控永远不在 decode→fold→apply 关键路径上。
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sql-workbench/go-assistant/internal/bus"
	"github.com/sql-workbench/go-assistant/pkg/logger"
	"github.com/sql-workbench/go-assistant/pkg/util"
)

// connOutboxSize 每连接发送队列容量。队列满即视为客户端跟不上。
const connOutboxSize = 64

// writeTimeout 单条消息写超时。
const writeTimeout = 10 * time.Second

// ========================================
// connEntry — 单个 WebSocket 连接
// ========================================

// connEntry WebSocket 连接 + 写锁 (gorilla/websocket 不安全并发写)。
type connEntry struct {
	ws        *websocket.Conn
	wrMu      sync.Mutex // 序列化所有写操作
	outbox    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newConnEntry(ws *websocket.Conn) *connEntry {
	return &connEntry{
		ws:      ws,
		outbox:  make(chan []byte, connOutboxSize),
		closeCh: make(chan struct{}),
	}
}

// writeMsg 线程安全地写入 WebSocket 文本消息。
func (c *connEntry) writeMsg(data []byte) error {
	c.wrMu.Lock()
	defer c.wrMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// enqueue 非阻塞入队。队列满或连接已关闭返回 false。
func (c *connEntry) enqueue(data []byte) bool {
	select {
	case <-c.closeCh:
		return false
	default:
	}
	select {
	case c.outbox <- data:
		return true
	default:
		return false
	}
}

func (c *connEntry) closeNow() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *connEntry) writeLoop() error {
	for {
		select {
		case <-c.closeCh:
			return nil
		case msg := <-c.outbox:
			if err := c.writeMsg(msg); err != nil {
				return err
			}
		}
	}
}

// checkLocalOrigin 仅允许 localhost 来源的 WebSocket 连接。
//
// 接受: 无 Origin header (CLI/IDE 等非浏览器客户端), localhost,
// 127.0.0.1, [::1]。
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	// 必须整主机名比对 — 前缀匹配会放行 localhost.evil.com 这类来源
	u, err := url.Parse(origin)
	if err == nil {
		switch strings.ToLower(u.Hostname()) {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	logger.Warn("monitor: rejected non-local origin", logger.FieldOrigin, origin)
	return false
}

// ========================================
// Server
// ========================================

// Server 轮次监控 WebSocket 服务。
type Server struct {
	bus      *bus.MessageBus
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*connEntry
	nextID int
}

// NewServer 创建监控服务, 尚未监听。
func NewServer(b *bus.MessageBus) *Server {
	return &Server{
		bus: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkLocalOrigin,
		},
		conns: make(map[string]*connEntry),
	}
}

// Handler 返回 WebSocket 升级 handler (测试用 httptest 直接挂载)。
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// Start 在 127.0.0.1:port 启动监听并开始转发总线消息。
// 监听失败直接返回; 之后的服务错误只记日志。
func (s *Server) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)

	srv := &http.Server{Handler: mux}
	util.SafeGo(func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("monitor: serve failed", logger.FieldError, err)
		}
	})
	util.SafeGo(func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	})

	s.Run(ctx)
	logger.Info("monitor: listening", logger.FieldAddr, ln.Addr().String())
	return nil
}

// Run 订阅总线并在后台转发, ctx 结束时退订。
// Start 会自动调用; 仅用 Handler 挂载时需显式调用。
func (s *Server) Run(ctx context.Context) {
	sub := s.bus.Subscribe("monitor", bus.TopicTurnPrefix)
	util.SafeGo(func() {
		defer s.bus.Unsubscribe("monitor")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Ch:
				if !ok {
					return
				}
				s.broadcast(msg)
			}
		}
	})
}

// serveWS 升级连接并托管收发循环。
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("monitor: upgrade failed", logger.FieldError, err)
		return
	}

	entry := newConnEntry(ws)
	s.mu.Lock()
	s.nextID++
	connID := fmt.Sprintf("mon-%d", s.nextID)
	s.conns[connID] = entry
	s.mu.Unlock()

	logger.Info("monitor: client connected",
		logger.FieldConn, connID,
		logger.FieldRemote, r.RemoteAddr,
	)

	util.SafeGo(func() {
		if err := entry.writeLoop(); err != nil {
			logger.Debug("monitor: write loop ended", logger.FieldConn, connID, logger.FieldError, err)
		}
		s.disconnect(connID)
	})

	// 读循环只用于感知断开; 客户端消息被丢弃
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	s.disconnect(connID)
	logger.Info("monitor: client disconnected", logger.FieldConn, connID)
}

// broadcast 把总线消息推给所有连接; 入队失败的连接被断开。
func (s *Server) broadcast(msg bus.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("monitor: marshal bus message failed", logger.FieldError, err)
		return
	}

	s.mu.RLock()
	snapshot := make(map[string]*connEntry, len(s.conns))
	for id, entry := range s.conns {
		snapshot[id] = entry
	}
	s.mu.RUnlock()

	for id, entry := range snapshot {
		if !entry.enqueue(data) {
			logger.Warn("monitor: client send queue overloaded, disconnecting",
				logger.FieldConn, id,
				logger.FieldTopic, msg.Topic,
			)
			s.disconnect(id)
		}
	}
}

func (s *Server) disconnect(connID string) {
	s.mu.Lock()
	entry, ok := s.conns[connID]
	if ok {
		delete(s.conns, connID)
	}
	s.mu.Unlock()
	if ok && entry != nil {
		entry.closeNow()
	}
}

// ConnCount 返回当前连接数 (测试用)。
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
