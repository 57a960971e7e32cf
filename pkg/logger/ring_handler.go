package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LogEntry 捕获环中的一条结构化日志。
type LogEntry struct {
	Ts         time.Time
	Level      string
	Message    string
	Component  string
	TurnID     string
	State      string
	EventType  string
	Tool       string
	DurationMS *int
	Extra      map[string]any
}

// ========================================
// RingHandler — slog.Handler → 内存环形缓冲
// ========================================

const defaultRingCapacity = 512

// ringCore 是 WithAttrs/WithGroup 克隆间共享的环存储。
type ringCore struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func (c *ringCore) append(e LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.next] = e
	c.next = (c.next + 1) % len(c.entries)
	if c.next == 0 {
		c.full = true
	}
}

// snapshot 按旧→新顺序拷贝当前内容。
func (c *ringCore) snapshot() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.full {
		out := make([]LogEntry, c.next)
		copy(out, c.entries[:c.next])
		return out
	}
	out := make([]LogEntry, 0, len(c.entries))
	out = append(out, c.entries[c.next:]...)
	out = append(out, c.entries[:c.next]...)
	return out
}

func (c *ringCore) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return len(c.entries)
	}
	return c.next
}

// RingHandler 实现 slog.Handler，将日志保留在固定容量的环形缓冲中，
// 供终端 :logs 命令与监控连接回放最近日志。写满后静默覆盖最旧条目。
type RingHandler struct {
	core  *ringCore
	attrs []slog.Attr
	group string
	level slog.Level
}

// NewRingHandler 创建容量为 capacity 的捕获环 (capacity <= 0 时取默认值)。
func NewRingHandler(capacity int, level slog.Level) *RingHandler {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &RingHandler{
		core:  &ringCore{entries: make([]LogEntry, capacity)},
		level: level,
	}
}

// Enabled 实现 slog.Handler。
func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle 实现 slog.Handler — 构造 LogEntry 写入环。
func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Ts:      r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}

	// 收集 With() 的固定 attrs
	for _, a := range h.attrs {
		applyAttr(&entry, a)
	}

	// 收集 Record 上的 attrs
	r.Attrs(func(a slog.Attr) bool {
		applyAttr(&entry, a)
		return true
	})

	h.core.append(entry)
	return nil
}

// WithAttrs 实现 slog.Handler — 克隆共享同一个环。
func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &RingHandler{core: h.core, attrs: newAttrs, group: h.group, level: h.level}
}

// WithGroup 实现 slog.Handler。
func (h *RingHandler) WithGroup(name string) slog.Handler {
	return &RingHandler{core: h.core, attrs: h.attrs, group: name, level: h.level}
}

// Snapshot 返回环中日志 (旧→新)。
func (h *RingHandler) Snapshot() []LogEntry { return h.core.snapshot() }

// Len 返回环中当前条目数。
func (h *RingHandler) Len() int { return h.core.size() }

// applyAttr 将 slog.Attr 映射到 LogEntry 的结构化字段。
func applyAttr(e *LogEntry, a slog.Attr) {
	switch a.Key {
	case FieldComponent:
		e.Component = a.Value.String()
	case FieldTurnID:
		e.TurnID = a.Value.String()
	case FieldState:
		e.State = a.Value.String()
	case FieldEventType:
		e.EventType = a.Value.String()
	case FieldTool:
		e.Tool = a.Value.String()
	case FieldDurationMS:
		switch v := a.Value.Any().(type) {
		case int64:
			ms := int(v)
			e.DurationMS = &ms
		case int:
			ms := v
			e.DurationMS = &ms
		case float64:
			ms := int(v)
			e.DurationMS = &ms
		}
	default:
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[a.Key] = a.Value.Any()
	}
}

// ========================================
// MultiHandler — 同时写多个 Handler (控制台 + 捕获环)
// ========================================

// MultiHandler 扇出日志到多个 slog.Handler。
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler 创建多路 Handler。
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled 只要有一个 Handler 接受该级别就返回 true。
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle 分发到所有 Handler。
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r)
		}
	}
	return nil
}

// WithAttrs 对所有 Handler 调用 WithAttrs。
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup 对所有 Handler 调用 WithGroup。
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// ========================================
// AttachRingHandler — 运行时挂载捕获环
// ========================================

var (
	ringHandler atomic.Pointer[RingHandler]
	attachMu    sync.Mutex
)

// unwrapBaseHandler 返回 MultiHandler 封装下的第一路 Handler。
// 重复 Attach 时避免嵌套包装。
func unwrapBaseHandler(h slog.Handler) slog.Handler {
	if m, ok := h.(*MultiHandler); ok && len(m.handlers) > 0 {
		return m.handlers[0]
	}
	return h
}

// AttachRingHandler 将捕获环作为第二路 Handler 挂载到默认日志器，
// 返回 handler 供调用方读取快照。重复调用会替换旧环。
func AttachRingHandler(capacity int) *RingHandler {
	attachMu.Lock()
	defer attachMu.Unlock()

	h := NewRingHandler(capacity, slog.LevelDebug)
	ringHandler.Store(h)

	base := unwrapBaseHandler(getLogger().Handler())
	storeLogger(slog.New(NewMultiHandler(base, h)))
	return h
}

// CapturedLogs 返回当前捕获环的快照 (未挂载时返回 nil)。
func CapturedLogs() []LogEntry {
	if h := ringHandler.Load(); h != nil {
		return h.Snapshot()
	}
	return nil
}
