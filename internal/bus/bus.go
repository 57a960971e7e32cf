// Package bus 提供轮次事件的进程内发布/订阅。
//
// 总线只做通知分发, 永远不在 decode→fold→apply 关键路径上:
// fan-out 非阻塞, 订阅者通道满则丢弃, 慢消费者只影响自己。
// 订阅按 topic 前缀过滤 ("turn" 收到 turn.started / turn.event 等)。
package bus

import (
	"encoding/json"
	"sync"
	"time"
)

// ========================================
// 消息类型
// ========================================

// Message 总线消息。
type Message struct {
	Topic     string          `json:"topic"`
	TurnID    string          `json:"turn_id,omitempty"`
	Kind      string          `json:"kind,omitempty"`    // 流内事件种类 (step/action/response/error)
	Payload   json.RawMessage `json:"payload,omitempty"` // 具体数据
	Timestamp time.Time       `json:"timestamp"`
	Seq       int64           `json:"seq"` // 全局序列号
}

// Topic 常量。
const (
	// TopicTurnStarted 一轮对话开始。
	TopicTurnStarted = "turn.started"
	// TopicTurnEvent 流内事件 (每个合法 step/action/response/error 一条)。
	TopicTurnEvent = "turn.event"
	// TopicTurnFinalized 一轮对话正常收尾。
	TopicTurnFinalized = "turn.finalized"
	// TopicTurnFailed 一轮对话失败收尾。
	TopicTurnFailed = "turn.failed"

	// TopicTurnPrefix 订阅所有轮次消息的前缀。
	TopicTurnPrefix = "turn"

	// TopicAll 广播 (所有订阅者收到)。
	TopicAll = "*"
)

// ========================================
// Subscriber
// ========================================

// Subscriber 订阅者。
type Subscriber struct {
	ID     string       // 唯一标识
	Filter string       // topic 前缀过滤 ("turn" / "turn.event" / "*")
	Ch     chan Message // 消息通道
}

// ========================================
// MessageBus — topic pub/sub
// ========================================

// MessageBus 进程内消息总线。
//
// 支持 topic 前缀匹配和广播:
//   - 订阅 "turn" → 收到 turn.started, turn.event, turn.finalized, turn.failed
//   - 订阅 "turn.event" → 只收到流内事件
//   - 订阅 "*" → 收到所有消息
type MessageBus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // key = subscriber ID
	seq         int64
}

// NewMessageBus 创建消息总线。
func NewMessageBus() *MessageBus {
	return &MessageBus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Publish 发布消息到匹配的订阅者。
//
// seq 递增和 fan-out 在同一把锁下执行, 保证消息到达顺序与 seq 一致。
func (b *MessageBus) Publish(msg Message) {
	b.mu.Lock()
	b.seq++
	msg.Seq = b.seq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	// 在同一把锁下完成 fan-out, 保证 seq 顺序
	for _, sub := range b.subscribers {
		if matchTopic(sub.Filter, msg.Topic) {
			select {
			case sub.Ch <- msg:
			default:
				// 通道满, 丢弃 (避免阻塞发布者)
			}
		}
	}
	b.mu.Unlock()
}

// Subscribe 订阅消息。filter 为 topic 前缀 ("turn" / "turn.event" / "*")。
func (b *MessageBus) Subscribe(id, filter string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:     id,
		Filter: filter,
		Ch:     make(chan Message, 64),
	}
	b.subscribers[id] = sub
	return sub
}

// Unsubscribe 取消订阅。
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount 返回当前订阅者数量。
func (b *MessageBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Seq 返回当前序列号。
func (b *MessageBus) Seq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// ========================================
// Topic 匹配
// ========================================

// matchTopic 检查 topic 是否匹配 filter。
//
// 规则:
//   - filter "*" 匹配所有 topic
//   - filter "turn" 匹配 "turn", "turn.started", "turn.event" 等
//   - 前缀匹配要求点边界: "turn.e" 不匹配 "turn.event"
func matchTopic(filter, topic string) bool {
	if filter == TopicAll {
		return true
	}
	if topic == filter {
		return true
	}
	if len(topic) > len(filter) && topic[:len(filter)] == filter && topic[len(filter)] == '.' {
		return true
	}
	return false
}
