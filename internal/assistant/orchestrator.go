// Package assistant 实现 AI SQL 助手的客户端核心:
// 发起对话轮次、消费流式事件、折叠轮次状态、驱动编辑器动作。
//
// 一轮对话 = 一条控制流: 令牌获取、每次响应体读取、动作静置延迟是仅有的
// 挂起点; decode→interpret→fold→apply 之间既不重排也不并行。
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sql-workbench/go-assistant/internal/bus"
	"github.com/sql-workbench/go-assistant/internal/editor"
	"github.com/sql-workbench/go-assistant/internal/protocol"
	"github.com/sql-workbench/go-assistant/internal/turn"
	apperrors "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/logger"
)

// ========================================
// 固定文案与默认值
// ========================================

// GuidanceNoDatabase 未选择数据库时的固定引导语。
const GuidanceNoDatabase = "Please select a database connection first. I need it to answer questions about your data."

const transportFailurePrefix = "Sorry, I couldn't reach the assistant service: "

// TransportFailureText 传输失败的用户可见文案。
func TransportFailureText(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown error"
	}
	return transportFailurePrefix + detail
}

const (
	// DefaultIdleTimeout 流空闲看门狗: 连续无读取完成则中断流。
	DefaultIdleTimeout = 60 * time.Second
	// DefaultTurnTimeout 轮次总预算。
	DefaultTurnTimeout = 5 * time.Minute

	// readBufSize 响应体读取缓冲。帧普遍在几百字节级, 4KB 足够吃下成批到达的帧。
	readBufSize = 4096
)

// ========================================
// 状态机
// ========================================

// State 编排器状态。Failed 是单轮的终态, 不阻止下一次 Submit。
type State int32

const (
	// StateIdle 空闲。
	StateIdle State = iota
	// StateSending 正在构建并发送请求。
	StateSending
	// StateStreaming 正在消费事件流。
	StateStreaming
	// StateFinalizing 正在收尾本轮。
	StateFinalizing
	// StateFailed 本轮以失败收尾。
	StateFailed
)

// String 实现 fmt.Stringer。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer 轮次事件观察者。在折叠与动作应用之后、同一控制流内被调用,
// 不得阻塞 (阻塞即阻塞整条流)。
type Observer func(ev *protocol.Event)

// ========================================
// Orchestrator
// ========================================

// Options 编排器依赖与调优参数。
type Options struct {
	Transport Transport
	History   *turn.History      // nil 时内部新建
	Host      editor.Host        // 可为 nil (无编辑器)
	Applier   *Applier           // nil 时按 Host + 默认静置延迟新建
	Bus       *bus.MessageBus    // 可为 nil (不发布通知)
	ContextFn func() DatabaseContext // 每轮的工作台上下文快照 (current_sql 由编排器补)

	IdleTimeout time.Duration // <= 0 取 DefaultIdleTimeout
	TurnTimeout time.Duration // <= 0 取 DefaultTurnTimeout
}

// Orchestrator 对话轮次编排器。
//
// 同一时刻至多一轮在途 (原子守卫, 拒绝而非排队)。
// 状态是编排器自己的值 — 多个编排器实例可以共存。
type Orchestrator struct {
	transport   Transport
	history     *turn.History
	host        editor.Host
	applier     *Applier
	bus         *bus.MessageBus
	contextFn   func() DatabaseContext
	idleTimeout time.Duration
	turnTimeout time.Duration

	state    atomic.Int32
	inFlight atomic.Bool

	observerMu sync.RWMutex
	observers  []Observer
}

// NewOrchestrator 创建编排器。Transport 必须非 nil。
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.History == nil {
		opts.History = turn.NewHistory()
	}
	if opts.Applier == nil {
		opts.Applier = NewApplier(opts.Host, 0)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	return &Orchestrator{
		transport:   opts.Transport,
		history:     opts.History,
		host:        opts.Host,
		applier:     opts.Applier,
		bus:         opts.Bus,
		contextFn:   opts.ContextFn,
		idleTimeout: opts.IdleTimeout,
		turnTimeout: opts.TurnTimeout,
	}
}

// State 返回当前状态。
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// History 返回会话历史。
func (o *Orchestrator) History() *turn.History {
	return o.history
}

// AddObserver 注册轮次事件观察者 (线程安全)。
func (o *Orchestrator) AddObserver(fn Observer) {
	if fn == nil {
		return
	}
	o.observerMu.Lock()
	o.observers = append(o.observers, fn)
	o.observerMu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// ========================================
// Submit — 一轮对话
// ========================================

// Submit 发起一轮对话并阻塞到本轮结束。
//
// 守卫失败 (空输入 / 已有在途轮次) 不改动历史, 直接返回哨兵错误。
// 传输失败与超时以错误返回, 同时历史中已有对应的错误消息;
// 服务端通过 error 事件报告的错误折叠进消息, Submit 返回 nil。
func (o *Orchestrator) Submit(ctx context.Context, input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "Orchestrator.Submit", "empty input")
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return apperrors.Wrap(apperrors.ErrTurnActive, "Orchestrator.Submit", "submit rejected")
	}
	defer o.inFlight.Store(false)

	return o.runTurn(ctx, input)
}

func (o *Orchestrator) runTurn(ctx context.Context, input string) error {
	turnID := uuid.NewString()
	started := time.Now()
	o.setState(StateSending)

	dbCtx := o.snapshotContext(ctx)

	o.history.Append(turn.NewUserMessage(input))
	o.publish(bus.TopicTurnStarted, turnID, "", map[string]any{
		"input":       input,
		"database_id": dbCtx.DatabaseID,
	})
	logger.Info("assistant: turn started",
		logger.FieldTurnID, turnID,
		logger.FieldDatabase, dbCtx.DatabaseName,
	)

	// 未选择数据库: 零网络调用, 直接以引导语收尾
	if dbCtx.DatabaseID == 0 {
		o.setState(StateFinalizing)
		msg := turn.NewAssistantNotice(GuidanceNoDatabase, true)
		o.history.Append(msg)
		o.publishFinalized(turnID, msg)
		o.setState(StateIdle)
		logger.Info("assistant: turn short-circuited, no database selected",
			logger.FieldTurnID, turnID)
		return nil
	}

	req := buildRequest(o.history.Messages(), dbCtx)

	// 轮次总预算 + 可被看门狗取消的流上下文
	turnCtx, cancelTurn := context.WithTimeoutCause(ctx, o.turnTimeout,
		fmt.Errorf("%w: turn exceeded %s", apperrors.ErrTimeout, o.turnTimeout))
	defer cancelTurn()
	streamCtx, cancelStream := context.WithCancelCause(turnCtx)
	defer cancelStream(nil)

	body, err := o.transport.Stream(streamCtx, req)
	if err != nil {
		return o.failTurn(turnID, nil, o.failureCause(streamCtx, err), started)
	}
	defer body.Close()

	o.setState(StateStreaming)

	// 空闲看门狗: 每次读取完成后重置
	watchdog := time.AfterFunc(o.idleTimeout, func() {
		cancelStream(fmt.Errorf("%w: stream idle for %s", apperrors.ErrTimeout, o.idleTimeout))
	})
	defer watchdog.Stop()

	var acc turn.Accumulator
	dec := protocol.NewDecoder()
	frames := 0
	buf := make([]byte, readBufSize)

	for {
		n, readErr := body.Read(buf)
		watchdog.Reset(o.idleTimeout)

		if n > 0 {
			for _, block := range dec.Feed(buf[:n]) {
				ev, err := protocol.InterpretBlock(block)
				if err != nil {
					logger.Warn("assistant: skipping malformed frame",
						logger.FieldTurnID, turnID,
						logger.FieldError, err,
					)
					continue
				}
				frames++
				o.handleEvent(streamCtx, turnID, &acc, ev)
			}
		}

		if readErr == io.EOF {
			// 看门狗/预算取消可能与干净 EOF 竞争: 传输层先关闭流、
			// 取消原因后到。有超时原因的 EOF 仍按失败收尾。
			if cause := context.Cause(streamCtx); cause != nil && !errors.Is(cause, context.Canceled) {
				return o.failTurn(turnID, &acc, cause, started)
			}
			break
		}
		if readErr != nil {
			return o.failTurn(turnID, &acc, o.failureCause(streamCtx, readErr), started)
		}
	}
	watchdog.Stop()

	if pending := dec.Pending(); pending > 0 {
		logger.Warn("assistant: discarding unterminated trailing bytes",
			logger.FieldTurnID, turnID,
			logger.FieldBytes, pending,
		)
	}

	o.setState(StateFinalizing)
	msg := acc.Finalize(time.Now())
	o.history.Append(msg)
	o.publishFinalized(turnID, msg)
	o.setState(StateIdle)

	logger.Info("assistant: turn finalized",
		logger.FieldTurnID, turnID,
		logger.FieldFrames, frames,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
	)
	return nil
}

// handleEvent 按到达顺序处理单个事件: 折叠 → 应用动作 → 通知观察者与总线。
func (o *Orchestrator) handleEvent(ctx context.Context, turnID string, acc *turn.Accumulator, ev *protocol.Event) {
	acc.Apply(ev)

	if ev.Kind == protocol.EventAction && ev.Action != nil {
		res := o.applier.Apply(ctx, *ev.Action)
		if res.Triggered {
			acc.MarkRunnable()
		}
	}

	o.notifyObservers(ev)
	o.publish(bus.TopicTurnEvent, turnID, ev.Kind, eventPayload(ev))
}

// failTurn 以失败收尾本轮: 一条错误标记消息, 已折叠的 steps/actions 保留。
func (o *Orchestrator) failTurn(turnID string, acc *turn.Accumulator, cause error, started time.Time) error {
	o.setState(StateFinalizing)

	content := TransportFailureText(errorDetail(cause))
	var msg turn.Message
	if acc != nil {
		msg = acc.Finalize(time.Now())
		msg.Content = content
		msg.IsError = true
	} else {
		msg = turn.NewAssistantNotice(content, true)
	}
	o.history.Append(msg)

	o.publish(bus.TopicTurnFailed, turnID, "", map[string]any{
		"error": errorDetail(cause),
	})
	o.setState(StateFailed)

	logger.Error("assistant: turn failed",
		logger.FieldTurnID, turnID,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
		logger.FieldError, cause,
	)
	return apperrors.Wrap(cause, "Orchestrator.Submit", "turn failed")
}

// failureCause 优先取上下文的取消原因 (看门狗/轮次预算/调用方取消), 否则用读错误本身。
func (o *Orchestrator) failureCause(streamCtx context.Context, readErr error) error {
	if cause := context.Cause(streamCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return readErr
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// snapshotContext 取工作台上下文快照, 并从编辑器补 current_sql。
func (o *Orchestrator) snapshotContext(ctx context.Context) DatabaseContext {
	var dbCtx DatabaseContext
	if o.contextFn != nil {
		dbCtx = o.contextFn()
	}
	dbCtx.CurrentSQL = o.readEditorSQL(ctx)
	return dbCtx
}

func (o *Orchestrator) readEditorSQL(ctx context.Context) string {
	if o.host == nil {
		return ""
	}
	handle, err := o.host.Current(ctx)
	if err != nil {
		return ""
	}
	text, err := handle.Text(ctx)
	if err != nil {
		return ""
	}
	return text
}

func (o *Orchestrator) notifyObservers(ev *protocol.Event) {
	o.observerMu.RLock()
	observers := o.observers
	o.observerMu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// ========================================
// 总线发布
// ========================================

func (o *Orchestrator) publish(topic, turnID, kind string, payload any) {
	if o.bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Warn("assistant: bus payload marshal failed",
				logger.FieldTopic, topic,
				logger.FieldError, err,
			)
		} else {
			raw = data
		}
	}
	o.bus.Publish(bus.Message{Topic: topic, TurnID: turnID, Kind: kind, Payload: raw})
}

func (o *Orchestrator) publishFinalized(turnID string, msg turn.Message) {
	o.publish(bus.TopicTurnFinalized, turnID, "", msg)
}

// eventPayload 取事件的具体负载用于总线发布。
func eventPayload(ev *protocol.Event) any {
	switch ev.Kind {
	case protocol.EventStep:
		return ev.Step
	case protocol.EventAction:
		return ev.Action
	case protocol.EventResponse:
		return ev.Response
	case protocol.EventError:
		return ev.Error
	default:
		return nil
	}
}
