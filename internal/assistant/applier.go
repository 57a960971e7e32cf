// applier.go — 动作应用器: 把流内 action 事件落到编辑器宿主。
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/sql-workbench/go-assistant/internal/editor"
	"github.com/sql-workbench/go-assistant/internal/protocol"
	"github.com/sql-workbench/go-assistant/pkg/logger"
)

// DefaultSettleDelay 覆写编辑器文本到触发执行之间的静置延迟。
// 宿主需要时间消化文本变更 (高亮、解析), 立即触发会跑到旧文本上。
const DefaultSettleDelay = 100 * time.Millisecond

// ApplyResult 一次动作应用的结果。
type ApplyResult struct {
	// Triggered 是否尝试了执行。报告的是尝试而非成功:
	// 触发失败会被记日志后吞掉, 不影响本轮。
	Triggered bool
}

// Applier 把 set_editor_content 动作应用到编辑器。
// 动作由单一控制流按到达顺序逐个调用, Applier 自身不做并发防护。
type Applier struct {
	host        editor.Host
	settleDelay time.Duration
}

// NewApplier 创建应用器。settleDelay <= 0 时取 DefaultSettleDelay。
func NewApplier(host editor.Host, settleDelay time.Duration) *Applier {
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Applier{host: host, settleDelay: settleDelay}
}

// Apply 同步应用一个动作。
//
// 只有 set_editor_content 有行为; 其余种类记日志后忽略。
// 没有活跃编辑器不是本轮的错误 — 动作降级为 no-op。
func (a *Applier) Apply(ctx context.Context, action protocol.Action) ApplyResult {
	if action.Type != protocol.ActionSetEditorContent {
		logger.Debug("applier: ignoring unknown action kind",
			logger.FieldEventType, action.Type)
		return ApplyResult{}
	}
	if a.host == nil {
		logger.Info("applier: no editor host, action skipped")
		return ApplyResult{}
	}

	handle, err := a.host.Current(ctx)
	if err != nil {
		logger.Info("applier: no active editor, action skipped",
			logger.FieldError, err)
		return ApplyResult{}
	}

	if err := handle.SetText(ctx, action.SQL); err != nil {
		logger.Warn("applier: set editor text failed", logger.FieldError, err)
		return ApplyResult{}
	}
	logger.Debug("applier: editor content set",
		logger.FieldLen, len(action.SQL))

	if !shouldAutoRun(action.SQL) {
		return ApplyResult{}
	}

	// 静置后再触发, 取消则不再尝试
	select {
	case <-ctx.Done():
		return ApplyResult{}
	case <-time.After(a.settleDelay):
	}

	if err := handle.Run(ctx); err != nil {
		logger.Warn("applier: execution trigger failed", logger.FieldError, err)
	}
	return ApplyResult{Triggered: true}
}

// shouldAutoRun 只有查询形态 (SELECT/WITH 开头, 大小写不敏感) 才自动执行。
func shouldAutoRun(sqlText string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
