// Package editor 定义助手可操作的 SQL 编辑器表面。
//
// 编辑器归宿主应用所有: 助手只通过 Host/Handle 接口读取文本、覆写文本、
// 触发执行，自身不持有任何编辑器状态。没有活跃编辑器不是致命错误——
// 调用方把依赖编辑器的动作降级为 no-op。
package editor

import (
	"context"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
)

// Handle 一个编辑器面板。
type Handle interface {
	// Text 返回编辑器当前全文。
	Text(ctx context.Context) (string, error)

	// SetText 用 text 覆写编辑器全文。
	SetText(ctx context.Context, text string) error

	// Run 以编辑器当前文本触发一次执行。
	Run(ctx context.Context) error
}

// Host 解析当前聚焦的编辑器。
type Host interface {
	// Current 返回当前活跃的编辑器句柄。
	// 没有活跃编辑器时返回包装 ErrNotFound 的错误。
	Current(ctx context.Context) (Handle, error)
}

// ========================================
// StaticHost (固定句柄宿主)
// ========================================

// StaticHost 始终解析同一个句柄。句柄为 nil 表示没有活跃编辑器。
type StaticHost struct {
	handle Handle
}

// NewStaticHost 创建固定句柄宿主。h 可以为 nil。
func NewStaticHost(h Handle) *StaticHost {
	return &StaticHost{handle: h}
}

// Current 实现 Host。
func (s *StaticHost) Current(ctx context.Context) (Handle, error) {
	if s == nil || s.handle == nil {
		return nil, pkgerr.Wrap(pkgerr.ErrNotFound, "Editor.Current", "no active editor")
	}
	return s.handle, nil
}
