// buffer.go — 内存编辑器缓冲区 (终端模式下的 Handle 实现)。
package editor

import (
	"context"
	"sync"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
)

// RunFunc 执行缓冲区当前文本的回调。终端把查询执行与结果渲染注入到这里。
type RunFunc func(ctx context.Context, sqlText string) error

// Buffer 互斥锁保护的内存 SQL 文档，实现 Handle。
type Buffer struct {
	mu   sync.RWMutex
	text string
	run  RunFunc
}

// NewBuffer 创建空缓冲区。run 为 nil 时 Run 返回错误。
func NewBuffer(run RunFunc) *Buffer {
	return &Buffer{run: run}
}

// Text 实现 Handle。
func (b *Buffer) Text(ctx context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text, nil
}

// SetText 实现 Handle。
func (b *Buffer) SetText(ctx context.Context, text string) error {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	return nil
}

// Run 实现 Handle: 以当前文本调用注入的 RunFunc。
// 文本在锁内快照、回调在锁外执行，RunFunc 内部可以安全回写缓冲区。
func (b *Buffer) Run(ctx context.Context) error {
	b.mu.RLock()
	text := b.text
	b.mu.RUnlock()

	if b.run == nil {
		return pkgerr.New("Editor.Run", "no run hook configured")
	}
	return b.run(ctx, text)
}
