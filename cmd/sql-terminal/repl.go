// repl.go — 行式交互循环与命令分发。
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sql-workbench/go-assistant/internal/assistant"
	"github.com/sql-workbench/go-assistant/internal/editor"
	apperrors "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/logger"
)

const helpText = `commands:
  :help            show this help
  :sql             show current editor content
  :edit <sql>      replace editor content
  :run             execute current editor content
  :history         show conversation history
  :logs            show recent log entries
  :quit            exit
anything else is sent to the assistant as a question.`

// repl 行式交互循环。一次只跑一轮对话 — Submit 是同步的,
// 下一个提示符出现时上一轮必然已经收尾。
type repl struct {
	orch   *assistant.Orchestrator
	buffer *editor.Buffer
	in     *bufio.Scanner
	out    io.Writer
}

func newREPL(orch *assistant.Orchestrator, buffer *editor.Buffer, in io.Reader, out io.Writer) *repl {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &repl{orch: orch, buffer: buffer, in: sc, out: out}
}

// run 读行直到 EOF、:quit 或 ctx 结束。
func (r *repl) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Fprint(r.out, "you> ")
		if !r.in.Scan() {
			return
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if !r.dispatch(ctx, line) {
				return
			}
			continue
		}
		r.submit(ctx, line)
	}
}

// dispatch 处理 ":" 命令。返回 false 表示退出。
func (r *repl) dispatch(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case ":quit", ":q", ":exit":
		return false

	case ":help":
		fmt.Fprintln(r.out, helpText)

	case ":sql":
		text, _ := r.buffer.Text(ctx)
		if strings.TrimSpace(text) == "" {
			fmt.Fprintln(r.out, "(editor is empty)")
		} else {
			fmt.Fprintln(r.out, text)
		}

	case ":edit":
		if strings.TrimSpace(rest) == "" {
			fmt.Fprintln(r.out, "usage: :edit <sql>")
			break
		}
		_ = r.buffer.SetText(ctx, rest)
		fmt.Fprintln(r.out, "editor updated")

	case ":run":
		if err := r.buffer.Run(ctx); err != nil {
			fmt.Fprintf(r.out, "run failed: %v\n", err)
		}

	case ":history":
		msgs := r.orch.History().Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(r.out, "(no messages yet)")
			break
		}
		for _, msg := range msgs {
			renderMessage(r.out, msg)
		}

	case ":logs":
		renderLogs(r.out, logger.CapturedLogs())

	default:
		fmt.Fprintf(r.out, "unknown command %q — :help for the list\n", cmd)
	}
	return true
}

// submit 发起一轮对话并打印收尾消息。
func (r *repl) submit(ctx context.Context, input string) {
	err := r.orch.Submit(ctx, input)
	switch {
	case err == nil:
		// 正常收尾, 打印最新一条助手消息
	case errors.Is(err, apperrors.ErrTurnActive):
		fmt.Fprintln(r.out, "a turn is already in flight, wait for it to finish")
		return
	case errors.Is(err, apperrors.ErrInvalidInput):
		return
	default:
		// 传输失败已作为错误消息进入历史, 照常打印
	}

	if msg, ok := r.orch.History().Last(); ok {
		renderMessage(r.out, msg)
	}
}
