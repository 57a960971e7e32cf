// render.go — 终端渲染: 查询结果、流内事件、会话消息、日志回放。
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sql-workbench/go-assistant/internal/editor"
	"github.com/sql-workbench/go-assistant/internal/protocol"
	"github.com/sql-workbench/go-assistant/internal/turn"
	"github.com/sql-workbench/go-assistant/pkg/logger"
	"github.com/sql-workbench/go-assistant/pkg/util"
)

const (
	// cellWidth 单元格最大显示宽度。
	cellWidth = 40
	// resultByteLimit 一次结果渲染的输出上限, 防止超宽结果刷爆终端。
	resultByteLimit = 64 * 1024
	// logTail :logs 默认回放条数。
	logTail = 30
)

// renderResult 以对齐文本表打印查询结果, 输出经 LimitedWriter 限量。
func renderResult(w io.Writer, res *editor.Result) {
	if res == nil || len(res.Columns) == 0 {
		fmt.Fprintln(w, "(no result)")
		return
	}

	lw := util.NewLimitedWriter(w, resultByteLimit)

	widths := make([]int, len(res.Columns))
	cells := make([][]string, len(res.Rows))
	for i, col := range res.Columns {
		widths[i] = len(col)
	}
	for ri, row := range res.Rows {
		cells[ri] = make([]string, len(res.Columns))
		for ci, col := range res.Columns {
			s := formatCell(row[col])
			cells[ri][ci] = s
			if len(s) > widths[ci] {
				widths[ci] = len(s)
			}
		}
	}

	writeRow := func(values []string) {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		fmt.Fprintln(lw, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(res.Columns)
	sep := make([]string, len(res.Columns))
	for i := range sep {
		sep[i] = strings.Repeat("-", widths[i])
	}
	writeRow(sep)
	for _, row := range cells {
		writeRow(row)
	}
	fmt.Fprintf(lw, "(%d rows)\n", len(res.Rows))

	if lw.Overflow() {
		fmt.Fprintln(w, "… output truncated")
	}
}

// formatCell 单元格取值: NULL 显式标注, 长值截断。
func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return util.Truncate(fmt.Sprint(v), cellWidth)
}

// renderLiveEvent 流内事件到达即打印一行。response/error 不在这里展开 —
// 它们会折叠进收尾消息, 由 renderMessage 打印。
func renderLiveEvent(w io.Writer, ev *protocol.Event) {
	switch ev.Kind {
	case protocol.EventStep:
		fmt.Fprintf(w, "  ⚙ %s — %s\n", ev.Step.Tool, util.Truncate(ev.Step.ResultSummary, 80))
	case protocol.EventAction:
		fmt.Fprintf(w, "  ✎ editor ← %s\n", util.Truncate(ev.Action.SQL, 80))
	}
}

// renderMessage 打印一条会话消息。
func renderMessage(w io.Writer, msg turn.Message) {
	label := msg.Role
	if msg.IsError {
		label += "!"
	}
	fmt.Fprintf(w, "%s> %s\n", label, msg.Content)

	if len(msg.Steps) > 0 {
		fmt.Fprintf(w, "  (%d tool calls", len(msg.Steps))
		if len(msg.Actions) > 0 {
			fmt.Fprintf(w, ", %d editor actions", len(msg.Actions))
		}
		if msg.Runnable {
			fmt.Fprint(w, ", auto-ran")
		}
		fmt.Fprintln(w, ")")
	}
	if msg.Usage != nil {
		fmt.Fprintf(w, "  (%d tokens)\n", msg.Usage.TotalTokens)
	}
}

// renderLogs 回放捕获环里最近的日志。
func renderLogs(w io.Writer, entries []logger.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no captured logs)")
		return
	}
	if len(entries) > logTail {
		entries = entries[len(entries)-logTail:]
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %-5s %s", e.Ts.Format("15:04:05"), e.Level, e.Message)
		if e.TurnID != "" {
			line += " turn=" + util.Truncate(e.TurnID, 8)
		}
		if e.Tool != "" {
			line += " tool=" + e.Tool
		}
		fmt.Fprintln(w, line)
	}
}
