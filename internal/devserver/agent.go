// agent.go — 脚本化规划器: 模拟助手的工具回合并产出事件流。
package devserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sql-workbench/go-assistant/pkg/logger"
)

// maxRoundsResponse 回合预算耗尽时的回答文案。
const maxRoundsResponse = "I've been working on this for a while but haven't finished. " +
	"Here's what I've done so far. You can continue the conversation for me to refine the results."

// emitFunc 写出一帧。event 为线协议标签, payload 会被 JSON 编码。
type emitFunc func(event string, payload any) error

// planner 按固定脚本走工具回合: 列表 → 看列 → 采样 → 给出查询。
// 每次工具调用产出一个 step 事件, 最后产出一个 action + response。
type planner struct {
	catalog       Catalog
	maxRounds     int
	maxSampleRows int
}

func newPlanner(catalog Catalog, maxRounds, maxSampleRows int) *planner {
	if maxRounds < 1 {
		maxRounds = 1
	}
	if maxSampleRows < 1 {
		maxSampleRows = 1
	}
	return &planner{catalog: catalog, maxRounds: maxRounds, maxSampleRows: maxSampleRows}
}

// turnUsage 合成的 token 用量 (开发环境没有真实 LLM, 按回合数估算)。
func turnUsage(rounds int) map[string]int {
	prompt := 150 * (rounds + 1)
	completion := 60 * (rounds + 1)
	return map[string]int{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      prompt + completion,
	}
}

// Run 执行一轮脚本化对话, 事件按顺序写给 emit。
// emit 返回错误 (客户端断开) 时立即停止。
func (p *planner) Run(ctx context.Context, question string, schema string, emit emitFunc) {
	if schema == "" {
		schema = "public"
	}
	rounds := 0

	// step 发射器: 每次工具调用占一个回合
	step := func(tool string, args map[string]any, summary string) error {
		rounds++
		return emit("step", map[string]any{
			"type":           "tool_call",
			"tool":           tool,
			"args":           args,
			"result_summary": summary,
		})
	}
	budgetLeft := func() bool { return rounds < p.maxRounds }

	tables, err := p.catalog.ListTables(ctx, schema)
	if err != nil {
		logger.Error("devserver: list tables failed", logger.FieldError, err)
		_ = emit("error", map[string]any{"error": fmt.Sprintf("Error communicating with database: %v", err)})
		return
	}
	if err := step("list_tables", map[string]any{"schema_name": schema},
		fmt.Sprintf("Found %d tables in %s", len(tables), schema)); err != nil {
		return
	}
	if len(tables) == 0 {
		_ = emit("response", map[string]any{
			"response": fmt.Sprintf("The schema %q has no tables, so there's nothing to query yet.", schema),
			"usage":    turnUsage(rounds),
		})
		return
	}

	table := pickTable(question, tables)

	if !budgetLeft() {
		_ = emit("response", map[string]any{
			"response": maxRoundsResponse,
			"usage":    turnUsage(rounds),
			"warning":  "max_rounds_exceeded",
		})
		return
	}
	cols, err := p.catalog.TableColumns(ctx, schema, table)
	if err != nil {
		logger.Error("devserver: table columns failed", logger.FieldError, err)
		_ = emit("error", map[string]any{"error": fmt.Sprintf("Error communicating with database: %v", err)})
		return
	}
	if err := step("get_table_columns",
		map[string]any{"table_name": table, "schema_name": schema},
		fmt.Sprintf("Table %s: %d columns", table, len(cols))); err != nil {
		return
	}

	if budgetLeft() {
		rows, err := p.catalog.SampleRows(ctx, schema, table, p.maxSampleRows)
		if err != nil {
			logger.Warn("devserver: sample rows failed, continuing without sample", logger.FieldError, err)
		} else {
			if err := step("sample_table_data",
				map[string]any{"table_name": table, "schema_name": schema},
				fmt.Sprintf("%d rows returned", len(rows))); err != nil {
				return
			}
		}
	}

	sql := buildQuery(question, schema, table)
	if err := emit("action", map[string]any{
		"type": "set_editor_content",
		"sql":  sql,
	}); err != nil {
		return
	}

	_ = emit("response", map[string]any{
		"response": responseText(question, table, sql),
		"usage":    turnUsage(rounds),
	})
}

// pickTable 选用户消息里点名的表, 没点名就取第一张。
func pickTable(question string, tables []string) string {
	lower := strings.ToLower(question)
	for _, t := range tables {
		if strings.Contains(lower, strings.ToLower(t)) {
			return t
		}
	}
	return tables[0]
}

// wantsCount 用户是否在问数量。
func wantsCount(question string) bool {
	lower := strings.ToLower(question)
	return strings.Contains(lower, "count") ||
		strings.Contains(lower, "how many") ||
		strings.Contains(lower, "number of")
}

// buildQuery 生成放进编辑器的查询。
func buildQuery(question, schema, table string) string {
	if wantsCount(question) {
		return fmt.Sprintf("SELECT COUNT(*) AS total FROM %q.%q", schema, table)
	}
	return fmt.Sprintf("SELECT * FROM %q.%q LIMIT 100", schema, table)
}

func responseText(question, table, sql string) string {
	var b strings.Builder
	if wantsCount(question) {
		fmt.Fprintf(&b, "I counted the rows in `%s` for you. ", table)
	} else {
		fmt.Fprintf(&b, "I explored the schema and put together a query over `%s`. ", table)
	}
	b.WriteString("The query is already in your editor and has been run:\n\n")
	fmt.Fprintf(&b, "```sql\n%s\n```", sql)
	return b.String()
}
