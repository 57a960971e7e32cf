// request.go — 对话轮次请求体构建。
package assistant

import (
	"github.com/sql-workbench/go-assistant/internal/turn"
)

// RequestMessage 发往服务端的单条消息。
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DatabaseContext 一轮对话开始时的工作台上下文快照。
type DatabaseContext struct {
	DatabaseID   int64  `json:"database_id"`
	DatabaseName string `json:"database_name,omitempty"`
	Schema       string `json:"schema,omitempty"`
	Catalog      string `json:"catalog,omitempty"`
	CurrentSQL   string `json:"current_sql,omitempty"`
}

// TurnRequest POST chat/stream 的请求体。
type TurnRequest struct {
	Messages []RequestMessage `json:"messages"`
	Context  DatabaseContext  `json:"context"`
}

// buildRequest 把会话历史压成 role/content 对，连同上下文快照装入请求体。
// history 必须已包含本轮的用户消息。
func buildRequest(history []turn.Message, dbCtx DatabaseContext) *TurnRequest {
	msgs := make([]RequestMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, RequestMessage{Role: m.Role, Content: m.Content})
	}
	return &TurnRequest{Messages: msgs, Context: dbCtx}
}
