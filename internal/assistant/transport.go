// transport.go — 助手服务 HTTP 传输层 (POST + 流式响应体)。
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/sql-workbench/go-assistant/pkg/errors"
)

// chatStreamPath 对话流式端点路径。
const chatStreamPath = "/api/v1/ai_assistant/chat/stream"

// TokenSource 按需提供鉴权令牌。返回空串表示匿名访问 (不携带 Authorization)。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken 固定令牌源。
type StaticToken string

// Token 实现 TokenSource。
func (s StaticToken) Token(ctx context.Context) (string, error) { return string(s), nil }

// TokenFunc 函数式令牌源。
type TokenFunc func(ctx context.Context) (string, error)

// Token 实现 TokenSource。
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Transport 发起一次对话轮次请求，返回未消费的响应体流。
// 流由调用方关闭; 取消 ctx 会中断后续读取。
type Transport interface {
	Stream(ctx context.Context, req *TurnRequest) (io.ReadCloser, error)
}

// ========================================
// HTTPTransport
// ========================================

// HTTPTransport 生产传输: POST {base}/api/v1/ai_assistant/chat/stream。
type HTTPTransport struct {
	baseURL string
	httpCli *http.Client
	tokens  TokenSource
}

// NewHTTPTransport 创建传输。
// http.Client 不设整体超时: 流的持续时间由轮次预算与空闲看门狗控制。
func NewHTTPTransport(baseURL string, tokens TokenSource) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCli: &http.Client{},
		tokens:  tokens,
	}
}

// Stream 实现 Transport。非 200 状态码视为传输失败。
func (t *HTTPTransport) Stream(ctx context.Context, req *TurnRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, "Transport.Stream", "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+chatStreamPath, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, "Transport.Stream", "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	if t.tokens != nil {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, "Transport.Stream", "fetch token")
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.httpCli.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, "Transport.Stream", "POST chat/stream")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, apperrors.Newf("Transport.Stream", "chat/stream status %d: %s",
			resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp.Body, nil
}
