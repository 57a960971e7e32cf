// server.go — gin 引擎、路由注册与 chat/stream handler。
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sql-workbench/go-assistant/pkg/logger"
)

// Options 服务调优参数。
type Options struct {
	// Token 非空时要求 Authorization: Bearer <Token>。
	Token string
	// MaxToolRounds 每轮对话的工具回合上限 (<=0 取 10)。
	MaxToolRounds int
	// MaxSampleRows 采样行数上限 (<=0 取 20)。
	MaxSampleRows int
}

// Server 开发助手 HTTP 服务。
type Server struct {
	router  *gin.Engine
	catalog Catalog
	opts    Options
}

// NewServer 创建服务。catalog 必须非 nil。
func NewServer(catalog Catalog, opts Options) *Server {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 10
	}
	if opts.MaxSampleRows <= 0 {
		opts.MaxSampleRows = 20
	}
	r := gin.Default()
	s := &Server{router: r, catalog: catalog, opts: opts}
	s.registerRoutes()
	return s
}

// Engine 返回 Gin 引擎。
func (s *Server) Engine() *gin.Engine { return s.router }

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/v1/ai_assistant")
	api.POST("/chat/stream", s.chatStream)
	api.GET("/health", s.assistantHealth)

	// 存活探针
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// ========================================
// 请求形状 (与生产线协议一致)
// ========================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatContext struct {
	DatabaseID   int64  `json:"database_id"`
	DatabaseName string `json:"database_name"`
	Schema       string `json:"schema"`
	Catalog      string `json:"catalog"`
	CurrentSQL   string `json:"current_sql"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Context  chatContext   `json:"context"`
}

// ========================================
// Handlers
// ========================================

// checkAuth 配置了令牌时校验 Bearer。
func (s *Server) checkAuth(c *gin.Context) bool {
	if s.opts.Token == "" {
		return true
	}
	header := c.GetHeader("Authorization")
	if header != "Bearer "+s.opts.Token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return false
	}
	return true
}

// chatStream 以 SSE 流回答一轮对话。
//
// 校验顺序与生产服务一致: 请求体 → messages → context.database_id。
// 流一旦开始, 后续失败只能以 error 事件表达, 不再改状态码。
func (s *Server) chatStream(c *gin.Context) {
	if !s.checkAuth(c) {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body is required"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one message is required"})
		return
	}
	if req.Context.DatabaseID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "database_id is required in context"})
		return
	}

	question := req.Messages[len(req.Messages)-1].Content
	logger.Info("devserver: turn started",
		logger.FieldDatabase, req.Context.DatabaseName,
		logger.FieldCount, len(req.Messages),
	)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, _ := c.Writer.(http.Flusher)
	emit := func(event string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	p := newPlanner(s.catalog, s.opts.MaxToolRounds, s.opts.MaxSampleRows)
	p.Run(c.Request.Context(), question, req.Context.Schema, emit)
}

// assistantHealth 助手健康端点: {status, provider, configured}。
func (s *Server) assistantHealth(c *gin.Context) {
	provider := "none"
	if s.catalog != nil {
		provider = s.catalog.Provider()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"provider":   provider,
		"configured": s.catalog != nil,
	})
}
