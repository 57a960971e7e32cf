// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/sql-workbench/go-assistant/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
// sql-terminal 与 assistant-server 共用同一份结构, 各取所需。
type Config struct {
	// 助手服务 (客户端侧)
	AssistantBaseURL string `env:"ASSISTANT_BASE_URL" default:"http://localhost:8090"`
	AssistantToken   string `env:"ASSISTANT_TOKEN"`
	TurnTimeoutSec   int    `env:"TURN_TIMEOUT_SEC" default:"300" min:"1"`
	IdleTimeoutSec   int    `env:"IDLE_TIMEOUT_SEC" default:"60" min:"1"`
	SettleDelayMS    int    `env:"SETTLE_DELAY_MS" default:"100" min:"0"`

	// 工作台上下文 (0 = 未选择数据库, 轮次会被引导语短路)
	DatabaseID   int    `env:"DATABASE_ID" default:"0" min:"0"`
	DatabaseName string `env:"DATABASE_NAME"`
	Catalog      string `env:"DATABASE_CATALOG"`

	// PostgreSQL
	PostgresConnStr        string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema         string `env:"POSTGRES_SCHEMA" default:"public"`
	PostgresPoolMinSize    int    `env:"POSTGRES_POOL_MIN_SIZE" default:"1" min:"1"`
	PostgresPoolMaxSize    int    `env:"POSTGRES_POOL_MAX_SIZE" default:"10" min:"1"`
	PostgresPoolTimeoutSec int    `env:"POSTGRES_POOL_TIMEOUT_SEC" default:"10" min:"1"`

	// 只读执行
	SQLRowLimit int `env:"SQL_ROW_LIMIT" default:"100" min:"1"`

	// 实时监控 WebSocket (0 = 关闭)
	MonitorPort int `env:"MONITOR_PORT" default:"0" min:"0"`

	// 开发助手服务 (assistant-server)
	ServerPort    int    `env:"ASSISTANT_SERVER_PORT" default:"8090" min:"1"`
	ServerToken   string `env:"ASSISTANT_SERVER_TOKEN"`
	MaxToolRounds int    `env:"MAX_TOOL_ROUNDS" default:"10" min:"1"`
	MaxSampleRows int    `env:"MAX_SAMPLE_ROWS" default:"20" min:"1"`
	SeedDemoData  bool   `env:"SEED_DEMO_DATA" default:"false"`

	// 日志
	LogLevel string `env:"LOG_LEVEL" default:"INFO"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
