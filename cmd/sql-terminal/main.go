// cmd/sql-terminal — 交互式 SQL 工作台终端。
//
// 一个进程装下客户端核心的全部协作方: 对话 REPL、内存 SQL 编辑器、
// 可选的 PostgreSQL 只读执行、可选的轮次监控 WebSocket。
// 助手的 action 事件到达即覆写编辑器, 查询形态还会自动执行。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sql-workbench/go-assistant/internal/assistant"
	"github.com/sql-workbench/go-assistant/internal/bus"
	"github.com/sql-workbench/go-assistant/internal/config"
	"github.com/sql-workbench/go-assistant/internal/database"
	"github.com/sql-workbench/go-assistant/internal/editor"
	"github.com/sql-workbench/go-assistant/internal/monitor"
	"github.com/sql-workbench/go-assistant/internal/protocol"
	"github.com/sql-workbench/go-assistant/pkg/logger"
)

// loadEnvFile 从当前目录向上搜索 .env 文件并加载到环境变量。
// 不覆盖已有的环境变量 — 只填充未设置的。
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		f, err := os.Open(envPath)
		if err == nil {
			scanner := bufio.NewScanner(f)
			count := 0
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				parts := strings.SplitN(line, "=", 2)
				if len(parts) != 2 {
					continue
				}
				key := strings.TrimSpace(parts[0])
				val := strings.TrimSpace(parts[1])
				if _, exists := os.LookupEnv(key); !exists {
					if err := os.Setenv(key, val); err != nil {
						logger.Warn("loadEnvFile: setenv failed", "key", key, logger.FieldError, err)
						continue
					}
					count++
				}
			}
			_ = f.Close()
			logger.Info("loaded .env file", logger.FieldPath, envPath, logger.FieldVarsSet, count)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loadEnvFile()
	cfg := config.Load()

	dbID := flag.Int64("db-id", int64(cfg.DatabaseID), "工作台数据库 ID (0 = 未选择)")
	dbName := flag.String("db-name", cfg.DatabaseName, "数据库显示名")
	schema := flag.String("schema", cfg.PostgresSchema, "默认 schema")
	logDir := flag.String("log-dir", "logs", "日志目录")
	flag.Parse()

	// 日志持久化: stdout + 文件; 捕获环供 :logs 命令回放
	if err := logger.InitWithFile(*logDir); err != nil {
		logger.Warn("file logging unavailable", logger.FieldError, err)
	}
	defer logger.ShutdownFileHandler()
	logger.AttachRingHandler(0)

	// 可选的只读执行后端
	var pool *pgxpool.Pool
	if cfg.PostgresConnStr != "" {
		p, err := database.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("database init failed", logger.Any(logger.FieldError, err))
		}
		pool = p
		defer pool.Close()
	}
	runner := editor.NewSQLRunner(pool, cfg.SQLRowLimit)

	// 编辑器缓冲: Run = 只读执行 + 结果渲染
	buffer := editor.NewBuffer(func(ctx context.Context, sqlText string) error {
		res, err := runner.Query(ctx, sqlText)
		if err != nil {
			return err
		}
		renderResult(os.Stdout, res)
		return nil
	})
	host := editor.NewStaticHost(buffer)

	// 总线 + 可选监控
	b := bus.NewMessageBus()
	if cfg.MonitorPort > 0 {
		mon := monitor.NewServer(b)
		if err := mon.Start(ctx, cfg.MonitorPort); err != nil {
			logger.Warn("monitor unavailable", logger.FieldPort, cfg.MonitorPort, logger.FieldError, err)
		}
	}

	transport := assistant.NewHTTPTransport(cfg.AssistantBaseURL, assistant.StaticToken(cfg.AssistantToken))
	orch := assistant.NewOrchestrator(assistant.Options{
		Transport:   transport,
		Host:        host,
		Applier:     assistant.NewApplier(host, time.Duration(cfg.SettleDelayMS)*time.Millisecond),
		Bus:         b,
		IdleTimeout: time.Duration(cfg.IdleTimeoutSec) * time.Second,
		TurnTimeout: time.Duration(cfg.TurnTimeoutSec) * time.Second,
		ContextFn: func() assistant.DatabaseContext {
			return assistant.DatabaseContext{
				DatabaseID:   *dbID,
				DatabaseName: *dbName,
				Schema:       *schema,
				Catalog:      cfg.Catalog,
			}
		},
	})

	// 流内事件实时打印 (收尾消息由 REPL 在 Submit 返回后打印)
	orch.AddObserver(func(ev *protocol.Event) {
		renderLiveEvent(os.Stdout, ev)
	})

	fmt.Printf("sql-terminal — assistant %s, database %q (id %d)\n",
		cfg.AssistantBaseURL, *dbName, *dbID)
	fmt.Println(`type a question, or :help for commands`)

	r := newREPL(orch, buffer, os.Stdin, os.Stdout)
	r.run(ctx)
	logger.Info("sql-terminal exiting")
}
