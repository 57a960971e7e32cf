// cmd/assistant-server — 本地开发助手服务主入口。
//
// 讲与生产助手服务相同的线协议 (SSE 事件流)。配置了
// POSTGRES_CONNECTION_STRING 时目录来自真实库的 information_schema,
// 否则使用内嵌演示目录, 离线即可联调 sql-terminal。
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sql-workbench/go-assistant/internal/config"
	"github.com/sql-workbench/go-assistant/internal/database"
	"github.com/sql-workbench/go-assistant/internal/devserver"
	"github.com/sql-workbench/go-assistant/pkg/logger"
	"github.com/sql-workbench/go-assistant/pkg/util"
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
	logger.Init(cfg.LogLevel)

	// 目录后端: 有连接串用真实库, 否则内嵌演示目录
	var catalog devserver.Catalog = devserver.NewStaticCatalog()
	if cfg.PostgresConnStr != "" {
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("database init failed", logger.Any(logger.FieldError, err))
		}
		defer pool.Close()

		if cfg.SeedDemoData {
			if err := database.SeedDemo(ctx, pool); err != nil {
				logger.Fatal("demo seed failed", logger.Any(logger.FieldError, err))
			}
		}
		catalog = devserver.NewPGCatalog(pool)
	}

	srv := devserver.NewServer(catalog, devserver.Options{
		Token:         cfg.ServerToken,
		MaxToolRounds: cfg.MaxToolRounds,
		MaxSampleRows: cfg.MaxSampleRows,
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	logger.Infow("assistant-server starting",
		logger.FieldPort, addr,
		"provider", catalog.Provider(),
	)

	util.SafeGo(func() {
		if err := srv.Engine().Run(addr); err != nil {
			logger.Fatal("server failed", logger.Any(logger.FieldError, err))
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")
}
