// seed.go — 演示数据装载: 空库也能跑通整条开发链路。
package database

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/logger"
)

//go:embed seed_demo.sql
var seedDemoSQL string

// SeedDemo 在单个事务内应用内嵌的演示 schema 与数据。
//
// 幂等: 建表用 IF NOT EXISTS, 数据只在表为空时插入,
// 重复调用不会产生重复行。
func SeedDemo(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return apperrors.New("Database.SeedDemo", "pool is required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(err, "Database.SeedDemo", "begin tx")
	}
	if _, err := tx.Exec(ctx, seedDemoSQL); err != nil {
		_ = tx.Rollback(ctx)
		return apperrors.Wrap(err, "Database.SeedDemo", "apply seed")
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(err, "Database.SeedDemo", "commit seed")
	}

	logger.Info("demo data seeded")
	return nil
}
