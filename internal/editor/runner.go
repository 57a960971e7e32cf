// runner.go — 只读 SQL 执行器 (pgx)。
package editor

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/logger"
	"github.com/sql-workbench/go-assistant/pkg/util"
)

// DefaultRowLimit 单次查询默认返回行数上限。
const DefaultRowLimit = 100

// Result 一次查询的列与行。Columns 保留结果集的列顺序。
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// SQLRunner 只读 SQL 执行器。执行前做只读验证，
// 用 CTE 包装保证行数上限始终作用于最终结果集。
type SQLRunner struct {
	pool  *pgxpool.Pool
	limit int
}

// NewSQLRunner 创建执行器。limit 被钳制到 [1, 2000]，0 取 DefaultRowLimit。
func NewSQLRunner(pool *pgxpool.Pool, limit int) *SQLRunner {
	if limit == 0 {
		limit = DefaultRowLimit
	}
	return &SQLRunner{pool: pool, limit: util.ClampInt(limit, 1, 2000)}
}

// Query 验证并执行只读查询。
func (r *SQLRunner) Query(ctx context.Context, sqlText string) (*Result, error) {
	if err := ValidateReadOnly(sqlText); err != nil {
		return nil, err
	}
	if r.pool == nil {
		return nil, pkgerr.New("SQLRunner.Query", "no database pool configured")
	}

	// 包装为 CTE，确保 LIMIT 作用于最终结果集 (避免 UNION/子查询中 LIMIT 歧义)
	safeSQL := strings.TrimRight(strings.TrimSpace(sqlText), ";")
	start := time.Now()
	rows, err := r.pool.Query(ctx, "WITH q AS ("+safeSQL+") SELECT * FROM q LIMIT $1", r.limit)
	if err != nil {
		return nil, pkgerr.Wrap(err, "SQLRunner.Query", "query failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, pkgerr.Wrap(err, "SQLRunner.Query", "read row")
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerr.Wrap(err, "SQLRunner.Query", "iterate rows")
	}

	logger.Debug("read-only query executed",
		logger.Any(logger.FieldCount, len(results)),
		logger.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()))
	return &Result{Columns: columns, Rows: results}, nil
}

// RowLimit 返回生效的行数上限。
func (r *SQLRunner) RowLimit() int { return r.limit }
