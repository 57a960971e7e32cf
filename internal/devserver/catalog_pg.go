// catalog_pg.go — 基于 information_schema 的 PostgreSQL 目录。
package devserver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/util"
)

// PGCatalog 通过 information_schema 内省真实 PostgreSQL。
type PGCatalog struct {
	pool *pgxpool.Pool
}

// NewPGCatalog 创建目录。
func NewPGCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

// Provider 实现 Catalog。
func (c *PGCatalog) Provider() string { return "postgres" }

// ListTables 实现 Catalog。
func (c *PGCatalog) ListTables(ctx context.Context, schema string) ([]string, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := c.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.ListTables", "query information_schema")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, pkgerr.Wrap(err, "PGCatalog.ListTables", "scan table name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.ListTables", "iterate rows")
	}
	return names, nil
}

// TableColumns 实现 Catalog。
func (c *PGCatalog) TableColumns(ctx context.Context, schema, table string) ([]Column, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.TableColumns", "query information_schema")
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, pkgerr.Wrap(err, "PGCatalog.TableColumns", "scan column")
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.TableColumns", "iterate rows")
	}
	if len(cols) == 0 {
		return nil, pkgerr.Wrapf(pkgerr.ErrNotFound, "PGCatalog.TableColumns", "table %s.%s", schema, table)
	}
	return cols, nil
}

// SampleRows 实现 Catalog。
// 表名与 schema 名无法参数化, 用 quote_ident 消毒后拼接。
func (c *PGCatalog) SampleRows(ctx context.Context, schema, table string, limit int) ([]map[string]any, error) {
	if schema == "" {
		schema = "public"
	}
	limit = util.ClampInt(limit, 1, 100)

	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT $1",
		pgx.Identifier{schema}.Sanitize(), pgx.Identifier{table}.Sanitize())
	rows, err := c.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.SampleRows", "query sample")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, pkgerr.Wrap(err, "PGCatalog.SampleRows", "read row")
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerr.Wrap(err, "PGCatalog.SampleRows", "iterate rows")
	}
	return results, nil
}
