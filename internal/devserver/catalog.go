// Package devserver 实现本地开发用的助手服务。
//
// 对外讲与生产服务完全相同的线协议: POST chat/stream 返回 SSE 帧
// (event: step/action/response/error), 背后是一个按脚本走工具回合的
// 规划器 + 可换后端的 Catalog。客户端无需生产服务即可端到端联调。
package devserver

import (
	"context"
	"sort"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
)

// Column 表列元数据。
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Catalog 规划器使用的数据库目录。实现必须可并发调用。
type Catalog interface {
	// Provider 目录后端名称 (health 端点展示)。
	Provider() string

	// ListTables 返回 schema 下的全部表名 (已排序)。
	ListTables(ctx context.Context, schema string) ([]string, error)

	// TableColumns 返回表的列元数据。
	TableColumns(ctx context.Context, schema, table string) ([]Column, error)

	// SampleRows 返回至多 limit 行样本数据。
	SampleRows(ctx context.Context, schema, table string, limit int) ([]map[string]any, error)
}

// ========================================
// StaticCatalog — 内嵌演示目录
// ========================================

// StaticCatalog 内嵌演示目录, 让 assistant-server 离线也能跑。
// 表结构与 database/seed_demo.sql 一致。
type StaticCatalog struct {
	tables map[string][]Column
	rows   map[string][]map[string]any
}

// NewStaticCatalog 创建演示目录。
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		tables: map[string][]Column{
			"customers": {
				{Name: "id", Type: "bigint", Nullable: false},
				{Name: "name", Type: "text", Nullable: false},
				{Name: "email", Type: "text", Nullable: false},
				{Name: "country", Type: "text", Nullable: false},
				{Name: "created_at", Type: "timestamptz", Nullable: false},
			},
			"products": {
				{Name: "id", Type: "bigint", Nullable: false},
				{Name: "name", Type: "text", Nullable: false},
				{Name: "category", Type: "text", Nullable: false},
				{Name: "price", Type: "numeric", Nullable: false},
			},
			"orders": {
				{Name: "id", Type: "bigint", Nullable: false},
				{Name: "customer_id", Type: "bigint", Nullable: false},
				{Name: "product_id", Type: "bigint", Nullable: false},
				{Name: "quantity", Type: "integer", Nullable: false},
				{Name: "status", Type: "text", Nullable: false},
				{Name: "ordered_at", Type: "timestamptz", Nullable: false},
			},
		},
		rows: map[string][]map[string]any{
			"customers": {
				{"id": 1, "name": "Alice Chen", "email": "alice@example.com", "country": "SG"},
				{"id": 2, "name": "Bob Tan", "email": "bob@example.com", "country": "SG"},
				{"id": 3, "name": "Carol Lim", "email": "carol@example.com", "country": "MY"},
			},
			"products": {
				{"id": 1, "name": "Mechanical Keyboard", "category": "electronics", "price": 129.00},
				{"id": 2, "name": "USB-C Hub", "category": "electronics", "price": 49.90},
				{"id": 3, "name": "Standing Desk", "category": "furniture", "price": 399.00},
			},
			"orders": {
				{"id": 1, "customer_id": 1, "product_id": 1, "quantity": 1, "status": "shipped"},
				{"id": 2, "customer_id": 1, "product_id": 5, "quantity": 4, "status": "shipped"},
				{"id": 3, "customer_id": 2, "product_id": 2, "quantity": 2, "status": "pending"},
			},
		},
	}
}

// Provider 实现 Catalog。
func (c *StaticCatalog) Provider() string { return "static" }

// ListTables 实现 Catalog。schema 被忽略 — 演示目录只有一个 schema。
func (c *StaticCatalog) ListTables(ctx context.Context, schema string) ([]string, error) {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// TableColumns 实现 Catalog。
func (c *StaticCatalog) TableColumns(ctx context.Context, schema, table string) ([]Column, error) {
	cols, ok := c.tables[table]
	if !ok {
		return nil, pkgerr.Wrapf(pkgerr.ErrNotFound, "StaticCatalog.TableColumns", "table %q", table)
	}
	return cols, nil
}

// SampleRows 实现 Catalog。
func (c *StaticCatalog) SampleRows(ctx context.Context, schema, table string, limit int) ([]map[string]any, error) {
	rows, ok := c.rows[table]
	if !ok {
		return nil, pkgerr.Wrapf(pkgerr.ErrNotFound, "StaticCatalog.SampleRows", "table %q", table)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
