// sql_safety.go — 只读 SQL 验证。
//
// 助手生成的查询在进入数据库之前必须通过三道检查:
// 单语句、首关键词白名单、去字面量后的写入关键词扫描。
package editor

import (
	"fmt"
	"regexp"
	"strings"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
)

var (
	// ErrMultiStatement SQL 包含多条语句。
	ErrMultiStatement = fmt.Errorf("%w: only single SQL statement allowed", pkgerr.ErrReadOnly)

	// ErrNotReadOnly 首关键词不在只读白名单。
	ErrNotReadOnly = fmt.Errorf("%w: statement must start with SELECT or WITH", pkgerr.ErrReadOnly)

	// ErrWriteKeyword 去字面量后仍检测到写入关键词。
	ErrWriteKeyword = fmt.Errorf("%w: write keywords detected", pkgerr.ErrReadOnly)
)

var (
	// 去除 SQL 字符串字面量 (单引号包裹), 避免 WHERE x = 'DROP TABLE' 误报。
	reLiteral = regexp.MustCompile(`'[^']*'`)

	// SQL 首关键词提取。
	reFirstKeyword = regexp.MustCompile(`(?i)^\s*(\w+)`)

	// 写入关键词 (在去除字面量后检测)。
	reWriteKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|UPSERT|CREATE|ALTER|DROP|TRUNCATE|GRANT|REVOKE)\b`)

	// 只读白名单。只允许能嵌入 CTE 的语句形态，EXPLAIN/SHOW 等无法包装。
	readOnlyWhitelist = map[string]bool{
		"SELECT": true, "WITH": true,
	}

	// 末尾分号。
	reTrailingSemicolon = regexp.MustCompile(`;\s*$`)
)

// StripSQLLiterals 去除 SQL 字符串字面量，避免在内容 'DROP TABLE' 上误报。
func StripSQLLiterals(sql string) string {
	return reLiteral.ReplaceAllString(sql, "''")
}

// ValidateSingleStatement 验证只包含单条 SQL。
func ValidateSingleStatement(sql string) error {
	// 去除末尾分号后，若还有分号则为多语句
	trimmed := strings.TrimSpace(sql)
	trimmed = reTrailingSemicolon.ReplaceAllString(trimmed, "")
	if strings.Contains(trimmed, ";") {
		return ErrMultiStatement
	}
	return nil
}

// FirstSQLKeyword 提取 SQL 首关键词 (大写)。
func FirstSQLKeyword(sql string) string {
	if m := reFirstKeyword.FindStringSubmatch(sql); len(m) == 2 {
		return strings.ToUpper(m[1])
	}
	return ""
}

// ValidateReadOnly 验证查询可以安全地以只读方式执行。
// 检查顺序: 单语句 → 首关键词白名单 → 去字面量后的写入关键词。
// WITH 开头的数据修改 CTE (INSERT ... RETURNING) 会被第三道检查拦下。
func ValidateReadOnly(sql string) error {
	if err := ValidateSingleStatement(sql); err != nil {
		return err
	}
	if !readOnlyWhitelist[FirstSQLKeyword(sql)] {
		return ErrNotReadOnly
	}
	if reWriteKeywords.MatchString(StripSQLLiterals(sql)) {
		return ErrWriteKeyword
	}
	return nil
}
