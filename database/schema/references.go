// Package schema 通过数据库目录表发现指向相册表的外键引用
package schema

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Reference 一条指向目标表的外键列
type Reference struct {
	Table  string
	Column string
}

func (r Reference) String() string {
	return r.Table + "." + r.Column
}

// ParseReference 解析 "table.column" 形式的引用声明
func ParseReference(raw string) (Reference, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || !isIdentifier(parts[0]) || !isIdentifier(parts[1]) {
		return Reference{}, fmt.Errorf("invalid reference %q, expected table.column", raw)
	}
	return Reference{Table: parts[0], Column: parts[1]}, nil
}

// DiscoverReferences 查询所有引用 target 表的外键，排除 exclude 中列出的表
// 结果在启动时计算一次，之后注入到清理任务
func DiscoverReferences(db *gorm.DB, target string, exclude ...string) ([]Reference, error) {
	var refs []Reference
	var err error

	switch dialect := db.Dialector.Name(); {
	case dialect == "sqlite":
		refs, err = discoverSQLite(db, target)
	case strings.HasPrefix(dialect, "postgres"):
		refs, err = discoverPostgres(db, target)
	default:
		return nil, fmt.Errorf("foreign key discovery not supported for dialect %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to discover references to %s: %w", target, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, table := range exclude {
		skip[table] = true
	}

	filtered := refs[:0]
	for _, ref := range refs {
		if !skip[ref.Table] {
			filtered = append(filtered, ref)
		}
	}
	return Normalize(filtered), nil
}

// Merge 合并自动发现的引用与配置声明的引用
func Merge(discovered []Reference, declared []string) ([]Reference, error) {
	out := append([]Reference{}, discovered...)
	for _, raw := range declared {
		ref, err := ParseReference(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return Normalize(out), nil
}

// Normalize 去重并排序
func Normalize(refs []Reference) []Reference {
	seen := make(map[Reference]bool, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	return out
}

func discoverSQLite(db *gorm.DB, target string) ([]Reference, error) {
	var rows []struct {
		TableName  string
		ColumnName string
	}
	err := db.Raw(`SELECT m.name AS table_name, p."from" AS column_name
		FROM sqlite_master m JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table' AND p."table" = ?`, target).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, Reference{Table: row.TableName, Column: row.ColumnName})
	}
	return refs, nil
}

func discoverPostgres(db *gorm.DB, target string) ([]Reference, error) {
	var rows []struct {
		TableName  string
		ColumnName string
	}
	err := db.Raw(`SELECT kcu.table_name AS table_name, kcu.column_name AS column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()
			AND ccu.table_name = ?`, target).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, Reference{Table: row.TableName, Column: row.ColumnName})
	}
	return refs, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
