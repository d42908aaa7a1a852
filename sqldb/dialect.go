package sqldb

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect 屏蔽不同数据库在驱动名、占位符、类型和临时表语法上的差异
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown sql dialect %q", s)
}

// DriverName database/sql中注册的驱动名
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// ColumnType 与数据库无关的列类型
// mysql上Key和ShortText使用utf8mb4_bin，按字节比较
type ColumnType int

const (
	Key       ColumnType = iota // 短字符串主键，最多64个字符
	ShortText                   // 可参与主键的字符串，最多255个字符
	Text
	Float
	Int
	Time
)

func (d Dialect) columnType(t ColumnType) string {
	switch t {
	case Key:
		switch d {
		case SQLite:
			return "TEXT"
		case MySQL:
			return "VARCHAR(64) COLLATE utf8mb4_bin"
		}
		return "VARCHAR(64)"
	case ShortText:
		switch d {
		case SQLite:
			return "TEXT"
		case MySQL:
			return "VARCHAR(255) COLLATE utf8mb4_bin"
		}
		return "VARCHAR(255)"
	case Float:
		switch d {
		case Postgres:
			return "DOUBLE PRECISION"
		case SQLite:
			return "REAL"
		}
		return "DOUBLE"
	case Int:
		return "INTEGER"
	case Time:
		if d == MySQL {
			return "DATETIME"
		}
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Rebind 把?占位符改写为当前数据库的形式，postgres使用$1、$2...
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) createTableSQL(t TableData) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if t.Temporary {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("TABLE IF NOT EXISTS " + t.TableName + " (")

	defs := make([]string, 0, len(t.ColumnNames)+1+len(t.Constraints))
	for _, f := range t.ColumnNames {
		def := f.Title + " " + d.columnType(f.Type)
		if f.Constraint != "" {
			def += " " + f.Constraint
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(t.PrimaryKey, ", ")+")")
	}
	defs = append(defs, t.Constraints...)
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")

	if d == MySQL {
		b.WriteString(" ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	}
	return b.String()
}

// dropTempSQL 只会删除临时表，不会误删同名的普通表
func (d Dialect) dropTempSQL(name string) string {
	switch d {
	case Postgres:
		return "DROP TABLE IF EXISTS pg_temp." + name
	case SQLite:
		return "DROP TABLE IF EXISTS temp." + name
	default:
		return "DROP TEMPORARY TABLE IF EXISTS " + name
	}
}

/*
输入表名、列名和行数，输出INSERT语句

形如INSERT INTO users(id,name,age) VALUES (?,?,?),(?,?,?)，多少个问号取决于有多少列
*/
func insertSQL(table string, columns []Field, rows int) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Title
	}
	blank := ",(" + strings.Repeat(",?", len(columns))[1:] + ")"
	return "INSERT INTO " + table + " (" + strings.Join(names, ", ") + ") VALUES " + strings.Repeat(blank, rows)[1:]
}
