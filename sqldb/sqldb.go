package sqldb

// 与关系数据库交互：建表、批量插入，以及在临时表上完成的单事务批处理，支持MySQL、PostgreSQL和SQLite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrEmptyColumns = errors.New("column can not be empty")

// maxPlaceholders 单条语句的占位符上限，取三种数据库中较小的一个并留出余量
const maxPlaceholders = 30000

// 为数据库操作统一了规范
type DBer interface {
	Dialect() Dialect
	CreateTable(ctx context.Context, t TableData) error
	Insert(ctx context.Context, t TableData) error
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Migrate(ctx context.Context, tables []TableData, indexes []Index) error
	Staged(ctx context.Context, staging []TableData, fn func(tx *Tx) error) error
	Close() error
}

// 表示数据库表中的一个字段
type Field struct {
	Title      string
	Type       ColumnType
	Constraint string // 例如NOT NULL DEFAULT 0
}

// 表示要操作的数据库表的数据
type TableData struct {
	TableName   string
	ColumnNames []Field
	PrimaryKey  []string
	Constraints []string // 表级约束，例如外键
	Temporary   bool
	Rows        [][]any // 待插入的数据，每行的值与ColumnNames一一对应
}

type Index struct {
	Name    string
	Table   string
	Columns []string
}

// execer 由*sql.DB、*sql.Conn和*sql.Tx共同实现
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sql数据库实例
type Sqldb struct {
	options
	db *sql.DB
}

var _ DBer = (*Sqldb)(nil)

// 创建一个新的Sqldb实例，并根据传入的选项进行配置
func New(opts ...Option) (*Sqldb, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	d := &Sqldb{}
	d.options = options
	if err := d.OpenDB(); err != nil {
		return nil, err
	}
	return d, nil
}

// 打开数据库连接并通过ping测试连接是否正常
func (d *Sqldb) OpenDB() error {
	db, err := sql.Open(d.dialect.DriverName(), d.sqlUrl)
	if err != nil {
		return err
	}
	// SQLite只允许一个写连接，临时表也只在创建它的连接上可见
	if d.dialect == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(d.maxOpenConns)
		db.SetMaxIdleConns(d.maxOpenConns)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", d.dialect, err)
	}
	d.db = db
	return nil
}

func (d *Sqldb) Dialect() Dialect {
	return d.dialect
}

func (d *Sqldb) Close() error {
	return d.db.Close()
}

// 根据TableData中的数据创建数据库表
func (d *Sqldb) CreateTable(ctx context.Context, t TableData) error {
	return createTable(ctx, d.db, d.dialect, d.logger, t)
}

func (d *Sqldb) Insert(ctx context.Context, t TableData) error {
	return insert(ctx, d.db, d.dialect, d.batchCount, d.logger, t)
}

func (d *Sqldb) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.dialect.Rebind(query), args...)
}

// Exec 执行语句并返回受影响的行数
func (d *Sqldb) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, d.db, d.dialect, query, args...)
}

/*
输入上下文、表和索引定义，输出error

表和索引都只在不存在时创建，可以在每次启动时执行
*/
func (d *Sqldb) Migrate(ctx context.Context, tables []TableData, indexes []Index) error {
	for _, t := range tables {
		if err := d.CreateTable(ctx, t); err != nil {
			return fmt.Errorf("create table %s: %w", t.TableName, err)
		}
	}
	for _, idx := range indexes {
		if err := d.createIndex(ctx, idx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

func (d *Sqldb) createIndex(ctx context.Context, idx Index) error {
	cols := strings.Join(idx.Columns, ", ")

	// MySQL不支持CREATE INDEX IF NOT EXISTS
	if d.dialect == MySQL {
		var n int
		row := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
			idx.Table, idx.Name)
		if err := row.Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err := d.db.ExecContext(ctx, "CREATE INDEX "+idx.Name+" ON "+idx.Table+" ("+cols+")")
		return err
	}

	_, err := d.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS "+idx.Name+" ON "+idx.Table+" ("+cols+")")
	return err
}

/*
输入上下文、临时表定义和回调，输出error

在一条独占连接上开启事务，创建临时表后执行回调，回调返回错误则回滚，否则提交。
无论结果如何，退出前都会在同一连接上删除这些临时表；删除失败时丢弃该连接，保证临时表不会随连接回到连接池
*/
func (d *Sqldb) Staged(ctx context.Context, staging []TableData, fn func(tx *Tx) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	defer d.dropStaging(context.WithoutCancel(ctx), conn, staging)

	// 连接可能来自连接池，先清理上一次异常退出时残留的临时表
	for _, t := range staging {
		if _, err := conn.ExecContext(ctx, d.dialect.dropTempSQL(t.TableName)); err != nil {
			return fmt.Errorf("drop stale %s: %w", t.TableName, err)
		}
	}

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	tx := &Tx{tx: sqlTx, dialect: d.dialect, batchCount: d.batchCount, logger: d.logger}

	for _, t := range staging {
		t.Temporary = true
		if err := tx.CreateTable(ctx, t); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("create %s: %w", t.TableName, err)
		}
		if len(t.Rows) > 0 {
			if err := tx.Insert(ctx, t); err != nil {
				_ = sqlTx.Rollback()
				return fmt.Errorf("stage %s: %w", t.TableName, err)
			}
		}
	}

	if err := fn(tx); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil {
			d.logger.Warn("rollback failed", zap.Error(rerr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (d *Sqldb) dropStaging(ctx context.Context, conn *sql.Conn, staging []TableData) {
	for _, t := range staging {
		if _, err := conn.ExecContext(ctx, d.dialect.dropTempSQL(t.TableName)); err != nil {
			d.logger.Warn("drop staging table failed, discarding connection",
				zap.String("table", t.TableName), zap.Error(err))
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			return
		}
	}
}

// Tx 临时表作用域内的事务，所有操作都在同一连接上执行
type Tx struct {
	tx         *sql.Tx
	dialect    Dialect
	batchCount int
	logger     *zap.Logger
}

func (t *Tx) Dialect() Dialect {
	return t.dialect
}

func (t *Tx) CreateTable(ctx context.Context, td TableData) error {
	return createTable(ctx, t.tx, t.dialect, t.logger, td)
}

func (t *Tx) Insert(ctx context.Context, td TableData) error {
	return insert(ctx, t.tx, t.dialect, t.batchCount, t.logger, td)
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, t.tx, t.dialect, query, args...)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

// Count 执行返回单个整数的查询
func (t *Tx) Count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func createTable(ctx context.Context, ex execer, d Dialect, logger *zap.Logger, t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumns
	}
	query := d.createTableSQL(t)
	logger.Debug("create table", zap.String("sql", query))
	_, err := ex.ExecContext(ctx, query)
	return err
}

// insert 按批次拆分为多条多行INSERT语句
func insert(ctx context.Context, ex execer, d Dialect, batchCount int, logger *zap.Logger, t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumns
	}
	width := len(t.ColumnNames)
	batch := batchCount
	if limit := maxPlaceholders / width; batch > limit {
		batch = limit
	}

	for start := 0; start < len(t.Rows); start += batch {
		end := min(start+batch, len(t.Rows))
		args := make([]any, 0, (end-start)*width)
		for _, row := range t.Rows[start:end] {
			if len(row) != width {
				return fmt.Errorf("%s: row has %d values, want %d", t.TableName, len(row), width)
			}
			args = append(args, row...)
		}

		query := d.Rebind(insertSQL(t.TableName, t.ColumnNames, end-start))
		logger.Debug("insert table", zap.String("table", t.TableName), zap.Int("rows", end-start))
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func exec(ctx context.Context, ex execer, d Dialect, query string, args ...any) (int64, error) {
	res, err := ex.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
