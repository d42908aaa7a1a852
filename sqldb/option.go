package sqldb

// 函数式选项模式

import (
	"go.uber.org/zap"
)

type options struct {
	logger       *zap.Logger
	sqlUrl       string
	dialect      Dialect
	batchCount   int // 单条INSERT语句最多携带的行数
	maxOpenConns int
}

// 默认选项
var defaultOptions = options{
	logger:       zap.NewNop(),
	dialect:      MySQL,
	batchCount:   100,
	maxOpenConns: 8,
}

type Option func(opts *options)

// 配置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithConnURL(sqlURL string) Option {
	return func(opts *options) {
		opts.sqlUrl = sqlURL
	}
}

func WithDialect(d Dialect) Option {
	return func(opts *options) {
		opts.dialect = d
	}
}

// 配置批量插入的行数
func WithBatchCount(batchCount int) Option {
	return func(opts *options) {
		if batchCount > 0 {
			opts.batchCount = batchCount
		}
	}
}

func WithMaxOpenConns(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxOpenConns = n
		}
	}
}
