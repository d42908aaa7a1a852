package sqlstorage

// 用于配置sql存储相关的选项，用于存储引擎的函数选择模式

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger    *zap.Logger
	maxMisses int // 详情页连续缺失达到该次数后不再被选中
	now       func() time.Time
}

// 默认选项
var defaultOptions = options{
	logger:    zap.NewNop(),
	maxMisses: 3,
	now:       time.Now,
}

type Option func(opts *options)

// 配置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithMaxMisses(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxMisses = n
		}
	}
}

// WithClock 替换updated_at的时间来源
func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.now = now
	}
}
