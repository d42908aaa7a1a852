package engine

import (
	"github.com/dszqbsm/jobcrawler/browser"
	"github.com/dszqbsm/jobcrawler/collect"
	"go.uber.org/zap"
)

type Option func(opts *options)

// 流水线配置选项
type options struct {
	Opener        browser.Opener   // 每个国家、每轮回填各打开一个会话
	Store         Store            // 持久化
	Parser        Parser           // 列表页解析
	Targets       []Target         // 要抓取的国家与关键词
	Domain        string           // 站点主域名，与国家代码拼成站点地址
	MaxAgeDays    int              // 只抓取该天数内发布的职位
	BatchSize     int              // 每轮回填的职位数
	MaxIterations int              // 回填轮数上限
	Collect       []collect.Option // 页面加载相关的配置
	Logger        *zap.Logger
}

var defaultOptions = options{
	MaxAgeDays:    1,
	BatchSize:     15,
	MaxIterations: 130,
	Logger:        zap.NewNop(),
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

func WithOpener(opener browser.Opener) Option {
	return func(opts *options) {
		opts.Opener = opener
	}
}

func WithStore(store Store) Option {
	return func(opts *options) {
		opts.Store = store
	}
}

func WithParser(parser Parser) Option {
	return func(opts *options) {
		opts.Parser = parser
	}
}

func WithTargets(targets ...Target) Option {
	return func(opts *options) {
		opts.Targets = targets
	}
}

func WithDomain(domain string) Option {
	return func(opts *options) {
		if domain != "" {
			opts.Domain = domain
		}
	}
}

func WithMaxAgeDays(days int) Option {
	return func(opts *options) {
		opts.MaxAgeDays = days
	}
}

func WithBatchSize(n int) Option {
	return func(opts *options) {
		opts.BatchSize = n
	}
}

func WithMaxIterations(n int) Option {
	return func(opts *options) {
		opts.MaxIterations = n
	}
}

func WithCollectOptions(opts ...collect.Option) Option {
	return func(o *options) {
		o.Collect = append(o.Collect, opts...)
	}
}
