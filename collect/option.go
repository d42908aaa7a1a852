package collect

import (
	"time"

	"github.com/dszqbsm/jobcrawler/browser"
	"go.uber.org/zap"
)

type options struct {
	consentLabels  []string
	consentTimeout time.Duration
	pacer          browser.Pacer
	maxPages       int
	logger         *zap.Logger
}

var defaultOptions = options{
	consentLabels:  []string{"All Cookies", "les cookies"},
	consentTimeout: 10 * time.Second,
	pacer:          browser.Pacer{Min: 3500 * time.Millisecond, Max: 4000 * time.Millisecond},
	logger:         zap.NewNop(),
}

type Option func(opts *options)

// WithConsentLabels 同意按钮文本中可能包含的片段，任一命中即可
func WithConsentLabels(labels ...string) Option {
	return func(opts *options) {
		opts.consentLabels = labels
	}
}

func WithConsentTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.consentTimeout = d
	}
}

// WithPacer 点击同意按钮和抓取详情页之后的停顿
func WithPacer(p browser.Pacer) Option {
	return func(opts *options) {
		opts.pacer = p
	}
}

// WithMaxPages 每次遍历最多访问的页数，0表示不限制
func WithMaxPages(n int) Option {
	return func(opts *options) {
		opts.maxPages = n
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
