package browser

// 浏览会话：爬取流程对浏览器能力的唯一依赖，只包含跳转、读取当前页面、等待元素可点击和关闭四个动作
// 具体实现有基于chromedp的真实浏览器和基于net/http的轻量会话两种

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dszqbsm/jobcrawler/limiter"
	"go.uber.org/zap"
)

// ErrNotFound 等待的元素不存在
var ErrNotFound = errors.New("element not found")

type Session interface {
	// Navigate 跳转到url并返回渲染后的页面内容
	Navigate(ctx context.Context, url string) (string, error)
	// CurrentContent 返回当前页面内容，用于点击等交互之后重新读取
	CurrentContent(ctx context.Context) (string, error)
	// WaitClickable 等待selector对应的元素可点击，超过timeout返回错误
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// Close 释放浏览器进程与网络资源，可重复调用
	Close() error
}

type Element interface {
	Click(ctx context.Context) error
}

// Opener 每次调用打开一个新的会话
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Kind string

const (
	KindChrome Kind = "chrome"
	KindHTTP   Kind = "http"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type options struct {
	kind      Kind
	headless  bool
	userAgent string
	width     int
	height    int
	timeout   time.Duration
	proxies   []string
	limit     limiter.RateLimiter
	logger    *zap.Logger
}

var defaultOptions = options{
	kind:      KindChrome,
	headless:  true,
	userAgent: DefaultUserAgent,
	width:     1024,
	height:    768,
	timeout:   30 * time.Second,
	logger:    zap.NewNop(),
}

type Option func(opts *options)

func WithKind(kind Kind) Option {
	return func(opts *options) {
		opts.kind = kind
	}
}

func WithHeadless(headless bool) Option {
	return func(opts *options) {
		opts.headless = headless
	}
}

func WithUserAgent(ua string) Option {
	return func(opts *options) {
		if ua != "" {
			opts.userAgent = ua
		}
	}
}

func WithWindowSize(width, height int) Option {
	return func(opts *options) {
		if width > 0 && height > 0 {
			opts.width = width
			opts.height = height
		}
	}
}

// WithTimeout 单次跳转的超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		if timeout > 0 {
			opts.timeout = timeout
		}
	}
}

func WithProxies(proxies ...string) Option {
	return func(opts *options) {
		opts.proxies = proxies
	}
}

func WithLimiter(l limiter.RateLimiter) Option {
	return func(opts *options) {
		opts.limit = l
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

/*
输入上下文和配置选项，输出一个会话和error

按kind选择实现；配置了限速器时在外层包一层限速装饰
*/
func Open(ctx context.Context, opts ...Option) (Session, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		s   Session
		err error
	)
	switch o.kind {
	case KindChrome:
		s, err = openChrome(ctx, o)
	case KindHTTP:
		s, err = openHTTP(o)
	default:
		return nil, fmt.Errorf("unknown browser kind %q", o.kind)
	}
	if err != nil {
		return nil, err
	}

	if o.limit != nil {
		s = &limitedSession{Session: s, limit: o.limit}
	}
	o.logger.Debug("session opened", zap.String("kind", string(o.kind)), zap.Bool("headless", o.headless))
	return s, nil
}

// NewOpener 固定一组选项，返回可重复打开会话的Opener
func NewOpener(opts ...Option) Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		return Open(ctx, opts...)
	})
}

// limitedSession 在每次跳转前等待限速器
type limitedSession struct {
	Session
	limit limiter.RateLimiter
}

func (s *limitedSession) Navigate(ctx context.Context, url string) (string, error) {
	if err := s.limit.Wait(ctx); err != nil {
		return "", err
	}
	return s.Session.Navigate(ctx, url)
}
