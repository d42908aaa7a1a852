package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type chromeSession struct {
	ctx         context.Context // chromedp标签页上下文
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	closeOnce   sync.Once
	logger      *zap.Logger
}

func openChrome(ctx context.Context, o options) (*chromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(o.width, o.height),
		chromedp.UserAgent(o.userAgent),
	)
	// 浏览器进程只支持一个代理，取列表中的第一个
	if len(o.proxies) > 0 {
		allocOpts = append(allocOpts, chromedp.ProxyServer(o.proxies[0]))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(o.logger.Sugar().Debugf))

	// 空动作列表会启动浏览器进程
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     o.timeout,
		logger:      o.logger,
	}, nil
}

// run 在标签页上下文中执行动作，同时受调用方ctx与超时控制
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) (string, error) {
	var html string
	err := s.run(ctx, s.timeout,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	return html, nil
}

func (s *chromeSession) CurrentContent(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

func (s *chromeSession) WaitClickable(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("wait clickable %s: %w", selector, err)
	}
	return &chromeElement{s: s, selector: selector}, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("chrome session closed")
	})
	return nil
}

type chromeElement struct {
	s        *chromeSession
	selector string
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.s.run(ctx, e.s.timeout, chromedp.Click(e.selector, chromedp.ByQuery, chromedp.NodeVisible))
}
