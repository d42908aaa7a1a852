package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dszqbsm/jobcrawler/proxy"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// httpSession 不执行脚本的轻量会话，适用于服务端渲染的页面
type httpSession struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu      sync.Mutex
	current string
}

func openHTTP(o options) (*httpSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(o.proxies) > 0 {
		p, err := proxy.RoundRobinProxySwitcher(o.proxies...)
		if err != nil {
			return nil, fmt.Errorf("proxy: %w", err)
		}
		transport.Proxy = p
	}

	return &httpSession{
		client: &http.Client{
			Timeout:   o.timeout,
			Jar:       jar,
			Transport: transport,
		},
		userAgent: o.userAgent,
		logger:    o.logger,
	}, nil
}

/*
输入上下文和url，输出页面内容和error

该方法发送GET请求，状态码不为200时返回错误，否则检测编码并转换为UTF-8，保存为当前页面
*/
func (s *httpSession) Navigate(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("get url failed:%w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error status code:%d", resp.StatusCode)
	}

	bodyReader := bufio.NewReader(resp.Body)
	e := determineEncoding(bodyReader, resp.Header.Get("Content-Type"), s.logger)
	body, err := io.ReadAll(transform.NewReader(bodyReader, e.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	s.mu.Lock()
	s.current = string(body)
	s.mu.Unlock()
	return string(body), nil
}

func (s *httpSession) CurrentContent(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// WaitClickable 当前文档中存在selector匹配的元素即视为可点击
func (s *httpSession) WaitClickable(ctx context.Context, selector string, _ time.Duration) (Element, error) {
	content, _ := s.CurrentContent(ctx)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	if doc.Find(selector).Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return httpElement{}, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// httpElement 没有脚本环境，点击不产生任何效果
type httpElement struct{}

func (httpElement) Click(context.Context) error { return nil }

func determineEncoding(r *bufio.Reader, contentType string, logger *zap.Logger) encoding.Encoding {
	bytes, err := r.Peek(1024)
	if err != nil && len(bytes) == 0 {
		if err != io.EOF {
			logger.Warn("peek body failed", zap.Error(err))
		}
		return unicode.UTF8
	}

	e, _, _ := charset.DetermineEncoding(bytes, contentType)
	return e
}
