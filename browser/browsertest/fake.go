// Package browsertest 提供内存中的浏览会话，用于不启动浏览器的测试
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dszqbsm/jobcrawler/browser"
)

// Session 按url返回预置页面；Clickable中的selector可被等待和点击
type Session struct {
	mu sync.Mutex

	Pages     map[string]string
	Fail      map[string]error
	Clickable map[string]bool
	// AfterClick 点击后当前页面被替换成的内容，为空则不变
	AfterClick map[string]string
	ClickErr   error

	Visited []string
	Clicks  []string
	Closed  bool
	current string
}

func NewSession(pages map[string]string) *Session {
	if pages == nil {
		pages = map[string]string{}
	}
	return &Session{
		Pages:      pages,
		Fail:       map[string]error{},
		Clickable:  map[string]bool{},
		AfterClick: map[string]string{},
	}
}

func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Visited = append(s.Visited, url)
	if err, ok := s.Fail[url]; ok {
		return "", err
	}
	content, ok := s.Pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	s.current = content
	return content, nil
}

func (s *Session) CurrentContent(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *Session) WaitClickable(_ context.Context, selector string, _ time.Duration) (browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Clickable[selector] {
		return nil, fmt.Errorf("%s: %w", selector, browser.ErrNotFound)
	}
	return &element{s: s, selector: selector}, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// ClickCount 返回selector被点击的次数
func (s *Session) ClickCount(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Clicks {
		if c == selector {
			n++
		}
	}
	return n
}

type element struct {
	s        *Session
	selector string
}

func (e *element) Click(context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.s.ClickErr != nil {
		return e.s.ClickErr
	}
	e.s.Clicks = append(e.s.Clicks, e.selector)
	if after, ok := e.s.AfterClick[e.selector]; ok {
		e.s.current = after
	}
	return nil
}

// Opener 每次Open返回New构造的新会话，并记录所有打开过的会话
type Opener struct {
	mu       sync.Mutex
	New      func() *Session
	Err      error
	Sessions []*Session
}

func (o *Opener) Open(ctx context.Context) (browser.Session, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	s := o.New()
	o.mu.Lock()
	o.Sessions = append(o.Sessions, s)
	o.mu.Unlock()
	return s, nil
}

// AllClosed 所有打开过的会话是否都已关闭
func (o *Opener) AllClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.Sessions {
		s.mu.Lock()
		closed := s.Closed
		s.mu.Unlock()
		if !closed {
			return false
		}
	}
	return true
}
