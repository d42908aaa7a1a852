package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dszqbsm/jobcrawler/browser"
	"github.com/dszqbsm/jobcrawler/model"
	"go.uber.org/zap"
)

var ErrNoContent = errors.New("page has no content")

// Loader 在一个会话上加载页面，首次加载时处理cookie同意弹窗
// 不可并发使用，一个会话对应一个Loader
type Loader struct {
	session        browser.Session
	options
	consentHandled bool
}

func NewLoader(session browser.Session, opts ...Option) *Loader {
	return &Loader{
		session: session,
		options: newOptions(opts),
	}
}

/*
输入上下文和url，输出页面和error

跳转到url；本会话尚未处理过同意弹窗时尝试点击，无论找没找到或点击是否成功都只尝试一次；最后重新读取当前页面内容
*/
func (l *Loader) Load(ctx context.Context, url string) (model.RawPage, error) {
	if _, err := l.session.Navigate(ctx, url); err != nil {
		return model.RawPage{}, err
	}

	if !l.consentHandled {
		l.consentHandled = true
		if err := l.handleConsent(ctx); err != nil {
			return model.RawPage{}, err
		}
	}

	content, err := l.session.CurrentContent(ctx)
	if err != nil {
		return model.RawPage{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.RawPage{}, fmt.Errorf("%s: %w", url, ErrNoContent)
	}
	return model.RawPage{URL: url, Content: content}, nil
}

// ConsentHandled 本会话是否已经处理过同意弹窗
func (l *Loader) ConsentHandled() bool {
	return l.consentHandled
}

// handleConsent 点击失败只记录日志，仅在上下文取消时返回错误
func (l *Loader) handleConsent(ctx context.Context) error {
	content, err := l.session.CurrentContent(ctx)
	if err != nil {
		l.logger.Warn("read page for consent failed", zap.Error(err))
		return nil
	}

	selector, ok := FindConsentControl(content, l.consentLabels)
	if !ok {
		l.logger.Debug("no consent control on page")
		return nil
	}

	el, err := l.session.WaitClickable(ctx, selector, l.consentTimeout)
	if err != nil {
		l.logger.Warn("consent control not clickable", zap.String("selector", selector), zap.Error(err))
		return ctx.Err()
	}
	if err := el.Click(ctx); err != nil {
		l.logger.Warn("click consent control failed", zap.String("selector", selector), zap.Error(err))
		return ctx.Err()
	}
	l.logger.Debug("consent accepted", zap.String("selector", selector))

	return l.pacer.Wait(ctx)
}

/*
输入页面内容和按钮文本片段，输出按钮的选择器和是否找到

返回第一个文本包含任一片段且带有id属性的button
*/
func FindConsentControl(content string, labels []string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", false
	}

	var selector string
	doc.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			return true
		}
		text := s.Text()
		for _, label := range labels {
			if label != "" && strings.Contains(text, label) {
				selector = fmt.Sprintf("button[id=%q]", id)
				return false
			}
		}
		return true
	})
	return selector, selector != ""
}
