package collect

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/dszqbsm/jobcrawler/model"
	"go.uber.org/zap"
)

var nextPageExpr = xpath.MustCompile(`//nav[@role='navigation']//a[@aria-label='Next Page']/@href`)

// Walker 从搜索首页开始沿"下一页"链接遍历结果列表
type Walker struct {
	loader   *Loader
	maxPages int
	logger   *zap.Logger
}

func NewWalker(loader *Loader, opts ...Option) *Walker {
	o := newOptions(opts)
	return &Walker{
		loader:   loader,
		maxPages: o.maxPages,
		logger:   o.logger,
	}
}

// SearchURL 构造关键词搜索的首页地址，只包含maxAgeDays天内发布的职位
func SearchURL(searchBase, keyword string, maxAgeDays int) string {
	return strings.TrimRight(searchBase, "/") + "/jobs?q=" + url.QueryEscape(keyword) +
		"&fromage=" + strconv.Itoa(maxAgeDays)
}

/*
输入上下文、站点地址、关键词和最大天数，输出页面序列

按需加载，每取出一页才去访问下一页；加载失败时产出一次错误并结束；没有下一页链接、达到页数上限或下一页已访问过时结束
*/
func (w *Walker) Walk(ctx context.Context, searchBase, keyword string, maxAgeDays int) iter.Seq2[model.RawPage, error] {
	return func(yield func(model.RawPage, error) bool) {
		next := SearchURL(searchBase, keyword, maxAgeDays)
		visited := map[string]bool{}

		for pages := 0; ; pages++ {
			if w.maxPages > 0 && pages >= w.maxPages {
				w.logger.Info("page limit reached", zap.String("keyword", keyword), zap.Int("pages", pages))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(model.RawPage{URL: next}, err)
				return
			}

			visited[next] = true
			page, err := w.loader.Load(ctx, next)
			if err != nil {
				yield(model.RawPage{URL: next}, fmt.Errorf("load %s: %w", next, err))
				return
			}
			if !yield(page, nil) {
				return
			}

			link, err := NextPageURL(page)
			if err != nil {
				w.logger.Warn("find next page failed", zap.String("url", page.URL), zap.Error(err))
				return
			}
			if link == "" {
				return
			}
			if visited[link] {
				w.logger.Warn("next page already visited", zap.String("url", link))
				return
			}
			next = link
		}
	}
}

// NextPageURL 返回页面中"下一页"链接相对页面地址解析后的绝对地址，没有链接时返回空串
func NextPageURL(page model.RawPage) (string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(page.Content))
	if err != nil {
		return "", err
	}

	node := htmlquery.QuerySelector(doc, nextPageExpr)
	if node == nil {
		return "", nil
	}
	href := strings.TrimSpace(htmlquery.InnerText(node))
	if href == "" {
		return "", nil
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
