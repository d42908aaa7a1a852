package collect

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dszqbsm/jobcrawler/model"
	"github.com/dszqbsm/jobcrawler/parse"
	"go.uber.org/zap"
)

// DescriptionFetcher 逐个加载详情页并提取完整描述
type DescriptionFetcher struct {
	loader *Loader
	pacer  func(ctx context.Context) error
	logger *zap.Logger
}

func NewDescriptionFetcher(loader *Loader, opts ...Option) *DescriptionFetcher {
	o := newOptions(opts)
	return &DescriptionFetcher{
		loader: loader,
		pacer:  o.pacer.Wait,
		logger: o.logger,
	}
}

// Fetch 加载失败或页面中没有描述时Text为nil，之后停顿一次
func (f *DescriptionFetcher) Fetch(ctx context.Context, target model.DetailTarget) model.Description {
	d := model.Description{ID: target.ID, URL: target.URL}

	page, err := f.loader.Load(ctx, target.URL)
	if err != nil {
		f.logger.Warn("load description page failed", zap.String("id", target.ID), zap.Error(err))
	} else {
		d.Text = ExtractDescription(page.Content)
		if d.Text == nil {
			f.logger.Info("description container missing", zap.String("id", target.ID))
		}
	}

	_ = f.pacer(ctx)
	return d
}

// FetchAll 顺序抓取，只在上下文取消时提前返回已完成的部分
func (f *DescriptionFetcher) FetchAll(ctx context.Context, targets []model.DetailTarget) ([]model.Description, error) {
	out := make([]model.Description, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d := f.Fetch(ctx, t)
		// 取消导致的失败不能算作缺失
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ExtractDescription 描述区块不存在或为空时返回nil
func ExtractDescription(content string) *string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	sel := doc.Find("div#jobDescriptionText").First()
	if sel.Length() == 0 {
		return nil
	}
	return parse.Optional(sel.Text())
}
