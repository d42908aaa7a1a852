package engine

// 流水线：先按国家和关键词抓取列表并合并入库，再循环补全缺少完整描述的职位

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dszqbsm/jobcrawler/collect"
	"github.com/dszqbsm/jobcrawler/model"
	"github.com/dszqbsm/jobcrawler/parse"
	"github.com/dszqbsm/jobcrawler/sqlstorage"
	"go.uber.org/zap"
)

type Store interface {
	Reconcile(ctx context.Context, jobs []model.Job, tags []model.Tag) (sqlstorage.ReconcileResult, error)
	SelectPending(ctx context.Context, limit int) ([]model.DetailTarget, error)
	ApplyDescriptions(ctx context.Context, ds []model.Description) (sqlstorage.ApplyResult, error)
}

// Parser 站点解析器，把一批列表页转为职位和标签
type Parser interface {
	Parse(pages []model.RawPage, country string) parse.Result
}

// Target 一个国家站点及其搜索关键词
type Target struct {
	Country  string
	Keywords []string
}

// PassResult 一个(国家, 关键词)组合的抓取结果
type PassResult struct {
	Country    string
	Keyword    string
	Pages      int
	Jobs       int
	Tags       int
	Malformed  int
	BadRatings int
	Reconciled sqlstorage.ReconcileResult
	Err        error
}

type CrawlSummary struct {
	Passes []PassResult
	Failed int
}

type BackfillSummary struct {
	Iterations int
	Fetched    int
	Updated    int
	Missed     int
	CapReached bool
}

type Summary struct {
	Crawl    CrawlSummary
	Backfill BackfillSummary
}

type Pipeline struct {
	options
	logger *zap.Logger
}

func NewPipeline(opts ...Option) (*Pipeline, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Opener == nil || o.Store == nil || o.Parser == nil {
		return nil, errors.New("pipeline needs an opener, a store and a parser")
	}
	if o.Domain == "" {
		return nil, errors.New("pipeline needs a site domain")
	}
	if o.BatchSize <= 0 || o.MaxIterations <= 0 {
		return nil, fmt.Errorf("batch size %d and max iterations %d must be positive", o.BatchSize, o.MaxIterations)
	}
	return &Pipeline{options: o, logger: o.Logger.Named("pipeline")}, nil
}

// SearchBase 国家站点地址
func SearchBase(country, domain string) string {
	return "https://" + country + "." + domain
}

// Run 依次执行列表抓取和描述回填，只有上下文取消或回填的持久化失败才返回错误
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var (
		sum Summary
		err error
	)
	sum.Crawl, err = p.Crawl(ctx)
	if err != nil {
		return sum, err
	}
	sum.Backfill, err = p.Backfill(ctx)
	return sum, err
}

/*
输入上下文，输出抓取汇总和error

每个国家打开一个会话，同意弹窗在该会话中只处理一次；每个关键词一次遍历、解析、合并。
单个组合失败只记录在汇总中，其余组合继续；只有上下文被取消时返回错误
*/
func (p *Pipeline) Crawl(ctx context.Context) (CrawlSummary, error) {
	var sum CrawlSummary
	for _, target := range p.Targets {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		for _, r := range p.crawlCountry(ctx, target) {
			if r.Err != nil {
				sum.Failed++
			}
			sum.Passes = append(sum.Passes, r)
		}
	}
	return sum, ctx.Err()
}

func (p *Pipeline) crawlCountry(ctx context.Context, target Target) []PassResult {
	logger := p.logger.With(zap.String("country", target.Country))

	session, err := p.Opener.Open(ctx)
	if err != nil {
		logger.Error("open session failed", zap.Error(err))
		results := make([]PassResult, 0, len(target.Keywords))
		for _, kw := range target.Keywords {
			results = append(results, PassResult{Country: target.Country, Keyword: kw, Err: err})
		}
		return results
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("close session failed", zap.Error(err))
		}
	}()

	collectOpts := append([]collect.Option{collect.WithLogger(logger)}, p.Collect...)
	walker := collect.NewWalker(collect.NewLoader(session, collectOpts...), collectOpts...)

	var results []PassResult
	for _, kw := range target.Keywords {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.pass(ctx, walker, target.Country, kw, logger.With(zap.String("keyword", kw))))
	}
	return results
}

// pass 遍历中途的导航错误会结束本次遍历，已取得的页面仍然解析入库
func (p *Pipeline) pass(ctx context.Context, walker *collect.Walker, country, keyword string, logger *zap.Logger) PassResult {
	r := PassResult{Country: country, Keyword: keyword}
	start := time.Now()

	var pages []model.RawPage
	for page, err := range walker.Walk(ctx, SearchBase(country, p.Domain), keyword, p.MaxAgeDays) {
		if err != nil {
			logger.Warn("walk stopped", zap.Int("pages", len(pages)), zap.Error(err))
			r.Err = err
			break
		}
		pages = append(pages, page)
	}
	r.Pages = len(pages)

	parsed := p.Parser.Parse(pages, country)
	r.Jobs, r.Tags = len(parsed.Jobs), len(parsed.Tags)
	r.Malformed, r.BadRatings = parsed.Malformed, parsed.BadRatings

	if ctx.Err() != nil {
		return r
	}
	res, err := p.Store.Reconcile(ctx, parsed.Jobs, parsed.Tags)
	if err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		r.Err = errors.Join(r.Err, err)
		return r
	}
	r.Reconciled = res

	logger.Info("pass done",
		zap.Int("pages", r.Pages),
		zap.Int("jobs", r.Jobs),
		zap.Int("tags", r.Tags),
		zap.Int("malformed", r.Malformed),
		zap.Int("bad_ratings", r.BadRatings),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("tags_inserted", res.TagsInserted),
		zap.Duration("took", time.Since(start)))
	return r
}

/*
输入上下文，输出回填汇总和error

每轮选取最近更新且没有完整描述的一批职位，用一个新会话逐个抓取详情页，再整批回写。
选不到职位时立即结束，最多执行MaxIterations轮；持久化失败或会话无法打开时返回错误
*/
func (p *Pipeline) Backfill(ctx context.Context) (BackfillSummary, error) {
	var sum BackfillSummary
	logger := p.logger.Named("backfill")

	for i := 0; i < p.MaxIterations; i++ {
		targets, err := p.Store.SelectPending(ctx, p.BatchSize)
		if err != nil {
			return sum, err
		}
		if len(targets) == 0 {
			logger.Info("nothing left to backfill", zap.Int("iterations", sum.Iterations))
			return sum, nil
		}
		sum.Iterations++

		ds, err := p.fetchBatch(ctx, targets, logger)
		if err != nil {
			return sum, err
		}
		sum.Fetched += len(ds)

		res, err := p.Store.ApplyDescriptions(ctx, ds)
		if err != nil {
			return sum, err
		}
		sum.Updated += res.Updated
		sum.Missed += res.Missed
		logger.Info("batch applied",
			zap.Int("iteration", sum.Iterations),
			zap.Int("selected", len(targets)),
			zap.Int("updated", res.Updated),
			zap.Int("missed", res.Missed))
	}

	sum.CapReached = true
	logger.Warn("iteration cap reached", zap.Int("iterations", sum.Iterations))
	return sum, nil
}

func (p *Pipeline) fetchBatch(ctx context.Context, targets []model.DetailTarget, logger *zap.Logger) ([]model.Description, error) {
	session, err := p.Opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("close session failed", zap.Error(err))
		}
	}()

	collectOpts := append([]collect.Option{collect.WithLogger(logger)}, p.Collect...)
	fetcher := collect.NewDescriptionFetcher(collect.NewLoader(session, collectOpts...), collectOpts...)
	return fetcher.FetchAll(ctx, targets)
}
