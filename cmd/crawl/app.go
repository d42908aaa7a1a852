package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dszqbsm/jobcrawler/browser"
	"github.com/dszqbsm/jobcrawler/collect"
	"github.com/dszqbsm/jobcrawler/config"
	"github.com/dszqbsm/jobcrawler/engine"
	"github.com/dszqbsm/jobcrawler/limiter"
	"github.com/dszqbsm/jobcrawler/log"
	"github.com/dszqbsm/jobcrawler/parse/indeed"
	"github.com/dszqbsm/jobcrawler/sqldb"
	"github.com/dszqbsm/jobcrawler/sqlstorage"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Mode int

const (
	ModeCrawl Mode = iota
	ModeBackfill
	ModeRun
)

func (m Mode) String() string {
	switch m {
	case ModeCrawl:
		return "crawl"
	case ModeBackfill:
		return "backfill"
	default:
		return "run"
	}
}

// App 按配置组装好的全部组件
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    *sqlstorage.SqlStore
	Pipeline *engine.Pipeline

	db        *sqldb.Sqldb
	logCloser io.Closer
	lock      *flock.Flock
}

/*
输入配置文件路径，输出组装好的App和error

依次加载配置、创建日志器、连接数据库并建表、获取单实例文件锁，最后组装流水线。
锁已被其他进程持有时立即失败
*/
func Bootstrap(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := log.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, logCloser: logCloser}

	if cfg.LockFile != "" {
		app.lock = flock.New(cfg.LockFile)
		locked, err := app.lock.TryLock()
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("lock %s: %w", cfg.LockFile, err)
		}
		if !locked {
			app.lock = nil
			app.Close()
			return nil, fmt.Errorf("another jobcrawler holds %s", cfg.LockFile)
		}
	}

	dialect, err := sqldb.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.db, err = sqldb.New(
		sqldb.WithDialect(dialect),
		sqldb.WithConnURL(cfg.Storage.DSN),
		sqldb.WithBatchCount(cfg.Storage.BatchCount),
		sqldb.WithLogger(logger.Named("sqldb")),
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	app.Store, err = sqlstorage.New(app.db,
		sqlstorage.WithMaxMisses(cfg.Backfill.MaxMisses),
		sqlstorage.WithLogger(logger.Named("storage")),
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Pipeline, err = engine.NewPipeline(
		engine.WithOpener(browser.NewOpener(BrowserOptions(cfg, logger)...)),
		engine.WithStore(app.Store),
		engine.WithParser(indeed.New(indeed.WithDomain(cfg.Site.Domain), indeed.WithLogger(logger.Named("parser")))),
		engine.WithTargets(Targets(cfg)...),
		engine.WithDomain(cfg.Site.Domain),
		engine.WithMaxAgeDays(cfg.Crawl.MaxAgeDays),
		engine.WithBatchSize(cfg.Backfill.BatchSize),
		engine.WithMaxIterations(cfg.Backfill.MaxIterations),
		engine.WithCollectOptions(
			collect.WithConsentLabels(cfg.Crawl.ConsentLabels...),
			collect.WithConsentTimeout(cfg.Crawl.ConsentTimeout),
			collect.WithPacer(browser.Pacer{Min: cfg.Crawl.DelayMin, Max: cfg.Crawl.DelayMax}),
			collect.WithMaxPages(cfg.Crawl.MaxPages),
		),
		engine.WithLogger(logger),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func BrowserOptions(cfg config.Config, logger *zap.Logger) []browser.Option {
	opts := []browser.Option{
		browser.WithKind(browser.Kind(cfg.Browser.Kind)),
		browser.WithHeadless(cfg.Browser.Headless),
		browser.WithUserAgent(cfg.Browser.UserAgent),
		browser.WithWindowSize(cfg.Browser.Width, cfg.Browser.Height),
		browser.WithTimeout(cfg.Browser.Timeout),
		browser.WithProxies(cfg.Browser.Proxies...),
		browser.WithLogger(logger.Named("browser")),
	}
	if l := limiter.FromSpecs(cfg.Browser.Limits...); l != nil {
		opts = append(opts, browser.WithLimiter(l))
	}
	return opts
}

func Targets(cfg config.Config) []engine.Target {
	targets := make([]engine.Target, 0, len(cfg.Site.Targets))
	for _, t := range cfg.Site.Targets {
		targets = append(targets, engine.Target{Country: t.Country, Keywords: t.Keywords})
	}
	return targets
}

// Run 执行一次指定模式的流水线，日志带上本次运行的id
func (a *App) Run(ctx context.Context, mode Mode) error {
	logger := a.Logger.With(zap.String("run", uuid.NewString()), zap.Stringer("mode", mode))
	logger.Info("run started")

	var err error
	switch mode {
	case ModeCrawl:
		var sum engine.CrawlSummary
		sum, err = a.Pipeline.Crawl(ctx)
		logCrawl(logger, sum)
	case ModeBackfill:
		var sum engine.BackfillSummary
		sum, err = a.Pipeline.Backfill(ctx)
		logBackfill(logger, sum)
	default:
		var sum engine.Summary
		sum, err = a.Pipeline.Run(ctx)
		logCrawl(logger, sum.Crawl)
		logBackfill(logger, sum.Backfill)
	}

	if stats, serr := a.Store.Stats(context.WithoutCancel(ctx)); serr == nil {
		logger.Info("store totals", zap.Int("jobs", stats.Jobs), zap.Int("tags", stats.Tags), zap.Int("pending", stats.Pending))
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}
	logger.Info("run finished")
	return nil
}

func logCrawl(logger *zap.Logger, sum engine.CrawlSummary) {
	var inserted, updated, tags int
	for _, p := range sum.Passes {
		inserted += p.Reconciled.Inserted
		updated += p.Reconciled.Updated
		tags += p.Reconciled.TagsInserted
	}
	logger.Info("crawl summary",
		zap.Int("passes", len(sum.Passes)),
		zap.Int("failed", sum.Failed),
		zap.Int("inserted", inserted),
		zap.Int("updated", updated),
		zap.Int("tags_inserted", tags))
}

func logBackfill(logger *zap.Logger, sum engine.BackfillSummary) {
	logger.Info("backfill summary",
		zap.Int("iterations", sum.Iterations),
		zap.Int("fetched", sum.Fetched),
		zap.Int("updated", sum.Updated),
		zap.Int("missed", sum.Missed),
		zap.Bool("cap_reached", sum.CapReached))
}

func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}
	_ = a.Logger.Sync()
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// ResolveConfigPath 未显式指定且默认文件不存在时只使用默认配置
func ResolveConfigPath(path string, explicit bool) string {
	if explicit {
		return path
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
