package config

// 运行配置：yaml文件提供全部字段，.env与环境变量可以覆盖存储、日志级别和无头模式

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dszqbsm/jobcrawler/browser"
	"github.com/dszqbsm/jobcrawler/limiter"
	"github.com/dszqbsm/jobcrawler/sqldb"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvStorageDriver   = "JOBCRAWLER_STORAGE_DRIVER"
	EnvStorageDSN      = "JOBCRAWLER_STORAGE_DSN"
	EnvLogLevel        = "JOBCRAWLER_LOG_LEVEL"
	EnvBrowserHeadless = "JOBCRAWLER_BROWSER_HEADLESS"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Site     SiteConfig     `yaml:"site"`
	Browser  BrowserConfig  `yaml:"browser"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Backfill BackfillConfig `yaml:"backfill"`
	Storage  StorageConfig  `yaml:"storage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	LockFile string         `yaml:"lock_file"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // 为空时只输出到标准输出
}

type SiteConfig struct {
	Domain  string         `yaml:"domain"`
	Targets []TargetConfig `yaml:"targets"`
}

type TargetConfig struct {
	Country  string   `yaml:"country"`
	Keywords []string `yaml:"keywords"`
}

type BrowserConfig struct {
	Kind      string         `yaml:"kind"` // chrome或http
	Headless  bool           `yaml:"headless"`
	UserAgent string         `yaml:"user_agent"`
	Width     int            `yaml:"width"`
	Height    int            `yaml:"height"`
	Timeout   time.Duration  `yaml:"timeout"`
	Proxies   []string       `yaml:"proxies"`
	Limits    []limiter.Spec `yaml:"limits"`
}

type CrawlConfig struct {
	MaxAgeDays     int           `yaml:"max_age_days"`
	MaxPages       int           `yaml:"max_pages"` // 0表示不限制
	ConsentLabels  []string      `yaml:"consent_labels"`
	ConsentTimeout time.Duration `yaml:"consent_timeout"`
	DelayMin       time.Duration `yaml:"delay_min"`
	DelayMax       time.Duration `yaml:"delay_max"`
}

type BackfillConfig struct {
	BatchSize     int `yaml:"batch_size"`
	MaxIterations int `yaml:"max_iterations"`
	MaxMisses     int `yaml:"max_misses"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // mysql、postgres或sqlite
	DSN        string `yaml:"dsn"`
	BatchCount int    `yaml:"batch_count"`
}

type ScheduleConfig struct {
	Spec string `yaml:"spec"` // cron表达式
}

// Default 与参考运行一致的默认配置
func Default() Config {
	others := []string{"data", "web developper", "UX/UI designer"}
	return Config{
		Log: LogConfig{Level: "info"},
		Site: SiteConfig{
			Domain: "indeed.com",
			Targets: []TargetConfig{
				{Country: "fr", Keywords: []string{"data", "développeur web", "designer UX/UI"}},
				{Country: "ca", Keywords: others},
				{Country: "uk", Keywords: others},
				{Country: "au", Keywords: others},
			},
		},
		Browser: BrowserConfig{
			Kind:     "chrome",
			Headless: true,
			Width:    1024,
			Height:   768,
			Timeout:  30 * time.Second,
		},
		Crawl: CrawlConfig{
			MaxAgeDays:     1,
			ConsentLabels:  []string{"All Cookies", "les cookies"},
			ConsentTimeout: 10 * time.Second,
			DelayMin:       3500 * time.Millisecond,
			DelayMax:       4000 * time.Millisecond,
		},
		Backfill: BackfillConfig{
			BatchSize:     15,
			MaxIterations: 130,
			MaxMisses:     3,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			DSN:        "jobs.db",
			BatchCount: 100,
		},
		Schedule: ScheduleConfig{Spec: "0 6 * * *"},
		LockFile: "jobcrawler.lock",
	}
}

/*
输入配置文件路径，输出配置和error

先加载.env，再在默认配置上叠加yaml文件，最后应用环境变量覆盖并校验。path为空时只使用默认配置
*/
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvStorageDriver); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := lookup(EnvStorageDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvBrowserHeadless); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBrowserHeadless, err)
		}
		c.Browser.Headless = b
	}
	return nil
}

// ValidationError 一次列出所有问题
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (c Config) Validate() error {
	var v ValidationError

	if c.Site.Domain == "" {
		v.add("site.domain is empty")
	}
	if len(c.Site.Targets) == 0 {
		v.add("site.targets is empty")
	}
	for i, t := range c.Site.Targets {
		if len(t.Country) != 2 || strings.ToLower(t.Country) != t.Country {
			v.add("site.targets[%d].country %q is not a 2-letter lowercase code", i, t.Country)
		}
		if len(t.Keywords) == 0 {
			v.add("site.targets[%d] has no keywords", i)
		}
		for j, kw := range t.Keywords {
			if strings.TrimSpace(kw) == "" {
				v.add("site.targets[%d].keywords[%d] is blank", i, j)
			}
		}
	}

	switch browser.Kind(c.Browser.Kind) {
	case browser.KindChrome, browser.KindHTTP:
	default:
		v.add("browser.kind %q must be chrome or http", c.Browser.Kind)
	}
	for i, l := range c.Browser.Limits {
		if l.EventCount <= 0 || l.EventDur <= 0 {
			v.add("browser.limits[%d] needs positive event_count and event_dur", i)
		}
	}

	if c.Crawl.MaxAgeDays <= 0 {
		v.add("crawl.max_age_days must be > 0")
	}
	if c.Crawl.MaxPages < 0 {
		v.add("crawl.max_pages must be >= 0")
	}
	if c.Crawl.DelayMin < 0 || c.Crawl.DelayMin > c.Crawl.DelayMax {
		v.add("crawl.delay_min (%s) must be between 0 and delay_max (%s)", c.Crawl.DelayMin, c.Crawl.DelayMax)
	}
	if c.Crawl.ConsentTimeout <= 0 {
		v.add("crawl.consent_timeout must be > 0")
	}

	if c.Backfill.BatchSize <= 0 {
		v.add("backfill.batch_size must be > 0")
	}
	if c.Backfill.MaxIterations <= 0 {
		v.add("backfill.max_iterations must be > 0")
	}
	if c.Backfill.MaxMisses <= 0 {
		v.add("backfill.max_misses must be > 0")
	}

	if _, err := sqldb.ParseDialect(c.Storage.Driver); err != nil {
		v.add("storage.driver: %v", err)
	}
	if c.Storage.DSN == "" {
		v.add("storage.dsn is empty")
	}

	if len(v.Problems) > 0 {
		return &v
	}
	return nil
}

// IsValidation 判断错误是否来自配置校验
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
