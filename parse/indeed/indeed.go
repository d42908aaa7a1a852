package indeed

// 解析搜索结果列表页：每张职位卡片生成一条职位记录和若干标签记录

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/dszqbsm/jobcrawler/model"
	"github.com/dszqbsm/jobcrawler/parse"
	"go.uber.org/zap"
)

const DefaultDomain = "indeed.com"

// 可选字段按顺序尝试候选选择器，第一个非空的结果生效
var (
	titleSelectors    = []string{"span[title]", "h2.jobTitle span"}
	companySelectors  = []string{"span.companyName", `[data-testid="company-name"]`}
	locationSelectors = []string{"div.companyLocation", `[data-testid="text-location"]`}
	ratingSelectors   = []string{"span.ratingNumber"}
	snippetSelectors  = []string{"div.job-snippet"}
)

const (
	cardSelector = "div.job_seen_beacon"
	tagSelector  = "div.attribute_snippet"
)

type options struct {
	domain string
	now    func() time.Time
	logger *zap.Logger
}

var defaultOptions = options{
	domain: DefaultDomain,
	now:    time.Now,
	logger: zap.NewNop(),
}

type Option func(opts *options)

func WithDomain(domain string) Option {
	return func(opts *options) {
		if domain != "" {
			opts.domain = domain
		}
	}
}

// WithClock 替换抓取时间的来源
func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Parser struct {
	options
}

func New(opts ...Option) *Parser {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser{options: o}
}

// 与表结构中的列宽一致，超出的id视为无效卡片，超出的标签按字符截断
const (
	MaxIDLen  = 64
	MaxTagLen = 255
)

var errNotFinite = errors.New("rating is not a finite number")

// DetailURL 职位详情页地址
func DetailURL(country, domain, id string) string {
	return fmt.Sprintf("https://%s.%s/viewjob?jk=%s", country, domain, id)
}

/*
输入一批列表页和国家代码，输出解析结果

单张卡片的问题只影响该卡片：缺少id跳过并计数，评分无法解析置空并计数
*/
func (p *Parser) Parse(pages []model.RawPage, country string) parse.Result {
	var res parse.Result
	seenJobs := map[string]bool{}
	seenTags := map[model.Tag]bool{}

	for _, page := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
		if err != nil {
			p.logger.Warn("parse page failed", zap.String("url", page.URL), zap.Error(err))
			continue
		}

		doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
			id := cardID(card)
			if id == "" || utf8.RuneCountInString(id) > MaxIDLen {
				res.Malformed++
				p.logger.Warn("job card without valid id", zap.String("url", page.URL), zap.Int("card", i))
				return
			}

			job := model.Job{
				ID:        id,
				Title:     firstText(card, titleSelectors),
				Company:   firstText(card, companySelectors),
				Location:  firstText(card, locationSelectors),
				Snippet:   firstText(card, snippetSelectors),
				ScrapedAt: p.now().UTC().Truncate(time.Second),
				URL:       DetailURL(country, p.domain, id),
			}

			if raw := firstText(card, ratingSelectors); raw != nil {
				rating, err := ParseRating(*raw)
				if err != nil {
					res.BadRatings++
					p.logger.Warn("bad rating", zap.String("id", id), zap.String("rating", *raw), zap.Error(err))
				} else {
					job.Rating = &rating
				}
			}

			if !seenJobs[id] {
				seenJobs[id] = true
				res.Jobs = append(res.Jobs, job)
			}

			card.Find(tagSelector).Each(func(_ int, s *goquery.Selection) {
				text := parse.Truncate(parse.Normalize(s.Text()), MaxTagLen)
				if text == "" {
					return
				}
				tag := model.Tag{JobID: id, Text: text}
				if !seenTags[tag] {
					seenTags[tag] = true
					res.Tags = append(res.Tags, tag)
				}
			})
		})
	}
	return res
}

// ParseRating 接受逗号或点作为小数分隔符，NaN和无穷大按无法解析处理
func ParseRating(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse rating %q: %w", raw, errNotFinite)
	}
	return v, nil
}

func cardID(card *goquery.Selection) string {
	if id, ok := card.Attr("data-jk"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	id, _ := card.Find("a[data-jk]").First().Attr("data-jk")
	return strings.TrimSpace(id)
}

func firstText(card *goquery.Selection, selectors []string) *string {
	for _, sel := range selectors {
		if v := parse.Optional(card.Find(sel).First().Text()); v != nil {
			return v
		}
	}
	return nil
}
