package limiter

// 导航限速：在浏览器会话发起每一次页面跳转前取得令牌

import (
	"context"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter 统一不同限速器的行为
type RateLimiter interface {
	Wait(context.Context) error // 阻塞直到取得令牌或上下文被取消
	Limit() rate.Limit
}

// Spec 一条限速规则：每EventDur时间内最多EventCount次
type Spec struct {
	EventCount int           `yaml:"event_count"`
	EventDur   time.Duration `yaml:"event_dur"`
	Bucket     int           `yaml:"bucket"`
}

// Multi 将多个限速器按速率从小到大排序后组合，最严格的限速器排在最前
func Multi(limiters ...RateLimiter) *multiLimiter {
	byLimit := func(i, j int) bool {
		return limiters[i].Limit() < limiters[j].Limit()
	}
	sort.Slice(limiters, byLimit)
	return &multiLimiter{limiters: limiters}
}

type multiLimiter struct {
	limiters []RateLimiter
}

// Wait 依次等待所有限速器，任一返回错误即返回
func (l *multiLimiter) Wait(ctx context.Context) error {
	for _, l := range l.limiters {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *multiLimiter) Limit() rate.Limit {
	if len(l.limiters) == 0 {
		return rate.Inf
	}
	return l.limiters[0].Limit()
}

// Per 计算两个令牌之间的时间间隔
func Per(eventCount int, duration time.Duration) rate.Limit {
	return rate.Every(duration / time.Duration(eventCount))
}

/*
输入若干限速规则，输出组合限速器

非法规则（次数或时长不为正）被忽略；没有任何有效规则时返回nil，调用方据此跳过限速
*/
func FromSpecs(specs ...Spec) RateLimiter {
	var limits []RateLimiter
	for _, s := range specs {
		if s.EventCount <= 0 || s.EventDur <= 0 {
			continue
		}
		bucket := s.Bucket
		if bucket <= 0 {
			bucket = 1
		}
		limits = append(limits, rate.NewLimiter(Per(s.EventCount, s.EventDur), bucket))
	}
	if len(limits) == 0 {
		return nil
	}
	return Multi(limits...)
}
