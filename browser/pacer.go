package browser

import (
	"context"
	"math/rand"
	"time"
)

// Pacer 两次页面操作之间的随机停顿，时长均匀分布在[Min, Max]
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

func (p Pacer) Duration() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int63n(int64(p.Max-p.Min)+1))
}

// Wait 停顿一次，ctx取消时提前返回ctx的错误
func (p Pacer) Wait(ctx context.Context) error {
	d := p.Duration()
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
