package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// snapshotReserve 是空闲等待必须留给后续快照动作的时间
const snapshotReserve = 2 * time.Second

// idleTracker 通过 CDP 网络事件判断页面何时进入网络空闲：
// 没有在途请求且连续 window 时长无新活动。
type idleTracker struct {
	window time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	last     time.Time
}

// newIdleTracker 在 ctx（必须是 chromedp 目标上下文）上注册事件监听。
// 必须在发起导航的动作之前创建，否则会错过首批请求事件。
func newIdleTracker(ctx context.Context, window time.Duration) *idleTracker {
	t := &idleTracker{
		window:   window,
		inflight: make(map[network.RequestID]struct{}),
		last:     time.Now(),
	}
	chromedp.ListenTarget(ctx, t.handle)
	return t
}

func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// 长连接不计入在途，否则带实时通道的页面永远不空闲
		if e.Type == network.ResourceTypeWebSocket || e.Type == network.ResourceTypeEventSource {
			return
		}
		t.mu.Lock()
		t.inflight[e.RequestID] = struct{}{}
		t.last = time.Now()
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.mu.Lock()
		delete(t.inflight, e.RequestID)
		t.last = time.Now()
		t.mu.Unlock()
	case *network.EventLoadingFailed:
		t.mu.Lock()
		delete(t.inflight, e.RequestID)
		t.last = time.Now()
		t.mu.Unlock()
	}
}

// idleAt 报告时刻 now 是否已满足空闲条件
func (t *idleTracker) idleAt(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && now.Sub(t.last) >= t.window
}

// Wait 阻塞到网络空闲或预算耗尽。等不到空闲不是错误：
// 长轮询页面永远不会安静，空闲只是尽力而为的稳定信号。
func (t *idleTracker) Wait(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		budget := time.Until(deadline) - snapshotReserve
		if budget <= 0 {
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if t.idleAt(now) {
				return
			}
		}
	}
}
