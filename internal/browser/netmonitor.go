// internal/browser/netmonitor.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// netMonitor tracks in-flight network requests on one browser tab so waits
// can be condition-based instead of fixed sleeps.
type netMonitor struct {
	logger *zap.Logger

	lock     sync.RWMutex
	inflight map[network.RequestID]struct{}
}

// newNetMonitor attaches a CDP event listener to the tab context. The
// listener lives as long as the tab does.
func newNetMonitor(tabCtx context.Context, logger *zap.Logger) *netMonitor {
	m := &netMonitor{
		logger:   logger.Named("netmonitor"),
		inflight: make(map[network.RequestID]struct{}),
	}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			m.lock.Lock()
			m.inflight[e.RequestID] = struct{}{}
			m.lock.Unlock()
		case *network.EventLoadingFinished:
			m.drop(e.RequestID)
		case *network.EventLoadingFailed:
			m.drop(e.RequestID)
		}
	})

	return m
}

func (m *netMonitor) drop(id network.RequestID) {
	m.lock.Lock()
	delete(m.inflight, id)
	m.lock.Unlock()
}

// WaitIdle blocks until no request has been in flight for quietPeriod, or
// the context expires.
func (m *netMonitor) WaitIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(quietPeriod / 2) // Check more frequently than the quiet period.
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("WaitIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			m.lock.RLock()
			inflightCount := len(m.inflight)
			m.lock.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now() // Reset the timer if there's activity.
				m.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflightCount))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
