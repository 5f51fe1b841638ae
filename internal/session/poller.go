package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller is the redundant consistency path: a fixed-interval full refetch
// of the active thread, papering over push frames missed while the live
// channel is down. It runs regardless of subscription state.
type Poller struct {
	sess     *Session
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

func NewPoller(sess *Session, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{sess: sess, interval: interval, logger: logger}
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := p.sess.RefreshMessages(ctx); err != nil {
					p.logger.Warn("Poll cycle failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}
