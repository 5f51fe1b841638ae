package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/models"
)

// Channel is one live subscription to a thread's message inserts.
type Channel interface {
	// Events delivers inserted rows until the channel fails or closes.
	Events() <-chan models.Message
	// Errors reports the channel error, timeout, or unexpected close that
	// ended the subscription.
	Errors() <-chan error
	Close() error
}

// Dialer opens a Channel for a thread.
type Dialer interface {
	Dial(ctx context.Context, threadID string) (Channel, error)
}

// Live owns the push-channel lifecycle for a session: it dials the channel
// for the active thread, pumps inserted rows into the session, and lets the
// reconnect state machine schedule retries on failure. Each connect attempt
// carries the generation it was started under, so a channel torn down by a
// thread switch reports nothing: only the connection that still owns
// l.current may feed the reconnector.
type Live struct {
	dialer Dialer
	sess   *Session
	rec    *Reconnector
	logger *zap.Logger

	mu      sync.Mutex
	current Channel
	gen     uint64

	ctx    context.Context
	cancel context.CancelFunc
}

func NewLive(dialer Dialer, sess *Session, backoffBase, backoffMax time.Duration, logger *zap.Logger) *Live {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Live{
		dialer: dialer,
		sess:   sess,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	l.rec = NewReconnector(backoffBase, backoffMax, l.connect)
	return l
}

// State exposes the reconnect state machine's current state.
func (l *Live) State() ConnState {
	return l.rec.State()
}

// SetThread tears down the previous thread's subscription and starts a
// fresh attempt sequence for the new one.
func (l *Live) SetThread(threadID string) {
	l.closeCurrent()
	l.rec.SetThread(threadID)
}

// Close ends the loop for good.
func (l *Live) Close() {
	l.rec.Teardown()
	l.closeCurrent()
	l.cancel()
}

// closeCurrent drops the active channel and advances the generation so
// in-flight dials and superseded read loops become no-ops.
func (l *Live) closeCurrent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.current != nil {
		l.current.Close()
		l.current = nil
	}
}

// connect is the reconnector's attempt callback.
func (l *Live) connect(threadID string) {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	go func() {
		ch, err := l.dialer.Dial(l.ctx, threadID)
		if err != nil {
			l.logger.Warn("Push channel dial failed",
				zap.Error(err),
				zap.String("thread_id", threadID))
			l.mu.Lock()
			stale := l.gen != gen
			l.mu.Unlock()
			if !stale {
				l.rec.OnChannelError()
			}
			return
		}

		l.mu.Lock()
		if l.gen != gen {
			// A thread switch happened while dialing.
			l.mu.Unlock()
			ch.Close()
			return
		}
		if l.current != nil {
			l.current.Close()
		}
		l.current = ch
		l.mu.Unlock()
		l.rec.OnSubscribed()

		for {
			select {
			case msg, ok := <-ch.Events():
				if !ok {
					l.channelDown(ch, threadID, nil)
					return
				}
				l.sess.ApplyPush(msg)
			case err := <-ch.Errors():
				l.channelDown(ch, threadID, err)
				return
			case <-l.ctx.Done():
				return
			}
		}
	}()
}

// channelDown feeds a channel failure into the reconnector, unless the
// channel was already superseded.
func (l *Live) channelDown(ch Channel, threadID string, err error) {
	l.mu.Lock()
	owns := l.current == ch
	if owns {
		l.current = nil
	}
	l.mu.Unlock()
	if !owns {
		return
	}

	if err != nil {
		l.logger.Warn("Push channel error",
			zap.Error(err),
			zap.String("thread_id", threadID))
	}
	l.rec.OnChannelError()
}
