// Package browser manages a bounded pool of headless-browser instances used
// by the content acquisition cascade.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Instance is a single headless-browser session.
type Instance interface {
	// Render navigates to the URL with a network-settled wait condition and
	// returns the rendered DOM. Non-essential subresources (images, fonts,
	// stylesheets, media) are blocked for speed.
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// Launcher creates browser instances on demand.
type Launcher interface {
	Launch(ctx context.Context) (Instance, error)
}

// Handle is a leased browser instance. It must be returned to the pool via
// Release when the caller is done with it.
type Handle struct {
	Instance Instance
	lastUsed time.Time
}

// Config controls pool sizing and idle eviction.
type Config struct {
	// MaxInstances bounds the number of live browsers. Default: 3.
	MaxInstances int
	// IdleTTL is how long an idle instance may live before the sweeper
	// closes it. Default: 30m.
	IdleTTL time.Duration
	// SweepInterval is how often the idle sweeper runs. Default: 5m.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxInstances <= 0 {
		c.MaxInstances = 3
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Pool is a bounded set of browser instances with idle eviction. All mutation
// is serialized through Acquire/Release.
type Pool struct {
	cfg      Config
	launcher Launcher

	mu     sync.Mutex
	idle   []*Handle
	leased map[*Handle]struct{}
	total  int
	closed bool
	// signal wakes one waiter when an instance is released or evicted.
	signal chan struct{}

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewPool creates a pool and starts its background idle sweeper.
func NewPool(launcher Launcher, cfg Config) *Pool {
	p := &Pool{
		cfg:       cfg.withDefaults(),
		launcher:  launcher,
		leased:    make(map[*Handle]struct{}),
		signal:    make(chan struct{}, 1),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Acquire returns a leased browser handle, blocking until an idle instance
// exists or the pool has room to launch a new one. Launch failures propagate
// to the caller.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, eris.New("browser: pool closed")
		}

		if n := len(p.idle); n > 0 {
			h := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.leased[h] = struct{}{}
			p.mu.Unlock()
			return h, nil
		}

		if p.total < p.cfg.MaxInstances {
			p.total++
			p.mu.Unlock()

			inst, err := p.launcher.Launch(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				p.wake()
				return nil, eris.Wrap(err, "browser: launch instance")
			}

			h := &Handle{Instance: inst}
			p.mu.Lock()
			p.leased[h] = struct{}{}
			p.mu.Unlock()
			return h, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "browser: acquire")
		case <-p.signal:
		}
	}
}

// Release returns a handle to the idle set. Releasing an unknown (or already
// released) handle is a no-op. After Close, released instances are closed
// instead of re-idled; the sweeper is gone by then.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.leased[h]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leased, h)
	if p.closed {
		p.total--
		p.mu.Unlock()
		if err := h.Instance.Close(); err != nil {
			zap.L().Debug("browser: close released instance", zap.Error(err))
		}
		return
	}
	h.lastUsed = time.Now()
	p.idle = append(p.idle, h)
	p.mu.Unlock()
	p.wake()
}

// Discard removes a handle from the pool entirely, closing its instance.
// Used when a lease ends with the browser in an unusable state.
func (p *Pool) Discard(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.leased[h]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leased, h)
	p.total--
	p.mu.Unlock()
	if err := h.Instance.Close(); err != nil {
		zap.L().Debug("browser: close discarded instance", zap.Error(err))
	}
	p.wake()
}

// Stats returns the current idle and leased instance counts.
func (p *Pool) Stats() (idle, leased int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), len(p.leased)
}

// Close stops the sweeper and closes all idle instances. Leased instances
// are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	p.mu.Unlock()

	close(p.stopSweep)
	<-p.sweepDone

	for _, h := range idle {
		_ = h.Instance.Close()
	}
}

func (p *Pool) wake() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Pool) sweepLoop() {
	defer close(p.sweepDone)
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweepIdle(time.Now())
		}
	}
}

// sweepIdle closes idle instances whose last use is older than IdleTTL.
func (p *Pool) sweepIdle(now time.Time) {
	p.mu.Lock()
	var keep, evict []*Handle
	for _, h := range p.idle {
		if now.Sub(h.lastUsed) > p.cfg.IdleTTL {
			evict = append(evict, h)
		} else {
			keep = append(keep, h)
		}
	}
	p.idle = keep
	p.total -= len(evict)
	p.mu.Unlock()

	for _, h := range evict {
		if err := h.Instance.Close(); err != nil {
			zap.L().Debug("browser: close idle instance", zap.Error(err))
		}
	}
	if len(evict) > 0 {
		zap.L().Debug("browser: evicted idle instances", zap.Int("count", len(evict)))
		p.wake()
	}
}
