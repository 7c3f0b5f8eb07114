// Package pool maintains per-endpoint pools of local stream-socket
// connections to workers. Pools are created lazily on first acquire and
// bounded; exhaustion is reported to the caller rather than queued.
package pool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxPerEndpoint = 8
	defaultDialTimeout    = 5 * time.Second
)

// Config tunes pool behavior.
type Config struct {
	// MaxPerEndpoint caps in-use plus idle connections per endpoint. 0 means
	// the package default.
	MaxPerEndpoint int
	// SingleUse closes connections on release instead of recycling them, for
	// workers that half-close after each response.
	SingleUse bool
	// DialTimeout bounds the connect step when the caller's context carries
	// no deadline at all; a context deadline, however late, is used as is.
	// 0 means the package default.
	DialTimeout time.Duration
}

// Pool hands out unix-socket connections keyed by socket path.
type Pool struct {
	mu        sync.Mutex
	endpoints map[string]*endpointPool
	closed    bool

	maxPerEndpoint int
	singleUse      bool
	dialTimeout    time.Duration
	log            zerolog.Logger
}

// endpointPool is the per-endpoint record. Guarded by its own mutex so slow
// dials against one worker never block acquires against another.
type endpointPool struct {
	mu     sync.Mutex
	idle   []net.Conn
	inUse  int
	closed bool
}

func New(cfg Config, log zerolog.Logger) *Pool {
	if cfg.MaxPerEndpoint <= 0 {
		cfg.MaxPerEndpoint = defaultMaxPerEndpoint
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Pool{
		endpoints:      make(map[string]*endpointPool),
		maxPerEndpoint: cfg.MaxPerEndpoint,
		singleUse:      cfg.SingleUse,
		dialTimeout:    cfg.DialTimeout,
		log:            log,
	}
}

// Acquire returns a connected socket for socketPath. It returns an exhausted
// error when the per-endpoint cap is reached with nothing idle, and a connect
// error when dialing fails; neither leaks a slot.
func (p *Pool) Acquire(ctx context.Context, socketPath string) (net.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	ep := p.endpoints[socketPath]
	if ep == nil {
		ep = &endpointPool{}
		p.endpoints[socketPath] = ep
	}
	p.mu.Unlock()

	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(ep.idle); n > 0 {
		conn := ep.idle[n-1]
		ep.idle = ep.idle[:n-1]
		ep.inUse++
		ep.mu.Unlock()
		return conn, nil
	}
	if ep.inUse >= p.maxPerEndpoint {
		ep.mu.Unlock()
		poolExhaustedTotal.WithLabelValues(socketPath).Inc()
		return nil, exhaustedError{endpoint: socketPath}
	}
	// Reserve the slot before dialing so concurrent acquires cannot overshoot
	// the cap while the connect is in flight.
	ep.inUse++
	ep.mu.Unlock()

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "unix", socketPath)
	if err != nil {
		ep.mu.Lock()
		ep.inUse--
		ep.mu.Unlock()
		poolConnectFailuresTotal.WithLabelValues(socketPath).Inc()
		p.log.Warn().Str("socket", socketPath).Err(err).Msg("pool connect failed")
		return nil, connectError{endpoint: socketPath, err: err}
	}
	return conn, nil
}

// Release gives a connection back after exactly one prior Acquire. Unhealthy
// connections are discarded; healthy ones are recycled unless the pool runs
// single-use.
func (p *Pool) Release(socketPath string, conn net.Conn, healthy bool) {
	p.mu.Lock()
	ep := p.endpoints[socketPath]
	p.mu.Unlock()
	if ep == nil {
		// Endpoint was removed while the connection was out; just close.
		_ = conn.Close()
		return
	}
	ep.mu.Lock()
	if ep.inUse > 0 {
		ep.inUse--
	}
	recycle := healthy && !p.singleUse && !ep.closed
	if recycle {
		ep.idle = append(ep.idle, conn)
	}
	ep.mu.Unlock()
	if !recycle {
		_ = conn.Close()
	}
}

// Remove drops the endpoint's pool, closing idle connections. In-flight
// connections are closed on their release. Called when a worker endpoint is
// deregistered.
func (p *Pool) Remove(socketPath string) {
	p.mu.Lock()
	ep := p.endpoints[socketPath]
	delete(p.endpoints, socketPath)
	p.mu.Unlock()
	if ep == nil {
		return
	}
	ep.mu.Lock()
	idle := ep.idle
	ep.idle = nil
	ep.closed = true
	ep.mu.Unlock()
	for _, c := range idle {
		_ = c.Close()
	}
}

// Shutdown closes every idle connection and rejects further acquires.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	eps := make([]*endpointPool, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		eps = append(eps, ep)
	}
	p.endpoints = make(map[string]*endpointPool)
	p.mu.Unlock()

	for _, ep := range eps {
		ep.mu.Lock()
		idle := ep.idle
		ep.idle = nil
		ep.closed = true
		ep.mu.Unlock()
		for _, c := range idle {
			_ = c.Close()
		}
	}
}

// Stats reports in-use and idle counts for one endpoint, for tests and the
// status surface.
func (p *Pool) Stats(socketPath string) (inUse, idle int) {
	p.mu.Lock()
	ep := p.endpoints[socketPath]
	p.mu.Unlock()
	if ep == nil {
		return 0, 0
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.inUse, len(ep.idle)
}
