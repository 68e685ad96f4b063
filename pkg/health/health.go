// Package health backs the /livez and /readyz probe endpoints. Probes run
// on a background ticker and record their state; the HTTP handlers only
// read the last recorded result, so they stay cheap under load.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) error

// A probe must fail this many times in a row before it trips; one success
// resets it. Damps flapping on a briefly unreachable dependency.
const failuresToTrip = 3

// probe is a Check plus its recorded state. observe is only ever called
// from the single runner goroutine; down and last are read by HTTP
// handlers, hence the atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   Check

	down atomic.Bool
	last atomic.Pointer[error]

	fails int
}

func (p *probe) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.last.Store(&err)
	if err != nil {
		p.fails++
		if p.fails >= failuresToTrip {
			p.down.Store(true)
		}
		return
	}
	p.fails = 0
	p.down.Store(false)
}

// failure returns the reason the probe is down, or "" while it is healthy.
func (p *probe) failure() string {
	if !p.down.Load() {
		return ""
	}
	if e := p.last.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check failed"
}

// Checker aggregates the liveness and readiness probes of one service.
// Register probes before Start; the service reports not-ready until
// SetReady(true).
type Checker struct {
	ready atomic.Bool

	mu        sync.Mutex
	live      []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New creates an empty Checker in the not-ready state.
func New() *Checker {
	return &Checker{}
}

// AddLiveness registers a probe behind /livez. Liveness failures mean the
// process itself is wedged and should be restarted.
func (c *Checker) AddLiveness(name string, timeout time.Duration, check Check) {
	c.add(&c.live, name, timeout, check)
}

// AddReadiness registers a probe behind /readyz. Readiness failures mean a
// dependency is unavailable and traffic should be routed elsewhere.
func (c *Checker) AddReadiness(name string, timeout time.Duration, check Check) {
	c.add(&c.readiness, name, timeout, check)
}

func (c *Checker) add(list *[]*probe, name string, timeout time.Duration, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*list = append(*list, &probe{name: name, timeout: timeout, check: check})
}

// Start runs every registered probe once, then again at each interval, all
// from a single goroutine, until Stop or the context ends.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.stop = cancel
	c.mu.Unlock()

	go func() {
		c.observeAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.observeAll(ctx)
			}
		}
	}()
}

func (c *Checker) observeAll(ctx context.Context) {
	for _, p := range c.liveProbes() {
		p.observe(ctx)
	}
	for _, p := range c.readinessProbes() {
		p.observe(ctx)
	}
}

// Stop halts the runner goroutine. Safe to call more than once.
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

// SetReady flips the manual readiness gate: true once startup finishes,
// false again when graceful shutdown begins so the load balancer drains us.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// LiveHandler serves /livez: 200 while every liveness probe holds, 503
// with the failing probes otherwise.
func (c *Checker) LiveHandler(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(c.liveProbes()))
}

// ReadyHandler serves /readyz: 200 once SetReady(true) was called and
// every readiness probe holds.
func (c *Checker) ReadyHandler(w http.ResponseWriter, _ *http.Request) {
	fs := failures(c.readinessProbes())
	if !c.ready.Load() {
		fs["service"] = "not ready"
	}
	writeStatus(w, fs)
}

func (c *Checker) liveProbes() []*probe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*probe(nil), c.live...)
}

func (c *Checker) readinessProbes() []*probe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*probe(nil), c.readiness...)
}

func failures(probes []*probe) map[string]string {
	fs := make(map[string]string)
	for _, p := range probes {
		if reason := p.failure(); reason != "" {
			fs[p.name] = reason
		}
	}
	return fs
}

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, fs map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	body := statusBody{Status: "ok"}
	code := http.StatusOK
	if len(fs) > 0 {
		body = statusBody{Status: "unhealthy", Checks: fs}
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
