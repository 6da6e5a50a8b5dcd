package storage

import (
	"context"
	"sync"
	"time"
)

// leasePool bounds concurrent access to the backend. Callers hold an
// exclusive lease for the duration of one operation; a faulted lease
// reopens the backend before the next acquisition, and an idle backend is
// reclaimed (closed) after the configured timeout and reopened lazily.
type leasePool struct {
	backend Backend
	sem     chan struct{}

	mu       sync.Mutex
	lastUsed time.Time
	faulted  bool
	closed   bool

	idleTimeout time.Duration
	stopJanitor chan struct{}
	janitorDone chan struct{}
}

func newLeasePool(backend Backend, size int, idleTimeout time.Duration) *leasePool {
	p := &leasePool{
		backend:     backend,
		sem:         make(chan struct{}, size),
		lastUsed:    time.Now(),
		idleTimeout: idleTimeout,
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go p.janitor()
	return p
}

// acquire blocks until a lease is free or the context is done, then makes
// sure the backend is usable.
func (p *leasePool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		<-p.sem
		return ErrClosed
	}

	// Cycle a faulted backend, but only when no other lease is mid
	// operation on it.
	if p.faulted && p.backend.IsOpen() && len(p.sem) == 1 {
		_ = p.backend.Close()
	}
	if !p.backend.IsOpen() {
		if err := p.backend.Open(true); err != nil {
			<-p.sem
			return err
		}
	}
	p.faulted = false
	p.lastUsed = time.Now()
	return nil
}

// release returns the lease. A non-nil err marks the backend for a
// reopen before the next acquire.
func (p *leasePool) release(err error) {
	p.mu.Lock()
	if err != nil && err != ErrRowNotFound {
		p.faulted = true
	}
	p.lastUsed = time.Now()
	p.mu.Unlock()
	<-p.sem
}

// janitor reclaims the backend after the idle timeout.
func (p *leasePool) janitor() {
	defer close(p.janitorDone)
	if p.idleTimeout <= 0 {
		<-p.stopJanitor
		return
	}

	ticker := time.NewTicker(p.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopJanitor:
			return
		case <-ticker.C:
			p.mu.Lock()
			idle := time.Since(p.lastUsed) > p.idleTimeout
			busy := len(p.sem) > 0
			if idle && !busy && !p.closed && p.backend.IsOpen() {
				_ = p.backend.Sync()
				_ = p.backend.Close()
			}
			p.mu.Unlock()
		}
	}
}

// close shuts the pool down and closes the backend.
func (p *leasePool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopJanitor)
	<-p.janitorDone

	// Drain outstanding leases so nobody is mid-operation.
	for i := 0; i < cap(p.sem); i++ {
		p.sem <- struct{}{}
	}

	if p.backend.IsOpen() {
		return p.backend.Close()
	}
	return nil
}
