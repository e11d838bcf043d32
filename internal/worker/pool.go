package worker

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
// Tasks run under the context given to Start, never a request context.
type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
	logger  *log.Logger

	rateMu sync.Mutex
	rate   <-chan time.Time
	ticker *time.Ticker
}

func NewPool(workers, queue int, logger *log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queue),
		logger:  logger,
	}
}

// SetRateLimit caps how many tasks start per second across all workers.
// rps <= 0 removes the cap.
func (p *Pool) SetRateLimit(rps int) {
	if p == nil {
		return
	}
	p.rateMu.Lock()
	defer p.rateMu.Unlock()
	p.stopTickerLocked()
	if rps <= 0 {
		return
	}
	p.ticker = time.NewTicker(time.Second / time.Duration(rps))
	p.rate = p.ticker.C
}

func (p *Pool) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.loop(ctx, i)
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			p.rateMu.Lock()
			rate := p.rate
			p.rateMu.Unlock()
			if rate != nil {
				select {
				case <-ctx.Done():
					return
				case <-rate:
				}
			}
			if err := p.run(ctx, t); err != nil {
				p.logf("[Worker] task failed worker=%d err=%v", id, err)
			}
		}
	}
}

func (p *Pool) run(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.logf("[Worker] recovered panic: %v\n%s", r, debug.Stack())
		}
	}()
	return t(ctx)
}

// TrySubmit enqueues t without blocking. It returns false when the queue is
// full or the pool is closed.
func (p *Pool) TrySubmit(t Task) bool {
	if p == nil || t == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// QueueLen reports how many tasks are waiting for a worker.
func (p *Pool) QueueLen() int {
	if p == nil {
		return 0
	}
	return len(p.tasks)
}

// Close stops accepting tasks and waits for queued ones to finish, or for the
// Start context to end.
func (p *Pool) Close() {
	_ = p.Shutdown(context.Background())
}

// Shutdown stops accepting tasks and waits for the queue to drain. When ctx
// ends first it returns ctx.Err() and the workers keep running until the
// Start context is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.rateMu.Lock()
	p.stopTickerLocked()
	p.rateMu.Unlock()
	return err
}

func (p *Pool) stopTickerLocked() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.rate = nil
	}
}

func (p *Pool) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
