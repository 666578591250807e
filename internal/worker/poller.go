package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Poller runs SyncWorker.ProcessPending on an interval.
type Poller struct {
	worker    *SyncWorker
	interval  time.Duration
	batchSize int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPoller(w *SyncWorker, interval time.Duration, batchSize int) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Poller{worker: w, interval: interval, batchSize: batchSize}
}

// Start begins polling. It returns an error if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync poller is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync poller started",
		"interval", p.interval,
		"batch_size", p.batchSize)
	return nil
}

// Stop waits for the loop to finish or ctx to expire.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync poller stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync poller stop timed out")
		return ctx.Err()
	}
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Catch up on startup before the first tick.
	p.poll(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	n, err := p.worker.ProcessPending(ctx, p.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Pending sync failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending installments synced", "count", n)
	}
}
