// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"

	applog "microtools/internal/log"
)

// DefaultInterval is the publish rate used when none is configured, ~30Hz.
const DefaultInterval = 33 * time.Millisecond

// Broadcaster periodically takes a status snapshot and sends it to every
// sink. It runs in its own goroutine managed by Start and Stop.
type Broadcaster struct {
	source   StatusFunc
	sinks    []Transport
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	seq uint64
}

// NewBroadcaster defaults a non-positive interval to ~30Hz.
func NewBroadcaster(interval time.Duration, source StatusFunc, sinks ...Transport) (*Broadcaster, error) {
	if source == nil {
		return nil, errors.New("Broadcaster: status source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("Broadcaster: Invalid interval provided, defaulting to %s", interval)
	}
	return &Broadcaster{source: source, sinks: sinks, interval: interval}, nil
}

// Start begins publishing. Calling Start on a running broadcaster is a
// no-op.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	if b.ticker != nil {
		b.mu.Unlock()
		applog.Warnf("Broadcaster: Start called but already running.")
		return
	}
	b.ticker = time.NewTicker(b.interval)
	b.doneChan = make(chan struct{})
	b.stopOnce = sync.Once{}

	ticker := b.ticker
	doneChan := b.doneChan
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		applog.Debugf("Broadcaster: started (interval %s, %d sinks)", b.interval, len(b.sinks))
		for {
			select {
			case <-ticker.C:
				b.Publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Publish sends one snapshot now. It is called by the ticker goroutine and
// may be called directly, e.g. for a final update on shutdown.
func (b *Broadcaster) Publish() {
	s := b.source()
	b.mu.Lock()
	b.seq++
	s.Seq = b.seq
	b.mu.Unlock()

	for _, sink := range b.sinks {
		if err := sink.Send(s); err != nil {
			applog.Debugf("Broadcaster: send to %T failed: %v", sink, err)
		}
	}
}

// Stop halts the goroutine and waits for it. Sinks are not closed.
func (b *Broadcaster) Stop() error {
	b.mu.Lock()
	if b.ticker == nil {
		b.mu.Unlock()
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.doneChan)
		b.ticker.Stop()
		b.ticker = nil
	})
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	n := b.seq
	b.mu.Unlock()
	applog.Debugf("Broadcaster: stopped after %d updates", n)
	return nil
}

// Close stops the broadcaster and closes its sinks.
func (b *Broadcaster) Close() error {
	errs := []error{b.Stop()}
	for _, sink := range b.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
