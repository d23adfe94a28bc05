// SPDX-License-Identifier: MIT
package recorder

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"microtools/internal/analysis"
	applog "microtools/internal/log"
	"microtools/internal/metrics"
	"microtools/internal/wav"
)

// DefaultQueueSize is the number of finished sessions that may wait for
// the writer before new ones are dropped.
const DefaultQueueSize = 4

var ErrWriterClosed = errors.New("recorder: writer closed")

// Outcome is the result of writing one payload.
type Outcome struct {
	Seq      uint64
	Path     string
	Header   wav.Header
	Summary  analysis.Summary
	Duration time.Duration // encode + write time
	Err      error
	At       time.Time
}

// WriterOptions configure a Writer.
type WriterOptions struct {
	Layout    wav.Layout
	QueueSize int
	Metrics   *metrics.Metrics
	// OnResult, if set, is called on the writer goroutine after every
	// payload.
	OnResult func(Outcome)
}

// Writer drains finished sessions on its own goroutine so the audio
// callback never touches the file system.
type Writer struct {
	alloc    *wav.Allocator
	layout   wav.Layout
	metrics  *metrics.Metrics
	onResult func(Outcome)

	queue chan Payload
	// sendMu orders sends against close(queue). Submit only ever tries
	// the read lock, so it never waits on Close.
	sendMu   sync.RWMutex
	closed   bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	last    Outcome
	written int
	failed  int
}

func NewWriter(alloc *wav.Allocator, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Writer{
		alloc:    alloc,
		layout:   opts.Layout,
		metrics:  opts.Metrics,
		onResult: opts.OnResult,
		queue:    make(chan Payload, opts.QueueSize),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		applog.Debugf("Writer: goroutine started (dir %s)", w.alloc.Dir)
		for p := range w.queue {
			w.metrics.SetQueueDepth(len(w.queue))
			w.Write(p)
		}
		applog.Debugf("Writer: goroutine finished")
	}()
}

// Submit queues p without blocking. It returns false when the queue is
// full or the writer has been closed.
func (w *Writer) Submit(p Payload) bool {
	if !w.sendMu.TryRLock() {
		// Close is in progress.
		w.metrics.ObserveDrop()
		return false
	}
	defer w.sendMu.RUnlock()

	if w.closed {
		return false
	}
	select {
	case w.queue <- p:
		return true
	default:
		w.metrics.ObserveDrop()
		return false
	}
}

// Pending returns the number of queued payloads.
func (w *Writer) Pending() int { return len(w.queue) }

// Close stops accepting payloads, writes everything already queued and
// waits for the goroutine. The audio stream must be stopped first.
func (w *Writer) Close() error {
	w.stopOnce.Do(func() {
		w.sendMu.Lock()
		w.closed = true
		close(w.queue)
		w.sendMu.Unlock()
	})
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed > 0 {
		return fmt.Errorf("recorder: %d of %d recordings failed, last error: %w",
			w.failed, w.failed+w.written, w.last.Err)
	}
	return nil
}

// Write encodes p and writes it to the next free file name. It runs on
// the writer goroutine, or directly for offline rendering.
func (w *Writer) Write(p Payload) Outcome {
	start := time.Now()
	out := Outcome{Seq: p.Seq, Header: p.Header()}

	out.Path, out.Err = w.write(p)
	out.Duration = time.Since(start)
	out.At = time.Now()

	if out.Err != nil {
		applog.Errorf("Writer: recording %d (%d frames) lost: %v", p.Seq, p.Frames, out.Err)
		w.metrics.ObserveFailure()
	} else {
		out.Summary = analysis.Summarize(p.Buffer.Data, p.Channels())
		applog.Infof("Wrote %s (%d channels, %s, %.2fs, peak %.3f)",
			out.Path, p.Channels(), p.Format, p.Seconds(), out.Summary.Peak())
		if n := out.Summary.Clipped(); n > 0 && p.Format != wav.Float32 {
			applog.Warnf("Writer: %d samples in %s exceeded the nominal peak and wrapped", n, out.Path)
		}
		w.metrics.ObserveWrite(p.Header().DataSize(), p.Seconds(), out.Duration.Seconds())
	}

	w.mu.Lock()
	w.last = out
	if out.Err != nil {
		w.failed++
	} else {
		w.written++
	}
	w.mu.Unlock()

	if w.onResult != nil {
		w.onResult(out)
	}
	return out
}

func (w *Writer) write(p Payload) (string, error) {
	if p.Buffer == nil {
		return "", errors.New("recorder: payload without buffer")
	}

	data, err := wav.Encode(p.Buffer.Data, p.Format)
	if err != nil {
		return "", err
	}

	f, err := w.alloc.Create()
	if err != nil {
		return "", fmt.Errorf("allocating output file: %w", err)
	}
	path := f.Name()

	if err := wav.WriteAndClose(f, data, p.Header(), w.layout); err != nil {
		// Do not leave a truncated file behind.
		os.Remove(path)
		return path, fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Last returns the most recent outcome.
func (w *Writer) Last() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Counts returns the number of successful and failed writes.
func (w *Writer) Counts() (written, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failed
}

var _ Sink = (*Writer)(nil)
