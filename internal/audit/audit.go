// Package audit records every authenticated backend operation. Events are
// buffered in memory and batch-inserted so the hot request path never waits
// on an audit write.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is one recorded operation.
type Event struct {
	At      time.Time
	Actor   string // user id, invite id, or "anonymous"
	Action  string // e.g. media.upload, auth.verify, media.delete
	TeamID  string
	Target  string // media id, team id, or empty
	Details string
}

// BatchInserter persists a batch of events. It exists so the collector can
// be tested without a database.
type BatchInserter interface {
	BatchInsert(ctx context.Context, events []Event) error
}

// Collector buffers events and flushes them when the buffer fills or on a
// timer, whichever comes first. Safe for concurrent use.
type Collector struct {
	store         BatchInserter
	buffer        []Event
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}

	// OnEvent and OnFlush are optional observability hooks. OnFlush gets the
	// batch size and the insert error, nil on success.
	OnEvent func()
	OnFlush func(count int, err error)
}

func NewCollector(store BatchInserter, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		store:         store,
		buffer:        make([]Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// Start runs the timed flush loop. It blocks until Stop is called or the
// context is cancelled, flushing once more on the way out.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		case <-c.done:
			c.flush()
			return
		}
	}
}

// Record buffers one event, flushing immediately when the buffer is full.
func (c *Collector) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.mu.Lock()
	c.buffer = append(c.buffer, ev)
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if c.OnEvent != nil {
		c.OnEvent()
	}

	if shouldFlush {
		c.flush()
	}
}

// flush drains the buffer. Errors are logged, not returned; losing an audit
// batch must not fail the operation it described.
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]Event, 0, c.batchSize)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.store.BatchInsert(ctx, batch)
	if err != nil {
		slog.Error("failed to flush audit events", "count", len(batch), "error", err)
	}
	if c.OnFlush != nil {
		c.OnFlush(len(batch), err)
	}
}

// Stop signals the flush loop to exit after a final flush.
func (c *Collector) Stop() {
	close(c.done)
}
