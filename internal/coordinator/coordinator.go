package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sensord/internal/display"
	"github.com/roach88/sensord/internal/metrics"
	"github.com/roach88/sensord/internal/reading"
)

// Store is the durable record store the coordinator reads and appends to.
// Implemented by *store.Store (production) and testutil.MemStore (tests).
type Store interface {
	Insert(ctx context.Context, r reading.Reading) (int64, error)
	FetchByID(ctx context.Context, id int64) (reading.Record, bool, error)
	MaxID(ctx context.Context) (int64, error)
}

// Coordinator is the single-writer loop that owns the display index.
//
// Thread-safety model:
//   - Ingest(), Step(), Index(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Coordinator struct {
	store   Store
	sink    display.Sink
	queue   *eventQueue
	index   displayIndex
	logger  *slog.Logger
	metrics *metrics.Metrics

	// maxID is the highest record id known to exist. Owned by Run.
	maxID int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics records ingest, step, and render outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a Coordinator rendering records from s onto sink.
// The display index starts at 0. Call Run to start processing.
func New(s Store, sink display.Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  s,
		sink:   sink,
		queue:  newEventQueue(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Index returns the record id currently selected for display.
func (c *Coordinator) Index() int64 {
	return c.index.Load()
}

// Ingest validates r, then has the loop insert it, select it, and render
// it. It returns the new record's id once the display shows it.
//
// Validation failures return an IngestError (INVALID_READING) without
// reaching the loop. Store failures return an IngestError (STORE_FAILED).
// In both cases the index is unchanged.
//
// If ctx is cancelled while waiting, Ingest returns ctx.Err(); an event that
// was already queued is still applied.
func (c *Coordinator) Ingest(ctx context.Context, r reading.Reading) (int64, error) {
	start := time.Now()

	if err := r.Validate(); err != nil {
		c.logger.Warn("reading rejected", "error", err)
		c.metrics.RecordIngest(metrics.ResultInvalid, 0)
		return 0, newInvalidReadingError(err)
	}

	res, err := c.submit(ctx, event{Type: EventTypeIngest, Reading: r})
	if err != nil {
		return 0, err
	}
	if res.Err != nil {
		if IsStoreError(res.Err) {
			c.metrics.RecordIngest(metrics.ResultStoreError, 0)
		}
		return 0, res.Err
	}

	c.metrics.RecordIngest(metrics.ResultOK, time.Since(start))
	return res.ID, nil
}

// Step moves the display index one record in dir and renders the result.
// It returns the index after the step.
//
// The index is clamped to [1, highest id]; stepping with an empty store
// leaves it at 0.
func (c *Coordinator) Step(ctx context.Context, dir reading.Direction) (int64, error) {
	if dir.Delta() == 0 {
		return c.Index(), fmt.Errorf("step: unknown %s", dir)
	}

	res, err := c.submit(ctx, event{Type: EventTypeStep, Direction: dir})
	if err != nil {
		return c.Index(), err
	}
	return res.ID, res.Err
}

// submit enqueues ev and waits for the loop's reply or ctx.
func (c *Coordinator) submit(ctx context.Context, ev event) (result, error) {
	ev.reply = make(chan result, 1)
	if !c.queue.Enqueue(ev) {
		return result{}, ErrStopped
	}

	select {
	case <-ctx.Done():
		return result{}, ctx.Err()
	case res := <-ev.reply:
		return res, nil
	}
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// Run first loads the highest stored id and renders the idle placeholder.
// Events still queued when ctx is cancelled are answered with ErrStopped.
// After Stop, queued events are processed before Run returns nil.
func (c *Coordinator) Run(ctx context.Context) error {
	highest, err := c.store.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("load highest record id: %w", err)
	}
	c.maxID = highest

	c.logger.Info("coordinator starting", "max_id", highest)
	c.render(ctx)
	defer c.drain()

	for {
		ev, ok := c.queue.TryDequeue()
		if ok {
			ev.reply <- c.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
			// The signal channel is closed by Close; a coalesced signal for
			// an event already dequeued just loops back to TryDequeue.
			if c.queue.Closed() && c.queue.Len() == 0 {
				c.logger.Info("coordinator stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue. Run returns once the queue is empty.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// drain answers every event left in the closed queue.
func (c *Coordinator) drain() {
	c.queue.Close()
	for _, ev := range c.queue.Drain() {
		ev.reply <- result{ID: c.index.Load(), Err: ErrStopped}
	}
}

// process applies one event. Called only from Run.
func (c *Coordinator) process(ctx context.Context, ev event) result {
	switch ev.Type {
	case EventTypeIngest:
		return c.processIngest(ctx, ev.Reading)
	case EventTypeStep:
		return c.processStep(ctx, ev.Direction)
	default:
		return result{ID: c.index.Load(), Err: fmt.Errorf("unknown event type: %d", ev.Type)}
	}
}

// processIngest inserts r, selects it, and renders it. Called only from Run.
func (c *Coordinator) processIngest(ctx context.Context, r reading.Reading) result {
	id, err := c.store.Insert(ctx, r)
	if err != nil {
		c.logger.Error("store insert failed", "error", err)
		return result{ID: c.index.Load(), Err: newStoreError(err)}
	}

	if id > c.maxID {
		c.maxID = id
	}
	c.setIndex(id)
	c.render(ctx)

	c.logger.Info("reading stored", "id", id)
	return result{ID: id}
}

// processStep moves the index by one and renders. Called only from Run.
func (c *Coordinator) processStep(ctx context.Context, dir reading.Direction) result {
	current := c.index.Load()
	delta := dir.Delta()

	// Another writer may have appended rows since the last insert seen here.
	if current+delta > c.maxID {
		highest, err := c.store.MaxID(ctx)
		if err != nil {
			c.logger.Warn("refresh highest record id failed", "error", err)
		} else if highest > c.maxID {
			c.maxID = highest
		}
	}

	next := step(current, delta, c.maxID)
	c.setIndex(next)
	c.metrics.RecordStep(dir.String())
	c.render(ctx)

	c.logger.Debug("display stepped", "direction", dir.String(), "from", current, "to", next)
	return result{ID: next}
}

func (c *Coordinator) setIndex(id int64) {
	c.index.Store(id)
	c.metrics.SetDisplayIndex(id)
}

// render shows the record at the current index. A missing record shows the
// placeholder; a store error leaves the display as it was.
// Called only from Run.
func (c *Coordinator) render(ctx context.Context) {
	id := c.index.Load()
	if id == 0 {
		display.Placeholder(0).Show(c.sink)
		c.metrics.RecordRender(metrics.RenderMiss)
		return
	}

	rec, found, err := c.store.FetchByID(ctx, id)
	if err != nil {
		c.logger.Error("fetch record for display failed", "id", id, "error", err)
		c.metrics.RecordRender(metrics.RenderError)
		return
	}
	if !found {
		display.Placeholder(id).Show(c.sink)
		c.metrics.RecordRender(metrics.RenderMiss)
		return
	}

	display.FormatRecord(rec).Show(c.sink)
	c.metrics.RecordRender(metrics.RenderHit)
}
