package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/storage"
)

const (
	// eventQueueSize is the buffer size for the event queue.
	// If full, events are dropped (non-blocking).
	eventQueueSize = 1000

	// batchFlushSize is the number of events that triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often pending events are written.
	flushInterval = 50 * time.Millisecond
)

// TurnSink persists batches of turn records.
type TurnSink interface {
	Init() error
	RecordTurns(records []storage.TurnRecord) error
}

// Recorder records turn events in the background with non-blocking writes.
type Recorder struct {
	sink       TurnSink
	logger     *zap.Logger
	eventQueue chan TurnEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	dropped    int
	mu         sync.RWMutex
}

// NewRecorder creates a recorder and starts its flush loop.
func NewRecorder(sink TurnSink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		sink:       sink,
		logger:     logger,
		eventQueue: make(chan TurnEvent, eventQueueSize),
		stopChan:   make(chan struct{}),
		enabled:    sink != nil,
	}

	if sink != nil {
		if err := sink.Init(); err != nil {
			logger.Warn("analytics storage initialization failed", zap.Error(err))
			r.enabled = false
		}
	}

	r.wg.Add(1)
	go r.processEvents()

	return r
}

// Record queues an event. If the queue is full, the event is dropped.
func (r *Recorder) Record(event TurnEvent) {
	if !r.IsEnabled() {
		return
	}

	select {
	case r.eventQueue <- event:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn("analytics queue full, dropping turn event", zap.String("kind", string(event.Kind)))
	}
}

// Stop flushes queued events and stops the background loop. Events
// recorded after Stop are ignored.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.disable()
		close(r.stopChan)
		r.wg.Wait()
	})
}

func (r *Recorder) disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// IsEnabled returns whether recording is enabled.
func (r *Recorder) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// QueueSize returns the number of events waiting to be flushed.
func (r *Recorder) QueueSize() int {
	return len(r.eventQueue)
}

// processEvents runs in the background, batching and flushing events.
func (r *Recorder) processEvents() {
	defer r.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]TurnEvent, 0, batchFlushSize)

	for {
		select {
		case event := <-r.eventQueue:
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				r.flush(batch)
				batch = make([]TurnEvent, 0, batchFlushSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = make([]TurnEvent, 0, batchFlushSize)
			}

		case <-r.stopChan:
			// Drain whatever is still queued, then exit.
			for {
				select {
				case event := <-r.eventQueue:
					batch = append(batch, event)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to storage.
func (r *Recorder) flush(events []TurnEvent) {
	if len(events) == 0 || r.sink == nil {
		return
	}

	records := make([]storage.TurnRecord, len(events))
	for i, e := range events {
		records[i] = e.ToStorage()
	}
	if err := r.sink.RecordTurns(records); err != nil {
		r.logger.Warn("failed to record turns", zap.Int("count", len(records)), zap.Error(err))
	}
}
