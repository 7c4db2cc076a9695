package alert

import (
	"sync"
	"time"

	"github.com/simbiota/simbiotad/internal/logging"
)

// DefaultQueueCapacity bounds the dispatcher's queue. It is large, not
// unbounded — spec §4.H calls for an "unbounded-but-monitored queue";
// Go has no unbounded channel, so this is the practical stand-in, with
// Dropped counting anything that doesn't fit.
const DefaultQueueCapacity = 4096

// Dispatcher is the Alert Sink: a single drain worker fans each
// DetectionEvent out to every registered Sink, sequentially, so a slow
// sink never races another's state. Notify never blocks the caller; under
// queue exhaustion the event is dropped and counted instead.
type Dispatcher struct {
	sinks   []Sink
	queue   chan DetectionEvent
	dropped uint64
	mu      sync.Mutex
	log     *logging.Logger

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher constructs a Dispatcher over the given sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks: sinks,
		queue: make(chan DetectionEvent, DefaultQueueCapacity),
		log:   logging.Get("alert"),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the drain worker until Stop is called.
func (d *Dispatcher) Start() {
	go d.run()
}

// Notify enqueues event for fan-out. Never blocks: if the queue is full,
// the event is dropped and a counter incremented, matching spec §4.H's
// "MUST NOT block the Scan Pipeline."
func (d *Dispatcher) Notify(event DetectionEvent) {
	select {
	case d.queue <- event:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.log.Warn("alert queue full, dropping event", "path", event.Path)
	}
}

// Dropped returns the number of events dropped for queue exhaustion.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case event := <-d.queue:
			d.fanOut(event)
		case <-d.stop:
			// Drain whatever is already queued, per spec §5's shutdown
			// contract: "flush the alert queue with a 5s grace."
			for {
				select {
				case event := <-d.queue:
					d.fanOut(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) fanOut(event DetectionEvent) {
	for _, sink := range d.sinks {
		sink.Notify(event)
	}
}

// Stop signals the drain worker to flush its queue and exit, waiting up
// to grace for it to finish.
func (d *Dispatcher) Stop(grace time.Duration) {
	close(d.stop)
	select {
	case <-d.done:
	case <-time.After(grace):
		d.log.Warn("alert dispatcher did not flush within grace period")
	}
}
