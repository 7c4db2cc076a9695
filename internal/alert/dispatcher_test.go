package alert_test

import (
	"sync"
	"testing"
	"time"

	"github.com/simbiota/simbiotad/internal/alert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []alert.DetectionEvent
}

func (s *recordingSink) Notify(event alert.DetectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherFansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	d := alert.NewDispatcher(a, b)
	d.Start()
	defer d.Stop(time.Second)

	d.Notify(alert.DetectionEvent{Path: "/bin/evil"})

	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatcherStopFlushesQueuedEvents(t *testing.T) {
	sink := &recordingSink{}
	d := alert.NewDispatcher(sink)
	d.Start()

	for i := 0; i < 10; i++ {
		d.Notify(alert.DetectionEvent{Path: "/bin/evil"})
	}
	d.Stop(time.Second)

	assert.Equal(t, 10, sink.count())
}

func TestDispatcherDropsOnFullQueueWithoutBlocking(t *testing.T) {
	// No Start() call: nothing drains the queue, so it fills up and
	// Notify must still return immediately rather than blocking the
	// caller (the scan pipeline).
	d := alert.NewDispatcher(&recordingSink{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < alert.DefaultQueueCapacity+10; i++ {
			d.Notify(alert.DetectionEvent{Path: "/bin/evil"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full, undrained queue")
	}

	assert.Equal(t, uint64(10), d.Dropped())
}
