// Package scanpipeline implements the Scan Pipeline (spec §4.F): the
// glue between the Event Source, Result Cache, TLSH Classifier,
// Quarantine Manager and Alert Sink. Its shape is grounded on two
// sources: the original's detection_system.rs::detector_callback for the
// exact cache/classify/quarantine/deny sequence, and the teacher's
// pkg/sweep/scanner/worker.go for the bounded worker pool and
// drain-on-cancel pattern, adapted from a directory walk to a fanotify
// event queue.
package scanpipeline

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/simbiota/simbiotad/internal/alert"
	"github.com/simbiota/simbiotad/internal/classify"
	"github.com/simbiota/simbiotad/internal/fanotify"
	"github.com/simbiota/simbiotad/internal/logging"
	"github.com/simbiota/simbiotad/internal/quarantine"
	"github.com/simbiota/simbiotad/internal/resultcache"
	"github.com/simbiota/simbiotad/internal/signature"
)

// DefaultDeadline is the soft per-event deadline spec §4.E recommends:
// 200ms wall-clock from receipt, after which the event is replied Allow
// and the scan continues asynchronously for cache population only.
const DefaultDeadline = 200 * time.Millisecond

// DefaultQueueCapacity bounds how many events may be in flight across the
// worker pool before backpressure kicks in (spec §4.E).
const DefaultQueueCapacity = 512

// DefaultWorkers returns spec §5's min(4, nproc) worker pool size.
func DefaultWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

// Config configures a Pipeline.
type Config struct {
	Workers       int
	Deadline      time.Duration
	QueueCapacity int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers()
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	return c
}

// workItem tracks one dispatched event through the pipeline. responded
// guards against a double response racing between a worker finishing
// its scan and the deadline timer firing.
type workItem struct {
	event     fanotify.Event
	responded atomic.Bool
	timer     *time.Timer
}

// Pipeline owns the worker pool and the coalescing/caching/classification
// logic for every non-self-origin event the Event Source hands it.
type Pipeline struct {
	cfg Config

	monitor    *fanotify.Monitor
	cache      *resultcache.Cache
	sigStore   *signature.Store
	quarantine *quarantine.Manager // nil when quarantine is disabled
	alerts     *alert.Dispatcher
	fp         classify.Fingerprinter
	log        *logging.Logger

	queue     chan *workItem
	responses chan fanotify.Response
	sf        singleflight.Group
	accepting atomic.Bool

	missedDeadlines atomic.Uint64
	queueDropped    atomic.Uint64

	wg sync.WaitGroup
}

// New constructs a Pipeline. quarantineMgr may be nil (quarantine
// disabled); alerts and sigStore must not be nil.
func New(cfg Config, monitor *fanotify.Monitor, cache *resultcache.Cache, sigStore *signature.Store, quarantineMgr *quarantine.Manager, alerts *alert.Dispatcher, fp classify.Fingerprinter) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:        cfg,
		monitor:    monitor,
		cache:      cache,
		sigStore:   sigStore,
		quarantine: quarantineMgr,
		alerts:     alerts,
		fp:         fp,
		log:        logging.Get("scanpipeline"),
		queue:      make(chan *workItem, cfg.QueueCapacity),
		responses:  make(chan fanotify.Response, cfg.QueueCapacity),
	}
	p.accepting.Store(true)
	return p
}

// Responses exposes the channel Monitor.Run drains to write verdicts
// back to the fanotify descriptor. The read loop is the only reader.
func (p *Pipeline) Responses() <-chan fanotify.Response {
	return p.responses
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for wi := range p.queue {
				p.process(wi)
			}
		}()
	}
}

// Shutdown stops accepting new events, closes the work queue, and waits
// up to grace for in-flight scans to drain. The caller must keep
// Monitor.Run alive for the duration of this call: every finished scan
// and every still-pending soft-deadline timer answers through
// respondOnce onto the responses channel, and only the read loop ever
// writes that verdict to the fanotify fd. Calling this before stopping
// Run is what makes "reply Allow to all outstanding permission events"
// an actual guarantee rather than a race against process exit.
func (p *Pipeline) Shutdown(grace time.Duration) {
	p.accepting.Store(false)
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.log.Warn("scan pipeline workers did not drain within grace period")
	}
}

// MissedDeadlines returns the count of permission events answered Allow
// by their soft-deadline timer rather than by a completed scan.
func (p *Pipeline) MissedDeadlines() uint64 { return p.missedDeadlines.Load() }

// QueueDropped returns the count of events dropped or fast-failed-open
// for backpressure.
func (p *Pipeline) QueueDropped() uint64 { return p.queueDropped.Load() }

// Dispatch is the Event Source's handle callback (spec §4.E): it must
// never block, since it runs on the fanotify read loop itself. A full
// queue is answered Allow immediately, right here on the read-loop
// goroutine, and the event is dropped — spec §4.E's deliberate
// availability-over-completeness backpressure policy.
func (p *Pipeline) Dispatch(ev fanotify.Event) {
	if !p.accepting.Load() {
		p.failOpenInline(ev)
		return
	}

	wi := &workItem{event: ev}
	select {
	case p.queue <- wi:
		if ev.IsPerm() {
			wi.timer = time.AfterFunc(p.cfg.Deadline, func() {
				if p.respondOnce(wi, true) {
					p.missedDeadlines.Add(1)
				}
			})
		}
	default:
		p.queueDropped.Add(1)
		p.failOpenInline(ev)
	}
}

// failOpenInline answers ev directly from the read-loop goroutine —
// legitimate since Dispatch is only ever called from Monitor.Run.
func (p *Pipeline) failOpenInline(ev fanotify.Event) {
	if ev.IsPerm() {
		if err := p.monitor.Respond(ev.FileFd, true); err != nil {
			p.log.Warn("failed to respond to overloaded event", "error", err)
		}
	}
	_ = ev.Close()
}

// respondOnce hands a verdict back to the read loop via the responses
// channel, guarding against a duplicate response. It reports whether
// this call was the one that won the race.
func (p *Pipeline) respondOnce(wi *workItem, allow bool) bool {
	if !wi.responded.CompareAndSwap(false, true) {
		return false
	}
	if wi.timer != nil {
		wi.timer.Stop()
	}
	p.responses <- fanotify.Response{FileFd: wi.event.FileFd, Allow: allow}
	return true
}

type scanResult struct {
	verdict classify.Verdict
	matched *classify.MatchedSignature
}

// process implements spec §4.F's six steps for one event.
func (p *Pipeline) process(wi *workItem) {
	ev := wi.event

	path, err := ev.Path()
	if err != nil {
		p.log.Warn("resolving event path failed", "fd", ev.FileFd, "error", err)
		p.failOpen(wi, "")
		return
	}

	var stat syscall.Stat_t
	if err := syscall.Fstat(int(ev.FileFd), &stat); err != nil {
		p.log.Warn("fstat via fd failed", "path", path, "error", err)
		p.failOpen(wi, path)
		return
	}
	identity := resultcache.IdentityFromStat(&stat)

	if verdict, ok := p.cache.Lookup(path, identity); ok {
		p.finish(wi, path, stat.Size, scanResult{verdict: verdict})
		return
	}

	v, err, _ := p.sf.Do(path, func() (interface{}, error) {
		snap := p.sigStore.Current()
		digest, err := p.fp.Fingerprint(fdReader{fd: int(ev.FileFd)})
		if errors.Is(err, classify.ErrUncharacterizable) {
			// Too short/uniform for TLSH: spec §7 treats this as a
			// definite Benign verdict, not a scan failure — it is
			// cached like any other result, not failed open.
			return scanResult{verdict: classify.Benign}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", path, err)
		}
		verdict, matched, err := classify.Classify(digest, snap)
		if err != nil {
			return nil, fmt.Errorf("classifying %s: %w", path, err)
		}
		return scanResult{verdict: verdict, matched: matched}, nil
	})
	if err != nil {
		p.log.Warn("scan failed, failing open", "path", path, "error", err)
		p.failOpen(wi, path)
		return
	}

	res := v.(scanResult)
	p.cache.Store(path, identity, res.verdict)
	p.finish(wi, path, stat.Size, res)
}

// finish applies the verdict: quarantine + alert on Malicious, then
// answers the permission event (or closes a non-permission event's fd).
func (p *Pipeline) finish(wi *workItem, path string, size int64, res scanResult) {
	if res.verdict == classify.Malicious {
		p.handleMalicious(path, size, res.matched)
	}

	ev := wi.event
	if !ev.IsPerm() {
		_ = ev.Close()
		return
	}
	p.respondOnce(wi, res.verdict != classify.Malicious)
}

// failOpen answers Allow without a verdict, e.g. when path resolution or
// fingerprinting failed — a defensive daemon never denies on its own
// error (spec §7's error-handling posture for scanner failures).
func (p *Pipeline) failOpen(wi *workItem, path string) {
	ev := wi.event
	if !ev.IsPerm() {
		_ = ev.Close()
		return
	}
	p.respondOnce(wi, true)
}

func (p *Pipeline) handleMalicious(path string, size int64, matched *classify.MatchedSignature) {
	verdictNote := "malicious"
	if matched != nil {
		verdictNote = fmt.Sprintf("malicious:%s", matched.Name)
	}

	var quarantineID string
	if p.quarantine != nil {
		entry, err := p.quarantine.Add(path, verdictNote)
		if err != nil {
			p.log.Error("quarantine failed", "path", path, "error", err)
		} else {
			quarantineID = entry.ID
			p.cache.Invalidate(path)
		}
	}

	p.alerts.Notify(alert.DetectionEvent{
		Path:         path,
		Size:         size,
		Verdict:      classify.Malicious,
		Matched:      matched,
		QuarantineID: quarantineID,
		Time:         time.Now(),
	})
}
