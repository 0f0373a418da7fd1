// Package scheduler implements the job scheduler (spec component C6): a
// per-job-class concurrency cap backed by a bounded FIFO admission queue,
// with cooperative cancellation and a hard job timeout shared by all classes.
//
// The design borrows its vocabulary from Temporal's activity model (permit
// = lease, job_timeout = activity StartToClose timeout, cancellation token
// = activity heartbeat/cancel) without taking a dependency on a Temporal
// server: the spec's scheduler is explicitly in-process and local-first
// (see SPEC_FULL.md's list of dropped teacher dependencies for why the
// real SDK is not imported here).
package scheduler

import (
	"context"
	"sync"
	"time"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

// JobClass is the closed set of admission classes named in spec §4.6.
type JobClass string

const (
	ClassVideoIngest    JobClass = "video_ingest"
	ClassSlidesIngest   JobClass = "slides_ingest"
	ClassDiagramIngest  JobClass = "diagram_ingest"
	ClassCaptionsIngest JobClass = "captions_ingest"
	ClassVisionOCR      JobClass = "vision_ocr"
	ClassASR            JobClass = "asr"
	ClassEntity         JobClass = "entity"
	ClassVisualCaption  JobClass = "visual_caption"
	ClassEmbedding      JobClass = "embedding"
)

// DefaultMaxInFlight returns the recommended per-class caps from spec §4.6.
func DefaultMaxInFlight() map[JobClass]int {
	return map[JobClass]int{
		ClassVideoIngest:    2,
		ClassSlidesIngest:   3,
		ClassDiagramIngest:  3,
		ClassCaptionsIngest: 5,
		ClassVisionOCR:      2,
		ClassASR:            1,
		ClassEntity:         4,
		ClassVisualCaption:  1,
		ClassEmbedding:      2,
	}
}

// Stats is the per-class counter snapshot returned by Scheduler.Stats.
type Stats struct {
	InFlight  int
	Queued    int
	Completed int64
	Failed    int64
	TimedOut  int64
	Cancelled int64
}

// Config configures the scheduler's admission policy.
type Config struct {
	MaxInFlight map[JobClass]int
	QueueCap    int // global bound across all classes, shared admission queue
	JobTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxInFlight == nil {
		c.MaxInFlight = DefaultMaxInFlight()
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 64
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	return c
}

type classState struct {
	maxInFlight int
	inFlight    int
	waiters     []chan struct{} // FIFO queue of blocked acquirers

	completed, failed, timedOut, cancelled int64
}

// Scheduler is the process-wide gatekeeper for expensive work (spec §5:
// "the Job Scheduler is the sole gatekeeper for expensive work"). There is
// a single instance per process (spec §9).
type Scheduler struct {
	log *logger.Logger
	cfg Config

	mu      sync.Mutex
	classes map[JobClass]*classState
}

// New constructs a Scheduler. Unknown classes are registered lazily with a
// conservative default cap of 1 so a missing config entry degrades safely
// rather than admitting unbounded concurrency.
func New(log *logger.Logger, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{log: log, cfg: cfg, classes: map[JobClass]*classState{}}
	for class, max := range cfg.MaxInFlight {
		s.classes[class] = &classState{maxInFlight: max}
	}
	return s
}

func (s *Scheduler) classFor(class JobClass) *classState {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.classes[class]
	if !ok {
		cs = &classState{maxInFlight: 1}
		s.classes[class] = cs
	}
	return cs
}

// Permit is a counted authorization to perform one unit of expensive work.
// The holder must call Release exactly once.
type Permit struct {
	class     JobClass
	scheduler *Scheduler
	released  bool
	mu        sync.Mutex
}

func (s *Scheduler) totalQueuedLocked() int {
	n := 0
	for _, cs := range s.classes {
		n += len(cs.waiters)
	}
	return n
}

// TryAcquire attempts to admit one unit of work in class. wait == 0 means
// non-blocking: if no slot is immediately free, it returns *errs.QueueFull
// without joining the queue. wait > 0 joins the FIFO queue for class and
// blocks until a slot frees, ctx is cancelled, wait elapses, or the global
// queue is already at cfg.QueueCap (in which case it fails fast).
func (s *Scheduler) TryAcquire(ctx context.Context, class JobClass, wait time.Duration) (*Permit, error) {
	cs := s.classFor(class)

	s.mu.Lock()
	if cs.inFlight < cs.maxInFlight && len(cs.waiters) == 0 {
		cs.inFlight++
		s.mu.Unlock()
		return &Permit{class: class, scheduler: s}, nil
	}
	if wait <= 0 {
		s.mu.Unlock()
		return nil, &errs.QueueFull{JobClass: string(class)}
	}
	if s.totalQueuedLocked() >= s.cfg.QueueCap {
		s.mu.Unlock()
		return nil, &errs.QueueFull{JobClass: string(class)}
	}
	ready := make(chan struct{})
	cs.waiters = append(cs.waiters, ready)
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ready:
		return &Permit{class: class, scheduler: s}, nil
	case <-timer.C:
		s.dropWaiter(cs, ready)
		return nil, &errs.QueueFull{JobClass: string(class)}
	case <-ctx.Done():
		s.dropWaiter(cs, ready)
		return nil, ctx.Err()
	}
}

func (s *Scheduler) dropWaiter(cs *classState, ready chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range cs.waiters {
		if w == ready {
			cs.waiters = append(cs.waiters[:i], cs.waiters[i+1:]...)
			return
		}
	}
	// Already handed off to this waiter concurrently with the timeout firing;
	// the slot it was given must be released back since nobody will consume it.
	select {
	case <-ready:
		cs.inFlight--
	default:
	}
}

// Release returns the permit's slot to the pool and records the outcome.
// FIFO hand-off: if a waiter is queued, the freed slot passes directly to
// it rather than being reopened for new TryAcquire calls, preserving
// class-internal FIFO order.
func (p *Permit) Release(ok bool) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	s := p.scheduler
	cs := s.classFor(p.class)

	s.mu.Lock()
	if ok {
		cs.completed++
	} else {
		cs.failed++
	}
	if len(cs.waiters) > 0 {
		next := cs.waiters[0]
		cs.waiters = cs.waiters[1:]
		s.mu.Unlock()
		close(next) // hand the slot off; inFlight count is unchanged
		return
	}
	cs.inFlight--
	s.mu.Unlock()
}

// Stats returns a snapshot of admission counters for class.
func (s *Scheduler) Stats(class JobClass) Stats {
	cs := s.classFor(class)
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		InFlight:  cs.inFlight,
		Queued:    len(cs.waiters),
		Completed: cs.completed,
		Failed:    cs.failed,
		TimedOut:  cs.timedOut,
		Cancelled: cs.cancelled,
	}
}

// Run acquires a permit for class (blocking up to wait), then executes fn
// under a context bounded by the scheduler's configured job timeout. If fn
// has not returned by the deadline, the permit is reclaimed immediately and
// the job is recorded as timed out; fn is expected to observe ctx.Done()
// and return promptly (cooperative cancellation per spec §4.6). A fn that
// ignores cancellation keeps running in the background but its eventual
// Release-equivalent bookkeeping no longer affects scheduler state — it has
// already been counted as timed out.
func (s *Scheduler) Run(ctx context.Context, class JobClass, wait time.Duration, fn func(context.Context) error) error {
	permit, err := s.TryAcquire(ctx, class, wait)
	if err != nil {
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(jobCtx)
	}()

	select {
	case err := <-done:
		permit.Release(err == nil)
		return err
	case <-jobCtx.Done():
		cs := s.classFor(class)
		s.mu.Lock()
		cs.timedOut++
		s.mu.Unlock()
		permit.Release(false)
		if ctx.Err() != nil && jobCtx.Err() == context.Canceled {
			s.mu.Lock()
			cs.cancelled++
			s.mu.Unlock()
			return ctx.Err()
		}
		return &errs.TimedOut{JobClass: string(class), Timeout: s.cfg.JobTimeout.String()}
	}
}
