package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/server/database"
	"github.com/circa10a/countdown/internal/timer"
)

const notificationQueueSize = 64

// Worker owns every write to the timer store. It runs the refresh loop:
// each interval it loads the snapshot, ticks, applies the mutations that were
// queued meanwhile, saves once, and only then publishes the expiries.
// Mutations submitted while the worker is idle are applied right away as
// their own load, apply, save cycle, so a new timer is never decremented in
// the cycle that created it.
type Worker struct {
	Store    database.Store
	Interval time.Duration
	Logger   *slog.Logger
	Events   *EventLog
	Notifier Notifier
	Metrics  *Metrics

	once          sync.Once
	requests      chan request
	notifications chan api.Expiry
	// notices holds the timers that expired in the latest tick.
	// Only the worker goroutine touches it.
	notices map[string]bool
}

type request struct {
	op    timer.Op // nil for a read
	reply chan result
}

type result struct {
	timers timer.Set
	err    error
}

func (w *Worker) init() {
	w.once.Do(func() {
		w.requests = make(chan request)
		w.notifications = make(chan api.Expiry, notificationQueueSize)
		w.notices = map[string]bool{}
		if w.Logger == nil {
			w.Logger = slog.Default()
		}
	})
}

// Start begins the worker's processing loop and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.init()

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.Info("Starting timer worker", "interval", w.Interval.String())

	if w.Notifier != nil {
		go w.deliver(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Stopping timer worker")
			return
		case <-ticker.C:
			w.cycle(ctx, true, w.drain())
		case req := <-w.requests:
			w.cycle(ctx, false, []request{req})
		}
	}
}

// Submit applies op in the worker and returns the resulting timers.
// If ctx ends after the op was handed over, the op may still be applied.
func (w *Worker) Submit(ctx context.Context, op timer.Op) (timer.Set, error) {
	return w.do(ctx, op)
}

// Timers returns the current timers, with the expiry notice of the latest tick.
func (w *Worker) Timers(ctx context.Context) (timer.Set, error) {
	return w.do(ctx, nil)
}

func (w *Worker) do(ctx context.Context, op timer.Op) (timer.Set, error) {
	w.init()

	req := request{op: op, reply: make(chan result, 1)}

	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.timers, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain collects the requests already waiting without blocking.
func (w *Worker) drain() []request {
	var reqs []request
	for {
		select {
		case req := <-w.requests:
			reqs = append(reqs, req)
		default:
			return reqs
		}
	}
}

// cycle runs one load, (tick,) apply, save pass and answers reqs.
func (w *Worker) cycle(ctx context.Context, tick bool, reqs []request) {
	w.init()

	snap, err := w.Store.Load(ctx)
	if err != nil {
		w.Metrics.observeFailure("load")
		w.Logger.Error("Failed to load timers", "error", err)
		w.replyAll(reqs, err)
		return
	}

	ops := []timer.Op{}
	opIndex := make([]int, len(reqs))
	for i, req := range reqs {
		opIndex[i] = -1
		if req.op != nil {
			opIndex[i] = len(ops)
			ops = append(ops, req.op)
		}
	}

	var (
		next    timer.Set
		expired []timer.ExpiredEvent
		errs    []error
	)
	if tick {
		next, expired, errs = timer.Step(snap.Timers, ops...)
	} else {
		next, errs = timer.Apply(snap.Timers, ops...)
	}

	if !next.Equal(snap.Timers) {
		_, err = w.Store.Save(ctx, database.Snapshot{Timers: next, Revision: snap.Revision})
		if err != nil {
			w.Metrics.observeFailure("save")
			w.Logger.Error("Failed to save timers", "error", err)
			w.replyAll(reqs, err)
			return
		}
	}

	if tick {
		w.Metrics.observeTick()
		w.notices = make(map[string]bool, len(expired))
		for _, ev := range expired {
			w.notices[ev.Name] = true
		}
		w.publish(ctx, expired)
	}

	w.observeTimers(next)

	view := w.withNotices(next)
	for i, req := range reqs {
		res := result{timers: view}
		if opIndex[i] >= 0 {
			res.err = errs[opIndex[i]]
		}
		req.reply <- res
	}
}

// publish records the expiries and queues their notifications.
func (w *Worker) publish(ctx context.Context, expired []timer.ExpiredEvent) {
	if len(expired) == 0 {
		return
	}

	var recorded []api.Expiry
	if w.Events != nil {
		recorded = w.Events.Record(time.Now(), expired)
	} else {
		for _, ev := range expired {
			recorded = append(recorded, api.Expiry{Name: ev.Name, Loop: ev.Loop, ExpiredAt: time.Now()})
		}
	}

	for _, e := range recorded {
		w.Metrics.observeExpiry(e.Loop)
		w.Logger.Info("Timer expired", "name", e.Name, "loop", e.Loop)

		if w.Notifier == nil {
			continue
		}

		select {
		case w.notifications <- e:
		case <-ctx.Done():
			return
		default:
			w.Logger.Warn("Notification queue full, dropping alert", "name", e.Name)
		}
	}
}

// deliver sends queued notifications until ctx is done.
func (w *Worker) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-w.notifications:
			err := w.Notifier.Notify(e)
			if err != nil {
				w.Logger.Error("Failed to send expiry notification", "name", e.Name, "error", err)
				continue
			}
			w.Logger.Debug("Notification sent successfully", "name", e.Name)
		}
	}
}

func (w *Worker) withNotices(s timer.Set) timer.Set {
	view := s.Clone()
	for name, t := range view {
		t.NoticePending = w.notices[name]
		view[name] = t
	}
	return view
}

func (w *Worker) observeTimers(s timer.Set) {
	active := 0
	for _, t := range s {
		if t.Active {
			active++
		}
	}
	w.Metrics.observeTimers(active, len(s)-active)
}

func (w *Worker) replyAll(reqs []request, err error) {
	for _, req := range reqs {
		req.reply <- result{err: err}
	}
}
