// Package executor implements an auto-scaling task pool: it grows
// worker goroutines on demand up to a ceiling and shrinks idle workers
// down to a floor, with a clean drain-on-stop protocol.
//
// Grounded on include/afina/concurrency/Executor.h from the original
// Afina project, corrected for the scaling race the design notes call out:
// workers no longer re-check the spawn condition on every task pickup
// (which could over-provision past high_watermark transiently); instead
// Execute spawns at most one worker per submission, and only when no
// worker was already parked waiting for work.
package executor

import (
	"sync"
	"time"

	"github.com/ravelin-io/kvreactor/internal/crashlog"
)

// Task is an opaque zero-argument unit of work with no observable
// result.
type Task func()

type state int

const (
	stateRun state = iota
	stateStopping
	stateStopped
)

// Config bounds the pool's behavior.
type Config struct {
	LowWatermark  int
	HighWatermark int
	MaxQueueSize  int
	IdleTime      time.Duration
}

// Executor is a FIFO task pool that scales cur_workers between
// LowWatermark and HighWatermark.
type Executor struct {
	cfg Config

	mu         sync.Mutex
	nonEmpty   sync.Cond
	stopped    sync.Cond
	state      state
	queue      []Task
	curWorkers int
	waiters    int // workers currently parked on nonEmpty.Wait
}

// New constructs a stopped executor with the given configuration.
func New(cfg Config) *Executor {
	e := &Executor{cfg: cfg, state: stateStopped}
	e.nonEmpty.L = &e.mu
	e.stopped.L = &e.mu
	return e
}

// Start transitions Stopped -> Run and spawns LowWatermark workers.
// Starting an already-running pool is a no-op.
func (e *Executor) Start() {
	e.mu.Lock()
	if e.state == stateRun {
		e.mu.Unlock()
		return
	}
	e.state = stateRun
	e.curWorkers = 0
	n := e.cfg.LowWatermark
	e.mu.Unlock()

	for i := 0; i < n; i++ {
		e.spawnWorker()
	}
}

func (e *Executor) spawnWorker() {
	e.mu.Lock()
	e.curWorkers++
	e.mu.Unlock()
	crashlog.Go("executor-worker", e.workerLoop)
}

// Execute enqueues task if the pool is running and the queue has room.
// It returns false without enqueueing otherwise (CapacityRejection).
//
// After a successful enqueue, if no worker was parked waiting (so the
// new task would otherwise sit until someone times out a wait) and the
// pool has room to grow, Execute spawns exactly one new worker. This is
// the corrected scaling rule: growth happens at submission time, never
// on every worker's task pickup.
func (e *Executor) Execute(task Task) bool {
	e.mu.Lock()
	if e.state != stateRun || len(e.queue) >= e.cfg.MaxQueueSize {
		e.mu.Unlock()
		return false
	}

	e.queue = append(e.queue, task)
	hadWaiter := e.waiters > 0
	e.nonEmpty.Signal()

	spawn := !hadWaiter && e.curWorkers < e.cfg.HighWatermark
	if spawn {
		e.curWorkers++
	}
	e.mu.Unlock()

	if spawn {
		crashlog.Go("executor-worker", e.workerLoop)
	}
	return true
}

// Stop transitions Run -> Stopping: no further Execute calls are
// accepted, but queued tasks still run to completion. If await is
// true, Stop blocks until every worker has drained and exited
// (Stopped). Calling Stop on an already-Stopped pool is a no-op.
func (e *Executor) Stop(await bool) {
	e.mu.Lock()
	if e.state == stateStopped {
		e.mu.Unlock()
		return
	}
	e.state = stateStopping
	e.nonEmpty.Broadcast()
	if len(e.queue) == 0 && e.curWorkers == 0 {
		e.state = stateStopped
		e.stopped.Broadcast()
	}
	for await && e.state != stateStopped {
		e.stopped.Wait()
	}
	e.mu.Unlock()
}

// OccupancyRatio returns cur_workers / HighWatermark, a lightweight
// health signal with no further pool introspection. Grounded on
// Executor::getSizeRatio in the original source (reimplemented without
// its debug stdout write).
func (e *Executor) OccupancyRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.HighWatermark == 0 {
		return 0
	}
	return float64(e.curWorkers) / float64(e.cfg.HighWatermark)
}

// Stats is a snapshot used by introspection tooling.
type Stats struct {
	CurWorkers    int
	LowWatermark  int
	HighWatermark int
	QueueDepth    int
	MaxQueueSize  int
	Running       bool
}

// Snapshot returns a point-in-time view of the pool's state.
func (e *Executor) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		CurWorkers:    e.curWorkers,
		LowWatermark:  e.cfg.LowWatermark,
		HighWatermark: e.cfg.HighWatermark,
		QueueDepth:    len(e.queue),
		MaxQueueSize:  e.cfg.MaxQueueSize,
		Running:       e.state == stateRun,
	}
}

// workerLoop is the body every worker goroutine runs until it trims
// itself on idle timeout or exits during drain.
func (e *Executor) workerLoop() {
	for {
		task, ok := e.nextTask()
		if !ok {
			return
		}
		e.runTask(task)
	}
}

// nextTask pops the next task, or returns ok=false when this worker
// should exit (idle trim or drain completion). The condition wait
// below emulates a timed condvar wait: a timer parked on a separate
// goroutine acquires the mutex and broadcasts once IdleTime has
// elapsed since this worker began waiting for its next task, like
// pthread_cond_timedwait's deadline in the original source, since
// sync.Cond itself has no timeout.
func (e *Executor) nextTask() (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deadline := time.Now().Add(e.cfg.IdleTime)
	for {
		if len(e.queue) > 0 {
			task := e.queue[0]
			e.queue = e.queue[1:]
			return task, true
		}

		if e.state == stateStopping {
			e.exitDuringDrain()
			return nil, false
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if e.curWorkers > e.cfg.LowWatermark {
				e.curWorkers--
				return nil, false
			}
			deadline = time.Now().Add(e.cfg.IdleTime)
			continue
		}

		e.waiters++
		timer := time.AfterFunc(remaining, func() {
			e.mu.Lock()
			e.nonEmpty.Broadcast()
			e.mu.Unlock()
		})
		e.nonEmpty.Wait()
		timer.Stop()
		e.waiters--
	}
}

// exitDuringDrain decrements curWorkers for a worker exiting while the
// pool is Stopping and the queue is empty, and flips the pool to
// Stopped once the last worker has left. Caller holds e.mu.
func (e *Executor) exitDuringDrain() {
	e.curWorkers--
	if e.curWorkers == 0 {
		e.state = stateStopped
		e.stopped.Broadcast()
	}
}

// runTask executes task outside the pool mutex. A panicking task must
// not kill the worker: it is recovered and reported exactly like any
// other background goroutine crash.
func (e *Executor) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			crashlog.Report(r, "executor-task")
		}
	}()
	task()
}
