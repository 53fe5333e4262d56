//go:build linux

package reactor

import (
	"log"
	"sync"

	"golang.org/x/sys/unix"
)

// MultiThreaded runs one accept loop plus a fixed pool of worker
// threads, each owning a disjoint epoll instance and a disjoint set of
// connections (spec.md §5's multi-threaded variant). The store is
// shared across workers and must be externally serialized by the
// caller (a single mutex guarding Store, or per-shard stores) — this
// package only guarantees that any one Connection is ever touched by
// exactly one worker goroutine.
type MultiThreaded struct {
	cfg     Config
	store   Store
	life    Lifecycle
	limiter *rateLimiter

	listenFd int
	workers  []*SingleThreaded
	next     uint64
	nextMu   sync.Mutex
}

// NewMultiThreaded builds cfg.Workers worker reactors sharing store
// and accept-rate limiting, ready to Run.
func NewMultiThreaded(cfg Config, store Store, life Lifecycle) (*MultiThreaded, error) {
	if life == nil {
		life = NopLifecycle{}
	}
	n := cfg.Workers
	if n < 1 {
		n = 1
	}

	m := &MultiThreaded{
		cfg:     cfg,
		store:   store,
		life:    life,
		limiter: newRateLimiter(cfg),
		workers: make([]*SingleThreaded, n),
	}

	for i := range m.workers {
		epfd, err := unix.EpollCreate1(0)
		if err != nil {
			return nil, err
		}
		m.workers[i] = &SingleThreaded{
			cfg:     cfg,
			store:   store,
			life:    life,
			limiter: m.limiter,
			epfd:    epfd,
			conns:   make(map[int32]*connState),
		}
	}
	return m, nil
}

// Run listens on cfg.ListenAddr, fanning accepted connections round-
// robin across the worker pool, and blocks until stop is closed.
func (m *MultiThreaded) Run(stop <-chan struct{}) error {
	lfd, err := listen(m.cfg.ListenAddr)
	if err != nil {
		return err
	}
	m.listenFd = lfd
	defer unix.Close(lfd)

	var wg sync.WaitGroup
	workerStop := make(chan struct{})
	for i, w := range m.workers {
		w := w
		idx := i
		wg.Add(1)
		safeGo("reactor-worker", func() {
			defer wg.Done()
			if err := w.runWithoutListener(workerStop); err != nil {
				log.Printf("reactor worker %d exited: %v", idx, err)
			}
		})
	}

	m.acceptLoop(lfd, stop)
	close(workerStop)
	wg.Wait()
	return nil
}

func (m *MultiThreaded) acceptLoop(lfd int, stop <-chan struct{}) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		log.Printf("reactor: accept epoll create failed: %v", err)
		return
	}
	defer unix.Close(epfd)
	if err := epollAdd(epfd, lfd, unix.EPOLLIN); err != nil {
		log.Printf("reactor: accept epoll add failed: %v", err)
		return
	}

	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.EpollWait(epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			for m.limiter.Allow() {
				fd, _, aerr := unix.Accept4(lfd, unix.SOCK_NONBLOCK)
				if aerr != nil {
					break
				}
				m.dispatch(fd)
			}
		}
	}
}

// dispatch hands fd to the next worker round-robin. The worker's
// registration happens on its own epoll instance from its own
// goroutine the next time its loop wakes — we just seed the fd here
// under a small critical section since registerConn itself is not
// safe to call cross-goroutine (each SingleThreaded.conns map is
// worker-owned).
func (m *MultiThreaded) dispatch(fd int) {
	m.nextMu.Lock()
	idx := m.next % uint64(len(m.workers))
	m.next++
	m.nextMu.Unlock()

	w := m.workers[idx]
	w.pendingMu.Lock()
	w.pending = append(w.pending, fd)
	w.pendingMu.Unlock()
}

// runWithoutListener is the worker loop body, identical to
// SingleThreaded.Run's event servicing but without an accept
// responsibility: new fds arrive via pending, appended by the shared
// dispatch accept loop.
func (s *SingleThreaded) runWithoutListener(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, 128)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		s.drainPending()

		n, err := unix.EpollWait(s.epfd, events, 50)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		for i := 0; i < n; i++ {
			s.handleReady(events[i])
		}
	}
}

func (s *SingleThreaded) drainPending() {
	s.pendingMu.Lock()
	fds := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	for _, fd := range fds {
		s.registerConn(fd)
	}
}
