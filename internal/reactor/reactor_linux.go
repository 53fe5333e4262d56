//go:build linux

package reactor

import (
	"log"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ravelin-io/kvreactor/internal/conn"
	"github.com/ravelin-io/kvreactor/internal/crashlog"
)

// SingleThreaded is the one-thread, one-epoll-instance reactor: no
// shared mutable state beyond the reactor loop itself, so Store is
// touched only from this goroutine and needs no external
// synchronization (spec.md §5's single-threaded variant).
type SingleThreaded struct {
	cfg     Config
	store   Store
	life    Lifecycle
	limiter *rateLimiter

	epfd     int
	listenFd int
	conns    map[int32]*connState

	// pending and pendingMu exist only for the multi-threaded reactor:
	// the shared accept loop appends fds here and this worker's own
	// goroutine drains them into conns, keeping conns single-owner.
	pending   []int
	pendingMu sync.Mutex
}

type connState struct {
	id string
	c  *conn.Connection
	fd int32
}

// NewSingleThreaded builds a reactor bound to cfg.ListenAddr, ready to
// Run. life may be nil (NopLifecycle is used then).
func NewSingleThreaded(cfg Config, store Store, life Lifecycle) (*SingleThreaded, error) {
	if life == nil {
		life = NopLifecycle{}
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}

	s := &SingleThreaded{
		cfg:     cfg,
		store:   store,
		life:    life,
		limiter: newRateLimiter(cfg),
		epfd:    epfd,
		conns:   make(map[int32]*connState),
	}
	return s, nil
}

func (s *SingleThreaded) Close() error {
	if s.listenFd != 0 {
		unix.Close(s.listenFd)
	}
	return unix.Close(s.epfd)
}

// Run listens on cfg.ListenAddr and services readiness events until
// stop is closed.
func (s *SingleThreaded) Run(stop <-chan struct{}) error {
	lfd, err := listen(s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listenFd = lfd
	defer unix.Close(lfd)

	if err := epollAdd(s.epfd, lfd, unix.EPOLLIN); err != nil {
		return err
	}

	events := make([]unix.EpollEvent, 128)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := unix.EpollWait(s.epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if int(ev.Fd) == lfd {
				s.acceptLoop(lfd)
				continue
			}
			s.handleReady(ev)
		}
	}
}

func (s *SingleThreaded) acceptLoop(lfd int) {
	for {
		if !s.limiter.Allow() {
			return
		}
		fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK)
		if err != nil {
			return // EAGAIN or transient: stop accepting this pass
		}
		s.registerConn(fd)
	}
}

func (s *SingleThreaded) registerConn(fd int) {
	transport := conn.NewFDTransport(fd)
	c := conn.New(fd, transport, s.store)
	interest := c.Start()

	cs := &connState{id: c.ID.String(), c: c, fd: int32(fd)}
	s.conns[int32(fd)] = cs

	if err := epollAdd(s.epfd, fd, interestToEpoll(interest)); err != nil {
		log.Printf("reactor: epoll add failed for fd %d: %v", fd, err)
		s.closeConn(cs)
		return
	}
	s.life.OnOpen(cs.id, fd, c)
}

func (s *SingleThreaded) handleReady(ev unix.EpollEvent) {
	cs, ok := s.conns[ev.Fd]
	if !ok {
		return
	}

	if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 && ev.Events&unix.EPOLLIN == 0 {
		if ev.Events&unix.EPOLLERR != 0 {
			cs.c.OnError()
		} else {
			cs.c.OnClose()
		}
		s.closeConn(cs)
		return
	}

	var interest conn.Interest
	if ev.Events&unix.EPOLLIN != 0 {
		interest = cs.c.DoRead()
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		interest = cs.c.DoWrite()
	}

	if !cs.c.IsAlive() {
		s.closeConn(cs)
		return
	}

	if err := epollMod(s.epfd, int(cs.fd), interestToEpoll(interest)); err != nil {
		log.Printf("reactor: epoll mod failed for fd %d: %v", cs.fd, err)
		s.closeConn(cs)
	}
}

func (s *SingleThreaded) closeConn(cs *connState) {
	delete(s.conns, cs.fd)
	unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, int(cs.fd), nil)
	unix.Close(int(cs.fd))
	s.life.OnClose(cs.id)
}

func listen(addr string) (int, error) {
	sa, err := resolveAddr(addr)
	if err != nil {
		return 0, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func epollAdd(epfd, fd int, events uint32) error {
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func epollMod(epfd, fd int, events uint32) error {
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func interestToEpoll(i conn.Interest) uint32 {
	var ev uint32
	if i&conn.InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if i&conn.InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if i&conn.InterestHUP != 0 {
		ev |= unix.EPOLLHUP
	}
	if i&conn.InterestErr != 0 {
		ev |= unix.EPOLLERR
	}
	return ev
}

// safeGo is retained so reactor workers (used by the multi-threaded
// variant) crash-report like every other background goroutine.
func safeGo(name string, fn func()) { crashlog.Go(name, fn) }
