//go:build linux

package conn

import (
	"golang.org/x/sys/unix"
)

// FDTransport drives a Connection directly over a raw, non-blocking
// socket fd using read(2)/writev(2), for the epoll-based reactor.
type FDTransport struct {
	fd int
}

// NewFDTransport wraps fd, which the caller must already have put in
// non-blocking mode (unix.SetNonblock).
func NewFDTransport(fd int) *FDTransport { return &FDTransport{fd: fd} }

func (t *FDTransport) Read(buf []byte) (int, error) {
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (t *FDTransport) Writev(bufs [][]byte) (int, error) {
	iovs := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			iovs = append(iovs, b)
		}
	}
	if len(iovs) == 0 {
		return 0, nil
	}

	n, err := unix.Writev(t.fd, iovs)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, ErrWouldBlock
		}
		if err == unix.EPIPE {
			return 0, ErrPeerClosed
		}
		return 0, err
	}
	return n, nil
}
