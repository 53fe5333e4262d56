package conn

import "github.com/pkg/errors"

// ErrWouldBlock is returned by a Transport when the underlying socket
// has no more data to read or no more buffer space to write right
// now — the non-blocking equivalent of EAGAIN/EWOULDBLOCK. It is not
// a connection error: the reactor simply waits for the next readiness
// event.
var ErrWouldBlock = errors.New("would block")

// ErrPeerClosed is returned by Transport.Writev on EPIPE: the peer
// closed its read side while data was still queued for it. This is a
// soft close, not a transport fault — it still marks the connection
// not-alive, but DoWrite must not log it as a write error.
var ErrPeerClosed = errors.New("peer closed")
