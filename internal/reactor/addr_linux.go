//go:build linux

package reactor

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolveAddr turns a "host:port" or ":port" string into a raw IPv4
// sockaddr, since the reactor binds straight to a socket fd rather
// than going through net.Listen.
func resolveAddr(addr string) (unix.Sockaddr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	sa := &unix.SockaddrInet4{Port: port}
	if host == "" {
		sa.Addr = [4]byte{0, 0, 0, 0}
		return sa, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, err
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}
