// Package portalloc implements the bind/connect-with-fallback port scan
// shared by the measurer (which binds the push port and connects the
// request port) and used to describe the sink's own bind/connect pair.
package portalloc

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrPortsUnavailable is returned once the scan exhausts its attempt
// budget without finding a usable adjacent pair.
var ErrPortsUnavailable = errors.New("portalloc: no usable port pair found")

// PortPair is the push/request port pair a producer binds/connects and a
// sink connects/binds, one port apart.
type PortPair struct {
	PushPort int
	ReqPort  int
}

// Acquire scans attempts consecutive seed offsets starting at seed. For
// each offset n it binds a real TCP listener on seed+n (the push port,
// which the caller keeps and owns for its lifetime) and then probes that
// seed+n+1 (the request port) is currently free.
//
// The request-channel socket in the real zeromq prototype is connected
// "lazily" — a REQ socket's Connect succeeds even before any peer is
// listening, because zeromq retries in the background. A plain Go TCP
// dial has no such laziness, so Acquire only probes that the request port
// is free right now (bind briefly, then release it) rather than
// connecting; the sink's own bind on that port, once it spawns, is the
// authoritative check, exactly as spec.md §4.1 describes.
func Acquire(seed, attempts int) (PortPair, *net.TCPListener, error) {
	for n := 0; n < attempts; n++ {
		pushPort := seed + n
		reqPort := pushPort + 1

		pushLn, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", pushPort))
		if err != nil {
			continue
		}

		reqLn, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", reqPort))
		if err != nil {
			pushLn.Close()
			continue
		}
		reqLn.Close()

		return PortPair{PushPort: pushPort, ReqPort: reqPort}, pushLn.(*net.TCPListener), nil
	}
	return PortPair{}, nil, errors.WithStack(ErrPortsUnavailable)
}
