// Package transport provides the reliable, ordered byte streams both
// extension roles talk over.
package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
)

const (
	network = "tcp"
	address = "127.0.0.1:0"
)

// Loopback opens a TCP session on the loopback interface. The server
// end is the accepted connection, the client end is the dialed one.
// Nagle is left enabled on both ends since correction batches are
// written as a single frame.
func Loopback(ctx context.Context) (server, client net.Conn, err error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, nil, fmt.Errorf("net listen encountered error: %w", err)
	}
	defer l.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return fmt.Errorf("cannot create connection in listen accept: %w", err)
		}
		server = conn
		return nil
	})
	g.Go(func() error {
		var d net.Dialer
		conn, err := d.DialContext(gctx, network, l.Addr().String())
		if err != nil {
			// unblock Accept
			l.Close()
			return fmt.Errorf("cannot dial: %w", err)
		}
		client = conn
		return nil
	})

	if err := g.Wait(); err != nil {
		if server != nil {
			server.Close()
		}
		if client != nil {
			client.Close()
		}
		return nil, nil, err
	}

	for _, c := range []net.Conn{server, client} {
		if tcp, ok := c.(*net.TCPConn); ok {
			tcp.SetNoDelay(false)
		}
	}

	return server, client, nil
}
