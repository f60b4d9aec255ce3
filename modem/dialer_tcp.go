package modem

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// TCPDialer reaches a modem whose serial line is exported over TCP, for
// example by ser2net or a modem emulator. Speed changes are not supported
// on such links and are ignored by the modem.
type TCPDialer struct {
	Address string
}

func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("sim800: context is nil")
	}
	if d.Address == "" {
		return nil, errors.New("sim800: tcp address is required")
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("sim800: dial %s: %w", d.Address, err)
	}
	return &tcpTransport{Conn: conn}, nil
}

type tcpTransport struct {
	net.Conn
}

// Read polls the connection for at most one tick.
func (t *tcpTransport) Read(p []byte) (int, error) {
	if err := t.Conn.SetReadDeadline(time.Now().Add(serialReadTimeout)); err != nil {
		return 0, err
	}
	n, err := t.Conn.Read(p)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, nil
	}
	return n, err
}
