package transport

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

const defaultWriteTimeout = 5 * time.Millisecond

// UDP sends datagrams from one bound local socket. Send is called from a
// single dispatch goroutine; Open and Close may be called from another.
type UDP struct {
	localPort    int
	writeTimeout time.Duration

	mu    sync.Mutex
	conn  *net.UDPConn
	addrs map[string]*net.UDPAddr
}

func NewUDP(localPort int, writeTimeout time.Duration) *UDP {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &UDP{
		localPort:    localPort,
		writeTimeout: writeTimeout,
		addrs:        make(map[string]*net.UDPAddr),
	}
}

func (u *UDP) Open() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: u.localPort})
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()
	return nil
}

// LocalAddr is nil until Open succeeds.
func (u *UDP) LocalAddr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

func (u *UDP) Send(payload []byte, addr string) error {
	if len(payload) > MaxDatagramSize {
		return ErrTooLarge
	}
	u.mu.Lock()
	conn := u.conn
	dst, ok := u.addrs[addr]
	u.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return err
		}
		u.mu.Lock()
		u.addrs[addr] = resolved
		u.mu.Unlock()
		dst = resolved
	}

	_ = conn.SetWriteDeadline(time.Now().Add(u.writeTimeout))
	if _, err := conn.WriteToUDP(payload, dst); err != nil {
		if isSaturation(err) {
			return ErrSaturated
		}
		return err
	}
	return nil
}

func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

func isSaturation(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	return errors.Is(err, syscall.ENOBUFS) || errors.Is(err, syscall.EAGAIN)
}
