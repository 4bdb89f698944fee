package transport

import (
	"strings"
	"sync"
	"syscall"

	"github.com/pebbe/zmq4"
)

const defaultSendHWM = 2

// ZMQ sends each payload as one message on a PUSH socket per destination.
// The small send high-water mark plus DONTWAIT makes a slow peer show up as
// ErrSaturated instead of blocking.
type ZMQ struct {
	hwm int

	mu      sync.Mutex
	open    bool
	sockets map[string]*zmq4.Socket
}

func NewZMQ(hwm int) *ZMQ {
	if hwm < 1 {
		hwm = defaultSendHWM
	}
	return &ZMQ{
		hwm:     hwm,
		sockets: make(map[string]*zmq4.Socket),
	}
}

func (z *ZMQ) Open() error {
	z.mu.Lock()
	z.open = true
	z.mu.Unlock()
	return nil
}

// Send accepts either a full ZeroMQ endpoint or host:port, which is dialled
// over tcp.
func (z *ZMQ) Send(payload []byte, addr string) error {
	socket, err := z.socketFor(addr)
	if err != nil {
		return err
	}
	if _, err := socket.SendBytes(payload, zmq4.DONTWAIT); err != nil {
		if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
			return ErrSaturated
		}
		return err
	}
	return nil
}

func (z *ZMQ) socketFor(addr string) (*zmq4.Socket, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.open {
		return nil, ErrClosed
	}
	if socket, ok := z.sockets[addr]; ok {
		return socket, nil
	}

	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	if err := socket.SetSndhwm(z.hwm); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint(addr)); err != nil {
		_ = socket.Close()
		return nil, err
	}
	z.sockets[addr] = socket
	return socket, nil
}

func (z *ZMQ) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	var firstErr error
	for addr, socket := range z.sockets {
		if err := socket.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(z.sockets, addr)
	}
	z.open = false
	return firstErr
}

func endpoint(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}
