package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxDatagramSize is the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

var (
	// ErrSaturated means the transport cannot take the payload right now.
	// Callers drop it and move on.
	ErrSaturated = errors.New("transport saturated")
	ErrTooLarge  = errors.New("payload exceeds datagram limit")
	ErrClosed    = errors.New("transport closed")
)

// Transport is an unreliable datagram sender.
type Transport interface {
	Open() error
	Send(payload []byte, addr string) error
	Close() error
}

type Options struct {
	LocalPort    int
	WriteTimeout time.Duration
	SendHWM      int
}

// New builds the transport named kind ("udp" or "zmq").
func New(kind string, opts Options) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "udp":
		return NewUDP(opts.LocalPort, opts.WriteTimeout), nil
	case "zmq", "zeromq":
		return NewZMQ(opts.SendHWM), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", kind)
	}
}
