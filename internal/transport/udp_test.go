package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func TestUDPSendLoopback(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sender := NewUDP(0, 0)
	if err := sender.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sender.Close()

	payload := []byte(`{"throttle":0.5}`)
	if err := sender.Send(payload, listener.LocalAddr().String()); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("unexpected payload %q", buf[:n])
	}
}

func TestUDPRejectsOversizedPayload(t *testing.T) {
	sender := NewUDP(0, 0)
	if err := sender.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sender.Close()

	err := sender.Send(make([]byte, MaxDatagramSize+1), "127.0.0.1:9")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUDPSendBeforeOpen(t *testing.T) {
	if err := NewUDP(0, 0).Send([]byte("x"), "127.0.0.1:9"); !errors.Is(err, ErrClosed) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewUnknownTransport(t *testing.T) {
	if _, err := New("carrier-pigeon", Options{}); err == nil {
		t.Fatalf("expected error for unknown transport")
	}
}

func TestEndpoint(t *testing.T) {
	if got := endpoint("10.0.0.2:5000"); got != "tcp://10.0.0.2:5000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
	if got := endpoint("ipc:///tmp/relay"); got != "ipc:///tmp/relay" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
