package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"carla-relay-go/internal/control"
	"carla-relay-go/internal/encoding"
	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/transport"
)

type counts struct {
	controls int
	frames   int
	unknown  int
	bytes    int
}

func main() {
	var (
		port      = flag.Int("port", 2000, "Port to receive datagrams on")
		kind      = flag.String("transport", "udp", "Transport the sender uses: udp or zmq")
		codecName = flag.String("control-codec", "json", "Control record encoding: json or cbor")
		logEvery  = flag.Int("log-every", 30, "Log every Nth frame")
	)
	flag.Parse()

	codec, err := control.CodecFor(*codecName)
	if err != nil {
		log.Fatalf("control codec: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c counts
	frameLog := logging.NewEvery(*logEvery)
	handle := func(payload []byte) {
		c.bytes += len(payload)
		if info, err := encoding.Describe(payload); err == nil {
			c.frames++
			frameLog.Printf("frame %d: %s %dx%d %d bytes", c.frames, info.Codec, info.Width, info.Height, len(payload))
			return
		}
		state, err := codec.Decode(payload)
		if err != nil {
			c.unknown++
			log.Printf("undecodable %d byte datagram: %v", len(payload), err)
			return
		}
		c.controls++
		fmt.Printf("control throttle=%.2f brake=%.2f steer=%.2f hand_brake=%t reverse=%t reset=%t\n",
			state.Throttle, state.Brake, state.Steer, state.HandBrake, state.Reverse, state.Reset)
	}

	switch *kind {
	case "udp":
		err = listenUDP(ctx, *port, handle)
	case "zmq":
		err = listenZMQ(ctx, *port, handle)
	default:
		err = fmt.Errorf("unsupported transport %q", *kind)
	}
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	fmt.Printf("summary: control=%d frames=%d unknown=%d bytes=%d\n", c.controls, c.frames, c.unknown, c.bytes)
}

func listenUDP(ctx context.Context, port int, handle func([]byte)) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("listening on udp %s", conn.LocalAddr())

	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, transport.MaxDatagramSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload)
	}
}

func listenZMQ(ctx context.Context, port int, handle func([]byte)) error {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return err
	}
	defer socket.Close()
	if err := socket.SetRcvtimeo(time.Second); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("tcp://*:%d", port)
	if err := socket.Bind(endpoint); err != nil {
		return err
	}
	log.Printf("listening on %s", endpoint)

	for ctx.Err() == nil {
		payload, err := socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		handle(payload)
	}
	return nil
}
