package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

// Source receives camera frames from the simulation host on a ZeroMQ PULL
// socket. Messages are CBOR maps shaped like:
// { "type": "image", "seq": <int>, "timestamp": <float>, "width": <int>,
//   "height": <int>, "format": "bgra", "data": <bytes> }
type Source struct {
	endpoint    string
	pollTimeout time.Duration
	logEvery    *logging.Every

	listenMu sync.Mutex
	mu       sync.Mutex
	socket   *zmq4.Socket
	onFrame  func(types.Frame)
	group    *worker.Group
}

func NewSource(endpoint string, pollTimeout time.Duration, logEvery int) *Source {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	s := &Source{
		endpoint:    endpoint,
		pollTimeout: pollTimeout,
		logEvery:    logging.NewEvery(logEvery),
	}
	s.group = worker.New("ingest", worker.WithTeardown(s.closeSocket))
	s.group.Go("recv", worker.Loop(s.recvStep))
	return s
}

// Listen connects the socket and starts delivering frames to onFrame from
// the receive goroutine. A second call while listening fails with
// worker.ErrAlreadyStarted and leaves the running socket in place.
func (s *Source) Listen(onFrame func(types.Frame)) error {
	if onFrame == nil {
		return errors.New("ingest: nil frame callback")
	}
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.group.Running() {
		return fmt.Errorf("ingest: %w", worker.ErrAlreadyStarted)
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return err
	}
	// The receive timeout bounds how long the loop goes without checking
	// for cancellation.
	if err := socket.SetRcvtimeo(s.pollTimeout); err != nil {
		_ = socket.Close()
		return err
	}
	if err := socket.SetRcvhwm(2); err != nil {
		_ = socket.Close()
		return err
	}
	if err := socket.Connect(s.endpoint); err != nil {
		_ = socket.Close()
		return fmt.Errorf("ingest: connect %s: %w", s.endpoint, err)
	}

	s.mu.Lock()
	s.socket = socket
	s.onFrame = onFrame
	s.mu.Unlock()

	if err := s.group.Start(context.Background()); err != nil {
		s.mu.Lock()
		if s.socket == socket {
			s.socket = nil
			s.onFrame = nil
		}
		s.mu.Unlock()
		_ = socket.Close()
		return err
	}
	return nil
}

func (s *Source) StopListening() error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	return s.group.Stop()
}

func (s *Source) recvStep(ctx context.Context) {
	s.mu.Lock()
	socket := s.socket
	onFrame := s.onFrame
	s.mu.Unlock()

	msg, err := socket.RecvBytes(0)
	if err != nil {
		if zmq4.AsErrno(err) != zmq4.Errno(syscall.EAGAIN) {
			s.logEvery.Printf("ingest recv error: %v", err)
			metrics.IngestMessages.WithLabelValues("recv_error").Inc()
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	frame, err := DecodeFrame(msg)
	if err != nil {
		metrics.IngestMessages.WithLabelValues("decode_error").Inc()
		s.logEvery.Printf("ingest decode skipped message: %v", err)
		return
	}
	metrics.IngestMessages.WithLabelValues("frame").Inc()
	onFrame(frame)
}

func (s *Source) closeSocket() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	s.onFrame = nil
	return err
}

// DecodeFrame parses one CBOR frame message.
func DecodeFrame(msg []byte) (types.Frame, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return types.Frame{}, fmt.Errorf("CBOR decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	if msgType != "image" {
		return types.Frame{}, fmt.Errorf("ignoring message type %q", msgType)
	}

	seq, err := toInt(payload["seq"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid seq: %w", err)
	}
	width, err := toInt(payload["width"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid width: %w", err)
	}
	height, err := toInt(payload["height"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid height: %w", err)
	}

	format := types.FormatBGRA
	if raw, ok := payload["format"].(string); ok && raw != "" {
		format = types.PixelFormat(strings.ToLower(raw))
	}
	if format.BytesPerPixel() == 0 {
		return types.Frame{}, fmt.Errorf("unsupported pixel format %q", format)
	}

	data, err := extractPixels(payload["data"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid data: %w", err)
	}
	if want := width * height * format.BytesPerPixel(); len(data) != want {
		return types.Frame{}, fmt.Errorf("frame %d: %d bytes, want %d", seq, len(data), want)
	}

	captured := time.Now()
	if v, ok := payload["timestamp"]; ok {
		if ts, err := toFloat(v); err == nil {
			sec, frac := math.Modf(ts)
			captured = time.Unix(int64(sec), int64(frac*1e9))
		}
	}

	return types.Frame{
		Seq:      uint64(seq),
		Width:    width,
		Height:   height,
		Format:   format,
		Data:     data,
		Captured: captured,
	}, nil
}
