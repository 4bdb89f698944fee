package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"carla-relay-go/internal/encoding"
	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/queue"
	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

const (
	DefaultQueueCapacity = 2
	DefaultPollTimeout   = time.Second
)

var (
	ErrNilSource  = errors.New("relay: nil frame source")
	ErrNilEncoder = errors.New("relay: nil encoder")
	ErrNilSender  = errors.New("relay: nil sender")
)

// FrameSource pushes frames to a callback on its own goroutine.
type FrameSource interface {
	Listen(onFrame func(types.Frame)) error
	StopListening() error
}

type Sender interface {
	Publish(payload []byte, addr string)
}

type Options struct {
	QueueCapacity int
	PollTimeout   time.Duration
	LogEvery      int
	// Preview, if set, receives each encoded payload without blocking.
	Preview chan<- types.EncodedPayload
}

type Stats struct {
	Captured   uint64
	RawDropped uint64
	Encoded    uint64
	EncDropped uint64
	Sent       uint64
}

// Relay moves frames from a source to the network through two drop-oldest
// queues: capture -> raw -> encode -> encoded -> send. A slow encoder or
// socket costs frames, never capture latency.
type Relay struct {
	source  FrameSource
	encoder encoding.Encoder
	sender  Sender
	addr    string

	raw         *queue.DropOldest[types.Frame]
	encoded     *queue.DropOldest[types.EncodedPayload]
	pollTimeout time.Duration
	preview     chan<- types.EncodedPayload
	errLog      *logging.Every

	accepting atomic.Bool
	encodedN  atomic.Uint64
	sentN     atomic.Uint64

	group *worker.Group
}

func New(source FrameSource, enc encoding.Encoder, sender Sender, addr string, opts Options) (*Relay, error) {
	switch {
	case source == nil:
		return nil, ErrNilSource
	case enc == nil:
		return nil, ErrNilEncoder
	case sender == nil:
		return nil, ErrNilSender
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	raw, err := queue.New[types.Frame](opts.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	encoded, err := queue.New[types.EncodedPayload](opts.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	r := &Relay{
		source:      source,
		encoder:     enc,
		sender:      sender,
		addr:        addr,
		raw:         raw,
		encoded:     encoded,
		pollTimeout: opts.PollTimeout,
		preview:     opts.Preview,
		errLog:      logging.NewEvery(opts.LogEvery),
	}
	r.group = worker.New("frame-relay",
		worker.WithSetup(r.setup),
		worker.WithTeardown(r.teardown),
	)
	r.group.Go("encode", worker.Loop(r.encodeStep))
	r.group.Go("send", worker.Loop(r.sendStep))
	return r, nil
}

func (r *Relay) Start(ctx context.Context) error {
	return r.group.Start(ctx)
}

// Stop joins both stage workers and detaches from the source. No frame is
// encoded or sent once Stop returns.
func (r *Relay) Stop() error {
	return r.group.Stop()
}

func (r *Relay) Stats() Stats {
	return Stats{
		Captured:   r.raw.Pushed(),
		RawDropped: r.raw.Dropped(),
		Encoded:    r.encodedN.Load(),
		EncDropped: r.encoded.Dropped(),
		Sent:       r.sentN.Load(),
	}
}

func (r *Relay) setup(context.Context) error {
	r.accepting.Store(true)
	if err := r.source.Listen(r.onFrame); err != nil {
		r.accepting.Store(false)
		return fmt.Errorf("relay: listen: %w", err)
	}
	return nil
}

func (r *Relay) teardown() error {
	r.accepting.Store(false)
	err := r.source.StopListening()
	r.raw.Drain()
	r.encoded.Drain()
	return err
}

// onFrame runs on the source's delivery goroutine and must not block.
func (r *Relay) onFrame(frame types.Frame) {
	if !r.accepting.Load() {
		return
	}
	metrics.ObservePush("raw_frames", r.raw.Push(frame))
}

func (r *Relay) encodeStep(ctx context.Context) {
	frame, ok := r.raw.Pop(ctx, r.pollTimeout)
	if !ok || ctx.Err() != nil {
		return
	}

	start := time.Now()
	payload, err := r.encoder.Encode(frame)
	metrics.EncodeSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EncodeErrors.Inc()
		r.errLog.Printf("frame-relay: encode frame %d failed: %v", frame.Seq, err)
		return
	}
	metrics.FramesEncoded.Inc()
	r.encodedN.Add(1)
	metrics.ObservePush("encoded_frames", r.encoded.Push(payload))

	if r.preview != nil {
		select {
		case r.preview <- payload:
		default:
		}
	}
}

func (r *Relay) sendStep(ctx context.Context) {
	payload, ok := r.encoded.Pop(ctx, r.pollTimeout)
	if !ok || ctx.Err() != nil {
		return
	}
	r.sender.Publish(payload.Data, r.addr)
	r.sentN.Add(1)
}
