package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/queue"
	"carla-relay-go/internal/transport"
	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

const (
	DefaultQueueCapacity = 2
	DefaultPollTimeout   = time.Second
)

// Recorder receives a copy of every datagram handed to the transport.
type Recorder interface {
	Record(payload []byte) error
}

type Options struct {
	Name          string
	QueueCapacity int
	PollTimeout   time.Duration
	Recorder      Recorder
	LogEvery      int
}

type datagram struct {
	payload []byte
	addr    string
}

// Publisher decouples producers from socket I/O: Publish only enqueues,
// and a single dispatch worker performs the writes.
type Publisher struct {
	name        string
	transport   transport.Transport
	queue       *queue.DropOldest[datagram]
	pollTimeout time.Duration
	recorder    Recorder
	errLog      *logging.Every
	group       *worker.Group
	sent        atomic.Uint64
}

func New(t transport.Transport, opts Options) (*Publisher, error) {
	if t == nil {
		return nil, errors.New("publisher: nil transport")
	}
	if opts.Name == "" {
		opts.Name = "publisher"
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	q, err := queue.New[datagram](opts.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("publisher %s: %w", opts.Name, err)
	}

	p := &Publisher{
		name:        opts.Name,
		transport:   t,
		queue:       q,
		pollTimeout: opts.PollTimeout,
		recorder:    opts.Recorder,
		errLog:      logging.NewEvery(opts.LogEvery),
	}
	p.group = worker.New(opts.Name,
		worker.WithSetup(func(context.Context) error {
			if err := t.Open(); err != nil {
				return fmt.Errorf("publisher %s: open transport: %w", opts.Name, err)
			}
			return nil
		}),
		worker.WithTeardown(p.teardown),
	)
	p.group.Go("dispatch", worker.Loop(p.dispatch))
	return p, nil
}

func (p *Publisher) Start(ctx context.Context) error {
	return p.group.Start(ctx)
}

// Stop halts the dispatch worker and closes the transport. Datagrams still
// queued are discarded.
func (p *Publisher) Stop() error {
	return p.group.Stop()
}

// Publish enqueues payload for addr without blocking. When the queue is
// full the oldest pending datagram is dropped.
func (p *Publisher) Publish(payload []byte, addr string) {
	evicted := p.queue.Push(datagram{payload: payload, addr: addr})
	metrics.ObservePush(p.name, evicted)
}

func (p *Publisher) Pending() int {
	return p.queue.Len()
}

func (p *Publisher) Dropped() uint64 {
	return p.queue.Dropped()
}

// Stats counts queue evictions as drops. Datagrams refused by the transport
// only show up in metrics.
func (p *Publisher) Stats() types.StageStats {
	return types.StageStats{
		Pushed:  p.queue.Pushed(),
		Dropped: p.queue.Dropped(),
		Sent:    p.sent.Load(),
	}
}

func (p *Publisher) dispatch(ctx context.Context) {
	d, ok := p.queue.Pop(ctx, p.pollTimeout)
	if !ok || ctx.Err() != nil {
		return
	}

	err := p.transport.Send(d.payload, d.addr)
	switch {
	case err == nil:
		p.sent.Add(1)
		metrics.DatagramsSent.WithLabelValues(p.name).Inc()
		metrics.DatagramBytes.WithLabelValues(p.name).Add(float64(len(d.payload)))
		if p.recorder != nil {
			if rerr := p.recorder.Record(d.payload); rerr != nil {
				p.errLog.Printf("%s: raw log write failed: %v", p.name, rerr)
			}
		}
	case errors.Is(err, transport.ErrSaturated):
		metrics.DatagramsDropped.WithLabelValues(p.name, "saturated").Inc()
	case errors.Is(err, transport.ErrTooLarge):
		metrics.DatagramsDropped.WithLabelValues(p.name, "too_large").Inc()
		p.errLog.Printf("%s: dropped %d byte datagram: %v", p.name, len(d.payload), err)
	default:
		metrics.DatagramsDropped.WithLabelValues(p.name, "error").Inc()
		p.errLog.Printf("%s: send to %s failed: %v", p.name, d.addr, err)
	}
}

func (p *Publisher) teardown() error {
	discarded := len(p.queue.Drain())
	if discarded > 0 {
		metrics.DatagramsDropped.WithLabelValues(p.name, "shutdown").Add(float64(discarded))
	}
	return p.transport.Close()
}
