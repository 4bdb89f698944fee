package control

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

const DefaultControlRate = 100 * time.Millisecond

var ErrNilSender = errors.New("control: nil sender")

// Sender is the non-blocking datagram sink the heartbeat publishes to.
type Sender interface {
	Publish(payload []byte, addr string)
}

// Heartbeat republishes the latest control state every period whether or
// not it changed, so the receiver sees a steady stream it can use for
// liveness and loss detection.
type Heartbeat struct {
	sender Sender
	codec  Codec
	addr   string
	period time.Duration
	group  *worker.Group

	mu     sync.Mutex
	latest types.ControlState
	has    bool
}

func NewHeartbeat(sender Sender, codec Codec, addr string, period time.Duration) (*Heartbeat, error) {
	if sender == nil {
		return nil, ErrNilSender
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	if period <= 0 {
		period = DefaultControlRate
	}
	h := &Heartbeat{
		sender: sender,
		codec:  codec,
		addr:   addr,
		period: period,
	}
	h.group = worker.New("control-heartbeat")
	h.group.Go("ticker", h.run)
	return h, nil
}

func (h *Heartbeat) Start(ctx context.Context) error {
	return h.group.Start(ctx)
}

func (h *Heartbeat) Stop() error {
	return h.group.Stop()
}

// Set replaces the state sent on subsequent ticks. It is the adapter's
// change callback.
func (h *Heartbeat) Set(state types.ControlState) {
	h.mu.Lock()
	h.latest = state
	h.has = true
	h.mu.Unlock()
}

func (h *Heartbeat) Latest() (types.ControlState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

func (h *Heartbeat) run(ctx context.Context) {
	// A Ticker keeps wall-clock cadence and drops ticks a slow receiver
	// misses instead of bursting them.
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Heartbeat) tick() {
	state, ok := h.Latest()
	if !ok {
		metrics.HeartbeatTicks.WithLabelValues("idle").Inc()
		return
	}
	payload, err := h.codec.Encode(state)
	if err != nil {
		metrics.HeartbeatTicks.WithLabelValues("error").Inc()
		log.Printf("control-heartbeat: encode failed: %v", err)
		return
	}
	h.sender.Publish(payload, h.addr)
	metrics.HeartbeatTicks.WithLabelValues("sent").Inc()
}
