package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carla-relay-go/internal/transport"
)

type fakeTransport struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	openErr error
	sendErr error
	sent    []string
	block   chan struct{}
}

func (f *fakeTransport) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeTransport) Send(payload []byte, addr string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, addr+"|"+string(payload))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPublishDeliversThroughDispatchWorker(t *testing.T) {
	ft := &fakeTransport{}
	p, err := New(ft, Options{Name: "test", PollTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	p.Publish([]byte("a"), "peer:1")
	waitFor(t, func() bool { return len(ft.sentCopy()) == 1 })
	p.Publish([]byte("b"), "peer:1")
	waitFor(t, func() bool { return len(ft.sentCopy()) == 2 })

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	got := ft.sentCopy()
	if got[0] != "peer:1|a" || got[1] != "peer:1|b" {
		t.Fatalf("unexpected sends: %v", got)
	}
	if !ft.closed {
		t.Fatalf("transport not closed on stop")
	}
	if stats := p.Stats(); stats.Pushed != 2 || stats.Sent != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSaturationIsSwallowed(t *testing.T) {
	ft := &fakeTransport{sendErr: transport.ErrSaturated}
	p, _ := New(ft, Options{Name: "test", PollTimeout: 20 * time.Millisecond})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Publish([]byte("x"), "peer:1")
	}
	waitFor(t, func() bool { return p.Pending() == 0 })
	if !p.group.Running() {
		t.Fatalf("dispatch worker died after saturation")
	}
}

func TestPublishNeverBlocksWhenTransportStalls(t *testing.T) {
	ft := &fakeTransport{block: make(chan struct{})}
	p, _ := New(ft, Options{Name: "test", QueueCapacity: 2, PollTimeout: 20 * time.Millisecond})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Publish([]byte("x"), "peer:1")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a stalled transport")
	}
	if p.Pending() > 2 {
		t.Fatalf("queue grew past capacity: %d", p.Pending())
	}
	if p.Dropped() == 0 {
		t.Fatalf("expected drops while transport stalled")
	}

	close(ft.block)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if p.Pending() != 0 {
		t.Fatalf("queued datagrams survived stop")
	}
}

func TestOpenErrorPropagates(t *testing.T) {
	wantErr := errors.New("address in use")
	p, _ := New(&fakeTransport{openErr: wantErr}, Options{Name: "test"})
	if err := p.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("unexpected start error: %v", err)
	}
}

type recorder struct {
	mu      sync.Mutex
	records int
}

func (r *recorder) Record([]byte) error {
	r.mu.Lock()
	r.records++
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records
}

func TestRecorderSeesSentDatagrams(t *testing.T) {
	rec := &recorder{}
	p, _ := New(&fakeTransport{}, Options{Name: "test", PollTimeout: 20 * time.Millisecond, Recorder: rec})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer p.Stop()

	p.Publish([]byte("a"), "peer:1")
	waitFor(t, func() bool { return rec.count() == 1 })
}
