package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carla-relay-go/internal/config"
	"carla-relay-go/internal/encoding"
	"carla-relay-go/internal/ingest"
	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/output"
	"carla-relay-go/internal/publisher"
	"carla-relay-go/internal/relay"
	"carla-relay-go/internal/server"
	"carla-relay-go/internal/simulator"
	"carla-relay-go/internal/transport"
	"carla-relay-go/internal/types"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	session := uuid.NewString()[:8]
	logCloser := logging.Setup(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Prefix:     "[sensor " + session + "]",
	})
	defer logCloser.Close()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc, err := encoding.New(cfg.FrameCodec, cfg.FrameQuality)
	if err != nil {
		log.Fatalf("encoder: %v", err)
	}

	tr, err := transport.New(cfg.Transport, transport.Options{LocalPort: cfg.LocalPort})
	if err != nil {
		log.Fatalf("transport: %v", err)
	}

	var recorder publisher.Recorder
	if cfg.RawLogEnabled {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "frames")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		log.Printf("recording frame datagrams to %s", writer.Path())
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
		recorder = writer
	}

	pub, err := publisher.New(tr, publisher.Options{
		Name:          "frames",
		QueueCapacity: cfg.QueueCapacity,
		PollTimeout:   cfg.PollTimeout,
		Recorder:      recorder,
		LogEvery:      cfg.LogEvery,
	})
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	if err := pub.Start(ctx); err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer func() {
		if err := pub.Stop(); err != nil {
			log.Printf("publisher stop: %v", err)
		}
	}()

	var source relay.FrameSource
	if cfg.Debug {
		source = simulator.NewFrames(cfg.Width, cfg.Height, cfg.FrameRate)
		log.Printf("using simulated camera %dx%d at %.1f fps", cfg.Width, cfg.Height, cfg.FrameRate)
	} else {
		source = ingest.NewSource(cfg.IngestEndpoint, cfg.PollTimeout, cfg.LogEvery)
		log.Printf("receiving camera frames from %s", cfg.IngestEndpoint)
	}
	log.Printf("camera mount %+v", cfg.SensorTransform)

	var preview chan types.EncodedPayload
	if cfg.MonitorPort > 0 {
		preview = make(chan types.EncodedPayload, 1)
	}

	rl, err := relay.New(source, enc, pub, cfg.PeerAddr(), relay.Options{
		QueueCapacity: cfg.QueueCapacity,
		PollTimeout:   cfg.PollTimeout,
		LogEvery:      cfg.LogEvery,
		Preview:       preview,
	})
	if err != nil {
		log.Fatalf("relay: %v", err)
	}
	if err := rl.Start(ctx); err != nil {
		log.Fatalf("relay: %v", err)
	}
	defer func() {
		if err := rl.Stop(); err != nil {
			log.Printf("relay stop: %v", err)
		}
	}()

	statusFn := func() types.UIStatus {
		stats := rl.Stats()
		return types.UIStatus{
			Type:    "status",
			Session: session,
			Stages: map[string]types.StageStats{
				"raw_frames":     {Pushed: stats.Captured, Dropped: stats.RawDropped},
				"encoded_frames": {Pushed: stats.Encoded, Dropped: stats.EncDropped, Sent: stats.Sent},
				"datagrams":      pub.Stats(),
			},
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MonitorPort > 0 {
		uiMessages := make(chan any, 4)
		g.Go(func() error {
			return server.Run(gctx, cfg, uiMessages, statusFn, nil)
		})
		g.Go(func() error {
			forwardMonitor(gctx, cfg.UIRate, preview, uiMessages, statusFn)
			return nil
		})
		log.Printf("monitor at http://localhost:%d", cfg.MonitorPort)
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	log.Printf("relaying %s frames to %s via %s", enc.Name(), cfg.PeerAddr(), cfg.Transport)
	if err := g.Wait(); err != nil {
		log.Printf("stopped: %v", err)
	}
	stats := rl.Stats()
	log.Printf("shutting down: captured=%d raw_dropped=%d encoded=%d sent=%d",
		stats.Captured, stats.RawDropped, stats.Encoded, stats.Sent)
}

// forwardMonitor pushes preview images as they are encoded and a status
// message every rate. Both are dropped when the monitor falls behind.
func forwardMonitor(ctx context.Context, rate time.Duration, preview <-chan types.EncodedPayload, out chan<- any, statusFn func() types.UIStatus) {
	if rate <= 0 {
		rate = time.Second
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		var message any
		select {
		case <-ctx.Done():
			return
		case payload := <-preview:
			message = payload.Data
		case <-ticker.C:
			message = statusFn()
		}
		select {
		case out <- message:
		default:
		}
	}
}
