package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carla-relay-go/internal/config"
	"carla-relay-go/internal/control"
	"carla-relay-go/internal/device"
	"carla-relay-go/internal/logging"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/output"
	"carla-relay-go/internal/publisher"
	"carla-relay-go/internal/server"
	"carla-relay-go/internal/simulator"
	"carla-relay-go/internal/transport"
	"carla-relay-go/internal/types"
)

type inputSource interface {
	Capabilities() control.Capabilities
	Run(ctx context.Context, handle func(control.InputEvent)) error
}

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
		Prefix:     "[controller " + session + "]",
	})
	defer logCloser.Close()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := control.CodecFor(cfg.ControlCodec)
	if err != nil {
		log.Fatalf("control codec: %v", err)
	}

	tr, err := transport.New(cfg.Transport, transport.Options{LocalPort: cfg.LocalPort})
	if err != nil {
		log.Fatalf("transport: %v", err)
	}

	var recorder publisher.Recorder
	if cfg.RawLogEnabled {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "control")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		log.Printf("recording control datagrams to %s", writer.Path())
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
		recorder = writer
	}

	pub, err := publisher.New(tr, publisher.Options{
		Name:          "control",
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

	heartbeat, err := control.NewHeartbeat(pub, codec, cfg.PeerAddr(), cfg.ControlRate)
	if err != nil {
		log.Fatalf("heartbeat: %v", err)
	}

	var input inputSource
	if cfg.Debug {
		input = simulator.NewInputs(cfg.ControllerIndex, control.DefaultLayout, 0)
		log.Printf("using simulated gamepad %d", cfg.ControllerIndex)
	} else {
		js, err := device.Open(cfg.ControllerIndex, cfg.DevicePath)
		if err != nil {
			log.Fatalf("gamepad: %v", err)
		}
		defer js.Close()
		input = js
		log.Printf("reading gamepad %d from %s", cfg.ControllerIndex, js.Path())
	}

	var latestMu sync.Mutex
	var latest *types.ControlState
	adapter, err := control.NewAdapter(cfg.ControllerIndex, control.DefaultLayout, input.Capabilities(), func(state types.ControlState) {
		heartbeat.Set(state)
		latestMu.Lock()
		latest = &state
		latestMu.Unlock()
	})
	if err != nil {
		log.Fatalf("adapter: %v", err)
	}

	if err := heartbeat.Start(ctx); err != nil {
		log.Fatalf("heartbeat: %v", err)
	}
	defer func() {
		if err := heartbeat.Stop(); err != nil {
			log.Printf("heartbeat stop: %v", err)
		}
	}()

	statusFn := func() types.UIStatus {
		latestMu.Lock()
		defer latestMu.Unlock()
		return types.UIStatus{
			Type:    "status",
			Session: session,
			Stages:  map[string]types.StageStats{"control": pub.Stats()},
			Control: latest,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := input.Run(gctx, func(ev control.InputEvent) { adapter.HandleEvent(ev) }); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("input device closed")
		}
		return nil
	})
	if cfg.MonitorPort > 0 {
		uiMessages := make(chan any, 4)
		g.Go(func() error {
			return server.Run(gctx, cfg, uiMessages, statusFn, nil)
		})
		g.Go(func() error {
			pushStatus(gctx, cfg.UIRate, uiMessages, statusFn)
			return nil
		})
		log.Printf("monitor at http://localhost:%d", cfg.MonitorPort)
	}

	log.Printf("sending control to %s via %s every %s", cfg.PeerAddr(), cfg.Transport, cfg.ControlRate)
	if err := g.Wait(); err != nil {
		log.Printf("stopped: %v", err)
	}
	log.Printf("shutting down")
}

func pushStatus(ctx context.Context, rate time.Duration, out chan<- any, statusFn func() types.UIStatus) {
	if rate <= 0 {
		rate = time.Second
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- statusFn():
			default:
			}
		}
	}
}
