package config

import (
	"flag"
)

// Flags binds command-line flags for AppConfig. Resolution order is
// defaults, then the -config file, then flags given explicitly.
type Flags struct {
	fs      *flag.FlagSet
	path    string
	scratch AppConfig
	apply   map[string]func(dst, src *AppConfig)
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, scratch: Defaults(), apply: make(map[string]func(dst, src *AppConfig))}
	s := &f.scratch

	fs.StringVar(&f.path, "config", "", "YAML config file")

	fs.StringVar(&s.PeerHost, "peer-host", s.PeerHost, "Host receiving control and frame datagrams")
	f.on("peer-host", func(dst, src *AppConfig) { dst.PeerHost = src.PeerHost })
	fs.IntVar(&s.PeerPort, "peer-port", s.PeerPort, "Destination port on the peer")
	f.on("peer-port", func(dst, src *AppConfig) { dst.PeerPort = src.PeerPort })
	fs.IntVar(&s.LocalPort, "local-port", s.LocalPort, "Local port to bind (0 picks one)")
	f.on("local-port", func(dst, src *AppConfig) { dst.LocalPort = src.LocalPort })
	fs.StringVar(&s.Transport, "transport", s.Transport, "Datagram transport: udp or zmq")
	f.on("transport", func(dst, src *AppConfig) { dst.Transport = src.Transport })

	fs.DurationVar(&s.ControlRate, "control-rate", s.ControlRate, "Control heartbeat period")
	f.on("control-rate", func(dst, src *AppConfig) { dst.ControlRate = src.ControlRate })
	fs.Float64Var(&s.FrameRate, "frame-rate", s.FrameRate, "Camera frames per second")
	f.on("frame-rate", func(dst, src *AppConfig) { dst.FrameRate = src.FrameRate })
	fs.IntVar(&s.QueueCapacity, "queue-capacity", s.QueueCapacity, "Depth of each drop-oldest queue")
	f.on("queue-capacity", func(dst, src *AppConfig) { dst.QueueCapacity = src.QueueCapacity })
	fs.DurationVar(&s.PollTimeout, "poll-timeout", s.PollTimeout, "Worker wait bound between cancellation checks")
	f.on("poll-timeout", func(dst, src *AppConfig) { dst.PollTimeout = src.PollTimeout })
	fs.IntVar(&s.Width, "width", s.Width, "Camera image width")
	f.on("width", func(dst, src *AppConfig) { dst.Width = src.Width })
	fs.IntVar(&s.Height, "height", s.Height, "Camera image height")
	f.on("height", func(dst, src *AppConfig) { dst.Height = src.Height })

	fs.IntVar(&s.ControllerIndex, "controller", s.ControllerIndex, "Gamepad index")
	f.on("controller", func(dst, src *AppConfig) { dst.ControllerIndex = src.ControllerIndex })
	fs.StringVar(&s.DevicePath, "device", s.DevicePath, "Joystick device path, %d is the controller index")
	f.on("device", func(dst, src *AppConfig) { dst.DevicePath = src.DevicePath })
	fs.StringVar(&s.ControlCodec, "control-codec", s.ControlCodec, "Control record encoding: json or cbor")
	f.on("control-codec", func(dst, src *AppConfig) { dst.ControlCodec = src.ControlCodec })

	fs.StringVar(&s.FrameCodec, "frame-codec", s.FrameCodec, "Frame compression: jpeg, png or webp")
	f.on("frame-codec", func(dst, src *AppConfig) { dst.FrameCodec = src.FrameCodec })
	fs.IntVar(&s.FrameQuality, "frame-quality", s.FrameQuality, "Lossy codec quality 1-100")
	f.on("frame-quality", func(dst, src *AppConfig) { dst.FrameQuality = src.FrameQuality })
	fs.StringVar(&s.IngestEndpoint, "endpoint", s.IngestEndpoint, "ZMQ endpoint publishing camera frames")
	f.on("endpoint", func(dst, src *AppConfig) { dst.IngestEndpoint = src.IngestEndpoint })
	fs.BoolVar(&s.Debug, "debug", s.Debug, "Use simulated input instead of hardware")
	f.on("debug", func(dst, src *AppConfig) { dst.Debug = src.Debug })

	fs.IntVar(&s.MonitorPort, "monitor-port", s.MonitorPort, "HTTP port for the monitor (0 disables)")
	f.on("monitor-port", func(dst, src *AppConfig) { dst.MonitorPort = src.MonitorPort })
	fs.DurationVar(&s.UIRate, "ui-rate", s.UIRate, "Monitor status push interval")
	f.on("ui-rate", func(dst, src *AppConfig) { dst.UIRate = src.UIRate })
	fs.BoolVar(&s.RawLogEnabled, "raw-log", s.RawLogEnabled, "Record every sent datagram to disk")
	f.on("raw-log", func(dst, src *AppConfig) { dst.RawLogEnabled = src.RawLogEnabled })
	fs.StringVar(&s.RawLogDir, "raw-log-dir", s.RawLogDir, "Directory for datagram logs")
	f.on("raw-log-dir", func(dst, src *AppConfig) { dst.RawLogDir = src.RawLogDir })

	fs.StringVar(&s.LogFile, "log-file", s.LogFile, "Also write logs to this rotated file")
	f.on("log-file", func(dst, src *AppConfig) { dst.LogFile = src.LogFile })
	fs.IntVar(&s.LogMaxSizeMB, "log-max-size", s.LogMaxSizeMB, "Rotate the log file after this many MB")
	f.on("log-max-size", func(dst, src *AppConfig) { dst.LogMaxSizeMB = src.LogMaxSizeMB })
	fs.IntVar(&s.LogMaxBackups, "log-max-backups", s.LogMaxBackups, "Rotated log files to keep")
	f.on("log-max-backups", func(dst, src *AppConfig) { dst.LogMaxBackups = src.LogMaxBackups })
	fs.IntVar(&s.LogEvery, "log-every", s.LogEvery, "Log every Nth repeated send or decode error")
	f.on("log-every", func(dst, src *AppConfig) { dst.LogEvery = src.LogEvery })

	return f
}

func (f *Flags) on(name string, apply func(dst, src *AppConfig)) {
	f.apply[name] = apply
}

// Resolve must be called after the FlagSet is parsed.
func (f *Flags) Resolve() (AppConfig, error) {
	cfg := Defaults()
	if f.path != "" {
		if err := LoadFile(f.path, &cfg); err != nil {
			return cfg, err
		}
	}
	f.fs.Visit(func(fl *flag.Flag) {
		if apply, ok := f.apply[fl.Name]; ok {
			apply(&cfg, &f.scratch)
		}
	})
	return cfg, nil
}
