package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"carla-relay-go/internal/types"
)

type AppConfig struct {
	ControlRate     time.Duration `yaml:"control_rate"`
	FrameRate       float64       `yaml:"frame_rate"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	SensorTransform types.Pose    `yaml:"sensor_transform"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`

	PeerHost  string `yaml:"peer_host"`
	PeerPort  int    `yaml:"peer_port"`
	LocalPort int    `yaml:"local_port"`
	Transport string `yaml:"transport"`

	ControllerIndex int    `yaml:"controller_index"`
	DevicePath      string `yaml:"device_path"`
	ControlCodec    string `yaml:"control_codec"`

	FrameCodec     string `yaml:"frame_codec"`
	FrameQuality   int    `yaml:"frame_quality"`
	IngestEndpoint string `yaml:"ingest_endpoint"`
	Debug          bool   `yaml:"debug"`

	MonitorPort   int           `yaml:"monitor_port"`
	UIRate        time.Duration `yaml:"ui_rate"`
	RawLogEnabled bool          `yaml:"raw_log"`
	RawLogDir     string        `yaml:"raw_log_dir"`

	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogEvery      int    `yaml:"log_every"`
}

// Defaults mirrors the rates and sizes the relay was tuned with: 10 Hz
// control, 30 fps 640x360 camera, two-deep queues.
func Defaults() AppConfig {
	return AppConfig{
		ControlRate:   100 * time.Millisecond,
		FrameRate:     30,
		QueueCapacity: 2,
		PollTimeout:   time.Second,
		SensorTransform: types.Pose{
			X: -15, Y: 0, Z: 15,
			Pitch: 16.875, Yaw: 0, Roll: 0,
		},
		Width:          640,
		Height:         360,
		Transport:      "udp",
		DevicePath:     "/dev/input/js%d",
		ControlCodec:   "json",
		FrameCodec:     "jpeg",
		FrameQuality:   80,
		IngestEndpoint: "tcp://localhost:31001",
		UIRate:         time.Second,
		RawLogDir:      "rawlog",
		LogMaxSizeMB:   50,
		LogMaxBackups:  3,
		LogEvery:       100,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c AppConfig) PeerAddr() string {
	return net.JoinHostPort(c.PeerHost, strconv.Itoa(c.PeerPort))
}

func (c AppConfig) Validate() error {
	var errs []error
	if c.PeerHost == "" {
		errs = append(errs, errors.New("peer_host is required"))
	}
	if c.PeerPort < 1 || c.PeerPort > 65535 {
		errs = append(errs, fmt.Errorf("peer_port %d out of range", c.PeerPort))
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		errs = append(errs, fmt.Errorf("local_port %d out of range", c.LocalPort))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity))
	}
	if c.ControlRate <= 0 {
		errs = append(errs, errors.New("control_rate must be positive"))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, errors.New("poll_timeout must be positive"))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, errors.New("frame_rate must be positive"))
	}
	if c.Width < 1 || c.Height < 1 {
		errs = append(errs, fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height))
	}
	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		errs = append(errs, fmt.Errorf("monitor_port %d out of range", c.MonitorPort))
	}
	return errors.Join(errs...)
}
