package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"carla-relay-go/internal/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
peer_host: 10.0.0.7
peer_port: 2000
control_rate: 50ms
transport: zmq
sensor_transform:
  x: -10
  z: 4
  pitch: 12.5
`)
	cfg := Defaults()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	want := Defaults()
	want.PeerHost = "10.0.0.7"
	want.PeerPort = 2000
	want.ControlRate = 50 * time.Millisecond
	want.Transport = "zmq"
	want.SensorTransform = types.Pose{X: -10, Z: 4, Pitch: 12.5}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "peer_hots: typo\n")
	cfg := Defaults()
	if err := LoadFile(path, &cfg); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); !os.IsNotExist(err) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.PeerHost = "127.0.0.1"
	cfg.PeerPort = 2000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if got := cfg.PeerAddr(); got != "127.0.0.1:2000" {
		t.Fatalf("unexpected peer addr %q", got)
	}

	bad := Defaults()
	bad.QueueCapacity = 0
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"peer_host", "peer_port", "queue_capacity"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err, field)
		}
	}
}

func TestPeerAddrBracketsIPv6(t *testing.T) {
	cfg := Defaults()
	cfg.PeerHost = "::1"
	cfg.PeerPort = 2000
	if got := cfg.PeerAddr(); got != "[::1]:2000" {
		t.Fatalf("unexpected peer addr %q", got)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "peer_host: file-host\npeer_port: 2000\nframe_rate: 20\n")
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", path, "-peer-port", "3000", "-transport", "zmq"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := flags.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	want := Defaults()
	want.PeerHost = "file-host"
	want.PeerPort = 3000
	want.FrameRate = 20
	want.Transport = "zmq"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagDefaultsDoNotMaskFile(t *testing.T) {
	path := writeFile(t, "control_rate: 250ms\n")
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := flags.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.ControlRate != 250*time.Millisecond {
		t.Fatalf("unset flag overwrote file value: %v", cfg.ControlRate)
	}
}
