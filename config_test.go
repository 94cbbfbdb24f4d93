package xkb_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/internal/keymap"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xkb.toml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen = "/run/xkb/socket"

[log]
level = "debug"

[[device]]
id = 2
name = "Core keyboard"
kind = "master-keyboard"
keymap = "pc+de"
leds = true

[[device]]
id = 7
name = "Laptop keyboard"
kind = "slave-keyboard"
master = 2
keymap = "pc+us"
min_keycode = 9
max_keycode = 200
`)
	cfg, err := xkb.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := &xkb.Config{
		Log:    xkb.LogConfig{Level: "debug"},
		Listen: "/run/xkb/socket",
		Devices: []xkb.DeviceConfig{
			{ID: 2, Name: "Core keyboard", Kind: "master-keyboard", Keymap: "pc+de", LEDs: true},
			{ID: 7, Name: "Laptop keyboard", Kind: "slave-keyboard", Master: 2, Keymap: "pc+us", MinKeyCode: 9, MaxKeyCode: 200},
		},
	}
	if diff := cmp.Diff(cfg, want); diff != "" {
		t.Fatalf("wrong config (-got+want):\n%s", diff)
	}

	s, err := xkb.NewServerFromConfig(context.Background(), cfg, log.New(io.Discard), keymap.Catalog{})
	if err != nil {
		t.Fatalf("NewServerFromConfig: %v", err)
	}
	core, kbd := s.Device(2), s.Device(7)
	if core == nil || kbd == nil {
		t.Fatalf("devices missing: %v", s.Devices())
	}
	if core.LastSlave != kbd || kbd.Master != core {
		t.Errorf("device 7 not attached to device 2")
	}
	if kbd.LEDs != nil {
		t.Errorf("device 7 has LEDs, want none")
	}
	if d := kbd.Keyboard.Desc; d.MinKeyCode != 9 || d.MaxKeyCode != 200 {
		t.Errorf("device 7 keycodes %d..%d, want 9..200", d.MinKeyCode, d.MaxKeyCode)
	}
	if got := s.Atoms().Name(core.Keyboard.Desc.Names.Symbols); got != "pc+de" {
		t.Errorf("device 2 symbols = %q, want pc+de", got)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	cfg, err := xkb.LoadConfig(writeConfig(t, "[log]\nlevel = \"warn\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := xkb.DefaultConfig()
	want.Log.Level = "warn"
	if diff := cmp.Diff(cfg, want); diff != "" {
		t.Errorf("wrong config (-got+want):\n%s", diff)
	}
}

func TestConfigErrors(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		_, err := xkb.LoadConfig(writeConfig(t, "listen = \"x\"\nlisten_port = 6000\n"))
		if err == nil || !strings.Contains(err.Error(), "listen_port") {
			t.Errorf("LoadConfig error = %v, want unknown key listen_port", err)
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := xkb.LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("LoadConfig of a missing file succeeded")
		}
	})

	tests := []struct {
		name    string
		devices []xkb.DeviceConfig
		want    string
	}{
		{
			name: "slave before master",
			devices: []xkb.DeviceConfig{
				{ID: 4, Kind: "slave-keyboard", Master: 2, Keymap: "pc+us"},
				{ID: 2, Kind: "master-keyboard", Keymap: "pc+us"},
			},
			want: "must be listed before",
		},
		{
			name:    "unknown kind",
			devices: []xkb.DeviceConfig{{ID: 2, Kind: "tablet"}},
			want:    "unknown device kind",
		},
		{
			name:    "unknown keymap",
			devices: []xkb.DeviceConfig{{ID: 2, Kind: "master-keyboard", Keymap: "sun(type6)"}},
			want:    "not found",
		},
		{
			name:    "bad keycode range",
			devices: []xkb.DeviceConfig{{ID: 2, Kind: "master-keyboard", Keymap: "pc+us", MinKeyCode: 100, MaxKeyCode: 50}},
			want:    "keycode range",
		},
		{
			name: "duplicate ID",
			devices: []xkb.DeviceConfig{
				{ID: 2, Kind: "master-keyboard", Keymap: "pc+us"},
				{ID: 2, Kind: "master-pointer"},
			},
			want: "duplicate",
		},
		{
			name: "keyboard on pointer",
			devices: []xkb.DeviceConfig{
				{ID: 3, Kind: "master-pointer"},
				{ID: 4, Kind: "slave-keyboard", Master: 3, Keymap: "pc+us"},
			},
			want: "cannot be attached",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &xkb.Config{Devices: tc.devices}
			_, err := xkb.NewServerFromConfig(context.Background(), cfg, log.New(io.Discard), keymap.Catalog{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("NewServerFromConfig error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("XKB_LOG_LEVEL", "")
	l, err := xkb.NewLogger(xkb.LogConfig{Level: "DEBUG"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}

	t.Setenv("XKB_LOG_LEVEL", "error")
	l, err = xkb.NewLogger(xkb.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.GetLevel() != log.ErrorLevel {
		t.Errorf("level = %v, want error from environment", l.GetLevel())
	}

	t.Setenv("XKB_LOG_LEVEL", "")
	if _, err := xkb.NewLogger(xkb.LogConfig{Level: "chatty"}); err == nil {
		t.Error("NewLogger accepted level chatty")
	}
}
