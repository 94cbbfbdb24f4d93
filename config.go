package xkb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Config is the configuration of an XKB server.
type Config struct {
	Log LogConfig `toml:"log"`
	// Listen is the path of the unix socket to serve on.
	Listen  string         `toml:"listen"`
	Devices []DeviceConfig `toml:"device"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level logged: debug, info, warn or
	// error. The XKB_LOG_LEVEL environment variable overrides it.
	Level string `toml:"level"`
}

// DeviceConfig describes one input device.
type DeviceConfig struct {
	ID   uint8  `toml:"id"`
	Name string `toml:"name"`
	// Kind is a DeviceKind, in its String form.
	Kind string `toml:"kind"`
	// Master is the ID of a slave device's master. Zero for master
	// devices and floating slaves.
	Master uint8 `toml:"master"`
	// Keymap names the keymap of keyboard devices.
	Keymap string `toml:"keymap"`
	// MinKeyCode and MaxKeyCode override the keymap's keycode range
	// if nonzero.
	MinKeyCode uint8 `toml:"min_keycode"`
	MaxKeyCode uint8 `toml:"max_keycode"`
	// LEDs gives the keyboard an indicator feedback.
	LEDs bool `toml:"leds"`
}

// DefaultConfig returns a configuration with a core keyboard and
// pointer, and two physical keyboards attached to the core keyboard.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Listen: "/tmp/.xkb-unix/X0",
		Devices: []DeviceConfig{
			{ID: 2, Name: "Virtual core keyboard", Kind: MasterKeyboard.String(), Keymap: "pc+us", LEDs: true},
			{ID: 3, Name: "Virtual core pointer", Kind: MasterPointer.String()},
			{ID: 4, Name: "AT Translated Set 2 keyboard", Kind: SlaveKeyboard.String(), Master: 2, Keymap: "pc+us", LEDs: true},
			{ID: 5, Name: "USB keyboard", Kind: SlaveKeyboard.String(), Master: 2, Keymap: "pc+us", MaxKeyCode: 132, LEDs: true},
		},
	}
}

// LoadConfig reads the configuration file at path, on top of
// DefaultConfig. Devices listed in the file replace the default
// devices.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, 0, len(undec))
		for _, k := range undec {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("config %q: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if md.IsDefined("log", "level") {
		cfg.Log.Level = file.Log.Level
	}
	if md.IsDefined("listen") {
		cfg.Listen = file.Listen
	}
	if md.IsDefined("device") {
		cfg.Devices = file.Devices
	}
	return cfg, nil
}

// NewLogger returns a logger writing to stderr at the configured
// level.
func NewLogger(cfg LogConfig) (*log.Logger, error) {
	ret := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "xkb",
		ReportTimestamp: true,
	})
	level := cfg.Level
	if env := os.Getenv("XKB_LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	ret.SetLevel(lvl)
	return ret, nil
}

// NewServerFromConfig returns a server with the devices of cfg.
// Keyboard descriptions are obtained from loader, by keymap name.
func NewServerFromConfig(ctx context.Context, cfg *Config, logger *log.Logger, loader KeymapLoader) (*Server, error) {
	if loader == nil {
		return nil, errors.New("no keymap loader")
	}
	s := NewServer(Options{
		Logger: logger,
		Loader: loader,
	})
	byID := map[uint8]*Device{}
	for _, dc := range cfg.Devices {
		kind, err := ParseDeviceKind(dc.Kind)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", dc.ID, err)
		}
		dev := &Device{
			ID:   dc.ID,
			Name: dc.Name,
			Kind: kind,
		}
		if dc.Master != 0 {
			dev.Master = byID[dc.Master]
			if dev.Master == nil {
				return nil, fmt.Errorf("device %d: master %d must be listed before its slaves", dc.ID, dc.Master)
			}
		}
		if kind == MasterKeyboard || kind == SlaveKeyboard {
			desc, err := loadDeviceKeymap(ctx, s, loader, dc)
			if err != nil {
				return nil, fmt.Errorf("device %d: %w", dc.ID, err)
			}
			dev.Keyboard = &Keyboard{Desc: desc}
			if dc.LEDs {
				dev.LEDs = &LEDFeedback{Class: KbdFeedbackClass}
			}
		}
		if err := s.AddDevice(dev); err != nil {
			return nil, err
		}
		if dev.Master != nil && dev.Master.LastSlave == nil {
			dev.Master.LastSlave = dev
		}
		byID[dev.ID] = dev
	}
	return s, nil
}

func loadDeviceKeymap(ctx context.Context, s *Server, loader KeymapLoader, dc DeviceConfig) (*Desc, error) {
	need := GBNTypesMask | GBNClientSymbolsMask | GBNServerSymbolsMask
	desc, found, err := loader.LoadKeymap(ctx, s.Atoms(), ComponentNames{Keymap: dc.Keymap}, GBNAllComponentsMask, need)
	if err != nil {
		return nil, fmt.Errorf("loading keymap %q: %w", dc.Keymap, err)
	}
	if desc == nil || found&need != need {
		return nil, fmt.Errorf("keymap %q not found", dc.Keymap)
	}
	minKC, maxKC := desc.MinKeyCode, desc.MaxKeyCode
	if dc.MinKeyCode != 0 {
		minKC = dc.MinKeyCode
	}
	if dc.MaxKeyCode != 0 {
		maxKC = dc.MaxKeyCode
	}
	if err := desc.ChangeKeycodeRange(minKC, maxKC); err != nil {
		return nil, fmt.Errorf("keycode range %d..%d: %w", minKC, maxKC, err)
	}
	return desc, nil
}
