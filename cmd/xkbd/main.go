package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/internal/keymap"
	"github.com/danderson/xkb/transport"
	"github.com/kr/pretty"
)

var globalArgs struct {
	Config string `flag:"config,Path of the TOML configuration file"`
}

// loadConfig returns the configuration named by --config, or the
// default configuration.
func loadConfig() (*xkb.Config, error) {
	if globalArgs.Config == "" {
		return xkb.DefaultConfig(), nil
	}
	return xkb.LoadConfig(globalArgs.Config)
}

func newServer(ctx context.Context) (*xkb.Config, *xkb.Server, *log.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := xkb.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	srv, err := xkb.NewServerFromConfig(ctx, cfg, logger, keymap.Catalog{})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, srv, logger, nil
}

func main() {
	root := &command.C{
		Name:     "xkbd",
		Usage:    "command args...",
		Help:     "Serve and inspect XKB keyboard descriptions.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:     "serve",
				Usage:    "serve",
				Help:     "Serve the XKB protocol on the configured unix socket.",
				SetFlags: command.Flags(flax.MustBind, &serveArgs),
				Run:      command.Adapt(runServe),
			},
			{
				Name:  "keymaps",
				Usage: "keymaps",
				Help:  "List the builtin keymaps.",
				Run:   command.Adapt(runKeymaps),
			},
			{
				Name:  "dump",
				Usage: "dump [device-id]",
				Help: `Print the keyboard descriptions of the configured devices.

With no arguments, every keyboard device is printed. With a device ID,
only that device is printed.`,
				SetFlags: command.Flags(flax.MustBind, &dumpArgs),
				Run:      runDump,
			},
			{
				Name:  "check",
				Usage: "check",
				Help:  "Load the configuration and check every keyboard description.",
				Run:   command.Adapt(runCheck),
			},
			{
				Name:  "ping",
				Usage: "ping socket",
				Help:  "Connect to a running server and negotiate the XKB extension.",
				Run:   command.Adapt(runPing),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

var serveArgs struct {
	Listen string `flag:"listen,Socket path to listen on, overriding the configuration"`
}

func runServe(env *command.Env) error {
	cfg, srv, logger, err := newServer(env.Context())
	if err != nil {
		return err
	}
	path := cfg.Listen
	if serveArgs.Listen != "" {
		path = serveArgs.Listen
	}
	ln, err := transport.Listen(path)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", path, err)
	}
	for _, d := range srv.Devices() {
		logger.Info("device", "device", d)
	}
	ts := &transport.Server{
		XKB: srv,
		Log: logger,
	}
	return ts.Serve(env.Context(), ln)
}

func runKeymaps(env *command.Env) error {
	for _, k := range (keymap.Catalog{}).Keymaps() {
		fmt.Println(k)
	}
	return nil
}

var dumpArgs struct {
	Raw bool `flag:"raw,Print the raw description structures"`
}

func runDump(env *command.Env) error {
	_, srv, _, err := newServer(env.Context())
	if err != nil {
		return err
	}
	devs := srv.Devices()
	if len(env.Args) > 0 {
		id, err := strconv.ParseUint(env.Args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid device ID %q: %w", env.Args[0], err)
		}
		dev := srv.Device(uint8(id))
		if dev == nil {
			return fmt.Errorf("no device %d", id)
		}
		devs = []*xkb.Device{dev}
	}

	var out indenter
	for _, d := range devs {
		if d.Keyboard == nil {
			continue
		}
		if dumpArgs.Raw {
			fmt.Printf("%s:\n%# v\n\n", d, pretty.Formatter(d.Keyboard.Desc))
			continue
		}
		dumpDevice(&out, srv.Atoms(), d)
	}
	return nil
}

func runCheck(env *command.Env) error {
	_, srv, _, err := newServer(env.Context())
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range srv.Devices() {
		if d.Keyboard == nil {
			continue
		}
		if err := d.Keyboard.Desc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		fmt.Printf("%s: ok\n", d)
	}
	return errors.Join(errs...)
}

func runPing(env *command.Env, path string) error {
	ctx, cancel := context.WithTimeout(env.Context(), 10*time.Second)
	defer cancel()
	order := fragments.NativeEndian
	conn, err := transport.Dial(ctx, path, order)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", path, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	req := fragments.Encoder{Order: order}
	req.Uint8(conn.MajorOpcode)
	req.Uint8(uint8(xkb.OpUseExtension))
	req.Uint16(2)
	req.Uint16(xkb.MajorVersion)
	req.Uint16(xkb.MinorVersion)
	if err := conn.Send(req.Out); err != nil {
		return err
	}
	resp, err := conn.ReadPacket()
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	if resp[0] != 1 {
		return fmt.Errorf("UseExtension failed: %x", resp)
	}
	d := fragments.Decoder{Order: order, In: resp[8:]}
	major, _ := d.Uint16()
	minor, _ := d.Uint16()
	fmt.Printf("XKB %d.%d, supported=%v, opcode %d, events from %d, errors from %d\n", major, minor, resp[1] != 0, conn.MajorOpcode, conn.EventBase, conn.ErrorBase)
	return nil
}
