package xkb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creachadair/mds/mapset"
	"github.com/danderson/xkb/fragments"
)

// Extension codes assigned to XKB by this server.
const (
	MajorOpcode = 135
	EventBase   = 85
	ErrorBase   = 137
)

// ComponentNames are the keymap component name patterns of a
// GetKbdByName request.
type ComponentNames struct {
	Keymap   string
	Keycodes string
	Types    string
	Compat   string
	Symbols  string
	Geometry string
}

// KeymapLoader produces new keyboard descriptions from keymap
// component names.
type KeymapLoader interface {
	// LoadKeymap builds a keyboard description from the components
	// matching names. want and need are GetKbdByName component
	// masks: LoadKeymap must fail if it cannot provide every
	// component in need. It returns the description and the mask
	// of components it found.
	LoadKeymap(ctx context.Context, atoms *AtomTable, names ComponentNames, want, need uint16) (*Desc, uint16, error)
}

// Options configures a Server.
type Options struct {
	// Logger receives the server's logs. If nil, logs are
	// discarded.
	Logger *log.Logger
	// Loader loads keymaps for GetKbdByName. If nil, GetKbdByName
	// never finds any keymap.
	Loader KeymapLoader
	// Atoms is the server's atom table. If nil, a new table is
	// created.
	Atoms *AtomTable
	// Now returns the current time, for event timestamps. If nil,
	// time.Now is used.
	Now func() time.Time
}

// Server is an XKB protocol engine: the input devices and their
// keyboard descriptions, and the clients operating on them.
//
// Requests are processed one at a time, to completion. A Server is
// safe for concurrent use, but concurrent Dispatch calls are
// serialized.
type Server struct {
	mu       sync.Mutex
	atoms    *AtomTable
	log      *log.Logger
	loader   KeymapLoader
	clock    func() time.Time
	start    time.Time
	handlers map[Opcode]handlerFunc

	devices      []*Device
	clients      mapset.Set[*Client]
	nextClientID int
}

// NewServer returns a server with no devices.
func NewServer(opts Options) *Server {
	ret := &Server{
		atoms:   opts.Atoms,
		log:     opts.Logger,
		loader:  opts.Loader,
		clock:   opts.Now,
		clients: mapset.New[*Client](),
	}
	if ret.atoms == nil {
		ret.atoms = NewAtomTable()
	}
	if ret.log == nil {
		ret.log = log.New(io.Discard)
	}
	if ret.clock == nil {
		ret.clock = time.Now
	}
	ret.start = ret.clock()
	ret.handlers = map[Opcode]handlerFunc{
		OpUseExtension:      (*Server).useExtension,
		OpSelectEvents:      (*Server).selectEvents,
		OpGetState:          (*Server).getState,
		OpGetControls:       (*Server).getControls,
		OpSetControls:       (*Server).setControls,
		OpGetMap:            (*Server).getMap,
		OpSetMap:            (*Server).setMap,
		OpGetCompatMap:      (*Server).getCompatMap,
		OpSetCompatMap:      (*Server).setCompatMap,
		OpGetIndicatorState: (*Server).getIndicatorState,
		OpGetIndicatorMap:   (*Server).getIndicatorMap,
		OpSetIndicatorMap:   (*Server).setIndicatorMap,
		OpGetNamedIndicator: (*Server).getNamedIndicator,
		OpSetNamedIndicator: (*Server).setNamedIndicator,
		OpGetNames:          (*Server).getNames,
		OpSetNames:          (*Server).setNames,
		OpGetGeometry:       (*Server).getGeometry,
		OpSetGeometry:       (*Server).setGeometry,
		OpGetKbdByName:      (*Server).getKbdByName,
	}
	return ret
}

// Atoms returns the server's atom table.
func (s *Server) Atoms() *AtomTable {
	return s.atoms
}

// now returns the event timestamp, in milliseconds since the server
// started.
func (s *Server) now() uint32 {
	return uint32(s.clock().Sub(s.start).Milliseconds())
}

// AddDevice adds dev to the server. A slave's master must be added
// before the slave.
func (s *Server) AddDevice(dev *Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dev.ID == 0 {
		return errors.New("device ID 0 is reserved")
	}
	for _, d := range s.devices {
		if d.ID == dev.ID {
			return fmt.Errorf("duplicate device ID %d", dev.ID)
		}
	}
	if dev.Master != nil {
		if dev.Kind.IsMaster() {
			return fmt.Errorf("master device %s cannot be attached to %s", dev, dev.Master)
		}
		want := MasterKeyboard
		if dev.Kind == SlavePointer {
			want = MasterPointer
		}
		if dev.Master.Kind != want {
			return fmt.Errorf("slave %s cannot be attached to %s", dev, dev.Master)
		}
		if s.deviceByID(dev.Master.ID) != dev.Master {
			return fmt.Errorf("master %s of %s is not registered", dev.Master, dev)
		}
	}
	if dev.Keyboard != nil {
		if dev.Keyboard.Desc == nil {
			return fmt.Errorf("device %s has a keyboard with no description", dev)
		}
		if err := dev.Keyboard.Desc.Validate(); err != nil {
			return fmt.Errorf("device %s: %w", dev, err)
		}
		if dev.LEDs != nil {
			dev.LEDs.Recompute(dev.Keyboard.Desc, dev.Keyboard.State)
		}
	}
	s.devices = append(s.devices, dev)
	return nil
}

// Devices returns the server's devices, in the order they were added.
func (s *Server) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Device(nil), s.devices...)
}

// Device returns the device with the given ID, or nil.
func (s *Server) Device(id uint8) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceByID(id)
}

func (s *Server) deviceByID(id uint8) *Device {
	for _, d := range s.devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// coreDevice returns the first master device of the given kind.
func (s *Server) coreDevice(kind DeviceKind) *Device {
	for _, d := range s.devices {
		if d.Kind == kind {
			return d
		}
	}
	return nil
}

// slaves returns the slave devices currently attached to master.
func (s *Server) slaves(master *Device) []*Device {
	var ret []*Device
	for _, d := range s.devices {
		if d != master && !d.Kind.IsMaster() && d.Master == master {
			ret = append(ret, d)
		}
	}
	return ret
}

// Errors values reported for failed device lookups.
const (
	errBadDevice = 0xff
	errBadClass  = 0xfe
	errBadID     = 0xfd
)

// deviceNeeds is what a request requires of the device it targets.
type deviceNeeds uint8

const (
	needKeyboard deviceNeeds = 1 << iota
	needLEDs
)

func (n deviceNeeds) satisfiedBy(d *Device) bool {
	if n&needKeyboard != 0 && d.Keyboard == nil {
		return false
	}
	if n&needLEDs != 0 && d.LEDs == nil {
		return false
	}
	return true
}

// lookupDevice resolves a device specifier to a device.
func (s *Server) lookupDevice(spec uint16, needs deviceNeeds) (*Device, error) {
	var dev *Device
	switch spec {
	case UseCoreKbd:
		dev = s.coreDevice(MasterKeyboard)
	case UseCorePtr:
		dev = s.coreDevice(MasterPointer)
	default:
		if spec <= 0xff {
			dev = s.deviceByID(uint8(spec))
		}
	}
	if dev == nil {
		return nil, protoErr(BadKeyboard, errCode2(errBadDevice, int(spec)), "no device %#x", spec)
	}
	if !needs.satisfiedBy(dev) {
		return nil, protoErr(BadKeyboard, errCode2(errBadClass, int(spec)), "device %s lacks the required class", dev)
	}
	return dev, nil
}

// plan returns the commit plan of a request on spec, which resolved
// to dev. Requests on the core devices fan out to every slave of the
// core device that satisfies needs.
func (s *Server) plan(spec uint16, dev *Device, needs deviceNeeds) *CommitPlan {
	ret := &CommitPlan{Primary: dev, log: s.log}
	if spec != UseCoreKbd && spec != UseCorePtr {
		return ret
	}
	for _, sl := range s.slaves(dev) {
		if needs.satisfiedBy(sl) {
			ret.Others = append(ret.Others, sl)
		}
	}
	return ret
}

// NewClient registers a new client whose connection uses the given
// byte order.
func (s *Server) NewClient(order fragments.ByteOrder) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextClientID++
	c := &Client{
		ID:     s.nextClientID,
		Order:  order,
		notify: make(chan struct{}, 1),
	}
	s.clients.Add(c)
	return c
}

// CloseClient unregisters c. Its pending events are discarded.
func (s *Server) CloseClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	c.events.Clear()
}

// PendingEvents returns the number of events queued for c.
func (s *Server) PendingEvents(c *Client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.events.Len()
}

// TakeEvents removes and returns the events queued for c, oldest
// first.
func (s *Server) TakeEvents(c *Client) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.dropped > 0 {
		s.log.Warn("client event queue overflowed", "client", c.ID, "dropped", c.dropped)
		c.dropped = 0
	}
	var ret [][]byte
	for {
		ev, ok := c.events.Pop()
		if !ok {
			return ret
		}
		ret = append(ret, ev)
	}
}
