package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

var (
	// ErrClosed is returned by a driver used after Close.
	ErrClosed = errors.New("gpio: driver closed")
	// ErrNotConfigured is returned when reading a pin that was never set up.
	ErrNotConfigured = errors.New("gpio: pin not configured")
)

// RPiDriver reads buttons through the memory-mapped GPIO of a Raspberry Pi.
type RPiDriver struct {
	mu     sync.Mutex
	inputs map[int]rpio.Pin
	closed bool
}

// NewRPiDriver maps the GPIO registers.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}
	debug.Verbose("GPIO memory mapped")
	return &RPiDriver{inputs: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupInput(pin int, pull Pull) error {
	debug.GPIO("SetupInput", pin, pull)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case PullOff:
		p.PullOff()
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		return fmt.Errorf("pin %d: unknown pull %v", pin, pull)
	}
	r.inputs[pin] = p
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Low, ErrClosed
	}
	p, ok := r.inputs[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d: %w", pin, ErrNotConfigured)
	}
	return p.Read() == rpio.High, nil
}

// Close releases the pulls of every configured input and unmaps the registers.
// A second Close is a no-op.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for pin, p := range r.inputs {
		debug.Verbose("Releasing pull on pin %d", pin)
		p.PullOff()
	}
	debug.Trace("GPIO Close (real driver)")
	return rpio.Close()
}
