package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Pull selects the internal resistor of an input pin.
type Pull int

const (
	PullOff  Pull = iota // floating, external resistor required
	PullUp               // button wired to GND: released = High
	PullDown             // button wired to 3V3: released = Low
)

func (p Pull) String() string {
	switch p {
	case PullOff:
		return "off"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return fmt.Sprintf("Pull(%d)", int(p))
	}
}

// idle is the level a released button reads with this pull.
func (p Pull) idle() Level {
	return p == PullUp
}

// Driver reads booth buttons. The booth only consumes inputs, so there is no
// write side. A Raspberry Pi implementation and a mock for PCs are provided.
type Driver interface {
	SetupInput(pin int, pull Pull) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiDriver()
}

// MockDriver is an in-memory implementation used for development on PC
// and in tests. A configured pin reads its pull's idle level until changed
// with SetLevel, emulating a released button.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	closed bool
}

// NewMockDriver creates an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

// SetLevel forces the level read back from pin (a simulated press or release).
func (m *MockDriver) SetLevel(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

func (m *MockDriver) SetupInput(pin int, pull Pull) error {
	debug.GPIO("SetupInput", pin, pull)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.levels[pin] = pull.idle()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Low, ErrClosed
	}
	level, ok := m.levels[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d: %w", pin, ErrNotConfigured)
	}
	return level, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
