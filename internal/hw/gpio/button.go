package gpio

import (
	"context"
	"time"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

// DefaultPollInterval is how often a Button samples its pin.
const DefaultPollInterval = 20 * time.Millisecond

// Button is a momentary push button wired between a GPIO pin and GND and
// read through the internal pull-up: released = High, pressed = Low.
type Button struct {
	Name     string
	Pin      int
	pull     Pull
	Poll     time.Duration
	Debounce time.Duration // minimum time between two accepted presses

	driver Driver
}

// NewButton configures pin as a pulled-up input and returns its Button.
func NewButton(d Driver, name string, pin int, poll time.Duration) (*Button, error) {
	if err := d.SetupInput(pin, PullUp); err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Button{
		Name:     name,
		Pin:      pin,
		pull:     PullUp,
		Poll:     poll,
		Debounce: 5 * poll,
		driver:   d,
	}, nil
}

// Watch polls the pin until ctx is cancelled and calls onPress once per
// released -> pressed transition. Read errors are logged and polling continues.
func (b *Button) Watch(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.Poll)
	defer ticker.Stop()

	released := b.pull.idle()
	last := released
	var lastPress time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		level, err := b.driver.ReadPin(b.Pin)
		if err != nil {
			debug.Error(err)
			continue
		}
		debug.GPIO("ReadPin", b.Pin, level)

		if last == released && level != released {
			now := time.Now()
			if lastPress.IsZero() || now.Sub(lastPress) >= b.Debounce {
				lastPress = now
				debug.Live("Button %s pressed (pin %d)", b.Name, b.Pin)
				onPress()
			}
		}
		last = level
	}
}
