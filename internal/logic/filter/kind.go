package filter

import (
	"fmt"
	"strings"
)

// Kind selects the transform applied to every live frame.
type Kind int

const (
	None Kind = iota
	Grayscale
	Sepia
	Invert
	Saturate
	Blur
	Brightness
	Contrast
	Halftone
	Pixelate
)

var kindNames = [...]string{
	None:       "none",
	Grayscale:  "grayscale",
	Sepia:      "sepia",
	Invert:     "invert",
	Saturate:   "saturate",
	Blur:       "blur",
	Brightness: "brightness",
	Contrast:   "contrast",
	Halftone:   "halftone",
	Pixelate:   "pixelate",
}

// Kinds returns every filter in display order.
func Kinds() []Kind {
	ks := make([]Kind, len(kindNames))
	for i := range kindNames {
		ks[i] = Kind(i)
	}
	return ks
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= None && k <= Pixelate
}

// Structural reports whether the filter changes pixel layout rather than only colour.
func (k Kind) Structural() bool {
	return k == Halftone || k == Pixelate
}

// ParseKind converts a filter name (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return None, nil
	}
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return None, fmt.Errorf("unknown filter %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid filter kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
