package camera

import (
	"errors"
	"sync"
)

// KindVideoInput is the device kind eligible for scanning.
const KindVideoInput = "videoinput"

// ErrUnknownDevice indicates a selection outside the enumerated list.
var ErrUnknownDevice = errors.New("unknown capture device")

// Device describes a capture device as reported by the host environment.
type Device struct {
	ID    string `json:"device_id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Selector tracks the enumerated video-input devices and the current choice.
// The scanning widget reports its device list after enumeration; when that
// fails the list stays empty and callers render the empty state.
type Selector struct {
	mu       sync.Mutex
	devices  []Device
	selected string
}

// NewSelector creates a selector with no devices and no selection.
func NewSelector() *Selector {
	return &Selector{}
}

// SetDevices replaces the enumerated list, keeping only video inputs. The
// first device becomes the default selection; an existing selection survives
// if it is still present.
func (s *Selector) SetDevices(devices []Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = s.devices[:0]
	for _, d := range devices {
		if d.Kind != KindVideoInput || d.ID == "" {
			continue
		}
		s.devices = append(s.devices, d)
	}

	if s.selected != "" && s.has(s.selected) {
		return
	}
	if len(s.devices) > 0 {
		s.selected = s.devices[0].ID
	} else {
		s.selected = ""
	}
}

// Devices returns a copy of the enumerated video inputs.
func (s *Selector) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Selected returns the current device id, empty when none is available.
func (s *Selector) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select switches to one of the enumerated devices.
func (s *Selector) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(id) {
		return ErrUnknownDevice
	}
	s.selected = id
	return nil
}

func (s *Selector) has(id string) bool {
	for _, d := range s.devices {
		if d.ID == id {
			return true
		}
	}
	return false
}
