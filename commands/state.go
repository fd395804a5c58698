// Package commands holds the operator intent that the genset controller
// drains on each poll: the desired relay position and a pending buzzer alert.
package commands

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Relay positions as exchanged with the device
const (
	RelayOn  = "on"
	RelayOff = "off"
)

// ErrInvalidRelayState is returned when a relay position is neither on nor off
var ErrInvalidRelayState = errors.New("invalid relay state")

// Snapshot is a consistent view of the command state
type Snapshot struct {
	Relay  string `json:"relay"`
	Buzzer bool   `json:"buzzer"`
}

// State is the process-wide command register. The zero value is ready to
// use with the relay off and no buzzer pending.
type State struct {
	mu            sync.RWMutex
	relayOn       bool
	buzzerPending bool

	// OnChange, when set, observes every mutation with the resulting
	// snapshot. It runs under the state lock and must not call back into
	// State.
	OnChange func(Snapshot)
}

// NewState returns a command state with initial values
func NewState() *State {
	return &State{}
}

// ParseRelayState canonicalizes a relay position, accepting any case and
// surrounding whitespace
func ParseRelayState(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RelayOn:
		return true, nil
	case RelayOff:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidRelayState, raw)
	}
}

func relayString(on bool) string {
	if on {
		return RelayOn
	}
	return RelayOff
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{Relay: relayString(s.relayOn), Buzzer: s.buzzerPending}
}

func (s *State) changedLocked() {
	if s.OnChange != nil {
		s.OnChange(s.snapshotLocked())
	}
}

// Get returns the current commands. Reading never clears the buzzer flag.
func (s *State) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SetRelay records the operator's desired relay position. An unknown
// position leaves the state untouched.
func (s *State) SetRelay(raw string) (Snapshot, error) {
	on, err := ParseRelayState(raw)
	if err != nil {
		return s.Get(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayOn = on
	s.changedLocked()
	return s.snapshotLocked(), nil
}

// RaiseBuzzer marks a buzzer alert as pending. Repeated raises collapse
// into one pending alert.
func (s *State) RaiseBuzzer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buzzerPending = true
	s.changedLocked()
}

// AcknowledgeBuzzer clears the pending alert once the device has sounded it
func (s *State) AcknowledgeBuzzer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buzzerPending = false
	s.changedLocked()
}
