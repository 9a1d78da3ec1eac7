// Package session drives the booking wizard: it tracks a visitor's
// in-progress selections, a bounded undo history of slot choices, and
// the commit that turns a selection into a ledger entry. Every mutation
// re-validates against the ledger rather than trusting the last render,
// because simulated external actors may book a slot in between.
package session

import (
	"github.com/sharpfade/booking-platform/pkg/civil"
)

// State names a wizard stage. Upstream changes reset downstream state:
// changing the service or provider invalidates any chosen date and slot,
// since duration and shift differ per combination.
type State string

const (
	StateEmpty                 State = "empty"
	StateServiceProviderChosen State = "service_provider_chosen"
	StateDateChosen            State = "date_chosen"
	StateSlotChosen            State = "slot_chosen"
)

// maxUndoDepth bounds the slot undo history; the oldest entry is
// discarded first.
const maxUndoDepth = 3

// Session is one visitor's wizard state. Mutated only through Manager.
type Session struct {
	id         string
	serviceID  string
	providerID string
	date       civil.Date
	slot       *civil.TimeOfDay
	history    []civil.TimeOfDay
}

// state derives the wizard stage from which fields are set.
func (s *Session) state() State {
	switch {
	case s.slot != nil:
		return StateSlotChosen
	case !s.date.IsZero():
		return StateDateChosen
	case s.serviceID != "" && s.providerID != "":
		return StateServiceProviderChosen
	default:
		return StateEmpty
	}
}

// pushHistory remembers a slot choice, dropping the oldest beyond the
// bound.
func (s *Session) pushHistory(t civil.TimeOfDay) {
	s.history = append(s.history, t)
	if len(s.history) > maxUndoDepth {
		s.history = s.history[len(s.history)-maxUndoDepth:]
	}
}

// popHistory removes and returns the most recent remembered slot.
func (s *Session) popHistory() (civil.TimeOfDay, bool) {
	if len(s.history) == 0 {
		return 0, false
	}
	t := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return t, true
}

// resetDownstreamOfProviderService clears date, slot, and history.
func (s *Session) resetDownstreamOfProviderService() {
	s.date = civil.Date{}
	s.slot = nil
	s.history = nil
}

// resetDownstreamOfDate clears slot and history.
func (s *Session) resetDownstreamOfDate() {
	s.slot = nil
	s.history = nil
}

// View is the read-only rendering of a session returned to callers.
type View struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	ServiceID  string           `json:"service_id,omitempty"`
	ProviderID string           `json:"provider_id,omitempty"`
	Date       *civil.Date      `json:"date,omitempty"`
	Slot       *civil.TimeOfDay `json:"slot,omitempty"`
	UndoDepth  int              `json:"undo_depth"`
}

func (s *Session) view() View {
	v := View{
		ID:         s.id,
		State:      s.state(),
		ServiceID:  s.serviceID,
		ProviderID: s.providerID,
		UndoDepth:  len(s.history),
	}
	if !s.date.IsZero() {
		d := s.date
		v.Date = &d
	}
	if s.slot != nil {
		t := *s.slot
		v.Slot = &t
	}
	return v
}
