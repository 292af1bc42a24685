package trigger

import (
	"github.com/jsmcel/guideitor/internal/domain"
)

// rearmFactor is the hysteresis multiplier: a landmark re-arms only once the
// user has moved beyond radius*rearmFactor, so GPS jitter at the boundary
// cannot flap between triggered and re-armed.
const rearmFactor = 1.5

// Event is an input to the trigger machine. Events must be applied
// sequentially; Session provides the serialization.
type Event interface {
	isEvent()
}

// ProximityUpdate carries the nearest-landmark sample for one location tick.
// A nil sample means no landmark was resolvable for the tick.
type ProximityUpdate struct {
	Sample *domain.ProximitySample
}

// PlaybackChanged reports the external player starting or stopping.
type PlaybackChanged struct {
	IsPlaying bool
}

// ModeChanged is the user toggling between auto and manual triggering.
type ModeChanged struct {
	Mode domain.Mode
}

// ManualSelect is a direct user tap on a landmark, bypassing every
// proximity and playback rule.
type ManualSelect struct {
	Landmark domain.Landmark
}

func (ProximityUpdate) isEvent() {}
func (PlaybackChanged) isEvent() {}
func (ModeChanged) isEvent()     {}
func (ManualSelect) isEvent()    {}

// Machine reconciles proximity samples, playback state and user mode into
// activation decisions. It is a plain single-threaded reducer; it never
// panics on malformed input and holds no reference to ambient state.
type Machine struct {
	radiusMeters float64
	state        domain.TriggerState
	isPlaying    bool
	nearest      *domain.ProximitySample
}

// NewMachine returns a machine in Idle state with mode auto.
func NewMachine(radiusMeters float64) *Machine {
	return &Machine{
		radiusMeters: radiusMeters,
		state:        domain.TriggerState{Mode: domain.ModeAuto},
	}
}

// State returns a copy of the current trigger state.
func (m *Machine) State() domain.TriggerState {
	return m.state
}

// Nearest returns the last usable proximity sample, for display only.
func (m *Machine) Nearest() *domain.ProximitySample {
	return m.nearest
}

// IsPlaying returns the last reported playback state.
func (m *Machine) IsPlaying() bool {
	return m.isPlaying
}

// Apply runs one transition. It returns the emitted decision, or nil when
// the event only updated internal state.
func (m *Machine) Apply(ev Event) *domain.ActivationDecision {
	switch e := ev.(type) {
	case ProximityUpdate:
		return m.applyProximity(e.Sample)
	case PlaybackChanged:
		return m.applyPlayback(e.IsPlaying)
	case ModeChanged:
		m.applyMode(e.Mode)
		return nil
	case ManualSelect:
		return m.applyManualSelect(e.Landmark)
	default:
		return nil
	}
}

func (m *Machine) applyProximity(sample *domain.ProximitySample) *domain.ActivationDecision {
	// Malformed samples are treated as "no usable sample" and dropped.
	if sample == nil || sample.DistanceMeters < 0 || !sample.Landmark.Coordinates.Valid() {
		return nil
	}

	m.nearest = sample
	nearest := sample.Landmark
	last := m.state.LastTriggered

	if sample.DistanceMeters > m.radiusMeters {
		// Out of radius: only the re-arm hysteresis may fire.
		if last != nil && last.ID == nearest.ID && sample.DistanceMeters > m.radiusMeters*rearmFactor {
			m.state.LastTriggered = nil
		}
		return nil
	}

	if m.state.Mode == domain.ModeManual {
		return &domain.ActivationDecision{Kind: domain.DecisionIgnored, Landmark: &nearest}
	}

	if m.isPlaying {
		lm := nearest
		m.state.PendingLandmark = &lm
		m.state.LastTriggered = &domain.LastTriggered{ID: nearest.ID, DistanceMeters: sample.DistanceMeters}
		return &domain.ActivationDecision{Kind: domain.DecisionDeferred, Landmark: &nearest}
	}

	if last == nil || last.ID != nearest.ID {
		m.state.LastTriggered = &domain.LastTriggered{ID: nearest.ID, DistanceMeters: sample.DistanceMeters}
		m.state.PendingLandmark = nil
		return &domain.ActivationDecision{Kind: domain.DecisionNavigate, Landmark: &nearest}
	}

	// Already triggered for this landmark; stationary updates must not
	// re-navigate.
	m.state.LastTriggered = &domain.LastTriggered{ID: last.ID, DistanceMeters: sample.DistanceMeters}
	return &domain.ActivationDecision{Kind: domain.DecisionIgnored, Landmark: &nearest}
}

func (m *Machine) applyPlayback(isPlaying bool) *domain.ActivationDecision {
	wasPlaying := m.isPlaying
	m.isPlaying = isPlaying

	if !wasPlaying || isPlaying {
		return nil
	}

	// Playback just finished.
	pending := m.state.PendingLandmark
	if pending == nil {
		return nil
	}

	if m.state.Mode != domain.ModeAuto {
		// Discarded, not replayed on a later switch back to auto.
		m.state.PendingLandmark = nil
		return nil
	}

	m.state.PendingLandmark = nil
	return &domain.ActivationDecision{Kind: domain.DecisionNavigate, Landmark: pending}
}

func (m *Machine) applyMode(mode domain.Mode) {
	if !mode.Valid() || mode == m.state.Mode {
		return
	}
	if mode != domain.ModeAuto {
		m.state.PendingLandmark = nil
	}
	m.state.Mode = mode
}

func (m *Machine) applyManualSelect(lm domain.Landmark) *domain.ActivationDecision {
	if lm.ID == "" {
		return nil
	}
	m.state.LastTriggered = &domain.LastTriggered{ID: lm.ID, DistanceMeters: 0}
	m.state.PendingLandmark = nil
	return &domain.ActivationDecision{Kind: domain.DecisionNavigate, Landmark: &lm, UserSelected: true}
}
