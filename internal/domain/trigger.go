package domain

// Mode selects between automatic proximity-triggered playback and manual
// selection only.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known trigger mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeManual
}

// DecisionKind classifies an ActivationDecision. The vision path emits
// confident/suggestions/none; the GPS path emits navigate/deferred/ignored.
type DecisionKind string

const (
	DecisionConfident   DecisionKind = "confident"
	DecisionSuggestions DecisionKind = "suggestions"
	DecisionNone        DecisionKind = "none"
	DecisionNavigate    DecisionKind = "navigate"
	DecisionDeferred    DecisionKind = "deferred"
	DecisionIgnored     DecisionKind = "ignored"
)

// ActivationDecision is the single externally observable artifact of the
// decision engine. Both sensor paths converge on this shape.
type ActivationDecision struct {
	Kind         DecisionKind       `json:"kind"`
	Landmark     *Landmark          `json:"landmark,omitempty"`
	PieceName    string             `json:"piece_name,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`
	Suggestions  []ClassProbability `json:"suggestions,omitempty"`
	UserSelected bool               `json:"user_selected"`
}

// LastTriggered records the landmark a session most recently fired for, used
// to debounce repeated decisions while the user lingers nearby.
type LastTriggered struct {
	ID             string  `json:"id"`
	DistanceMeters float64 `json:"distance_meters"`
}

// TriggerState is the complete state of one session's trigger machine.
// Exactly one live instance per session, mutated only by machine transitions.
type TriggerState struct {
	Mode            Mode           `json:"mode"`
	LastTriggered   *LastTriggered `json:"last_triggered,omitempty"`
	PendingLandmark *Landmark      `json:"pending_landmark,omitempty"`
}
