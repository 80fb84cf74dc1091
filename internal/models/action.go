package models

type ActionKind string

const (
	ActionNone        ActionKind = "NONE"
	ActionOpen        ActionKind = "OPEN"
	ActionPyramid     ActionKind = "PYRAMID"
	ActionAverageDown ActionKind = "AVERAGE_DOWN"
	ActionTrailUpdate ActionKind = "TRAIL_UPDATE"
	ActionPartialExit ActionKind = "PARTIAL_EXIT"
	ActionStopExit    ActionKind = "STOP_EXIT"
)

// PositionAction is the one decision produced per tick per symbol. The
// payload fields are only meaningful for the kinds that set them, so
// construction goes through the typed constructors below.
type PositionAction struct {
	Kind     ActionKind `json:"kind"`
	Notional float64    `json:"notional,omitempty"`
	NewStop  float64    `json:"new_stop,omitempty"`
	Level    float64    `json:"level,omitempty"`
	Fraction float64    `json:"fraction,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

func NoAction() PositionAction {
	return PositionAction{Kind: ActionNone}
}

func OpenAction(notional float64) PositionAction {
	return PositionAction{Kind: ActionOpen, Notional: notional}
}

func PyramidAction(legNotional float64) PositionAction {
	return PositionAction{Kind: ActionPyramid, Notional: legNotional}
}

func AverageDownAction(legNotional float64) PositionAction {
	return PositionAction{Kind: ActionAverageDown, Notional: legNotional}
}

func TrailUpdateAction(newStop float64) PositionAction {
	return PositionAction{Kind: ActionTrailUpdate, NewStop: newStop}
}

func PartialExitAction(level, fraction float64) PositionAction {
	return PositionAction{Kind: ActionPartialExit, Level: level, Fraction: fraction}
}

func StopExitAction(reason string) PositionAction {
	return PositionAction{Kind: ActionStopExit, Reason: reason}
}
