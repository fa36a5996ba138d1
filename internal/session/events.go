package session

import (
	"github.com/varun-un/AetherConnect/internal/animation"
	"github.com/varun-un/AetherConnect/internal/lesson"
)

// EventType names the payload carried by an Event.
type EventType string

const (
	EventFrame      EventType = "frame"
	EventAnnotation EventType = "annotation"
	EventControl    EventType = "control"
	EventClock      EventType = "clock"
	EventTrack      EventType = "track"
	EventError      EventType = "error"
)

// Event is one message to a session subscriber. Exactly one payload field
// is set, matching Type.
type Event struct {
	Type       EventType          `json:"type"`
	Frame      *FramePayload      `json:"frame,omitempty"`
	Annotation *AnnotationPayload `json:"annotation,omitempty"`
	Control    *lesson.Control    `json:"control,omitempty"`
	Clock      *ClockPayload      `json:"clock,omitempty"`
	Track      *TrackPayload      `json:"track,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// FramePayload is an animation frame with its captions.
type FramePayload struct {
	animation.Frame
	Date        string        `json:"date"`
	SpeedLabel  string        `json:"speed_label"`
	SiderealDeg float64       `json:"sidereal_deg"`
	Velocity    *lesson.Shape `json:"velocity,omitempty"`
}

// AnnotationPayload announces an annotation appearing or disappearing.
type AnnotationPayload struct {
	ID     string         `json:"id"`
	State  string         `json:"state"`
	Shapes []lesson.Shape `json:"shapes,omitempty"`
}

// ClockPayload is the narration position.
type ClockPayload struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration,omitempty"`
	Playing  bool    `json:"playing"`
	Ended    bool    `json:"ended,omitempty"`
}

// TrackPayload is a body's orbit line, downsampled for drawing.
type TrackPayload struct {
	Body    string       `json:"body"`
	Radius  float64      `json:"radius"`
	TiltDeg float64      `json:"tilt"`
	Points  [][3]float64 `json:"points"`
}
