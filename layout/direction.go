package layout

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Direction is an edge traversed towards one of its terminals.
// The zero value is not a valid direction.
type Direction struct {
	Edge *Edge
	To   NodeID
}

func (d Direction) Valid() bool {
	return d.Edge != nil && d.Edge.HasNode(d.To)
}

func (d Direction) From() NodeID { return d.Edge.Other(d.To) }

func (d Direction) Opposite() Direction {
	return Direction{Edge: d.Edge, To: d.Edge.Other(d.To)}
}

// Location returns the location distance metres before To.
func (d Direction) Location(distance float64) EdgeLocation {
	return EdgeLocation{Direction: d, Distance: distance}
}

// Segment returns the part of the edge between the two distances (measured to To).
func (d Direction) Segment(a, b float64) EdgeSegment {
	return NewEdgeSegment(d.Edge, d.fromNode0(a), d.fromNode0(b))
}

func (d Direction) fromNode0(distance float64) float64 {
	if d.To == d.Edge.Node1 {
		return d.Edge.Length - distance
	}
	return distance
}

func (d Direction) String() string {
	if d.Edge == nil {
		return "direction(nil)"
	}
	return fmt.Sprintf("%s→%s", d.Edge.ID, d.To)
}

type directionJSON struct {
	Edge EdgeID `json:"edge"`
	To   NodeID `json:"to"`
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if d.Edge == nil {
		return []byte("null"), nil
	}
	return json.Marshal(directionJSON{Edge: d.Edge.ID, To: d.To})
}

// EdgeLocation is a point on an edge, expressed as the distance left to Direction.To.
type EdgeLocation struct {
	Direction Direction
	Distance  float64
}

func (l EdgeLocation) Edge() *Edge { return l.Direction.Edge }

// Opposite expresses the same point from the other end of the edge. The subtraction
// rounds, so l.Opposite().Opposite() is within one ulp of the edge length of l, not
// always equal to it.
func (l EdgeLocation) Opposite() EdgeLocation {
	return EdgeLocation{
		Direction: l.Direction.Opposite(),
		Distance:  l.Direction.Edge.Length - l.Distance,
	}
}

// FromNode0 returns the distance of the location from Node0 of its edge.
func (l EdgeLocation) FromNode0() float64 {
	return l.Direction.fromNode0(l.Distance)
}

// Clamp returns l with the distance forced into the edge bounds.
func (l EdgeLocation) Clamp() EdgeLocation {
	l.Distance = math.Max(0, math.Min(l.Direction.Edge.Length, l.Distance))
	return l
}

func (l EdgeLocation) Point() orb.Point {
	return l.Direction.Edge.PointAt(l.FromNode0())
}

// Orientation returns the heading of a train at l going towards Direction.To.
func (l EdgeLocation) Orientation() float64 {
	e := l.Direction.Edge
	h := e.HeadingAt(l.FromNode0())
	if l.Direction.To == e.Node0 {
		h = normalizeAngle(h+math.Pi, -math.Pi)
	}
	return h
}

func (l EdgeLocation) String() string {
	return fmt.Sprintf("%s@%.2f", l.Direction, l.Distance)
}

func (l EdgeLocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Direction Direction `json:"direction"`
		Distance  float64   `json:"distance"`
	}{l.Direction, l.Distance})
}

// EdgeSegment is the part of an edge between Start and End, both measured from Node0.
type EdgeSegment struct {
	Edge  *Edge
	Start float64
	End   float64
}

// NewEdgeSegment orders and clamps the bounds into the edge.
func NewEdgeSegment(e *Edge, a, b float64) EdgeSegment {
	if a > b {
		a, b = b, a
	}
	return EdgeSegment{
		Edge:  e,
		Start: math.Max(0, a),
		End:   math.Min(e.Length, b),
	}
}

func (s EdgeSegment) Length() float64 { return s.End - s.Start }

// Intersects reports whether both segments share a stretch of positive length.
func (s EdgeSegment) Intersects(o EdgeSegment) bool {
	return s.Edge == o.Edge && s.Start < o.End && o.Start < s.End
}

func (s EdgeSegment) Contains(fromNode0 float64) bool {
	return fromNode0 >= s.Start && fromNode0 <= s.End
}

func (s EdgeSegment) String() string {
	return fmt.Sprintf("%s[%.2f,%.2f]", s.Edge.ID, s.Start, s.End)
}

func (s EdgeSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Edge  EdgeID  `json:"edge"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}{s.Edge.ID, s.Start, s.End})
}
