package layout

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// boundPadding keeps the terminals of an edge inside its bound despite rounding.
const boundPadding = 1e-6

type EdgeKind int

const (
	EdgeKindTrack    EdgeKind = 1
	EdgeKindPlatform EdgeKind = 2
	EdgeKindCurve    EdgeKind = 3
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeKindTrack:
		return "track"
	case EdgeKindPlatform:
		return "platform"
	case EdgeKindCurve:
		return "curve"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

func (k EdgeKind) MarshalText() ([]byte, error) {
	switch k {
	case EdgeKindTrack, EdgeKindPlatform, EdgeKindCurve:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown edge kind %d", int(k))
	}
}

func (k *EdgeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "track":
		*k = EdgeKindTrack
	case "platform":
		*k = EdgeKindPlatform
	case "curve":
		*k = EdgeKindCurve
	default:
		return fmt.Errorf("unknown edge kind %q", text)
	}
	return nil
}

// Edge is a piece of track between two nodes.
// Platforms share the geometry of straight tracks.
type Edge struct {
	ID     EdgeID
	Kind   EdgeKind
	Node0  NodeID
	Node1  NodeID
	P0     orb.Point
	P1     orb.Point
	Length float64 // metres
	Bound  orb.Bound

	// Below: for curves only

	Radius     float64
	Center     orb.Point
	StartAngle float64 // angle of P0 seen from Center
	Angle      float64 // signed sweep from P0 to P1
}

func newEdge(ed EdgeData, p0, p1 orb.Point) (*Edge, error) {
	e := &Edge{
		ID:    ed.ID,
		Kind:  ed.Kind,
		Node0: ed.Node0,
		Node1: ed.Node1,
		P0:    p0,
		P1:    p1,
	}
	switch ed.Kind {
	case EdgeKindTrack, EdgeKindPlatform:
		e.Length = distance(p0, p1)
		e.Bound = orb.Bound{Min: p0, Max: p0}.Extend(p1).Pad(boundPadding)
	case EdgeKindCurve:
		if err := e.initCurve(ed.Angle); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("edge %q: unknown kind %s: %w", ed.ID, ed.Kind, ErrInvalidReference)
	}
	return e, nil
}

func (e *Edge) initCurve(angle float64) error {
	chord := distance(e.P0, e.P1)
	if angle == 0 || math.Abs(angle) >= 2*math.Pi || chord == 0 {
		return fmt.Errorf("edge %q: curve with chord %g and sweep %g: %w", e.ID, chord, angle, ErrInvalidReference)
	}
	half := math.Abs(angle) / 2
	r := chord / (2 * math.Sin(half))
	ux, uy := (e.P1[0]-e.P0[0])/chord, (e.P1[1]-e.P0[1])/chord
	// the center lies on the left of the chord for a counter-clockwise sweep
	nx, ny := -uy, ux
	if angle < 0 {
		nx, ny = -nx, -ny
	}
	h := r * math.Cos(half)
	e.Center = orb.Point{(e.P0[0]+e.P1[0])/2 + nx*h, (e.P0[1]+e.P1[1])/2 + ny*h}
	e.Radius = r
	e.Angle = angle
	e.StartAngle = math.Atan2(e.P0[1]-e.Center[1], e.P0[0]-e.Center[0])
	e.Length = r * math.Abs(angle)

	b := orb.Bound{Min: e.P0, Max: e.P0}.Extend(e.P1)
	for k := 0; k < 4; k++ {
		axis := float64(k) * math.Pi / 2
		if e.inSweep(axis) {
			b = b.Extend(orb.Point{e.Center[0] + r*math.Cos(axis), e.Center[1] + r*math.Sin(axis)})
		}
	}
	e.Bound = b.Pad(boundPadding)
	return nil
}

// inSweep reports whether the polar angle a (seen from Center) is on the arc.
func (e *Edge) inSweep(a float64) bool {
	delta := normalizeAngle(a-e.StartAngle, 0)
	if e.Angle > 0 {
		return delta <= e.Angle
	}
	return delta == 0 || 2*math.Pi-delta <= -e.Angle
}

// normalizeAngle maps a into [lo, lo+2π).
func normalizeAngle(a, lo float64) float64 {
	a = math.Mod(a-lo, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a + lo
}

func (e *Edge) HasNode(n NodeID) bool {
	return n == e.Node0 || n == e.Node1
}

// Other returns the terminal that is not n.
func (e *Edge) Other(n NodeID) NodeID {
	if n == e.Node0 {
		return e.Node1
	}
	return e.Node0
}

func (e *Edge) IsPlatform() bool { return e.Kind == EdgeKindPlatform }

// PointAt returns the point s metres from Node0.
func (e *Edge) PointAt(s float64) orb.Point {
	if e.Length == 0 {
		return e.P0
	}
	f := math.Max(0, math.Min(1, s/e.Length))
	if e.Kind == EdgeKindCurve {
		a := e.StartAngle + e.Angle*f
		return orb.Point{e.Center[0] + e.Radius*math.Cos(a), e.Center[1] + e.Radius*math.Sin(a)}
	}
	return orb.Point{e.P0[0] + (e.P1[0]-e.P0[0])*f, e.P0[1] + (e.P1[1]-e.P0[1])*f}
}

// HeadingAt returns the heading (radians) of a train going from Node0 to Node1, s metres
// from Node0.
func (e *Edge) HeadingAt(s float64) float64 {
	if e.Kind == EdgeKindCurve && e.Length > 0 {
		f := math.Max(0, math.Min(1, s/e.Length))
		a := e.StartAngle + e.Angle*f
		if e.Angle > 0 {
			return normalizeAngle(a+math.Pi/2, -math.Pi)
		}
		return normalizeAngle(a-math.Pi/2, -math.Pi)
	}
	return math.Atan2(e.P1[1]-e.P0[1], e.P1[0]-e.P0[0])
}

// Sample returns points along the edge at most step metres apart, both ends included.
func (e *Edge) Sample(step float64) orb.LineString {
	if e.Kind != EdgeKindCurve || step <= 0 {
		return orb.LineString{e.P0, e.P1}
	}
	n := int(math.Ceil(e.Length / step))
	if n < 1 {
		n = 1
	}
	ls := make(orb.LineString, 0, n+1)
	for i := 0; i < n; i++ {
		ls = append(ls, e.PointAt(e.Length*float64(i)/float64(n)))
	}
	return append(ls, e.P1)
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s(%s %s–%s %.1fm)", e.ID, e.Kind, e.Node0, e.Node1, e.Length)
}
