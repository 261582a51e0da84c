package station

import (
	"fmt"
	"math"

	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

// Obstacle is what ended a forward walk.
type Obstacle int

const (
	ObstacleNone Obstacle = iota
	ObstacleTrain
	ObstacleSignal
	ObstacleDeadEnd
	// ObstacleSwitch is a switch set against the train.
	ObstacleSwitch
	ObstacleCrossing
	// ObstaclePlatform is the end of a platform a train has to stop at.
	ObstaclePlatform
	// ObstacleBorder is the border of the station: the walk left through an entry or exit.
	ObstacleBorder
)

func (o Obstacle) String() string {
	switch o {
	case ObstacleNone:
		return "none"
	case ObstacleTrain:
		return "train"
	case ObstacleSignal:
		return "signal"
	case ObstacleDeadEnd:
		return "dead-end"
	case ObstacleSwitch:
		return "switch"
	case ObstacleCrossing:
		return "crossing"
	case ObstaclePlatform:
		return "platform"
	case ObstacleBorder:
		return "border"
	default:
		return fmt.Sprintf("%d", int(o))
	}
}

// maxSteps bounds walks on looping track.
func (s *StationStatus) maxSteps() int {
	return 2*len(s.m.Edges()) + 2
}

func (s *StationStatus) routeAt(n layout.NodeID) *route.Route {
	r, ok := s.routes.At(n)
	if !ok {
		panic(fmt.Sprintf("node %s has no route", n))
	}
	return r
}

// previous returns the direction a train going along d came from.
func (s *StationStatus) previous(d layout.Direction) (layout.Direction, bool) {
	back, ok := s.routeAt(d.From()).Follow(s.m, d.Opposite())
	if !ok {
		return layout.Direction{}, false
	}
	return back.Opposite(), true
}

// backward walks length metres back from head. It returns the covered segments, the
// location length metres behind head (in the same travelling direction), and whether the
// track behind was long enough.
func (s *StationStatus) backward(head layout.EdgeLocation, length float64) ([]layout.EdgeSegment, layout.EdgeLocation, bool) {
	var segs []layout.EdgeSegment
	d := head.Direction
	pos := head.Distance
	remaining := length
	for i := 0; i < s.maxSteps(); i++ {
		avail := d.Edge.Length - pos
		if remaining <= avail {
			segs = append(segs, d.Segment(pos, pos+remaining))
			return segs, d.Location(pos + remaining), true
		}
		if avail > 0 {
			segs = append(segs, d.Segment(pos, d.Edge.Length))
		}
		remaining -= avail
		prev, ok := s.previous(d)
		if !ok {
			return segs, d.Location(d.Edge.Length), false
		}
		d = prev
		pos = 0
	}
	return segs, d.Location(pos), false
}

// BackwardWalk returns the segments covered by length metres of track behind loc.
func (s *StationStatus) BackwardWalk(loc layout.EdgeLocation, length float64) []layout.EdgeSegment {
	segs, _, _ := s.backward(loc, length)
	return segs
}

// ForwardWalk returns the segments of the distance metres ahead of loc, following the
// current device state. The walk ends early at the station border or a device that
// cannot be passed.
func (s *StationStatus) ForwardWalk(loc layout.EdgeLocation, distance float64) []layout.EdgeSegment {
	var segs []layout.EdgeSegment
	d := loc.Direction
	pos := loc.Distance
	remaining := distance
	for i := 0; i < s.maxSteps(); i++ {
		if remaining <= pos {
			return append(segs, d.Segment(pos-remaining, pos))
		}
		if pos > 0 {
			segs = append(segs, d.Segment(0, pos))
		}
		remaining -= pos
		next, ok := s.routeAt(d.To).Follow(s.m, d)
		if !ok {
			return segs
		}
		d = next
		pos = d.Edge.Length
	}
	return segs
}

// trainAhead returns the gap between a head pos metres before d.To and the nearest part
// of another train ahead of it on the same edge.
func (s *StationStatus) trainAhead(d layout.Direction, pos float64, self string) (float64, bool) {
	s.ensureFootprints()
	gap := math.Inf(1)
	for _, o := range s.occupants[d.Edge.ID] {
		if o.train == self {
			continue
		}
		// distances to d.To
		a, b := o.segment.Start, o.segment.End
		if d.To == d.Edge.Node1 {
			a, b = d.Edge.Length-b, d.Edge.Length-a
		}
		if a >= pos {
			continue
		}
		g := math.Max(0, pos-b)
		if o.head && o.dir == d.Opposite() {
			// both trains may close the gap within the same tick
			g /= 2
		}
		gap = math.Min(gap, g)
	}
	return gap, !math.IsInf(gap, 1)
}

// claim is a moving train heading for a node of a crossing device.
type claim struct {
	train    Train
	distance float64
}

// slack is how far before the device the train could stop. It is negative when the train
// can no longer stop in time.
func (s *StationStatus) slack(c claim) float64 {
	return c.distance - s.model.StoppingDistance(c.train.Speed)
}

// hasWay reports whether a passes a crossing before b: the train with less slack goes
// first, then the one with the smaller id.
func (s *StationStatus) hasWay(a, b claim) bool {
	sa, sb := s.slack(a), s.slack(b)
	if sa != sb {
		return sa < sb
	}
	return a.train.ID < b.train.ID
}

// crossingLookahead is how far from a crossing device trains claim it.
func (s *StationStatus) crossingLookahead() float64 {
	return s.model.StoppingDistance(s.model.VMax) + SafetyDistance
}

// claimOf returns the claim of the train self, distance metres before a crossing device.
func (s *StationStatus) claimOf(self string, distance float64) (claim, bool) {
	t, ok := s.Train(self)
	if !ok || !t.Located || t.Speed <= 0 || distance >= s.crossingLookahead() {
		return claim{}, false
	}
	return claim{train: t, distance: distance}, true
}

// approaching returns the claims of the trains heading for node within the lookahead.
// Trains held behind a locked signal do not claim.
func (s *StationStatus) approaching(node layout.NodeID) []claim {
	out, ok := s.m.Leaving(node, 0)
	if !ok {
		return nil
	}
	d := out.Opposite()
	limit := s.crossingLookahead()
	var res []claim
	acc := 0.0
	for i := 0; i < s.maxSteps() && acc < limit; i++ {
		for _, o := range s.occupants[d.Edge.ID] {
			if !o.head || o.dir != d {
				continue
			}
			c, ok := s.claimOf(o.train, acc+o.headDistance)
			if ok {
				res = append(res, c)
			}
		}
		acc += d.Edge.Length
		prev, ok := s.previous(d)
		if !ok || s.routeAt(prev.To).IsLocked(prev) {
			break
		}
		d = prev
	}
	return res
}

// crossingBusy reports whether a train self, distance metres before node, has to wait at
// the crossing device r. The device is busy while another train covers the other path
// near the device, or while a train heading for the other path has way over self.
// Without self, any train heading for the other path makes it busy.
func (s *StationStatus) crossingBusy(r *route.Route, node layout.NodeID, self string, distance float64) bool {
	other, ok := r.OtherPath(node)
	if !ok {
		return false
	}
	s.ensureFootprints()
	me, claiming := s.claimOf(self, distance)
	for _, n := range other {
		dir, _ := s.m.Leaving(n, 0)
		e := dir.Edge
		for _, o := range s.occupants[e.ID] {
			if o.train == self || (o.head && o.dir.To == n) {
				continue
			}
			if n == e.Node0 && o.segment.Start <= CrossingClearance {
				return true
			}
			if n == e.Node1 && o.segment.End >= e.Length-CrossingClearance {
				return true
			}
		}
		for _, c := range s.approaching(n) {
			if c.train.ID == self {
				continue
			}
			if !claiming || s.hasWay(c, me) {
				return true
			}
		}
	}
	return false
}

// freeDistance walks forward from loc and returns how far a train may go before meeting
// an obstacle, at most limit. Trains other than self, locked signals, dead ends, switches
// set against the walk and busy crossings are obstacles, and so is the end of a platform
// when platformStop is set. Leaving the station adds ExitDistance.
func (s *StationStatus) freeDistance(loc layout.EdgeLocation, limit float64, self string, platformStop bool) (float64, Obstacle) {
	d := loc.Direction
	pos := loc.Distance
	acc := 0.0
	for i := 0; i < s.maxSteps(); i++ {
		if gap, ok := s.trainAhead(d, pos, self); ok {
			return math.Min(acc+gap, limit), ObstacleTrain
		}
		acc += pos
		if acc >= limit {
			return limit, ObstacleNone
		}
		r := s.routeAt(d.To)
		if platformStop && d.Edge.IsPlatform() {
			next, ok := r.Follow(s.m, d)
			if !ok || !next.Edge.IsPlatform() {
				return acc, ObstaclePlatform
			}
		}
		switch r.Kind {
		case route.KindEntry, route.KindExit:
			return math.Min(acc+ExitDistance, limit), ObstacleBorder
		case route.KindDeadEnd:
			return acc, ObstacleDeadEnd
		}
		if r.IsLocked(d) {
			return acc, ObstacleSignal
		}
		next, ok := r.Follow(s.m, d)
		if !ok {
			return acc, ObstacleSwitch
		}
		if s.crossingBusy(r, d.To, self, acc) {
			// stop short so the head never reaches a busy crossing
			return math.Max(0, acc-SafetyDistance), ObstacleCrossing
		}
		d = next
		pos = d.Edge.Length
	}
	return acc, ObstacleNone
}

// FreeDistance returns how far a train at loc could go, at most limit. Every train is an
// obstacle, so a location covered by a train has no free distance.
func (s *StationStatus) FreeDistance(loc layout.EdgeLocation, limit float64) float64 {
	free, _ := s.freeDistance(loc, limit, "", false)
	return free
}

// IsNextTracksClear reports whether distance metres ahead of loc are free.
func (s *StationStatus) IsNextTracksClear(loc layout.EdgeLocation, distance float64) bool {
	return s.FreeDistance(loc, distance) >= distance
}

// IsNextRouteClear reports whether the device at d.To lets a train coming along d pass.
func (s *StationStatus) IsNextRouteClear(d layout.Direction) bool {
	r := s.routeAt(d.To)
	switch r.Kind {
	case route.KindEntry, route.KindExit:
		return true
	case route.KindDeadEnd:
		return false
	}
	if _, ok := r.Next(s.m, d); !ok {
		return false
	}
	return !s.crossingBusy(r, d.To, "", 0)
}

// IsNextSignalClear reports whether the first signal ahead of d is unlocked for trains
// coming along the walk. Leaving the station before any signal counts as clear.
func (s *StationStatus) IsNextSignalClear(d layout.Direction) bool {
	for i := 0; i < s.maxSteps(); i++ {
		r := s.routeAt(d.To)
		switch r.Kind {
		case route.KindEntry, route.KindExit:
			return true
		case route.KindDeadEnd:
			return false
		case route.KindSignal:
			return !r.IsLocked(d)
		}
		next, ok := r.Follow(s.m, d)
		if !ok {
			return false
		}
		d = next
	}
	return false
}

// moved is the result of advancing a head along the track.
type moved struct {
	loc layout.EdgeLocation
	// passed holds the directions by which signals were passed.
	passed []passedSignal
	// border is the route the head left the station through, if any.
	border string
	// overshoot is the distance travelled past the border.
	overshoot float64
}

type passedSignal struct {
	route string
	in    layout.Direction
}

// move advances loc by distance metres following the current device state. Callers keep
// distance within the free distance, so locks are not checked.
func (s *StationStatus) move(loc layout.EdgeLocation, distance float64) moved {
	var res moved
	remaining := distance
	for i := 0; i < s.maxSteps(); i++ {
		if remaining <= loc.Distance {
			loc.Distance -= remaining
			res.loc = loc
			return res
		}
		remaining -= loc.Distance
		loc.Distance = 0
		r := s.routeAt(loc.Direction.To)
		switch r.Kind {
		case route.KindEntry, route.KindExit:
			res.loc = loc
			res.border = r.ID
			res.overshoot = remaining
			return res
		case route.KindSignal:
			res.passed = append(res.passed, passedSignal{route: r.ID, in: loc.Direction})
		}
		next, ok := r.Follow(s.m, loc.Direction)
		if !ok {
			res.loc = loc
			return res
		}
		loc = next.Location(next.Edge.Length)
	}
	res.loc = loc
	return res
}
