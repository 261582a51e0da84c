// Package station is the interlocking and motion engine: an immutable StationStatus that
// is advanced tick by tick and changed by operator commands.
package station

import (
	"sort"
	"sync"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/shingo/kinematics"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

const (
	CoachLength = 25.0
	MinCoaches  = 3
	MaxCoaches  = 10
	// ExitDistance is how far a train travels past the station border before it is gone.
	ExitDistance = 300.0
	// EntrySpeed sizes the clear track needed in front of an entry. Trains enter from a
	// standstill and accelerate like everywhere else.
	EntrySpeed = kinematics.MaxSpeed / 2
	// EntryTimeout is the minimum time a train waits at an entry after arriving.
	EntryTimeout = 10.0
	LoadingTime  = 30.0
	// SafetyDistance is kept between a braking train and its obstacle.
	SafetyDistance = 5.0
	// StopTolerance is how far from an obstacle a stopped train counts as standing at it.
	StopTolerance = 10.0
	// CrossingClearance is the part of a crossing path that must be free of other trains.
	CrossingClearance = 20.0
	// DefaultFrequency is the default arrival rate in trains per second.
	DefaultFrequency = 1.0 / 120
)

// StationStatus is the whole state of a station at one instant. It is immutable: every
// transition returns a new status, and a rejected command returns the receiver.
type StationStatus struct {
	m         *layout.StationMap
	routes    *route.Set
	trains    []Train
	time      float64
	autoLock  bool
	frequency float64
	model     kinematics.Model

	sounds      []SoundEvent
	performance Performance
	last        Performance

	sectionsOnce sync.Once
	sections     *route.Sections

	footprintsOnce sync.Once
	footprints     map[string][]layout.EdgeSegment
	occupants      map[layout.EdgeID][]occupant
	// outside holds the trains partly beyond each border node.
	outside map[layout.NodeID][]string
}

type occupant struct {
	train   string
	segment layout.EdgeSegment
	// head is set on the segment holding the head of a train on the map.
	head bool
	dir  layout.Direction
	// headDistance is the distance from the head to dir.To.
	headDistance float64
}

// New returns the status of an empty station at time 0 with auto-lock enabled.
func New(m *layout.StationMap, routes *route.Set) *StationStatus {
	return &StationStatus{
		m:         m,
		routes:    routes,
		autoLock:  true,
		frequency: DefaultFrequency,
		model:     kinematics.Default,
	}
}

// clone copies every field except the memoised ones and the sounds.
func (s *StationStatus) clone() *StationStatus {
	return &StationStatus{
		m:           s.m,
		routes:      s.routes,
		trains:      s.trains,
		time:        s.time,
		autoLock:    s.autoLock,
		frequency:   s.frequency,
		model:       s.model,
		performance: s.performance,
		last:        s.last,
	}
}

func (s *StationStatus) Map() *layout.StationMap { return s.m }
func (s *StationStatus) Routes() *route.Set      { return s.routes }
func (s *StationStatus) Time() float64           { return s.time }
func (s *StationStatus) AutoLock() bool          { return s.autoLock }
func (s *StationStatus) Frequency() float64      { return s.frequency }
func (s *StationStatus) Model() kinematics.Model { return s.model }

// Trains returns a copy of the train list.
func (s *StationStatus) Trains() []Train { return slices.Clone(s.trains) }

// Sounds returns the events emitted by the transition that produced s.
func (s *StationStatus) Sounds() []SoundEvent { return slices.Clone(s.sounds) }

// Performance returns the performance accumulated since the start.
func (s *StationStatus) Performance() Performance { return s.performance }

// LastPerformance returns the performance of the last tick.
func (s *StationStatus) LastPerformance() Performance { return s.last }

// Sections returns the section graph of the current route state.
func (s *StationStatus) Sections() *route.Sections {
	s.sectionsOnce.Do(func() {
		s.sections = route.CreateSections(s.m, s.routes)
	})
	return s.sections
}

func (s *StationStatus) SectionOf(edge layout.EdgeID) (*route.Section, bool) {
	return s.Sections().Of(edge)
}

// FindSection returns the section containing d and the edges of the sections crossing it.
// Sections bounded by a dead end are absent.
func (s *StationStatus) FindSection(d layout.Direction) (*route.Section, []layout.EdgeID, bool) {
	if !d.Valid() {
		return nil, nil, false
	}
	sec, ok := s.SectionOf(d.Edge.ID)
	if !ok || sec.DeadEnd {
		return nil, nil, false
	}
	var crossing []layout.EdgeID
	for _, id := range sec.Crossing {
		other, _ := s.Sections().ByID(id)
		crossing = append(crossing, other.Edges...)
	}
	slices.Sort(crossing)
	return sec, crossing, true
}

func (s *StationStatus) ensureFootprints() {
	s.footprintsOnce.Do(func() {
		s.footprints = map[string][]layout.EdgeSegment{}
		s.occupants = map[layout.EdgeID][]occupant{}
		s.outside = map[layout.NodeID][]string{}
		for _, t := range s.trains {
			fp, border := s.footprint(t)
			s.footprints[t.ID] = fp
			for i, seg := range fp {
				s.occupants[seg.Edge.ID] = append(s.occupants[seg.Edge.ID], occupant{
					train:        t.ID,
					segment:      seg,
					head:         i == 0 && t.State != TrainStateExiting,
					dir:          t.Location.Direction,
					headDistance: t.Location.Distance,
				})
			}
			if border != "" {
				s.outside[border] = append(s.outside[border], t.ID)
			}
		}
	})
}

// footprint returns the track covered by t, and the border node t sticks out of, if any.
func (s *StationStatus) footprint(t Train) ([]layout.EdgeSegment, layout.NodeID) {
	if !t.Located {
		return nil, ""
	}
	length := t.Length()
	var border layout.NodeID
	if t.State == TrainStateExiting {
		length -= t.ExitDistance
		border = t.Location.Direction.To
	}
	if length <= 0 {
		return nil, ""
	}
	segs, tail, complete := s.backward(t.Location, length)
	if !complete {
		if r, ok := s.routes.At(tail.Direction.From()); ok && r.Kind.IsBorder() {
			border = r.Nodes[0]
		}
	}
	return segs, border
}

// Footprint returns the track covered by the train with the given id.
func (s *StationStatus) Footprint(id string) []layout.EdgeSegment {
	s.ensureFootprints()
	return slices.Clone(s.footprints[id])
}

func (s *StationStatus) Train(id string) (Train, bool) {
	i := s.trainIndex(id)
	if i == -1 {
		return Train{}, false
	}
	return s.trains[i], true
}

func (s *StationStatus) trainIndex(id string) int {
	return slices.IndexFunc(s.trains, func(t Train) bool { return t.ID == id })
}

// TrainOnEdge returns the first train covering part of edge.
func (s *StationStatus) TrainOnEdge(edge layout.EdgeID) (Train, bool) {
	s.ensureFootprints()
	occ := s.occupants[edge]
	if len(occ) == 0 {
		return Train{}, false
	}
	return s.Train(occ[0].train)
}

// TrainsInSection returns the trains covering part of the section.
func (s *StationStatus) TrainsInSection(id string) []Train {
	sec, ok := s.Sections().ByID(id)
	if !ok {
		return nil
	}
	return s.trainsOn(sec.Edges, "")
}

func (s *StationStatus) trainsOn(edges []layout.EdgeID, except string) []Train {
	s.ensureFootprints()
	var res []Train
	seen := map[string]bool{}
	for _, e := range edges {
		for _, o := range s.occupants[e] {
			if o.train == except || seen[o.train] {
				continue
			}
			seen[o.train] = true
			t, _ := s.Train(o.train)
			res = append(res, t)
		}
	}
	return res
}

// TrainsAtEntry returns the trains queued at an entry, first to enter first.
func (s *StationStatus) TrainsAtEntry(routeID string) []Train {
	var res []Train
	for _, t := range s.trains {
		if t.State == TrainStateEntering && t.Arrival == routeID {
			res = append(res, t)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].queuedBefore(res[j]) })
	return res
}

// TrainsExitingAt returns the trains leaving the station through the route.
func (s *StationStatus) TrainsExitingAt(routeID string) []Train {
	var res []Train
	for _, t := range s.trains {
		if t.State == TrainStateExiting && t.ExitRoute == routeID {
			res = append(res, t)
		}
	}
	return res
}

// IsSectionClear reports whether no train covers the section or a section crossing it.
func (s *StationStatus) IsSectionClear(sec *route.Section) bool {
	if len(s.trainsOn(sec.Edges, "")) > 0 {
		return false
	}
	for _, id := range sec.Crossing {
		other, _ := s.Sections().ByID(id)
		if len(s.trainsOn(other.Edges, "")) > 0 {
			return false
		}
	}
	return true
}

func (s *StationStatus) withTrains(trains []Train) *StationStatus {
	s2 := s.clone()
	s2.trains = trains
	return s2
}

// WithTrains returns a status with the trains replaced. This is for setting up scenarios.
func (s *StationStatus) WithTrains(trains ...Train) *StationStatus {
	return s.withTrains(slices.Clone(trains))
}

// WithTime returns a status with the clock set to t.
func (s *StationStatus) WithTime(t float64) *StationStatus {
	s2 := s.clone()
	s2.time = t
	return s2
}

// WithModel returns a status whose trains follow the given speed model.
func (s *StationStatus) WithModel(m kinematics.Model) *StationStatus {
	s2 := s.clone()
	s2.model = m
	return s2
}
