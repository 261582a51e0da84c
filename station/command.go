package station

import (
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

func (s *StationStatus) reject(command string, args ...interface{}) *StationStatus {
	zap.S().Debugw("command rejected", append([]interface{}{"command", command}, args...)...)
	return s
}

// ToggleSwitch flips a switch. It is rejected when a train is in the section the switch
// currently sets.
func (s *StationStatus) ToggleSwitch(id string) *StationStatus {
	return s.toggle("toggle-switch", id, route.KindSwitch)
}

// ToggleDoubleSlipSwitch flips a double slip switch. It is rejected when a train is in
// one of the sections using the device.
func (s *StationStatus) ToggleDoubleSlipSwitch(id string) *StationStatus {
	return s.toggle("toggle-double-slip-switch", id, route.KindDoubleSlipSwitch)
}

func (s *StationStatus) toggle(command, id string, kind route.Kind) *StationStatus {
	r, ok := s.routes.Route(id)
	if !ok || r.Kind != kind {
		return s.reject(command, "route", id, "reason", "no such device")
	}
	for _, sec := range s.Sections().Active(s.m, r) {
		if trains := s.TrainsInSection(sec.ID); len(trains) > 0 {
			return s.reject(command, "route", id, "reason", "occupied", "section", sec.ID, "train", trains[0].ID)
		}
	}
	r2, _ := r.Toggle()
	s2 := s.clone()
	s2.routes = s.routes.With(r2)
	s2.sounds = []SoundEvent{{Kind: SoundSwitch, Route: id}}
	return s2
}

func (s *StationStatus) signalDirection(signalID string, edge layout.EdgeID) (*route.Route, layout.Direction, bool) {
	r, ok := s.routes.Route(signalID)
	if !ok || r.Kind != route.KindSignal {
		return nil, layout.Direction{}, false
	}
	d, err := s.m.Direction(edge, r.Nodes[0])
	if err != nil {
		return nil, layout.Direction{}, false
	}
	return r, d, true
}

// LockSignal forbids trains coming along edge from passing the signal.
func (s *StationStatus) LockSignal(signalID string, edge layout.EdgeID) *StationStatus {
	r, d, ok := s.signalDirection(signalID, edge)
	if !ok {
		return s.reject("lock-signal", "route", signalID, "edge", edge)
	}
	r2, _ := r.Lock(d)
	return s.withRoutes(s.routes.With(r2))
}

// UnlockSignal lets trains coming along edge pass the signal.
func (s *StationStatus) UnlockSignal(signalID string, edge layout.EdgeID) *StationStatus {
	r, d, ok := s.signalDirection(signalID, edge)
	if !ok {
		return s.reject("unlock-signal", "route", signalID, "edge", edge)
	}
	r2, _ := r.Unlock(d)
	return s.withRoutes(s.routes.With(r2))
}

// LockSection locks, at every signal bounding the section of edge, the direction trains
// enter the section by.
func (s *StationStatus) LockSection(edge layout.EdgeID) *StationStatus {
	return s.editSection("lock-section", edge, (*route.Route).Lock)
}

// UnlockSection is the inverse of LockSection.
func (s *StationStatus) UnlockSection(edge layout.EdgeID) *StationStatus {
	return s.editSection("unlock-section", edge, (*route.Route).Unlock)
}

func (s *StationStatus) editSection(command string, edge layout.EdgeID, edit func(*route.Route, layout.Direction) (*route.Route, bool)) *StationStatus {
	sec, ok := s.SectionOf(edge)
	if !ok {
		return s.reject(command, "edge", edge, "reason", "no such edge")
	}
	routes := s.routes
	for _, term := range sec.Terminals {
		r, _ := routes.At(term.To)
		if r.Kind != route.KindSignal {
			continue
		}
		out, ok := r.Follow(s.m, term)
		if !ok {
			continue
		}
		r2, _ := edit(r, out.Opposite())
		routes = routes.With(r2)
	}
	return s.withRoutes(routes)
}

// withRoutes returns s itself when nothing changed.
func (s *StationStatus) withRoutes(routes *route.Set) *StationStatus {
	if routes == s.routes {
		return s
	}
	s2 := s.clone()
	s2.routes = routes
	return s2
}

func (s *StationStatus) withTrain(t Train) *StationStatus {
	i := s.trainIndex(t.ID)
	trains := slices.Clone(s.trains)
	trains[i] = t
	return s.withTrains(trains)
}

// StopTrain makes a moving or waiting train brake and hold until StartTrain.
func (s *StationStatus) StopTrain(id string) *StationStatus {
	t, ok := s.Train(id)
	if !ok {
		return s.reject("stop-train", "train", id, "reason", "no such train")
	}
	switch t.State {
	case TrainStateRunning, TrainStateBraking, TrainStateWaitingForSignal:
	default:
		return s.reject("stop-train", "train", id, "state", t.State)
	}
	t.ManualStop = true
	if t.Speed > 0 {
		t.State = TrainStateBraking
	} else {
		t.State = TrainStateWaitingForRun
	}
	return s.withTrain(t)
}

// StartTrain releases a train held by StopTrain.
func (s *StationStatus) StartTrain(id string) *StationStatus {
	t, ok := s.Train(id)
	if !ok {
		return s.reject("start-train", "train", id, "reason", "no such train")
	}
	if !t.ManualStop && t.State != TrainStateWaitingForRun {
		return s.reject("start-train", "train", id, "state", t.State)
	}
	t.ManualStop = false
	t.State = TrainStateRunning
	return s.withTrain(t)
}

// RevertTrain turns a stopped train around: the head moves to where the tail was, and
// arrival and destination are swapped. The train must be entirely on the map.
func (s *StationStatus) RevertTrain(id string) *StationStatus {
	t, ok := s.Train(id)
	if !ok {
		return s.reject("revert-train", "train", id, "reason", "no such train")
	}
	if !t.Located || t.Speed != 0 {
		return s.reject("revert-train", "train", id, "reason", "not stopped")
	}
	switch t.State {
	case TrainStateWaitingForSignal, TrainStateWaitingForRun:
	default:
		return s.reject("revert-train", "train", id, "state", t.State)
	}
	_, tail, complete := s.backward(t.Location, t.Length())
	if !complete {
		return s.reject("revert-train", "train", id, "reason", "not entirely on the map")
	}
	t.Location = tail.Opposite()
	t.Arrival, t.Destination = t.Destination, t.Arrival
	t.State = TrainStateWaitingForRun
	t.ManualStop = true
	return s.withTrain(t)
}

// SetAutoLock turns on or off the locking of signals behind passing trains.
func (s *StationStatus) SetAutoLock(on bool) *StationStatus {
	if s.autoLock == on {
		return s
	}
	s2 := s.clone()
	s2.autoLock = on
	return s2
}

// SetFrequency sets the arrival rate in trains per second.
func (s *StationStatus) SetFrequency(f float64) *StationStatus {
	if f < 0 {
		return s.reject("set-frequency", "frequency", f)
	}
	if s.frequency == f {
		return s
	}
	s2 := s.clone()
	s2.frequency = f
	return s2
}
