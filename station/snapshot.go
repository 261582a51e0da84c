package station

import (
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

// Coach is the placement of one coach for drawing.
type Coach struct {
	Index int `json:"index"`
	// X and Y are the centre of the coach.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Orientation is the heading in radians.
	Orientation float64 `json:"orientation"`
}

// Coaches returns the coaches of t that are on the map, head first.
func (s *StationStatus) Coaches(t Train) []Coach {
	if !t.Located {
		return nil
	}
	offset := 0.0
	if t.State == TrainStateExiting {
		offset = t.ExitDistance
	}
	var res []Coach
	for i := 0; i < t.Coaches; i++ {
		behind := (float64(i)+0.5)*CoachLength - offset
		if behind < 0 {
			continue
		}
		_, loc, ok := s.backward(t.Location, behind)
		if !ok {
			break
		}
		p := loc.Point()
		res = append(res, Coach{Index: i, X: p[0], Y: p[1], Orientation: loc.Orientation()})
	}
	return res
}

type TrainSnapshot struct {
	Train
	Section   string  `json:"section,omitempty"`
	Placement []Coach `json:"placement"`
}

type DeviceSnapshot struct {
	ID      string     `json:"id"`
	Kind    route.Kind `json:"kind"`
	Through bool       `json:"through"`
}

type SignalSnapshot struct {
	ID     string             `json:"id"`
	Locked []layout.Direction `json:"locked"`
	// Clear reports, per incident edge, whether a train coming along it may pass.
	Clear map[layout.EdgeID]bool `json:"clear"`
}

type SectionSnapshot struct {
	ID       string          `json:"id"`
	Edges    []layout.EdgeID `json:"edges"`
	Crossing []string        `json:"crossing,omitempty"`
	Trains   []string        `json:"trains,omitempty"`
}

// Snapshot is a read-only view of a status for renderers.
type Snapshot struct {
	Station         string            `json:"station"`
	Time            float64           `json:"time"`
	AutoLock        bool              `json:"autoLock"`
	Frequency       float64           `json:"frequency"`
	Trains          []TrainSnapshot   `json:"trains"`
	Devices         []DeviceSnapshot  `json:"devices"`
	Signals         []SignalSnapshot  `json:"signals"`
	Sections        []SectionSnapshot `json:"sections"`
	Performance     Performance       `json:"performance"`
	LastPerformance Performance       `json:"lastPerformance"`
	Sounds          []SoundEvent      `json:"sounds,omitempty"`
}

func (s *StationStatus) Snapshot() Snapshot {
	snap := Snapshot{
		Station:         s.m.Name,
		Time:            s.time,
		AutoLock:        s.autoLock,
		Frequency:       s.frequency,
		Performance:     s.performance,
		LastPerformance: s.last,
		Sounds:          s.Sounds(),
	}
	for _, t := range s.trains {
		ts := TrainSnapshot{Train: t, Placement: s.Coaches(t)}
		if t.Located {
			if sec, ok := s.SectionOf(t.Location.Direction.Edge.ID); ok {
				ts.Section = sec.ID
			}
		}
		snap.Trains = append(snap.Trains, ts)
	}
	for _, r := range s.routes.OfKind(route.KindSwitch, route.KindDoubleSlipSwitch, route.KindCrossRoute) {
		snap.Devices = append(snap.Devices, DeviceSnapshot{ID: r.ID, Kind: r.Kind, Through: r.IsThrough()})
	}
	for _, r := range s.routes.OfKind(route.KindSignal) {
		ss := SignalSnapshot{ID: r.ID, Locked: r.Locked(s.m), Clear: map[layout.EdgeID]bool{}}
		n, _ := s.m.Node(r.Nodes[0])
		for _, e := range n.Edges {
			ss.Clear[e] = s.IsNextRouteClear(s.m.MustDirection(e, r.Nodes[0]))
		}
		snap.Signals = append(snap.Signals, ss)
	}
	for _, sec := range s.Sections().All() {
		ss := SectionSnapshot{ID: sec.ID, Edges: sec.Edges, Crossing: sec.Crossing}
		for _, t := range s.TrainsInSection(sec.ID) {
			ss.Trains = append(ss.Trains, t.ID)
		}
		snap.Sections = append(snap.Sections, ss)
	}
	return snap
}
