package station

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"nyiyui.ca/hato/shingo/kinematics"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

const dt = 0.1

var approx = cmpopts.EquateApprox(0, 1e-9)

// lineStation is entry a, signal b and exit c, 500 m apart.
func lineStation() *StationStatus {
	m := layout.MustNew(layout.StationData{
		Name: "line",
		Nodes: []layout.NodeData{
			{ID: "a", X: 0, Y: 0},
			{ID: "b", X: 500, Y: 0},
			{ID: "c", X: 1000, Y: 0},
		},
		Edges: []layout.EdgeData{
			{ID: "ab", Kind: layout.EdgeKindTrack, Node0: "a", Node1: "b"},
			{ID: "bc", Kind: layout.EdgeKindTrack, Node0: "b", Node1: "c"},
		},
	})
	routes := route.MustNewSet(m, []route.Data{
		{ID: "a", Kind: route.KindEntry, Nodes: []layout.NodeID{"a"}},
		{ID: "b", Kind: route.KindSignal, Nodes: []layout.NodeID{"b"}},
		{ID: "c", Kind: route.KindExit, Nodes: []layout.NodeID{"c"}},
	})
	return New(m, routes).SetFrequency(0)
}

// switchStation is entry a, then switch s 500 m on, then exits c and d.
func switchStation() *StationStatus {
	m := layout.MustNew(layout.StationData{
		Name: "switch",
		Nodes: []layout.NodeData{
			{ID: "a", X: 0, Y: 0},
			{ID: "s", X: 500, Y: 0, Edges: []layout.EdgeID{"as", "sc", "sd"}},
			{ID: "c", X: 1000, Y: 0},
			{ID: "d", X: 1000, Y: 100},
		},
		Edges: []layout.EdgeData{
			{ID: "as", Kind: layout.EdgeKindTrack, Node0: "a", Node1: "s"},
			{ID: "sc", Kind: layout.EdgeKindTrack, Node0: "s", Node1: "c"},
			{ID: "sd", Kind: layout.EdgeKindTrack, Node0: "s", Node1: "d"},
		},
	})
	routes := route.MustNewSet(m, []route.Data{
		{ID: "a", Kind: route.KindEntry, Nodes: []layout.NodeID{"a"}},
		{ID: "s", Kind: route.KindSwitch, Nodes: []layout.NodeID{"s"}},
		{ID: "c", Kind: route.KindExit, Nodes: []layout.NodeID{"c"}},
		{ID: "d", Kind: route.KindExit, Nodes: []layout.NodeID{"d"}},
	})
	return New(m, routes).SetFrequency(0)
}

func at(s *StationStatus, edge layout.EdgeID, to layout.NodeID, distance float64) layout.EdgeLocation {
	return s.Map().MustDirection(edge, to).Location(distance)
}

func mustTrain(t *testing.T, s *StationStatus, id string) Train {
	tr, ok := s.Train(id)
	if !ok {
		t.Fatalf("train %s not found", id)
	}
	return tr
}

func TestScenarioAccelerate(t *testing.T) {
	s := lineStation()
	v := kinematics.MaxSpeed / 4
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 1, Arrival: "a", Destination: "c",
		Location: at(s, "ab", "b", 500), Located: true,
		Speed: v, State: TrainStateRunning, Loaded: true,
	})
	for i := 0; i < 10; i++ {
		s2 := s.Tick(dt, nil)
		before := mustTrain(t, s, "t1")
		after := mustTrain(t, s2, "t1")
		if after.State != TrainStateRunning {
			t.Fatalf("tick %d: expected running, got %s", i, after.State)
		}
		if !cmp.Equal(after.Speed, before.Speed+kinematics.Acceleration*dt, approx) {
			t.Fatalf("tick %d: expected speed %g, got %g", i, before.Speed+kinematics.Acceleration*dt, after.Speed)
		}
		if !cmp.Equal(after.Location.Distance, before.Location.Distance-before.Speed*dt, approx) {
			t.Fatalf("tick %d: expected distance %g, got %g", i, before.Location.Distance-before.Speed*dt, after.Location.Distance)
		}
		s = s2
	}
}

func TestScenarioRunThrough(t *testing.T) {
	s := lineStation()
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
		Location: at(s, "ab", "b", 500), Located: true,
		Speed: kinematics.MaxSpeed / 4, State: TrainStateRunning, Loaded: true,
	})
	var left []SoundEvent
	for i := 0; i < 2000 && len(s.Trains()) > 0; i++ {
		s = s.Tick(dt, nil)
		left = append(left, s.Sounds()...)
	}
	if len(s.Trains()) != 0 {
		t.Fatalf("train did not leave: %v", s.Trains())
	}
	p := s.Performance()
	if p.RightOutgoingTrainCount != 1 || p.WrongOutgoingTrainCount != 0 {
		t.Fatalf("unexpected performance %s", p)
	}
	if !cmp.Equal(p.TraveledDistance, 1000+ExitDistance, cmpopts.EquateApprox(0, 1e-6)) {
		t.Fatalf("traveled %g", p.TraveledDistance)
	}
	if diff := cmp.Diff([]SoundEvent{{Kind: SoundLeave, Route: "c", Train: "t1"}}, left); diff != "" {
		t.Fatalf("sounds: %s", diff)
	}
	b, _ := s.Routes().Route("b")
	if !b.IsLocked(s.Map().MustDirection("ab", "b")) {
		t.Fatalf("signal b must be locked behind the train")
	}
}

func TestAutoLockOff(t *testing.T) {
	s := lineStation().SetAutoLock(false)
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 1, Arrival: "a", Destination: "c",
		Location: at(s, "ab", "b", 1), Located: true,
		Speed: 20, State: TrainStateRunning, Loaded: true,
	})
	s = s.Tick(dt, nil)
	if tr := mustTrain(t, s, "t1"); tr.Location.Direction.Edge.ID != "bc" {
		t.Fatalf("train must have passed b: %s", tr)
	}
	b, _ := s.Routes().Route("b")
	if b.IsLocked(s.Map().MustDirection("ab", "b")) {
		t.Fatalf("signal b must stay unlocked")
	}
}

func TestScenarioBrakeBehindTrain(t *testing.T) {
	s := lineStation()
	s = s.WithTrains(
		Train{
			ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
			Location: at(s, "ab", "b", 4), Located: true,
			Speed: kinematics.MaxSpeed, State: TrainStateRunning, Loaded: true,
		},
		Train{
			ID: "t2", Coaches: 4, Arrival: "a", Destination: "c",
			Location: at(s, "bc", "c", 400), Located: true,
			State: TrainStateWaitingForRun, ManualStop: true, Loaded: true,
		},
	)
	s2 := s.Tick(dt, nil)
	t1 := mustTrain(t, s2, "t1")
	if t1.State != TrainStateBraking {
		t.Fatalf("expected braking, got %s", t1.State)
	}
	if !cmp.Equal(t1.Speed, kinematics.MaxSpeed+kinematics.Deceleration*dt, approx) {
		t.Fatalf("expected speed %g, got %g", kinematics.MaxSpeed+kinematics.Deceleration*dt, t1.Speed)
	}
	if !cmp.Equal(t1.Location.Distance, 4-kinematics.MaxSpeed*dt, approx) {
		t.Fatalf("unexpected location %s", t1.Location)
	}

	s = s2
	for i := 0; i < 1000; i++ {
		prev := mustTrain(t, s, "t1")
		s = s.Tick(dt, nil)
		t1 = mustTrain(t, s, "t1")
		if t1.Location.Direction.Edge.ID != "ab" {
			t.Fatalf("tick %d: train passed into the occupied track: %s", i, t1)
		}
		if t1.Speed > prev.Speed {
			t.Fatalf("tick %d: speed rose from %g to %g", i, prev.Speed, t1.Speed)
		}
	}
	if t1.State != TrainStateWaitingForSignal || t1.Speed != 0 || t1.Location.Distance != 0 {
		t.Fatalf("expected a stop at b, got %s", t1)
	}
}

func TestScenarioWaitingForRun(t *testing.T) {
	s := lineStation().LockSignal("b", "ab")
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
		Location: at(s, "ab", "b", 10), Located: true,
		Speed: -2, State: TrainStateWaitingForRun, ManualStop: true, Loaded: true,
	})
	s = s.Tick(dt, nil)
	t1 := mustTrain(t, s, "t1")
	if t1.State != TrainStateWaitingForRun || t1.Speed != 0 {
		t.Fatalf("unexpected %s", t1)
	}
	if !cmp.Equal(t1.Location.Distance, 10-(-2)*dt, approx) {
		t.Fatalf("expected distance %g, got %g", 10-(-2)*dt, t1.Location.Distance)
	}
	s = s.Tick(dt, nil)
	if got := mustTrain(t, s, "t1").Location.Distance; !cmp.Equal(got, 10.2, approx) {
		t.Fatalf("residual speed must apply once, distance %g", got)
	}
}

func TestScenarioToggleUnderTrain(t *testing.T) {
	empty := switchStation()
	occupied := empty.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
		Location: at(empty, "as", "s", 100), Located: true,
		State: TrainStateWaitingForSignal,
	})
	if got := occupied.ToggleSwitch("s"); got != occupied {
		t.Fatalf("toggle under a train must return the same status")
	}

	toggled := empty.ToggleSwitch("s")
	if toggled == empty {
		t.Fatalf("toggle of a clear switch must return a new status")
	}
	sw, _ := toggled.Routes().Route("s")
	if sw.IsThrough() {
		t.Fatalf("switch must be diverging")
	}
	if diff := cmp.Diff([]SoundEvent{{Kind: SoundSwitch, Route: "s"}}, toggled.Sounds()); diff != "" {
		t.Fatalf("sounds: %s", diff)
	}
	if sw, _ := empty.Routes().Route("s"); !sw.IsThrough() {
		t.Fatalf("old status must be unchanged")
	}

	// a train on the branch that is not set does not hold the switch
	onBranch := empty.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "d",
		Location: at(empty, "sd", "d", 100), Located: true,
		State: TrainStateWaitingForSignal,
	})
	if got := onBranch.ToggleSwitch("s"); got == onBranch {
		t.Fatalf("toggle must be accepted")
	}

	if got := empty.ToggleSwitch("a"); got != empty {
		t.Fatalf("toggling an entry must be rejected")
	}
	if got := empty.ToggleDoubleSlipSwitch("s"); got != empty {
		t.Fatalf("toggling a switch as a double slip must be rejected")
	}
	if got := empty.ToggleSwitch("zz"); got != empty {
		t.Fatalf("toggling an unknown route must be rejected")
	}
}

func TestScenarioWrongExit(t *testing.T) {
	s := switchStation()
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "d",
		Location: at(s, "sc", "c", 0), Located: true,
		Speed: 10, State: TrainStateExiting, ExitRoute: "c", Loaded: true,
	})
	for i := 0; i < 1000 && len(s.Trains()) > 0; i++ {
		s = s.Tick(dt, nil)
	}
	if len(s.Trains()) != 0 {
		t.Fatalf("train did not leave")
	}
	p := s.Performance()
	if p.WrongOutgoingTrainCount != 1 || p.RightOutgoingTrainCount != 0 {
		t.Fatalf("unexpected performance %s", p)
	}
	if !cmp.Equal(p.TraveledDistance, ExitDistance, cmpopts.EquateApprox(0, 1e-6)) {
		t.Fatalf("traveled %g, expected %g", p.TraveledDistance, ExitDistance)
	}
}

func TestExitingFootprint(t *testing.T) {
	s := switchStation()
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
		Location: at(s, "sc", "c", 0), Located: true,
		Speed: 10, State: TrainStateExiting, ExitRoute: "c", ExitDistance: 20,
	})
	fp := s.Footprint("t1")
	if len(fp) != 1 || !cmp.Equal(fp[0].Length(), 30.0, approx) || fp[0].End != 500 {
		t.Fatalf("unexpected footprint %v", fp)
	}
	if got := len(s.Coaches(mustTrain(t, s, "t1"))); got != 1 {
		t.Fatalf("expected one coach on the map, got %d", got)
	}
}

func TestEntering(t *testing.T) {
	s := lineStation()
	s = s.WithTrains(
		Train{ID: "t1", Coaches: 4, Arrival: "a", Destination: "c", State: TrainStateEntering, ArrivalTime: 0},
		Train{ID: "t2", Coaches: 4, Arrival: "a", Destination: "c", State: TrainStateEntering, ArrivalTime: 1},
	)
	if diff := cmp.Diff([]string{"t1", "t2"}, ids(s.TrainsAtEntry("a"))); diff != "" {
		t.Fatalf("queue: %s", diff)
	}
	s = s.Tick(dt, nil)
	if tr := mustTrain(t, s, "t1"); tr.State != TrainStateEntering || tr.Located {
		t.Fatalf("train must wait for the entry timeout: %s", tr)
	}
	s = s.WithTime(EntryTimeout+1).Tick(dt, nil)
	t1 := mustTrain(t, s, "t1")
	if t1.State != TrainStateRunning || !t1.Located || t1.Speed != kinematics.Default.Accelerate(0, dt) {
		t.Fatalf("train must have entered: %s", t1)
	}
	if t1.Location != at(s, "ab", "b", 500) {
		t.Fatalf("unexpected entry location %s", t1.Location)
	}
	if tr := mustTrain(t, s, "t2"); tr.State != TrainStateEntering {
		t.Fatalf("second train must wait behind the first: %s", tr)
	}
	// t2 stays out while t1 sticks out of the entry
	s = s.Tick(dt, nil)
	if tr := mustTrain(t, s, "t2"); tr.Located {
		t.Fatalf("second train entered on top of the first: %s", tr)
	}
	for i := 0; i < 2000; i++ {
		s = s.Tick(dt, nil)
		if tr, ok := s.Train("t2"); ok && tr.Located {
			break
		}
	}
	t1, ok1 := s.Train("t1")
	t2 := mustTrain(t, s, "t2")
	if !t2.Located {
		t.Fatalf("second train never entered")
	}
	if ok1 && t1.Located && t1.State != TrainStateExiting && t1.Location.Direction.Edge.ID == "ab" {
		if gap := t1.Location.Opposite().Distance - t1.Length(); gap < kinematics.Default.StoppingDistance(EntrySpeed) {
			t.Fatalf("second train entered too close behind the first (gap %g)", gap)
		}
	}
}

func ids(trains []Train) []string {
	res := make([]string, len(trains))
	for i, t := range trains {
		res[i] = t.ID
	}
	return res
}

func TestGenerate(t *testing.T) {
	s := lineStation().SetFrequency(1000)
	s = s.Tick(dt, rand.New(rand.NewSource(1)))
	trains := s.Trains()
	if len(trains) != 1 {
		t.Fatalf("expected one arrival, got %v", trains)
	}
	tr := trains[0]
	if tr.State != TrainStateEntering || tr.Arrival != "a" || tr.Destination != "c" {
		t.Fatalf("unexpected arrival %s", tr)
	}
	if tr.Coaches < MinCoaches || tr.Coaches > MaxCoaches {
		t.Fatalf("coaches out of range: %d", tr.Coaches)
	}
	if diff := cmp.Diff([]SoundEvent{{Kind: SoundArrival, Route: "a", Train: tr.ID}}, s.Sounds()); diff != "" {
		t.Fatalf("sounds: %s", diff)
	}
	if s.Performance().IncomingTrainCount != 1 {
		t.Fatalf("incoming count: %d", s.Performance().IncomingTrainCount)
	}
	if s2 := lineStation().Tick(dt, rand.New(rand.NewSource(1))); len(s2.Trains()) != 0 {
		t.Fatalf("no arrival expected at frequency 0")
	}
}

type fixedRand struct {
	floats []float64
	ints   []int
}

func (r *fixedRand) Float64() float64 {
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *fixedRand) Intn(n int) int {
	i := r.ints[0]
	r.ints = r.ints[1:]
	return i % n
}

func TestGenerateRedrawsID(t *testing.T) {
	s := lineStation().SetFrequency(1).WithTrains(Train{
		ID: "A000", Coaches: 3, Arrival: "a", Destination: "c", State: TrainStateEntering,
	})
	rng := &fixedRand{
		floats: []float64{0},
		// entry, exit, coaches, then two id draws
		ints: []int{0, 0, 2, 0, 0, 1, 5},
	}
	s = s.Tick(dt, rng)
	tr, ok := s.Train("B005")
	if !ok {
		t.Fatalf("expected a redrawn id, got %v", ids(s.Trains()))
	}
	if tr.Coaches != MinCoaches+2 {
		t.Fatalf("coaches: got %d", tr.Coaches)
	}
	if !cmp.Equal(tr.ArrivalTime, dt, approx) {
		t.Fatalf("arrival time: got %g", tr.ArrivalTime)
	}
}

func TestLoading(t *testing.T) {
	m := layout.MustNew(layout.StationData{
		Name: "platform",
		Nodes: []layout.NodeData{
			{ID: "a", X: 0, Y: 0},
			{ID: "p0", X: 300, Y: 0},
			{ID: "p1", X: 500, Y: 0},
			{ID: "c", X: 800, Y: 0},
		},
		Edges: []layout.EdgeData{
			{ID: "e1", Kind: layout.EdgeKindTrack, Node0: "a", Node1: "p0"},
			{ID: "e2", Kind: layout.EdgeKindPlatform, Node0: "p0", Node1: "p1"},
			{ID: "e3", Kind: layout.EdgeKindTrack, Node0: "p1", Node1: "c"},
		},
	})
	routes := route.MustNewSet(m, []route.Data{
		{ID: "a", Kind: route.KindEntry, Nodes: []layout.NodeID{"a"}},
		{ID: "c", Kind: route.KindExit, Nodes: []layout.NodeID{"c"}},
	})
	s := New(m, routes).SetFrequency(0)
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 4, Arrival: "a", Destination: "c",
		Location: at(s, "e1", "p0", 200), Located: true,
		Speed: 15, State: TrainStateRunning,
	})
	loaded := false
	for i := 0; i < 3000 && len(s.Trains()) > 0; i++ {
		s = s.Tick(dt, nil)
		tr, ok := s.Train("t1")
		if !ok {
			break
		}
		if tr.State == TrainStateLoading {
			if tr.Location.Direction.Edge.ID != "e2" || tr.Location.Distance > StopTolerance {
				t.Fatalf("loading away from the platform end: %s", tr)
			}
		}
		if tr.Loaded {
			loaded = true
		}
	}
	if !loaded {
		t.Fatalf("train never loaded")
	}
	p := s.Performance()
	if p.RightOutgoingTrainCount != 1 || p.TrainStopCount != 1 {
		t.Fatalf("unexpected performance %s", p)
	}
}

func TestSpeedBounds(t *testing.T) {
	s := switchStation().SetFrequency(0.05)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 3000; i++ {
		next := s.Tick(dt, rng)
		for _, after := range next.Trains() {
			if after.Speed < 0 || after.Speed > kinematics.MaxSpeed {
				t.Fatalf("tick %d: speed out of bounds: %s", i, after)
			}
			before, ok := s.Train(after.ID)
			if !ok {
				continue
			}
			if d := after.Speed - before.Speed; d > kinematics.Acceleration*dt+1e-9 || d < kinematics.Deceleration*dt-1e-9 {
				t.Fatalf("tick %d: speed change %g of %s", i, d, after)
			}
		}
		checkNoOverlap(t, next)
		if i%200 == 100 {
			next = next.ToggleSwitch("s")
		}
		s = next
	}
	if s.Performance().IncomingTrainCount == 0 {
		t.Fatalf("no train arrived")
	}
}

func checkNoOverlap(t *testing.T, s *StationStatus) {
	t.Helper()
	trains := s.Trains()
	for i, a := range trains {
		for _, b := range trains[i+1:] {
			for _, sa := range s.Footprint(a.ID) {
				for _, sb := range s.Footprint(b.ID) {
					if sa.Intersects(sb) && math.Min(sa.End, sb.End)-math.Max(sa.Start, sb.Start) > 1e-6 {
						t.Fatalf("%s and %s overlap on %s", a.ID, b.ID, sa.Edge.ID)
					}
				}
			}
		}
	}
}

func TestTrainOnEdge(t *testing.T) {
	s := switchStation()
	if _, ok := s.TrainOnEdge("as"); ok {
		t.Fatalf("empty station must have no train")
	}
	s = s.WithTrains(
		Train{
			ID: "t1", Coaches: 4, Arrival: "a", Destination: "c",
			Location: at(s, "sc", "c", 450), Located: true, State: TrainStateWaitingForSignal,
		},
		Train{ID: "t2", Coaches: 3, Arrival: "a", Destination: "d", State: TrainStateEntering},
	)
	// t1 is 50 metres past the switch, with the rest of it on as
	for _, edge := range []layout.EdgeID{"as", "sc"} {
		tr, ok := s.TrainOnEdge(edge)
		if !ok || tr.ID != "t1" {
			t.Fatalf("%s: expected t1, got %v (%t)", edge, tr, ok)
		}
	}
	if tr, ok := s.TrainOnEdge("sd"); ok {
		t.Fatalf("sd must be free, got %s", tr)
	}
	if _, ok := s.TrainOnEdge("nowhere"); ok {
		t.Fatalf("unknown edge must have no train")
	}
}

func TestTrainsExitingAt(t *testing.T) {
	s := switchStation()
	s = s.WithTrains(
		Train{
			ID: "t1", Coaches: 2, Arrival: "a", Destination: "c",
			Location: at(s, "sc", "c", 0), Located: true,
			Speed: 10, State: TrainStateExiting, ExitRoute: "c", ExitDistance: 20,
		},
		Train{
			ID: "t2", Coaches: 2, Arrival: "a", Destination: "c",
			Location: at(s, "sd", "d", 0), Located: true,
			Speed: 10, State: TrainStateExiting, ExitRoute: "d", ExitDistance: 5,
		},
		Train{
			ID: "t3", Coaches: 2, Arrival: "a", Destination: "c",
			Location: at(s, "as", "s", 300), Located: true,
			Speed: 10, State: TrainStateRunning,
		},
	)
	tests := []struct {
		route string
		want  []string
	}{
		{"c", []string{"t1"}},
		{"d", []string{"t2"}},
		{"a", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.route, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ids(s.TrainsExitingAt(tc.route))); diff != "" {
				t.Fatalf("exiting: %s", diff)
			}
		})
	}
}

func TestIsSectionClear(t *testing.T) {
	s := lineStation()
	ab, _ := s.Sections().ByID("ab")
	bc, _ := s.Sections().ByID("bc")
	if !s.IsSectionClear(ab) || !s.IsSectionClear(bc) {
		t.Fatalf("empty station must be clear")
	}
	s = s.WithTrains(
		Train{
			ID: "t1", Coaches: 3, Arrival: "a", Destination: "c",
			Location: at(s, "ab", "b", 10), Located: true, State: TrainStateWaitingForSignal,
		},
		Train{ID: "t2", Coaches: 3, Arrival: "a", Destination: "c", State: TrainStateEntering},
	)
	if s.IsSectionClear(ab) {
		t.Fatalf("section under t1 must not be clear")
	}
	if !s.IsSectionClear(bc) {
		t.Fatalf("section past t1 must be clear")
	}
}
