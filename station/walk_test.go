package station

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

func TestForwardWalk(t *testing.T) {
	s := switchStation()
	segs := s.ForwardWalk(at(s, "as", "s", 100), 300)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %v", segs)
	}
	if segs[0].Edge.ID != "as" || segs[1].Edge.ID != "sc" {
		t.Fatalf("unexpected walk %v", segs)
	}
	if !cmp.Equal(segs[0].Length()+segs[1].Length(), 300.0, approx) {
		t.Fatalf("walk length %g", segs[0].Length()+segs[1].Length())
	}

	s = s.ToggleSwitch("s")
	segs = s.ForwardWalk(at(s, "as", "s", 100), 300)
	if len(segs) != 2 || segs[1].Edge.ID != "sd" {
		t.Fatalf("walk must follow the diverging branch: %v", segs)
	}
	// trailing from the branch that is not set
	segs = s.ForwardWalk(at(s, "sc", "s", 100), 300)
	if len(segs) != 1 || !cmp.Equal(segs[0].Length(), 100.0, approx) {
		t.Fatalf("walk must end at the switch: %v", segs)
	}
}

func TestBackwardWalk(t *testing.T) {
	s := switchStation()
	segs := s.BackwardWalk(at(s, "sc", "c", 450), 100)
	if len(segs) != 2 || segs[0].Edge.ID != "sc" || segs[1].Edge.ID != "as" {
		t.Fatalf("unexpected walk %v", segs)
	}
	if !cmp.Equal(segs[1].Length(), 50.0, approx) {
		t.Fatalf("expected 50m on as, got %g", segs[1].Length())
	}
}

func TestFreeDistance(t *testing.T) {
	s := switchStation()
	loc := at(s, "as", "s", 100)
	if got := s.FreeDistance(loc, 200); got != 200 {
		t.Fatalf("expected the limit, got %g", got)
	}
	if got := s.FreeDistance(loc, 2000); !cmp.Equal(got, 600+ExitDistance, approx) {
		t.Fatalf("expected %g to the border, got %g", 600+ExitDistance, got)
	}
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 4, Arrival: "a", Destination: "c",
		Location: at(s, "sc", "c", 200), Located: true,
		State: TrainStateWaitingForSignal,
	})
	// the tail of t1 is 200+100 metres before c, so 200 metres after s
	if got := s.FreeDistance(loc, 2000); !cmp.Equal(got, 300.0, approx) {
		t.Fatalf("expected 300 to the tail of t1, got %g", got)
	}
	if !s.IsNextTracksClear(loc, 250) || s.IsNextTracksClear(loc, 350) {
		t.Fatalf("unexpected clear tracks")
	}
	if got := s.FreeDistance(at(s, "sc", "c", 250), 100); got != 0 {
		t.Fatalf("location under a train must have no free distance, got %g", got)
	}
}

func TestFreeDistanceHeadOn(t *testing.T) {
	s := lineStation()
	s = s.WithTrains(
		Train{
			ID: "t1", Coaches: 3, Arrival: "a", Destination: "c",
			Location: at(s, "bc", "c", 400), Located: true, State: TrainStateRunning,
		},
		Train{
			ID: "t2", Coaches: 3, Arrival: "c", Destination: "a",
			Location: at(s, "bc", "b", 300), Located: true, State: TrainStateRunning,
		},
	)
	// t1's head is 100m from b, t2's head 200m from c: 200m between the heads
	s.ensureFootprints()
	got, obstacle := s.freeDistance(at(s, "bc", "c", 400), 1000, "t1", false)
	if obstacle != ObstacleTrain || !cmp.Equal(got, 100.0, approx) {
		t.Fatalf("expected half the gap to an oncoming head, got %g (%s)", got, obstacle)
	}
}

func TestIsNextSignalClear(t *testing.T) {
	s := switchStation()
	if !s.IsNextSignalClear(s.Map().MustDirection("as", "s")) {
		t.Fatalf("a walk leaving the station without signals is clear")
	}
	s = s.ToggleSwitch("s")
	if s.IsNextSignalClear(s.Map().MustDirection("sc", "s")) {
		t.Fatalf("a switch set against the walk is not clear")
	}
	if s.IsNextRouteClear(s.Map().MustDirection("sc", "s")) {
		t.Fatalf("a switch set against the walk is not clear")
	}
	if !s.IsNextRouteClear(s.Map().MustDirection("sd", "s")) {
		t.Fatalf("switch must let trains from the selected branch pass")
	}
}

func deadEndStation() *StationStatus {
	m := layout.MustNew(layout.StationData{
		Name: "dead-end",
		Nodes: []layout.NodeData{
			{ID: "a", X: 0, Y: 0},
			{ID: "b", X: 300, Y: 0},
			{ID: "x", X: 400, Y: 0},
		},
		Edges: []layout.EdgeData{
			{ID: "ab", Kind: layout.EdgeKindTrack, Node0: "a", Node1: "b"},
			{ID: "bx", Kind: layout.EdgeKindPlatform, Node0: "b", Node1: "x"},
		},
	})
	routes := route.MustNewSet(m, []route.Data{
		{ID: "a", Kind: route.KindEntry, Nodes: []layout.NodeID{"a"}},
		{ID: "b", Kind: route.KindSignal, Nodes: []layout.NodeID{"b"}},
	})
	return New(m, routes).SetFrequency(0)
}

func TestFindSection(t *testing.T) {
	s := switchStation()
	sec, crossing, ok := s.FindSection(s.Map().MustDirection("sc", "c"))
	if !ok {
		t.Fatalf("section not found")
	}
	if diff := cmp.Diff([]layout.EdgeID{"as", "sc"}, sec.Edges); diff != "" {
		t.Fatalf("edges: %s", diff)
	}
	if len(crossing) != 0 {
		t.Fatalf("unexpected crossing %v", crossing)
	}
	if _, _, ok := s.FindSection(layout.Direction{}); ok {
		t.Fatalf("invalid direction must have no section")
	}

	d := deadEndStation()
	if _, _, ok := d.FindSection(d.Map().MustDirection("bx", "x")); ok {
		t.Fatalf("section ending in a dead end must be absent")
	}
	if _, _, ok := d.FindSection(d.Map().MustDirection("ab", "b")); !ok {
		t.Fatalf("section before the signal must be found")
	}
}

func TestDeadEndStop(t *testing.T) {
	s := deadEndStation()
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 3, Arrival: "a", Destination: "a",
		Location: at(s, "ab", "b", 100), Located: true,
		Speed: 12, State: TrainStateRunning, Loaded: true,
	})
	for i := 0; i < 1000; i++ {
		s = s.Tick(dt, nil)
	}
	tr := mustTrain(t, s, "t1")
	if tr.State != TrainStateWaitingForSignal || tr.Location.Direction.Edge.ID != "bx" {
		t.Fatalf("train must stop before the dead end: %s", tr)
	}
	if tr.Location.Distance < 0 || tr.Location.Distance > StopTolerance {
		t.Fatalf("train stopped %gm before the dead end", tr.Location.Distance)
	}
}

func TestCoaches(t *testing.T) {
	s := lineStation()
	tr := Train{
		ID: "t1", Coaches: 3, Arrival: "a", Destination: "c",
		Location: at(s, "bc", "c", 480), Located: true, State: TrainStateRunning,
	}
	s = s.WithTrains(tr)
	coaches := s.Coaches(tr)
	if len(coaches) != 3 {
		t.Fatalf("expected 3 coaches, got %v", coaches)
	}
	want := []float64{507.5, 482.5, 457.5}
	for i, c := range coaches {
		if !cmp.Equal(c.X, want[i], approx) || !cmp.Equal(c.Y, 0.0, approx) {
			t.Fatalf("coach %d at (%g, %g), expected (%g, 0)", i, c.X, c.Y, want[i])
		}
		if !cmp.Equal(c.Orientation, 0.0, approx) {
			t.Fatalf("coach %d orientation %g", i, c.Orientation)
		}
	}

	tr.Location = at(s, "ab", "a", 100)
	if o := s.Coaches(tr)[0].Orientation; !cmp.Equal(math.Abs(o), math.Pi, approx) {
		t.Fatalf("westbound coach orientation %g", o)
	}
}

func TestSnapshot(t *testing.T) {
	s := switchStation()
	s = s.WithTrains(Train{
		ID: "t1", Coaches: 3, Arrival: "a", Destination: "c",
		Location: at(s, "as", "s", 300), Located: true, State: TrainStateRunning,
	})
	snap := s.Snapshot()
	if snap.Station != "switch" || len(snap.Trains) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Trains[0].Section != "as" || len(snap.Trains[0].Placement) != 3 {
		t.Fatalf("unexpected train snapshot %+v", snap.Trains[0])
	}
	if diff := cmp.Diff([]DeviceSnapshot{{ID: "s", Kind: route.KindSwitch, Through: true}}, snap.Devices); diff != "" {
		t.Fatalf("devices: %s", diff)
	}
	var occupied []string
	for _, sec := range snap.Sections {
		if len(sec.Trains) > 0 {
			occupied = append(occupied, sec.ID)
		}
	}
	if diff := cmp.Diff([]string{"as"}, occupied); diff != "" {
		t.Fatalf("occupied sections: %s", diff)
	}
}
