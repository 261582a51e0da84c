package station

import (
	"fmt"
	"math"

	"nyiyui.ca/hato/shingo/layout"
)

type TrainState int

const (
	// TrainStateEntering trains are queued off the map at their arrival entry.
	TrainStateEntering TrainState = iota + 1
	TrainStateRunning
	TrainStateBraking
	TrainStateWaitingForSignal
	// TrainStateWaitingForRun trains are held by the operator until StartTrain.
	TrainStateWaitingForRun
	TrainStateLoading
	// TrainStateExiting trains have their head past the station border.
	TrainStateExiting
)

var trainStateNames = map[TrainState]string{
	TrainStateEntering:         "entering",
	TrainStateRunning:          "running",
	TrainStateBraking:          "braking",
	TrainStateWaitingForSignal: "waiting-for-signal",
	TrainStateWaitingForRun:    "waiting-for-run",
	TrainStateLoading:          "loading",
	TrainStateExiting:          "exiting",
}

func (s TrainState) String() string {
	if name, ok := trainStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("%d", int(s))
}

func (s TrainState) MarshalText() ([]byte, error) {
	name, ok := trainStateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown train state %d", int(s))
	}
	return []byte(name), nil
}

// Train is an immutable value; the methods changing it return a new Train.
type Train struct {
	ID          string `json:"id"`
	Coaches     int    `json:"coaches"`
	Arrival     string `json:"arrival"`
	Destination string `json:"destination"`
	// Location is the head of the train, valid when Located is set. The head of an
	// exiting train stays at the border node.
	Location    layout.EdgeLocation `json:"location"`
	Located     bool                `json:"located"`
	Speed       float64             `json:"speed"`
	State       TrainState          `json:"state"`
	ArrivalTime float64             `json:"arrivalTime"`
	// ExitDistance is the distance travelled past the border.
	ExitDistance float64 `json:"exitDistance"`
	ExitRoute    string  `json:"exitRoute,omitempty"`
	// Timer counts the time spent in the current dwell (queue or loading).
	Timer      float64 `json:"timer"`
	Loaded     bool    `json:"loaded"`
	ManualStop bool    `json:"manualStop"`
}

func (t Train) Length() float64 { return float64(t.Coaches) * CoachLength }

func (t Train) String() string {
	if !t.Located {
		return fmt.Sprintf("%s(%s)", t.ID, t.State)
	}
	return fmt.Sprintf("%s(%s %s %.1fm/s)", t.ID, t.State, t.Location, t.Speed)
}

// queuedBefore reports whether t enters before o at a shared entry.
func (t Train) queuedBefore(o Train) bool {
	if t.ArrivalTime != o.ArrivalTime {
		return t.ArrivalTime < o.ArrivalTime
	}
	return t.ID < o.ID
}

// IsStopped reports whether the train stands still on the map.
func (t Train) IsStopped() bool {
	switch t.State {
	case TrainStateWaitingForSignal, TrainStateWaitingForRun, TrainStateLoading:
		return true
	}
	return false
}

// changeState advances t by one tick. The second result is false once the train has
// left the station.
func (t Train) changeState(ctx *SimulationContext) (Train, bool) {
	ctx.perf.TotalTrainTime += ctx.dt
	switch t.State {
	case TrainStateEntering:
		return t.enter(ctx), true
	case TrainStateRunning, TrainStateBraking, TrainStateWaitingForSignal:
		return t.run(ctx), true
	case TrainStateWaitingForRun:
		return t.waitForRun(ctx), true
	case TrainStateLoading:
		return t.load(ctx), true
	case TrainStateExiting:
		return t.exit(ctx)
	default:
		panic(fmt.Sprintf("train %s: unknown state %d", t.ID, int(t.State)))
	}
}

func (t Train) hold(ctx *SimulationContext) Train {
	t.Speed = 0
	t.Timer += ctx.dt
	ctx.perf.TrainWaitingTime += ctx.dt
	return t
}

func (t Train) enter(ctx *SimulationContext) Train {
	s := ctx.status
	if queue := s.TrainsAtEntry(t.Arrival); len(queue) > 0 && queue[0].ID != t.ID {
		return t.hold(ctx)
	}
	if s.time-t.ArrivalTime < EntryTimeout {
		return t.hold(ctx)
	}
	loc, ok := s.entryLocation(t.Arrival)
	if !ok {
		return t.hold(ctx)
	}
	if len(s.outside[loc.Direction.From()]) > 0 {
		// the previous train is not entirely in yet, or a train is leaving here
		return t.hold(ctx)
	}
	need := s.model.StoppingDistance(EntrySpeed) + SafetyDistance
	if free, _ := s.freeDistance(loc, need, t.ID, false); free < need {
		return t.hold(ctx)
	}
	t.Location = loc
	t.Located = true
	t.Speed = s.model.Accelerate(0, ctx.dt)
	t.State = TrainStateRunning
	t.Timer = 0
	return t
}

// entryLocation returns the location of a train entering through the route.
func (s *StationStatus) entryLocation(routeID string) (layout.EdgeLocation, bool) {
	r, ok := s.routes.Route(routeID)
	if !ok || !r.Kind.IsBorder() {
		return layout.EdgeLocation{}, false
	}
	d, ok := s.m.Leaving(r.Nodes[0], 0)
	if !ok {
		return layout.EdgeLocation{}, false
	}
	return d.Location(d.Edge.Length), true
}

func (t Train) run(ctx *SimulationContext) Train {
	s := ctx.status
	m := s.model
	dt := ctx.dt
	limit := m.StoppingDistance(m.VMax) + SafetyDistance + m.VMax*dt
	free, obstacle := s.freeDistance(t.Location, limit, t.ID, !t.Loaded)
	step, _ := m.Advance(t.Speed, dt, free)
	t = t.advance(ctx, step)
	if t.State == TrainStateExiting {
		t.Speed = m.Accelerate(t.Speed, dt)
		return t
	}
	rest := free - step
	margin := SafetyDistance
	if t.State == TrainStateBraking {
		// hysteresis against flipping between braking and running
		margin += -m.Dec * dt * dt
	}
	wasMoving := t.Speed > 0
	switch {
	case t.ManualStop:
		t.Speed = m.Brake(t.Speed, dt)
		t.State = TrainStateBraking
	case t.State == TrainStateWaitingForSignal && rest <= StopTolerance:
		t.Speed = 0
	case m.StoppingDistance(t.Speed)+margin < rest:
		t.Speed = m.Accelerate(t.Speed, dt)
		t.State = TrainStateRunning
	default:
		t.Speed = m.Brake(t.Speed, dt)
		t.State = TrainStateBraking
	}
	if t.Speed > 0 {
		return t
	}
	switch {
	case t.ManualStop:
		t.State = TrainStateWaitingForRun
	case obstacle == ObstaclePlatform && rest <= StopTolerance:
		t.State = TrainStateLoading
		t.Timer = 0
	default:
		t.State = TrainStateWaitingForSignal
	}
	if wasMoving {
		ctx.perf.TrainStopCount++
	}
	if t.State != TrainStateLoading {
		ctx.perf.TrainWaitingTime += dt
	}
	return t
}

// advance moves the head step metres and records what it passed.
func (t Train) advance(ctx *SimulationContext, step float64) Train {
	if step <= 0 {
		return t
	}
	mv := ctx.status.move(t.Location, step)
	ctx.perf.TraveledDistance += step
	for _, p := range mv.passed {
		ctx.lock(p.route, p.in)
	}
	t.Location = mv.loc
	if mv.border != "" {
		t.State = TrainStateExiting
		t.ExitRoute = mv.border
		t.ExitDistance = mv.overshoot
	}
	return t
}

func (t Train) waitForRun(ctx *SimulationContext) Train {
	if t.Located && t.Speed != 0 {
		l := t.Location
		l.Distance -= t.Speed * ctx.dt
		t.Location = l.Clamp()
	}
	t.Speed = 0
	ctx.perf.TrainWaitingTime += ctx.dt
	return t
}

func (t Train) load(ctx *SimulationContext) Train {
	t.Speed = 0
	t.Timer += ctx.dt
	if t.Timer >= LoadingTime {
		t.Timer = 0
		t.Loaded = true
		t.State = TrainStateRunning
	}
	return t
}

func (t Train) exit(ctx *SimulationContext) (Train, bool) {
	m := ctx.status.model
	step := math.Max(0, t.Speed) * ctx.dt
	if left := ExitDistance - t.ExitDistance; step >= left {
		step = math.Max(0, left)
		t.ExitDistance = ExitDistance
	} else {
		t.ExitDistance += step
	}
	ctx.perf.TraveledDistance += step
	t.Speed = m.Accelerate(t.Speed, ctx.dt)
	if t.ExitDistance < ExitDistance {
		return t, true
	}
	if t.ExitRoute == t.Destination {
		ctx.perf.RightOutgoingTrainCount++
	} else {
		ctx.perf.WrongOutgoingTrainCount++
	}
	ctx.emit(SoundEvent{Kind: SoundLeave, Route: t.ExitRoute, Train: t.ID})
	return t, false
}
