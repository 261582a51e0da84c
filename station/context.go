package station

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

// Rand is the random source of train generation. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// maxIDDraws bounds the attempts at drawing an unused train id.
const maxIDDraws = 100

// SimulationContext is one tick in progress. Every train of the tick reads the same
// status; side effects are collected here and folded into the next status.
type SimulationContext struct {
	status *StationStatus
	dt     float64
	locks  []passedSignal
	sounds []SoundEvent
	perf   Performance
}

func newSimulationContext(s *StationStatus, dt float64) *SimulationContext {
	s.ensureFootprints()
	return &SimulationContext{status: s, dt: dt}
}

func (c *SimulationContext) Status() *StationStatus { return c.status }
func (c *SimulationContext) Dt() float64            { return c.dt }

func (c *SimulationContext) lock(routeID string, in layout.Direction) {
	c.locks = append(c.locks, passedSignal{route: routeID, in: in})
}

func (c *SimulationContext) emit(e SoundEvent) {
	c.sounds = append(c.sounds, e)
}

// Tick advances the station by dt seconds: every train moves, signals passed are locked
// behind trains when auto-lock is on, and a new train may arrive.
func (s *StationStatus) Tick(dt float64, rng Rand) *StationStatus {
	ctx := newSimulationContext(s, dt)
	trains := make([]Train, 0, len(s.trains)+1)
	for _, t := range s.trains {
		if t2, ok := t.changeState(ctx); ok {
			trains = append(trains, t2)
		}
	}
	routes := s.routes
	if s.autoLock {
		routes = applyLocks(routes, ctx.locks)
	}
	next := s.clone()
	next.trains = trains
	next.routes = routes
	next.time = s.time + dt
	if t, ok := next.generate(ctx, rng); ok {
		next.trains = append(next.trains, t)
	}
	ctx.perf.ElapsedTime = dt
	next.sounds = ctx.sounds
	next.last = ctx.perf
	next.performance = s.performance.Add(ctx.perf)
	return next
}

func applyLocks(routes *route.Set, locks []passedSignal) *route.Set {
	for _, l := range locks {
		r, ok := routes.Route(l.route)
		if !ok {
			continue
		}
		r2, ok := r.Lock(l.in)
		if !ok {
			zap.S().Debugf("auto-lock %s along %s refused", l.route, l.in)
			continue
		}
		routes = routes.With(r2)
	}
	return routes
}

// generate draws a new arrival. The probability of an arrival within dt follows a
// Poisson process of rate frequency.
func (s *StationStatus) generate(ctx *SimulationContext, rng Rand) (Train, bool) {
	if rng == nil || s.frequency <= 0 {
		return Train{}, false
	}
	p := 1 - math.Exp(-s.frequency*ctx.dt)
	if rng.Float64() >= p {
		return Train{}, false
	}
	entries := s.routes.OfKind(route.KindEntry)
	exits := s.routes.OfKind(route.KindExit)
	if len(entries) == 0 || len(exits) == 0 {
		return Train{}, false
	}
	entry := entries[rng.Intn(len(entries))]
	exit := exits[rng.Intn(len(exits))]
	coaches := MinCoaches + rng.Intn(MaxCoaches-MinCoaches+1)
	id, ok := s.drawTrainID(rng)
	if !ok {
		zap.S().Warnf("no free train id after %d draws", maxIDDraws)
		return Train{}, false
	}
	t := Train{
		ID:          id,
		Coaches:     coaches,
		Arrival:     entry.ID,
		Destination: exit.ID,
		State:       TrainStateEntering,
		ArrivalTime: s.time,
	}
	ctx.perf.IncomingTrainCount++
	ctx.emit(SoundEvent{Kind: SoundArrival, Route: entry.ID, Train: id})
	return t, true
}

func (s *StationStatus) drawTrainID(rng Rand) (string, bool) {
	for i := 0; i < maxIDDraws; i++ {
		id := fmt.Sprintf("%c%03d", 'A'+rune(rng.Intn(26)), rng.Intn(1000))
		if s.trainIndex(id) == -1 {
			return id, true
		}
	}
	return "", false
}
