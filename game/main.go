// Package game runs a station on a clock: it owns the current status, applies operator
// commands to it and publishes what happens.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/hof"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/notify"
	"nyiyui.ca/hato/shingo/route"
	"nyiyui.ca/hato/shingo/station"
)

// ErrOver is returned by commands sent after the game has ended.
var ErrOver = errors.New("game over")

type Conf struct {
	Player    string
	Map       *layout.StationMap
	Routes    *route.Set
	Frequency float64
	// Tick is the simulated time per step.
	Tick time.Duration
	// Speedup is simulated time per wall-clock time.
	Speedup float64
	// Length is the simulated length of the game. Zero means endless.
	Length time.Duration
	Seed   int64
	// Store records the result when the game ends. Optional.
	Store hof.Store
}

// Snapshot is a station snapshot with the state of the game around it.
type Snapshot struct {
	station.Snapshot
	Session   uuid.UUID `json:"session"`
	Player    string    `json:"player"`
	Remaining float64   `json:"remaining,omitempty"`
	Over      bool      `json:"over"`
}

type Game struct {
	ID   uuid.UUID
	conf Conf

	lock   sync.Mutex
	status *station.StationStatus
	rng    *rand.Rand
	over   bool
	result *hof.Entry

	snapshotS   *notify.MultiplexerSender[Snapshot]
	SnapshotMux *notify.Multiplexer[Snapshot]
	soundS      *notify.MultiplexerSender[station.SoundEvent]
	SoundMux    *notify.Multiplexer[station.SoundEvent]
}

func New(conf Conf) (*Game, error) {
	if conf.Map == nil || conf.Routes == nil {
		return nil, errors.New("no station")
	}
	if conf.Tick <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %s", conf.Tick)
	}
	if conf.Speedup <= 0 {
		conf.Speedup = 1
	}
	g := &Game{
		ID:     uuid.New(),
		conf:   conf,
		status: station.New(conf.Map, conf.Routes).SetFrequency(conf.Frequency),
		rng:    rand.New(rand.NewSource(conf.Seed)),
	}
	comment := fmt.Sprintf("game %s", g.ID)
	g.snapshotS, g.SnapshotMux = notify.NewMultiplexerSender[Snapshot](comment + " snapshots")
	g.soundS, g.SoundMux = notify.NewMultiplexerSender[station.SoundEvent](comment + " sounds")
	return g, nil
}

// Status returns the current status. It is immutable, so it may be kept.
func (g *Game) Status() *station.StationStatus {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.status
}

func (g *Game) Map() *layout.StationMap { return g.conf.Map }

func (g *Game) Over() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.over
}

// Result returns the hall-of-fame entry of a finished game.
func (g *Game) Result() (hof.Entry, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.result == nil {
		return hof.Entry{}, false
	}
	return *g.result, true
}

func (g *Game) Snapshot() Snapshot {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.snapshot()
}

// lock must be taken
func (g *Game) snapshot() Snapshot {
	snap := Snapshot{
		Snapshot: g.status.Snapshot(),
		Session:  g.ID,
		Player:   g.conf.Player,
		Over:     g.over,
	}
	if g.conf.Length > 0 {
		snap.Remaining = g.conf.Length.Seconds() - g.status.Time()
		if snap.Remaining < 0 {
			snap.Remaining = 0
		}
	}
	return snap
}

// lock must be taken
func (g *Game) publish() {
	for _, e := range g.status.Sounds() {
		g.soundS.Send(e)
	}
	g.snapshotS.Send(g.snapshot())
}

// PublishSnapshot sends the current snapshot to subscribers.
func (g *Game) PublishSnapshot() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.snapshotS.Send(g.snapshot())
}

// Step advances the game by one tick. It reports whether the game is over.
func (g *Game) Step() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.over {
		return true
	}
	g.status = g.status.Tick(g.conf.Tick.Seconds(), g.rng)
	if g.conf.Length > 0 && g.status.Time() >= g.conf.Length.Seconds() {
		g.over = true
		entry := hof.NewEntry(g.conf.Player, g.conf.Map.Name, g.status.Frequency(), g.status.Performance(), time.Now())
		g.result = &entry
		zap.S().Infof("game %s over: %s", g.ID, g.status.Performance())
	}
	g.publish()
	return g.over
}

// Run steps the game on a ticker until it is over or ctx is done. The result of a game
// that ran to its end is recorded in the store.
func (g *Game) Run(ctx context.Context) error {
	interval := time.Duration(float64(g.conf.Tick) / g.conf.Speedup)
	if interval <= 0 {
		interval = time.Microsecond
	}
	zap.S().Infof("game %s: starting %s, %s per step every %s", g.ID, g.conf.Map.Name, g.conf.Tick, interval)
	g.PublishSnapshot()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if g.Step() {
			return g.record(ctx)
		}
	}
}

func (g *Game) record(ctx context.Context) error {
	e, ok := g.Result()
	if !ok || g.conf.Store == nil {
		return nil
	}
	if err := g.conf.Store.Add(ctx, e); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	zap.S().Infof("recorded %s", e)
	return nil
}

// Close stops publishing. Subscribers are not closed.
func (g *Game) Close() {
	g.snapshotS.Close()
	g.soundS.Close()
}
