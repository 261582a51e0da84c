package game

import (
	"fmt"

	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
	"nyiyui.ca/hato/shingo/station"
)

// Rejected is returned by commands the station refused.
type Rejected struct {
	Command string
}

func (r Rejected) Error() string {
	return fmt.Sprintf("%s rejected", r.Command)
}

// apply runs a command against the current status. A command returning its receiver
// was rejected.
func (g *Game) apply(command string, f func(s *station.StationStatus) *station.StationStatus) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.over {
		return ErrOver
	}
	s2 := f(g.status)
	if s2 == g.status {
		return Rejected{Command: command}
	}
	g.status = s2
	g.publish()
	return nil
}

// Toggle flips the switch or double slip switch with the given id.
func (g *Game) Toggle(id string) error {
	r, ok := g.Status().Routes().Route(id)
	if !ok {
		return Rejected{Command: "toggle " + id}
	}
	switch r.Kind {
	case route.KindSwitch:
		return g.ToggleSwitch(id)
	case route.KindDoubleSlipSwitch:
		return g.ToggleDoubleSlipSwitch(id)
	default:
		return Rejected{Command: "toggle " + id}
	}
}

func (g *Game) ToggleSwitch(id string) error {
	return g.apply("toggle switch "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.ToggleSwitch(id)
	})
}

func (g *Game) ToggleDoubleSlipSwitch(id string) error {
	return g.apply("toggle double slip switch "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.ToggleDoubleSlipSwitch(id)
	})
}

func (g *Game) LockSignal(id string, edge layout.EdgeID) error {
	return g.apply("lock signal "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.LockSignal(id, edge)
	})
}

func (g *Game) UnlockSignal(id string, edge layout.EdgeID) error {
	return g.apply("unlock signal "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.UnlockSignal(id, edge)
	})
}

func (g *Game) LockSection(edge layout.EdgeID) error {
	return g.apply("lock section "+edge, func(s *station.StationStatus) *station.StationStatus {
		return s.LockSection(edge)
	})
}

func (g *Game) UnlockSection(edge layout.EdgeID) error {
	return g.apply("unlock section "+edge, func(s *station.StationStatus) *station.StationStatus {
		return s.UnlockSection(edge)
	})
}

func (g *Game) StopTrain(id string) error {
	return g.apply("stop train "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.StopTrain(id)
	})
}

func (g *Game) StartTrain(id string) error {
	return g.apply("start train "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.StartTrain(id)
	})
}

func (g *Game) RevertTrain(id string) error {
	return g.apply("revert train "+id, func(s *station.StationStatus) *station.StationStatus {
		return s.RevertTrain(id)
	})
}

func (g *Game) SetAutoLock(on bool) error {
	return g.apply(fmt.Sprintf("set auto-lock %t", on), func(s *station.StationStatus) *station.StationStatus {
		return s.SetAutoLock(on)
	})
}

func (g *Game) SetFrequency(f float64) error {
	return g.apply(fmt.Sprintf("set frequency %g", f), func(s *station.StationStatus) *station.StationStatus {
		return s.SetFrequency(f)
	})
}
