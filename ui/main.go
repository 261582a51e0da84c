// Package ui is a terminal dashboard for a running game.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/game"
	"nyiyui.ca/hato/shingo/station"
)

const logLength = 100

const help = "q quit  a auto-lock  +/- frequency  j/k select  enter toggle/start  s stop  r revert"

type dashboard struct {
	g *game.Game

	header  *widgets.Paragraph
	trains  *widgets.Table
	devices *widgets.List
	perf    *widgets.Paragraph
	log     *widgets.List

	snap game.Snapshot
	// targets are the ids behind the rows of devices.
	targets []target
}

type targetKind int

const (
	targetDevice targetKind = iota + 1
	targetTrain
)

type target struct {
	kind targetKind
	id   string
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, g *game.Game) error {
	if err := termui.Init(); err != nil {
		return fmt.Errorf("termui init: %w", err)
	}
	defer termui.Close()

	d := newDashboard(g)
	snaps := make(chan game.Snapshot, 8)
	g.SnapshotMux.Subscribe("ui", snaps)
	defer g.SnapshotMux.Unsubscribe(snaps)
	sounds := make(chan station.SoundEvent, 32)
	g.SoundMux.Subscribe("ui sounds", sounds)
	defer g.SoundMux.Unsubscribe(sounds)

	d.update(g.Snapshot())
	w, h := termui.TerminalDimensions()
	d.resize(w, h)
	d.render()

	events := termui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-snaps:
			d.update(snap)
		case e := <-sounds:
			d.logf("%s %s%s", e.Kind, e.Route, e.Train)
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(termui.Resize)
				d.resize(payload.Width, payload.Height)
			default:
				d.key(e.ID)
			}
		}
		d.render()
	}
}

func newDashboard(g *game.Game) *dashboard {
	d := &dashboard{
		g:       g,
		header:  widgets.NewParagraph(),
		trains:  widgets.NewTable(),
		devices: widgets.NewList(),
		perf:    widgets.NewParagraph(),
		log:     widgets.NewList(),
	}
	d.header.Title = g.Map().Name
	d.trains.Title = "Trains"
	d.trains.RowSeparator = false
	d.devices.Title = "Devices"
	d.devices.SelectedRowStyle = termui.NewStyle(termui.ColorYellow)
	d.perf.Title = "Performance"
	d.log.Title = "Log"
	return d
}

func (d *dashboard) resize(w, h int) {
	top := 3
	side := w / 3
	bottom := h - 8
	d.header.SetRect(0, 0, w, top)
	d.trains.SetRect(0, top, w-side, bottom)
	d.devices.SetRect(w-side, top, w, bottom)
	d.perf.SetRect(0, bottom, w/2, h)
	d.log.SetRect(w/2, bottom, w, h)
}

func (d *dashboard) render() {
	termui.Render(d.header, d.trains, d.devices, d.perf, d.log)
}

func (d *dashboard) update(snap game.Snapshot) {
	d.snap = snap
	d.header.Text = headerText(snap) + "\n" + help
	d.trains.Rows = trainRows(snap)
	var rows []string
	rows, d.targets = deviceRows(snap)
	d.devices.Rows = rows
	if d.devices.SelectedRow >= len(rows) {
		d.devices.SelectedRow = 0
	}
	d.perf.Text = performanceText(snap)
}

func (d *dashboard) logf(format string, args ...interface{}) {
	d.log.Rows = append(d.log.Rows, fmt.Sprintf(format, args...))
	if len(d.log.Rows) > logLength {
		d.log.Rows = d.log.Rows[len(d.log.Rows)-logLength:]
	}
	d.log.ScrollBottom()
}

func (d *dashboard) key(id string) {
	var err error
	switch id {
	case "a":
		err = d.g.SetAutoLock(!d.snap.AutoLock)
	case "+":
		err = d.g.SetFrequency(nextFrequency(d.snap.Frequency, true))
	case "-":
		err = d.g.SetFrequency(nextFrequency(d.snap.Frequency, false))
	case "j", "<Down>":
		d.devices.ScrollDown()
	case "k", "<Up>":
		d.devices.ScrollUp()
	case "<Enter>", "s", "r":
		t, ok := d.selected()
		if !ok {
			return
		}
		err = d.act(t, id)
	default:
		return
	}
	if err != nil {
		zap.S().Debugf("ui: %s", err)
		d.logf("%s", err)
	}
}

func (d *dashboard) selected() (target, bool) {
	i := d.devices.SelectedRow
	if i < 0 || i >= len(d.targets) {
		return target{}, false
	}
	return d.targets[i], true
}

func (d *dashboard) act(t target, key string) error {
	switch {
	case t.kind == targetDevice && key == "<Enter>":
		return d.g.Toggle(t.id)
	case t.kind == targetTrain && key == "<Enter>":
		return d.g.StartTrain(t.id)
	case t.kind == targetTrain && key == "s":
		return d.g.StopTrain(t.id)
	case t.kind == targetTrain && key == "r":
		return d.g.RevertTrain(t.id)
	}
	return nil
}

// nextFrequency steps the arrival rate through one train per 30, 60, 120, 240 and 480
// seconds, and zero.
func nextFrequency(f float64, up bool) float64 {
	periods := []float64{480, 240, 120, 60, 30}
	if up {
		for _, p := range periods {
			if 1/p > f*1.0001 {
				return 1 / p
			}
		}
		return 1 / periods[len(periods)-1]
	}
	for i := len(periods) - 1; i >= 0; i-- {
		if 1/periods[i] < f*0.9999 {
			return 1 / periods[i]
		}
	}
	return 0
}

func headerText(snap game.Snapshot) string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "%s  t=%s", snap.Player, clock(snap.Time))
	if snap.Remaining > 0 || snap.Over {
		fmt.Fprintf(b, "  left=%s", clock(snap.Remaining))
	}
	if snap.Frequency > 0 {
		fmt.Fprintf(b, "  every %.0fs", 1/snap.Frequency)
	} else {
		fmt.Fprint(b, "  no arrivals")
	}
	if snap.AutoLock {
		fmt.Fprint(b, "  auto-lock")
	}
	if snap.Over {
		fmt.Fprint(b, "  GAME OVER")
	}
	return b.String()
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func trainRows(snap game.Snapshot) [][]string {
	rows := [][]string{{"ID", "State", "km/h", "Section", "From", "To"}}
	for _, t := range snap.Trains {
		state := t.State.String()
		if t.ManualStop {
			state += " (held)"
		}
		rows = append(rows, []string{
			t.ID,
			state,
			fmt.Sprintf("%.0f", t.Speed*3.6),
			t.Section,
			t.Arrival,
			t.Destination,
		})
	}
	return rows
}

func deviceRows(snap game.Snapshot) ([]string, []target) {
	var rows []string
	var targets []target
	for _, dev := range snap.Devices {
		pos := "diverging"
		if dev.Through {
			pos = "through"
		}
		rows = append(rows, fmt.Sprintf("%s %s %s", dev.Kind, dev.ID, pos))
		targets = append(targets, target{kind: targetDevice, id: dev.ID})
	}
	for _, t := range snap.Trains {
		rows = append(rows, fmt.Sprintf("train %s %s", t.ID, t.State))
		targets = append(targets, target{kind: targetTrain, id: t.ID})
	}
	return rows, targets
}

func performanceText(snap game.Snapshot) string {
	p := snap.Performance
	b := new(strings.Builder)
	fmt.Fprintf(b, "right %d  wrong %d  in %d\n", p.RightOutgoingTrainCount, p.WrongOutgoingTrainCount, p.IncomingTrainCount)
	fmt.Fprintf(b, "%.1f right/h\n", p.RightOutgoingPerHour())
	fmt.Fprintf(b, "stops %d  waiting %.0fs  travelled %.1fkm\n", p.TrainStopCount, p.TrainWaitingTime, p.TraveledDistance/1000)
	fmt.Fprintf(b, "last: %s", snap.LastPerformance)
	return b.String()
}
