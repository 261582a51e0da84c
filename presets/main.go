// Package presets has the built-in stations.
package presets

import (
	"fmt"
	"math"
	"sort"

	"nyiyui.ca/hato/shingo/config"
	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

var presets = map[string]func() config.Station{
	"line":     Line,
	"junction": Junction,
	"crossing": Crossing,
	"kita":     Kita,
}

// Lookup returns the preset with the given name.
func Lookup(name string) (config.Station, bool) {
	f, ok := presets[name]
	if !ok {
		return config.Station{}, false
	}
	return f(), true
}

func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func node(id layout.NodeID, x, y float64, edges ...layout.EdgeID) layout.NodeData {
	return layout.NodeData{ID: id, X: x, Y: y, Edges: edges}
}

func track(id layout.EdgeID, node0, node1 layout.NodeID) layout.EdgeData {
	return layout.EdgeData{ID: id, Kind: layout.EdgeKindTrack, Node0: node0, Node1: node1}
}

func platform(id layout.EdgeID, node0, node1 layout.NodeID) layout.EdgeData {
	return layout.EdgeData{ID: id, Kind: layout.EdgeKindPlatform, Node0: node0, Node1: node1}
}

func curve(id layout.EdgeID, node0, node1 layout.NodeID, angle float64) layout.EdgeData {
	return layout.EdgeData{ID: id, Kind: layout.EdgeKindCurve, Node0: node0, Node1: node1, Angle: angle}
}

func device(id string, kind route.Kind, nodes ...layout.NodeID) route.Data {
	return route.Data{ID: id, Kind: kind, Nodes: nodes}
}

// Line is a single 1 km track from entry a to exit c with signal b halfway.
func Line() config.Station {
	return config.Station{
		Name: "line",
		Map: layout.StationData{
			Nodes: []layout.NodeData{
				node("a", 0, 0),
				node("b", 500, 0),
				node("c", 1000, 0),
			},
			Edges: []layout.EdgeData{
				track("ab", "a", "b"),
				track("bc", "b", "c"),
			},
		},
		Routes: []route.Data{
			device("a", route.KindEntry, "a"),
			device("b", route.KindSignal, "b"),
			device("c", route.KindExit, "c"),
		},
	}
}

// Junction splits one line into two behind a signal and a switch.
func Junction() config.Station {
	return config.Station{
		Name: "junction",
		Map: layout.StationData{
			Nodes: []layout.NodeData{
				node("a", 0, 0),
				node("b", 400, 0),
				node("s", 600, 0, "bs", "sc", "sd"),
				node("c", 1200, 0),
				node("d", 1200, 200),
			},
			Edges: []layout.EdgeData{
				track("ab", "a", "b"),
				track("bs", "b", "s"),
				track("sc", "s", "c"),
				track("sd", "s", "d"),
			},
		},
		Routes: []route.Data{
			device("a", route.KindEntry, "a"),
			device("b", route.KindSignal, "b"),
			device("s", route.KindSwitch, "s"),
			device("c", route.KindExit, "c"),
			device("d", route.KindExit, "d"),
		},
	}
}

// Crossing is two lines crossing on a diamond, each protected by a signal.
func Crossing() config.Station {
	return config.Station{
		Name: "crossing",
		Map: layout.StationData{
			Nodes: []layout.NodeData{
				node("w", -600, 0),
				node("ws", -300, 0),
				node("x0", 0, 0),
				node("x1", 0, 0),
				node("x2", 0, 0),
				node("x3", 0, 0),
				node("e", 600, 0),
				node("n", 0, 600),
				node("ns", 0, 300),
				node("s", 0, -600),
			},
			Edges: []layout.EdgeData{
				track("w0", "w", "ws"),
				track("w1", "ws", "x0"),
				track("e0", "x2", "e"),
				track("n0", "n", "ns"),
				track("n1", "ns", "x1"),
				track("s0", "x3", "s"),
			},
		},
		Routes: []route.Data{
			device("w", route.KindEntry, "w"),
			device("n", route.KindEntry, "n"),
			device("ws", route.KindSignal, "ws"),
			device("ns", route.KindSignal, "ns"),
			device("x", route.KindCrossRoute, "x0", "x1", "x2", "x3"),
			device("e", route.KindExit, "e"),
			device("s", route.KindExit, "s"),
		},
	}
}

// Kita is a two-track through station. Track 1 runs east and track 2 west, each with a
// platform; a double slip switch lets trains change track, and track 1 has a siding
// ending in a buffer stop.
func Kita() config.Station {
	const (
		platformStart = 800.0
		platformEnd   = 1100.0
		sidingRadius  = 200.0
		sidingAngle   = math.Pi / 4
	)
	return config.Station{
		Name: "kita",
		Map: layout.StationData{
			Nodes: []layout.NodeData{
				node("w1", 0, 0),
				node("s1w", 400, 0),
				node("p1w", platformStart, 0),
				node("p1e", platformEnd, 0),
				node("k1", 1250, 0, "1e", "1f", "1g"),
				node("e1", 1600, 0),
				node("dep", 1250+sidingRadius*math.Sin(sidingAngle), -sidingRadius*(1-math.Cos(sidingAngle))),

				node("w2", 0, 40),
				node("s2w", 400, 40),
				node("p2w", platformStart, 40),
				node("p2e", platformEnd, 40),
				node("e2", 1600, 40),

				// double slip switch: track 1 west, track 2 west, track 1 east, track 2 east
				node("x0", 600, 20),
				node("x1", 600, 20),
				node("x2", 600, 20),
				node("x3", 600, 20),
			},
			Edges: []layout.EdgeData{
				track("1a", "w1", "s1w"),
				track("1b", "s1w", "x0"),
				track("1c", "x2", "p1w"),
				platform("1d", "p1w", "p1e"),
				track("1e", "p1e", "k1"),
				track("1f", "k1", "e1"),
				curve("1g", "k1", "dep", -sidingAngle),

				track("2a", "w2", "s2w"),
				track("2b", "s2w", "x1"),
				track("2c", "x3", "p2w"),
				platform("2d", "p2w", "p2e"),
				track("2e", "p2e", "e2"),
			},
		},
		Routes: []route.Data{
			device("w1", route.KindEntry, "w1"),
			device("e1", route.KindExit, "e1"),
			device("e2", route.KindEntry, "e2"),
			device("w2", route.KindExit, "w2"),
			device("s1w", route.KindSignal, "s1w"),
			device("s2w", route.KindSignal, "s2w"),
			device("p1e", route.KindSignal, "p1e"),
			device("p2e", route.KindSignal, "p2e"),
			device("k1", route.KindSwitch, "k1"),
			device("x", route.KindDoubleSlipSwitch, "x0", "x1", "x2", "x3"),
		},
	}
}

// MustBuild builds a preset, panicking when it does not exist or is broken.
func MustBuild(name string) (*layout.StationMap, *route.Set) {
	s, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("preset %s not found", name))
	}
	return s.MustBuild()
}
