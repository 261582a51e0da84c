package route

import (
	"sort"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/shingo/layout"
)

// Section is a maximal run of edges joined by junctions and switches (along their selected
// path), bounded by signals, entries, exits, dead ends or switch branches that are not
// selected.
type Section struct {
	// ID is the smallest member edge id.
	ID    string
	Edges []layout.EdgeID
	// Terminals head out of the section into the bounding nodes.
	Terminals []layout.Direction
	// Crossing lists the sections using the other path of a crossing this section uses.
	Crossing []string
	// DeadEnd is set when a terminal runs into a dead end.
	DeadEnd bool
	// Devices lists the switches and crossings the section goes through.
	Devices []string
}

func (s *Section) HasEdge(id layout.EdgeID) bool {
	return slices.Contains(s.Edges, id)
}

// Sections is the section graph derived from one route state.
type Sections struct {
	list   []*Section
	byID   map[string]*Section
	byEdge map[layout.EdgeID]*Section
}

// CreateSections partitions the edges of m into sections according to the state of routes.
func CreateSections(m *layout.StationMap, routes *Set) *Sections {
	ss := &Sections{
		byID:   map[string]*Section{},
		byEdge: map[layout.EdgeID]*Section{},
	}
	for _, e := range m.Edges() {
		if _, done := ss.byEdge[e.ID]; done {
			continue
		}
		sec := grow(m, routes, e)
		ss.list = append(ss.list, sec)
		ss.byID[sec.ID] = sec
		for _, id := range sec.Edges {
			ss.byEdge[id] = sec
		}
	}
	sort.Slice(ss.list, func(i, j int) bool { return ss.list[i].ID < ss.list[j].ID })

	for _, r := range routes.OfKind(KindDoubleSlipSwitch, KindCrossRoute) {
		pair, _ := r.PathOf(r.Nodes[0])
		other, _ := r.OtherPath(r.Nodes[0])
		a := ss.byEdge[firstEdge(m, pair[0])]
		b := ss.byEdge[firstEdge(m, other[0])]
		if a == b {
			continue
		}
		a.Crossing = addSorted(a.Crossing, b.ID)
		b.Crossing = addSorted(b.Crossing, a.ID)
	}
	return ss
}

func firstEdge(m *layout.StationMap, node layout.NodeID) layout.EdgeID {
	n, _ := m.Node(node)
	return n.Edges[0]
}

func addSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

// grow collects the section containing start, walking both ways.
func grow(m *layout.StationMap, routes *Set, start *layout.Edge) *Section {
	seen := map[layout.EdgeID]bool{start.ID: true}
	sec := &Section{}
	devices := map[string]bool{}
	walk := func(d layout.Direction) []layout.EdgeID {
		var edges []layout.EdgeID
		for {
			r, _ := routes.At(d.To)
			if r.Kind.IsBoundary() {
				sec.Terminals = append(sec.Terminals, d)
				if r.Kind == KindDeadEnd {
					sec.DeadEnd = true
				}
				return edges
			}
			next, ok := r.Follow(m, d)
			if !ok {
				sec.Terminals = append(sec.Terminals, d)
				return edges
			}
			if r.Kind != KindJunction {
				devices[r.ID] = true
			}
			if seen[next.Edge.ID] {
				// closed loop
				return edges
			}
			seen[next.Edge.ID] = true
			edges = append(edges, next.Edge.ID)
			d = next
		}
	}
	back := walk(layout.Direction{Edge: start, To: start.Node0})
	fwd := walk(layout.Direction{Edge: start, To: start.Node1})
	sec.Edges = make([]layout.EdgeID, 0, len(back)+1+len(fwd))
	for i := len(back) - 1; i >= 0; i-- {
		sec.Edges = append(sec.Edges, back[i])
	}
	sec.Edges = append(sec.Edges, start.ID)
	sec.Edges = append(sec.Edges, fwd...)
	sec.ID = sec.Edges[0]
	for _, id := range sec.Edges {
		if id < sec.ID {
			sec.ID = id
		}
	}
	for id := range devices {
		sec.Devices = append(sec.Devices, id)
	}
	sort.Strings(sec.Devices)
	return sec
}

// All returns the sections ordered by id.
func (ss *Sections) All() []*Section { return ss.list }

func (ss *Sections) ByID(id string) (*Section, bool) {
	s, ok := ss.byID[id]
	return s, ok
}

// Of returns the section edge belongs to.
func (ss *Sections) Of(edge layout.EdgeID) (*Section, bool) {
	s, ok := ss.byEdge[edge]
	return s, ok
}

// Active returns the sections a toggle of r must find empty.
func (ss *Sections) Active(m *layout.StationMap, r *Route) []*Section {
	var res []*Section
	for _, id := range r.activeEdges(m) {
		if s, ok := ss.byEdge[id]; ok && !slices.Contains(res, s) {
			res = append(res, s)
		}
	}
	return res
}
