// Package route holds the signalling devices attached to the nodes of a station and
// derives the interlocking sections from their state.
package route

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/shingo/layout"
)

type Kind int

const (
	KindEntry Kind = iota + 1
	KindExit
	KindSignal
	KindJunction
	KindSwitch
	KindDoubleSlipSwitch
	KindCrossRoute
	KindDeadEnd
)

var kindNames = map[Kind]string{
	KindEntry:            "entry",
	KindExit:             "exit",
	KindSignal:           "signal",
	KindJunction:         "junction",
	KindSwitch:           "switch",
	KindDoubleSlipSwitch: "double-slip-switch",
	KindCrossRoute:       "cross-route",
	KindDeadEnd:          "dead-end",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("%d", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if s, ok := kindNames[k]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unknown route kind %d", int(k))
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, s := range kindNames {
		if s == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown route kind %q", text)
}

// nodeCount is the number of nodes a route of the kind is attached to.
func (k Kind) nodeCount() int {
	switch k {
	case KindDoubleSlipSwitch, KindCrossRoute:
		return 4
	default:
		return 1
	}
}

// degree is the number of edges each node of the route must have.
func (k Kind) degree() int {
	switch k {
	case KindEntry, KindExit, KindDeadEnd, KindDoubleSlipSwitch, KindCrossRoute:
		return 1
	case KindSignal, KindJunction:
		return 2
	case KindSwitch:
		return 3
	default:
		panic(fmt.Sprintf("unknown route kind %d", int(k)))
	}
}

// IsBoundary reports whether the kind ends a section.
func (k Kind) IsBoundary() bool {
	switch k {
	case KindEntry, KindExit, KindSignal, KindDeadEnd:
		return true
	case KindJunction, KindSwitch, KindDoubleSlipSwitch, KindCrossRoute:
		return false
	default:
		panic(fmt.Sprintf("unknown route kind %d", int(k)))
	}
}

// IsCrossing reports whether the kind is a four-node device with two crossing paths.
func (k Kind) IsCrossing() bool {
	return k == KindDoubleSlipSwitch || k == KindCrossRoute
}

// IsBorder reports whether trains enter or leave the station through the kind.
func (k Kind) IsBorder() bool {
	return k == KindEntry || k == KindExit
}

// Data is the serialisable form of a Route.
type Data struct {
	ID    string          `json:"id"`
	Kind  Kind            `json:"kind"`
	Nodes []layout.NodeID `json:"nodes"`
	// Diverging is the initial state of a switch.
	Diverging bool `json:"diverging,omitempty"`
	// Locked lists the edges along which trains may not enter a signal.
	Locked []layout.EdgeID `json:"locked,omitempty"`
}

// Route is a device attached to one node (four for crossings). Routes are immutable:
// Toggle, Lock and Unlock return a new Route.
//
// A switch node lists its edges as trunk, through, diverging. A four-node device pairs
// Nodes[0] with Nodes[2] and Nodes[1] with Nodes[3]; a diverging double slip pairs
// Nodes[0] with Nodes[3] and Nodes[1] with Nodes[2].
type Route struct {
	ID    string
	Kind  Kind
	Nodes []layout.NodeID

	through bool
	// locked holds the inbound edges locked at a signal, sorted.
	locked []layout.EdgeID
}

func (r *Route) String() string {
	return fmt.Sprintf("%s(%s %v)", r.ID, r.Kind, r.Nodes)
}

func (r *Route) Data() Data {
	return Data{
		ID:        r.ID,
		Kind:      r.Kind,
		Nodes:     slices.Clone(r.Nodes),
		Diverging: !r.through && (r.Kind == KindSwitch || r.Kind == KindDoubleSlipSwitch),
		Locked:    slices.Clone(r.locked),
	}
}

// IsThrough reports the state of a switch. Devices without state are always through.
func (r *Route) IsThrough() bool { return r.through }

// Toggle returns the route with the other path selected. Only switches can be toggled.
func (r *Route) Toggle() (*Route, bool) {
	if r.Kind != KindSwitch && r.Kind != KindDoubleSlipSwitch {
		return r, false
	}
	r2 := *r
	r2.through = !r.through
	return &r2, true
}

func (r *Route) hasNode(n layout.NodeID) bool {
	return slices.Contains(r.Nodes, n)
}

// IsLocked reports whether trains coming along in may not pass the route.
func (r *Route) IsLocked(in layout.Direction) bool {
	if r.Kind != KindSignal || in.To != r.Nodes[0] {
		return false
	}
	_, found := slices.BinarySearch(r.locked, in.Edge.ID)
	return found
}

// Locked returns the locked inbound directions of a signal.
func (r *Route) Locked(m *layout.StationMap) []layout.Direction {
	res := make([]layout.Direction, 0, len(r.locked))
	for _, id := range r.locked {
		res = append(res, m.MustDirection(id, r.Nodes[0]))
	}
	return res
}

// Lock forbids trains coming along in. Only signals accept locks, and only for directions
// heading into the signal node. Locking an already locked direction returns r itself.
func (r *Route) Lock(in layout.Direction) (*Route, bool) {
	if r.Kind != KindSignal || !in.Valid() || in.To != r.Nodes[0] {
		return r, false
	}
	i, found := slices.BinarySearch(r.locked, in.Edge.ID)
	if found {
		return r, true
	}
	r2 := *r
	r2.locked = slices.Insert(slices.Clone(r.locked), i, in.Edge.ID)
	return &r2, true
}

// Unlock is the inverse of Lock.
func (r *Route) Unlock(in layout.Direction) (*Route, bool) {
	if r.Kind != KindSignal || !in.Valid() || in.To != r.Nodes[0] {
		return r, false
	}
	i, found := slices.BinarySearch(r.locked, in.Edge.ID)
	if !found {
		return r, true
	}
	r2 := *r
	r2.locked = slices.Delete(slices.Clone(r.locked), i, i+1)
	return &r2, true
}

// partner returns the index of the node paired with Nodes[i] in a four-node device.
func (r *Route) partner(i int) int {
	if r.Kind == KindCrossRoute || r.through {
		return (i + 2) % 4
	}
	return 3 - i
}

// PathOf returns the active pair of a four-node device that contains node.
func (r *Route) PathOf(node layout.NodeID) ([2]layout.NodeID, bool) {
	i := slices.Index(r.Nodes, node)
	if !r.Kind.IsCrossing() || i == -1 {
		return [2]layout.NodeID{}, false
	}
	return [2]layout.NodeID{node, r.Nodes[r.partner(i)]}, true
}

// OtherPath returns the active pair of a four-node device that crosses the one containing
// node.
func (r *Route) OtherPath(node layout.NodeID) ([2]layout.NodeID, bool) {
	i := slices.Index(r.Nodes, node)
	if !r.Kind.IsCrossing() || i == -1 {
		return [2]layout.NodeID{}, false
	}
	j := r.partner(i)
	var res [2]layout.NodeID
	k := 0
	for l, n := range r.Nodes {
		if l != i && l != j {
			res[k] = n
			k++
		}
	}
	return res, true
}

// Follow returns the direction a train coming along in leaves the route by, selected by
// the device state. Locks are ignored.
func (r *Route) Follow(m *layout.StationMap, in layout.Direction) (layout.Direction, bool) {
	if !in.Valid() || !r.hasNode(in.To) {
		return layout.Direction{}, false
	}
	switch r.Kind {
	case KindEntry, KindExit, KindDeadEnd:
		return layout.Direction{}, false
	case KindSignal, KindJunction:
		n, _ := m.Node(in.To)
		i := slices.Index(n.Edges, in.Edge.ID)
		return m.Leaving(in.To, 1-i)
	case KindSwitch:
		n, _ := m.Node(in.To)
		active := 2
		if r.through {
			active = 1
		}
		switch i := slices.Index(n.Edges, in.Edge.ID); i {
		case 0:
			return m.Leaving(in.To, active)
		case active:
			return m.Leaving(in.To, 0)
		default:
			// trailing move from the branch that is not selected
			return layout.Direction{}, false
		}
	case KindDoubleSlipSwitch, KindCrossRoute:
		i := slices.Index(r.Nodes, in.To)
		return m.Leaving(r.Nodes[r.partner(i)], 0)
	default:
		panic(fmt.Sprintf("unknown route kind %d", int(r.Kind)))
	}
}

// Next is Follow, but absent when in is locked.
func (r *Route) Next(m *layout.StationMap, in layout.Direction) (layout.Direction, bool) {
	if r.IsLocked(in) {
		return layout.Direction{}, false
	}
	return r.Follow(m, in)
}

// activeEdges returns the edges whose sections a toggle must find empty.
func (r *Route) activeEdges(m *layout.StationMap) []layout.EdgeID {
	switch r.Kind {
	case KindSwitch:
		n, _ := m.Node(r.Nodes[0])
		return []layout.EdgeID{n.Edges[0]}
	case KindDoubleSlipSwitch, KindCrossRoute:
		res := make([]layout.EdgeID, 0, 4)
		for _, id := range r.Nodes {
			n, _ := m.Node(id)
			res = append(res, n.Edges[0])
		}
		return res
	default:
		return nil
	}
}

func newRoute(m *layout.StationMap, d Data) (*Route, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("route with empty id: %w", layout.ErrInvalidReference)
	}
	if _, ok := kindNames[d.Kind]; !ok {
		return nil, fmt.Errorf("route %q: unknown kind %s: %w", d.ID, d.Kind, layout.ErrInvalidReference)
	}
	if len(d.Nodes) != d.Kind.nodeCount() {
		return nil, fmt.Errorf("route %q: %s needs %d nodes, got %d: %w", d.ID, d.Kind, d.Kind.nodeCount(), len(d.Nodes), layout.ErrInvalidReference)
	}
	for i, id := range d.Nodes {
		n, ok := m.Node(id)
		if !ok {
			return nil, fmt.Errorf("route %q: node %q not found: %w", d.ID, id, layout.ErrInvalidReference)
		}
		if len(n.Edges) != d.Kind.degree() {
			return nil, fmt.Errorf("route %q: %s node %q needs %d edges, has %d: %w", d.ID, d.Kind, id, d.Kind.degree(), len(n.Edges), layout.ErrInvalidReference)
		}
		if slices.Contains(d.Nodes[:i], id) {
			return nil, fmt.Errorf("route %q: node %q listed twice: %w", d.ID, id, layout.ErrInvalidReference)
		}
	}
	r := &Route{
		ID:      d.ID,
		Kind:    d.Kind,
		Nodes:   slices.Clone(d.Nodes),
		through: !d.Diverging,
	}
	if len(d.Locked) > 0 {
		if d.Kind != KindSignal {
			return nil, fmt.Errorf("route %q: only signals can be locked: %w", d.ID, layout.ErrInvalidReference)
		}
		for _, id := range d.Locked {
			dir, err := m.Direction(id, d.Nodes[0])
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", d.ID, err)
			}
			r, _ = r.Lock(dir)
		}
	}
	return r, nil
}

// Set is an immutable collection of routes indexed by id and by node.
type Set struct {
	routes map[string]*Route
	byNode map[layout.NodeID]*Route
	ids    []string
}

// NewSet checks data against m. Nodes no route is attached to get a junction (two edges)
// or a dead end (one edge) with the node id as route id.
func NewSet(m *layout.StationMap, data []Data) (*Set, error) {
	s := &Set{
		routes: map[string]*Route{},
		byNode: map[layout.NodeID]*Route{},
	}
	add := func(r *Route) error {
		if _, exists := s.routes[r.ID]; exists {
			return fmt.Errorf("route %q already exists: %w", r.ID, layout.ErrInvalidReference)
		}
		for _, n := range r.Nodes {
			if other, taken := s.byNode[n]; taken {
				return fmt.Errorf("route %q: node %q already used by route %q: %w", r.ID, n, other.ID, layout.ErrInvalidReference)
			}
		}
		s.routes[r.ID] = r
		s.ids = append(s.ids, r.ID)
		for _, n := range r.Nodes {
			s.byNode[n] = r
		}
		return nil
	}
	for _, d := range data {
		r, err := newRoute(m, d)
		if err != nil {
			return nil, err
		}
		if err := add(r); err != nil {
			return nil, err
		}
	}
	for _, n := range m.Nodes() {
		if _, ok := s.byNode[n.ID]; ok {
			continue
		}
		var kind Kind
		switch len(n.Edges) {
		case 1:
			kind = KindDeadEnd
		case 2:
			kind = KindJunction
		default:
			return nil, fmt.Errorf("node %q with %d edges needs a route: %w", n.ID, len(n.Edges), layout.ErrInvalidReference)
		}
		if err := add(&Route{ID: n.ID, Kind: kind, Nodes: []layout.NodeID{n.ID}, through: true}); err != nil {
			return nil, err
		}
	}
	sort.Strings(s.ids)
	return s, nil
}

// MustNewSet is NewSet, but panics on error.
func MustNewSet(m *layout.StationMap, data []Data) *Set {
	s, err := NewSet(m, data)
	if err != nil {
		panic(fmt.Sprintf("routes of %s: %s", m.Name, err))
	}
	return s
}

func (s *Set) Route(id string) (*Route, bool) {
	r, ok := s.routes[id]
	return r, ok
}

// At returns the route attached to node.
func (s *Set) At(node layout.NodeID) (*Route, bool) {
	r, ok := s.byNode[node]
	return r, ok
}

// All returns every route ordered by id.
func (s *Set) All() []*Route {
	res := make([]*Route, len(s.ids))
	for i, id := range s.ids {
		res[i] = s.routes[id]
	}
	return res
}

// OfKind returns the routes of the given kinds ordered by id.
func (s *Set) OfKind(kinds ...Kind) []*Route {
	var res []*Route
	for _, id := range s.ids {
		if r := s.routes[id]; slices.Contains(kinds, r.Kind) {
			res = append(res, r)
		}
	}
	return res
}

// With returns a Set where the route with the same id as r is replaced by r. The other
// routes are shared.
func (s *Set) With(r *Route) *Set {
	old, ok := s.routes[r.ID]
	if !ok {
		panic(fmt.Sprintf("route %q not in set", r.ID))
	}
	if old == r {
		return s
	}
	s2 := &Set{
		routes: make(map[string]*Route, len(s.routes)),
		byNode: make(map[layout.NodeID]*Route, len(s.byNode)),
		ids:    s.ids,
	}
	for id, r2 := range s.routes {
		s2.routes[id] = r2
	}
	for n, r2 := range s.byNode {
		s2.byNode[n] = r2
	}
	s2.routes[r.ID] = r
	for _, n := range r.Nodes {
		s2.byNode[n] = r
	}
	return s2
}

// Data returns the serialisable form of every route, including the default ones.
func (s *Set) Data() []Data {
	res := make([]Data, len(s.ids))
	for i, r := range s.All() {
		res[i] = r.Data()
	}
	return res
}
