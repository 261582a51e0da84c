// Package layout describes the track of a station: nodes, edges and the directed
// primitives used to express where a train is.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/exp/slices"
)

// ErrInvalidReference is wrapped by every error caused by a station definition that
// refers to something that does not exist (or cannot be what it claims to be).
var ErrInvalidReference = errors.New("invalid reference")

type (
	NodeID = string
	EdgeID = string
)

// NodeData is the serialisable form of a Node.
type NodeData struct {
	ID NodeID  `json:"id"`
	X  float64 `json:"x"` // metres
	Y  float64 `json:"y"` // metres
	// Edges optionally fixes the order of the incident edges (a switch lists its trunk,
	// through and diverging edges in that order). Derived from the edge list if empty.
	Edges []EdgeID `json:"edges,omitempty"`
}

// EdgeData is the serialisable form of an Edge.
type EdgeData struct {
	ID    EdgeID   `json:"id"`
	Kind  EdgeKind `json:"kind"`
	Node0 NodeID   `json:"node0"`
	Node1 NodeID   `json:"node1"`
	// Angle is the signed sweep of a curve in radians (positive is counter-clockwise
	// going from Node0 to Node1). Ignored for other kinds.
	Angle float64 `json:"angle,omitempty"`
}

// StationData is the serialisable input of New.
type StationData struct {
	Name  string     `json:"name"`
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}

type Node struct {
	ID       NodeID
	Location orb.Point
	// Edges are the incident edges, in order.
	Edges []EdgeID
}

// StationMap is the immutable topology of a station.
type StationMap struct {
	Name    string
	nodes   map[NodeID]*Node
	edges   map[EdgeID]*Edge
	nodeIDs []NodeID
	edgeIDs []EdgeID
	data    StationData
}

// New builds a StationMap, checking every reference in data.
func New(data StationData) (*StationMap, error) {
	m := &StationMap{
		Name:  data.Name,
		nodes: make(map[NodeID]*Node, len(data.Nodes)),
		edges: make(map[EdgeID]*Edge, len(data.Edges)),
		data:  data,
	}
	for _, nd := range data.Nodes {
		if nd.ID == "" {
			return nil, fmt.Errorf("node with empty id: %w", ErrInvalidReference)
		}
		if _, exists := m.nodes[nd.ID]; exists {
			return nil, fmt.Errorf("node %q already exists: %w", nd.ID, ErrInvalidReference)
		}
		m.nodes[nd.ID] = &Node{ID: nd.ID, Location: orb.Point{nd.X, nd.Y}}
		m.nodeIDs = append(m.nodeIDs, nd.ID)
	}
	incident := map[NodeID][]EdgeID{}
	for _, ed := range data.Edges {
		if _, exists := m.edges[ed.ID]; exists {
			return nil, fmt.Errorf("edge %q already exists: %w", ed.ID, ErrInvalidReference)
		}
		n0, ok := m.nodes[ed.Node0]
		if !ok {
			return nil, fmt.Errorf("edge %q: node %q not found: %w", ed.ID, ed.Node0, ErrInvalidReference)
		}
		n1, ok := m.nodes[ed.Node1]
		if !ok {
			return nil, fmt.Errorf("edge %q: node %q not found: %w", ed.ID, ed.Node1, ErrInvalidReference)
		}
		if n0 == n1 {
			return nil, fmt.Errorf("edge %q: both ends on node %q: %w", ed.ID, n0.ID, ErrInvalidReference)
		}
		e, err := newEdge(ed, n0.Location, n1.Location)
		if err != nil {
			return nil, err
		}
		m.edges[e.ID] = e
		m.edgeIDs = append(m.edgeIDs, e.ID)
		incident[n0.ID] = append(incident[n0.ID], e.ID)
		incident[n1.ID] = append(incident[n1.ID], e.ID)
	}
	for _, nd := range data.Nodes {
		n := m.nodes[nd.ID]
		if len(nd.Edges) == 0 {
			n.Edges = incident[nd.ID]
			continue
		}
		if len(nd.Edges) != len(incident[nd.ID]) {
			return nil, fmt.Errorf("node %q lists %d edges but has %d: %w", nd.ID, len(nd.Edges), len(incident[nd.ID]), ErrInvalidReference)
		}
		for _, id := range nd.Edges {
			if !slices.Contains(incident[nd.ID], id) {
				return nil, fmt.Errorf("node %q: edge %q not incident: %w", nd.ID, id, ErrInvalidReference)
			}
		}
		n.Edges = slices.Clone(nd.Edges)
	}
	sort.Strings(m.nodeIDs)
	sort.Strings(m.edgeIDs)
	return m, nil
}

// MustNew is New, but panics on error. This is for presets and tests.
func MustNew(data StationData) *StationMap {
	m, err := New(data)
	if err != nil {
		panic(fmt.Sprintf("station %s: %s", data.Name, err))
	}
	return m
}

func (m *StationMap) Data() StationData { return m.data }

func (m *StationMap) Node(id NodeID) (*Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

func (m *StationMap) Edge(id EdgeID) (*Edge, bool) {
	e, ok := m.edges[id]
	return e, ok
}

// Nodes returns all nodes ordered by id.
func (m *StationMap) Nodes() []*Node {
	res := make([]*Node, len(m.nodeIDs))
	for i, id := range m.nodeIDs {
		res[i] = m.nodes[id]
	}
	return res
}

// Edges returns all edges ordered by id.
func (m *StationMap) Edges() []*Edge {
	res := make([]*Edge, len(m.edgeIDs))
	for i, id := range m.edgeIDs {
		res[i] = m.edges[id]
	}
	return res
}

// Direction returns the direction along edge towards node to.
func (m *StationMap) Direction(edge EdgeID, to NodeID) (Direction, error) {
	e, ok := m.edges[edge]
	if !ok {
		return Direction{}, fmt.Errorf("edge %q not found: %w", edge, ErrInvalidReference)
	}
	if !e.HasNode(to) {
		return Direction{}, fmt.Errorf("node %q is not a terminal of edge %q: %w", to, edge, ErrInvalidReference)
	}
	return Direction{Edge: e, To: to}, nil
}

// MustDirection is Direction, but panics on error.
func (m *StationMap) MustDirection(edge EdgeID, to NodeID) Direction {
	d, err := m.Direction(edge, to)
	if err != nil {
		panic(err)
	}
	return d
}

// Leaving returns the direction leaving node along its i-th edge.
func (m *StationMap) Leaving(node NodeID, i int) (Direction, bool) {
	n, ok := m.nodes[node]
	if !ok || i < 0 || i >= len(n.Edges) {
		return Direction{}, false
	}
	e := m.edges[n.Edges[i]]
	return Direction{Edge: e, To: e.Other(node)}, true
}

// Bound returns the bounding box of the whole station.
func (m *StationMap) Bound() orb.Bound {
	var b orb.Bound
	for i, e := range m.Edges() {
		if i == 0 {
			b = e.Bound
			continue
		}
		b = b.Union(e.Bound)
	}
	return b
}

func distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}
