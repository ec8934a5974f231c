package roadgraph

import (
	"fmt"
	"math"
	"sort"
)

// #region types

// NodeID identifies a node in the road network.
type NodeID string

// Vec2 is a position in world coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance to other.
func (v Vec2) Dist(other Vec2) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Node is a junction or waypoint in the road network.
type Node struct {
	ID  NodeID `json:"id"`
	Pos Vec2   `json:"pos"`
}

// Edge is a traversable link between two nodes with a non-negative cost.
type Edge struct {
	From NodeID  `json:"from"`
	To   NodeID  `json:"to"`
	Cost float64 `json:"cost"`
}

// EdgeKey identifies a directed edge, used for runtime block overlays.
type EdgeKey struct {
	From NodeID
	To   NodeID
}

// Neighbor is one outgoing hop from a node.
type Neighbor struct {
	ID   NodeID
	Cost float64
}

// Graph is the static road network. Built once at scenario load,
// read-only afterwards.
type Graph struct {
	positions map[NodeID]Vec2
	adjacency map[NodeID][]Neighbor
	nodeIDs   []NodeID // sorted, for deterministic iteration
}

// #endregion types

// #region errors

// ConfigError reports a malformed graph definition. Fatal, surfaced
// before any tick runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("road graph config: %s", e.Reason)
}

// NotFoundError reports a lookup of an unknown node id.
type NotFoundError struct {
	ID NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("road graph: unknown node %q", e.ID)
}

// #endregion errors

// #region build

// Build validates nodes and edges and assembles an immutable Graph.
// When undirected is set, every edge also contributes its reverse.
func Build(nodes []Node, edges []Edge, undirected bool) (*Graph, error) {
	positions := make(map[NodeID]Vec2, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, &ConfigError{Reason: "node with empty id"}
		}
		if _, dup := positions[n.ID]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		positions[n.ID] = n.Pos
	}

	adjacency := make(map[NodeID][]Neighbor, len(nodes))
	for _, e := range edges {
		if _, ok := positions[e.From]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("edge references unknown node %q", e.From)}
		}
		if _, ok := positions[e.To]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("edge references unknown node %q", e.To)}
		}
		if e.Cost < 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("edge %s->%s has negative cost %.4f", e.From, e.To, e.Cost)}
		}
		adjacency[e.From] = append(adjacency[e.From], Neighbor{ID: e.To, Cost: e.Cost})
		if undirected {
			adjacency[e.To] = append(adjacency[e.To], Neighbor{ID: e.From, Cost: e.Cost})
		}
	}

	ids := make([]NodeID, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return &Graph{
		positions: positions,
		adjacency: adjacency,
		nodeIDs:   ids,
	}, nil
}

// #endregion build

// #region accessors

// Neighbors returns the outgoing hops from id in insertion order.
// The returned slice is shared and must not be modified.
func (g *Graph) Neighbors(id NodeID) ([]Neighbor, error) {
	if _, ok := g.positions[id]; !ok {
		return nil, &NotFoundError{ID: id}
	}
	return g.adjacency[id], nil
}

// Position returns the node's world coordinates.
func (g *Graph) Position(id NodeID) (Vec2, error) {
	pos, ok := g.positions[id]
	if !ok {
		return Vec2{}, &NotFoundError{ID: id}
	}
	return pos, nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.positions[id]
	return ok
}

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []NodeID {
	return g.nodeIDs
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.positions)
}

// Nearest returns the node closest to pos. Ties resolve to the
// lexicographically smaller id.
func (g *Graph) Nearest(pos Vec2) (NodeID, error) {
	if len(g.nodeIDs) == 0 {
		return "", &NotFoundError{ID: ""}
	}
	best := g.nodeIDs[0]
	bestDist := pos.Dist(g.positions[best])
	for _, id := range g.nodeIDs[1:] {
		if d := pos.Dist(g.positions[id]); d < bestDist {
			best = id
			bestDist = d
		}
	}
	return best, nil
}

// #endregion accessors
