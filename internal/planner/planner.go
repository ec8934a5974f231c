package planner

import (
	"container/heap"
	"fmt"

	"github.com/autonav/roadsim/internal/roadgraph"
)

// #region types

// Route is an ordered node sequence from start to goal with its total cost.
type Route struct {
	Nodes []roadgraph.NodeID
	Cost  float64
}

// Len returns the number of nodes on the route.
func (r Route) Len() int { return len(r.Nodes) }

// NoRouteError reports that the goal is unreachable given the current
// block overlay. Recoverable: the decision loop maps it to a terminal
// FAILED outcome rather than a crash.
type NoRouteError struct {
	Start roadgraph.NodeID
	Goal  roadgraph.NodeID
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route from %q to %q", e.Start, e.Goal)
}

// Planner runs A* searches over a road graph.
type Planner struct {
	graph *roadgraph.Graph
}

// NewPlanner creates a planner bound to g.
func NewPlanner(g *roadgraph.Graph) *Planner {
	return &Planner{graph: g}
}

// #endregion types

// #region frontier

type frontierItem struct {
	id    roadgraph.NodeID
	g     float64 // accumulated cost from start
	f     float64 // g + heuristic
	order int     // insertion sequence, final tie-break
	index int
}

// frontier orders candidates by lowest f, then largest g (deeper paths
// expand first on uniform grids), then insertion order.
type frontier []*frontierItem

func (fr frontier) Len() int { return len(fr) }

func (fr frontier) Less(i, j int) bool {
	if fr[i].f != fr[j].f {
		return fr[i].f < fr[j].f
	}
	if fr[i].g != fr[j].g {
		return fr[i].g > fr[j].g
	}
	return fr[i].order < fr[j].order
}

func (fr frontier) Swap(i, j int) {
	fr[i], fr[j] = fr[j], fr[i]
	fr[i].index = i
	fr[j].index = j
}

func (fr *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*fr)
	*fr = append(*fr, item)
}

func (fr *frontier) Pop() any {
	old := *fr
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*fr = old[:n-1]
	return item
}

// #endregion frontier

// #region find-route

// FindRoute computes the minimum-cost route from start to goal using A*
// with a Euclidean heuristic. Edges present in blocked are excluded for
// this call only; the graph itself is never mutated. The search is
// deterministic: identical inputs yield identical routes.
func (p *Planner) FindRoute(start, goal roadgraph.NodeID, blocked map[roadgraph.EdgeKey]bool) (Route, error) {
	goalPos, err := p.graph.Position(goal)
	if err != nil {
		return Route{}, err
	}
	startPos, err := p.graph.Position(start)
	if err != nil {
		return Route{}, err
	}

	gScore := map[roadgraph.NodeID]float64{start: 0}
	cameFrom := map[roadgraph.NodeID]roadgraph.NodeID{}
	closed := map[roadgraph.NodeID]bool{}

	open := &frontier{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &frontierItem{id: start, g: 0, f: startPos.Dist(goalPos), order: seq})

	for open.Len() > 0 {
		current := heap.Pop(open).(*frontierItem)
		// stale frontier entries are skipped lazily; the cheaper duplicate
		// sorted first and already closed the node
		if closed[current.id] {
			continue
		}
		if current.id == goal {
			return reconstruct(cameFrom, goal, current.g), nil
		}
		closed[current.id] = true

		neighbors, err := p.graph.Neighbors(current.id)
		if err != nil {
			return Route{}, err
		}
		for _, nb := range neighbors {
			if blocked[roadgraph.EdgeKey{From: current.id, To: nb.ID}] {
				continue
			}
			if closed[nb.ID] {
				continue
			}
			tentative := current.g + nb.Cost
			if known, seen := gScore[nb.ID]; seen && tentative >= known {
				continue
			}
			gScore[nb.ID] = tentative
			cameFrom[nb.ID] = current.id

			nbPos, err := p.graph.Position(nb.ID)
			if err != nil {
				return Route{}, err
			}
			seq++
			heap.Push(open, &frontierItem{
				id:    nb.ID,
				g:     tentative,
				f:     tentative + nbPos.Dist(goalPos),
				order: seq,
			})
		}
	}

	return Route{}, &NoRouteError{Start: start, Goal: goal}
}

func reconstruct(cameFrom map[roadgraph.NodeID]roadgraph.NodeID, goal roadgraph.NodeID, cost float64) Route {
	nodes := []roadgraph.NodeID{goal}
	current := goal
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		nodes = append(nodes, prev)
		current = prev
	}
	// reverse in place
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return Route{Nodes: nodes, Cost: cost}
}

// #endregion find-route
