package roadgraph

import (
	"errors"
	"testing"
)

func lineNodes() []Node {
	return []Node{
		{ID: "a", Pos: Vec2{X: 0, Y: 0}},
		{ID: "b", Pos: Vec2{X: 1, Y: 0}},
		{ID: "c", Pos: Vec2{X: 2, Y: 0}},
	}
}

func TestBuildRejectsUnknownNode(t *testing.T) {
	_, err := Build(lineNodes(), []Edge{{From: "a", To: "z", Cost: 1}}, false)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestBuildRejectsNegativeCost(t *testing.T) {
	_, err := Build(lineNodes(), []Edge{{From: "a", To: "b", Cost: -0.5}}, false)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestBuildRejectsDuplicateNode(t *testing.T) {
	nodes := append(lineNodes(), Node{ID: "a", Pos: Vec2{X: 5, Y: 5}})
	_, err := Build(nodes, nil, false)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNeighborsOrderAndLookup(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "b", Cost: 1},
		{From: "a", To: "c", Cost: 2},
	}
	g, err := Build(lineNodes(), edges, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ns, err := g.Neighbors("a")
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(ns) != 2 || ns[0].ID != "b" || ns[1].ID != "c" {
		t.Fatalf("neighbors out of insertion order: %+v", ns)
	}

	_, err = g.Neighbors("nope")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUndirectedAddsReverseEdges(t *testing.T) {
	g, err := Build(lineNodes(), []Edge{{From: "a", To: "b", Cost: 1}}, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ns, err := g.Neighbors("b")
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(ns) != 1 || ns[0].ID != "a" {
		t.Fatalf("expected reverse edge b->a, got %+v", ns)
	}
}

func TestPositionAndNearest(t *testing.T) {
	g, err := Build(lineNodes(), nil, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	pos, err := g.Position("b")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.X != 1 || pos.Y != 0 {
		t.Fatalf("unexpected position %+v", pos)
	}

	_, err = g.Position("zz")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	near, err := g.Nearest(Vec2{X: 1.8, Y: 0.1})
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if near != "c" {
		t.Fatalf("expected nearest c, got %s", near)
	}
}

func TestNodeIDsSorted(t *testing.T) {
	nodes := []Node{
		{ID: "c", Pos: Vec2{}},
		{ID: "a", Pos: Vec2{}},
		{ID: "b", Pos: Vec2{}},
	}
	g, err := Build(nodes, nil, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ids := g.NodeIDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("ids not sorted: %v", ids)
	}
}
