package perception

import (
	"errors"
	"math"
	"testing"

	"github.com/autonav/roadsim/internal/roadgraph"
)

func testConfig() Config {
	return Config{
		NearDistance: 2,
		MidDistance:  6,
		SlowSpeed:    0.5,
		FastSpeed:    4,
		ConeRadius:   5,
		Bounds: Bounds{
			Min: roadgraph.Vec2{X: 0, Y: 0},
			Max: roadgraph.Vec2{X: 50, Y: 35},
		},
	}
}

func TestSensePure(t *testing.T) {
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Heading: 0, Speed: 1}
	wp := roadgraph.Vec2{X: 14, Y: 10}
	obstacles := []Obstacle{{Position: roadgraph.Vec2{X: 12, Y: 10}, Radius: 0.5}}

	first, err := Sense(pose, wp, false, obstacles, testConfig())
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Sense(pose, wp, false, obstacles, testConfig())
		if err != nil {
			t.Fatalf("sense repeat: %v", err)
		}
		if again != first {
			t.Fatalf("sense not pure: %+v vs %+v", again, first)
		}
	}
}

func TestSenseBearingOctants(t *testing.T) {
	cfg := testConfig()
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Heading: 0, Speed: 1}

	cases := []struct {
		name string
		wp   roadgraph.Vec2
		want int
	}{
		{"ahead", roadgraph.Vec2{X: 14, Y: 10}, 0},
		{"left", roadgraph.Vec2{X: 10, Y: 14}, 2},
		{"behind", roadgraph.Vec2{X: 6, Y: 10}, 4},
		{"right", roadgraph.Vec2{X: 10, Y: 6}, 6},
		{"ahead-left", roadgraph.Vec2{X: 13, Y: 13}, 1},
	}
	for _, tc := range cases {
		s, err := Sense(pose, tc.wp, false, nil, cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if s.Bearing != tc.want {
			t.Errorf("%s: expected octant %d, got %d", tc.name, tc.want, s.Bearing)
		}
	}

	// heading rotates the frame: waypoint north of a north-facing agent
	// is dead ahead
	north := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Heading: math.Pi / 2, Speed: 1}
	s, err := Sense(north, roadgraph.Vec2{X: 10, Y: 14}, false, nil, cfg)
	if err != nil {
		t.Fatalf("north: %v", err)
	}
	if s.Bearing != 0 {
		t.Errorf("north-facing agent: expected octant 0, got %d", s.Bearing)
	}
}

func TestSenseDistanceBuckets(t *testing.T) {
	cfg := testConfig()
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}}

	cases := []struct {
		dist float64
		want int
	}{
		{0.5, 0},
		{1.99, 0},
		{2, 1},
		{5.99, 1},
		{6, 2},
		{30, 2},
	}
	for _, tc := range cases {
		s, err := Sense(pose, roadgraph.Vec2{X: 10 + tc.dist, Y: 10}, false, nil, cfg)
		if err != nil {
			t.Fatalf("dist %.2f: %v", tc.dist, err)
		}
		if s.Distance != tc.want {
			t.Errorf("dist %.2f: expected bucket %d, got %d", tc.dist, tc.want, s.Distance)
		}
	}
}

func TestSenseSpeedBuckets(t *testing.T) {
	cfg := testConfig()
	wp := roadgraph.Vec2{X: 12, Y: 10}
	for _, tc := range []struct {
		speed float64
		want  int
	}{{0, 0}, {0.49, 0}, {0.5, 1}, {3.9, 1}, {4, 2}, {9, 2}} {
		pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Speed: tc.speed}
		s, err := Sense(pose, wp, false, nil, cfg)
		if err != nil {
			t.Fatalf("speed %.2f: %v", tc.speed, err)
		}
		if s.Speed != tc.want {
			t.Errorf("speed %.2f: expected bucket %d, got %d", tc.speed, tc.want, s.Speed)
		}
	}
}

func TestSenseObstacleCones(t *testing.T) {
	cfg := testConfig()
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Heading: 0, Speed: 1}
	wp := roadgraph.Vec2{X: 20, Y: 10}

	s, err := Sense(pose, wp, false, []Obstacle{
		{Position: roadgraph.Vec2{X: 13, Y: 10}},  // ahead
		{Position: roadgraph.Vec2{X: 10, Y: 13}},  // left
		{Position: roadgraph.Vec2{X: 10, Y: 7}},   // right
		{Position: roadgraph.Vec2{X: 40, Y: 10}},  // beyond cone radius
		{Position: roadgraph.Vec2{X: 6, Y: 10}},   // behind, ignored
	}, cfg)
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if !s.ObstacleAhead || !s.ObstacleLeft || !s.ObstacleRight {
		t.Fatalf("expected all three cones occupied, got %+v", s)
	}

	clear, err := Sense(pose, wp, false, []Obstacle{{Position: roadgraph.Vec2{X: 40, Y: 10}}}, cfg)
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if clear.ObstacleAhead || clear.ObstacleLeft || clear.ObstacleRight {
		t.Fatalf("expected clear cones, got %+v", clear)
	}
}

func TestSenseOutOfBoundsObstacle(t *testing.T) {
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}}
	_, err := Sense(pose, roadgraph.Vec2{X: 12, Y: 10}, false,
		[]Obstacle{{Position: roadgraph.Vec2{X: -5, Y: 10}}}, testConfig())
	var invalid *InvalidObservationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidObservationError, got %v", err)
	}
}

func TestSenseTerminalMarker(t *testing.T) {
	pose := Pose{Position: roadgraph.Vec2{X: 10, Y: 10}, Speed: 1}
	s, err := Sense(pose, roadgraph.Vec2{}, true, nil, testConfig())
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if !s.Terminal {
		t.Fatal("expected terminal marker")
	}
	if s.Bearing != 0 || s.Distance != 0 {
		t.Fatalf("terminal state should zero waypoint fields, got %+v", s)
	}
}

func TestStateKeyRoundTrip(t *testing.T) {
	states := []State{
		{},
		{Bearing: 7, Distance: 2, ObstacleAhead: true, Speed: 2},
		{Bearing: 3, Distance: 1, ObstacleLeft: true, ObstacleRight: true, Speed: 1, Terminal: true},
	}
	for _, s := range states {
		parsed, err := ParseKey(s.Key())
		if err != nil {
			t.Fatalf("parse %q: %v", s.Key(), err)
		}
		if parsed != s {
			t.Fatalf("round trip mismatch: %+v -> %q -> %+v", s, s.Key(), parsed)
		}
	}

	if _, err := ParseKey("garbage"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}
