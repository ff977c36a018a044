package worldmap

import (
	"math"
	"testing"
)

const epsilon = 1e-9 // Tolerance for floating point comparisons

func TestWorldToChunkFloorDivision(t *testing.T) {
	testCases := []struct {
		name     string
		point    Point
		expected ChunkCoord
	}{
		{"Origin", Point{X: 0, Y: 0}, ChunkCoord{X: 0, Y: 0}},
		{"Inside first chunk", Point{X: 1023.9, Y: 512}, ChunkCoord{X: 0, Y: 0}},
		{"Exact boundary", Point{X: 1024, Y: 1024}, ChunkCoord{X: 1, Y: 1}},
		{"Negative position", Point{X: -0.5, Y: -1024.5}, ChunkCoord{X: -1, Y: -2}},
		{"Far positive", Point{X: 1024 * 7, Y: 1024 * 3}, ChunkCoord{X: 7, Y: 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := WorldToChunk(tc.point, 1024)
			if got != tc.expected {
				t.Errorf("WorldToChunk(%v) = %v, expected %v", tc.point, got, tc.expected)
			}
		})
	}
}

func TestChunkToWorldCenterRoundTrip(t *testing.T) {
	coords := []ChunkCoord{
		{X: 0, Y: 0},
		{X: 3, Y: -2},
		{X: -7, Y: 5},
		{X: 1000, Y: -1000},
	}

	for _, coord := range coords {
		center := ChunkToWorldCenter(coord, 1024)
		back := WorldToChunk(center, 1024)
		if back != coord {
			t.Errorf("center of %v maps back to %v", coord, back)
		}
	}
}

func TestChunkOrigin(t *testing.T) {
	origin := ChunkOrigin(ChunkCoord{X: -2, Y: 3}, 100)
	if math.Abs(origin.X-(-200)) > epsilon || math.Abs(origin.Y-300) > epsilon {
		t.Errorf("ChunkOrigin = %v, expected (-200, 300)", origin)
	}
}

func TestDistances(t *testing.T) {
	a := ChunkCoord{X: 0, Y: 0}
	b := ChunkCoord{X: 3, Y: -4}

	if d := ManhattanDistance(a, b); d != 7 {
		t.Errorf("ManhattanDistance = %d, expected 7", d)
	}
	if d := ChebyshevDistance(a, b); d != 4 {
		t.Errorf("ChebyshevDistance = %d, expected 4", d)
	}
	if d := ChebyshevDistance(b, a); d != 4 {
		t.Errorf("ChebyshevDistance should be symmetric, got %d", d)
	}
}

func TestChunkIDStableAndDistinct(t *testing.T) {
	a := ChunkID(ChunkCoord{X: 3, Y: -2})
	b := ChunkID(ChunkCoord{X: 3, Y: -2})
	if a != b {
		t.Fatalf("ChunkID is not stable: %d vs %d", a, b)
	}

	// Neighbouring chunks must never share an ID.
	seen := make(map[int64]ChunkCoord)
	for dy := -5; dy <= 5; dy++ {
		for dx := -5; dx <= 5; dx++ {
			coord := ChunkCoord{X: dx, Y: dy}
			id := ChunkID(coord)
			if prev, exists := seen[id]; exists {
				t.Fatalf("ChunkID collision: %v and %v both map to %d", prev, coord, id)
			}
			seen[id] = coord
		}
	}
}

func TestCoordsWithin(t *testing.T) {
	center := ChunkCoord{X: 2, Y: -1}

	coords := CoordsWithin(center, 2)
	if len(coords) != 25 {
		t.Fatalf("expected 25 coords at radius 2, got %d", len(coords))
	}
	for _, c := range coords {
		if ChebyshevDistance(center, c) > 2 {
			t.Errorf("coord %v outside radius 2 of %v", c, center)
		}
	}

	if got := CoordsWithin(center, 0); len(got) != 1 || got[0] != center {
		t.Errorf("radius 0 should yield only the center, got %v", got)
	}
	if got := CoordsWithin(center, -1); got != nil {
		t.Errorf("negative radius should yield nil, got %v", got)
	}
}

func TestChunkSizeDefaulting(t *testing.T) {
	// A non-positive chunk size falls back to the default rather than
	// producing NaN or panicking.
	coord := WorldToChunk(Point{X: DefaultChunkSize * 1.5, Y: 0}, 0)
	if coord != (ChunkCoord{X: 1, Y: 0}) {
		t.Errorf("defaulted WorldToChunk = %v, expected (1,0)", coord)
	}
}
