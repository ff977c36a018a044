package worldmap

import (
	"fmt"
	"math"
)

// World geometry constants.
const (
	// DefaultChunkSize is the edge length of one chunk in world units.
	DefaultChunkSize = 1024.0

	// ChunkIDBase offsets derived chunk IDs away from zero so that chunk (0,0)
	// does not collide with the unseeded object ID.
	ChunkIDBase = 1_000_003

	// PrimeX and PrimeY decorrelate the two chunk axes when deriving chunk IDs.
	// Large odd primes avoid visible lattice correlation between neighbours.
	PrimeX = 73_856_093
	PrimeY = 19_349_663
)

// Point is a position in continuous world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChunkCoord identifies a square chunk of world space. It is a pure value
// type: two coords with equal X and Y refer to the same chunk.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the coordinate as "x,y" for logging and map keys in wire
// payloads.
func (c ChunkCoord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// WorldToChunk maps a world position to the chunk containing it using floor
// division, so negative positions land in negative chunk coordinates.
func WorldToChunk(p Point, chunkSize float64) ChunkCoord {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return ChunkCoord{
		X: int(math.Floor(p.X / chunkSize)),
		Y: int(math.Floor(p.Y / chunkSize)),
	}
}

// ChunkToWorldCenter returns the world-space center of a chunk.
func ChunkToWorldCenter(c ChunkCoord, chunkSize float64) Point {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return Point{
		X: float64(c.X)*chunkSize + chunkSize/2,
		Y: float64(c.Y)*chunkSize + chunkSize/2,
	}
}

// ChunkOrigin returns the world-space minimum corner of a chunk.
func ChunkOrigin(c ChunkCoord, chunkSize float64) Point {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return Point{
		X: float64(c.X) * chunkSize,
		Y: float64(c.Y) * chunkSize,
	}
}

// ManhattanDistance returns |ax-bx| + |ay-by| in chunk units.
func ManhattanDistance(a, b ChunkCoord) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

// ChebyshevDistance returns max(|ax-bx|, |ay-by|) in chunk units. Streaming
// radii are defined in Chebyshev distance so a radius of r covers the full
// (2r+1)x(2r+1) square around the center chunk.
func ChebyshevDistance(a, b ChunkCoord) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// ChunkID derives the stable object ID for a chunk. All randomization for a
// chunk's content is keyed from this value, so regeneration under the same
// world seed is exact.
func ChunkID(c ChunkCoord) int64 {
	return ChunkIDBase + int64(c.X)*PrimeX + int64(c.Y)*PrimeY
}

// CoordsWithin returns every chunk coordinate within Chebyshev distance
// radius of center, center included. Radius < 0 yields an empty set.
func CoordsWithin(center ChunkCoord, radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}
	coords := make([]ChunkCoord, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			coords = append(coords, ChunkCoord{X: center.X + dx, Y: center.Y + dy})
		}
	}
	return coords
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
