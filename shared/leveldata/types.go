// Package leveldata provides TMX arena parsing. It has no dependency on the
// physics or simulation packages; pure data only.
package leveldata

// Arena holds the collision-relevant data of a TMX map.
type Arena struct {
	Walls       []SolidRect
	SpawnPoints []SpawnPoint
	Width       int
	Height      int
}

// SolidRect represents a static wall.
type SolidRect struct {
	X, Y, W, H float64
}

// SpawnPoint represents a participant spawn location.
type SpawnPoint struct {
	X, Y  float64
	Index int
}
