package scene

import (
	"image/color"

	"github.com/tanema/gween"
	"github.com/yohamta/donburi"
)

var (
	ParticipantTag = donburi.NewTag().SetName("Participant")
	UnitTag        = donburi.NewTag().SetName("Unit")
	SoldierTag     = donburi.NewTag().SetName("Soldier")
)

type PositionData struct {
	X, Y float64
}

// AppearanceData is everything a renderer needs besides the position.
type AppearanceData struct {
	ID      string
	OwnerID string
	Color   color.RGBA
	Radius  float64
}

// SmoothingData tweens Position toward the latest snapshot position.
type SmoothingData struct {
	X, Y             *gween.Tween
	TargetX, TargetY float64
}

func (s *SmoothingData) active() bool {
	return s.X != nil || s.Y != nil
}

var (
	Position   = donburi.NewComponentType[PositionData]()
	Appearance = donburi.NewComponentType[AppearanceData]()
	Smoothing  = donburi.NewComponentType[SmoothingData]()
)
