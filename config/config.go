// Package config holds the tunable values of a session. Values are built by
// Default and passed explicitly into the simulation, replication and network
// layers; nothing in here is read through package-level state.
package config

import (
	"image/color"
	"time"
)

// BodyProfile describes the rigid body created for one entity category.
type BodyProfile struct {
	Radius        float64
	Density       float64 // mass = Density * pi * Radius^2
	LinearDamping float64 // 1/sec
	Friction      float64
	Restitution   float64
}

// MovementConfig contains participant force values. Forces are scaled by body
// mass so the resulting acceleration does not depend on the body profile.
type MovementConfig struct {
	WalkAccel float64
	RunAccel  float64
}

// SoldierAIConfig contains the steering parameters of autonomous soldiers.
type SoldierAIConfig struct {
	SteerAccel float64

	// AvoidanceRadiusFactor is multiplied by the soldier diameter.
	AvoidanceRadiusFactor float64
	// AvoidanceWeight is the share of the repulsion direction once a
	// neighbour is inside the avoidance radius (1 = avoid only).
	AvoidanceWeight float64
}

// ArmyConfig contains the layout of the army spawned for each participant.
type ArmyConfig struct {
	UnitsPerParticipant int
	SoldiersPerUnit     int
	UnitRingRadius      float64

	// SoldierPitch is the grid spacing between soldier centers. It is raised to
	// at least two soldier radii at spawn time.
	SoldierPitch float64
}

// SpawnConfig places participants along the X axis by slot.
type SpawnConfig struct {
	OriginX, OriginY float64
	Spacing          float64
}

// WorldConfig sizes the physics world.
type WorldConfig struct {
	Width, Height int
	CellSize      int
	MaxSpeed      float64

	// Bounded adds four static walls around the world edges.
	Bounded bool
}

// SimConfig contains values that drive the authoritative tick.
type SimConfig struct {
	TickRate        int
	MaxStepsPerTick int

	// CascadeLeave removes a departing participant's units and soldiers.
	CascadeLeave bool
}

// NetConfig contains transport and replication options.
type NetConfig struct {
	Port        uint
	Version     string
	ServerName  string
	InputRate   float64 // messages per second per peer
	InputBurst  int
	Compress    bool
	DialTimeout time.Duration

	// DropStaleSnapshots makes clients ignore snapshots older than the last
	// applied one.
	DropStaleSnapshots bool
}

// SmoothingConfig controls render-side position tweening.
type SmoothingConfig struct {
	Enabled  bool
	Duration float32 // seconds to reach a new snapshot position
}

type Config struct {
	Sim         SimConfig
	World       WorldConfig
	Participant BodyProfile
	Soldier     BodyProfile
	Movement    MovementConfig
	SoldierAI   SoldierAIConfig
	Army        ArmyConfig
	Spawn       SpawnConfig
	Net         NetConfig
	Smoothing   SmoothingConfig
	Palette     []color.RGBA
}

// FixedStep returns the simulation timestep in seconds.
func (c Config) FixedStep() float64 {
	if c.Sim.TickRate <= 0 {
		return 1.0 / 60.0
	}
	return 1.0 / float64(c.Sim.TickRate)
}

// AvoidanceRadius returns the distance inside which soldiers steer away from
// each other.
func (c Config) AvoidanceRadius() float64 {
	return c.SoldierAI.AvoidanceRadiusFactor * 2 * c.Soldier.Radius
}

// Color palette for participants
var (
	Red    = color.RGBA{R: 230, G: 41, B: 55, A: 255}
	Orange = color.RGBA{R: 255, G: 161, B: 0, A: 255}
	Yellow = color.RGBA{R: 253, G: 249, B: 0, A: 255}
	Green  = color.RGBA{R: 0, G: 228, B: 48, A: 255}
	Blue   = color.RGBA{R: 0, G: 121, B: 241, A: 255}
	Purple = color.RGBA{R: 128, G: 0, B: 255, A: 255}
	Pink   = color.RGBA{R: 255, G: 109, B: 194, A: 255}
	Brown  = color.RGBA{R: 127, G: 106, B: 79, A: 255}
)

func Default() Config {
	return Config{
		Sim: SimConfig{
			TickRate:        60,
			MaxStepsPerTick: 4,
			CascadeLeave:    false,
		},
		World: WorldConfig{
			Width:    4096,
			Height:   2048,
			CellSize: 32,
			MaxSpeed: 600,
			Bounded:  true,
		},
		Participant: BodyProfile{
			Radius:        12,
			Density:       1,
			LinearDamping: 4,
			Friction:      0.2,
			Restitution:   0.1,
		},
		Soldier: BodyProfile{
			Radius:        5,
			Density:       1,
			LinearDamping: 6,
			Friction:      0.4,
			Restitution:   0,
		},
		Movement: MovementConfig{
			WalkAccel: 900,
			RunAccel:  1600,
		},
		SoldierAI: SoldierAIConfig{
			SteerAccel:            500,
			AvoidanceRadiusFactor: 3,
			AvoidanceWeight:       1,
		},
		Army: ArmyConfig{
			UnitsPerParticipant: 3,
			SoldiersPerUnit:     4,
			UnitRingRadius:      80,
			SoldierPitch:        14,
		},
		Spawn: SpawnConfig{
			OriginX: 200,
			OriginY: 400,
			Spacing: 400,
		},
		Net: NetConfig{
			Port:               7373,
			ServerName:         "Warband Host",
			InputRate:          120,
			InputBurst:         30,
			Compress:           true,
			DialTimeout:        5 * time.Second,
			DropStaleSnapshots: true,
		},
		Smoothing: SmoothingConfig{
			Enabled:  true,
			Duration: 0.1,
		},
		Palette: []color.RGBA{Red, Orange, Yellow, Green, Blue, Purple, Pink, Brown},
	}
}
