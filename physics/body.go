package physics

import (
	"math"

	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/solarlune/resolv"
)

// Resolv tags for physics collision
const (
	TagBody  = "body"
	TagSolid = "solid"
)

// Handle is an opaque reference to a body in a World's arena. The zero Handle
// never resolves. A handle whose body was removed stays stale forever, even
// when the arena slot is reused.
type Handle uint64

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) gen() uint32 {
	return uint32(h >> 32)
}

// BodyDesc describes a dynamic circular body.
type BodyDesc struct {
	Position      gamemath.Vec2
	Radius        float64
	Density       float64
	LinearDamping float64
	Friction      float64
	Restitution   float64
	Tags          []string
}

// Body is a dynamic rigid body with a circular collider. Bodies are owned by
// their World; callers hold Handles and resolve them per use.
type Body struct {
	handle      Handle
	object      *resolv.Object
	position    gamemath.Vec2
	velocity    gamemath.Vec2
	force       gamemath.Vec2
	radius      float64
	mass        float64
	invMass     float64
	damping     float64
	friction    float64
	restitution float64
	sleeping    bool
	idleSteps   int
}

func newBody(h Handle, desc BodyDesc) *Body {
	density := desc.Density
	if density <= 0 {
		density = 1
	}
	mass := density * math.Pi * desc.Radius * desc.Radius
	invMass := 0.0
	if mass > 0 {
		invMass = 1 / mass
	}

	tags := append([]string{TagBody}, desc.Tags...)
	obj := resolv.NewObject(
		desc.Position.X-desc.Radius,
		desc.Position.Y-desc.Radius,
		desc.Radius*2,
		desc.Radius*2,
		tags...,
	)
	obj.Data = h

	return &Body{
		handle:      h,
		object:      obj,
		position:    desc.Position,
		radius:      desc.Radius,
		mass:        mass,
		invMass:     invMass,
		damping:     desc.LinearDamping,
		friction:    desc.Friction,
		restitution: desc.Restitution,
	}
}

func (b *Body) Handle() Handle {
	return b.handle
}

// Translation returns the body's center.
func (b *Body) Translation() gamemath.Vec2 {
	return b.position
}

// SetTranslation teleports the body. Velocity is kept.
func (b *Body) SetTranslation(p gamemath.Vec2, wake bool) {
	b.position = p
	b.syncObject()
	if wake {
		b.WakeUp()
	}
}

func (b *Body) Velocity() gamemath.Vec2 {
	return b.velocity
}

func (b *Body) SetVelocity(v gamemath.Vec2, wake bool) {
	b.velocity = v
	if wake {
		b.WakeUp()
	}
}

// ResetForces clears the force accumulator.
func (b *Body) ResetForces(wake bool) {
	b.force = gamemath.Vec2{}
	if wake {
		b.WakeUp()
	}
}

// AddForce accumulates f until the next ResetForces. Non-finite forces are
// ignored.
func (b *Body) AddForce(f gamemath.Vec2, wake bool) {
	if math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsInf(f.X, 0) || math.IsInf(f.Y, 0) {
		return
	}
	b.force = b.force.Add(f)
	if wake {
		b.WakeUp()
	}
}

func (b *Body) Force() gamemath.Vec2 {
	return b.force
}

func (b *Body) Mass() float64 {
	return b.mass
}

func (b *Body) Radius() float64 {
	return b.radius
}

func (b *Body) IsSleeping() bool {
	return b.sleeping
}

func (b *Body) WakeUp() {
	b.sleeping = false
	b.idleSteps = 0
}

func (b *Body) syncObject() {
	b.object.X = b.position.X - b.radius
	b.object.Y = b.position.Y - b.radius
	if b.object.Space != nil {
		b.object.Update()
	}
}
