// Package physics is the rigid-body world the simulation drives each tick.
// Bodies are circles stored in a generational arena and mirrored into a
// resolv.Space, which serves as the broad-phase for collision and proximity
// queries.
package physics

import (
	"math"

	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/solarlune/resolv"
)

const (
	sleepSpeed = 0.5 // units/sec
	sleepSteps = 30
)

type slot struct {
	gen  uint32
	body *Body
}

// World owns every body and static wall. It is not safe for concurrent use;
// the tick loop is its only mutator.
type World struct {
	space    *resolv.Space
	slots    []slot
	free     []uint32
	walls    []*resolv.Object
	probe    *resolv.Object
	maxSpeed float64
	width    int
	height   int
	live     int
	freed    bool
}

// NewWorld creates a world of width x height units with a broad-phase grid of
// cellSize. maxSpeed <= 0 disables the speed clamp.
func NewWorld(width, height, cellSize int, maxSpeed float64) *World {
	if cellSize <= 0 {
		cellSize = 32
	}
	space := resolv.NewSpace(width, height, cellSize, cellSize)

	// The probe is never registered in a cell, it only borrows the space for
	// Check queries.
	probe := resolv.NewObject(0, 0, 1, 1)
	probe.Space = space

	return &World{
		space:    space,
		probe:    probe,
		maxSpeed: maxSpeed,
		width:    width,
		height:   height,
	}
}

// AddWall adds a static axis-aligned solid.
func (w *World) AddWall(x, y, width, height float64) {
	if w.freed {
		return
	}
	obj := resolv.NewObject(x, y, width, height, TagSolid)
	w.space.Add(obj)
	w.walls = append(w.walls, obj)
}

// AddBounds surrounds the world with four walls of the given thickness.
func (w *World) AddBounds(thickness float64) {
	fw, fh := float64(w.width), float64(w.height)
	w.AddWall(0, 0, fw, thickness)
	w.AddWall(0, fh-thickness, fw, thickness)
	w.AddWall(0, 0, thickness, fh)
	w.AddWall(fw-thickness, 0, thickness, fh)
}

func (w *World) Size() (int, int) {
	return w.width, w.height
}

// CreateBody inserts a dynamic body and returns its handle.
func (w *World) CreateBody(desc BodyDesc) Handle {
	if w.freed {
		return 0
	}

	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		w.slots = append(w.slots, slot{})
		idx = uint32(len(w.slots) - 1)
	}

	s := &w.slots[idx]
	s.gen++
	h := makeHandle(idx, s.gen)
	s.body = newBody(h, desc)
	w.space.Add(s.body.object)
	w.live++
	return h
}

// RemoveBody deletes the body behind h. It reports false for stale handles.
func (w *World) RemoveBody(h Handle) bool {
	b, ok := w.Body(h)
	if !ok {
		return false
	}
	w.space.Remove(b.object)
	w.slots[h.index()].body = nil
	w.free = append(w.free, h.index())
	w.live--
	return true
}

// Body resolves a handle. Stale and zero handles report false.
func (w *World) Body(h Handle) (*Body, bool) {
	if h == 0 || w.freed {
		return nil, false
	}
	idx := h.index()
	if int(idx) >= len(w.slots) {
		return nil, false
	}
	s := w.slots[idx]
	if s.body == nil || s.gen != h.gen() {
		return nil, false
	}
	return s.body, true
}

func (w *World) Contains(h Handle) bool {
	_, ok := w.Body(h)
	return ok
}

// Len returns the number of live bodies.
func (w *World) Len() int {
	return w.live
}

// QueryCircle returns the handles of bodies whose collider intersects the
// circle. Candidates come from the broad-phase grid; tags narrow them further.
func (w *World) QueryCircle(center gamemath.Vec2, radius float64, tags ...string) []Handle {
	if w.freed || radius <= 0 {
		return nil
	}
	w.probe.X = center.X - radius
	w.probe.Y = center.Y - radius
	w.probe.W = radius * 2
	w.probe.H = radius * 2

	if len(tags) == 0 {
		tags = []string{TagBody}
	}
	check := w.probe.Check(0, 0, tags...)
	if check == nil {
		return nil
	}

	var out []Handle
	for _, obj := range check.Objects {
		h, ok := obj.Data.(Handle)
		if !ok {
			continue
		}
		b, ok := w.Body(h)
		if !ok {
			continue
		}
		reach := radius + b.radius
		if b.position.DistanceSq(center) < reach*reach {
			out = append(out, h)
		}
	}
	return out
}

// Step advances the world by dt seconds: integrate forces, then resolve
// contacts once.
func (w *World) Step(dt float64) {
	if w.freed || dt <= 0 {
		return
	}

	for i := range w.slots {
		if b := w.slots[i].body; b != nil {
			w.integrate(b, dt)
		}
	}

	for i := range w.slots {
		if b := w.slots[i].body; b != nil {
			w.resolveContacts(b)
		}
	}
}

func (w *World) integrate(b *Body, dt float64) {
	if b.sleeping {
		if b.force.IsZero() {
			return
		}
		b.WakeUp()
	}

	b.velocity = b.velocity.Add(b.force.Scale(b.invMass * dt))
	if b.damping > 0 {
		b.velocity = b.velocity.Scale(1 / (1 + b.damping*dt))
	}
	if w.maxSpeed > 0 {
		b.velocity = gamemath.ClampLen(b.velocity, w.maxSpeed)
	}
	b.position = b.position.Add(b.velocity.Scale(dt))
	b.syncObject()

	if b.force.IsZero() && b.velocity.LenSq() < sleepSpeed*sleepSpeed {
		b.idleSteps++
		if b.idleSteps >= sleepSteps {
			b.velocity = gamemath.Vec2{}
			b.sleeping = true
		}
	} else {
		b.idleSteps = 0
	}
}

func (w *World) resolveContacts(b *Body) {
	check := b.object.Check(0, 0, TagBody, TagSolid)
	if check == nil {
		return
	}
	for _, obj := range check.Objects {
		if obj.HasTags(TagSolid) {
			w.resolveWall(b, obj)
			continue
		}
		h, ok := obj.Data.(Handle)
		if !ok || h.index() <= b.handle.index() {
			// each pair is solved once, from the lower index
			continue
		}
		if other, ok := w.Body(h); ok {
			resolvePair(b, other)
		}
	}
}

func resolvePair(a, b *Body) {
	delta := b.position.Sub(a.position)
	dist := a.position.Distance(b.position)
	penetration := a.radius + b.radius - dist
	if penetration <= 0 {
		return
	}
	normal := delta.Normalize()
	if normal.IsZero() {
		normal = gamemath.V(1, 0)
	}

	invSum := a.invMass + b.invMass
	if invSum == 0 {
		return
	}

	correction := normal.Scale(penetration / invSum)
	a.position = a.position.Sub(correction.Scale(a.invMass))
	b.position = b.position.Add(correction.Scale(b.invMass))

	rel := b.velocity.Sub(a.velocity)
	vn := rel.Dot(normal)
	if vn < 0 {
		e := math.Min(a.restitution, b.restitution)
		j := -(1 + e) * vn / invSum
		a.velocity = a.velocity.Sub(normal.Scale(j * a.invMass))
		b.velocity = b.velocity.Add(normal.Scale(j * b.invMass))

		tangent := rel.Sub(normal.Scale(vn)).Normalize()
		if !tangent.IsZero() {
			mu := math.Sqrt(a.friction * b.friction)
			jt := -rel.Dot(tangent) / invSum
			jt = gamemath.ClampSpeed(jt, mu*j)
			a.velocity = a.velocity.Sub(tangent.Scale(jt * a.invMass))
			b.velocity = b.velocity.Add(tangent.Scale(jt * b.invMass))
		}
	}

	a.WakeUp()
	b.WakeUp()
	a.syncObject()
	b.syncObject()
}

func (w *World) resolveWall(b *Body, wall *resolv.Object) {
	c := b.position
	closest := gamemath.V(
		math.Max(wall.X, math.Min(c.X, wall.X+wall.W)),
		math.Max(wall.Y, math.Min(c.Y, wall.Y+wall.H)),
	)
	delta := c.Sub(closest)
	dist := delta.Len()

	var normal gamemath.Vec2
	var penetration float64
	if dist > 0 {
		if dist >= b.radius {
			return
		}
		normal = delta.Scale(1 / dist)
		penetration = b.radius - dist
	} else {
		// center inside the wall, push out along the shallowest axis
		left := c.X - wall.X
		right := wall.X + wall.W - c.X
		top := c.Y - wall.Y
		bottom := wall.Y + wall.H - c.Y
		m := math.Min(math.Min(left, right), math.Min(top, bottom))
		switch m {
		case left:
			normal = gamemath.V(-1, 0)
		case right:
			normal = gamemath.V(1, 0)
		case top:
			normal = gamemath.V(0, -1)
		default:
			normal = gamemath.V(0, 1)
		}
		penetration = m + b.radius
	}

	b.position = b.position.Add(normal.Scale(penetration))
	if vn := b.velocity.Dot(normal); vn < 0 {
		b.velocity = b.velocity.Sub(normal.Scale((1 + b.restitution) * vn))
	}
	b.syncObject()
}

// Free releases every body and wall. The world is unusable afterwards; all
// handles become stale and further calls are no-ops.
func (w *World) Free() {
	if w.freed {
		return
	}
	for i := range w.slots {
		if b := w.slots[i].body; b != nil {
			w.space.Remove(b.object)
			w.slots[i].body = nil
		}
	}
	for _, wall := range w.walls {
		w.space.Remove(wall)
	}
	w.slots = nil
	w.free = nil
	w.walls = nil
	w.live = 0
	w.freed = true
}

func (w *World) Freed() bool {
	return w.freed
}
