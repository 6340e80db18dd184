package world

import "github.com/l1jgo/sectorsim/internal/core/ecs"

// Layer bounds. A sprite's layer picks its draw band (integer part) and its
// order inside the band (fractional part).
const (
	MaxLayer  = 49
	NumLayers = MaxLayer + 1
)

// Graphics is the opaque drawing handle supplied by a renderer.
type Graphics any

// Sprite is anything that lives in a zone. Application types embed
// BaseSprite and implement Draw; the optional capability interfaces below
// are detected once, when the sprite is added to a zone.
type Sprite interface {
	Base() *BaseSprite
	Draw(g Graphics, dst Rect)
}

// Updater sprites get Update once per cycle from their sector's worker.
type Updater interface {
	Update()
}

// Collider sprites take part in the collision stage. Contacts are found
// for all sprites before any Collide runs, so a hook may move its own sprite
// and the partner is still notified in the same cycle.
type Collider interface {
	Collide(other Sprite)
}

// SelectResult is a selectable sprite's answer to a selection offer.
type SelectResult int

const (
	Accept SelectResult = iota
	RejectContinue
	RejectStop
)

func (r SelectResult) String() string {
	switch r {
	case Accept:
		return "accept"
	case RejectContinue:
		return "reject-continue"
	case RejectStop:
		return "reject-stop"
	}
	return "unknown"
}

// SelectEvent describes the click a selection offer came from.
type SelectEvent struct {
	User   UserID
	X, Y   int // world coordinates
	LocalX int
	LocalY int
}

// Selectable sprites can be picked with a camera click.
type Selectable interface {
	Select(ev SelectEvent) SelectResult
	Deselect()
	DrawSelection(g Graphics, dst Rect)
}

// Initializer is called right after the sprite joins a zone.
type Initializer interface {
	Init(z *Zone)
}

// Deleter is called exactly once when the zone evicts the sprite.
type Deleter interface {
	OnDelete()
}

// BaseSprite carries the spatial state every sprite shares.
//
// Position and size are mutated by the sprite's own hooks (or by the owner
// while the processor is stopped). Moving across a sector boundary transfers
// membership immediately; the sector's iteration lists follow at its next
// post-update.
type BaseSprite struct {
	x, y  int
	w, h  int
	layer float64

	owner  Sprite
	zone   *Zone
	sector *Sector
	id     ecs.EntityID

	updater  Updater
	collider Collider
	selector Selectable

	contacts []Sprite // collision stage scratch, owned by the sector's worker

	queued  bool // guarded by Zone.delMu
	deleted bool
}

// NewBaseSprite returns a base with the requested geometry. Values are
// clamped when the sprite joins a zone.
func NewBaseSprite(x, y, w, h int, layer float64) BaseSprite {
	return BaseSprite{x: x, y: y, w: w, h: h, layer: layer}
}

func (b *BaseSprite) Base() *BaseSprite { return b }

func (b *BaseSprite) X() int           { return b.x }
func (b *BaseSprite) Y() int           { return b.y }
func (b *BaseSprite) Width() int       { return b.w }
func (b *BaseSprite) Height() int      { return b.h }
func (b *BaseSprite) Layer() float64   { return b.layer }
func (b *BaseSprite) ID() ecs.EntityID { return b.id }
func (b *BaseSprite) Zone() *Zone      { return b.zone }
func (b *BaseSprite) Sector() *Sector  { return b.sector }
func (b *BaseSprite) Deleted() bool    { return b.deleted }

func (b *BaseSprite) Bounds() Rect {
	return Rect{X: b.x, Y: b.y, W: b.w, H: b.h}
}

func (b *BaseSprite) Updating() bool   { return b.updater != nil }
func (b *BaseSprite) Collidable() bool { return b.collider != nil }
func (b *BaseSprite) Selectable() bool { return b.selector != nil }

// SetPosition moves the top-left corner, clamped to the zone.
func (b *BaseSprite) SetPosition(x, y int) {
	b.x, b.y = x, y
	if b.zone != nil {
		b.zone.place(b)
	}
}

// Move shifts the sprite by (dx, dy).
func (b *BaseSprite) Move(dx, dy int) {
	b.SetPosition(b.x+dx, b.y+dy)
}

// SetSize changes the footprint. Width and height are clamped to one sector
// and then to the room left before the zone edge.
func (b *BaseSprite) SetSize(w, h int) {
	b.w, b.h = w, h
	if b.zone != nil {
		b.zone.place(b)
	}
}

// SetLayer clamps to [0, MaxLayer]. Cameras re-sort their lists before
// their next selection pass.
func (b *BaseSprite) SetLayer(layer float64) {
	l := clampLayer(layer)
	if l == b.layer {
		return
	}
	b.layer = l
	if b.zone != nil {
		b.zone.layerGen.Add(1)
	}
}

func clampLayer(l float64) float64 {
	if l < 0 || l != l {
		return 0
	}
	if l > MaxLayer {
		return MaxLayer
	}
	return l
}

// clamp fits the sprite into a zone of the given size whose sectors have
// side sectorSize. Bounds violations are never errors.
func (b *BaseSprite) clamp(zoneW, zoneH, sectorSize int) {
	b.x = clampInt(b.x, 0, zoneW-1)
	b.y = clampInt(b.y, 0, zoneH-1)
	b.w = clampInt(b.w, 1, sectorSize)
	b.h = clampInt(b.h, 1, sectorSize)
	if b.x+b.w > zoneW {
		b.w = zoneW - b.x
	}
	if b.y+b.h > zoneH {
		b.h = zoneH - b.y
	}
	b.layer = clampLayer(b.layer)
}

// resolve records which capabilities the owner implements.
func (b *BaseSprite) resolve(owner Sprite) {
	b.owner = owner
	b.updater, _ = owner.(Updater)
	b.collider, _ = owner.(Collider)
	b.selector, _ = owner.(Selectable)
}

// collides reports whether two sprites overlap and share a layer band.
func collides(a, b *BaseSprite) bool {
	d := a.layer - b.layer
	if d <= -1 || d >= 1 {
		return false
	}
	return a.Bounds().Intersects(b.Bounds())
}
