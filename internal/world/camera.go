package world

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// scenePoolTrim is how much zone time passes between wrapper pool trims.
const scenePoolTrim = 10 * time.Second

// CameraHook receives a camera's lifecycle callbacks. Init runs when the
// zone admits the camera; Update runs once per cycle in the camera stage,
// after queued sector changes are applied and before selection. Hooks
// must not move sprites.
type CameraHook interface {
	Init(c *Camera)
	Update(c *Camera)
}

// Camera is one user's viewport on a zone. It mirrors the sprites of every
// sector within one sector of its bounds, ordered by layer, and builds a
// Scene from them each cycle for a renderer on another goroutine.
//
// The tracked sectors, the sprite list and the selection are owned by the
// camera stage; read them between cycles.
type Camera struct {
	user UserID

	mu     sync.Mutex // zone, bounds, hook
	zone   *Zone
	bounds Rect
	hook   CameraHook

	attached *Zone
	stepHook CameraHook
	tracked  map[*Sector]struct{}
	span     [4]int
	hasSpan  bool
	list     []*CameraSprite
	index    map[Sprite]*CameraSprite
	layerGen uint64

	deltaMu sync.Mutex
	deltas  []memberDelta
	spareD  []memberDelta

	selMu    sync.Mutex
	selQ     []SelectEvent
	selected Sprite

	scenes     [3]*Scene
	current    atomic.Pointer[Scene]
	pool       []*SceneSprite
	poolTrimAt time.Duration
}

// NewCamera returns a detached camera for user. Width and height below one
// are raised to one.
func NewCamera(user UserID, bounds Rect) *Camera {
	c := &Camera{
		user:    user,
		bounds:  fixBounds(bounds),
		tracked: make(map[*Sector]struct{}),
		index:   make(map[Sprite]*CameraSprite),
	}
	for i := range c.scenes {
		c.scenes[i] = &Scene{}
	}
	return c
}

func fixBounds(r Rect) Rect {
	r.W = max(r.W, 1)
	r.H = max(r.H, 1)
	return r
}

func (c *Camera) User() UserID { return c.user }

// SetHook installs the lifecycle hook. It takes effect at the next
// admission.
func (c *Camera) SetHook(h CameraHook) {
	c.mu.Lock()
	c.hook = h
	c.mu.Unlock()
}

// SetZone asks z to admit the camera.
func (c *Camera) SetZone(z *Zone) error {
	return z.AddCamera(c)
}

// DropZone detaches the camera from its zone and releases the user's
// catalog checkout. Owners call it when the camera is no longer used.
func (c *Camera) DropZone() error {
	z := c.Zone()
	if z == nil {
		return ErrNotInZone
	}
	return z.RemoveCamera(c)
}

// Zone returns the zone the camera was added to, or nil.
func (c *Camera) Zone() *Zone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zone
}

func (c *Camera) setZone(z *Zone) {
	c.mu.Lock()
	c.zone = z
	c.mu.Unlock()
}

func (c *Camera) Bounds() Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds
}

// SetBounds moves and resizes the viewport. The tracked sectors follow in
// the next camera stage.
func (c *Camera) SetBounds(r Rect) {
	c.mu.Lock()
	c.bounds = fixBounds(r)
	c.mu.Unlock()
}

// Move sets the viewport's top-left corner.
func (c *Camera) Move(x, y int) {
	c.mu.Lock()
	c.bounds.X, c.bounds.Y = x, y
	c.mu.Unlock()
}

// Resize sets the viewport size.
func (c *Camera) Resize(w, h int) {
	c.mu.Lock()
	c.bounds = fixBounds(Rect{X: c.bounds.X, Y: c.bounds.Y, W: w, H: h})
	c.mu.Unlock()
}

// TrackedSectors returns the tracked sectors ordered by index.
func (c *Camera) TrackedSectors() []*Sector {
	out := make([]*Sector, 0, len(c.tracked))
	for s := range c.tracked {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// Sprites returns the camera's sprites in ascending layer order.
func (c *Camera) Sprites() []Sprite {
	out := make([]Sprite, len(c.list))
	for i, cs := range c.list {
		out[i] = cs.sprite
	}
	return out
}

// Entries returns the camera's sprite entries in ascending layer order.
func (c *Camera) Entries() []*CameraSprite {
	return append([]*CameraSprite(nil), c.list...)
}

// Selected returns the currently selected sprite, or nil.
func (c *Camera) Selected() Sprite {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	return c.selected
}

// LockScene locks and returns the most recently published scene. It
// returns nil when there is none yet or when the simulation is rewriting
// it; the caller should skip the frame. Call Unlock when done.
func (c *Camera) LockScene() *Scene {
	sc := c.current.Load()
	if sc == nil || !sc.mu.TryLock() {
		return nil
	}
	return sc
}

// --- Input ---

// The input methods take device-local coordinates and queue world
// coordinates. They are ignored while the camera has no zone.

func (c *Camera) origin() (*Zone, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zone, c.bounds.X, c.bounds.Y
}

// Click queues a click. A primary click is also a selection attempt.
func (c *Camera) Click(button Button, count, localX, localY int) {
	z, ox, oy := c.origin()
	if z == nil {
		return
	}
	x, y := localX+ox, localY+oy
	z.catalog.QueueClick(ClickEvent{
		User:   c.user,
		Button: button,
		Count:  count,
		X:      x,
		Y:      y,
		LocalX: localX,
		LocalY: localY,
	})
	if button == ButtonPrimary {
		c.selMu.Lock()
		c.selQ = append(c.selQ, SelectEvent{User: c.user, X: x, Y: y, LocalX: localX, LocalY: localY})
		c.selMu.Unlock()
	}
}

func (c *Camera) Press(button Button, localX, localY int) {
	if z, ox, oy := c.origin(); z != nil {
		z.catalog.QueuePress(ButtonEvent{User: c.user, Button: button, X: localX + ox, Y: localY + oy})
	}
}

func (c *Camera) Release(button Button, localX, localY int) {
	if z, ox, oy := c.origin(); z != nil {
		z.catalog.QueueRelease(ButtonEvent{User: c.user, Button: button, X: localX + ox, Y: localY + oy})
	}
}

func (c *Camera) Wheel(delta, localX, localY int) {
	if z, ox, oy := c.origin(); z != nil {
		z.catalog.QueueWheel(WheelEvent{User: c.user, Delta: delta, X: localX + ox, Y: localY + oy})
	}
}

func (c *Camera) KeyDown(key int) { c.key(KeyEvent{User: c.user, Action: KeyDown, Key: key}) }
func (c *Camera) KeyUp(key int)   { c.key(KeyEvent{User: c.user, Action: KeyUp, Key: key}) }

func (c *Camera) KeyTyped(r rune) {
	c.key(KeyEvent{User: c.user, Action: KeyTyped, Rune: r})
}

func (c *Camera) key(ev KeyEvent) {
	if z := c.Zone(); z != nil {
		z.catalog.QueueKey(ev)
	}
}

// --- Camera stage ---

// attach runs in the admission stage.
func (c *Camera) attach(z *Zone) {
	c.mu.Lock()
	c.stepHook = c.hook
	c.mu.Unlock()
	c.attached = z
	c.syncTracked()
	if c.stepHook != nil {
		c.stepHook.Init(c)
	}
}

// detach runs in the admission stage and forgets everything the camera
// mirrored. Published scenes stay readable.
func (c *Camera) detach() {
	for s := range c.tracked {
		s.unlisten(c)
	}
	clear(c.tracked)
	c.hasSpan = false
	for _, cs := range c.list {
		cs.orphan = true
	}
	clear(c.list)
	c.list = c.list[:0]
	clear(c.index)

	c.deltaMu.Lock()
	clear(c.deltas)
	c.deltas = c.deltas[:0]
	c.deltaMu.Unlock()

	c.selMu.Lock()
	old := c.selected
	c.selected = nil
	c.selQ = c.selQ[:0]
	c.selMu.Unlock()
	if old != nil && !old.Base().deleted {
		old.Base().selector.Deselect()
	}
	c.attached = nil
	c.stepHook = nil
}

// queueDeltas is called by a tracked sector's post-update. The camera
// applies them in its next update.
func (c *Camera) queueDeltas(deltas []memberDelta) {
	c.deltaMu.Lock()
	c.deltas = append(c.deltas, deltas...)
	c.deltaMu.Unlock()
}

// update is the camera's per-cycle work: sector sync, hook, selection,
// scene.
func (c *Camera) update() {
	if c.attached == nil {
		return
	}
	c.syncTracked()
	c.applyDeltas()
	if c.stepHook != nil {
		c.stepHook.Update(c)
	}
	if g := c.attached.layerGen.Load(); g != c.layerGen {
		c.layerGen = g
		sortByLayer(c.list)
	}
	c.processSelection()
	c.buildScene()
}

// syncTracked makes the tracked set equal to the sectors intersecting the
// bounds grown by one sector on every side.
func (c *Camera) syncTracked() {
	t := c.attached.table
	size := t.SectorSize()
	c0, r0, c1, r1, ok := t.span(c.Bounds().Inflate(size, size))
	if !ok {
		// Nothing in range: an empty span.
		c0, r0, c1, r1 = 0, 0, -1, -1
	}
	span := [4]int{c0, r0, c1, r1}
	if c.hasSpan && span == c.span {
		return
	}
	c.span, c.hasSpan = span, true

	next := make(map[*Sector]struct{}, max(0, (c1-c0+1)*(r1-r0+1)))
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			next[t.At(col, row)] = struct{}{}
		}
	}
	dropped := false
	for s := range c.tracked {
		if _, ok := next[s]; !ok {
			s.unlisten(c)
			dropped = true
		}
	}
	old := c.tracked
	c.tracked = next
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			s := t.At(col, row)
			if _, ok := old[s]; ok {
				continue
			}
			for _, sp := range s.listen(c) {
				c.reconcile(sp)
			}
		}
	}
	if dropped {
		c.dropOrphans()
	}
}

// wants reports whether sp belongs in the camera's list right now.
func (c *Camera) wants(sp Sprite) bool {
	b := sp.Base()
	if b.deleted || b.zone != c.attached || b.sector == nil {
		return false
	}
	_, ok := c.tracked[b.sector]
	return ok
}

// reconcile adds or removes sp so the list matches its current sector.
func (c *Camera) reconcile(sp Sprite) {
	cs, have := c.index[sp]
	want := c.wants(sp)
	switch {
	case want && !have:
		cs = &CameraSprite{sprite: sp, selected: sp == c.selected}
		c.index[sp] = cs
		c.list = insertByLayer(c.list, cs)
	case !want && have:
		cs.orphan = true
		delete(c.index, sp)
		c.list = removeCameraSprite(c.list, cs)
	}
}

func (c *Camera) dropOrphans() {
	kept := c.list[:0]
	for _, cs := range c.list {
		if c.wants(cs.sprite) {
			kept = append(kept, cs)
			continue
		}
		cs.orphan = true
		delete(c.index, cs.sprite)
	}
	clear(c.list[len(kept):])
	c.list = kept
}

// applyDeltas replays sector membership changes. The delta only names the
// sprite; its current sector decides whether the camera keeps it, so
// several deltas for one sprite settle on the right answer.
func (c *Camera) applyDeltas() {
	c.deltaMu.Lock()
	deltas := c.deltas
	c.deltas = c.spareD[:0]
	c.deltaMu.Unlock()

	for _, d := range deltas {
		c.reconcile(d.sprite)
	}
	clear(deltas)
	c.spareD = deltas[:0]
}

// processSelection handles the newest queued selection only. The list is
// scanned from the top layer down and the first selectable sprite under
// the point decides.
func (c *Camera) processSelection() {
	c.selMu.Lock()
	n := len(c.selQ)
	var ev SelectEvent
	if n > 0 {
		ev = c.selQ[n-1]
		c.selQ = c.selQ[:0]
	}
	prev := c.selected
	c.selMu.Unlock()

	if prev != nil && prev.Base().deleted {
		c.setSelected(nil, false)
		prev = nil
	}
	if n == 0 {
		return
	}

	var picked Sprite
scan:
	for i := len(c.list) - 1; i >= 0; i-- {
		b := c.list[i].sprite.Base()
		if b.selector == nil || b.deleted || !b.Bounds().Contains(ev.X, ev.Y) {
			continue
		}
		switch b.selector.Select(ev) {
		case Accept:
			picked = c.list[i].sprite
			break scan
		case RejectStop:
			break scan
		}
	}
	if picked != prev {
		c.setSelected(picked, true)
	}
}

// setSelected swaps the selection, telling the previous sprite when notify
// is set.
func (c *Camera) setSelected(sp Sprite, notify bool) {
	c.selMu.Lock()
	prev := c.selected
	c.selected = sp
	c.selMu.Unlock()

	if prev != nil {
		if cs := c.index[prev]; cs != nil {
			cs.selected = false
		}
		if notify && !prev.Base().deleted {
			prev.Base().selector.Deselect()
		}
	}
	if sp != nil {
		if cs := c.index[sp]; cs != nil {
			cs.selected = true
		}
	}
}

// acquireScene locks a scene other than the current one. The renderer
// holds at most one scene, so one of the two spares is always free and
// the poll ends within a few rounds.
func (c *Camera) acquireScene() *Scene {
	cur := c.current.Load()
	for {
		for _, sc := range c.scenes {
			if sc != cur && sc.mu.TryLock() {
				return sc
			}
		}
		runtime.Gosched()
	}
}

func (c *Camera) sceneSprite() *SceneSprite {
	if n := len(c.pool); n > 0 {
		ss := c.pool[n-1]
		c.pool[n-1] = nil
		c.pool = c.pool[:n-1]
		return ss
	}
	return &SceneSprite{}
}

// buildScene fills a spare scene with the sprites inside the viewport and
// publishes it.
func (c *Camera) buildScene() {
	z := c.attached
	sc := c.acquireScene()
	c.pool = sc.reclaim(c.pool)

	view := c.Bounds()
	sc.bounds = view
	sc.cycle = z.Cycle()
	for _, cs := range c.list {
		b := cs.sprite.Base()
		if b.deleted {
			continue
		}
		r := b.Bounds()
		if !r.Intersects(view) {
			continue
		}
		ss := c.sceneSprite()
		ss.Sprite = cs.sprite
		ss.Dst = r.Translate(-view.X, -view.Y)
		ss.Layer = b.layer
		ss.Selected = cs.selected
		sc.add(ss)
	}
	sc.sortLayers()
	sc.mu.Unlock()
	c.current.Store(sc)

	if now := z.ZoneTime(); now-c.poolTrimAt >= scenePoolTrim {
		c.trimPool(sc.n)
		c.poolTrimAt = now
	}
}

// trimPool keeps enough idle wrappers to rebuild a scene of size used.
func (c *Camera) trimPool(used int) {
	keep := max(used, 32)
	if len(c.pool) <= keep {
		return
	}
	clear(c.pool[keep:])
	c.pool = append([]*SceneSprite(nil), c.pool[:keep]...)
}

// PoolLen returns the number of idle scene wrappers.
func (c *Camera) PoolLen() int { return len(c.pool) }

// trim runs on the leader with every worker parked. Scenes held by the
// renderer are skipped.
func (c *Camera) trim() {
	if cap(c.list) > 32 && cap(c.list) > 4*len(c.list) {
		c.list = append(make([]*CameraSprite, 0, len(c.list)*2), c.list...)
	}
	cur := c.current.Load()
	for _, sc := range c.scenes {
		if sc != cur && sc.mu.TryLock() {
			sc.shrink()
			sc.mu.Unlock()
		}
	}
	c.deltaMu.Lock()
	if cap(c.spareD) > 64 {
		c.spareD = nil
	}
	c.deltaMu.Unlock()
}
