package world

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/sectorsim/internal/core/ecs"
	"github.com/l1jgo/sectorsim/internal/core/system"
)

// Defaults applied by NewZone to zero Options fields.
const (
	DefaultCycleInterval = 5 * time.Millisecond
	DefaultTrimInterval  = 10 * time.Minute

	pauseStep = 250 * time.Millisecond
)

// Options configures a zone.
type Options struct {
	Width, Height int
	SectorSize    int           // power of two; 0 means DefaultSectorSize
	CycleInterval time.Duration // minimum cycle length
	MaxCameras    int           // 0 means unlimited
	TrimInterval  time.Duration // background trim requests

	// Update is the zone-level hook run once per cycle by the leader, after
	// the cycle counter has been incremented.
	Update func(z *Zone)

	Clock  TimeProvider
	Logger *zap.Logger
}

// Zone is one simulated world: the sector grid, its sprites and cameras,
// the simulation clock and the input catalog.
type Zone struct {
	opts    Options
	log     *zap.Logger
	tp      TimeProvider
	table   *SectorTable
	clock   *Clock
	catalog *Catalog
	runner  *system.Runner

	regMu   sync.Mutex
	ids     *ecs.EntityPool
	sprites *ecs.PtrComponentStore[BaseSprite]

	resizeMu     sync.Mutex
	resizeW      int
	resizeH      int
	resizeQueued bool

	camMu      sync.Mutex
	cameras    []*Camera // active; rewritten by the leader only
	camChanges []cameraChange
	camCount   int // active plus queued admissions
	camNext    atomic.Int64

	delMu   sync.Mutex
	delQ    []Sprite
	delWork []Sprite
	delNext atomic.Int64

	cycle      atomic.Uint64
	zoneTime   atomic.Int64
	lastTime   time.Duration
	cycleStart time.Time
	trimReq    atomic.Bool
	layerGen   atomic.Uint64 // bumped by every effective SetLayer

	procMu sync.Mutex
	proc   *Processor
}

type cameraChange struct {
	cam   *Camera
	admit bool
}

// NewZone validates opts and builds the sector grid.
func NewZone(opts Options) (*Zone, error) {
	if opts.SectorSize == 0 {
		opts.SectorSize = DefaultSectorSize
	}
	if opts.CycleInterval < 0 {
		return nil, fmt.Errorf("cycle interval %s: must not be negative", opts.CycleInterval)
	}
	if opts.CycleInterval == 0 {
		opts.CycleInterval = DefaultCycleInterval
	}
	if opts.TrimInterval <= 0 {
		opts.TrimInterval = DefaultTrimInterval
	}
	if opts.MaxCameras < 0 {
		opts.MaxCameras = 0
	}
	table, err := NewSectorTable(opts.Width, opts.Height, opts.SectorSize)
	if err != nil {
		return nil, fmt.Errorf("new zone %dx%d/%d: %w", opts.Width, opts.Height, opts.SectorSize, err)
	}
	tp := opts.Clock
	if tp == nil {
		tp = systemTime{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	z := &Zone{
		opts:    opts,
		log:     log,
		tp:      tp,
		table:   table,
		clock:   NewClock(tp),
		catalog: NewCatalog(),
		runner:  system.NewRunner(),
		ids:     ecs.NewEntityPool(),
		sprites: ecs.NewPtrComponentStore[BaseSprite](),
	}
	cols, rows := table.GridSize()
	log.Debug("zone created",
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Int("sector_size", opts.SectorSize),
		zap.Int("cols", cols),
		zap.Int("rows", rows),
	)
	return z, nil
}

func (z *Zone) Width() int {
	w, _ := z.table.Dims()
	return w
}

func (z *Zone) Height() int {
	_, h := z.table.Dims()
	return h
}

func (z *Zone) Table() *SectorTable       { return z.table }
func (z *Zone) Sectors() []*Sector        { return z.table.Sectors() }
func (z *Zone) SectorOf(x, y int) *Sector { return z.table.SectorOf(x, y) }
func (z *Zone) Catalog() *Catalog         { return z.catalog }
func (z *Zone) Runner() *system.Runner    { return z.runner }
func (z *Zone) Logger() *zap.Logger       { return z.log }

// SectorOfSafe is SectorOf for coordinates that may lie outside the zone.
func (z *Zone) SectorOfSafe(x, y int) *Sector { return z.table.SectorOfSafe(x, y) }

// Cycle returns the number of cycles started so far.
func (z *Zone) Cycle() uint64 { return z.cycle.Load() }

// ZoneTime returns the simulation time recorded at the start of the current
// cycle: wall time since creation minus every paused interval.
func (z *Zone) ZoneTime() time.Duration {
	return time.Duration(z.zoneTime.Load())
}

// Resize grows the zone. While the processor runs, the change is applied by
// the leader at the top of the next cycle and the worker groups are rebuilt.
func (z *Zone) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if z.Running() {
		z.resizeMu.Lock()
		z.resizeW = max(z.resizeW, width)
		z.resizeH = max(z.resizeH, height)
		z.resizeQueued = true
		z.resizeMu.Unlock()
		return
	}
	z.resize(width, height)
}

func (z *Zone) resize(width, height int) bool {
	grown := z.table.Resize(width, height)
	w, h := z.table.Dims()
	z.log.Info("zone resized",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("sectors", z.table.Len()),
		zap.Bool("grown", grown),
	)
	return grown
}

// applyResize installs a queued resize. Returns true when sectors were added.
func (z *Zone) applyResize() bool {
	z.resizeMu.Lock()
	if !z.resizeQueued {
		z.resizeMu.Unlock()
		return false
	}
	w, h := z.resizeW, z.resizeH
	z.resizeW, z.resizeH, z.resizeQueued = 0, 0, false
	z.resizeMu.Unlock()
	return z.resize(w, h)
}

// --- Sprites ---

// AddSprite registers sp with the zone. Geometry is clamped, sp joins the
// sector under its top-left corner and its Init hook runs. sp's update
// and collision lists pick it up at the sector's next post-update.
func (z *Zone) AddSprite(sp Sprite) error {
	b := sp.Base()
	if b.zone != nil {
		return ErrAlreadyInZone
	}
	b.resolve(sp)
	b.deleted = false
	b.sector = nil

	z.regMu.Lock()
	b.id = z.ids.Create()
	z.sprites.Set(b.id, b)
	z.regMu.Unlock()

	b.zone = z
	z.place(b)
	if in, ok := sp.(Initializer); ok {
		in.Init(z)
	}
	return nil
}

// DeleteSprite queues sp for eviction in the next deletion stage. Deleting
// twice before that stage is a no-op.
func (z *Zone) DeleteSprite(sp Sprite) error {
	b := sp.Base()
	z.delMu.Lock()
	defer z.delMu.Unlock()
	if b.zone != z {
		return ErrNotInZone
	}
	if b.queued {
		return nil
	}
	b.queued = true
	z.delQ = append(z.delQ, sp)
	return nil
}

// SpriteCount returns the number of registered sprites.
func (z *Zone) SpriteCount() int {
	z.regMu.Lock()
	defer z.regMu.Unlock()
	return z.sprites.Len()
}

// Sprites returns every registered sprite in registration id order.
func (z *Zone) Sprites() []Sprite {
	z.regMu.Lock()
	defer z.regMu.Unlock()
	out := make([]Sprite, 0, z.sprites.Len())
	z.sprites.Each(func(_ ecs.EntityID, b *BaseSprite) {
		out = append(out, b.owner)
	})
	return out
}

// place clamps b and moves its membership to the sector under its top-left
// corner.
func (z *Zone) place(b *BaseSprite) {
	w, h := z.table.Dims()
	b.clamp(w, h, z.table.SectorSize())
	s := z.table.SectorOf(b.x, b.y)
	if s == b.sector {
		return
	}
	if b.sector != nil {
		b.sector.removeMember(b.owner)
	}
	s.addMember(b.owner)
	b.sector = s
}

// evict removes sp from the zone. Runs exactly once per queued deletion.
func (z *Zone) evict(sp Sprite) {
	b := sp.Base()
	b.deleted = true
	if b.sector != nil {
		b.sector.removeMember(sp)
		b.sector = nil
	}

	z.regMu.Lock()
	z.sprites.Remove(b.id)
	z.ids.Destroy(b.id)
	z.regMu.Unlock()

	z.catalog.drop(sp)
	if d, ok := sp.(Deleter); ok {
		d.OnDelete()
	}

	z.delMu.Lock()
	b.zone = nil
	b.queued = false
	z.delMu.Unlock()
}

// --- Cameras ---

// AddCamera queues c for admission at the start of the next cycle. The
// camera's user entry in the catalog is checked out right away.
func (z *Zone) AddCamera(c *Camera) error {
	z.camMu.Lock()
	defer z.camMu.Unlock()
	if c.Zone() != nil {
		return ErrAlreadyInZone
	}
	if z.opts.MaxCameras > 0 && z.camCount >= z.opts.MaxCameras {
		return fmt.Errorf("add camera for %q: %w (%d)", c.user, ErrTooManyCameras, z.opts.MaxCameras)
	}
	z.camCount++
	c.setZone(z)
	z.catalog.Checkout(c.user)
	z.camChanges = append(z.camChanges, cameraChange{cam: c, admit: true})
	return nil
}

// RemoveCamera detaches c. It leaves the active list at the next admission
// stage and releases its catalog checkout.
func (z *Zone) RemoveCamera(c *Camera) error {
	z.camMu.Lock()
	defer z.camMu.Unlock()
	if c.Zone() != z {
		return ErrNotInZone
	}
	z.camCount--
	c.setZone(nil)
	z.catalog.Release(c.user)
	z.camChanges = append(z.camChanges, cameraChange{cam: c})
	return nil
}

// Cameras returns the active cameras.
func (z *Zone) Cameras() []*Camera {
	z.camMu.Lock()
	defer z.camMu.Unlock()
	return append([]*Camera(nil), z.cameras...)
}

// admitCameras applies queued camera changes in request order.
func (z *Zone) admitCameras() {
	z.camMu.Lock()
	changes := z.camChanges
	z.camChanges = nil
	for _, ch := range changes {
		if ch.admit {
			z.cameras = append(z.cameras, ch.cam)
			continue
		}
		for i, cur := range z.cameras {
			if cur == ch.cam {
				z.cameras = append(z.cameras[:i], z.cameras[i+1:]...)
				break
			}
		}
	}
	z.camMu.Unlock()

	for _, ch := range changes {
		if ch.admit {
			ch.cam.attach(z)
			z.log.Debug("camera admitted", zap.String("user", string(ch.cam.user)))
		} else {
			ch.cam.detach()
			z.log.Debug("camera removed", zap.String("user", string(ch.cam.user)))
		}
	}
}

// --- Pause ---

// Pause freezes zone time and suspends input delivery. Returns false when
// already paused.
func (z *Zone) Pause() bool {
	if !z.clock.Pause() {
		return false
	}
	z.catalog.Suspend()
	z.log.Info("zone paused", zap.Uint64("cycle", z.Cycle()))
	return true
}

// Resume continues zone time where it stopped and restores delivery.
func (z *Zone) Resume() bool {
	if !z.clock.Resume() {
		return false
	}
	z.catalog.Resume()
	z.log.Info("zone resumed",
		zap.Uint64("cycle", z.Cycle()),
		zap.Duration("paused_total", z.clock.PausedTotal()),
	)
	return true
}

func (z *Zone) Paused() bool { return z.clock.Paused() }

// RequestTrim asks the leader to release spare capacity at the end of the
// next cycle.
func (z *Zone) RequestTrim() { z.trimReq.Store(true) }

// --- Cycle stages ---

// beginCycle runs the one-pass stages that open a cycle: time, resize, zone
// hook, systems, camera admission and input delivery. Returns true when a
// resize added sectors.
func (z *Zone) beginCycle() bool {
	z.cycleStart = z.tp.Now()
	grown := z.applyResize()

	now := z.clock.Elapsed()
	dt := now - z.lastTime
	z.lastTime = now
	z.zoneTime.Store(int64(now))

	z.cycle.Add(1)
	if z.opts.Update != nil {
		z.opts.Update(z)
	}
	z.runner.Tick(dt)
	z.admitCameras()
	z.catalog.Deliver()
	return grown
}

func updateGroup(group []*Sector) {
	for _, s := range group {
		s.update()
	}
}

func postUpdateGroup(group []*Sector) {
	for _, s := range group {
		s.postUpdate()
	}
}

// updateCameras claims cameras one at a time until none are left.
func (z *Zone) updateCameras() {
	for {
		i := int(z.camNext.Add(1)) - 1
		if i >= len(z.cameras) {
			return
		}
		z.cameras[i].update()
	}
}

// snapshotDeletes moves the queued deletions into the work list for the
// deletion stage. Deletions requested during that stage wait a cycle.
func (z *Zone) snapshotDeletes() {
	z.delMu.Lock()
	z.delWork = append(z.delWork[:0], z.delQ...)
	clear(z.delQ)
	z.delQ = z.delQ[:0]
	z.delMu.Unlock()
	z.delNext.Store(0)
}

func (z *Zone) deleteQueued() {
	for {
		i := int(z.delNext.Add(1)) - 1
		if i >= len(z.delWork) {
			return
		}
		z.evict(z.delWork[i])
	}
}

// endCycle runs on the leader once every worker is parked.
func (z *Zone) endCycle() {
	clear(z.delWork)
	z.delWork = z.delWork[:0]
	if z.trimReq.Swap(false) {
		z.trim()
	}
}

// trim releases over-allocated capacity. Live elements are never touched.
func (z *Zone) trim() {
	for _, s := range z.table.Sectors() {
		s.trim()
	}
	for _, c := range z.cameras {
		c.trim()
	}
	z.catalog.trim()
	z.delMu.Lock()
	if cap(z.delQ) > 64 && len(z.delQ) < 16 {
		z.delQ = append([]Sprite(nil), z.delQ...)
	}
	z.delWork = nil
	z.delMu.Unlock()
	z.log.Debug("zone trimmed", zap.Uint64("cycle", z.Cycle()))
}

// Step runs one full cycle on the calling goroutine. It returns false
// without advancing when the zone is paused (queued input is still
// drained). Hook panics propagate to the caller.
func (z *Zone) Step() (bool, error) {
	if z.Running() {
		return false, ErrRunning
	}
	if z.clock.Paused() {
		z.catalog.Deliver()
		return false, nil
	}
	all := z.table.Sectors()
	if z.beginCycle() {
		all = z.table.Sectors()
	}
	updateGroup(all)
	z.camNext.Store(0)
	z.updateCameras()
	postUpdateGroup(all)
	z.detectGroup(all)
	z.dispatchGroup(all)
	z.snapshotDeletes()
	z.deleteQueued()
	z.endCycle()
	return true, nil
}
