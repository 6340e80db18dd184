package world

import "sync"

// memberDelta is one membership change recorded during a cycle.
type memberDelta struct {
	sprite Sprite
	added  bool
}

// Sector is one square cell of the zone grid.
//
// members is the authoritative membership and changes as soon as a sprite
// moves. updating and collidable are the iteration lists; they are only
// rewritten by postUpdate, so update and the collision stage always walk
// the membership as of the previous post-update.
type Sector struct {
	index    int
	col, row int
	bounds   Rect

	left, right, top, bottom *Sector

	mu      sync.Mutex // members + deltas; moves come from any worker
	members map[Sprite]struct{}
	deltas  []memberDelta
	spare   []memberDelta

	updating   []Sprite
	collidable []Sprite

	camMu   sync.Mutex
	cameras []*Camera
}

func newSector(index, col, row, size int) *Sector {
	return &Sector{
		index:   index,
		col:     col,
		row:     row,
		bounds:  Rect{X: col * size, Y: row * size, W: size, H: size},
		members: make(map[Sprite]struct{}),
	}
}

// Index is the sector's position in creation order. Growing the grid never
// changes it.
func (s *Sector) Index() int { return s.index }

func (s *Sector) Col() int        { return s.col }
func (s *Sector) Row() int        { return s.row }
func (s *Sector) Bounds() Rect    { return s.bounds }
func (s *Sector) Left() *Sector   { return s.left }
func (s *Sector) Right() *Sector  { return s.right }
func (s *Sector) Top() *Sector    { return s.top }
func (s *Sector) Bottom() *Sector { return s.bottom }

// Neighbours returns the left, right, top and bottom links; nil at the zone edge.
func (s *Sector) Neighbours() [4]*Sector {
	return [4]*Sector{s.left, s.right, s.top, s.bottom}
}

// Len returns the current member count.
func (s *Sector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Members returns a copy of the current membership.
func (s *Sector) Members() []Sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sprite, 0, len(s.members))
	for sp := range s.members {
		out = append(out, sp)
	}
	return out
}

// Has reports whether sp is currently a member.
func (s *Sector) Has(sp Sprite) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[sp]
	return ok
}

// PendingDeltas returns the number of membership changes waiting for the
// next post-update.
func (s *Sector) PendingDeltas() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deltas)
}

// Updating returns a copy of the update list.
func (s *Sector) Updating() []Sprite {
	return append([]Sprite(nil), s.updating...)
}

// Collidable returns a copy of the collision list.
func (s *Sector) Collidable() []Sprite {
	return append([]Sprite(nil), s.collidable...)
}

func (s *Sector) addMember(sp Sprite) {
	s.mu.Lock()
	if _, ok := s.members[sp]; !ok {
		s.members[sp] = struct{}{}
		s.deltas = append(s.deltas, memberDelta{sprite: sp, added: true})
	}
	s.mu.Unlock()
}

func (s *Sector) removeMember(sp Sprite) {
	s.mu.Lock()
	if _, ok := s.members[sp]; ok {
		delete(s.members, sp)
		s.deltas = append(s.deltas, memberDelta{sprite: sp, added: false})
	}
	s.mu.Unlock()
}

// update runs every updating sprite's hook once.
func (s *Sector) update() {
	for _, sp := range s.updating {
		b := sp.Base()
		if b.deleted {
			continue
		}
		b.updater.Update()
	}
}

// postUpdate folds the cycle's membership deltas into the iteration lists
// and hands them to every camera tracking this sector. Calling it again
// without new deltas changes nothing.
func (s *Sector) postUpdate() {
	s.mu.Lock()
	deltas := s.deltas
	if len(deltas) == 0 {
		s.mu.Unlock()
		return
	}
	s.deltas = s.spare[:0]
	s.mu.Unlock()

	for _, d := range deltas {
		b := d.sprite.Base()
		if d.added {
			if b.updater != nil {
				s.updating = append(s.updating, d.sprite)
			}
			if b.collider != nil {
				s.collidable = append(s.collidable, d.sprite)
			}
			continue
		}
		if b.updater != nil {
			s.updating = removeSprite(s.updating, d.sprite)
		}
		if b.collider != nil {
			s.collidable = removeSprite(s.collidable, d.sprite)
		}
	}

	s.camMu.Lock()
	for _, c := range s.cameras {
		c.queueDeltas(deltas)
	}
	s.camMu.Unlock()

	for i := range deltas {
		deltas[i] = memberDelta{}
	}
	s.mu.Lock()
	s.spare = deltas[:0]
	s.mu.Unlock()
}

// CheckCollisionsFor tests sp against this sector's collidable sprites and
// calls sp's Collide for every hit. Only sp is notified.
func (s *Sector) CheckCollisionsFor(sp Sprite) int {
	var buf [8]Sprite
	found := s.appendContacts(buf[:0], sp)
	if c := sp.Base().collider; c != nil {
		for _, other := range found {
			c.Collide(other)
		}
	}
	return len(found)
}

// appendContacts appends the collidable sprites overlapping sp to dst.
func (s *Sector) appendContacts(dst []Sprite, sp Sprite) []Sprite {
	b := sp.Base()
	for _, other := range s.collidable {
		if other == sp {
			continue
		}
		ob := other.Base()
		if ob.deleted || !collides(b, ob) {
			continue
		}
		dst = append(dst, other)
	}
	return dst
}

// listen registers c for delta fan-out and returns the members c has to
// start from.
func (s *Sector) listen(c *Camera) []Sprite {
	s.camMu.Lock()
	s.cameras = append(s.cameras, c)
	s.camMu.Unlock()
	return s.Members()
}

func (s *Sector) unlisten(c *Camera) {
	s.camMu.Lock()
	defer s.camMu.Unlock()
	for i, cur := range s.cameras {
		if cur == c {
			last := len(s.cameras) - 1
			s.cameras[i] = s.cameras[last]
			s.cameras[last] = nil
			s.cameras = s.cameras[:last]
			return
		}
	}
}

// Cameras returns the number of cameras tracking the sector.
func (s *Sector) Cameras() int {
	s.camMu.Lock()
	defer s.camMu.Unlock()
	return len(s.cameras)
}

// trim releases spare capacity. Leader only, with every worker parked.
func (s *Sector) trim() {
	s.updating = shrinkSprites(s.updating)
	s.collidable = shrinkSprites(s.collidable)
	s.mu.Lock()
	if cap(s.spare) > 64 {
		s.spare = nil
	}
	s.mu.Unlock()
}

// removeSprite swap-removes sp. List order carries no meaning.
func removeSprite(list []Sprite, sp Sprite) []Sprite {
	for i, cur := range list {
		if cur == sp {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil
			return list[:last]
		}
	}
	return list
}

func shrinkSprites(list []Sprite) []Sprite {
	if cap(list) <= 16 || cap(list) <= 2*len(list) {
		return list
	}
	out := make([]Sprite, len(list), len(list)+len(list)/4+1)
	copy(out, list)
	return out
}
