package world

// CheckCollisions runs the neighbour-aware collision query for sp and returns
// the number of partners found. sp's Collide hook is called once per partner;
// partners are not notified. The processor's collision stage is what makes
// contacts mutual.
func (z *Zone) CheckCollisions(sp Sprite) int {
	var buf [8]Sprite
	found := z.appendContacts(buf[:0], sp)
	if c := sp.Base().collider; c != nil {
		for _, other := range found {
			c.Collide(other)
		}
	}
	return len(found)
}

// appendContacts appends every collidable sprite overlapping sp to dst.
// No hook runs.
//
// Sprites are at most one sector wide and high, so any sprite overlapping sp
// has its top-left corner in a column between tl.col-1 and br.col and a row
// between tl.row-1 and br.row, where tl and br are the sectors holding sp's
// top-left and bottom-right corners. The sectors listed below are exactly
// that range, each visited once; since a sprite is a member of exactly one
// sector, no partner is reported twice.
func (z *Zone) appendContacts(dst []Sprite, sp Sprite) []Sprite {
	b := sp.Base()
	tl := z.table.SectorOfSafe(b.x, b.y)
	br := z.table.SectorOfSafe(b.x+b.w-1, b.y+b.h-1)

	var scan [9]*Sector
	n := 0
	add := func(s *Sector) {
		if s != nil {
			scan[n] = s
			n++
		}
	}

	add(tl)
	add(tl.left)
	add(tl.top)
	if tl.left != nil {
		add(tl.left.top)
	}
	if br != tl {
		right := br.col != tl.col
		down := br.row != tl.row
		add(br)
		switch {
		case right && down:
			add(tl.right)
			add(tl.right.top)
			add(tl.bottom)
			add(tl.bottom.left)
		case right:
			add(br.top)
		case down:
			add(br.left)
		}
	}

	for _, s := range scan[:n] {
		dst = s.appendContacts(dst, sp)
	}
	return dst
}

// detectGroup records the contacts of every collidable sprite in the group.
// It only reads bounds, so with every worker detecting before any hook runs
// all contacts are found against the same positions and come out mutual.
func (z *Zone) detectGroup(group []*Sector) {
	for _, s := range group {
		for _, sp := range s.collidable {
			b := sp.Base()
			if b.deleted {
				continue
			}
			b.contacts = z.appendContacts(b.contacts[:0], sp)
		}
	}
}

// dispatchGroup calls Collide for the contacts found by detectGroup. A
// sprite's hooks run on the worker owning its sector; hooks may move the
// sprite.
func (z *Zone) dispatchGroup(group []*Sector) {
	for _, s := range group {
		for _, sp := range s.collidable {
			b := sp.Base()
			for i, other := range b.contacts {
				b.collider.Collide(other)
				b.contacts[i] = nil
			}
			b.contacts = b.contacts[:0]
		}
	}
}
