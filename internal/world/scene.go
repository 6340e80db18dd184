package world

import (
	"sort"
	"sync"
)

// SceneSprite is one visible sprite in a scene. Dst is the sprite's box
// relative to the camera viewport. Instances are pooled by the camera and
// must not be kept after Unlock.
type SceneSprite struct {
	Sprite   Sprite
	Dst      Rect
	Layer    float64
	Selected bool
}

// Scene is a camera's snapshot of the visible sprites, bucketed by layer
// band. Each band is ordered by layer value, highest first.
//
// A camera owns three scenes. The simulation fills a spare one while the
// renderer holds at most one, then publishes it as current.
type Scene struct {
	mu     sync.Mutex
	cycle  uint64
	bounds Rect
	layers [NumLayers][]*SceneSprite
	n      int
}

// Unlock releases a scene obtained from Camera.LockScene.
func (s *Scene) Unlock() { s.mu.Unlock() }

// Cycle returns the zone cycle the scene was built in.
func (s *Scene) Cycle() uint64 { return s.cycle }

// Bounds is the camera viewport at build time.
func (s *Scene) Bounds() Rect { return s.bounds }

// Len returns the number of visible sprites.
func (s *Scene) Len() int { return s.n }

// Layer returns band i, highest layer value first.
func (s *Scene) Layer(i int) []*SceneSprite {
	if i < 0 || i >= NumLayers {
		return nil
	}
	return s.layers[i]
}

// Each visits sprites in draw order: bands ascending and, inside a band,
// lowest layer value first.
func (s *Scene) Each(fn func(ss *SceneSprite)) {
	for i := range s.layers {
		band := s.layers[i]
		for j := len(band) - 1; j >= 0; j-- {
			fn(band[j])
		}
	}
}

// Draw renders every sprite into g, then its selection marker if selected.
func (s *Scene) Draw(g Graphics) {
	s.Each(func(ss *SceneSprite) {
		ss.Sprite.Draw(g, ss.Dst)
		if ss.Selected {
			if sel := ss.Sprite.Base().selector; sel != nil {
				sel.DrawSelection(g, ss.Dst)
			}
		}
	})
}

// reclaim empties the scene and returns its wrappers to pool.
func (s *Scene) reclaim(pool []*SceneSprite) []*SceneSprite {
	for i := range s.layers {
		band := s.layers[i]
		for j, ss := range band {
			*ss = SceneSprite{}
			pool = append(pool, ss)
			band[j] = nil
		}
		s.layers[i] = band[:0]
	}
	s.n = 0
	return pool
}

func (s *Scene) add(ss *SceneSprite) {
	band := int(ss.Layer)
	s.layers[band] = append(s.layers[band], ss)
	s.n++
}

func (s *Scene) sortLayers() {
	for i := range s.layers {
		band := s.layers[i]
		if len(band) < 2 {
			continue
		}
		sort.Slice(band, func(a, b int) bool { return band[a].Layer > band[b].Layer })
	}
}

// shrink drops band capacity far above what the band currently uses.
func (s *Scene) shrink() {
	for i := range s.layers {
		band := s.layers[i]
		if cap(band) > 32 && cap(band) > 4*len(band) {
			s.layers[i] = append(make([]*SceneSprite, 0, len(band)*2), band...)
		}
	}
}
