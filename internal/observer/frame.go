package observer

import (
	"github.com/l1jgo/sectorsim/internal/actor"
	"github.com/l1jgo/sectorsim/internal/world"
)

// frameCanvas records actor draw calls as draw commands.
type frameCanvas struct {
	cmds []DrawCmd
}

var _ actor.Canvas = (*frameCanvas)(nil)

func (f *frameCanvas) Fill(dst world.Rect, glyph rune, color string) {
	f.cmds = append(f.cmds, DrawCmd{
		X:     dst.X,
		Y:     dst.Y,
		W:     dst.W,
		H:     dst.H,
		Glyph: string(glyph),
		Color: color,
	})
}

// Outline marks the sprite drawn last as selected.
func (f *frameCanvas) Outline(dst world.Rect, _ string) {
	if n := len(f.cmds); n > 0 {
		last := &f.cmds[n-1]
		if last.X == dst.X && last.Y == dst.Y {
			last.Selected = true
		}
	}
}

// buildFrame draws sc into a frame. The caller holds the scene lock.
func buildFrame(sc *world.Scene, f *frameCanvas) Frame {
	f.cmds = f.cmds[:0]
	sc.Draw(f)
	return Frame{
		Type:    MsgFrame,
		Cycle:   sc.Cycle(),
		Bounds:  sc.Bounds(),
		Sprites: f.cmds,
	}
}
