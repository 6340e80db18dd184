// Package term renders camera scenes to a terminal through tcell.
package term

import (
	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/sectorsim/internal/actor"
	"github.com/l1jgo/sectorsim/internal/world"
)

// Canvas draws actors onto a tcell screen. One cell covers Scale world
// units on each axis. Row 0 is kept for the status line.
type Canvas struct {
	screen tcell.Screen
	scale  int
}

var _ actor.Canvas = (*Canvas)(nil)

func NewCanvas(screen tcell.Screen, scale int) *Canvas {
	return &Canvas{screen: screen, scale: max(scale, 1)}
}

func (c *Canvas) Scale() int { return c.scale }

// cells maps a viewport rectangle to the cell range it covers, clipped to
// the screen below the status line. ok is false when nothing is visible.
func (c *Canvas) cells(dst world.Rect) (x0, y0, x1, y1 int, ok bool) {
	w, h := c.screen.Size()
	x0 = floorDiv(dst.X, c.scale)
	y0 = floorDiv(dst.Y, c.scale) + 1
	x1 = floorDiv(dst.X+dst.W-1, c.scale)
	y1 = floorDiv(dst.Y+dst.H-1, c.scale) + 1
	x0, y0 = max(x0, 0), max(y0, 1)
	x1, y1 = min(x1, w-1), min(y1, h-1)
	return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
}

func (c *Canvas) Fill(dst world.Rect, glyph rune, color string) {
	x0, y0, x1, y1, ok := c.cells(dst)
	if !ok {
		return
	}
	style := styleFor(color)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c.screen.SetContent(x, y, glyph, nil, style)
		}
	}
}

// Outline reverses the border cells of dst.
func (c *Canvas) Outline(dst world.Rect, color string) {
	x0, y0, x1, y1, ok := c.cells(dst)
	if !ok {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if x != x0 && x != x1 && y != y0 && y != y1 {
				continue
			}
			r, comb, style, _ := c.screen.GetContent(x, y)
			c.screen.SetContent(x, y, r, comb, style.Reverse(true).Foreground(tcell.GetColor(color)))
		}
	}
}

// Text writes s at row y starting at column x.
func (c *Canvas) Text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		c.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func styleFor(color string) tcell.Style {
	if color == "" {
		return tcell.StyleDefault
	}
	return tcell.StyleDefault.Foreground(tcell.GetColor(color))
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
