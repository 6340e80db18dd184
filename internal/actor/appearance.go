// Package actor holds the sprite types the simulator spawns from data.
package actor

import "github.com/l1jgo/sectorsim/internal/world"

// Canvas is implemented by renderers that can draw actors. Actors ignore
// any other Graphics value.
type Canvas interface {
	Fill(dst world.Rect, glyph rune, color string)
	Outline(dst world.Rect, color string)
}

// Appearance is how an actor is drawn.
type Appearance struct {
	Glyph rune
	Color string
}

func (a Appearance) draw(g world.Graphics, dst world.Rect) {
	if c, ok := g.(Canvas); ok {
		c.Fill(dst, a.Glyph, a.Color)
	}
}

// glyphOf returns the first rune of s, or '*' for an empty string.
func glyphOf(s string) rune {
	for _, r := range s {
		return r
	}
	return '*'
}
