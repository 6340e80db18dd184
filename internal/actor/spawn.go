package actor

import (
	"fmt"
	"math/rand"

	"github.com/l1jgo/sectorsim/internal/data"
	"github.com/l1jgo/sectorsim/internal/scripting"
	"github.com/l1jgo/sectorsim/internal/world"
)

// Spawn adds every sprite of list to z and returns how many were added.
// Scripted groups need engine.
func Spawn(z *world.Zone, list *data.SpawnList, engine *scripting.Engine, rng *rand.Rand) (int, error) {
	n := 0
	for _, g := range list.Groups {
		if g.Kind == data.KindScripted {
			if engine == nil {
				return n, fmt.Errorf("spawn %s: scripted group without a script engine", g.Name)
			}
			if !engine.HasBehaviour(g.Behaviour) {
				return n, fmt.Errorf("spawn %s: no lua function update_%s", g.Name, g.Behaviour)
			}
		}
		look := Appearance{Glyph: glyphOf(g.Glyph), Color: g.Color}
		for range g.Count {
			x := g.Area.X + rng.Intn(g.Area.W)
			y := g.Area.Y + rng.Intn(g.Area.H)
			sp := build(g, x, y, look, engine, rng)
			if err := z.AddSprite(sp); err != nil {
				return n, fmt.Errorf("spawn %s: %w", g.Name, err)
			}
			if g.Listen != "" {
				z.Catalog().Subscribe(world.UserID(g.Listen), sp)
			}
			n++
		}
	}
	return n, nil
}

func build(g data.SpawnGroup, x, y int, look Appearance, engine *scripting.Engine, rng *rand.Rand) world.Sprite {
	switch g.Kind {
	case data.KindMarker:
		return NewMarker(x, y, g.Width, g.Height, g.Layer, look)
	case data.KindScripted:
		return NewScripted(x, y, g.Width, g.Height, g.Layer, engine, g.Behaviour, look)
	}
	vx, vy := velocity(g.Speed, rng)
	if !g.Collide {
		return NewGhost(x, y, g.Width, g.Height, g.Layer, vx, vy, look)
	}
	return NewDrifter(x, y, g.Width, g.Height, g.Layer, vx, vy, look)
}

func velocity(speed int, rng *rand.Rand) (int, int) {
	if speed <= 0 {
		return 0, 0
	}
	for {
		vx, vy := rng.Intn(2*speed+1)-speed, rng.Intn(2*speed+1)-speed
		if vx != 0 || vy != 0 {
			return vx, vy
		}
	}
}
