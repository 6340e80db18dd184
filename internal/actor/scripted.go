package actor

import (
	"sync/atomic"

	"github.com/l1jgo/sectorsim/internal/scripting"
	"github.com/l1jgo/sectorsim/internal/world"
	"go.uber.org/zap"
)

// Scripted delegates its per-cycle behaviour to a Lua update_<behaviour>
// function.
type Scripted struct {
	world.BaseSprite
	Appearance

	engine    *scripting.Engine
	behaviour string
	vx, vy    int
	hits      atomic.Int32
}

func NewScripted(x, y, w, h int, layer float64, engine *scripting.Engine, behaviour string, look Appearance) *Scripted {
	return &Scripted{
		BaseSprite: world.NewBaseSprite(x, y, w, h, layer),
		Appearance: look,
		engine:     engine,
		behaviour:  behaviour,
	}
}

func (s *Scripted) Behaviour() string { return s.behaviour }

func (s *Scripted) Draw(g world.Graphics, dst world.Rect) { s.draw(g, dst) }

func (s *Scripted) Collide(world.Sprite) { s.hits.Add(1) }

func (s *Scripted) Update() {
	z := s.Zone()
	step := s.engine.Behave(s.behaviour, scripting.SpriteState{
		ID:    uint64(s.ID()),
		X:     s.X(),
		Y:     s.Y(),
		W:     s.Width(),
		H:     s.Height(),
		Layer: s.Layer(),
		VX:    s.vx,
		VY:    s.vy,
		Hits:  int(s.hits.Swap(0)),
		Cycle: z.Cycle(),
	})
	if step.Delete {
		if err := z.DeleteSprite(s); err != nil {
			z.Logger().Warn("scripted sprite delete failed",
				zap.String("behaviour", s.behaviour),
				zap.Uint64("sprite", uint64(s.ID())),
				zap.Error(err),
			)
		}
		return
	}
	s.vx, s.vy = step.VX, step.VY
	s.SetLayer(step.Layer)
	s.Move(s.vx, s.vy)
}
