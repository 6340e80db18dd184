package system

import (
	"time"

	coresys "github.com/l1jgo/sectorsim/internal/core/system"
	"github.com/l1jgo/sectorsim/internal/scripting"
	"github.com/l1jgo/sectorsim/internal/world"
)

// ScriptSystem calls the Lua on_cycle hook once per cycle. Phase 1 (Script).
type ScriptSystem struct {
	zone   *world.Zone
	engine *scripting.Engine
}

func NewScriptSystem(z *world.Zone, engine *scripting.Engine) *ScriptSystem {
	return &ScriptSystem{zone: z, engine: engine}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseScript }

func (s *ScriptSystem) Update(_ time.Duration) {
	s.engine.OnCycle(s.zone.Cycle(), s.zone.ZoneTime().Milliseconds())
}
