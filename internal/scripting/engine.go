package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for sprite behaviour scripts.
// Sprites update on many workers, so every call into the VM holds mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger

	errors int
	strict bool
}

// ErrNoBehaviour is reported when update_<behaviour> is not defined.
var ErrNoBehaviour = errors.New("behaviour not defined")

// ScriptError is the panic value of a failed script call in strict mode.
type ScriptError struct {
	Func string
	Err  error
}

func (e *ScriptError) Error() string { return fmt.Sprintf("lua %s: %v", e.Func, e.Err) }
func (e *ScriptError) Unwrap() error { return e.Err }

// SpriteState is the view of a sprite passed to update_<behaviour>.
type SpriteState struct {
	ID     uint64
	X, Y   int
	W, H   int
	Layer  float64
	VX, VY int
	Hits   int // collisions since the last update
	Cycle  uint64
}

// Step is what an update_<behaviour> function returns. Nil fields in the
// returned table leave the value unchanged.
type Step struct {
	VX, VY int
	Layer  float64
	Delete bool
}

// NewEngine creates a Lua engine and loads all scripts from scriptsDir.
// A missing directory yields an engine with no behaviours.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.loadDir(scriptsDir); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source, typically to define behaviours.
func (e *Engine) LoadString(name, src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.mu.Lock()
	e.vm.Close()
	e.mu.Unlock()
}

// HasBehaviour reports whether update_<name> is defined.
func (e *Engine) HasBehaviour(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal("update_" + name).(*lua.LFunction)
	return ok
}

// Errors returns how many script calls have failed.
func (e *Engine) Errors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors
}

// SetStrict makes failed script calls panic with a *ScriptError after they
// are logged, so a hook running on a processor worker faults the zone.
func (e *Engine) SetStrict(strict bool) {
	e.mu.Lock()
	e.strict = strict
	e.mu.Unlock()
}

// fail records a failed call. Runs with mu held.
func (e *Engine) fail(fn string, err error, fields ...zap.Field) {
	e.errors++
	e.log.Error("lua call failed", append(fields, zap.String("func", fn), zap.Error(err))...)
	if e.strict {
		panic(&ScriptError{Func: fn, Err: err})
	}
}

// Behave calls update_<behaviour>(self). On a missing function or a
// script error the sprite keeps its current velocity and layer, unless the
// engine is strict.
func (e *Engine) Behave(behaviour string, s SpriteState) Step {
	keep := Step{VX: s.VX, VY: s.VY, Layer: s.Layer}

	e.mu.Lock()
	defer e.mu.Unlock()

	name := "update_" + behaviour
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.fail(name, ErrNoBehaviour)
		return keep
	}

	self := e.vm.NewTable()
	self.RawSetString("id", lua.LNumber(s.ID))
	self.RawSetString("x", lua.LNumber(s.X))
	self.RawSetString("y", lua.LNumber(s.Y))
	self.RawSetString("w", lua.LNumber(s.W))
	self.RawSetString("h", lua.LNumber(s.H))
	self.RawSetString("layer", lua.LNumber(s.Layer))
	self.RawSetString("vx", lua.LNumber(s.VX))
	self.RawSetString("vy", lua.LNumber(s.VY))
	self.RawSetString("hits", lua.LNumber(s.Hits))
	self.RawSetString("cycle", lua.LNumber(s.Cycle))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, self); err != nil {
		e.fail(name, err, zap.Uint64("sprite", s.ID))
		return keep
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		// Returning nothing keeps the sprite as it is.
		return keep
	}
	out := keep
	if v, ok := rt.RawGetString("vx").(lua.LNumber); ok {
		out.VX = int(v)
	}
	if v, ok := rt.RawGetString("vy").(lua.LNumber); ok {
		out.VY = int(v)
	}
	if v, ok := rt.RawGetString("layer").(lua.LNumber); ok {
		out.Layer = float64(v)
	}
	out.Delete = rt.RawGetString("delete") == lua.LTrue
	return out
}

// OnCycle calls the optional global on_cycle(cycle, zone_ms).
func (e *Engine) OnCycle(cycle uint64, zoneMS int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("on_cycle")
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(cycle), lua.LNumber(zoneMS)); err != nil {
		e.fail("on_cycle", err, zap.Uint64("cycle", cycle))
	}
}

// Global reads a numeric global, mostly for tests and tools.
func (e *Engine) Global(name string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vm.GetGlobal(name).(lua.LNumber)
	return float64(v), ok
}

// luaLog backs the script-side log(msg) function. Runs with mu held.
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
