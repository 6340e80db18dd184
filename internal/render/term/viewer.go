package term

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/sectorsim/internal/world"
	"go.uber.org/zap"
)

// Viewer shows one camera in a terminal. Arrow keys pan, Tab pauses the
// zone, Esc quits; mouse and typed keys become camera input.
type Viewer struct {
	screen   tcell.Screen
	zone     *world.Zone
	cam      *world.Camera
	canvas   *Canvas
	log      *zap.Logger
	interval time.Duration

	buttons tcell.ButtonMask
	last    uint64
	drawn   bool
	frames  int
	skipped int
}

// NewViewer creates a camera for user sized to the screen. The screen must
// be initialised; the camera joins z at the next cycle.
func NewViewer(screen tcell.Screen, z *world.Zone, user world.UserID, scale, fps int, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if fps <= 0 {
		fps = 30
	}
	v := &Viewer{
		screen:   screen,
		zone:     z,
		canvas:   NewCanvas(screen, scale),
		log:      log.With(zap.String("component", "terminal"), zap.String("user", string(user))),
		interval: time.Second / time.Duration(fps),
	}
	w, h := v.viewSize()
	v.cam = world.NewCamera(user, world.Rect{W: w, H: h})
	if err := z.AddCamera(v.cam); err != nil {
		return nil, fmt.Errorf("terminal camera: %w", err)
	}
	screen.EnableMouse()
	return v, nil
}

func (v *Viewer) Camera() *world.Camera { return v.cam }

// Frames returns frames drawn and ticks skipped because the scene was busy.
func (v *Viewer) Frames() (drawn, skipped int) { return v.frames, v.skipped }

// Close detaches the camera.
func (v *Viewer) Close() {
	if err := v.zone.RemoveCamera(v.cam); err != nil {
		v.log.Debug("terminal camera already detached", zap.Error(err))
	}
}

// Run draws and handles input until Esc, Ctrl-C or ctx ends.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if v.handle(ev) {
				return nil
			}
		case <-ticker.C:
			v.draw()
		}
	}
}

func (v *Viewer) viewSize() (int, int) {
	w, h := v.screen.Size()
	s := v.canvas.Scale()
	return max(w, 1) * s, max(h-1, 1) * s
}

// handle applies one terminal event. It returns true to quit.
func (v *Viewer) handle(ev tcell.Event) bool {
	s := v.canvas.Scale()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		b := v.cam.Bounds()
		step := max(b.W/8, s)
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyLeft:
			v.cam.Move(b.X-step, b.Y)
		case tcell.KeyRight:
			v.cam.Move(b.X+step, b.Y)
		case tcell.KeyUp:
			v.cam.Move(b.X, b.Y-step)
		case tcell.KeyDown:
			v.cam.Move(b.X, b.Y+step)
		case tcell.KeyTab:
			if !v.zone.Pause() {
				v.zone.Resume()
			}
		case tcell.KeyRune:
			v.cam.KeyTyped(ev.Rune())
		default:
			v.cam.KeyDown(int(ev.Key()))
		}
	case *tcell.EventMouse:
		cx, cy := ev.Position()
		x, y := cx*s, (cy-1)*s
		btn := ev.Buttons()
		pressed := btn &^ v.buttons
		released := v.buttons &^ btn
		v.buttons = btn & (tcell.Button1 | tcell.Button2 | tcell.Button3)
		for _, m := range []struct {
			mask tcell.ButtonMask
			b    world.Button
		}{
			{tcell.Button1, world.ButtonPrimary},
			{tcell.Button2, world.ButtonSecondary},
			{tcell.Button3, world.ButtonMiddle},
		} {
			if pressed&m.mask != 0 {
				v.cam.Press(m.b, x, y)
				v.cam.Click(m.b, 1, x, y)
			}
			if released&m.mask != 0 {
				v.cam.Release(m.b, x, y)
			}
		}
		if btn&tcell.WheelUp != 0 {
			v.cam.Wheel(-1, x, y)
		}
		if btn&tcell.WheelDown != 0 {
			v.cam.Wheel(1, x, y)
		}
	case *tcell.EventResize:
		w, h := v.viewSize()
		v.cam.Resize(w, h)
		v.screen.Sync()
		v.drawn = false
	}
	return false
}

// draw renders the camera's newest scene. A scene still held elsewhere is
// skipped until the next tick.
func (v *Viewer) draw() bool {
	sc := v.cam.LockScene()
	if sc == nil {
		v.skipped++
		return false
	}
	if v.drawn && sc.Cycle() == v.last {
		sc.Unlock()
		return false
	}
	v.screen.Clear()
	sc.Draw(v.canvas)
	v.last, v.drawn = sc.Cycle(), true
	n, b := sc.Len(), sc.Bounds()
	sc.Unlock()

	status := fmt.Sprintf(" cycle %d  zone %v  view %d,%d  sprites %d/%d", v.last,
		v.zone.ZoneTime().Truncate(time.Millisecond), b.X, b.Y, n, v.zone.SpriteCount())
	if v.zone.Paused() {
		status += "  [paused]"
	}
	v.canvas.Text(0, 0, status, tcell.StyleDefault.Reverse(true))
	v.screen.Show()
	v.frames++
	return true
}
