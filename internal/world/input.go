package world

// UserID is an opaque user identifier supplied by the host.
type UserID string

// Mouse buttons as reported by the input collaborator.
type Button int

const (
	ButtonPrimary Button = iota + 1
	ButtonSecondary
	ButtonMiddle
)

// ClickEvent is a completed click. X/Y are world coordinates; LocalX/LocalY
// are the device-local cursor position the camera translated from.
type ClickEvent struct {
	User   UserID
	Button Button
	Count  int
	X, Y   int
	LocalX int
	LocalY int
}

// ButtonEvent is a button press or release.
type ButtonEvent struct {
	User   UserID
	Button Button
	X, Y   int
}

// WheelEvent carries one wheel tick of the given magnitude.
type WheelEvent struct {
	User  UserID
	Delta int
	X, Y  int
}

// KeyAction distinguishes the three key notifications.
type KeyAction int

const (
	KeyDown KeyAction = iota
	KeyUp
	KeyTyped
)

func (a KeyAction) String() string {
	switch a {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	case KeyTyped:
		return "typed"
	}
	return "unknown"
}

// KeyEvent is a keyboard notification. Key is the host's key code; Rune is
// set for typed characters.
type KeyEvent struct {
	User   UserID
	Action KeyAction
	Key    int
	Rune   rune
}

// Input capabilities. A sprite subscribed to a user receives the kinds it
// implements.

type ClickListener interface {
	OnClick(ev ClickEvent)
}

type PressListener interface {
	OnPress(ev ButtonEvent)
}

type ReleaseListener interface {
	OnRelease(ev ButtonEvent)
}

type KeyListener interface {
	OnKey(ev KeyEvent)
}

type WheelListener interface {
	OnWheel(ev WheelEvent)
}
