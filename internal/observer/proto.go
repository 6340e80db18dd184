package observer

import "github.com/l1jgo/sectorsim/internal/world"

// Version is the observer wire protocol version.
const Version = 1

// Client message types.
const (
	MsgHello   = "HELLO"
	MsgMove    = "MOVE"
	MsgResize  = "RESIZE"
	MsgClick   = "CLICK"
	MsgPress   = "PRESS"
	MsgRelease = "RELEASE"
	MsgWheel   = "WHEEL"
	MsgKey     = "KEY"
	MsgFrame   = "FRAME"
)

// ClientMsg is every message a client sends. HELLO must come first and
// carries the user, the viewport and the token.
type ClientMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version,omitempty"`
	User            string `json:"user,omitempty"`
	Token           string `json:"token,omitempty"`
	Compress        bool   `json:"compress,omitempty"`

	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	W      int    `json:"w,omitempty"`
	H      int    `json:"h,omitempty"`
	Button int    `json:"button,omitempty"`
	Count  int    `json:"count,omitempty"`
	Delta  int    `json:"delta,omitempty"`
	Action string `json:"action,omitempty"` // KEY: down, up, typed
	Key    int    `json:"key,omitempty"`
	Rune   string `json:"rune,omitempty"`
}

// Frame is one rendered scene.
type Frame struct {
	Type    string     `json:"type"`
	Cycle   uint64     `json:"cycle"`
	Bounds  world.Rect `json:"bounds"`
	Sprites []DrawCmd  `json:"sprites"`
}

// DrawCmd is one sprite in draw order. The rectangle is viewport
// relative.
type DrawCmd struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	W        int    `json:"w"`
	H        int    `json:"h"`
	Glyph    string `json:"glyph"`
	Color    string `json:"color,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// Status is served on the status endpoint.
type Status struct {
	ProtocolVersion int    `json:"protocol_version"`
	Zone            string `json:"zone"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Cycle           uint64 `json:"cycle"`
	ZoneMS          int64  `json:"zone_ms"`
	Sprites         int    `json:"sprites"`
	Cameras         int    `json:"cameras"`
	Sessions        int64  `json:"sessions"`
	Paused          bool   `json:"paused"`
}
