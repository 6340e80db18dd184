package world

import (
	"sync"
	"sync/atomic"

	"github.com/l1jgo/sectorsim/internal/core/event"
)

type requestKind int

const (
	reqSubscribe requestKind = iota
	reqUnsubscribe
	reqCheckout
	reqRelease
	reqDrop
)

type catalogRequest struct {
	kind   requestKind
	user   UserID
	sprite Sprite
}

// listenerEntry is one user's subscriber list. live is what delivery walks:
// the subscriber list itself, or an empty stand-in while the zone is paused.
type listenerEntry struct {
	subs      []Sprite
	live      []Sprite
	checkouts int
}

// Catalog routes user input to the sprites listening for that user.
//
// Subscriptions and checkouts are requests queued from any goroutine and
// applied by Deliver before any event goes out, so a hook may subscribe or
// unsubscribe while delivery is walking the lists. Events are queued per
// kind and delivered in batches: clicks, presses, releases, keys, wheel.
type Catalog struct {
	reqMu    sync.Mutex
	requests []catalogRequest
	spare    []catalogRequest

	entMu   sync.RWMutex // written only by Deliver
	entries map[UserID]*listenerEntry

	suspend   atomic.Bool
	suspended bool // Deliver's view of suspend

	clicks   *event.Queue[ClickEvent]
	presses  *event.Queue[ButtonEvent]
	releases *event.Queue[ButtonEvent]
	keys     *event.Queue[KeyEvent]
	wheels   *event.Queue[WheelEvent]
}

func NewCatalog() *Catalog {
	return &Catalog{
		entries:  make(map[UserID]*listenerEntry),
		clicks:   event.NewQueue[ClickEvent](16),
		presses:  event.NewQueue[ButtonEvent](16),
		releases: event.NewQueue[ButtonEvent](16),
		keys:     event.NewQueue[KeyEvent](32),
		wheels:   event.NewQueue[WheelEvent](8),
	}
}

func (c *Catalog) request(r catalogRequest) {
	c.reqMu.Lock()
	c.requests = append(c.requests, r)
	c.reqMu.Unlock()
}

// Subscribe asks for sp to receive user's input from the next delivery on.
func (c *Catalog) Subscribe(user UserID, sp Sprite) {
	c.request(catalogRequest{kind: reqSubscribe, user: user, sprite: sp})
}

func (c *Catalog) Unsubscribe(user UserID, sp Sprite) {
	c.request(catalogRequest{kind: reqUnsubscribe, user: user, sprite: sp})
}

// Checkout keeps user's entry alive until the matching Release, even with
// no subscribers. Cameras hold one checkout each.
func (c *Catalog) Checkout(user UserID) {
	c.request(catalogRequest{kind: reqCheckout, user: user})
}

func (c *Catalog) Release(user UserID) {
	c.request(catalogRequest{kind: reqRelease, user: user})
}

// drop removes sp from every user's list. Used when the zone evicts sp.
func (c *Catalog) drop(sp Sprite) {
	c.request(catalogRequest{kind: reqDrop, sprite: sp})
}

func (c *Catalog) QueueClick(ev ClickEvent)    { c.clicks.Push(ev) }
func (c *Catalog) QueuePress(ev ButtonEvent)   { c.presses.Push(ev) }
func (c *Catalog) QueueRelease(ev ButtonEvent) { c.releases.Push(ev) }
func (c *Catalog) QueueKey(ev KeyEvent)        { c.keys.Push(ev) }
func (c *Catalog) QueueWheel(ev WheelEvent)    { c.wheels.Push(ev) }

// Suspend swaps every subscriber list for an empty stand-in at the next
// Deliver. The real lists are kept and restored by Resume.
func (c *Catalog) Suspend() { c.suspend.Store(true) }
func (c *Catalog) Resume()  { c.suspend.Store(false) }

// Listeners returns a copy of user's subscribers.
func (c *Catalog) Listeners(user UserID) []Sprite {
	c.entMu.RLock()
	defer c.entMu.RUnlock()
	e := c.entries[user]
	if e == nil {
		return nil
	}
	return append([]Sprite(nil), e.subs...)
}

// Checkouts returns user's checkout count.
func (c *Catalog) Checkouts(user UserID) int {
	c.entMu.RLock()
	defer c.entMu.RUnlock()
	if e := c.entries[user]; e != nil {
		return e.checkouts
	}
	return 0
}

// Has reports whether user currently has an entry.
func (c *Catalog) Has(user UserID) bool {
	c.entMu.RLock()
	defer c.entMu.RUnlock()
	_, ok := c.entries[user]
	return ok
}

// Len returns the number of user entries.
func (c *Catalog) Len() int {
	c.entMu.RLock()
	defer c.entMu.RUnlock()
	return len(c.entries)
}

// Deliver applies queued requests and then fans every queued event out to
// the current subscribers of its user. Single consumer: the zone leader.
func (c *Catalog) Deliver() {
	c.apply()

	for _, ev := range c.clicks.Swap() {
		for _, sp := range c.live(ev.User) {
			if l, ok := sp.(ClickListener); ok && !sp.Base().deleted {
				l.OnClick(ev)
			}
		}
	}
	for _, ev := range c.presses.Swap() {
		for _, sp := range c.live(ev.User) {
			if l, ok := sp.(PressListener); ok && !sp.Base().deleted {
				l.OnPress(ev)
			}
		}
	}
	for _, ev := range c.releases.Swap() {
		for _, sp := range c.live(ev.User) {
			if l, ok := sp.(ReleaseListener); ok && !sp.Base().deleted {
				l.OnRelease(ev)
			}
		}
	}
	for _, ev := range c.keys.Swap() {
		for _, sp := range c.live(ev.User) {
			if l, ok := sp.(KeyListener); ok && !sp.Base().deleted {
				l.OnKey(ev)
			}
		}
	}
	for _, ev := range c.wheels.Swap() {
		for _, sp := range c.live(ev.User) {
			if l, ok := sp.(WheelListener); ok && !sp.Base().deleted {
				l.OnWheel(ev)
			}
		}
	}
}

func (c *Catalog) live(user UserID) []Sprite {
	if e := c.entries[user]; e != nil {
		return e.live
	}
	return nil
}

func (c *Catalog) apply() {
	c.reqMu.Lock()
	reqs := c.requests
	c.requests = c.spare[:0]
	c.reqMu.Unlock()

	suspend := c.suspend.Load()
	if len(reqs) == 0 && suspend == c.suspended {
		c.spare = reqs[:0]
		return
	}

	c.entMu.Lock()
	for _, r := range reqs {
		switch r.kind {
		case reqSubscribe:
			e := c.entry(r.user)
			if !containsSprite(e.subs, r.sprite) {
				e.subs = append(e.subs, r.sprite)
			}
		case reqUnsubscribe:
			if e := c.entries[r.user]; e != nil {
				e.subs = removeOrdered(e.subs, r.sprite)
			}
		case reqCheckout:
			c.entry(r.user).checkouts++
		case reqRelease:
			if e := c.entries[r.user]; e != nil && e.checkouts > 0 {
				e.checkouts--
			}
		case reqDrop:
			for _, e := range c.entries {
				e.subs = removeOrdered(e.subs, r.sprite)
			}
		}
	}
	c.suspended = suspend
	for user, e := range c.entries {
		if e.checkouts == 0 && len(e.subs) == 0 {
			delete(c.entries, user)
			continue
		}
		if c.suspended {
			e.live = nil
		} else {
			e.live = e.subs
		}
	}
	c.entMu.Unlock()

	for i := range reqs {
		reqs[i] = catalogRequest{}
	}
	c.spare = reqs[:0]
}

func (c *Catalog) entry(user UserID) *listenerEntry {
	e := c.entries[user]
	if e == nil {
		e = &listenerEntry{}
		c.entries[user] = e
	}
	return e
}

// trim releases queue capacity left over from input bursts.
func (c *Catalog) trim() {
	c.clicks.Trim(16)
	c.presses.Trim(16)
	c.releases.Trim(16)
	c.keys.Trim(32)
	c.wheels.Trim(8)
	c.reqMu.Lock()
	if cap(c.spare) > 64 {
		c.spare = nil
	}
	c.reqMu.Unlock()
}

func containsSprite(list []Sprite, sp Sprite) bool {
	for _, cur := range list {
		if cur == sp {
			return true
		}
	}
	return false
}

// removeOrdered removes sp keeping subscription order, which is delivery
// order.
func removeOrdered(list []Sprite, sp Sprite) []Sprite {
	for i, cur := range list {
		if cur == sp {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			return list[:len(list)-1]
		}
	}
	return list
}
