package billing

import "github.com/warp/lease-settlement/generic"

// Cursor walks a time-ordered sequence of collection events. An event the
// cursor has moved past is never revisited; an event it is still on may
// carry a remainder over to the next installment.
type Cursor struct {
	events []generic.CollectionEvent
	pos    int
}

// NewCursor takes ownership of events. Callers that need their slice intact
// should pass a copy.
func NewCursor(events []generic.CollectionEvent) *Cursor {
	return &Cursor{events: events}
}

// Current returns the event being consumed, skipping exhausted or
// non-positive ones. ok is false once every event is used up.
func (c *Cursor) Current() (ev *generic.CollectionEvent, ok bool) {
	for c.pos < len(c.events) {
		if c.events[c.pos].Amount.IsPositive() {
			return &c.events[c.pos], true
		}
		c.pos++
	}
	return nil, false
}

// Advance moves past the current event.
func (c *Cursor) Advance() {
	if c.pos < len(c.events) {
		c.pos++
	}
}

func (c *Cursor) Done() bool {
	_, ok := c.Current()
	return !ok
}

// Remaining returns the events not yet exhausted, including a partially
// consumed current event.
func (c *Cursor) Remaining() []generic.CollectionEvent {
	var out []generic.CollectionEvent
	for _, ev := range c.events[c.pos:] {
		if ev.Amount.IsPositive() {
			out = append(out, ev)
		}
	}
	return out
}
