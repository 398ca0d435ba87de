// SPDX-License-Identifier: Unlicense OR MIT

package event

// Hub is the single channel every listener, timer and service goroutine
// sends into, and the daemon's consumer loop receives from. It is the
// one serialization point for the whole process: all device input,
// focus changes, ticks, timers and lifecycle requests arrive here in
// the order they were sent.
type Hub struct {
	c chan Event
}

// NewHub allocates a Hub with the given channel capacity. A capacity of
// a few dozen is enough to absorb a burst of input events between
// consumer iterations without forcing producers to block.
func NewHub(capacity int) *Hub {
	return &Hub{c: make(chan Event, capacity)}
}

// Send enqueues ev, blocking only if the channel is full. Producers never
// block longer than a single send: the consumer loop drains continuously,
// so a full channel means the daemon is falling behind, not stuck.
func (h *Hub) Send(ev Event) {
	h.c <- ev
}

// TrySend enqueues ev without blocking, reporting whether it was
// accepted. Used by producers that would rather drop an event (e.g. a
// tick that arrives while the channel is momentarily full) than stall.
func (h *Hub) TrySend(ev Event) bool {
	select {
	case h.c <- ev:
		return true
	default:
		return false
	}
}

// Events exposes the receive side for the daemon's consumer loop. Only
// one goroutine may range over it.
func (h *Hub) Events() <-chan Event {
	return h.c
}

// Close shuts down the send side. Called once, by the goroutine that owns
// Hub's lifecycle, after every producer has been told to stop. Sending on
// a closed Hub panics, matching channel semantics generally: callers must
// not send after Close.
func (h *Hub) Close() {
	close(h.c)
}
