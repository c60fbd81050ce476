package engine

import "github.com/axiomex/clobengine/internal/common"

// Events returns the channel an external market-data consumer (see
// internal/feed) drains. The engine never blocks on it — see publish.
func (e *Engine) Events() <-chan common.Event { return e.events }

// EventOverflowCount reports how many events were dropped because the
// broadcast channel was full when the engine tried to publish onto it.
// This is the chosen overflow policy (spec §9 "Event emission" lists
// drop-oldest, an overflow counter, or submission-side backpressure as
// equally valid options): the core never applies backpressure to a
// caller's add_*/cancel/modify, and never blocks on the broadcast
// channel, so a slow external consumer only ever costs itself missed
// broadcast events — the synchronous per-call event list a submitter
// receives is never affected.
func (e *Engine) EventOverflowCount() uint64 { return e.eventOverflow.Load() }

// publish stamps ev with the next sequence number, appends it to the
// synchronous result list the caller will receive, and fans it out to the
// broadcast channel without blocking.
func (e *Engine) publish(out []common.Event, ev common.Event) []common.Event {
	ev.Seq = e.seq.Add(1)
	out = append(out, ev)

	select {
	case e.events <- ev:
	default:
		e.eventOverflow.Add(1)
	}
	return out
}
