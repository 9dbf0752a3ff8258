package collab

import (
	"switchboard/internal/ot"
	"switchboard/pkg/types"
)

// Comments is the auxiliary annotation state attached to a Document
// Instance. It carries its own monotonically increasing version and
// is only ever touched while the owning Instance holds its lock.
type Comments struct {
	comments []types.Comment
	events   []types.CommentEvent
	version  int
}

func NewComments() *Comments {
	return &Comments{}
}

// MapThrough walks comments back-to-front, rebasing from with bias +1 and
// to with bias -1. A comment collapsed by the edit (from >= to) is
// dropped silently — no delete event is synthesised, matching the source
// behaviour of treating collapse as a side effect of the edit rather than
// an explicit user action.
func (c *Comments) MapThrough(mapping ot.Mapping) {
	if mapping.Empty() {
		return
	}
	for i := len(c.comments) - 1; i >= 0; i-- {
		cm := &c.comments[i]
		from := mapping.Map(cm.From, 1)
		to := mapping.Map(cm.To, -1)
		if from >= to {
			c.comments = append(c.comments[:i], c.comments[i+1:]...)
			continue
		}
		cm.From, cm.To = from, to
	}
}

// Create appends a new live comment and records a create event.
func (c *Comments) Create(comment types.Comment) {
	c.comments = append(c.comments, comment)
	c.events = append(c.events, types.CommentEvent{Type: "create", ID: comment.ID})
	c.version++
}

// Delete removes a live comment by id, recording a delete event. Deleting
// an id that is not live is a silent no-op — not-found is never fatal.
func (c *Comments) Delete(id string) {
	for i, cm := range c.comments {
		if cm.ID == id {
			c.comments = append(c.comments[:i], c.comments[i+1:]...)
			break
		}
	}
	c.events = append(c.events, types.CommentEvent{Type: "delete", ID: id})
	c.version++
}

func (c *Comments) find(id string) (types.Comment, bool) {
	for _, cm := range c.comments {
		if cm.ID == id {
			return cm, true
		}
	}
	return types.Comment{}, false
}

// EventsAfter replays events[startIndex:]. A delete is emitted verbatim; a
// create is re-resolved against the live comment so a comment created and
// then deleted entirely within the window is omitted rather than
// reported.
func (c *Comments) EventsAfter(startIndex int) []types.CommentEvent {
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(c.events) {
		return nil
	}
	out := make([]types.CommentEvent, 0, len(c.events)-startIndex)
	for _, ev := range c.events[startIndex:] {
		if ev.Type == "delete" {
			out = append(out, ev)
			continue
		}
		if cm, ok := c.find(ev.ID); ok {
			out = append(out, types.CommentEvent{Type: "create", ID: cm.ID, Text: cm.Text, From: cm.From, To: cm.To})
		}
	}
	return out
}

func (c *Comments) Version() int { return c.version }

// Snapshot returns a defensive copy of the live comments for persistence
// or for sending a fresh join payload.
func (c *Comments) Snapshot() []types.Comment {
	out := make([]types.Comment, len(c.comments))
	copy(out, c.comments)
	return out
}

// Restore replaces live state from a persisted snapshot, used when the
// Instance Registry rehydrates an Instance.
func (c *Comments) Restore(comments []types.Comment) {
	c.comments = append([]types.Comment(nil), comments...)
	c.events = nil
	c.version = 0
}
