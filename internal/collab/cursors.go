package collab

import (
	"switchboard/internal/ot"
	"switchboard/pkg/types"
)

// Cursors tracks each connected client's live selection range. Not
// persisted: a fresh Instance load always starts with an empty set.
type Cursors struct {
	byClient map[string]types.CursorSelection
	version  int
}

func NewCursors() *Cursors {
	return &Cursors{byClient: make(map[string]types.CursorSelection)}
}

func (c *Cursors) Update(clientID string, sel types.CursorSelection) {
	c.byClient[clientID] = sel
	c.version++
}

func (c *Cursors) Remove(clientID string) {
	if _, ok := c.byClient[clientID]; !ok {
		return
	}
	delete(c.byClient, clientID)
	c.version++
}

// Get returns the full cursor set if the caller's version is behind,
// otherwise nil, false.
func (c *Cursors) Get(baseVersion int) (map[string]types.CursorSelection, bool) {
	if baseVersion < c.version {
		return c.Snapshot(), true
	}
	return nil, false
}

func (c *Cursors) Snapshot() map[string]types.CursorSelection {
	out := make(map[string]types.CursorSelection, len(c.byClient))
	for k, v := range c.byClient {
		out[k] = v
	}
	return out
}

// MapThrough rebases every live selection through an accepted edit's
// mapping, from with bias +1 and to with bias -1.
func (c *Cursors) MapThrough(mapping ot.Mapping) {
	if mapping.Empty() {
		return
	}
	for id, sel := range c.byClient {
		sel.From = mapping.Map(sel.From, 1)
		sel.To = mapping.Map(sel.To, -1)
		c.byClient[id] = sel
	}
}

func (c *Cursors) Version() int { return c.version }
