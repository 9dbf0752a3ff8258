// Package dispatcher subscribes to the transport and translates named
// wire messages into calls on Room and the Instance Registry. A Session
// holds the mutable per-connection state (currentRoom, member).
package dispatcher

import (
	"encoding/json"

	"switchboard/internal/collab"
	"switchboard/internal/ot"
	"switchboard/pkg/types"
)

// inbound is the envelope every wire message is decoded into first; only
// the fields relevant to Type are then populated from Data.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinData struct {
	Namespace string `json:"namespace"`
	Lesson    string `json:"lesson"`
	UserID    string `json:"userID"`
}

type progressData struct {
	Progress float64 `json:"progress"`
}

type eventData struct {
	Target string                 `json:"target"`
	Fields map[string]interface{} `json:"fields"`
}

type chatNameData struct {
	Name string `json:"name"`
}

type chatMessageData struct {
	Name      string `json:"name"`
	Body      string `json:"body"`
	Anonymous bool   `json:"anonymous"`
}

type inviteData struct {
	To   string                 `json:"to"`
	Data map[string]interface{} `json:"data"`
}

type groupsData struct {
	Groups []wireGroup `json:"groups"`
}

type wireGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type questionData struct {
	Email string `json:"email"`
	Value string `json:"value"`
}

type joinEditingData struct {
	DocID string `json:"docID"`
}

type wireOp struct {
	Kind string `json:"kind"` // "retain" | "insert" | "delete"
	N    int    `json:"n,omitempty"`
	Text string `json:"text,omitempty"`
}

type wireStep struct {
	Ops []wireOp `json:"ops"`
}

func (w wireStep) toStep() ot.Step {
	ops := make([]ot.Op, 0, len(w.Ops))
	for _, op := range w.Ops {
		switch op.Kind {
		case "retain":
			ops = append(ops, ot.Retain(op.N))
		case "insert":
			ops = append(ops, ot.Insert(op.Text))
		case "delete":
			ops = append(ops, ot.Delete(op.N))
		}
	}
	return ot.Step{Ops: ops}
}

// fromStep is toStep's inverse, used to encode an already-applied ot.Step
// back into the JSON shape send_collaborative_editing_events used, so a
// poll reply round-trips through the same wire format a client sent.
func fromStep(s ot.Step) wireStep {
	ops := make([]wireOp, 0, len(s.Ops))
	for _, op := range s.Ops {
		switch op.Kind {
		case ot.OpRetain:
			ops = append(ops, wireOp{Kind: "retain", N: op.N})
		case ot.OpInsert:
			ops = append(ops, wireOp{Kind: "insert", Text: op.Text})
		case ot.OpDelete:
			ops = append(ops, wireOp{Kind: "delete", N: op.N})
		}
	}
	return wireStep{Ops: ops}
}

type sendEditingData struct {
	DocID         string             `json:"docID"`
	Version       int                `json:"version"`
	Steps         []wireStep         `json:"steps"`
	CommentEvents []wireCommentEvent `json:"commentEvents"`
	ClientID      string             `json:"clientID"`
}

type wireCommentEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
	Text string `json:"text"`
}

type pollEditingData struct {
	DocID          string `json:"docID"`
	Version        int    `json:"version"`
	CommentVersion int    `json:"commentVersion"`
	CursorVersion  int    `json:"cursorVersion"`
}

type cursorData struct {
	DocID    string `json:"docID"`
	ClientID string `json:"clientID"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// wireEventsDiff is poll_collaborative_editing_events' reply shape: the
// JSON-friendly mirror of collab.EventsDiff, encoding Steps the same way
// send_collaborative_editing_events' request steps are encoded.
type wireEventsDiff struct {
	Version        int                             `json:"version"`
	Steps          []wireStep                      `json:"steps"`
	CommentEvents  []wireCommentEvent              `json:"commentEvents"`
	CommentVersion int                             `json:"commentVersion"`
	Cursors        map[string]types.CursorSelection `json:"cursors,omitempty"`
	CursorVersion  int                             `json:"cursorVersion"`
	UserCount      int                             `json:"userCount"`
}

func fromEventsDiff(d *collab.EventsDiff) wireEventsDiff {
	steps := make([]wireStep, 0, len(d.Steps))
	for _, s := range d.Steps {
		steps = append(steps, fromStep(s))
	}
	commentEvents := make([]wireCommentEvent, 0, len(d.CommentEvents))
	for _, ce := range d.CommentEvents {
		commentEvents = append(commentEvents, wireCommentEvent{Type: ce.Type, ID: ce.ID, From: ce.From, To: ce.To, Text: ce.Text})
	}
	return wireEventsDiff{
		Version:        d.Version,
		Steps:          steps,
		CommentEvents:  commentEvents,
		CommentVersion: d.CommentVersion,
		Cursors:        d.Cursors,
		CursorVersion:  d.CursorVersion,
		UserCount:      d.UserCount,
	}
}
