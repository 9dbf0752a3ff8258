// Package ot implements the small operational-transform primitives the
// collaborative document needs: applying a client's step to the
// authoritative text, and rebasing auxiliary positions (comments, cursors)
// through the step maps produced by accepted edits.
//
// Unlike a full OT server, this package never transforms one step against
// another concurrent step — the wire contract requires the client to
// rebase before sending, and the server only re-applies steps sequentially
// (see Instance.AddEvents). What it does need, and what this package
// provides, is ProseMirror/rustpad-style position mapping with bias, and a
// same-author compose used only to shrink the step history before it is
// persisted.
package ot

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrStepOutOfRange = errors.New("ot: step does not cover the document length")
	ErrEmptyClientID  = errors.New("ot: step is missing a client id")
)

// OpKind tags one piece of a Step.
type OpKind int

const (
	OpRetain OpKind = iota
	OpInsert
	OpDelete
)

// Op is one retain/insert/delete instruction. N is a rune count for
// Retain and Delete; Text carries the inserted runes for Insert.
type Op struct {
	Kind OpKind
	N    int
	Text string
}

func Retain(n int) Op       { return Op{Kind: OpRetain, N: n} }
func Insert(text string) Op { return Op{Kind: OpInsert, Text: text} }
func Delete(n int) Op       { return Op{Kind: OpDelete, N: n} }

// Step is one client-authored edit, ordered by Document Instance version.
type Step struct {
	ClientID string
	Ops      []Op
}

// baseLen is the number of runes this step expects to find in the
// document it is applied to (sum of retain + delete).
func (s Step) baseLen() int {
	n := 0
	for _, op := range s.Ops {
		if op.Kind == OpRetain || op.Kind == OpDelete {
			n += op.N
		}
	}
	return n
}

// targetLen is the number of runes this step produces.
func (s Step) targetLen() int {
	n := 0
	for _, op := range s.Ops {
		switch op.Kind {
		case OpRetain:
			n += op.N
		case OpInsert:
			n += utf8.RuneCountInString(op.Text)
		}
	}
	return n
}

// Apply produces the document that results from running the step against
// doc. It fails closed: any op that would read past the end of doc is an
// invariant violation and the whole step is rejected, matching the "no
// partial application" rule for add_events.
func (s Step) Apply(doc string) (string, error) {
	runes := []rune(doc)
	if s.baseLen() != len(runes) {
		return "", ErrStepOutOfRange
	}
	var out []rune
	pos := 0
	for _, op := range s.Ops {
		switch op.Kind {
		case OpRetain:
			if pos+op.N > len(runes) {
				return "", ErrStepOutOfRange
			}
			out = append(out, runes[pos:pos+op.N]...)
			pos += op.N
		case OpInsert:
			out = append(out, []rune(op.Text)...)
		case OpDelete:
			if pos+op.N > len(runes) {
				return "", ErrStepOutOfRange
			}
			pos += op.N
		}
	}
	return string(out), nil
}

// Validate checks the step is well-formed for the given document length
// without applying it.
func (s Step) Validate(docRuneLen int) error {
	if s.ClientID == "" {
		return ErrEmptyClientID
	}
	if s.baseLen() != docRuneLen {
		return ErrStepOutOfRange
	}
	return nil
}
