package ot

// StepMap is the position-rebasing half of a Step: given a position in the
// pre-step document, it reports the corresponding position in the
// post-step document. Ported from the transformIndex walk used by
// rustpad-style collaborative editors, extended with a ProseMirror-style
// bias so callers can choose which side of an insertion boundary a
// position should land on.
type StepMap struct {
	ops []Op
}

// Map builds the StepMap belonging to this step.
func (s Step) Map() StepMap {
	return StepMap{ops: s.Ops}
}

// Map rebases position through the step. bias >= 0 pushes a position
// sitting exactly at an insertion point to land after the inserted text;
// bias < 0 keeps it anchored before.
func (m StepMap) Map(position, bias int) int {
	index := position
	newIndex := position
	for _, op := range m.ops {
		switch op.Kind {
		case OpRetain:
			index -= op.N
		case OpInsert:
			n := len([]rune(op.Text))
			if index == 0 && bias < 0 {
				// position is pinned before this insertion
			} else {
				newIndex += n
			}
		case OpDelete:
			used := op.N
			if index < used {
				used = index
			}
			if used < 0 {
				used = 0
			}
			newIndex -= used
			index -= op.N
		}
		if index < 0 {
			break
		}
	}
	if newIndex < 0 {
		newIndex = 0
	}
	return newIndex
}

// Mapping composes zero or more StepMaps into one rebasing function, the
// way add_events composes the maps of an entire accepted batch before
// pushing them through Comments and Cursors.
type Mapping struct {
	maps []StepMap
}

// ComposeMaps concatenates step maps in application order.
func ComposeMaps(maps ...StepMap) Mapping {
	return Mapping{maps: maps}
}

// Map applies every constituent StepMap in order.
func (mp Mapping) Map(position, bias int) int {
	for _, m := range mp.maps {
		position = m.Map(position, bias)
	}
	return position
}

// Empty reports whether the mapping carries no steps (a no-op rebase).
func (mp Mapping) Empty() bool {
	return len(mp.maps) == 0
}
