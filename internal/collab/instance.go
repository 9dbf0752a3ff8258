package collab

import (
	"sync"
	"time"

	"switchboard/internal/ot"
	"switchboard/pkg/types"
)

// DefaultSeedDoc mirrors the fallback document a brand new collaborative
// instance starts from: fifteen blank lines within one paragraph.
const DefaultSeedDoc = "\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n"

// EventsDiff is get_events' return payload.
type EventsDiff struct {
	Version        int
	Steps          []ot.Step
	CommentEvents  []types.CommentEvent
	CommentVersion int
	Cursors        map[string]types.CursorSelection
	CursorVersion  int
	UserCount      int
}

// AddEventsResult is add_events' success payload.
type AddEventsResult struct {
	Version        int
	CommentVersion int
	Users          int
}

// Instance is one live collaborative document. All exported methods
// serialize internally; callers never need an external lock, matching the
// "operations on one Instance serialize per-Instance" concurrency rule.
type Instance struct {
	mu sync.Mutex

	id             string
	doc            string
	version        int
	steps          []ot.Step
	comments       *Comments
	cursors        *Cursors
	users          map[string]types.InstanceUser
	userCount      int
	lastActiveAt   time.Time
	maxStepHistory int

	onDirty func(id string, version int)
}

// NewInstance constructs a fresh or rehydrated Instance. seedDoc is used
// verbatim as the starting document; callers pass DefaultSeedDoc for a
// brand-new instance or the persisted doc when rehydrating.
func NewInstance(id, seedDoc string, maxStepHistory int, onDirty func(id string, version int)) *Instance {
	return &Instance{
		id:             id,
		doc:            seedDoc,
		comments:       NewComments(),
		cursors:        NewCursors(),
		users:          make(map[string]types.InstanceUser),
		maxStepHistory: maxStepHistory,
		lastActiveAt:   time.Now(),
		onDirty:        onDirty,
	}
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) LastActiveAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastActiveAt
}

func (i *Instance) touch() { i.lastActiveAt = time.Now() }

// AddEvents is add_events: validates the base version, re-applies the
// supplied steps sequentially (the client is responsible for rebasing
// beforehand), rebases comments/cursors through the composed step maps,
// applies comment events, and marks the instance dirty for the next save
// tick.
func (i *Instance) AddEvents(baseVersion int, steps []ot.Step, commentEvents []types.CommentEvent, clientID string) (AddEventsResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if baseVersion < 0 || baseVersion > i.version {
		return AddEventsResult{}, ErrInvalidVersion
	}

	maps := make([]ot.StepMap, 0, len(steps))
	doc := i.doc
	appended := make([]ot.Step, 0, len(steps))
	for _, step := range steps {
		step.ClientID = clientID
		next, err := step.Apply(doc)
		if err != nil {
			return AddEventsResult{}, ErrStepRejected
		}
		doc = next
		appended = append(appended, step)
		maps = append(maps, step.Map())
	}

	i.doc = doc
	i.steps = append(i.steps, appended...)
	i.version += len(appended)
	if len(i.steps) > i.maxStepHistory {
		i.steps = i.steps[len(i.steps)-i.maxStepHistory:]
	}

	mapping := ot.ComposeMaps(maps...)
	i.comments.MapThrough(mapping)
	i.cursors.MapThrough(mapping)

	for _, ev := range commentEvents {
		switch ev.Type {
		case "create":
			i.comments.Create(types.Comment{ID: ev.ID, From: ev.From, To: ev.To, Text: ev.Text})
		case "delete":
			i.comments.Delete(ev.ID)
		}
	}

	i.touch()
	if i.onDirty != nil {
		i.onDirty(i.id, i.version)
	}

	return AddEventsResult{Version: i.version, CommentVersion: i.comments.Version(), Users: i.userCount}, nil
}

// GetEvents is get_events: returns the suffix the caller is missing, or
// false when the caller is already current on every one of the three
// version axes.
func (i *Instance) GetEvents(baseVersion, baseCommentVersion, baseCursorVersion int) (*EventsDiff, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if baseVersion >= i.version && baseCommentVersion >= i.comments.Version() && baseCursorVersion >= i.cursors.Version() {
		return nil, false
	}

	stepsBehind := i.version - baseVersion
	startIdx := len(i.steps) - stepsBehind
	if startIdx < 0 {
		startIdx = 0
	}
	stepsOut := append([]ot.Step(nil), i.steps[startIdx:]...)

	diff := &EventsDiff{
		Version:        i.version,
		Steps:          stepsOut,
		CommentEvents:  i.comments.EventsAfter(baseCommentVersion),
		CommentVersion: i.comments.Version(),
		CursorVersion:  i.cursors.Version(),
		UserCount:      i.userCount,
	}
	if cursors, behind := i.cursors.Get(baseCursorVersion); behind {
		diff.Cursors = cursors
	}
	return diff, true
}

// UpdateCursor delegates to cursors.update.
func (i *Instance) UpdateCursor(clientID string, sel types.CursorSelection) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cursors.Update(clientID, sel)
	i.touch()
}

// RegisterUser is register_user: idempotent activation of an email,
// resetting its cursor slot on first activation.
func (i *Instance) RegisterUser(email, displayName, persistentID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if u, ok := i.users[email]; ok && u.Active {
		return
	}
	i.users[email] = types.InstanceUser{Active: true, PersistentID: persistentID}
	i.userCount++
	i.cursors.Remove(displayName)
	i.touch()
}

// RemoveUser deactivates a user (called from remove_from_instances) and
// clears its cursor slot, keyed by display name per the source's cursor
// keying.
func (i *Instance) RemoveUser(email, displayName string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	u, ok := i.users[email]
	if !ok || !u.Active {
		return
	}
	u.Active = false
	i.users[email] = u
	i.userCount--
	i.cursors.Remove(displayName)
}

// Version, CommentVersion report current state for a join reply.
func (i *Instance) Version() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.version
}

func (i *Instance) CommentVersion() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.comments.Version()
}

// Doc returns the current authoritative text.
func (i *Instance) Doc() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.doc
}

func (i *Instance) CommentsSnapshot() []types.Comment {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.comments.Snapshot()
}

func (i *Instance) UserCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.userCount
}

// ActiveEmails returns every email currently marked active on this
// instance, used by the Dispatcher to scope the post-apply broadcast to
// every other Member whose email is active on this instance.
func (i *Instance) ActiveEmails() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.users))
	for email, u := range i.users {
		if u.Active {
			out = append(out, email)
		}
	}
	return out
}

// Snapshot exports the Instance's persistable state, compressing the step
// tail via merger before returning.
func (i *Instance) Snapshot(merger ot.Merger) types.DocumentSnapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	compressed := ot.CompressRun(i.steps, merger)
	steps := make([]types.CompressedStep, 0, len(compressed))
	for _, s := range compressed {
		steps = append(steps, types.CompressedStep{ClientID: s.ClientID, Payload: encodeStep(s)})
	}

	users := make(map[string]string)
	for email, u := range i.users {
		if u.Active {
			users[email] = u.PersistentID
		}
	}

	return types.DocumentSnapshot{
		Version:         i.version,
		Doc:             i.doc,
		Comments:        i.comments.Snapshot(),
		CompressedSteps: steps,
		Users:           users,
	}
}

