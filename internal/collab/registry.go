package collab

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/errgroup"

	"switchboard/internal/ot"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

// unboundedCapacity drives simplelru without its own size-based eviction:
// the Registry performs pending-save-aware eviction itself (see evict),
// using the library only for the Keys()-ordered-by-recency bookkeeping a
// hand-rolled container/list would otherwise need to provide.
const unboundedCapacity = 1 << 30

// Registry is the process-wide Instance Registry: document id to
// Instance, with last-active eviction and periodic batched persistence.
type Registry struct {
	mu             sync.Mutex
	lru            *simplelru.LRU[string, *Instance]
	store          interfaces.DocumentStore
	maxInstances   int
	maxStepHistory int
	merger         ot.Merger

	pendingMu sync.Mutex
	pending   map[string]int

	onEvict func(id string)
}

func NewRegistry(store interfaces.DocumentStore, maxInstances, maxStepHistory int, merger ot.Merger) *Registry {
	r := &Registry{
		store:          store,
		maxInstances:   maxInstances,
		maxStepHistory: maxStepHistory,
		merger:         merger,
		pending:        make(map[string]int),
	}
	l, _ := simplelru.NewLRU[string, *Instance](unboundedCapacity, nil)
	r.lru = l
	return r
}

// SetEvictHook installs an observer called (outside any lock) whenever the
// registry evicts an instance, used to drive the eviction-count metric.
func (r *Registry) SetEvictHook(fn func(id string)) { r.onEvict = fn }

// GetInstance is get_instance. It is deliberately coarse-grained: the
// whole lookup-or-rehydrate-or-create path runs under the registry lock so
// two concurrent joins for the same never-yet-loaded id cannot construct
// two Instances for it; every other read of an already-live Instance
// still only serializes the map access itself.
func (r *Registry) GetInstance(ctx context.Context, id, seedDoc string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.lru.Get(id); ok {
		return inst, nil
	}

	inst, err := r.load(ctx, id, seedDoc)
	if err != nil {
		return nil, err
	}
	r.lru.Add(id, inst)
	r.evict()
	return inst, nil
}

func (r *Registry) load(ctx context.Context, id, seedDoc string) (*Instance, error) {
	nsID, lessonID, componentID, err := types.ParseDocumentID(id)
	if err != nil {
		return nil, err
	}
	snap, err := r.store.Load(ctx, nsID, lessonID, componentID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		doc := seedDoc
		if doc == "" {
			doc = DefaultSeedDoc
		}
		return NewInstance(id, doc, r.maxStepHistory, r.markDirty), nil
	}
	return r.rehydrate(id, snap), nil
}

func (r *Registry) rehydrate(id string, snap *types.DocumentSnapshot) *Instance {
	inst := NewInstance(id, snap.Doc, r.maxStepHistory, r.markDirty)
	inst.version = snap.Version
	inst.comments.Restore(snap.Comments)
	steps := make([]ot.Step, 0, len(snap.CompressedSteps))
	for _, cs := range snap.CompressedSteps {
		steps = append(steps, decodeStep(cs.ClientID, cs.Payload))
	}
	inst.steps = steps
	for email, persistentID := range snap.Users {
		inst.users[email] = types.InstanceUser{Active: false, PersistentID: persistentID}
	}
	return inst
}

// evict enforces the configured instance cap, walking the recency order
// (oldest first) and skipping any id with a pending save — never evicting
// it. Must be called with r.mu held.
func (r *Registry) evict() {
	for r.lru.Len() > r.maxInstances {
		victim := ""
		for _, id := range r.lru.Keys() {
			if !r.isPending(id) {
				victim = id
				break
			}
		}
		if victim == "" {
			return
		}
		r.lru.Remove(victim)
		if r.onEvict != nil {
			r.onEvict(victim)
		}
	}
}

func (r *Registry) markDirty(id string, version int) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if v, ok := r.pending[id]; !ok || version > v {
		r.pending[id] = version
	}
}

func (r *Registry) isPending(id string) bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// RemoveFromInstances is remove_from_instances: deactivate email across
// every live instance and drop its cursor slot.
func (r *Registry) RemoveFromInstances(email, displayName string) {
	r.mu.Lock()
	insts := make([]*Instance, 0, r.lru.Len())
	for _, id := range r.lru.Keys() {
		if inst, ok := r.lru.Peek(id); ok {
			insts = append(insts, inst)
		}
	}
	r.mu.Unlock()

	for _, inst := range insts {
		inst.RemoveUser(email, displayName)
	}
}

// SaveTick drains the pending-save set and persists each dirty instance
// concurrently. A save failure re-marks its id dirty so the next tick
// retries it — the dirty flag remaining set is the retry mechanism, there
// is no separate backoff.
func (r *Registry) SaveTick(ctx context.Context, onErr func(id string, err error)) {
	r.pendingMu.Lock()
	batch := r.pending
	r.pending = make(map[string]int)
	r.pendingMu.Unlock()

	if len(batch) == 0 {
		return
	}

	var g errgroup.Group
	for id, version := range batch {
		id, version := id, version
		g.Go(func() error {
			r.mu.Lock()
			inst, ok := r.lru.Peek(id)
			r.mu.Unlock()
			if !ok {
				return nil
			}
			snap := inst.Snapshot(r.merger)
			if err := r.store.Save(ctx, id, &snap); err != nil {
				r.markDirty(id, version)
				if onErr != nil {
					onErr(id, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RunSaveLoop drives SaveTick on a ticker until ctx is cancelled.
func (r *Registry) RunSaveLoop(ctx context.Context, interval time.Duration, onErr func(id string, err error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SaveTick(ctx, onErr)
		}
	}
}

// Len reports the number of live instances, for metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}
