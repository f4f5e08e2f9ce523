// Package sync reconciles the local task collection with the remote
// backend. A cycle runs in two strictly ordered phases: push every
// locally dirty, new, or tombstoned task, then pull the full remote
// snapshot and merge it against local state.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/remote"
)

// defaultItemTimeout bounds a single push operation so one hung request
// cannot stall the whole cycle.
const defaultItemTimeout = 30 * time.Second

// Engine runs sync cycles against a remote backend. It never mutates
// the tasks it is given; each cycle returns a freshly built collection.
type Engine struct {
	backend     remote.Backend
	log         *zap.Logger
	itemTimeout time.Duration

	// running guards against overlapping cycles.
	running atomic.Bool
}

// NewEngine creates a sync engine. itemTimeout bounds each per-item
// network operation; zero selects the default.
func NewEngine(backend remote.Backend, itemTimeout time.Duration, log *zap.Logger) *Engine {
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	return &Engine{
		backend:     backend,
		log:         log,
		itemTimeout: itemTimeout,
	}
}

// pushKind discriminates the per-item operations of phase 1.
type pushKind int

const (
	pushDelete pushKind = iota
	pushCreate
	pushUpdate
)

func (k pushKind) String() string {
	switch k {
	case pushDelete:
		return "delete"
	case pushCreate:
		return "create"
	case pushUpdate:
		return "update"
	}
	return "unknown"
}

// pushResult is the settled outcome of one per-item network operation.
type pushResult struct {
	kind pushKind
	id   string
	data *model.Task
	err  error
}

// Sync runs one full cycle and returns the merged collection. The input
// is never mutated. The ran flag reports whether a cycle actually
// executed: an unconfigured backend or a cycle already in flight
// returns the input unchanged with ran false and no error; the caller
// simply retries later and must not treat the skip as a completed sync.
//
// Per-item push failures do not fail the cycle: the affected tasks keep
// their dirty flags and carry a SyncError, and the failures are folded
// into the returned error alongside the merge result. Only a phase-2
// fetch failure aborts the merge; phase-1 results are still kept.
func (e *Engine) Sync(ctx context.Context, ownerID string, local []model.Task) (merged []model.Task, ran bool, err error) {
	if !e.backend.Configured() {
		return local, false, nil
	}
	if !e.running.CompareAndSwap(false, true) {
		e.log.Debug("sync already in progress, skipping")
		return local, false, nil
	}
	defer e.running.Store(false)

	pushed, pushErrs := e.pushDirty(ctx, ownerID, local)

	merged, err = e.pullAndMerge(ctx, ownerID, pushed)
	if err != nil {
		// Keep phase-1 results; surface the fetch failure.
		return pushed, true, joinErrors(append(pushErrs, fmt.Sprintf("pull: %v", err)))
	}

	return merged, true, joinErrors(pushErrs)
}

// pushDirty is phase 1: issue all per-item operations concurrently,
// wait for every one to settle, then apply the results to a copy of the
// collection in a single pass. No goroutine touches shared state; each
// writes only its own result slot, which is what makes the apply step
// deterministic regardless of completion order.
func (e *Engine) pushDirty(ctx context.Context, ownerID string, local []model.Task) ([]model.Task, []string) {
	type workItem struct {
		index int
		kind  pushKind
		task  model.Task
	}

	var work []workItem
	dropLocal := make(map[string]bool)

	for i, t := range local {
		switch {
		case t.Deleted && t.IsNew:
			// Never reached the server; dropping locally is enough.
			dropLocal[t.ID] = true
		case t.Deleted:
			work = append(work, workItem{index: i, kind: pushDelete, task: t})
		case t.IsNew:
			work = append(work, workItem{index: i, kind: pushCreate, task: t})
		case t.Dirty:
			work = append(work, workItem{index: i, kind: pushUpdate, task: t})
		}
	}

	results := make([]pushResult, len(work))
	var wg gosync.WaitGroup
	for i, w := range work {
		wg.Add(1)
		go func(slot int, w workItem) {
			defer wg.Done()
			results[slot] = e.pushOne(ctx, ownerID, w.kind, w.task)
		}(i, w)
	}
	wg.Wait()

	// Single-pass apply over settled results.
	byID := make(map[string]pushResult, len(results))
	var errs []string
	for _, r := range results {
		byID[r.id] = r
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s %s: %v", r.kind, r.id, r.err))
		}
	}

	out := make([]model.Task, 0, len(local))
	for _, t := range local {
		if dropLocal[t.ID] {
			continue
		}
		r, ok := byID[t.ID]
		if !ok {
			out = append(out, t)
			continue
		}

		switch {
		case r.err != nil:
			// Stays dirty/tombstoned and retries next cycle.
			t.SyncError = r.err.Error()
			out = append(out, t)
		case r.kind == pushDelete:
			// Confirmed remotely; drop the tombstone.
		default:
			pushed := t
			if r.data != nil {
				pushed = *r.data
			}
			pushed.Dirty = false
			pushed.IsNew = false
			pushed.Deleted = false
			pushed.SyncError = ""
			out = append(out, pushed)
		}
	}

	return out, errs
}

// pushOne performs a single network operation with its own timeout,
// converting any failure (including a panic in the backend) into a
// settled result so one bad item cannot fail the batch.
func (e *Engine) pushOne(ctx context.Context, ownerID string, kind pushKind, t model.Task) (res pushResult) {
	res = pushResult{kind: kind, id: t.ID}

	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	opCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	switch kind {
	case pushDelete:
		res.err = e.backend.Delete(opCtx, t.ID)
	case pushCreate:
		res.data, res.err = e.backend.Create(opCtx, ownerID, t)
	case pushUpdate:
		res.data, res.err = e.backend.Update(opCtx, t)
	}
	return res
}

// pullAndMerge is phase 2: fetch the authoritative remote snapshot and
// reconcile it with the post-push local collection.
//
// Conflict policy, per record: a locally dirty or tombstoned copy wins
// over the remote one (it will be pushed again next cycle); a clean
// local copy is replaced by the remote one; remote records unknown
// locally are inserted clean. A clean local record missing from the
// snapshot is treated as deleted elsewhere and dropped — including the
// dirty-but-unmatched case, which means an edit made offline loses to a
// concurrent remote delete. That is a deliberate simplification, kept
// loud via the warning log below.
func (e *Engine) pullAndMerge(ctx context.Context, ownerID string, local []model.Task) ([]model.Task, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	remoteTasks, err := e.backend.FetchAll(opCtx, ownerID)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[string]model.Task, len(remoteTasks))
	for _, rt := range remoteTasks {
		remoteByID[rt.ID] = rt
	}

	merged := make([]model.Task, 0, len(remoteTasks))
	seen := make(map[string]bool, len(local))

	for _, lt := range local {
		seen[lt.ID] = true
		rt, onRemote := remoteByID[lt.ID]

		switch {
		case onRemote && (lt.Dirty || lt.Deleted):
			merged = append(merged, lt)
		case onRemote:
			merged = append(merged, clean(rt))
		case lt.IsNew || lt.Deleted:
			// Not yet pushed, or tombstone awaiting a successful
			// delete; keep either way.
			merged = append(merged, lt)
		default:
			e.log.Warn("dropping task deleted remotely",
				zap.String("task_id", lt.ID),
				zap.String("title", lt.Title),
				zap.Bool("had_local_edits", lt.Dirty))
		}
	}

	// Remote records with no local counterpart arrive clean, in the
	// order the server returned them.
	for _, rt := range remoteTasks {
		if !seen[rt.ID] {
			merged = append(merged, clean(rt))
		}
	}

	return merged, nil
}

// clean strips every local sync flag from an adopted remote copy.
func clean(t model.Task) model.Task {
	t.Dirty = false
	t.IsNew = false
	t.Deleted = false
	t.SyncError = ""
	return t
}

// joinErrors collapses per-item error strings into one cycle error.
func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0]
	for _, s := range errs[1:] {
		msg += "; " + s
	}
	return fmt.Errorf("%d sync operation(s) failed: %s", len(errs), msg)
}
