package domain

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/adhocore/gronx/pkg/tasker"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"plannersync/internal/feed"
	"plannersync/internal/ics"
	"plannersync/internal/merge"
	"plannersync/internal/model"
	"plannersync/internal/remote"
	"plannersync/internal/store"
)

// Status is the UI-facing sync state: idle → syncing → {success, error} →
// idle, plus offline entered on network loss.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

const (
	// dataCron pulls and merges the aggregate every 5 minutes; feedCron
	// refreshes calendar feeds every 15.
	dataCron = "0 */5 * * * * *"
	feedCron = "0 */15 * * * * *"

	// syncCooldown absorbs an interval timer and a visibility event firing
	// close together.
	syncCooldown = 30 * time.Second

	// writeGrace skips pulls that would race an in-flight local write.
	writeGrace = 15 * time.Second

	// pushDebounce coalesces rapid successive edits into one network write.
	pushDebounce = time.Second

	// statusLinger is how long success/error stay visible before the
	// indicator returns to idle.
	statusLinger = 3 * time.Second
)

// FeedFetcher retrieves raw calendar feed text through the relay boundary.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (feed.Result, error)
}

// RemoteStore is the remote aggregate document store.
type RemoteStore interface {
	Fetch(ctx context.Context) (*model.Aggregate, error)
	Push(ctx context.Context, agg *model.Aggregate) error
}

var (
	_ FeedFetcher = (*feed.Fetcher)(nil)
	_ RemoteStore = (*remote.Client)(nil)
)

// Coordinator owns every transition of the aggregate between local-only,
// pushed and merged states. One instance exists per running app; all its
// guards (in-flight flag, cooldown, debounce, grace period) are instance
// state, never package state.
type Coordinator struct {
	store    *store.Store
	remote   RemoteStore
	fetcher  FeedFetcher
	feedURLs []string
	loc      *time.Location
	now      func() time.Time
	ctx      context.Context
	pool     *pool.ContextPool

	// writeMu serializes read-modify-write cycles on the local snapshot;
	// Load hands out the cached document, so unserialized mutation would
	// race concurrent merges.
	writeMu sync.Mutex

	mu          sync.Mutex
	status      Status
	statusSeq   int
	inFlight    bool
	lastSuccess time.Time
	online      bool
	warning     string
	pending     *model.Aggregate
	pushTimer   *time.Timer
}

func New(ctx context.Context, st *store.Store, rc RemoteStore, fetcher FeedFetcher, feedURLs []string) *Coordinator {
	return &Coordinator{
		store:    st,
		remote:   rc,
		fetcher:  fetcher,
		feedURLs: feedURLs,
		loc:      time.Local,
		now:      time.Now,
		ctx:      ctx,
		pool:     pool.New().WithContext(ctx).WithMaxGoroutines(2),
		status:   StatusIdle,
		online:   true,
	}
}

// Schedule registers the periodic sync tasks and runs an immediate full
// cycle, covering the application-start trigger.
func (c *Coordinator) Schedule() {
	taskr := tasker.New(tasker.Option{})
	taskr.Task(dataCron, func(ctx context.Context) (int, error) {
		return 0, c.SyncData(ctx)
	})
	taskr.Task(feedCron, func(ctx context.Context) (int, error) {
		return 0, c.SyncFeeds(ctx)
	})
	c.pool.Go(func(ctx context.Context) error {
		if err := c.SyncFeeds(ctx); err != nil {
			log.Err(err).Msg("startup feed sync failed")
		}
		if err := c.SyncData(ctx); err != nil {
			log.Err(err).Msg("startup data sync failed")
		}
		taskr.Run()
		return nil
	})
}

// Status returns the current indicator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Warning returns the pending user-facing warning, if any. Capacity failures
// land here instead of being retried, since retrying an oversized write
// cannot succeed until the user frees space.
func (c *Coordinator) Warning() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

// DismissWarning clears the pending warning.
func (c *Coordinator) DismissWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warning = ""
}

// SyncData is the guarded pull-merge-push entry point used by the interval
// timer, the visibility trigger and the manual retry action. A call while a
// sync is in flight, within the cooldown of the last success, or while
// offline is a silent no-op.
func (c *Coordinator) SyncData(ctx context.Context) error {
	return c.syncData(ctx, false)
}

// syncData is SyncData with an escape hatch for the network-restore trigger,
// which must resync immediately even inside the cooldown. The in-flight and
// offline guards always apply.
func (c *Coordinator) syncData(ctx context.Context, ignoreCooldown bool) error {
	c.mu.Lock()
	cooled := !c.lastSuccess.IsZero() && c.now().Sub(c.lastSuccess) < syncCooldown
	if c.inFlight || !c.online || (cooled && !ignoreCooldown) {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.mu.Unlock()
	c.setStatus(StatusSyncing)

	err := c.syncFromCloud(ctx)

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.lastSuccess = c.now()
	}
	c.mu.Unlock()

	if err != nil {
		c.setStatus(StatusError)
		return err
	}
	c.setStatus(StatusSuccess)
	return nil
}

// syncFromCloud implements the pull-merge algorithm. A pull within the
// write-grace window of a local save is skipped entirely: the pending push
// will reconcile the remote copy, and pulling now could read a stale remote
// snapshot that pre-dates the user's own edit.
func (c *Coordinator) syncFromCloud(ctx context.Context) error {
	if c.store.RecentlySaved(writeGrace) {
		log.Debug().Msg("skipping pull, local write within grace period")
		return nil
	}

	remoteAgg, err := c.remote.Fetch(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			// Credential already invalidated by the client; the next cycle
			// re-authenticates. Local state is untouched.
			log.Warn().Msg("pull rejected, will re-authenticate next cycle")
			return err
		}
		log.Err(err).Msg("remote pull failed, local state untouched")
		return err
	}

	// The local snapshot is read after the fetch and under writeMu so an
	// edit that landed during the network round-trip is part of the merge.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	local, err := c.store.Load()
	if err != nil {
		return err
	}

	if remoteAgg == nil {
		// Nothing stored yet; seed the remote with the local copy.
		c.schedulePush(local)
		return nil
	}

	merged := merge.Aggregates(local, remoteAgg)
	merged.Touch(c.now())
	if err := c.store.Save(merged); err != nil {
		return err
	}

	// Re-push the merged result so all devices converge on it instead of
	// re-diverging.
	c.schedulePush(merged)
	return nil
}

// SaveData is the single local-write path: stamp lastModified, persist
// synchronously, then debounce a remote push.
func (c *Coordinator) SaveData(mutate func(*model.Aggregate)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	agg, err := c.store.Load()
	if err != nil {
		return err
	}
	mutate(agg)
	agg.Touch(c.now())
	if err := c.store.Save(agg); err != nil {
		c.setWarning("Could not save locally: storage is full or unavailable. Free up space and retry.")
		return err
	}
	c.schedulePush(agg)
	return nil
}

// AddNote appends a timestamped note to a week/class bundle through the
// standard write path.
func (c *Coordinator) AddNote(week, class, text string) error {
	return c.SaveData(func(agg *model.Aggregate) {
		wn := agg.WeekNotes[week]
		if wn == nil {
			wn = make(model.WeekNotes)
			agg.WeekNotes[week] = wn
		}
		cn := wn[class]
		if cn == nil {
			cn = &model.ClassNotes{}
			wn[class] = cn
		}
		if cn.Notes == nil {
			cn.Notes = make(map[string]model.Note)
		}
		id := uuid.NewString()
		cn.Notes[id] = model.Note{ID: id, Text: text, Timestamp: c.now().UnixMilli()}
	})
}

// SyncFeeds fetches and ingests every configured calendar feed and folds the
// resulting occurrence list into the aggregate. The occurrence set is a
// full-replace view, so the fold only happens when every feed produced a
// result; annotations attached to surviving ids are carried forward.
func (c *Coordinator) SyncFeeds(ctx context.Context) error {
	if len(c.feedURLs) == 0 {
		return nil
	}

	c.setStatus(StatusSyncing)

	var all []model.Occurrence
	for _, u := range c.feedURLs {
		res, err := c.fetcher.Fetch(ctx, u)
		if err != nil {
			log.Err(err).Msg("feed fetch failed, keeping previous occurrences")
			c.setStatus(StatusError)
			return err
		}
		occ := ics.Ingest(res.Body, c.now(), c.loc)
		log.Debug().Int("occurrences", len(occ)).Str("cacheHint", res.CacheHint).Msg("feed ingested")
		all = append(all, occ...)
	}

	err := c.SaveData(func(agg *model.Aggregate) {
		linked := make(map[string][]string)
		for _, ev := range agg.Events {
			if len(ev.LinkedAnnotationIDs) > 0 {
				linked[ev.ID] = ev.LinkedAnnotationIDs
			}
		}
		for i := range all {
			if ids, ok := linked[all[i].ID]; ok {
				all[i].LinkedAnnotationIDs = ids
			}
		}
		agg.Events = all
	})
	if err != nil {
		c.setStatus(StatusError)
		return err
	}
	c.setStatus(StatusSuccess)
	return nil
}

// OnVisible covers page/tab visibility transitions (app resume on mobile):
// an immediate guarded sync.
func (c *Coordinator) OnVisible(ctx context.Context) {
	if err := c.SyncData(ctx); err != nil {
		log.Err(err).Msg("visibility sync failed")
	}
}

// SetOnline records network-state transitions. Going offline switches the
// indicator; coming back triggers an immediate resync.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	was := c.online
	c.online = online
	c.mu.Unlock()

	if !online {
		c.setStatus(StatusOffline)
		return
	}
	if !was {
		c.setStatus(StatusIdle)
		// The restore resync bypasses the cooldown: the user expects fresh
		// data the moment connectivity returns.
		if err := c.syncData(c.ctx, true); err != nil {
			log.Err(err).Msg("resync after network restore failed")
		}
	}
}

// schedulePush queues a snapshot of the aggregate for remote delivery after
// the debounce window; rapid successive edits collapse into one network
// write. The queue holds a deep copy: callers keep mutating the live document
// while the timer goroutine serializes the queued one.
func (c *Coordinator) schedulePush(agg *model.Aggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = agg.Clone()
	if c.pushTimer != nil {
		c.pushTimer.Stop()
	}
	c.pushTimer = time.AfterFunc(pushDebounce, func() {
		if err := c.pushPending(c.ctx); err != nil {
			log.Err(err).Msg("debounced push failed")
		}
	})
}

// pushPending delivers the queued payload. Unreachable remote keeps it
// queued; auth rejection keeps it queued for after re-authentication;
// payload-too-large drops the queue entry and surfaces a warning instead of
// looping on a write that cannot succeed.
func (c *Coordinator) pushPending(ctx context.Context) error {
	c.mu.Lock()
	agg := c.pending
	c.mu.Unlock()
	if agg == nil {
		return nil
	}

	err := c.remote.Push(ctx, agg)
	switch {
	case err == nil:
		c.clearPending(agg)
	case errors.Is(err, remote.ErrPayloadTooLarge):
		c.setWarning("Cloud copy rejected the data: it exceeds the remote store's size limit. Remove some data and retry.")
		c.clearPending(agg)
	case errors.Is(err, remote.ErrUnauthorized):
		log.Warn().Msg("push rejected, queued until re-authentication")
	default:
		log.Err(err).Msg("push failed, payload stays queued")
	}
	return err
}

// PendingPush exposes the queued payload for the host's best-effort unload
// delivery (beacon-style send). The core only reports whether a write is
// pending and what its body is; delivery on teardown belongs to the host.
func (c *Coordinator) PendingPush() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil, false
	}
	data, err := json.Marshal(c.pending)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Flush sends any pending debounced push immediately. The host invokes this
// synchronously on shutdown signals; failures are logged, not returned — at
// teardown there is nothing left to do about them.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	if c.pushTimer != nil {
		c.pushTimer.Stop()
		c.pushTimer = nil
	}
	c.mu.Unlock()
	if err := c.pushPending(ctx); err != nil {
		log.Err(err).Msg("shutdown flush failed")
	}
}

func (c *Coordinator) clearPending(agg *model.Aggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == agg {
		c.pending = nil
	}
}

func (c *Coordinator) setWarning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warning = msg
}

// setStatus moves the indicator; success and error linger briefly, then the
// indicator returns to idle unless something newer replaced it.
func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.statusSeq++
	seq := c.statusSeq
	c.mu.Unlock()

	if s == StatusSuccess || s == StatusError {
		time.AfterFunc(statusLinger, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.statusSeq == seq {
				c.status = StatusIdle
				c.statusSeq++
			}
		})
	}
}
