// Package reconciler keeps the portal's complaint collection consistent with
// the remote complaint store.
//
// The Reconciler owns the collection. It polls the store, diffs each fetched
// set against what it holds, persists a local snapshot and tells observers
// about genuine status transitions. When the store is unreachable a circuit
// breaker opens and writes are applied locally; the affected records are
// flagged and replayed once the breaker admits calls again.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"jalrakshak-monitor/internal/breaker"
	"jalrakshak-monitor/internal/metrics"
	"jalrakshak-monitor/internal/models"
)

// Gateway is the remote complaint store
type Gateway interface {
	ListComplaints(ctx context.Context) ([]models.Complaint, error)
	CreateComplaint(ctx context.Context, in models.NewComplaint) (models.Complaint, error)
	UpdateComplaint(ctx context.Context, id string, upd models.StatusUpdate) (models.Complaint, error)
}

// SnapshotStore is the best-effort local cache of the collection
type SnapshotStore interface {
	Load() ([]models.Complaint, bool)
	Save([]models.Complaint)
}

// Config tunes polling and fallback behavior
type Config struct {
	PollInterval     time.Duration  `yaml:"poll_interval"`
	RequestTimeout   time.Duration  `yaml:"request_timeout"`
	Breaker          breaker.Config `yaml:"breaker"`
	MaxNotifications int            `yaml:"max_notifications"`
	// Seed replaces the demo set used when neither the snapshot nor the
	// store has data
	Seed []models.Complaint `yaml:"-"`
}

// DefaultConfig returns the stock polling setup
func DefaultConfig() Config {
	return Config{
		PollInterval:     5 * time.Second,
		RequestTimeout:   4 * time.Second,
		Breaker:          breaker.Config{MaxFailures: 1},
		MaxNotifications: 50,
	}
}

// SyncState describes how the collection relates to the remote store
type SyncState struct {
	FallbackActive  bool      `json:"fallback_active"`
	BreakerState    string    `json:"breaker_state"`
	LastSyncAttempt time.Time `json:"last_sync_attempt,omitempty"`
	LastSyncSuccess time.Time `json:"last_sync_success,omitempty"`
	Pending         int       `json:"pending"`
}

// Reconciler is safe for concurrent use
type Reconciler struct {
	gw      Gateway
	store   SnapshotStore
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	breaker *breaker.Breaker

	newID func() string
	now   func() time.Time

	group singleflight.Group

	mu            sync.Mutex
	records       []models.Complaint
	generation    uint64
	notifications []models.Notification
	lastAttempt   time.Time
	lastSuccess   time.Time
	nextObserver  int
	recordSubs    map[int]func([]models.Complaint)
	noteSubs      map[int]func(models.Notification)
}

// New wires a reconciler. m may be nil.
func New(gw Gateway, store SnapshotStore, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = def.MaxNotifications
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconciler")

	r := &Reconciler{
		gw:         gw,
		store:      store,
		cfg:        cfg,
		log:        logger,
		metrics:    m,
		breaker:    breaker.New("complaint-store", cfg.Breaker, logger),
		newID:      uuid.NewString,
		now:        time.Now,
		recordSubs: make(map[int]func([]models.Complaint)),
		noteSubs:   make(map[int]func(models.Notification)),
	}
	r.breaker.OnStateChange(func(from, to breaker.State) {
		r.metrics.SetFallback(to != breaker.Closed)
		r.log.Info("sync_state_changed", "from", from.String(), "to", to.String())
	})
	return r
}

// Initialize resets the breaker and loads the snapshot, or the seed set when
// no snapshot exists. The collection is non-empty when it returns.
func (r *Reconciler) Initialize() {
	r.breaker.Reset()
	r.metrics.SetFallback(false)

	records, ok := r.store.Load()
	source := "snapshot"
	if !ok || len(records) == 0 {
		records = r.seed()
		source = "seed"
	}
	sortNewestFirst(records)

	r.mu.Lock()
	r.records = records
	r.generation++
	r.observeRecordsLocked()
	subs, snapshot := r.recordObserversLocked()
	r.mu.Unlock()

	r.log.Info("collection_loaded", "source", source, "records", len(snapshot))
	publish(subs, snapshot)
}

// Run refreshes immediately and then on every poll interval until ctx is done
func (r *Reconciler) Run(ctx context.Context) {
	r.Refresh(ctx)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh replays pending offline changes and then replaces the collection
// with the store's. It never issues a call while the breaker is open, and a
// refresh already in flight is joined instead of duplicated. Failures are
// absorbed into fallback.
func (r *Reconciler) Refresh(ctx context.Context) {
	r.group.Do("refresh", func() (interface{}, error) {
		r.refresh(ctx)
		return nil, nil
	})
}

// callContext bounds a store call by RequestTimeout only. A caller that goes
// away must not count as a store failure.
func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RequestTimeout)
}

func (r *Reconciler) refresh(ctx context.Context) {
	if !r.breaker.Allow() {
		r.metrics.ObserveRefresh(metrics.RefreshSkipped)
		return
	}

	r.mu.Lock()
	r.lastAttempt = r.now().UTC()
	r.mu.Unlock()

	if err := r.replayPending(ctx); err != nil {
		r.refreshFailed(err)
		return
	}

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	cctx, cancel := r.callContext(ctx)
	fetched, err := r.gw.ListComplaints(cctx)
	cancel()
	if err != nil {
		r.refreshFailed(err)
		return
	}
	r.breaker.Success()
	sortNewestFirst(fetched)

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		r.metrics.ObserveRefresh(metrics.RefreshStale)
		r.log.Debug("refresh_discarded_stale")
		return
	}

	previous := make(map[string]models.Complaint, len(r.records))
	var unsynced []models.Complaint
	for _, c := range r.records {
		previous[c.ID] = c
		if c.Sync != models.SyncClean {
			unsynced = append(unsynced, c)
		}
	}

	merged := make([]models.Complaint, 0, len(fetched)+len(unsynced))
	seen := make(map[string]bool, len(fetched))
	var notes []models.Notification
	for _, c := range fetched {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		old, known := previous[c.ID]
		if known && old.Sync != models.SyncClean {
			// unreplayed local edits win until the next pass
			merged = append(merged, old)
			continue
		}
		c.Sync = models.SyncClean
		if known && old.Status != c.Status {
			notes = append(notes, r.statusNotification(c))
		}
		merged = append(merged, c)
	}
	for _, c := range unsynced {
		if !seen[c.ID] {
			merged = append(merged, c)
		}
	}
	sortNewestFirst(merged)

	r.records = merged
	r.generation++
	r.lastSuccess = r.now().UTC()
	r.store.Save(cloneRecords(merged))
	r.observeRecordsLocked()
	r.storeNotificationsLocked(notes)
	subs, snapshot := r.recordObserversLocked()
	noteSubs := r.noteObserversLocked()
	r.mu.Unlock()

	r.metrics.ObserveRefresh(metrics.RefreshSuccess)
	r.log.Debug("refresh_done", "records", len(snapshot), "transitions", len(notes))
	publish(subs, snapshot)
	r.emit(noteSubs, notes)
}

func (r *Reconciler) refreshFailed(err error) {
	r.breaker.Failure(err)
	r.metrics.ObserveRefresh(metrics.RefreshFailure)
	r.log.Warn("refresh_failed", "error", err)

	r.mu.Lock()
	if len(r.records) > 0 {
		r.mu.Unlock()
		return
	}
	r.records = r.seed()
	r.generation++
	r.store.Save(cloneRecords(r.records))
	r.observeRecordsLocked()
	subs, snapshot := r.recordObserversLocked()
	r.mu.Unlock()

	r.log.Info("collection_seeded", "records", len(snapshot))
	publish(subs, snapshot)
}

// replayPending pushes records created or changed offline, oldest first.
// Replays emit no notifications.
func (r *Reconciler) replayPending(ctx context.Context) error {
	r.mu.Lock()
	var pending []models.Complaint
	for _, c := range r.records {
		if c.Sync != models.SyncClean {
			pending = append(pending, c)
		}
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	for _, p := range pending {
		var err error
		switch p.Sync {
		case models.SyncLocal:
			err = r.replayCreate(ctx, p)
		case models.SyncDirty:
			err = r.replayUpdate(ctx, p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) replayCreate(ctx context.Context, p models.Complaint) error {
	cctx, cancel := r.callContext(ctx)
	created, err := r.gw.CreateComplaint(cctx, models.FromRecord(p))
	cancel()
	if err != nil {
		r.metrics.ObserveReplay("create", metrics.RefreshFailure)
		return fmt.Errorf("replay create %s: %w", p.ID, err)
	}
	r.metrics.ObserveReplay("create", metrics.RefreshSuccess)

	var updateErr error
	if p.Status != created.Status || (p.AdminResponse != "" && p.AdminResponse != created.AdminResponse) {
		cctx, cancel := r.callContext(ctx)
		updated, err := r.gw.UpdateComplaint(cctx, created.ID, statusUpdateFor(p))
		cancel()
		if err != nil {
			r.metrics.ObserveReplay("update", metrics.RefreshFailure)
			updateErr = fmt.Errorf("replay status %s: %w", created.ID, err)
		} else {
			r.metrics.ObserveReplay("update", metrics.RefreshSuccess)
			created = updated
		}
	}

	r.commitReplay(p.ID, created)
	r.log.Info("offline_record_replayed", "local_id", p.ID, "id", created.ID)
	return updateErr
}

func (r *Reconciler) replayUpdate(ctx context.Context, p models.Complaint) error {
	cctx, cancel := r.callContext(ctx)
	updated, err := r.gw.UpdateComplaint(cctx, p.ID, statusUpdateFor(p))
	cancel()
	switch {
	case errors.Is(err, models.ErrNotFound):
		// the store no longer has it; the listing that follows drops it
		r.metrics.ObserveReplay("update", "not_found")
		updated = p
		updated.Sync = models.SyncClean
	case err != nil:
		r.metrics.ObserveReplay("update", metrics.RefreshFailure)
		return fmt.Errorf("replay status %s: %w", p.ID, err)
	default:
		r.metrics.ObserveReplay("update", metrics.RefreshSuccess)
	}
	r.commitReplay(p.ID, updated)
	return nil
}

// commitReplay swaps the local record for the store's version. When the
// local copy changed while the call was in flight, or the store did not take
// the status, the local status wins and the record stays dirty.
func (r *Reconciler) commitReplay(localID string, remote models.Complaint) {
	r.mu.Lock()
	i := r.indexLocked(localID)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	cur := r.records[i]
	remote.Sync = models.SyncClean
	if cur.Status != remote.Status || (cur.AdminResponse != "" && cur.AdminResponse != remote.AdminResponse) {
		remote.Status = cur.Status
		remote.AdminResponse = cur.AdminResponse
		remote.Sync = models.SyncDirty
	}
	r.records[i] = remote
	r.dedupeLocked(i)
	r.generation++
	r.store.Save(cloneRecords(r.records))
	r.observeRecordsLocked()
	subs, snapshot := r.recordObserversLocked()
	r.mu.Unlock()

	publish(subs, snapshot)
}

// CreateRecord submits a complaint. When the store cannot take it the record
// is kept locally and replayed later. Only validation errors are returned.
func (r *Reconciler) CreateRecord(ctx context.Context, in models.NewComplaint) (models.Complaint, error) {
	if err := in.Validate(); err != nil {
		return models.Complaint{}, err
	}
	in = normalize(in)
	in.CreatedAt = nil

	if r.breaker.Allow() {
		cctx, cancel := r.callContext(ctx)
		rec, err := r.gw.CreateComplaint(cctx, in)
		cancel()
		if err == nil {
			r.breaker.Success()
			rec.Sync = models.SyncClean
			r.insert(rec, r.createdNotification(rec))
			r.log.Info("complaint_created", "id", rec.ID, "type", rec.Type)
			r.Refresh(ctx)
			return rec, nil
		}
		r.breaker.Failure(err)
		r.log.Warn("create_failed_using_fallback", "error", err)
	}

	rec := models.Complaint{
		ID:          r.newID(),
		Type:        in.Type,
		Location:    in.Location,
		Description: in.Description,
		Status:      models.StatusOpen,
		OwnerID:     in.OwnerID,
		OwnerEmail:  in.OwnerEmail,
		CreatedAt:   r.now().UTC(),
		Sync:        models.SyncLocal,
	}
	r.insert(rec, r.offlineNotification(rec))
	r.log.Info("complaint_created_offline", "id", rec.ID, "type", rec.Type)
	return rec, nil
}

func (r *Reconciler) insert(rec models.Complaint, note models.Notification) {
	r.mu.Lock()
	if i := r.indexLocked(rec.ID); i >= 0 {
		r.records = append(r.records[:i], r.records[i+1:]...)
	}
	r.records = append([]models.Complaint{rec}, r.records...)
	r.generation++
	r.store.Save(cloneRecords(r.records))
	r.observeRecordsLocked()
	notes := []models.Notification{note}
	r.storeNotificationsLocked(notes)
	subs, snapshot := r.recordObserversLocked()
	noteSubs := r.noteObserversLocked()
	r.mu.Unlock()

	publish(subs, snapshot)
	r.emit(noteSubs, notes)
}

// UpdateStatus changes a complaint's status. It returns ErrNotFound when the
// id is unknown locally or to the store, and a ValidationError for a bad
// status. Store outages are absorbed: the change is applied locally and
// replayed later.
func (r *Reconciler) UpdateStatus(ctx context.Context, id string, status models.Status, adminResponse *string) (models.Complaint, error) {
	upd := models.StatusUpdate{Status: status, AdminResponse: adminResponse}
	if err := upd.Validate(); err != nil {
		return models.Complaint{}, err
	}

	cur, ok := r.Record(id)
	if !ok {
		return models.Complaint{}, models.ErrNotFound
	}
	if cur.Sync == models.SyncLocal {
		// the store has never seen it; the pending create carries the status
		return r.applyLocal(id, upd)
	}

	if r.breaker.Allow() {
		cctx, cancel := r.callContext(ctx)
		rec, err := r.gw.UpdateComplaint(cctx, id, upd)
		cancel()
		switch {
		case err == nil:
			r.breaker.Success()
			rec = r.applyRemote(rec)
			r.Refresh(ctx)
			return rec, nil
		case errors.Is(err, models.ErrNotFound):
			r.breaker.Success()
			return models.Complaint{}, err
		default:
			r.breaker.Failure(err)
			r.log.Warn("update_failed_using_fallback", "id", id, "error", err)
		}
	}
	return r.applyLocal(id, upd)
}

func (r *Reconciler) applyRemote(rec models.Complaint) models.Complaint {
	rec.Sync = models.SyncClean

	r.mu.Lock()
	var notes []models.Notification
	if i := r.indexLocked(rec.ID); i >= 0 {
		if r.records[i].Status != rec.Status {
			notes = append(notes, r.statusNotification(rec))
		}
		r.records[i] = rec
	} else {
		r.records = append([]models.Complaint{rec}, r.records...)
	}
	r.generation++
	r.store.Save(cloneRecords(r.records))
	r.observeRecordsLocked()
	r.storeNotificationsLocked(notes)
	subs, snapshot := r.recordObserversLocked()
	noteSubs := r.noteObserversLocked()
	r.mu.Unlock()

	r.log.Info("complaint_updated", "id", rec.ID, "status", rec.Status)
	publish(subs, snapshot)
	r.emit(noteSubs, notes)
	return rec
}

func (r *Reconciler) applyLocal(id string, upd models.StatusUpdate) (models.Complaint, error) {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return models.Complaint{}, models.ErrNotFound
	}
	rec := r.records[i]
	changed := rec.Status != upd.Status
	responseChanged := upd.AdminResponse != nil && *upd.AdminResponse != rec.AdminResponse
	if !changed && !responseChanged {
		r.mu.Unlock()
		return rec, nil
	}

	rec.Status = upd.Status
	if upd.AdminResponse != nil {
		rec.AdminResponse = *upd.AdminResponse
	}
	if rec.Sync != models.SyncLocal {
		rec.Sync = models.SyncDirty
	}
	r.records[i] = rec
	r.generation++
	r.store.Save(cloneRecords(r.records))
	r.observeRecordsLocked()

	var notes []models.Notification
	if changed {
		notes = append(notes, r.statusNotification(rec))
	}
	r.storeNotificationsLocked(notes)
	subs, snapshot := r.recordObserversLocked()
	noteSubs := r.noteObserversLocked()
	r.mu.Unlock()

	r.log.Info("complaint_updated_offline", "id", id, "status", rec.Status)
	publish(subs, snapshot)
	r.emit(noteSubs, notes)
	return rec, nil
}

// Subscribe registers fn to receive the collection after every change
func (r *Reconciler) Subscribe(fn func([]models.Complaint)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextObserver
	r.nextObserver++
	r.recordSubs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.recordSubs, id)
		r.mu.Unlock()
	}
}

// OnNotification registers fn to receive every notification as it is emitted
func (r *Reconciler) OnNotification(fn func(models.Notification)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextObserver
	r.nextObserver++
	r.noteSubs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.noteSubs, id)
		r.mu.Unlock()
	}
}

// Notifications returns the retained notifications, newest first
func (r *Reconciler) Notifications() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func (r *Reconciler) UnreadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notifications {
		if !note.Read {
			n++
		}
	}
	return n
}

// MarkNotificationRead reports whether a notification with that id exists
func (r *Reconciler) MarkNotificationRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllNotificationsRead returns how many notifications changed
func (r *Reconciler) MarkAllNotificationsRead() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.notifications {
		if !r.notifications[i].Read {
			r.notifications[i].Read = true
			n++
		}
	}
	return n
}

// Records returns a copy of the collection, newest first
func (r *Reconciler) Records() []models.Complaint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRecords(r.records)
}

func (r *Reconciler) Record(id string) (models.Complaint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.records[i], true
	}
	return models.Complaint{}, false
}

// OpenCount returns how many complaints are still Open
func (r *Reconciler) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return countOpen(r.records)
}

// FallbackActive reports whether calls to the store are currently suspended
func (r *Reconciler) FallbackActive() bool {
	return r.breaker.State() != breaker.Closed
}

func (r *Reconciler) State() SyncState {
	st := r.breaker.State()
	r.mu.Lock()
	defer r.mu.Unlock()
	return SyncState{
		FallbackActive:  st != breaker.Closed,
		BreakerState:    st.String(),
		LastSyncAttempt: r.lastAttempt,
		LastSyncSuccess: r.lastSuccess,
		Pending:         countPending(r.records),
	}
}

func (r *Reconciler) seed() []models.Complaint {
	if len(r.cfg.Seed) > 0 {
		return cloneRecords(r.cfg.Seed)
	}
	return models.SeedComplaints(r.now().UTC())
}

func (r *Reconciler) indexLocked(id string) int {
	for i, c := range r.records {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// dedupeLocked drops any other record sharing the id at index keep
func (r *Reconciler) dedupeLocked(keep int) {
	id := r.records[keep].ID
	out := r.records[:0]
	for i, c := range r.records {
		if i != keep && c.ID == id {
			continue
		}
		out = append(out, c)
	}
	r.records = out
}

func (r *Reconciler) observeRecordsLocked() {
	r.metrics.SetRecords(len(r.records), countPending(r.records))
}

func (r *Reconciler) storeNotificationsLocked(notes []models.Notification) {
	for _, n := range notes {
		r.notifications = append([]models.Notification{n}, r.notifications...)
	}
	if len(r.notifications) > r.cfg.MaxNotifications {
		r.notifications = r.notifications[:r.cfg.MaxNotifications]
	}
}

// observers are called in registration order
func (r *Reconciler) recordObserversLocked() ([]func([]models.Complaint), []models.Complaint) {
	ids := sortedKeys(r.recordSubs)
	subs := make([]func([]models.Complaint), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.recordSubs[id])
	}
	return subs, cloneRecords(r.records)
}

func (r *Reconciler) noteObserversLocked() []func(models.Notification) {
	ids := sortedKeys(r.noteSubs)
	subs := make([]func(models.Notification), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.noteSubs[id])
	}
	return subs
}

func sortedKeys[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Reconciler) emit(subs []func(models.Notification), notes []models.Notification) {
	for _, n := range notes {
		r.metrics.ObserveNotification(n.Kind)
		for _, fn := range subs {
			fn(n)
		}
	}
}

func publish(subs []func([]models.Complaint), snapshot []models.Complaint) {
	for _, fn := range subs {
		fn(cloneRecords(snapshot))
	}
}

func statusUpdateFor(c models.Complaint) models.StatusUpdate {
	upd := models.StatusUpdate{Status: c.Status}
	if c.AdminResponse != "" {
		resp := c.AdminResponse
		upd.AdminResponse = &resp
	}
	return upd
}

func sortNewestFirst(records []models.Complaint) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func cloneRecords(records []models.Complaint) []models.Complaint {
	out := make([]models.Complaint, len(records))
	copy(out, records)
	return out
}

func countOpen(records []models.Complaint) int {
	n := 0
	for _, c := range records {
		if c.Status == models.StatusOpen {
			n++
		}
	}
	return n
}

func countPending(records []models.Complaint) int {
	n := 0
	for _, c := range records {
		if c.Sync != models.SyncClean {
			n++
		}
	}
	return n
}
