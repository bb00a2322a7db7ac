package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/audit"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/cache"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/conflicts"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/queue"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/sessions"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances one second per read so ordering by time stays strict.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// fakeTx runs fn without a real transaction. Nothing is rolled back.
type fakeTx struct {
	err error
}

func (f *fakeTx) Conn() dbx.DBTX { return nil }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if f.err != nil {
		return f.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, nil)
}

type cacheKey struct{ device, table, record string }

// store is an in-memory stand-in for the Postgres schema.
type store struct {
	mu        sync.Mutex
	tenants   map[string]bool
	devices   map[string]*models.Device
	items     map[string]*models.QueueItem
	seq       int64
	conflicts map[string]*models.Conflict
	cache     map[cacheKey]*models.CacheEntry
	sessions  map[string]*models.SyncSession
	audit     []models.AuditEntry

	claimErr    error
	finishErr   error
	conflictErr error
}

func newStore() *store {
	return &store{
		tenants:   map[string]bool{"t-1": true},
		devices:   map[string]*models.Device{},
		items:     map[string]*models.QueueItem{},
		conflicts: map[string]*models.Conflict{},
		cache:     map[cacheKey]*models.CacheEntry{},
		sessions:  map[string]*models.SyncSession{},
	}
}

type fakeManager struct{ s *store }

func (m fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeManager) Devices(dbx.DBTX) devices.Repository          { return fakeDevices{m.s} }
func (m fakeManager) Queue(dbx.DBTX) queue.Repository              { return fakeQueue{m.s} }
func (m fakeManager) Conflicts(dbx.DBTX) conflicts.Repository      { return fakeConflicts{m.s} }
func (m fakeManager) Cache(dbx.DBTX) cache.Repository              { return fakeCache{m.s} }
func (m fakeManager) Sessions(dbx.DBTX) sessions.Repository        { return fakeSessions{m.s} }
func (m fakeManager) Audit(dbx.DBTX) audit.Repository              { return fakeAudit{m.s} }

// --- devices ---

type fakeDevices struct{ s *store }

func (r fakeDevices) Upsert(_ context.Context, externalID string, attrs models.DeviceAttrs, defaults models.SyncConfig, now time.Time) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if attrs.TenantID != "" && !r.s.tenants[attrs.TenantID] {
		return nil, common.ErrDeviceNotFound
	}
	for _, d := range r.s.devices {
		if d.ExternalID != externalID {
			continue
		}
		d.TenantID, d.Name, d.Platform, d.AppVersion = attrs.TenantID, attrs.Name, attrs.Platform, attrs.AppVersion
		if attrs.Config != nil {
			d.Config = *attrs.Config
		}
		if d.Status.Available() {
			d.Status = models.DeviceOnline
		}
		d.LastSeenAt, d.UpdatedAt = now, now
		cp := *d
		return &cp, nil
	}

	d := &models.Device{
		ID: uuid.NewString(), ExternalID: externalID, TenantID: attrs.TenantID, Name: attrs.Name,
		Platform: attrs.Platform, AppVersion: attrs.AppVersion, Config: defaults,
		Status: models.DeviceOnline, LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if attrs.Config != nil {
		d.Config = *attrs.Config
	}
	r.s.devices[d.ID] = d
	cp := *d
	return &cp, nil
}

func (r fakeDevices) GetByID(_ context.Context, id string) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return nil, common.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (r fakeDevices) GetForUpdate(ctx context.Context, id string) (*models.Device, error) {
	return r.GetByID(ctx, id)
}

func (r fakeDevices) Touch(_ context.Context, id string, now time.Time) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return nil, common.ErrDeviceNotFound
	}
	d.LastSeenAt = now
	if d.Status == models.DeviceOffline {
		d.Status = models.DeviceOnline
	}
	cp := *d
	return &cp, nil
}

func (r fakeDevices) SetStatus(_ context.Context, id string, status models.DeviceStatus, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrDeviceNotFound
	}
	d.Status, d.UpdatedAt = status, now
	return nil
}

func (r fakeDevices) MarkSyncCompleted(_ context.Context, id string, at time.Time, next *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrDeviceNotFound
	}
	d.Status = models.DeviceOnline
	d.LastSyncAt = &at
	d.NextSyncAt = next
	return nil
}

func (r fakeDevices) RecomputeStorage(_ context.Context, id string) (models.StorageStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return models.StorageStats{}, common.ErrDeviceNotFound
	}
	var st models.StorageStats
	for k, e := range r.s.cache {
		if k.device == id {
			st.UsedBytes += e.SizeBytes
			st.CachedRecords++
		}
	}
	d.StorageUsedBytes, d.CachedRecords = st.UsedBytes, st.CachedRecords
	return st, nil
}

// --- audit ---

type fakeAudit struct{ s *store }

func (r fakeAudit) Append(_ context.Context, e *models.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = int64(len(r.s.audit) + 1)
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r fakeAudit) ListByDevice(_ context.Context, deviceID string, _ int) ([]models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range r.s.audit {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- queue ---

type fakeQueue struct{ s *store }

func (r fakeQueue) Insert(_ context.Context, item *models.QueueItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.devices[item.DeviceID]; !ok {
		return common.ErrDeviceNotFound
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	r.s.seq++
	item.Seq = r.s.seq
	item.UpdatedAt = item.CreatedAt
	cp := *item
	r.s.items[item.ID] = &cp
	return nil
}

func (r fakeQueue) Claim(_ context.Context, deviceID string, limit int, now time.Time) ([]models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.claimErr != nil {
		return nil, r.s.claimErr
	}

	var eligible []*models.QueueItem
	for _, it := range r.s.items {
		if it.DeviceID == deviceID && it.Eligible() {
			eligible = append(eligible, it)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		ri, rj := eligible[i].Priority.Rank(), eligible[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return eligible[i].Seq < eligible[j].Seq
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	out := make([]models.QueueItem, 0, len(eligible))
	for _, it := range eligible {
		it.Status = models.QueueSyncing
		it.UpdatedAt = now
		out = append(out, *it)
	}
	return out, nil
}

func (r fakeQueue) Finish(_ context.Context, id string, to models.QueueStatus, lastErr string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.finishErr != nil {
		return r.s.finishErr
	}
	it, ok := r.s.items[id]
	if !ok || it.Status != models.QueueSyncing || !it.Status.CanTransitionTo(to) {
		return common.ErrInvalidTransition
	}
	it.Status, it.LastError, it.UpdatedAt = to, lastErr, now
	it.ProcessedAt = &now
	return nil
}

func (r fakeQueue) MarkFailed(_ context.Context, id string, cause string, now time.Time) (*models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if it.Status != models.QueueSyncing {
		return nil, common.ErrInvalidTransition
	}
	it.Status = models.QueueFailed
	it.RetryCount++
	it.LastError = cause
	it.UpdatedAt = now
	it.ProcessedAt = &now
	cp := *it
	return &cp, nil
}

func (r fakeQueue) FailStranded(_ context.Context, cause string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, it := range r.s.items {
		if it.Status != models.QueueSyncing {
			continue
		}
		it.Status = models.QueueFailed
		it.RetryCount++
		it.LastError = cause
		it.UpdatedAt = now
		it.ProcessedAt = &now
		n++
	}
	return n, nil
}

func (r fakeQueue) CountEligible(_ context.Context, deviceID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, it := range r.s.items {
		if it.DeviceID == deviceID && it.Eligible() {
			n++
		}
	}
	return n, nil
}

func (r fakeQueue) CountOutcomesSince(_ context.Context, deviceID string, since time.Time) (models.OutcomeCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var c models.OutcomeCounts
	for _, it := range r.s.items {
		if it.DeviceID != deviceID || it.ProcessedAt == nil || it.ProcessedAt.Before(since) {
			continue
		}
		switch it.Status {
		case models.QueueCompleted:
			c.Completed++
		case models.QueueFailed:
			c.Failed++
			if !it.RetriesLeft() {
				c.Exhausted++
			}
		case models.QueueConflict:
			c.Conflict++
		case models.QueueSkipped:
			c.Skipped++
		}
	}
	return c, nil
}

func (r fakeQueue) ListByDevice(_ context.Context, deviceID string, filter models.ItemFilter) ([]models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.QueueItem
	for _, it := range r.s.items {
		if it.DeviceID == deviceID && (filter.Status == "" || it.Status == filter.Status) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r fakeQueue) GetByID(_ context.Context, id string) (*models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *it
	return &cp, nil
}

// --- conflicts ---

type fakeConflicts struct{ s *store }

func (r fakeConflicts) Create(_ context.Context, c *models.Conflict) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.conflictErr != nil {
		return r.s.conflictErr
	}
	for _, other := range r.s.conflicts {
		if other.QueueItemID == c.QueueItemID {
			return common.ErrConflictExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.s.conflicts[c.ID] = &cp
	return nil
}

func (r fakeConflicts) GetByID(_ context.Context, id string) (*models.Conflict, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conflicts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeConflicts) GetForUpdate(ctx context.Context, id string) (*models.Conflict, error) {
	return r.GetByID(ctx, id)
}

func (r fakeConflicts) ListByDevice(_ context.Context, deviceID string, unresolvedOnly bool, _ int) ([]models.Conflict, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Conflict
	for _, c := range r.s.conflicts {
		if c.DeviceID == deviceID && (!unresolvedOnly || !c.Resolved) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r fakeConflicts) HasUnresolved(_ context.Context, deviceID, table, recordID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conflicts {
		if c.DeviceID == deviceID && c.TableName == table && c.RecordID == recordID && !c.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeConflicts) Resolve(_ context.Context, c *models.Conflict) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.conflicts[c.ID]
	if !ok || cur.Resolved {
		return common.ErrConflictAlreadyResolved
	}
	cp := *c
	r.s.conflicts[c.ID] = &cp
	return nil
}

// --- cache ---

type fakeCache struct{ s *store }

func (r fakeCache) Upsert(_ context.Context, e *models.CacheEntry) (*models.CacheEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := cacheKey{e.DeviceID, e.TableName, e.RecordID}
	cp := *e
	if cur, ok := r.s.cache[k]; ok {
		cp.Version = cur.Version
		if cur.ContentHash != e.ContentHash {
			cp.Version++
		}
		cp.AccessFrequency = cur.AccessFrequency
		cp.CreatedAt = cur.CreatedAt
	} else {
		cp.Version = 1
	}
	r.s.cache[k] = &cp
	out := cp
	return &out, nil
}

func (r fakeCache) Get(_ context.Context, deviceID, table, recordID string) (*models.CacheEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.cache[cacheKey{deviceID, table, recordID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *e
	return &cp, nil
}

func (r fakeCache) TouchAccess(_ context.Context, deviceID, table, recordID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.cache[cacheKey{deviceID, table, recordID}]
	if !ok {
		return common.ErrorNotFound
	}
	e.AccessFrequency++
	e.LastAccessedAt = now
	return nil
}

func (r fakeCache) SetDirty(_ context.Context, deviceID, table, recordID string, dirty bool, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.cache[cacheKey{deviceID, table, recordID}]
	if !ok {
		return common.ErrorNotFound
	}
	e.IsDirty, e.UpdatedAt = dirty, now
	return nil
}

func (r fakeCache) DeleteExpired(_ context.Context, now time.Time) (int, []string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	removed := 0
	seen := map[string]struct{}{}
	for k, e := range r.s.cache {
		if e.Expired(now) {
			delete(r.s.cache, k)
			removed++
			seen[k.device] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return removed, ids, nil
}

func (r fakeCache) SizeExcluding(_ context.Context, deviceID, table, recordID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, e := range r.s.cache {
		if k.device == deviceID && (k.table != table || k.record != recordID) {
			n += e.SizeBytes
		}
	}
	return n, nil
}

// --- sessions ---

type fakeSessions struct{ s *store }

func (r fakeSessions) Open(_ context.Context, sess *models.SyncSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.sessions {
		if o.DeviceID == sess.DeviceID && o.Status == models.SessionSyncing {
			return common.ErrSessionInProgress
		}
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.Status = models.SessionSyncing
	cp := *sess
	r.s.sessions[sess.ID] = &cp
	return nil
}

func (r fakeSessions) GetByID(_ context.Context, id string) (*models.SyncSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r fakeSessions) GetOpen(_ context.Context, deviceID string) (*models.SyncSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.DeviceID == deviceID && sess.Status == models.SessionSyncing {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, common.ErrSessionNotFound
}

func (r fakeSessions) ListOpen(_ context.Context) ([]models.SyncSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.SyncSession
	for _, sess := range r.s.sessions {
		if sess.Status == models.SessionSyncing {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r fakeSessions) Close(_ context.Context, sess *models.SyncSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.sessions[sess.ID]
	if !ok || cur.Status != models.SessionSyncing {
		return fmt.Errorf("%w: %s is not open", common.ErrSessionNotFound, sess.ID)
	}
	cp := *sess
	r.s.sessions[sess.ID] = &cp
	return nil
}

func (r fakeSessions) ListByDevice(_ context.Context, deviceID string, _ int) ([]models.SyncSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.SyncSession
	for _, sess := range r.s.sessions {
		if sess.DeviceID == deviceID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// --- business records ---

// memTable is an in-memory records.Repository.
type memTable struct {
	mu      sync.Mutex
	rows    map[string]*records.Record
	failOn  map[string]error
	getErr  error
	applies int
	// onApply runs after every successful write.
	onApply func(id string)
}

func newMemTable() *memTable {
	return &memTable{rows: map[string]*records.Record{}, failOn: map[string]error{}}
}

func (t *memTable) put(id string, data map[string]any, at time.Time, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = &records.Record{ID: id, Data: data, UpdatedAt: at, IsActive: active}
}

func (t *memTable) row(id string) *records.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[id]
	if !ok {
		return nil
	}
	cp := *r
	cp.Data = maps.Clone(r.Data)
	return &cp
}

func (t *memTable) applied(id string) {
	t.applies++
	if t.onApply != nil {
		t.onApply(id)
	}
}

func (t *memTable) fail(id string) error {
	if err, ok := t.failOn[id]; ok {
		return err
	}
	return nil
}

func (t *memTable) Get(_ context.Context, id string) (*records.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.getErr != nil {
		return nil, t.getErr
	}
	r, ok := t.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	cp.Data = maps.Clone(r.Data)
	return &cp, nil
}

func (t *memTable) Upsert(_ context.Context, id string, data map[string]any, at time.Time) (*records.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fail(id); err != nil {
		return nil, err
	}
	t.applied(id)
	r := &records.Record{ID: id, Data: maps.Clone(data), UpdatedAt: at, IsActive: true}
	if cur, ok := t.rows[id]; ok {
		r.IsActive = cur.IsActive
	}
	t.rows[id] = r
	cp := *r
	return &cp, nil
}

func (t *memTable) Merge(_ context.Context, id string, patch map[string]any, at time.Time) (*records.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fail(id); err != nil {
		return nil, err
	}
	t.applied(id)
	r, ok := t.rows[id]
	if !ok {
		r = &records.Record{ID: id, Data: map[string]any{}, IsActive: true}
		t.rows[id] = r
	}
	maps.Copy(r.Data, patch)
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (t *memTable) SoftDelete(_ context.Context, id string, at time.Time) error {
	return t.setActive(id, false, at)
}

func (t *memTable) Restore(_ context.Context, id string, at time.Time) error {
	return t.setActive(id, true, at)
}

func (t *memTable) setActive(id string, active bool, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fail(id); err != nil {
		return err
	}
	r, ok := t.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	t.applied(id)
	r.IsActive, r.UpdatedAt = active, at
	return nil
}

// recordingArchiver keeps archived sessions.
type recordingArchiver struct {
	mu       sync.Mutex
	sessions []models.SyncSession
	err      error
}

func (a *recordingArchiver) Archive(_ context.Context, s *models.SyncSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, *s)
	return a.err
}

// --- fixture ---

type fixture struct {
	store    *store
	tx       *fakeTx
	clock    *fakeClock
	orders   *memTable
	registry *records.Registry
	archiver *recordingArchiver

	devices  *DeviceService
	queue    *QueueService
	cache    *CacheService
	sessions *SessionService
	sync     *SyncService
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		DefaultBatchSize:            50,
		DefaultMaxRetries:           3,
		CacheTTL:                    time.Hour,
		DefaultSyncFrequency:        15 * time.Minute,
		DefaultStorageLimitBytes:    1 << 20,
	}
}

func newFixture() *fixture {
	f := &fixture{
		store:    newStore(),
		tx:       &fakeTx{},
		clock:    newFakeClock(),
		orders:   newMemTable(),
		registry: records.NewRegistry(),
		archiver: &recordingArchiver{},
	}
	f.registry.Register("orders", func(dbx.DBTX) records.Repository { return f.orders })

	m := fakeManager{f.store}
	cfg := testConfig()
	l := logging.NopLogger{}

	f.devices = NewDeviceService(f.tx, m, cfg, l)
	f.cache = NewCacheService(f.tx, m, f.registry, cfg, l)
	f.queue = NewQueueService(f.tx, m, f.registry, f.cache, cfg, l)
	f.sessions = NewSessionService(f.tx, m, l)
	f.sync = NewSyncService(f.tx, m, f.registry, f.sessions, f.queue, f.cache, f.archiver, l)

	f.devices.now = f.clock.Now
	f.cache.now = f.clock.Now
	f.queue.now = f.clock.Now
	f.sessions.now = f.clock.Now
	f.sync.now = f.clock.Now
	return f
}

func (f *fixture) register(externalID string) *models.Device {
	d, err := f.devices.Register(context.Background(), externalID, models.DeviceAttrs{TenantID: "t-1", Name: externalID})
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) enqueue(req EnqueueRequest) string {
	id, err := f.queue.Enqueue(context.Background(), req)
	if err != nil {
		panic(err)
	}
	return id
}

func (f *fixture) item(id string) models.QueueItem {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return *f.store.items[id]
}

func (f *fixture) device(id string) models.Device {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return *f.store.devices[id]
}

var errBoom = errors.New("boom")
