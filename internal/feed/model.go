package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/soundprints/internal/logging"
	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/sound"
)

// inboxSize bounds queued calls into the loop.
const inboxSize = 64

// fetchTicket identifies one outstanding fetch. A completion is applied only
// while its ticket is still the model's inflight ticket.
type fetchTicket struct {
	gen      uint64
	recovery bool // first fetch after an invalidation
	reload   bool
	started  time.Time
}

// Model is the feed. Create with New, then call Run on its own goroutine.
// All exported methods are safe for concurrent use.
type Model struct {
	client  Client
	filters Filters
	opts    Options
	events  *otel.Logger

	inbox   chan func()
	started chan struct{}
	done    chan struct{}
	running atomic.Bool
	subs    observers
	wg      sync.WaitGroup // outstanding network calls

	// Owned by the Run goroutine.
	ctx              context.Context
	state            State
	items            []sound.Item
	distanceCursor   float64
	timeCursor       time.Time
	gen              uint64
	inflight         *fetchTicket
	latest           *Viewport
	active           *Viewport
	lastInvalidation time.Time
	lastDayBound     *time.Time
	hasViewport      bool
	retryPending     bool // last fetch failed; the next tick retries it
	ticker           *time.Ticker
	tick             <-chan time.Time
}

// New creates a Model. client and filters must not be nil.
func New(client Client, filters Filters, opts Options) *Model {
	opts = opts.withDefaults()
	return &Model{
		client:  client,
		filters: filters,
		opts:    opts,
		events:  opts.Events,
		inbox:   make(chan func(), inboxSize),
		started: make(chan struct{}),
		done:    make(chan struct{}),
		state:   opts.State,
	}
}

// Mode returns the model's ordering mode.
func (m *Model) Mode() Mode {
	return m.opts.Mode
}

// Run processes calls until ctx is cancelled. It returns nil on
// cancellation. Run may be called only once.
func (m *Model) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("feed: Run called twice")
	}
	m.ctx = ctx
	close(m.started)

	defer func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
		m.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("Feed loop stopped", "mode", m.opts.Mode, "generation", m.gen)
			return nil
		case fn := <-m.inbox:
			fn()
		case <-m.tick:
			m.onTick()
		}
	}
}

// Started is closed once Run has begun processing calls.
func (m *Model) Started() <-chan struct{} {
	return m.started
}

// post queues fn for the loop. Returns false once the loop has stopped.
func (m *Model) post(fn func()) bool {
	select {
	case m.inbox <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call runs fn on the loop and waits for it to finish. It fails with
// ErrNotRunning before Run has been called.
func (m *Model) call(fn func()) error {
	if !m.running.Load() {
		return ErrNotRunning
	}
	finished := make(chan struct{})
	if !m.post(func() {
		fn()
		close(finished)
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// Subscribe registers obs. The returned func removes it; calling it more
// than once is harmless.
func (m *Model) Subscribe(obs Observer) (cancel func()) {
	return m.subs.add(obs)
}

// SetState switches between focused and browsing. An actual change may
// invalidate the collection.
func (m *Model) SetState(s State) {
	m.post(func() {
		if s == m.state {
			return
		}
		m.state = s
		m.emit(otel.Event{Kind: otel.KindStateChange, Msg: s.String()})
		if m.shouldInvalidate(true) {
			m.invalidate("state change")
		}
	})
}

// UpdateViewport records the viewport the user is looking at. The first
// report starts the periodic refresh and fetches the first page.
func (m *Model) UpdateViewport(v Viewport) {
	m.post(func() {
		vp := v
		m.latest = &vp
		m.emit(otel.Event{Kind: otel.KindViewport, Msg: vp.Location.String()})

		if !m.hasViewport {
			m.hasViewport = true
			m.lastInvalidation = m.opts.Now()
			active := vp
			m.active = &active
			m.startTicker()
			m.fetchNextPage(false)
			return
		}
		if m.shouldInvalidate(false) {
			m.invalidate("viewport")
		}
	})
}

// FilterChanged forces an invalidation with the new filter selection.
func (m *Model) FilterChanged() {
	m.post(func() {
		m.invalidate("filter")
	})
}

// FetchNextPage requests the next page beyond the cursor. It is a no-op
// while another fetch is outstanding.
func (m *Model) FetchNextPage() error {
	var err error
	if cerr := m.call(func() { err = m.fetchNextPage(false) }); cerr != nil {
		return cerr
	}
	return err
}

// SubmitItem uploads the recording at path, tagged with the latest viewport
// location. The result is reported through OnItemInserted or
// OnUploadFailed.
func (m *Model) SubmitItem(path string) error {
	var err error
	if cerr := m.call(func() { err = m.submit(path) }); cerr != nil {
		return cerr
	}
	return err
}

// Items returns a copy of the current collection, or nil when the loop is
// not running.
func (m *Model) Items() []sound.Item {
	var items []sound.Item
	if err := m.call(func() { items = cloneItems(m.items) }); err != nil {
		return nil
	}
	return items
}

// Snapshot returns a copy of the model state. The zero Snapshot is returned
// when the loop is not running.
func (m *Model) Snapshot() Snapshot {
	var s Snapshot
	if err := m.call(func() { s = m.snapshot() }); err != nil {
		return Snapshot{}
	}
	return s
}

func (m *Model) snapshot() Snapshot {
	s := Snapshot{
		Mode:             m.opts.Mode,
		State:            m.state,
		Items:            cloneItems(m.items),
		DistanceCursor:   m.distanceCursor,
		TimeCursor:       m.timeCursor,
		Generation:       m.gen,
		Fetching:         m.inflight != nil,
		LastInvalidation: m.lastInvalidation,
	}
	if m.latest != nil {
		v := *m.latest
		s.Latest = &v
	}
	if m.active != nil {
		v := *m.active
		s.Active = &v
	}
	return s
}

func (m *Model) startTicker() {
	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.opts.RefreshInterval)
	m.tick = m.ticker.C
}

func (m *Model) onTick() {
	if m.shouldInvalidate(false) {
		m.invalidate("refresh")
		return
	}
	if m.retryPending && m.inflight == nil {
		logging.Debug("Retrying failed fetch", "generation", m.gen)
		m.fetchNextPage(false)
	}
}

// shouldInvalidate decides whether the collection is stale. The order of
// the checks matters.
func (m *Model) shouldInvalidate(stateChange bool) bool {
	if !stateChange && m.state == StateBrowsing {
		return false
	}
	if m.lastInvalidation.IsZero() || m.opts.Now().Sub(m.lastInvalidation) > m.opts.InvalidationInterval {
		return true
	}
	if m.latest == nil {
		return false
	}
	if m.active == nil {
		return true
	}
	if m.opts.Mode == ModeLocation {
		return m.latest.Location.DistanceTo(m.active.Location) > m.opts.DistanceThreshold
	}
	return false
}

// invalidate clears the collection, starts a new generation, and issues the
// recovery fetch for it.
func (m *Model) invalidate(reason string) {
	m.lastInvalidation = m.opts.Now()
	m.items = nil
	m.distanceCursor = 0
	m.timeCursor = time.Time{}
	if m.latest != nil {
		v := *m.latest
		m.active = &v
	} else {
		m.active = nil
	}
	m.gen++
	m.inflight = nil
	m.retryPending = false
	m.lastDayBound = nil

	logging.Debug("Feed invalidated", "reason", reason, "generation", m.gen)
	m.emit(otel.Event{Kind: otel.KindInvalidate, Generation: m.gen, Msg: reason})

	if m.active != nil {
		m.fetchNextPage(true)
	}
}

func (m *Model) fetchNextPage(afterInvalidation bool) error {
	if m.active == nil {
		return ErrNoActiveViewport
	}
	if m.inflight != nil {
		return nil
	}

	t := &fetchTicket{
		gen:      m.gen,
		recovery: afterInvalidation,
		reload:   afterInvalidation || (m.cursorEmpty() && len(m.items) == 0),
		started:  m.opts.Now(),
	}
	m.inflight = t
	m.retryPending = false

	var fetch func(ctx context.Context) ([]sound.Item, error)
	var cursor string
	switch m.opts.Mode {
	case ModeTime:
		q := m.timeQuery()
		if q.UpTo != nil {
			cursor = q.UpTo.Format(time.RFC3339)
		}
		fetch = func(ctx context.Context) ([]sound.Item, error) { return m.client.FetchByTime(ctx, q) }
	default:
		q := m.locationQuery()
		cursor = fmt.Sprintf("%.0fm", q.MinDistance)
		fetch = func(ctx context.Context) ([]sound.Item, error) { return m.client.FetchByLocation(ctx, q) }
	}

	m.emit(otel.Event{Kind: otel.KindFetchStart, Generation: t.gen, Cursor: cursor})
	m.goAsync(m.opts.FetchTimeout, func(ctx context.Context) func() {
		items, err := fetch(ctx)
		return func() { m.completeFetch(t, items, err) }
	})
	return nil
}

func (m *Model) cursorEmpty() bool {
	if m.opts.Mode == ModeTime {
		return m.timeCursor.IsZero()
	}
	return m.distanceCursor == 0
}

func (m *Model) locationQuery() sound.LocationQuery {
	sel := m.filters.Current()
	radius := m.active.Radius
	if radius <= 0 || radius > m.opts.MaxRadius {
		radius = m.opts.MaxRadius
	}
	return sound.LocationQuery{
		Origin:      m.active.Location,
		MinDistance: m.distanceCursor,
		MaxDistance: radius,
		Category:    sel.Category,
		OnlyLastDay: sel.OnlyLastDay(),
		Limit:       m.opts.LocationPageSize,
	}
}

func (m *Model) timeQuery() sound.TimeQuery {
	sel := m.filters.Current()
	q := sound.TimeQuery{Category: sel.Category, Limit: m.opts.TimePageSize}

	switch {
	case !m.timeCursor.IsZero():
		upTo := m.timeCursor
		q.UpTo = &upTo
	case !m.active.Until.IsZero():
		upTo := m.active.Until
		q.UpTo = &upTo
	}

	if sel.OnlyLastDay() && m.lastDayBound == nil {
		bound := m.opts.Now().Add(-24 * time.Hour)
		m.lastDayBound = &bound
	}
	var since time.Time
	if !m.active.Since.IsZero() {
		since = m.active.Since
	}
	if sel.OnlyLastDay() && m.lastDayBound.After(since) {
		since = *m.lastDayBound
	}
	if !since.IsZero() {
		q.Since = &since
	}
	return q
}

// goAsync runs work off the loop with a timeout and posts its result back.
func (m *Model) goAsync(timeout time.Duration, work func(ctx context.Context) func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, timeout)
		defer cancel()
		m.post(work(ctx))
	}()
}

func (m *Model) completeFetch(t *fetchTicket, page []sound.Item, err error) {
	if t != m.inflight {
		logging.Debug("Discarding stale page", "ticket_generation", t.gen, "generation", m.gen, "error", err)
		m.emit(otel.Event{Kind: otel.KindFetchDiscard, Generation: t.gen, Count: len(page)})
		return
	}
	m.inflight = nil
	dur := m.opts.Now().Sub(t.started)

	if err != nil {
		logging.Warn("Feed fetch failed", "generation", t.gen, "error", err)
		m.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Generation: t.gen, Dur: dur, Err: err.Error()})
		m.retryPending = true
		m.subs.each(func(o Observer) { o.OnFetchFailed(err) })
		return
	}

	fresh := m.merge(t, page)
	m.advanceCursor(page)
	m.emit(otel.Event{Kind: otel.KindFetchComplete, Generation: t.gen, Dur: dur, Count: len(fresh)})

	switch {
	case t.recovery:
		m.items = fresh
		m.notifyReplaced()
	case t.reload:
		m.items = append(m.items, fresh...)
		m.notifyReplaced()
	default:
		m.items = append(m.items, fresh...)
		added := cloneItems(fresh)
		m.subs.each(func(o Observer) { o.OnAppended(added) })
	}
}

// merge returns the page items that are new to the collection, in page
// order. A recovery page replaces the collection, so only in-page
// duplicates are dropped.
func (m *Model) merge(t *fetchTicket, page []sound.Item) []sound.Item {
	seen := make(map[string]struct{}, len(m.items)+len(page))
	if !t.recovery {
		for i := len(m.items) - 1; i >= 0; i-- {
			seen[m.items[i].ID] = struct{}{}
		}
	}
	fresh := make([]sound.Item, 0, len(page))
	for _, it := range page {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		fresh = append(fresh, it)
	}
	return fresh
}

// advanceCursor moves the pagination frontier to the last element of the
// page. It never moves backwards.
func (m *Model) advanceCursor(page []sound.Item) {
	if len(page) == 0 {
		return
	}
	last := page[len(page)-1]
	switch m.opts.Mode {
	case ModeTime:
		if last.CreatedAt.IsZero() {
			return
		}
		if m.timeCursor.IsZero() || last.CreatedAt.Before(m.timeCursor) {
			m.timeCursor = last.CreatedAt
		}
	default:
		if d, ok := last.DistanceFrom(m.active.Location); ok && d > m.distanceCursor {
			m.distanceCursor = d
		}
	}
}

func (m *Model) notifyReplaced() {
	all := cloneItems(m.items)
	m.subs.each(func(o Observer) { o.OnReplaced(all) })
}

func (m *Model) submit(path string) error {
	if m.latest == nil {
		m.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindUploadError, Err: ErrNoActiveViewport.Error()})
		m.subs.each(func(o Observer) { o.OnUploadFailed(ErrNoActiveViewport) })
		return ErrNoActiveViewport
	}

	req := sound.UploadRequest{FilePath: path, Category: sound.UploadCategory}
	if loc := m.latest.Location; m.opts.Mode == ModeLocation || (loc != sound.Location{}) {
		req.Location = &loc
	}

	started := m.opts.Now()
	m.goAsync(m.opts.UploadTimeout, func(ctx context.Context) func() {
		item, err := m.client.Upload(ctx, req)
		return func() { m.completeUpload(item, err, started) }
	})
	return nil
}

func (m *Model) completeUpload(item sound.Item, err error, started time.Time) {
	dur := m.opts.Now().Sub(started)
	if err != nil {
		logging.Warn("Upload failed", "error", err)
		m.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindUploadError, Dur: dur, Err: err.Error()})
		m.subs.each(func(o Observer) { o.OnUploadFailed(err) })
		return
	}

	index := NoIndex
	if item.Category == m.filters.Current().Category {
		kept := m.items[:0:0]
		for _, it := range m.items {
			if it.ID != item.ID {
				kept = append(kept, it)
			}
		}
		m.items = append([]sound.Item{item}, kept...)
		index = 0
	}

	logging.Info("Upload complete", "item", item.ID, "index", index)
	m.emit(otel.Event{Kind: otel.KindUploadComplete, ItemID: item.ID, Dur: dur, Count: index})
	m.subs.each(func(o Observer) { o.OnItemInserted(item, index) })
}

func (m *Model) emit(e otel.Event) {
	if e.Comp == "" {
		e.Comp = "feed"
	}
	if e.Level == "" {
		e.Level = otel.LevelInfo
	}
	m.events.Emit(e)
}

func cloneItems(items []sound.Item) []sound.Item {
	if items == nil {
		return nil
	}
	out := make([]sound.Item, len(items))
	copy(out, items)
	return out
}
